// Package bitops provides the bit-counting and bit-iteration primitives
// the kernels need on top of a packed bitmask or 2-bit genovec: popcount,
// the "clear lowest set bit" iteration idiom, and interleaving for the
// sample-subset fast-count path. Only the portable implementation is
// shipped; golang.org/x/sys/cpu reports whether an AVX2 path would apply
// so an optimized counter can slot in behind the same entry points later.
package bitops

import (
	"math/bits"

	"golang.org/x/sys/cpu"
)

// HasAVX2 reports whether the running CPU supports the AVX2 path that a
// future optimized popcount kernel could dispatch to. The portable path
// below is used unconditionally today; this is exposed so callers (and
// benchmarks) can record which path theoretically applies.
var HasAVX2 = cpu.X86.HasAVX2

// PopcountWords returns the total number of set bits across words.
func PopcountWords(words []uint64) int {
	n := 0
	for _, w := range words {
		n += bits.OnesCount64(w)
	}
	return n
}

// PopcountRange returns the number of set bits in bits [0, nBits) of a
// packed bitmask, for a partial final word.
func PopcountRange(words []uint64, nBits int) int {
	full := nBits / 64
	n := PopcountWords(words[:full])
	if rem := nBits % 64; rem > 0 {
		mask := uint64(1)<<uint(rem) - 1
		n += bits.OnesCount64(words[full] & mask)
	}
	return n
}

// ForEachSetBit calls fn(bitIndex) for every set bit in words, in
// ascending order, using the word &= word-1 idiom (clear lowest set bit)
// to skip directly from one set bit to the next instead of testing every
// bit position.
func ForEachSetBit(words []uint64, fn func(bitIndex int)) {
	for wordIdx, w := range words {
		base := wordIdx * 64
		for w != 0 {
			tz := bits.TrailingZeros64(w)
			fn(base + tz)
			w &= w - 1
		}
	}
}

// SetBit sets bit i in a packed bitmask.
func SetBit(words []uint64, i int) {
	words[i/64] |= 1 << uint(i%64)
}

// TestBit reports whether bit i is set in a packed bitmask.
func TestBit(words []uint64, i int) bool {
	return words[i/64]&(1<<uint(i%64)) != 0
}

// CumulativePopcounts returns, for each word index w, the popcount of all
// words strictly before w — the per-word running total
// PgrSampleSubsetIndex needs to translate a raw sample index into an
// effective (subsetted) sample index in O(1) per word plus O(63) bit scan
// within the word.
func CumulativePopcounts(words []uint64) []uint32 {
	out := make([]uint32, len(words))
	running := uint32(0)
	for i, w := range words {
		out[i] = running
		running += uint32(bits.OnesCount64(w))
	}
	return out
}

// FillInterleavedMaskVec builds the transposed form of include that the
// decoder's fast-count path consumes: each output word packs include's
// bits 2-at-a-time duplicated (bit b and bit b placed at positions 2b and
// 2b+1), so a single AND against a genovec word tests both nyps of every
// included sample in one instruction on the native implementation. This Go
// port keeps the same bit layout so GetCounts's masking logic matches
// plink2's FillInterleavedMaskVec semantics exactly.
func FillInterleavedMaskVec(include []uint64, sampleCt int) []uint64 {
	out := make([]uint64, align2xWords(sampleCt))
	for i := 0; i < sampleCt; i++ {
		if !TestBit(include, i) {
			continue
		}
		SetBit(out, 2*i)
		SetBit(out, 2*i+1)
	}
	return out
}

func align2xWords(sampleCt int) int {
	return (sampleCt*2 + 63) / 64
}
