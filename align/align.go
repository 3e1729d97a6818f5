// Package align provides cache-line-aligned scratch buffers for the PGEN
// decoder's working memory: genovecs, dosage tracks, and missingness
// bitmasks. Go's allocator does not guarantee alignment beyond pointer
// size, so a buffer is over-allocated and a sub-slice starting at the next
// CacheLine-aligned byte is handed back.
package align

import "unsafe"

// CacheLine is the minimum alignment this package guarantees, matching
// pgenlib's cachealigned_malloc contract.
const CacheLine = 64

// Buffer is an exclusively-owned, cache-line-aligned byte region. It has
// no finalizer: the backing array is ordinary Go memory and is reclaimed
// by the garbage collector once unreferenced. Release is provided for
// symmetry with the decoder's documented teardown order, even though it's
// a no-op here.
type Buffer struct {
	raw   []byte
	bytes []byte
}

// New allocates a Buffer of at least size bytes, aligned to CacheLine.
func New(size int) *Buffer {
	raw := make([]byte, size+CacheLine-1)
	base := uintptr(unsafe.Pointer(&raw[0]))
	pad := (CacheLine - int(base%CacheLine)) % CacheLine
	return &Buffer{raw: raw, bytes: raw[pad : pad+size]}
}

// Bytes returns the aligned byte slice.
func (b *Buffer) Bytes() []byte { return b.bytes }

// Words64 reinterprets the aligned region as a []uint64, truncating any
// trailing bytes that don't fill a whole word.
func (b *Buffer) Words64() []uint64 {
	n := len(b.bytes) / 8
	return unsafe.Slice((*uint64)(unsafe.Pointer(&b.bytes[0])), n)
}

// Words32 reinterprets the aligned region as a []uint32, truncating any
// trailing bytes that don't fill a whole word.
func (b *Buffer) Words32() []uint32 {
	n := len(b.bytes) / 4
	return unsafe.Slice((*uint32)(unsafe.Pointer(&b.bytes[0])), n)
}

// NewWords64 allocates a cache-line-aligned []uint64 of exactly n words,
// zero-filled, for decoder scratch buffers and subset bitmasks sized in
// words rather than bytes.
func NewWords64(n int) []uint64 {
	return New(n * 8).Words64()[:n]
}

// NewWords32 allocates a cache-line-aligned []uint32 of exactly n words,
// zero-filled.
func NewWords32(n int) []uint32 {
	return New(n * 4).Words32()[:n]
}

// Release is a no-op placeholder for explicit scoped teardown; see the
// package doc comment.
func (b *Buffer) Release() {}

// WordsForBits returns the number of 64-bit words needed to hold nBits,
// rounded up — the Go analog of plink2's BitCtToWordCt.
func WordsForBits(nBits int) int {
	return (nBits + 63) / 64
}

// NypWordsForSamples returns the number of 64-bit words needed to hold
// sampleCt 2-bit genotype calls (nyps, in plink2 terminology): a plain
// ceil_div of 2*sampleCt bits by 64, with no padding beyond the last
// partially filled word.
func NypWordsForSamples(sampleCt int) int {
	return (sampleCt*2 + 63) / 64
}
