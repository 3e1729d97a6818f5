// Package subset resolves a caller-supplied sample selection (indices or
// IIDs) into a SampleSubset: a bitmask plus the derived interleaved and
// cumulative-popcount forms the decoder needs for its fast paths.
package subset

import (
	"sort"

	"github.com/teaguesterling/plinking-duck/align"
	"github.com/teaguesterling/plinking-duck/bitops"
	"github.com/teaguesterling/plinking-duck/errs"
	"github.com/teaguesterling/plinking-duck/metadata"
)

// SampleSubset is an immutable, read-only-shared description of which of
// the raw samples are selected. The three derived
// forms (Include, Interleaved, CumulativePopcounts) are all computed once
// at construction and never mutated afterwards, so a single SampleSubset
// can be shared across scan goroutines without locking.
type SampleSubset struct {
	RawSampleCt    uint32
	SubsetSampleCt uint32

	// Include is a packed bitmask over [0, RawSampleCt), one bit per raw
	// sample index; bit set means selected.
	Include []uint64

	// Interleaved is the FillInterleavedMaskVec transposition of Include,
	// used by the decoder's fast-count path (Reader.GetCounts).
	Interleaved []uint64

	// CumulativePopcounts holds, for each 64-bit word boundary, the number
	// of set bits in all preceding words; used to map a raw sample index
	// to its position within the subset.
	CumulativePopcounts []uint32

	// indices holds the selected raw sample indices sorted ascending; the
	// decoder emits subsetted output in this order, so the effective sample
	// index space is always ascending-raw-index regardless of the order the
	// caller named samples in.
	indices []uint32
}

// Indices returns the selected raw sample indices, ascending.
func (s *SampleSubset) Indices() []uint32 { return s.indices }

// ResolveIndices turns a list of sample indices or IIDs into raw sample
// indices, validating range and rejecting duplicates.
func ResolveIndices(rawSampleCt uint32, samples *metadata.SampleTable, byIndex []int64, byIID []string) ([]uint32, error) {
	if (len(byIndex) == 0) == (len(byIID) == 0) {
		return nil, errs.Errorf("ResolveIndices: exactly one of byIndex or byIID must be non-empty")
	}

	var indices []uint32
	if len(byIndex) > 0 {
		indices = make([]uint32, 0, len(byIndex))
		for _, idx := range byIndex {
			if idx < 0 || uint32(idx) >= rawSampleCt {
				return nil, errs.Errorf("ResolveIndices: sample index %d out of range (sample count: %d)", idx, rawSampleCt)
			}
			indices = append(indices, uint32(idx))
		}
	} else {
		if samples == nil {
			return nil, errs.Errorf("ResolveIndices: sample IIDs require a loaded .psam/.fam (none available)")
		}
		indices = make([]uint32, 0, len(byIID))
		for _, iid := range byIID {
			idx, ok := samples.IndexByIID(iid)
			if !ok {
				return nil, errs.Errorf("ResolveIndices: sample %q not found in sample sidecar", iid)
			}
			indices = append(indices, idx)
		}
	}

	seen := make(map[uint32]bool, len(indices))
	for _, idx := range indices {
		if seen[idx] {
			return nil, errs.Errorf("ResolveIndices: duplicate sample index %d in samples list", idx)
		}
		seen[idx] = true
	}
	return indices, nil
}

// BuildSampleSubset builds a SampleSubset from a resolved list of raw
// sample indices. Indices are sorted ascending first: the decoder's
// subsetted read paths emit samples in raw-index order, so the sorted
// list is what maps an effective sample slot back to its raw index.
func BuildSampleSubset(rawSampleCt uint32, indices []uint32) *SampleSubset {
	ordered := make([]uint32, len(indices))
	copy(ordered, indices)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	wordCt := (int(rawSampleCt) + 63) / 64
	include := align.NewWords64(wordCt)
	for _, idx := range ordered {
		bitops.SetBit(include, int(idx))
	}

	interleaved := bitops.FillInterleavedMaskVec(include, int(rawSampleCt))
	alignedInterleaved := align.NewWords64(len(interleaved))
	copy(alignedInterleaved, interleaved)

	cumPop := bitops.CumulativePopcounts(include)
	alignedCumPop := align.NewWords32(len(cumPop))
	copy(alignedCumPop, cumPop)

	return &SampleSubset{
		RawSampleCt:         rawSampleCt,
		SubsetSampleCt:      uint32(len(indices)),
		Include:             include,
		Interleaved:         alignedInterleaved,
		CumulativePopcounts: alignedCumPop,
		indices:             ordered,
	}
}

// AllSamples builds a SampleSubset that selects every raw sample in order,
// the default when the caller supplies no samples argument.
func AllSamples(rawSampleCt uint32) *SampleSubset {
	indices := make([]uint32, rawSampleCt)
	for i := range indices {
		indices[i] = uint32(i)
	}
	return BuildSampleSubset(rawSampleCt, indices)
}
