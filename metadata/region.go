package metadata

import (
	"sort"
	"strconv"
	"strings"

	"github.com/biogo/store/llrb"

	"github.com/teaguesterling/plinking-duck/errs"
)

// ParseRegion parses a "chrom:start-end" string (1-based, inclusive) and
// resolves it to a VariantRange. The sidecar is assumed sorted by
// (chrom, pos), so the chrom's contiguous block is located first and only
// that block is binary-searched by position. An empty region (no match)
// yields Start == End.
func (v *VariantIndex) ParseRegion(region string) (VariantRange, error) {
	colon := strings.IndexByte(region, ':')
	if colon < 0 {
		return VariantRange{}, errs.Errorf("region %q: missing ':'", region)
	}
	chrom := region[:colon]
	rest := region[colon+1:]
	dash := strings.IndexByte(rest, '-')
	if dash < 0 {
		return VariantRange{}, errs.Errorf("region %q: missing '-'", region)
	}
	startStr, endStr := rest[:dash], rest[dash+1:]
	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return VariantRange{}, errs.Errorf("region %q: invalid start %q", region, startStr)
	}
	end, err := strconv.ParseInt(endStr, 10, 64)
	if err != nil || end < 0 {
		return VariantRange{}, errs.Errorf("region %q: invalid end %q", region, endStr)
	}

	block, ok := v.chromBlock(chrom)
	if !ok {
		return VariantRange{}, nil
	}
	positions := v.cols.Positions[block.Start:block.End]
	lo := sort.Search(len(positions), func(i int) bool { return int64(positions[i]) >= start })
	hi := sort.Search(len(positions), func(i int) bool { return int64(positions[i]) > end })
	if lo >= hi {
		return VariantRange{}, nil
	}
	return VariantRange{Start: block.Start + uint32(lo), End: block.Start + uint32(hi)}, nil
}

// chromKey is an llrb.Comparable keying a per-chromosome contiguous block
// by chromosome name.
type chromKey struct {
	chrom string
	block VariantRange
}

func (k chromKey) Compare(c2 llrb.Comparable) int {
	return strings.Compare(k.chrom, c2.(chromKey).chrom)
}

// chromBlock returns the contiguous [Start,End) block of vidxs for chrom,
// building (and memoizing) the llrb index of chrom blocks on first use.
func (v *VariantIndex) chromBlock(chrom string) (VariantRange, bool) {
	v.treeOnce.Do(v.buildChromIndex)
	got := v.chromTree.Get(chromKey{chrom: chrom})
	if got == nil {
		return VariantRange{}, false
	}
	return got.(chromKey).block, true
}

func (v *VariantIndex) buildChromIndex() {
	tree := &llrb.Tree{}
	chroms := v.cols.Chroms
	i := 0
	for i < len(chroms) {
		j := i + 1
		for j < len(chroms) && chroms[j] == chroms[i] {
			j++
		}
		tree.Insert(chromKey{chrom: chroms[i], block: VariantRange{Start: uint32(i), End: uint32(j)}})
		i = j
	}
	v.chromTree = tree
}
