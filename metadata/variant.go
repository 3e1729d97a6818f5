// Package metadata loads the PVAR/BIM variant sidecar and the PSAM/FAM
// sample sidecar into queryable in-memory forms.
package metadata

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/biogo/store/llrb"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"

	"github.com/teaguesterling/plinking-duck/errs"
)

// VariantRange is a half-open interval [Start, End) over variant indices.
type VariantRange struct {
	Start, End uint32
}

// Len returns the number of variants covered.
func (r VariantRange) Len() int {
	if r.End <= r.Start {
		return 0
	}
	return int(r.End - r.Start)
}

// VariantColumns is the eager parallel-column form of a variant sidecar.
// VariantIndex always populates this at Load time: kernels touch these
// fields on every output row across many workers, and the parse cost is
// paid once up front instead of per access.
type VariantColumns struct {
	Chroms    []string
	Positions []int32
	IDs       []string // "" means null (source was ".")
	IDNull    []bool
	Refs      []string
	Alts      []string // "" means null
	AltNull   []bool
	CMs       []float64
	CMNull    []bool
}

// VariantIndex is a queryable, indexable view of a variant sidecar
// (PVAR or BIM), immutable after Load.
type VariantIndex struct {
	cols     VariantColumns
	idToIdx  map[string]uint32
	isBIM    bool
	VariantN uint32

	treeOnce  sync.Once
	chromTree *llrb.Tree
}

// Columns returns the eager columnar form.
func (v *VariantIndex) Columns() *VariantColumns { return &v.cols }

// Len is the number of variants loaded.
func (v *VariantIndex) Len() int { return int(v.VariantN) }

// Get returns field values by logical name at a variant index: one of
// "chrom", "pos", "id", "ref", "alt", "cm". ok is false for a null id/alt.
func (v *VariantIndex) Get(vidx uint32, field string) (string, bool) {
	switch field {
	case "chrom":
		return v.cols.Chroms[vidx], true
	case "pos":
		return strconv.Itoa(int(v.cols.Positions[vidx])), true
	case "id":
		return v.cols.IDs[vidx], !v.cols.IDNull[vidx]
	case "ref":
		return v.cols.Refs[vidx], true
	case "alt":
		return v.cols.Alts[vidx], !v.cols.AltNull[vidx]
	case "cm":
		if v.cols.CMNull[vidx] {
			return "", false
		}
		return strconv.FormatFloat(v.cols.CMs[vidx], 'g', -1, 64), true
	default:
		return "", false
	}
}

// Pos returns the raw integer position of a variant, avoiding the
// string round-trip Get("pos") does for callers that already know they
// want a number.
func (v *VariantIndex) Pos(vidx uint32) int32 { return v.cols.Positions[vidx] }

// IndexByID returns the variant index for id, if present.
func (v *VariantIndex) IndexByID(id string) (uint32, bool) {
	idx, ok := v.idToIdx[id]
	return idx, ok
}

// pvarRequiredCols are the logical columns every PVAR/BIM must resolve.
var pvarRequiredCols = []string{"chrom", "pos", "id", "ref", "alt"}

// bimPhysicalOrder is BIM's fixed six-column layout: {chrom, id, cm, pos, alt, ref}.
const (
	bimChrom = 0
	bimID    = 1
	bimCM    = 2
	bimPos   = 3
	bimAlt   = 4
	bimRef   = 5
)

// Load reads a PVAR or BIM file and builds a VariantIndex.
func Load(path string) (*VariantIndex, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, errs.Errorf("%s: empty variant sidecar", path)
	}
	// Skip ## comment lines (PVAR only).
	i := 0
	for i < len(lines) && strings.HasPrefix(lines[i], "##") {
		i++
	}
	if i >= len(lines) {
		return nil, errs.Errorf("%s: no header or data lines", path)
	}

	isBIM := !strings.HasPrefix(lines[i], "#CHROM")
	var colIdx map[string]int
	dataStart := i
	if !isBIM {
		header := splitTab(lines[i])
		colIdx = make(map[string]int, len(header))
		for j, name := range header {
			colIdx[strings.ToUpper(strings.TrimPrefix(name, "#"))] = j
		}
		dataStart = i + 1
		for _, req := range []string{"CHROM", "POS", "ID", "REF", "ALT"} {
			if _, ok := colIdx[req]; !ok {
				return nil, errs.Errorf("%s: missing required PVAR column %s", path, req)
			}
		}
	}
	if dataStart >= len(lines) {
		return nil, errs.Errorf("%s: no data lines", path)
	}

	n := len(lines) - dataStart
	cols := VariantColumns{
		Chroms:    make([]string, n),
		Positions: make([]int32, n),
		IDs:       make([]string, n),
		IDNull:    make([]bool, n),
		Refs:      make([]string, n),
		Alts:      make([]string, n),
		AltNull:   make([]bool, n),
		CMs:       make([]float64, n),
		CMNull:    make([]bool, n),
	}
	idToIdx := make(map[string]uint32, n)

	for vidx := 0; vidx < n; vidx++ {
		line := lines[dataStart+vidx]
		var fields []string
		var chrom, posStr, id, ref, alt, cm string
		var hasCM bool
		if isBIM {
			fields = splitWhitespace(line)
			if len(fields) < 6 {
				return nil, errs.Errorf("%s: line %d: BIM requires 6 columns, got %d", path, vidx+1, len(fields))
			}
			chrom, id, cm, posStr, alt, ref = fields[bimChrom], fields[bimID], fields[bimCM], fields[bimPos], fields[bimAlt], fields[bimRef]
			hasCM = true
		} else {
			fields = splitTab(line)
			get := func(name string) string {
				j, ok := colIdx[name]
				if !ok || j >= len(fields) {
					return "."
				}
				return fields[j]
			}
			chrom, posStr, id, ref, alt = get("CHROM"), get("POS"), get("ID"), get("REF"), get("ALT")
			if j, ok := colIdx["CM"]; ok && j < len(fields) {
				cm, hasCM = fields[j], true
			}
		}
		pos, err := strconv.ParseInt(posStr, 10, 32)
		if err != nil {
			return nil, errs.Errorf("%s: line %d: invalid POS %q", path, vidx+1, posStr)
		}
		cols.Chroms[vidx] = chrom
		cols.Positions[vidx] = int32(pos)
		cols.Refs[vidx] = ref
		if id == "." || id == "" {
			cols.IDNull[vidx] = true
		} else {
			cols.IDs[vidx] = id
			idToIdx[id] = uint32(vidx)
		}
		if alt == "." || alt == "" {
			cols.AltNull[vidx] = true
		} else {
			cols.Alts[vidx] = alt
		}
		if hasCM && cm != "." && cm != "" {
			f, err := strconv.ParseFloat(cm, 64)
			if err == nil {
				cols.CMs[vidx] = f
			} else {
				cols.CMNull[vidx] = true
			}
		} else {
			cols.CMNull[vidx] = true
		}
	}

	return &VariantIndex{cols: cols, idToIdx: idToIdx, isBIM: isBIM, VariantN: uint32(n)}, nil
}

// readLines reads a sidecar file line by line, transparently decompressing
// a .zst or .sz (snappy) suffixed path.
func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.E(errs.IO, "open "+path, err)
	}
	defer f.Close() // nolint: errcheck

	r, closer, err := decompressingReader(path, f)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		defer closer()
	}

	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		lines = append(lines, strings.TrimRight(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, errs.E(errs.IO, "read "+path, err)
	}
	return lines, nil
}

// decompressingReader wraps f according to path's compression suffix. The
// returned closer, if non-nil, releases codec-internal resources (the
// zstd.Decoder's goroutines) and must be deferred by the caller alongside
// f's own Close.
func decompressingReader(path string, f *os.File) (io.Reader, func(), error) {
	switch {
	case strings.HasSuffix(path, ".zst"):
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, nil, errs.E(errs.IO, "zstd decode "+path, err)
		}
		return dec, dec.Close, nil
	case strings.HasSuffix(path, ".sz"):
		return snappy.NewReader(f), nil, nil
	default:
		return f, nil, nil
	}
}

func splitTab(line string) []string { return strings.Split(line, "\t") }

func splitWhitespace(line string) []string {
	return strings.FieldsFunc(line, func(r rune) bool {
		return r == ' ' || r == '\t'
	})
}
