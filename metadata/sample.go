package metadata

import (
	"strconv"
	"strings"

	farm "github.com/dgryski/go-farm"

	"github.com/teaguesterling/plinking-duck/errs"
)

// SampleColumns is the eagerly-parsed sample sidecar; PSAM and FAM files
// are small enough to always load in full.
type SampleColumns struct {
	FIDs    []string
	FIDNull []bool
	IIDs    []string
	Sex     []int32
	SexNull []bool
	Pat     []string
	PatNull []bool
	Mat     []string
	MatNull []bool
	Pheno1  []string // FAM only; PSAM phenotype columns are exposed via Extra
	Extra   map[string][]string
}

// SampleTable is the parsed sample sidecar plus an iid lookup index,
// immutable after LoadSamples.
type SampleTable struct {
	cols    SampleColumns
	idToIdx map[uint64]uint32
	iidByID map[uint64]string
	SampleN uint32
}

// Columns returns the parsed sample columns.
func (s *SampleTable) Columns() *SampleColumns { return &s.cols }

// Len is the number of samples loaded.
func (s *SampleTable) Len() int { return int(s.SampleN) }

// IndexByIID looks up a sample by iid. The key space is hashed with
// go-farm (farm.Hash64) rather than keyed by the raw string, keeping the
// map compact when resolving large sample lists; collisions are resolved
// by the trailing string compare against iidByID.
func (s *SampleTable) IndexByIID(iid string) (uint32, bool) {
	h := farm.Hash64([]byte(iid))
	idx, ok := s.idToIdx[h]
	if ok && s.iidByID[h] != iid {
		// Extremely unlikely hash collision; fall back to a linear scan
		// rather than risk returning the wrong sample.
		for i, v := range s.cols.IIDs {
			if v == iid {
				return uint32(i), true
			}
		}
		return 0, false
	}
	return idx, ok
}

func isMissingGeneral(s string) bool {
	switch s {
	case "NA", ".", "":
		return true
	}
	return false
}

func isMissingParent(s string) bool {
	return s == "0" || isMissingGeneral(s)
}

func isMissingSex(s string) bool {
	return s == "0" || isMissingGeneral(s)
}

// LoadSamples reads a PSAM or FAM file and builds a SampleTable.
func LoadSamples(path string) (*SampleTable, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, errs.Errorf("%s: empty sample sidecar", path)
	}

	isPSAM := strings.HasPrefix(lines[0], "#FID") || strings.HasPrefix(lines[0], "#IID")
	var colIdx map[string]int
	hasFID := false
	dataStart := 0
	if isPSAM {
		header := splitTab(lines[0])
		colIdx = make(map[string]int, len(header))
		for j, name := range header {
			colIdx[strings.ToUpper(strings.TrimPrefix(name, "#"))] = j
		}
		_, hasFID = colIdx["FID"]
		if _, ok := colIdx["IID"]; !ok {
			return nil, errs.Errorf("%s: PSAM has no IID column", path)
		}
		dataStart = 1
	}
	if dataStart >= len(lines) {
		return nil, errs.Errorf("%s: no data lines", path)
	}

	n := len(lines) - dataStart
	cols := SampleColumns{
		FIDs: make([]string, n), FIDNull: make([]bool, n),
		IIDs: make([]string, n),
		Sex:  make([]int32, n), SexNull: make([]bool, n),
		Pat: make([]string, n), PatNull: make([]bool, n),
		Mat: make([]string, n), MatNull: make([]bool, n),
	}
	var extraNames []string
	if isPSAM {
		cols.Extra = make(map[string][]string)
		for name := range colIdx {
			switch name {
			case "FID", "IID", "SEX", "PAT", "MAT":
			default:
				extraNames = append(extraNames, name)
				cols.Extra[name] = make([]string, n)
			}
		}
	} else {
		cols.Pheno1 = make([]string, n)
	}

	idToIdx := make(map[uint64]uint32, n)
	iidByID := make(map[uint64]string, n)

	for i := 0; i < n; i++ {
		line := lines[dataStart+i]
		var fid, iid, pat, mat, sex string
		if isPSAM {
			fields := splitTab(line)
			get := func(name string) string {
				j, ok := colIdx[name]
				if !ok || j >= len(fields) {
					return ""
				}
				return fields[j]
			}
			if hasFID {
				fid = get("FID")
			}
			iid = get("IID")
			pat, mat, sex = get("PAT"), get("MAT"), get("SEX")
			for _, name := range extraNames {
				cols.Extra[name][i] = get(name)
			}
		} else {
			fields := splitWhitespace(line)
			if len(fields) < 6 {
				return nil, errs.Errorf("%s: line %d: FAM requires 6 columns, got %d", path, i+1, len(fields))
			}
			fid, iid, pat, mat, sex = fields[0], fields[1], fields[2], fields[3], fields[4]
			cols.Pheno1[i] = fields[5]
		}
		if iid == "" {
			return nil, errs.Errorf("%s: line %d: empty IID", path, i+1)
		}
		if isMissingGeneral(fid) {
			cols.FIDNull[i] = true
		} else {
			cols.FIDs[i] = fid
		}
		cols.IIDs[i] = iid
		if isMissingParent(pat) {
			cols.PatNull[i] = true
		} else {
			cols.Pat[i] = pat
		}
		if isMissingParent(mat) {
			cols.MatNull[i] = true
		} else {
			cols.Mat[i] = mat
		}
		if isMissingSex(sex) {
			cols.SexNull[i] = true
		} else if parsed, err := strconv.ParseInt(sex, 10, 32); err != nil {
			cols.SexNull[i] = true
		} else {
			cols.Sex[i] = int32(parsed)
		}

		h := farm.Hash64([]byte(iid))
		idToIdx[h] = uint32(i)
		iidByID[h] = iid
	}

	return &SampleTable{cols: cols, idToIdx: idToIdx, iidByID: iidByID, SampleN: uint32(n)}, nil
}
