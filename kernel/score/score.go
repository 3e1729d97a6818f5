// Package score implements the polygenic score kernel: a single-pass
// weighted accumulation over a caller-supplied variant/weight list
// followed by one row of output per sample.
//
// ID-keyed weights compare their allele against the raw REF and ALT
// strings with no comma splitting, so a multi-allelic ALT such as "A,C"
// matches only an allele given in that same comma-joined form; any other
// allele for such a variant is dropped as a mismatch.
package score

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/teaguesterling/plinking-duck/errs"
	"github.com/teaguesterling/plinking-duck/metadata"
	"github.com/teaguesterling/plinking-duck/pgen"
	"github.com/teaguesterling/plinking-duck/subset"
)

// ScoredVariant is one resolved (variant, weight, orientation) entry ready
// for accumulation.
type ScoredVariant struct {
	VariantIdx uint32
	Weight     float64
	// Flip is true when the scored allele is REF, so the accumulated
	// dosage is (2 - alt_dosage) instead of alt_dosage.
	Flip bool
}

// IDWeight is one row of ID-keyed weight input: score the named allele of
// the variant with this ID by this weight.
type IDWeight struct {
	ID     string
	Allele string
	Weight float64
}

// ResolveIDKeyed builds the scored-variant list from ID-keyed weights,
// matching each entry's id against variants restricted to rng and its
// allele against that variant's REF/ALT to determine orientation. Entries
// whose id or allele doesn't resolve are silently dropped, as is any
// entry with a zero weight. The result is sorted ascending by variant
// index so accumulation reads the genotype file sequentially; sample
// output order is unaffected by the input weight order.
func ResolveIDKeyed(variants *metadata.VariantIndex, rng metadata.VariantRange, weights []IDWeight) []ScoredVariant {
	idMap := make(map[string]uint32, rng.Len())
	cols := variants.Columns()
	for vidx := rng.Start; vidx < rng.End; vidx++ {
		if !cols.IDNull[vidx] {
			idMap[cols.IDs[vidx]] = vidx
		}
	}

	out := make([]ScoredVariant, 0, len(weights))
	for _, w := range weights {
		vidx, ok := idMap[w.ID]
		if !ok {
			continue
		}
		var flip bool
		switch w.Allele {
		case cols.Alts[vidx]:
			flip = false
		case cols.Refs[vidx]:
			flip = true
		default:
			continue
		}
		if w.Weight != 0.0 {
			out = append(out, ScoredVariant{VariantIdx: vidx, Weight: w.Weight, Flip: flip})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VariantIdx < out[j].VariantIdx })
	return out
}

// ResolvePositional builds the scored-variant list from a plain weight
// slice, one entry per variant in rng in order. weights must have exactly
// rng.Len() entries.
func ResolvePositional(rng metadata.VariantRange, weights []float64) ([]ScoredVariant, error) {
	if len(weights) != rng.Len() {
		return nil, errs.Errorf("plink_score: weights list length (%d) must match variant count (%d)", len(weights), rng.Len())
	}
	out := make([]ScoredVariant, 0, len(weights))
	for i, w := range weights {
		if w != 0.0 {
			out = append(out, ScoredVariant{VariantIdx: rng.Start + uint32(i), Weight: w})
		}
	}
	return out, nil
}

// Options configures a scoring run. Center and NoMeanImputation are
// mutually exclusive.
type Options struct {
	Center           bool
	NoMeanImputation bool
}

func (o Options) validate() error {
	if o.Center && o.NoMeanImputation {
		return errs.Errorf("plink_score: center and no_mean_imputation cannot both be true")
	}
	return nil
}

// Row is one sample's scoring result.
type Row struct {
	FID                  string
	FIDNull              bool
	IID                  string
	AlleleCt             int
	Denom                int
	NamedAlleleDosageSum float64
	ScoreSum             float64
	ScoreAvg             float64
}

// Session runs two-phase scoring: a single-threaded accumulation pass
// over every scored variant, guarded by sync.Once so it runs exactly once
// regardless of how many times Rows is called, followed by per-sample row
// emission from the accumulated totals. Accumulation is deliberately not
// parallel: each variant touches every sample's accumulator, so a
// parallel split would need per-sample locking for no real benefit.
type Session struct {
	sess           *pgen.DecoderSession
	samples        *metadata.SampleTable
	sub            *subset.SampleSubset
	scoredVariants []ScoredVariant
	opts           Options

	once     sync.Once
	scoreErr error

	scoreSums            []float64
	namedAlleleDosageSum []float64
	alleleCts            []int
}

// NewSession builds a scoring session over an open decoder session;
// accumulation does not run until the first call to Rows.
func NewSession(sess *pgen.DecoderSession, samples *metadata.SampleTable, sub *subset.SampleSubset,
	scoredVariants []ScoredVariant, opts Options) *Session {
	return &Session{sess: sess, samples: samples, sub: sub, scoredVariants: scoredVariants, opts: opts}
}

func (s *Session) scoreOnce() {
	if err := s.opts.validate(); err != nil {
		s.scoreErr = err
		return
	}

	n := int(s.sub.SubsetSampleCt)
	scoreSums := make([]float64, n)
	namedSums := make([]float64, n)
	alleleCts := make([]int, n)

	r, err := s.sess.NewReader()
	if err != nil {
		s.scoreErr = err
		return
	}
	defer r.Close() // nolint: errcheck

	for _, sv := range s.scoredVariants {
		dosages, err := r.GetDosages(sv.VariantIdx, s.sub)
		if err != nil {
			s.scoreErr = err
			return
		}

		var sumAlt float64
		nonMissingCt := 0
		for _, d := range dosages {
			if !math.IsNaN(d) {
				sumAlt += d
				nonMissingCt++
			}
		}
		if nonMissingCt == 0 {
			continue
		}
		meanAlt := sumAlt / float64(nonMissingCt)

		switch {
		case s.opts.Center:
			freq := meanAlt / 2.0
			sd := math.Sqrt(2.0 * freq * (1.0 - freq))
			if sd == 0.0 {
				continue
			}
			meanScored := meanAlt
			if sv.Flip {
				meanScored = 2.0 - meanAlt
			}
			for i, d := range dosages {
				if math.IsNaN(d) {
					continue
				}
				scored := d
				if sv.Flip {
					scored = 2.0 - d
				}
				standardized := (scored - meanScored) / sd
				scoreSums[i] += sv.Weight * standardized
				alleleCts[i] += 2
			}

		case s.opts.NoMeanImputation:
			for i, d := range dosages {
				if math.IsNaN(d) {
					continue
				}
				scored := d
				if sv.Flip {
					scored = 2.0 - d
				}
				scoreSums[i] += sv.Weight * scored
				namedSums[i] += scored
				alleleCts[i] += 2
			}

		default:
			for i, d := range dosages {
				alt := d
				if math.IsNaN(alt) {
					alt = meanAlt
				}
				scored := alt
				if sv.Flip {
					scored = 2.0 - alt
				}
				scoreSums[i] += sv.Weight * scored
				namedSums[i] += scored
				alleleCts[i] += 2
			}
		}
	}

	s.scoreSums = scoreSums
	s.namedAlleleDosageSum = namedSums
	s.alleleCts = alleleCts
}

// Rows returns one Row per selected sample, triggering the accumulation
// pass on first call.
func (s *Session) Rows(ctx context.Context) ([]Row, error) {
	s.once.Do(s.scoreOnce)
	if s.scoreErr != nil {
		return nil, s.scoreErr
	}

	rows := make([]Row, len(s.sub.Indices()))
	for subIdx, rawIdx := range s.sub.Indices() {
		alleleCt := s.alleleCts[subIdx]
		scoreSum := s.scoreSums[subIdx]
		var scoreAvg float64
		if alleleCt > 0 {
			scoreAvg = scoreSum / float64(alleleCt)
		}
		row := Row{
			AlleleCt:             alleleCt,
			Denom:                alleleCt,
			NamedAlleleDosageSum: s.namedAlleleDosageSum[subIdx],
			ScoreSum:             scoreSum,
			ScoreAvg:             scoreAvg,
		}
		if s.samples != nil {
			cols := s.samples.Columns()
			row.IID = cols.IIDs[rawIdx]
			row.FIDNull = cols.FIDNull[rawIdx]
			if !row.FIDNull {
				row.FID = cols.FIDs[rawIdx]
			}
		}
		rows[subIdx] = row
	}
	return rows, nil
}
