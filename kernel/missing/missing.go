// Package missing implements the missingness aggregation kernel, in both
// its variant-mode (one row per variant, parallel fast-count scan) and
// sample-mode (one row per sample, a two-phase scan with a
// sync.Once-guarded accumulation phase followed by row emission) forms.
package missing

import (
	"context"
	"sync"

	"github.com/teaguesterling/plinking-duck/errs"
	"github.com/teaguesterling/plinking-duck/metadata"
	"github.com/teaguesterling/plinking-duck/pgen"
	"github.com/teaguesterling/plinking-duck/scan"
	"github.com/teaguesterling/plinking-duck/subset"
)

// Options configures a missingness run. Columns restricts variant-mode
// output to a caller-requested projection: an empty slice means every
// default column. "dosage" is rejected with a NotImplemented error, since
// missingness is derived from the decoder's missingness bitmask, never
// from a dosage value.
type Options struct {
	Workers   int
	BatchSize uint32
	Columns   []string
}

// VariantRow is one variant's missingness result.
type VariantRow struct {
	Vidx      uint32
	Chrom     string
	Pos       int32
	ID        string
	IDNull    bool
	Ref       string
	Alt       string
	AltNull   bool
	MissingCt int
	ObsCt     int
	FMiss     float64
}

// RunVariantMode computes one VariantRow per variant in rng, using the
// decoder's fast-count path (GetCounts) — no per-sample decode, just
// popcounts over the record's words, of which only the missing tally is
// used. Worker readers are opened against sess and swept by sess.Close.
func RunVariantMode(ctx context.Context, sess *pgen.DecoderSession, variants *metadata.VariantIndex,
	rng metadata.VariantRange, sub *subset.SampleSubset, opts Options) (*scan.RowBatch[VariantRow], error) {

	k := &variantKernel{sess: sess, variants: variants, sub: sub}
	batchSize := int(opts.BatchSize)
	if batchSize == 0 {
		batchSize = scan.KernelBatchSize
	}
	return scan.RunKernel[VariantRow](ctx, rng, opts.Workers, batchSize, opts.Columns, k)
}

// variantKernel is the scan.Kernel[VariantRow] implementation. needCounts
// is false only for an identity-only projection, skipping the worker
// Reader and the fast-count decode entirely.
type variantKernel struct {
	sess     *pgen.DecoderSession
	variants *metadata.VariantIndex
	sub      *subset.SampleSubset

	needCounts bool
}

func (k *variantKernel) InitGlobal(columns []string) error {
	if len(columns) == 0 {
		k.needCounts = true
		return nil
	}
	for _, c := range columns {
		switch c {
		case "dosage":
			return errs.NotImplementedf("missing: column %q: missingness is derived from the decoder's missingness bitmask, not dosages", c)
		case "missing_ct", "obs_ct", "f_miss":
			k.needCounts = true
		}
	}
	return nil
}

func (k *variantKernel) InitLocal(workerIdx int) (scan.KernelLocal[VariantRow], error) {
	if !k.needCounts {
		return &variantLocal{k: k}, nil
	}
	r, err := k.sess.NewReader()
	if err != nil {
		return nil, err
	}
	return &variantLocal{k: k, r: r}, nil
}

type variantLocal struct {
	k       *variantKernel
	r       *pgen.Reader
	pending metadata.VariantRange
}

func (l *variantLocal) Close() error {
	if l.r == nil {
		return nil
	}
	return l.r.Close()
}

func (l *variantLocal) Scan(ctx context.Context, cursor *scan.ClaimCursor, batch *scan.RowBatch[VariantRow]) (bool, error) {
	sampleCt := int(l.k.sub.SubsetSampleCt)
	for !batch.Full() {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		default:
		}
		if l.pending.Len() == 0 {
			claimed, ok := cursor.Claim(scan.DefaultBatchSize)
			if !ok {
				return true, nil
			}
			l.pending = claimed
		}
		vidx := l.pending.Start

		chrom, _ := l.k.variants.Get(vidx, "chrom")
		id, idOK := l.k.variants.Get(vidx, "id")
		ref, _ := l.k.variants.Get(vidx, "ref")
		alt, altOK := l.k.variants.Get(vidx, "alt")

		row := VariantRow{
			Vidx: vidx, Chrom: chrom, Pos: l.k.variants.Pos(vidx),
			ID: id, IDNull: !idOK, Ref: ref, Alt: alt, AltNull: !altOK,
		}
		if l.k.needCounts {
			counts, err := l.r.GetCounts(vidx, l.k.sub)
			if err != nil {
				return false, err
			}
			row.MissingCt = counts.Missing
			row.ObsCt = sampleCt - counts.Missing
			if sampleCt > 0 {
				row.FMiss = float64(counts.Missing) / float64(sampleCt)
			}
		}
		batch.Append(row)
		l.pending.Start++
	}
	return false, nil
}

// SampleRow is one sample's missingness result across the whole scanned
// variant range.
type SampleRow struct {
	RawIdx    uint32
	FID       string
	FIDNull   bool
	IID       string
	MissingCt int
	ObsCt     int
	FMiss     float64
}

// SampleScanner runs the sample-mode two-phase scan: a sync.Once-guarded
// accumulation phase scans every variant in rng exactly once regardless of
// how many times Rows is called, then each call serves rows from the
// accumulated per-sample counters.
type SampleScanner struct {
	sess    *pgen.DecoderSession
	samples *metadata.SampleTable
	rng     metadata.VariantRange
	sub     *subset.SampleSubset
	opts    Options

	once      sync.Once
	scanErr   error
	counts    []int32
	totalVars uint32
}

// NewSampleScanner builds a scanner; the variant scan does not run until
// the first call to Rows.
func NewSampleScanner(sess *pgen.DecoderSession, samples *metadata.SampleTable,
	rng metadata.VariantRange, sub *subset.SampleSubset, opts Options) *SampleScanner {
	return &SampleScanner{sess: sess, samples: samples, rng: rng, sub: sub, opts: opts}
}

func (s *SampleScanner) scanOnce(ctx context.Context) {
	counts := make([]int32, s.sub.SubsetSampleCt)

	// The accumulation phase runs on a single worker: every variant
	// touches the same per-sample counters, so parallelizing it would
	// trade sequential file reads for contention on the accumulator.
	o := scan.NewOrchestrator(s.rng)
	o.Workers = 1
	if s.opts.BatchSize > 0 {
		o.BatchSize = s.opts.BatchSize
	}

	err := o.Run(ctx, func(workerIdx int) (func(uint32) error, func() error) {
		r, openErr := s.sess.NewReader()
		if openErr != nil {
			return func(uint32) error { return openErr }, nil
		}
		return func(vidx uint32) error {
			miss, err := r.GetMissingness(vidx, s.sub)
			if err != nil {
				return err
			}
			for i, isMissing := range miss {
				if isMissing {
					counts[i]++
				}
			}
			return nil
		}, r.Close
	})

	s.counts = counts
	s.totalVars = uint32(s.rng.Len())
	s.scanErr = err
}

// Rows returns one SampleRow per selected sample, triggering the
// accumulation phase on first call.
func (s *SampleScanner) Rows(ctx context.Context) (*scan.RowBatch[SampleRow], error) {
	s.once.Do(func() { s.scanOnce(ctx) })
	if s.scanErr != nil {
		return nil, s.scanErr
	}

	batch := scan.NewRowBatch[SampleRow](len(s.counts))
	for subIdx, rawIdx := range s.sub.Indices() {
		missingCt := int(s.counts[subIdx])
		obsCt := int(s.totalVars) - missingCt
		var fMiss float64
		if s.totalVars > 0 {
			fMiss = float64(missingCt) / float64(s.totalVars)
		}

		row := SampleRow{RawIdx: rawIdx, MissingCt: missingCt, ObsCt: obsCt, FMiss: fMiss}
		if s.samples != nil {
			cols := s.samples.Columns()
			row.IID = cols.IIDs[rawIdx]
			row.FIDNull = cols.FIDNull[rawIdx]
			if !row.FIDNull {
				row.FID = cols.FIDs[rawIdx]
			}
		}
		batch.Append(row)
	}
	return batch, nil
}
