// Package freq implements the allele-frequency aggregation kernel. It
// never materializes a decoded genovec: every statistic derives from the
// decoder's fast-count path.
package freq

import (
	"context"

	"github.com/teaguesterling/plinking-duck/errs"
	"github.com/teaguesterling/plinking-duck/metadata"
	"github.com/teaguesterling/plinking-duck/pgen"
	"github.com/teaguesterling/plinking-duck/scan"
	"github.com/teaguesterling/plinking-duck/subset"
)

// Row is one variant's frequency result.
type Row struct {
	Vidx      uint32
	Chrom     string
	Pos       int32
	ID        string
	IDNull    bool
	Ref       string
	Alt       string
	AltNull   bool
	AltFreq   scan.NullableFloat64
	ObsCt     int
	HomRefCt  int
	HetCt     int
	HomAltCt  int
	MissingCt int
}

// Options configures a frequency run. Columns restricts the output to a
// caller-requested projection: an empty slice means every default
// column. "dosage" is a recognized but unsupported column name for this
// kernel — frequency is always computed from hard-call counts, never
// imputed dosages — and requesting it fails bind-time with a
// NotImplemented error rather than silently ignoring it.
type Options struct {
	Workers   int
	BatchSize uint32
	Columns   []string
}

// Run computes allele frequencies over rng, one Row per variant. Worker
// readers are opened against sess and swept by sess.Close.
func Run(ctx context.Context, sess *pgen.DecoderSession, variants *metadata.VariantIndex,
	rng metadata.VariantRange, sub *subset.SampleSubset, opts Options) (*scan.RowBatch[Row], error) {

	k := &kernel{sess: sess, variants: variants, sub: sub}
	batchSize := int(opts.BatchSize)
	if batchSize == 0 {
		batchSize = scan.KernelBatchSize
	}
	return scan.RunKernel[Row](ctx, rng, opts.Workers, batchSize, opts.Columns, k)
}

// kernel is the scan.Kernel[Row] implementation. needCounts is false only
// when the requested columns are limited to the pvar-derived identity
// fields (chrom/pos/id/ref/alt), letting InitLocal's workers skip opening
// a Reader and the GetCounts decode entirely for an identity-only
// projection.
type kernel struct {
	sess     *pgen.DecoderSession
	variants *metadata.VariantIndex
	sub      *subset.SampleSubset

	needCounts bool
}

func (k *kernel) InitGlobal(columns []string) error {
	if len(columns) == 0 {
		k.needCounts = true
		return nil
	}
	for _, c := range columns {
		switch c {
		case "dosage":
			return errs.NotImplementedf("freq: column %q: frequency is computed from hard-call counts, not dosages", c)
		case "alt_freq", "obs_ct", "hom_ref_ct", "het_ct", "hom_alt_ct", "missing_ct":
			k.needCounts = true
		}
	}
	return nil
}

func (k *kernel) InitLocal(workerIdx int) (scan.KernelLocal[Row], error) {
	if !k.needCounts {
		return &local{k: k}, nil
	}
	r, err := k.sess.NewReader()
	if err != nil {
		return nil, err
	}
	return &local{k: k, r: r}, nil
}

// local is one worker's scratch state. pending holds a vidx range already
// claimed off the shared cursor but not yet fully drained into a batch:
// claiming scan.DefaultBatchSize vidxs at a time (rather than one per
// Scan iteration) keeps the atomic cursor's contention in line with the
// pre-Kernel orchestrator, while pending lets a Scan call stop mid-chunk
// when the caller's batch fills and resume the same chunk on the next
// call instead of re-claiming.
type local struct {
	k       *kernel
	r       *pgen.Reader
	pending metadata.VariantRange
}

func (l *local) Close() error {
	if l.r == nil {
		return nil
	}
	return l.r.Close()
}

func (l *local) Scan(ctx context.Context, cursor *scan.ClaimCursor, batch *scan.RowBatch[Row]) (bool, error) {
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
		row, err := computeRow(l.r, l.k.variants, vidx, l.k.sub, l.k.needCounts)
		if err != nil {
			return false, err
		}
		batch.Append(row)
		l.pending.Start++
	}
	return false, nil
}

func computeRow(r *pgen.Reader, variants *metadata.VariantIndex, vidx uint32, sub *subset.SampleSubset, needCounts bool) (Row, error) {
	chrom, _ := variants.Get(vidx, "chrom")
	id, idOK := variants.Get(vidx, "id")
	ref, _ := variants.Get(vidx, "ref")
	alt, altOK := variants.Get(vidx, "alt")
	pos := variants.Pos(vidx)

	row := Row{
		Vidx:    vidx,
		Chrom:   chrom,
		Pos:     pos,
		ID:      id,
		IDNull:  !idOK,
		Ref:     ref,
		Alt:     alt,
		AltNull: !altOK,
	}
	if !needCounts {
		row.AltFreq = scan.NullFloat64()
		return row, nil
	}

	counts, err := r.GetCounts(vidx, sub)
	if err != nil {
		return Row{}, err
	}

	obsSampleCt := counts.HomRef + counts.Het + counts.HomAlt
	row.ObsCt = 2 * obsSampleCt
	row.HomRefCt = counts.HomRef
	row.HetCt = counts.Het
	row.HomAltCt = counts.HomAlt
	row.MissingCt = counts.Missing

	if obsSampleCt == 0 {
		row.AltFreq = scan.NullFloat64()
	} else {
		freq := (float64(counts.Het) + 2.0*float64(counts.HomAlt)) / (2.0 * float64(obsSampleCt))
		row.AltFreq = scan.Float64(freq)
	}
	return row, nil
}
