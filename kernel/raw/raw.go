// Package raw implements the raw sidecar/genotype readers. Unlike the
// aggregation kernels, these do no computation: they hand back typed,
// null-normalized rows exactly as the metadata/genotype layers parse
// them, for sidecar inspection and differential testing against the
// kernels' own columns.
package raw

import (
	"context"

	"github.com/teaguesterling/plinking-duck/metadata"
	"github.com/teaguesterling/plinking-duck/pgen"
	"github.com/teaguesterling/plinking-duck/scan"
	"github.com/teaguesterling/plinking-duck/subset"
)

// Options configures the concurrent readers (ReadPgen, ReadPfile).
type Options struct {
	Workers   int
	BatchSize uint32
}

// PgenRow is one variant's identity columns plus its full genotype list,
// one element per selected sample.
type PgenRow struct {
	Vidx      uint32
	Chrom     string
	Pos       int32
	ID        string
	IDNull    bool
	Ref       string
	Alt       string
	AltNull   bool
	Genotypes []scan.NullableInt8
}

// ReadPgen decodes every variant in rng into a genotype-list row, one
// element per selected sample in sub's order. Worker readers are opened
// against sess and swept by sess.Close.
func ReadPgen(ctx context.Context, sess *pgen.DecoderSession, variants *metadata.VariantIndex,
	rng metadata.VariantRange, sub *subset.SampleSubset, opts Options) (*scan.RowBatch[PgenRow], error) {

	o := scan.NewOrchestrator(rng)
	if opts.Workers > 0 {
		o.Workers = opts.Workers
	}
	if opts.BatchSize > 0 {
		o.BatchSize = opts.BatchSize
	}

	results := make([]PgenRow, rng.Len())
	err := o.Run(ctx, func(workerIdx int) (func(uint32) error, func() error) {
		r, openErr := sess.NewReader()
		if openErr != nil {
			return func(uint32) error { return openErr }, nil
		}
		return func(vidx uint32) error {
			calls, err := r.GetGenotypes(vidx, sub)
			if err != nil {
				return err
			}
			genotypes := make([]scan.NullableInt8, len(calls))
			for i, c := range calls {
				if c < 0 {
					genotypes[i] = scan.NullInt8()
				} else {
					genotypes[i] = scan.Int8(c)
				}
			}

			chrom, _ := variants.Get(vidx, "chrom")
			id, idOK := variants.Get(vidx, "id")
			ref, _ := variants.Get(vidx, "ref")
			alt, altOK := variants.Get(vidx, "alt")

			results[vidx-rng.Start] = PgenRow{
				Vidx: vidx, Chrom: chrom, Pos: variants.Pos(vidx),
				ID: id, IDNull: !idOK, Ref: ref, Alt: alt, AltNull: !altOK,
				Genotypes: genotypes,
			}
			return nil
		}, r.Close
	})
	if err != nil {
		return nil, err
	}
	batch := scan.NewRowBatch[PgenRow](len(results))
	for _, row := range results {
		batch.Append(row)
	}
	return batch, nil
}

// PvarRow is one variant from the verbatim PVAR/BIM passthrough.
type PvarRow struct {
	Vidx    uint32
	Chrom   string
	Pos     int32
	ID      string
	IDNull  bool
	Ref     string
	Alt     string
	AltNull bool
	CM      float64
	CMNull  bool
}

// ReadPvar returns every variant in rng verbatim, typed and
// null-normalized exactly as the variant index parses them. No
// concurrency is needed: the metadata index is already fully resident in
// memory.
func ReadPvar(variants *metadata.VariantIndex, rng metadata.VariantRange) []PvarRow {
	cols := variants.Columns()
	rows := make([]PvarRow, 0, rng.Len())
	for vidx := rng.Start; vidx < rng.End; vidx++ {
		rows = append(rows, PvarRow{
			Vidx:    vidx,
			Chrom:   cols.Chroms[vidx],
			Pos:     cols.Positions[vidx],
			ID:      cols.IDs[vidx],
			IDNull:  cols.IDNull[vidx],
			Ref:     cols.Refs[vidx],
			Alt:     cols.Alts[vidx],
			AltNull: cols.AltNull[vidx],
			CM:      cols.CMs[vidx],
			CMNull:  cols.CMNull[vidx],
		})
	}
	return rows
}

// PsamRow is one sample from the verbatim PSAM/FAM passthrough.
type PsamRow struct {
	RawIdx  uint32
	FID     string
	FIDNull bool
	IID     string
	Sex     int32
	SexNull bool
	Pat     string
	PatNull bool
	Mat     string
	MatNull bool
	Pheno1  string
	Extra   map[string]string
}

// ReadPsam returns every sample verbatim, typed and null-normalized
// exactly as the sample table parses them.
func ReadPsam(samples *metadata.SampleTable) []PsamRow {
	cols := samples.Columns()
	rows := make([]PsamRow, samples.SampleN)
	for i := range rows {
		row := PsamRow{
			RawIdx: uint32(i),
			FID:    cols.FIDs[i], FIDNull: cols.FIDNull[i],
			IID: cols.IIDs[i],
			Sex: cols.Sex[i], SexNull: cols.SexNull[i],
			Pat: cols.Pat[i], PatNull: cols.PatNull[i],
			Mat: cols.Mat[i], MatNull: cols.MatNull[i],
		}
		if cols.Pheno1 != nil {
			row.Pheno1 = cols.Pheno1[i]
		}
		if cols.Extra != nil {
			row.Extra = make(map[string]string, len(cols.Extra))
			for name, vals := range cols.Extra {
				row.Extra[name] = vals[i]
			}
		}
		rows[i] = row
	}
	return rows
}

// PfileRow is a one-row-per-sample join of PSAM columns with a genotype
// list spanning the bound variant range: the transposed counterpart of
// ReadPgen's per-variant orientation, so a caller gets one row per sample
// regardless of variant range size.
type PfileRow struct {
	RawIdx    uint32
	FID       string
	FIDNull   bool
	IID       string
	Genotypes []scan.NullableInt8
}

// ReadPfile decodes every variant in rng and transposes the result into
// one row per selected sample. The accumulation phase parallelizes over
// variants (each worker owns a disjoint slice of every sample's genotype
// column, so no locking is needed across workers); the transpose itself
// exercises the opposite access pattern from the kernels' per-variant row
// orientation.
func ReadPfile(ctx context.Context, sess *pgen.DecoderSession, samples *metadata.SampleTable,
	rng metadata.VariantRange, sub *subset.SampleSubset, opts Options) (*scan.RowBatch[PfileRow], error) {

	o := scan.NewOrchestrator(rng)
	if opts.Workers > 0 {
		o.Workers = opts.Workers
	}
	if opts.BatchSize > 0 {
		o.BatchSize = opts.BatchSize
	}

	sampleCt := len(sub.Indices())
	nVariants := rng.Len()
	columns := make([][]scan.NullableInt8, sampleCt)
	for i := range columns {
		columns[i] = make([]scan.NullableInt8, nVariants)
	}

	err := o.Run(ctx, func(workerIdx int) (func(uint32) error, func() error) {
		r, openErr := sess.NewReader()
		if openErr != nil {
			return func(uint32) error { return openErr }, nil
		}
		return func(vidx uint32) error {
			calls, err := r.GetGenotypes(vidx, sub)
			if err != nil {
				return err
			}
			col := int(vidx - rng.Start)
			for s, c := range calls {
				if c < 0 {
					columns[s][col] = scan.NullInt8()
				} else {
					columns[s][col] = scan.Int8(c)
				}
			}
			return nil
		}, r.Close
	})
	if err != nil {
		return nil, err
	}

	batch := scan.NewRowBatch[PfileRow](sampleCt)
	for subIdx, rawIdx := range sub.Indices() {
		row := PfileRow{RawIdx: rawIdx, Genotypes: columns[subIdx]}
		if samples != nil {
			cols := samples.Columns()
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
