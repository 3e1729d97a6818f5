// Package ld implements the linkage-disequilibrium kernel, in both its
// pairwise (one fixed pair) and windowed (resumable sliding scan over
// every anchor/partner pair within a base-pair window) forms. r2 and D'
// use the composite genotype-level estimator, which does not assume HWE;
// D' can exceed 1 under strong HWE violation.
package ld

import (
	"context"
	"math"

	"github.com/teaguesterling/plinking-duck/errs"
	"github.com/teaguesterling/plinking-duck/metadata"
	"github.com/teaguesterling/plinking-duck/pgen"
	"github.com/teaguesterling/plinking-duck/scan"
	"github.com/teaguesterling/plinking-duck/subset"
)

// Row is one LD pair's result.
type Row struct {
	VidxA, VidxB uint32
	ObsCt        int
	R2           scan.NullableFloat64
	DPrime       scan.NullableFloat64
}

// computeLdStats computes the composite-estimator r²/D' between two
// decoded genotype columns (allele counts with missingInt8 for missing),
// using only samples where both calls are present.
func computeLdStats(a, b []int8) Row {
	var sumA, sumB, sumAB, sumA2, sumB2 float64
	n := 0
	for i := range a {
		if a[i] < 0 || b[i] < 0 {
			continue
		}
		ga, gb := float64(a[i]), float64(b[i])
		sumA += ga
		sumB += gb
		sumAB += ga * gb
		sumA2 += ga * ga
		sumB2 += gb * gb
		n++
	}

	row := Row{ObsCt: n, R2: scan.NullFloat64(), DPrime: scan.NullFloat64()}
	if n < 2 {
		return row
	}

	dn := float64(n)
	meanA, meanB := sumA/dn, sumB/dn
	covAB := sumAB/dn - meanA*meanB
	varA := sumA2/dn - meanA*meanA
	varB := sumB2/dn - meanB*meanB

	if varA < 1e-15 || varB < 1e-15 {
		return row
	}

	r2 := (covAB * covAB) / (varA * varB)
	row.R2 = scan.Float64(r2)

	D := covAB / 4.0
	pA := sumA / (2.0 * dn)
	pB := sumB / (2.0 * dn)

	var dMax float64
	if D >= 0 {
		dMax = math.Min(pA*(1.0-pB), (1.0-pA)*pB)
	} else {
		dMax = math.Max(-pA*pB, -(1.0-pA)*(1.0-pB))
	}

	var dPrime float64
	if math.Abs(dMax) < 1e-15 {
		dPrime = 0.0
	} else {
		dPrime = D / dMax
	}
	row.DPrime = scan.Float64(dPrime)
	return row
}

// Pairwise computes LD between exactly two variants.
func Pairwise(r *pgen.Reader, sub *subset.SampleSubset, vidxA, vidxB uint32) (Row, error) {
	a, err := r.GetGenotypes(vidxA, sub)
	if err != nil {
		return Row{}, err
	}
	var b []int8
	if vidxA == vidxB {
		b = a
	} else {
		b, err = r.GetGenotypes(vidxB, sub)
		if err != nil {
			return Row{}, err
		}
	}
	row := computeLdStats(a, b)
	row.VidxA, row.VidxB = vidxA, vidxB
	return row, nil
}

// WindowedOptions configures a windowed LD scan. Columns is accepted for
// consistency with the other kernels' projection pushdown; windowed LD
// always emits its full fixed row shape (vidxA, vidxB, obs_ct, r2,
// d_prime), so a nonempty Columns only serves to reject "dosage" (LD is
// computed on hard-call genovecs, never dosages).
type WindowedOptions struct {
	Workers     int
	BatchSize   int
	WindowBp    int64
	R2Threshold float64
	InterChr    bool
	Columns     []string
}

// WindowedBatchSize is windowed LD's default per-Scan output batch size:
// smaller than KernelBatchSize because a single anchor can match many
// partners, so a small batch keeps Scan returning promptly instead of
// building up one anchor's entire hit list before yielding.
const WindowedBatchSize = 32

// Windowed runs the windowed sliding scan over rng: every variant in rng
// is an anchor (claimed one at a time across workers), scanned against
// every later variant within WindowBp base pairs on the same chromosome
// (plus, if InterChr is set, every later variant on a different
// chromosome with no distance filter). Only pairs with r² >= R2Threshold
// are emitted. Worker readers are opened against sess and swept by
// sess.Close.
func Windowed(ctx context.Context, sess *pgen.DecoderSession, variants *metadata.VariantIndex,
	rng metadata.VariantRange, sub *subset.SampleSubset, opts WindowedOptions) (*scan.RowBatch[Row], error) {

	k := &windowedKernel{sess: sess, variants: variants, sub: sub, rng: rng, opts: opts}
	batchSize := opts.BatchSize
	if batchSize == 0 {
		batchSize = WindowedBatchSize
	}
	return scan.RunKernel[Row](ctx, rng, opts.Workers, batchSize, opts.Columns, k)
}

// windowedKernel is the scan.Kernel[Row] implementation for the windowed
// sliding scan.
type windowedKernel struct {
	sess     *pgen.DecoderSession
	variants *metadata.VariantIndex
	sub      *subset.SampleSubset
	rng      metadata.VariantRange
	opts     WindowedOptions
}

func (k *windowedKernel) InitGlobal(columns []string) error {
	for _, c := range columns {
		if c == "dosage" {
			return errs.NotImplementedf("ld: column %q: windowed LD is computed from hard-call genovecs, not dosages", c)
		}
	}
	return nil
}

func (k *windowedKernel) InitLocal(workerIdx int) (scan.KernelLocal[Row], error) {
	r, err := k.sess.NewReader()
	if err != nil {
		return nil, err
	}
	return &windowedLocal{k: k, r: r}, nil
}

// ldWindowedState is the per-worker resumable cursor: the only state a
// Scan call needs to pick up exactly where the previous call left off
// without re-reading or re-decoding the anchor. cachedAnchorGenovec holds
// the anchor's decoded genotype column (not the packed 2-bit words) so
// each partner comparison in the inner loop is a plain computeLdStats
// call with no repeated decode.
type ldWindowedState struct {
	anchorVidx          uint32
	nextPartnerVidx     uint32
	inWindow            bool
	cachedAnchorGenovec []int8
	anchorChrom         string
	anchorPos           int32
}

type windowedLocal struct {
	k     *windowedKernel
	r     *pgen.Reader
	state ldWindowedState
}

func (l *windowedLocal) Close() error { return l.r.Close() }

// Scan implements the anchor-claim algorithm: claim the next anchor
// off cursor when not already mid-window, then walk partners forward
// from nextPartnerVidx, emitting qualifying pairs into batch until either
// the anchor's window is exhausted (clear state, claim the next anchor)
// or batch fills (return with state untouched so the next call resumes
// this exact anchor/partner position).
func (l *windowedLocal) Scan(ctx context.Context, cursor *scan.ClaimCursor, batch *scan.RowBatch[Row]) (bool, error) {
	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		default:
		}

		if !l.state.inWindow {
			claimed, ok := cursor.Claim(1)
			if !ok {
				return true, nil
			}
			geno, err := l.r.GetGenotypes(claimed.Start, l.k.sub)
			if err != nil {
				return false, err
			}
			l.state.anchorVidx = claimed.Start
			l.state.cachedAnchorGenovec = geno
			l.state.anchorChrom, _ = l.k.variants.Get(claimed.Start, "chrom")
			l.state.anchorPos = l.k.variants.Pos(claimed.Start)
			l.state.nextPartnerVidx = claimed.Start + 1
			l.state.inWindow = true
		}

		for l.state.nextPartnerVidx < l.k.rng.End && !batch.Full() {
			j := l.state.nextPartnerVidx
			jChrom, _ := l.k.variants.Get(j, "chrom")
			sameChrom := jChrom == l.state.anchorChrom

			if sameChrom {
				dist := int64(l.k.variants.Pos(j)) - int64(l.state.anchorPos)
				if dist > l.k.opts.WindowBp {
					if !l.k.opts.InterChr {
						l.state.nextPartnerVidx = l.k.rng.End
						break
					}
					for j < l.k.rng.End {
						c, _ := l.k.variants.Get(j, "chrom")
						if c != l.state.anchorChrom {
							break
						}
						j++
					}
					if j >= l.k.rng.End {
						l.state.nextPartnerVidx = l.k.rng.End
						break
					}
				}
			} else if !l.k.opts.InterChr {
				l.state.nextPartnerVidx = l.k.rng.End
				break
			}

			partnerGeno, err := l.r.GetGenotypes(j, l.k.sub)
			if err != nil {
				return false, err
			}
			row := computeLdStats(l.state.cachedAnchorGenovec, partnerGeno)
			l.state.nextPartnerVidx = j + 1
			if !row.R2.Null && row.R2.Value >= l.k.opts.R2Threshold {
				row.VidxA, row.VidxB = l.state.anchorVidx, j
				batch.Append(row)
			}
		}

		if batch.Full() && l.state.nextPartnerVidx < l.k.rng.End {
			return false, nil
		}
		l.state.inWindow = false
	}
}
