// Package hardy implements the Hardy-Weinberg equilibrium exact test
// kernel (Wigginton et al. 2005).
package hardy

import (
	"context"

	"github.com/teaguesterling/plinking-duck/errs"
	"github.com/teaguesterling/plinking-duck/metadata"
	"github.com/teaguesterling/plinking-duck/pgen"
	"github.com/teaguesterling/plinking-duck/scan"
	"github.com/teaguesterling/plinking-duck/subset"
)

// Row is one variant's HWE result.
type Row struct {
	Vidx     uint32
	Chrom    string
	Pos      int32
	ID       string
	IDNull   bool
	Ref      string
	Alt      string
	AltNull  bool
	HomRefCt int
	HetCt    int
	HomAltCt int
	OHet     float64
	EHet     float64
	PHwe     float64
}

// Options configures a Hardy-Weinberg run. Columns restricts the output
// to a caller-requested projection: an empty slice means every default
// column. "dosage" is rejected with a NotImplemented error, since the
// exact test only ever operates on hard-call counts.
type Options struct {
	Workers   int
	BatchSize uint32
	Columns   []string
	// MidP applies the mid-p correction (subtracting half the observed
	// configuration's probability from the two-sided p-value).
	MidP bool
}

// Run computes the exact test over rng, one Row per variant. Worker
// readers are opened against sess and swept by sess.Close.
func Run(ctx context.Context, sess *pgen.DecoderSession, variants *metadata.VariantIndex,
	rng metadata.VariantRange, sub *subset.SampleSubset, opts Options) (*scan.RowBatch[Row], error) {

	k := &kernel{sess: sess, variants: variants, sub: sub, midP: opts.MidP}
	batchSize := int(opts.BatchSize)
	if batchSize == 0 {
		batchSize = scan.KernelBatchSize
	}
	return scan.RunKernel[Row](ctx, rng, opts.Workers, batchSize, opts.Columns, k)
}

// kernel is the scan.Kernel[Row] implementation. needCounts is false only
// for an identity-only projection (chrom/pos/id/ref/alt), skipping the
// worker Reader, the GetCounts decode and the exact test itself.
type kernel struct {
	sess     *pgen.DecoderSession
	variants *metadata.VariantIndex
	sub      *subset.SampleSubset
	midP     bool

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
			return errs.NotImplementedf("hardy: column %q: the exact test operates on hard-call counts, not dosages", c)
		case "hom_ref_ct", "het_ct", "hom_alt_ct", "o_het", "e_het", "p_hwe":
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
		row, err := computeRow(l.r, l.k.variants, vidx, l.k.sub, l.k.midP, l.k.needCounts)
		if err != nil {
			return false, err
		}
		batch.Append(row)
		l.pending.Start++
	}
	return false, nil
}

func computeRow(r *pgen.Reader, variants *metadata.VariantIndex, vidx uint32, sub *subset.SampleSubset, midP bool, needCounts bool) (Row, error) {
	chrom, _ := variants.Get(vidx, "chrom")
	id, idOK := variants.Get(vidx, "id")
	ref, _ := variants.Get(vidx, "ref")
	alt, altOK := variants.Get(vidx, "alt")

	row := Row{
		Vidx:    vidx,
		Chrom:   chrom,
		Pos:     variants.Pos(vidx),
		ID:      id,
		IDNull:  !idOK,
		Ref:     ref,
		Alt:     alt,
		AltNull: !altOK,
	}
	if !needCounts {
		return row, nil
	}

	counts, err := r.GetCounts(vidx, sub)
	if err != nil {
		return Row{}, err
	}

	homRef, het, homAlt := counts.HomRef, counts.Het, counts.HomAlt
	obs := homRef + het + homAlt

	var oHet, eHet, pHwe float64
	if obs == 0 {
		pHwe = 1.0
	} else {
		oHet = float64(het) / float64(obs)
		p := (2.0*float64(homRef) + float64(het)) / (2.0 * float64(obs))
		q := 1.0 - p
		eHet = 2.0 * p * q
		pHwe = hweExactTest(homRef, het, homAlt, midP)
	}

	row.HomRefCt = homRef
	row.HetCt = het
	row.HomAltCt = homAlt
	row.OHet = oHet
	row.EHet = eHet
	row.PHwe = pHwe
	return row, nil
}

// hweExactTest computes the Hardy-Weinberg equilibrium exact test p-value
// for one variant's genotype counts, following the Wigginton et al. 2005
// recurrence: build a relative-probability array over every het count
// with the same parity as the rare allele's copy count, walking outward
// from the modal het count in both directions, then sum the probability
// mass at least as extreme as the observed configuration.
func hweExactTest(obsHom1, obsHets, obsHom2 int, midP bool) float64 {
	if obsHom1+obsHets+obsHom2 == 0 {
		return 1.0
	}

	obsHomc := obsHom1
	obsHomr := obsHom2
	if obsHom2 > obsHom1 {
		obsHomc, obsHomr = obsHom2, obsHom1
	}

	rareCopies := 2*obsHomr + obsHets
	commonCopies := 2*obsHomc + obsHets
	n := obsHomc + obsHomr + obsHets

	mid := int(float64(rareCopies) * float64(commonCopies) / (2.0 * float64(n)))
	if mid%2 != rareCopies%2 {
		mid++
	}

	hetProbs := make([]float64, rareCopies+1)
	hetProbs[mid] = 1.0
	sum := 1.0

	currHets, currHomr, currHomc := mid, (rareCopies-mid)/2, (commonCopies-mid)/2
	for currHets <= rareCopies-2 {
		hetProbs[currHets+2] = hetProbs[currHets] * 4.0 * float64(currHomr) * float64(currHomc) /
			((float64(currHets) + 1.0) * (float64(currHets) + 2.0))
		sum += hetProbs[currHets+2]
		currHomr--
		currHomc--
		currHets += 2
	}

	currHets, currHomr, currHomc = mid, (rareCopies-mid)/2, (commonCopies-mid)/2
	for currHets >= 2 {
		hetProbs[currHets-2] = hetProbs[currHets] * float64(currHets) * (float64(currHets) - 1.0) /
			(4.0 * (float64(currHomr) + 1.0) * (float64(currHomc) + 1.0))
		sum += hetProbs[currHets-2]
		currHomr++
		currHomc++
		currHets -= 2
	}

	obsProb := hetProbs[obsHets] / sum
	threshold := obsProb * (1.0 + 1e-8)

	pValue := 0.0
	for i := 0; i <= rareCopies; i += 2 {
		if hetProbs[i]/sum <= threshold {
			pValue += hetProbs[i] / sum
		}
	}
	if rareCopies%2 == 1 {
		for i := 1; i <= rareCopies; i += 2 {
			if hetProbs[i]/sum <= threshold {
				pValue += hetProbs[i] / sum
			}
		}
	}

	if midP {
		pValue -= obsProb * 0.5
	}
	if pValue < 0.0 {
		return 0.0
	}
	if pValue > 1.0 {
		return 1.0
	}
	return pValue
}
