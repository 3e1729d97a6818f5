package cmd

import (
	"os"
	"strconv"
	"strings"

	"github.com/teaguesterling/plinking-duck/errs"
	"github.com/teaguesterling/plinking-duck/metadata"
	"github.com/teaguesterling/plinking-duck/pgen"
	"github.com/teaguesterling/plinking-duck/subset"
)

// commonFlags are the named options shared by every subcommand that scans
// a genotype file, as plain pointer fields populated directly off
// cmd.Flags at construction time.
type commonFlags struct {
	pvar    *string
	psam    *string
	samples *string
	region  *string
}

func addCommonFlags(fs interface {
	String(name, value, usage string) *string
}) commonFlags {
	return commonFlags{
		pvar:    fs.String("pvar", "", "Variant sidecar path. Defaults to the genotype path with .pgen replaced by .pvar or .bim."),
		psam:    fs.String("psam", "", "Sample sidecar path. Defaults to the genotype path with .pgen replaced by .psam or .fam."),
		samples: fs.String("samples", "", "Comma-separated list of sample IIDs to restrict to. Default: all samples."),
		region:  fs.String("region", "", "Region filter of the form chrom:start-end (1-based, inclusive). Default: whole file."),
	}
}

// resolveSidecarPath tries explicit first, then each candidate extension
// in turn, returning the first that exists on disk.
func resolveSidecarPath(genoPath, explicit string, candidateExts ...string) string {
	if explicit != "" {
		return explicit
	}
	base := strings.TrimSuffix(genoPath, ".pgen")
	for _, ext := range candidateExts {
		p := base + ext
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return base + candidateExts[0]
}

// bound is everything a subcommand needs to run a kernel: the open
// decoder session, the loaded metadata, the resolved variant range, and
// the resolved sample subset. Callers must close sess when done; the
// session sweeps any reader a kernel worker left open, keeping the
// reader-before-header teardown order in one place.
type bound struct {
	sess     *pgen.DecoderSession
	variants *metadata.VariantIndex
	samples  *metadata.SampleTable
	rng      metadata.VariantRange
	sub      *subset.SampleSubset
}

// bind opens and resolves everything commonFlags describes against
// genoPath, the sequence every subcommand's Runner follows before calling
// into a kernel: open the decoder session, load sidecars, cross-check
// counts, resolve region, resolve sample subset.
func bind(genoPath string, cf commonFlags) (*bound, error) {
	sess, err := pgen.OpenSession(genoPath)
	if err != nil {
		return nil, err
	}
	hc := sess.Header()

	pvarPath := resolveSidecarPath(genoPath, *cf.pvar, ".pvar", ".pvar.zst", ".pvar.sz", ".bim")
	variants, err := metadata.Load(pvarPath)
	if err != nil {
		return nil, err
	}
	if variants.VariantN != hc.RawVariantCt {
		return nil, errs.Errorf("%s: variant sidecar has %d variants but genotype file has %d",
			pvarPath, variants.VariantN, hc.RawVariantCt)
	}

	psamPath := resolveSidecarPath(genoPath, *cf.psam, ".psam", ".psam.zst", ".psam.sz", ".fam")
	samples, err := metadata.LoadSamples(psamPath)
	if err != nil {
		return nil, err
	}
	if samples.SampleN != hc.RawSampleCt {
		return nil, errs.Errorf("%s: sample sidecar has %d samples but genotype file has %d",
			psamPath, samples.SampleN, hc.RawSampleCt)
	}

	rng := metadata.VariantRange{Start: 0, End: variants.VariantN}
	if *cf.region != "" {
		rng, err = variants.ParseRegion(*cf.region)
		if err != nil {
			return nil, err
		}
	}

	var sub *subset.SampleSubset
	if *cf.samples != "" {
		iids := strings.Split(*cf.samples, ",")
		indices, err := subset.ResolveIndices(hc.RawSampleCt, samples, nil, iids)
		if err != nil {
			return nil, err
		}
		sub = subset.BuildSampleSubset(hc.RawSampleCt, indices)
	} else {
		sub = subset.AllSamples(hc.RawSampleCt)
	}

	return &bound{sess: sess, variants: variants, samples: samples, rng: rng, sub: sub}, nil
}

// splitColumns turns a comma-separated -columns flag value into the
// []string a kernel's Options.Columns expects; an empty flag means "no
// projection restriction", matching every kernel's InitGlobal contract
// for a nil/empty columns slice.
func splitColumns(flag string) []string {
	if flag == "" {
		return nil
	}
	return strings.Split(flag, ",")
}

func formatNullFloat(v float64, null bool) string {
	if null {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatNullString(v string, null bool) string {
	if null {
		return "."
	}
	return v
}
