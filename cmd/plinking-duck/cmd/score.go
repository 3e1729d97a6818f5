package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/grailbio/base/cmdutil"
	"v.io/x/lib/cmdline"

	"github.com/teaguesterling/plinking-duck/errs"
	"github.com/teaguesterling/plinking-duck/kernel/score"
)

// loadIDWeights reads a 3-column (id, allele, weight) TSV, the ID-keyed
// weights input shape for plink_score's LIST(STRUCT(id, allele, weight))
// mode.
func loadIDWeights(path string) ([]score.IDWeight, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.E(errs.IO, "open "+path, err)
	}
	defer f.Close() // nolint: errcheck

	var out []score.IDWeight
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 3 {
			return nil, errs.Errorf("%s: expected 3 tab-separated columns (id, allele, weight), got %d", path, len(fields))
		}
		w, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, errs.Errorf("%s: invalid weight %q", path, fields[2])
		}
		out = append(out, score.IDWeight{ID: fields[0], Allele: fields[1], Weight: w})
	}
	if err := sc.Err(); err != nil {
		return nil, errs.E(errs.IO, "read "+path, err)
	}
	return out, nil
}

func newCmdScore() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "score",
		Short:    "Compute a polygenic score from a weights list",
		ArgsName: "path.pgen",
	}
	cf := addCommonFlags(&cmd.Flags)
	weights := cmd.Flags.String("weights", "", "Comma-separated positional weights, one per variant in the scanned range.")
	weightsFile := cmd.Flags.String("weights-file", "", "Path to a 3-column (id, allele, weight) TSV for ID-keyed scoring. Mutually exclusive with -weights.")
	center := cmd.Flags.Bool("center", false, "Variance-standardize scored dosages.")
	noMeanImputation := cmd.Flags.Bool("no-mean-imputation", false, "Skip missing calls instead of mean-imputing them.")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("score takes one .pgen path argument, but got %v", argv)
		}
		if (*weights == "") == (*weightsFile == "") {
			return errs.Errorf("score: exactly one of -weights or -weights-file must be set")
		}
		b, err := bind(argv[0], cf)
		if err != nil {
			return err
		}
		defer b.sess.Close() // nolint: errcheck

		var scored []score.ScoredVariant
		if *weightsFile != "" {
			idWeights, err := loadIDWeights(*weightsFile)
			if err != nil {
				return err
			}
			scored = score.ResolveIDKeyed(b.variants, b.rng, idWeights)
		} else {
			parts := strings.Split(*weights, ",")
			vals := make([]float64, len(parts))
			for i, p := range parts {
				v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
				if err != nil {
					return errs.Errorf("score: invalid weight %q", p)
				}
				vals[i] = v
			}
			scored, err = score.ResolvePositional(b.rng, vals)
			if err != nil {
				return err
			}
		}

		sess := score.NewSession(b.sess, b.samples, b.sub, scored,
			score.Options{Center: *center, NoMeanImputation: *noMeanImputation})
		rows, err := sess.Rows(context.Background())
		if err != nil {
			return err
		}

		w := bufio.NewWriter(os.Stdout)
		defer w.Flush() // nolint: errcheck
		fmt.Fprintln(w, "FID\tIID\tALLELE_CT\tDENOM\tNAMED_ALLELE_DOSAGE_SUM\tSCORE_SUM\tSCORE_AVG")
		for _, r := range rows {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%g\t%g\t%g\n",
				formatNullString(r.FID, r.FIDNull), r.IID, r.AlleleCt, r.Denom,
				r.NamedAlleleDosageSum, r.ScoreSum, r.ScoreAvg)
		}
		return nil
	})
	return cmd
}
