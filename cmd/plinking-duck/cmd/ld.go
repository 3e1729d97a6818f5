package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/grailbio/base/cmdutil"
	"v.io/x/lib/cmdline"

	"github.com/teaguesterling/plinking-duck/errs"
	"github.com/teaguesterling/plinking-duck/kernel/ld"
	"github.com/teaguesterling/plinking-duck/metadata"
)

// resolveVariantArg accepts either a 0-based variant index or a variant
// ID and resolves it against variants.
func resolveVariantArg(variants *metadata.VariantIndex, s string) (uint32, error) {
	if idx, err := strconv.ParseUint(s, 10, 32); err == nil {
		if uint32(idx) >= variants.VariantN {
			return 0, errs.Errorf("variant index %d out of range (variant count: %d)", idx, variants.VariantN)
		}
		return uint32(idx), nil
	}
	vidx, ok := variants.IndexByID(s)
	if !ok {
		return 0, errs.Errorf("unknown variant id %q", s)
	}
	return vidx, nil
}

func newCmdLD() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "ld",
		Short:    "Compute pairwise or windowed linkage disequilibrium (r2/D')",
		ArgsName: "path.pgen",
	}
	cf := addCommonFlags(&cmd.Flags)
	variant1 := cmd.Flags.String("variant1", "", "First variant (0-based index or ID). With -variant2, runs a single pairwise comparison.")
	variant2 := cmd.Flags.String("variant2", "", "Second variant (0-based index or ID).")
	windowKb := cmd.Flags.Float64("window-kb", 1000, "Windowed scan radius in kilobases.")
	r2Threshold := cmd.Flags.Float64("r2-threshold", 0.2, "Minimum r2 for a windowed pair to be emitted.")
	interChr := cmd.Flags.Bool("inter-chr", false, "Also emit cross-chromosome pairs in windowed mode (no distance filter).")
	workers := cmd.Flags.Int("workers", 0, "Worker goroutines. Default: min(range/500 + 1, 16).")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("ld takes one .pgen path argument, but got %v", argv)
		}
		if *windowKb < 0 {
			return errs.Errorf("ld: -window-kb must be >= 0, got %g", *windowKb)
		}
		if *r2Threshold < 0 || *r2Threshold > 1 {
			return errs.Errorf("ld: -r2-threshold must be in [0, 1], got %g", *r2Threshold)
		}
		b, err := bind(argv[0], cf)
		if err != nil {
			return err
		}
		defer b.sess.Close() // nolint: errcheck

		w := bufio.NewWriter(os.Stdout)
		defer w.Flush() // nolint: errcheck

		if *variant1 != "" || *variant2 != "" {
			if *variant1 == "" || *variant2 == "" {
				return errs.Errorf("ld: -variant1 and -variant2 must both be set for pairwise mode")
			}
			vidxA, err := resolveVariantArg(b.variants, *variant1)
			if err != nil {
				return err
			}
			vidxB, err := resolveVariantArg(b.variants, *variant2)
			if err != nil {
				return err
			}
			r, err := b.sess.NewReader()
			if err != nil {
				return err
			}
			defer r.Close() // nolint: errcheck
			row, err := ld.Pairwise(r, b.sub, vidxA, vidxB)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "VIDX_A\tVIDX_B\tOBS_CT\tR2\tD_PRIME")
			fmt.Fprintf(w, "%d\t%d\t%d\t%s\t%s\n", row.VidxA, row.VidxB, row.ObsCt,
				formatNullFloat(row.R2.Value, row.R2.Null), formatNullFloat(row.DPrime.Value, row.DPrime.Null))
			return nil
		}

		batch, err := ld.Windowed(context.Background(), b.sess, b.variants, b.rng, b.sub, ld.WindowedOptions{
			Workers:     *workers,
			WindowBp:    int64(*windowKb * 1000),
			R2Threshold: *r2Threshold,
			InterChr:    *interChr,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "VIDX_A\tVIDX_B\tOBS_CT\tR2\tD_PRIME")
		for _, row := range batch.Rows() {
			fmt.Fprintf(w, "%d\t%d\t%d\t%s\t%s\n", row.VidxA, row.VidxB, row.ObsCt,
				formatNullFloat(row.R2.Value, row.R2.Null), formatNullFloat(row.DPrime.Value, row.DPrime.Null))
		}
		return nil
	})
	return cmd
}
