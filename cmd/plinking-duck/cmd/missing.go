package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/grailbio/base/cmdutil"
	"v.io/x/lib/cmdline"

	"github.com/teaguesterling/plinking-duck/kernel/missing"
)

func newCmdMissing() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "missing",
		Short:    "Compute per-variant or per-sample missing-call rates",
		ArgsName: "path.pgen",
	}
	cf := addCommonFlags(&cmd.Flags)
	mode := cmd.Flags.String("mode", "variant", "Aggregation orientation: \"variant\" or \"sample\".")
	workers := cmd.Flags.Int("workers", 0, "Worker goroutines. Default: min(range/500 + 1, 16).")
	columns := cmd.Flags.String("columns", "", "Comma-separated output columns to compute (variant mode only). Default: all. \"dosage\" is rejected (not implemented).")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("missing takes one .pgen path argument, but got %v", argv)
		}
		b, err := bind(argv[0], cf)
		if err != nil {
			return err
		}
		defer b.sess.Close() // nolint: errcheck
		opts := missing.Options{Workers: *workers, Columns: splitColumns(*columns)}

		w := bufio.NewWriter(os.Stdout)
		defer w.Flush() // nolint: errcheck

		switch *mode {
		case "variant":
			batch, err := missing.RunVariantMode(context.Background(), b.sess, b.variants, b.rng, b.sub, opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "CHROM\tPOS\tID\tREF\tALT\tMISSING_CT\tOBS_CT\tF_MISS")
			for _, r := range batch.Rows() {
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%d\t%d\t%g\n",
					r.Chrom, r.Pos, formatNullString(r.ID, r.IDNull), r.Ref, formatNullString(r.Alt, r.AltNull),
					r.MissingCt, r.ObsCt, r.FMiss)
			}
		case "sample":
			scanner := missing.NewSampleScanner(b.sess, b.samples, b.rng, b.sub, opts)
			batch, err := scanner.Rows(context.Background())
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "FID\tIID\tMISSING_CT\tOBS_CT\tF_MISS")
			for _, r := range batch.Rows() {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%g\n",
					formatNullString(r.FID, r.FIDNull), r.IID, r.MissingCt, r.ObsCt, r.FMiss)
			}
		default:
			return fmt.Errorf("missing: unknown mode %q, must be \"variant\" or \"sample\"", *mode)
		}
		return nil
	})
	return cmd
}
