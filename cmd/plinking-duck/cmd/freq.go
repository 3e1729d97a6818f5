package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/grailbio/base/cmdutil"
	"v.io/x/lib/cmdline"

	"github.com/teaguesterling/plinking-duck/kernel/freq"
)

func newCmdFreq() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "freq",
		Short:    "Compute per-variant allele frequency and call-count tallies",
		ArgsName: "path.pgen",
	}
	cf := addCommonFlags(&cmd.Flags)
	workers := cmd.Flags.Int("workers", 0, "Worker goroutines. Default: min(range/500 + 1, 16).")
	columns := cmd.Flags.String("columns", "", "Comma-separated output columns to compute. Default: all. \"dosage\" is rejected (not implemented).")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("freq takes one .pgen path argument, but got %v", argv)
		}
		b, err := bind(argv[0], cf)
		if err != nil {
			return err
		}
		defer b.sess.Close() // nolint: errcheck
		batch, err := freq.Run(context.Background(), b.sess, b.variants, b.rng, b.sub,
			freq.Options{Workers: *workers, Columns: splitColumns(*columns)})
		if err != nil {
			return err
		}

		w := bufio.NewWriter(os.Stdout)
		defer w.Flush() // nolint: errcheck
		fmt.Fprintln(w, "CHROM\tPOS\tID\tREF\tALT\tALT_FREQ\tOBS_CT\tHOM_REF_CT\tHET_CT\tHOM_ALT_CT\tMISSING_CT")
		for _, r := range batch.Rows() {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
				r.Chrom, r.Pos, formatNullString(r.ID, r.IDNull), r.Ref, formatNullString(r.Alt, r.AltNull),
				formatNullFloat(r.AltFreq.Value, r.AltFreq.Null), r.ObsCt,
				r.HomRefCt, r.HetCt, r.HomAltCt, r.MissingCt)
		}
		return nil
	})
	return cmd
}
