package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/grailbio/base/cmdutil"
	"v.io/x/lib/cmdline"

	"github.com/teaguesterling/plinking-duck/kernel/hardy"
)

func newCmdHardy() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "hardy",
		Short:    "Run the Hardy-Weinberg equilibrium exact test per variant",
		ArgsName: "path.pgen",
	}
	cf := addCommonFlags(&cmd.Flags)
	midP := cmd.Flags.Bool("mid-p", false, "Apply the mid-p correction to the exact test.")
	workers := cmd.Flags.Int("workers", 0, "Worker goroutines. Default: min(range/500 + 1, 16).")
	columns := cmd.Flags.String("columns", "", "Comma-separated output columns to compute. Default: all. \"dosage\" is rejected (not implemented).")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("hardy takes one .pgen path argument, but got %v", argv)
		}
		b, err := bind(argv[0], cf)
		if err != nil {
			return err
		}
		defer b.sess.Close() // nolint: errcheck
		batch, err := hardy.Run(context.Background(), b.sess, b.variants, b.rng, b.sub,
			hardy.Options{Workers: *workers, MidP: *midP, Columns: splitColumns(*columns)})
		if err != nil {
			return err
		}

		w := bufio.NewWriter(os.Stdout)
		defer w.Flush() // nolint: errcheck
		fmt.Fprintln(w, "CHROM\tPOS\tID\tREF\tALT\tHOM_REF_CT\tHET_CT\tHOM_ALT_CT\tO_HET\tE_HET\tP_HWE")
		for _, r := range batch.Rows() {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%d\t%d\t%d\t%g\t%g\t%g\n",
				r.Chrom, r.Pos, formatNullString(r.ID, r.IDNull), r.Ref, formatNullString(r.Alt, r.AltNull),
				r.HomRefCt, r.HetCt, r.HomAltCt, r.OHet, r.EHet, r.PHwe)
		}
		return nil
	})
	return cmd
}
