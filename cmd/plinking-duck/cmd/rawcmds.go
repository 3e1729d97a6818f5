package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/grailbio/base/cmdutil"
	"github.com/klauspost/compress/zstd"
	"v.io/x/lib/cmdline"

	"github.com/teaguesterling/plinking-duck/kernel/raw"
	"github.com/teaguesterling/plinking-duck/metadata"
)

func newCmdPgen() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "pgen",
		Short:    "Dump raw per-variant genotype lists",
		ArgsName: "path.pgen",
	}
	cf := addCommonFlags(&cmd.Flags)
	workers := cmd.Flags.Int("workers", 0, "Worker goroutines. Default: min(range/500 + 1, 16).")
	compress := cmd.Flags.Bool("zstd", false, "Compress stdout with zstd, for piping into a .tsv.zst file.")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("pgen takes one .pgen path argument, but got %v", argv)
		}
		b, err := bind(argv[0], cf)
		if err != nil {
			return err
		}
		defer b.sess.Close() // nolint: errcheck
		batch, err := raw.ReadPgen(context.Background(), b.sess, b.variants, b.rng, b.sub,
			raw.Options{Workers: *workers})
		if err != nil {
			return err
		}

		out, closeOut, err := wrapZstdOutput(os.Stdout, *compress)
		if err != nil {
			return err
		}
		defer closeOut() // nolint: errcheck
		w := bufio.NewWriter(out)
		defer w.Flush() // nolint: errcheck

		fmt.Fprintln(w, "CHROM\tPOS\tID\tREF\tALT\tGENOTYPES")
		for _, r := range batch.Rows() {
			parts := make([]string, len(r.Genotypes))
			for i, c := range r.Genotypes {
				if c.Null {
					parts[i] = "."
				} else {
					parts[i] = strconv.Itoa(int(c.Value))
				}
			}
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\n",
				r.Chrom, r.Pos, formatNullString(r.ID, r.IDNull), r.Ref, formatNullString(r.Alt, r.AltNull),
				strings.Join(parts, ","))
		}
		return nil
	})
	return cmd
}

// wrapZstdOutput optionally wraps w in a zstd encoder, for the pgen dump
// debug subcommand's -zstd flag (zstd matches PLINK2's own compressed-
// sidecar convention). The returned close func must run after any
// buffered writer wrapping the result has already been flushed.
func wrapZstdOutput(w io.Writer, compress bool) (io.Writer, func() error, error) {
	if !compress {
		return w, func() error { return nil }, nil
	}
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return nil, nil, err
	}
	return enc, enc.Close, nil
}

func newCmdPvar() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "pvar",
		Short:    "Dump the variant sidecar verbatim",
		ArgsName: "path.pvar",
	}
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("pvar takes one path argument, but got %v", argv)
		}
		variants, err := metadata.Load(argv[0])
		if err != nil {
			return err
		}
		rows := raw.ReadPvar(variants, metadata.VariantRange{Start: 0, End: variants.VariantN})

		w := bufio.NewWriter(os.Stdout)
		defer w.Flush() // nolint: errcheck
		fmt.Fprintln(w, "CHROM\tPOS\tID\tREF\tALT\tCM")
		for _, r := range rows {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\n",
				r.Chrom, r.Pos, formatNullString(r.ID, r.IDNull), r.Ref, formatNullString(r.Alt, r.AltNull),
				formatNullFloat(r.CM, r.CMNull))
		}
		return nil
	})
	return cmd
}

func newCmdPsam() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "psam",
		Short:    "Dump the sample sidecar verbatim",
		ArgsName: "path.psam",
	}
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("psam takes one path argument, but got %v", argv)
		}
		samples, err := metadata.LoadSamples(argv[0])
		if err != nil {
			return err
		}
		rows := raw.ReadPsam(samples)

		w := bufio.NewWriter(os.Stdout)
		defer w.Flush() // nolint: errcheck
		fmt.Fprintln(w, "FID\tIID\tSEX\tPAT\tMAT")
		for _, r := range rows {
			sex := "."
			if !r.SexNull {
				sex = strconv.Itoa(int(r.Sex))
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				formatNullString(r.FID, r.FIDNull), r.IID, sex,
				formatNullString(r.Pat, r.PatNull), formatNullString(r.Mat, r.MatNull))
		}
		return nil
	})
	return cmd
}

func newCmdPfile() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "pfile",
		Short:    "Dump one row per sample with a genotype list spanning the scanned variant range",
		ArgsName: "path.pgen",
	}
	cf := addCommonFlags(&cmd.Flags)
	workers := cmd.Flags.Int("workers", 0, "Worker goroutines. Default: min(range/500 + 1, 16).")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("pfile takes one .pgen path argument, but got %v", argv)
		}
		b, err := bind(argv[0], cf)
		if err != nil {
			return err
		}
		defer b.sess.Close() // nolint: errcheck
		batch, err := raw.ReadPfile(context.Background(), b.sess, b.samples, b.rng, b.sub,
			raw.Options{Workers: *workers})
		if err != nil {
			return err
		}

		w := bufio.NewWriter(os.Stdout)
		defer w.Flush() // nolint: errcheck
		fmt.Fprintln(w, "FID\tIID\tGENOTYPES")
		for _, r := range batch.Rows() {
			parts := make([]string, len(r.Genotypes))
			for i, c := range r.Genotypes {
				if c.Null {
					parts[i] = "."
				} else {
					parts[i] = strconv.Itoa(int(c.Value))
				}
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", formatNullString(r.FID, r.FIDNull), r.IID, strings.Join(parts, ","))
		}
		return nil
	})
	return cmd
}
