package cmd

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"

	"github.com/grailbio/base/cmdutil"
	"github.com/minio/highwayhash"
	"v.io/x/lib/cmdline"

	"github.com/teaguesterling/plinking-duck/kernel/raw"
)

// checksumKey is a fixed, non-secret HighwayHash key: checksums are for
// detecting accidental corruption/drift between runs, not for
// authentication, so a stable well-known key keeps the checksum
// reproducible across invocations and machines.
var checksumKey = make([]byte, highwayhash.Size)

// variantChecksum is the checksum of one chromosome's genotype batches: a
// record count plus a commutative sum over each variant's HighwayHash
// digest, so per-variant results accumulate order-independently.
type variantChecksum struct {
	NRecs     int64
	SumGeno   uint64
	MissingCt int64
}

func (c *variantChecksum) add(r raw.PgenRow, key []byte) {
	buf := make([]byte, 4, len(r.Genotypes)+4)
	binary.LittleEndian.PutUint32(buf, r.Vidx)
	for _, g := range r.Genotypes {
		if g.Null {
			buf = append(buf, 0xff)
			c.MissingCt++
		} else {
			buf = append(buf, byte(g.Value))
		}
	}
	digest := highwayhash.Sum(buf, key)
	c.NRecs++
	c.SumGeno += binary.LittleEndian.Uint64(digest[:8])
}

func newCmdChecksum() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "checksum",
		Short:    "Compute a HighwayHash-based checksum of decoded genotype batches, grouped by chromosome",
		ArgsName: "path.pgen",
	}
	cf := addCommonFlags(&cmd.Flags)
	workers := cmd.Flags.Int("workers", 0, "Worker goroutines. Default: min(range/500 + 1, 16).")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("checksum takes one .pgen path argument, but got %v", argv)
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

		byChrom := map[string]*variantChecksum{}
		for _, r := range batch.Rows() {
			c, ok := byChrom[r.Chrom]
			if !ok {
				c = &variantChecksum{}
				byChrom[r.Chrom] = c
			}
			c.add(r, checksumKey)
		}

		js, err := json.MarshalIndent(byChrom, "", "  ")
		if err != nil {
			return err
		}

		w := bufio.NewWriter(os.Stdout)
		defer w.Flush() // nolint: errcheck
		fmt.Fprintln(w, string(js))
		return nil
	})
	return cmd
}
