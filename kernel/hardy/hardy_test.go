package hardy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/teaguesterling/plinking-duck/metadata"
	"github.com/teaguesterling/plinking-duck/pgen"
	"github.com/teaguesterling/plinking-duck/subset"
)

var fixtureAGenotypes = [][]int8{
	{0, 1, 2, -1},
	{1, 1, 0, 2},
	{2, -1, 1, 0},
	{0, 0, 1, 2},
}

func writeFixtureA(t *testing.T) (string, *metadata.VariantIndex) {
	t.Helper()
	dir := t.TempDir()
	pgenPath := filepath.Join(dir, "x.pgen")
	f, err := os.Create(pgenPath)
	require.NoError(t, err)
	w, err := pgen.NewWriter(f, uint32(len(fixtureAGenotypes)), 4)
	require.NoError(t, err)
	for _, row := range fixtureAGenotypes {
		require.NoError(t, w.WriteVariant(row))
	}
	require.NoError(t, f.Close())

	pvarPath := filepath.Join(dir, "x.pvar")
	require.NoError(t, os.WriteFile(pvarPath, []byte(
		"#CHROM\tPOS\tID\tREF\tALT\n"+
			"1\t1\tv1\tA\tG\n"+
			"1\t2\tv2\tC\tT\n"+
			"1\t3\tv3\tG\tA\n"+
			"1\t4\tv4\tT\tC\n"), 0o644))
	v, err := metadata.Load(pvarPath)
	require.NoError(t, err)
	return pgenPath, v
}

func TestHweFixtureA(t *testing.T) {
	path, variants := writeFixtureA(t)
	sess, err := pgen.OpenSession(path)
	require.NoError(t, err)
	defer sess.Close()
	sub := subset.AllSamples(4)

	batch, err := Run(context.Background(), sess, variants,
		metadata.VariantRange{Start: 0, End: 4}, sub, Options{})
	require.NoError(t, err)
	rows := batch.Rows()

	// v1 counts (1,1,1) -> p_hwe = 1.0
	require.InDelta(t, 1.0, rows[0].PHwe, 1e-9)
	// v4 counts (2,1,1) -> p_hwe ~= 0.4286
	require.InDelta(t, 0.4286, rows[3].PHwe, 1e-3)
}

func TestHweAllMissingIsOne(t *testing.T) {
	require.Equal(t, 1.0, hweExactTest(0, 0, 0, false))
}

func TestHweMonotonicAsHomCountsGrow(t *testing.T) {
	p10 := hweExactTest(5, 0, 5, false)
	p20 := hweExactTest(10, 0, 10, false)
	require.Greater(t, p10, p20)
}
