package missing

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/teaguesterling/plinking-duck/errs"
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

func writeFixtureA(t *testing.T) (string, *metadata.VariantIndex, *metadata.SampleTable) {
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
	variants, err := metadata.Load(pvarPath)
	require.NoError(t, err)

	psamPath := filepath.Join(dir, "x.psam")
	require.NoError(t, os.WriteFile(psamPath, []byte(
		"#FID\tIID\n0\tS1\n0\tS2\n0\tS3\n0\tS4\n"), 0o644))
	samples, err := metadata.LoadSamples(psamPath)
	require.NoError(t, err)

	return pgenPath, variants, samples
}

func TestMissingnessVariantModeFixtureA(t *testing.T) {
	path, variants, _ := writeFixtureA(t)
	sess, err := pgen.OpenSession(path)
	require.NoError(t, err)
	defer sess.Close()
	sub := subset.AllSamples(4)

	batch, err := RunVariantMode(context.Background(), sess, variants,
		metadata.VariantRange{Start: 0, End: 4}, sub, Options{})
	require.NoError(t, err)
	rows := batch.Rows()

	require.Equal(t, 1, rows[0].MissingCt)
	require.InDelta(t, 0.25, rows[0].FMiss, 1e-9)
	require.Equal(t, 0, rows[1].MissingCt)
	require.Equal(t, 1, rows[2].MissingCt)
	require.Equal(t, 0, rows[3].MissingCt)
}

func TestMissingnessRejectsDosageColumn(t *testing.T) {
	path, variants, _ := writeFixtureA(t)
	sess, err := pgen.OpenSession(path)
	require.NoError(t, err)
	defer sess.Close()
	sub := subset.AllSamples(4)

	_, err = RunVariantMode(context.Background(), sess, variants,
		metadata.VariantRange{Start: 0, End: 4}, sub, Options{Columns: []string{"dosage"}})
	require.Error(t, err)
	require.Equal(t, errs.NotImplemented, errs.Classify(err))
}

func TestMissingnessSampleModeFixtureA(t *testing.T) {
	path, _, samples := writeFixtureA(t)
	sess, err := pgen.OpenSession(path)
	require.NoError(t, err)
	defer sess.Close()
	sub := subset.AllSamples(4)

	scanner := NewSampleScanner(sess, samples, metadata.VariantRange{Start: 0, End: 4}, sub, Options{})
	batch, err := scanner.Rows(context.Background())
	require.NoError(t, err)
	rows := batch.Rows()
	require.Len(t, rows, 4)

	byIID := make(map[string]SampleRow, 4)
	for _, r := range rows {
		byIID[r.IID] = r
	}
	require.Equal(t, 0, byIID["S1"].MissingCt)
	require.Equal(t, 1, byIID["S2"].MissingCt)
	require.Equal(t, 0, byIID["S3"].MissingCt)
	require.Equal(t, 1, byIID["S4"].MissingCt)
	require.InDelta(t, 0.25, byIID["S2"].FMiss, 1e-9)

	// Repeated calls reuse the cached scan result.
	batch2, err := scanner.Rows(context.Background())
	require.NoError(t, err)
	require.Equal(t, batch.Rows(), batch2.Rows())
}
