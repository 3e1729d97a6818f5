package freq

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/teaguesterling/plinking-duck/errs"
	"github.com/teaguesterling/plinking-duck/metadata"
	"github.com/teaguesterling/plinking-duck/pgen"
	"github.com/teaguesterling/plinking-duck/subset"
)

// sortByVidx orders rows by variant index. Cross-worker ordering is
// unspecified by the scan contract (only per-worker ordering is
// ascending), so tests that check specific-variant values sort first.
func sortByVidx(rows []Row) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].Vidx < rows[j].Vidx })
}

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

func TestFrequencyFixtureA(t *testing.T) {
	path, variants := writeFixtureA(t)
	sess, err := pgen.OpenSession(path)
	require.NoError(t, err)
	defer sess.Close()
	sub := subset.AllSamples(4)

	batch, err := Run(context.Background(), sess, variants,
		metadata.VariantRange{Start: 0, End: 4}, sub, Options{Workers: 2, BatchSize: 1})
	require.NoError(t, err)
	rows := batch.Rows()
	require.Len(t, rows, 4)
	sortByVidx(rows)

	require.InDelta(t, 0.5, rows[0].AltFreq.Value, 1e-9)
	require.Equal(t, 6, rows[0].ObsCt)

	require.InDelta(t, 0.5, rows[1].AltFreq.Value, 1e-9)
	require.Equal(t, 8, rows[1].ObsCt)

	require.InDelta(t, 0.5, rows[2].AltFreq.Value, 1e-9)
	require.Equal(t, 6, rows[2].ObsCt)

	require.InDelta(t, 0.375, rows[3].AltFreq.Value, 1e-9)
	require.Equal(t, 8, rows[3].ObsCt)
}

func TestFrequencyAllMissingVariantIsNull(t *testing.T) {
	dir := t.TempDir()
	pgenPath := filepath.Join(dir, "x.pgen")
	f, err := os.Create(pgenPath)
	require.NoError(t, err)
	w, err := pgen.NewWriter(f, 1, 2)
	require.NoError(t, err)
	require.NoError(t, w.WriteVariant([]int8{-1, -1}))
	require.NoError(t, f.Close())

	pvarPath := filepath.Join(dir, "x.pvar")
	require.NoError(t, os.WriteFile(pvarPath, []byte("#CHROM\tPOS\tID\tREF\tALT\n1\t1\t.\tA\tG\n"), 0o644))
	variants, err := metadata.Load(pvarPath)
	require.NoError(t, err)

	sess, err := pgen.OpenSession(pgenPath)
	require.NoError(t, err)
	defer sess.Close()
	sub := subset.AllSamples(2)

	batch, err := Run(context.Background(), sess, variants,
		metadata.VariantRange{Start: 0, End: 1}, sub, Options{})
	require.NoError(t, err)
	row := batch.Rows()[0]
	require.True(t, row.AltFreq.Null)
	require.Equal(t, 0, row.ObsCt)
	require.Equal(t, 2, row.MissingCt)
}

func TestFrequencyRejectsDosageColumn(t *testing.T) {
	path, variants := writeFixtureA(t)
	sess, err := pgen.OpenSession(path)
	require.NoError(t, err)
	defer sess.Close()
	sub := subset.AllSamples(4)

	_, err = Run(context.Background(), sess, variants,
		metadata.VariantRange{Start: 0, End: 4}, sub, Options{Columns: []string{"chrom", "dosage"}})
	require.Error(t, err)
	require.Equal(t, errs.NotImplemented, errs.Classify(err))
}

func TestFrequencyIdentityOnlyProjectionSkipsCounts(t *testing.T) {
	path, variants := writeFixtureA(t)
	sess, err := pgen.OpenSession(path)
	require.NoError(t, err)
	defer sess.Close()
	sub := subset.AllSamples(4)

	batch, err := Run(context.Background(), sess, variants,
		metadata.VariantRange{Start: 0, End: 4}, sub, Options{Columns: []string{"chrom", "pos", "id", "ref", "alt"}})
	require.NoError(t, err)
	rows := batch.Rows()
	require.Len(t, rows, 4)
	for _, r := range rows {
		require.True(t, r.AltFreq.Null)
		require.Equal(t, 0, r.ObsCt)
	}
}
