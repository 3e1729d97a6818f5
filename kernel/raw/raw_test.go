package raw

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
		"#FID\tIID\tSEX\n0\tS1\t1\n0\tS2\t2\n0\tS3\t0\n0\tS4\t1\n"), 0o644))
	samples, err := metadata.LoadSamples(psamPath)
	require.NoError(t, err)

	return pgenPath, variants, samples
}

func TestReadPgen(t *testing.T) {
	path, variants, _ := writeFixtureA(t)
	sess, err := pgen.OpenSession(path)
	require.NoError(t, err)
	defer sess.Close()
	sub := subset.AllSamples(4)

	batch, err := ReadPgen(context.Background(), sess, variants,
		metadata.VariantRange{Start: 0, End: 4}, sub, Options{})
	require.NoError(t, err)
	rows := batch.Rows()
	require.Len(t, rows, 4)

	require.Equal(t, "v1", rows[0].ID)
	require.False(t, rows[0].IDNull)
	require.Len(t, rows[0].Genotypes, 4)
	require.True(t, rows[0].Genotypes[3].Null)
	require.Equal(t, int8(0), rows[0].Genotypes[0].Value)
}

func TestReadPvarVerbatim(t *testing.T) {
	_, variants, _ := writeFixtureA(t)
	rows := ReadPvar(variants, metadata.VariantRange{Start: 0, End: 4})
	require.Len(t, rows, 4)
	require.Equal(t, "1", rows[0].Chrom)
	require.Equal(t, int32(1), rows[0].Pos)
	require.Equal(t, "v1", rows[0].ID)
	require.False(t, rows[0].IDNull)
}

func TestReadPsamVerbatim(t *testing.T) {
	_, _, samples := writeFixtureA(t)
	rows := ReadPsam(samples)
	require.Len(t, rows, 4)

	byIID := make(map[string]PsamRow, 4)
	for _, r := range rows {
		byIID[r.IID] = r
	}
	require.Equal(t, int32(1), byIID["S1"].Sex)
	require.False(t, byIID["S1"].SexNull)
	require.True(t, byIID["S3"].SexNull) // SEX=0 is missing
}

func TestReadPfileTransposesToSampleRows(t *testing.T) {
	path, _, samples := writeFixtureA(t)
	sess, err := pgen.OpenSession(path)
	require.NoError(t, err)
	defer sess.Close()
	sub := subset.AllSamples(4)

	batch, err := ReadPfile(context.Background(), sess, samples,
		metadata.VariantRange{Start: 0, End: 4}, sub, Options{})
	require.NoError(t, err)
	rows := batch.Rows()
	require.Len(t, rows, 4)

	byIID := make(map[string]PfileRow, 4)
	for _, r := range rows {
		byIID[r.IID] = r
	}

	// S1's calls across v1..v4: 0,1,2,0
	s1 := byIID["S1"]
	require.Len(t, s1.Genotypes, 4)
	require.Equal(t, int8(0), s1.Genotypes[0].Value)
	require.Equal(t, int8(1), s1.Genotypes[1].Value)
	require.Equal(t, int8(2), s1.Genotypes[2].Value)
	require.Equal(t, int8(0), s1.Genotypes[3].Value)

	// S4's calls across v1..v4: missing,2,0,2
	s4 := byIID["S4"]
	require.True(t, s4.Genotypes[0].Null)
	require.Equal(t, int8(2), s4.Genotypes[1].Value)
}
