package ld

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

func TestPairwiseLdFixtureA(t *testing.T) {
	path, _ := writeFixtureA(t)
	sess, err := pgen.OpenSession(path)
	require.NoError(t, err)
	defer sess.Close()
	sub := subset.AllSamples(4)
	r, err := sess.NewReader()
	require.NoError(t, err)

	row, err := Pairwise(r, sub, 0, 1)
	require.NoError(t, err)
	require.Equal(t, 3, row.ObsCt)
	require.False(t, row.R2.Null)
	require.InDelta(t, 0.75, row.R2.Value, 1e-9)
	require.False(t, row.DPrime.Null)
	require.InDelta(t, 0.5, row.DPrime.Value, 1e-9)
}

func TestPairwiseLdSelfIsOne(t *testing.T) {
	path, _ := writeFixtureA(t)
	sess, err := pgen.OpenSession(path)
	require.NoError(t, err)
	defer sess.Close()
	sub := subset.AllSamples(4)
	r, err := sess.NewReader()
	require.NoError(t, err)

	row, err := Pairwise(r, sub, 1, 1) // v2 = {1,1,0,2}, polymorphic, no missing
	require.NoError(t, err)
	require.Equal(t, 4, row.ObsCt)
	require.False(t, row.R2.Null)
	require.InDelta(t, 1.0, row.R2.Value, 1e-9)
}

func TestWindowedLdFindsHighPair(t *testing.T) {
	path, variants := writeFixtureA(t)
	sess, err := pgen.OpenSession(path)
	require.NoError(t, err)
	defer sess.Close()
	sub := subset.AllSamples(4)

	batch, err := Windowed(context.Background(), sess, variants,
		metadata.VariantRange{Start: 0, End: 4}, sub, WindowedOptions{
			WindowBp: 1000, R2Threshold: 0.7,
		})
	require.NoError(t, err)

	found := false
	for _, row := range batch.Rows() {
		if row.VidxA == 0 && row.VidxB == 1 {
			found = true
			require.InDelta(t, 0.75, row.R2.Value, 1e-9)
		}
	}
	require.True(t, found, "expected (v1,v2) pair with r2=0.75 to survive threshold 0.7")
}

func TestWindowedLdZeroWindowEmitsNothingSameChrom(t *testing.T) {
	path, variants := writeFixtureA(t)
	sess, err := pgen.OpenSession(path)
	require.NoError(t, err)
	defer sess.Close()
	sub := subset.AllSamples(4)

	batch, err := Windowed(context.Background(), sess, variants,
		metadata.VariantRange{Start: 0, End: 4}, sub, WindowedOptions{
			WindowBp: 0, R2Threshold: 0.0,
		})
	require.NoError(t, err)
	require.Empty(t, batch.Rows())
}

func TestMonomorphicLdIsNull(t *testing.T) {
	dir := t.TempDir()
	pgenPath := filepath.Join(dir, "mono.pgen")
	f, err := os.Create(pgenPath)
	require.NoError(t, err)
	w, err := pgen.NewWriter(f, 2, 4)
	require.NoError(t, err)
	require.NoError(t, w.WriteVariant([]int8{0, 0, 0, 0}))
	require.NoError(t, w.WriteVariant([]int8{0, 1, 2, 1}))
	require.NoError(t, f.Close())

	sess, err := pgen.OpenSession(pgenPath)
	require.NoError(t, err)
	defer sess.Close()
	sub := subset.AllSamples(4)
	r, err := sess.NewReader()
	require.NoError(t, err)

	row, err := Pairwise(r, sub, 0, 1)
	require.NoError(t, err)
	require.True(t, row.R2.Null)
	require.True(t, row.DPrime.Null)
}
