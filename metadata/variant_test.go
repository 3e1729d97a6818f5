package metadata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadPVAR(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "x.pvar", "##fileformat=PVARv1.0\n"+
		"#CHROM\tPOS\tID\tREF\tALT\n"+
		"1\t100\trs1\tA\tG\n"+
		"1\t200\t.\tC\tT\n"+
		"2\t50\trs3\tG\t.\n")

	v, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, 3, v.Len())
	require.Equal(t, "1", v.Columns().Chroms[0])
	require.Equal(t, int32(200), v.Columns().Positions[1])

	id, ok := v.Get(1, "id")
	require.False(t, ok)
	require.Equal(t, "", id)

	alt, ok := v.Get(2, "alt")
	require.False(t, ok)
	require.Equal(t, "", alt)

	idx, ok := v.IndexByID("rs1")
	require.True(t, ok)
	require.Equal(t, uint32(0), idx)
}

func TestLoadBIM(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "x.bim", ""+
		"1 rs1 0 100 G A\n"+
		"1 rs2 0 200 T C\n")

	v, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, 2, v.Len())
	require.Equal(t, "1", v.Columns().Chroms[0])
	require.Equal(t, int32(100), v.Columns().Positions[0])
	require.Equal(t, "A", v.Columns().Refs[0])
	require.Equal(t, "G", v.Columns().Alts[0])
}

func TestParseRegion(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "x.pvar", "#CHROM\tPOS\tID\tREF\tALT\n"+
		"1\t100\trs1\tA\tG\n"+
		"1\t200\trs2\tA\tG\n"+
		"1\t300\trs3\tA\tG\n"+
		"2\t50\trs4\tA\tG\n")

	v, err := Load(p)
	require.NoError(t, err)

	rng, err := v.ParseRegion("1:150-300")
	require.NoError(t, err)
	require.Equal(t, VariantRange{Start: 1, End: 3}, rng)

	rng2, err := v.ParseRegion("2:1-1000")
	require.NoError(t, err)
	require.Equal(t, VariantRange{Start: 3, End: 4}, rng2)

	rng3, err := v.ParseRegion("3:1-10")
	require.NoError(t, err)
	require.Equal(t, 0, rng3.Len())
}
