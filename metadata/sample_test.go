package metadata

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadPSAM(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "x.psam", "#FID\tIID\tSEX\tPHENO1\n"+
		"fam1\ts1\t1\t2\n"+
		"fam1\ts2\t2\tNA\n"+
		"0\ts3\t0\t1\n")

	s, err := LoadSamples(p)
	require.NoError(t, err)
	require.Equal(t, 3, s.Len())
	require.False(t, s.Columns().FIDNull[0])
	require.Equal(t, "fam1", s.Columns().FIDs[0])
	require.False(t, s.Columns().FIDNull[2])
	require.Equal(t, "0", s.Columns().FIDs[2])
	require.Equal(t, int32(1), s.Columns().Sex[0])
	require.True(t, s.Columns().SexNull[2])
	require.Equal(t, "2", s.Columns().Extra["PHENO1"][0])

	idx, ok := s.IndexByIID("s2")
	require.True(t, ok)
	require.Equal(t, uint32(1), idx)

	_, ok = s.IndexByIID("missing")
	require.False(t, ok)
}

func TestLoadFAM(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "x.fam", ""+
		"fam1 s1 0 0 1 -9\n"+
		"fam1 s2 s1 0 2 2\n")

	s, err := LoadSamples(p)
	require.NoError(t, err)
	require.Equal(t, 2, s.Len())
	require.True(t, s.Columns().PatNull[0])
	require.False(t, s.Columns().PatNull[1])
	require.Equal(t, "s1", s.Columns().Pat[1])
	require.Equal(t, "-9", s.Columns().Pheno1[0])
	require.Equal(t, "2", s.Columns().Pheno1[1])
}
