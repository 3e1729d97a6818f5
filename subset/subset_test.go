package subset

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/teaguesterling/plinking-duck/bitops"
)

func TestResolveIndicesByIndex(t *testing.T) {
	indices, err := ResolveIndices(10, nil, []int64{0, 3, 9}, nil)
	require.NoError(t, err)
	require.Equal(t, []uint32{0, 3, 9}, indices)

	_, err = ResolveIndices(10, nil, []int64{10}, nil)
	require.Error(t, err)

	_, err = ResolveIndices(10, nil, []int64{1, 1}, nil)
	require.Error(t, err)
}

func TestResolveIndicesRequiresExactlyOneMode(t *testing.T) {
	_, err := ResolveIndices(10, nil, nil, nil)
	require.Error(t, err)
	_, err = ResolveIndices(10, nil, []int64{0}, []string{"a"})
	require.Error(t, err)
}

func TestBuildSampleSubset(t *testing.T) {
	s := BuildSampleSubset(5, []uint32{0, 2, 4})
	require.Equal(t, uint32(5), s.RawSampleCt)
	require.Equal(t, uint32(3), s.SubsetSampleCt)
	require.True(t, bitops.TestBit(s.Include, 0))
	require.False(t, bitops.TestBit(s.Include, 1))
	require.True(t, bitops.TestBit(s.Include, 2))
	require.Equal(t, 3, bitops.PopcountRange(s.Include, 5))
	require.Equal(t, []uint32{0, 2, 4}, s.Indices())
}

func TestBuildSampleSubsetSortsIndices(t *testing.T) {
	s := BuildSampleSubset(5, []uint32{4, 0, 2})
	require.Equal(t, []uint32{0, 2, 4}, s.Indices())
}

func TestAllSamples(t *testing.T) {
	s := AllSamples(7)
	require.Equal(t, uint32(7), s.SubsetSampleCt)
	for i := 0; i < 7; i++ {
		require.True(t, bitops.TestBit(s.Include, i))
	}
}
