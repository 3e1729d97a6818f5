package scan

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/teaguesterling/plinking-duck/metadata"
)

func TestClaimCursorExhaustion(t *testing.T) {
	c := NewClaimCursor(metadata.VariantRange{Start: 0, End: 10})
	b1, ok := c.Claim(4)
	require.True(t, ok)
	require.Equal(t, metadata.VariantRange{Start: 0, End: 4}, b1)

	b2, ok := c.Claim(4)
	require.True(t, ok)
	require.Equal(t, metadata.VariantRange{Start: 4, End: 8}, b2)

	b3, ok := c.Claim(4)
	require.True(t, ok)
	require.Equal(t, metadata.VariantRange{Start: 8, End: 10}, b3)

	_, ok = c.Claim(4)
	require.False(t, ok)
}

func TestOrchestratorVisitsEveryVariantExactlyOnce(t *testing.T) {
	rng := metadata.VariantRange{Start: 0, End: 500}
	o := &Orchestrator{Range: rng, Workers: 8, BatchSize: 7}

	var mu sync.Mutex
	seen := make(map[uint32]int)

	err := o.Run(context.Background(), func(workerIdx int) (func(uint32) error, func() error) {
		return func(vidx uint32) error {
			mu.Lock()
			seen[vidx]++
			mu.Unlock()
			return nil
		}, nil
	})
	require.NoError(t, err)
	require.Len(t, seen, rng.Len())
	for vidx := rng.Start; vidx < rng.End; vidx++ {
		require.Equal(t, 1, seen[vidx])
	}
}

func TestOrchestratorPropagatesError(t *testing.T) {
	rng := metadata.VariantRange{Start: 0, End: 50}
	o := &Orchestrator{Range: rng, Workers: 4, BatchSize: 3}

	sentinel := errSentinel{}
	err := o.Run(context.Background(), func(workerIdx int) (func(uint32) error, func() error) {
		return func(vidx uint32) error {
			if vidx == 25 {
				return sentinel
			}
			return nil
		}, nil
	})
	require.Error(t, err)
}

type errSentinel struct{}

func (errSentinel) Error() string { return "sentinel" }

func TestRowBatch(t *testing.T) {
	b := NewRowBatch[int](2)
	require.True(t, b.Append(1))
	require.True(t, b.Append(2))
	require.False(t, b.Append(3))
	require.Equal(t, []int{1, 2}, b.Rows())
	require.Equal(t, 2, b.Len())
	require.True(t, b.Full())
}

func TestRowBatchReset(t *testing.T) {
	b := NewRowBatch[int](2)
	b.Append(1)
	b.Append(2)
	require.False(t, b.Append(3))
	b.Reset()
	require.Equal(t, 0, b.Len())
	require.False(t, b.Full())
	require.True(t, b.Append(3))
	require.Equal(t, []int{3}, b.Rows())
}
