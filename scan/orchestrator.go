// Package scan provides the variant-claim-based worker pool and
// fixed-capacity row batch every kernel builds its parallel scan on top
// of.
package scan

import (
	"context"
	"sync/atomic"

	grailerrors "github.com/grailbio/base/errors"
	"v.io/x/lib/vlog"

	"github.com/teaguesterling/plinking-duck/metadata"
)

// ClaimCursor hands out contiguous batches of variant indices to worker
// goroutines via a single atomic counter: instead of pulling a whole
// shard off a channel, each worker fetch-adds its own next batch directly
// off the cursor, so batch size (not shard count) controls claim
// granularity.
type ClaimCursor struct {
	next uint32
	end  uint32
}

// NewClaimCursor starts a cursor over rng.
func NewClaimCursor(rng metadata.VariantRange) *ClaimCursor {
	return &ClaimCursor{next: rng.Start, end: rng.End}
}

// Claim atomically reserves up to batchSize variant indices, returning the
// half-open range claimed and whether anything was left to claim.
func (c *ClaimCursor) Claim(batchSize uint32) (metadata.VariantRange, bool) {
	if batchSize == 0 {
		batchSize = 1
	}
	for {
		start := atomic.LoadUint32(&c.next)
		if start >= c.end {
			return metadata.VariantRange{}, false
		}
		end := start + batchSize
		if end > c.end {
			end = c.end
		}
		if atomic.CompareAndSwapUint32(&c.next, start, end) {
			return metadata.VariantRange{Start: start, End: end}, true
		}
	}
}

// DefaultBatchSize is the number of variants each worker claims per
// fetch-add, chosen to amortize atomic-op overhead without starving other
// workers near the end of the range.
const DefaultBatchSize = 64

// Orchestrator runs a parallel scan over a variant range: Workers
// goroutines each claim batches from a shared ClaimCursor and invoke
// Process for every variant index in the batch, in no particular
// cross-worker order. The first error from any worker wins and stops the
// scan at the next batch boundary (cooperative: in-flight Process calls
// in other workers still finish their current batch).
type Orchestrator struct {
	Range     metadata.VariantRange
	Workers   int
	BatchSize uint32
}

// MaxWorkers is the parallelism ceiling beyond which more goroutines just
// add claim-contention without shortening the scan.
const MaxWorkers = 16

// VariantsPerWorker is the range size that earns a scan one more worker,
// so a handful of variants doesn't pay for 16 idle goroutines.
const VariantsPerWorker = 500

// DefaultWorkers sizes a scan's worker pool off the range itself rather
// than the host's core count: min(rangeSize/VariantsPerWorker + 1,
// MaxWorkers). A range of a few hundred variants runs on one or two
// workers regardless of how many cores the machine has; claim contention,
// not CPU availability, is what bounds usefulness here.
func DefaultWorkers(rng metadata.VariantRange) int {
	n := rng.Len()/VariantsPerWorker + 1
	if n > MaxWorkers {
		n = MaxWorkers
	}
	return n
}

// NewOrchestrator builds an Orchestrator with sensible defaults; Workers
// defaults per DefaultWorkers, BatchSize to DefaultBatchSize.
func NewOrchestrator(rng metadata.VariantRange) *Orchestrator {
	return &Orchestrator{Range: rng, Workers: DefaultWorkers(rng), BatchSize: DefaultBatchSize}
}

// Run spawns o.Workers goroutines, each built via newWorker (which should
// open its own exclusive decoder Reader), and calls process(vidx) for
// every claimed variant index. process implementations must be safe to
// call concurrently across different vidx values from different workers,
// but are never called concurrently for the same worker index — each
// worker index w in [0, Workers) gets its own sequential call stream, so
// per-worker scratch state (a *pgen.Reader, a kernel accumulator) needs no
// locking.
func (o *Orchestrator) Run(ctx context.Context, newWorker func(workerIdx int) (func(vidx uint32) error, func() error)) error {
	workers := o.Workers
	if workers <= 0 {
		workers = 1
	}
	batchSize := o.BatchSize
	if batchSize == 0 {
		batchSize = DefaultBatchSize
	}

	cursor := NewClaimCursor(o.Range)
	var aggErr grailerrors.Once

	done := make(chan struct{}, workers)
	for w := 0; w < workers; w++ {
		go func(workerIdx int) {
			defer func() { done <- struct{}{} }()
			process, closeWorker := newWorker(workerIdx)
			defer func() {
				if closeWorker != nil {
					if err := closeWorker(); err != nil {
						aggErr.Set(err)
					}
				}
			}()
			for {
				select {
				case <-ctx.Done():
					aggErr.Set(ctx.Err())
					return
				default:
				}
				if aggErr.Err() != nil {
					return
				}
				batch, ok := cursor.Claim(batchSize)
				if !ok {
					return
				}
				for vidx := batch.Start; vidx < batch.End; vidx++ {
					if err := process(vidx); err != nil {
						vlog.Errorf("scan: worker %d: variant %d: %v", workerIdx, vidx, err)
						aggErr.Set(err)
						return
					}
				}
			}
		}(w)
	}
	for w := 0; w < workers; w++ {
		<-done
	}
	return aggErr.Err()
}
