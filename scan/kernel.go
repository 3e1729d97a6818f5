package scan

import (
	"context"

	grailerrors "github.com/grailbio/base/errors"
	"v.io/x/lib/vlog"

	"github.com/teaguesterling/plinking-duck/metadata"
)

// Kernel is the polymorphic-over-kernel scan contract: one
// implementation per kernel package (kernel/freq, kernel/hardy, ...),
// driven by the single generic RunKernel function below instead of each
// kernel hand-rolling its own worker pool. Bind (opening the pgen/pvar/
// psam trio and resolving the sample subset) happens before a Kernel is
// constructed, in the cmd package's bind helper; Kernel itself only
// covers the per-scan InitGlobal/InitLocal/Scan sequence.
type Kernel[T any] interface {
	// InitGlobal runs once before any worker starts, resolving the
	// caller's requested output columns into the kernel's own need-flags
	// (e.g. "does this scan need decoded genotypes, or only counts") so
	// that InitLocal and Scan can skip decoder work the caller never
	// asked for. An empty columns slice means "every default column".
	InitGlobal(columns []string) error

	// InitLocal builds one worker's scratch state: a *pgen.Reader and
	// whatever per-worker accumulator or resumable cursor the kernel
	// needs. Called once per worker, before that worker's first Scan.
	InitLocal(workerIdx int) (KernelLocal[T], error)
}

// KernelLocal is one worker's resumable scan loop. RunKernel calls Scan
// repeatedly against the same KernelLocal value and a freshly reset
// batch until it reports done; a kernel that fills the batch before
// exhausting its assigned work returns done=false and must resume
// exactly where it left off on the next call. cursor is shared across
// every worker for this Kernel via atomic claims (ClaimCursor.Claim);
// any kernel-private state that must survive between Scan calls — LD
// windowed's anchor/partner position, most notably — lives inside the
// KernelLocal implementation itself, never in the cursor.
type KernelLocal[T any] interface {
	Scan(ctx context.Context, cursor *ClaimCursor, batch *RowBatch[T]) (done bool, err error)
	Close() error
}

// KernelBatchSize is the default per-Scan-call output batch size for
// kernels that don't have a narrower reason to pick their own (LD
// windowed's anchor-at-a-time claim pattern wants a smaller one; see
// kernel/ld).
const KernelBatchSize = 128

// RunKernel drives k to completion over rng and returns the merged
// result: InitGlobal once, then Workers goroutines each running
// InitLocal followed by repeated Scan calls against their own batch
// until that worker's share of rng is exhausted. Rows are ascending by
// vidx within a worker's contribution; cross-worker ordering in the
// merged result is unspecified — consumers that need a total order must
// sort. The first error from any worker or InitGlobal wins, mirroring
// Orchestrator.Run's grailerrors.Once-based aggregation.
func RunKernel[T any](ctx context.Context, rng metadata.VariantRange, workers int, batchSize int, columns []string, k Kernel[T]) (*RowBatch[T], error) {
	if workers <= 0 {
		workers = DefaultWorkers(rng)
	}
	if batchSize <= 0 {
		batchSize = KernelBatchSize
	}
	if err := k.InitGlobal(columns); err != nil {
		return nil, err
	}

	cursor := NewClaimCursor(rng)
	var aggErr grailerrors.Once
	perWorker := make([][]T, workers)

	done := make(chan struct{}, workers)
	for w := 0; w < workers; w++ {
		go func(workerIdx int) {
			defer func() { done <- struct{}{} }()
			local, err := k.InitLocal(workerIdx)
			if err != nil {
				aggErr.Set(err)
				return
			}
			defer func() {
				if err := local.Close(); err != nil {
					aggErr.Set(err)
				}
			}()

			var acc []T
			batch := NewRowBatch[T](batchSize)
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
				batch.Reset()
				workerDone, err := local.Scan(ctx, cursor, batch)
				acc = append(acc, batch.Rows()...)
				if err != nil {
					vlog.Errorf("scan: worker %d: %v", workerIdx, err)
					aggErr.Set(err)
					return
				}
				if workerDone {
					perWorker[workerIdx] = acc
					return
				}
			}
		}(w)
	}
	for w := 0; w < workers; w++ {
		<-done
	}
	if err := aggErr.Err(); err != nil {
		return nil, err
	}

	total := 0
	for _, rows := range perWorker {
		total += len(rows)
	}
	out := NewRowBatch[T](total)
	for _, rows := range perWorker {
		for _, r := range rows {
			out.Append(r)
		}
	}
	return out, nil
}
