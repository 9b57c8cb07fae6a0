package hub

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/halcyon-automation/meridian/meta"
	"github.com/halcyon-automation/meridian/security"
	"github.com/halcyon-automation/meridian/state"
)

// PropertyRead is one addr/property pair's read result from BatchRead.
type PropertyRead struct {
	Address  meta.Address
	Property string
	Value    meta.Value
	Quality  state.Quality
	Err      error
}

// PropertyWrite is one addr/property/value triple to apply in BatchWrite.
type PropertyWrite struct {
	Address  meta.Address
	Property string
	Value    meta.Value
}

// BatchRead reads every requested (address, property) pair concurrently,
// bounded by cfg.BatchParallelism, per spec.md §4.7. A per-item failure is
// reported in that item's Err field rather than aborting the batch.
func (h *Hub) BatchRead(ctx context.Context, principal security.Principal, reqs []PropertyRead) []PropertyRead {
	out := make([]PropertyRead, len(reqs))
	sem := semaphore.NewWeighted(int64(h.parallelism()))
	g, gctx := errgroup.WithContext(ctx)

	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				out[i] = PropertyRead{Address: req.Address, Property: req.Property, Err: err}
				return nil
			}
			defer sem.Release(1)

			rt, err := h.lookup(req.Address)
			if err != nil {
				out[i] = PropertyRead{Address: req.Address, Property: req.Property, Err: classify(err)}
				return nil
			}
			v, q, err := rt.ReadProperty(gctx, principal, req.Property)
			out[i] = PropertyRead{Address: req.Address, Property: req.Property, Value: v, Quality: q, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// BatchWrite applies every requested write concurrently, bounded by
// cfg.BatchParallelism, and returns a per-item error slice aligned with
// reqs (nil where the write succeeded). Writes are independent of each other:
// one failing does not prevent the others from applying.
func (h *Hub) BatchWrite(ctx context.Context, principal security.Principal, reqs []PropertyWrite) []error {
	errs := make([]error, len(reqs))
	sem := semaphore.NewWeighted(int64(h.parallelism()))
	g, gctx := errgroup.WithContext(ctx)

	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				errs[i] = err
				return nil
			}
			defer sem.Release(1)

			rt, err := h.lookup(req.Address)
			if err != nil {
				errs[i] = classify(err)
				return nil
			}
			errs[i] = rt.WriteProperty(gctx, principal, req.Property, req.Value)
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

func (h *Hub) parallelism() int {
	if h.cfg.BatchParallelism <= 0 {
		return 1
	}
	return h.cfg.BatchParallelism
}
