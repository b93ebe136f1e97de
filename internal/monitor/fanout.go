package monitor

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// StatsResult is the stats sample of one container or the error that prevented it.
type StatsResult struct {
	Stats Stats
	Err   error
}

// StatsAll samples every container concurrently. Each call gets its own
// timeout, and a slow or failing container never affects the others.
func StatsAll(ctx context.Context, adapter Adapter, ids []string, timeout time.Duration, limit int) map[string]StatsResult {
	out := make(map[string]StatsResult, len(ids))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, id := range ids {
		g.Go(func() error {
			callCtx := gctx
			if timeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(gctx, timeout)
				defer cancel()
			}
			st, err := adapter.Stats(callCtx, id)
			mu.Lock()
			out[id] = StatsResult{Stats: st, Err: err}
			mu.Unlock()
			// Per-container failures are reported in the result, not to the group.
			return nil
		})
	}
	_ = g.Wait()
	return out
}
