package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/go-i2p/respool/lib/errors"
	"github.com/go-i2p/respool/lib/pool"
)

// loadConfig controls the synthetic workload.
type loadConfig struct {
	Workers    int
	Iterations int
	Hold       time.Duration
	Dial       time.Duration // setup time of a memory connection
}

// loadResult summarises a finished workload.
type loadResult struct {
	Succeeded uint64
	TimedOut  uint64
	Failed    uint64
	Elapsed   time.Duration
}

// runLoad starts Workers goroutines that each perform Iterations scoped
// acquisitions, calling use and then holding the resource for Hold.
func runLoad[R comparable](ctx context.Context, logger *slog.Logger, p *pool.Pool[R], lc loadConfig, use func(context.Context, R) error) loadResult {
	var wg sync.WaitGroup
	var succeeded, timedOut, failed atomic.Uint64

	start := time.Now()
	for w := 0; w < lc.Workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < lc.Iterations; i++ {
				if ctx.Err() != nil {
					return
				}
				err := p.Do(ctx, func(ctx context.Context, r R) error {
					if err := use(ctx, r); err != nil {
						return err
					}
					return hold(ctx, lc.Hold)
				})
				switch {
				case err == nil:
					succeeded.Add(1)
				case apperrors.IsRetriable(err):
					timedOut.Add(1)
					logger.Debug("acquire timed out, retrying", "worker", worker, "iteration", i)
				case ctx.Err() != nil:
					return
				default:
					failed.Add(1)
					logger.Warn("iteration failed", "worker", worker, "iteration", i, "error", err)
				}
			}
		}(w)
	}
	wg.Wait()

	return loadResult{
		Succeeded: succeeded.Load(),
		TimedOut:  timedOut.Load(),
		Failed:    failed.Load(),
		Elapsed:   time.Since(start),
	}
}

func hold(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// watchMetrics publishes pool gauges every interval until ctx is done.
func watchMetrics[R comparable](ctx context.Context, p *pool.Pool[R], interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pool.UpdateMetrics(p.Stats())
		}
	}
}

// printReport writes the workload result and final pool statistics.
func printReport[R comparable](w io.Writer, p *pool.Pool[R], res loadResult) {
	s := p.Stats()
	fmt.Fprintln(w, p)
	fmt.Fprintf(w, "elapsed=%s succeeded=%d timed_out=%d failed=%d\n",
		res.Elapsed.Round(time.Millisecond), res.Succeeded, res.TimedOut, res.Failed)
	fmt.Fprintf(w, "created=%d idle=%d active=%d waiting=%d\n",
		s.Created, s.Idle, s.Active, s.Waiting)
	fmt.Fprintf(w, "acquires=%d ok=%d failed=%d timeouts=%d factory_errors=%d releases=%d unknown_releases=%d\n",
		s.AcquireCount, s.AcquireSuccess, s.AcquireFailed, s.Timeouts, s.FactoryErrors, s.ReleaseCount, s.UnknownReleases)
}
