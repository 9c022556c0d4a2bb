package scheduler

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/elonfeng/toolrank/internal/store"
	"github.com/elonfeng/toolrank/pkg/fetcher"
	"github.com/elonfeng/toolrank/pkg/gate"
	"github.com/elonfeng/toolrank/pkg/ranking"
	"github.com/elonfeng/toolrank/pkg/stage"
)

// Scheduler periodically triggers the pipeline stages. Each tick runs the
// same stateless batch jobs the HTTP endpoints expose; the scheduler adds
// nothing but timing.
type Scheduler struct {
	store    store.Store
	fetchers []fetcher.Fetcher
	gate     *gate.Gate
	ranker   *ranking.Orchestrator
	syncInt  time.Duration
	rankInt  time.Duration
}

// New creates a new scheduler.
func New(s store.Store, fetchers []fetcher.Fetcher, g *gate.Gate, r *ranking.Orchestrator, syncInt, rankInt time.Duration) *Scheduler {
	if syncInt == 0 {
		syncInt = 6 * time.Hour
	}
	if rankInt == 0 {
		rankInt = 24 * time.Hour
	}
	return &Scheduler{
		store:    s,
		fetchers: fetchers,
		gate:     g,
		ranker:   r,
		syncInt:  syncInt,
		rankInt:  rankInt,
	}
}

// Run starts the scheduler loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	syncTicker := time.NewTicker(s.syncInt)
	rankTicker := time.NewTicker(s.rankInt)
	defer syncTicker.Stop()
	defer rankTicker.Stop()

	// Run immediately on start.
	fmt.Fprintln(os.Stderr, "scheduler: initial sync...")
	s.syncAll(ctx)
	fmt.Fprintln(os.Stderr, "scheduler: initial ranking...")
	s.rankAll(ctx)

	fmt.Fprintf(os.Stderr, "scheduler: running (sync every %s, rank every %s)\n",
		s.syncInt, s.rankInt)

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "scheduler: stopped")
			return ctx.Err()
		case <-syncTicker.C:
			fmt.Fprintln(os.Stderr, "scheduler: syncing...")
			s.syncAll(ctx)
		case <-rankTicker.C:
			fmt.Fprintln(os.Stderr, "scheduler: ranking...")
			s.rankAll(ctx)
		}
	}
}

// syncAll runs every fetcher sequentially, then evaluates any candidates the
// discovery pass produced.
func (s *Scheduler) syncAll(ctx context.Context) {
	for _, f := range s.fetchers {
		res := fetcher.Run(ctx, s.store, f)
		logResult(f.SourceKey(), res)
	}

	res := stage.Run(ctx, s.store, gate.SourceKey, s.gate.Evaluate)
	logResult(gate.SourceKey, res)
}

// rankAll recomputes scores, then derives trends and category rollups from
// the fresh snapshots.
func (s *Scheduler) rankAll(ctx context.Context) {
	now := time.Now().UTC()

	res := stage.Run(ctx, s.store, ranking.SourceKey, func(ctx context.Context) (*stage.Result, error) {
		return s.ranker.Recompute(ctx, now)
	})
	logResult(ranking.SourceKey, res)

	res = stage.Run(ctx, s.store, ranking.TrendSourceKey, func(ctx context.Context) (*stage.Result, error) {
		return s.ranker.ComputeTrends(ctx, now)
	})
	logResult(ranking.TrendSourceKey, res)

	res = stage.Run(ctx, s.store, ranking.CategorySourceKey, func(ctx context.Context) (*stage.Result, error) {
		return s.ranker.AggregateCategories(ctx, now)
	})
	logResult(ranking.CategorySourceKey, res)
}

func logResult(key string, res *stage.Result) {
	fmt.Fprintf(os.Stderr, "  %s: total=%d updated=%d skipped=%d errors=%d\n",
		key, res.Total, res.Updated, res.Skipped, len(res.Errors))
	for _, e := range res.Errors {
		fmt.Fprintf(os.Stderr, "    %s\n", e)
	}
}
