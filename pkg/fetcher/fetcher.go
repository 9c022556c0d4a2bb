// Package fetcher contains the per-provider signal adapters. Each fetcher
// pulls one external feed, resolves items onto catalog tools, and upserts
// normalized 0-100 scores. Fetchers are stateless between runs; re-invoking
// one is always safe because every write is a natural-key upsert.
package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/elonfeng/toolrank/internal/store"
	"github.com/elonfeng/toolrank/pkg/match"
	"github.com/elonfeng/toolrank/pkg/stage"
)

// Fetcher is the contract every provider adapter implements. Fetch returns a
// non-nil error only for failures before item iteration starts (missing
// credential, non-OK top-level response); per-item failures are recorded in
// the Result and iteration continues.
type Fetcher interface {
	SourceKey() string
	Fetch(ctx context.Context) (*stage.Result, error)
}

// Run executes one fetcher with run_log bookkeeping.
func Run(ctx context.Context, s store.Store, f Fetcher) *stage.Result {
	return stage.Run(ctx, s, f.SourceKey(), f.Fetch)
}

// throttle sleeps for the fixed inter-call delay, returning early only when
// the context is cancelled. Providers are polled strictly sequentially; this
// is a hard rate-limit safeguard, not a tunable.
func throttle(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// loadMatcher builds the per-run name matcher from the current catalog.
func loadMatcher(ctx context.Context, s store.Store) (*match.Matcher, []store.Tool, error) {
	tools, err := s.ListTools(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load tool cache: %w", err)
	}

	entries := make([]match.Entry, 0, len(tools))
	for _, t := range tools {
		entries = append(entries, match.Entry{
			ToolID:  t.ID,
			Name:    t.Name,
			Slug:    t.Slug,
			Aliases: t.Aliases,
		})
	}
	return match.New(entries), tools, nil
}
