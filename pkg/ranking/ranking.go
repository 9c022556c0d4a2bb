// Package ranking recomputes every tool's hybrid score, assigns ranks, and
// maintains the snapshot history that trend and category rollups read.
package ranking

import (
	"context"
	"sort"
	"time"

	"github.com/elonfeng/toolrank/internal/store"
	"github.com/elonfeng/toolrank/internal/weights"
	"github.com/elonfeng/toolrank/pkg/scoring"
	"github.com/elonfeng/toolrank/pkg/stage"
)

// Run_log keys for the ranking-side stages.
const (
	SourceKey         = "ranking"
	TrendSourceKey    = "trend"
	CategorySourceKey = "category_popularity"
)

const dateLayout = "2006-01-02"

// Orchestrator drives the ranking recompute and its downstream calculators.
type Orchestrator struct {
	store store.Store
}

// New creates a ranking orchestrator over the given store.
func New(s store.Store) *Orchestrator {
	return &Orchestrator{store: s}
}

type scored struct {
	tool     store.Tool
	internal float64
	external float64
	sources  int
	hybrid   float64
}

// Recompute re-derives every tool's hybrid score from scratch, sorts, ranks
// and persists, then appends one immutable weekly and daily snapshot row per
// tool. The full recompute is deliberate: the catalog is hundreds of
// entries, and recomputing everything keeps scores comparable within a run.
func (o *Orchestrator) Recompute(ctx context.Context, now time.Time) (*stage.Result, error) {
	resolver, err := weights.Load(ctx, o.store)
	if err != nil {
		return nil, err
	}
	hybridW := resolver.Category(weights.CategoryHybrid)
	ratingW := resolver.Category(weights.CategoryRating)

	tools, err := o.store.ListTools(ctx)
	if err != nil {
		return nil, err
	}

	extScores, err := o.store.ListExternalScores(ctx)
	if err != nil {
		return nil, err
	}
	byTool := make(map[int64][]float64)
	for _, es := range extScores {
		byTool[es.ToolID] = append(byTool[es.ToolID], es.NormalizedScore)
	}

	// Engagement maxima for this run; internal scores are relative to them.
	var maxima scoring.Engagement
	for _, t := range tools {
		maxima.Max(scoring.Engagement{
			Visits:    t.Visits,
			Reviews:   t.ReviewsCount,
			Bookmarks: t.Bookmarks,
			Upvotes:   t.Upvotes,
		})
	}

	ranked := make([]scored, 0, len(tools))
	for _, t := range tools {
		internal := scoring.InternalScore(scoring.Engagement{
			Visits:    t.Visits,
			Reviews:   t.ReviewsCount,
			Bookmarks: t.Bookmarks,
			Upvotes:   t.Upvotes,
		}, maxima, ratingW)

		available := byTool[t.ID]
		external := scoring.ExternalScore(available)
		hybrid := scoring.Hybrid(internal, external, hybridW)

		ranked = append(ranked, scored{
			tool:     t,
			internal: internal,
			external: external,
			sources:  len(available),
			hybrid:   hybrid,
		})
	}

	// Descending by hybrid score; equal scores keep creation order (tool id)
	// so ranks are stable across identical runs.
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].hybrid != ranked[j].hybrid {
			return ranked[i].hybrid > ranked[j].hybrid
		}
		return ranked[i].tool.ID < ranked[j].tool.ID
	})

	res := &stage.Result{}
	weekStart := ISOWeekStart(now)
	day := now.Format(dateLayout)

	for i, r := range ranked {
		res.Total++
		rank := i + 1

		if err := o.store.UpdateToolScores(ctx, r.tool.ID, r.internal, r.external, r.sources, r.hybrid, rank); err != nil {
			res.Errorf("tool %s: %v", r.tool.Slug, err)
			continue
		}
		if err := o.store.InsertWeeklyRanking(ctx, r.tool.ID, weekStart, rank, r.hybrid); err != nil {
			res.Errorf("weekly snapshot %s: %v", r.tool.Slug, err)
			continue
		}
		if err := o.store.InsertTrendSnapshot(ctx, r.tool.ID, day, rank, r.hybrid); err != nil {
			res.Errorf("daily snapshot %s: %v", r.tool.Slug, err)
			continue
		}
		res.Updated++
	}

	return res, nil
}

// ISOWeekStart returns the Monday of t's ISO week as a date key.
func ISOWeekStart(t time.Time) string {
	t = t.UTC()
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday belongs to the week that started the previous Monday
	}
	return t.AddDate(0, 0, 1-weekday).Format(dateLayout)
}
