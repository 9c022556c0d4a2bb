package ranking

import (
	"context"
	"time"

	"github.com/elonfeng/toolrank/pkg/stage"
)

// Trend directions. Rank numbers and directions run opposite ways: a tool
// whose rank number got smaller moved up.
const (
	TrendUp     = "up"
	TrendDown   = "down"
	TrendStable = "stable"
	TrendNew    = "new"
)

// trendLookbackDays is the exact snapshot offset compared against, not a
// rolling window.
const trendLookbackDays = 7

// ComputeTrends compares each tool's rank in today's snapshot against its
// snapshot exactly seven days earlier and persists direction and magnitude.
// Tools without a snapshot today are skipped (the ranking stage has not run
// yet); tools without a reachable prior snapshot are new.
func (o *Orchestrator) ComputeTrends(ctx context.Context, now time.Time) (*stage.Result, error) {
	tools, err := o.store.ListTools(ctx)
	if err != nil {
		return nil, err
	}

	today := now.UTC().Format(dateLayout)
	prior := now.UTC().AddDate(0, 0, -trendLookbackDays).Format(dateLayout)

	res := &stage.Result{}
	for _, t := range tools {
		res.Total++

		cur, err := o.store.GetTrendSnapshot(ctx, t.ID, today)
		if err != nil {
			res.Errorf("tool %s: %v", t.Slug, err)
			continue
		}
		if cur == nil {
			res.Skipped++
			continue
		}

		oldRank := 0
		prev, err := o.store.GetTrendSnapshot(ctx, t.ID, prior)
		if err != nil {
			res.Errorf("tool %s: %v", t.Slug, err)
			continue
		}
		if prev != nil {
			oldRank = prev.Rank
		}

		direction, magnitude := Trend(oldRank, cur.Rank)
		if err := o.store.UpdateToolTrend(ctx, t.ID, direction, magnitude); err != nil {
			res.Errorf("tool %s: %v", t.Slug, err)
			continue
		}
		res.Updated++
	}

	return res, nil
}

// Trend derives direction and magnitude from a rank pair. oldRank <= 0 means
// no prior snapshot exists and the tool is new. Otherwise the delta is
// oldRank - newRank: positive means the rank number shrank, which is a move
// up the board.
func Trend(oldRank, newRank int) (string, int) {
	if oldRank <= 0 {
		return TrendNew, 0
	}
	delta := oldRank - newRank
	switch {
	case delta > 0:
		return TrendUp, delta
	case delta < 0:
		return TrendDown, -delta
	default:
		return TrendStable, 0
	}
}
