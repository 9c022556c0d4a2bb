package ranking

import (
	"context"
	"time"

	"github.com/elonfeng/toolrank/internal/store"
	"github.com/elonfeng/toolrank/pkg/scoring"
	"github.com/elonfeng/toolrank/pkg/stage"
)

// Category popularity blend. Fixed constants, unlike the hybrid and
// quality-gate weights: this rollup feeds browse ordering, not scoring
// policy, and has never needed tuning.
const (
	catVisitsWeight  = 0.4
	catReviewsWeight = 0.2
	catRatingWeight  = 0.3
	catCountWeight   = 0.1
)

type categoryAgg struct {
	count     int
	visits    int
	reviews   int
	ratingSum float64
}

// AggregateCategories rolls tool metrics up to one popularity row per
// category for the current period. Tools with no resolvable category are
// left out of every aggregate.
func (o *Orchestrator) AggregateCategories(ctx context.Context, now time.Time) (*stage.Result, error) {
	tools, err := o.store.ListTools(ctx)
	if err != nil {
		return nil, err
	}

	aggs := make(map[string]*categoryAgg)
	for _, t := range tools {
		if t.Category == "" {
			continue
		}
		a := aggs[t.Category]
		if a == nil {
			a = &categoryAgg{}
			aggs[t.Category] = a
		}
		a.count++
		a.visits += t.Visits
		a.reviews += t.ReviewsCount
		a.ratingSum += t.AvgRating
	}

	// Per-run maxima across categories; each dimension is normalized
	// against the best category this run.
	var maxVisits, maxReviews, maxCount int
	var maxRating float64
	for _, a := range aggs {
		avg := a.ratingSum / float64(a.count)
		if a.visits > maxVisits {
			maxVisits = a.visits
		}
		if a.reviews > maxReviews {
			maxReviews = a.reviews
		}
		if a.count > maxCount {
			maxCount = a.count
		}
		if avg > maxRating {
			maxRating = avg
		}
	}

	res := &stage.Result{}
	period := ISOWeekStart(now)

	for category, a := range aggs {
		res.Total++
		avgRating := a.ratingSum / float64(a.count)

		popularity := scoring.NormalizeLinear(float64(a.visits), float64(maxVisits))*catVisitsWeight +
			scoring.NormalizeLinear(float64(a.reviews), float64(maxReviews))*catReviewsWeight +
			scoring.NormalizeLinear(avgRating, maxRating)*catRatingWeight +
			scoring.NormalizeLinear(float64(a.count), float64(maxCount))*catCountWeight

		row := &store.CategoryPopularity{
			Category:     category,
			Period:       period,
			ToolCount:    a.count,
			TotalVisits:  a.visits,
			TotalReviews: a.reviews,
			AvgRating:    avgRating,
			Popularity:   scoring.Clamp(popularity),
		}
		if err := o.store.UpsertCategoryPopularity(ctx, row); err != nil {
			res.Errorf("category %s: %v", category, err)
			continue
		}
		res.Updated++
	}

	return res, nil
}
