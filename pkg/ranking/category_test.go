package ranking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/toolrank/internal/store"
)

func TestAggregateCategories(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)

	seedTool(t, s, store.Tool{Slug: "a", Name: "A", Category: "assistants", Visits: 800, ReviewsCount: 40, AvgRating: 4.5})
	seedTool(t, s, store.Tool{Slug: "b", Name: "B", Category: "assistants", Visits: 200, ReviewsCount: 10, AvgRating: 4.0})
	seedTool(t, s, store.Tool{Slug: "c", Name: "C", Category: "coding", Visits: 500, ReviewsCount: 25, AvgRating: 3.0})
	// No category: excluded from every aggregate.
	seedTool(t, s, store.Tool{Slug: "d", Name: "D", Visits: 9999})

	res, err := New(s).AggregateCategories(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 2, res.Updated)
	assert.Empty(t, res.Errors)

	rows, err := s.ListCategoryPopularity(ctx, "2026-08-24")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byCategory := make(map[string]store.CategoryPopularity)
	for _, r := range rows {
		byCategory[r.Category] = r
	}

	assistants := byCategory["assistants"]
	assert.Equal(t, 2, assistants.ToolCount)
	assert.Equal(t, 1000, assistants.TotalVisits)
	assert.Equal(t, 50, assistants.TotalReviews)
	assert.InDelta(t, 4.25, assistants.AvgRating, 1e-9)

	coding := byCategory["coding"]
	assert.Equal(t, 1, coding.ToolCount)
	assert.Equal(t, 500, coding.TotalVisits)

	// assistants leads every dimension, so it scores the full blend.
	assert.InDelta(t, 100.0, assistants.Popularity, 1e-9)
	assert.Greater(t, assistants.Popularity, coding.Popularity)
}

func TestAggregateCategoriesReRunOverwrites(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)

	seedTool(t, s, store.Tool{Slug: "a", Name: "A", Category: "assistants", Visits: 100})

	o := New(s)
	_, err := o.AggregateCategories(ctx, now)
	require.NoError(t, err)
	_, err = o.AggregateCategories(ctx, now.Add(time.Hour))
	require.NoError(t, err)

	rows, err := s.ListCategoryPopularity(ctx, "2026-08-24")
	require.NoError(t, err)
	assert.Len(t, rows, 1, "re-running within a period updates in place")
}
