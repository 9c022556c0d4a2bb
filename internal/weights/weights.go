// Package weights resolves named scoring parameters with a two-tier lookup:
// a value stored in weight_config wins, otherwise the builtin default applies.
// A resolver is built once per pipeline run; nothing is re-read mid-run.
package weights

import (
	"context"

	"github.com/elonfeng/toolrank/internal/store"
)

// Weight categories.
const (
	CategoryHybrid      = "hybrid"
	CategoryRating      = "rating_aggregation"
	CategoryQualityGate = "quality_gate"
)

// builtinDefaults is the fallback tier. Every parameter the pipeline reads
// has an entry here, so a fresh database ranks with sane behavior.
var builtinDefaults = map[string]map[string]float64{
	CategoryHybrid: {
		"internal_weight": 0.4,
		"external_weight": 0.6,
	},
	CategoryRating: {
		"visits_weight":    0.4,
		"reviews_weight":   0.2,
		"bookmarks_weight": 0.2,
		"upvotes_weight":   0.2,
		"rating_scale":     5,
	},
	CategoryQualityGate: {
		"min_votes":       50,
		"min_stars":       100,
		"max_issue_ratio": 0.5,
		"pass_threshold":  3,
		"top_rank_window": 3,
		"votes_ref":       500,
		"stars_ref":       2000,
	},
}

// Resolver answers weight lookups for one run.
type Resolver struct {
	stored map[string]map[string]float64
}

// Load reads all persisted weight rows once and returns a resolver over them.
func Load(ctx context.Context, s store.Store) (*Resolver, error) {
	rows, err := s.ListWeights(ctx, "")
	if err != nil {
		return nil, err
	}
	return FromRows(rows), nil
}

// FromRows builds a resolver from explicit rows, bypassing persistence.
func FromRows(rows []store.WeightRow) *Resolver {
	stored := make(map[string]map[string]float64)
	for _, row := range rows {
		if stored[row.Category] == nil {
			stored[row.Category] = make(map[string]float64)
		}
		stored[row.Category][row.Key] = row.Value
	}
	return &Resolver{stored: stored}
}

// Resolve returns the stored value for (category, key), or the builtin
// default when no row exists. Unknown parameters resolve to 0.
func (r *Resolver) Resolve(category, key string) float64 {
	if cat, ok := r.stored[category]; ok {
		if v, ok := cat[key]; ok {
			return v
		}
	}
	if cat, ok := builtinDefaults[category]; ok {
		return cat[key]
	}
	return 0
}

// Category returns the fully resolved parameter set for one category:
// builtin defaults overlaid with any stored rows.
func (r *Resolver) Category(category string) map[string]float64 {
	out := make(map[string]float64)
	for k, v := range builtinDefaults[category] {
		out[k] = v
	}
	for k, v := range r.stored[category] {
		out[k] = v
	}
	return out
}
