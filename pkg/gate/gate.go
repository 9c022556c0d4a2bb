// Package gate scores newly discovered candidates and decides whether they
// are promoted into the catalog.
package gate

import (
	"context"
	"sort"

	"github.com/elonfeng/toolrank/internal/store"
	"github.com/elonfeng/toolrank/internal/weights"
	"github.com/elonfeng/toolrank/pkg/scoring"
	"github.com/elonfeng/toolrank/pkg/stage"
)

// SourceKey is the run_log key for gate runs.
const SourceKey = "quality_gate"

// Gate evaluates pending candidates against the quality criteria.
type Gate struct {
	store store.Store
}

// New creates a quality gate over the given store.
func New(s store.Store) *Gate {
	return &Gate{store: s}
}

// Evaluate runs every pending candidate through the five criteria and either
// merges it into the catalog or rejects it. Candidates that carry no metrics
// at all are left pending rather than judged. Rejection is terminal; rejected
// candidates are never picked up again because only pending ones are loaded.
func (g *Gate) Evaluate(ctx context.Context) (*stage.Result, error) {
	resolver, err := weights.Load(ctx, g.store)
	if err != nil {
		return nil, err
	}
	w := resolver.Category(weights.CategoryQualityGate)

	candidates, err := g.store.ListCandidates(ctx, store.CandidatePending)
	if err != nil {
		return nil, err
	}

	tools, err := g.store.ListTools(ctx)
	if err != nil {
		return nil, err
	}

	// One in-memory scan per batch: hybrid scores per category, sorted
	// descending, instead of a rank query per candidate.
	scoresByCategory := make(map[string][]float64)
	for _, t := range tools {
		scoresByCategory[t.Category] = append(scoresByCategory[t.Category], t.HybridScore)
	}
	for _, scores := range scoresByCategory {
		sort.Sort(sort.Reverse(sort.Float64Slice(scores)))
	}

	res := &stage.Result{}
	for _, c := range candidates {
		res.Total++

		// Discovery inserts whatever the feed carried. A candidate with no
		// measurable signal yet has not reached the gate; it stays pending
		// until enrichment gives it something to judge.
		if c.Votes == 0 && c.Stars == 0 && !c.HasBenchmark {
			res.Skipped++
			continue
		}

		quality := QualityScore(c, w)
		met := criteriaMet(c, quality, scoresByCategory[c.Category], w)

		if float64(met) < w["pass_threshold"] {
			if err := g.store.UpdateCandidateResult(ctx, c.ID, store.CandidateRejected, quality); err != nil {
				res.Errorf("reject %s: %v", c.Slug, err)
				continue
			}
			res.Skipped++
			continue
		}

		if err := g.store.UpdateCandidateResult(ctx, c.ID, store.CandidateApproved, quality); err != nil {
			res.Errorf("approve %s: %v", c.Slug, err)
			continue
		}
		if err := g.merge(ctx, c); err != nil {
			res.Errorf("merge %s: %v", c.Slug, err)
			continue
		}
		res.Updated++
	}

	return res, nil
}

// QualityScore blends a candidate's discovery metrics into a 0-100 score
// used both for gating and for the projected category rank.
func QualityScore(c store.Candidate, w map[string]float64) float64 {
	votes := scoring.NormalizeLinear(float64(c.Votes), w["votes_ref"])
	stars := scoring.NormalizeLinear(float64(c.Stars), w["stars_ref"])
	bench := 0.0
	if c.HasBenchmark {
		bench = 100
	}
	return scoring.Clamp(votes*0.4 + stars*0.4 + bench*0.2)
}

// criteriaMet counts how many of the five independent criteria pass.
func criteriaMet(c store.Candidate, quality float64, categoryScores []float64, w map[string]float64) int {
	met := 0

	if float64(c.Votes) >= w["min_votes"] {
		met++
	}
	if float64(c.Stars) >= w["min_stars"] {
		met++
	}
	if c.HasBenchmark {
		met++
	}
	if issueRatioOK(c, w["max_issue_ratio"]) {
		met++
	}
	if projectsTopOfCategory(quality, categoryScores, int(w["top_rank_window"])) {
		met++
	}

	return met
}

// issueRatioOK checks open issues against repository size. A repo with no
// stars has no traction to judge against, so it passes only when it also
// has no open issues.
func issueRatioOK(c store.Candidate, maxRatio float64) bool {
	if c.Stars == 0 {
		return c.OpenIssues == 0
	}
	return float64(c.OpenIssues)/float64(c.Stars) <= maxRatio
}

// projectsTopOfCategory reports whether the candidate's quality score would
// place it inside the top window of its category. Existing tools that tie
// the candidate's score count as ahead of it: they were created first and
// keep their position.
func projectsTopOfCategory(quality float64, categoryScores []float64, window int) bool {
	ahead := 0
	for _, s := range categoryScores {
		if s >= quality {
			ahead++
		}
	}
	return ahead < window
}

// merge promotes an approved candidate into the tools table. The insert
// skips silently when the slug already exists, so replays cannot duplicate
// a tool; either way the candidate ends up merged.
func (g *Gate) merge(ctx context.Context, c store.Candidate) error {
	t := &store.Tool{
		Slug:             c.Slug,
		Name:             c.Name,
		URL:              c.URL,
		RepoURL:          c.RepoURL,
		Category:         c.Category,
		HasBenchmarkData: c.HasBenchmark,
	}
	if _, err := g.store.CreateTool(ctx, t); err != nil {
		return err
	}
	return g.store.MarkCandidateMerged(ctx, c.ID)
}
