package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Store is the persistence interface for the ranking pipeline.
type Store interface {
	CreateTool(ctx context.Context, t *Tool) (bool, error)
	ListTools(ctx context.Context) ([]Tool, error)
	GetToolBySlug(ctx context.Context, slug string) (*Tool, error)
	UpdateToolScores(ctx context.Context, toolID int64, internal, external float64, sources int, hybrid float64, rank int) error
	UpdateToolTrend(ctx context.Context, toolID int64, direction string, magnitude int) error
	SetToolBenchmarkFlag(ctx context.Context, toolID int64, has bool) error

	UpsertExternalScore(ctx context.Context, s *ExternalScore) error
	ListExternalScores(ctx context.Context) ([]ExternalScore, error)
	UpsertBenchmarkScore(ctx context.Context, b *BenchmarkScore) error
	UpsertPricingData(ctx context.Context, p *PricingData) error

	InsertCandidate(ctx context.Context, c *Candidate) (bool, error)
	ListCandidates(ctx context.Context, status string) ([]Candidate, error)
	UpdateCandidateResult(ctx context.Context, id int64, status string, quality float64) error
	MarkCandidateMerged(ctx context.Context, id int64) error

	ListWeights(ctx context.Context, category string) ([]WeightRow, error)
	SetWeight(ctx context.Context, category, key string, value float64) error

	InsertWeeklyRanking(ctx context.Context, toolID int64, weekStart string, rank int, score float64) error
	InsertTrendSnapshot(ctx context.Context, toolID int64, date string, rank int, score float64) error
	GetTrendSnapshot(ctx context.Context, toolID int64, date string) (*TrendSnapshot, error)
	UpsertCategoryPopularity(ctx context.Context, c *CategoryPopularity) error
	ListCategoryPopularity(ctx context.Context, period string) ([]CategoryPopularity, error)

	StartRun(ctx context.Context, sourceKey string) (int64, error)
	FinishRun(ctx context.Context, runID int64, status string, total, updated, skipped int, errs []string) error
	ListRuns(ctx context.Context, limit int) ([]RunLog, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateTool inserts a new tool. Returns false with no error when the slug
// already exists, which is how candidate merges stay idempotent.
func (s *SQLiteStore) CreateTool(ctx context.Context, t *Tool) (bool, error) {
	aliasesJSON, _ := json.Marshal(t.Aliases)
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO tools (slug, name, url, repo_url, category, aliases, visits, reviews_count,
			avg_rating, bookmarks, upvotes, has_benchmark_data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(slug) DO NOTHING
	`, t.Slug, t.Name, t.URL, t.RepoURL, t.Category, string(aliasesJSON),
		t.Visits, t.ReviewsCount, t.AvgRating, t.Bookmarks, t.Upvotes,
		t.HasBenchmarkData, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("create tool %s: %w", t.Slug, err)
	}

	n, _ := res.RowsAffected()
	if n == 0 {
		return false, nil
	}
	t.ID, _ = res.LastInsertId()
	return true, nil
}

func (s *SQLiteStore) ListTools(ctx context.Context) ([]Tool, error) {
	var tools []Tool
	if err := s.db.SelectContext(ctx, &tools, "SELECT * FROM tools ORDER BY id"); err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}
	for i := range tools {
		json.Unmarshal([]byte(tools[i].AliasesJSON), &tools[i].Aliases)
	}
	return tools, nil
}

func (s *SQLiteStore) GetToolBySlug(ctx context.Context, slug string) (*Tool, error) {
	var t Tool
	err := s.db.GetContext(ctx, &t, "SELECT * FROM tools WHERE slug = ?", slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tool %s: %w", slug, err)
	}
	json.Unmarshal([]byte(t.AliasesJSON), &t.Aliases)
	return &t, nil
}

func (s *SQLiteStore) UpdateToolScores(ctx context.Context, toolID int64, internal, external float64, sources int, hybrid float64, rank int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tools SET internal_score = ?, external_score = ?, external_sources = ?,
			hybrid_score = ?, "rank" = ?, updated_at = ?
		WHERE id = ?
	`, internal, external, sources, hybrid, rank, time.Now().UTC(), toolID)
	if err != nil {
		return fmt.Errorf("update tool scores %d: %w", toolID, err)
	}
	return nil
}

func (s *SQLiteStore) UpdateToolTrend(ctx context.Context, toolID int64, direction string, magnitude int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tools SET trend_direction = ?, trend_magnitude = ?, updated_at = ?
		WHERE id = ?
	`, direction, magnitude, time.Now().UTC(), toolID)
	if err != nil {
		return fmt.Errorf("update tool trend %d: %w", toolID, err)
	}
	return nil
}

func (s *SQLiteStore) SetToolBenchmarkFlag(ctx context.Context, toolID int64, has bool) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE tools SET has_benchmark_data = ?, updated_at = ? WHERE id = ?",
		has, time.Now().UTC(), toolID)
	if err != nil {
		return fmt.Errorf("set benchmark flag %d: %w", toolID, err)
	}
	return nil
}

func (s *SQLiteStore) UpsertExternalScore(ctx context.Context, es *ExternalScore) error {
	es.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tool_external_scores (tool_id, source_key, normalized_score, raw_payload, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(tool_id, source_key) DO UPDATE SET
			normalized_score = excluded.normalized_score,
			raw_payload = excluded.raw_payload,
			updated_at = excluded.updated_at
	`, es.ToolID, es.SourceKey, es.NormalizedScore, es.RawPayload, es.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert external score tool=%d source=%s: %w", es.ToolID, es.SourceKey, err)
	}
	return nil
}

func (s *SQLiteStore) ListExternalScores(ctx context.Context) ([]ExternalScore, error) {
	var scores []ExternalScore
	if err := s.db.SelectContext(ctx, &scores, "SELECT * FROM tool_external_scores ORDER BY tool_id, source_key"); err != nil {
		return nil, fmt.Errorf("list external scores: %w", err)
	}
	return scores, nil
}

func (s *SQLiteStore) UpsertBenchmarkScore(ctx context.Context, b *BenchmarkScore) error {
	b.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tool_benchmark_scores (tool_id, benchmark_source, overall_score, coding_score,
			math_score, reasoning_score, raw_payload, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tool_id, benchmark_source) DO UPDATE SET
			overall_score = excluded.overall_score,
			coding_score = excluded.coding_score,
			math_score = excluded.math_score,
			reasoning_score = excluded.reasoning_score,
			raw_payload = excluded.raw_payload,
			updated_at = excluded.updated_at
	`, b.ToolID, b.BenchmarkSource, b.OverallScore, b.CodingScore,
		b.MathScore, b.ReasoningScore, b.RawPayload, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert benchmark score tool=%d source=%s: %w", b.ToolID, b.BenchmarkSource, err)
	}
	return nil
}

func (s *SQLiteStore) UpsertPricingData(ctx context.Context, p *PricingData) error {
	p.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tool_pricing_data (tool_id, source, input_price, output_price, free, value_score, raw_payload, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tool_id, source) DO UPDATE SET
			input_price = excluded.input_price,
			output_price = excluded.output_price,
			free = excluded.free,
			value_score = excluded.value_score,
			raw_payload = excluded.raw_payload,
			updated_at = excluded.updated_at
	`, p.ToolID, p.Source, p.InputPrice, p.OutputPrice, p.Free, p.ValueScore, p.RawPayload, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert pricing tool=%d source=%s: %w", p.ToolID, p.Source, err)
	}
	return nil
}

// InsertCandidate records a discovery. Returns false with no error when the
// slug is already known (as a candidate in any state), so re-discovery of the
// same tool is a no-op.
func (s *SQLiteStore) InsertCandidate(ctx context.Context, c *Candidate) (bool, error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.Status == "" {
		c.Status = CandidatePending
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO tool_candidates (slug, name, url, repo_url, category, votes, stars, forks,
			open_issues, has_benchmark, status, discovered_from, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(slug) DO NOTHING
	`, c.Slug, c.Name, c.URL, c.RepoURL, c.Category, c.Votes, c.Stars, c.Forks,
		c.OpenIssues, c.HasBenchmark, c.Status, c.DiscoveredFrom, c.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert candidate %s: %w", c.Slug, err)
	}

	n, _ := res.RowsAffected()
	if n == 0 {
		return false, nil
	}
	c.ID, _ = res.LastInsertId()
	return true, nil
}

func (s *SQLiteStore) ListCandidates(ctx context.Context, status string) ([]Candidate, error) {
	query := "SELECT * FROM tool_candidates"
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY id"

	var candidates []Candidate
	if err := s.db.SelectContext(ctx, &candidates, query, args...); err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	return candidates, nil
}

func (s *SQLiteStore) UpdateCandidateResult(ctx context.Context, id int64, status string, quality float64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tool_candidates SET status = ?, quality_score = ?, evaluated_at = ?
		WHERE id = ?
	`, status, quality, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update candidate %d: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) MarkCandidateMerged(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE tool_candidates SET status = ? WHERE id = ?", CandidateMerged, id)
	if err != nil {
		return fmt.Errorf("mark candidate merged %d: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) ListWeights(ctx context.Context, category string) ([]WeightRow, error) {
	query := "SELECT * FROM weight_config"
	var args []any
	if category != "" {
		query += " WHERE category = ?"
		args = append(args, category)
	}

	var rows []WeightRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list weights: %w", err)
	}
	return rows, nil
}

func (s *SQLiteStore) SetWeight(ctx context.Context, category, key string, value float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO weight_config (category, key, value) VALUES (?, ?, ?)
		ON CONFLICT(category, key) DO UPDATE SET value = excluded.value
	`, category, key, value)
	if err != nil {
		return fmt.Errorf("set weight %s.%s: %w", category, key, err)
	}
	return nil
}

// InsertWeeklyRanking appends a weekly snapshot row. Snapshots are history,
// not state: a row that already exists for (tool, week) is left untouched.
func (s *SQLiteStore) InsertWeeklyRanking(ctx context.Context, toolID int64, weekStart string, rank int, score float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO weekly_rankings (tool_id, week_start, "rank", hybrid_score, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(tool_id, week_start) DO NOTHING
	`, toolID, weekStart, rank, score, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert weekly ranking tool=%d week=%s: %w", toolID, weekStart, err)
	}
	return nil
}

func (s *SQLiteStore) InsertTrendSnapshot(ctx context.Context, toolID int64, date string, rank int, score float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trend_snapshots (tool_id, snapshot_date, "rank", hybrid_score, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(tool_id, snapshot_date) DO NOTHING
	`, toolID, date, rank, score, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert trend snapshot tool=%d date=%s: %w", toolID, date, err)
	}
	return nil
}

func (s *SQLiteStore) GetTrendSnapshot(ctx context.Context, toolID int64, date string) (*TrendSnapshot, error) {
	var snap TrendSnapshot
	err := s.db.GetContext(ctx, &snap,
		"SELECT * FROM trend_snapshots WHERE tool_id = ? AND snapshot_date = ?", toolID, date)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get trend snapshot tool=%d date=%s: %w", toolID, date, err)
	}
	return &snap, nil
}

func (s *SQLiteStore) UpsertCategoryPopularity(ctx context.Context, c *CategoryPopularity) error {
	c.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO category_popularity (category, period, tool_count, total_visits, total_reviews, avg_rating, popularity, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(category, period) DO UPDATE SET
			tool_count = excluded.tool_count,
			total_visits = excluded.total_visits,
			total_reviews = excluded.total_reviews,
			avg_rating = excluded.avg_rating,
			popularity = excluded.popularity,
			updated_at = excluded.updated_at
	`, c.Category, c.Period, c.ToolCount, c.TotalVisits, c.TotalReviews, c.AvgRating, c.Popularity, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert category popularity %s/%s: %w", c.Category, c.Period, err)
	}
	return nil
}

func (s *SQLiteStore) ListCategoryPopularity(ctx context.Context, period string) ([]CategoryPopularity, error) {
	query := "SELECT * FROM category_popularity"
	var args []any
	if period != "" {
		query += " WHERE period = ?"
		args = append(args, period)
	}
	query += " ORDER BY popularity DESC"

	var rows []CategoryPopularity
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list category popularity: %w", err)
	}
	return rows, nil
}

func (s *SQLiteStore) StartRun(ctx context.Context, sourceKey string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO run_log (source_key, status, started_at) VALUES (?, ?, ?)
	`, sourceKey, RunRunning, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("start run %s: %w", sourceKey, err)
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) FinishRun(ctx context.Context, runID int64, status string, total, updated, skipped int, errs []string) error {
	if errs == nil {
		errs = []string{}
	}
	errsJSON, _ := json.Marshal(errs)

	_, err := s.db.ExecContext(ctx, `
		UPDATE run_log SET status = ?, total = ?, updated = ?, skipped = ?, errors = ?, finished_at = ?
		WHERE id = ?
	`, status, total, updated, skipped, string(errsJSON), time.Now().UTC(), runID)
	if err != nil {
		return fmt.Errorf("finish run %d: %w", runID, err)
	}
	return nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunLog, error) {
	if limit <= 0 {
		limit = 50
	}

	var runs []RunLog
	err := s.db.SelectContext(ctx, &runs,
		"SELECT * FROM run_log ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	for i := range runs {
		json.Unmarshal([]byte(runs[i].ErrorsJSON), &runs[i].Errors)
	}
	return runs, nil
}
