package store

import (
	"database/sql"
	"time"
)

// Candidate lifecycle states. Rejected is terminal; approved candidates
// move to merged once their tool row exists.
const (
	CandidatePending  = "pending"
	CandidateApproved = "approved"
	CandidateRejected = "rejected"
	CandidateMerged   = "merged"
)

// Run statuses recorded in run_log.
const (
	RunRunning  = "running"
	RunComplete = "complete"
	RunFailed   = "failed"
)

// Tool is a catalog entry. Score and trend fields are written only by the
// pipeline; engagement counters are observed from the browsing side.
type Tool struct {
	ID               int64     `db:"id" json:"id"`
	Slug             string    `db:"slug" json:"slug"`
	Name             string    `db:"name" json:"name"`
	URL              string    `db:"url" json:"url"`
	RepoURL          string    `db:"repo_url" json:"repo_url,omitempty"`
	Category         string    `db:"category" json:"category"`
	Aliases          []string  `db:"-" json:"aliases,omitempty"`
	AliasesJSON      string    `db:"aliases" json:"-"`
	Visits           int       `db:"visits" json:"visits"`
	ReviewsCount     int       `db:"reviews_count" json:"reviews_count"`
	AvgRating        float64   `db:"avg_rating" json:"avg_rating"`
	Bookmarks        int       `db:"bookmarks" json:"bookmarks"`
	Upvotes          int       `db:"upvotes" json:"upvotes"`
	InternalScore    float64   `db:"internal_score" json:"internal_score"`
	ExternalScore    float64   `db:"external_score" json:"external_score"`
	ExternalSources  int       `db:"external_sources" json:"external_sources"`
	HybridScore      float64   `db:"hybrid_score" json:"hybrid_score"`
	Rank             int       `db:"rank" json:"rank"`
	TrendDirection   string    `db:"trend_direction" json:"trend_direction"`
	TrendMagnitude   int       `db:"trend_magnitude" json:"trend_magnitude"`
	HasBenchmarkData bool      `db:"has_benchmark_data" json:"has_benchmark_data"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// ExternalScore is one provider's normalized signal for one tool.
// Upsert-only, one row per (tool, source).
type ExternalScore struct {
	ID              int64     `db:"id" json:"id"`
	ToolID          int64     `db:"tool_id" json:"tool_id"`
	SourceKey       string    `db:"source_key" json:"source_key"`
	NormalizedScore float64   `db:"normalized_score" json:"normalized_score"`
	RawPayload      string    `db:"raw_payload" json:"-"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// BenchmarkScore holds per-source benchmark sub-metrics for a tool.
type BenchmarkScore struct {
	ID              int64     `db:"id" json:"id"`
	ToolID          int64     `db:"tool_id" json:"tool_id"`
	BenchmarkSource string    `db:"benchmark_source" json:"benchmark_source"`
	OverallScore    float64   `db:"overall_score" json:"overall_score"`
	CodingScore     float64   `db:"coding_score" json:"coding_score"`
	MathScore       float64   `db:"math_score" json:"math_score"`
	ReasoningScore  float64   `db:"reasoning_score" json:"reasoning_score"`
	RawPayload      string    `db:"raw_payload" json:"-"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// PricingData holds per-source model pricing for a tool. Prices are USD per
// million tokens; Free means no paid tier was listed.
type PricingData struct {
	ID          int64     `db:"id" json:"id"`
	ToolID      int64     `db:"tool_id" json:"tool_id"`
	Source      string    `db:"source" json:"source"`
	InputPrice  float64   `db:"input_price" json:"input_price"`
	OutputPrice float64   `db:"output_price" json:"output_price"`
	Free        bool      `db:"free" json:"free"`
	ValueScore  float64   `db:"value_score" json:"value_score"`
	RawPayload  string    `db:"raw_payload" json:"-"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Candidate is a discovered tool not yet in the catalog.
type Candidate struct {
	ID             int64        `db:"id" json:"id"`
	Slug           string       `db:"slug" json:"slug"`
	Name           string       `db:"name" json:"name"`
	URL            string       `db:"url" json:"url"`
	RepoURL        string       `db:"repo_url" json:"repo_url,omitempty"`
	Category       string       `db:"category" json:"category"`
	Votes          int          `db:"votes" json:"votes"`
	Stars          int          `db:"stars" json:"stars"`
	Forks          int          `db:"forks" json:"forks"`
	OpenIssues     int          `db:"open_issues" json:"open_issues"`
	HasBenchmark   bool         `db:"has_benchmark" json:"has_benchmark"`
	Status         string       `db:"status" json:"status"`
	QualityScore   float64      `db:"quality_score" json:"quality_score"`
	DiscoveredFrom string       `db:"discovered_from" json:"discovered_from"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
	EvaluatedAt    sql.NullTime `db:"evaluated_at" json:"-"`
}

// WeightRow is one persisted weight/threshold parameter.
type WeightRow struct {
	Category string  `db:"category" json:"category"`
	Key      string  `db:"key" json:"key"`
	Value    float64 `db:"value" json:"value"`
}

// WeeklyRanking is one immutable weekly snapshot row per tool.
type WeeklyRanking struct {
	ID          int64     `db:"id" json:"id"`
	ToolID      int64     `db:"tool_id" json:"tool_id"`
	WeekStart   string    `db:"week_start" json:"week_start"`
	Rank        int       `db:"rank" json:"rank"`
	HybridScore float64   `db:"hybrid_score" json:"hybrid_score"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// TrendSnapshot is one immutable daily snapshot row per tool.
type TrendSnapshot struct {
	ID           int64     `db:"id" json:"id"`
	ToolID       int64     `db:"tool_id" json:"tool_id"`
	SnapshotDate string    `db:"snapshot_date" json:"snapshot_date"`
	Rank         int       `db:"rank" json:"rank"`
	HybridScore  float64   `db:"hybrid_score" json:"hybrid_score"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// CategoryPopularity is the per-category rollup for one period.
type CategoryPopularity struct {
	ID           int64     `db:"id" json:"id"`
	Category     string    `db:"category" json:"category"`
	Period       string    `db:"period" json:"period"`
	ToolCount    int       `db:"tool_count" json:"tool_count"`
	TotalVisits  int       `db:"total_visits" json:"total_visits"`
	TotalReviews int       `db:"total_reviews" json:"total_reviews"`
	AvgRating    float64   `db:"avg_rating" json:"avg_rating"`
	Popularity   float64   `db:"popularity" json:"popularity"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// RunLog is the per-source bookkeeping row for one pipeline invocation.
type RunLog struct {
	ID         int64        `db:"id" json:"id"`
	SourceKey  string       `db:"source_key" json:"source_key"`
	Status     string       `db:"status" json:"status"`
	Total      int          `db:"total" json:"total"`
	Updated    int          `db:"updated" json:"updated"`
	Skipped    int          `db:"skipped" json:"skipped"`
	ErrorsJSON string       `db:"errors" json:"-"`
	Errors     []string     `db:"-" json:"errors"`
	StartedAt  time.Time    `db:"started_at" json:"started_at"`
	FinishedAt sql.NullTime `db:"finished_at" json:"-"`
}
