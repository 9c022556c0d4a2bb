package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/elonfeng/toolrank/internal/store"
	"github.com/elonfeng/toolrank/pkg/match"
	"github.com/elonfeng/toolrank/pkg/scoring"
	"github.com/elonfeng/toolrank/pkg/stage"
)

// Benchmark pulls per-model scores from a third-party benchmark dataset API
// and writes tool_benchmark_scores rows plus a normalized external score.
type Benchmark struct {
	store  store.Store
	client *http.Client
	apiURL string
	apiKey string
}

// NewBenchmark creates the benchmark dataset fetcher.
func NewBenchmark(s store.Store, apiURL, apiKey string) *Benchmark {
	if apiURL == "" {
		apiURL = "https://artificialanalysis.ai/api/v2/data/llms/models"
	}
	return &Benchmark{
		store:  s,
		client: &http.Client{Timeout: 30 * time.Second},
		apiURL: apiURL,
		apiKey: apiKey,
	}
}

func (b *Benchmark) SourceKey() string { return "benchmarks" }

func (b *Benchmark) Fetch(ctx context.Context) (*stage.Result, error) {
	if b.apiKey == "" {
		return nil, fmt.Errorf("benchmark API key not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.apiURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch benchmarks: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("benchmark API status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read benchmarks: %w", err)
	}

	matcher, _, err := loadMatcher(ctx, b.store)
	if err != nil {
		return nil, err
	}

	return ingestBenchmarkRows(ctx, b.store, matcher, b.SourceKey(), body)
}

// IngestBenchmarkPayload feeds an operator-submitted benchmark body through
// the same parser the dataset fetcher uses. The server's direct-submission
// endpoint calls this.
func IngestBenchmarkPayload(ctx context.Context, s store.Store, source string, body []byte) (*stage.Result, error) {
	if source == "" {
		source = "custombench"
	}
	matcher, _, err := loadMatcher(ctx, s)
	if err != nil {
		return nil, err
	}
	return ingestBenchmarkRows(ctx, s, matcher, source, body)
}

func ingestBenchmarkRows(ctx context.Context, s store.Store, matcher *match.Matcher, source string, body []byte) (*stage.Result, error) {
	rows, err := decodeModelRows(body)
	if err != nil {
		return nil, err
	}

	res := &stage.Result{}
	for _, row := range rows {
		res.Total++

		name, ok := benchModelField.String(row)
		if !ok {
			res.Skipped++
			continue
		}
		toolID, ok := matcher.Match(name)
		if !ok {
			res.Skipped++
			continue
		}

		overall, ok := benchOverallField.Float(row)
		if !ok {
			res.Skipped++
			res.Errorf("model %s: no overall score", name)
			continue
		}
		coding, _ := benchCodingField.Float(row)
		math, _ := benchMathField.Float(row)
		reasoning, _ := benchReasoningField.Float(row)

		raw, _ := json.Marshal(row)
		bs := &store.BenchmarkScore{
			ToolID:          toolID,
			BenchmarkSource: source,
			OverallScore:    scoring.Clamp(overall),
			CodingScore:     scoring.Clamp(coding),
			MathScore:       scoring.Clamp(math),
			ReasoningScore:  scoring.Clamp(reasoning),
			RawPayload:      string(raw),
		}
		if err := s.UpsertBenchmarkScore(ctx, bs); err != nil {
			res.Errorf("upsert benchmark tool %d: %v", toolID, err)
			continue
		}

		es := &store.ExternalScore{
			ToolID:          toolID,
			SourceKey:       source,
			NormalizedScore: bs.OverallScore,
			RawPayload:      string(raw),
		}
		if err := s.UpsertExternalScore(ctx, es); err != nil {
			res.Errorf("upsert score tool %d: %v", toolID, err)
			continue
		}
		if err := s.SetToolBenchmarkFlag(ctx, toolID, true); err != nil {
			res.Errorf("flag tool %d: %v", toolID, err)
			continue
		}
		res.Updated++
	}

	return res, nil
}

// decodeModelRows accepts a bare array of model rows or the common
// {"data": [...]} / {"models": [...]} wrappers.
func decodeModelRows(body []byte) ([]map[string]any, error) {
	var rows []map[string]any
	if err := json.Unmarshal(body, &rows); err == nil {
		return rows, nil
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("decode benchmark payload: %w", err)
	}
	for _, key := range []string{"data", "models", "results"} {
		if raw, ok := wrapped[key]; ok {
			if err := json.Unmarshal(raw, &rows); err == nil {
				return rows, nil
			}
		}
	}
	return nil, fmt.Errorf("benchmark payload has no recognizable model list")
}

// CustomBenchmark polls an operator-configured URL serving the same row
// shape as the dataset API.
type CustomBenchmark struct {
	store  store.Store
	client *http.Client
	url    string
}

// NewCustomBenchmark creates the operator-URL benchmark fetcher.
func NewCustomBenchmark(s store.Store, url string) *CustomBenchmark {
	return &CustomBenchmark{
		store:  s,
		client: &http.Client{Timeout: 30 * time.Second},
		url:    url,
	}
}

func (c *CustomBenchmark) SourceKey() string { return "custombench" }

func (c *CustomBenchmark) Fetch(ctx context.Context) (*stage.Result, error) {
	if c.url == "" {
		return nil, fmt.Errorf("custom benchmark URL not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch custom benchmark: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("custom benchmark status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read custom benchmark: %w", err)
	}

	matcher, _, err := loadMatcher(ctx, c.store)
	if err != nil {
		return nil, err
	}
	return ingestBenchmarkRows(ctx, c.store, matcher, c.SourceKey(), body)
}

var (
	benchModelField     = Extractor{Field: "model", Keys: []string{"name", "model", "model_name", "slug"}}
	benchOverallField   = Extractor{Field: "overall", Keys: []string{"overall_score", "quality_index", "intelligence_index", "overall", "score"}}
	benchCodingField    = Extractor{Field: "coding", Keys: []string{"coding_score", "coding_index", "coding"}}
	benchMathField      = Extractor{Field: "math", Keys: []string{"math_score", "math_index", "math"}}
	benchReasoningField = Extractor{Field: "reasoning", Keys: []string{"reasoning_score", "reasoning_index", "reasoning"}}
)
