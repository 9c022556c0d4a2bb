package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/elonfeng/toolrank/internal/store"
	"github.com/elonfeng/toolrank/pkg/scoring"
	"github.com/elonfeng/toolrank/pkg/stage"
)

// Arena pulls the crowd-voted model leaderboard. Ratings are Elo-style, so
// they are min-max normalized within the run batch rather than against a
// fixed scale. The feed occasionally moves; a fallback URL is kept for when
// the primary 404s.
type Arena struct {
	store       store.Store
	client      *http.Client
	primaryURL  string
	fallbackURL string
}

// NewArena creates the leaderboard fetcher. Empty URLs fall back to the
// public feed locations.
func NewArena(s store.Store, primaryURL, fallbackURL string) *Arena {
	if primaryURL == "" {
		primaryURL = "https://lmarena.ai/api/leaderboard"
	}
	if fallbackURL == "" {
		fallbackURL = "https://storage.googleapis.com/arena-leaderboard/latest.json"
	}
	return &Arena{
		store:       s,
		client:      &http.Client{Timeout: 30 * time.Second},
		primaryURL:  primaryURL,
		fallbackURL: fallbackURL,
	}
}

func (a *Arena) SourceKey() string { return "lmarena" }

type arenaEntry struct {
	toolID  int64
	rating  float64
	payload []byte
}

func (a *Arena) Fetch(ctx context.Context) (*stage.Result, error) {
	rows, err := a.fetchFeed(ctx, a.primaryURL)
	if err != nil {
		var ferr error
		rows, ferr = a.fetchFeed(ctx, a.fallbackURL)
		if ferr != nil {
			return nil, fmt.Errorf("primary: %v; fallback: %w", err, ferr)
		}
	}

	matcher, _, err := loadMatcher(ctx, a.store)
	if err != nil {
		return nil, err
	}

	res := &stage.Result{}
	var batch []arenaEntry

	for _, row := range rows {
		res.Total++

		name, ok := arenaModelField.String(row)
		if !ok {
			res.Skipped++
			continue
		}
		rating, ok := arenaRatingField.Float(row)
		if !ok {
			res.Skipped++
			continue
		}

		toolID, ok := matcher.Match(name)
		if !ok {
			res.Skipped++
			continue
		}

		raw, _ := json.Marshal(row)
		batch = append(batch, arenaEntry{toolID: toolID, rating: rating, payload: raw})
	}

	// Min-max over the matched batch. A flat batch (or a single model) sits
	// at the top of the observed range and scores 100.
	min, max := 0.0, 0.0
	for i, b := range batch {
		if i == 0 || b.rating < min {
			min = b.rating
		}
		if i == 0 || b.rating > max {
			max = b.rating
		}
	}

	seen := make(map[int64]bool)
	for _, b := range batch {
		if seen[b.toolID] {
			continue
		}
		seen[b.toolID] = true

		score := 100.0
		if max > min {
			score = scoring.Clamp((b.rating - min) / (max - min) * 100)
		}

		es := &store.ExternalScore{
			ToolID:          b.toolID,
			SourceKey:       a.SourceKey(),
			NormalizedScore: score,
			RawPayload:      string(b.payload),
		}
		if err := a.store.UpsertExternalScore(ctx, es); err != nil {
			res.Errorf("upsert tool %d: %v", b.toolID, err)
			continue
		}
		res.Updated++
	}

	return res, nil
}

func (a *Arena) fetchFeed(ctx context.Context, feedURL string) ([]map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "toolrank/1.0")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch leaderboard: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("leaderboard status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read leaderboard: %w", err)
	}

	// The feed has shipped both as a bare array and wrapped in {"models": []}.
	var rows []map[string]any
	if err := json.Unmarshal(body, &rows); err == nil {
		return rows, nil
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("decode leaderboard: %w", err)
	}
	for _, key := range []string{"models", "leaderboard", "data"} {
		if raw, ok := wrapped[key]; ok {
			if err := json.Unmarshal(raw, &rows); err == nil {
				return rows, nil
			}
		}
	}
	return nil, fmt.Errorf("leaderboard payload has no recognizable model list")
}

var (
	arenaModelField  = Extractor{Field: "model", Keys: []string{"model", "model_name", "name", "key"}}
	arenaRatingField = Extractor{Field: "rating", Keys: []string{"rating", "elo", "elo_rating", "score", "arena_score"}}
)
