package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/elonfeng/toolrank/internal/store"
	"github.com/elonfeng/toolrank/pkg/scoring"
	"github.com/elonfeng/toolrank/pkg/stage"
)

const (
	authorityBatchSize  = 10
	authorityBatchDelay = 1500 * time.Millisecond
)

// Authority pulls domain-authority scores for every tool's website domain.
// The API scores 0-100 natively, so only a clamp is applied. Domains are
// matched back to tools directly; the name matcher is not involved.
type Authority struct {
	store  store.Store
	client *http.Client
	apiURL string
	apiKey string
}

// NewAuthority creates the domain-authority fetcher.
func NewAuthority(s store.Store, apiURL, apiKey string) *Authority {
	if apiURL == "" {
		apiURL = "https://api.domain-authority.io/v1/metrics"
	}
	return &Authority{
		store:  s,
		client: &http.Client{Timeout: 30 * time.Second},
		apiURL: apiURL,
		apiKey: apiKey,
	}
}

func (a *Authority) SourceKey() string { return "authority" }

func (a *Authority) Fetch(ctx context.Context) (*stage.Result, error) {
	if a.apiKey == "" {
		return nil, fmt.Errorf("authority API key not configured")
	}

	tools, err := a.store.ListTools(ctx)
	if err != nil {
		return nil, err
	}

	// Tools keyed by website domain; tools without a parseable URL are not
	// part of this run at all.
	byDomain := make(map[string][]int64)
	var domains []string
	for _, t := range tools {
		d := toolDomain(t.URL)
		if d == "" {
			continue
		}
		if len(byDomain[d]) == 0 {
			domains = append(domains, d)
		}
		byDomain[d] = append(byDomain[d], t.ID)
	}

	res := &stage.Result{}
	for start := 0; start < len(domains); start += authorityBatchSize {
		end := start + authorityBatchSize
		if end > len(domains) {
			end = len(domains)
		}
		chunk := domains[start:end]

		scores, err := a.fetchBatch(ctx, chunk)
		if err != nil {
			if start == 0 {
				return nil, err
			}
			res.Errorf("batch at %d: %v", start, err)
			continue
		}

		for _, d := range chunk {
			res.Total++
			score, ok := scores[d]
			if !ok {
				res.Skipped++
				continue
			}

			raw, _ := json.Marshal(map[string]any{"domain": d, "authority": score})
			for _, toolID := range byDomain[d] {
				es := &store.ExternalScore{
					ToolID:          toolID,
					SourceKey:       a.SourceKey(),
					NormalizedScore: scoring.Clamp(score),
					RawPayload:      string(raw),
				}
				if err := a.store.UpsertExternalScore(ctx, es); err != nil {
					res.Errorf("upsert tool %d: %v", toolID, err)
					continue
				}
				res.Updated++
			}
		}

		if end < len(domains) {
			throttle(ctx, authorityBatchDelay)
		}
	}

	return res, nil
}

func (a *Authority) fetchBatch(ctx context.Context, domains []string) (map[string]float64, error) {
	body, _ := json.Marshal(map[string]any{"domains": domains})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch authority batch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("authority API status %d", resp.StatusCode)
	}

	var decoded struct {
		Results []map[string]any `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode authority batch: %w", err)
	}

	scores := make(map[string]float64, len(decoded.Results))
	for _, row := range decoded.Results {
		d, ok := authorityDomainField.String(row)
		if !ok {
			continue
		}
		v, ok := authorityScoreField.Float(row)
		if !ok {
			continue
		}
		scores[d] = v
	}
	return scores, nil
}

var (
	authorityDomainField = Extractor{Field: "domain", Keys: []string{"domain", "target", "host"}}
	authorityScoreField  = Extractor{Field: "authority", Keys: []string{"domain_authority", "authority", "da", "score"}}
)

func toolDomain(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Hostname()
}
