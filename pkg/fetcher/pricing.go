package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/elonfeng/toolrank/internal/store"
	"github.com/elonfeng/toolrank/pkg/scoring"
	"github.com/elonfeng/toolrank/pkg/stage"
)

// priceCeiling is the blended USD-per-million-token price at or above which
// the value score bottoms out. Free models score 100.
const priceCeiling = 75.0

// Pricing pulls the model pricing listing and converts price into an
// inverse-proportional value score: cheaper is better, free is 100.
type Pricing struct {
	store  store.Store
	client *http.Client
	apiURL string
	apiKey string
}

// NewPricing creates the model-pricing fetcher.
func NewPricing(s store.Store, apiURL, apiKey string) *Pricing {
	if apiURL == "" {
		apiURL = "https://api.llmpricing.dev/v1/models"
	}
	return &Pricing{
		store:  s,
		client: &http.Client{Timeout: 30 * time.Second},
		apiURL: apiURL,
		apiKey: apiKey,
	}
}

func (p *Pricing) SourceKey() string { return "pricing" }

func (p *Pricing) Fetch(ctx context.Context) (*stage.Result, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("pricing API key not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch pricing: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pricing API status %d", resp.StatusCode)
	}

	var rows []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode pricing: %w", err)
	}

	matcher, _, err := loadMatcher(ctx, p.store)
	if err != nil {
		return nil, err
	}

	res := &stage.Result{}
	for _, row := range rows {
		res.Total++

		name, ok := priceModelField.String(row)
		if !ok {
			res.Skipped++
			continue
		}
		toolID, ok := matcher.Match(name)
		if !ok {
			res.Skipped++
			continue
		}

		input, okIn := priceInputField.Float(row)
		output, okOut := priceOutputField.Float(row)
		if !okIn && !okOut {
			res.Skipped++
			res.Errorf("model %s: no price fields", name)
			continue
		}

		// Blend weighted toward output tokens, which dominate real spend.
		blended := input*0.25 + output*0.75
		free := blended == 0
		valueScore := scoring.NormalizeInverse(blended, priceCeiling)

		raw, _ := json.Marshal(row)
		pd := &store.PricingData{
			ToolID:      toolID,
			Source:      p.SourceKey(),
			InputPrice:  input,
			OutputPrice: output,
			Free:        free,
			ValueScore:  valueScore,
			RawPayload:  string(raw),
		}
		if err := p.store.UpsertPricingData(ctx, pd); err != nil {
			res.Errorf("upsert pricing tool %d: %v", toolID, err)
			continue
		}

		es := &store.ExternalScore{
			ToolID:          toolID,
			SourceKey:       p.SourceKey(),
			NormalizedScore: valueScore,
			RawPayload:      string(raw),
		}
		if err := p.store.UpsertExternalScore(ctx, es); err != nil {
			res.Errorf("upsert score tool %d: %v", toolID, err)
			continue
		}
		res.Updated++
	}

	return res, nil
}

var (
	priceModelField  = Extractor{Field: "model", Keys: []string{"model", "model_name", "name", "id"}}
	priceInputField  = Extractor{Field: "input_price", Keys: []string{"input_price_per_mtok", "input_cost", "prompt_price", "input"}}
	priceOutputField = Extractor{Field: "output_price", Keys: []string{"output_price_per_mtok", "output_cost", "completion_price", "output"}}
)
