package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/elonfeng/toolrank/internal/store"
	"github.com/elonfeng/toolrank/internal/weights"
	"github.com/elonfeng/toolrank/pkg/scoring"
	"github.com/elonfeng/toolrank/pkg/stage"
)

const reviewsDelay = time.Second

// Reviews scrapes the review site's embedded structured-data block. There is
// no API: each product page carries a JSON-LD AggregateRating which is read
// out of the script tags and rescaled to 0-100 using the configured
// rating_scale (5 points unless overridden).
type Reviews struct {
	store   store.Store
	client  *http.Client
	baseURL string
}

// NewReviews creates the review-site rating scraper. baseURL is the product
// page prefix; the tool slug is appended.
func NewReviews(s store.Store, baseURL string) *Reviews {
	if baseURL == "" {
		baseURL = "https://www.g2.com/products"
	}
	return &Reviews{
		store:   s,
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (r *Reviews) SourceKey() string { return "reviews" }

func (r *Reviews) Fetch(ctx context.Context) (*stage.Result, error) {
	tools, err := r.store.ListTools(ctx)
	if err != nil {
		return nil, err
	}

	resolver, err := weights.Load(ctx, r.store)
	if err != nil {
		return nil, err
	}
	scale := resolver.Resolve(weights.CategoryRating, "rating_scale")

	res := &stage.Result{}
	for _, t := range tools {
		res.Total++

		rating, count, err := r.scrapeRating(ctx, t.Slug)
		if err != nil {
			res.Skipped++
			res.Errorf("tool %s: %v", t.Slug, err)
			throttle(ctx, reviewsDelay)
			continue
		}
		if rating == 0 {
			res.Skipped++ // page exists but carries no rating block
			throttle(ctx, reviewsDelay)
			continue
		}

		raw, _ := json.Marshal(map[string]any{"rating": rating, "review_count": count})
		es := &store.ExternalScore{
			ToolID:          t.ID,
			SourceKey:       r.SourceKey(),
			NormalizedScore: scoring.NormalizeScale(rating, scale),
			RawPayload:      string(raw),
		}
		if err := r.store.UpsertExternalScore(ctx, es); err != nil {
			res.Errorf("upsert tool %d: %v", t.ID, err)
		} else {
			res.Updated++
		}

		throttle(ctx, reviewsDelay)
	}

	return res, nil
}

func (r *Reviews) scrapeRating(ctx context.Context, slug string) (rating float64, count int, err error) {
	pageURL := fmt.Sprintf("%s/%s/reviews", r.baseURL, slug)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("User-Agent", "toolrank/1.0")

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, 0, fmt.Errorf("page status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return 0, 0, fmt.Errorf("parse page: %w", err)
	}

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		rating, count = parseAggregateRating(sel.Text())
		return rating == 0 // stop at the first block with a rating
	})
	return rating, count, nil
}

// parseAggregateRating digs an AggregateRating out of one JSON-LD block.
// The block may be the rating itself, an object embedding one, or a @graph
// list of either.
func parseAggregateRating(raw string) (float64, int) {
	var node any
	if err := json.Unmarshal([]byte(raw), &node); err != nil {
		return 0, 0
	}
	return findRating(node)
}

func findRating(node any) (float64, int) {
	switch v := node.(type) {
	case map[string]any:
		if t, _ := v["@type"].(string); strings.EqualFold(t, "AggregateRating") {
			return ldFloat(v["ratingValue"]), int(ldFloat(v["reviewCount"]))
		}
		for _, key := range []string{"aggregateRating", "@graph"} {
			if child, ok := v[key]; ok {
				if r, c := findRating(child); r > 0 {
					return r, c
				}
			}
		}
	case []any:
		for _, child := range v {
			if r, c := findRating(child); r > 0 {
				return r, c
			}
		}
	}
	return 0, 0
}

// ldFloat tolerates JSON-LD's habit of shipping numbers as strings.
func ldFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f
	}
	return 0
}
