package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/elonfeng/toolrank/internal/store"
	"github.com/elonfeng/toolrank/pkg/scoring"
	"github.com/elonfeng/toolrank/pkg/stage"
)

const (
	productHuntURL        = "https://api.producthunt.com/v2/api/graphql"
	productHuntPageSize   = 20
	productHuntMaxPages   = 5
	productHuntBatchDelay = 2 * time.Second
)

// ProductHunt pulls launch votes for AI posts via the paginated query API.
// Posts are resolved onto catalog tools by name through the matcher.
type ProductHunt struct {
	store  store.Store
	client *http.Client
	apiURL string
	token  string
}

// NewProductHunt creates the product-launch votes fetcher.
func NewProductHunt(s store.Store, token string) *ProductHunt {
	return &ProductHunt{
		store:  s,
		client: &http.Client{Timeout: 30 * time.Second},
		apiURL: productHuntURL,
		token:  token,
	}
}

func (p *ProductHunt) SourceKey() string { return "producthunt" }

type phPost struct {
	toolID  int64
	votes   int
	payload []byte
}

func (p *ProductHunt) Fetch(ctx context.Context) (*stage.Result, error) {
	if p.token == "" {
		return nil, fmt.Errorf("producthunt token not configured")
	}

	matcher, _, err := loadMatcher(ctx, p.store)
	if err != nil {
		return nil, err
	}

	res := &stage.Result{}
	var batch []phPost
	cursor := ""

	for page := 0; page < productHuntMaxPages; page++ {
		posts, next, err := p.fetchPage(ctx, cursor)
		if err != nil {
			if page == 0 {
				return nil, err // nothing fetched yet, fatal for the run
			}
			res.Errorf("page %d: %v", page, err)
			break
		}

		for _, post := range posts {
			res.Total++

			name, ok := phNameField.String(post)
			if !ok {
				res.Skipped++
				continue
			}
			votes, ok := phVotesField.Int(post)
			if !ok {
				res.Skipped++
				continue
			}

			toolID, ok := matcher.Match(name)
			if !ok {
				res.Skipped++ // not in the catalog, expected
				continue
			}

			raw, _ := json.Marshal(post)
			batch = append(batch, phPost{toolID: toolID, votes: votes, payload: raw})
		}

		if next == "" {
			break
		}
		cursor = next
		throttle(ctx, productHuntBatchDelay)
	}

	maxVotes := 0.0
	for _, b := range batch {
		if float64(b.votes) > maxVotes {
			maxVotes = float64(b.votes)
		}
	}

	seen := make(map[int64]bool)
	for _, b := range batch {
		if seen[b.toolID] {
			continue // one row per (tool, source); first (highest-ranked) post wins
		}
		seen[b.toolID] = true

		es := &store.ExternalScore{
			ToolID:          b.toolID,
			SourceKey:       p.SourceKey(),
			NormalizedScore: scoring.NormalizeLinear(float64(b.votes), maxVotes),
			RawPayload:      string(b.payload),
		}
		if err := p.store.UpsertExternalScore(ctx, es); err != nil {
			res.Errorf("upsert tool %d: %v", b.toolID, err)
			continue
		}
		res.Updated++
	}

	return res, nil
}

const phQuery = `query($after: String) {
  posts(order: VOTES, topic: "artificial-intelligence", first: %d, after: $after) {
    pageInfo { endCursor hasNextPage }
    edges { node { name votesCount commentsCount reviewsCount url } }
  }
}`

func (p *ProductHunt) fetchPage(ctx context.Context, cursor string) ([]map[string]any, string, error) {
	body := map[string]any{
		"query":     fmt.Sprintf(phQuery, productHuntPageSize),
		"variables": map[string]any{"after": cursor},
	}
	buf, _ := json.Marshal(body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(buf))
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch posts: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("producthunt status %d", resp.StatusCode)
	}

	var decoded struct {
		Data struct {
			Posts struct {
				PageInfo struct {
					EndCursor   string `json:"endCursor"`
					HasNextPage bool   `json:"hasNextPage"`
				} `json:"pageInfo"`
				Edges []struct {
					Node map[string]any `json:"node"`
				} `json:"edges"`
			} `json:"posts"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, "", fmt.Errorf("decode posts: %w", err)
	}

	posts := make([]map[string]any, 0, len(decoded.Data.Posts.Edges))
	for _, e := range decoded.Data.Posts.Edges {
		posts = append(posts, e.Node)
	}

	next := ""
	if decoded.Data.Posts.PageInfo.HasNextPage {
		next = decoded.Data.Posts.PageInfo.EndCursor
	}
	return posts, next, nil
}

var (
	phNameField  = Extractor{Field: "name", Keys: []string{"name", "title", "product_name"}}
	phVotesField = Extractor{Field: "votes", Keys: []string{"votesCount", "votes_count", "votes"}}
)
