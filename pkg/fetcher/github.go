package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/elonfeng/toolrank/internal/store"
	"github.com/elonfeng/toolrank/pkg/scoring"
	"github.com/elonfeng/toolrank/pkg/stage"
)

const githubDelay = 500 * time.Millisecond

// GitHub pulls repository stars/forks for every catalog tool that carries a
// repo URL. Tools are matched directly by that URL, not by name.
type GitHub struct {
	store   store.Store
	client  *http.Client
	baseURL string
	token   string
}

// NewGitHub creates the code-host stats fetcher.
func NewGitHub(s store.Store, token string) *GitHub {
	return &GitHub{
		store:   s,
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: "https://api.github.com",
		token:   token,
	}
}

func (g *GitHub) SourceKey() string { return "github" }

type repoStats struct {
	toolID  int64
	stars   int
	forks   int
	issues  int
	payload []byte
}

func (g *GitHub) Fetch(ctx context.Context) (*stage.Result, error) {
	tools, err := g.store.ListTools(ctx)
	if err != nil {
		return nil, err
	}

	res := &stage.Result{}
	var batch []repoStats

	for _, t := range tools {
		owner, repo, ok := splitRepoURL(t.RepoURL)
		if !ok {
			continue // not a code-hosted tool
		}
		res.Total++

		stats, err := g.fetchRepo(ctx, owner, repo)
		if err != nil {
			res.Skipped++
			res.Errorf("repo %s/%s: %v", owner, repo, err)
			continue
		}
		stats.toolID = t.ID
		batch = append(batch, *stats)

		throttle(ctx, githubDelay)
	}

	// Normalize stars against this run's observed maximum.
	maxStars := 0.0
	for _, r := range batch {
		if float64(r.stars) > maxStars {
			maxStars = float64(r.stars)
		}
	}

	for _, r := range batch {
		es := &store.ExternalScore{
			ToolID:          r.toolID,
			SourceKey:       g.SourceKey(),
			NormalizedScore: scoring.NormalizeLinear(float64(r.stars), maxStars),
			RawPayload:      string(r.payload),
		}
		if err := g.store.UpsertExternalScore(ctx, es); err != nil {
			res.Skipped++
			res.Errorf("upsert tool %d: %v", r.toolID, err)
			continue
		}
		res.Updated++
	}

	return res, nil
}

func (g *GitHub) fetchRepo(ctx context.Context, owner, repo string) (*repoStats, error) {
	return fetchRepoStats(ctx, g.client, g.baseURL, g.token, owner, repo)
}

// fetchRepoStats reads a repository's stats off the code-host API. Shared
// with discovery, which looks up repo-linked launch entries before they
// reach the quality gate.
func fetchRepoStats(ctx context.Context, client *http.Client, baseURL, token, owner, repo string) (*repoStats, error) {
	reqURL := fmt.Sprintf("%s/repos/%s/%s", baseURL, url.PathEscape(owner), url.PathEscape(repo))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	stars, ok := starsField.Int(payload)
	if !ok {
		return nil, fmt.Errorf("no star count in payload")
	}
	forks, _ := forksField.Int(payload)
	issues, _ := issuesField.Int(payload)

	raw, _ := json.Marshal(map[string]any{
		"stars": stars, "forks": forks, "open_issues": issues,
	})
	return &repoStats{stars: stars, forks: forks, issues: issues, payload: raw}, nil
}

var (
	starsField  = Extractor{Field: "stars", Keys: []string{"stargazers_count", "stars", "star_count"}}
	forksField  = Extractor{Field: "forks", Keys: []string{"forks_count", "forks"}}
	issuesField = Extractor{Field: "open_issues", Keys: []string{"open_issues_count", "open_issues"}}
)

// splitRepoURL extracts owner/repo from a github.com URL.
func splitRepoURL(repoURL string) (owner, repo string, ok bool) {
	if repoURL == "" {
		return "", "", false
	}
	u, err := url.Parse(repoURL)
	if err != nil || !strings.HasSuffix(u.Host, "github.com") {
		return "", "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), true
}
