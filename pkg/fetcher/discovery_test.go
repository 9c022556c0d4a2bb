package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/toolrank/internal/store"
	"github.com/elonfeng/toolrank/pkg/gate"
)

const launchFeedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>AI Launches</title>
    <item>
      <title>Acme AI - Generate anything from a prompt</title>
      <link>https://acme.ai</link>
    </item>
    <item>
      <title>ChatGPT - Now with voice</title>
      <link>https://chat.openai.com</link>
    </item>
    <item>
      <title>PixelForge: AI image upscaler</title>
      <link>https://pixelforge.dev</link>
    </item>
  </channel>
</rss>`

func TestDiscoveryFetch(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, launchFeedXML)
	}))
	defer srv.Close()

	// Already in the catalog: its launch entry must be skipped.
	seedTool(t, s, store.Tool{Slug: "chatgpt", Name: "ChatGPT"})

	d := NewDiscovery(s, []DiscoveryFeed{{Name: "launches", URL: srv.URL, Category: "assistants"}})

	res, err := d.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 2, res.Updated)
	assert.Equal(t, 1, res.Skipped)
	assert.Empty(t, res.Errors)

	candidates, err := s.ListCandidates(ctx, store.CandidatePending)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, "acme-ai", candidates[0].Slug)
	assert.Equal(t, "Acme AI", candidates[0].Name)
	assert.Equal(t, "https://acme.ai", candidates[0].URL)
	assert.Equal(t, "assistants", candidates[0].Category)
	assert.Equal(t, "launches", candidates[0].DiscoveredFrom)
	assert.Equal(t, "pixelforge", candidates[1].Slug)
}

func TestDiscoveryEnrichesRepoLinkedEntries(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	statsSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/forge/newtool", r.URL.Path)
		fmt.Fprint(w, `{"stargazers_count": 1500, "forks_count": 120, "open_issues_count": 30}`)
	}))
	defer statsSrv.Close()

	feedSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>AI Launches</title>
  <item>
    <title>NewTool - open source agent framework</title>
    <link>https://github.com/forge/newtool</link>
  </item>
</channel></rss>`)
	}))
	defer feedSrv.Close()

	d := NewDiscovery(s, []DiscoveryFeed{{Name: "launches", URL: feedSrv.URL, Category: "coding"}})
	d.repoAPI = statsSrv.URL

	res, err := d.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	candidates, err := s.ListCandidates(ctx, store.CandidatePending)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "https://github.com/forge/newtool", candidates[0].RepoURL)
	assert.Equal(t, 1500, candidates[0].Stars)
	assert.Equal(t, 120, candidates[0].Forks)
	assert.Equal(t, 30, candidates[0].OpenIssues)
}

func TestDiscoveryRediscoveryIsANoOp(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, launchFeedXML)
	}))
	defer srv.Close()

	d := NewDiscovery(s, []DiscoveryFeed{{Name: "launches", URL: srv.URL}})

	_, err := d.Fetch(ctx)
	require.NoError(t, err)

	res, err := d.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 3, res.Skipped)

	candidates, err := s.ListCandidates(ctx, "")
	require.NoError(t, err)
	assert.Len(t, candidates, 3)
}

func TestDiscoveryNoFeedsConfigured(t *testing.T) {
	s := testStore(t)

	_, err := NewDiscovery(s, nil).Fetch(context.Background())
	require.Error(t, err)
}

func TestDiscoveredCandidateIsNotRejectedBeforeEnrichment(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, launchFeedXML)
	}))
	defer srv.Close()

	d := NewDiscovery(s, []DiscoveryFeed{{Name: "launches", URL: srv.URL, Category: "assistants"}})

	_, err := d.Fetch(ctx)
	require.NoError(t, err)

	// The feed entries carry no repo link, so the candidates arrive with
	// zero metrics. The gate must leave them pending, not write them off.
	res, err := gate.New(s).Evaluate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 3, res.Skipped)

	pending, err := s.ListCandidates(ctx, store.CandidatePending)
	require.NoError(t, err)
	assert.Len(t, pending, 3)

	rejected, err := s.ListCandidates(ctx, store.CandidateRejected)
	require.NoError(t, err)
	assert.Empty(t, rejected)
}

func TestDiscoveredRepoCandidateClearsGate(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	statsSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"stargazers_count": 1500, "forks_count": 120, "open_issues_count": 30}`)
	}))
	defer statsSrv.Close()

	feedSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>AI Launches</title>
  <item>
    <title>NewTool - open source agent framework</title>
    <link>https://github.com/forge/newtool</link>
  </item>
</channel></rss>`)
	}))
	defer feedSrv.Close()

	d := NewDiscovery(s, []DiscoveryFeed{{Name: "launches", URL: feedSrv.URL, Category: "coding"}})
	d.repoAPI = statsSrv.URL

	_, err := d.Fetch(ctx)
	require.NoError(t, err)

	// Stars, issue ratio and an empty category make three of five criteria:
	// discovery enrichment alone is enough to promote a healthy repo.
	res, err := gate.New(s).Evaluate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	tool, err := s.GetToolBySlug(ctx, "newtool")
	require.NoError(t, err)
	require.NotNil(t, tool)
	assert.Equal(t, "https://github.com/forge/newtool", tool.RepoURL)
	assert.Equal(t, "coding", tool.Category)
}

func TestCleanLaunchTitle(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Acme AI - Generate anything", "Acme AI"},
		{"PixelForge: AI image upscaler", "PixelForge"},
		{"Tool | the tagline", "Tool"},
		{"No Tagline Here", "No Tagline Here"},
		{"- leading separator keeps the title", "- leading separator keeps the title"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanLaunchTitle(tt.in), tt.in)
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Acme AI", "acme-ai"},
		{"PixelForge", "pixelforge"},
		{"GPT-4o (beta)", "gpt-4o-beta"},
		{"  spaced   out  ", "spaced-out"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, slugify(tt.in), tt.in)
	}
}
