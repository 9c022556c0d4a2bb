package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/toolrank/internal/store"
	"github.com/elonfeng/toolrank/pkg/fetcher"
	"github.com/elonfeng/toolrank/pkg/gate"
	"github.com/elonfeng/toolrank/pkg/ranking"
	"github.com/elonfeng/toolrank/pkg/stage"
)

const testSecret = "test-secret"

func testServer(t *testing.T, fetchers ...fetcher.Fetcher) (*Server, *store.SQLiteStore) {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s, fetchers, gate.New(s), ranking.New(s), testSecret, 0), s
}

func doRequest(t *testing.T, srv *Server, method, path, token string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthNeedsNoAuth(t *testing.T) {
	srv, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestStageEndpointsRejectBadCredentials(t *testing.T) {
	srv, _ := testServer(t)

	paths := []string{
		"/api/v1/sync",
		"/api/v1/rank",
		"/api/v1/trends/compute",
		"/api/v1/candidates/evaluate",
		"/api/v1/categories/aggregate",
		"/api/v1/benchmarks/submit",
	}
	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodPost, path, "", "")
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			// The rejection body carries no hint about what went wrong.
			assert.Equal(t, "{}\n", rec.Body.String())

			rec = doRequest(t, srv, http.MethodPost, path, "wrong-secret", "")
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestEmptySecretRejectsEveryone(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	srv := New(s, nil, gate.New(s), ranking.New(s), "", 0)

	// An unset secret must fail closed, not open.
	rec := doRequest(t, srv, http.MethodPost, "/api/v1/rank", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStageEndpointsRequirePost(t *testing.T) {
	srv, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/rank", testSecret, "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRankEndpoint(t *testing.T) {
	srv, s := testServer(t)
	ctx := context.Background()

	_, err := s.CreateTool(ctx, &store.Tool{Slug: "chatgpt", Name: "ChatGPT", Visits: 100})
	require.NoError(t, err)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/rank", testSecret, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var res stage.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, 1, res.Updated)
	assert.Empty(t, res.Errors)

	tool, err := s.GetToolBySlug(ctx, "chatgpt")
	require.NoError(t, err)
	assert.Equal(t, 1, tool.Rank)

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, ranking.SourceKey, runs[0].SourceKey)
	assert.Equal(t, store.RunComplete, runs[0].Status)
}

func TestSyncOneUnknownSource(t *testing.T) {
	srv, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/sync/nope", testSecret, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBenchmarkSubmit(t *testing.T) {
	srv, s := testServer(t)
	ctx := context.Background()

	_, err := s.CreateTool(ctx, &store.Tool{Slug: "chatgpt", Name: "ChatGPT", Aliases: []string{"gpt-4o"}})
	require.NoError(t, err)

	body := `[{"name": "GPT-4o", "overall_score": 88}]`
	rec := doRequest(t, srv, http.MethodPost, "/api/v1/benchmarks/submit?source=labbench", testSecret, body)
	require.Equal(t, http.StatusOK, rec.Code)

	var res stage.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.Updated)

	scores, err := s.ListExternalScores(ctx)
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, "labbench", scores[0].SourceKey)

	// The run log entry carries the same source key the scores were
	// recorded under.
	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "labbench", runs[0].SourceKey)
	assert.Equal(t, store.RunComplete, runs[0].Status)
}

func TestToolsEndpointOrdersByRank(t *testing.T) {
	srv, s := testServer(t)
	ctx := context.Background()

	for _, tool := range []store.Tool{
		{Slug: "unranked", Name: "Unranked"},
		{Slug: "second", Name: "Second"},
		{Slug: "first", Name: "First"},
	} {
		t2 := tool
		_, err := s.CreateTool(ctx, &t2)
		require.NoError(t, err)
	}
	second, err := s.GetToolBySlug(ctx, "second")
	require.NoError(t, err)
	require.NoError(t, s.UpdateToolScores(ctx, second.ID, 0, 0, 0, 50, 2))
	first, err := s.GetToolBySlug(ctx, "first")
	require.NoError(t, err)
	require.NoError(t, s.UpdateToolScores(ctx, first.ID, 0, 0, 0, 80, 1))

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/tools", testSecret, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Data  []store.Tool `json:"data"`
		Count int          `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, 3, out.Count)
	assert.Equal(t, "first", out.Data[0].Slug)
	assert.Equal(t, "second", out.Data[1].Slug)
	assert.Equal(t, "unranked", out.Data[2].Slug, "unranked tools sort last")
}

func TestCandidatesEndpointFiltersByStatus(t *testing.T) {
	srv, s := testServer(t)
	ctx := context.Background()

	_, err := s.InsertCandidate(ctx, &store.Candidate{Slug: "a", Name: "A"})
	require.NoError(t, err)
	_, err = s.InsertCandidate(ctx, &store.Candidate{Slug: "b", Name: "B"})
	require.NoError(t, err)
	pending, err := s.ListCandidates(ctx, "")
	require.NoError(t, err)
	require.NoError(t, s.UpdateCandidateResult(ctx, pending[0].ID, store.CandidateRejected, 5))

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/candidates?status=pending", testSecret, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, 1, out.Count)
}
