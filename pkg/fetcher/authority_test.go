package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/toolrank/internal/store"
)

func TestAuthorityFetch(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Domains []string `json:"domains"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"chat.openai.com", "claude.ai"}, req.Domains)

		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"domain": "chat.openai.com", "domain_authority": float64(93)},
				// claude.ai missing from the response: skipped, not an error
			},
		})
	}))
	defer srv.Close()

	gptID := seedTool(t, s, store.Tool{Slug: "chatgpt", Name: "ChatGPT", URL: "https://chat.openai.com/chat"})
	seedTool(t, s, store.Tool{Slug: "claude", Name: "Claude", URL: "https://claude.ai"})
	// No URL: not part of the run.
	seedTool(t, s, store.Tool{Slug: "nourl", Name: "No URL"})

	a := NewAuthority(s, srv.URL, "auth-key")

	res, err := a.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 1, res.Skipped)
	assert.Empty(t, res.Errors)

	scores, err := s.ListExternalScores(ctx)
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, gptID, scores[0].ToolID)
	assert.Equal(t, 93.0, scores[0].NormalizedScore)
}

func TestAuthorityRequiresKey(t *testing.T) {
	s := testStore(t)

	_, err := NewAuthority(s, "", "").Fetch(context.Background())
	require.Error(t, err)
}

func TestToolDomain(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://chat.openai.com/chat", "chat.openai.com"},
		{"https://claude.ai:443/", "claude.ai"},
		{"", ""},
		{"not a url", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, toolDomain(tt.in), tt.in)
	}
}
