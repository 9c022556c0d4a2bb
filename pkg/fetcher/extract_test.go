package fetcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractorString(t *testing.T) {
	e := Extractor{Field: "model", Keys: []string{"model", "model_name", "name"}}

	s, ok := e.String(map[string]any{"name": "GPT-4o"})
	assert.True(t, ok)
	assert.Equal(t, "GPT-4o", s)

	// Earlier keys win even when later ones are present.
	s, ok = e.String(map[string]any{"model": "Claude", "name": "ignored"})
	assert.True(t, ok)
	assert.Equal(t, "Claude", s)

	// Empty strings and wrong types fall through to the next candidate.
	s, ok = e.String(map[string]any{"model": "", "model_name": 42, "name": "fallback"})
	assert.True(t, ok)
	assert.Equal(t, "fallback", s)

	_, ok = e.String(map[string]any{"other": "x"})
	assert.False(t, ok)
}

func TestExtractorFloat(t *testing.T) {
	e := Extractor{Field: "rating", Keys: []string{"rating", "elo"}}

	f, ok := e.Float(map[string]any{"rating": 1234.5})
	assert.True(t, ok)
	assert.Equal(t, 1234.5, f)

	// Providers sometimes ship numbers as strings.
	f, ok = e.Float(map[string]any{"elo": "1187"})
	assert.True(t, ok)
	assert.Equal(t, 1187.0, f)

	_, ok = e.Float(map[string]any{"elo": "not a number"})
	assert.False(t, ok)

	_, ok = e.Float(map[string]any{})
	assert.False(t, ok)
}

func TestExtractorInt(t *testing.T) {
	e := Extractor{Field: "stars", Keys: []string{"stargazers_count", "stars"}}

	n, ok := e.Int(map[string]any{"stargazers_count": float64(4210)})
	assert.True(t, ok)
	assert.Equal(t, 4210, n)

	n, ok = e.Int(map[string]any{"stars": "77"})
	assert.True(t, ok)
	assert.Equal(t, 77, n)
}

func TestSplitRepoURL(t *testing.T) {
	tests := []struct {
		in    string
		owner string
		repo  string
		ok    bool
	}{
		{"https://github.com/langchain-ai/langchain", "langchain-ai", "langchain", true},
		{"https://github.com/org/repo.git", "org", "repo", true},
		{"https://github.com/org/repo/tree/main", "org", "repo", true},
		{"https://gitlab.com/org/repo", "", "", false},
		{"https://github.com/only-owner", "", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		owner, repo, ok := splitRepoURL(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.owner, owner, tt.in)
		assert.Equal(t, tt.repo, repo, tt.in)
	}
}
