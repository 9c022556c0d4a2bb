package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testMatcher() *Matcher {
	return New([]Entry{
		{ToolID: 1, Name: "ChatGPT", Slug: "chatgpt", Aliases: []string{"gpt-4o", "gpt-4"}},
		{ToolID: 2, Name: "Claude", Slug: "claude", Aliases: []string{"claude-3.5-sonnet"}},
		{ToolID: 3, Name: "GitHub Copilot", Slug: "github-copilot"},
		{ToolID: 4, Name: "Midjourney", Slug: "midjourney"},
	})
}

func TestMatchExact(t *testing.T) {
	m := testMatcher()

	tests := []struct {
		name string
		in   string
		want int64
	}{
		{"name as-is", "ChatGPT", 1},
		{"case insensitive", "chatgpt", 1},
		{"slug", "github-copilot", 3},
		{"alias", "GPT-4o", 1},
		{"surrounding whitespace", "  Claude  ", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := m.Match(tt.in)
			assert.True(t, ok)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestMatchNormalized(t *testing.T) {
	m := testMatcher()

	// Punctuation and version-suffix differences collapse to the same form.
	id, ok := m.Match("gpt 4o")
	assert.True(t, ok)
	assert.Equal(t, int64(1), id)

	id, ok = m.Match("Claude 3.5 Sonnet")
	assert.True(t, ok)
	assert.Equal(t, int64(2), id)
}

func TestMatchContainment(t *testing.T) {
	m := testMatcher()

	id, ok := m.Match("Midjourney (official)")
	assert.True(t, ok)
	assert.Equal(t, int64(4), id)

	// Short normalized forms never match by containment.
	_, ok = m.Match("git")
	assert.False(t, ok)
}

func TestMatchMiss(t *testing.T) {
	m := testMatcher()

	_, ok := m.Match("Totally Unknown Model X")
	assert.False(t, ok)

	_, ok = m.Match("")
	assert.False(t, ok)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"GPT-4o", "gpt"},
		{"gpt 4o", "gpt"},
		{"Claude 3.5 Sonnet", "claude 3 5 sonnet"},
		{"GitHub Copilot", "github copilot"},
		{"Stable Diffusion v2", "stable diffusion"},
		{"llama-3-70b", "llama 3"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalize(tt.in), "normalize(%q)", tt.in)
	}
}
