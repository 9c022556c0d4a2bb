package fetcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/toolrank/internal/store"
)

func TestIngestBenchmarkPayload(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	id := seedTool(t, s, store.Tool{Slug: "chatgpt", Name: "ChatGPT", Aliases: []string{"gpt-4o"}})

	body := []byte(`{"data": [
		{"name": "GPT-4o", "overall_score": 88.5, "coding_score": 91, "math_score": 85, "reasoning_score": 87},
		{"name": "unlisted-model", "overall_score": 70}
	]}`)

	res, err := IngestBenchmarkPayload(ctx, s, "labbench", body)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 1, res.Skipped)
	assert.Empty(t, res.Errors)

	scores, err := s.ListExternalScores(ctx)
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, "labbench", scores[0].SourceKey)
	assert.Equal(t, 88.5, scores[0].NormalizedScore)

	tool, err := s.GetToolBySlug(ctx, "chatgpt")
	require.NoError(t, err)
	assert.True(t, tool.HasBenchmarkData)
	assert.Equal(t, id, tool.ID)
}

func TestIngestBenchmarkPayloadDefaultSource(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	seedTool(t, s, store.Tool{Slug: "claude", Name: "Claude"})

	res, err := IngestBenchmarkPayload(ctx, s, "", []byte(`[{"name": "Claude", "score": 92}]`))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	scores, err := s.ListExternalScores(ctx)
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, "custombench", scores[0].SourceKey)
}

func TestIngestBenchmarkPayloadMissingOverallIsAnError(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	seedTool(t, s, store.Tool{Slug: "claude", Name: "Claude"})

	res, err := IngestBenchmarkPayload(ctx, s, "labbench", []byte(`[{"name": "Claude"}]`))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "no overall score")
}

func TestIngestBenchmarkPayloadRejectsGarbage(t *testing.T) {
	s := testStore(t)

	_, err := IngestBenchmarkPayload(context.Background(), s, "labbench", []byte(`{"unexpected": true}`))
	require.Error(t, err)
}

func TestDecodeModelRows(t *testing.T) {
	rows, err := decodeModelRows([]byte(`[{"name": "a"}]`))
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	rows, err = decodeModelRows([]byte(`{"models": [{"name": "a"}, {"name": "b"}]}`))
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	_, err = decodeModelRows([]byte(`not json`))
	require.Error(t, err)
}
