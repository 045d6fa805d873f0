package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lawgpt/internal/tags"
)

func TestSimulated(t *testing.T) {
	s := &Simulated{}
	r, err := s.Search(context.Background(), "  illegal dismissal  ")
	require.NoError(t, err)

	assert.Equal(t, "illegal dismissal", r.Query)
	require.Len(t, r.Results, 2)
	assert.Equal(t, "Simulated Case 1: illegal dismissal", r.Results[0].Title)
	assert.Equal(t, "http://example.com/case2", r.Results[1].URL)

	_, err = s.Search(context.Background(), " ")
	assert.Error(t, err)
}

func TestSimulated_HonorsContext(t *testing.T) {
	s := &Simulated{Delay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Search(ctx, "q")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDirective_RoundTrips(t *testing.T) {
	line, err := Directive(Results{Query: "Art. 282 <Labor Code>", Results: []Result{{Title: "A", URL: "u", Snippet: "s"}}})
	require.NoError(t, err)
	assert.Contains(t, line, "[WEB_SEARCH_RESULTS: {")
	assert.Contains(t, line, "<Labor Code>", "HTML is not escaped")

	parsed := tags.Parse(line)
	obj, ok := parsed[ResultsTag].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Art. 282 <Labor Code>", obj["query"])
	assert.Len(t, obj["results"], 1)
}

func TestDirective_EmptyResults(t *testing.T) {
	line, err := Directive(Results{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, `[WEB_SEARCH_RESULTS: {"query":"q","results":[]}]`, line)
}

type countingSearcher struct{ calls int }

func (c *countingSearcher) Search(_ context.Context, q string) (Results, error) {
	c.calls++
	return Results{Query: q}, nil
}

func TestCached(t *testing.T) {
	inner := &countingSearcher{}
	c, err := NewCached(inner, 0)
	require.NoError(t, err)

	_, err = c.Search(context.Background(), "Labor  Code")
	require.NoError(t, err)
	_, err = c.Search(context.Background(), "labor code")
	require.NoError(t, err)
	_, err = c.Search(context.Background(), "civil code")
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, 2, c.Len())
}
