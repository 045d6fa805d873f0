// Package search answers the researcher's web_search directive.
package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"lawgpt/internal/tags"
)

// ResultsTag is the directive key the search results are delivered under.
const ResultsTag = "WEB_SEARCH_RESULTS"

type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

type Results struct {
	Query   string   `json:"query"`
	Results []Result `json:"results"`
}

type Searcher interface {
	Search(ctx context.Context, query string) (Results, error)
}

// Directive renders r as the synthetic turn fed back to the researcher.
func Directive(r Results) (string, error) {
	if r.Results == nil {
		r.Results = []Result{}
	}
	return tags.Format(ResultsTag, r)
}

// DefaultDelay mimics the latency of a real search backend.
const DefaultDelay = 1500 * time.Millisecond

// Simulated returns two placeholder cases derived from the query.
type Simulated struct {
	Delay time.Duration
}

func NewSimulated() *Simulated {
	return &Simulated{Delay: DefaultDelay}
}

func (s *Simulated) Search(ctx context.Context, query string) (Results, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Results{}, fmt.Errorf("search: empty query")
	}
	if s.Delay > 0 {
		t := time.NewTimer(s.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return Results{}, ctx.Err()
		case <-t.C:
		}
	}
	return Results{
		Query: query,
		Results: []Result{
			{
				Title:   "Simulated Case 1: " + query,
				URL:     "http://example.com/case1",
				Snippet: "This is a simulated snippet for case 1 related to " + query + ". Lorem ipsum dolor sit amet.",
			},
			{
				Title:   "Simulated Case 2: " + query,
				URL:     "http://example.com/case2",
				Snippet: "Another simulated snippet for case 2 on " + query + ". Consectetur adipiscing elit.",
			},
		},
	}, nil
}
