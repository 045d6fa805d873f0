package search

import (
	"context"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"lawgpt/internal/logger"
)

const DefaultCacheSize = 256

// Cached memoizes successful searches by normalized query.
type Cached struct {
	next  Searcher
	cache *lru.Cache[string, Results]
}

func NewCached(next Searcher, size int) (*Cached, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, Results](size)
	if err != nil {
		return nil, err
	}
	return &Cached{next: next, cache: cache}, nil
}

func (c *Cached) Search(ctx context.Context, query string) (Results, error) {
	key := strings.ToLower(strings.Join(strings.Fields(query), " "))
	if r, ok := c.cache.Get(key); ok {
		logger.Log.Debugw("search cache hit", "query", query)
		return r, nil
	}
	r, err := c.next.Search(ctx, query)
	if err != nil {
		return Results{}, err
	}
	c.cache.Add(key, r)
	return r, nil
}

func (c *Cached) Len() int { return c.cache.Len() }
