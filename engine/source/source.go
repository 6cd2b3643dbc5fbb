// Package source fetches pages of posts matching a search query, either
// from a recent-search HTTP API or from a deterministic simulator.
package source

import (
	"context"
	"errors"

	"github.com/centinela-gamma/centinela/engine/domain"
)

// ErrNoMorePages is returned once a query's result set is exhausted.
var ErrNoMorePages = errors.New("no more pages")

// PageFetcher returns the next page of posts for query. Implementations
// track pagination per query and must be safe for concurrent use.
type PageFetcher interface {
	FetchPage(ctx context.Context, query string, pageSize int) ([]domain.Post, error)
}

// FetcherFunc adapts a function to PageFetcher.
type FetcherFunc func(ctx context.Context, query string, pageSize int) ([]domain.Post, error)

// FetchPage calls f.
func (f FetcherFunc) FetchPage(ctx context.Context, query string, pageSize int) ([]domain.Post, error) {
	return f(ctx, query, pageSize)
}
