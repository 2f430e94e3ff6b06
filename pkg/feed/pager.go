package feed

import (
	"context"
	"errors"
	"fmt"
)

// DefaultPageSize is the max item count requested per page.
const DefaultPageSize = 50

var (
	// ErrMalformedResponse is returned when a page has no item collection
	// but still points at a next page.
	ErrMalformedResponse = errors.New("feed: malformed page response")

	// ErrTooManyPages is returned when a pager with MaxPages set sees more pages.
	ErrTooManyPages = errors.New("feed: page limit exceeded")
)

// Request is the paging configuration sent to a FetchFunc.
type Request struct {
	// MaxItemCount is the maximum number of items the page may hold.
	MaxItemCount int

	// Continuation resumes the feed; empty on the first request.
	Continuation Token
}

// Response is one page of a feed.
type Response[T any] struct {
	Items []T
	Next  Token
}

// FetchFunc fetches exactly one page of a feed.
type FetchFunc[T any] func(ctx context.Context, req Request) (Response[T], error)

// Config holds pager configuration.
type Config struct {
	// PageSize is the max item count sent with every request.
	PageSize int

	// MaxPages aborts the drain with ErrTooManyPages once exceeded.
	// Zero means no limit.
	MaxPages int
}

// DefaultConfig returns the configuration used by GetItems.
func DefaultConfig() Config {
	return Config{
		PageSize: DefaultPageSize,
	}
}

// Pager drains a feed into a slice. A Pager holds no per-drain state and may
// be shared between goroutines.
type Pager[T any] struct {
	config Config
}

// NewPager creates a pager. A non-positive page size falls back to DefaultPageSize.
func NewPager[T any](config Config) *Pager[T] {
	if config.PageSize <= 0 {
		config.PageSize = DefaultPageSize
	}
	if config.MaxPages < 0 {
		config.MaxPages = 0
	}
	return &Pager[T]{config: config}
}

// Drain calls fetch until the feed reports no continuation and returns every
// item in fetch order. If fetch fails, its error is returned as is and the
// items gathered so far are dropped.
func (p *Pager[T]) Drain(ctx context.Context, fetch FetchFunc[T]) ([]T, error) {
	var (
		items []T
		next  Token
		pages int
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if p.config.MaxPages > 0 && pages >= p.config.MaxPages {
			return nil, fmt.Errorf("%w: more than %d pages", ErrTooManyPages, p.config.MaxPages)
		}

		resp, err := fetch(ctx, Request{
			MaxItemCount: p.config.PageSize,
			Continuation: next,
		})
		if err != nil {
			return nil, err
		}
		pages++

		if resp.Items == nil && !resp.Next.IsEmpty() {
			return nil, fmt.Errorf("%w: page %d has no items but a continuation", ErrMalformedResponse, pages)
		}

		items = append(items, resp.Items...)

		if resp.Next.IsEmpty() {
			break
		}
		next = resp.Next
	}

	if items == nil {
		items = []T{}
	}
	return items, nil
}

// GetItems drains fetch with DefaultPageSize and no page limit.
func GetItems[T any](ctx context.Context, fetch FetchFunc[T]) ([]T, error) {
	return NewPager[T](DefaultConfig()).Drain(ctx, fetch)
}
