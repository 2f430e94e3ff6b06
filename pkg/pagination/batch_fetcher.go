package pagination

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Config tunes a BatchFetcher.
type Config struct {
	// MaxConcurrency bounds the page requests in flight after page 1.
	MaxConcurrency int
	// Timeout applies to each page request.
	Timeout time.Duration
	// MaxPages caps the number of pages fetched; 0 fetches all of them.
	MaxPages int
}

// DefaultConfig returns a conservative configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        15 * time.Second,
	}
}

// PageFetcher fetches a single numbered page (1-based) of a listing.
type PageFetcher interface {
	// FetchPage returns the raw page plus the total page count of the listing.
	FetchPage(ctx context.Context, endpoint string, pageNum int) (data []byte, totalPages int, err error)
}

// BatchFetcher fetches every page of a listing with bounded parallelism.
type BatchFetcher struct {
	fetcher PageFetcher
	config  Config
}

// NewBatchFetcher fills unset fields of config with DefaultConfig values.
func NewBatchFetcher(fetcher PageFetcher, config Config) *BatchFetcher {
	def := DefaultConfig()
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = def.MaxConcurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.MaxPages < 0 {
		config.MaxPages = 0
	}
	return &BatchFetcher{fetcher: fetcher, config: config}
}

// FetchAllPages returns the raw pages of endpoint in page order. Any page
// failure cancels the remaining work and is returned without partial data.
func (bf *BatchFetcher) FetchAllPages(ctx context.Context, endpoint string) ([][]byte, error) {
	start := time.Now()

	first, total, err := bf.fetchOne(ctx, endpoint, 1)
	if err != nil {
		return nil, fmt.Errorf("fetch page 1 of %s: %w", endpoint, err)
	}
	total = bf.clamp(total)

	pages := make([][]byte, total)
	pages[0] = first
	if total == 1 {
		return pages, nil
	}

	logger := log.With().Str("endpoint", endpoint).Int("total_pages", total).Logger()
	logger.Info().Msg("Fetching remaining pages")

	var done atomic.Int64
	done.Store(1)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bf.config.MaxConcurrency)
	for n := 2; n <= total; n++ {
		if gctx.Err() != nil {
			break
		}
		n := n
		g.Go(func() error {
			data, _, err := bf.fetchOne(gctx, endpoint, n)
			if err != nil {
				return fmt.Errorf("fetch page %d of %s: %w", n, endpoint, err)
			}
			// each goroutine owns its slot
			pages[n-1] = data
			if c := done.Add(1); c%50 == 0 {
				logger.Info().Int64("fetched", c).Msg("Fetch progress")
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Warn().Err(err).Int64("fetched_pages", done.Load()).Msg("Batch fetch aborted")
		return nil, err
	}
	if int(done.Load()) < total {
		// the loop stopped early because ctx was cancelled before any page failed
		return nil, ctx.Err()
	}

	logger.Info().Dur("duration", time.Since(start)).Msg("Fetch complete")
	return pages, nil
}

// clamp bounds the reported page count to [1, MaxPages].
func (bf *BatchFetcher) clamp(total int) int {
	if total < 1 {
		total = 1
	}
	if bf.config.MaxPages > 0 && total > bf.config.MaxPages {
		total = bf.config.MaxPages
	}
	return total
}

func (bf *BatchFetcher) fetchOne(ctx context.Context, endpoint string, pageNum int) ([]byte, int, error) {
	pageCtx, cancel := context.WithTimeout(ctx, bf.config.Timeout)
	defer cancel()
	return bf.fetcher.FetchPage(pageCtx, endpoint, pageNum)
}
