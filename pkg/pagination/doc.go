// Package pagination fetches page-numbered listings in parallel.
//
// Some upstream APIs (the movie catalogue used for fixtures, for one) page by
// number and report the total page count with every page. This package fetches
// page 1 to learn that count, then fetches the rest through an errgroup with a
// concurrency limit and returns them in page order.
//
// Example usage:
//
//	fetcher := pagination.NewBatchFetcher(movies, pagination.DefaultConfig())
//	pages, err := fetcher.FetchAllPages(ctx, "/movie/popular")
//
// The batch fetcher:
//   - Fetches the first page to determine the total
//   - Caps the total with Config.MaxPages when set
//   - Runs at most Config.MaxConcurrency page fetches at a time
//   - Returns pages in page order
//   - Aborts on the first failed page and returns no partial data
package pagination
