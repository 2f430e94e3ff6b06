package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Sternrassler/docdb-demos/pkg/pagination"
)

// FileName returns the fixture file name of a movie.
func FileName(id int) string {
	return fmt.Sprintf("Movie%06d.json", id)
}

// Exporter writes movie details as pruned, indented JSON files.
type Exporter struct {
	client  *Client
	fetcher *pagination.BatchFetcher
	outDir  string
	out     io.Writer
}

// NewExporter creates an exporter writing into outDir and reporting progress
// to out. pages bounds the listing fetch.
func NewExporter(client *Client, pages pagination.Config, outDir string, out io.Writer) *Exporter {
	if out == nil {
		out = io.Discard
	}
	return &Exporter{
		client:  client,
		fetcher: pagination.NewBatchFetcher(client, pages),
		outDir:  outDir,
		out:     out,
	}
}

// Export replaces the contents of the output directory with one file per
// movie of list and returns the number of files written.
func (e *Exporter) Export(ctx context.Context, list string) (int, error) {
	if err := resetDir(e.outDir); err != nil {
		return 0, err
	}

	pages, err := e.fetcher.FetchAllPages(ctx, list)
	if err != nil {
		return 0, err
	}

	var results []MovieResult
	for i, raw := range pages {
		var ml MovieList
		if err := json.Unmarshal(raw, &ml); err != nil {
			return 0, fmt.Errorf("decode page %d: %w", i+1, err)
		}
		results = append(results, ml.Results...)
	}

	for i, r := range results {
		if err := e.exportMovie(ctx, r.ID); err != nil {
			return i, err
		}
		fmt.Fprintf(e.out, "%03d of %03d - %s\n", i+1, len(results), r.Title)
	}

	e.client.logger.Info().
		Str("list", list).
		Int("movies", len(results)).
		Str("dir", e.outDir).
		Msg("Export complete")
	return len(results), nil
}

func (e *Exporter) exportMovie(ctx context.Context, id int) error {
	movie, err := e.client.Movie(ctx, id)
	if err != nil {
		return err
	}
	movie.Prune()

	data, err := json.MarshalIndent(movie, "", "  ")
	if err != nil {
		return fmt.Errorf("encode movie %d: %w", id, err)
	}
	path := filepath.Join(e.outDir, FileName(id))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// resetDir creates dir or removes the regular files already in it.
func resetDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read %s: %w", dir, err)
	}
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("clear %s: %w", dir, err)
		}
	}
	return nil
}
