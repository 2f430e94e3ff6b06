// Command getmovies exports movie details from the catalogue API as one JSON
// file per movie, the fixtures of the bulk upload demo.
//
// The API key is read from TMDB_API_KEY.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Sternrassler/docdb-demos/pkg/logging"
	"github.com/Sternrassler/docdb-demos/pkg/pagination"
	"github.com/Sternrassler/docdb-demos/pkg/tmdb"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	defaults := pagination.DefaultConfig()

	fs := flag.NewFlagSet("getmovies", flag.ContinueOnError)
	outDir := fs.String("out", "data/bulk", "directory to write Movie######.json files to; existing files are removed")
	list := fs.String("list", "popular", "movie list to export (popular, top_rated, now_playing, upcoming)")
	maxPages := fs.Int("pages", 0, "maximum number of list pages to read, 0 for all")
	concurrency := fs.Int("concurrency", defaults.MaxConcurrency, "list pages fetched in parallel")
	baseURL := fs.String("base-url", tmdb.DefaultBaseURL, "catalogue API root")
	if err := fs.Parse(args); err != nil {
		return err
	}

	level, err := logging.ParseLevel(getEnv("LOG_LEVEL", string(logging.LevelWarn)))
	if err != nil {
		return err
	}
	logging.Setup(logging.Config{Level: level})

	cfg := tmdb.DefaultConfig(os.Getenv("TMDB_API_KEY"))
	cfg.BaseURL = *baseURL
	client, err := tmdb.New(cfg)
	if err != nil {
		return fmt.Errorf("%w (set TMDB_API_KEY)", err)
	}

	exporter := tmdb.NewExporter(client, pagination.Config{
		MaxConcurrency: *concurrency,
		Timeout:        defaults.Timeout,
		MaxPages:       *maxPages,
	}, *outDir, stdout)

	started := time.Now()
	n, err := exporter.Export(ctx, "/movie/"+strings.TrimPrefix(*list, "/movie/"))
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "\nExported %d movies to %s in %s\n", n, *outDir, time.Since(started).Round(time.Millisecond))
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
