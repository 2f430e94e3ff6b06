// Command docdb-demo runs the document service demos.
//
// Usage:
//
//	docdb-demo [-config demo.yaml] [-no-color] [-list] [demo ...]
//
// Without demo names every demo runs in order. The account comes from the
// config file or DOCDB_ENDPOINT and DOCDB_MASTER_KEY.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/docdb-demos/internal/config"
	"github.com/Sternrassler/docdb-demos/pkg/docdb"
	"github.com/Sternrassler/docdb-demos/pkg/demos"
	"github.com/Sternrassler/docdb-demos/pkg/logging"
	"github.com/Sternrassler/docdb-demos/pkg/media"
	"github.com/Sternrassler/docdb-demos/pkg/metrics"
	"github.com/fatih/color"
	"github.com/redis/go-redis/v9"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "docdb-demo:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("docdb-demo", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	noColor := fs.Bool("no-color", false, "disable colored output")
	list := fs.Bool("list", false, "list the demos and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *list {
		for _, d := range demos.All() {
			fmt.Fprintf(stdout, "%-12s %s\n", d.Name, d.Description)
		}
		return nil
	}

	selected, err := demos.Select(fs.Args()...)
	if err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := logging.Setup(logging.Config{Level: level, Pretty: cfg.Log.Pretty})

	clientCfg := docdb.DefaultConfig(cfg.DocDB.Endpoint, cfg.DocDB.MasterKey)
	clientCfg.UserAgent = cfg.DocDB.UserAgent
	clientCfg.Timeout = cfg.DocDB.Timeout

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")
		clientCfg.Redis = rdb
	}

	client, err := docdb.New(clientCfg)
	if err != nil {
		return err
	}
	defer client.Close()

	var store *media.Store
	if cfg.Media.Enabled() {
		store, err = media.New(cfg.Media.Store())
		if err != nil {
			return err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("prepare media bucket: %w", err)
		}
	}

	if cfg.Metrics.Addr != "" {
		srv, err := metrics.Listen(cfg.Metrics.Addr, logger)
		if err != nil {
			return fmt.Errorf("metrics listener: %w", err)
		}
		metricsCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() { done <- srv.Serve(metricsCtx) }()
		defer func() {
			cancel()
			if err := <-done; err != nil {
				logger.Warn().Err(err).Msg("Metrics server stopped")
			}
		}()
	}

	colored := !*noColor && !color.NoColor && stdout == io.Writer(os.Stdout)
	runner := demos.NewRunner(client, demos.NewConsole(stdout, colored), store, demos.Settings{
		DatabaseID:   cfg.Demo.DatabaseID,
		CollectionID: cfg.Demo.CollectionID,
		DataDir:      cfg.Demo.DataDir,
		BulkDir:      cfg.Demo.BulkDir,
		Parallelism:  cfg.Demo.Parallelism,
		PageSize:     cfg.Demo.PageSize,
	})
	return runner.RunAll(ctx, selected)
}
