package demos

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"
)

var bulkDocumentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "docdb_bulk_documents_total",
	Help: "Documents processed by the bulk upload by result",
}, []string{"result"})

// RunBulkUpload uploads every *.json file of the bulk directory into the
// demo collection, Parallelism files at a time.
func RunBulkUpload(ctx context.Context, env *Env) error {
	files, err := filepath.Glob(filepath.Join(env.Settings.BulkDir, "*.json"))
	if err != nil {
		return err
	}
	sort.Strings(files)

	env.Console.Printf("Adding JSON documents to the %q collection", env.Collection.ID)
	started := time.Now()

	var added atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(env.Settings.Parallelism)
	for _, name := range files {
		name := name
		g.Go(func() error {
			if err := uploadFile(gctx, env, name); err != nil {
				bulkDocumentsTotal.WithLabelValues("error").Inc()
				return err
			}
			bulkDocumentsTotal.WithLabelValues("created").Inc()
			added.Add(1)
			env.Console.Printf(".")
			return nil
		})
	}
	err = g.Wait()

	env.Console.Println()
	env.Console.Println()
	elapsed := time.Since(started).Round(time.Millisecond)
	env.Logger.Info().
		Int64("added", added.Load()).
		Int("files", len(files)).
		Dur("elapsed", elapsed).
		Msg("Bulk upload finished")
	if err != nil {
		return fmt.Errorf("bulk upload: %w", err)
	}
	env.Console.Printf("Added %d JSON documents to the %s collection in %s\n", added.Load(), env.Collection.ID, elapsed)
	return nil
}

func uploadFile(ctx context.Context, env *Env, name string) error {
	data, err := os.ReadFile(name)
	if err != nil {
		return err
	}
	if !json.Valid(data) {
		return fmt.Errorf("%s: not valid JSON", name)
	}
	if _, err := env.Client.CreateDocument(ctx, env.Collection, json.RawMessage(data), nil); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
