// Package demos holds the console demos of the document service: each demo
// runs inside a scratch database that the Runner creates and always deletes.
package demos

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/Sternrassler/docdb-demos/pkg/docdb"
	"github.com/Sternrassler/docdb-demos/pkg/feed"
	"github.com/Sternrassler/docdb-demos/pkg/logging"
	"github.com/Sternrassler/docdb-demos/pkg/media"
	"github.com/rs/zerolog"
)

// Settings configure the runner.
type Settings struct {
	DatabaseID   string
	CollectionID string
	// DataDir holds documents/*.json and attachments/Text.txt.
	DataDir string
	// BulkDir holds the *.json files of the bulk upload.
	BulkDir     string
	Parallelism int
	PageSize    int
}

// DefaultSettings mirrors the built-in configuration.
func DefaultSettings() Settings {
	return Settings{
		DatabaseID:   "DpgDocDbDemo",
		CollectionID: "Demo",
		DataDir:      "data",
		BulkDir:      "data/bulk",
		Parallelism:  8 * runtime.GOMAXPROCS(0),
		PageSize:     50,
	}
}

// Env is what a running demo works with.
type Env struct {
	Client     *docdb.Client
	Console    *Console
	Database   *docdb.Database
	Collection *docdb.Collection
	// Media is nil unless an external media store is configured.
	Media    *media.Store
	Settings Settings
	Logger   zerolog.Logger
}

// Demo is one runnable demo.
type Demo struct {
	Name        string
	Description string
	Run         func(ctx context.Context, env *Env) error
}

// Runner runs demos against one account.
type Runner struct {
	client   *docdb.Client
	console  *Console
	media    *media.Store
	settings Settings
	logger   zerolog.Logger
}

// NewRunner creates a runner. store may be nil.
func NewRunner(client *docdb.Client, console *Console, store *media.Store, settings Settings) *Runner {
	def := DefaultSettings()
	if settings.DatabaseID == "" {
		settings.DatabaseID = def.DatabaseID
	}
	if settings.CollectionID == "" {
		settings.CollectionID = def.CollectionID
	}
	if settings.Parallelism <= 0 {
		settings.Parallelism = def.Parallelism
	}
	if settings.PageSize <= 0 {
		settings.PageSize = def.PageSize
	}
	return &Runner{
		client:   client,
		console:  console,
		media:    store,
		settings: settings,
		logger:   logging.NewLogger("demos"),
	}
}

// Run gets or creates the demo database and collection, runs d and deletes
// the database whatever the outcome. Failures are reported on the console
// and returned.
func (r *Runner) Run(ctx context.Context, d Demo) (err error) {
	r.console.Header(fmt.Sprintf("=== %s: %s ===", d.Name, d.Description))
	defer func() {
		if err != nil {
			r.report(err)
		}
	}()

	env := &Env{
		Client:   r.client,
		Console:  r.console,
		Media:    r.media,
		Settings: r.settings,
		Logger:   r.logger.With().Str("demo", d.Name).Logger(),
	}

	env.Database, err = getOrCreateDatabase(ctx, env, r.settings.DatabaseID)
	if err != nil {
		return err
	}
	defer func() {
		// cleanup must run even when ctx is already cancelled
		if delErr := deleteDatabase(context.WithoutCancel(ctx), env, env.Database); delErr != nil && err == nil {
			err = delErr
		}
	}()

	r.console.Println()
	env.Collection, err = getOrCreateCollection(ctx, env, r.settings.CollectionID)
	if err != nil {
		return err
	}
	r.console.Println()

	if err := d.Run(ctx, env); err != nil {
		return fmt.Errorf("%s: %w", d.Name, err)
	}
	return nil
}

// RunAll runs each demo in turn and returns the joined failures.
func (r *Runner) RunAll(ctx context.Context, demos []Demo) error {
	var errs []error
	for _, d := range demos {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if err := r.Run(ctx, d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Runner) report(err error) {
	r.console.Println()
	if code, ok := docdb.StatusCode(err); ok {
		r.console.Printf("Message: %s, StatusCode: %d\n", err, code)
		return
	}
	r.console.Printf("Message: %s\n", err)
}

// drain reads every page of a feed with the configured page size.
func drain[T any](ctx context.Context, env *Env, fetch feed.FetchFunc[T]) ([]T, error) {
	return feed.NewPager[T](feed.Config{PageSize: env.Settings.PageSize}).Drain(ctx, fetch)
}

func getOrCreateDatabase(ctx context.Context, env *Env, id string) (*docdb.Database, error) {
	env.Console.Printf("Does the %q database exist...", id)
	db, created, err := env.Client.GetOrCreateDatabase(ctx, id)
	if err != nil {
		env.Console.Failed("FAILED!")
		return nil, err
	}
	if created {
		env.Console.Done("NO!")
		env.Console.Printf("Creating the %q database...", id)
		env.Console.Done("CREATED!")
	} else {
		env.Console.Done("YES!")
	}
	return db, nil
}

func deleteDatabase(ctx context.Context, env *Env, db *docdb.Database) error {
	env.Console.Println()
	env.Console.Printf("Deleting the %q database...", db.ID)
	if err := env.Client.DeleteDatabase(ctx, db); err != nil {
		env.Console.Failed("FAILED!")
		return err
	}
	env.Console.Done("DELETED!")
	return nil
}

func getOrCreateCollection(ctx context.Context, env *Env, id string) (*docdb.Collection, error) {
	env.Console.Printf("Does the %q collection exist...", id)
	coll, created, err := env.Client.GetOrCreateCollection(ctx, env.Database, id)
	if err != nil {
		env.Console.Failed("FAILED!")
		return nil, err
	}
	if created {
		env.Console.Done("NO!")
		env.Console.Printf("Creating the %q collection...", id)
		env.Console.Done("CREATED!")
	} else {
		env.Console.Done("YES!")
	}
	return coll, nil
}

// createCollection creates a collection with an explicit indexing policy.
func createCollection(ctx context.Context, env *Env, id string, policy *docdb.IndexingPolicy) (*docdb.Collection, error) {
	env.Console.Printf("Creating the %q collection...", id)
	coll, err := env.Client.CreateNewCollection(ctx, env.Database, &docdb.Collection{
		Resource:       docdb.Resource{ID: id},
		IndexingPolicy: policy,
	})
	if err != nil {
		env.Console.Failed("FAILED!")
		return nil, err
	}
	env.Console.Done("CREATED!")
	return coll, nil
}

func deleteCollection(ctx context.Context, env *Env, coll *docdb.Collection) error {
	env.Console.Printf("Deleting the %q collection...", coll.ID)
	if err := env.Client.DeleteCollection(ctx, coll); err != nil {
		env.Console.Failed("FAILED!")
		return err
	}
	env.Console.Done("DELETED!")
	return nil
}
