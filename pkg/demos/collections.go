package demos

import (
	"context"
	"fmt"

	"github.com/Sternrassler/docdb-demos/pkg/docdb"
)

const testCollectionID = "Test"

// RunCollections creates a scratch collection next to the demo collection,
// lists both by feed and by query, and deletes the scratch one again.
func RunCollections(ctx context.Context, env *Env) error {
	test, err := getOrCreateCollection(ctx, env, testCollectionID)
	if err != nil {
		return err
	}

	env.Console.Separator()

	colls, err := drain(ctx, env, env.Client.CollectionFeed(env.Database))
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	env.Console.Printf("Collections found using %q (via Feed):\n", env.Database.CollectionsLink())
	for _, c := range colls {
		env.Console.Printf(" - %s\n", c.ID)
	}

	env.Console.Println()

	q := docdb.SQLQuery{
		Query:      "SELECT * FROM root r WHERE r.id = @id",
		Parameters: []docdb.SQLParameter{{Name: "@id", Value: testCollectionID}},
	}
	found, err := drain(ctx, env, env.Client.QueryCollections(env.Database, q))
	if err != nil {
		return fmt.Errorf("query collections: %w", err)
	}
	env.Console.Printf("Collections found using %q (via Query):\n", q.Query)
	for _, c := range found {
		env.Console.Printf(" - %s\n", c.ID)
	}
	if len(found) != 1 {
		return fmt.Errorf("query for %q returned %d collections", testCollectionID, len(found))
	}

	env.Console.Separator()

	env.Console.Printf("Switching the %q collection to lazy indexing...", test.ID)
	current, err := env.Client.ReadCollection(ctx, test.Link())
	if err != nil {
		env.Console.Failed("FAILED!")
		return err
	}
	if current.IndexingPolicy == nil {
		current.IndexingPolicy = docdb.DefaultIndexingPolicy()
	}
	current.IndexingPolicy.IndexingMode = docdb.IndexingModeLazy
	test, err = env.Client.ReplaceCollection(ctx, current)
	if err != nil {
		env.Console.Failed("FAILED!")
		return err
	}
	env.Console.Done("REPLACED!")
	env.Console.Printf("Indexing mode of %q is now %s\n", test.ID, current.IndexingPolicy.IndexingMode)

	env.Console.Separator()

	env.Console.Printf("Deleting the %q collection (for demo purposes, only)...", test.ID)
	if err := env.Client.DeleteCollection(ctx, test); err != nil {
		env.Console.Failed("FAILED!")
		return err
	}
	env.Console.Done("DELETED!")
	return nil
}
