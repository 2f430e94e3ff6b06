package demos

import (
	"context"
	"fmt"

	"github.com/Sternrassler/docdb-demos/pkg/docdb"
)

// RunDatabases lists the databases of the account, by feed and by query.
func RunDatabases(ctx context.Context, env *Env) error {
	dbs, err := drain(ctx, env, env.Client.DatabaseFeed())
	if err != nil {
		return fmt.Errorf("list databases: %w", err)
	}
	env.Console.Println("The following databases were found:")
	for _, db := range dbs {
		env.Console.Printf("  - %s\n", db.ID)
	}

	env.Console.Separator()

	q := docdb.SQLQuery{
		Query:      "SELECT * FROM root r WHERE r.id = @id",
		Parameters: []docdb.SQLParameter{{Name: "@id", Value: env.Database.ID}},
	}
	env.Console.Printf("Databases found using %q (via Query):\n", q.Query)
	found, err := drain(ctx, env, env.Client.QueryDatabases(q))
	if err != nil {
		return fmt.Errorf("query databases: %w", err)
	}
	for _, db := range found {
		env.Console.Printf("  - %s\n", db.ID)
	}
	if len(found) != 1 {
		return fmt.Errorf("query for %q returned %d databases", env.Database.ID, len(found))
	}
	return nil
}
