package docdb

import (
	"context"
	"fmt"

	"github.com/Sternrassler/docdb-demos/pkg/feed"
)

// byIDQuery selects resources whose id equals the @id parameter.
func byIDQuery(id string) SQLQuery {
	return SQLQuery{
		Query:      "SELECT * FROM root r WHERE r.id = @id",
		Parameters: []SQLParameter{{Name: "@id", Value: id}},
	}
}

// FindDatabase returns the database with the given id, or nil if there is none.
func (c *Client) FindDatabase(ctx context.Context, id string) (*Database, error) {
	dbs, err := feed.GetItems(ctx, c.QueryDatabases(byIDQuery(id)))
	if err != nil {
		return nil, fmt.Errorf("find database %q: %w", id, err)
	}
	if len(dbs) == 0 {
		return nil, nil
	}
	return &dbs[0], nil
}

// GetOrCreateDatabase returns the database with the given id, creating it
// if needed. created reports which branch was taken.
func (c *Client) GetOrCreateDatabase(ctx context.Context, id string) (db *Database, created bool, err error) {
	db, err = c.FindDatabase(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if db != nil {
		return db, false, nil
	}

	db, err = c.CreateDatabase(ctx, id)
	if err != nil {
		return nil, false, fmt.Errorf("create database %q: %w", id, err)
	}
	c.logger.Info().Str("database", id).Str("self", db.SelfLink).Msg("Created database")
	return db, true, nil
}

// FindCollection returns the collection of db with the given id, or nil.
func (c *Client) FindCollection(ctx context.Context, db *Database, id string) (*Collection, error) {
	colls, err := feed.GetItems(ctx, c.QueryCollections(db, byIDQuery(id)))
	if err != nil {
		return nil, fmt.Errorf("find collection %q: %w", id, err)
	}
	if len(colls) == 0 {
		return nil, nil
	}
	return &colls[0], nil
}

// GetOrCreateCollection returns the collection of db with the given id,
// creating it with the service's default policy if needed.
func (c *Client) GetOrCreateCollection(ctx context.Context, db *Database, id string) (coll *Collection, created bool, err error) {
	coll, err = c.FindCollection(ctx, db, id)
	if err != nil {
		return nil, false, err
	}
	if coll != nil {
		return coll, false, nil
	}

	coll, err = c.CreateNewCollection(ctx, db, &Collection{Resource: Resource{ID: id}})
	if err != nil {
		return nil, false, err
	}
	return coll, true, nil
}

// CreateNewCollection creates coll in db, wrapping the error with its id.
func (c *Client) CreateNewCollection(ctx context.Context, db *Database, coll *Collection) (*Collection, error) {
	created, err := c.CreateCollection(ctx, db, coll)
	if err != nil {
		return nil, fmt.Errorf("create collection %q: %w", coll.ID, err)
	}
	c.logger.Info().
		Str("database", db.ID).
		Str("collection", created.ID).
		Msg("Created collection")
	return created, nil
}
