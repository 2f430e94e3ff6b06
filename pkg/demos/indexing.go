package demos

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Sternrassler/docdb-demos/pkg/docdb"
	"github.com/Sternrassler/docdb-demos/pkg/document"
)

// lazyPollAttempts bounds how often a lazily indexed document is looked for.
const lazyPollAttempts = 10

var lazyPollInterval = 200 * time.Millisecond

// RunIndexing walks through indexing directives, manual and lazy indexing,
// range indexes and excluded paths, each in its own collection.
func RunIndexing(ctx context.Context, env *Env) error {
	steps := []func(context.Context, *Env) error{
		explicitlyExcludeFromIndex,
		useManualIndexing,
		useLazyIndexing,
		useRangeIndexes,
		excludePathsFromIndex,
		rangeScanOnHashIndex,
	}
	for _, step := range steps {
		env.Console.Separator()
		if err := step(ctx, env); err != nil {
			return err
		}
	}
	return nil
}

// withCollection runs fn against a fresh collection and deletes it afterwards.
func withCollection(ctx context.Context, env *Env, id string, policy *docdb.IndexingPolicy, fn func(*docdb.Collection) error) error {
	coll, err := createCollection(ctx, env, id, policy)
	if err != nil {
		return err
	}
	env.Console.Println()
	err = fn(coll)
	env.Console.Println()
	if delErr := deleteCollection(context.WithoutCancel(ctx), env, coll); delErr != nil && err == nil {
		err = delErr
	}
	return err
}

func orderDoc(id, orderID string) document.Value {
	return document.Object(
		document.F("id", document.String(id)),
		document.F("orderId", document.String(orderID)),
	)
}

// findAny reports whether q matches at least one document.
func findAny(ctx context.Context, env *Env, coll *docdb.Collection, q string) (bool, error) {
	items, err := drain(ctx, env, env.Client.QueryDocuments(coll, docdb.Query(q), docdb.QueryOptions{}))
	if err != nil {
		return false, err
	}
	return len(items) > 0, nil
}

// reportFound prints FOUND!/NOT FOUND! and fails when the outcome differs.
func reportFound(env *Env, what string, found, want bool) error {
	if found {
		env.Console.Done("FOUND!")
	} else {
		env.Console.Done("NOT FOUND!")
	}
	if found != want {
		return fmt.Errorf("%w: %s found=%t, expected %t", errUnexpectedCount, what, found, want)
	}
	return nil
}

// expectBadRequest runs q and requires the service to reject it with 400.
func expectBadRequest(ctx context.Context, env *Env, coll *docdb.Collection, q string) error {
	env.Console.Printf("Querying %q...", q)
	_, err := drain(ctx, env, env.Client.QueryDocuments(coll, docdb.Query(q), docdb.QueryOptions{}))
	if code, ok := docdb.StatusCode(err); ok && code == http.StatusBadRequest {
		env.Console.Done("BAD REQUEST (as expected)")
		return nil
	}
	env.Console.Failed("FAILED!")
	if err != nil {
		return err
	}
	return fmt.Errorf("query %q succeeded but should have been rejected", q)
}

// expectCount runs q and requires exactly want results.
func expectCount(ctx context.Context, env *Env, coll *docdb.Collection, q string, opts docdb.QueryOptions, want int) error {
	return runQuery(ctx, env, coll, fmt.Sprintf("%q", q), want, docdb.Query(q), opts)
}

func explicitlyExcludeFromIndex(ctx context.Context, env *Env) error {
	return withCollection(ctx, env, "ExplicitlyExcludeFromIndex", nil, func(coll *docdb.Collection) error {
		env.Console.Printf("Create then read DOC1 using default index...")
		doc1, err := env.Client.CreateDocument(ctx, coll, orderDoc("DOC1", "ORDER1"), nil)
		if err != nil {
			return err
		}
		found, err := findAny(ctx, env, coll, "SELECT * FROM root r WHERE r.orderId='ORDER1'")
		if err != nil {
			return err
		}
		if err := reportFound(env, "DOC1", found, true); err != nil {
			return err
		}

		env.Console.Println()
		env.Console.Printf("Try to read DOC1 using a mis-cased value...")
		found, err = findAny(ctx, env, coll, "SELECT * FROM root r WHERE r.orderId='order1'")
		if err != nil {
			return err
		}
		if err := reportFound(env, "DOC1 (mis-cased)", found, false); err != nil {
			return err
		}

		env.Console.Println()
		env.Console.Printf("Create DOC2, but exclude from index, then try to read...")
		_, err = env.Client.CreateDocument(ctx, coll, orderDoc("DOC2", "ORDER2"),
			&docdb.RequestOptions{IndexingDirective: docdb.IndexingDirectiveExclude})
		if err != nil {
			return err
		}
		found, err = findAny(ctx, env, coll, "SELECT * FROM root r WHERE r.orderId='ORDER2'")
		if err != nil {
			return err
		}
		if err := reportFound(env, "DOC2", found, false); err != nil {
			return err
		}

		env.Console.Println()
		env.Console.Println("Read DOC1 (the indexing directive applies to a single write):")
		read, err := env.Client.ReadDocument(ctx, doc1.Link())
		if err != nil {
			return err
		}
		body, _ := read.Body.MarshalJSON()
		env.Console.Println(string(body))
		return nil
	})
}

func useManualIndexing(ctx context.Context, env *Env) error {
	env.Console.Println("Collection.IndexingPolicy.Automatic = false")
	policy := docdb.DefaultIndexingPolicy()
	policy.Automatic = false
	return withCollection(ctx, env, "UseManualIndexing", policy, func(coll *docdb.Collection) error {
		env.Console.Printf("Create then attempt to find DOC1 via a query...")
		created, err := env.Client.CreateDocument(ctx, coll, orderDoc("DOC1", "ORDER1"), nil)
		if err != nil {
			return err
		}
		found, err := findAny(ctx, env, coll, "SELECT * FROM root r WHERE r.orderId='ORDER1'")
		if err != nil {
			return err
		}
		if err := reportFound(env, "DOC1", found, false); err != nil {
			return err
		}

		env.Console.Println()
		env.Console.Printf("Read DOC1 via its self link...")
		if _, err := env.Client.ReadDocument(ctx, created.Link()); err != nil {
			env.Console.Failed("NOT FOUND!")
			return err
		}
		env.Console.Done("FOUND!")

		env.Console.Println()
		env.Console.Printf("Create then find DOC2 after setting the indexing directive to Include...")
		_, err = env.Client.CreateDocument(ctx, coll, orderDoc("DOC2", "ORDER2"),
			&docdb.RequestOptions{IndexingDirective: docdb.IndexingDirectiveInclude})
		if err != nil {
			return err
		}
		found, err = findAny(ctx, env, coll, "SELECT * FROM root r WHERE r.orderId='ORDER2'")
		if err != nil {
			return err
		}
		return reportFound(env, "DOC2", found, true)
	})
}

func useLazyIndexing(ctx context.Context, env *Env) error {
	policy := docdb.DefaultIndexingPolicy()
	policy.IndexingMode = docdb.IndexingModeLazy
	return withCollection(ctx, env, "UseLazyIndexing", policy, func(coll *docdb.Collection) error {
		env.Console.Printf("Wrote DOC1 using lazy indexing...")
		if _, err := env.Client.CreateDocument(ctx, coll, orderDoc("DOC1", "ORDER1"), nil); err != nil {
			env.Console.Failed("FAILED!")
			return err
		}
		env.Console.Done("SUCCESS!")
		env.Console.Println()

		for attempt := 1; attempt <= lazyPollAttempts; attempt++ {
			env.Console.Printf("Attempting to read DOC1...")
			found, err := findAny(ctx, env, coll, "SELECT * FROM root r WHERE r.orderId='ORDER1'")
			if err != nil {
				return err
			}
			if found {
				env.Console.Done("FOUND!")
				return nil
			}
			env.Console.Done("NOT FOUND!")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(lazyPollInterval):
			}
		}
		env.Console.Println()
		env.Console.Println("The DOC1 document has yet to be indexed")
		return nil
	})
}

func useRangeIndexes(ctx context.Context, env *Env) error {
	policy := docdb.DefaultIndexingPolicy()
	policy.IncludedPaths = append(policy.IncludedPaths, docdb.IncludedPath{
		Path:    "/shippedTimestamp/?",
		Indexes: []docdb.Index{{Kind: docdb.IndexKindRange, DataType: docdb.DataTypeNumber, Precision: 7}},
	})
	return withCollection(ctx, env, "UseRangeIndexes", policy, func(coll *docdb.Collection) error {
		now := time.Now().UTC()
		for i, daysAgo := range []int{0, 7, 14, 30} {
			doc := document.Object(
				document.F("id", document.String(fmt.Sprintf("doc%d", i+1))),
				document.F("shippedTimestamp", document.Int(now.AddDate(0, 0, -daysAgo).Unix())),
			)
			if _, err := env.Client.CreateDocument(ctx, coll, doc, nil); err != nil {
				return err
			}
		}

		q := fmt.Sprintf("SELECT * FROM root r WHERE r.shippedTimestamp >= %d AND r.shippedTimestamp <= %d",
			now.AddDate(0, 0, -10).Unix(), now.Unix())
		env.Console.Printf("Documents shipped within the last 10 days:\n")
		docs, err := drain(ctx, env, env.Client.QueryDocuments(coll, docdb.Query(q), docdb.QueryOptions{}))
		if err != nil {
			return err
		}
		for _, d := range docs {
			body, _ := d.MarshalJSON()
			env.Console.Println(string(body))
		}
		if len(docs) != 2 {
			return fmt.Errorf("%w: range query returned %d documents instead of the expected 2", errUnexpectedCount, len(docs))
		}
		return nil
	})
}

func excludePathsFromIndex(ctx context.Context, env *Env) error {
	doc := document.Object(
		document.F("id", document.String("doc1")),
		document.F("metaData", document.String("meta")),
		document.F("subDoc", document.Object(
			document.F("searchable", document.String("searchable")),
			document.F("subSubDoc", document.Object(
				document.F("someProperty", document.String("value")),
			)),
		)),
	)

	policy := docdb.DefaultIndexingPolicy()
	policy.ExcludedPaths = []docdb.ExcludedPath{
		{Path: "/metaData/*"},
		{Path: "/subDoc/subSubDoc/someProperty/*"},
	}
	err := withCollection(ctx, env, "ExcludePathsFromIndex", policy, func(coll *docdb.Collection) error {
		if _, err := env.Client.CreateDocument(ctx, coll, doc, nil); err != nil {
			return err
		}
		for _, q := range []string{
			"SELECT * FROM root r WHERE r.metaData='meta'",
			"SELECT * FROM root r WHERE r.subDoc.subSubDoc.someProperty='value'",
		} {
			if err := expectBadRequest(ctx, env, coll, q); err != nil {
				return err
			}
		}
		for _, q := range []string{
			"SELECT * FROM root r WHERE r.id='doc1'",
			"SELECT * FROM root r WHERE r.subDoc.searchable='searchable'",
		} {
			if err := expectCount(ctx, env, coll, q, docdb.QueryOptions{}, 1); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	env.Console.Println()
	policy = docdb.DefaultIndexingPolicy()
	policy.ExcludedPaths = []docdb.ExcludedPath{{Path: "/subDoc/*"}}
	return withCollection(ctx, env, "ExcludeSubDocFromIndex", policy, func(coll *docdb.Collection) error {
		if _, err := env.Client.CreateDocument(ctx, coll, doc, nil); err != nil {
			return err
		}
		return expectBadRequest(ctx, env, coll, "SELECT * FROM root r WHERE r.subDoc.searchable='searchable'")
	})
}

func rangeScanOnHashIndex(ctx context.Context, env *Env) error {
	policy := docdb.DefaultIndexingPolicy()
	policy.ExcludedPaths = []docdb.ExcludedPath{{Path: "/length/*"}}
	return withCollection(ctx, env, "RangeScanOnHashIndex", policy, func(coll *docdb.Collection) error {
		for i, length := range []int64{10, 7, 2} {
			doc := document.Object(
				document.F("id", document.String(fmt.Sprintf("dyn%d", i+1))),
				document.F("length", document.Int(length)),
			)
			if _, err := env.Client.CreateDocument(ctx, coll, doc, nil); err != nil {
				return err
			}
		}

		const q = "SELECT * FROM root r WHERE r.length > 5"
		if err := expectBadRequest(ctx, env, coll, q); err != nil {
			return err
		}
		return expectCount(ctx, env, coll, q, docdb.QueryOptions{EnableScan: true}, 2)
	})
}
