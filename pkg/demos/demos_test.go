package demos

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/docdb-demos/internal/testutil"
	"github.com/Sternrassler/docdb-demos/pkg/docdb"
	"github.com/Sternrassler/docdb-demos/pkg/document"
	"github.com/Sternrassler/docdb-demos/pkg/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dataDir = "../../data"

func newTestRunner(t *testing.T, mock *testutil.MockDocDB, store *media.Store, settings Settings) (*Runner, *bytes.Buffer) {
	t.Helper()
	cfg := docdb.DefaultConfig(mock.URL(), testutil.MockMasterKey)
	cfg.Retry.MaxAttempts = 2
	cfg.Retry.InitialBackoff = time.Millisecond
	cfg.Retry.MaxBackoff = 2 * time.Millisecond
	client, err := docdb.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	if settings.DataDir == "" {
		settings.DataDir = dataDir
	}
	if settings.BulkDir == "" {
		settings.BulkDir = filepath.Join(dataDir, "bulk")
	}
	var out bytes.Buffer
	return NewRunner(client, NewConsole(&out, false), store, settings), &out
}

// registerFamilyQueries answers the projection and join queries the mock
// cannot evaluate itself.
func registerFamilyQueries(t *testing.T, mock *testutil.MockDocDB) {
	t.Helper()
	families := func(docs []document.Value) []Family {
		out := make([]Family, 0, len(docs))
		for _, d := range docs {
			var f Family
			require.NoError(t, d.Into(&f))
			out = append(out, f)
		}
		return out
	}
	mustValue := func(x any) document.Value {
		v, err := document.FromGo(x)
		require.NoError(t, err)
		return v
	}
	type petRow struct {
		ID    string `json:"id"`
		Child string `json:"child"`
		Pet   string `json:"pet"`
	}
	pets := func(docs []document.Value, keep func(Pet) bool) []document.Value {
		var out []document.Value
		for _, f := range families(docs) {
			for _, c := range f.Children {
				for _, p := range c.Pets {
					if keep(p) {
						out = append(out, mustValue(petRow{ID: f.ID, Child: c.FirstName, Pet: p.GivenName}))
					}
				}
			}
		}
		return out
	}

	mock.HandleQuery(QueryFamilyCities, func(docs []document.Value) []document.Value {
		var out []document.Value
		for _, f := range families(docs) {
			if f.ID == "AndersenFamily" || f.Address.City == "NY" {
				out = append(out, document.Object(
					document.F("Name", document.String(f.LastName)),
					document.F("City", document.String(f.Address.City)),
				))
			}
		}
		return out
	})
	mock.HandleQuery(QueryChildren, func(docs []document.Value) []document.Value {
		var out []document.Value
		for _, f := range families(docs) {
			for _, c := range f.Children {
				out = append(out, document.Object(document.F("c", mustValue(c))))
			}
		}
		return out
	})
	mock.HandleQuery(QueryFamilyChildren, func(docs []document.Value) []document.Value {
		var out []document.Value
		for _, f := range families(docs) {
			for range f.Children {
				out = append(out, document.Object(document.F("id", document.String(f.ID))))
			}
		}
		return out
	})
	mock.HandleQuery(QueryFamilyPets, func(docs []document.Value) []document.Value {
		return pets(docs, func(Pet) bool { return true })
	})
	mock.HandleQuery(QueryFamilyPetFluffy, func(docs []document.Value) []document.Value {
		return pets(docs, func(p Pet) bool { return p.GivenName == "Fluffy" })
	})
}

func TestRunner_CreatesAndDeletesDatabase(t *testing.T) {
	mock := testutil.NewMockDocDB()
	defer mock.Close()
	runner, out := newTestRunner(t, mock, nil, Settings{DatabaseID: "demo-db"})

	var seen []string
	err := runner.Run(context.Background(), Demo{
		Name:        "probe",
		Description: "Probe",
		Run: func(_ context.Context, env *Env) error {
			seen = mock.DatabaseIDs()
			assert.Equal(t, "Demo", env.Collection.ID)
			return nil
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"demo-db"}, seen)
	assert.Empty(t, mock.DatabaseIDs(), "database is deleted after the run")
	text := out.String()
	assert.Contains(t, text, `Does the "demo-db" database exist...NO!`)
	assert.Contains(t, text, `Creating the "demo-db" database...CREATED!`)
	assert.Contains(t, text, `Creating the "Demo" collection...CREATED!`)
	assert.Contains(t, text, `Deleting the "demo-db" database...DELETED!`)
}

func TestRunner_ReusesExistingDatabase(t *testing.T) {
	mock := testutil.NewMockDocDB()
	defer mock.Close()
	runner, out := newTestRunner(t, mock, nil, Settings{})

	_, err := runner.client.CreateDatabase(context.Background(), "DpgDocDbDemo")
	require.NoError(t, err)

	require.NoError(t, runner.Run(context.Background(), Demo{
		Name: "noop",
		Run:  func(context.Context, *Env) error { return nil },
	}))
	assert.Contains(t, out.String(), `Does the "DpgDocDbDemo" database exist...YES!`)
	assert.Empty(t, mock.DatabaseIDs())
}

func TestRunner_ReportsFailureAndCleansUp(t *testing.T) {
	mock := testutil.NewMockDocDB()
	defer mock.Close()
	runner, out := newTestRunner(t, mock, nil, Settings{})

	err := runner.Run(context.Background(), Demo{
		Name: "broken",
		Run: func(ctx context.Context, env *Env) error {
			_, err := env.Client.ReadDocument(ctx, env.Collection.DocumentsLink()+"/missing")
			return err
		},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, docdb.ErrNotFound))
	assert.Contains(t, out.String(), "StatusCode: 404")
	assert.Contains(t, out.String(), "Message: ")
	assert.Empty(t, mock.DatabaseIDs(), "database is deleted after a failure")
}

func TestRunner_CleansUpAfterCancellation(t *testing.T) {
	mock := testutil.NewMockDocDB()
	defer mock.Close()
	runner, _ := newTestRunner(t, mock, nil, Settings{})

	ctx, cancel := context.WithCancel(context.Background())
	err := runner.Run(ctx, Demo{
		Name: "cancelled",
		Run: func(ctx context.Context, _ *Env) error {
			cancel()
			return ctx.Err()
		},
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, mock.DatabaseIDs())
}

func TestSelect(t *testing.T) {
	all, err := Select()
	require.NoError(t, err)
	assert.Len(t, all, 7)

	picked, err := Select("queries", "Databases")
	require.NoError(t, err)
	require.Len(t, picked, 2)
	assert.Equal(t, "queries", picked[0].Name)
	assert.Equal(t, "databases", picked[1].Name)

	_, err = Select("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown demo "nope"`)
}

func TestRunDatabases(t *testing.T) {
	mock := testutil.NewMockDocDB()
	defer mock.Close()
	runner, out := newTestRunner(t, mock, nil, Settings{PageSize: 1})

	_, err := runner.client.CreateDatabase(context.Background(), "other")
	require.NoError(t, err)

	require.NoError(t, runner.Run(context.Background(), Demo{Name: "databases", Run: RunDatabases}))
	text := out.String()
	assert.Contains(t, text, "The following databases were found:")
	assert.Contains(t, text, "  - other")
	assert.Contains(t, text, "  - DpgDocDbDemo")
	assert.Equal(t, []string{"other"}, mock.DatabaseIDs())
}

func TestRunCollections(t *testing.T) {
	mock := testutil.NewMockDocDB()
	defer mock.Close()
	runner, out := newTestRunner(t, mock, nil, Settings{})

	require.NoError(t, runner.Run(context.Background(), Demo{Name: "collections", Run: RunCollections}))
	text := out.String()
	assert.Contains(t, text, `Creating the "Test" collection...CREATED!`)
	assert.Contains(t, text, " - Demo")
	assert.Contains(t, text, " - Test")
	assert.Contains(t, text, `Indexing mode of "Test" is now lazy`)
	assert.Contains(t, text, `Deleting the "Test" collection (for demo purposes, only)...DELETED!`)
}

func TestRunDocuments(t *testing.T) {
	mock := testutil.NewMockDocDB()
	defer mock.Close()
	runner, out := newTestRunner(t, mock, nil, Settings{})

	var ids []string
	require.NoError(t, runner.Run(context.Background(), Demo{
		Name: "documents",
		Run: func(ctx context.Context, env *Env) error {
			if err := RunDocuments(ctx, env); err != nil {
				return err
			}
			for _, d := range mock.Documents(env.Database.ID, env.Collection.ID) {
				ids = append(ids, d.ID())
				switch d.ID() {
				case "POCO1", "DYN01":
					_, ok := d.Field("ShippedDate")
					assert.True(t, ok, "%s has a ShippedDate", d.ID())
				case "DOC01":
					_, ok := d.Field("ShipDate")
					assert.True(t, ok, "DOC01 has a ShipDate")
				case "JSON1":
					status, _ := d.Field("Status")
					s, _ := status.AsString()
					assert.Equal(t, "Cancelled", s)
				}
			}
			return nil
		},
	}))

	assert.ElementsMatch(t, []string{"POCO1", "POCO2", "DYN01", "JSON1", "JSON2", "JSON3", "DOC01", "PO1800243243470"}, ids)

	text := out.String()
	assert.Contains(t, text, "Updating ShippedDate (POCO1)...DONE!")
	assert.Contains(t, text, `Reading "JSON1" document...DONE; `)
	assert.Contains(t, text, "REPLACED!")
	assert.Contains(t, text, `Attaching "Text.txt" to the document...ATTACHED!`)

	attachment, err := os.ReadFile(filepath.Join(dataDir, "attachments", "Text.txt"))
	require.NoError(t, err)
	assert.Contains(t, text, "RETRIEVED; "+strconv.Itoa(len(attachment))+" Bytes")
}

func TestRunQueries(t *testing.T) {
	mock := testutil.NewMockDocDB()
	defer mock.Close()
	registerFamilyQueries(t, mock)
	runner, out := newTestRunner(t, mock, nil, Settings{})

	require.NoError(t, runner.Run(context.Background(), Demo{Name: "queries", Run: RunQueries}))

	text := out.String()
	assert.NotContains(t, text, "FAILED!")
	assert.Contains(t, text, "The Andersen family lives in Seattle")
	assert.Contains(t, text, "The Wakefield family lives in NY")
	assert.Contains(t, text, `"pet":"Fluffy"`)
	assert.Contains(t, text, "Resuming from the saved continuation...SUCCESS!")
}

func TestRunQueries_WrongCountFails(t *testing.T) {
	mock := testutil.NewMockDocDB()
	defer mock.Close()
	registerFamilyQueries(t, mock)
	mock.HandleQuery("SELECT * FROM Families", func([]document.Value) []document.Value { return []document.Value{} })
	runner, out := newTestRunner(t, mock, nil, Settings{})

	err := runner.Run(context.Background(), Demo{Name: "queries", Run: RunQueries})
	require.ErrorIs(t, err, errUnexpectedCount)
	assert.Contains(t, out.String(), "Querying documents via SQL...FAILED!")
	assert.Empty(t, mock.DatabaseIDs())
}

func TestRunIndexing(t *testing.T) {
	interval := lazyPollInterval
	lazyPollInterval = time.Millisecond
	t.Cleanup(func() { lazyPollInterval = interval })

	mock := testutil.NewMockDocDB()
	defer mock.Close()
	runner, out := newTestRunner(t, mock, nil, Settings{})

	require.NoError(t, runner.Run(context.Background(), Demo{Name: "indexing", Run: RunIndexing}))

	text := out.String()
	assert.NotContains(t, text, "FAILED!")
	assert.Contains(t, text, "Create then read DOC1 using default index...FOUND!")
	assert.Contains(t, text, "Try to read DOC1 using a mis-cased value...NOT FOUND!")
	assert.Contains(t, text, "Create DOC2, but exclude from index, then try to read...NOT FOUND!")
	assert.Contains(t, text, "Create then attempt to find DOC1 via a query...NOT FOUND!")
	assert.Contains(t, text, "Attempting to read DOC1...FOUND!")
	assert.Contains(t, text, "BAD REQUEST (as expected)")
	assert.Contains(t, text, `"id":"doc2"`)
	assert.NotContains(t, text, `"id":"doc3"`)
}

func TestRunBulkUpload(t *testing.T) {
	mock := testutil.NewMockDocDB()
	defer mock.Close()

	dir := t.TempDir()
	for i := 0; i < 12; i++ {
		name := filepath.Join(dir, "Movie"+strconv.Itoa(i)+".json")
		require.NoError(t, os.WriteFile(name, []byte(`{"id":"`+strconv.Itoa(i)+`","title":"Movie `+strconv.Itoa(i)+`"}`), 0o644))
	}
	runner, out := newTestRunner(t, mock, nil, Settings{BulkDir: dir, Parallelism: 3})

	var stored int
	require.NoError(t, runner.Run(context.Background(), Demo{
		Name: "bulk",
		Run: func(ctx context.Context, env *Env) error {
			if err := RunBulkUpload(ctx, env); err != nil {
				return err
			}
			stored = len(mock.Documents(env.Database.ID, env.Collection.ID))
			return nil
		},
	}))
	assert.Equal(t, 12, stored)
	assert.Contains(t, out.String(), `"Demo" collection`+strings.Repeat(".", 12)+"\n", "one dot per document")
	assert.Contains(t, out.String(), "Added 12 JSON documents to the Demo collection in ")
}

func TestRunBulkUpload_InvalidFile(t *testing.T) {
	mock := testutil.NewMockDocDB()
	defer mock.Close()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`{"id":`), 0o644))
	runner, _ := newTestRunner(t, mock, nil, Settings{BulkDir: dir})

	err := runner.Run(context.Background(), Demo{Name: "bulk", Run: RunBulkUpload})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid JSON")
}

func TestRunScripts(t *testing.T) {
	var out bytes.Buffer
	env := &Env{Console: NewConsole(&out, false)}
	require.NoError(t, RunScripts(context.Background(), env))
	assert.Contains(t, out.String(), "https://github.com/hjgraca/documentdbsamples")
}

func TestRunAll_ContinuesAfterFailure(t *testing.T) {
	mock := testutil.NewMockDocDB()
	defer mock.Close()
	runner, out := newTestRunner(t, mock, nil, Settings{})

	boom := errors.New("boom")
	err := runner.RunAll(context.Background(), []Demo{
		{Name: "first", Run: func(context.Context, *Env) error { return boom }},
		{Name: "second", Run: RunScripts},
	})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, out.String(), "Message: first: boom")
	assert.Contains(t, out.String(), "documentdbsamples")
}

func TestConsole_Colors(t *testing.T) {
	var plain, colored bytes.Buffer
	NewConsole(&plain, false).Done("OK!")
	NewConsole(&colored, true).Done("OK!")

	assert.Equal(t, "OK!\n", plain.String())
	assert.Contains(t, colored.String(), "\x1b[")
}
