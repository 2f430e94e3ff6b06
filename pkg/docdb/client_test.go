package docdb

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/docdb-demos/internal/retry"
	"github.com/Sternrassler/docdb-demos/internal/testutil"
	"github.com/Sternrassler/docdb-demos/pkg/document"
	"github.com/Sternrassler/docdb-demos/pkg/feed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, mock *testutil.MockDocDB) *Client {
	t.Helper()
	cfg := DefaultConfig(mock.URL(), testutil.MockMasterKey)
	cfg.Retry.MaxAttempts = 3
	cfg.Retry.InitialBackoff = time.Millisecond
	cfg.Retry.MaxBackoff = 5 * time.Millisecond

	c, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func newTestCollection(t *testing.T, c *Client, dbID, collID string) (*Database, *Collection) {
	t.Helper()
	ctx := context.Background()
	db, err := c.CreateDatabase(ctx, dbID)
	require.NoError(t, err)
	coll, err := c.CreateCollection(ctx, db, &Collection{Resource: Resource{ID: collID}})
	require.NoError(t, err)
	return db, coll
}

func TestNew_Validation(t *testing.T) {
	validKey := base64.StdEncoding.EncodeToString([]byte("key"))

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing endpoint", mutate: func(c *Config) { c.Endpoint = "" }, wantErr: "endpoint is required"},
		{name: "bad scheme", mutate: func(c *Config) { c.Endpoint = "ftp://host" }, wantErr: "http or https"},
		{name: "bad key", mutate: func(c *Config) { c.MasterKey = "not base64!" }, wantErr: "decode master key"},
		{name: "empty key", mutate: func(c *Config) { c.MasterKey = "" }, wantErr: "master key is empty"},
		{name: "missing user agent", mutate: func(c *Config) { c.UserAgent = "" }, wantErr: "user-agent is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig("https://localhost:8081/", validKey)
			tt.mutate(&cfg)

			c, err := New(cfg)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Nil(t, c.cache, "no redis means no cache")
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseLifecycle(t *testing.T) {
	mock := testutil.NewMockDocDB()
	defer mock.Close()
	c := newTestClient(t, mock)
	ctx := context.Background()

	db, err := c.CreateDatabase(ctx, "DpgDocDbDemo")
	require.NoError(t, err)
	assert.Equal(t, "DpgDocDbDemo", db.ID)
	assert.Equal(t, "dbs/DpgDocDbDemo", db.Link())
	assert.Equal(t, "dbs/DpgDocDbDemo/colls", db.CollectionsLink())
	assert.NotEmpty(t, db.RID)

	read, err := c.ReadDatabase(ctx, db.Link())
	require.NoError(t, err)
	assert.Equal(t, db.RID, read.RID)

	_, err = c.CreateDatabase(ctx, "DpgDocDbDemo")
	assert.ErrorIs(t, err, ErrConflict)

	require.NoError(t, c.DeleteDatabase(ctx, db))

	_, err = c.ReadDatabase(ctx, db.Link())
	assert.ErrorIs(t, err, ErrNotFound)
	code, ok := StatusCode(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestDatabaseFeed_ThreadsContinuation(t *testing.T) {
	mock := testutil.NewMockDocDB()
	defer mock.Close()
	c := newTestClient(t, mock)
	ctx := context.Background()

	ids := []string{"db1", "db2", "db3", "db4", "db5"}
	for _, id := range ids {
		_, err := c.CreateDatabase(ctx, id)
		require.NoError(t, err)
	}
	mock.Reset()

	dbs, err := feed.NewPager[Database](feed.Config{PageSize: 2}).Drain(ctx, c.DatabaseFeed())
	require.NoError(t, err)

	got := make([]string, len(dbs))
	for i, db := range dbs {
		got[i] = db.ID
	}
	assert.Equal(t, ids, got)

	reqs := mock.GetRequests()
	require.Len(t, reqs, 3)
	assert.Empty(t, reqs[0].Header.Get(headerContinuation))
	for i, r := range reqs {
		assert.Equal(t, "2", r.Header.Get(headerMaxItemCount), "request %d", i)
		if i > 0 {
			assert.NotEmpty(t, r.Header.Get(headerContinuation), "request %d", i)
			assert.NotEqual(t, reqs[i-1].Header.Get(headerContinuation), r.Header.Get(headerContinuation))
		}
	}
}

func TestFeed_MissingItemsKeyIsMalformed(t *testing.T) {
	mock := testutil.NewMockDocDB()
	defer mock.Close()
	c := newTestClient(t, mock)

	mock.SetResponse("/dbs", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"_rid":"","_count":0}`,
		Headers:    map[string]string{"x-ms-continuation": "more"},
	})

	_, err := feed.GetItems(context.Background(), c.DatabaseFeed())
	assert.ErrorIs(t, err, feed.ErrMalformedResponse)
}

func TestCollections(t *testing.T) {
	mock := testutil.NewMockDocDB()
	defer mock.Close()
	c := newTestClient(t, mock)
	ctx := context.Background()

	db, coll := newTestCollection(t, c, "db", "Demo")
	assert.Equal(t, "dbs/db/colls/Demo/docs", coll.DocumentsLink())
	require.NotNil(t, coll.IndexingPolicy, "service fills in the default policy")
	assert.True(t, coll.IndexingPolicy.Automatic)

	policy := &IndexingPolicy{
		Automatic:    true,
		IndexingMode: IndexingModeLazy,
		IncludedPaths: []IncludedPath{{
			Path:    "/*",
			Indexes: []Index{{Kind: IndexKindRange, DataType: DataTypeNumber, Precision: -1}},
		}},
	}
	lazy, err := c.CreateCollection(ctx, db, &Collection{Resource: Resource{ID: "Lazy"}, IndexingPolicy: policy})
	require.NoError(t, err)
	assert.Equal(t, IndexingModeLazy, lazy.IndexingPolicy.IndexingMode)

	colls, err := feed.GetItems(ctx, c.CollectionFeed(db))
	require.NoError(t, err)
	assert.Len(t, colls, 2)

	lazy.IndexingPolicy.IndexingMode = IndexingModeConsistent
	replaced, err := c.ReplaceCollection(ctx, lazy)
	require.NoError(t, err)
	assert.Equal(t, IndexingModeConsistent, replaced.IndexingPolicy.IndexingMode)

	require.NoError(t, c.DeleteCollection(ctx, replaced))
	_, err = c.ReadCollection(ctx, replaced.Link())
	assert.ErrorIs(t, err, ErrNotFound)
}

type salesOrder struct {
	ID        string  `json:"id"`
	PONumber  string  `json:"ponumber"`
	TotalDue  float64 `json:"TotalDue"`
	ShippedOn string  `json:"ShippedDate,omitempty"`
}

func TestDocumentBodies(t *testing.T) {
	mock := testutil.NewMockDocDB()
	defer mock.Close()
	c := newTestClient(t, mock)
	ctx := context.Background()
	_, coll := newTestCollection(t, c, "db", "Demo")

	bodies := map[string]any{
		"POCO1": salesOrder{ID: "POCO1", PONumber: "PO18009186470", TotalDue: 985.018},
		"DYN01": document.Object(
			document.F("id", document.String("DYN01")),
			document.F("total", document.Number(5.95)),
		),
		"JSON1": strings.NewReader(`{"id":"JSON1","Status":"Open"}`),
		"RAW01": json.RawMessage(`{"id":"RAW01"}`),
	}

	for id, body := range bodies {
		doc, err := c.CreateDocument(ctx, coll, body, nil)
		require.NoError(t, err, id)
		assert.Equal(t, id, doc.ID)
		assert.Equal(t, id, doc.Body.ID(), "body keeps the id")
		assert.NotEmpty(t, doc.SelfLink)
		assert.NotEmpty(t, doc.ETag)
	}

	_, err := c.CreateDocument(ctx, coll, nil, nil)
	assert.Error(t, err)

	doc, err := c.ReadDocument(ctx, "dbs/db/colls/Demo/docs/POCO1")
	require.NoError(t, err)
	var order salesOrder
	require.NoError(t, doc.Decode(&order))
	assert.Equal(t, "PO18009186470", order.PONumber)
	assert.InDelta(t, 985.018, order.TotalDue, 1e-9)

	body := doc.Body.Clone()
	body.Set("ShippedDate", document.String("2005-07-08T00:00:00Z"))
	replaced, err := c.ReplaceDocument(ctx, doc.Link(), body)
	require.NoError(t, err)
	assert.NotEqual(t, doc.ETag, replaced.ETag)
	shipped, ok := replaced.Body.Get("ShippedDate")
	assert.True(t, ok)
	s, _ := shipped.AsString()
	assert.Equal(t, "2005-07-08T00:00:00Z", s)

	all, err := feed.GetItems(ctx, c.DocumentFeed(coll))
	require.NoError(t, err)
	assert.Len(t, all, 4)

	require.NoError(t, c.DeleteDocument(ctx, doc.Link()))
	_, err = c.ReadDocument(ctx, doc.Link())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQueryDocuments(t *testing.T) {
	mock := testutil.NewMockDocDB()
	defer mock.Close()
	c := newTestClient(t, mock)
	ctx := context.Background()
	_, coll := newTestCollection(t, c, "db", "Families")

	for i, city := range []string{"Seattle", "NY", "Seattle"} {
		body := document.Object(
			document.F("id", document.String(string(rune('A'+i)))),
			document.F("City", document.String(city)),
			document.F("Grade", document.Int(int64(i*4))),
		)
		_, err := c.CreateDocument(ctx, coll, body, nil)
		require.NoError(t, err)
	}

	q := SQLQuery{
		Query:      "SELECT * FROM Families f WHERE f.City = @city",
		Parameters: []SQLParameter{{Name: "@city", Value: "Seattle"}},
	}
	hits, err := feed.GetItems(ctx, c.QueryDocuments(coll, q, QueryOptions{}))
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "A", hits[0].ID())
	assert.Equal(t, "C", hits[1].ID())

	typed, err := feed.GetItems(ctx, QueryDocumentsAs[salesOrder](c, coll, q, QueryOptions{}))
	require.NoError(t, err)
	assert.Equal(t, "C", typed[1].ID)

	rangeQ := Query("SELECT * FROM Families f WHERE f.Grade > 2")
	_, err = feed.GetItems(ctx, c.QueryDocuments(coll, rangeQ, QueryOptions{}))
	var docErr *Error
	require.ErrorAs(t, err, &docErr)
	assert.Equal(t, http.StatusBadRequest, docErr.StatusCode)
	assert.Equal(t, ErrorClassClient, docErr.Class)

	scanned, err := feed.GetItems(ctx, c.QueryDocuments(coll, rangeQ, QueryOptions{EnableScan: true}))
	require.NoError(t, err)
	assert.Len(t, scanned, 2)
}

func TestIndexingDirective(t *testing.T) {
	mock := testutil.NewMockDocDB()
	defer mock.Close()
	c := newTestClient(t, mock)
	ctx := context.Background()
	_, coll := newTestCollection(t, c, "db", "Demo")

	_, err := c.CreateDocument(ctx, coll, map[string]string{"id": "DOC2", "orderId": "ORDER2"},
		&RequestOptions{IndexingDirective: IndexingDirectiveExclude})
	require.NoError(t, err)
	assert.Equal(t, "Exclude", mock.LastRequestHeader.Get(headerIndexingDirective))

	hits, err := feed.GetItems(ctx, c.QueryDocuments(coll, Query("SELECT * FROM root r WHERE r.orderId='ORDER2'"), QueryOptions{}))
	require.NoError(t, err)
	assert.Empty(t, hits)

	doc, err := c.ReadDocument(ctx, "dbs/db/colls/Demo/docs/DOC2")
	require.NoError(t, err)
	assert.Equal(t, "DOC2", doc.ID)
}

func TestAttachments(t *testing.T) {
	mock := testutil.NewMockDocDB()
	defer mock.Close()
	c := newTestClient(t, mock)
	ctx := context.Background()
	_, coll := newTestCollection(t, c, "db", "Demo")

	doc, err := c.CreateDocument(ctx, coll, map[string]any{"id": "PO1800243243470", "CustomerId": 1092}, nil)
	require.NoError(t, err)
	assert.Equal(t, "dbs/db/colls/Demo/docs/PO1800243243470/attachments", doc.AttachmentsLink())

	content := []byte("Attached text file content")
	att, err := c.CreateAttachmentMedia(ctx, doc, bytes.NewReader(content), MediaOptions{ContentType: "text/plain", Slug: "Text.txt"})
	require.NoError(t, err)
	assert.Equal(t, "Text.txt", att.ID)
	assert.False(t, att.IsExternal())
	assert.Equal(t, "text/plain", mock.LastRequestHeader.Get("Content-Type"))

	link, err := c.CreateAttachmentLink(ctx, doc, Attachment{
		Resource:    Resource{ID: "external"},
		ContentType: "text/plain",
		Media:       "http://minio:9000/attachments/Text.txt",
	})
	require.NoError(t, err)
	assert.True(t, link.IsExternal())

	_, err = c.CreateAttachmentLink(ctx, doc, Attachment{Resource: Resource{ID: "nomedia"}})
	assert.Error(t, err)

	atts, err := feed.GetItems(ctx, c.AttachmentFeed(doc))
	require.NoError(t, err)
	require.Len(t, atts, 2)

	media, err := c.ReadMedia(ctx, atts[0].MediaLink())
	require.NoError(t, err)
	assert.Equal(t, content, media.Data)
	assert.Equal(t, "text/plain", media.ContentType)
}

func TestGetOrCreate(t *testing.T) {
	mock := testutil.NewMockDocDB()
	defer mock.Close()
	c := newTestClient(t, mock)
	ctx := context.Background()

	db, created, err := c.GetOrCreateDatabase(ctx, "DpgDocDbDemo")
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := c.GetOrCreateDatabase(ctx, "DpgDocDbDemo")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, db.RID, again.RID)

	coll, created, err := c.GetOrCreateCollection(ctx, db, "Demo")
	require.NoError(t, err)
	assert.True(t, created)

	sameColl, created, err := c.GetOrCreateCollection(ctx, db, "Demo")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, coll.RID, sameColl.RID)

	missing, err := c.FindCollection(ctx, db, "Other")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRetry_Throttled(t *testing.T) {
	mock := testutil.NewMockDocDB()
	defer mock.Close()
	c := newTestClient(t, mock)

	mock.FailNext(2, testutil.NewThrottledResponse(5*time.Millisecond))

	db, err := c.CreateDatabase(context.Background(), "db")
	require.NoError(t, err)
	assert.Equal(t, "db", db.ID)
	assert.Equal(t, 3, mock.GetRequestCount())
}

func TestRetry_Exhausted(t *testing.T) {
	mock := testutil.NewMockDocDB()
	defer mock.Close()
	c := newTestClient(t, mock)

	mock.FailNext(10, testutil.NewServerErrorResponse())

	_, err := c.ReadDatabase(context.Background(), "dbs/db")
	require.Error(t, err)
	assert.ErrorIs(t, err, retry.ErrRetryExhausted)

	var docErr *Error
	require.True(t, errors.As(err, &docErr))
	assert.Equal(t, ErrorClassServer, docErr.Class)
	assert.Equal(t, "ServiceUnavailable", docErr.Code)
	assert.Equal(t, 3, mock.GetRequestCount())
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	mock := testutil.NewMockDocDB()
	defer mock.Close()
	c := newTestClient(t, mock)

	_, err := c.ReadDatabase(context.Background(), "dbs/missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, retry.ErrRetryExhausted)
	assert.Equal(t, 1, mock.GetRequestCount())
}

func TestWrongKeyIsUnauthorized(t *testing.T) {
	mock := testutil.NewMockDocDB()
	defer mock.Close()

	cfg := DefaultConfig(mock.URL(), base64.StdEncoding.EncodeToString([]byte("some-other-key")))
	c, err := New(cfg)
	require.NoError(t, err)

	_, err = c.CreateDatabase(context.Background(), "db")
	code, ok := StatusCode(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestRequestHeaders(t *testing.T) {
	mock := testutil.NewMockDocDB()
	defer mock.Close()
	c := newTestClient(t, mock)

	_, err := c.CreateDatabase(context.Background(), "db")
	require.NoError(t, err)

	h := mock.LastRequestHeader
	assert.Equal(t, APIVersion, h.Get(headerVersion))
	assert.NotEmpty(t, h.Get(headerDate))
	assert.Len(t, h.Get(headerActivityID), 36)
	assert.True(t, strings.HasPrefix(h.Get("Authorization"), "type%3Dmaster"))
	assert.Equal(t, "docdb-demos/0.1.0", h.Get("User-Agent"))
	assert.Equal(t, contentTypeJSON, h.Get("Content-Type"))
}

func TestContextCancelled(t *testing.T) {
	mock := testutil.NewMockDocDB()
	defer mock.Close()
	c := newTestClient(t, mock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.CreateDatabase(ctx, "db")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, mock.GetRequestCount())
}
