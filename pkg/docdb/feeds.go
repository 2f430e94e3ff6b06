package docdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Sternrassler/docdb-demos/pkg/document"
	"github.com/Sternrassler/docdb-demos/pkg/feed"
)

// Envelope keys under which feeds return their items.
const (
	feedKeyDatabases   = "Databases"
	feedKeyCollections = "DocumentCollections"
	feedKeyDocuments   = "Documents"
	feedKeyAttachments = "Attachments"
)

// feedPage decodes a page envelope. A missing items key leaves Items nil.
func feedPage[T any](op, itemsKey string, resp *response) (feed.Response[T], error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(resp.body, &envelope); err != nil {
		return feed.Response[T]{}, fmt.Errorf("%s: decode feed page: %w", op, err)
	}

	var page feed.Response[T]
	if raw, ok := envelope[itemsKey]; ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &page.Items); err != nil {
			return feed.Response[T]{}, fmt.Errorf("%s: decode %s: %w", op, itemsKey, err)
		}
		if page.Items == nil {
			page.Items = []T{}
		}
	}
	page.Next = feed.IssueToken(resp.header.Get(headerContinuation))
	return page, nil
}

// pagingHeader carries the page size and continuation of a feed request.
func pagingHeader(req feed.Request) http.Header {
	h := http.Header{}
	if req.MaxItemCount > 0 {
		h.Set(headerMaxItemCount, strconv.Itoa(req.MaxItemCount))
	}
	if !req.Continuation.IsEmpty() {
		h.Set(headerContinuation, req.Continuation.Wire())
	}
	return h
}

// readFeed returns a FetchFunc reading one page of the feed at path.
func readFeed[T any](c *Client, op, path, itemsKey string) feed.FetchFunc[T] {
	return func(ctx context.Context, req feed.Request) (feed.Response[T], error) {
		resp, err := c.do(ctx, request{
			op:     op,
			method: http.MethodGet,
			path:   path,
			header: pagingHeader(req),
		})
		if err != nil {
			return feed.Response[T]{}, err
		}
		return feedPage[T](op, itemsKey, resp)
	}
}

// queryFeed returns a FetchFunc running q against the feed at path.
func queryFeed[T any](c *Client, op, path, itemsKey string, q SQLQuery, opts QueryOptions) feed.FetchFunc[T] {
	return func(ctx context.Context, req feed.Request) (feed.Response[T], error) {
		body, err := json.Marshal(q)
		if err != nil {
			return feed.Response[T]{}, fmt.Errorf("%s: encode query: %w", op, err)
		}

		h := pagingHeader(req)
		h.Set(headerIsQuery, "True")
		if opts.EnableScan {
			h.Set(headerEnableScan, "true")
		}

		resp, err := c.do(ctx, request{
			op:          op,
			method:      http.MethodPost,
			path:        path,
			body:        body,
			contentType: contentTypeQuery,
			header:      h,
		})
		if err != nil {
			return feed.Response[T]{}, err
		}
		return feedPage[T](op, itemsKey, resp)
	}
}

// QueryDocumentsAs is QueryDocuments decoding every result into T.
func QueryDocumentsAs[T any](c *Client, coll *Collection, q SQLQuery, opts QueryOptions) feed.FetchFunc[T] {
	return queryFeed[T](c, "QueryDocuments", coll.DocumentsLink(), feedKeyDocuments, q, opts)
}

// DatabaseFeed lists the databases of the account.
func (c *Client) DatabaseFeed() feed.FetchFunc[Database] {
	return readFeed[Database](c, "ReadDatabaseFeed", "dbs", feedKeyDatabases)
}

// QueryDatabases runs q against the databases of the account.
func (c *Client) QueryDatabases(q SQLQuery) feed.FetchFunc[Database] {
	return queryFeed[Database](c, "QueryDatabases", "dbs", feedKeyDatabases, q, QueryOptions{})
}

// CollectionFeed lists the collections of db.
func (c *Client) CollectionFeed(db *Database) feed.FetchFunc[Collection] {
	return readFeed[Collection](c, "ReadCollectionFeed", db.CollectionsLink(), feedKeyCollections)
}

// QueryCollections runs q against the collections of db.
func (c *Client) QueryCollections(db *Database, q SQLQuery) feed.FetchFunc[Collection] {
	return queryFeed[Collection](c, "QueryCollections", db.CollectionsLink(), feedKeyCollections, q, QueryOptions{})
}

// DocumentFeed lists the documents of coll.
func (c *Client) DocumentFeed(coll *Collection) feed.FetchFunc[Document] {
	return readFeed[Document](c, "ReadDocumentFeed", coll.DocumentsLink(), feedKeyDocuments)
}

// QueryDocuments runs q against the documents of coll. Results may be whole
// documents or projections, so they are returned as schema-less values.
func (c *Client) QueryDocuments(coll *Collection, q SQLQuery, opts QueryOptions) feed.FetchFunc[document.Value] {
	return QueryDocumentsAs[document.Value](c, coll, q, opts)
}

// AttachmentFeed lists the attachments of doc.
func (c *Client) AttachmentFeed(doc *Document) feed.FetchFunc[Attachment] {
	return readFeed[Attachment](c, "ReadAttachmentFeed", doc.AttachmentsLink(), feedKeyAttachments)
}
