package docdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/Sternrassler/docdb-demos/pkg/cache"
	"github.com/Sternrassler/docdb-demos/pkg/document"
)

// encodeBody turns a document body into request bytes. body may be a
// document.Value, raw JSON bytes, an io.Reader streaming JSON, or any value
// encoding/json can marshal.
func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, fmt.Errorf("document body is nil")
	case document.Value:
		return b.MarshalJSON()
	case *document.Value:
		return b.MarshalJSON()
	case json.RawMessage:
		return b, nil
	case []byte:
		return b, nil
	case io.Reader:
		data, err := io.ReadAll(b)
		if err != nil {
			return nil, fmt.Errorf("read document stream: %w", err)
		}
		return data, nil
	default:
		return json.Marshal(b)
	}
}

// decodeResource decodes a single resource response.
func decodeResource[T any](op string, resp *response) (*T, error) {
	var out T
	if err := json.Unmarshal(resp.body, &out); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", op, err)
	}
	return &out, nil
}

// create posts body to path and decodes the created resource.
func create[T any](ctx context.Context, c *Client, op, path string, body any, header http.Header) (*T, error) {
	data, err := encodeBody(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	resp, err := c.do(ctx, request{op: op, method: http.MethodPost, path: path, body: data, header: header})
	if err != nil {
		return nil, err
	}
	return decodeResource[T](op, resp)
}

// read gets the resource at link.
func read[T any](ctx context.Context, c *Client, op, link string, key *cache.Key) (*T, error) {
	resp, err := c.do(ctx, request{op: op, method: http.MethodGet, path: link, cacheKey: key})
	if err != nil {
		return nil, err
	}
	return decodeResource[T](op, resp)
}

// replace puts body at link and decodes the stored resource.
func replace[T any](ctx context.Context, c *Client, op, link string, body any) (*T, error) {
	data, err := encodeBody(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	resp, err := c.do(ctx, request{op: op, method: http.MethodPut, path: link, body: data})
	if err != nil {
		return nil, err
	}
	return decodeResource[T](op, resp)
}

func (c *Client) remove(ctx context.Context, op, link string) error {
	_, err := c.do(ctx, request{op: op, method: http.MethodDelete, path: link})
	return err
}

// CreateDatabase creates a database with the given id.
func (c *Client) CreateDatabase(ctx context.Context, id string) (*Database, error) {
	return create[Database](ctx, c, "CreateDatabase", "dbs", Resource{ID: id}, nil)
}

// ReadDatabase reads the database at link (e.g. "dbs/DpgDocDbDemo").
func (c *Client) ReadDatabase(ctx context.Context, link string) (*Database, error) {
	return read[Database](ctx, c, "ReadDatabase", link, nil)
}

// DeleteDatabase deletes db and everything in it.
func (c *Client) DeleteDatabase(ctx context.Context, db *Database) error {
	return c.remove(ctx, "DeleteDatabase", db.Link())
}

// CreateCollection creates coll in db. A nil IndexingPolicy leaves the
// service default in place.
func (c *Client) CreateCollection(ctx context.Context, db *Database, coll *Collection) (*Collection, error) {
	return create[Collection](ctx, c, "CreateCollection", db.CollectionsLink(), coll, nil)
}

// ReadCollection reads the collection at link.
func (c *Client) ReadCollection(ctx context.Context, link string) (*Collection, error) {
	return read[Collection](ctx, c, "ReadCollection", link, nil)
}

// ReplaceCollection stores a changed collection, typically its indexing policy.
func (c *Client) ReplaceCollection(ctx context.Context, coll *Collection) (*Collection, error) {
	return replace[Collection](ctx, c, "ReplaceCollection", coll.Link(), coll)
}

// DeleteCollection deletes coll and its documents.
func (c *Client) DeleteCollection(ctx context.Context, coll *Collection) error {
	return c.remove(ctx, "DeleteCollection", coll.Link())
}

// CreateDocument stores body in coll. opts may be nil.
func (c *Client) CreateDocument(ctx context.Context, coll *Collection, body any, opts *RequestOptions) (*Document, error) {
	var h http.Header
	if opts != nil && opts.IndexingDirective != "" {
		h = http.Header{}
		h.Set(headerIndexingDirective, string(opts.IndexingDirective))
	}
	return create[Document](ctx, c, "CreateDocument", coll.DocumentsLink(), body, h)
}

// ReadDocument reads the document at link. With Redis configured the read is
// cached and revalidated by ETag.
func (c *Client) ReadDocument(ctx context.Context, link string) (*Document, error) {
	key := cache.DocumentKey(link)
	return read[Document](ctx, c, "ReadDocument", link, &key)
}

// ReplaceDocument replaces the document at link with body.
func (c *Client) ReplaceDocument(ctx context.Context, link string, body any) (*Document, error) {
	doc, err := replace[Document](ctx, c, "ReplaceDocument", link, body)
	c.invalidate(ctx, cache.DocumentKey(link))
	return doc, err
}

// DeleteDocument deletes the document at link.
func (c *Client) DeleteDocument(ctx context.Context, link string) error {
	err := c.remove(ctx, "DeleteDocument", link)
	c.invalidate(ctx, cache.DocumentKey(link))
	return err
}

// CreateAttachmentMedia uploads media and attaches it to doc.
func (c *Client) CreateAttachmentMedia(ctx context.Context, doc *Document, media io.Reader, opts MediaOptions) (*Attachment, error) {
	const op = "CreateAttachmentMedia"

	data, err := io.ReadAll(media)
	if err != nil {
		return nil, fmt.Errorf("%s: read media: %w", op, err)
	}
	ct := opts.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h := http.Header{}
	if opts.Slug != "" {
		h.Set(headerSlug, opts.Slug)
	}

	resp, err := c.do(ctx, request{
		op:          op,
		method:      http.MethodPost,
		path:        doc.AttachmentsLink(),
		body:        data,
		contentType: ct,
		header:      h,
	})
	if err != nil {
		return nil, err
	}
	return decodeResource[Attachment](op, resp)
}

// CreateAttachmentLink attaches externally stored media to doc. att.Media
// holds the media URL.
func (c *Client) CreateAttachmentLink(ctx context.Context, doc *Document, att Attachment) (*Attachment, error) {
	if att.ID == "" || att.Media == "" {
		return nil, fmt.Errorf("CreateAttachmentLink: id and media are required")
	}
	return create[Attachment](ctx, c, "CreateAttachmentLink", doc.AttachmentsLink(), att, nil)
}

// Media is attachment content read from the service.
type Media struct {
	ContentType string
	Data        []byte
}

// ReadMedia reads attachment media stored by the service.
func (c *Client) ReadMedia(ctx context.Context, mediaLink string) (*Media, error) {
	key := cache.MediaKey(mediaLink)
	resp, err := c.do(ctx, request{
		op:       "ReadMedia",
		method:   http.MethodGet,
		path:     mediaLink,
		cacheKey: &key,
	})
	if err != nil {
		return nil, err
	}
	return &Media{ContentType: resp.header.Get("Content-Type"), Data: resp.body}, nil
}
