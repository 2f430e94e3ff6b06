package docdb

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Sternrassler/docdb-demos/pkg/document"
)

// Resource holds the system properties every stored resource carries.
type Resource struct {
	ID        string `json:"id"`
	RID       string `json:"_rid,omitempty"`
	SelfLink  string `json:"_self,omitempty"`
	ETag      string `json:"_etag,omitempty"`
	Timestamp int64  `json:"_ts,omitempty"`
}

// Link returns the self link without surrounding slashes.
func (r Resource) Link() string {
	return strings.Trim(r.SelfLink, "/")
}

// child joins a relative child path onto the self link.
func (r Resource) child(path string) string {
	return r.Link() + "/" + strings.Trim(path, "/")
}

// Database is a database resource.
type Database struct {
	Resource
	CollectionsPath string `json:"_colls,omitempty"`
	UsersPath       string `json:"_users,omitempty"`
}

// CollectionsLink returns the link of the database's collection feed.
func (d *Database) CollectionsLink() string {
	if d.CollectionsPath == "" {
		return d.child("colls")
	}
	return d.child(d.CollectionsPath)
}

// Collection is a document collection resource.
type Collection struct {
	Resource
	IndexingPolicy *IndexingPolicy `json:"indexingPolicy,omitempty"`
	DocumentsPath  string          `json:"_docs,omitempty"`
	SprocsPath     string          `json:"_sprocs,omitempty"`
	TriggersPath   string          `json:"_triggers,omitempty"`
	UDFsPath       string          `json:"_udfs,omitempty"`
}

// DocumentsLink returns the link of the collection's document feed.
func (c *Collection) DocumentsLink() string {
	if c.DocumentsPath == "" {
		return c.child("docs")
	}
	return c.child(c.DocumentsPath)
}

// IndexingMode controls when the index is updated.
type IndexingMode string

// Indexing modes.
const (
	IndexingModeConsistent IndexingMode = "consistent"
	IndexingModeLazy       IndexingMode = "lazy"
)

// IndexKind is the kind of an index on a path.
type IndexKind string

// Index kinds.
const (
	IndexKindHash  IndexKind = "Hash"
	IndexKindRange IndexKind = "Range"
)

// DataType is the value type an index applies to.
type DataType string

// Indexed data types.
const (
	DataTypeString DataType = "String"
	DataTypeNumber DataType = "Number"
)

// Index describes one index on an included path.
type Index struct {
	Kind      IndexKind `json:"kind"`
	DataType  DataType  `json:"dataType,omitempty"`
	Precision int       `json:"precision,omitempty"`
}

// IncludedPath is a path included in the index.
type IncludedPath struct {
	Path    string  `json:"path"`
	Indexes []Index `json:"indexes,omitempty"`
}

// ExcludedPath is a path excluded from the index.
type ExcludedPath struct {
	Path string `json:"path"`
}

// IndexingPolicy controls how documents of a collection are indexed.
type IndexingPolicy struct {
	Automatic     bool           `json:"automatic"`
	IndexingMode  IndexingMode   `json:"indexingMode,omitempty"`
	IncludedPaths []IncludedPath `json:"includedPaths,omitempty"`
	ExcludedPaths []ExcludedPath `json:"excludedPaths,omitempty"`
}

// DefaultIndexingPolicy returns the policy the service applies when a
// collection is created without one: every path hash-indexed, consistently.
func DefaultIndexingPolicy() *IndexingPolicy {
	return &IndexingPolicy{
		Automatic:    true,
		IndexingMode: IndexingModeConsistent,
		IncludedPaths: []IncludedPath{{
			Path: "/*",
			Indexes: []Index{
				{Kind: IndexKindHash, DataType: DataTypeString, Precision: 3},
				{Kind: IndexKindHash, DataType: DataTypeNumber, Precision: 3},
			},
		}},
	}
}

// Document is a stored document: its system properties plus the full body.
type Document struct {
	Resource
	AttachmentsPath string `json:"_attachments,omitempty"`

	// Body is the complete document as returned, system properties included.
	Body document.Value `json:"-"`
}

// UnmarshalJSON decodes the system properties and keeps the whole body.
func (d *Document) UnmarshalJSON(data []byte) error {
	body, err := document.Parse(data)
	if err != nil {
		return err
	}
	type system struct {
		Resource
		AttachmentsPath string `json:"_attachments,omitempty"`
	}
	var sys system
	if err := json.Unmarshal(data, &sys); err != nil {
		return fmt.Errorf("decode document properties: %w", err)
	}
	d.Resource = sys.Resource
	d.AttachmentsPath = sys.AttachmentsPath
	d.Body = body
	return nil
}

// MarshalJSON encodes the body.
func (d Document) MarshalJSON() ([]byte, error) {
	return d.Body.MarshalJSON()
}

// Decode unmarshals the body into out.
func (d *Document) Decode(out any) error {
	return d.Body.Into(out)
}

// AttachmentsLink returns the link of the document's attachment feed.
func (d *Document) AttachmentsLink() string {
	if d.AttachmentsPath == "" {
		return d.child("attachments")
	}
	return d.child(d.AttachmentsPath)
}

// Attachment references media, either stored by the service or external.
type Attachment struct {
	Resource
	ContentType string `json:"contentType"`
	Media       string `json:"media"`
}

// MediaLink returns the media reference without surrounding slashes.
func (a *Attachment) MediaLink() string {
	return strings.Trim(a.Media, "/")
}

// IsExternal reports whether the media lives outside the service.
func (a *Attachment) IsExternal() bool {
	return strings.Contains(a.Media, "://")
}

// IndexingDirective overrides a collection's automatic indexing for one write.
type IndexingDirective string

// Indexing directives.
const (
	IndexingDirectiveDefault IndexingDirective = "Default"
	IndexingDirectiveInclude IndexingDirective = "Include"
	IndexingDirectiveExclude IndexingDirective = "Exclude"
)

// RequestOptions are per-write options.
type RequestOptions struct {
	IndexingDirective IndexingDirective
}

// QueryOptions are per-query options.
type QueryOptions struct {
	// EnableScan allows range and excluded-path filters to run as scans.
	EnableScan bool
}

// MediaOptions describe uploaded attachment media.
type MediaOptions struct {
	ContentType string
	Slug        string
}

// SQLParameter binds a named query parameter such as "@city".
type SQLParameter struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// SQLQuery is a query with optional parameters.
type SQLQuery struct {
	Query      string         `json:"query"`
	Parameters []SQLParameter `json:"parameters,omitempty"`
}

// Query returns a SQLQuery without parameters.
func Query(text string) SQLQuery {
	return SQLQuery{Query: text}
}
