// Package testutil provides testing utilities for the document service client
// and demos.
package testutil

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/docdb-demos/pkg/docdb/auth"
	"github.com/Sternrassler/docdb-demos/pkg/document"
)

// MockMasterKey is the account key the mock service accepts.
var MockMasterKey = base64.StdEncoding.EncodeToString([]byte("mock-docdb-master-key"))

// MockResponse defines a canned response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// QueryHandler computes the results of a query the mock cannot evaluate.
// docs holds the queryable documents in insertion order.
type QueryHandler func(docs []document.Value) []document.Value

// RecordedRequest is a request seen by the mock.
type RecordedRequest struct {
	Method string
	Path   string
	Header http.Header
}

// MockDocDB is an in-memory document service for tests. It verifies
// master-key signatures, pages feeds with continuation tokens, honours
// indexing policies and indexing directives, and serves attachment media.
type MockDocDB struct {
	server *httptest.Server
	key    []byte

	mu       sync.Mutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)
	queries  map[string]QueryHandler
	failures []MockResponse
	dbs      []*mockDatabase
	media    map[string]mockMedia
	nextRID  int

	// Tracking
	RequestCount      int
	ConditionalCount  int
	LastRequestHeader http.Header
	Requests          []RecordedRequest
}

type mockDatabase struct {
	value document.Value
	colls []*mockCollection
}

type mockCollection struct {
	value  document.Value
	policy mockPolicy
	docs   []*mockDocument
}

type mockDocument struct {
	value       document.Value
	indexed     bool
	attachments []document.Value
}

type mockMedia struct {
	contentType string
	data        []byte
}

type mockIndex struct {
	Kind string `json:"kind"`
}

type mockPolicy struct {
	Automatic     bool   `json:"automatic"`
	IndexingMode  string `json:"indexingMode"`
	IncludedPaths []struct {
		Path    string      `json:"path"`
		Indexes []mockIndex `json:"indexes"`
	} `json:"includedPaths"`
	ExcludedPaths []struct {
		Path string `json:"path"`
	} `json:"excludedPaths"`
}

// NewMockDocDB starts a mock document service.
func NewMockDocDB() *MockDocDB {
	key, _ := auth.DecodeKey(MockMasterKey)
	mock := &MockDocDB{
		key:      key,
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
		queries:  make(map[string]QueryHandler),
		media:    make(map[string]mockMedia),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		mock.Requests = append(mock.Requests, RecordedRequest{Method: r.Method, Path: r.URL.Path, Header: r.Header.Clone()})
		if r.Header.Get("If-None-Match") != "" {
			mock.ConditionalCount++
		}
		handler, exists := mock.handlers[r.URL.Path]
		var failure *MockResponse
		if !exists && len(mock.failures) > 0 {
			failure = &mock.failures[0]
			mock.failures = mock.failures[1:]
		}
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}
		if failure != nil {
			writeMockResponse(w, *failure)
			return
		}

		mock.serve(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockDocDB) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockDocDB) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockDocDB) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.ConditionalCount = 0
	m.LastRequestHeader = nil
	m.Requests = nil
}

// SetHandler sets a custom handler for a specific path, e.g. "/dbs".
func (m *MockDocDB) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockDocDB) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		writeMockResponse(w, resp)
	})
}

// FailNext makes the next n requests, whatever their path, return resp.
func (m *MockDocDB) FailNext(n int, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < n; i++ {
		m.failures = append(m.failures, resp)
	}
}

// HandleQuery registers the results of a query text. Whitespace is
// normalised before matching.
func (m *MockDocDB) HandleQuery(query string, handler QueryHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries[normalizeQuery(query)] = handler
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockDocDB) GetRequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.RequestCount
}

// GetConditionalCount returns the number of conditional requests.
func (m *MockDocDB) GetConditionalCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ConditionalCount
}

// GetRequests returns a copy of the recorded requests.
func (m *MockDocDB) GetRequests() []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RecordedRequest(nil), m.Requests...)
}

// DatabaseIDs returns the ids of the existing databases.
func (m *MockDocDB) DatabaseIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.dbs))
	for _, db := range m.dbs {
		ids = append(ids, db.value.ID())
	}
	return ids
}

// Documents returns the documents of a collection, or nil if it does not exist.
func (m *MockDocDB) Documents(dbID, collID string) []document.Value {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll := m.findCollection(dbID, collID)
	if coll == nil {
		return nil
	}
	out := make([]document.Value, 0, len(coll.docs))
	for _, d := range coll.docs {
		out = append(out, d.value.Clone())
	}
	return out
}

// NewThrottledResponse creates a 429 response with a retry-after hint.
func NewThrottledResponse(retryAfter time.Duration) MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"code":"TooManyRequests","message":"Request rate is large"}`,
		Headers: map[string]string{
			"x-ms-retry-after-ms": strconv.FormatInt(retryAfter.Milliseconds(), 10),
			"Content-Type":        "application/json",
		},
	}
}

// NewServerErrorResponse creates a 503 Service Unavailable response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusServiceUnavailable,
		Body:       `{"code":"ServiceUnavailable","message":"Service is currently unavailable"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

func writeMockResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		_, _ = w.Write([]byte(resp.Body))
	}
}

func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(q), " ")
}

// serve dispatches a request to the in-memory store.
func (m *MockDocDB) serve(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(r.URL.Path, "/")
	if !m.authorized(r, path) {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "The input authorization token can't serve the request")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BadRequest", err.Error())
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	w.Header().Set("x-ms-activity-id", r.Header.Get("x-ms-activity-id"))
	w.Header().Set("x-ms-request-charge", "1")

	segs := strings.Split(path, "/")
	if len(segs) == 2 && segs[0] == "media" {
		m.serveMedia(w, r, segs[1])
		return
	}
	if segs[0] != "dbs" || len(segs) > 8 || (len(segs) > 1 && !isResourceSeg(segs)) {
		writeError(w, http.StatusNotFound, "NotFound", "Unknown resource path "+path)
		return
	}

	switch len(segs) {
	case 1:
		m.serveDatabases(w, r, body)
	case 2:
		m.serveDatabase(w, r, segs[1])
	case 3:
		m.serveCollections(w, r, body, segs[1])
	case 4:
		m.serveCollection(w, r, body, segs[1], segs[3])
	case 5:
		m.serveDocuments(w, r, body, segs[1], segs[3])
	case 6:
		m.serveDocument(w, r, body, segs[1], segs[3], segs[5])
	case 7:
		m.serveAttachments(w, r, body, segs[1], segs[3], segs[5])
	case 8:
		m.serveAttachment(w, r, segs[1], segs[3], segs[5], segs[7])
	}
}

// isResourceSeg checks the fixed type segments of a path.
func isResourceSeg(segs []string) bool {
	types := []string{"dbs", "colls", "docs", "attachments"}
	for i := 0; i < len(segs); i += 2 {
		if segs[i] != types[i/2] {
			return false
		}
	}
	return true
}

func (m *MockDocDB) authorized(r *http.Request, path string) bool {
	date := r.Header.Get("x-ms-date")
	if date == "" {
		return false
	}
	resType, resLink := auth.Resource(path)
	return auth.Verify(m.key, r.Header.Get("Authorization"), r.Method, resType, resLink, date)
}

// newSystem stamps system properties on a created resource.
func (m *MockDocDB) newSystem(v *document.Value, self string) {
	m.nextRID++
	v.Set("_rid", document.String(fmt.Sprintf("rid%d", m.nextRID)))
	v.Set("_self", document.String(self))
	m.touch(v)
}

func (m *MockDocDB) touch(v *document.Value) {
	m.nextRID++
	v.Set("_etag", document.String(fmt.Sprintf(`"%08x"`, m.nextRID)))
	v.Set("_ts", document.Int(time.Now().Unix()))
}

func (m *MockDocDB) findDatabase(id string) *mockDatabase {
	for _, db := range m.dbs {
		if db.value.ID() == id {
			return db
		}
	}
	return nil
}

func (m *MockDocDB) findCollection(dbID, collID string) *mockCollection {
	db := m.findDatabase(dbID)
	if db == nil {
		return nil
	}
	for _, c := range db.colls {
		if c.value.ID() == collID {
			return c
		}
	}
	return nil
}

func (c *mockCollection) findDocument(id string) (int, *mockDocument) {
	for i, d := range c.docs {
		if d.value.ID() == id {
			return i, d
		}
	}
	return -1, nil
}

func (m *MockDocDB) serveDatabases(w http.ResponseWriter, r *http.Request, body []byte) {
	all := make([]document.Value, 0, len(m.dbs))
	for _, db := range m.dbs {
		all = append(all, db.value)
	}

	switch {
	case r.Method == http.MethodGet:
		writeFeed(w, r, "Databases", all)
	case r.Method == http.MethodPost && isQuery(r):
		m.serveQuery(w, r, body, "Databases", all, nil)
	case r.Method == http.MethodPost:
		v, ok := decodeResource(w, body)
		if !ok {
			return
		}
		if m.findDatabase(v.ID()) != nil {
			writeError(w, http.StatusConflict, "Conflict", "Resource with specified id already exists")
			return
		}
		m.newSystem(&v, "dbs/"+v.ID()+"/")
		v.Set("_colls", document.String("colls/"))
		v.Set("_users", document.String("users/"))
		m.dbs = append(m.dbs, &mockDatabase{value: v})
		writeJSON(w, http.StatusCreated, v)
	default:
		writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", r.Method)
	}
}

func (m *MockDocDB) serveDatabase(w http.ResponseWriter, r *http.Request, dbID string) {
	db := m.findDatabase(dbID)
	if db == nil {
		writeNotFound(w)
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, db.value)
	case http.MethodDelete:
		for i, d := range m.dbs {
			if d == db {
				m.dbs = append(m.dbs[:i], m.dbs[i+1:]...)
				break
			}
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", r.Method)
	}
}

func (m *MockDocDB) serveCollections(w http.ResponseWriter, r *http.Request, body []byte, dbID string) {
	db := m.findDatabase(dbID)
	if db == nil {
		writeNotFound(w)
		return
	}
	all := make([]document.Value, 0, len(db.colls))
	for _, c := range db.colls {
		all = append(all, c.value)
	}

	switch {
	case r.Method == http.MethodGet:
		writeFeed(w, r, "DocumentCollections", all)
	case r.Method == http.MethodPost && isQuery(r):
		m.serveQuery(w, r, body, "DocumentCollections", all, nil)
	case r.Method == http.MethodPost:
		v, ok := decodeResource(w, body)
		if !ok {
			return
		}
		if m.findCollection(dbID, v.ID()) != nil {
			writeError(w, http.StatusConflict, "Conflict", "Resource with specified id already exists")
			return
		}
		coll := &mockCollection{}
		if err := coll.applyPolicy(&v); err != nil {
			writeError(w, http.StatusBadRequest, "BadRequest", err.Error())
			return
		}
		m.newSystem(&v, fmt.Sprintf("dbs/%s/colls/%s/", dbID, v.ID()))
		v.Set("_docs", document.String("docs/"))
		v.Set("_sprocs", document.String("sprocs/"))
		v.Set("_triggers", document.String("triggers/"))
		v.Set("_udfs", document.String("udfs/"))
		coll.value = v
		db.colls = append(db.colls, coll)
		writeJSON(w, http.StatusCreated, v)
	default:
		writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", r.Method)
	}
}

// applyPolicy reads the indexing policy of v, filling in the default.
func (c *mockCollection) applyPolicy(v *document.Value) error {
	policy := mockPolicy{Automatic: true, IndexingMode: "consistent"}
	if raw, ok := v.Field("indexingPolicy"); ok && !raw.IsNull() {
		data, err := raw.MarshalJSON()
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, &policy); err != nil {
			return fmt.Errorf("invalid indexing policy: %w", err)
		}
	} else {
		def, _ := document.Parse([]byte(`{"automatic":true,"indexingMode":"consistent","includedPaths":[{"path":"/*","indexes":[{"kind":"Hash","dataType":"String","precision":3},{"kind":"Hash","dataType":"Number","precision":3}]}],"excludedPaths":[]}`))
		v.Set("indexingPolicy", def)
	}
	c.policy = policy
	return nil
}

func (m *MockDocDB) serveCollection(w http.ResponseWriter, r *http.Request, body []byte, dbID, collID string) {
	coll := m.findCollection(dbID, collID)
	if coll == nil {
		writeNotFound(w)
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, coll.value)
	case http.MethodPut:
		v, ok := decodeResource(w, body)
		if !ok {
			return
		}
		if v.ID() != collID {
			writeError(w, http.StatusBadRequest, "BadRequest", "id cannot change")
			return
		}
		if err := coll.applyPolicy(&v); err != nil {
			writeError(w, http.StatusBadRequest, "BadRequest", err.Error())
			return
		}
		for _, k := range []string{"_rid", "_self", "_docs", "_sprocs", "_triggers", "_udfs"} {
			if f, ok := coll.value.Field(k); ok {
				v.Set(k, f)
			}
		}
		m.touch(&v)
		coll.value = v
		writeJSON(w, http.StatusOK, v)
	case http.MethodDelete:
		db := m.findDatabase(dbID)
		for i, c := range db.colls {
			if c == coll {
				db.colls = append(db.colls[:i], db.colls[i+1:]...)
				break
			}
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", r.Method)
	}
}

func (m *MockDocDB) serveDocuments(w http.ResponseWriter, r *http.Request, body []byte, dbID, collID string) {
	coll := m.findCollection(dbID, collID)
	if coll == nil {
		writeNotFound(w)
		return
	}

	switch {
	case r.Method == http.MethodGet:
		all := make([]document.Value, 0, len(coll.docs))
		for _, d := range coll.docs {
			all = append(all, d.value)
		}
		writeFeed(w, r, "Documents", all)
	case r.Method == http.MethodPost && isQuery(r):
		indexed := make([]document.Value, 0, len(coll.docs))
		for _, d := range coll.docs {
			if d.indexed {
				indexed = append(indexed, d.value)
			}
		}
		m.serveQuery(w, r, body, "Documents", indexed, coll)
	case r.Method == http.MethodPost:
		v, ok := decodeResource(w, body)
		if !ok {
			return
		}
		if _, d := coll.findDocument(v.ID()); d != nil {
			writeError(w, http.StatusConflict, "Conflict", "Resource with specified id already exists")
			return
		}
		directive := strings.ToLower(r.Header.Get("x-ms-indexing-directive"))
		indexed := coll.policy.Automatic
		switch directive {
		case "include":
			indexed = true
		case "exclude":
			indexed = false
		}
		m.newSystem(&v, fmt.Sprintf("dbs/%s/colls/%s/docs/%s/", dbID, collID, v.ID()))
		v.Set("_attachments", document.String("attachments/"))
		coll.docs = append(coll.docs, &mockDocument{value: v, indexed: indexed})
		writeJSON(w, http.StatusCreated, v)
	default:
		writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", r.Method)
	}
}

func (m *MockDocDB) serveDocument(w http.ResponseWriter, r *http.Request, body []byte, dbID, collID, docID string) {
	coll := m.findCollection(dbID, collID)
	if coll == nil {
		writeNotFound(w)
		return
	}
	i, doc := coll.findDocument(docID)
	if doc == nil {
		writeNotFound(w)
		return
	}

	switch r.Method {
	case http.MethodGet:
		etag, _ := doc.value.Field("_etag")
		tag, _ := etag.AsString()
		w.Header().Set("ETag", tag)
		if inm := r.Header.Get("If-None-Match"); inm != "" && inm == tag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		writeJSON(w, http.StatusOK, doc.value)
	case http.MethodPut:
		v, ok := decodeResource(w, body)
		if !ok {
			return
		}
		if v.ID() != docID {
			writeError(w, http.StatusBadRequest, "BadRequest", "id cannot change")
			return
		}
		for _, k := range []string{"_rid", "_self", "_attachments"} {
			if f, ok := doc.value.Field(k); ok {
				v.Set(k, f)
			}
		}
		m.touch(&v)
		doc.value = v
		writeJSON(w, http.StatusOK, v)
	case http.MethodDelete:
		coll.docs = append(coll.docs[:i], coll.docs[i+1:]...)
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", r.Method)
	}
}

func (m *MockDocDB) serveAttachments(w http.ResponseWriter, r *http.Request, body []byte, dbID, collID, docID string) {
	coll := m.findCollection(dbID, collID)
	if coll == nil {
		writeNotFound(w)
		return
	}
	_, doc := coll.findDocument(docID)
	if doc == nil {
		writeNotFound(w)
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeFeed(w, r, "Attachments", doc.attachments)
	case http.MethodPost:
		var att document.Value
		ct := r.Header.Get("Content-Type")
		if strings.HasPrefix(ct, "application/json") {
			v, ok := decodeResource(w, body)
			if !ok {
				return
			}
			if media, _ := v.Field("media"); media.IsNull() {
				writeError(w, http.StatusBadRequest, "BadRequest", "media is required")
				return
			}
			att = v
		} else {
			m.nextRID++
			mediaID := fmt.Sprintf("media%d", m.nextRID)
			m.media[mediaID] = mockMedia{contentType: ct, data: body}
			id := r.Header.Get("Slug")
			if id == "" {
				id = mediaID
			}
			att = document.Object(
				document.F("id", document.String(id)),
				document.F("contentType", document.String(ct)),
				document.F("media", document.String("/media/"+mediaID)),
			)
		}
		for _, a := range doc.attachments {
			if a.ID() == att.ID() {
				writeError(w, http.StatusConflict, "Conflict", "Resource with specified id already exists")
				return
			}
		}
		m.newSystem(&att, fmt.Sprintf("dbs/%s/colls/%s/docs/%s/attachments/%s/", dbID, collID, docID, att.ID()))
		doc.attachments = append(doc.attachments, att)
		writeJSON(w, http.StatusCreated, att)
	default:
		writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", r.Method)
	}
}

func (m *MockDocDB) serveAttachment(w http.ResponseWriter, r *http.Request, dbID, collID, docID, attID string) {
	coll := m.findCollection(dbID, collID)
	if coll == nil {
		writeNotFound(w)
		return
	}
	_, doc := coll.findDocument(docID)
	if doc == nil || r.Method != http.MethodGet {
		writeNotFound(w)
		return
	}
	for _, a := range doc.attachments {
		if a.ID() == attID {
			writeJSON(w, http.StatusOK, a)
			return
		}
	}
	writeNotFound(w)
}

func (m *MockDocDB) serveMedia(w http.ResponseWriter, r *http.Request, mediaID string) {
	media, ok := m.media[mediaID]
	if !ok || r.Method != http.MethodGet {
		writeNotFound(w)
		return
	}
	w.Header().Set("Content-Type", media.contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(media.data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(media.data)
}

type mockQuery struct {
	Query      string `json:"query"`
	Parameters []struct {
		Name  string         `json:"name"`
		Value document.Value `json:"value"`
	} `json:"parameters"`
}

// serveQuery runs a query over candidates. coll, when set, enforces its
// indexing policy unless the request enables scans.
func (m *MockDocDB) serveQuery(w http.ResponseWriter, r *http.Request, body []byte, key string, candidates []document.Value, coll *mockCollection) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/query+json") {
		writeError(w, http.StatusBadRequest, "BadRequest", "query requests must use application/query+json")
		return
	}
	var q mockQuery
	if err := json.Unmarshal(body, &q); err != nil {
		writeError(w, http.StatusBadRequest, "BadRequest", "invalid query body: "+err.Error())
		return
	}

	if handler, ok := m.queries[normalizeQuery(q.Query)]; ok {
		snapshot := make([]document.Value, len(candidates))
		for i, c := range candidates {
			snapshot[i] = c.Clone()
		}
		writeFeed(w, r, key, handler(snapshot))
		return
	}

	params := make(map[string]document.Value, len(q.Parameters))
	for _, p := range q.Parameters {
		params[p.Name] = p.Value
	}
	parsed, err := parseQuery(q.Query, params)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BadRequest", "Syntax error: "+err.Error())
		return
	}

	if coll != nil && !strings.EqualFold(r.Header.Get("x-ms-documentdb-query-enable-scan"), "true") {
		for _, c := range parsed.conditions() {
			if coll.policy.excludes(c.indexPath()) {
				writeError(w, http.StatusBadRequest, "BadRequest",
					fmt.Sprintf("The path %s is excluded from the index; enable scan to query it", c.indexPath()))
				return
			}
			if c.isRange() && !coll.policy.hasRange(c.indexPath()) {
				writeError(w, http.StatusBadRequest, "BadRequest",
					fmt.Sprintf("An invalid query has been specified with filters against path(s) that are not range-indexed: %s", c.indexPath()))
				return
			}
		}
	}

	hits := []document.Value{}
	for _, c := range candidates {
		if parsed.match(c) {
			hits = append(hits, c)
		}
	}
	writeFeed(w, r, key, hits)
}

// trimPolicyPath strips the "/*" or "/?" wildcard of a policy path.
func trimPolicyPath(p string) string {
	return strings.TrimSuffix(strings.TrimSuffix(strings.TrimSuffix(p, "/*"), "/?"), "/")
}

func pathCovers(policyPath, path string) bool {
	base := trimPolicyPath(policyPath)
	return base == "" || path == base || strings.HasPrefix(path, base+"/")
}

func (p mockPolicy) excludes(path string) bool {
	for _, e := range p.ExcludedPaths {
		if pathCovers(e.Path, path) {
			return true
		}
	}
	return false
}

func (p mockPolicy) hasRange(path string) bool {
	for _, inc := range p.IncludedPaths {
		if !pathCovers(inc.Path, path) {
			continue
		}
		for _, idx := range inc.Indexes {
			if strings.EqualFold(idx.Kind, "Range") {
				return true
			}
		}
	}
	return false
}

func isQuery(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("x-ms-documentdb-isquery"), "true")
}

// writeFeed writes one page of items. Continuation tokens are opaque to
// clients; here they encode the offset of the next page.
func writeFeed(w http.ResponseWriter, r *http.Request, key string, items []document.Value) {
	offset := 0
	if tok := r.Header.Get("x-ms-continuation"); tok != "" {
		raw, err := base64.StdEncoding.DecodeString(tok)
		if err == nil {
			offset, err = strconv.Atoi(strings.TrimPrefix(string(raw), "offset:"))
		}
		if err != nil || offset < 0 || offset > len(items) {
			writeError(w, http.StatusBadRequest, "BadRequest", "Invalid continuation token")
			return
		}
	}

	size := 100
	if raw := r.Header.Get("x-ms-max-item-count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n == 0 || n < -1 {
			writeError(w, http.StatusBadRequest, "BadRequest", "Invalid x-ms-max-item-count")
			return
		}
		if n == -1 {
			n = len(items)
		}
		size = n
	}

	end := offset + size
	if end > len(items) {
		end = len(items)
	}
	page := items[offset:end]
	if end < len(items) {
		w.Header().Set("x-ms-continuation", base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("offset:%d", end))))
	}

	writeJSON(w, http.StatusOK, document.Object(
		document.F("_rid", document.String("")),
		document.F(key, document.Array(page...)),
		document.F("_count", document.Int(int64(len(page)))),
	))
}

func decodeResource(w http.ResponseWriter, body []byte) (document.Value, bool) {
	v, err := document.Parse(body)
	if err != nil || v.Kind() != document.KindObject {
		writeError(w, http.StatusBadRequest, "BadRequest", "Request body is not a JSON object")
		return document.Value{}, false
	}
	if v.ID() == "" {
		writeError(w, http.StatusBadRequest, "BadRequest", "The input content is invalid because the required property, id, is missing")
		return document.Value{}, false
	}
	return v, true
}

func writeJSON(w http.ResponseWriter, status int, v document.Value) {
	data, err := v.MarshalJSON()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, document.Object(
		document.F("code", document.String(code)),
		document.F("message", document.String(message)),
	))
}

func writeNotFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "NotFound", "Resource Not Found")
}
