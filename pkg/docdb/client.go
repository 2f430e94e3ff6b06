// Package docdb provides a minimal REST client for the document database
// service: databases, collections, documents, attachments and SQL queries,
// with master-key auth, throttle handling, retries and an optional Redis
// read cache.
package docdb

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/docdb-demos/internal/retry"
	"github.com/Sternrassler/docdb-demos/pkg/cache"
	"github.com/Sternrassler/docdb-demos/pkg/docdb/auth"
	"github.com/Sternrassler/docdb-demos/pkg/logging"
	"github.com/Sternrassler/docdb-demos/pkg/ratelimit"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// APIVersion is sent as x-ms-version on every request.
const APIVersion = "2018-12-31"

// Request and response headers used by the service.
const (
	headerDate              = "x-ms-date"
	headerVersion           = "x-ms-version"
	headerActivityID        = "x-ms-activity-id"
	headerMaxItemCount      = "x-ms-max-item-count"
	headerContinuation      = "x-ms-continuation"
	headerIsQuery           = "x-ms-documentdb-isquery"
	headerEnableScan        = "x-ms-documentdb-query-enable-scan"
	headerIndexingDirective = "x-ms-indexing-directive"
	headerSlug              = "Slug"

	contentTypeJSON  = "application/json"
	contentTypeQuery = "application/query+json"
)

// Client talks to one document service account.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	key        []byte
	throttle   *ratelimit.Tracker
	cache      *cache.Store
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Endpoint is the account URI, e.g. "https://myaccount.documents.azure.com:443/".
	Endpoint string

	// MasterKey is the base64 account key.
	MasterKey string

	// Redis enables the document read cache and shares throttle windows
	// between clients. Optional.
	Redis *redis.Client

	// UserAgent header value.
	UserAgent string

	// Timeout per HTTP attempt.
	Timeout time.Duration

	// CacheTTL is how long a cached read is served without revalidation.
	CacheTTL time.Duration

	// CacheRetention is how long Redis keeps a cached read for revalidation.
	CacheRetention time.Duration

	// Retry policy for throttled, server and network failures.
	Retry retry.Policy
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(endpoint, masterKey string) Config {
	return Config{
		Endpoint:       endpoint,
		MasterKey:      masterKey,
		UserAgent:      "docdb-demos/0.1.0",
		Timeout:        30 * time.Second,
		CacheTTL:       cache.DefaultTTL,
		CacheRetention: cache.DefaultRetention,
		Retry: retry.Policy{
			Name:              "docdb",
			MaxAttempts:       5,
			InitialBackoff:    200 * time.Millisecond,
			MaxBackoff:        10 * time.Second,
			BackoffMultiplier: 2.0,
		},
	}
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	base, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("endpoint must be http or https (got %q)", cfg.Endpoint)
	}
	base.Path = strings.TrimRight(base.Path, "/")

	key, err := auth.DecodeKey(cfg.MasterKey)
	if err != nil {
		return nil, err
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.Name == "" {
		cfg.Retry.Name = "docdb"
	}

	logger := logging.NewLogger("docdb-client")

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    base,
		key:        key,
		throttle:   ratelimit.NewTracker(cfg.Redis, logger),
		config:     cfg,
		logger:     logger,
	}
	if cfg.Redis != nil {
		c.cache = cache.NewStore(cfg.Redis, cache.Options{TTL: cfg.CacheTTL, Retention: cfg.CacheRetention})
	}
	return c, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Close releases resources held by the client. The Redis client is owned by
// the caller and stays open.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// request describes one logical call; it may be sent several times.
type request struct {
	op          string
	method      string
	path        string
	body        []byte
	contentType string
	header      http.Header

	// cacheKey enables the ETag read cache for GETs.
	cacheKey *cache.Key
}

// response is a fully read service response.
type response struct {
	status int
	header http.Header
	body   []byte
}

// do performs a request with throttling, caching, auth, retries and error
// classification. Any status >= 400 is returned as *Error.
func (c *Client) do(ctx context.Context, r request) (*response, error) {
	startTime := time.Now()
	defer func() {
		docdbRequestDuration.WithLabelValues(r.op).Observe(time.Since(startTime).Seconds())
	}()

	var cached cache.Lookup
	if r.cacheKey != nil && c.cache != nil {
		l, err := c.cache.Get(ctx, *r.cacheKey)
		switch {
		case err != nil:
			c.logger.Warn().Err(err).Str("link", r.cacheKey.Link).Msg("Cache get error")
		case l.State == cache.Fresh:
			c.logger.Debug().Str("op", r.op).Str("link", r.cacheKey.Link).Msg("Cache hit")
			docdbRequestsTotal.WithLabelValues(r.op, "cache_hit").Inc()
			return &response{status: http.StatusOK, header: l.Entry.Header(), body: l.Entry.Body}, nil
		default:
			cached = l
		}
	}

	var resp *response
	err := retry.Do(ctx, c.config.Retry, retryVerdict, func() error {
		if err := c.throttle.Wait(ctx); err != nil {
			return err
		}

		httpReq, err := c.newHTTPRequest(ctx, r)
		if err != nil {
			return err
		}
		cache.Revalidate(httpReq, cached)

		c.logger.Debug().
			Str("op", r.op).
			Str("method", r.method).
			Str("path", r.path).
			Msg("Executing docdb request")

		httpResp, err := c.httpClient.Do(httpReq)
		if err != nil {
			c.logger.Error().Err(err).Str("op", r.op).Msg("HTTP request failed")
			docdbErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			docdbRequestsTotal.WithLabelValues(r.op, "network_error").Inc()
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return &Error{Op: r.op, Class: ErrorClassNetwork, Message: "request failed", Err: err}
		}
		defer httpResp.Body.Close()

		body, err := io.ReadAll(httpResp.Body)
		if err != nil {
			docdbErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			return &Error{Op: r.op, StatusCode: httpResp.StatusCode, Class: ErrorClassNetwork, Message: "read body", Err: err}
		}

		if err := c.throttle.UpdateFromHeaders(ctx, httpResp.StatusCode, httpResp.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update throttle state from headers")
		}
		docdbRequestCharge.WithLabelValues(r.op).Add(ratelimit.ParseRequestCharge(httpResp.Header))
		docdbRequestsTotal.WithLabelValues(r.op, strconv.Itoa(httpResp.StatusCode)).Inc()

		if httpResp.StatusCode >= 400 {
			e := newStatusError(r.op, httpResp.StatusCode, httpResp.Header, body)
			docdbErrorsTotal.WithLabelValues(string(e.Class)).Inc()
			c.logger.Warn().
				Str("op", r.op).
				Int("status", e.StatusCode).
				Str("error_class", string(e.Class)).
				Str("activity_id", e.ActivityID).
				Msg("docdb request error")
			return e
		}

		resp = &response{status: httpResp.StatusCode, header: httpResp.Header, body: body}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if resp.status == http.StatusNotModified && cached.State == cache.Stale {
		c.logger.Debug().Str("op", r.op).Msg("304 Not Modified - using cache")
		if err := c.cache.Confirm(ctx, *r.cacheKey, cached.Entry); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to refresh cache entry")
		}
		return &response{status: http.StatusOK, header: cached.Entry.Header(), body: cached.Entry.Body}, nil
	}

	if r.cacheKey != nil && c.cache != nil && resp.status == http.StatusOK {
		if err := c.cache.Put(ctx, *r.cacheKey, resp.body, resp.header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache response")
		}
	}

	return resp, nil
}

// newHTTPRequest builds a signed HTTP request. It is called once per attempt
// so every attempt carries a fresh date and signature.
func (c *Client) newHTTPRequest(ctx context.Context, r request) (*http.Request, error) {
	path := strings.Trim(r.path, "/")

	u := *c.baseURL
	u.Path = c.baseURL.Path + "/" + path

	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	for k, vs := range r.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	date := time.Now().UTC().Format(http.TimeFormat)
	resType, resLink := auth.Resource(path)

	req.Header.Set(headerDate, date)
	req.Header.Set(headerVersion, APIVersion)
	req.Header.Set(headerActivityID, uuid.NewString())
	req.Header.Set("Authorization", auth.Token(c.key, r.method, resType, resLink, date))
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", contentTypeJSON)
	if r.body != nil {
		ct := r.contentType
		if ct == "" {
			ct = contentTypeJSON
		}
		req.Header.Set("Content-Type", ct)
	}

	return req, nil
}

// invalidate drops a cached read after a write to the same link.
func (c *Client) invalidate(ctx context.Context, key cache.Key) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Invalidate(ctx, key); err != nil {
		c.logger.Warn().Err(err).Str("link", key.Link).Msg("Failed to invalidate cache entry")
	}
}
