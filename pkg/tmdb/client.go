// Package tmdb is a small client for the movie catalogue API used to build
// bulk-upload fixtures. It lists movies page by page and fetches full movie
// details with their related lists appended.
package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/docdb-demos/internal/retry"
	"github.com/Sternrassler/docdb-demos/pkg/document"
	"github.com/Sternrassler/docdb-demos/pkg/logging"
	"github.com/rs/zerolog"
)

// DefaultBaseURL is the public API root.
const DefaultBaseURL = "https://api.themoviedb.org/3"

// DetailLists are appended to every movie details request.
var DetailLists = []string{
	"alternative_titles",
	"credits",
	"images",
	"keywords",
	"releases",
	"trailers",
	"translations",
}

// Config holds the client configuration.
type Config struct {
	BaseURL   string
	APIKey    string
	UserAgent string
	Timeout   time.Duration
	Retry     retry.Policy
}

// DefaultConfig returns a configuration for the public API.
func DefaultConfig(apiKey string) Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		APIKey:    apiKey,
		UserAgent: "docdb-demos-getmovies/0.1.0",
		Timeout:   15 * time.Second,
		Retry:     retry.DefaultPolicy("tmdb"),
	}
}

// Client talks to the movie catalogue API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	config     Config
	logger     zerolog.Logger
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Retry.Name == "" {
		cfg.Retry.Name = "tmdb"
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		config:     cfg,
		logger:     logging.NewLogger("tmdb"),
	}, nil
}

// StatusError is a non-2xx API response.
type StatusError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tmdb: status %d: %s", e.StatusCode, e.Message)
}

// MovieResult is one entry of a movie listing.
type MovieResult struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

// MovieList is one page of a movie listing.
type MovieList struct {
	Page         int           `json:"page"`
	TotalPages   int           `json:"total_pages"`
	TotalResults int           `json:"total_results"`
	Results      []MovieResult `json:"results"`
}

// ListPage fetches page (1-based) of a listing such as "/movie/popular".
func (c *Client) ListPage(ctx context.Context, list string, page int) (*MovieList, error) {
	data, err := c.get(ctx, list, url.Values{"page": {strconv.Itoa(page)}})
	if err != nil {
		return nil, err
	}
	var ml MovieList
	if err := json.Unmarshal(data, &ml); err != nil {
		return nil, fmt.Errorf("decode movie list: %w", err)
	}
	return &ml, nil
}

// FetchPage returns the raw listing page and its total page count.
func (c *Client) FetchPage(ctx context.Context, endpoint string, pageNum int) ([]byte, int, error) {
	data, err := c.get(ctx, endpoint, url.Values{"page": {strconv.Itoa(pageNum)}})
	if err != nil {
		return nil, 0, err
	}
	var head struct {
		TotalPages int `json:"total_pages"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, 0, fmt.Errorf("decode movie list: %w", err)
	}
	return data, head.TotalPages, nil
}

// Movie fetches the details of a movie with DetailLists appended.
func (c *Client) Movie(ctx context.Context, id int) (document.Value, error) {
	data, err := c.get(ctx, "/movie/"+strconv.Itoa(id), url.Values{
		"append_to_response": {strings.Join(DetailLists, ",")},
	})
	if err != nil {
		return document.Value{}, err
	}
	movie, err := document.Parse(data)
	if err != nil {
		return document.Value{}, fmt.Errorf("decode movie %d: %w", id, err)
	}
	return movie, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	query.Set("api_key", c.config.APIKey)
	u := c.baseURL + "/" + strings.TrimLeft(path, "/") + "?" + query.Encode()

	var body []byte
	err := retry.Do(ctx, c.config.Retry, classify, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.config.UserAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return &networkError{err: err}
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return &networkError{err: err}
		}
		if resp.StatusCode >= 300 {
			c.logger.Warn().Str("path", path).Int("status", resp.StatusCode).Msg("tmdb request error")
			return newStatusError(resp, data)
		}
		body = data
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	return body, nil
}

func newStatusError(resp *http.Response, data []byte) *StatusError {
	e := &StatusError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	var payload struct {
		StatusMessage string `json:"status_message"`
	}
	if json.Unmarshal(data, &payload) == nil && payload.StatusMessage != "" {
		e.Message = payload.StatusMessage
	}
	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
		e.RetryAfter = time.Duration(secs) * time.Second
	}
	return e
}

type networkError struct{ err error }

func (e *networkError) Error() string { return "network error: " + e.err.Error() }
func (e *networkError) Unwrap() error { return e.err }

func classify(err error) retry.Verdict {
	var se *StatusError
	var ne *networkError
	switch {
	case errors.As(err, &se) && se.StatusCode == http.StatusTooManyRequests:
		return retry.Verdict{Class: "throttled", Retry: true, After: se.RetryAfter}
	case errors.As(err, &se) && se.StatusCode >= 500:
		return retry.Verdict{Class: "server", Retry: true}
	case errors.As(err, &se):
		return retry.Verdict{Class: "client"}
	case errors.As(err, &ne):
		return retry.Verdict{Class: "network", Retry: true}
	}
	return retry.Verdict{Class: "unknown"}
}
