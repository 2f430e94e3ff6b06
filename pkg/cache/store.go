package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultTTL is how long a read is served without asking the service.
	DefaultTTL = 5 * time.Minute

	// DefaultRetention is how long Redis keeps a read for revalidation.
	DefaultRetention = 24 * time.Hour

	keyPrefix = "docdb"
)

// ErrInvalidEntry is returned when a stored value cannot be decoded.
var ErrInvalidEntry = errors.New("invalid cache entry")

// Options tunes a Store.
type Options struct {
	// TTL is the freshness window of a new or revalidated entry.
	TTL time.Duration
	// Retention bounds how long Redis holds the entry. It is raised to TTL
	// when shorter.
	Retention time.Duration
}

// Lookup is the outcome of Store.Get.
type Lookup struct {
	Entry *Entry
	State State
}

// Store caches resource reads in Redis.
type Store struct {
	rdb  *redis.Client
	opts Options
	now  func() time.Time
}

// NewStore returns a Store backed by rdb.
func NewStore(rdb *redis.Client, opts Options) *Store {
	if rdb == nil {
		panic("cache: nil redis client")
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	if opts.Retention < opts.TTL {
		opts.Retention = opts.TTL
	}
	return &Store{rdb: rdb, opts: opts, now: time.Now}
}

// Get looks key up. A missing or undecodable value is a Miss; only Redis
// failures are returned as errors.
func (s *Store) Get(ctx context.Context, key Key) (Lookup, error) {
	raw, err := s.rdb.Get(ctx, key.redisKey(keyPrefix)).Bytes()
	if errors.Is(err, redis.Nil) {
		lookups.WithLabelValues(string(key.Kind), Miss.String()).Inc()
		return Lookup{}, nil
	}
	if err != nil {
		storeErrors.WithLabelValues("get").Inc()
		return Lookup{}, fmt.Errorf("cache get %s: %w", key.Link, err)
	}

	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		storeErrors.WithLabelValues("decode").Inc()
		return Lookup{}, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	l := Lookup{Entry: &e, State: e.stateAt(s.now())}
	if l.State == Miss {
		l.Entry = nil
	}
	lookups.WithLabelValues(string(key.Kind), l.State.String()).Inc()
	return l, nil
}

// Put stores a successful read. header supplies the ETag and content type.
func (s *Store) Put(ctx context.Context, key Key, body []byte, header http.Header) error {
	now := s.now()
	return s.write(ctx, key, &Entry{
		Body:        body,
		ETag:        header.Get("ETag"),
		ContentType: header.Get("Content-Type"),
		StoredAt:    now,
		FreshUntil:  now.Add(s.opts.TTL),
	})
}

// Confirm records that the service answered 304 for a stale entry and
// starts a new freshness window for it.
func (s *Store) Confirm(ctx context.Context, key Key, e *Entry) error {
	if e == nil {
		return fmt.Errorf("cache confirm %s: nil entry", key.Link)
	}
	notModified.Inc()
	e.FreshUntil = s.now().Add(s.opts.TTL)
	return s.write(ctx, key, e)
}

// Invalidate drops whatever is stored under key.
func (s *Store) Invalidate(ctx context.Context, key Key) error {
	if err := s.rdb.Del(ctx, key.redisKey(keyPrefix)).Err(); err != nil {
		storeErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("cache delete %s: %w", key.Link, err)
	}
	return nil
}

func (s *Store) write(ctx context.Context, key Key, e *Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		storeErrors.WithLabelValues("encode").Inc()
		return fmt.Errorf("cache encode %s: %w", key.Link, err)
	}
	if err := s.rdb.Set(ctx, key.redisKey(keyPrefix), raw, s.opts.Retention).Err(); err != nil {
		storeErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("cache set %s: %w", key.Link, err)
	}
	bytesWritten.Add(float64(len(raw)))
	return nil
}
