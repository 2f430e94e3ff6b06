// Package media stores attachment payloads outside the document service in an
// S3-compatible bucket. Documents then carry external attachments whose media
// link points at the stored object.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/Sternrassler/docdb-demos/pkg/logging"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
)

// ErrNotFound is returned for missing objects.
var ErrNotFound = errors.New("media object not found")

// Config holds the bucket connection settings.
type Config struct {
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	UseSSL          bool   `yaml:"use_ssl"`
}

// Store reads and writes attachment media in one bucket.
type Store struct {
	client *minio.Client
	cfg    Config
	logger zerolog.Logger
}

// Object is a stored payload with its content type.
type Object struct {
	ContentType string
	Size        int64
	Body        io.ReadCloser
}

// New connects a store. No request is made until EnsureBucket or an object
// operation runs.
func New(cfg Config) (*Store, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("media endpoint cannot be empty")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("media bucket cannot be empty")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create media client: %w", err)
	}
	return &Store{client: client, cfg: cfg, logger: logging.NewLogger("media")}, nil
}

// EnsureBucket creates the bucket if it does not exist.
func (s *Store) EnsureBucket(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.cfg.Bucket, err)
	}
	if exists {
		return nil
	}

	if err := s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{Region: s.cfg.Region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.cfg.Bucket, err)
	}
	s.logger.Info().Str("bucket", s.cfg.Bucket).Msg("Created media bucket")
	return nil
}

// Put uploads r under key and returns the media URL to link from an
// attachment. size may be -1 when unknown.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	info, err := s.client.PutObject(ctx, s.cfg.Bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	s.logger.Debug().Str("key", key).Int64("size", info.Size).Msg("Stored media")
	return s.URL(key), nil
}

// Open returns a reader for key. The caller closes Body.
func (s *Store) Open(ctx context.Context, key string) (*Object, error) {
	obj, err := s.client.GetObject(ctx, s.cfg.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, translate(key, err)
	}
	stat, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, translate(key, err)
	}
	return &Object{ContentType: stat.ContentType, Size: stat.Size, Body: obj}, nil
}

// Get reads the whole object at key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, string, error) {
	obj, err := s.Open(ctx, key)
	if err != nil {
		return nil, "", err
	}
	defer obj.Body.Close()

	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", key, err)
	}
	return data, obj.ContentType, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.cfg.Bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// URL returns the media URL of key.
func (s *Store) URL(key string) string {
	scheme := "http"
	if s.cfg.UseSSL {
		scheme = "https"
	}
	return (&url.URL{Scheme: scheme, Host: s.cfg.Endpoint, Path: "/" + s.cfg.Bucket + "/" + key}).String()
}

// KeyFromURL returns the object key of a media URL issued by this store.
func (s *Store) KeyFromURL(mediaURL string) (string, error) {
	u, err := url.Parse(mediaURL)
	if err != nil {
		return "", fmt.Errorf("parse media url: %w", err)
	}
	if u.Host != s.cfg.Endpoint {
		return "", fmt.Errorf("media url %q is not served by %s", mediaURL, s.cfg.Endpoint)
	}
	prefix := "/" + s.cfg.Bucket + "/"
	if !strings.HasPrefix(u.Path, prefix) || len(u.Path) == len(prefix) {
		return "", fmt.Errorf("media url %q is outside bucket %s", mediaURL, s.cfg.Bucket)
	}
	return strings.TrimPrefix(u.Path, prefix), nil
}

func translate(key string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return fmt.Errorf("get %s: %w", key, err)
}
