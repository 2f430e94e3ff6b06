// Package config loads the demo program configuration: defaults, then an
// optional YAML file, then environment overrides, then validation.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/docdb-demos/pkg/media"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
)

// Config is the complete program configuration.
type Config struct {
	DocDB   DocDB   `yaml:"docdb"`
	Redis   Redis   `yaml:"redis"`
	Media   Media   `yaml:"media"`
	Demo    Demo    `yaml:"demo"`
	Log     Log     `yaml:"log"`
	Metrics Metrics `yaml:"metrics"`
}

// DocDB configures the document service account.
type DocDB struct {
	Endpoint  string        `yaml:"endpoint" validate:"required,url"`
	MasterKey string        `yaml:"master_key" validate:"required,base64"`
	UserAgent string        `yaml:"user_agent" validate:"required"`
	Timeout   time.Duration `yaml:"timeout" validate:"gt=0"`
}

// Redis enables the read cache and shared throttle state when Addr is set.
type Redis struct {
	Addr     string `yaml:"addr" validate:"omitempty,hostname_port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
}

// Media enables external attachments when Endpoint is set.
type Media struct {
	Endpoint        string `yaml:"endpoint" validate:"omitempty,hostname_port"`
	AccessKeyID     string `yaml:"access_key_id" validate:"required_with=Endpoint"`
	SecretAccessKey string `yaml:"secret_access_key" validate:"required_with=Endpoint"`
	Bucket          string `yaml:"bucket" validate:"required_with=Endpoint"`
	Region          string `yaml:"region"`
	UseSSL          bool   `yaml:"use_ssl"`
}

// Enabled reports whether an external media store is configured.
func (m Media) Enabled() bool { return m.Endpoint != "" }

// Store returns the media store settings.
func (m Media) Store() media.Config {
	return media.Config{
		Endpoint:        m.Endpoint,
		AccessKeyID:     m.AccessKeyID,
		SecretAccessKey: m.SecretAccessKey,
		Bucket:          m.Bucket,
		Region:          m.Region,
		UseSSL:          m.UseSSL,
	}
}

// Demo configures the demo runner.
type Demo struct {
	DatabaseID   string `yaml:"database_id" validate:"required"`
	CollectionID string `yaml:"collection_id" validate:"required"`
	DataDir      string `yaml:"data_dir" validate:"required"`
	BulkDir      string `yaml:"bulk_dir"`
	Parallelism  int    `yaml:"parallelism" validate:"gte=1"`
	PageSize     int    `yaml:"page_size" validate:"gte=1,lte=1000"`
}

// Log configures zerolog.
type Log struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error disabled"`
	Pretty bool   `yaml:"pretty"`
}

// Metrics enables the Prometheus endpoint when Addr is set.
type Metrics struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration. Endpoint and key are left
// empty; they must come from the file or the environment.
func Default() Config {
	return Config{
		DocDB: DocDB{
			UserAgent: "docdb-demos/0.1.0",
			Timeout:   30 * time.Second,
		},
		Demo: Demo{
			DatabaseID:   "DpgDocDbDemo",
			CollectionID: "Demo",
			DataDir:      "data",
			Parallelism:  8 * runtime.GOMAXPROCS(0),
			PageSize:     50,
		},
		Log: Log{Level: "warn"},
	}
}

// Load builds the configuration. path may be empty.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.UnmarshalWithOptions(data, &cfg, yaml.Strict()); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.Demo.BulkDir == "" {
		cfg.Demo.BulkDir = cfg.Demo.DataDir + "/bulk"
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func Validate(cfg Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.DocDB.Endpoint = getEnv("DOCDB_ENDPOINT", cfg.DocDB.Endpoint)
	cfg.DocDB.MasterKey = getEnv("DOCDB_MASTER_KEY", cfg.DocDB.MasterKey)
	cfg.DocDB.UserAgent = getEnv("DOCDB_USER_AGENT", cfg.DocDB.UserAgent)
	cfg.Redis.Addr = getEnv("REDIS_URL", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Media.Endpoint = getEnv("MEDIA_ENDPOINT", cfg.Media.Endpoint)
	cfg.Media.AccessKeyID = getEnv("MEDIA_ACCESS_KEY_ID", cfg.Media.AccessKeyID)
	cfg.Media.SecretAccessKey = getEnv("MEDIA_SECRET_ACCESS_KEY", cfg.Media.SecretAccessKey)
	cfg.Media.Bucket = getEnv("MEDIA_BUCKET", cfg.Media.Bucket)
	cfg.Demo.DataDir = getEnv("DEMO_DATA_DIR", cfg.Demo.DataDir)
	cfg.Log.Level = strings.ToLower(getEnv("LOG_LEVEL", cfg.Log.Level))
	cfg.Metrics.Addr = getEnv("METRICS_ADDR", cfg.Metrics.Addr)

	if v := os.Getenv("DOCDB_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("DOCDB_TIMEOUT: %w", err)
		}
		cfg.DocDB.Timeout = d
	}
	if v := os.Getenv("DEMO_PARALLELISM"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DEMO_PARALLELISM: %w", err)
		}
		cfg.Demo.Parallelism = n
	}
	if v := os.Getenv("LOG_PRETTY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LOG_PRETTY: %w", err)
		}
		cfg.Log.Pretty = b
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
