// Package config loads and validates ingestor configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/catalog-ingestor/internal/catalog"
)

// Storage backends for run report archives.
const (
	StorageMemory = "memory"
	StorageLocal  = "local"
	StorageGCS    = "gcs"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	DB       DBConfig       `mapstructure:"db"`
	Storage  StorageConfig  `mapstructure:"storage"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Server   ServerConfig   `mapstructure:"server"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// CatalogConfig locates the remote catalog API.
type CatalogConfig struct {
	CategoriesURL  string `mapstructure:"categories_url"`
	ListingBaseURL string `mapstructure:"listing_base_url"`
	// ListingParams are key=value pairs sent with every listing request. A
	// list is used because Viper lower-cases map keys.
	ListingParams []string `mapstructure:"listing_params"`
	// StrictParse aborts the run on the first malformed category node.
	StrictParse bool `mapstructure:"strict_parse"`
}

// IngestConfig governs run-level behavior.
type IngestConfig struct {
	Concurrency         int           `mapstructure:"concurrency"`
	MaxPagesPerCategory int           `mapstructure:"max_pages_per_category"`
	RunTimeout          time.Duration `mapstructure:"run_timeout"`
	PersistTimeout      time.Duration `mapstructure:"persist_timeout"`
	TruncateBeforeRun   bool          `mapstructure:"truncate_before_run"`
}

// HTTPConfig configures the outbound client.
type HTTPConfig struct {
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
	UserAgent         string  `mapstructure:"user_agent"`
	MaxRetries        int     `mapstructure:"max_retries"`
	BackoffInitialMs  int     `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs      int     `mapstructure:"backoff_max_ms"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// DBConfig controls access to Postgres. An empty DSN selects the in-memory store.
type DBConfig struct {
	DSN             string `mapstructure:"dsn"`
	MaxConns        int32  `mapstructure:"max_conns"`
	CategoriesTable string `mapstructure:"categories_table"`
	ProductsTable   string `mapstructure:"products_table"`
	RunsTable       string `mapstructure:"runs_table"`
}

// StorageConfig selects where run reports are archived.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	LocalDir  string `mapstructure:"local_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds run notification settings. An empty topic selects the
// in-memory publisher.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ServerConfig controls the ops HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// ScheduleConfig controls periodic runs.
type ScheduleConfig struct {
	Cron string `mapstructure:"cron"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from defaults, an optional file, and INGESTOR_*
// environment variables.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("INGESTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("catalog.categories_url", catalog.DefaultCategoriesURL)
	v.SetDefault("catalog.listing_base_url", catalog.DefaultListingBaseURL)
	v.SetDefault("catalog.listing_params", []string{
		"appType=1",
		"curr=rub",
		"dest=-3628814",
		"lang=ru",
		"sort=popular",
		"spp=30",
	})
	v.SetDefault("catalog.strict_parse", true)
	v.SetDefault("ingest.concurrency", 20)
	v.SetDefault("ingest.max_pages_per_category", 0)
	v.SetDefault("ingest.run_timeout", time.Duration(0))
	v.SetDefault("ingest.persist_timeout", 30*time.Second)
	v.SetDefault("ingest.truncate_before_run", false)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.user_agent", "catalog-ingestor/0.1")
	v.SetDefault("http.max_retries", 0)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 5000)
	v.SetDefault("http.requests_per_second", 0)
	v.SetDefault("http.burst", 1)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 10)
	v.SetDefault("db.categories_table", "categories")
	v.SetDefault("db.products_table", "products")
	v.SetDefault("db.runs_table", "ingest_runs")
	v.SetDefault("storage.backend", StorageMemory)
	v.SetDefault("storage.local_dir", "reports")
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.prefix", "")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("schedule.cron", "0 */6 * * *")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Catalog.CategoriesURL) == "" {
		return fmt.Errorf("catalog.categories_url is required")
	}
	if _, err := c.Catalog.Params(); err != nil {
		return err
	}
	if c.Ingest.Concurrency <= 0 {
		return fmt.Errorf("ingest.concurrency must be > 0")
	}
	if c.Ingest.MaxPagesPerCategory < 0 {
		return fmt.Errorf("ingest.max_pages_per_category must be >= 0")
	}
	if c.Ingest.RunTimeout < 0 {
		return fmt.Errorf("ingest.run_timeout must be >= 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.HTTP.RequestsPerSecond < 0 {
		return fmt.Errorf("http.requests_per_second must be >= 0")
	}
	switch c.Storage.Backend {
	case StorageMemory:
	case StorageLocal:
		if strings.TrimSpace(c.Storage.LocalDir) == "" {
			return fmt.Errorf("storage.local_dir is required for the local backend")
		}
	case StorageGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend must be one of memory, local, gcs; got %q", c.Storage.Backend)
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id is required when pubsub.topic_name is set")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if strings.TrimSpace(c.Schedule.Cron) == "" {
		return fmt.Errorf("schedule.cron must not be empty")
	}
	return nil
}

// RequestTimeout is the per-request HTTP budget.
func (c HTTPConfig) RequestTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// BackoffInitial is the first retry delay.
func (c HTTPConfig) BackoffInitial() time.Duration {
	return time.Duration(c.BackoffInitialMs) * time.Millisecond
}

// BackoffMax caps the retry delay.
func (c HTTPConfig) BackoffMax() time.Duration {
	return time.Duration(c.BackoffMaxMs) * time.Millisecond
}

// Params parses ListingParams into a query map.
func (c CatalogConfig) Params() (map[string]string, error) {
	out := make(map[string]string, len(c.ListingParams))
	for _, kv := range c.ListingParams {
		key, value, ok := strings.Cut(strings.TrimSpace(kv), "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("catalog.listing_params: %q is not key=value", kv)
		}
		out[key] = value
	}
	return out, nil
}
