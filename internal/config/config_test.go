package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 20, cfg.Ingest.Concurrency)
	require.Zero(t, cfg.Ingest.MaxPagesPerCategory)
	require.Zero(t, cfg.Ingest.RunTimeout)
	require.Equal(t, 30*time.Second, cfg.Ingest.PersistTimeout)
	require.True(t, cfg.Catalog.StrictParse)
	require.Equal(t, 15*time.Second, cfg.HTTP.RequestTimeout())
	require.Zero(t, cfg.HTTP.MaxRetries)
	require.Equal(t, StorageMemory, cfg.Storage.Backend)
	require.Equal(t, "0 */6 * * *", cfg.Schedule.Cron)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Empty(t, cfg.DB.DSN)

	params, err := cfg.Catalog.Params()
	require.NoError(t, err)
	require.Equal(t, "1", params["appType"])
	require.Equal(t, "popular", params["sort"])
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
catalog:
  categories_url: https://example.test/menu.json
  listing_base_url: https://listing.example.test/catalog
  listing_params: ["appType=1", "dest=-1"]
  strict_parse: false
ingest:
  concurrency: 4
  max_pages_per_category: 50
  run_timeout: 10m
  persist_timeout: 5s
  truncate_before_run: true
http:
  timeout_seconds: 45
  user_agent: test-agent
  max_retries: 3
  backoff_initial_ms: 100
  backoff_max_ms: 500
  requests_per_second: 2.5
  burst: 4
db:
  dsn: postgres://user@localhost/catalog
  max_conns: 8
  products_table: wb_products
storage:
  backend: gcs
  gcs_bucket: reports-bucket
  prefix: ingest
pubsub:
  project_id: proj
  topic_name: ingest-runs
server:
  port: 9090
schedule:
  cron: "*/15 * * * *"
logging:
  development: false
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "https://example.test/menu.json", cfg.Catalog.CategoriesURL)
	require.False(t, cfg.Catalog.StrictParse)
	require.Equal(t, 4, cfg.Ingest.Concurrency)
	require.Equal(t, 50, cfg.Ingest.MaxPagesPerCategory)
	require.Equal(t, 10*time.Minute, cfg.Ingest.RunTimeout)
	require.Equal(t, 5*time.Second, cfg.Ingest.PersistTimeout)
	require.True(t, cfg.Ingest.TruncateBeforeRun)
	require.Equal(t, 45*time.Second, cfg.HTTP.RequestTimeout())
	require.Equal(t, 3, cfg.HTTP.MaxRetries)
	require.Equal(t, 100*time.Millisecond, cfg.HTTP.BackoffInitial())
	require.Equal(t, 500*time.Millisecond, cfg.HTTP.BackoffMax())
	require.InDelta(t, 2.5, cfg.HTTP.RequestsPerSecond, 1e-9)
	require.Equal(t, 4, cfg.HTTP.Burst)
	require.Equal(t, int32(8), cfg.DB.MaxConns)
	require.Equal(t, "wb_products", cfg.DB.ProductsTable)
	require.Equal(t, "categories", cfg.DB.CategoriesTable)
	require.Equal(t, StorageGCS, cfg.Storage.Backend)
	require.Equal(t, "ingest-runs", cfg.PubSub.TopicName)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "*/15 * * * *", cfg.Schedule.Cron)
	require.Equal(t, "debug", cfg.Logging.Level)

	params, err := cfg.Catalog.Params()
	require.NoError(t, err)
	require.Equal(t, map[string]string{"appType": "1", "dest": "-1"}, params)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("INGESTOR_INGEST_CONCURRENCY", "7")
	t.Setenv("INGESTOR_HTTP_MAX_RETRIES", "2")
	t.Setenv("INGESTOR_STORAGE_BACKEND", "local")
	t.Setenv("INGESTOR_STORAGE_LOCAL_DIR", "/tmp/reports")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 7, cfg.Ingest.Concurrency)
	require.Equal(t, 2, cfg.HTTP.MaxRetries)
	require.Equal(t, StorageLocal, cfg.Storage.Backend)
	require.Equal(t, "/tmp/reports", cfg.Storage.LocalDir)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "read config")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "zero concurrency", mutate: func(c *Config) { c.Ingest.Concurrency = 0 }, wantErr: "ingest.concurrency"},
		{name: "negative pages", mutate: func(c *Config) { c.Ingest.MaxPagesPerCategory = -1 }, wantErr: "max_pages_per_category"},
		{name: "negative run timeout", mutate: func(c *Config) { c.Ingest.RunTimeout = -time.Second }, wantErr: "run_timeout"},
		{name: "zero http timeout", mutate: func(c *Config) { c.HTTP.TimeoutSeconds = 0 }, wantErr: "http.timeout_seconds"},
		{name: "negative retries", mutate: func(c *Config) { c.HTTP.MaxRetries = -1 }, wantErr: "http.max_retries"},
		{name: "negative rps", mutate: func(c *Config) { c.HTTP.RequestsPerSecond = -1 }, wantErr: "requests_per_second"},
		{name: "unknown backend", mutate: func(c *Config) { c.Storage.Backend = "s3" }, wantErr: "storage.backend"},
		{name: "gcs without bucket", mutate: func(c *Config) { c.Storage.Backend = StorageGCS }, wantErr: "gcs_bucket"},
		{name: "local without dir", mutate: func(c *Config) {
			c.Storage.Backend = StorageLocal
			c.Storage.LocalDir = ""
		}, wantErr: "local_dir"},
		{name: "topic without project", mutate: func(c *Config) { c.PubSub.TopicName = "t" }, wantErr: "pubsub.project_id"},
		{name: "empty cron", mutate: func(c *Config) { c.Schedule.Cron = " " }, wantErr: "schedule.cron"},
		{name: "bad listing param", mutate: func(c *Config) { c.Catalog.ListingParams = []string{"novalue"} }, wantErr: "key=value"},
		{name: "missing categories url", mutate: func(c *Config) { c.Catalog.CategoriesURL = "" }, wantErr: "categories_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			cfg.Catalog.ListingParams = append([]string(nil), base.Catalog.ListingParams...)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.True(t, strings.Contains(err.Error(), tt.wantErr), "error %q should mention %q", err, tt.wantErr)
		})
	}
}
