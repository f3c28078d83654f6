package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithMemoryBackend(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "memory")
	t.Setenv("CATALOG_SOURCE", "yaml")
	t.Setenv("DATABASE_DSN", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, StorageMemory, cfg.Storage.Backend)
	assert.Equal(t, CatalogYAML, cfg.Catalog.Source)
	assert.Equal(t, 5*time.Minute, cfg.Offers.RefreshInterval)
	assert.Equal(t, int64(32<<20), cfg.Reviews.MaxUploadMemory)
}

func TestLoadStatsFallsBackToMainDatabase(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "memory")
	t.Setenv("DATABASE_DSN", "postgres://localhost/propdesk")
	t.Setenv("STATS_DATABASE_DSN", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/propdesk", cfg.Stats.DSN)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:   ServerConfig{Port: 8080},
			Database: DatabaseConfig{DSN: "postgres://localhost/propdesk"},
			Storage: StorageConfig{
				Backend:     StorageSupabase,
				SupabaseURL: "https://x.supabase.co",
				ServiceKey:  "key",
				Bucket:      "reviews",
			},
			Catalog: CatalogConfig{Source: CatalogPostgres},
			Reviews: ReviewsConfig{MaxUploadMemory: 1 << 20},
		}
	}

	require.NoError(t, valid().Validate())

	cfg := valid()
	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Storage.ServiceKey = ""
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Storage.Backend = StorageFTP
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Storage.Backend = "s3"
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Database.DSN = ""
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Catalog.Source = "csv"
	assert.Error(t, cfg.Validate())
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(file, []byte("PROPDESK_TEST_VALUE=from-file\nPROPDESK_TEST_SET=from-file\n"), 0o600))

	t.Setenv("PROPDESK_TEST_SET", "from-env")
	t.Cleanup(func() { os.Unsetenv("PROPDESK_TEST_VALUE") })

	require.NoError(t, LoadDotEnv(file, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "from-file", os.Getenv("PROPDESK_TEST_VALUE"))
	assert.Equal(t, "from-env", os.Getenv("PROPDESK_TEST_SET"))

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "none.env")))
}
