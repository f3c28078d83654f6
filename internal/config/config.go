package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends
const (
	StorageSupabase = "supabase"
	StorageFTP      = "ftp"
	StorageMemory   = "memory"
)

// Catalog sources
const (
	CatalogPostgres = "postgres"
	CatalogYAML     = "yaml"
)

// Config holds all configuration for propdesk
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Catalog  CatalogConfig
	Stats    StatsConfig
	Offers   OffersConfig
	Reviews  ReviewsConfig
	Auth     AuthConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// DatabaseConfig holds PostgreSQL configuration.
// An empty DSN runs the service on the in-memory repository.
type DatabaseConfig struct {
	DSN           string
	MaxOpenConns  int
	MigrationsDir string
}

// RedisConfig holds the offer cache configuration
type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	CacheTTL time.Duration
}

// StorageConfig holds attachment storage configuration
type StorageConfig struct {
	Backend     string
	SupabaseURL string
	Bucket      string
	ServiceKey  string
	FTPAddress  string
	FTPUser     string
	FTPPassword string
	FTPRoot     string
}

// CatalogConfig selects where firms and challenges come from
type CatalogConfig struct {
	Source string
	Dir    string
}

// StatsConfig holds the statistics database configuration
type StatsConfig struct {
	DSN          string
	MaxOpenConns int
}

// OffersConfig holds offer refresh configuration
type OffersConfig struct {
	RefreshInterval time.Duration
}

// ReviewsConfig holds submission limits
type ReviewsConfig struct {
	MaxUploadMemory int64
	MaxBodyBytes    int64
}

// AuthConfig holds moderation auth settings.
// DevModeratorKey registers a full-access client on the in-memory repository only.
type AuthConfig struct {
	DevModeratorKey string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
}

// LoadDotEnv reads .env files into the environment without overriding set variables
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}

	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env files: %w", err)
	}
	return nil
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			RequestTimeout:  getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			AllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			DSN:           getEnv("DATABASE_DSN", ""),
			MaxOpenConns:  getEnvAsInt("DATABASE_MAX_OPEN_CONNS", 25),
			MigrationsDir: getEnv("MIGRATIONS_DIR", ""),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
			Address:  getEnv("REDIS_ADDRESS", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			CacheTTL: getEnvAsDuration("OFFERS_CACHE_TTL", 10*time.Minute),
		},
		Storage: StorageConfig{
			Backend:     strings.ToLower(getEnv("STORAGE_BACKEND", StorageSupabase)),
			SupabaseURL: getEnv("SUPABASE_URL", ""),
			Bucket:      getEnv("STORAGE_BUCKET", "reviews"),
			ServiceKey:  getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
			FTPAddress:  getEnv("FTP_ADDRESS", ""),
			FTPUser:     getEnv("FTP_USER", ""),
			FTPPassword: getEnv("FTP_PASSWORD", ""),
			FTPRoot:     getEnv("FTP_ROOT", "/"),
		},
		Catalog: CatalogConfig{
			Source: strings.ToLower(getEnv("CATALOG_SOURCE", CatalogPostgres)),
			Dir:    getEnv("CATALOG_DIR", "./catalog"),
		},
		Stats: StatsConfig{
			DSN:          getEnv("STATS_DATABASE_DSN", ""),
			MaxOpenConns: getEnvAsInt("STATS_MAX_OPEN_CONNS", 5),
		},
		Offers: OffersConfig{
			RefreshInterval: getEnvAsDuration("OFFERS_REFRESH_INTERVAL", 5*time.Minute),
		},
		Reviews: ReviewsConfig{
			MaxUploadMemory: int64(getEnvAsInt("REVIEWS_MAX_UPLOAD_MEMORY", 32<<20)),
			MaxBodyBytes:    int64(getEnvAsInt("REVIEWS_MAX_BODY_BYTES", 64<<20)),
		},
		Auth: AuthConfig{
			DevModeratorKey: getEnv("DEV_MODERATOR_API_KEY", ""),
		},
		Log: LogConfig{
			Level: strings.ToLower(getEnv("LOG_LEVEL", "info")),
		},
	}

	// The stats functions live in the main database unless told otherwise
	if cfg.Stats.DSN == "" {
		cfg.Stats.DSN = cfg.Database.DSN
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Storage.Backend {
	case StorageSupabase:
		if c.Storage.SupabaseURL == "" || c.Storage.ServiceKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY are required for the supabase backend")
		}
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage bucket is required")
		}
	case StorageFTP:
		if c.Storage.FTPAddress == "" {
			return fmt.Errorf("FTP_ADDRESS is required for the ftp backend")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown storage backend: %s", c.Storage.Backend)
	}

	switch c.Catalog.Source {
	case CatalogPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database DSN is required for the postgres catalog")
		}
	case CatalogYAML:
		if c.Catalog.Dir == "" {
			return fmt.Errorf("catalog dir is required for the yaml catalog")
		}
	default:
		return fmt.Errorf("unknown catalog source: %s", c.Catalog.Source)
	}

	if c.Reviews.MaxUploadMemory <= 0 {
		return fmt.Errorf("invalid upload memory limit: %d", c.Reviews.MaxUploadMemory)
	}

	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
