// Package config loads the ambient configuration every process mode
// (api, worker, all) needs at startup: the database DSN, the on-disk
// data root, third-party credentials, and a handful of tunable limits.
//
// The typed ValidationError/LoadError wrapping (errors.go) classifies
// which environment variable failed rather than which YAML component
// failed, since this system's configuration surface is a flat set of
// env vars rather than a multi-file YAML tree.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the fully resolved, validated process configuration.
type Config struct {
	ListenAddr   string
	DatabaseURL  string
	DataRoot     string
	MasterAPIKey string // bearer token the API layer compares in constant time

	OracleAPIKey string
	OracleModel  string

	EdgeBucket    string
	EdgePublicURL string

	MeasurementEndpoint string
	MeasurementAPIKey   string

	CrawlConcurrency   int
	AssetPoolSize      int
	AgentMaxIterations int

	QueueWorkerCount int
	QueueLeaseTime   time.Duration

	CleanupRetention time.Duration
}

// Load reads .env (if present, via joho/godotenv) then the process
// environment, applies defaults, and validates. envFile may be empty
// to skip the dotenv step entirely (e.g. in a container where the
// orchestrator already injects the environment).
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, NewLoadError(envFile, err)
		}
	}

	cfg := &Config{
		ListenAddr:          getenv("STATICFORGE_LISTEN_ADDR", ":8080"),
		DatabaseURL:         os.Getenv("STATICFORGE_DATABASE_URL"),
		DataRoot:            getenv("STATICFORGE_DATA_ROOT", "./data"),
		MasterAPIKey:        os.Getenv("STATICFORGE_MASTER_API_KEY"),
		OracleAPIKey:        os.Getenv("STATICFORGE_ORACLE_API_KEY"),
		OracleModel:         getenv("STATICFORGE_ORACLE_MODEL", "gpt-4o-mini"),
		EdgeBucket:          os.Getenv("STATICFORGE_EDGE_BUCKET"),
		EdgePublicURL:       os.Getenv("STATICFORGE_EDGE_PUBLIC_URL"),
		MeasurementEndpoint: os.Getenv("STATICFORGE_MEASUREMENT_ENDPOINT"),
		MeasurementAPIKey:   os.Getenv("STATICFORGE_MEASUREMENT_API_KEY"),
		CrawlConcurrency:    getenvInt("STATICFORGE_CRAWL_CONCURRENCY", 4),
		AssetPoolSize:       getenvInt("STATICFORGE_ASSET_POOL_SIZE", 0), // 0 = CPU count, resolved by callers
		AgentMaxIterations:  getenvInt("STATICFORGE_AGENT_MAX_ITERATIONS", 10),
		QueueWorkerCount:    getenvInt("STATICFORGE_QUEUE_WORKERS", 5),
		QueueLeaseTime:      getenvDuration("STATICFORGE_QUEUE_LEASE", 30*time.Minute),
		CleanupRetention:    getenvDuration("STATICFORGE_CLEANUP_RETENTION", 30*24*time.Hour),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	var errs []error
	if cfg.DatabaseURL == "" {
		errs = append(errs, NewValidationError("database", "url", "STATICFORGE_DATABASE_URL", ErrMissingRequiredField))
	}
	if cfg.MasterAPIKey == "" {
		errs = append(errs, NewValidationError("auth", "master_key", "STATICFORGE_MASTER_API_KEY", ErrMissingRequiredField))
	}
	if cfg.DataRoot == "" {
		errs = append(errs, NewValidationError("storage", "data_root", "STATICFORGE_DATA_ROOT", ErrMissingRequiredField))
	}
	if cfg.AgentMaxIterations <= 0 {
		errs = append(errs, NewValidationError("agent", "max_iterations", "STATICFORGE_AGENT_MAX_ITERATIONS", ErrInvalidValue))
	}
	if len(errs) == 0 {
		return nil
	}
	return &MultiError{Errors: errs}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// MultiError aggregates every validation failure found in one Load
// call, so a misconfigured deployment sees the whole list at once
// instead of fixing one env var per restart.
type MultiError struct {
	Errors []error
}

func (m *MultiError) Error() string {
	msg := fmt.Sprintf("%d configuration error(s):", len(m.Errors))
	for _, err := range m.Errors {
		msg += "\n  - " + err.Error()
	}
	return msg
}
