package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers accepted by STORAGE_DRIVER.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const defaultJWTSigningKey = "dev-secret-key-change-in-production"

// Config is the full process configuration.
type Config struct {
	Server    Server
	Storage   Storage
	JWT       JWT
	Redis     RedisConfig
	RateLimit RateLimit
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr           string
	Environment    string
	LogLevel       string
	Diagnostics    bool
	RequestTimeout time.Duration
	CORSOrigins    []string
}

// IsProduction switches logging to JSON.
func (s Server) IsProduction() bool {
	return s.Environment == "production"
}

// Storage selects and configures the contact store backend.
type Storage struct {
	Driver      string
	DatabaseURL string
	SQLitePath  string
	TxTimeout   time.Duration
}

// JWT configures owner token signing and validation.
type JWT struct {
	SigningKey string
	Issuer     string
	Audience   string
	TokenTTL   time.Duration
}

// RedisConfig configures the optional Redis client. An empty URL disables it.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RateLimit configures the per-owner fixed window.
type RateLimit struct {
	Requests int
	Window   time.Duration
	Disabled bool
}

// Load reads an optional .env file and then the environment.
func Load() (Config, error) {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	var errs []string
	env := envReader{errs: &errs}

	cfg := Config{
		Server: Server{
			Addr:           env.str("CONTACTGRAPH_ADDR", ":8080"),
			Environment:    env.str("CONTACTGRAPH_ENV", "development"),
			LogLevel:       env.str("CONTACTGRAPH_LOG_LEVEL", "info"),
			Diagnostics:    env.boolean("CONTACTGRAPH_DIAGNOSTICS", false),
			RequestTimeout: env.duration("REQUEST_TIMEOUT", 30*time.Second),
			CORSOrigins:    env.list("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Storage: Storage{
			Driver:      strings.ToLower(env.str("STORAGE_DRIVER", DriverMemory)),
			DatabaseURL: env.str("DATABASE_URL", ""),
			SQLitePath:  env.str("SQLITE_PATH", "contactgraph.db"),
			TxTimeout:   env.duration("STORE_TX_TIMEOUT", 5*time.Second),
		},
		JWT: JWT{
			SigningKey: env.str("JWT_SIGNING_KEY", defaultJWTSigningKey),
			Issuer:     env.str("JWT_ISSUER", "contactgraph"),
			Audience:   env.str("JWT_AUDIENCE", "contactgraph"),
			TokenTTL:   env.duration("JWT_TOKEN_TTL", 24*time.Hour),
		},
		Redis: RedisConfig{
			URL:          env.str("REDIS_URL", ""),
			PoolSize:     env.integer("REDIS_POOL_SIZE", 10),
			MinIdleConns: env.integer("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  env.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  env.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: env.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		RateLimit: RateLimit{
			Requests: env.integer("RATE_LIMIT_REQUESTS", 120),
			Window:   env.duration("RATE_LIMIT_WINDOW", time.Minute),
			Disabled: env.boolean("RATE_LIMIT_DISABLED", false),
		},
	}

	switch cfg.Storage.Driver {
	case DriverMemory, DriverSQLite:
	case DriverPostgres:
		if cfg.Storage.DatabaseURL == "" {
			errs = append(errs, "DATABASE_URL is required when STORAGE_DRIVER=postgres")
		}
	default:
		errs = append(errs, fmt.Sprintf("STORAGE_DRIVER must be one of memory, postgres, sqlite (got %q)", cfg.Storage.Driver))
	}
	if cfg.IsProductionWithDevKey() {
		errs = append(errs, "JWT_SIGNING_KEY must be set in production")
	}
	if cfg.RateLimit.Requests <= 0 || cfg.RateLimit.Window <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive")
	}

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// IsProductionWithDevKey reports whether production is running on the
// built-in development signing key.
func (c Config) IsProductionWithDevKey() bool {
	return c.Server.IsProduction() && c.JWT.SigningKey == defaultJWTSigningKey
}

type envReader struct {
	errs *[]string
}

func (e envReader) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (e envReader) boolean(key string, def bool) bool {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*e.errs = append(*e.errs, fmt.Sprintf("%s must be a boolean", key))
		return def
	}
	return b
}

func (e envReader) integer(key string, def int) int {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*e.errs = append(*e.errs, fmt.Sprintf("%s must be an integer", key))
		return def
	}
	return n
}

func (e envReader) duration(key string, def time.Duration) time.Duration {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*e.errs = append(*e.errs, fmt.Sprintf("%s must be a duration", key))
		return def
	}
	return d
}

func (e envReader) list(key string, def []string) []string {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
