package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var ErrMissingRequiredValue = errors.New("missing required value")
var ErrInvalidValue = errors.New("invalid value")

type environment string

const (
	production  environment = "production"
	staging     environment = "staging"
	development environment = "development"
)

type CacheBackend string

const (
	BackendMemory   CacheBackend = "memory"
	BackendSQLite   CacheBackend = "sqlite"
	BackendPostgres CacheBackend = "postgres"
	BackendRedis    CacheBackend = "redis"
)

const defaultPort = "8080"
const defaultSQLitePath = "catalogcache.sqlite3"
const defaultEssentialLimit = 10

type Config struct {
	env  environment
	port string

	sentryDSN          string
	googleCloudProject string

	catalogAPIURL string
	catalogAPIKey string

	cacheBackend           CacheBackend
	sqlitePath             string
	redisAddr              string
	cloudSQLUnixSocketPath string
	dBPassword             string
	dBUsername             string

	cacheVersion   string
	cachePrefix    string
	fullTierTTL    time.Duration
	essentialLimit int

	corsOriginSuffixes []string
	otlpEndpoint       string
}

func (c *Config) Port() string {
	return c.port
}

func (c *Config) SentryDSN() string {
	return c.sentryDSN
}

func (c *Config) GoogleCloudProject() string {
	return c.googleCloudProject
}

func (c *Config) CatalogAPIURL() string {
	return c.catalogAPIURL
}

func (c *Config) CatalogAPIKey() string {
	return c.catalogAPIKey
}

func (c *Config) CacheBackend() CacheBackend {
	return c.cacheBackend
}

func (c *Config) SQLitePath() string {
	return c.sqlitePath
}

func (c *Config) RedisAddr() string {
	return c.redisAddr
}

func (c *Config) CloudSQLUnixSocketPath() string {
	return c.cloudSQLUnixSocketPath
}

func (c *Config) DBPassword() string {
	return c.dBPassword
}

func (c *Config) DBUsername() string {
	return c.dBUsername
}

// Empty when the cache package default should be used
func (c *Config) CacheVersion() string {
	return c.cacheVersion
}

// Empty when the cache package default should be used
func (c *Config) CachePrefix() string {
	return c.cachePrefix
}

// Zero means the full tier never expires on its own
func (c *Config) FullTierTTL() time.Duration {
	return c.fullTierTTL
}

func (c *Config) EssentialLimit() int {
	return c.essentialLimit
}

// Domain suffixes whose https origins may call the API from a browser
func (c *Config) CORSOriginSuffixes() []string {
	return c.corsOriginSuffixes
}

// Telemetry is exported over OTLP only when an endpoint is configured
func (c *Config) TelemetryEnabled() bool {
	return c.otlpEndpoint != ""
}

func (c *Config) IsProduction() bool {
	return c.env == production
}

func (c *Config) IsStaging() bool {
	return c.env == staging
}

func (c *Config) IsDevelopment() bool {
	return c.env == development
}

// Return a string representation suitable for logging etc
func (c *Config) NonSensitiveString() string {
	return fmt.Sprintf(
		"Config{env: %s, port: %s, cacheBackend: %s, fullTierTTL: %s, essentialLimit: %d, corsOriginSuffixes: %v, telemetry: %t, ...}",
		string(c.env), c.port, string(c.cacheBackend), c.fullTierTTL, c.essentialLimit, c.corsOriginSuffixes, c.TelemetryEnabled(),
	)
}

// Load variables from a .env file into the process environment, if it exists.
// Variables already present in the environment take precedence.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func ConfigFromEnv() (Config, error) {
	missingKey := func(key string) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s", ErrMissingRequiredValue, key)
	}
	invalidValue := func(key, value string) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s (%s)", ErrInvalidValue, key, value)
	}

	var env environment
	rawEnv, ok := os.LookupEnv("CATALOGCACHE_ENVIRONMENT")
	if !ok {
		return missingKey("CATALOGCACHE_ENVIRONMENT")
	}
	switch rawEnv {
	case "production":
		env = production
	case "staging":
		env = staging
	case "development":
		env = development
	default:
		return invalidValue("CATALOGCACHE_ENVIRONMENT", rawEnv)
	}
	if string(env) == "" {
		panic("logic error: env is empty")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	var backend CacheBackend
	rawBackend := os.Getenv("CACHE_BACKEND")
	switch rawBackend {
	case "":
		backend = BackendSQLite
	case string(BackendMemory), string(BackendSQLite), string(BackendPostgres), string(BackendRedis):
		backend = CacheBackend(rawBackend)
	default:
		return invalidValue("CACHE_BACKEND", rawBackend)
	}

	sqlitePath := os.Getenv("SQLITE_PATH")
	if sqlitePath == "" {
		sqlitePath = defaultSQLitePath
	}

	var fullTierTTL time.Duration
	if rawTTL := os.Getenv("FULL_TIER_TTL"); rawTTL != "" {
		parsed, err := time.ParseDuration(rawTTL)
		if err != nil || parsed < 0 {
			return invalidValue("FULL_TIER_TTL", rawTTL)
		}
		fullTierTTL = parsed
	}

	essentialLimit := defaultEssentialLimit
	if rawLimit := os.Getenv("ESSENTIAL_LIMIT"); rawLimit != "" {
		parsed, err := strconv.Atoi(rawLimit)
		if err != nil || parsed <= 0 {
			return invalidValue("ESSENTIAL_LIMIT", rawLimit)
		}
		essentialLimit = parsed
	}

	var corsOriginSuffixes []string
	for _, suffix := range strings.Split(os.Getenv("CORS_ORIGIN_SUFFIXES"), ",") {
		suffix = strings.TrimSpace(suffix)
		if suffix == "" {
			continue
		}
		if strings.HasPrefix(suffix, ".") || strings.Contains(suffix, "://") {
			return invalidValue("CORS_ORIGIN_SUFFIXES", suffix)
		}
		corsOriginSuffixes = append(corsOriginSuffixes, suffix)
	}

	sentryDSN := os.Getenv("SENTRY_DSN")
	catalogAPIURL := os.Getenv("CATALOG_API_URL")
	catalogAPIKey := os.Getenv("CATALOG_API_KEY")
	redisAddr := os.Getenv("REDIS_ADDR")
	cloudSQLUnixSocketPath := os.Getenv("CLOUDSQL_UNIX_SOCKET")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbUsername := os.Getenv("DB_USERNAME")

	if env == production || env == staging {
		if sentryDSN == "" {
			return missingKey("SENTRY_DSN")
		}
		if catalogAPIURL == "" {
			return missingKey("CATALOG_API_URL")
		}
		if catalogAPIKey == "" {
			return missingKey("CATALOG_API_KEY")
		}
		if backend == BackendPostgres {
			if cloudSQLUnixSocketPath == "" {
				return missingKey("CLOUDSQL_UNIX_SOCKET")
			}
			if dbUsername == "" {
				return missingKey("DB_USERNAME")
			}
			if dbPassword == "" {
				return missingKey("DB_PASSWORD")
			}
		}
	}

	if backend == BackendRedis && redisAddr == "" {
		return missingKey("REDIS_ADDR")
	}

	return Config{
		env:  env,
		port: port,

		sentryDSN:          sentryDSN,
		googleCloudProject: os.Getenv("GOOGLE_CLOUD_PROJECT"),

		catalogAPIURL: catalogAPIURL,
		catalogAPIKey: catalogAPIKey,

		cacheBackend:           backend,
		sqlitePath:             sqlitePath,
		redisAddr:              redisAddr,
		cloudSQLUnixSocketPath: cloudSQLUnixSocketPath,
		dBPassword:             dbPassword,
		dBUsername:             dbUsername,

		cacheVersion:   os.Getenv("CACHE_VERSION"),
		cachePrefix:    os.Getenv("CACHE_PREFIX"),
		fullTierTTL:    fullTierTTL,
		essentialLimit: essentialLimit,

		corsOriginSuffixes: corsOriginSuffixes,
		otlpEndpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}, nil
}
