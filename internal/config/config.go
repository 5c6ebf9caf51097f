package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	GinMode        string
	AllowedOrigins []string

	StoreDriver   string
	MongoURI      string
	MongoDatabase string
	SQLitePath    string

	Redis RedisConfig
	Cache CacheConfig

	ChangeFeed         string
	MQTTBrokerURL      string
	MQTTClientID       string
	InvalidationWindow time.Duration

	JWTSecret string
	JWTIssuer string

	LogLevel string
	LogJSON  bool

	Timezone          *time.Location
	OnTimeDefaultRate int

	RateLimitEnabled bool
}

type RedisConfig struct {
	URL                string
	Host               string
	Port               string
	Password           string
	DB                 int
	PoolSize           int
	MinIdleConns       int
	MaxRetries         int
	RetryDelay         time.Duration
	DialTimeout        time.Duration
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	PoolTimeout        time.Duration
	IdleTimeout        time.Duration
	IdleCheckFrequency time.Duration
}

// Enabled reports whether a Redis endpoint was configured at all.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Host != ""
}

type CacheConfig struct {
	StaleTime    time.Duration
	FetchTimeout time.Duration
	MaxEntries   int
	Retry        int
	RetryBackoff time.Duration
	GCTime       time.Duration
	SurfaceAfter int
	Shared       bool
}

const (
	DriverMemory = "memory"
	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"

	FeedStore = "store"
	FeedRedis = "redis"
	FeedMQTT  = "mqtt"
)

var (
	ErrUnknownDriver  = errors.New("unknown STORE_DRIVER")
	ErrUnknownFeed    = errors.New("unknown CHANGE_FEED")
	ErrMissingMongo   = errors.New("MONGO_URI is required for the mongo driver")
	ErrMissingRedis   = errors.New("redis must be configured for the redis change feed or shared cache")
	ErrMissingBroker  = errors.New("MQTT_BROKER_URL is required for the mqtt change feed")
	ErrInvalidOnTime  = errors.New("ONTIME_DEFAULT_RATE must be between 0 and 100")
	ErrInvalidEntries = errors.New("CACHE_MAX_ENTRIES must be positive")
)

// Load reads the environment, optionally seeded from a .env file.
func Load() *Config {
	// a missing .env file is fine; the environment wins either way
	_ = godotenv.Load()

	allowedOrigins := getEnv("ALLOWED_ORIGINS", "http://localhost:5173")
	origins := strings.Split(allowedOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	tz := time.Local
	if name := os.Getenv("APP_TIMEZONE"); name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			tz = loc
		}
	}

	return &Config{
		Port:           getEnv("PORT", "8080"),
		GinMode:        getEnv("GIN_MODE", "release"),
		AllowedOrigins: origins,

		StoreDriver:   getEnv("STORE_DRIVER", DriverMemory),
		MongoURI:      os.Getenv("MONGO_URI"),
		MongoDatabase: getEnv("MONGO_DATABASE", "logitrack"),
		SQLitePath:    getEnv("SQLITE_PATH", "logitrack.db"),

		Redis: RedisConfig{
			URL:                os.Getenv("REDIS_URL"),
			Host:               os.Getenv("REDIS_HOST"),
			Port:               getEnv("REDIS_PORT", "6379"),
			Password:           os.Getenv("REDIS_PASSWORD"),
			DB:                 getEnvInt("REDIS_DB", 0),
			PoolSize:           getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns:       getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			MaxRetries:         getEnvInt("REDIS_MAX_RETRIES", 3),
			RetryDelay:         getEnvDuration("REDIS_RETRY_DELAY", 100*time.Millisecond),
			DialTimeout:        getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:        getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout:       getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			PoolTimeout:        getEnvDuration("REDIS_POOL_TIMEOUT", 4*time.Second),
			IdleTimeout:        getEnvDuration("REDIS_IDLE_TIMEOUT", 5*time.Minute),
			IdleCheckFrequency: getEnvDuration("REDIS_IDLE_CHECK_FREQUENCY", time.Minute),
		},
		Cache: CacheConfig{
			StaleTime:    getEnvDuration("CACHE_STALE_TIME", 30*time.Second),
			FetchTimeout: getEnvDuration("CACHE_FETCH_TIMEOUT", 10*time.Second),
			MaxEntries:   getEnvInt("CACHE_MAX_ENTRIES", 1000),
			Retry:        getEnvInt("CACHE_RETRY", 3),
			RetryBackoff: getEnvDuration("CACHE_RETRY_BACKOFF", 500*time.Millisecond),
			GCTime:       getEnvDuration("CACHE_GC_TIME", 5*time.Minute),
			SurfaceAfter: getEnvInt("CACHE_SURFACE_AFTER", 3),
			Shared:       getEnvBool("CACHE_SHARED", false),
		},

		ChangeFeed:         getEnv("CHANGE_FEED", FeedStore),
		MQTTBrokerURL:      os.Getenv("MQTT_BROKER_URL"),
		MQTTClientID:       getEnv("MQTT_CLIENT_ID", "logitrack"),
		InvalidationWindow: getEnvDuration("INVALIDATION_WINDOW", 0),

		JWTSecret: os.Getenv("JWT_SECRET"),
		JWTIssuer: os.Getenv("JWT_ISSUER"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogJSON:  getEnvBool("LOG_JSON", false),

		Timezone:          tz,
		OnTimeDefaultRate: getEnvInt("ONTIME_DEFAULT_RATE", 95),

		RateLimitEnabled: getEnvBool("RATE_LIMIT_ENABLED", true),
	}
}

// Validate checks cross-field requirements that Load cannot express as defaults.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverMemory, DriverSQLite:
	case DriverMongo:
		if c.MongoURI == "" {
			return ErrMissingMongo
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.StoreDriver)
	}

	switch c.ChangeFeed {
	case FeedStore:
	case FeedRedis:
		if !c.Redis.Enabled() {
			return ErrMissingRedis
		}
	case FeedMQTT:
		if c.MQTTBrokerURL == "" {
			return ErrMissingBroker
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFeed, c.ChangeFeed)
	}

	if c.Cache.Shared && !c.Redis.Enabled() {
		return ErrMissingRedis
	}
	if c.Cache.MaxEntries <= 0 {
		return ErrInvalidEntries
	}
	if c.OnTimeDefaultRate < 0 || c.OnTimeDefaultRate > 100 {
		return ErrInvalidOnTime
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
