// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes settings for the HTTP
// server, logging, the advisory store, the upstream IMGW feed and Geoportal
// geocoder, the resolver cache, optional Redis/Kafka integrations, rate
// limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // FEED_TIMEZONE must resolve on hosts without zoneinfo
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "meteo-warnings")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// UpstreamConfig locates the advisory feed and the point-to-county geocoder.
type UpstreamConfig struct {
	FeedURL        string        // IMGW_URL
	FeedTimeout    time.Duration // IMGW_TIMEOUT
	FeedTimezone   string        // FEED_TIMEZONE, zone of the feed's local timestamps
	GeoportalURL   string        // GEOPORTAL_URL
	GeoportalLimit time.Duration // GEOPORTAL_TIMEOUT
}

// RedisConfig configures the optional short-lived cache of live feed payloads.
// An empty Addr disables it.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LiveTTL  time.Duration
}

// KafkaConfig configures the optional advisory change publisher.
// No brokers disables it.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // must exceed the feed timeout
	IdleTimeout       time.Duration // e.g. 60s
	ShutdownTimeout   time.Duration
	MaxHeaderBytes    int    // bytes
	GinMode           string // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	LogHeaders     bool   // access log with scrubbed request headers
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Store
	DBDriver    string // sqlite|postgres
	DBPath      string // SQLite path
	DatabaseURL string // Postgres DSN

	// Domain
	Upstream     UpstreamConfig
	CacheEnabled bool // METEO_CACHE_ENABLED, default resolver cache policy

	// Optional integrations
	Redis RedisConfig
	Kafka KafkaConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

const (
	defaultFeedURL      = "https://danepubliczne.imgw.pl/api/data/warningsmeteo"
	defaultGeoportalURL = "https://mapy.geoportal.gov.pl/wss/ims/maps/PRG_gugik_wyszukiwarka/MapServer/1/query"
)

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 45*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:   getdur("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		LogHeaders:     getbool("LOG_HEADERS", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Store
		DBDriver:    strings.ToLower(getenv("DB_DRIVER", "sqlite")),
		DBPath:      getenv("DB_PATH", "meteo.db"),
		DatabaseURL: getenv("DATABASE_URL", ""),

		// Domain
		Upstream: UpstreamConfig{
			FeedURL:        getenv("IMGW_URL", defaultFeedURL),
			FeedTimeout:    getdur("IMGW_TIMEOUT", 20*time.Second),
			FeedTimezone:   getenv("FEED_TIMEZONE", "Europe/Warsaw"),
			GeoportalURL:   getenv("GEOPORTAL_URL", defaultGeoportalURL),
			GeoportalLimit: getdur("GEOPORTAL_TIMEOUT", 10*time.Second),
		},
		CacheEnabled: getbool("METEO_CACHE_ENABLED", true),

		// Optional integrations
		Redis: RedisConfig{
			Addr:     getenv("REDIS_ADDR", ""),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getint("REDIS_DB", 0),
			LiveTTL:  getdur("LIVE_FEED_TTL", 60*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: splitCSV(getenv("KAFKA_BROKERS", "")),
			Topic:   getenv("KAFKA_ADVISORY_TOPIC", "meteo-advisories"),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "meteo-warnings"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.DBDriver == "postgresql" || cfg.DBDriver == "pg" {
		cfg.DBDriver = "postgres"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.ShutdownTimeout <= 0 {
		return cfg, errors.New("SHUTDOWN_TIMEOUT must be > 0")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	switch cfg.DBDriver {
	case "sqlite":
		if strings.TrimSpace(cfg.DBPath) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case "postgres":
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return cfg, errors.New("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	default:
		return cfg, errors.New("DB_DRIVER must be one of: sqlite, postgres")
	}
	if strings.TrimSpace(cfg.Upstream.FeedURL) == "" {
		return cfg, errors.New("IMGW_URL must not be empty")
	}
	if strings.TrimSpace(cfg.Upstream.GeoportalURL) == "" {
		return cfg, errors.New("GEOPORTAL_URL must not be empty")
	}
	if cfg.Upstream.FeedTimeout <= 0 || cfg.Upstream.GeoportalLimit <= 0 {
		return cfg, errors.New("IMGW_TIMEOUT and GEOPORTAL_TIMEOUT must be > 0")
	}
	if _, err := time.LoadLocation(cfg.Upstream.FeedTimezone); err != nil {
		return cfg, errors.New("FEED_TIMEZONE must be a valid IANA zone name")
	}
	if cfg.Redis.Addr != "" && cfg.Redis.LiveTTL <= 0 {
		return cfg, errors.New("LIVE_FEED_TTL must be > 0")
	}
	if len(cfg.Kafka.Brokers) > 0 && strings.TrimSpace(cfg.Kafka.Topic) == "" {
		return cfg, errors.New("KAFKA_ADVISORY_TOPIC must not be empty when KAFKA_BROKERS is set")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
