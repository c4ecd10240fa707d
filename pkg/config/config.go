package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Database drivers accepted by DB_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Analytics AnalyticsConfig
	Assistant AssistantConfig
	Gateway   GatewayConfig
	Exports   ExportsConfig
}

type DatabaseConfig struct {
	Driver       string
	URL          string
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig describes how bearer tokens issued by the identity backend are verified.
type JWTConfig struct {
	Secret    string
	Issuer    string
	Audience  string
	// AdminRole is the role claim allowed to run maintenance routes.
	AdminRole string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AnalyticsConfig governs the row fetcher, the aggregation thresholds and dataset caching.
type AnalyticsConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
	PageSize     int
	MaxPages     int
	FetchTimeout time.Duration

	HotspotMinSample    int
	AtRiskRateThreshold int
	AtRiskRecentAbsence int
	AtRiskWindow        time.Duration
	AtRiskDetailLimit   int
	FilterOptionsTTL    time.Duration
}

// AssistantConfig configures both sides of the question answering flow: the bridge used
// by the API and the upstream completion provider used by the gateway.
type AssistantConfig struct {
	Endpoint          string
	APIKey            string
	Timeout           time.Duration
	MaxQuestionLength int

	UpstreamURL     string
	UpstreamAPIKey  string
	UpstreamModel   string
	UpstreamTimeout time.Duration
}

// GatewayConfig configures the insights gateway process.
type GatewayConfig struct {
	Port int
}

// ExportsConfig configures synchronous and asynchronous report exports.
type ExportsConfig struct {
	Enabled           bool
	StorageDir        string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	CleanupInterval   time.Duration
	WorkerConcurrency int
	WorkerRetries     int
	MaxRows           int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *fs.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return nil, err
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Driver:       strings.ToLower(v.GetString("DB_DRIVER")),
		URL:          v.GetString("DATABASE_URL"),
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}
	if cfg.Database.Driver != DriverPostgres && cfg.Database.Driver != DriverPgx {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Database.Driver)
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:    v.GetString("JWT_SECRET"),
		Issuer:    v.GetString("JWT_ISSUER"),
		Audience:  v.GetString("JWT_AUDIENCE"),
		AdminRole: v.GetString("JWT_ADMIN_ROLE"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Analytics = AnalyticsConfig{
		CacheEnabled:        v.GetBool("ANALYTICS_CACHE_ENABLED"),
		CacheTTL:            parseDuration(v.GetString("ANALYTICS_CACHE_TTL"), 5*time.Minute),
		PageSize:            positiveInt(v.GetInt("ANALYTICS_PAGE_SIZE"), 10000),
		MaxPages:            positiveInt(v.GetInt("ANALYTICS_MAX_PAGES"), 500),
		FetchTimeout:        parseDuration(v.GetString("ANALYTICS_FETCH_TIMEOUT"), time.Minute),
		HotspotMinSample:    positiveInt(v.GetInt("HOTSPOT_MIN_SAMPLE"), 200),
		AtRiskRateThreshold: positiveInt(v.GetInt("AT_RISK_RATE_THRESHOLD"), 80),
		AtRiskRecentAbsence: positiveInt(v.GetInt("AT_RISK_RECENT_ABSENCES"), 3),
		AtRiskWindow:        parseDuration(v.GetString("AT_RISK_WINDOW"), 28*24*time.Hour),
		AtRiskDetailLimit:   positiveInt(v.GetInt("AT_RISK_DETAIL_LIMIT"), 100),
		FilterOptionsTTL:    parseDuration(v.GetString("FILTER_OPTIONS_CACHE_TTL"), 30*time.Minute),
	}

	cfg.Assistant = AssistantConfig{
		Endpoint:          v.GetString("ASSISTANT_ENDPOINT"),
		APIKey:            v.GetString("ASSISTANT_API_KEY"),
		Timeout:           parseDuration(v.GetString("ASSISTANT_TIMEOUT"), 90*time.Second),
		MaxQuestionLength: positiveInt(v.GetInt("ASSISTANT_MAX_QUESTION_LENGTH"), 500),
		UpstreamURL:       v.GetString("ASSISTANT_UPSTREAM_URL"),
		UpstreamAPIKey:    v.GetString("ASSISTANT_UPSTREAM_API_KEY"),
		UpstreamModel:     v.GetString("ASSISTANT_MODEL"),
		UpstreamTimeout:   parseDuration(v.GetString("ASSISTANT_UPSTREAM_TIMEOUT"), 2*time.Minute),
	}

	cfg.Gateway = GatewayConfig{Port: v.GetInt("GATEWAY_PORT")}

	cfg.Exports = ExportsConfig{
		Enabled:           v.GetBool("ENABLE_EXPORT_JOBS"),
		StorageDir:        v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret:   v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:      parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupInterval:   parseDuration(v.GetString("EXPORTS_CLEANUP_INTERVAL"), time.Hour),
		WorkerConcurrency: positiveInt(v.GetInt("EXPORTS_WORKER_CONCURRENCY"), 1),
		WorkerRetries:     v.GetInt("EXPORTS_WORKER_RETRIES"),
		MaxRows:           positiveInt(v.GetInt("EXPORT_MAX_ROWS"), 200000),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_DRIVER", DriverPostgres)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "attendance_insights")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_AUDIENCE", "authenticated")
	v.SetDefault("JWT_ADMIN_ROLE", "admin")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ANALYTICS_CACHE_ENABLED", true)
	v.SetDefault("ANALYTICS_CACHE_TTL", "5m")
	v.SetDefault("ANALYTICS_PAGE_SIZE", 10000)
	v.SetDefault("ANALYTICS_MAX_PAGES", 500)
	v.SetDefault("ANALYTICS_FETCH_TIMEOUT", "60s")
	v.SetDefault("HOTSPOT_MIN_SAMPLE", 200)
	v.SetDefault("AT_RISK_RATE_THRESHOLD", 80)
	v.SetDefault("AT_RISK_RECENT_ABSENCES", 3)
	v.SetDefault("AT_RISK_WINDOW", "672h")
	v.SetDefault("AT_RISK_DETAIL_LIMIT", 100)
	v.SetDefault("FILTER_OPTIONS_CACHE_TTL", "30m")

	v.SetDefault("ASSISTANT_ENDPOINT", "http://localhost:8090/ai-insights")
	v.SetDefault("ASSISTANT_API_KEY", "")
	v.SetDefault("ASSISTANT_TIMEOUT", "90s")
	v.SetDefault("ASSISTANT_MAX_QUESTION_LENGTH", 500)
	v.SetDefault("ASSISTANT_UPSTREAM_URL", "https://api.openai.com/v1/chat/completions")
	v.SetDefault("ASSISTANT_UPSTREAM_API_KEY", "")
	v.SetDefault("ASSISTANT_MODEL", "gpt-4o-mini")
	v.SetDefault("ASSISTANT_UPSTREAM_TIMEOUT", "2m")
	v.SetDefault("GATEWAY_PORT", 8090)

	v.SetDefault("ENABLE_EXPORT_JOBS", false)
	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("EXPORTS_CLEANUP_INTERVAL", "1h")
	v.SetDefault("EXPORTS_WORKER_CONCURRENCY", 1)
	v.SetDefault("EXPORTS_WORKER_RETRIES", 3)
	v.SetDefault("EXPORT_MAX_ROWS", 200000)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func positiveInt(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
