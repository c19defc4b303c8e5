package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config contains all runtime settings for the concierge service.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	MetricsNamespace         string
	AllowAnyOrigin           bool

	LogLevel  string
	LogFormat string

	CatalogSource   string
	CatalogFile     string
	CatalogCacheTTL time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	DatabaseURL string

	OrdersSource       string
	OrdersAPIURL       string
	OrderLookupTimeout time.Duration

	ThinkingBase    time.Duration
	ThinkingPerChar time.Duration
	ThinkingCap     time.Duration
	ThinkingJitter  time.Duration
	TurnQueueSize   int
	HistoryLimit    int

	TracingJaegerEndpoint string
}

var defaults = map[string]any{
	"APP_BIND_ADDR":                  ":8080",
	"APP_SHUTDOWN_TIMEOUT":           "15s",
	"APP_SESSION_INACTIVITY_TIMEOUT": "30m",
	"APP_METRICS_NAMESPACE":          "concierge",
	"APP_ALLOW_ANY_ORIGIN":           false,
	"LOG_LEVEL":                      "info",
	"LOG_FORMAT":                     "json",
	"CATALOG_SOURCE":                 "file",
	"CATALOG_FILE":                   "configs/catalog.json",
	"CATALOG_CACHE_TTL":              "0s",
	"REDIS_ADDR":                     "",
	"REDIS_PASSWORD":                 "",
	"REDIS_DB":                       0,
	"DATABASE_URL":                   "",
	"ORDERS_SOURCE":                  "static",
	"ORDERS_API_URL":                 "",
	"ORDER_LOOKUP_TIMEOUT":           "5s",
	"THINKING_BASE":                  "600ms",
	"THINKING_PER_CHAR":              "15ms",
	"THINKING_CAP":                   "1200ms",
	"THINKING_JITTER":                "400ms",
	"TURN_QUEUE_SIZE":                8,
	"HISTORY_LIMIT":                  10,
	"TRACING_JAEGER_ENDPOINT":        "",
}

// Load reads .env (when present) and the process environment, then applies defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		BindAddr:              trimmed(v, "APP_BIND_ADDR"),
		MetricsNamespace:      trimmed(v, "APP_METRICS_NAMESPACE"),
		LogLevel:              strings.ToLower(trimmed(v, "LOG_LEVEL")),
		LogFormat:             strings.ToLower(trimmed(v, "LOG_FORMAT")),
		CatalogSource:         strings.ToLower(trimmed(v, "CATALOG_SOURCE")),
		CatalogFile:           trimmed(v, "CATALOG_FILE"),
		RedisAddr:             trimmed(v, "REDIS_ADDR"),
		RedisPassword:         v.GetString("REDIS_PASSWORD"),
		DatabaseURL:           trimmed(v, "DATABASE_URL"),
		OrdersSource:          strings.ToLower(trimmed(v, "ORDERS_SOURCE")),
		OrdersAPIURL:          trimmed(v, "ORDERS_API_URL"),
		TracingJaegerEndpoint: trimmed(v, "TRACING_JAEGER_ENDPOINT"),
	}

	var err error
	if cfg.AllowAnyOrigin, err = boolValue(v, "APP_ALLOW_ANY_ORIGIN"); err != nil {
		return Config{}, err
	}
	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"APP_SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout},
		{"APP_SESSION_INACTIVITY_TIMEOUT", &cfg.SessionInactivityTimeout},
		{"CATALOG_CACHE_TTL", &cfg.CatalogCacheTTL},
		{"ORDER_LOOKUP_TIMEOUT", &cfg.OrderLookupTimeout},
		{"THINKING_BASE", &cfg.ThinkingBase},
		{"THINKING_PER_CHAR", &cfg.ThinkingPerChar},
		{"THINKING_CAP", &cfg.ThinkingCap},
		{"THINKING_JITTER", &cfg.ThinkingJitter},
	}
	for _, d := range durations {
		if *d.dst, err = durationValue(v, d.key); err != nil {
			return Config{}, err
		}
	}
	ints := []struct {
		key string
		dst *int
	}{
		{"REDIS_DB", &cfg.RedisDB},
		{"TURN_QUEUE_SIZE", &cfg.TurnQueueSize},
		{"HISTORY_LIMIT", &cfg.HistoryLimit},
	}
	for _, i := range ints {
		if *i.dst, err = intValue(v, i.key); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.SessionInactivityTimeout < 5*time.Second {
		return fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	switch c.CatalogSource {
	case "file":
		if c.CatalogFile == "" {
			return fmt.Errorf("CATALOG_FILE is required when CATALOG_SOURCE=file")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when CATALOG_SOURCE=postgres")
		}
	default:
		return fmt.Errorf("invalid CATALOG_SOURCE %q (expected file|postgres)", c.CatalogSource)
	}
	switch c.OrdersSource {
	case "static":
	case "http":
		if c.OrdersAPIURL == "" {
			return fmt.Errorf("ORDERS_API_URL is required when ORDERS_SOURCE=http")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when ORDERS_SOURCE=postgres")
		}
	default:
		return fmt.Errorf("invalid ORDERS_SOURCE %q (expected static|http|postgres)", c.OrdersSource)
	}
	if c.CatalogCacheTTL > 0 && c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required when CATALOG_CACHE_TTL is set")
	}
	if c.OrderLookupTimeout <= 0 {
		return fmt.Errorf("ORDER_LOOKUP_TIMEOUT must be positive")
	}
	if c.ThinkingBase < 0 || c.ThinkingPerChar < 0 || c.ThinkingCap < 0 || c.ThinkingJitter < 0 {
		return fmt.Errorf("THINKING_* durations must be >= 0")
	}
	if c.TurnQueueSize <= 0 {
		return fmt.Errorf("TURN_QUEUE_SIZE must be positive")
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("HISTORY_LIMIT must be positive")
	}
	return nil
}

func trimmed(v *viper.Viper, key string) string {
	return strings.TrimSpace(v.GetString(key))
}

func durationValue(v *viper.Viper, key string) (time.Duration, error) {
	raw := trimmed(v, key)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intValue(v *viper.Viper, key string) (int, error) {
	raw := trimmed(v, key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolValue(v *viper.Viper, key string) (bool, error) {
	switch strings.ToLower(trimmed(v, key)) {
	case "", "0", "false", "f", "no", "n", "off":
		return false, nil
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
