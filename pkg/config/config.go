package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	devJWTSecret    = "dev_secret"
	devTicketSecret = "dev_ticket_secret"
)

type Config struct {
	Env            string
	Port           int
	APIPrefix      string
	MetricsEnabled bool

	Database   DatabaseConfig
	Redis      RedisConfig
	Cache      CacheConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Scheduling SchedulingConfig
	Notify     NotifyConfig
	Tickets    TicketConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	// TxIsolation is one of serializable, repeatable_read, read_committed or default.
	TxIsolation  string
	TxMaxRetries int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig controls read-through caching of availability listings.
type CacheConfig struct {
	Enabled    bool
	WindowsTTL time.Duration
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SchedulingConfig holds the calendar rules shared by windows and bookings.
type SchedulingConfig struct {
	Timezone      string
	BatchMaxItems int
}

// NotifyConfig selects and tunes the outbound notification driver.
type NotifyConfig struct {
	Driver       string
	BaseURL      string
	APIKey       string
	AppName      string
	Timeout      time.Duration
	Workers      int
	Retries      int
	KafkaBrokers []string
	KafkaTopic   string
}

// TicketConfig configures signed check-in tickets and the QR renderer.
type TicketConfig struct {
	QRBaseURL     string
	SigningSecret string
	TTL           time.Duration
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
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.MetricsEnabled = v.GetBool("ENABLE_METRICS")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		TxIsolation:  strings.ToLower(v.GetString("DB_TX_ISOLATION")),
		TxMaxRetries: v.GetInt("DB_TX_MAX_RETRIES"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Cache = CacheConfig{
		Enabled:    v.GetBool("CACHE_ENABLED"),
		WindowsTTL: parseDuration(v.GetString("CACHE_WINDOWS_TTL"), 5*time.Minute),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	batchMax := v.GetInt("SCHEDULING_BATCH_MAX_ITEMS")
	if batchMax <= 0 {
		batchMax = 500
	}
	cfg.Scheduling = SchedulingConfig{
		Timezone:      v.GetString("SCHEDULING_TIMEZONE"),
		BatchMaxItems: batchMax,
	}

	cfg.Notify = NotifyConfig{
		Driver:       strings.ToLower(v.GetString("NOTIFY_DRIVER")),
		BaseURL:      strings.TrimRight(v.GetString("NOTIFY_BASE_URL"), "/"),
		APIKey:       v.GetString("NOTIFY_API_KEY"),
		AppName:      v.GetString("NOTIFY_APP_NAME"),
		Timeout:      parseDuration(v.GetString("NOTIFY_TIMEOUT"), 5*time.Second),
		Workers:      v.GetInt("NOTIFY_WORKERS"),
		Retries:      v.GetInt("NOTIFY_RETRIES"),
		KafkaBrokers: splitAndTrim(v.GetString("NOTIFY_KAFKA_BROKERS")),
		KafkaTopic:   v.GetString("NOTIFY_KAFKA_TOPIC"),
	}

	cfg.Tickets = TicketConfig{
		QRBaseURL:     v.GetString("QR_BASE_URL"),
		SigningSecret: v.GetString("QR_SIGNING_SECRET"),
		TTL:           parseDuration(v.GetString("QR_TOKEN_TTL"), 7*24*time.Hour),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var notifyDrivers = map[string]struct{}{"log": {}, "http": {}, "kafka": {}}

// Validate rejects settings the server cannot start with. Development
// secrets are refused outside development.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid PORT %d", c.Port)
	}
	if _, err := time.LoadLocation(c.Scheduling.Timezone); err != nil {
		return fmt.Errorf("config: SCHEDULING_TIMEZONE: %w", err)
	}
	if _, ok := notifyDrivers[c.Notify.Driver]; !ok {
		return fmt.Errorf("config: unknown NOTIFY_DRIVER %q", c.Notify.Driver)
	}
	if c.Notify.Driver == "http" && c.Notify.BaseURL == "" {
		return errors.New("config: NOTIFY_BASE_URL is required for the http driver")
	}
	if c.Notify.Driver == "kafka" && (len(c.Notify.KafkaBrokers) == 0 || c.Notify.KafkaTopic == "") {
		return errors.New("config: NOTIFY_KAFKA_BROKERS and NOTIFY_KAFKA_TOPIC are required for the kafka driver")
	}
	switch c.Database.TxIsolation {
	case "serializable", "repeatable_read", "read_committed", "default", "":
	default:
		return fmt.Errorf("config: unknown DB_TX_ISOLATION %q", c.Database.TxIsolation)
	}
	if c.Env == EnvProduction {
		if c.JWT.Secret == devJWTSecret || c.Tickets.SigningSecret == devTicketSecret {
			return errors.New("config: development secrets are not allowed in production")
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("ENABLE_METRICS", true)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "flexitaim")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_TX_ISOLATION", "serializable")
	v.SetDefault("DB_TX_MAX_RETRIES", 3)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_ENABLED", true)
	v.SetDefault("CACHE_WINDOWS_TTL", "5m")

	v.SetDefault("JWT_SECRET", devJWTSecret)
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SCHEDULING_TIMEZONE", "America/Argentina/Buenos_Aires")
	v.SetDefault("SCHEDULING_BATCH_MAX_ITEMS", 500)

	v.SetDefault("NOTIFY_DRIVER", "log")
	v.SetDefault("NOTIFY_BASE_URL", "")
	v.SetDefault("NOTIFY_API_KEY", "")
	v.SetDefault("NOTIFY_APP_NAME", "flexitaim")
	v.SetDefault("NOTIFY_TIMEOUT", "5s")
	v.SetDefault("NOTIFY_WORKERS", 2)
	v.SetDefault("NOTIFY_RETRIES", 2)
	v.SetDefault("NOTIFY_KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("NOTIFY_KAFKA_TOPIC", "booking.notifications")

	v.SetDefault("QR_BASE_URL", "https://api.qrserver.com/v1/create-qr-code/")
	v.SetDefault("QR_SIGNING_SECRET", devTicketSecret)
	v.SetDefault("QR_TOKEN_TTL", "168h")
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
