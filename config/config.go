package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	// HTTP server
	Server ServerConfig `mapstructure:"server"`

	// Relational store (Postgres or sqlite:// for local runs)
	Database DatabaseConfig `mapstructure:"database"`

	// Redis backs the shared rate limiter; empty host falls back to in-process limits.
	Redis RedisConfig `mapstructure:"redis"`

	// NATS carries click-recorded notifications; empty host disables publishing.
	NATS NATSConfig `mapstructure:"nats"`

	// Prometheus
	Prometheus PrometheusConfig `mapstructure:"prometheus"`

	// Admin gate
	Admin AdminConfig `mapstructure:"admin"`

	// Per-caller request budgets
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	// Key material and hash salts
	Security SecurityConfig `mapstructure:"security"`

	// IP geolocation
	Geo GeoConfig `mapstructure:"geo"`
}

type ServerConfig struct {
	Env        string `mapstructure:"env"`
	Port       int    `mapstructure:"port"`
	TrustProxy bool   `mapstructure:"trust_proxy"`
	LogLevel   string `mapstructure:"log_level"`
}

// Production reports whether the service runs with production defaults.
func (s ServerConfig) Production() bool {
	return s.Env == "production"
}

type DatabaseConfig struct {
	URL               string `mapstructure:"url"`
	Host              string `mapstructure:"host"`
	User              string `mapstructure:"user"`
	Password          string `mapstructure:"password"`
	Database          string `mapstructure:"database"`
	Port              int    `mapstructure:"port"`
	SSLMode           string `mapstructure:"sslmode"`
	MaxConns          int32  `mapstructure:"max_conns"`
	MaxConnIdleTime   string `mapstructure:"max_conn_idle_time"`
	ConnectTimeout    string `mapstructure:"connect_timeout"`
	QueryTimeout      string `mapstructure:"query_timeout"`
	HealthCheckPeriod string `mapstructure:"health_check_period"`
}

// SQLite reports whether the configured URL selects the embedded SQLite backend.
func (d DatabaseConfig) SQLite() bool {
	return strings.HasPrefix(d.URL, "sqlite://")
}

// QueryDeadline is the budget for acquiring a connection and running one statement.
func (d DatabaseConfig) QueryDeadline() time.Duration {
	return parseDuration(d.QueryTimeout, 15*time.Second)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type NATSConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

type PrometheusConfig struct {
	Port int `mapstructure:"port"`
}

type AdminConfig struct {
	Token          string `mapstructure:"token"`
	BasicUser      string `mapstructure:"basic_user"`
	BasicPassword  string `mapstructure:"basic_password"`
	CookieMaxAgeMS int64  `mapstructure:"cookie_max_age_ms"`
}

// CookieMaxAge returns the lifetime of the admin cookie.
func (a AdminConfig) CookieMaxAge() time.Duration {
	return positiveMillis(a.CookieMaxAgeMS, 12*time.Hour)
}

type RateLimitConfig struct {
	RegisterWindowMS int64 `mapstructure:"register_window_ms"`
	RegisterLimit    int   `mapstructure:"register_limit"`
	TrackWindowMS    int64 `mapstructure:"track_window_ms"`
	TrackLimit       int   `mapstructure:"track_limit"`
}

func (r RateLimitConfig) RegisterWindow() time.Duration {
	return positiveMillis(r.RegisterWindowMS, 15*time.Minute)
}

func (r RateLimitConfig) TrackWindow() time.Duration {
	return positiveMillis(r.TrackWindowMS, time.Minute)
}

type SecurityConfig struct {
	EncryptionKey string `mapstructure:"encryption_key"`
	IPHashSalt    string `mapstructure:"ip_hash_salt"`
	UAHashSalt    string `mapstructure:"ua_hash_salt"`
}

type GeoConfig struct {
	IPInfoToken   string `mapstructure:"ipinfo_token"`
	IPInfoURL     string `mapstructure:"ipinfo_url"`
	Timeout       string `mapstructure:"timeout"`
	MaxMindDBPath string `mapstructure:"maxmind_db_path"`
}

// LookupTimeout is the hard budget for one upstream geo lookup.
func (g GeoConfig) LookupTimeout() time.Duration {
	return parseDuration(g.Timeout, 5*time.Second)
}

func Load() (*Config, error) {
	// Load local .env for development (ignored when missing).
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Keep the deployment's historical env variable names working.
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.env", "development")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.trust_proxy", false)

	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.max_conn_idle_time", "30s")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.query_timeout", "15s")

	v.SetDefault("prometheus.port", 9090)

	v.SetDefault("admin.cookie_max_age_ms", int64(12*time.Hour/time.Millisecond))

	v.SetDefault("rate_limit.register_window_ms", int64(15*time.Minute/time.Millisecond))
	v.SetDefault("rate_limit.register_limit", 50)
	v.SetDefault("rate_limit.track_window_ms", int64(time.Minute/time.Millisecond))
	v.SetDefault("rate_limit.track_limit", 120)

	v.SetDefault("security.ip_hash_salt", "ip-hash-salt")
	v.SetDefault("security.ua_hash_salt", "user-agent-salt")

	v.SetDefault("geo.ipinfo_url", "https://ipinfo.io")
	v.SetDefault("geo.timeout", "5s")
}

func bindEnvVars(v *viper.Viper) {
	// Server
	v.BindEnv("server.env", "APP_ENV", "NODE_ENV")
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.trust_proxy", "TRUST_PROXY")
	v.BindEnv("server.log_level", "LOG_LEVEL")

	// Database
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("database.host", "PG_HOST")
	v.BindEnv("database.user", "PG_USER")
	v.BindEnv("database.password", "PG_PASSWORD")
	v.BindEnv("database.database", "PG_DB")
	v.BindEnv("database.port", "PG_PORT")
	v.BindEnv("database.sslmode", "PG_SSLMODE")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")

	// NATS
	v.BindEnv("nats.host", "NATS_HOST")
	v.BindEnv("nats.port", "NATS_PORT")
	v.BindEnv("nats.user", "NATS_USER")
	v.BindEnv("nats.password", "NATS_PASSWORD")

	// Prometheus
	v.BindEnv("prometheus.port", "PROM_PORT")

	// Admin
	v.BindEnv("admin.token", "ADMIN_API_TOKEN")
	v.BindEnv("admin.basic_user", "ADMIN_BASIC_USER")
	v.BindEnv("admin.basic_password", "ADMIN_BASIC_PASSWORD")
	v.BindEnv("admin.cookie_max_age_ms", "ADMIN_COOKIE_MAX_AGE_MS")

	// Rate limits
	v.BindEnv("rate_limit.register_window_ms", "REGISTER_RATE_WINDOW_MS")
	v.BindEnv("rate_limit.register_limit", "REGISTER_RATE_LIMIT")
	v.BindEnv("rate_limit.track_window_ms", "TRACK_RATE_WINDOW_MS")
	v.BindEnv("rate_limit.track_limit", "TRACK_RATE_LIMIT")

	// Security
	v.BindEnv("security.encryption_key", "ENCRYPTION_KEY")
	v.BindEnv("security.ip_hash_salt", "IP_HASH_SALT")
	v.BindEnv("security.ua_hash_salt", "UA_HASH_SALT")

	// Geo
	v.BindEnv("geo.ipinfo_token", "IPINFO_API_KEY")
	v.BindEnv("geo.ipinfo_url", "IPINFO_URL")
	v.BindEnv("geo.timeout", "GEO_TIMEOUT")
	v.BindEnv("geo.maxmind_db_path", "GEOIP_DB_PATH")
}

func positiveMillis(ms int64, fallback time.Duration) time.Duration {
	if ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
