// Package config loads runtime settings from the environment, an optional
// .env file and an optional config file.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/bossnet/party-signup/internal/requestmeta"
)

// Config is the resolved configuration of every command.
type Config struct {
	Port           string
	DatabaseURL    string
	DB             DBConfig
	AdminToken     string
	AllowedOrigins []string
	// TrustedProxies lists the peers (addresses or CIDR ranges) whose
	// X-Forwarded-For and X-Real-IP headers are believed.
	TrustedProxies  []string
	StaticDir       string
	LogLevel        string
	LogFormat       string
	TracingExporter string
	RateLimit       RateLimitConfig
	BotMinFillTime  time.Duration
	ShutdownTimeout time.Duration
	AutoMigrate     bool
	// APIURL is where the client commands send their requests.
	APIURL string
}

// DBConfig holds the discrete connection settings used when DATABASE_URL is
// not set.
type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
}

// RateLimitConfig holds both limiter policies.
type RateLimitConfig struct {
	GeneralMax     int
	GeneralWindow  time.Duration
	RegisterMax    int
	RegisterWindow time.Duration
}

// DefaultAllowedOrigins are the front ends permitted by CORS out of the box.
var DefaultAllowedOrigins = []string{
	"https://bossnet-dev.oberstrolex.synology.me",
	"http://localhost:5173",
}

// SetDefaults registers every key with its default on v. Keys are the
// lower-cased environment variable names, so AutomaticEnv maps them 1:1.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("port", "5177")
	v.SetDefault("database_url", "")
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", "5432")
	v.SetDefault("db_user", "postgres")
	v.SetDefault("db_password", "postgres")
	v.SetDefault("db_name", "party")
	v.SetDefault("db_sslmode", "disable")
	v.SetDefault("db_max_conns", 20)
	v.SetDefault("admin_auth_token", "")
	v.SetDefault("allowed_origins", strings.Join(DefaultAllowedOrigins, ","))
	v.SetDefault("trusted_proxies", "")
	v.SetDefault("static_dir", "./web")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("tracing_exporter", "none")
	v.SetDefault("rate_limit_general_max", 100)
	v.SetDefault("rate_limit_general_window", 15*time.Minute)
	v.SetDefault("rate_limit_register_max", 5)
	v.SetDefault("rate_limit_register_window", time.Hour)
	v.SetDefault("bot_min_fill_time", 3*time.Second)
	v.SetDefault("shutdown_timeout", 10*time.Second)
	v.SetDefault("auto_migrate", true)
	v.SetDefault("api_url", "http://localhost:5177")
}

// New returns a viper instance wired to the environment with defaults set.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.AutomaticEnv()
	return v
}

// ReadFile merges the config file at path into v. An empty path is a no-op.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

// Load resolves v into a Config and validates it.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Port:        v.GetString("port"),
		DatabaseURL: strings.TrimSpace(v.GetString("database_url")),
		DB: DBConfig{
			Host:     v.GetString("db_host"),
			Port:     v.GetString("db_port"),
			User:     v.GetString("db_user"),
			Password: v.GetString("db_password"),
			Name:     v.GetString("db_name"),
			SSLMode:  v.GetString("db_sslmode"),
			MaxConns: v.GetInt32("db_max_conns"),
		},
		AdminToken:      v.GetString("admin_auth_token"),
		AllowedOrigins:  splitList(v.Get("allowed_origins")),
		TrustedProxies:  splitList(v.Get("trusted_proxies")),
		StaticDir:       v.GetString("static_dir"),
		LogLevel:        strings.ToLower(v.GetString("log_level")),
		LogFormat:       strings.ToLower(v.GetString("log_format")),
		TracingExporter: strings.ToLower(v.GetString("tracing_exporter")),
		RateLimit: RateLimitConfig{
			GeneralMax:     v.GetInt("rate_limit_general_max"),
			GeneralWindow:  v.GetDuration("rate_limit_general_window"),
			RegisterMax:    v.GetInt("rate_limit_register_max"),
			RegisterWindow: v.GetDuration("rate_limit_register_window"),
		},
		BotMinFillTime:  v.GetDuration("bot_min_fill_time"),
		ShutdownTimeout: v.GetDuration("shutdown_timeout"),
		AutoMigrate:     v.GetBool("auto_migrate"),
		APIURL:          v.GetString("api_url"),
	}
	return cfg, cfg.Validate()
}

// Validate reports every setting that cannot work.
func (c Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("PORT must not be empty"))
	}
	if c.DB.MaxConns <= 0 {
		errs = append(errs, errors.New("DB_MAX_CONNS must be positive"))
	}
	if c.RateLimit.GeneralMax <= 0 || c.RateLimit.GeneralWindow <= 0 {
		errs = append(errs, errors.New("general rate limit needs a positive max and window"))
	}
	if c.RateLimit.RegisterMax <= 0 || c.RateLimit.RegisterWindow <= 0 {
		errs = append(errs, errors.New("registration rate limit needs a positive max and window"))
	}
	if _, err := requestmeta.ParseTrusted(c.TrustedProxies); err != nil {
		errs = append(errs, fmt.Errorf("TRUSTED_PROXIES: %w", err))
	}
	if c.BotMinFillTime < 0 {
		errs = append(errs, errors.New("BOT_MIN_FILL_TIME must not be negative"))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT %q: want text or json", c.LogFormat))
	}
	switch c.TracingExporter {
	case "none", "stdout":
	default:
		errs = append(errs, fmt.Errorf("TRACING_EXPORTER %q: want none or stdout", c.TracingExporter))
	}
	return errors.Join(errs...)
}

// PostgresURL returns DATABASE_URL, or builds one from the DB_* settings.
func (c Config) PostgresURL() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DB.User, c.DB.Password),
		Host:     net.JoinHostPort(c.DB.Host, c.DB.Port),
		Path:     "/" + c.DB.Name,
		RawQuery: url.Values{"sslmode": {c.DB.SSLMode}}.Encode(),
	}
	return u.String()
}

// Addr is the listen address of the HTTP server.
func (c Config) Addr() string {
	return ":" + c.Port
}

// splitList accepts a comma-separated string (environment) or a list
// (config file).
func splitList(raw any) []string {
	var parts []string
	switch t := raw.(type) {
	case string:
		parts = strings.Split(t, ",")
	case []string:
		parts = t
	case []any:
		for _, p := range t {
			parts = append(parts, fmt.Sprint(p))
		}
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
