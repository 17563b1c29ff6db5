package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Cookie source kinds.
const (
	CookieStatic  = "static"
	CookieFile    = "file"
	CookieJar     = "jar"
	CookieKeyring = "keyring"
)

// Alert store kinds.
const (
	StoreNone     = "none"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Config holds all runtime configuration. Values come from the environment
// (optionally seeded from .env by main) and an optional YAML file named by
// CONFIG_FILE. Every field has a default; see Load.
type Config struct {
	// Admin server
	HTTPPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	LogLevel string

	// Backend
	BackendBaseURL string
	RequestTimeout time.Duration
	BackendRate    int // requests per second per route
	StartDelay     time.Duration

	// Poller
	PollInterval time.Duration

	// Stream listener
	SSEReconnect    bool
	SSEReconnectMin time.Duration
	SSEReconnectMax time.Duration

	// Notifier
	Cooldown        time.Duration
	VibrateDuration time.Duration
	AlertTargetURL  string

	// Cookie source
	CookieSource string
	DriverCookie string
	CookieFile   string
	KeyringDir   string

	// Dispatch
	Sinks             []string
	DispatchQueueSize int
	DispatchWorkers   int

	WebhookURL     string
	WebhookTimeout time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	// Alert store
	AlertStore     string
	DatabaseURL    string
	DBMaxConns     int32
	DBMinConns     int32
	MigrationsPath string
	SQLitePath     string

	// Connectivity probe
	ConnectivityCheck   bool
	ConnectivityTimeout time.Duration
	ConnectivityTTL     time.Duration
}

// PollURL is the pending-orders endpoint without the driver_id parameter.
func (c *Config) PollURL() string {
	return strings.TrimRight(c.BackendBaseURL, "/") + "/heroes/check_pending_orders.php"
}

// StreamURL is the SSE endpoint without the driver_id parameter.
func (c *Config) StreamURL() string {
	return strings.TrimRight(c.BackendBaseURL, "/") + "/heroes/sse_endpoint.php"
}

// CookieURL is the URL whose cookies carry the driver session.
func (c *Config) CookieURL() string {
	return strings.TrimRight(c.BackendBaseURL, "/") + "/heroes"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_port", "8080")
	v.SetDefault("read_timeout", 5*time.Second)
	v.SetDefault("write_timeout", 10*time.Second)
	v.SetDefault("shutdown_timeout", 30*time.Second)
	v.SetDefault("log_level", "info")

	v.SetDefault("backend_base_url", "https://mikmik.site")
	v.SetDefault("request_timeout", 10*time.Second)
	v.SetDefault("backend_rate_limit", 2)
	v.SetDefault("start_delay", 3*time.Second)

	v.SetDefault("poll_interval", 15*time.Second)

	v.SetDefault("sse_reconnect", true)
	v.SetDefault("sse_reconnect_min", time.Second)
	v.SetDefault("sse_reconnect_max", 30*time.Second)

	v.SetDefault("cooldown", 60*time.Second)
	v.SetDefault("vibrate_duration", 200*time.Millisecond)
	v.SetDefault("alert_target_url", "")

	v.SetDefault("cookie_source", CookieStatic)
	v.SetDefault("driver_cookie", "")
	v.SetDefault("cookie_file", "")
	v.SetDefault("keyring_dir", "~/.config/order-alerts/keyring")

	v.SetDefault("sinks", "log")
	v.SetDefault("dispatch_queue_size", 64)
	v.SetDefault("dispatch_workers", 1)

	v.SetDefault("webhook_url", "")
	v.SetDefault("webhook_timeout", 10*time.Second)

	v.SetDefault("kafka_brokers", "")
	v.SetDefault("kafka_topic", "courier-alerts")

	v.SetDefault("alert_store", StoreNone)
	v.SetDefault("database_url", "")
	v.SetDefault("db_max_conns", 5)
	v.SetDefault("db_min_conns", 1)
	v.SetDefault("migrations_path", "file://migrations")
	v.SetDefault("sqlite_path", "alerts.db")

	v.SetDefault("connectivity_check", false)
	v.SetDefault("connectivity_timeout", 3*time.Second)
	v.SetDefault("connectivity_ttl", 10*time.Second)
}

// Load resolves the configuration and validates it.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &Config{
		HTTPPort:        v.GetString("http_port"),
		ReadTimeout:     v.GetDuration("read_timeout"),
		WriteTimeout:    v.GetDuration("write_timeout"),
		ShutdownTimeout: v.GetDuration("shutdown_timeout"),
		LogLevel:        strings.ToLower(v.GetString("log_level")),

		BackendBaseURL: v.GetString("backend_base_url"),
		RequestTimeout: v.GetDuration("request_timeout"),
		BackendRate:    v.GetInt("backend_rate_limit"),
		StartDelay:     v.GetDuration("start_delay"),

		PollInterval: v.GetDuration("poll_interval"),

		SSEReconnect:    v.GetBool("sse_reconnect"),
		SSEReconnectMin: v.GetDuration("sse_reconnect_min"),
		SSEReconnectMax: v.GetDuration("sse_reconnect_max"),

		Cooldown:        v.GetDuration("cooldown"),
		VibrateDuration: v.GetDuration("vibrate_duration"),
		AlertTargetURL:  v.GetString("alert_target_url"),

		CookieSource: strings.ToLower(v.GetString("cookie_source")),
		DriverCookie: v.GetString("driver_cookie"),
		CookieFile:   v.GetString("cookie_file"),
		KeyringDir:   v.GetString("keyring_dir"),

		Sinks:             getList(v, "sinks"),
		DispatchQueueSize: v.GetInt("dispatch_queue_size"),
		DispatchWorkers:   v.GetInt("dispatch_workers"),

		WebhookURL:     v.GetString("webhook_url"),
		WebhookTimeout: v.GetDuration("webhook_timeout"),

		KafkaBrokers: getList(v, "kafka_brokers"),
		KafkaTopic:   v.GetString("kafka_topic"),

		AlertStore:     strings.ToLower(v.GetString("alert_store")),
		DatabaseURL:    v.GetString("database_url"),
		DBMaxConns:     v.GetInt32("db_max_conns"),
		DBMinConns:     v.GetInt32("db_min_conns"),
		MigrationsPath: v.GetString("migrations_path"),
		SQLitePath:     v.GetString("sqlite_path"),

		ConnectivityCheck:   v.GetBool("connectivity_check"),
		ConnectivityTimeout: v.GetDuration("connectivity_timeout"),
		ConnectivityTTL:     v.GetDuration("connectivity_ttl"),
	}

	if cfg.AlertTargetURL == "" {
		cfg.AlertTargetURL = cfg.CookieURL()
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.BackendBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("BACKEND_BASE_URL must be an absolute URL, got %q", c.BackendBaseURL)
	}
	if c.PollInterval <= 0 {
		return errors.New("POLL_INTERVAL must be positive")
	}
	if c.Cooldown < 0 {
		return errors.New("COOLDOWN must not be negative")
	}
	if c.BackendRate <= 0 {
		return errors.New("BACKEND_RATE_LIMIT must be positive")
	}
	if c.DispatchWorkers <= 0 || c.DispatchQueueSize <= 0 {
		return errors.New("DISPATCH_WORKERS and DISPATCH_QUEUE_SIZE must be positive")
	}
	if c.SSEReconnectMin <= 0 || c.SSEReconnectMax < c.SSEReconnectMin {
		return errors.New("SSE_RECONNECT_MIN must be positive and not exceed SSE_RECONNECT_MAX")
	}

	switch c.CookieSource {
	case CookieStatic, CookieJar, CookieKeyring:
	case CookieFile:
		if c.CookieFile == "" {
			return errors.New("COOKIE_FILE is required when COOKIE_SOURCE=file")
		}
	default:
		return fmt.Errorf("unknown COOKIE_SOURCE %q", c.CookieSource)
	}

	switch c.AlertStore {
	case StoreNone, StoreSQLite:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when ALERT_STORE=postgres")
		}
	default:
		return fmt.Errorf("unknown ALERT_STORE %q", c.AlertStore)
	}

	if len(c.Sinks) == 0 {
		return errors.New("SINKS must name at least one sink")
	}
	for _, s := range c.Sinks {
		switch s {
		case "log", "terminal":
		case "webhook":
			if c.WebhookURL == "" {
				return errors.New("WEBHOOK_URL is required for the webhook sink")
			}
		case "kafka":
			if len(c.KafkaBrokers) == 0 || c.KafkaTopic == "" {
				return errors.New("KAFKA_BROKERS and KAFKA_TOPIC are required for the kafka sink")
			}
		case "store":
			if c.AlertStore == StoreNone {
				return errors.New("the store sink needs ALERT_STORE to be postgres or sqlite")
			}
		default:
			return fmt.Errorf("unknown sink %q", s)
		}
	}
	return nil
}

// getList accepts either a YAML list or a comma separated string.
func getList(v *viper.Viper, key string) []string {
	var parts []string
	switch raw := v.Get(key).(type) {
	case []any:
		for _, p := range raw {
			parts = append(parts, fmt.Sprint(p))
		}
	case []string:
		parts = raw
	default:
		parts = strings.Split(v.GetString(key), ",")
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
