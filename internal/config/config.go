package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	API          APIConfig          `yaml:"api"`
	Database     DatabaseConfig     `yaml:"database"`
	NATS         NATSConfig         `yaml:"nats"`
	JWT          JWTConfig          `yaml:"jwt"`
	Log          LogConfig          `yaml:"log"`
	Notification NotificationConfig `yaml:"notification"`
	Billing      BillingConfig      `yaml:"billing"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// APIConfig represents API configuration
type APIConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite"
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

// NATSConfig represents NATS configuration. An empty URL disables NATS.
type NATSConfig struct {
	URL               string        `yaml:"url"`
	ClientID          string        `yaml:"client_id"`
	Username          string        `yaml:"username"`
	Password          string        `yaml:"password"`
	MaxReconnects     int           `yaml:"max_reconnects"`
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`
}

// JWTConfig represents JWT configuration
type JWTConfig struct {
	Secret          string        `yaml:"secret"`
	Issuer          string        `yaml:"issuer"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// NotificationConfig selects how users are notified
type NotificationConfig struct {
	// Provider is "log", "nats" or "sendgrid"
	Provider       string `yaml:"provider"`
	From           string `yaml:"from"`
	FromName       string `yaml:"from_name"`
	SendGridAPIKey string `yaml:"sendgrid_api_key"`
}

// BillingConfig holds the billing schedules. Schedules use the standard
// five-field cron syntax.
type BillingConfig struct {
	SchedulerEnabled    bool   `yaml:"scheduler_enabled"`
	RentSchedule        string `yaml:"rent_schedule"`
	MaintenanceSchedule string `yaml:"maintenance_schedule"`
	OverdueSchedule     string `yaml:"overdue_schedule"`
}

// Load loads configuration from file
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	return Parse(data)
}

// Parse builds a configuration from YAML, applying environment overrides
// and defaults
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Apply environment overrides
	cfg.applyEnvOverrides()
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides
func (c *Config) applyEnvOverrides() {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		c.Database.DSN = dsn
	}

	if driver := os.Getenv("DATABASE_DRIVER"); driver != "" {
		c.Database.Driver = driver
	}

	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		c.NATS.URL = natsURL
	}

	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		c.JWT.Secret = jwtSecret
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.Log.Level = logLevel
	}

	if apiKey := os.Getenv("SENDGRID_API_KEY"); apiKey != "" {
		c.Notification.SendGridAPIKey = apiKey
	}
}

// setDefaults fills unset values
func (c *Config) setDefaults() {
	if c.Server.Name == "" {
		c.Server.Name = "society-server"
	}
	if c.API.Host == "" {
		c.API.Host = "0.0.0.0"
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if len(c.API.AllowedOrigins) == 0 {
		c.API.AllowedOrigins = []string{"*"}
	}

	// names are matched case-insensitively
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	c.Notification.Provider = strings.ToLower(strings.TrimSpace(c.Notification.Provider))

	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 5 * time.Minute
	}

	if c.NATS.ClientID == "" {
		c.NATS.ClientID = c.Server.Name
	}
	if c.NATS.MaxReconnects == 0 {
		c.NATS.MaxReconnects = 10
	}
	if c.NATS.ReconnectInterval == 0 {
		c.NATS.ReconnectInterval = 2 * time.Second
	}

	if c.JWT.Issuer == "" {
		c.JWT.Issuer = c.Server.Name
	}
	if c.JWT.AccessTokenTTL == 0 {
		c.JWT.AccessTokenTTL = 15 * time.Minute
	}
	if c.JWT.RefreshTokenTTL == 0 {
		c.JWT.RefreshTokenTTL = 7 * 24 * time.Hour
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}

	if c.Notification.Provider == "" {
		c.Notification.Provider = "log"
	}
	if c.Notification.FromName == "" {
		c.Notification.FromName = "Society Office"
	}

	// rent and maintenance on the 1st, overdue sweep nightly
	if c.Billing.RentSchedule == "" {
		c.Billing.RentSchedule = "0 6 1 * *"
	}
	if c.Billing.MaintenanceSchedule == "" {
		c.Billing.MaintenanceSchedule = "30 6 1 * *"
	}
	if c.Billing.OverdueSchedule == "" {
		c.Billing.OverdueSchedule = "0 2 * * *"
	}
}

// Validate checks the configuration for values the service cannot run with
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("invalid database driver: %s", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn is required")
	}

	if len(c.JWT.Secret) < 16 {
		return fmt.Errorf("jwt secret must be at least 16 characters")
	}

	switch c.Notification.Provider {
	case "log":
	case "nats":
		if c.NATS.URL == "" {
			return fmt.Errorf("notification provider nats requires nats.url")
		}
	case "sendgrid":
		if c.Notification.SendGridAPIKey == "" || c.Notification.From == "" {
			return fmt.Errorf("notification provider sendgrid requires sendgrid_api_key and from")
		}
	default:
		return fmt.Errorf("invalid notification provider: %s", c.Notification.Provider)
	}

	if c.Billing.SchedulerEnabled {
		for name, spec := range map[string]string{
			"rent_schedule":        c.Billing.RentSchedule,
			"maintenance_schedule": c.Billing.MaintenanceSchedule,
			"overdue_schedule":     c.Billing.OverdueSchedule,
		} {
			if _, err := cron.ParseStandard(spec); err != nil {
				return fmt.Errorf("invalid billing %s %q: %w", name, spec, err)
			}
		}
	}

	return nil
}

// LogSummary logs the effective configuration without secrets
func (c *Config) LogSummary() {
	log.Info().
		Str("server", c.Server.Name).
		Str("version", c.Server.Version).
		Str("api", fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)).
		Str("database_driver", c.Database.Driver).
		Bool("nats", c.NATS.URL != "").
		Str("notification_provider", c.Notification.Provider).
		Bool("billing_scheduler", c.Billing.SchedulerEnabled).
		Msg("Configuration loaded")
}
