package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server ServerConfig
	App    AppConfig
	Store  StoreConfig
	Redis  RedisConfig
	Backup BackupConfig
	Lease  LeaseConfig
	Status StatusConfig
	Log    LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"restaurant-ops-api"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
	APIKey      string `envconfig:"APP_API_KEY" default:""` // empty disables the API key check
}

// StoreConfig selects and configures the durable backing of the record store.
type StoreConfig struct {
	Type      string `envconfig:"STORE_DB_TYPE" default:"sqlite"` // sqlite, postgres, mysql or memory
	Path      string `envconfig:"STORE_DB_PATH" default:"./data/restaurant.db"`
	KeyPrefix string `envconfig:"STORE_KEY_PREFIX" default:"restaurant_"`
	// PostgreSQL / MySQL settings
	Host     string `envconfig:"STORE_DB_HOST" default:"localhost"`
	Port     int    `envconfig:"STORE_DB_PORT" default:"5432"`
	Name     string `envconfig:"STORE_DB_NAME" default:"restaurant"`
	User     string `envconfig:"STORE_DB_USER" default:"postgres"`
	Password string `envconfig:"STORE_DB_PASS" default:""`
	SSLMode  string `envconfig:"STORE_DB_SSLMODE" default:"disable"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Enabled  bool   `envconfig:"REDIS_ENABLED" default:"false"`
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// BackupConfig holds backup manager settings.
type BackupConfig struct {
	SideChannel string        `envconfig:"BACKUP_SIDE_CHANNEL" default:"store"` // store or redis
	AutoEnabled bool          `envconfig:"BACKUP_AUTO_ENABLED" default:"true"`
	Interval    time.Duration `envconfig:"BACKUP_INTERVAL" default:"30m"`
	MaxBackups  int           `envconfig:"BACKUP_MAX" default:"10"`
}

// LeaseConfig holds the single-writer lease settings (used only with Redis).
type LeaseConfig struct {
	Key string        `envconfig:"LEASE_KEY" default:"restaurant:writer"`
	TTL time.Duration `envconfig:"LEASE_TTL" default:"30s"`
}

// StatusConfig holds system status polling settings.
type StatusConfig struct {
	Interval time.Duration `envconfig:"STATUS_INTERVAL" default:"30s"`
	ProbeURL string        `envconfig:"STATUS_PROBE_URL" default:""` // empty disables the connectivity probe
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"json"` // json or text
}

// PostgresDSN returns the PostgreSQL connection string.
func (s *StoreConfig) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		s.User, s.Password, s.Host, s.Port, s.Name, s.SSLMode)
}

// MySQLDSN returns the MySQL data source name.
func (s *StoreConfig) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		s.User, s.Password, s.Host, s.Port, s.Name)
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Address returns the Redis address in host:port format.
func (r *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.Backup.MaxBackups < 1 {
		return nil, fmt.Errorf("failed to load config: BACKUP_MAX must be positive, got %d", cfg.Backup.MaxBackups)
	}
	switch cfg.Backup.SideChannel {
	case "store", "redis":
	default:
		return nil, fmt.Errorf("failed to load config: unknown BACKUP_SIDE_CHANNEL %q", cfg.Backup.SideChannel)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
