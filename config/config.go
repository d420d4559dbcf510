package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Booking    BookingConfig    `yaml:"booking"`
	Sweeper    SweeperConfig    `yaml:"sweeper"`
	Directory  DirectoryConfig  `yaml:"directory"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RequestIPHeader string  `yaml:"request_ip_header"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	// EnableConstraints applies the Postgres-only DDL that enforces the
	// no-overlap and single-active-assignment invariants in the database.
	EnableConstraints   bool `yaml:"enable_constraints"`
	QueryTimeoutSeconds int  `yaml:"query_timeout_seconds"`
}

// BookingConfig holds the booking engine policy knobs.
type BookingConfig struct {
	// AutoConfirm creates reservations directly in the confirmed state.
	AutoConfirm bool `yaml:"auto_confirm"`
	// DailyLimitPerResource caps reservations per user per resource per
	// local calendar day. 0 disables the cap.
	DailyLimitPerResource int `yaml:"daily_limit_per_resource"`
	NoShowGraceMinutes    int `yaml:"no_show_grace_minutes"`
	// DefaultKeyLoanHours bounds the expected return of a key picked up
	// without an explicit expected-return time.
	DefaultKeyLoanHours int           `yaml:"default_key_loan_hours"`
	Timezone            string        `yaml:"timezone"`
	NoShowGrace         time.Duration `yaml:"-"` // Ignored by YAML parser
}

// SweeperConfig holds the overdue sweeper schedule.
type SweeperConfig struct {
	Enabled         bool          `yaml:"enabled"`
	IntervalSeconds int           `yaml:"interval_seconds"`
	Interval        time.Duration `yaml:"-"` // Ignored by YAML parser
}

// DirectoryConfig points at the external user directory service.
type DirectoryConfig struct {
	BaseURL         string `yaml:"base_url"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if cfg.Database.QueryTimeoutSeconds <= 0 {
		cfg.Database.QueryTimeoutSeconds = 5
	}

	if cfg.Booking.DailyLimitPerResource < 0 {
		cfg.Booking.DailyLimitPerResource = 0
	}
	if cfg.Booking.NoShowGraceMinutes <= 0 {
		cfg.Booking.NoShowGraceMinutes = 15
	}
	cfg.Booking.NoShowGrace = time.Duration(cfg.Booking.NoShowGraceMinutes) * time.Minute
	if cfg.Booking.DefaultKeyLoanHours <= 0 {
		cfg.Booking.DefaultKeyLoanHours = 24
	}

	if cfg.Sweeper.IntervalSeconds <= 0 {
		cfg.Sweeper.IntervalSeconds = 300
	}
	cfg.Sweeper.Interval = time.Duration(cfg.Sweeper.IntervalSeconds) * time.Second

	if cfg.Directory.TimeoutSeconds <= 0 {
		cfg.Directory.TimeoutSeconds = 5
	}
	if cfg.Directory.CacheTTLSeconds <= 0 {
		cfg.Directory.CacheTTLSeconds = 300
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	return &cfg, nil
}
