package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"reservation-backend/internal/parse"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Scheduling SchedulingConfig `yaml:"scheduling"`
	Sweeper    SweeperConfig    `yaml:"sweeper"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
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
}

// SchedulingConfig holds the booking-engine defaults.
type SchedulingConfig struct {
	// HorizonDays is the materialization horizon applied when an assignment
	// request carries no limit date.
	HorizonDays int `yaml:"horizon_days"`
	// DayStart/DayEnd bound the slot grid for sites without configured hours.
	DayStart    string `yaml:"day_start"`
	DayEnd      string `yaml:"day_end"`
	SlotMinutes int    `yaml:"slot_minutes"`
}

// SweeperConfig drives the background job completing past reservations.
type SweeperConfig struct {
	Enabled         bool          `yaml:"enabled"`
	IntervalSeconds int           `yaml:"interval_seconds"`
	Interval        time.Duration `yaml:"-"` // Ignored by YAML parser
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

	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 60
	}

	if cfg.Scheduling.HorizonDays <= 0 {
		cfg.Scheduling.HorizonDays = 84
	}
	if cfg.Scheduling.DayStart == "" {
		cfg.Scheduling.DayStart = "08:00"
	}
	if cfg.Scheduling.DayEnd == "" {
		cfg.Scheduling.DayEnd = "22:00"
	}
	if cfg.Scheduling.SlotMinutes <= 0 {
		cfg.Scheduling.SlotMinutes = 60
	}
	// The default window feeds minute arithmetic downstream, which assumes
	// zero-padded "HH:MM". Normalize here so "8:00" in a config file cannot
	// shift the slot grid.
	dayStart, dayEnd, err := parse.Window(cfg.Scheduling.DayStart, cfg.Scheduling.DayEnd)
	if err != nil {
		return nil, fmt.Errorf("scheduling day window: %w", err)
	}
	cfg.Scheduling.DayStart = dayStart
	cfg.Scheduling.DayEnd = dayEnd

	if cfg.Sweeper.IntervalSeconds <= 0 {
		cfg.Sweeper.IntervalSeconds = 3600
	}
	cfg.Sweeper.Interval = time.Duration(cfg.Sweeper.IntervalSeconds) * time.Second

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	return &cfg, nil
}
