// Package config handles loading and validating the application configuration
// from YAML files with environment variable substitution.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	domain "github.com/Golani45/uthgard/pkg/types"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Herald   HeraldConfig   `yaml:"herald"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Webhooks WebhooksConfig `yaml:"webhooks"`
	Delivery DeliveryConfig `yaml:"delivery"`
	Players  PlayersConfig  `yaml:"players"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig defines the Echo HTTP server settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// StoreConfig selects the KV backend.
type StoreConfig struct {
	// Backend is "memory" or "postgres".
	Backend  string         `yaml:"backend"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig defines PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns a PostgreSQL connection string.
func (p *PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		p.Host, p.Port, p.Name, p.User, p.Password, p.SSLMode,
	)
}

// HeraldConfig defines the upstream Herald page settings.
type HeraldConfig struct {
	WarmapURL        string        `yaml:"warmap_url"`
	FetchTimeout     time.Duration `yaml:"fetch_timeout"`
	AttackWindowMin  int           `yaml:"attack_window_min"`
	CaptureWindowMin int           `yaml:"capture_window_min"`
	DailyFetchLimit  int64         `yaml:"daily_fetch_limit"`
}

// ScheduleConfig defines cron cadences.
type ScheduleConfig struct {
	TickInterval       time.Duration `yaml:"tick_interval"`
	PlayerScanInterval time.Duration `yaml:"player_scan_interval"`
}

// WebhooksConfig holds the ordered endpoint lists per channel. The first
// entry is the primary; the rest are fallbacks.
type WebhooksConfig struct {
	UnderAttack []string `yaml:"under_attack"`
	Capture     []string `yaml:"capture"`
	Players     []string `yaml:"players"`
}

// DeliveryConfig tunes webhook pacing and the strict-delivery default.
type DeliveryConfig struct {
	Username       string        `yaml:"username"`
	BaseInterval   time.Duration `yaml:"base_interval"`
	GlobalFloor    time.Duration `yaml:"global_floor"`
	ChunkPause     time.Duration `yaml:"chunk_pause"`
	StrictDelivery bool          `yaml:"strict_delivery"`
}

// PlayersConfig defines the tracked-player scan behavior.
type PlayersConfig struct {
	SessionMin int `yaml:"session_min"`
	BigDelta   int `yaml:"big_delta"`
	RepingMin  int `yaml:"reping_min"`

	// Tracked lists the players inline.
	Tracked []domain.TrackedPlayer `yaml:"tracked"`
	// TrackedJSON optionally supplies the list as a JSON array, typically
	// via ${HERALD_TRACKED_PLAYERS}. It overrides Tracked when set.
	TrackedJSON string `yaml:"tracked_json"`
}

// TrackedPlayers resolves the tracked-player list, preferring TrackedJSON.
func (p *PlayersConfig) TrackedPlayers() ([]domain.TrackedPlayer, error) {
	if p.TrackedJSON == "" {
		return p.Tracked, nil
	}
	var players []domain.TrackedPlayer
	if err := json.Unmarshal([]byte(p.TrackedJSON), &players); err != nil {
		return nil, fmt.Errorf("parsing tracked players JSON: %w", err)
	}
	return players, nil
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Load reads and parses a YAML config file, performing environment variable
// substitution and validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // config path from trusted CLI flag
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the YAML content.
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyStoreDefaults(&cfg.Store)
	applyHeraldDefaults(&cfg.Herald)
	applyScheduleDefaults(&cfg.Schedule)
	applyDeliveryDefaults(&cfg.Delivery)
	applyPlayersDefaults(&cfg.Players)
	applyLoggingDefaults(&cfg.Logging)
}

func applyServerDefaults(s *ServerConfig) {
	if s.Host == "" {
		s.Host = "0.0.0.0"
	}
	if s.Port == 0 {
		s.Port = 8080
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = 30 * time.Second
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = 30 * time.Second
	}
}

func applyStoreDefaults(s *StoreConfig) {
	if s.Backend == "" {
		s.Backend = "memory"
	}
	if s.Postgres.Port == 0 {
		s.Postgres.Port = 5432
	}
	if s.Postgres.SSLMode == "" {
		s.Postgres.SSLMode = "disable"
	}
}

func applyHeraldDefaults(h *HeraldConfig) {
	if h.FetchTimeout == 0 {
		h.FetchTimeout = 15 * time.Second
	}
	if h.AttackWindowMin == 0 {
		h.AttackWindowMin = 7
	}
	if h.CaptureWindowMin == 0 {
		h.CaptureWindowMin = 12
	}
	if h.DailyFetchLimit == 0 {
		h.DailyFetchLimit = 2000
	}
}

func applyScheduleDefaults(s *ScheduleConfig) {
	if s.TickInterval == 0 {
		s.TickInterval = time.Minute
	}
	if s.PlayerScanInterval == 0 {
		s.PlayerScanInterval = 5 * time.Minute
	}
}

func applyDeliveryDefaults(d *DeliveryConfig) {
	if d.Username == "" {
		d.Username = "UthgardHerald"
	}
	if d.BaseInterval == 0 {
		d.BaseInterval = 2500 * time.Millisecond
	}
	if d.GlobalFloor == 0 {
		d.GlobalFloor = 6 * time.Second
	}
	if d.ChunkPause == 0 {
		d.ChunkPause = 2500 * time.Millisecond
	}
}

func applyPlayersDefaults(p *PlayersConfig) {
	if p.SessionMin == 0 {
		p.SessionMin = 30
	}
	if p.BigDelta == 0 {
		p.BigDelta = 500
	}
	if p.RepingMin == 0 {
		p.RepingMin = 10
	}
}

func applyLoggingDefaults(l *LoggingConfig) {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "text"
	}
}

func validate(cfg *Config) error {
	var errs []error

	if cfg.Herald.WarmapURL == "" {
		errs = append(errs, fmt.Errorf("herald.warmap_url is required"))
	}

	switch cfg.Store.Backend {
	case "memory":
	case "postgres":
		if cfg.Store.Postgres.Host == "" {
			errs = append(errs, fmt.Errorf("store.postgres.host is required when backend is postgres"))
		}
		if cfg.Store.Postgres.Name == "" {
			errs = append(errs, fmt.Errorf("store.postgres.name is required when backend is postgres"))
		}
		if cfg.Store.Postgres.User == "" {
			errs = append(errs, fmt.Errorf("store.postgres.user is required when backend is postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.backend must be memory or postgres (got %q)", cfg.Store.Backend))
	}

	if len(cfg.Webhooks.UnderAttack) == 0 {
		errs = append(errs, fmt.Errorf("webhooks.under_attack needs at least one endpoint"))
	}
	if len(cfg.Webhooks.UnderAttack) > 3 {
		errs = append(errs, fmt.Errorf("webhooks.under_attack supports at most 3 endpoints"))
	}
	if len(cfg.Webhooks.Capture) == 0 {
		errs = append(errs, fmt.Errorf("webhooks.capture needs at least one endpoint"))
	}
	if len(cfg.Webhooks.Capture) > 2 {
		errs = append(errs, fmt.Errorf("webhooks.capture supports at most 2 endpoints"))
	}
	if len(cfg.Webhooks.Players) > 1 {
		errs = append(errs, fmt.Errorf("webhooks.players supports at most 1 endpoint"))
	}

	if _, err := cfg.Players.TrackedPlayers(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
