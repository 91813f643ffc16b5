// Package config provides application configuration: built-in defaults,
// an optional TOML file, a .env file and FURBITO_* environment overrides,
// applied in that order. Use Get() for the process-wide instance.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sub-config structs
// ──────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port                 string        `toml:"port"`                   // e.g. "8080"
	BackofficePort       string        `toml:"backoffice_port"`        // e.g. "8081"
	Env                  string        `toml:"env"`                    // "development" | "production"
	ReadTimeout          time.Duration `toml:"read_timeout"`           // default 10s
	WriteTimeout         time.Duration `toml:"write_timeout"`          // default 10s
	BackofficeAllowedIPs string        `toml:"backoffice_allowed_ips"` // comma-separated; "" = allow all
	AllowedOrigins       string        `toml:"allowed_origins"`        // comma-separated CORS/WS origins for production
}

// Origins splits AllowedOrigins into a list.
func (s ServerConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(s.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	DSN             string        `toml:"dsn"`
	MaxOpenConns    int           `toml:"max_open_conns"`    // default 25
	MaxIdleConns    int           `toml:"max_idle_conns"`    // default 10
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"` // default 5m
}

// JWTConfig holds JWT signing settings.
type JWTConfig struct {
	AccessSecret  string        `toml:"access_secret"`
	RefreshSecret string        `toml:"refresh_secret"`
	AccessTTL     time.Duration `toml:"access_ttl"`  // default 15m
	RefreshTTL    time.Duration `toml:"refresh_ttl"` // default 720h
}

// RedisConfig holds the cache / job-lock connection. Empty Addr disables
// Redis: the feed is read uncached and the scheduler runs without a lock.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// KafkaConfig holds the domain-event publisher settings. Empty Brokers
// disables publishing.
type KafkaConfig struct {
	Brokers string `toml:"brokers"` // comma-separated
	Topic   string `toml:"topic"`
}

// NotifyConfig holds the notification sink settings. Empty TelegramToken
// falls back to logging notifications.
type NotifyConfig struct {
	TelegramToken string        `toml:"telegram_token"`
	Timeout       time.Duration `toml:"timeout"`
}

// OddsConfig tunes the pricing model.
type OddsConfig struct {
	MinProb     float64 `toml:"min_prob"`     // default 0.02
	MaxProb     float64 `toml:"max_prob"`     // default 0.85
	Margin      float64 `toml:"margin"`       // default 0.92
	MinOdds     float64 `toml:"min_odds"`     // default 1.10
	MaxOdds     float64 `toml:"max_odds"`     // default 50
	Step        float64 `toml:"step"`         // ladder nudge, default 0.05
	MinTradable float64 `toml:"min_tradable"` // default 1.01
}

// EngineConfig holds wagering rules that operators may tune.
type EngineConfig struct {
	CancelCutoff   time.Duration `toml:"cancel_cutoff"`   // default 1h before kick-off
	OpeningBalance float64       `toml:"opening_balance"` // default 100.00
	SpinCooldown   time.Duration `toml:"spin_cooldown"`   // default 12h between reward spins
	SpinMin        int           `toml:"spin_min"`        // default 10
	SpinMax        int           `toml:"spin_max"`        // default 50, inclusive
}

// SyncConfig drives the statistics/results feed job.
type SyncConfig struct {
	Enabled         bool          `toml:"enabled"`
	Interval        time.Duration `toml:"interval"`         // default 1h
	FeedPath        string        `toml:"feed_path"`        // YAML feed file
	CacheTTL        time.Duration `toml:"cache_ttl"`        // default 5m
	KickoffInterval time.Duration `toml:"kickoff_interval"` // default 1m
	LockTTL         time.Duration `toml:"lock_ttl"`         // default 10m
	FixtureHorizon  time.Duration `toml:"fixture_horizon"`  // default 168h
}

// ──────────────────────────────────────────────────────────────────────────────
// Top-level Config
// ──────────────────────────────────────────────────────────────────────────────

// Config is the root configuration object for the entire application.
type Config struct {
	Server ServerConfig `toml:"server"`
	DB     DBConfig     `toml:"db"`
	JWT    JWTConfig    `toml:"jwt"`
	Redis  RedisConfig  `toml:"redis"`
	Kafka  KafkaConfig  `toml:"kafka"`
	Notify NotifyConfig `toml:"notify"`
	Odds   OddsConfig   `toml:"odds"`
	Engine EngineConfig `toml:"engine"`
	Sync   SyncConfig   `toml:"sync"`
}

// IsProd returns true when running in the production environment.
func (c *Config) IsProd() bool {
	return c.Server.Env == "production"
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:           "8080",
			BackofficePort: "8081",
			Env:            "development",
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   10 * time.Second,
		},
		DB: DBConfig{
			DSN:             "host=localhost port=5432 user=postgres dbname=furbito sslmode=disable",
			MaxOpenConns:    25,
			MaxIdleConns:    10,
			ConnMaxLifetime: 5 * time.Minute,
		},
		JWT: JWTConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 30 * 24 * time.Hour,
		},
		Kafka: KafkaConfig{
			Topic: "furbito.events",
		},
		Notify: NotifyConfig{
			Timeout: 5 * time.Second,
		},
		Odds: OddsConfig{
			MinProb:     0.02,
			MaxProb:     0.85,
			Margin:      0.92,
			MinOdds:     1.10,
			MaxOdds:     50,
			Step:        0.05,
			MinTradable: 1.01,
		},
		Engine: EngineConfig{
			CancelCutoff:   time.Hour,
			OpeningBalance: 100,
			SpinCooldown:   12 * time.Hour,
			SpinMin:        10,
			SpinMax:        50,
		},
		Sync: SyncConfig{
			Enabled:         true,
			Interval:        time.Hour,
			CacheTTL:        5 * time.Minute,
			KickoffInterval: time.Minute,
			LockTTL:         10 * time.Minute,
			FixtureHorizon:  7 * 24 * time.Hour,
		},
	}
}

// Validate checks that all required configuration values are present and
// valid, reporting every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.JWT.AccessSecret == "" {
		errs = append(errs, errors.New("jwt.access_secret (FURBITO_JWT_ACCESS_SECRET) must be set"))
	}
	if c.JWT.RefreshSecret == "" {
		errs = append(errs, errors.New("jwt.refresh_secret (FURBITO_JWT_REFRESH_SECRET) must be set"))
	}
	if c.IsProd() && c.DB.DSN == "" {
		errs = append(errs, errors.New("db.dsn must be set in production"))
	}

	o := c.Odds
	if o.MinProb <= 0 || o.MaxProb >= 1 || o.MinProb >= o.MaxProb {
		errs = append(errs, fmt.Errorf("odds: need 0 < min_prob < max_prob < 1, got %.3f / %.3f", o.MinProb, o.MaxProb))
	}
	if o.Margin <= 0 || o.Margin > 1 {
		errs = append(errs, fmt.Errorf("odds.margin must be in (0, 1], got %.3f", o.Margin))
	}
	if o.MinOdds <= 1 || o.MaxOdds <= o.MinOdds {
		errs = append(errs, fmt.Errorf("odds: need 1 < min_odds < max_odds, got %.2f / %.2f", o.MinOdds, o.MaxOdds))
	}
	if o.Step < 0 {
		errs = append(errs, fmt.Errorf("odds.step must not be negative, got %.2f", o.Step))
	}

	if c.Engine.CancelCutoff < 0 {
		errs = append(errs, fmt.Errorf("engine.cancel_cutoff must not be negative, got %s", c.Engine.CancelCutoff))
	}
	if c.Engine.OpeningBalance < 0 {
		errs = append(errs, fmt.Errorf("engine.opening_balance must not be negative, got %.2f", c.Engine.OpeningBalance))
	}
	if c.Engine.SpinCooldown < 0 {
		errs = append(errs, fmt.Errorf("engine.spin_cooldown must not be negative, got %s", c.Engine.SpinCooldown))
	}
	if c.Engine.SpinMin <= 0 || c.Engine.SpinMax < c.Engine.SpinMin {
		errs = append(errs, fmt.Errorf("engine: need 0 < spin_min <= spin_max, got %d / %d", c.Engine.SpinMin, c.Engine.SpinMax))
	}
	if c.Sync.Enabled && c.Sync.Interval <= 0 {
		errs = append(errs, errors.New("sync.interval must be positive when sync is enabled"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Loading
// ──────────────────────────────────────────────────────────────────────────────

// Load builds a Config from Defaults, the TOML file at path (skipped when path
// is empty), a .env file if present, and FURBITO_* environment variables. The
// result is not validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// .env is optional
	_ = godotenv.Load()

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var (
	instance *Config
	once     sync.Once
	loadErr  error
)

// Get returns the singleton Config, loading it once from FURBITO_CONFIG (a
// TOML path, optional) and the environment. Panics if loading fails.
func Get() *Config {
	once.Do(func() {
		instance, loadErr = Load(os.Getenv("FURBITO_CONFIG"))
	})
	if loadErr != nil {
		panic(fmt.Sprintf("config: failed to load: %v", loadErr))
	}
	return instance
}

// MustLoad loads and validates configuration. Intended for use in main().
func MustLoad() *Config {
	cfg := Get()
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("config: validation failed: %v", err))
	}
	return cfg
}

// applyEnvOverrides overwrites fields whose FURBITO_* variable is set.
// Malformed numbers and durations are collected and reported together.
func applyEnvOverrides(cfg *Config) error {
	e := &envReader{}

	// ── Server ──
	e.setStr(&cfg.Server.Port, "FURBITO_SERVER_PORT")
	e.setStr(&cfg.Server.BackofficePort, "FURBITO_BACKOFFICE_PORT")
	e.setStr(&cfg.Server.Env, "FURBITO_ENV")
	e.setDuration(&cfg.Server.ReadTimeout, "FURBITO_SERVER_READ_TIMEOUT")
	e.setDuration(&cfg.Server.WriteTimeout, "FURBITO_SERVER_WRITE_TIMEOUT")
	e.setStr(&cfg.Server.BackofficeAllowedIPs, "FURBITO_BACKOFFICE_ALLOWED_IPS")
	e.setStr(&cfg.Server.AllowedOrigins, "FURBITO_ALLOWED_ORIGINS")

	// ── Database ──
	e.setStr(&cfg.DB.DSN, "FURBITO_DB_DSN")
	e.setInt(&cfg.DB.MaxOpenConns, "FURBITO_DB_MAX_OPEN_CONNS")
	e.setInt(&cfg.DB.MaxIdleConns, "FURBITO_DB_MAX_IDLE_CONNS")
	e.setDuration(&cfg.DB.ConnMaxLifetime, "FURBITO_DB_CONN_MAX_LIFETIME")

	// ── JWT ──
	e.setStr(&cfg.JWT.AccessSecret, "FURBITO_JWT_ACCESS_SECRET")
	e.setStr(&cfg.JWT.RefreshSecret, "FURBITO_JWT_REFRESH_SECRET")
	e.setDuration(&cfg.JWT.AccessTTL, "FURBITO_JWT_ACCESS_TTL")
	e.setDuration(&cfg.JWT.RefreshTTL, "FURBITO_JWT_REFRESH_TTL")

	// ── Redis / Kafka / Notify ──
	e.setStr(&cfg.Redis.Addr, "FURBITO_REDIS_ADDR")
	e.setStr(&cfg.Redis.Password, "FURBITO_REDIS_PASSWORD")
	e.setInt(&cfg.Redis.DB, "FURBITO_REDIS_DB")
	e.setStr(&cfg.Kafka.Brokers, "FURBITO_KAFKA_BROKERS")
	e.setStr(&cfg.Kafka.Topic, "FURBITO_KAFKA_TOPIC")
	e.setStr(&cfg.Notify.TelegramToken, "FURBITO_TELEGRAM_TOKEN")
	e.setDuration(&cfg.Notify.Timeout, "FURBITO_NOTIFY_TIMEOUT")

	// ── Odds ──
	e.setFloat(&cfg.Odds.MinProb, "FURBITO_ODDS_MIN_PROB")
	e.setFloat(&cfg.Odds.MaxProb, "FURBITO_ODDS_MAX_PROB")
	e.setFloat(&cfg.Odds.Margin, "FURBITO_ODDS_MARGIN")
	e.setFloat(&cfg.Odds.MinOdds, "FURBITO_ODDS_MIN_ODDS")
	e.setFloat(&cfg.Odds.MaxOdds, "FURBITO_ODDS_MAX_ODDS")
	e.setFloat(&cfg.Odds.Step, "FURBITO_ODDS_STEP")

	// ── Engine ──
	e.setDuration(&cfg.Engine.CancelCutoff, "FURBITO_CANCEL_CUTOFF")
	e.setFloat(&cfg.Engine.OpeningBalance, "FURBITO_OPENING_BALANCE")
	e.setDuration(&cfg.Engine.SpinCooldown, "FURBITO_SPIN_COOLDOWN")
	e.setInt(&cfg.Engine.SpinMin, "FURBITO_SPIN_MIN")
	e.setInt(&cfg.Engine.SpinMax, "FURBITO_SPIN_MAX")

	// ── Sync ──
	e.setBool(&cfg.Sync.Enabled, "FURBITO_SYNC_ENABLED")
	e.setDuration(&cfg.Sync.Interval, "FURBITO_SYNC_INTERVAL")
	e.setStr(&cfg.Sync.FeedPath, "FURBITO_SYNC_FEED_PATH")
	e.setDuration(&cfg.Sync.CacheTTL, "FURBITO_SYNC_CACHE_TTL")

	return errors.Join(e.errs...)
}

// ──────────────────────────────────────────────────────────────────────────────
// Helper functions
// ──────────────────────────────────────────────────────────────────────────────

type envReader struct {
	errs []error
}

func (e *envReader) lookup(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

func (e *envReader) setStr(dst *string, key string) {
	if v, ok := e.lookup(key); ok {
		*dst = v
	}
}

func (e *envReader) setInt(dst *int, key string) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return
	}
	*dst = n
}

func (e *envReader) setFloat(dst *float64, key string) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid float %q", key, v))
		return
	}
	*dst = f
}

func (e *envReader) setBool(dst *bool, key string) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid bool %q", key, v))
		return
	}
	*dst = b
}

// setDuration parses a Go duration string (e.g. "15m", "2s").
func (e *envReader) setDuration(dst *time.Duration, key string) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return
	}
	*dst = d
}
