// Package config defines the top-level configuration for the answer market
// server and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/answermarket/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ANSWERMARKET_* environment variables.
type Config struct {
	Market     MarketConfig     `toml:"market"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Checkpoint CheckpointConfig `toml:"checkpoint"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// MarketConfig holds the genesis market parameters. Currency values are
// decimal strings in whole units ("1.50").
type MarketConfig struct {
	Admin                string   `toml:"admin"`
	Treasury             string   `toml:"treasury"`
	QuestionCreationFee  string   `toml:"question_creation_fee"`
	AnswerProposalStake  string   `toml:"answer_proposal_stake"`
	BootstrapThreshold   string   `toml:"bootstrap_threshold"`
	MaxMultiplier        int64    `toml:"max_multiplier"`
	GraduationThreshold  string   `toml:"graduation_threshold"`
	KingFlipThresholdBps int64    `toml:"king_flip_threshold_bps"`
	PlatformFeeBps       int64    `toml:"platform_fee_bps"`
	CreatorFeeBps        int64    `toml:"creator_fee_bps"`
	KingFeeBps           int64    `toml:"king_fee_bps"`
	BaseAnswerLimit      int      `toml:"base_answer_limit"`
	VolumePerSlot        string   `toml:"volume_per_slot"`
	MaxAnswerLimit       int      `toml:"max_answer_limit"`
	OneTradePerTick      bool     `toml:"one_trade_per_tick"`
	TickInterval         duration `toml:"tick_interval"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	LockKey    string   `toml:"lock_key"`
	LockTTL    duration `toml:"lock_ttl"`
	CacheTTL   duration `toml:"cache_ttl"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`

	// APIKey, when set, is required on mutating requests. APIKeyHash is a
	// bcrypt hash accepted in its place.
	APIKey     string `toml:"api_key"`
	APIKeyHash string `toml:"api_key_hash"`

	RateLimit      int  `toml:"rate_limit"` // requests per minute per client, 0 disables
	MetricsEnabled bool `toml:"metrics_enabled"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// CheckpointConfig controls periodic snapshot and event archiving to S3.
type CheckpointConfig struct {
	Enabled         bool     `toml:"enabled"`
	Interval        duration `toml:"interval"`
	EventRetention  duration `toml:"event_retention"`
	RestoreSnapshot string   `toml:"restore_snapshot"` // object path; empty means latest
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Market: MarketConfig{
			QuestionCreationFee:  "1",
			AnswerProposalStake:  "5",
			BootstrapThreshold:   "1000",
			MaxMultiplier:        10,
			GraduationThreshold:  "10000",
			KingFlipThresholdBps: 500,
			PlatformFeeBps:       200,
			CreatorFeeBps:        50,
			KingFeeBps:           50,
			BaseAnswerLimit:      10,
			VolumePerSlot:        "1000",
			MaxAnswerLimit:       50,
			TickInterval:         duration{time.Second},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "answermarket",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    true,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			LockKey:    "answermarket:writer",
			LockTTL:    duration{15 * time.Second},
			CacheTTL:   duration{time.Minute},
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "answermarket-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Port:           8000,
			CORSOrigins:    []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:      600,
			MetricsEnabled: true,
		},
		Notify: NotifyConfig{
			Events: []string{string(domain.EventKingChanged), string(domain.EventAnswerGraduated)},
		},
		Checkpoint: CheckpointConfig{
			Enabled:        true,
			Interval:       duration{10 * time.Minute},
			EventRetention: duration{30 * 24 * time.Hour},
		},
		Mode:     "serve",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"serve":   true,
	"memory":  true,
	"restore": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// UsesPostgres reports whether the configured mode persists to Postgres.
func (c *Config) UsesPostgres() bool { return c.Mode == "serve" || c.Mode == "restore" }

// UsesS3 reports whether the configured mode talks to object storage.
func (c *Config) UsesS3() bool {
	return c.Mode == "restore" || (c.Mode == "serve" && c.Checkpoint.Enabled)
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: serve, memory, restore)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Market
	if !common.IsHexAddress(c.Market.Admin) {
		errs = append(errs, fmt.Sprintf("market: admin must be a hex address, got %q", c.Market.Admin))
	}
	if c.Market.Treasury != "" && !common.IsHexAddress(c.Market.Treasury) {
		errs = append(errs, fmt.Sprintf("market: treasury must be a hex address, got %q", c.Market.Treasury))
	}
	if _, err := c.Market.Params(); err != nil {
		errs = append(errs, "market: "+err.Error())
	}
	if c.Market.OneTradePerTick && c.Market.TickInterval.Duration <= 0 {
		errs = append(errs, "market: tick_interval must be > 0 when one_trade_per_tick is set")
	}

	// Postgres
	if c.UsesPostgres() {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
		if c.Redis.LockTTL.Duration < time.Second {
			errs = append(errs, "redis: lock_ttl must be >= 1s")
		}
	}

	// S3
	if c.UsesS3() {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}
	if c.Checkpoint.Enabled && c.Checkpoint.Interval.Duration <= 0 {
		errs = append(errs, "checkpoint: interval must be > 0 when enabled")
	}

	// Server
	if c.Mode != "restore" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// AdminAddress returns the genesis admin.
func (m MarketConfig) AdminAddress() common.Address {
	return common.HexToAddress(m.Admin)
}

// Params converts the market section into validated genesis parameters.
func (m MarketConfig) Params() (domain.Params, error) {
	p := domain.Params{
		MaxMultiplier:        m.MaxMultiplier,
		KingFlipThresholdBps: m.KingFlipThresholdBps,
		PlatformFeeBps:       m.PlatformFeeBps,
		CreatorFeeBps:        m.CreatorFeeBps,
		KingFeeBps:           m.KingFeeBps,
		BaseAnswerLimit:      m.BaseAnswerLimit,
		MaxAnswerLimit:       m.MaxAnswerLimit,
	}
	if m.Treasury != "" {
		p.Treasury = common.HexToAddress(m.Treasury)
	}
	for _, f := range []struct {
		name string
		src  string
		dst  *domain.Amount
	}{
		{"question_creation_fee", m.QuestionCreationFee, &p.QuestionCreationFee},
		{"answer_proposal_stake", m.AnswerProposalStake, &p.AnswerProposalStake},
		{"bootstrap_threshold", m.BootstrapThreshold, &p.BootstrapThreshold},
		{"graduation_threshold", m.GraduationThreshold, &p.GraduationThreshold},
		{"volume_per_slot", m.VolumePerSlot, &p.VolumePerSlot},
	} {
		amt, err := domain.ParseAmount(f.src)
		if err != nil {
			return domain.Params{}, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = amt
	}
	if err := p.Validate(); err != nil {
		return domain.Params{}, err
	}
	return p, nil
}
