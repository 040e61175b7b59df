package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ANSWERMARKET_* environment variable overrides,
// and returns the final Config. An empty path skips the file. The returned
// Config has NOT been validated; the caller should invoke Config.Validate()
// after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ANSWERMARKET_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Market ──
	setStr(&cfg.Market.Admin, "ANSWERMARKET_MARKET_ADMIN")
	setStr(&cfg.Market.Treasury, "ANSWERMARKET_MARKET_TREASURY")
	setStr(&cfg.Market.QuestionCreationFee, "ANSWERMARKET_MARKET_QUESTION_CREATION_FEE")
	setStr(&cfg.Market.AnswerProposalStake, "ANSWERMARKET_MARKET_ANSWER_PROPOSAL_STAKE")
	setStr(&cfg.Market.BootstrapThreshold, "ANSWERMARKET_MARKET_BOOTSTRAP_THRESHOLD")
	setInt64(&cfg.Market.MaxMultiplier, "ANSWERMARKET_MARKET_MAX_MULTIPLIER")
	setStr(&cfg.Market.GraduationThreshold, "ANSWERMARKET_MARKET_GRADUATION_THRESHOLD")
	setInt64(&cfg.Market.KingFlipThresholdBps, "ANSWERMARKET_MARKET_KING_FLIP_THRESHOLD_BPS")
	setInt64(&cfg.Market.PlatformFeeBps, "ANSWERMARKET_MARKET_PLATFORM_FEE_BPS")
	setInt64(&cfg.Market.CreatorFeeBps, "ANSWERMARKET_MARKET_CREATOR_FEE_BPS")
	setInt64(&cfg.Market.KingFeeBps, "ANSWERMARKET_MARKET_KING_FEE_BPS")
	setInt(&cfg.Market.BaseAnswerLimit, "ANSWERMARKET_MARKET_BASE_ANSWER_LIMIT")
	setStr(&cfg.Market.VolumePerSlot, "ANSWERMARKET_MARKET_VOLUME_PER_SLOT")
	setInt(&cfg.Market.MaxAnswerLimit, "ANSWERMARKET_MARKET_MAX_ANSWER_LIMIT")
	setBool(&cfg.Market.OneTradePerTick, "ANSWERMARKET_MARKET_ONE_TRADE_PER_TICK")
	setDuration(&cfg.Market.TickInterval, "ANSWERMARKET_MARKET_TICK_INTERVAL")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "ANSWERMARKET_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "ANSWERMARKET_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ANSWERMARKET_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ANSWERMARKET_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ANSWERMARKET_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ANSWERMARKET_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ANSWERMARKET_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ANSWERMARKET_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ANSWERMARKET_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "ANSWERMARKET_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "ANSWERMARKET_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "ANSWERMARKET_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ANSWERMARKET_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ANSWERMARKET_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ANSWERMARKET_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ANSWERMARKET_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ANSWERMARKET_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.LockKey, "ANSWERMARKET_REDIS_LOCK_KEY")
	setDuration(&cfg.Redis.LockTTL, "ANSWERMARKET_REDIS_LOCK_TTL")
	setDuration(&cfg.Redis.CacheTTL, "ANSWERMARKET_REDIS_CACHE_TTL")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "ANSWERMARKET_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ANSWERMARKET_S3_REGION")
	setStr(&cfg.S3.Bucket, "ANSWERMARKET_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ANSWERMARKET_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ANSWERMARKET_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ANSWERMARKET_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ANSWERMARKET_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setInt(&cfg.Server.Port, "ANSWERMARKET_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "ANSWERMARKET_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "ANSWERMARKET_SERVER_API_KEY")
	setStr(&cfg.Server.APIKeyHash, "ANSWERMARKET_SERVER_API_KEY_HASH")
	setInt(&cfg.Server.RateLimit, "ANSWERMARKET_SERVER_RATE_LIMIT")
	setBool(&cfg.Server.MetricsEnabled, "ANSWERMARKET_SERVER_METRICS_ENABLED")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ANSWERMARKET_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ANSWERMARKET_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ANSWERMARKET_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ANSWERMARKET_NOTIFY_EVENTS")

	// ── Checkpoint ──
	setBool(&cfg.Checkpoint.Enabled, "ANSWERMARKET_CHECKPOINT_ENABLED")
	setDuration(&cfg.Checkpoint.Interval, "ANSWERMARKET_CHECKPOINT_INTERVAL")
	setDuration(&cfg.Checkpoint.EventRetention, "ANSWERMARKET_CHECKPOINT_EVENT_RETENTION")
	setStr(&cfg.Checkpoint.RestoreSnapshot, "ANSWERMARKET_CHECKPOINT_RESTORE_SNAPSHOT")

	// ── Top-level ──
	setStr(&cfg.Mode, "ANSWERMARKET_MODE")
	setStr(&cfg.LogLevel, "ANSWERMARKET_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
