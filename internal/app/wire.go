package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/answermarket/internal/blob/s3"
	"github.com/alanyoungcy/answermarket/internal/cache/redis"
	"github.com/alanyoungcy/answermarket/internal/config"
	"github.com/alanyoungcy/answermarket/internal/domain"
	"github.com/alanyoungcy/answermarket/internal/metrics"
	"github.com/alanyoungcy/answermarket/internal/notify"
	"github.com/alanyoungcy/answermarket/internal/server/middleware"
	"github.com/alanyoungcy/answermarket/internal/service"
	"github.com/alanyoungcy/answermarket/internal/store/postgres"
)

// localStreamLen bounds the in-process event stream when Redis is disabled.
const localStreamLen = 10000

// Dependencies bundles the concrete infrastructure the modes run on. Fields
// for backends the mode does not use stay nil.
type Dependencies struct {
	// Stores
	Ledger domain.LedgerStore
	Events domain.EventStore
	Audit  domain.AuditStore

	// Redis, or in-process stand-ins when Redis is disabled.
	Bus     domain.SignalBus
	Cache   domain.QuestionCache
	Limiter domain.RateLimiter
	Locks   domain.LockManager

	// Blob storage
	Archiver domain.Archiver

	Notifier *notify.Notifier
	Metrics  *metrics.Metrics
}

// ServiceDeps projects the dependencies onto the market service.
func (d *Dependencies) ServiceDeps() service.Deps {
	sd := service.Deps{
		Ledger:  d.Ledger,
		Events:  d.Events,
		Audit:   d.Audit,
		Bus:     d.Bus,
		Cache:   d.Cache,
		Metrics: d.Metrics,
	}
	if d.Notifier != nil && d.Notifier.Enabled() {
		sd.Notifier = d.Notifier
	}
	return sd
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{Metrics: metrics.New()}

	// --- PostgreSQL ---
	var events *postgres.EventStore
	if cfg.UsesPostgres() {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		events = postgres.NewEventStore(pool)
		deps.Ledger = postgres.NewLedgerStore(pool)
		deps.Events = events
		deps.Audit = postgres.NewAuditStore(pool)
	}

	// --- Redis ---
	if cfg.Redis.Enabled && cfg.Mode != "restore" {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Bus = redis.NewSignalBus(redisClient)
		deps.Cache = redis.NewQuestionCache(redisClient, cfg.Redis.CacheTTL.Duration)
		deps.Limiter = redis.NewRateLimiter(redisClient)
		deps.Locks = redis.NewLockManager(redisClient)
	} else {
		deps.Bus = service.NewLocalBus(localStreamLen)
		deps.Limiter = middleware.NewLocalLimiter()
	}

	// --- S3 blob storage ---
	if cfg.UsesS3() {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		if err := s3Client.Health(ctx); err != nil {
			logger.WarnContext(ctx, "wire: s3 bucket not reachable yet", slog.String("error", err.Error()))
		}

		var archiveEvents s3blob.EventArchiveStore
		if events != nil {
			archiveEvents = events
		}
		deps.Archiver = s3blob.NewArchiver(
			s3blob.NewWriter(s3Client),
			s3blob.NewReader(s3Client),
			archiveEvents,
			deps.Audit,
		)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
