package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/answermarket/internal/domain"
	"github.com/alanyoungcy/answermarket/internal/server"
	"github.com/alanyoungcy/answermarket/internal/server/ws"
	"github.com/alanyoungcy/answermarket/internal/service"
)

const shutdownTimeout = 15 * time.Second

// ServeMode restores the ledger, takes the writer lease when Redis is
// available, and serves the API until ctx is cancelled. Without a ledger
// store (memory mode) state lives only in the process.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	genesis, err := a.genesis()
	if err != nil {
		return err
	}

	var lease domain.Lease
	if deps.Locks != nil {
		lease, err = deps.Locks.Acquire(ctx, a.cfg.Redis.LockKey, a.cfg.Redis.LockTTL.Duration)
		if err != nil {
			return fmt.Errorf("app: writer lease %q: %w", a.cfg.Redis.LockKey, err)
		}
		a.closers = append(a.closers, lease.Release)
		a.logger.InfoContext(ctx, "app: writer lease acquired", slog.String("key", a.cfg.Redis.LockKey))
	}

	engine, err := service.OpenEngine(ctx, deps.Ledger, genesis, a.logger)
	if err != nil {
		return fmt.Errorf("app: open engine: %w", err)
	}
	svc := service.NewMarketService(engine, deps.ServiceDeps(), a.logger,
		service.WithTickInterval(a.cfg.Market.TickInterval.Duration))
	deps.Metrics.SetLedgerSeq(svc.Seq())

	a.logger.InfoContext(ctx, "app: market ready",
		slog.Uint64("seq", svc.Seq()),
		slog.Bool("persistent", deps.Ledger != nil),
	)

	g, ctx := errgroup.WithContext(ctx)
	if lease != nil {
		g.Go(func() error {
			return a.holdLease(ctx, lease, deps)
		})
	}

	if deps.Archiver != nil && a.cfg.Checkpoint.Enabled {
		cp := service.NewCheckpointService(svc, deps.Archiver,
			a.cfg.Checkpoint.Interval.Duration, a.cfg.Checkpoint.EventRetention.Duration, a.logger)
		g.Go(func() error {
			return cp.Run(ctx)
		})
	}

	a.startHTTPServer(ctx, g, deps, svc)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// RestoreMode loads an archived snapshot into Postgres and exits. The
// snapshot path comes from checkpoint.restore_snapshot, or the latest one.
func (a *App) RestoreMode(ctx context.Context, deps *Dependencies) error {
	if deps.Archiver == nil || deps.Ledger == nil {
		return fmt.Errorf("app: restore needs both s3 and postgres")
	}
	snap, err := service.RestoreSnapshot(ctx, deps.Archiver, deps.Ledger, a.cfg.Checkpoint.RestoreSnapshot, a.logger)
	if err != nil {
		return fmt.Errorf("app: restore: %w", err)
	}
	a.logger.InfoContext(ctx, "app: restore complete",
		slog.Uint64("seq", snap.Seq),
		slog.Int("questions", len(snap.Questions)),
		slog.Int("answers", len(snap.Answers)),
	)
	return nil
}

// holdLease refreshes the writer lease at a third of its TTL. Losing it ends
// the run so a second writer never shares the ledger.
func (a *App) holdLease(ctx context.Context, lease domain.Lease, deps *Dependencies) error {
	ttl := a.cfg.Redis.LockTTL.Duration
	ticker := time.NewTicker(ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := lease.Refresh(ctx, ttl); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				a.logger.ErrorContext(ctx, "app: writer lease lost", slog.String("error", err.Error()))
				if deps.Notifier != nil {
					_ = deps.Notifier.NotifyAll(context.WithoutCancel(ctx), "Writer lease lost",
						fmt.Sprintf("lease %s could not be refreshed: %v", a.cfg.Redis.LockKey, err))
				}
				return fmt.Errorf("app: writer lease: %w", err)
			}
		}
	}
}

// startHTTPServer runs the API and the WebSocket hub in g and shuts the
// server down gracefully when ctx is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svc *service.MarketService) {
	hub := ws.NewHub(deps.Bus, svc, deps.Metrics, a.cfg.Server.CORSOrigins, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srvDeps := server.Deps{
		Service:  svc,
		Limiter:  deps.Limiter,
		Observer: deps.Metrics,
		Hub:      hub,
	}
	if a.cfg.Server.MetricsEnabled {
		srvDeps.Metrics = deps.Metrics.Handler()
	}
	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		APIKeyHash:  a.cfg.Server.APIKeyHash,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  time.Minute,
		Mode:        a.cfg.Mode,
	}, srvDeps, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

func (a *App) genesis() (service.Genesis, error) {
	params, err := a.cfg.Market.Params()
	if err != nil {
		return service.Genesis{}, fmt.Errorf("app: market params: %w", err)
	}
	return service.Genesis{
		Params:          params,
		Admin:           a.cfg.Market.AdminAddress(),
		OneTradePerTick: a.cfg.Market.OneTradePerTick,
	}, nil
}
