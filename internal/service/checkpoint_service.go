package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/alanyoungcy/answermarket/internal/domain"
)

// CheckpointService periodically archives a ledger snapshot and moves
// events older than the retention window to cold storage.
type CheckpointService struct {
	svc       *MarketService
	archiver  domain.Archiver
	interval  time.Duration
	retention time.Duration
	logger    *slog.Logger

	archived bool
	lastSeq  uint64
}

// NewCheckpointService creates a CheckpointService. A zero retention keeps
// every event in the primary store.
func NewCheckpointService(svc *MarketService, archiver domain.Archiver, interval, retention time.Duration, logger *slog.Logger) *CheckpointService {
	return &CheckpointService{
		svc:       svc,
		archiver:  archiver,
		interval:  interval,
		retention: retention,
		logger:    logger.With(slog.String("component", "checkpoint")),
	}
}

// Run checkpoints every interval until ctx is cancelled, then takes a final
// checkpoint.
func (c *CheckpointService) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
			defer cancel()
			c.Checkpoint(final)
			return nil
		case <-ticker.C:
			c.Checkpoint(ctx)
		}
	}
}

// Checkpoint archives a snapshot when the ledger moved since the last one,
// then archives expired events. Failures are logged and retried next round.
func (c *CheckpointService) Checkpoint(ctx context.Context) {
	snap := c.svc.Snapshot()
	if !c.archived || snap.Seq != c.lastSeq {
		path, err := c.archiver.ArchiveSnapshot(ctx, snap)
		if err != nil {
			c.logger.ErrorContext(ctx, "checkpoint: archive snapshot failed",
				slog.Uint64("seq", snap.Seq),
				slog.String("error", err.Error()),
			)
			return
		}
		c.archived, c.lastSeq = true, snap.Seq
		c.logger.InfoContext(ctx, "checkpoint: snapshot archived",
			slog.Uint64("seq", snap.Seq),
			slog.String("path", path),
		)
	}

	if c.retention <= 0 {
		return
	}
	cutoff := snap.TakenAt.Add(-c.retention)
	n, err := c.archiver.ArchiveEvents(ctx, cutoff)
	if err != nil {
		c.logger.ErrorContext(ctx, "checkpoint: archive events failed",
			slog.Time("before", cutoff),
			slog.String("error", err.Error()),
		)
		return
	}
	if n > 0 {
		c.logger.InfoContext(ctx, "checkpoint: events archived",
			slog.Int64("count", n),
			slog.Time("before", cutoff),
		)
	}
}
