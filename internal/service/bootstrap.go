package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/answermarket/internal/domain"
	"github.com/alanyoungcy/answermarket/internal/market"
)

// Genesis describes a fresh market.
type Genesis struct {
	Params          domain.Params
	Admin           common.Address
	OneTradePerTick bool
}

func (g Genesis) options(logger *slog.Logger) []market.Option {
	return []market.Option{market.WithLogger(logger), market.WithOneTradePerTick(g.OneTradePerTick)}
}

// OpenEngine restores the engine from store. An empty store is initialised
// with the genesis state; a nil store yields a fresh in-memory engine.
func OpenEngine(ctx context.Context, store domain.LedgerStore, g Genesis, logger *slog.Logger) (*market.Engine, error) {
	if store == nil {
		return market.New(g.Params, g.Admin, g.options(logger)...)
	}

	snap, ok, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: load ledger: %w", err)
	}
	if ok {
		engine, err := market.Restore(snap, g.options(logger)...)
		if err != nil {
			return nil, fmt.Errorf("service: restore ledger at seq %d: %w", snap.Seq, err)
		}
		logger.InfoContext(ctx, "service: ledger restored",
			slog.Uint64("seq", snap.Seq),
			slog.Int("questions", len(snap.Questions)),
			slog.Int("answers", len(snap.Answers)),
		)
		return engine, nil
	}

	engine, err := market.New(g.Params, g.Admin, g.options(logger)...)
	if err != nil {
		return nil, err
	}
	if err := store.Replace(ctx, engine.Snapshot(time.Now().UTC())); err != nil {
		return nil, fmt.Errorf("service: write genesis: %w", err)
	}
	logger.InfoContext(ctx, "service: genesis written", slog.String("admin", g.Admin.Hex()))
	return engine, nil
}

// RestoreSnapshot loads an archived snapshot (the latest when path is
// empty), checks it by rebuilding an engine from it, and replaces the
// ledger in store.
func RestoreSnapshot(ctx context.Context, archiver domain.Archiver, store domain.LedgerStore, path string, logger *slog.Logger) (domain.Snapshot, error) {
	var (
		snap domain.Snapshot
		err  error
	)
	if path == "" {
		snap, err = archiver.LatestSnapshot(ctx)
	} else {
		snap, err = archiver.LoadSnapshot(ctx, path)
	}
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("service: load snapshot: %w", err)
	}
	if _, err := market.Restore(snap, market.WithLogger(logger)); err != nil {
		return domain.Snapshot{}, fmt.Errorf("service: verify snapshot %d: %w", snap.Seq, err)
	}
	if err := store.Replace(ctx, snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("service: replace ledger: %w", err)
	}
	logger.InfoContext(ctx, "service: snapshot restored",
		slog.Uint64("seq", snap.Seq),
		slog.Time("taken_at", snap.TakenAt),
	)
	return snap, nil
}
