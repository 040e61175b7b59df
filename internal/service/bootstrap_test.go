package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/answermarket/internal/domain"
)

type memArchiver struct {
	snaps    []domain.Snapshot
	archived []time.Time
}

func (m *memArchiver) ArchiveSnapshot(_ context.Context, snap domain.Snapshot) (string, error) {
	m.snaps = append(m.snaps, snap)
	return "snapshots/test.json", nil
}

func (m *memArchiver) ArchiveEvents(_ context.Context, before time.Time) (int64, error) {
	m.archived = append(m.archived, before)
	return 0, nil
}

func (m *memArchiver) LatestSnapshot(context.Context) (domain.Snapshot, error) {
	if len(m.snaps) == 0 {
		return domain.Snapshot{}, domain.ErrNotFound
	}
	return m.snaps[len(m.snaps)-1], nil
}

func (m *memArchiver) LoadSnapshot(_ context.Context, path string) (domain.Snapshot, error) {
	if path != "snapshots/test.json" || len(m.snaps) == 0 {
		return domain.Snapshot{}, domain.ErrNotFound
	}
	return m.snaps[len(m.snaps)-1], nil
}

func TestOpenEngineWritesGenesisThenRestores(t *testing.T) {
	ctx := context.Background()
	ledger := &memLedger{}
	g := Genesis{Params: domain.DefaultParams(), Admin: admin}

	engine, err := OpenEngine(ctx, ledger, g, discard())
	require.NoError(t, err)
	require.NotNil(t, ledger.snap, "genesis persisted")
	assert.Equal(t, uint64(0), ledger.snap.Seq)
	assert.True(t, engine.HasRole(domain.RoleAdmin, admin))

	svc := NewMarketService(engine, Deps{}, discard(), WithClock(func() time.Time { return t0 }))
	require.NoError(t, svc.Deposit(ctx, admin, alice, domain.Dollars(50)))
	require.NoError(t, ledger.Replace(ctx, svc.Snapshot()))

	reopened, err := OpenEngine(ctx, ledger, Genesis{Params: domain.DefaultParams(), Admin: bob}, discard())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), reopened.Seq())
	assert.Equal(t, domain.Dollars(50), reopened.Balance(alice))
	assert.False(t, reopened.HasRole(domain.RoleAdmin, bob), "stored roles win over genesis")
}

func TestOpenEngineInMemory(t *testing.T) {
	engine, err := OpenEngine(context.Background(), nil, Genesis{Params: domain.DefaultParams(), Admin: admin}, discard())
	require.NoError(t, err)
	assert.Zero(t, engine.Seq())
}

func TestRestoreSnapshot(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.question()

	arch := &memArchiver{}
	_, err := arch.ArchiveSnapshot(ctx, h.svc.Snapshot())
	require.NoError(t, err)

	target := &memLedger{}
	snap, err := RestoreSnapshot(ctx, arch, target, "", discard())
	require.NoError(t, err)
	assert.Equal(t, h.svc.Seq(), snap.Seq)
	require.NotNil(t, target.snap)
	assert.Equal(t, snap.Seq, target.snap.Seq)

	broken := snap
	broken.Balances = append([]domain.AccountAmount(nil), snap.Balances...)
	for i, b := range broken.Balances {
		if b.Account == domain.EscrowAccount {
			broken.Balances[i].Amount++
		}
	}
	arch.snaps = []domain.Snapshot{broken}
	_, err = RestoreSnapshot(ctx, arch, &memLedger{}, "", discard())
	assert.Error(t, err, "snapshots failing the ledger invariants are rejected")

	_, err = RestoreSnapshot(ctx, &memArchiver{}, &memLedger{}, "", discard())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCheckpointSkipsUnchangedLedger(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	arch := &memArchiver{}
	cp := NewCheckpointService(h.svc, arch, time.Minute, 24*time.Hour, discard())

	cp.Checkpoint(ctx)
	cp.Checkpoint(ctx)
	require.Len(t, arch.snaps, 1)

	h.question()
	cp.Checkpoint(ctx)
	require.Len(t, arch.snaps, 2)
	assert.Equal(t, h.svc.Seq(), arch.snaps[1].Seq)

	require.Len(t, arch.archived, 3)
	assert.Equal(t, t0.Add(-24*time.Hour), arch.archived[0])
}

func TestCheckpointRunStopsWithFinalSnapshot(t *testing.T) {
	h := newHarness(t)
	arch := &memArchiver{}
	cp := NewCheckpointService(h.svc, arch, time.Hour, 0, discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, cp.Run(ctx))
	assert.Len(t, arch.snaps, 1)
	assert.Empty(t, arch.archived)
}
