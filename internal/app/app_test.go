package app

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/answermarket/internal/config"
	"github.com/alanyoungcy/answermarket/internal/domain"
	"github.com/alanyoungcy/answermarket/internal/notify"
)

type flakyLease struct {
	refreshes atomic.Int32
	failAfter int32
}

func (l *flakyLease) Refresh(context.Context, time.Duration) error {
	if l.refreshes.Add(1) > l.failAfter {
		return domain.ErrLockHeld
	}
	return nil
}

func (l *flakyLease) Release() {}

func testApp(t *testing.T) *App {
	t.Helper()
	cfg := config.Defaults()
	cfg.Market.Admin = "0x00000000000000000000000000000000000000ad"
	cfg.Redis.LockTTL.Duration = 30 * time.Millisecond
	return New(&cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHoldLeaseEndsRunWhenLost(t *testing.T) {
	a := testApp(t)
	lease := &flakyLease{failAfter: 2}

	err := a.holdLease(context.Background(), lease, &Dependencies{})
	require.ErrorIs(t, err, domain.ErrLockHeld)
	assert.Equal(t, int32(3), lease.refreshes.Load())
}

func TestHoldLeaseStopsOnCancel(t *testing.T) {
	a := testApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.holdLease(ctx, &flakyLease{failAfter: 1 << 30}, &Dependencies{}) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("holdLease did not return after cancel")
	}
}

func TestGenesisFromConfig(t *testing.T) {
	a := testApp(t)
	a.cfg.Market.OneTradePerTick = true

	g, err := a.genesis()
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultParams(), g.Params)
	assert.Equal(t, a.cfg.Market.AdminAddress(), g.Admin)
	assert.True(t, g.OneTradePerTick)

	a.cfg.Market.PlatformFeeBps = 20_000
	_, err = a.genesis()
	assert.Error(t, err)
}

func TestServiceDepsSkipsIdleNotifier(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := &Dependencies{Notifier: notify.NewNotifier(nil, nil, logger)}
	assert.Nil(t, d.ServiceDeps().Notifier)
}

func TestRestoreModeNeedsBackends(t *testing.T) {
	a := testApp(t)
	assert.Error(t, a.RestoreMode(context.Background(), &Dependencies{}))
}
