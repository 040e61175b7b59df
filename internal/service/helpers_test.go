package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/answermarket/internal/domain"
	"github.com/alanyoungcy/answermarket/internal/market"
)

var (
	admin = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000a3")

	t0 = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type memLedger struct {
	mu       sync.Mutex
	applied  []domain.ChangeSet
	snap     *domain.Snapshot
	applyErr error
}

func (m *memLedger) Apply(_ context.Context, cs domain.ChangeSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.applyErr != nil {
		return m.applyErr
	}
	if n := len(m.applied); n > 0 && m.applied[n-1].Seq+1 != cs.Seq {
		return errors.New("out of order")
	}
	m.applied = append(m.applied, cs)
	return nil
}

func (m *memLedger) Load(context.Context) (domain.Snapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap == nil {
		return domain.Snapshot{}, false, nil
	}
	return *m.snap, true, nil
}

func (m *memLedger) Replace(_ context.Context, snap domain.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = &snap
	return nil
}

func (m *memLedger) seqs() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]uint64, 0, len(m.applied))
	for _, cs := range m.applied {
		out = append(out, cs.Seq)
	}
	return out
}

type memAudit struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (m *memAudit) Log(_ context.Context, event string, detail map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, domain.AuditEntry{Event: event, Detail: detail})
	return nil
}

func (m *memAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.AuditEntry(nil), m.entries...), nil
}

func (m *memAudit) events() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.entries {
		out = append(out, e.Event)
	}
	return out
}

type memCache struct {
	mu    sync.Mutex
	views map[uint64]domain.QuestionView
	sets  int
}

func newMemCache() *memCache { return &memCache{views: map[uint64]domain.QuestionView{}} }

func (m *memCache) Set(_ context.Context, v domain.QuestionView) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.views[v.Question.ID] = v
	m.sets++
	return nil
}

func (m *memCache) Get(_ context.Context, id uint64) (domain.QuestionView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.views[id]
	if !ok {
		return domain.QuestionView{}, domain.ErrNotFound
	}
	return v, nil
}

func (m *memCache) Invalidate(_ context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.views, id)
	return nil
}

type chanNotifier chan string

func (c chanNotifier) Notify(_ context.Context, event, _, _ string) error {
	c <- event
	return nil
}

type harness struct {
	t      *testing.T
	svc    *MarketService
	ledger *memLedger
	audit  *memAudit
	cache  *memCache
	bus    *LocalBus
	notes  chanNotifier
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	engine, err := market.New(domain.DefaultParams(), admin)
	require.NoError(t, err)

	h := &harness{
		t:      t,
		ledger: &memLedger{},
		audit:  &memAudit{},
		cache:  newMemCache(),
		bus:    NewLocalBus(0),
		notes:  make(chanNotifier, 16),
	}
	h.svc = NewMarketService(engine, Deps{
		Ledger:   h.ledger,
		Audit:    h.audit,
		Bus:      h.bus,
		Cache:    h.cache,
		Notifier: h.notes,
	}, discard(), WithClock(func() time.Time { return t0 }))

	ctx := context.Background()
	for _, who := range []common.Address{alice, bob} {
		require.NoError(t, h.svc.Deposit(ctx, admin, who, domain.Dollars(1000)))
	}
	return h
}

func (h *harness) question() (uint64, uint64) {
	h.t.Helper()
	q, a, err := h.svc.CreateQuestionWithAnswer(context.Background(), alice, "Best editor?", "tools",
		market.AnswerInput{Text: "vim"})
	require.NoError(h.t, err)
	return q, a
}
