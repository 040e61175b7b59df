package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// LedgerStore persists the ledger tables.
type LedgerStore interface {
	// Apply writes one committed change set atomically.
	Apply(ctx context.Context, cs ChangeSet) error
	// Load reads the full ledger state. ok is false when nothing was ever
	// persisted.
	Load(ctx context.Context) (snap Snapshot, ok bool, err error)
	// Replace discards all ledger rows and writes snap.
	Replace(ctx context.Context, snap Snapshot) error
}

// EventStore reads the append-only event and trade logs.
type EventStore interface {
	ListEvents(ctx context.Context, opts ListOpts) ([]Event, error)
	ListTrades(ctx context.Context, answerID uint64, opts ListOpts) ([]Trade, error)
	ListEventsBefore(ctx context.Context, before time.Time) ([]Event, error)
	DeleteEventsBefore(ctx context.Context, before time.Time) (int64, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
