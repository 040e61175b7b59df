package domain

import (
	"context"
	"time"
)

// QuestionCache provides fast question read-model lookups.
type QuestionCache interface {
	Set(ctx context.Context, view QuestionView) error
	Get(ctx context.Context, id uint64) (QuestionView, error)
	Invalidate(ctx context.Context, id uint64) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	// Acquire takes the lock for ttl. The returned lease must be released.
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// Lease is a held lock.
type Lease interface {
	// Refresh extends the lease by ttl; it fails with ErrLockHeld when the
	// lock was lost.
	Refresh(ctx context.Context, ttl time.Duration) error
	Release()
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
