package service

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/alanyoungcy/answermarket/internal/domain"
)

// LocalBus is an in-process domain.SignalBus for deployments without Redis.
// Subscribers that fall behind lose messages; streams keep the most recent
// entries up to a fixed length.
type LocalBus struct {
	mu      sync.Mutex
	subs    map[string][]chan []byte
	streams map[string][]domain.StreamMessage
	nextID  uint64
	maxLen  int
}

// NewLocalBus creates a LocalBus whose streams retain maxLen entries.
func NewLocalBus(maxLen int) *LocalBus {
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &LocalBus{
		subs:    make(map[string][]chan []byte),
		streams: make(map[string][]domain.StreamMessage),
		maxLen:  maxLen,
	}
}

// Publish delivers payload to every subscriber of channel without blocking.
func (b *LocalBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for pattern, chans := range b.subs {
		if !matchChannel(pattern, channel) {
			continue
		}
		for _, ch := range chans {
			select {
			case ch <- payload:
			default:
			}
		}
	}
	return nil
}

// Subscribe accepts exact names or a trailing "*" prefix pattern. The
// channel closes when ctx is done.
func (b *LocalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, 128)
	b.mu.Lock()
	b.subs[channel] = append(b.subs[channel], ch)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		chans := b.subs[channel]
		for i, c := range chans {
			if c == ch {
				b.subs[channel] = append(chans[:i], chans[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch, nil
}

// StreamAppend appends payload with a monotonically increasing entry ID.
func (b *LocalBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	entries := append(b.streams[stream], domain.StreamMessage{
		ID:      strconv.FormatUint(b.nextID, 10) + "-0",
		Payload: payload,
	})
	if len(entries) > b.maxLen {
		entries = entries[len(entries)-b.maxLen:]
	}
	b.streams[stream] = entries
	return nil
}

// StreamRead returns up to count entries after lastID. "0" and "0-0" read
// from the start; "$" returns nothing.
func (b *LocalBus) StreamRead(_ context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error) {
	if lastID == "$" {
		return nil, nil
	}
	after := parseEntryID(lastID)

	b.mu.Lock()
	defer b.mu.Unlock()
	var out []domain.StreamMessage
	for _, m := range b.streams[stream] {
		if parseEntryID(m.ID) <= after {
			continue
		}
		out = append(out, m)
		if count > 0 && len(out) == count {
			break
		}
	}
	return out, nil
}

func parseEntryID(id string) uint64 {
	ms, _, _ := strings.Cut(id, "-")
	n, _ := strconv.ParseUint(ms, 10, 64)
	return n
}

func matchChannel(pattern, channel string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(channel, prefix)
	}
	return pattern == channel
}

var _ domain.SignalBus = (*LocalBus)(nil)
