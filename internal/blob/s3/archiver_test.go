package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/answermarket/internal/domain"
)

type memBlobs struct {
	objects map[string][]byte
	putErr  error
}

func newMemBlobs() *memBlobs { return &memBlobs{objects: map[string][]byte{}} }

func (m *memBlobs) Put(_ context.Context, path string, data io.Reader, _ string) error {
	if m.putErr != nil {
		return m.putErr
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.objects[path] = b
	return nil
}

func (m *memBlobs) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	return m.Put(ctx, path, data, "")
}

func (m *memBlobs) Get(_ context.Context, path string) (io.ReadCloser, error) {
	b, ok := m.objects[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *memBlobs) List(_ context.Context, prefix string) ([]domain.BlobInfo, error) {
	var infos []domain.BlobInfo
	for p, b := range m.objects {
		if strings.HasPrefix(p, prefix) {
			infos = append(infos, domain.BlobInfo{Path: p, Size: int64(len(b))})
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Path > infos[j].Path })
	return infos, nil
}

func (m *memBlobs) Exists(_ context.Context, path string) (bool, error) {
	_, ok := m.objects[path]
	return ok, nil
}

type memEvents struct {
	events []domain.Event
}

func (m *memEvents) ListEventsBefore(_ context.Context, before time.Time) ([]domain.Event, error) {
	var out []domain.Event
	for _, ev := range m.events {
		if ev.At.Before(before) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *memEvents) DeleteEventsBefore(_ context.Context, before time.Time) (int64, error) {
	var kept []domain.Event
	for _, ev := range m.events {
		if !ev.At.Before(before) {
			kept = append(kept, ev)
		}
	}
	n := int64(len(m.events) - len(kept))
	m.events = kept
	return n, nil
}

type memAudit struct {
	entries []domain.AuditEntry
}

func (m *memAudit) Log(_ context.Context, event string, detail map[string]any) error {
	m.entries = append(m.entries, domain.AuditEntry{Event: event, Detail: detail})
	return nil
}

func (m *memAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return m.entries, nil
}

var t0 = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func TestSnapshotRoundTripPicksLatest(t *testing.T) {
	ctx := context.Background()
	blobs := newMemBlobs()
	a := NewArchiver(blobs, blobs, nil, nil)

	for _, seq := range []uint64{9, 120, 11} {
		snap := domain.Snapshot{Seq: seq, NextQuestionID: seq + 1, Params: domain.DefaultParams(), TakenAt: t0}
		path, err := a.ArchiveSnapshot(ctx, snap)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(path, snapshotPrefix))
	}

	latest, err := a.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(120), latest.Seq)
	assert.Equal(t, domain.DefaultParams(), latest.Params)
}

func TestLatestSnapshotEmpty(t *testing.T) {
	a := NewArchiver(newMemBlobs(), newMemBlobs(), nil, nil)
	_, err := a.LatestSnapshot(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestArchiveEvents(t *testing.T) {
	ctx := context.Background()
	blobs := newMemBlobs()
	events := &memEvents{}
	for i := 1; i <= 5; i++ {
		events.events = append(events.events, domain.Event{
			ID:   "ev",
			Seq:  uint64(i),
			Type: domain.EventSharesBought,
			At:   t0.Add(time.Duration(i) * time.Hour),
		})
	}
	audit := &memAudit{}
	a := NewArchiver(blobs, blobs, events, audit)

	cutoff := t0.Add(3*time.Hour + time.Minute)
	n, err := a.ArchiveEvents(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Len(t, events.events, 2, "archived events are pruned")

	path := eventsPath(cutoff, 1, 3)
	data, ok := blobs.objects[path]
	require.True(t, ok, "archive written to %s", path)

	var seqs []uint64
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		var ev domain.Event
		require.NoError(t, json.Unmarshal(sc.Bytes(), &ev))
		seqs = append(seqs, ev.Seq)
	}
	assert.Equal(t, []uint64{1, 2, 3}, seqs)

	require.Len(t, audit.entries, 1)
	assert.Equal(t, "archive.events", audit.entries[0].Event)

	n, err = a.ArchiveEvents(ctx, cutoff)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestArchiveEventsUploadFailureKeepsEvents(t *testing.T) {
	blobs := newMemBlobs()
	blobs.putErr = errors.New("bucket offline")
	events := &memEvents{events: []domain.Event{{Seq: 1, At: t0}}}
	a := NewArchiver(blobs, blobs, events, nil)

	_, err := a.ArchiveEvents(context.Background(), t0.Add(time.Hour))
	require.Error(t, err)
	assert.Len(t, events.events, 1)
}

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "https://s3.example.com", normaliseEndpoint("https://s3.example.com", false))
	assert.Equal(t, "http://s3.internal", normaliseEndpoint("s3.internal", false))
	assert.Equal(t, "https://s3.internal", normaliseEndpoint("s3.internal", true))
}
