package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/alanyoungcy/answermarket/internal/domain"
)

// EventArchiveStore is the slice of the event log the archiver needs.
type EventArchiveStore interface {
	ListEventsBefore(ctx context.Context, before time.Time) ([]domain.Event, error)
	DeleteEventsBefore(ctx context.Context, before time.Time) (int64, error)
}

const (
	snapshotPrefix = "snapshots/"
	eventsPrefix   = "archive/events/"

	// Snapshots above this size are uploaded in parts.
	multipartThreshold = 8 * 1024 * 1024
)

// ArchiveImpl implements domain.Archiver on top of a blob writer and reader.
type ArchiveImpl struct {
	writer domain.BlobWriter
	reader domain.BlobReader
	events EventArchiveStore
	audit  domain.AuditStore
}

// NewArchiver creates a new ArchiveImpl. events and audit may be nil in
// deployments that only restore snapshots.
func NewArchiver(
	writer domain.BlobWriter,
	reader domain.BlobReader,
	events EventArchiveStore,
	audit domain.AuditStore,
) *ArchiveImpl {
	return &ArchiveImpl{
		writer: writer,
		reader: reader,
		events: events,
		audit:  audit,
	}
}

// snapshotPath keys snapshots by zero-padded sequence so the newest snapshot
// sorts last.
//
//	snapshots/00000000000000000042-20260101T000000Z.json
func snapshotPath(snap domain.Snapshot) string {
	return fmt.Sprintf("%s%020d-%s.json", snapshotPrefix, snap.Seq, snap.TakenAt.UTC().Format("20060102T150405Z"))
}

// eventsPath names one archive run by its cutoff and sequence range.
//
//	archive/events/2026-01/20260115-00000000000000000001-00000000000000000420.jsonl
func eventsPath(before time.Time, first, last uint64) string {
	before = before.UTC()
	return fmt.Sprintf("%s%s/%s-%020d-%020d.jsonl",
		eventsPrefix, before.Format("2006-01"), before.Format("20060102"), first, last)
}

// ArchiveSnapshot uploads snap as JSON and returns its object path.
func (a *ArchiveImpl) ArchiveSnapshot(ctx context.Context, snap domain.Snapshot) (string, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("s3blob: marshal snapshot %d: %w", snap.Seq, err)
	}

	path := snapshotPath(snap)
	if len(data) > multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(data), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(data), contentTypeJSON)
	}
	if err != nil {
		return "", fmt.Errorf("s3blob: upload snapshot %d: %w", snap.Seq, err)
	}
	return path, nil
}

// ArchiveEvents uploads every event before the cutoff as JSONL, then prunes
// them from the primary store. Nothing is deleted unless the upload
// succeeded. The run is recorded in the audit log.
func (a *ArchiveImpl) ArchiveEvents(ctx context.Context, before time.Time) (int64, error) {
	if a.events == nil {
		return 0, errors.New("s3blob: archive events: no event store")
	}
	events, err := a.events.ListEventsBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive events query: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(events)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive events marshal: %w", err)
	}

	path := eventsPath(before, events[0].Seq, events[len(events)-1].Seq)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), contentTypeJSONL); err != nil {
		return 0, fmt.Errorf("s3blob: archive events upload: %w", err)
	}

	deleted, err := a.events.DeleteEventsBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive events prune: %w", err)
	}

	count := int64(len(events))
	if a.audit != nil {
		if err := a.audit.Log(ctx, "archive.events", map[string]any{
			"path":    path,
			"count":   count,
			"deleted": deleted,
			"before":  before.UTC().Format(time.RFC3339),
		}); err != nil {
			return count, fmt.Errorf("s3blob: archive events audit log: %w", err)
		}
	}
	return count, nil
}

// LatestSnapshot loads the snapshot with the highest sequence number. It
// returns domain.ErrNotFound when none was ever archived.
func (a *ArchiveImpl) LatestSnapshot(ctx context.Context) (domain.Snapshot, error) {
	infos, err := a.reader.List(ctx, snapshotPrefix)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("s3blob: list snapshots: %w", err)
	}

	paths := make([]string, 0, len(infos))
	for _, info := range infos {
		if strings.HasSuffix(info.Path, ".json") {
			paths = append(paths, info.Path)
		}
	}
	if len(paths) == 0 {
		return domain.Snapshot{}, fmt.Errorf("s3blob: latest snapshot: %w", domain.ErrNotFound)
	}
	sort.Strings(paths)
	return a.LoadSnapshot(ctx, paths[len(paths)-1])
}

// LoadSnapshot reads and decodes the snapshot at path.
func (a *ArchiveImpl) LoadSnapshot(ctx context.Context, path string) (domain.Snapshot, error) {
	body, err := a.reader.Get(ctx, path)
	if err != nil {
		return domain.Snapshot{}, err
	}
	defer body.Close()

	var snap domain.Snapshot
	if err := json.NewDecoder(body).Decode(&snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("s3blob: decode snapshot %s: %w", path, err)
	}
	return snap, nil
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.Archiver = (*ArchiveImpl)(nil)
