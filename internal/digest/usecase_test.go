package digest

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ethicnology/crash-cache/internal/apperrors"
	"github.com/ethicnology/crash-cache/internal/codec"
	"github.com/ethicnology/crash-cache/internal/models"
	"github.com/ethicnology/crash-cache/internal/store"
)

// fakeStore is an in-memory stand-in for internal/store.Store, scoped to
// what the digest use-case calls.
type fakeStore struct {
	archives map[string]models.Archive
	queue    []models.QueueItem
	nextQID  int32

	dictionaries map[models.DictionaryKind]map[string]int32
	nextDictID   int32

	deviceSpecs   []models.DeviceSpecs
	deviceIDs     []int32
	nextSpecsID   int32

	exceptionMsgs map[string]int32
	nextMsgID     int32

	stacktraces map[string]int32
	nextStID    int32

	issues   map[string]int32
	nextIsID int32

	sessions map[string]int32

	reports       map[string]int32 // event_id -> report id
	reportRecords map[string]models.Report
	reportsByHash map[string]bool
	nextReportID  int32

	queueErrors map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		archives:      map[string]models.Archive{},
		dictionaries:  map[models.DictionaryKind]map[string]int32{},
		exceptionMsgs: map[string]int32{},
		stacktraces:   map[string]int32{},
		issues:        map[string]int32{},
		sessions:      map[string]int32{},
		reports:       map[string]int32{},
		reportRecords: map[string]models.Report{},
		reportsByHash: map[string]bool{},
		queueErrors:   map[string]string{},
	}
}

func (f *fakeStore) FindArchiveByHash(ctx context.Context, q store.Querier, hash string) (models.Archive, error) {
	a, ok := f.archives[hash]
	if !ok {
		return models.Archive{}, apperrors.ErrNotFound
	}
	return a, nil
}

func (f *fakeStore) GetOrCreateDictionaryEntry(ctx context.Context, q store.Querier, kind models.DictionaryKind, value string) (int32, error) {
	table, ok := f.dictionaries[kind]
	if !ok {
		table = map[string]int32{}
		f.dictionaries[kind] = table
	}
	if id, ok := table[value]; ok {
		return id, nil
	}
	f.nextDictID++
	table[value] = f.nextDictID
	return f.nextDictID, nil
}

func (f *fakeStore) GetOrCreateDeviceSpecs(ctx context.Context, q store.Querier, specs models.DeviceSpecs) (int32, error) {
	for i, s := range f.deviceSpecs {
		if deviceSpecsEqual(s, specs) {
			return f.deviceIDs[i], nil
		}
	}
	f.nextSpecsID++
	f.deviceSpecs = append(f.deviceSpecs, specs)
	f.deviceIDs = append(f.deviceIDs, f.nextSpecsID)
	return f.nextSpecsID, nil
}

func deviceSpecsEqual(a, b models.DeviceSpecs) bool {
	return ptrEqualInt32(a.ScreenWidth, b.ScreenWidth) &&
		ptrEqualInt32(a.ScreenHeight, b.ScreenHeight) &&
		ptrEqualStr(a.Archs, b.Archs)
}

func ptrEqualInt32(a, b *int32) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func ptrEqualStr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (f *fakeStore) GetOrCreateExceptionMessage(ctx context.Context, q store.Querier, value string) (int32, error) {
	hash := codec.Hash([]byte(value))
	if id, ok := f.exceptionMsgs[hash]; ok {
		return id, nil
	}
	f.nextMsgID++
	f.exceptionMsgs[hash] = f.nextMsgID
	return f.nextMsgID, nil
}

func (f *fakeStore) GetOrCreateStacktrace(ctx context.Context, q store.Querier, hash string, fingerprintHash *string, framesJSON string) (int32, error) {
	if id, ok := f.stacktraces[hash]; ok {
		return id, nil
	}
	f.nextStID++
	f.stacktraces[hash] = f.nextStID
	return f.nextStID, nil
}

func (f *fakeStore) GetOrCreateIssue(ctx context.Context, q store.Querier, fingerprintHash string, exceptionTypeID *int32, title *string) (int32, error) {
	if id, ok := f.issues[fingerprintHash]; ok {
		return id, nil
	}
	f.nextIsID++
	f.issues[fingerprintHash] = f.nextIsID
	return f.nextIsID, nil
}

func (f *fakeStore) UpsertSession(ctx context.Context, q store.Querier, session store.UpsertSessionInput) (int32, error) {
	key := fmt.Sprintf("%d:%s", session.ProjectID, session.SID)
	if id, ok := f.sessions[key]; ok {
		return id, nil
	}
	id := int32(len(f.sessions) + 1)
	f.sessions[key] = id
	return id, nil
}

func (f *fakeStore) InsertReport(ctx context.Context, q store.Querier, r models.Report) (int32, error) {
	if f.reportsByHash[r.EventID] {
		return 0, apperrors.ErrDuplicateEventID
	}
	f.nextReportID++
	f.reports[r.EventID] = f.nextReportID
	f.reportRecords[r.EventID] = r
	f.reportsByHash[r.EventID] = true
	return f.nextReportID, nil
}

func (f *fakeStore) DequeueBatch(ctx context.Context, q store.Querier, limit int) ([]models.QueueItem, error) {
	if limit > len(f.queue) {
		limit = len(f.queue)
	}
	return append([]models.QueueItem(nil), f.queue[:limit]...), nil
}

func (f *fakeStore) RemoveFromQueue(ctx context.Context, q store.Querier, archiveHash string) error {
	out := f.queue[:0]
	for _, item := range f.queue {
		if item.ArchiveHash != archiveHash {
			out = append(out, item)
		}
	}
	f.queue = out
	return nil
}

func (f *fakeStore) RecordQueueError(ctx context.Context, q store.Querier, archiveHash, errText string) error {
	f.queueErrors[archiveHash] = errText
	return nil
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return fn(nil)
}

func (f *fakeStore) Ambient() store.Querier { return nil }

func (f *fakeStore) enqueue(hash string, archive models.Archive) {
	f.nextQID++
	f.archives[hash] = archive
	f.queue = append(f.queue, models.QueueItem{ID: f.nextQID, ArchiveHash: hash})
}

func mustCompress(t *testing.T, plain []byte) []byte {
	t.Helper()
	out, err := codec.Compress(plain)
	require.NoError(t, err)
	return out
}

func TestProcessBatchDigestsEventIntoReport(t *testing.T) {
	fs := newFakeStore()
	plain := []byte(`{
		"event_id": "e1",
		"timestamp": "2024-01-01T00:00:00Z",
		"platform": "go",
		"exception": {"values": [{
			"type": "RuntimeError", "value": "boom",
			"stacktrace": {"frames": [
				{"filename": "main.go", "function": "run", "lineno": 10, "in_app": true}
			]}
		}]}
	}`)
	fs.enqueue("h1", models.Archive{Hash: "h1", ProjectID: 1, CompressedPayload: mustCompress(t, plain)})

	uc := NewUseCase(fs)
	n, err := uc.ProcessBatch(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.Empty(t, fs.queue)
	require.Contains(t, fs.reports, "e1")
	require.Empty(t, fs.queueErrors)
}

func TestProcessBatchMissingArchiveRecordsQueueError(t *testing.T) {
	fs := newFakeStore()
	fs.queue = []models.QueueItem{{ID: 1, ArchiveHash: "missing"}}

	uc := NewUseCase(fs)
	n, err := uc.ProcessBatch(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.Empty(t, fs.queue)
	require.Contains(t, fs.queueErrors, "missing")
}

func TestProcessBatchUnparseablePayloadRecordsQueueError(t *testing.T) {
	fs := newFakeStore()
	fs.enqueue("h1", models.Archive{Hash: "h1", ProjectID: 1, CompressedPayload: mustCompress(t, []byte("not json, no event, no session"))})

	uc := NewUseCase(fs)
	_, err := uc.ProcessBatch(context.Background(), 10)
	require.NoError(t, err)

	require.Empty(t, fs.queue)
	require.Contains(t, fs.queueErrors, "h1")
}

func TestProcessBatchDuplicateEventIDRemovesQueueEntryWithoutError(t *testing.T) {
	fs := newFakeStore()
	fs.reportsByHash["e1"] = true

	plain := []byte(`{"event_id": "e1", "timestamp": "2024-01-01T00:00:00Z"}`)
	fs.enqueue("h1", models.Archive{Hash: "h1", ProjectID: 1, CompressedPayload: mustCompress(t, plain)})

	uc := NewUseCase(fs)
	_, err := uc.ProcessBatch(context.Background(), 10)
	require.NoError(t, err)

	require.Empty(t, fs.queue)
	require.Empty(t, fs.queueErrors)
}

func TestProcessBatchMissingEventIDFallsBackToFreshUUID(t *testing.T) {
	fs := newFakeStore()
	plain := []byte(`{"timestamp": "2024-01-01T00:00:00Z"}`)
	fs.enqueue("h1", models.Archive{Hash: "h1", ProjectID: 1, CompressedPayload: mustCompress(t, plain)})

	uc := NewUseCase(fs)
	_, err := uc.ProcessBatch(context.Background(), 10)
	require.NoError(t, err)

	require.Empty(t, fs.queue)
	require.Len(t, fs.reports, 1)
}

func TestProcessBatchNoInAppFramesLeavesIssueAndStacktraceNil(t *testing.T) {
	fs := newFakeStore()
	plain := []byte(`{
		"event_id": "e1",
		"exception": {"values": [{
			"type": "RuntimeError", "value": "boom",
			"stacktrace": {"frames": [{"filename": "vendor.go", "function": "dep", "lineno": 1, "in_app": false}]}
		}]}
	}`)
	fs.enqueue("h1", models.Archive{Hash: "h1", ProjectID: 1, CompressedPayload: mustCompress(t, plain)})

	uc := NewUseCase(fs)
	_, err := uc.ProcessBatch(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, fs.issues)
	require.Empty(t, fs.stacktraces)
}

func TestProcessBatchEnvelopeWithEventAndSessionDigestsBoth(t *testing.T) {
	fs := newFakeStore()
	body := "{}\n" +
		"{\"type\":\"session\"}\n{\"sid\":\"s1\",\"status\":\"ok\",\"attrs\":{\"release\":\"app@1.0\"}}\n" +
		"{\"type\":\"event\"}\n{\"event_id\":\"e1\",\"timestamp\":\"2024-01-01T00:00:00Z\"}\n"
	fs.enqueue("h1", models.Archive{Hash: "h1", ProjectID: 1, CompressedPayload: mustCompress(t, []byte(body))})

	uc := NewUseCase(fs)
	_, err := uc.ProcessBatch(context.Background(), 10)
	require.NoError(t, err)

	require.Empty(t, fs.queue)
	require.Contains(t, fs.reports, "e1")
	require.Len(t, fs.sessions, 1)
	require.NotNil(t, fs.reportRecords["e1"].SessionID)
	require.Equal(t, fs.sessions["1:s1"], *fs.reportRecords["e1"].SessionID)
}

func TestProcessBatchDrainsMultipleItemsIndependently(t *testing.T) {
	fs := newFakeStore()
	good := []byte(`{"event_id": "ok", "timestamp": "2024-01-01T00:00:00Z"}`)
	fs.enqueue("h-bad", models.Archive{Hash: "h-bad", ProjectID: 1, CompressedPayload: []byte("not gzip")})
	fs.enqueue("h-good", models.Archive{Hash: "h-good", ProjectID: 1, CompressedPayload: mustCompress(t, good)})

	uc := NewUseCase(fs)
	n, err := uc.ProcessBatch(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	require.Empty(t, fs.queue)
	require.Contains(t, fs.queueErrors, "h-bad")
	require.Contains(t, fs.reports, "ok")
}
