// Package digest implements the Digest Use-Case of spec.md §4.10: it drains
// the queue, turns each archived payload into a fully-indexed Report row, and
// routes failures to queue_error without retrying.
package digest

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ethicnology/crash-cache/internal/apperrors"
	"github.com/ethicnology/crash-cache/internal/codec"
	"github.com/ethicnology/crash-cache/internal/envelope"
	"github.com/ethicnology/crash-cache/internal/models"
	"github.com/ethicnology/crash-cache/internal/sentryevent"
	"github.com/ethicnology/crash-cache/internal/store"
)

// Store is the subset of internal/store.Store the digest use-case needs.
type Store interface {
	FindArchiveByHash(ctx context.Context, q store.Querier, hash string) (models.Archive, error)
	GetOrCreateDictionaryEntry(ctx context.Context, q store.Querier, kind models.DictionaryKind, value string) (int32, error)
	GetOrCreateDeviceSpecs(ctx context.Context, q store.Querier, specs models.DeviceSpecs) (int32, error)
	GetOrCreateExceptionMessage(ctx context.Context, q store.Querier, value string) (int32, error)
	GetOrCreateStacktrace(ctx context.Context, q store.Querier, hash string, fingerprintHash *string, framesJSON string) (int32, error)
	GetOrCreateIssue(ctx context.Context, q store.Querier, fingerprintHash string, exceptionTypeID *int32, title *string) (int32, error)
	UpsertSession(ctx context.Context, q store.Querier, session store.UpsertSessionInput) (int32, error)
	InsertReport(ctx context.Context, q store.Querier, r models.Report) (int32, error)
	DequeueBatch(ctx context.Context, q store.Querier, limit int) ([]models.QueueItem, error)
	RemoveFromQueue(ctx context.Context, q store.Querier, archiveHash string) error
	RecordQueueError(ctx context.Context, q store.Querier, archiveHash, errText string) error
	WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error
	Ambient() store.Querier
}

// Notifier is the best-effort downstream fan-out published to after a
// report commits (internal/queueevents). Optional: a nil Notifier is a
// no-op, matching the rest of this module's nil-safe collaborators.
type Notifier interface {
	Publish(ctx context.Context, report DigestedReport)
}

// DigestedReport is the subset of a committed Report worth notifying about.
type DigestedReport struct {
	ProjectID   int32
	EventID     string
	ArchiveHash string
	IssueID     *int32
}

// UseCase drains the queue and digests each archive into a Report.
type UseCase struct {
	store    Store
	notifier Notifier
}

func NewUseCase(st Store) *UseCase {
	return &UseCase{store: st}
}

// WithNotifier attaches a best-effort digest-completion publisher.
func (u *UseCase) WithNotifier(n Notifier) *UseCase {
	u.notifier = n
	return u
}

// ProcessBatch dequeues up to limit items and digests each independently,
// returning the number it attempted (success or failure alike) so the
// worker can tell a drained queue from one still full (§4.11).
func (u *UseCase) ProcessBatch(ctx context.Context, limit int) (int, error) {
	items, err := u.store.DequeueBatch(ctx, u.store.Ambient(), limit)
	if err != nil {
		return 0, err
	}

	for _, item := range items {
		report, err := u.processSingleItem(ctx, item)
		if err != nil {
			u.handleFailure(ctx, item, err)
			continue
		}
		if report != nil && u.notifier != nil {
			u.notifier.Publish(ctx, *report)
		}
	}
	return len(items), nil
}

// handleFailure records the error and drops the item from the queue.
// There is no retry: a poisoned archive stays poisoned, and the queue must
// keep draining for everything behind it (§4.10 step 9).
func (u *UseCase) handleFailure(ctx context.Context, item models.QueueItem, cause error) {
	ambient := u.store.Ambient()
	_ = u.store.RecordQueueError(ctx, ambient, item.ArchiveHash, cause.Error())
	_ = u.store.RemoveFromQueue(ctx, ambient, item.ArchiveHash)
}

// processSingleItem digests one queue item inside its own transaction,
// returning the notification payload on a fresh commit, or nil if the item
// turned out to be a duplicate (already-processed, not a failure).
func (u *UseCase) processSingleItem(ctx context.Context, item models.QueueItem) (*DigestedReport, error) {
	var notification *DigestedReport

	err := u.store.WithTx(ctx, func(tx *sql.Tx) error {
		archive, err := u.store.FindArchiveByHash(ctx, tx, item.ArchiveHash)
		if err != nil {
			return err
		}

		plain, err := codec.Decompress(archive.CompressedPayload)
		if err != nil {
			return apperrors.New(apperrors.KindDecompression, err)
		}

		// A malformed session never fails the item: the event is still worth
		// indexing even if its attached session wasn't (§4.10 step 3).
		sessionID, _ := u.digestSession(ctx, tx, archive.ProjectID, plain)

		ev, err := u.extractEvent(plain)
		if err != nil {
			return err
		}

		report, err := u.buildReport(ctx, tx, archive, ev)
		if err != nil {
			return err
		}
		report.SessionID = sessionID

		if _, err := u.store.InsertReport(ctx, tx, report); err != nil {
			if apperrors.KindDuplicateEventID.Is(err) {
				return u.store.RemoveFromQueue(ctx, tx, item.ArchiveHash)
			}
			return err
		}

		notification = &DigestedReport{
			ProjectID:   report.ProjectID,
			EventID:     report.EventID,
			ArchiveHash: report.ArchiveHash,
			IssueID:     report.IssueID,
		}
		return u.store.RemoveFromQueue(ctx, tx, item.ArchiveHash)
	})
	if err != nil {
		return nil, err
	}
	return notification, nil
}

// extractEvent prefers the payload as a raw event; if that fails to parse as
// JSON, it tries the payload as an envelope and pulls the event item out of
// it (§4.10 step 4).
func (u *UseCase) extractEvent(plain []byte) (*sentryevent.Event, error) {
	if ev, err := sentryevent.Parse(plain); err == nil && looksLikeEvent(plain) {
		return ev, nil
	}

	env, ok := envelope.Parse(plain)
	if ok {
		if payload, found := env.FindEventPayload(); found {
			return sentryevent.Parse(payload)
		}
	}

	return nil, apperrors.New(apperrors.KindSerialization, fmt.Errorf("no event payload found"))
}

// looksLikeEvent rejects a bare envelope header line (which also unmarshals
// cleanly into Event, since every field is optional) by requiring at least
// one event-shaped field to be present.
func looksLikeEvent(data []byte) bool {
	var probe struct {
		EventID   string          `json:"event_id"`
		Timestamp string          `json:"timestamp"`
		Exception json.RawMessage `json:"exception"`
		Contexts  json.RawMessage `json:"contexts"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return false
	}
	return probe.EventID != "" || probe.Timestamp != "" || len(probe.Exception) > 0 || len(probe.Contexts) > 0
}

// digestSession upserts every session payload in the envelope and returns
// the first session's id (spec.md:127 — the Report's session_id column
// retains only the first session's id, even if an envelope carries more
// than one).
func (u *UseCase) digestSession(ctx context.Context, q store.Querier, projectID int32, plain []byte) (*int32, error) {
	env, ok := envelope.Parse(plain)
	if !ok {
		return nil, nil
	}
	var firstID *int32
	for _, payload := range env.FindSessionPayloads() {
		sess, ok := parseSession(payload)
		if !ok {
			continue
		}
		id, err := u.upsertOneSession(ctx, q, projectID, sess)
		if err != nil {
			return firstID, err
		}
		if firstID == nil {
			firstID = &id
		}
	}
	return firstID, nil
}

func (u *UseCase) upsertOneSession(ctx context.Context, q store.Querier, projectID int32, sess sentrySession) (int32, error) {
	statusID, err := u.store.GetOrCreateDictionaryEntry(ctx, q, models.KindSessionStatus, sess.Status)
	if err != nil {
		return 0, err
	}

	var releaseID, environmentID *int32
	if sess.Attrs.Release != "" {
		id, err := u.store.GetOrCreateDictionaryEntry(ctx, q, models.KindSessionRelease, sess.Attrs.Release)
		if err != nil {
			return 0, err
		}
		releaseID = &id
	}
	if sess.Attrs.Environment != "" {
		id, err := u.store.GetOrCreateDictionaryEntry(ctx, q, models.KindSessionEnv, sess.Attrs.Environment)
		if err != nil {
			return 0, err
		}
		environmentID = &id
	}

	return u.store.UpsertSession(ctx, q, store.UpsertSessionInput{
		ProjectID:     projectID,
		SID:           sess.SID,
		Init:          sess.Init,
		StartedAt:     sess.startedAt(),
		Timestamp:     sess.timestampAt(),
		Errors:        sess.Errors,
		StatusID:      statusID,
		ReleaseID:     releaseID,
		EnvironmentID: environmentID,
	})
}

// buildReport normalizes every attribute through its dictionary and computes
// the fingerprint/stacktrace identity before assembling the Report row
// (§4.10 steps 5-8).
func (u *UseCase) buildReport(ctx context.Context, q store.Querier, archive models.Archive, ev *sentryevent.Event) (models.Report, error) {
	var r models.Report

	eventID := ev.EventID
	if eventID == "" {
		eventID = uuid.NewString()
	}
	r.EventID = eventID
	r.ArchiveHash = archive.Hash
	r.ProjectID = archive.ProjectID
	r.Timestamp = parseTimestamp(ev.Timestamp)

	lookup := func(kind models.DictionaryKind, value string) (*int32, error) {
		if value == "" {
			return nil, nil
		}
		id, err := u.store.GetOrCreateDictionaryEntry(ctx, q, kind, value)
		if err != nil {
			return nil, err
		}
		return &id, nil
	}

	var err error
	if r.PlatformID, err = lookup(models.KindPlatform, ev.Platform); err != nil {
		return models.Report{}, err
	}
	if r.EnvironmentID, err = lookup(models.KindEnvironment, ev.Environment); err != nil {
		return models.Report{}, err
	}

	os := ev.ExtractOSInfo()
	if r.OSNameID, err = lookupPtr(lookup, models.KindOSName, os.Name); err != nil {
		return models.Report{}, err
	}
	if r.OSVersionID, err = lookupPtr(lookup, models.KindOSVersion, os.Version); err != nil {
		return models.Report{}, err
	}

	device := ev.ExtractDeviceInfo()
	if r.ManufacturerID, err = lookupPtr(lookup, models.KindManufacturer, device.Manufacturer); err != nil {
		return models.Report{}, err
	}
	if r.BrandID, err = lookupPtr(lookup, models.KindBrand, device.Brand); err != nil {
		return models.Report{}, err
	}
	if r.ModelID, err = lookupPtr(lookup, models.KindModel, device.Model); err != nil {
		return models.Report{}, err
	}
	if r.ChipsetID, err = lookupPtr(lookup, models.KindChipset, device.Chipset); err != nil {
		return models.Report{}, err
	}

	specsID, err := u.store.GetOrCreateDeviceSpecs(ctx, q, toDeviceSpecsModel(device.Specs))
	if err != nil {
		return models.Report{}, err
	}
	r.DeviceSpecsID = &specsID

	locale := ev.ExtractLocaleInfo()
	if r.LocaleID, err = lookupPtr(lookup, models.KindLocale, locale.Locale); err != nil {
		return models.Report{}, err
	}
	if r.TimezoneID, err = lookupPtr(lookup, models.KindTimezone, locale.Timezone); err != nil {
		return models.Report{}, err
	}
	if r.ConnectionTypeID, err = lookupPtr(lookup, models.KindConnectionType, locale.ConnectionType); err != nil {
		return models.Report{}, err
	}
	if r.OrientationID, err = lookupPtr(lookup, models.KindOrientation, locale.Orientation); err != nil {
		return models.Report{}, err
	}

	app := ev.ExtractAppInfo()
	if r.AppNameID, err = lookupPtr(lookup, models.KindAppName, app.Name); err != nil {
		return models.Report{}, err
	}
	if r.AppVersionID, err = lookupPtr(lookup, models.KindAppVersion, app.Version); err != nil {
		return models.Report{}, err
	}
	if r.AppBuildID, err = lookupPtr(lookup, models.KindAppBuild, app.Build); err != nil {
		return models.Report{}, err
	}

	if r.UserExternalIDID, err = lookupPtr(lookup, models.KindUserExternalID, ev.ExtractUserExternalID()); err != nil {
		return models.Report{}, err
	}

	errInfo := ev.ExtractErrorInfo()
	if r.ExceptionTypeID, err = lookupPtr(lookup, models.KindExceptionType, errInfo.Type); err != nil {
		return models.Report{}, err
	}
	if errInfo.Message != nil {
		msgID, err := u.store.GetOrCreateExceptionMessage(ctx, q, *errInfo.Message)
		if err != nil {
			return models.Report{}, err
		}
		r.ExceptionMsgID = &msgID
	}

	issueID, stacktraceID, err := u.digestFingerprint(ctx, q, ev, r.ExceptionTypeID, errInfo.Type)
	if err != nil {
		return models.Report{}, err
	}
	r.IssueID = issueID
	r.StacktraceID = stacktraceID

	return r, nil
}

func lookupPtr(lookup func(models.DictionaryKind, string) (*int32, error), kind models.DictionaryKind, value *string) (*int32, error) {
	if value == nil {
		return nil, nil
	}
	return lookup(kind, *value)
}

func toDeviceSpecsModel(s sentryevent.DeviceSpecsInfo) models.DeviceSpecs {
	var archs *string
	if len(s.Archs) > 0 {
		sorted := append([]string(nil), s.Archs...)
		sort.Strings(sorted)
		encoded, _ := json.Marshal(sorted)
		str := string(encoded)
		archs = &str
	}
	return models.DeviceSpecs{
		ScreenWidth:    s.ScreenWidth,
		ScreenHeight:   s.ScreenHeight,
		ScreenDensity:  s.ScreenDensity,
		ScreenDPI:      s.ScreenDPI,
		ProcessorCount: s.ProcessorCount,
		MemorySize:     s.MemorySize,
		Archs:          archs,
	}
}

// digestFingerprint computes the in-app-only fingerprint hash and the
// all-frames stacktrace hash, then get-or-creates the Issue and Stacktrace
// rows keyed on them (§4.10 step 7, §3).
func (u *UseCase) digestFingerprint(ctx context.Context, q store.Querier, ev *sentryevent.Event, exceptionTypeID *int32, exceptionType *string) (*int32, *int32, error) {
	inAppFrames := ev.ExtractInAppFrames()
	if len(inAppFrames) == 0 {
		return nil, nil, nil
	}
	allFrames := ev.ExtractAllFrames()

	fingerprintData := joinFrameKeys(inAppFrames)
	fingerprintHash := codec.Hash([]byte(fingerprintData))

	framesJSON := canonicalFrames(allFrames)
	stacktraceHash := codec.Hash([]byte(framesJSON))

	stacktraceID, err := u.store.GetOrCreateStacktrace(ctx, q, stacktraceHash, &fingerprintHash, framesJSON)
	if err != nil {
		return nil, nil, err
	}

	issueID, err := u.store.GetOrCreateIssue(ctx, q, fingerprintHash, exceptionTypeID, exceptionType)
	if err != nil {
		return nil, nil, err
	}

	return &issueID, &stacktraceID, nil
}

// canonicalFrames serializes frames as a deterministic JSON array, the
// representation the stacktrace hash is computed over.
func canonicalFrames(frames []sentryevent.Frame) string {
	if frames == nil {
		frames = []sentryevent.Frame{}
	}
	encoded, _ := json.Marshal(frames)
	return string(encoded)
}

// joinFrameKeys builds the "filename:function:lineno" pipe-joined fingerprint
// input, with missing fields rendered as empty/zero (§4.10 step 7).
func joinFrameKeys(frames []sentryevent.Frame) string {
	parts := make([]string, 0, len(frames))
	for _, f := range frames {
		lineno := 0
		if f.Lineno != nil {
			lineno = *f.Lineno
		}
		parts = append(parts, fmt.Sprintf("%s:%s:%d", f.Filename, f.Function, lineno))
	}
	return strings.Join(parts, "|")
}

// parseTimestamp parses an RFC3339 event timestamp to unix seconds, falling
// back to the current time when absent or malformed (§4.10 step 5).
func parseTimestamp(raw string) int64 {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.Unix()
	}
	return time.Now().Unix()
}
