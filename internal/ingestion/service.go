// Package ingestion implements the Ingestion Handler use-case of spec.md
// §4.9: sentry-key validation, payload conditioning, and the transactional
// archive+queue enqueue.
package ingestion

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ethicnology/crash-cache/internal/analytics"
	"github.com/ethicnology/crash-cache/internal/apperrors"
	"github.com/ethicnology/crash-cache/internal/codec"
	"github.com/ethicnology/crash-cache/internal/envelope"
	"github.com/ethicnology/crash-cache/internal/models"
	"github.com/ethicnology/crash-cache/internal/projectcache"
	"github.com/ethicnology/crash-cache/internal/ratelimit"
	"github.com/ethicnology/crash-cache/internal/store"
)

var (
	errOversizePayload     = errors.New("uncompressed payload exceeds limit")
	errCompressorSaturated = errors.New("compression pool saturated")
)

// Store is the subset of internal/store.Store the ingestion use-case needs.
type Store interface {
	ProjectExists(ctx context.Context, q store.Querier, id int32) (bool, error)
	ValidateProjectKey(ctx context.Context, q store.Querier, id int32, key string) (bool, error)
	FindProjectByID(ctx context.Context, q store.Querier, id int32) (models.Project, error)
	ArchiveExists(ctx context.Context, q store.Querier, hash string) (bool, error)
	SaveArchive(ctx context.Context, q store.Querier, a models.Archive) error
	EnqueueArchive(ctx context.Context, q store.Querier, archiveHash string) (int32, error)
	WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error
	Ambient() store.Querier
}

// Compressor bounds concurrent CPU-bound compressions (§4.9 step 2).
type Compressor interface {
	TryAcquire() bool
	Release()
}

// ArchiveMirror best-effort mirrors a freshly-saved archive to off-site
// storage (internal/archivemirror). Optional: a nil mirror is never called.
type ArchiveMirror interface {
	Upload(ctx context.Context, hash string, compressedPayload []byte)
}

// Service is the ingestion use-case: auth, payload conditioning, enqueue.
type Service struct {
	store      Store
	cache      *projectcache.Cache
	compressor Compressor
	analytics  *analytics.Collector
	mirror     ArchiveMirror

	maxUncompressedBytes int64
}

// Config bounds the ingestion pipeline (§6 env vars).
type Config struct {
	MaxUncompressedPayloadBytes int64
}

func New(st Store, cache *projectcache.Cache, compressor Compressor, an *analytics.Collector, cfg Config) *Service {
	return &Service{
		store:                st,
		cache:                cache,
		compressor:           compressor,
		analytics:            an,
		maxUncompressedBytes: cfg.MaxUncompressedPayloadBytes,
	}
}

// WithMirror attaches a best-effort off-site archive mirror.
func (s *Service) WithMirror(m ArchiveMirror) *Service {
	s.mirror = m
	return s
}

// ValidateKey implements §4.7's cache-then-store validation chain.
func (s *Service) ValidateKey(ctx context.Context, projectID int32, key string) error {
	if matched, found := s.cache.Check(projectID, key); found {
		if !matched {
			return apperrors.ErrInvalidRequest
		}
		return nil
	}

	ambient := s.store.Ambient()

	exists, err := s.store.ProjectExists(ctx, ambient, projectID)
	if err != nil {
		return err
	}
	if !exists {
		return apperrors.ErrProjectNotFound
	}

	ok, err := s.store.ValidateProjectKey(ctx, ambient, projectID, key)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.ErrInvalidRequest
	}

	project, err := s.store.FindProjectByID(ctx, ambient, projectID)
	if err != nil {
		return err
	}
	s.cache.Set(projectID, project.PublicKey)
	return nil
}

// ConditionedPayload is the result of §4.9 step 2.
type ConditionedPayload struct {
	CompressedBytes []byte
	Hash            string
	OriginalSize    *int32 // set only when the server compressed
}

// ConditionPayload hashes an already-gzipped body, or compresses a raw body
// under the bounded compressor, per §4.9 step 2.
func (s *Service) ConditionPayload(body []byte, alreadyGzipped bool) (ConditionedPayload, error) {
	if alreadyGzipped {
		return ConditionedPayload{
			CompressedBytes: body,
			Hash:            codec.Hash(body),
		}, nil
	}

	if int64(len(body)) > s.maxUncompressedBytes {
		return ConditionedPayload{}, apperrors.New(apperrors.KindInvalidRequest, errOversizePayload)
	}

	if !s.compressor.TryAcquire() {
		return ConditionedPayload{}, apperrors.New(apperrors.KindConnectionPool, errCompressorSaturated)
	}
	defer s.compressor.Release()

	compressed, err := codec.Compress(body)
	if err != nil {
		return ConditionedPayload{}, apperrors.New(apperrors.KindCompression, err)
	}

	originalSize := int32(len(body))
	return ConditionedPayload{
		CompressedBytes: compressed,
		Hash:            codec.Hash(compressed),
		OriginalSize:    &originalSize,
	}, nil
}

// EnqueueResult reports whether this hash was already known.
type EnqueueResult struct {
	Hash      string
	Duplicate bool
}

// EnqueueArchive implements §4.9 step 4's transactional enqueue.
func (s *Service) EnqueueArchive(ctx context.Context, projectID int32, payload ConditionedPayload) (EnqueueResult, error) {
	var result EnqueueResult
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		exists, err := s.store.ProjectExists(ctx, tx, projectID)
		if err != nil {
			return err
		}
		if !exists {
			return apperrors.ErrProjectNotFound
		}

		alreadyExists, err := s.store.ArchiveExists(ctx, tx, payload.Hash)
		if err != nil {
			return err
		}

		if !alreadyExists {
			if err := s.store.SaveArchive(ctx, tx, models.Archive{
				Hash:              payload.Hash,
				ProjectID:         projectID,
				CompressedPayload: payload.CompressedBytes,
				OriginalSize:      payload.OriginalSize,
			}); err != nil {
				return err
			}

			if _, err := s.store.EnqueueArchive(ctx, tx, payload.Hash); err != nil {
				return err
			}
		}

		result = EnqueueResult{Hash: payload.Hash, Duplicate: alreadyExists}
		return nil
	})
	if err != nil {
		return EnqueueResult{}, err
	}

	if !result.Duplicate && s.mirror != nil {
		// Detached from the request context: mirroring must outlive the HTTP
		// response and never block it.
		go s.mirror.Upload(context.WithoutCancel(ctx), payload.Hash, payload.CompressedBytes)
	}

	return result, nil
}

// RecordLatency pushes a per-endpoint latency sample to the analytics
// collector (§4.12), a no-op if no collector was configured.
func (s *Service) RecordLatency(endpoint string, micros int64) {
	if s.analytics == nil {
		return
	}
	s.analytics.Push(analytics.Event{Kind: analytics.KindRequestLatency, Key: endpoint, LatencyMicros: micros})
}

// PushRateLimitHit forwards a rate-limit denial to the analytics collector.
func (s *Service) PushRateLimitHit(hit ratelimit.Hit) {
	if s.analytics == nil {
		return
	}
	s.analytics.PushRateLimitHit(hit)
}

// ParseEnvelopeSessions returns the session payloads if the envelope
// contains no event but at least one session (§4.9 step 3's inline path).
func ParseEnvelopeSessions(body []byte) (sessions [][]byte, hasEvent bool, ok bool) {
	env, parsed := envelope.Parse(body)
	if !parsed {
		return nil, false, false
	}
	if _, found := env.FindEventPayload(); found {
		return nil, true, true
	}
	return env.FindSessionPayloads(), false, true
}
