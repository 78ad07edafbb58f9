// Package ingestion's HTTP surface: the two event-intake endpoints and
// /health, wired to chi the way eval-engine/internal/ingestion/httpserver
// wires its own use-case (spec.md §4.9).
package ingestion

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ethicnology/crash-cache/internal/apperrors"
	"github.com/ethicnology/crash-cache/internal/codec"
	"github.com/ethicnology/crash-cache/internal/health"
	"github.com/ethicnology/crash-cache/internal/ratelimit"
)

// Server wires the ingestion use-case, the rate limiter, and the health
// cache onto an HTTP router.
type Server struct {
	service     *Service
	limiter     *ratelimit.Limiter
	healthCache *health.Cache
}

func NewServer(service *Service, limiter *ratelimit.Limiter, healthCache *health.Cache) *Server {
	return &Server{service: service, limiter: limiter, healthCache: healthCache}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Post("/api/{project_id}/store", s.handleStore)
	r.Post("/api/{project_id}/store/", s.handleStore)
	r.Post("/api/{project_id}/envelope", s.handleEnvelope)
	r.Post("/api/{project_id}/envelope/", s.handleEnvelope)
	r.Get("/health", s.handleHealth)

	return r
}

func (s *Server) handleStore(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.handleIntake(w, r, false)
	s.service.RecordLatency("/store", time.Since(start).Microseconds())
}

func (s *Server) handleEnvelope(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.handleIntake(w, r, true)
	s.service.RecordLatency("/envelope", time.Since(start).Microseconds())
}

// handleIntake runs the shared §4.9 pipeline for both endpoints: rate
// limit, auth, payload conditioning, then either the inline session path
// (envelope-with-no-event) or the transactional enqueue. The inline session
// path responds with the session count only: those sessions are not archived,
// queued or written to the session table.
func (s *Server) handleIntake(w http.ResponseWriter, r *http.Request, isEnvelope bool) {
	ctx := r.Context()

	projectIDStr := chi.URLParam(r, "project_id")
	projectID, err := strconv.ParseInt(projectIDStr, 10, 32)
	if err != nil {
		respondError(w, http.StatusNotFound, "unknown project")
		return
	}

	ip := ClientIP(r)
	if scope, key, allowed := s.limiter.Allow(ip, projectIDStr); !allowed {
		s.service.PushRateLimitHit(ratelimit.Hit{Scope: scope, Key: ipOrKey(scope, key, ip)})
		respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	sentryKey, ok := ExtractSentryKey(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "missing sentry_key")
		return
	}

	if err := s.service.ValidateKey(ctx, int32(projectID), sentryKey); err != nil {
		writeAuthOrMappedError(w, err)
		return
	}

	body, err := readBody(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "unable to read body")
		return
	}

	alreadyGzipped := strings.EqualFold(r.Header.Get("Content-Encoding"), "gzip")
	payload, err := s.service.ConditionPayload(body, alreadyGzipped)
	if err != nil {
		if errors.Is(err, errOversizePayload) {
			respondError(w, http.StatusRequestEntityTooLarge, "payload exceeds max_uncompressed_payload_bytes")
			return
		}
		respondMappedError(w, err)
		return
	}

	if isEnvelope {
		plain := body
		if alreadyGzipped {
			decoded, err := codec.Decompress(body)
			if err != nil {
				respondError(w, http.StatusUnprocessableEntity, "malformed gzip payload")
				return
			}
			plain = decoded
		}

		sessions, hasEvent, parsed := ParseEnvelopeSessions(plain)
		if !parsed || (!hasEvent && len(sessions) == 0) {
			respondError(w, http.StatusBadRequest, "envelope contains no event or session")
			return
		}
		if !hasEvent {
			respondJSON(w, http.StatusOK, map[string]int{"sessions": len(sessions)})
			return
		}
	}

	result, err := s.service.EnqueueArchive(ctx, int32(projectID), payload)
	if err != nil {
		respondMappedError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"id": result.Hash})
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.healthCache.Snapshot()
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "crash-cache",
		"stats": map[string]int64{
			"ingested": stats.Archives,
			"digested": stats.Reports,
			"queued":   stats.Queue,
			"orphaned": stats.Orphaned,
		},
	})
}

func ipOrKey(scope ratelimit.Scope, key, ip string) string {
	if scope == ratelimit.ScopeIP {
		return ip
	}
	return key
}

func writeAuthOrMappedError(w http.ResponseWriter, err error) {
	switch {
	case apperrors.KindInvalidRequest.Is(err):
		respondError(w, http.StatusUnauthorized, "invalid sentry_key")
	case apperrors.KindProjectNotFound.Is(err):
		respondError(w, http.StatusNotFound, "unknown project")
	default:
		respondMappedError(w, err)
	}
}

func respondMappedError(w http.ResponseWriter, err error) {
	respondError(w, apperrors.HTTPStatus(err), err.Error())
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
