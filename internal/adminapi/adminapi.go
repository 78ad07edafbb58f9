// Package adminapi exposes the operator-facing HTTP surface that
// complements the out-of-scope operational CLI (spec.md §6): a JWT-guarded
// trigger for the ruminate procedure and a read-only stats endpoint.
package adminapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"

	"github.com/ethicnology/crash-cache/internal/health"
	"github.com/ethicnology/crash-cache/internal/recovery"
)

// Recovery is the subset of internal/recovery.UseCase the admin API needs.
type Recovery interface {
	Run(ctx context.Context) (recovery.Report, error)
}

// Server wires the ruminate trigger and stats read onto an HTTP router,
// guarded by a shared-secret bearer token (no operator identity beyond
// "holds the admin secret" — a single-tenant operational surface, not a
// multi-user auth system).
type Server struct {
	recovery    Recovery
	healthCache *health.Cache
	secret      []byte
}

func NewServer(rec Recovery, healthCache *health.Cache, jwtSecret string) *Server {
	return &Server{recovery: rec, healthCache: healthCache, secret: []byte(jwtSecret)}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(s.requireBearerToken)

	r.Get("/admin/stats", s.handleStats)
	r.Post("/admin/ruminate", s.handleRuminate)

	return r
}

// requireBearerToken verifies an `Authorization: Bearer <token>` HS256 JWT
// signed with the configured admin secret, carrying a "scope":"admin"
// claim, the way reasoning-graph/internal/auth.Verifier checks a scope
// claim against a configured required scope — simplified here to a single
// shared secret and a single scope, since this surface has one operator
// role, not a federation of signers.
func (s *Server) requireBearerToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrTokenSignatureInvalid
			}
			return s.secret, nil
		})
		if err != nil || !token.Valid {
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			respondError(w, http.StatusUnauthorized, "invalid claims")
			return
		}
		if scope, _ := claims["scope"].(string); scope != "admin" {
			respondError(w, http.StatusForbidden, "missing admin scope")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.healthCache.Snapshot()
	respondJSON(w, http.StatusOK, map[string]any{
		"archives":    stats.Archives,
		"reports":     stats.Reports,
		"queue":       stats.Queue,
		"queue_error": stats.Regurgitated,
		"orphaned":    stats.Orphaned,
		"updated_at":  stats.UpdatedAt,
	})
}

// handleRuminate triggers the ruminate procedure synchronously. There is no
// `--yes` confirmation prompt here: calling this endpoint at all is the
// operator's confirmation, the way a scripted API call has no tty to
// prompt on.
func (s *Server) handleRuminate(w http.ResponseWriter, r *http.Request) {
	report, err := s.recovery.Run(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"archives_requeued": report.ArchivesRequeued,
	})
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
