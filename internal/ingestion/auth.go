package ingestion

import (
	"net/http"
	"strings"
)

// ExtractSentryKey implements §4.9 step 1 / §6's auth rule: query param
// first, then X-Sentry-Auth header (either "Sentry sentry_key=<k>, ..." or
// a bare "sentry_key=<k>").
func ExtractSentryKey(r *http.Request) (string, bool) {
	if key := r.URL.Query().Get("sentry_key"); key != "" {
		return key, true
	}

	header := r.Header.Get("X-Sentry-Auth")
	if header == "" {
		return "", false
	}

	header = strings.TrimPrefix(strings.TrimSpace(header), "Sentry ")
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "sentry_key=") {
			return strings.TrimPrefix(part, "sentry_key="), true
		}
	}
	return "", false
}

// ClientIP extracts the client IP, preferring the first X-Forwarded-For
// entry over the connection's peer address (§6).
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		return host[:idx]
	}
	return host
}
