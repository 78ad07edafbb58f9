// Package ratelimit implements the three independent token-bucket limiters
// of spec.md §4.8, backed by golang.org/x/time/rate.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Scope identifies which of the three limiters denied a request.
type Scope string

const (
	ScopeGlobal  Scope = "global"
	ScopeIP      Scope = "ip"
	ScopeProject Scope = "project"
)

// Hit is emitted to the Analytics Collector on a denial.
type Hit struct {
	Scope Scope
	Key   string
}

// Limiter composes the global, per-IP and per-project buckets. Each is
// optional: a zero per-second rate disables that tier entirely.
type Limiter struct {
	globalPerSec    float64
	perIPPerSec     float64
	perProjectPerSec float64
	burstMultiplier int

	global *rate.Limiter

	mu       sync.Mutex
	perIP      map[string]*rate.Limiter
	perProject map[string]*rate.Limiter
}

// New constructs a Limiter. A zero rate for a tier disables it.
func New(globalPerSec, perIPPerSec, perProjectPerSec float64, burstMultiplier int) *Limiter {
	l := &Limiter{
		globalPerSec:     globalPerSec,
		perIPPerSec:      perIPPerSec,
		perProjectPerSec: perProjectPerSec,
		burstMultiplier:  burstMultiplier,
		perIP:            make(map[string]*rate.Limiter),
		perProject:       make(map[string]*rate.Limiter),
	}
	if globalPerSec > 0 {
		l.global = newBucket(globalPerSec, burstMultiplier)
	}
	return l
}

func newBucket(perSec float64, burstMultiplier int) *rate.Limiter {
	burst := int(perSec) * burstMultiplier
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSec), burst)
}

// Allow checks all three enabled tiers. It returns the first denying scope,
// or ("", "", true) if every enabled tier admits the request.
func (l *Limiter) Allow(ip string, projectKey string) (deniedScope Scope, key string, allowed bool) {
	if l.global != nil && !l.global.Allow() {
		return ScopeGlobal, "", false
	}
	if l.perIPPerSec > 0 {
		if !l.bucketFor(&l.perIP, ip, l.perIPPerSec).Allow() {
			return ScopeIP, ip, false
		}
	}
	if l.perProjectPerSec > 0 {
		if !l.bucketFor(&l.perProject, projectKey, l.perProjectPerSec).Allow() {
			return ScopeProject, projectKey, false
		}
	}
	return "", "", true
}

func (l *Limiter) bucketFor(set *map[string]*rate.Limiter, key string, perSec float64) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := (*set)[key]; ok {
		return b
	}
	b := newBucket(perSec, l.burstMultiplier)
	(*set)[key] = b
	return b
}
