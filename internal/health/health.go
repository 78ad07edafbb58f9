// Package health implements the Health Cache of spec.md §4.13: a
// periodically-refreshed snapshot of operational counts, read by /health
// under a lock and never queried synchronously.
package health

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/ethicnology/crash-cache/internal/models"
)

// Store is the subset of internal/store.Store the health cache needs.
type Store interface {
	CountRawStats(ctx context.Context) (archives, reports, queue, regurgitated int64, err error)
}

// Cache holds the latest snapshot behind a read-write lock.
type Cache struct {
	store    Store
	interval time.Duration

	mu   sync.RWMutex
	snap models.HealthStats
}

// New constructs a Cache. Snapshot() returns the zero value until the first
// refresh completes.
func New(store Store, interval time.Duration) *Cache {
	return &Cache{store: store, interval: interval}
}

// Snapshot returns the last-refreshed stats. Never hits the store.
func (c *Cache) Snapshot() models.HealthStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// Run refreshes the snapshot every interval until ctx is cancelled. Intended
// to run in its own goroutine (exactly one, §5).
func (c *Cache) Run(ctx context.Context) {
	c.refresh(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.refresh(ctx)
		}
	}
}

func (c *Cache) refresh(ctx context.Context) {
	archives, reports, queue, regurgitated, err := c.store.CountRawStats(ctx)
	if err != nil {
		log.Printf("[health] refresh error: %v", err)
		return
	}

	orphaned := archives - reports - queue - regurgitated
	if orphaned < 0 {
		orphaned = 0
	}

	c.mu.Lock()
	c.snap = models.HealthStats{
		Archives:     archives,
		Reports:      reports,
		Queue:        queue,
		Regurgitated: regurgitated,
		Orphaned:     orphaned,
		UpdatedAt:    time.Now(),
	}
	c.mu.Unlock()
}
