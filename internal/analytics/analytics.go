// Package analytics implements the buffered, lossy observability collector
// of spec.md §4.12: a single goroutine drains a bounded channel of events,
// coalesces them into per-minute buckets, and periodically flushes to the
// store.
package analytics

import (
	"context"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/ethicnology/crash-cache/internal/ratelimit"
)

// EventKind identifies the shape of an event pushed onto the buffer.
type EventKind int

const (
	KindRateLimitGlobal EventKind = iota
	KindRateLimitDSN
	KindRateLimitSubnet
	KindRequestLatency
)

// Event is the single type producers push through the bounded channel.
type Event struct {
	Kind         EventKind
	Key          string
	LatencyMicros int64
}

// Store is the subset of internal/store.Store the collector needs.
type Store interface {
	BumpCounterBucket(ctx context.Context, table, key string, bucketStart time.Time, delta int64) error
	BumpLatencyBucket(ctx context.Context, key string, bucketStart time.Time, sumMillis int64, minMillis, maxMillis int64, count int64) error
	CleanupAnalyticsBuckets(ctx context.Context, retentionDays int) error
}

type latencyAgg struct {
	sumMillis int64
	minMillis int64
	maxMillis int64
	count     int64
}

// Collector owns the coalescing buffer. External producers communicate only
// through Push/events; they never touch the buffer directly (§5).
type Collector struct {
	store           Store
	events          chan Event
	flushInterval   time.Duration
	retentionDays   int

	globalCounts  map[string]int64
	dsnCounts     map[string]int64
	subnetCounts  map[string]int64
	latencies     map[string]*latencyAgg
}

// New constructs a Collector with a channel of the given capacity
// (analytics_buffer_size).
func New(store Store, bufferSize int, flushInterval time.Duration, retentionDays int) *Collector {
	return &Collector{
		store:         store,
		events:        make(chan Event, bufferSize),
		flushInterval: flushInterval,
		retentionDays: retentionDays,
		globalCounts:  make(map[string]int64),
		dsnCounts:     make(map[string]int64),
		subnetCounts:  make(map[string]int64),
		latencies:     make(map[string]*latencyAgg),
	}
}

// Push enqueues an event, dropping it silently if the channel is full
// (lossy by design, spec.md §4.12/§7).
func (c *Collector) Push(ev Event) {
	select {
	case c.events <- ev:
	default:
		log.Printf("[analytics] buffer full, dropping event kind=%d key=%s", ev.Kind, ev.Key)
	}
}

// PushRateLimitHit translates a ratelimit.Hit into the matching Event kind,
// deriving the subnet bucket key when the scope is IP.
func (c *Collector) PushRateLimitHit(hit ratelimit.Hit) {
	switch hit.Scope {
	case ratelimit.ScopeGlobal:
		c.Push(Event{Kind: KindRateLimitGlobal, Key: "global"})
	case ratelimit.ScopeProject:
		c.Push(Event{Kind: KindRateLimitDSN, Key: hit.Key})
	case ratelimit.ScopeIP:
		c.Push(Event{Kind: KindRateLimitSubnet, Key: Subnet(hit.Key)})
	}
}

// Subnet derives the bucketing key for an IP: the /24 prefix for IPv4, the
// first four hextets for IPv6 (§4.12).
func Subnet(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ip
	}
	if v4 := parsed.To4(); v4 != nil {
		return fmt.Sprintf("%d.%d.%d.0/24", v4[0], v4[1], v4[2])
	}
	v6 := parsed.To16()
	hextets := make([]string, 4)
	for i := range hextets {
		hextets[i] = fmt.Sprintf("%x", uint16(v6[2*i])<<8|uint16(v6[2*i+1]))
	}
	return strings.Join(hextets, ":") + "::/64"
}

// Run drains the event channel and ticks the flush/cleanup timers until ctx
// is cancelled. Intended to run in its own goroutine (exactly one, §5).
func (c *Collector) Run(ctx context.Context) {
	flushTick := time.NewTicker(c.flushInterval)
	defer flushTick.Stop()
	cleanupTick := time.NewTicker(time.Hour)
	defer cleanupTick.Stop()

	log.Printf("[analytics] collector starting (flush=%s, retention=%dd)", c.flushInterval, c.retentionDays)
	defer log.Printf("[analytics] collector stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-c.events:
			c.accumulate(ev)
		case <-flushTick.C:
			c.flush(ctx)
		case <-cleanupTick.C:
			if err := c.store.CleanupAnalyticsBuckets(ctx, c.retentionDays); err != nil {
				log.Printf("[analytics] cleanup error: %v", err)
			}
		}
	}
}

func (c *Collector) accumulate(ev Event) {
	switch ev.Kind {
	case KindRateLimitGlobal:
		c.globalCounts[ev.Key]++
	case KindRateLimitDSN:
		c.dsnCounts[ev.Key]++
	case KindRateLimitSubnet:
		c.subnetCounts[ev.Key]++
	case KindRequestLatency:
		agg, ok := c.latencies[ev.Key]
		if !ok {
			agg = &latencyAgg{minMillis: ev.LatencyMicros / 1000, maxMillis: ev.LatencyMicros / 1000}
			c.latencies[ev.Key] = agg
		}
		millis := ev.LatencyMicros / 1000
		agg.sumMillis += millis
		agg.count++
		if millis < agg.minMillis {
			agg.minMillis = millis
		}
		if millis > agg.maxMillis {
			agg.maxMillis = millis
		}
	}
}

// flush writes buffered totals to the four bucket tables, bucketed to the
// minute of the flush, then clears the in-memory accumulators.
func (c *Collector) flush(ctx context.Context) {
	bucketStart := time.Now().Truncate(time.Minute)

	for key, count := range c.globalCounts {
		if err := c.store.BumpCounterBucket(ctx, "bucket_rate_limit_global", key, bucketStart, count); err != nil {
			log.Printf("[analytics] flush global bucket: %v", err)
		}
	}
	for key, count := range c.dsnCounts {
		if err := c.store.BumpCounterBucket(ctx, "bucket_rate_limit_dsn", key, bucketStart, count); err != nil {
			log.Printf("[analytics] flush dsn bucket: %v", err)
		}
	}
	for key, count := range c.subnetCounts {
		if err := c.store.BumpCounterBucket(ctx, "bucket_rate_limit_subnet", key, bucketStart, count); err != nil {
			log.Printf("[analytics] flush subnet bucket: %v", err)
		}
	}
	for key, agg := range c.latencies {
		if err := c.store.BumpLatencyBucket(ctx, key, bucketStart, agg.sumMillis, agg.minMillis, agg.maxMillis, agg.count); err != nil {
			log.Printf("[analytics] flush latency bucket: %v", err)
		}
	}

	c.globalCounts = make(map[string]int64)
	c.dsnCounts = make(map[string]int64)
	c.subnetCounts = make(map[string]int64)
	c.latencies = make(map[string]*latencyAgg)
}
