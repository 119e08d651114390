package hlr

import (
	"context"
	"encoding/json"
	"time"

	"github.com/smppware/hlrgate/internal/logger"
	"github.com/smppware/hlrgate/pkg/metrics"
)

// Cache is the record cache the resolver reads through. Implementations
// are best-effort: a backend failure surfaces as a miss on Get and a no-op
// on Set, never as an error to the caller.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
}

// Recorder receives completed fresh lookups for persistence. Enqueue must
// not block; implementations drop under backpressure.
type Recorder interface {
	Enqueue(ev LookupEvent)
}

// LookupEvent is one completed provider lookup handed to the Recorder.
type LookupEvent struct {
	MSISDN         string
	Classification string
	Record         Record
	Latency        time.Duration
	// Cached marks rows loaded from the cache rather than the provider.
	// The resolver persists only fresh lookups, so it stays false there;
	// it exists for tooling that backfills rows from other sources.
	Cached   bool
	SourceIP string
}

// cacheKeyPrefix namespaces record keys in the shared cache backend.
const cacheKeyPrefix = "hlr:"

// CacheKey returns the cache key for an MSISDN.
func CacheKey(msisdn string) string { return cacheKeyPrefix + msisdn }

// ResolverConfig configures the resolver.
type ResolverConfig struct {
	// Concurrency caps in-flight provider requests across all sessions.
	Concurrency int
}

// Resolver answers "is this number valid" with a cache in front of the
// provider. Concurrency toward the provider is capped by a semaphore, and
// a second cache check after acquiring it collapses concurrent lookups of
// the same number into one request in the common case.
type Resolver struct {
	client   *Client
	cache    Cache
	recorder Recorder
	sem      chan struct{}
}

// NewResolver builds a resolver. recorder may be nil when persistence is
// disabled.
func NewResolver(client *Client, cache Cache, recorder Recorder, cfg ResolverConfig) *Resolver {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 100
	}
	return &Resolver{
		client:   client,
		cache:    cache,
		recorder: recorder,
		sem:      make(chan struct{}, cfg.Concurrency),
	}
}

// Resolve returns the stamped record for msisdn, from cache when possible.
// sourceIP is the submitting client's address, recorded with fresh lookups.
//
// Provider failures are returned unchanged (ErrTimeout or *TransportError)
// and are never cached, so the next submit for the same number retries.
func (r *Resolver) Resolve(ctx context.Context, msisdn, sourceIP string) (Record, error) {
	if rec, ok := r.cacheGet(ctx, msisdn); ok {
		metrics.HLRCacheHits.Inc()
		logger.DebugCtx(ctx, "hlr cache hit", logger.KeyMSISDN, msisdn)
		return rec, nil
	}
	metrics.HLRCacheMisses.Inc()

	select {
	case r.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-r.sem }()

	// A concurrent lookup may have landed while this one waited for a
	// slot. Re-checking here keeps a burst for one number down to a
	// single provider request.
	if rec, ok := r.cacheGet(ctx, msisdn); ok {
		metrics.HLRCacheHits.Inc()
		logger.DebugCtx(ctx, "hlr cache hit after wait", logger.KeyMSISDN, msisdn)
		return rec, nil
	}

	rec, elapsed, err := r.client.Lookup(ctx, msisdn)
	if err != nil {
		return nil, err
	}

	r.cacheSet(ctx, msisdn, rec)

	if r.recorder != nil {
		r.recorder.Enqueue(LookupEvent{
			MSISDN:         msisdn,
			Classification: rec.Classification(),
			Record:         rec,
			Latency:        elapsed,
			SourceIP:       sourceIP,
		})
	}
	return rec, nil
}

func (r *Resolver) cacheGet(ctx context.Context, msisdn string) (Record, bool) {
	raw, ok := r.cache.Get(ctx, CacheKey(msisdn))
	if !ok {
		return nil, false
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		logger.WarnCtx(ctx, "discarding undecodable cache entry",
			logger.KeyMSISDN, msisdn, "error", err)
		return nil, false
	}
	return rec, true
}

func (r *Resolver) cacheSet(ctx context.Context, msisdn string, rec Record) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return
	}
	r.cache.Set(ctx, CacheKey(msisdn), raw)
}
