package hlr

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/smppware/hlrgate/internal/logger"
)

// StoredLookup is one persisted lookup replayed into the cache at startup.
type StoredLookup struct {
	MSISDN string
	Record Record
}

// WarmupSource yields the most recent stored lookup per MSISDN, newest
// first, bounded by since and limit.
type WarmupSource interface {
	RecentUnique(ctx context.Context, since time.Time, limit int) ([]StoredLookup, error)
}

// WarmupConfig bounds the startup cache preload.
type WarmupConfig struct {
	Enabled bool
	Days    int
	Limit   int
}

// Warmup preloads the cache from recently persisted lookups so a restart
// does not translate into a burst of provider requests. It is idempotent
// (keys are plain overwrites) and best-effort: the caller treats a returned
// error as a degraded start, not a fatal one.
func Warmup(ctx context.Context, cache Cache, src WarmupSource, cfg WarmupConfig) (int, error) {
	if !cfg.Enabled {
		return 0, nil
	}

	since := time.Now().AddDate(0, 0, -cfg.Days)
	rows, err := src.RecentUnique(ctx, since, cfg.Limit)
	if err != nil {
		return 0, fmt.Errorf("load recent lookups: %w", err)
	}

	loaded := 0
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return loaded, err
		}
		raw, err := json.Marshal(row.Record)
		if err != nil {
			continue
		}
		cache.Set(ctx, CacheKey(row.MSISDN), raw)
		loaded++
	}

	logger.Info("cache warmup completed",
		"loaded", loaded,
		"window_days", cfg.Days,
		"limit", cfg.Limit)
	return loaded, nil
}
