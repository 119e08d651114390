package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/smppware/hlrgate/pkg/cache"
	"github.com/smppware/hlrgate/pkg/config"
	"github.com/smppware/hlrgate/pkg/store"
)

var (
	healthcheckTimeout time.Duration
	healthcheckStats   bool
	healthcheckDays    int
)

var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Probe the gateway's backing services",
	Long: `Probe Redis and, when enabled, the database. Exits 0 only when
every configured backend is reachable, which makes the command usable as
a container health probe.

With --stats the command also prints lookup statistics for the recent
window.`,
	RunE: runHealthcheck,
}

func init() {
	healthcheckCmd.Flags().DurationVar(&healthcheckTimeout, "timeout", 5*time.Second, "Probe timeout")
	healthcheckCmd.Flags().BoolVar(&healthcheckStats, "stats", false, "Print lookup statistics")
	healthcheckCmd.Flags().IntVar(&healthcheckDays, "days", 7, "Statistics window in days")
}

func runHealthcheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), healthcheckTimeout)
	defer cancel()

	redisCache, err := cache.NewRedisCache(ctx, cfg.CacheConfig())
	if err != nil {
		return fmt.Errorf("redis unreachable: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	cmd.Println("redis: ok")

	if !cfg.Database.Enabled {
		cmd.Println("database: disabled")
		return nil
	}

	db, err := store.New(&cfg.Database.Config)
	if err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	defer db.Close()

	if err := db.Healthcheck(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	cmd.Println("database: ok")

	if healthcheckStats {
		since := time.Now().AddDate(0, 0, -healthcheckDays)
		stats, err := db.LookupStats(ctx, since)
		if err != nil {
			return fmt.Errorf("failed to query lookup stats: %w", err)
		}
		cmd.Printf("lookups (last %dd): total=%d unique=%d valid=%d invalid=%d\n",
			healthcheckDays, stats.TotalLookups, stats.UniqueMSISDNs,
			stats.ValidCount, stats.InvalidCount)
		cmd.Printf("latency ms: min=%.1f avg=%.1f max=%.1f\n",
			stats.MinLatencyMS, stats.AvgLatencyMS, stats.MaxLatencyMS)
	}

	return nil
}
