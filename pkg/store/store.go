// Package store persists HLR lookup results for analytics and cache
// warmup. It runs on PostgreSQL in production and SQLite in tests, behind
// the same GORM codebase. The store is an optional dependency: the gateway
// answers traffic identically with persistence disabled.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/smppware/hlrgate/internal/logger"
	"github.com/smppware/hlrgate/pkg/hlr"
)

// DatabaseType defines the supported database backends.
type DatabaseType string

const (
	// DatabaseTypePostgres uses PostgreSQL (production).
	DatabaseTypePostgres DatabaseType = "postgres"

	// DatabaseTypeSQLite uses SQLite (tests and single-node setups).
	DatabaseTypeSQLite DatabaseType = "sqlite"
)

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	Database     string `mapstructure:"database"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	SSLMode      string `mapstructure:"ssl_mode"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"min=0"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" validate:"min=0"`
}

// DSN returns the PostgreSQL connection string.
func (c *PostgresConfig) DSN() string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
		c.Host, c.Port, c.User, c.Password, c.Database)
	if c.SSLMode != "" {
		dsn += fmt.Sprintf(" sslmode=%s", c.SSLMode)
	}
	return dsn
}

// SQLiteConfig contains SQLite settings.
type SQLiteConfig struct {
	// Path is the database file, or ":memory:" for an in-memory database.
	Path string `mapstructure:"path"`
}

// Config contains database configuration.
type Config struct {
	Type     DatabaseType   `mapstructure:"type" validate:"omitempty,oneof=postgres sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
}

// ApplyDefaults fills in missing configuration with default values.
func (c *Config) ApplyDefaults() {
	if c.Type == "" {
		c.Type = DatabaseTypePostgres
	}
	if c.Type == DatabaseTypePostgres {
		if c.Postgres.Port == 0 {
			c.Postgres.Port = 5432
		}
		if c.Postgres.SSLMode == "" {
			c.Postgres.SSLMode = "disable"
		}
		if c.Postgres.MaxOpenConns == 0 {
			c.Postgres.MaxOpenConns = 20
		}
		if c.Postgres.MaxIdleConns == 0 {
			c.Postgres.MaxIdleConns = 5
		}
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Type {
	case DatabaseTypePostgres:
		if c.Postgres.Host == "" {
			return fmt.Errorf("postgres host is required")
		}
		if c.Postgres.Database == "" {
			return fmt.Errorf("postgres database is required")
		}
		if c.Postgres.User == "" {
			return fmt.Errorf("postgres user is required")
		}
	case DatabaseTypeSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("sqlite path is required")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Type)
	}
	return nil
}

// Store persists lookup rows via GORM.
type Store struct {
	db *gorm.DB
}

// New opens the database, configures the pool, and runs auto-migration.
func New(config *Config) (*Store, error) {
	if config == nil {
		config = &Config{}
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}

	var dialector gorm.Dialector
	switch config.Type {
	case DatabaseTypePostgres:
		dialector = postgres.Open(config.Postgres.DSN())
	case DatabaseTypeSQLite:
		dsn := config.SQLite.Path
		if dsn != ":memory:" {
			dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
		}
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if config.Type == DatabaseTypePostgres {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying database: %w", err)
		}
		sqlDB.SetMaxOpenConns(config.Postgres.MaxOpenConns)
		sqlDB.SetMaxIdleConns(config.Postgres.MaxIdleConns)
	}

	if err := db.AutoMigrate(&HLRLookup{}); err != nil {
		return nil, fmt.Errorf("failed to run database migration: %w", err)
	}

	logger.Info("database connected", "type", string(config.Type))
	return &Store{db: db}, nil
}

// DB returns the underlying GORM handle. Useful for tests.
func (s *Store) DB() *gorm.DB { return s.db }

// AppendLookup inserts one lookup row. Column values are derived from the
// record; the full record is kept as JSON alongside them.
func (s *Store) AppendLookup(ctx context.Context, ev hlr.LookupEvent) error {
	rec := ev.Record
	errCode := rec.ErrorCode()
	statusCode := rec.StatusCode()

	row := HLRLookup{
		MSISDN:         ev.MSISDN,
		Classification: ev.Classification,
		ErrorCode:      &errCode,
		StatusCode:     &statusCode,
		Present:        rec.Present(),
		MCC:            rec.MCC(),
		MNC:            rec.MNC(),
		Operator:       rec.Network(),
		NetworkType:    rec.NumberType(),
		Country:        CountryFromMCC(rec.MCC()),
		Ported:         rec.Ported(),
		HLRResponse:    JSONMap(rec),
		LatencyMS:      float64(ev.Latency) / float64(time.Millisecond),
		Cached:         ev.Cached,
		SourceIP:       ev.SourceIP,
	}

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert lookup: %w", err)
	}
	return nil
}

// RecentUnique returns the newest stored record per MSISDN within the
// window, for cache warmup. The subquery form works on both backends,
// unlike DISTINCT ON.
//
// The JSON column is decoded here per row rather than through the model
// scanner, so a single corrupt or empty hlr_response skips that row
// instead of failing the whole scan.
func (s *Store) RecentUnique(ctx context.Context, since time.Time, limit int) ([]hlr.StoredLookup, error) {
	var rows []struct {
		MSISDN      string `gorm:"column:msisdn"`
		HLRResponse []byte `gorm:"column:hlr_response"`
	}
	err := s.db.WithContext(ctx).
		Model(&HLRLookup{}).
		Select("msisdn, hlr_response").
		Where("created_at >= ?", since).
		Where("id IN (?)", s.db.Model(&HLRLookup{}).
			Select("MAX(id)").
			Where("created_at >= ?", since).
			Group("msisdn")).
		Order("created_at DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query recent lookups: %w", err)
	}

	out := make([]hlr.StoredLookup, 0, len(rows))
	for _, row := range rows {
		var rec hlr.Record
		if err := json.Unmarshal(row.HLRResponse, &rec); err != nil || len(rec) == 0 {
			logger.Warn("skipping stored lookup with undecodable record",
				logger.KeyMSISDN, row.MSISDN)
			continue
		}
		out = append(out, hlr.StoredLookup{
			MSISDN: row.MSISDN,
			Record: rec,
		})
	}
	return out, nil
}

// Stats summarizes lookups within the window.
type Stats struct {
	TotalLookups  int64
	UniqueMSISDNs int64
	ValidCount    int64
	InvalidCount  int64
	CachedCount   int64
	AvgLatencyMS  float64
	MaxLatencyMS  float64
	MinLatencyMS  float64
}

// LookupStats aggregates lookup counts and latency over the window.
func (s *Store) LookupStats(ctx context.Context, since time.Time) (Stats, error) {
	var stats Stats
	err := s.db.WithContext(ctx).
		Model(&HLRLookup{}).
		Where("created_at >= ?", since).
		Select(`COUNT(*) AS total_lookups,
			COUNT(DISTINCT msisdn) AS unique_msisdns,
			SUM(CASE WHEN classification = 'valid' THEN 1 ELSE 0 END) AS valid_count,
			SUM(CASE WHEN classification = 'invalid' THEN 1 ELSE 0 END) AS invalid_count,
			SUM(CASE WHEN cached THEN 1 ELSE 0 END) AS cached_count,
			COALESCE(AVG(latency_ms), 0) AS avg_latency_ms,
			COALESCE(MAX(latency_ms), 0) AS max_latency_ms,
			COALESCE(MIN(latency_ms), 0) AS min_latency_ms`).
		Scan(&stats).Error
	if err != nil {
		return Stats{}, fmt.Errorf("query lookup stats: %w", err)
	}
	return stats, nil
}

// Healthcheck verifies the database answers a trivial query.
func (s *Store) Healthcheck(ctx context.Context) error {
	var one int
	return s.db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
