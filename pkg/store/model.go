package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JSONMap stores an arbitrary JSON object in a single column. On Postgres
// the column is jsonb, on SQLite plain text.
type JSONMap map[string]any

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(src any) error {
	if src == nil {
		*m = nil
		return nil
	}

	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for JSONMap", src)
	}
	return json.Unmarshal(raw, m)
}

// GormDataType picks the column type per dialect.
func (JSONMap) GormDataType() string { return "json" }

// HLRLookup is one persisted lookup row. Frequently filtered fields are
// broken out into columns; the full provider response rides along as JSON.
type HLRLookup struct {
	ID             uint      `gorm:"primaryKey"`
	MSISDN         string    `gorm:"column:msisdn;size:20;index;not null"`
	Classification string    `gorm:"size:10;index;not null"`
	ErrorCode      *int      `gorm:"column:error_code"`
	StatusCode     *int      `gorm:"column:status_code"`
	Present        string    `gorm:"size:10"`
	MCC            string    `gorm:"column:mcc;size:8"`
	MNC            string    `gorm:"column:mnc;size:8"`
	Operator       string    `gorm:"size:100"`
	NetworkType    string    `gorm:"size:20"`
	Country        string    `gorm:"size:2"`
	Ported         bool      ``
	HLRResponse    JSONMap   `gorm:"column:hlr_response"`
	LatencyMS      float64   `gorm:"column:latency_ms"`
	Cached         bool      ``
	SourceIP       string    `gorm:"column:source_ip;size:45"`
	CreatedAt      time.Time `gorm:"index"`
}

// TableName pins the table name independent of GORM pluralization rules.
func (HLRLookup) TableName() string { return "hlr_lookups" }
