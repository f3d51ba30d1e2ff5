// Package database persists RAN and UE context snapshots so the in-memory
// tables can be rebuilt at startup. Snapshots are stored as JSON rows in
// ClickHouse keyed by their primary context ID; the newest row per key
// wins on read.
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/gholtzap/amf/internal/config"
	amfcontext "github.com/gholtzap/amf/internal/context"
)

const (
	ranContextsDDL = `
		CREATE TABLE IF NOT EXISTS ran_contexts (
			ran_id     String,
			snapshot   String,
			updated_at DateTime64(3)
		) ENGINE = ReplacingMergeTree(updated_at)
		ORDER BY ran_id`

	ueContextsDDL = `
		CREATE TABLE IF NOT EXISTS ue_contexts (
			amf_ue_ngap_id UInt64,
			snapshot       String,
			updated_at     DateTime64(3)
		) ENGINE = ReplacingMergeTree(updated_at)
		ORDER BY amf_ue_ngap_id`
)

// Database is the context snapshot store.
type Database struct {
	conn   driver.Conn
	logger *zap.Logger
}

// New connects to ClickHouse and ensures the snapshot tables exist.
// Returns (nil, nil) when persistence is disabled in configuration.
func New(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (*Database, error) {
	if !cfg.Enabled {
		logger.Info("Context persistence disabled")
		return nil, nil
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse ping failed: %w", err)
	}

	for _, ddl := range []string{ranContextsDDL, ueContextsDDL} {
		if err := conn.Exec(ctx, ddl); err != nil {
			return nil, fmt.Errorf("failed to create snapshot table: %w", err)
		}
	}

	logger.Info("Context persistence connected",
		zap.String("addr", cfg.Addr),
		zap.String("database", cfg.Database),
	)
	return &Database{conn: conn, logger: logger}, nil
}

// SaveRanContext upserts a RAN context snapshot.
func (d *Database) SaveRanContext(ctx context.Context, rc amfcontext.RanContext) error {
	snapshot, err := json.Marshal(rc)
	if err != nil {
		return fmt.Errorf("failed to marshal RAN context: %w", err)
	}
	return d.conn.Exec(ctx,
		"INSERT INTO ran_contexts (ran_id, snapshot, updated_at) VALUES (?, ?, ?)",
		rc.RanID, string(snapshot), time.Now(),
	)
}

// SaveUeContext upserts a UE context snapshot.
func (d *Database) SaveUeContext(ctx context.Context, uc amfcontext.UeContext) error {
	snapshot, err := json.Marshal(uc)
	if err != nil {
		return fmt.Errorf("failed to marshal UE context: %w", err)
	}
	return d.conn.Exec(ctx,
		"INSERT INTO ue_contexts (amf_ue_ngap_id, snapshot, updated_at) VALUES (?, ?, ?)",
		uc.AmfUeNgapID, string(snapshot), time.Now(),
	)
}

// LoadRanContexts returns the newest snapshot of every persisted RAN
// context.
func (d *Database) LoadRanContexts(ctx context.Context) ([]amfcontext.RanContext, error) {
	rows, err := d.conn.Query(ctx, "SELECT snapshot FROM ran_contexts FINAL")
	if err != nil {
		return nil, fmt.Errorf("failed to query RAN contexts: %w", err)
	}
	defer rows.Close()

	var out []amfcontext.RanContext
	for rows.Next() {
		var snapshot string
		if err := rows.Scan(&snapshot); err != nil {
			return nil, fmt.Errorf("failed to scan RAN context row: %w", err)
		}
		var rc amfcontext.RanContext
		if err := json.Unmarshal([]byte(snapshot), &rc); err != nil {
			d.logger.Warn("Skipping unreadable RAN context snapshot", zap.Error(err))
			continue
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}

// LoadUeContexts returns the newest snapshot of every persisted UE
// context.
func (d *Database) LoadUeContexts(ctx context.Context) ([]amfcontext.UeContext, error) {
	rows, err := d.conn.Query(ctx, "SELECT snapshot FROM ue_contexts FINAL")
	if err != nil {
		return nil, fmt.Errorf("failed to query UE contexts: %w", err)
	}
	defer rows.Close()

	var out []amfcontext.UeContext
	for rows.Next() {
		var snapshot string
		if err := rows.Scan(&snapshot); err != nil {
			return nil, fmt.Errorf("failed to scan UE context row: %w", err)
		}
		var uc amfcontext.UeContext
		if err := json.Unmarshal([]byte(snapshot), &uc); err != nil {
			d.logger.Warn("Skipping unreadable UE context snapshot", zap.Error(err))
			continue
		}
		out = append(out, uc)
	}
	return out, rows.Err()
}

// Close closes the connection.
func (d *Database) Close() error {
	return d.conn.Close()
}
