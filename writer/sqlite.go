package writer

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"triflow/models"
)

const defaultSQLitePath = "data/triflow.db"

const auditSchemaSQL = `
CREATE TABLE IF NOT EXISTS audit_records (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	detected_at    TEXT NOT NULL,
	route          TEXT NOT NULL,
	profit_percent REAL NOT NULL,
	min_liquidity  REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_records_route ON audit_records(route);
`

// SQLiteAudit mirrors audit records into a queryable SQLite table.
type SQLiteAudit struct {
	path string
	db   *sql.DB
}

// OpenSQLiteAudit opens (creating if needed) the database and its table.
func OpenSQLiteAudit(ctx context.Context, path string) (*SQLiteAudit, error) {
	if path == "" {
		path = defaultSQLitePath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := ensureWAL(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, auditSchemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create audit table: %w", err)
	}
	return &SQLiteAudit{path: path, db: db}, nil
}

func ensureWAL(db *sql.DB) error {
	const (
		maxAttempts = 5
		delay       = 200 * time.Millisecond
	)
	for i := 0; i < maxAttempts; i++ {
		if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			if strings.Contains(err.Error(), "database is locked") {
				time.Sleep(delay)
				continue
			}
			return err
		}
		return nil
	}
	return fmt.Errorf("database is locked after retries")
}

func (s *SQLiteAudit) Record(ctx context.Context, rec models.AuditRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_records (detected_at, route, profit_percent, min_liquidity) VALUES (?, ?, ?, ?)`,
		rec.Timestamp.UTC().Format(models.AuditTimeLayout),
		rec.Route,
		rec.ProfitPercent,
		rec.MinLiquidity,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

func (s *SQLiteAudit) Path() string {
	return s.path
}

func (s *SQLiteAudit) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
