package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"triflow/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	dir := t.TempDir()
	cfg.Exchange.APIKey = "k"
	cfg.Exchange.APISecret = "s"
	cfg.Audit.Path = filepath.Join(dir, "triangle_log.csv")
	cfg.Audit.SQLite.Enabled = true
	cfg.Audit.SQLite.Path = filepath.Join(dir, "triflow.db")
	return &cfg
}

func TestOpenAndClose(t *testing.T) {
	cfg := testConfig(t)
	s, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if len(s.Audit) != 2 {
		t.Fatalf("expected file and sqlite sinks, got %d", len(s.Audit))
	}
	if s.Publisher != nil {
		t.Fatalf("kafka publisher opened while disabled")
	}
	if sc := s.Scanner(nil); sc == nil {
		t.Fatalf("nil scanner")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if _, err := os.Stat(cfg.Audit.SQLite.Path); err != nil {
		t.Fatalf("sqlite file missing: %v", err)
	}
}

func TestOpenUnknownBackendCleansUp(t *testing.T) {
	cfg := testConfig(t)
	cfg.Debounce.Backend = "memcached"
	s, err := Open(context.Background(), cfg)
	if err == nil {
		t.Fatalf("expected error for unknown backend")
	}
	if s != nil {
		t.Fatalf("session returned alongside error")
	}
}
