package writer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	appconfig "triflow/config"
	"triflow/models"
)

// AuditSink persists audit records. Record must be safe for concurrent use.
type AuditSink interface {
	Record(ctx context.Context, rec models.AuditRecord) error
	Close() error
}

// FileAudit appends one text line per record to a size-rotated file.
type FileAudit struct {
	mu   sync.Mutex
	out  *lumberjack.Logger
	path string
}

func NewFileAudit(cfg appconfig.AuditConfig) (*FileAudit, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("audit path not configured")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure audit dir: %w", err)
		}
	}
	return &FileAudit{
		out: &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		},
		path: cfg.Path,
	}, nil
}

// Record writes the line with a single Write so concurrent records never
// interleave.
func (a *FileAudit) Record(_ context.Context, rec models.AuditRecord) error {
	line := []byte(rec.Line() + "\n")
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := a.out.Write(line); err != nil {
		return fmt.Errorf("append audit line: %w", err)
	}
	return nil
}

func (a *FileAudit) Path() string {
	return a.path
}

func (a *FileAudit) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.out.Close()
}

// MultiAudit records to every sink and reports all failures together.
type MultiAudit []AuditSink

func (m MultiAudit) Record(ctx context.Context, rec models.AuditRecord) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiAudit) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
