package writer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	kafka "github.com/segmentio/kafka-go"

	appconfig "triflow/config"
	"triflow/models"
)

func testRecord(route string) models.AuditRecord {
	return models.AuditRecord{
		Timestamp:     time.Date(2024, 3, 1, 12, 30, 45, 123456000, time.UTC),
		Route:         route,
		ProfitPercent: 1.0235,
		MinLiquidity:  151.25,
	}
}

func TestFileAuditConcurrentLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "triangle_log.csv")
	a, err := NewFileAudit(appconfig.AuditConfig{Path: path, MaxSizeMB: 10})
	if err != nil {
		t.Fatalf("new audit: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.Record(context.Background(), testRecord("USDT->BTC->ETH->USDT")); err != nil {
				t.Errorf("record: %v", err)
			}
		}()
	}
	wg.Wait()
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(lines) != 20 {
		t.Fatalf("expected 20 lines, got %d", len(lines))
	}
	want := "2024-03-01 12:30:45.123456,USDT->BTC->ETH->USDT,1.0235,151.25"
	for _, l := range lines {
		if l != want {
			t.Fatalf("line = %q", l)
		}
	}
}

func TestSQLiteAudit(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLiteAudit(ctx, filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if err := s.Record(ctx, testRecord("USDT->BTC->ETH->USDT")); err != nil {
		t.Fatalf("record: %v", err)
	}
	var route string
	var profit float64
	if err := s.db.QueryRowContext(ctx, `SELECT route, profit_percent FROM audit_records`).Scan(&route, &profit); err != nil {
		t.Fatalf("query: %v", err)
	}
	if route != "USDT->BTC->ETH->USDT" || profit != 1.0235 {
		t.Fatalf("row = %s %f", route, profit)
	}
}

type failingSink struct{ closed bool }

func (f *failingSink) Record(context.Context, models.AuditRecord) error {
	return errors.New("disk full")
}

func (f *failingSink) Close() error {
	f.closed = true
	return nil
}

func TestMultiAuditJoinsErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.csv")
	file, err := NewFileAudit(appconfig.AuditConfig{Path: path})
	if err != nil {
		t.Fatalf("new audit: %v", err)
	}
	bad := &failingSink{}
	m := MultiAudit{bad, file}

	if err := m.Record(context.Background(), testRecord("A->B->C->A")); err == nil {
		t.Fatalf("expected error from failing sink")
	}
	if err := m.Close(); err != nil || !bad.closed {
		t.Fatalf("close: %v closed=%v", err, bad.closed)
	}
	if data, _ := os.ReadFile(path); !strings.Contains(string(data), "A->B->C->A") {
		t.Fatalf("healthy sink skipped: %q", data)
	}
}

type fakeKafka struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	closed bool
}

func (f *fakeKafka) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeKafka) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func testOpportunity() models.Opportunity {
	return models.Opportunity{
		RouteID:       "abc",
		Triangle:      models.Triangle{Base: "USDT", Mid1: "BTC", Mid2: "ETH"},
		Yield:         1.0102,
		ProfitPercent: 1.02,
		MinLiquidity:  151.25,
		Target:        100,
		DetectedAt:    time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestKafkaPublisherDrainsOnClose(t *testing.T) {
	fk := &fakeKafka{}
	p := newKafkaPublisher(fk, 8)
	p.Publish(context.Background(), testOpportunity(), true)
	p.Publish(context.Background(), testOpportunity(), false)
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	p.Publish(context.Background(), testOpportunity(), true)

	if !fk.closed || len(fk.msgs) != 2 {
		t.Fatalf("closed=%v msgs=%d", fk.closed, len(fk.msgs))
	}
	var ev OpportunityEvent
	if err := json.Unmarshal(fk.msgs[0].Value, &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Route != "USDT->BTC->ETH->USDT" || !ev.Ready || ev.PureProfit != 1.02 {
		t.Fatalf("event = %+v", ev)
	}
	if string(fk.msgs[0].Key) != "abc" {
		t.Fatalf("key = %s", fk.msgs[0].Key)
	}
}

type fakeS3 struct {
	input *s3.PutObjectInput
	body  []byte
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestS3ArchiverUpload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "triangle_log.csv")
	if err := os.WriteFile(path, []byte("line\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	fs := &fakeS3{}
	a := newS3Archiver(fs, "audit-bucket", "/triflow/")
	a.now = func() time.Time { return time.Date(2024, 3, 1, 8, 9, 10, 0, time.UTC) }

	if err := a.Archive(context.Background(), path); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if got := *fs.input.Key; got != "triflow/2024/03/01/triangle_log-20240301T080910Z.csv" {
		t.Errorf("key = %s", got)
	}
	if *fs.input.Bucket != "audit-bucket" || string(fs.body) != "line\n" {
		t.Errorf("unexpected upload %s %q", *fs.input.Bucket, fs.body)
	}
}

func TestS3ArchiverSkipsMissingFile(t *testing.T) {
	fs := &fakeS3{}
	a := newS3Archiver(fs, "b", "")
	if err := a.Archive(context.Background(), filepath.Join(t.TempDir(), "none.csv")); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if fs.input != nil {
		t.Fatalf("uploaded a missing file")
	}
}
