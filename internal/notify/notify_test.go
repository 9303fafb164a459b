package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"triflow/config"
	"triflow/internal/metrics"
)

func TestTelegramSend(t *testing.T) {
	var got map[string]string
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	s := NewTelegramSender(config.TelegramConfig{BaseURL: srv.URL + "/", Token: "tok", ChatID: "42", ParseMode: "HTML"})
	defer s.Close()
	if err := s.Send(context.Background(), "<b>hi</b>"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if path != "/bottok/sendMessage" {
		t.Errorf("path = %s", path)
	}
	if got["chat_id"] != "42" || got["text"] != "<b>hi</b>" || got["parse_mode"] != "HTML" {
		t.Errorf("payload = %v", got)
	}
}

func TestTelegramSendStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"ok":false,"description":"chat not found"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	s := NewTelegramSender(config.TelegramConfig{BaseURL: srv.URL, Token: "tok", ChatID: "1"})
	err := s.Send(context.Background(), "x")
	if err == nil || !strings.Contains(err.Error(), "400") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestRedactHidesToken(t *testing.T) {
	base := errors.New(`Post "https://api.telegram.org/botSECRET/sendMessage": dial tcp: timeout`)
	err := redact(base, "SECRET")
	if strings.Contains(err.Error(), "SECRET") {
		t.Fatalf("token leaked: %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("redacted error lost its cause")
	}
}

type failingSender struct{ calls int }

func (f *failingSender) Send(context.Context, string) error {
	f.calls++
	return errors.New("unreachable")
}

func (f *failingSender) Name() string { return "failing" }

type okSender struct{ texts []string }

func (o *okSender) Send(_ context.Context, text string) error {
	o.texts = append(o.texts, text)
	return nil
}

func (o *okSender) Name() string { return "ok" }

func TestNotifierSwallowsFailures(t *testing.T) {
	bad := &failingSender{}
	good := &okSender{}
	n := NewNotifier([]Sender{bad, good}, time.Second, metrics.NewRecorder())

	n.Notify(context.Background(), "route found")
	if bad.calls != 1 {
		t.Fatalf("failing sender calls = %d", bad.calls)
	}
	if len(good.texts) != 1 || good.texts[0] != "route found" {
		t.Fatalf("healthy sender skipped after failure: %v", good.texts)
	}
}

func TestNotifierWithoutSenders(t *testing.T) {
	n := NewNotifier(nil, 0, nil)
	n.Notify(context.Background(), "nobody listens")
	if err := n.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
