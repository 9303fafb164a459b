package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestWithComponent(t *testing.T) {
	log := Logger()
	entry := log.WithComponent("test")
	if v, ok := entry.Entry.Data["component"]; !ok || v != "test" {
		t.Fatalf("component field missing: %v", entry.Entry.Data)
	}
}

func TestConfigureInvalidLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("invalid", "json", "stdout", 0, false); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}

func TestConfigureDebugFlagWins(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("warn", "text", "stdout", 0, true); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if !log.WithComponent("x").DebugEnabled() {
		t.Fatalf("debug flag should enable debug level")
	}
}

func TestWithEnv(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	log := Logger()
	entry := log.WithEnv("APP_ENV").WithFields(Fields{"service": "triflow"})
	if v, ok := entry.Entry.Data["APP_ENV"]; !ok || v != "production" {
		t.Fatalf("env field not set: %v", entry.Entry.Data)
	}
	if entry.Entry.Data["service"] != "triflow" {
		t.Fatalf("chained fields lost: %v", entry.Entry.Data)
	}
}

func TestWarnCountsTowardsReport(t *testing.T) {
	log := Logger()
	var buf bytes.Buffer
	log.SetOutput(&buf)

	before := reportFields()["warns"].(int64)
	log.WithComponent("gate").Warn("something odd")
	after := reportFields()["warns"].(int64)
	if after != before+1 {
		t.Fatalf("warn counter = %d, want %d", after, before+1)
	}
	if !strings.Contains(buf.String(), "something odd") {
		t.Fatalf("warn not written: %s", buf.String())
	}
}
