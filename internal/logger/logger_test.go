package logger

import (
	"testing"

	"github.com/samvad-hq/gidipin-go/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestZapLoggerWritesObjectField(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := New(zap.New(core))

	log.InfoObj("signin completed", "signin_result", map[string]any{"pin": "080"})

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Message != "signin completed" {
		t.Fatalf("message = %q", entries[0].Message)
	}
	if _, ok := entries[0].ContextMap()["signin_result"]; !ok {
		t.Fatalf("missing signin_result field: %#v", entries[0].ContextMap())
	}
}

func TestInitBuildsLeveledLogger(t *testing.T) {
	log, err := Init(&config.Config{LogLevel: "warn"})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { S = nil })

	if log == nil || log.z == nil || S == nil {
		t.Fatalf("Init left logger unset: %#v", log)
	}
	if log.z.Core().Enabled(zapcore.InfoLevel) || !log.z.Core().Enabled(zapcore.WarnLevel) {
		t.Fatalf("expected warn level logger")
	}
}

func TestNewWithNilDiscards(t *testing.T) {
	log := New(nil)
	log.ErrorObj("dropped", "k", 1)
	if log.z.Core().Enabled(zapcore.ErrorLevel) {
		t.Fatalf("nil logger should discard")
	}
}
