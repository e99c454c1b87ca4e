package logger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func resetLogger() {
	globalLogger = nil
	once = sync.Once{}
}

func TestInit(t *testing.T) {
	resetLogger()

	cfg := Config{Level: "info", Format: "json"}

	if err := Init(cfg); err != nil {
		t.Fatalf("Init() error = %v, want nil", err)
	}

	// Second call should be safe and return nil
	if err := Init(cfg); err != nil {
		t.Errorf("Init() second call error = %v, want nil", err)
	}
}

func TestInit_TextFormat(t *testing.T) {
	resetLogger()

	if err := Init(Config{Level: "debug", Format: "text"}); err != nil {
		t.Fatalf("Init() with text format error = %v, want nil", err)
	}
}

func TestInit_InvalidLevelDefaultsToInfo(t *testing.T) {
	resetLogger()

	if err := Init(Config{Level: "invalid-level", Format: "json"}); err != nil {
		t.Fatalf("Init() with invalid level should default to info, got error = %v", err)
	}
}

func TestInit_WithFile(t *testing.T) {
	resetLogger()

	tmpFile := filepath.Join(t.TempDir(), "app.log")

	cfg := Config{
		Level:   "info",
		Format:  "json",
		File:    tmpFile,
		MaxSize: 10,
	}

	if err := Init(cfg); err != nil {
		t.Fatalf("Init() with file error = %v, want nil", err)
	}
}

func TestGet(t *testing.T) {
	resetLogger()

	// Uninitialized logger falls back to a no-op, never nil
	if Get() == nil {
		t.Error("Get() returned nil logger")
	}

	Init(Config{Level: "info", Format: "json"})

	if Get() == nil {
		t.Error("Get() returned nil logger after Init()")
	}
}

func TestDerivedLoggers(t *testing.T) {
	resetLogger()
	Init(Config{Level: "info", Format: "json"})

	if Sugar() == nil {
		t.Error("Sugar() returned nil")
	}
	if With(zap.String("key", "value")) == nil {
		t.Error("With() returned nil logger")
	}
	if Named("scm") == nil {
		t.Error("Named() returned nil logger")
	}
}

func TestLogFunctions(t *testing.T) {
	resetLogger()
	Init(Config{Level: "debug", Format: "json"})

	// Must not panic
	Debug("debug message", zap.String("key", "value"))
	Info("info message", zap.String("key", "value"))
	Warn("warn message", zap.String("key", "value"))
	Error("error message", zap.String("key", "value"))
}

func TestSync(t *testing.T) {
	resetLogger()

	if err := Sync(); err != nil {
		t.Errorf("Sync() with uninitialized logger error = %v, want nil", err)
	}

	Init(Config{Level: "info", Format: "json"})

	// Sync may fail on stdout in test environments; just verify no panic
	_ = Sync()
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		wantError bool
	}{
		{"valid debug", "debug", false},
		{"valid info", "info", false},
		{"valid warn", "warn", false},
		{"valid error", "error", false},
		{"invalid level", "invalid", true},
		{"empty level", "", false}, // empty defaults to info without error
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseLevel(tt.level)
			if (err != nil) != tt.wantError {
				t.Errorf("parseLevel(%q) error = %v, wantError = %v", tt.level, err, tt.wantError)
			}
		})
	}
}

func TestTextEncoder_EncodeEntry(t *testing.T) {
	enc := newTextEncoder(false)

	entry := zapcore.Entry{
		Level:   zapcore.InfoLevel,
		Time:    time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC),
		Message: "review completed",
	}
	fields := []zapcore.Field{
		zap.String("project", "ACME"),
		zap.Int("review_id", 42),
		zap.Bool("email_sent", true),
		zap.Duration("elapsed", 1500*time.Millisecond),
		zap.Error(errors.New("boom")),
	}

	buf, err := enc.EncodeEntry(entry, fields)
	if err != nil {
		t.Fatalf("EncodeEntry() error = %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"[2025-03-14 09:30:00]",
		"[INFO]",
		"review completed",
		"project=ACME",
		"review_id=42",
		"email_sent=true",
		"elapsed=1.5s",
		"error=boom",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("EncodeEntry() output missing %q, got %q", want, out)
		}
	}

	if strings.Contains(out, "\x1b[") {
		t.Errorf("non-color encoder emitted ANSI codes: %q", out)
	}
}

func TestTextEncoder_Color(t *testing.T) {
	enc := newTextEncoder(true)

	buf, err := enc.EncodeEntry(zapcore.Entry{
		Level:   zapcore.WarnLevel,
		Time:    time.Now(),
		Message: "queue nearly full",
	}, nil)
	if err != nil {
		t.Fatalf("EncodeEntry() error = %v", err)
	}

	if !strings.Contains(buf.String(), "\x1b[33m[WARN]\x1b[0m") {
		t.Errorf("color encoder missing colored level tag: %q", buf.String())
	}
}

func TestConfigDefaults(t *testing.T) {
	resetLogger()

	logPath := filepath.Join(t.TempDir(), "defaults.log")
	cfg := Config{
		Level:  "info",
		Format: "json",
		File:   logPath,
		// MaxSize, MaxAge, MaxBackups unset - should use defaults
	}

	if err := Init(cfg); err != nil {
		t.Fatalf("Init() with defaults error = %v, want nil", err)
	}
	defer os.Remove(logPath)
}
