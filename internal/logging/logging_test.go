package logging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestNewDefaults(t *testing.T) {
	l := New(Options{})
	defer l.Close() //nolint:errcheck

	if l.Logger == nil {
		t.Fatal("expected non-nil logger")
	}
	if l.Level() != "info" {
		t.Errorf("expected level info, got %s", l.Level())
	}
}

func TestSetLevel(t *testing.T) {
	l := New(Options{Level: "info", Format: "json"})
	defer l.Close() //nolint:errcheck

	if !l.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("expected info to be enabled")
	}
	if l.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected debug to be disabled")
	}

	l.SetLevel("debug")
	if !l.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected debug to be enabled after SetLevel")
	}

	l.SetLevel("error")
	if l.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("expected info to be disabled when level is error")
	}
}

func TestFileOutput(t *testing.T) {
	dir := t.TempDir()
	l := New(Options{Level: "info", Format: "json", Dir: dir})

	l.Info("hello from test")

	if err := l.Close(); err != nil {
		t.Fatalf("closing logger: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "cantata.log"))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected log file to contain data")
	}
}

func TestCloseWithoutFile(t *testing.T) {
	l := New(Options{})
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestValidLevel(t *testing.T) {
	for _, l := range []string{"debug", "info", "warn", "error"} {
		if !ValidLevel(l) {
			t.Errorf("expected %q to be valid", l)
		}
	}
	for _, l := range []string{"", "trace", "fatal", "DEBUG"} {
		if ValidLevel(l) {
			t.Errorf("expected %q to be invalid", l)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in  string
		out slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"unknown", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.out {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.out)
		}
	}
}

func TestFormatLevel(t *testing.T) {
	tests := []struct {
		in  slog.Level
		out string
	}{
		{slog.LevelDebug, "debug"},
		{slog.LevelInfo, "info"},
		{slog.LevelWarn, "warn"},
		{slog.LevelError, "error"},
	}
	for _, tt := range tests {
		if got := FormatLevel(tt.in); got != tt.out {
			t.Errorf("FormatLevel(%v) = %q, want %q", tt.in, got, tt.out)
		}
	}
}
