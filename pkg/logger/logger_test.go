package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestGetLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := getLogLevel(in); got != want {
			t.Errorf("getLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewWithLevel(t *testing.T) {
	l := NewWithLevel("error")
	if l.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("warn enabled on an error logger")
	}
	if !l.Enabled(context.Background(), slog.LevelError) {
		t.Error("error disabled on an error logger")
	}
}

func TestLogPaymentCancelled(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithHandler(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	l.WithUserID("alice").LogPaymentCancelled(context.Background(), 7, 12, 10000, 15000, "alice")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["msg"] != "Payment Cancelled" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["payment_no"] != float64(7) || entry["remaining"] != float64(15000) {
		t.Errorf("unexpected fields: %v", entry)
	}
	if entry["user_id"] != "alice" {
		t.Errorf("user_id = %v", entry["user_id"])
	}
}
