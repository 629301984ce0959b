package app

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestGuardHandler_Handle(t *testing.T) {
	ts := time.Date(2024, 6, 15, 14, 30, 45, 0, time.UTC)

	tests := []struct {
		name    string
		opID    string
		level   slog.Level
		message string
		attrs   []slog.Attr
		want    string
	}{
		{
			name:    "basic info message",
			opID:    "snapshot-20240615T143045Z",
			level:   slog.LevelInfo,
			message: "snapshot created",
			want:    "2024-06-15T14:30:45Z\tINFO\tsnapshot-20240615T143045Z\tsnapshot created\n",
		},
		{
			name:    "warn level",
			opID:    "protect-op",
			level:   slog.LevelWarn,
			message: "suspicious activity detected",
			want:    "2024-06-15T14:30:45Z\tWARN\tprotect-op\tsuspicious activity detected\n",
		},
		{
			name:    "with record attrs",
			opID:    "restore-op",
			level:   slog.LevelInfo,
			message: "file restored",
			attrs:   []slog.Attr{slog.String("path", "/srv/records/a.csv"), slog.Int("chunks", 3)},
			want:    "2024-06-15T14:30:45Z\tINFO\trestore-op\tfile restored\tpath=/srv/records/a.csv\tchunks=3\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := &guardHandler{w: &buf, opID: tt.opID}

			r := slog.NewRecord(ts, tt.level, tt.message, 0)
			for _, a := range tt.attrs {
				r.AddAttrs(a)
			}

			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}

			if got := buf.String(); got != tt.want {
				t.Errorf("Handle() output =\n%q\nwant:\n%q", got, tt.want)
			}
		})
	}
}

func TestGuardHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := &guardHandler{w: &buf, opID: "op-1"}

	// Add pre-set attrs
	h2 := h.WithAttrs([]slog.Attr{slog.String("component", "chunkstore")}).(*guardHandler)

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := slog.NewRecord(ts, slog.LevelInfo, "chunk stored", 0)
	r.AddAttrs(slog.String("hash", "ab12"))

	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "component=chunkstore") {
		t.Errorf("expected pre-set attr component=chunkstore, got: %q", got)
	}
	if !strings.Contains(got, "hash=ab12") {
		t.Errorf("expected record attr hash=ab12, got: %q", got)
	}
}

func TestGuardHandler_WithAttrs_doesNotMutateOriginal(t *testing.T) {
	var buf bytes.Buffer
	h := &guardHandler{w: &buf, opID: "op-1", attrs: []slog.Attr{slog.String("a", "1")}}

	h2 := h.WithAttrs([]slog.Attr{slog.String("b", "2")}).(*guardHandler)

	if len(h.attrs) != 1 {
		t.Errorf("original handler attrs modified: got %d, want 1", len(h.attrs))
	}
	if len(h2.attrs) != 2 {
		t.Errorf("new handler attrs: got %d, want 2", len(h2.attrs))
	}
}

func TestGuardHandler_Enabled(t *testing.T) {
	h := &guardHandler{}
	// All levels should be enabled
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if !h.Enabled(context.Background(), level) {
			t.Errorf("Enabled(%v) = false, want true", level)
		}
	}
}

func TestNewLogger(t *testing.T) {
	dir := t.TempDir()

	logger, f, err := newLogger(dir, "test-op")
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	defer f.Close()

	if logger == nil {
		t.Fatal("newLogger() returned nil logger")
	}
	if f == nil {
		t.Fatal("newLogger() returned nil file")
	}
}
