package logger

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func newTestHandler(t *testing.T, format logFormat) (*slog.Logger, *asyncWriter, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	h := newStructuredHandler(handlerConfig{
		level:    slog.LevelInfo,
		writer:   aw,
		format:   format,
		keyOrder: append([]string(nil), defaultKeyOrder...),
	})
	return slog.New(h), aw, buf
}

func closeAndRead(t *testing.T, aw *asyncWriter, buf *bytes.Buffer) string {
	t.Helper()
	if err := aw.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return strings.TrimSpace(buf.String())
}

func TestStructuredHandlerKVOrder(t *testing.T) {
	log, aw, buf := newTestHandler(t, formatKV)
	ctx := WithRID(context.Background(), "rid-123")
	ctx = WithUpdateMeta(ctx, 42, 7, 9)

	LogEvent(ctx, log.With("component", "app"), slog.LevelInfo, "test.event",
		slog.String("status", "ok"),
		slog.String("cause", "unit"),
	)

	line := closeAndRead(t, aw, buf)
	tokens := strings.Split(line, " ")
	expected := []string{"ts=", "level=INFO", "component=app", "event=test.event", "status=ok", "rid=rid-123", "update_id=42", "user_id=7", "chat_id=9"}
	if len(tokens) < len(expected) {
		t.Fatalf("unexpected token count: %d (%s)", len(tokens), line)
	}
	for i, prefix := range expected {
		if !strings.HasPrefix(tokens[i], prefix) {
			t.Fatalf("token %d = %s, expected prefix %s", i, tokens[i], prefix)
		}
	}
}

func TestStructuredHandlerJSONOrder(t *testing.T) {
	log, aw, buf := newTestHandler(t, formatJSON)
	ctx := WithSessionID(WithRID(context.Background(), "rid-json"), "10:20")

	LogEvent(ctx, log.With("component", "intake"), slog.LevelError, "intake.submit",
		slog.String("status", "FAIL"),
		slog.String("err", "boom"),
		slog.String("phase_from", "entering_phone"),
	)

	line := closeAndRead(t, aw, buf)
	if !strings.HasPrefix(line, "{") {
		t.Fatalf("expected JSON, got %s", line)
	}
	prefixes := []string{`{"ts":`, `"level":"ERROR"`, `"component":"intake"`, `"event":"intake.submit"`, `"status":"fail"`, `"rid":"rid-json"`, `"session_id":"10:20"`, `"phase_from":"entering_phone"`, `"err":"boom"`}
	pos := -1
	for _, pref := range prefixes {
		idx := strings.Index(line, pref)
		if idx == -1 || idx < pos {
			t.Fatalf("prefix %s not found in order within %s", pref, line)
		}
		pos = idx
	}
}

func TestStructuredHandlerCompactRID(t *testing.T) {
	for _, tc := range []struct {
		name     string
		format   logFormat
		wantFull bool
	}{
		{name: "kv", format: formatKV},
		{name: "json", format: formatJSON, wantFull: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			log, aw, buf := newTestHandler(t, tc.format)
			raw := "123:456:789"
			LogEvent(WithRID(context.Background(), raw), log, slog.LevelInfo, "rid.test")

			line := closeAndRead(t, aw, buf)
			compact := CompactRID(raw)
			if !strings.Contains(line, compact) {
				t.Fatalf("expected compact rid %s, got %s", compact, line)
			}
			if got := strings.Contains(line, "rid_full"); got != tc.wantFull {
				t.Fatalf("rid_full present = %v, want %v: %s", got, tc.wantFull, line)
			}
		})
	}
}

func TestStructuredHandlerDurationAndLevel(t *testing.T) {
	log, aw, buf := newTestHandler(t, formatKV)
	LogEvent(context.Background(), log, slog.LevelDebug, "dropped")
	LogEvent(context.Background(), log, slog.LevelInfo, "kept",
		slog.Duration("duration", 1500*time.Microsecond),
		slog.String("outcome", "weird"),
	)

	line := closeAndRead(t, aw, buf)
	if strings.Contains(line, "dropped") {
		t.Fatalf("debug line should be filtered: %s", line)
	}
	if !strings.Contains(line, "duration_ms=2") {
		t.Fatalf("expected rounded duration_ms, got %s", line)
	}
	if strings.Contains(line, "outcome=") {
		t.Fatalf("unknown outcome should be dropped: %s", line)
	}
}

func TestCompactRIDPassthrough(t *testing.T) {
	if got := CompactRID("not-a-rid"); got != "not-a-rid" {
		t.Fatalf("CompactRID = %q", got)
	}
	if got := CompactRID("35:36:0"); got != "z.10.0" {
		t.Fatalf("CompactRID = %q", got)
	}
}

func TestRatioSampler(t *testing.T) {
	s := newRatioSampler(1, 3)
	var allowed int
	for i := 0; i < 9; i++ {
		if s.Allow() {
			allowed++
		}
	}
	if allowed != 3 {
		t.Fatalf("allowed = %d, want 3", allowed)
	}

	if num, den := parseRatioSpec("2/5"); num != 2 || den != 5 {
		t.Fatalf("parseRatioSpec(2/5) = %d/%d", num, den)
	}
	if num, den := parseRatioSpec("10"); num != 1 || den != 10 {
		t.Fatalf("parseRatioSpec(10) = %d/%d", num, den)
	}
	s.Set(0, 0)
	if !s.Allow() {
		t.Fatal("disabled sampler should allow everything")
	}
}

func TestLogEventWithoutLoggerIsNoop(t *testing.T) {
	Info(context.Background(), "intake", "noop", slog.String("k", "v"))
}
