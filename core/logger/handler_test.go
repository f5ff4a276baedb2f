package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func render(t *testing.T, format logFormat, ctx context.Context, event string, attrs ...slog.Attr) string {
	t.Helper()
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	h := newStructuredHandler(handlerConfig{level: slog.LevelDebug, writer: aw, format: format})
	LogEvent(ctx, slog.New(h).With("component", "flow"), slog.LevelInfo, event, attrs...)
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return strings.TrimSpace(buf.String())
}

func TestKVLineOrder(t *testing.T) {
	ctx := WithUpdateMeta(WithRID(context.Background(), "plain-rid"), 42, 7, 9)
	line := render(t, formatKV, ctx, "flow.transition",
		slog.String("category", "Work"),
		slog.String("state", "writing_message"),
		slog.String("status", "OK"),
	)
	want := []string{"ts=", "level=INFO", "component=flow", "event=flow.transition", "status=ok",
		"rid=plain-rid", "update_id=42", "user_id=7", "chat_id=9", "state=writing_message", "category=Work"}
	tokens := strings.Split(line, " ")
	if len(tokens) < len(want) {
		t.Fatalf("line = %s", line)
	}
	for i, prefix := range want {
		if !strings.HasPrefix(tokens[i], prefix) {
			t.Fatalf("token %d = %s, want prefix %s (%s)", i, tokens[i], prefix, line)
		}
	}
}

func TestJSONLine(t *testing.T) {
	ctx := WithRID(context.Background(), BuildRID(12, 34, 56))
	line := render(t, formatJSON, ctx, "send.fail",
		slog.String("err", "boom"),
		slog.Duration("elapsed", 1500*time.Millisecond),
		slog.Group("db", slog.String("host", "pg")),
	)
	var got map[string]any
	if err := json.Unmarshal([]byte(line), &got); err != nil {
		t.Fatalf("invalid json %s: %v", line, err)
	}
	if got["rid"] != CompactRID(BuildRID(12, 34, 56)) || got["rid_full"] != "12:34:56" {
		t.Fatalf("rid fields: %v / %v", got["rid"], got["rid_full"])
	}
	if got["elapsed_ms"] != float64(1500) || got["db.host"] != "pg" {
		t.Fatalf("line = %s", line)
	}
	if !strings.HasPrefix(line, `{"ts":`) {
		t.Fatalf("ts not first: %s", line)
	}
}

func TestUserTextIsCapped(t *testing.T) {
	long := strings.Repeat("я", maxTextRunes+10) + "\x07"
	line := render(t, formatJSON, context.Background(), "flow.ignored", slog.String("text", long))
	var got map[string]any
	if err := json.Unmarshal([]byte(line), &got); err != nil {
		t.Fatal(err)
	}
	if n := len([]rune(got["text"].(string))); n != maxTextRunes {
		t.Fatalf("text runes = %d", n)
	}
}

func TestEmptyAndUnknownFieldsDropped(t *testing.T) {
	line := render(t, formatKV, context.Background(), "x",
		slog.String("err", ""),
		slog.String("outcome", "weird"),
	)
	if strings.Contains(line, "err=") || strings.Contains(line, "outcome=") || strings.Contains(line, "rid=") {
		t.Fatalf("line = %s", line)
	}
}

func TestRatioSampler(t *testing.T) {
	s := newRatioSampler(1, 3)
	var passed int
	for i := 0; i < 9; i++ {
		if s.Allow() {
			passed++
		}
	}
	if passed != 3 {
		t.Fatalf("passed = %d, want 3", passed)
	}
	s.Set(0, 0)
	if !s.Allow() {
		t.Fatal("disabled sampler dropped an event")
	}

	for raw, want := range map[string][2]int{"1/50": {1, 50}, "10": {1, 10}, "x": {0, 0}, "": {0, 0}} {
		num, den := parseRatio(raw)
		if num != want[0] || den != want[1] {
			t.Errorf("parseRatio(%q) = %d/%d", raw, num, den)
		}
	}
}

func TestContextMeta(t *testing.T) {
	ctx := WithHandler(WithUpdateMeta(WithRID(context.Background(), "r"), 1, 2, 3), "text")
	if RIDFrom(ctx) != "r" || UpdateIDFrom(ctx) != 1 || UserIDFrom(ctx) != 2 || ChatIDFrom(ctx) != 3 || HandlerFrom(ctx) != "text" {
		t.Fatal("metadata lost")
	}
	if RIDFrom(context.Background()) != "" || UserIDFrom(context.TODO()) != 0 {
		t.Fatal("empty context returned metadata")
	}
	if got := CompactRID("100:-5:35"); got != "2s.-5.z" {
		t.Fatalf("CompactRID = %q", got)
	}
	if got := SanitizeLimit("a\x00b\tc", 10); got != "ab\tc" {
		t.Fatalf("SanitizeLimit = %q", got)
	}
}

func TestWriterDiscardsAfterClose(t *testing.T) {
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 16)
	if err := aw.Write([]byte("one\n")); err != nil {
		t.Fatal(err)
	}
	if err := aw.Flush(); err != nil {
		t.Fatal(err)
	}
	if err := aw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := aw.Write([]byte("two\n")); err == nil {
		t.Fatal("write after close accepted")
	}
	if buf.String() != "one\n" {
		t.Fatalf("buf = %q", buf.String())
	}
}
