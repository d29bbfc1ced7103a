package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestFromContextAttrs(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	SetupWriter(&buf, "recommender", "debug", "json")

	ctx := WithRequestID(context.Background(), "req-42")
	ctx = With(ctx, "catalog_version", "abc")
	ctx = With(ctx, "titles", 2)
	FromContext(ctx).Info("hello")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decoding log line: %v", err)
	}
	want := map[string]any{
		"service":         "recommender",
		"request_id":      "req-42",
		"catalog_version": "abc",
		"titles":          float64(2),
	}
	for k, v := range want {
		if record[k] != v {
			t.Errorf("%s = %v, want %v", k, record[k], v)
		}
	}
	if RequestID(context.Background()) != "" {
		t.Error("RequestID on empty context should be empty")
	}
}

func TestWithDoesNotLeakIntoParent(t *testing.T) {
	parent := With(context.Background(), "a", 1)
	_ = With(parent, "b", 2)
	if attrs, _ := parent.Value(attrsKey{}).([]any); len(attrs) != 2 {
		t.Errorf("parent attrs = %v, want [a 1]", attrs)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
