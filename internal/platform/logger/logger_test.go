package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

// Init is once-only for the whole process, so all tests share one buffer
var buf bytes.Buffer

func initShared() {
	Init(Options{Level: "debug", Format: "json", Service: "obsledger", Writer: &buf})
}

func TestContextFields(t *testing.T) {
	initShared()
	buf.Reset()

	ctx := WithRequest(context.Background(), "req-1")
	ctx = WithNight(ctx, "JCMT", "2026-08-01")

	C(ctx).Info().Msg("night processed")

	out := buf.String()
	for _, want := range []string{"req-1", "JCMT", "2026-08-01", "night processed"} {
		if !strings.Contains(out, want) {
			t.Fatalf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestNamedAddsComponent(t *testing.T) {
	initShared()
	buf.Reset()

	Named("accounting").Info().Msg("pass complete")
	if !strings.Contains(buf.String(), "accounting") {
		t.Fatalf("expected component field, got %s", buf.String())
	}
}

func TestParseLevelFallback(t *testing.T) {
	if parseLevel("nonsense").String() != "info" {
		t.Fatalf("unknown level should fall back to info")
	}
	if parseLevel("WARN").String() != "warn" {
		t.Fatalf("level parsing should be case insensitive")
	}
}
