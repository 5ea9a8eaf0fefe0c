package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Component: ComponentLinking, Handler: slog.NewTextHandler(&buf, nil)})
	l.Info("started", FieldProvider, "truelayer")

	out := buf.String()
	if !strings.Contains(out, "component=linking") || !strings.Contains(out, "provider=truelayer") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestWithComponentRelabelsOnce(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Handler: slog.NewTextHandler(&buf, nil)})
	if l.Component() != ComponentApp {
		t.Fatalf("default component = %q", l.Component())
	}

	l.WithComponent(ComponentSpending).With(FieldProvider, "plaid").Warn("fetch failed")
	out := buf.String()
	if n := strings.Count(out, "component="); n != 1 {
		t.Fatalf("component logged %d times in %q", n, out)
	}
	if !strings.Contains(out, "component=spending") || !strings.Contains(out, "provider=plaid") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestDiscardComponent(t *testing.T) {
	if got := Discard().Component(); got != ComponentApp {
		t.Errorf("Discard() component = %q", got)
	}
	if got := Discard(ComponentRelay).Component(); got != ComponentRelay {
		t.Errorf("Discard(relay) component = %q", got)
	}
	if got := Discard().WithComponent(ComponentHTTP).Component(); got != ComponentHTTP {
		t.Errorf("relabelled component = %q", got)
	}
}

func TestLinkOutcomeOmitsSecrets(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Handler: slog.NewTextHandler(&buf, nil)}))
	sl.LogLinkOutcome(context.Background(), "truelayer", "popup", "error", errors.New("boom"), "EXCHANGE_FAILED")

	out := buf.String()
	for _, want := range []string{"outcome=error", "text_code=EXCHANGE_FAILED", "level=WARN"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %q", want, out)
		}
	}
}

func TestFromContextFallsBack(t *testing.T) {
	if FromContext(context.Background()).Component() != "unknown" {
		t.Fatal("expected fallback logger")
	}

	l := Discard()
	ctx := context.WithValue(context.Background(), LoggerContextKey, l)
	if FromContext(ctx) != l {
		t.Fatal("context logger not returned")
	}
}

func TestLogHTTPEndOmitsQuery(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Handler: slog.NewTextHandler(&buf, nil)}))
	req := httptest.NewRequest(http.MethodGet, "/callback?code=secret-code&state=s", nil)
	sl.LogHTTPEnd(context.Background(), req, http.StatusNotFound, 3, "203.0.113.1")

	out := buf.String()
	if strings.Contains(out, "secret-code") {
		t.Fatalf("query leaked into log: %q", out)
	}
	for _, want := range []string{"path=/callback", "status_code=404", "level=WARN"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %q", want, out)
		}
	}
}
