package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"banklink/internal/aggregator"
	"banklink/internal/core"
	"banklink/internal/linking"
	"banklink/internal/relay"
	"banklink/internal/storage"
)

const testOrigin = "http://localhost:8080"

type fakeAuth struct{}

func (fakeAuth) AuthURL(_ context.Context, state, _ string) (aggregator.AuthURL, error) {
	return aggregator.AuthURL{URL: "https://auth.example/authorize?state=" + state}, nil
}

func (fakeAuth) Exchange(_ context.Context, code string) (core.AuthTokens, error) {
	if code == "bad" {
		return core.AuthTokens{}, aggregator.BackendError("Authorization code expired", aggregator.TextExchangeFailed, http.StatusBadRequest, nil)
	}
	return core.AuthTokens{AccessToken: "access-" + code, RefreshToken: "refresh"}, nil
}

type linkHarness struct {
	sessions *storage.SessionStore
	handler  http.Handler
	failures chan string
	attempt  linking.Attempt
}

func newLinkHarness(t *testing.T) *linkHarness {
	t.Helper()
	sessions := storage.NewSessionStore(storage.NewMemoryStore())
	r := relay.NewMemory()
	callback := linking.NewCallbackHandler(linking.CallbackConfig{
		Backend: fakeAuth{}, Sessions: sessions, Relay: r, Origin: testOrigin,
	})
	failures := make(chan string, 1)
	srv, err := callbackServer(testOrigin, callback, failures)
	if err != nil {
		t.Fatalf("callbackServer() error = %v", err)
	}

	initiator := linking.NewInitiator(linking.InitiatorConfig{
		Backend:  fakeAuth{},
		Sessions: sessions,
		Relay:    r,
		Opener:   linking.OpenerFunc(func(context.Context, string) error { return nil }),
		Origin:   testOrigin,
	})
	attempt, err := initiator.BeginLink(context.Background(), linking.ModePopup)
	if err != nil {
		t.Fatalf("BeginLink() error = %v", err)
	}
	t.Cleanup(func() { attempt.Pending.Close() })

	return &linkHarness{sessions: sessions, handler: srv.Handler, failures: failures, attempt: attempt}
}

func (h *linkHarness) state(t *testing.T) string {
	t.Helper()
	sess, ok, err := h.sessions.LinkSession(context.Background())
	if err != nil || !ok {
		t.Fatalf("expected a pending session: %v", err)
	}
	return sess.State
}

func (h *linkHarness) callback(params url.Values) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/callback?"+params.Encode(), nil))
	return rr
}

func TestAwaitLinkStopsOnCallbackFailure(t *testing.T) {
	tests := []struct {
		name    string
		params  func(state string) url.Values
		wantMsg string
	}{
		{
			name:    "missing code",
			params:  func(state string) url.Values { return url.Values{"state": {state}} },
			wantMsg: linking.MsgNoCode,
		},
		{
			name: "provider error",
			params: func(state string) url.Values {
				return url.Values{"state": {state}, "error": {"access_denied"}, "error_description": {"User cancelled"}}
			},
			wantMsg: "User cancelled",
		},
		{
			name:    "exchange rejected",
			params:  func(state string) url.Values { return url.Values{"state": {state}, "code": {"bad"}} },
			wantMsg: "Authorization code expired",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newLinkHarness(t)

			rr := h.callback(tt.params(h.state(t)))
			if rr.Code != http.StatusBadGateway {
				t.Fatalf("callback status = %d", rr.Code)
			}
			if !strings.Contains(rr.Body.String(), tt.wantMsg) {
				t.Errorf("callback body = %q, want %q", rr.Body.String(), tt.wantMsg)
			}

			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			start := time.Now()
			_, err := awaitLink(ctx, h.attempt.Pending, h.failures)

			var failed *linkFailure
			if !errors.As(err, &failed) {
				t.Fatalf("awaitLink() error = %v, want a callback failure", err)
			}
			if failed.message != tt.wantMsg {
				t.Errorf("message = %q, want %q", failed.message, tt.wantMsg)
			}
			if elapsed := time.Since(start); elapsed > time.Second {
				t.Errorf("awaitLink took %v after the callback failed", elapsed)
			}
		})
	}
}

func TestAwaitLinkDeliversTokens(t *testing.T) {
	h := newLinkHarness(t)

	rr := h.callback(url.Values{"state": {h.state(t)}, "code": {"ok"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("callback status = %d", rr.Code)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	tokens, err := awaitLink(ctx, h.attempt.Pending, h.failures)
	if err != nil {
		t.Fatalf("awaitLink() error = %v", err)
	}
	if tokens.AccessToken != "access-ok" {
		t.Errorf("access token = %q", tokens.AccessToken)
	}
}

func TestCallbackForeignStateIsNotAFailure(t *testing.T) {
	h := newLinkHarness(t)

	rr := h.callback(url.Values{"state": {"someone-else"}, "code": {"ok"}})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("callback status = %d", rr.Code)
	}
	select {
	case msg := <-h.failures:
		t.Fatalf("unexpected failure %q", msg)
	default:
	}
}

func TestCallbackServerAddr(t *testing.T) {
	tests := []struct {
		origin  string
		want    string
		wantErr bool
	}{
		{"http://localhost:8080", "localhost:8080", false},
		{"http://127.0.0.1", "127.0.0.1:80", false},
		{"localhost", "", true},
	}

	h := linking.NewCallbackHandler(linking.CallbackConfig{})
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			srv, err := callbackServer(tt.origin, h, make(chan string, 1))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && srv.Addr != tt.want {
				t.Errorf("addr = %q, want %q", srv.Addr, tt.want)
			}
		})
	}
}

func TestWriteToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	if err := writeToken(path, core.AuthTokens{AccessToken: "a", RefreshToken: "r"}); err != nil {
		t.Fatalf("writeToken() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}

	b, _ := os.ReadFile(path)
	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		t.Fatal(err)
	}
	if tok.AccessToken != "a" || tok.RefreshToken != "r" || tok.TokenType != "Bearer" {
		t.Errorf("token = %+v", tok)
	}
}
