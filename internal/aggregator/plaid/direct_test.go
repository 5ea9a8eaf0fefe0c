package plaid

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"banklink/internal/aggregator"
)

func newTestDirect(t *testing.T, handler http.HandlerFunc) *Direct {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	d, err := NewDirect(DirectConfig{
		ClientID:   "client-id",
		Secret:     "secret",
		BaseURL:    srv.URL,
		ClientName: "banklink-test",
		UserID:     "user-42",
		HTTPClient: srv.Client(),
	}, aggregator.DefaultRetryPolicy())
	if err != nil {
		t.Fatalf("NewDirect() error = %v", err)
	}
	return d
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func TestDirectCreateLinkTokenSendsUser(t *testing.T) {
	var got struct {
		ClientName   string   `json:"client_name"`
		Language     string   `json:"language"`
		CountryCodes []string `json:"country_codes"`
		Products     []string `json:"products"`
		User         struct {
			ClientUserID string `json:"client_user_id"`
		} `json:"user"`
	}
	var secret string

	d := newTestDirect(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/link/token/create" {
			t.Errorf("path = %s", r.URL.Path)
		}
		secret = r.Header.Get("PLAID-SECRET")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"link_token": "link-sandbox-abc",
			"expiration": "2026-10-19T12:00:00Z",
			"request_id": "req-1",
		})
	})

	token, err := d.CreateLinkToken(context.Background())
	if err != nil {
		t.Fatalf("CreateLinkToken() error = %v", err)
	}
	if token != "link-sandbox-abc" {
		t.Errorf("token = %q", token)
	}
	if got.User.ClientUserID != "user-42" {
		t.Errorf("client_user_id = %q", got.User.ClientUserID)
	}
	if got.ClientName != "banklink-test" || got.Language != "en" {
		t.Errorf("client_name = %q, language = %q", got.ClientName, got.Language)
	}
	if len(got.CountryCodes) != 1 || got.CountryCodes[0] != "US" {
		t.Errorf("country_codes = %v", got.CountryCodes)
	}
	if len(got.Products) != 1 || got.Products[0] != "transactions" {
		t.Errorf("products = %v", got.Products)
	}
	if secret != "secret" {
		t.Errorf("PLAID-SECRET = %q", secret)
	}
}

func TestDirectCreateLinkTokenError(t *testing.T) {
	d := newTestDirect(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error_type":      "INVALID_REQUEST",
			"error_code":      "INVALID_FIELD",
			"error_message":   "client_name must be set",
			"display_message": nil,
			"request_id":      "req-2",
		})
	})

	_, err := d.CreateLinkToken(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !aggregator.HasTextCode(err, "INVALID_FIELD") {
		t.Errorf("text code = %q", aggregator.TextCode(err))
	}
	if got := aggregator.UserMessage(err, "fallback"); got != "client_name must be set" {
		t.Errorf("message = %q", got)
	}
}

func TestDirectExchangePublicToken(t *testing.T) {
	d := newTestDirect(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/item/public_token/exchange" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var body struct {
			PublicToken string `json:"public_token"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": "access-" + body.PublicToken,
			"item_id":      "item-1",
			"request_id":   "req-3",
		})
	})

	tokens, err := d.ExchangePublicToken(context.Background(), "public-sandbox-1")
	if err != nil {
		t.Fatalf("ExchangePublicToken() error = %v", err)
	}
	if tokens.AccessToken != "access-public-sandbox-1" {
		t.Errorf("access token = %q", tokens.AccessToken)
	}
}
