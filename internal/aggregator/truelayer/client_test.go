package truelayer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"banklink/internal/aggregator"
	"banklink/internal/core"
)

func newBackend(t *testing.T, routes map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for path, h := range routes {
		mux.HandleFunc(path, h)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestAuthURL(t *testing.T) {
	var got authRequest
	srv := newBackend(t, map[string]http.HandlerFunc{
		pathAuth: func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("method = %s", r.Method)
			}
			json.NewDecoder(r.Body).Decode(&got)
			writeJSON(w, http.StatusOK, map[string]string{"authUrl": "https://auth.truelayer.com/?x=1", "state": got.State})
		},
	})

	res, err := New(srv.URL, srv.Client()).AuthURL(context.Background(), "s", "n")
	if err != nil {
		t.Fatalf("AuthURL: %v", err)
	}
	if got.State != "s" || got.Nonce != "n" {
		t.Fatalf("backend received %+v", got)
	}
	if res.URL != "https://auth.truelayer.com/?x=1" || res.State != "s" || res.Nonce != "" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestAuthURLFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    any
		wantMsg string
	}{
		{"backend error verbatim", http.StatusBadRequest, map[string]string{"error": "Invalid redirect URI"}, "Invalid redirect URI"},
		{"generic fallback", http.StatusInternalServerError, map[string]string{}, aggregator.MsgLinkInitiationFailed},
		{"missing url", http.StatusOK, map[string]string{}, aggregator.MsgLinkInitiationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newBackend(t, map[string]http.HandlerFunc{
				pathAuth: func(w http.ResponseWriter, r *http.Request) { writeJSON(w, tt.status, tt.body) },
			})
			_, err := New(srv.URL, srv.Client()).AuthURL(context.Background(), "s", "n")
			if !aggregator.HasTextCode(err, aggregator.TextLinkInitiationFailed) {
				t.Fatalf("text code = %q (%v)", aggregator.TextCode(err), err)
			}
			if msg := aggregator.UserMessage(err, ""); msg != tt.wantMsg {
				t.Fatalf("message = %q, want %q", msg, tt.wantMsg)
			}
		})
	}

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()
		_, err := New(url, nil).AuthURL(context.Background(), "s", "n")
		if !aggregator.HasTextCode(err, aggregator.TextLinkInitiationFailed) {
			t.Fatalf("expected link initiation failure, got %v", err)
		}
	})
}

func TestExchange(t *testing.T) {
	srv := newBackend(t, map[string]http.HandlerFunc{
		pathExchange: func(w http.ResponseWriter, r *http.Request) {
			var req exchangeRequest
			json.NewDecoder(r.Body).Decode(&req)
			switch req.Code {
			case "good":
				writeJSON(w, http.StatusOK, map[string]string{"access_token": "at", "refresh_token": "rt"})
			case "no-token":
				writeJSON(w, http.StatusOK, map[string]string{})
			default:
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			}
		},
	})
	c := New(srv.URL, srv.Client())

	tokens, err := c.Exchange(context.Background(), "good")
	if err != nil || tokens.AccessToken != "at" || tokens.RefreshToken != "rt" {
		t.Fatalf("exchange = %+v, %v", tokens, err)
	}

	_, err = c.Exchange(context.Background(), "bad")
	if aggregator.UserMessage(err, "") != "invalid_grant" || !aggregator.HasTextCode(err, aggregator.TextExchangeFailed) {
		t.Fatalf("expected verbatim backend error, got %v", err)
	}

	_, err = c.Exchange(context.Background(), "no-token")
	if aggregator.UserMessage(err, "") != aggregator.MsgExchangeFailed {
		t.Fatalf("expected fallback, got %v", err)
	}
}

func TestTransactionsUsesFirstAccount(t *testing.T) {
	var askedAccount string
	srv := newBackend(t, map[string]http.HandlerFunc{
		pathAccounts: func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"results": []map[string]string{
				{"account_id": "acc-1", "display_name": "Current", "currency": "GBP"},
				{"account_id": "acc-2"},
			}})
		},
		pathTransactions: func(w http.ResponseWriter, r *http.Request) {
			var req transactionsRequest
			json.NewDecoder(r.Body).Decode(&req)
			askedAccount = req.AccountID
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"results":[
				{"transaction_id":"t1","timestamp":"2025-03-19T10:00:00+00:00","amount":-12.5,"description":"Coffee"},
				{"transaction_id":"t2","timestamp":"not a date","amount":-1,"description":"Broken"},
				{"transaction_id":"t3","timestamp":"2025-03-18T09:00:00Z","amount":"100.00","description":"Refund"}
			]}`))
		},
	})

	txs, err := New(srv.URL, srv.Client()).Transactions(context.Background(), core.AuthTokens{AccessToken: "at"})
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if askedAccount != "acc-1" {
		t.Fatalf("account = %q, want acc-1", askedAccount)
	}
	if len(txs) != 2 {
		t.Fatalf("got %d transactions, want 2", len(txs))
	}
	if txs[0].Amount.String() != "-12.5" || txs[0].AccountID != "acc-1" {
		t.Fatalf("unexpected first transaction %+v", txs[0])
	}
}

func TestTransactionsWithoutAccounts(t *testing.T) {
	srv := newBackend(t, map[string]http.HandlerFunc{
		pathAccounts: func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"results": []any{}})
		},
		pathTransactions: func(w http.ResponseWriter, r *http.Request) {
			t.Error("transactions must not be fetched without accounts")
		},
	})
	txs, err := New(srv.URL, srv.Client()).Transactions(context.Background(), core.AuthTokens{AccessToken: "at"})
	if err != nil || len(txs) != 0 {
		t.Fatalf("got %v, %v", txs, err)
	}
}
