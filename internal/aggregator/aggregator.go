// Package aggregator holds the contracts and shared plumbing for the bank
// data providers reached over HTTP.
package aggregator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"banklink/internal/core"
)

const maxResponseBodyBytes = 4 << 20

// HTTPDoer is the subset of *http.Client used by provider clients.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// AuthURL is the backend's answer to an authorization request.
type AuthURL struct {
	URL   string
	State string
	Nonce string
}

// AuthBackend drives the redirect/popup handshake.
type AuthBackend interface {
	AuthURL(ctx context.Context, state, nonce string) (AuthURL, error)
	Exchange(ctx context.Context, code string) (core.AuthTokens, error)
}

// DataSource returns the transactions of the linked account.
type DataSource interface {
	Transactions(ctx context.Context, tokens core.AuthTokens) ([]core.Transaction, error)
}

// Response is a decoded backend reply.
type Response struct {
	Status int
	Body   []byte
}

func (r Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Decode unmarshals the body into v.
func (r Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// ErrorField extracts a top-level "error" string from a JSON body, if any.
func (r Response) ErrorField() string {
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(r.Body, &body) != nil {
		return ""
	}
	return strings.TrimSpace(body.Error)
}

// Client issues JSON requests against a backend base URL.
type Client struct {
	BaseURL string
	HTTP    HTTPDoer
}

func NewClient(baseURL string, doer HTTPDoer) *Client {
	if doer == nil {
		doer = http.DefaultClient
	}
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: doer}
}

// Do sends payload as JSON (when non-nil) and reads the whole reply. Only
// transport failures are returned as errors; status handling is the caller's.
func (c *Client) Do(ctx context.Context, method, path string, payload any) (Response, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Response{}, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}
	return Response{Status: resp.StatusCode, Body: raw}, nil
}
