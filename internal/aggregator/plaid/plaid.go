// Package plaid provides the Plaid data source, either through the app's
// backend or directly through the Plaid API.
package plaid

import (
	"context"
	"encoding/json"
	"strings"

	"banklink/internal/aggregator"
	"banklink/internal/core"
)

const productNotReady = "PRODUCT_NOT_READY"

// Linker creates Link tokens and turns public tokens into access tokens.
type Linker interface {
	CreateLinkToken(ctx context.Context) (string, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (core.AuthTokens, error)
}

// Source is a complete Plaid integration.
type Source interface {
	Linker
	aggregator.DataSource
}

// APIError is Plaid's error body.
type APIError struct {
	ErrorType      string  `json:"error_type"`
	ErrorCode      string  `json:"error_code"`
	ErrorMessage   string  `json:"error_message"`
	DisplayMessage *string `json:"display_message"`
}

// Message prefers the user-facing display message.
func (e APIError) Message(fallback string) string {
	if e.DisplayMessage != nil && strings.TrimSpace(*e.DisplayMessage) != "" {
		return *e.DisplayMessage
	}
	if strings.TrimSpace(e.ErrorMessage) != "" {
		return e.ErrorMessage
	}
	return fallback
}

func parseAPIError(body []byte) (APIError, bool) {
	var e APIError
	if json.Unmarshal(body, &e) != nil || e.ErrorCode == "" {
		return APIError{}, false
	}
	return e, true
}

// toError maps a Plaid error onto the shared taxonomy. The Plaid error code
// becomes the text code so PRODUCT_NOT_READY stays recognisable.
func toError(e APIError, status int, fallback string) error {
	code := e.ErrorCode
	if code == "" {
		code = aggregator.TextBackendUnavailable
	}
	return aggregator.BackendError(e.Message(fallback), code, status, map[string]any{
		"error_type": e.ErrorType,
		"status":     status,
	})
}

// IsProductNotReady reports whether Plaid is still preparing the data.
func IsProductNotReady(err error) bool {
	return aggregator.HasTextCode(err, productNotReady)
}
