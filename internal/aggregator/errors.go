package aggregator

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

// Text codes surfaced to the UI and logs.
const (
	TextLinkInitiationFailed = "LINK_INITIATION_FAILED"
	TextExchangeFailed       = "EXCHANGE_FAILED"
	TextBackendUnavailable   = "BACKEND_UNAVAILABLE"
	TextProductNotReady      = "PRODUCT_NOT_READY"
)

// Fallback messages used when the backend gives none.
const (
	MsgLinkInitiationFailed = "Failed to initiate bank linking"
	MsgExchangeFailed       = "Failed to exchange authorization code"
	MsgTransactionsFailed   = "Failed to fetch transactions"
)

// BackendError builds a rich error. message is shown to the user as is.
func BackendError(message, textCode string, status int, metadata map[string]any) error {
	err := goerrors.New(message, goerrors.CategoryExternal).
		WithCode(status).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// WrapBackendError wraps a transport failure.
func WrapBackendError(source error, message, textCode string) error {
	if source == nil {
		return BackendError(message, textCode, http.StatusBadGateway, nil)
	}
	return goerrors.Wrap(source, goerrors.CategoryExternal, message).
		WithCode(http.StatusBadGateway).
		WithTextCode(textCode)
}

// TextCode returns the rich text code carried by err, or "".
func TextCode(err error) string {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.TextCode
	}
	return ""
}

// HasTextCode reports whether err carries code.
func HasTextCode(err error, code string) bool {
	return err != nil && TextCode(err) == code
}

// UserMessage returns the human-readable message for err, falling back to
// fallback for errors that carry no rich message.
func UserMessage(err error, fallback string) string {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.Message != "" {
		return rich.Message
	}
	return fallback
}
