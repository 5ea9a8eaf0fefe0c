package linking

import (
	"errors"
	"net/http"

	goerrors "github.com/goliatone/go-errors"

	"banklink/internal/aggregator"
)

const (
	TextPopupBlocked = "POPUP_BLOCKED"

	MsgPopupBlocked  = "Popup blocked. Please allow popups for this site."
	MsgNoCode        = "No authorization code received"
	MsgUnknown       = "An unknown error occurred"
	MsgLinkTimedOut  = "Bank linking timed out"
	MsgAuthorization = "Authorization was not granted"
)

var (
	// ErrStateMismatch marks a callback that does not belong to the pending
	// attempt. It is never shown to the user.
	ErrStateMismatch = errors.New("link state mismatch")
	// ErrContractViolation is returned when the backend echoes state or nonce
	// values other than the ones it was given.
	ErrContractViolation = errors.New("backend altered link state")
)

func popupBlockedError(source error) error {
	return goerrors.Wrap(source, goerrors.CategoryBadInput, MsgPopupBlocked).
		WithCode(http.StatusConflict).
		WithTextCode(TextPopupBlocked)
}

func initiationError(source error) error {
	return goerrors.Wrap(source, goerrors.CategoryExternal, aggregator.MsgLinkInitiationFailed).
		WithCode(http.StatusBadGateway).
		WithTextCode(aggregator.TextLinkInitiationFailed)
}

// IsPopupBlocked reports whether err means the authorization window could not open.
func IsPopupBlocked(err error) bool {
	return aggregator.HasTextCode(err, TextPopupBlocked)
}
