package linking

import (
	"context"
	"net/url"
	"strings"
	"time"

	"banklink/internal/aggregator"
	"banklink/internal/core"
	"banklink/internal/log"
	"banklink/internal/relay"
)

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
	// OutcomeAborted is a silent stop for callbacks that fail the state check.
	OutcomeAborted Outcome = "aborted"
)

// Delays before the callback surface leaves the page.
const (
	RedirectSuccessDelay = 1500 * time.Millisecond
	PopupSuccessDelay    = time.Second
	PopupErrorDelay      = 2 * time.Second
)

// Result is the terminal state of a callback.
type Result struct {
	Outcome Outcome
	Mode    Mode
	// Message is safe to show to the user.
	Message  string
	TextCode string
}

// Delay is how long the page stays before navigating home or closing. A
// redirect-mode error waits for the user instead.
func (r Result) Delay() time.Duration {
	switch {
	case r.Outcome == OutcomeAborted:
		return 0
	case r.Mode == ModePopup && r.Outcome == OutcomeSuccess:
		return PopupSuccessDelay
	case r.Mode == ModePopup:
		return PopupErrorDelay
	case r.Outcome == OutcomeSuccess:
		return RedirectSuccessDelay
	default:
		return 0
	}
}

type CallbackConfig struct {
	Backend  aggregator.AuthBackend
	Sessions SessionStore
	Relay    relay.Channel
	Sink     TokenSink
	Origin   string
	Logger   *log.Logger
}

// CallbackHandler completes handshakes when the provider hands control back.
type CallbackHandler struct {
	backend  aggregator.AuthBackend
	sessions SessionStore
	relay    relay.Channel
	sink     TokenSink
	origin   string
	logger   *log.Logger
	audit    *log.StructuredLogger
}

func NewCallbackHandler(cfg CallbackConfig) *CallbackHandler {
	if cfg.Logger == nil {
		cfg.Logger = log.Discard()
	}
	logger := cfg.Logger.WithComponent(log.ComponentLinking)
	return &CallbackHandler{
		backend:  cfg.Backend,
		sessions: cfg.Sessions,
		relay:    cfg.Relay,
		sink:     cfg.Sink,
		origin:   cfg.Origin,
		logger:   logger,
		audit:    log.NewStructuredLogger(logger),
	}
}

// HandleReturn validates the returned state, exchanges the code and delivers
// the tokens: to the sink in redirect mode, over the relay in popup mode.
func (h *CallbackHandler) HandleReturn(ctx context.Context, query url.Values, mode Mode) Result {
	code := strings.TrimSpace(query.Get("code"))
	state := query.Get("state")
	providerErr := strings.TrimSpace(query.Get("error"))

	sess, ok, err := h.sessions.LinkSession(ctx)
	if err != nil {
		return h.fail(ctx, mode, err, MsgUnknown, "")
	}
	if !ok || !sess.Matches(state) {
		// The pending attempt, if any, stays intact.
		h.logger.WarnContext(ctx, "Discarding callback with unexpected state",
			log.FieldLinkMode, string(mode),
			"stored_state_present", ok,
			log.FieldError, ErrStateMismatch)
		return Result{Outcome: OutcomeAborted, Mode: mode}
	}

	// The attempt concludes here whatever happens next.
	defer func() {
		if err := h.sessions.ClearLinkSession(context.WithoutCancel(ctx)); err != nil {
			h.logger.ErrorContext(ctx, "Failed to clear link session", log.FieldError, err)
		}
	}()

	if providerErr != "" {
		msg := MsgAuthorization
		if desc := strings.TrimSpace(query.Get("error_description")); desc != "" {
			msg = desc
		}
		return h.fail(ctx, mode, nil, msg, providerErr)
	}
	if code == "" {
		return h.fail(ctx, mode, nil, MsgNoCode, "")
	}

	tokens, err := h.backend.Exchange(ctx, code)
	if err != nil {
		return h.fail(ctx, mode, err, aggregator.UserMessage(err, aggregator.MsgExchangeFailed), aggregator.TextCode(err))
	}

	if mode == ModePopup {
		err = h.relay.Send(ctx, relay.Message{
			Type:         relay.TypeAuthSuccess,
			Origin:       h.origin,
			AccessToken:  tokens.AccessToken,
			RefreshToken: tokens.RefreshToken,
		})
	} else if h.sink != nil {
		err = h.sink.StoreTokens(ctx, tokens)
	}
	if err != nil {
		return h.fail(ctx, mode, err, MsgUnknown, "")
	}

	h.audit.LogLinkOutcome(ctx, core.ProviderTrueLayer.String(), string(mode), string(OutcomeSuccess), nil, "")
	return Result{Outcome: OutcomeSuccess, Mode: mode, Message: "Successfully Connected!"}
}

func (h *CallbackHandler) fail(ctx context.Context, mode Mode, err error, message, textCode string) Result {
	h.audit.LogLinkOutcome(ctx, core.ProviderTrueLayer.String(), string(mode), string(OutcomeError), err, textCode)
	return Result{Outcome: OutcomeError, Mode: mode, Message: message, TextCode: textCode}
}
