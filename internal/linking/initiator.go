package linking

import (
	"context"
	"errors"
	"sync"
	"time"

	"banklink/internal/aggregator"
	"banklink/internal/core"
	"banklink/internal/log"
	"banklink/internal/relay"
)

type InitiatorConfig struct {
	Backend  aggregator.AuthBackend
	Sessions SessionStore
	Relay    relay.Channel
	Opener   Opener
	Sink     TokenSink
	// Origin is the application's own origin; relay messages from anywhere
	// else are ignored.
	Origin string
	Logger *log.Logger
	Now    func() time.Time
}

// Initiator starts handshake attempts.
type Initiator struct {
	backend  aggregator.AuthBackend
	sessions SessionStore
	relay    relay.Channel
	opener   Opener
	sink     TokenSink
	origin   string
	logger   *log.Logger
	now      func() time.Time
}

func NewInitiator(cfg InitiatorConfig) *Initiator {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Discard()
	}
	if cfg.Opener == nil {
		cfg.Opener = BrowserDelegated
	}
	return &Initiator{
		backend:  cfg.Backend,
		sessions: cfg.Sessions,
		relay:    cfg.Relay,
		opener:   cfg.Opener,
		sink:     cfg.Sink,
		origin:   cfg.Origin,
		logger:   cfg.Logger.WithComponent(log.ComponentLinking),
		now:      cfg.Now,
	}
}

// Attempt is a started handshake. Pending is set in popup mode only.
type Attempt struct {
	SessionID string
	AuthURL   string
	Pending   *Pending
}

// BeginLink persists fresh anti-forgery parameters, obtains the authorization
// URL and, in popup mode, opens it and listens for the result. Any failure
// clears the stored parameters.
func (i *Initiator) BeginLink(ctx context.Context, mode Mode) (Attempt, error) {
	sess, err := core.NewLinkSession(i.now())
	if err != nil {
		return Attempt{}, initiationError(err)
	}
	if err := i.sessions.SaveLinkSession(ctx, sess); err != nil {
		// The state may already be written when the nonce is not.
		i.abort(ctx, sess.ID)
		return Attempt{}, initiationError(err)
	}

	fields := log.NewFields().WithLink(core.ProviderTrueLayer.String(), string(mode), sess.ID).WithOperation(log.OpBeginLink)

	auth, err := i.backend.AuthURL(ctx, sess.State, sess.Nonce)
	if err == nil {
		err = checkEcho(sess, auth)
	}
	if err != nil {
		i.abort(ctx, sess.ID)
		i.logger.WarnContext(ctx, "Link initiation failed", fields.WithError(err, aggregator.TextCode(err)).ToSlice()...)
		if aggregator.TextCode(err) == "" {
			err = initiationError(err)
		}
		return Attempt{}, err
	}

	attempt := Attempt{SessionID: sess.ID, AuthURL: auth.URL}
	if mode != ModePopup {
		i.logger.InfoContext(ctx, "Redirecting to authorization", fields.ToSlice()...)
		return attempt, nil
	}

	// Subscribe before opening so a fast callback cannot be missed.
	sub, err := i.relay.Subscribe(ctx, relay.Filter{Origin: i.origin, Type: relay.TypeAuthSuccess})
	if err != nil {
		i.abort(ctx, sess.ID)
		return Attempt{}, initiationError(err)
	}
	if err := i.opener.Open(ctx, auth.URL); err != nil {
		sub.Close()
		i.abort(ctx, sess.ID)
		i.logger.WarnContext(ctx, "Authorization window could not be opened", fields.WithError(err, TextPopupBlocked).ToSlice()...)
		return Attempt{}, popupBlockedError(err)
	}

	i.logger.InfoContext(ctx, "Authorization popup opened", fields.ToSlice()...)
	attempt.Pending = &Pending{sub: sub, sink: i.sink, logger: i.logger}
	return attempt, nil
}

// Cancel forgets the pending attempt, e.g. after the browser blocked the popup.
func (i *Initiator) Cancel(ctx context.Context) error {
	return i.sessions.ClearLinkSession(ctx)
}

func (i *Initiator) abort(ctx context.Context, sessionID string) {
	if err := i.sessions.ClearLinkSession(ctx); err != nil {
		i.logger.ErrorContext(ctx, "Failed to clear link session", log.FieldSessionID, sessionID, log.FieldError, err)
	}
}

// checkEcho enforces that the backend keeps the client's state and nonce.
func checkEcho(sess core.LinkSession, auth aggregator.AuthURL) error {
	if auth.State != "" && auth.State != sess.State {
		return ErrContractViolation
	}
	if auth.Nonce != "" && auth.Nonce != sess.Nonce {
		return ErrContractViolation
	}
	return nil
}

// Pending waits for the popup to report back.
type Pending struct {
	sub    relay.Subscription
	sink   TokenSink
	logger *log.Logger
	once   sync.Once
	tokens core.AuthTokens
	err    error
}

// Wait blocks until the relay delivers tokens, ctx ends or the attempt is
// closed. The subscription is disposed in every case and the sink is called
// at most once.
func (p *Pending) Wait(ctx context.Context) (core.AuthTokens, error) {
	p.once.Do(func() {
		msg, err := p.sub.Wait(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				p.logger.WarnContext(ctx, "Link popup abandoned")
			}
			p.err = err
			return
		}

		tokens := core.AuthTokens{AccessToken: msg.AccessToken, RefreshToken: msg.RefreshToken}
		if err := tokens.Validate(); err != nil {
			p.err = err
			return
		}
		if p.sink != nil {
			if err := p.sink.StoreTokens(ctx, tokens); err != nil {
				p.err = err
				return
			}
		}
		p.tokens = tokens
	})
	return p.tokens, p.err
}

// Close abandons the attempt.
func (p *Pending) Close() error {
	return p.sub.Close()
}
