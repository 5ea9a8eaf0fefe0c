package core

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	ProviderTrueLayer Provider = "truelayer"
	ProviderPlaid     Provider = "plaid"
)

const (
	// NegativeIsSpend marks money out with a negative amount (TrueLayer).
	NegativeIsSpend SignConvention = iota
	// PositiveIsSpend marks money out with a positive amount (Plaid).
	PositiveIsSpend
)

type (
	Provider string

	SignConvention int

	// LinkSession holds the anti-forgery parameters of one handshake attempt.
	LinkSession struct {
		ID        string
		State     string
		Nonce     string
		CreatedAt time.Time
	}

	// AuthTokens is the outcome of a successful handshake.
	AuthTokens struct {
		AccessToken  string
		RefreshToken string // optional, TrueLayer only
	}

	Account struct {
		ID       string
		Name     string
		Currency string
	}

	Transaction struct {
		ID          string
		Timestamp   time.Time
		Amount      decimal.Decimal
		Description string
		AccountID   string
	}
)

var (
	ErrEmptyState       = errors.New("empty link state")
	ErrEmptyNonce       = errors.New("empty link nonce")
	ErrEmptyAccessToken = errors.New("empty access token")
	ErrUnknownProvider  = errors.New("unknown provider")
)

// NewLinkSession creates a session with fresh state and nonce values.
func NewLinkSession(now time.Time) (LinkSession, error) {
	state, err := GenerateToken()
	if err != nil {
		return LinkSession{}, err
	}
	nonce, err := GenerateToken()
	if err != nil {
		return LinkSession{}, err
	}
	return LinkSession{
		ID:        uuid.NewString(),
		State:     state,
		Nonce:     nonce,
		CreatedAt: now.UTC(),
	}, nil
}

func (s LinkSession) Validate() error {
	if strings.TrimSpace(s.State) == "" {
		return ErrEmptyState
	}
	if strings.TrimSpace(s.Nonce) == "" {
		return ErrEmptyNonce
	}
	return nil
}

// Matches reports whether a returned state belongs to this session.
func (s LinkSession) Matches(state string) bool {
	if s.State == "" || state == "" {
		return false
	}
	return constantTimeEqual(s.State, state)
}

func (t AuthTokens) Validate() error {
	if strings.TrimSpace(t.AccessToken) == "" {
		return ErrEmptyAccessToken
	}
	return nil
}

// IsZero reports whether no access token is present, i.e. the user is not linked.
func (t AuthTokens) IsZero() bool {
	return strings.TrimSpace(t.AccessToken) == ""
}

func (p Provider) String() string {
	return string(p)
}

func (p Provider) IsValid() bool {
	switch p {
	case ProviderTrueLayer, ProviderPlaid:
		return true
	default:
		return false
	}
}

// SpendConvention returns how the provider's data source signs money out.
func (p Provider) SpendConvention() SignConvention {
	if p == ProviderPlaid {
		return PositiveIsSpend
	}
	return NegativeIsSpend
}

// ParseProvider normalizes a provider name.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", ErrUnknownProvider
	}
	return p, nil
}

// IsSpend reports whether the transaction is money out under the given convention.
func (t Transaction) IsSpend(conv SignConvention) bool {
	if conv == PositiveIsSpend {
		return t.Amount.IsPositive()
	}
	return t.Amount.IsNegative()
}
