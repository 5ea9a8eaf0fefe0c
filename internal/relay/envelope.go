package relay

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// envelopeTTL bounds how long a sealed message stays acceptable.
const envelopeTTL = 5 * time.Minute

var ErrInvalidEnvelope = errors.New("invalid relay envelope")

type envelopeClaims struct {
	Type         string `json:"typ"`
	AccessToken  string `json:"at,omitempty"`
	RefreshToken string `json:"rt,omitempty"`
	jwt.RegisteredClaims
}

// Seal signs m with HS256. The issuer claim carries the sending origin.
func Seal(secret []byte, m Message, now time.Time) (string, error) {
	if m.Origin == "" {
		return "", ErrNoOrigin
	}
	if len(secret) == 0 {
		return "", errors.New("relay secret is empty")
	}
	claims := envelopeClaims{
		Type:         m.Type,
		AccessToken:  m.AccessToken,
		RefreshToken: m.RefreshToken,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.Origin,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(envelopeTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign envelope: %w", err)
	}
	return signed, nil
}

// Open verifies a sealed envelope and returns its message. The origin comes
// from the verified issuer, never from the transport.
func Open(secret []byte, sealed string) (Message, error) {
	claims := &envelopeClaims{}
	token, err := jwt.ParseWithClaims(sealed, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if claims.Issuer == "" {
		return Message{}, fmt.Errorf("%w: missing issuer", ErrInvalidEnvelope)
	}
	return Message{
		Type:         claims.Type,
		Origin:       claims.Issuer,
		AccessToken:  claims.AccessToken,
		RefreshToken: claims.RefreshToken,
	}, nil
}
