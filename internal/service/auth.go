package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for tokens that fail verification.
var ErrInvalidToken = errors.New("invalid token")

// Tokens issues and verifies HS256 bearer tokens for bridge callers.
type Tokens struct {
	signKey []byte
	now     func() time.Time
	maxTTL  time.Duration
}

// TokenOption configures Tokens.
type TokenOption func(*Tokens)

// WithMaxTTL rejects tokens whose lifetime (exp - iat) exceeds ttl.
// Such tokens must also carry iat. Zero disables the check.
func WithMaxTTL(ttl time.Duration) TokenOption {
	return func(t *Tokens) { t.maxTTL = ttl }
}

// NewTokens constructs a token service; an empty key is rejected.
func NewTokens(signKey []byte, opts ...TokenOption) (*Tokens, error) {
	if len(signKey) == 0 {
		return nil, errors.New("empty signing key")
	}
	t := &Tokens{signKey: signKey, now: time.Now}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// Issue creates a signed token for subject valid for ttl.
func (t *Tokens) Issue(subject string, ttl time.Duration) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, errors.New("empty subject")
	}
	now := t.now()
	exp := now.Add(ttl)
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(t.signKey)
	return signed, exp, err
}

// Verify parses raw and returns its subject.
func (t *Tokens) Verify(raw string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(tok *jwt.Token) (any, error) {
		if tok.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.signKey, nil
	}, jwt.WithTimeFunc(t.now), jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	if t.maxTTL > 0 {
		if claims.IssuedAt == nil {
			return "", fmt.Errorf("%w: missing iat", ErrInvalidToken)
		}
		if life := claims.ExpiresAt.Sub(claims.IssuedAt.Time); life > t.maxTTL {
			return "", fmt.Errorf("%w: lifetime %s exceeds %s", ErrInvalidToken, life, t.maxTTL)
		}
	}
	return claims.Subject, nil
}
