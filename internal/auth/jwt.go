// Package auth identifies the client scope a request belongs to.
//
// CLIENT SCOPES:
// Each browser gets an opaque scope id the first time it calls the API.
// The id lives in a signed JWT inside an HttpOnly cookie, so a client can
// present its own scope but cannot forge someone else's. The scope is
// what a UserStore is opened for; the session stored under it decides who
// (if anyone) is logged in.
//
// The token says nothing about the user. Logging in or out changes the
// stored session, never the cookie.
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Payload: {"sub":"<scope id>","iss":"foodsaver","exp":...}
//	- Signature: HMAC-SHA256(header+"."+payload, secret)
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer = "foodsaver"

	// ScopeLifetime is how long a scope cookie stays valid. The middleware
	// re-issues it on every response, so an active client keeps its scope.
	ScopeLifetime = 365 * 24 * time.Hour
)

// TokenService signs and verifies scope tokens.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
// Example: SCOPE_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: scope secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// RandomSecret returns a fresh 32-byte hex secret for when none is
// configured.
func RandomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("auth: generating secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

type claims struct {
	jwt.RegisteredClaims
}

// Generate signs a token for scope valid for ScopeLifetime.
func (s *TokenService) Generate(scope string) (string, error) {
	return s.GenerateWithDuration(scope, ScopeLifetime)
}

// GenerateWithDuration signs a token for scope valid for d. Tests use a
// negative d to build expired tokens.
func (s *TokenService) GenerateWithDuration(scope string, d time.Duration) (string, error) {
	if scope == "" {
		return "", errors.New("auth: scope must not be empty")
	}
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   scope,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate checks the signature, issuer and expiry and returns the scope.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: invalid token claims")
	}
	if c.Subject == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}
	return c.Subject, nil
}
