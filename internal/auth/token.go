package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt"
)

// TokenExpiry extracts the exp claim without verifying the signature. The
// token stays an opaque credential; expiry is only read so callers can avoid
// starting a long poll loop with a dead token.
func TokenExpiry(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("parse token: %w", err)
	}
	switch exp := claims["exp"].(type) {
	case float64:
		return time.Unix(int64(exp), 0), nil
	case json.Number:
		n, err := exp.Int64()
		if err != nil {
			return time.Time{}, fmt.Errorf("parse exp claim: %w", err)
		}
		return time.Unix(n, 0), nil
	}
	return time.Time{}, errors.New("token has no exp claim")
}

// TokenCache lazily logs in with a service account and reuses the credential
// until shortly before it expires. Safe for concurrent use.
type TokenCache struct {
	client   *Client
	email    string
	password string

	mu    sync.Mutex
	creds *Credentials
}

// NewTokenCache creates a TokenCache.
func NewTokenCache(client *Client, email, password string) *TokenCache {
	return &TokenCache{client: client, email: email, password: password}
}

// Token returns a valid bearer token, logging in again when the cached one
// is expired or about to expire.
func (t *TokenCache) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.creds != nil {
		if t.creds.ExpiresAt.IsZero() || time.Until(t.creds.ExpiresAt) > time.Minute {
			return t.creds.Token, nil
		}
	}
	creds, err := t.client.Login(ctx, t.email, t.password)
	if err != nil {
		return "", err
	}
	t.creds = creds
	return creds.Token, nil
}
