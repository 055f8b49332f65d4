// Package auth authenticates clinicians against the managed identity
// provider and hands out opaque bearer credentials for the clinical API.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Credentials is the bearer credential attached to every remote call.
type Credentials struct {
	Token     string
	ExpiresAt time.Time
}

// AuthError reports a failed login. Unauthorized distinguishes wrong
// credentials from transport or provider failures.
type AuthError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *AuthError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("auth: %s: %s", e.Type, e.Message)
	}
	return fmt.Sprintf("auth: status %d: %s", e.StatusCode, e.Message)
}

// Unauthorized reports whether the provider rejected the credentials.
func (e *AuthError) Unauthorized() bool {
	return strings.Contains(e.Type, "NotAuthorizedException")
}

// Client performs the identity provider's InitiateAuth call.
type Client struct {
	endpoint   string
	clientID   string
	httpClient *http.Client
}

// NewClient creates a Client for the given provider region and app client.
func NewClient(region, clientID string) *Client {
	return &Client{
		endpoint:   fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/", region),
		clientID:   clientID,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type initiateAuthRequest struct {
	AuthFlow       string            `json:"AuthFlow"`
	ClientID       string            `json:"ClientId"`
	AuthParameters map[string]string `json:"AuthParameters"`
}

type initiateAuthResponse struct {
	AuthenticationResult struct {
		IDToken string `json:"IdToken"`
	} `json:"AuthenticationResult"`
}

type providerError struct {
	Type    string `json:"__type"`
	Message string `json:"message"`
}

// Login exchanges email/password for a bearer token using the provider's
// USER_PASSWORD_AUTH flow.
func (c *Client) Login(ctx context.Context, email, password string) (*Credentials, error) {
	payload := initiateAuthRequest{
		AuthFlow: "USER_PASSWORD_AUTH",
		ClientID: c.clientID,
		AuthParameters: map[string]string{
			"USERNAME": email,
			"PASSWORD": password,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal auth request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-amz-json-1.1")
	req.Header.Set("X-Amz-Target", "AWSCognitoIdentityProviderService.InitiateAuth")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth request: %w", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read auth response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var perr providerError
		_ = json.Unmarshal(respBody, &perr)
		return nil, &AuthError{StatusCode: resp.StatusCode, Type: perr.Type, Message: perr.Message}
	}
	var result initiateAuthResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode auth response: %w", err)
	}
	token := result.AuthenticationResult.IDToken
	if token == "" {
		return nil, &AuthError{StatusCode: resp.StatusCode, Message: "response carried no token"}
	}
	expires, err := TokenExpiry(token)
	if err != nil {
		// Expiry stays zero when the claim is unreadable; the token is
		// still usable as an opaque credential.
		expires = time.Time{}
	}
	return &Credentials{Token: token, ExpiresAt: expires}, nil
}
