package fcm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultTokenURL = "https://oauth2.googleapis.com/token"
	messagingScope  = "https://www.googleapis.com/auth/firebase.messaging"
	jwtBearerGrant  = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	// assertionLifetime is the validity window Google expects on the
	// signed assertion. One hour is the maximum it accepts.
	assertionLifetime = time.Hour
)

// assertionClaims builds the claim set for the OAuth2 JWT bearer grant.
// MapClaims keeps "aud" a plain string; typed claims would marshal it as a
// one-element array, which the token endpoint rejects.
func assertionClaims(account *ServiceAccount, tokenURL string, now time.Time) jwt.MapClaims {
	return jwt.MapClaims{
		"iss":   account.ClientEmail,
		"scope": messagingScope,
		"aud":   tokenURL,
		"iat":   now.Unix(),
		"exp":   now.Add(assertionLifetime).Unix(),
	}
}

// signAssertion produces the compact RS256-signed assertion for the account.
func signAssertion(account *ServiceAccount, tokenURL string, now time.Time) (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(account.PrivateKey))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSignAssertion, err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, assertionClaims(account, tokenURL, now))
	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSignAssertion, err)
	}
	return signed, nil
}

// fetchAccessToken exchanges a freshly signed assertion for a bearer token.
// Every call performs a full exchange; tokens are never cached.
func (c *Client) fetchAccessToken(ctx context.Context) (string, error) {
	assertion, err := signAssertion(c.account, c.tokenURL, time.Now())
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("grant_type", jwtBearerGrant)
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, "POST", c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}

	// Only the access_token field matters here. Error responses from the
	// endpoint carry no such field and surface as ErrAccessTokenNotFound,
	// whatever their status code.
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", ErrAccessTokenNotFound
	}
	accessToken, ok := payload["access_token"].(string)
	if !ok {
		return "", ErrAccessTokenNotFound
	}
	return accessToken, nil
}
