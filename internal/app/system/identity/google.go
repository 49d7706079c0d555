package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dalemusser/tripsync/internal/app/system/retry"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// DefaultUserInfoURL is Google's OpenID Connect userinfo endpoint.
const DefaultUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// GoogleVerifier treats the bearer credential as a Google OAuth access token
// and resolves it through the userinfo endpoint. Throttling and gateway
// errors are retried.
type GoogleVerifier struct {
	URL        string
	HTTPClient *http.Client // base transport; nil for the default
	Policy     retry.Policy
	Log        *zap.Logger
}

func NewGoogleVerifier(url string, logger *zap.Logger) *GoogleVerifier {
	if strings.TrimSpace(url) == "" {
		url = DefaultUserInfoURL
	}
	return &GoogleVerifier{URL: url, Policy: retry.Default(), Log: logger}
}

// googleUserInfo covers both the v2 and OpenID field names.
type googleUserInfo struct {
	Sub           string `json:"sub"`
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified *bool  `json:"email_verified"`
	VerifiedEmail *bool  `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (g *GoogleVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, ErrInvalidToken
	}
	if g.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, g.HTTPClient)
	}
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))

	info, err := retry.Do(ctx, g.Policy, "google userinfo", g.Log, func(ctx context.Context) (googleUserInfo, error) {
		return g.fetch(ctx, client)
	})
	if err != nil {
		return Identity{}, err
	}

	if info.Email == "" || isFalse(info.EmailVerified) || isFalse(info.VerifiedEmail) {
		return Identity{}, ErrInvalidToken
	}
	sub := info.Sub
	if sub == "" {
		sub = info.ID
	}
	return Identity{Subject: sub, Email: info.Email, Name: info.Name, Picture: info.Picture}, nil
}

func (g *GoogleVerifier) fetch(ctx context.Context, client *http.Client) (googleUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.URL, nil)
	if err != nil {
		return googleUserInfo{}, retry.Permanent(err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return googleUserInfo{}, fmt.Errorf("fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return googleUserInfo{}, retry.Permanent(ErrInvalidToken)
	}
	if err := retry.CheckStatus("google userinfo", resp.StatusCode); err != nil {
		return googleUserInfo{}, err
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return googleUserInfo{}, retry.Permanent(fmt.Errorf("decode user info: %w", err))
	}
	return info, nil
}

func isFalse(b *bool) bool { return b != nil && !*b }

// IsInvalid reports whether err means the credential itself was rejected,
// as opposed to the provider being unreachable.
func IsInvalid(err error) bool { return errors.Is(err, ErrInvalidToken) }
