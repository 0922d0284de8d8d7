// Package auth manages the OAuth2 token lifecycle for the Kaleidoscope API.
//
// Tokens are obtained with the client-credentials grant and kept fresh with the
// refresh-token grant. Refresh is purely time-based: every caller asks for the
// current access token before issuing a request, and the manager refreshes
// proactively once the deadline (true expiry minus a safety margin) has passed.
// There is no reactive 401-retry.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/kaleidoscope-bio/kaleido-go/internal/metrics"
	"github.com/kaleidoscope-bio/kaleido-go/internal/utils"
)

const (
	// TokenPath is the fixed token endpoint, relative to the API base URL.
	TokenPath = "/auth/oauth/token"

	// refreshMargin is subtracted from the server-declared token lifetime so
	// refresh happens before the token actually expires.
	refreshMargin = 10 * time.Minute

	grantClientCredentials = "client_credentials"
	grantRefreshToken      = "refresh_token"
)

// ErrNotAuthenticated is returned when no access token is held and a new one
// could not be obtained.
var ErrNotAuthenticated = errors.New("client is not authenticated")

// TokenResponse is the token endpoint's JSON payload.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// TokenManager owns a client-credentials pair and the current access/refresh
// token pair. It is safe for concurrent use: token state is guarded by a
// mutex, but the mutex is not held across the token HTTP call, so two callers
// that both observe an expired token may both refresh (last writer wins).
// That is acceptable since any valid token works for a given call.
type TokenManager struct {
	clientID     string
	clientSecret string
	tokenURL     string
	httpClient   *http.Client
	log          logrus.FieldLogger
	metrics      metrics.MetricsService

	mu            sync.Mutex
	accessToken   string
	refreshToken  string
	refreshBefore time.Time

	nowFunc func() time.Time
}

// NewTokenManager creates a manager for the token endpoint under baseURL. It
// does not perform the initial exchange; callers do that via Authenticate.
func NewTokenManager(baseURL, clientID, clientSecret string, httpClient *http.Client, log logrus.FieldLogger, metricsService metrics.MetricsService) *TokenManager {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	if metricsService == nil {
		metricsService = metrics.NoopMetricsService{}
	}
	return &TokenManager{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     strings.TrimSuffix(baseURL, "/") + TokenPath,
		httpClient:   httpClient,
		log:          log,
		metrics:      metricsService,
		nowFunc:      time.Now,
	}
}

// Authenticate performs a client-credentials token exchange. On failure the
// previous token state (possibly none) is kept.
func (tm *TokenManager) Authenticate(ctx context.Context) error {
	form := url.Values{
		"grant_type":    {grantClientCredentials},
		"client_id":     {tm.clientID},
		"client_secret": {tm.clientSecret},
	}
	tokenResp, err := tm.exchange(ctx, grantClientCredentials, form)
	if err != nil {
		tm.log.Errorf("could not connect to server with client_id %s: %v", tm.clientID, err)
		return fmt.Errorf("exchanging client credentials: %w", err)
	}

	tm.updateTokens(tokenResp)
	return nil
}

// AccessToken returns the current access token, refreshing it first when the
// deadline has passed. A failed refresh leaves the previous token in place;
// the caller proceeds with it and the request fails downstream if it is truly
// expired. ErrNotAuthenticated is returned only when no token has ever been
// obtained and a fresh exchange also fails.
func (tm *TokenManager) AccessToken(ctx context.Context) (string, error) {
	tm.mu.Lock()
	accessToken := tm.accessToken
	refreshBefore := tm.refreshBefore
	tm.mu.Unlock()

	if accessToken == "" {
		if err := tm.Authenticate(ctx); err != nil {
			return "", ErrNotAuthenticated
		}
	} else if tm.nowFunc().After(refreshBefore) {
		if err := tm.refresh(ctx); err != nil {
			tm.log.Errorf("could not refresh access token: %v", err)
		}
	}

	tm.mu.Lock()
	defer tm.mu.Unlock()
	if tm.accessToken == "" {
		return "", ErrNotAuthenticated
	}
	return tm.accessToken, nil
}

// IsAuthenticated reports whether an access token is currently held.
func (tm *TokenManager) IsAuthenticated() bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.accessToken != ""
}

// refresh mints a new token pair using the refresh-token grant, falling back
// to a full client-credentials exchange when no refresh token is held.
func (tm *TokenManager) refresh(ctx context.Context) error {
	tm.mu.Lock()
	refreshToken := tm.refreshToken
	tm.mu.Unlock()

	if refreshToken == "" {
		return tm.Authenticate(ctx)
	}

	form := url.Values{
		"grant_type":    {grantRefreshToken},
		"refresh_token": {refreshToken},
	}
	tokenResp, err := tm.exchange(ctx, grantRefreshToken, form)
	if err != nil {
		return fmt.Errorf("refreshing access token: %w", err)
	}

	tm.updateTokens(tokenResp)
	return nil
}

func (tm *TokenManager) exchange(ctx context.Context, grantType string, form url.Values) (TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tm.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return TokenResponse{}, fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := tm.httpClient.Do(req)
	if err != nil {
		tm.metrics.IncTokenExchange(grantType, "failure")
		return TokenResponse{}, fmt.Errorf("sending token request: %w", err)
	}
	defer utils.DeferredClose(tm.log, resp.Body, "closing token response body")

	if resp.StatusCode >= 400 {
		tm.metrics.IncTokenExchange(grantType, "failure")
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return TokenResponse{}, fmt.Errorf("token endpoint returned statusCode=%d", resp.StatusCode)
		}
		return TokenResponse{}, fmt.Errorf("token endpoint returned statusCode=%d, body=%s", resp.StatusCode, string(body))
	}

	var tokenResp TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		tm.metrics.IncTokenExchange(grantType, "failure")
		return TokenResponse{}, fmt.Errorf("decoding token response: %w", err)
	}

	tm.metrics.IncTokenExchange(grantType, "success")
	return tokenResp, nil
}

// updateTokens installs a new token pair and computes the refresh deadline
// from the declared lifetime minus the safety margin. When the server omits
// expires_in, the deadline is derived from the access token's exp claim.
func (tm *TokenManager) updateTokens(tokenResp TokenResponse) {
	deadline := tm.deadlineFor(tokenResp)

	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.accessToken = tokenResp.AccessToken
	tm.refreshToken = tokenResp.RefreshToken
	tm.refreshBefore = deadline
}

func (tm *TokenManager) deadlineFor(tokenResp TokenResponse) time.Time {
	if tokenResp.ExpiresIn > 0 {
		return tm.nowFunc().Add(time.Duration(tokenResp.ExpiresIn)*time.Second - refreshMargin)
	}

	// exp claim fallback; the token is not verified here, only inspected.
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenResp.AccessToken, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time.Add(-refreshMargin)
		}
	}

	tm.log.Warnf("token response carries no expiry; refreshing on next call")
	return tm.nowFunc()
}
