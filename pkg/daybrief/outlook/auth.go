package outlook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jholhewres/daybrief/pkg/daybrief/store"
)

const (
	// microsoftAuthority is the OAuth authority for Microsoft identity platform.
	microsoftAuthority = "https://login.microsoftonline.com"

	// refreshMargin renews the access token this long before it expires, so
	// a token handed to a Graph call cannot lapse mid-request.
	refreshMargin = 2 * time.Minute
)

// graphScopes are the delegated permissions the assistant needs: offline_access
// yields a refresh token, the rest cover profile, mail reads and calendar writes.
var graphScopes = []string{
	"offline_access",
	"User.Read",
	"Mail.Read",
	"Calendars.ReadWrite",
}

// ErrNotAuthenticated is returned when no user has completed the OAuth flow
// or the stored refresh token has been revoked.
var ErrNotAuthenticated = errors.New("outlook: not authenticated, sign in first")

// tokenRecord is the persisted token state (tokens.json).
type tokenRecord struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// tokenResponse is the OAuth token endpoint reply.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	Error        string `json:"error"`
	ErrorDesc    string `json:"error_description"`
}

// Authenticator runs the Microsoft identity platform authorization-code flow
// and keeps the token record fresh across daemon restarts.
type Authenticator struct {
	clientID     string
	clientSecret string
	tenantID     string
	redirectURI  string
	authority    string

	file       *store.File
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time

	mu    sync.Mutex
	token *tokenRecord
}

// AuthOption configures the Authenticator.
type AuthOption func(*Authenticator)

// WithAuthority overrides the OAuth authority (used in tests).
func WithAuthority(authority string) AuthOption {
	return func(a *Authenticator) { a.authority = authority }
}

// WithAuthHTTPClient overrides the HTTP client.
func WithAuthHTTPClient(c *http.Client) AuthOption {
	return func(a *Authenticator) { a.httpClient = c }
}

// WithAuthClock overrides the clock (used in tests).
func WithAuthClock(now func() time.Time) AuthOption {
	return func(a *Authenticator) { a.now = now }
}

// NewAuthenticator creates an Authenticator persisting tokens to file.
// tenantID may be empty, defaulting to "common" (any Microsoft account).
func NewAuthenticator(clientID, clientSecret, tenantID, redirectURI string, file *store.File, logger *slog.Logger, opts ...AuthOption) *Authenticator {
	if tenantID == "" {
		tenantID = "common"
	}
	a := &Authenticator{
		clientID:     clientID,
		clientSecret: clientSecret,
		tenantID:     tenantID,
		redirectURI:  redirectURI,
		authority:    microsoftAuthority,
		file:         file,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		logger:       logger.With("component", "outlook-auth"),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// IsConfigured reports whether the Graph application registration is set.
func (a *Authenticator) IsConfigured() bool {
	return a.clientID != "" && a.clientSecret != ""
}

// IsAuthenticated reports whether a token record exists, in memory or on disk.
// It does not guarantee the refresh token is still valid server-side.
func (a *Authenticator) IsAuthenticated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.token != nil {
		return true
	}
	rec, err := a.loadLocked()
	return err == nil && rec != nil
}

// AuthURL returns the authorization URL for the given CSRF state.
func (a *Authenticator) AuthURL(state string) string {
	params := url.Values{
		"client_id":     {a.clientID},
		"response_type": {"code"},
		"redirect_uri":  {a.redirectURI},
		"response_mode": {"query"},
		"scope":         {strings.Join(graphScopes, " ")},
		"state":         {state},
	}
	return a.authority + "/" + a.tenantID + "/oauth2/v2.0/authorize?" + params.Encode()
}

// ExchangeCode exchanges an authorization code for tokens and persists them.
func (a *Authenticator) ExchangeCode(ctx context.Context, code string) error {
	data := url.Values{
		"client_id":     {a.clientID},
		"client_secret": {a.clientSecret},
		"code":          {code},
		"grant_type":    {"authorization_code"},
		"redirect_uri":  {a.redirectURI},
		"scope":         {strings.Join(graphScopes, " ")},
	}

	resp, err := a.requestToken(ctx, data)
	if err != nil {
		return fmt.Errorf("exchanging authorization code: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.saveLocked(resp); err != nil {
		return err
	}
	a.logger.Info("signed in to Microsoft account")
	return nil
}

// AccessToken returns a valid access token, refreshing it when it is within
// refreshMargin of expiry. Returns ErrNotAuthenticated when no token record
// exists or the refresh token has been revoked.
func (a *Authenticator) AccessToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token == nil {
		rec, err := a.loadLocked()
		if err != nil {
			return "", err
		}
		if rec == nil {
			return "", ErrNotAuthenticated
		}
		a.token = rec
	}

	if a.now().Before(a.token.ExpiresAt.Add(-refreshMargin)) {
		return a.token.AccessToken, nil
	}

	data := url.Values{
		"client_id":     {a.clientID},
		"client_secret": {a.clientSecret},
		"refresh_token": {a.token.RefreshToken},
		"grant_type":    {"refresh_token"},
		"scope":         {strings.Join(graphScopes, " ")},
	}

	resp, err := a.requestToken(ctx, data)
	if err != nil {
		// A rejected refresh token means the grant was revoked; clear the
		// stale record so the caller is told to sign in again.
		var oe *oauthError
		if errors.As(err, &oe) {
			a.logger.Warn("refresh token rejected, sign-in required", "error", oe.Code)
			a.token = nil
			_ = a.file.Remove()
			return "", ErrNotAuthenticated
		}
		return "", fmt.Errorf("refreshing access token: %w", err)
	}

	if err := a.saveLocked(resp); err != nil {
		return "", err
	}
	a.logger.Debug("access token refreshed", "expires_at", a.token.ExpiresAt)
	return a.token.AccessToken, nil
}

// SignOut removes the persisted token record.
func (a *Authenticator) SignOut() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.token = nil
	if err := a.file.Remove(); err != nil {
		return fmt.Errorf("removing token record: %w", err)
	}
	a.logger.Info("signed out, token record removed")
	return nil
}

// oauthError is a structured error reply from the token endpoint.
type oauthError struct {
	Code string
	Desc string
}

func (e *oauthError) Error() string {
	return fmt.Sprintf("oauth error %s: %s", e.Code, e.Desc)
}

func (a *Authenticator) requestToken(ctx context.Context, data url.Values) (*tokenResponse, error) {
	endpoint := a.authority + "/" + a.tenantID + "/oauth2/v2.0/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading token response: %w", err)
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, fmt.Errorf("parsing token response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || tok.Error != "" {
		return nil, &oauthError{Code: tok.Error, Desc: tok.ErrorDesc}
	}
	return &tok, nil
}

// saveLocked persists a token response. Caller holds a.mu.
func (a *Authenticator) saveLocked(resp *tokenResponse) error {
	rec := &tokenRecord{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    a.now().Add(time.Duration(resp.ExpiresIn) * time.Second),
	}
	// Some refreshes omit the refresh token; keep the previous one.
	if rec.RefreshToken == "" && a.token != nil {
		rec.RefreshToken = a.token.RefreshToken
	}
	if err := a.file.Save(rec); err != nil {
		return fmt.Errorf("persisting token record: %w", err)
	}
	a.token = rec
	return nil
}

// loadLocked reads the persisted token record. Caller holds a.mu.
// Returns (nil, nil) when no record exists.
func (a *Authenticator) loadLocked() (*tokenRecord, error) {
	var rec tokenRecord
	found, err := a.file.Load(&rec)
	if err != nil {
		return nil, fmt.Errorf("loading token record: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &rec, nil
}
