// Package client provides per-user OAuth2 authorization for Google APIs.
//
// Tokens are obtained with the out-of-band flow: the bot sends the user a
// consent URL, the user replies with the authorization code, and the
// exchanged token is persisted in the token store. Refreshed tokens are
// written back so a restart never loses a rotation.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/emalfatti/fintrack/pkg/api"
)

// oobRedirectURL makes Google display the authorization code for the user
// to copy instead of redirecting to a callback server.
const oobRedirectURL = "urn:ietf:wg:oauth:2.0:oob"

// ErrNotAuthorized is returned when a user has no stored token.
var ErrNotAuthorized = errors.New("user has not authorized access")

// Authenticator manages per-user OAuth2 tokens.
type Authenticator struct {
	config *oauth2.Config
	tokens api.TokenStore
	logger *slog.Logger
}

// New creates an Authenticator from a client secret file path.
func New(secretFilePath string, tokens api.TokenStore, logger *slog.Logger, scopes ...string) (*Authenticator, error) {
	b, err := os.ReadFile(secretFilePath)
	if err != nil {
		return nil, fmt.Errorf("reading client secret file: %w", err)
	}

	return NewFromJSON(b, tokens, logger, scopes...)
}

// NewFromJSON creates an Authenticator from client secret JSON content.
func NewFromJSON(secretJSON []byte, tokens api.TokenStore, logger *slog.Logger, scopes ...string) (*Authenticator, error) {
	if logger == nil {
		logger = slog.Default()
	}

	config, err := google.ConfigFromJSON(secretJSON, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parsing client secret: %w", err)
	}
	config.RedirectURL = oobRedirectURL

	return &Authenticator{
		config: config,
		tokens: tokens,
		logger: logger,
	}, nil
}

// AuthURL returns the consent URL the user must visit to obtain an
// authorization code.
func (a *Authenticator) AuthURL() string {
	return a.config.AuthCodeURL("state", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token and persists it for the
// user.
func (a *Authenticator) Exchange(ctx context.Context, userID int64, code string) error {
	tok, err := a.config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchanging authorization code: %w", err)
	}

	if err := a.tokens.SaveToken(ctx, userID, tok); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}

	a.logger.Info("user authorized", "user_id", userID)
	return nil
}

// Authorized reports whether the user has a stored token.
func (a *Authenticator) Authorized(ctx context.Context, userID int64) (bool, error) {
	_, err := a.tokens.Token(ctx, userID)
	if errors.Is(err, api.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Revoke deletes the user's stored token.
func (a *Authenticator) Revoke(ctx context.Context, userID int64) error {
	return a.tokens.DeleteToken(ctx, userID)
}

// HTTPClient returns an HTTP client authorized as the given user. The
// client refreshes the token transparently and persists rotations.
func (a *Authenticator) HTTPClient(ctx context.Context, userID int64) (*http.Client, error) {
	tok, err := a.tokens.Token(ctx, userID)
	if errors.Is(err, api.ErrNotFound) {
		return nil, ErrNotAuthorized
	}
	if err != nil {
		return nil, fmt.Errorf("loading token: %w", err)
	}

	src := &persistingSource{
		userID: userID,
		tokens: a.tokens,
		src:    a.config.TokenSource(ctx, tok),
		last:   tok,
		logger: a.logger,
	}

	return oauth2.NewClient(ctx, src), nil
}

// persistingSource wraps a TokenSource and writes refreshed tokens back to
// the token store.
type persistingSource struct {
	userID int64
	tokens api.TokenStore
	src    oauth2.TokenSource
	logger *slog.Logger

	mu   sync.Mutex
	last *oauth2.Token
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	rotated := s.last == nil || tok.AccessToken != s.last.AccessToken
	s.last = tok
	s.mu.Unlock()

	if rotated {
		// TokenSource.Token carries no context; a persistence failure is
		// logged, not fatal, since the in-memory token is still valid.
		if err := s.tokens.SaveToken(context.Background(), s.userID, tok); err != nil {
			s.logger.Error("failed to persist refreshed token", "user_id", s.userID, "error", err)
		} else {
			s.logger.Debug("persisted refreshed token", "user_id", s.userID)
		}
	}

	return tok, nil
}
