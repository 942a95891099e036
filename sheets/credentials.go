package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Scopes requested for spreadsheet uploads.
var Scopes = []string{
	"https://www.googleapis.com/auth/spreadsheets",
	"https://www.googleapis.com/auth/drive",
}

// Credentials yields a token source for the spreadsheet API. Implementations
// own any interactive authorisation; callers only ask for a usable source.
type Credentials interface {
	TokenSource(ctx context.Context) (oauth2.TokenSource, error)
}

// Authorizer runs an interactive consent flow.
type Authorizer interface {
	Authorize(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error)
}

// CredentialState describes the token cache.
type CredentialState int

const (
	StateAbsent CredentialState = iota
	StateCachedValid
	StateCachedExpired
)

func (s CredentialState) String() string {
	switch s {
	case StateCachedValid:
		return "cached-valid"
	case StateCachedExpired:
		return "cached-expired"
	default:
		return "absent"
	}
}

// FileCredentials caches the OAuth token as JSON next to the client secret
// downloaded from the Google Cloud console.
type FileCredentials struct {
	ClientSecretFile string
	TokenFile        string
	Scopes           []string
	Authorizer       Authorizer
}

// NewFileCredentials uses the loopback consent flow when no usable token is cached.
func NewFileCredentials(clientSecretFile, tokenFile string) *FileCredentials {
	return &FileCredentials{
		ClientSecretFile: clientSecretFile,
		TokenFile:        tokenFile,
		Scopes:           Scopes,
		Authorizer:       &LoopbackAuthorizer{Out: os.Stderr, Timeout: DefaultAuthorizeTimeout},
	}
}

// State inspects the token cache without touching the network.
func (c *FileCredentials) State() (CredentialState, error) {
	tok, err := c.loadToken()
	if err != nil {
		return StateAbsent, err
	}
	return stateOf(tok), nil
}

func stateOf(tok *oauth2.Token) CredentialState {
	switch {
	case tok == nil:
		return StateAbsent
	case tok.Valid():
		return StateCachedValid
	default:
		return StateCachedExpired
	}
}

// TokenSource returns a source that refreshes itself and keeps the cache file
// current. An expired token is refreshed once up front; when that fails, or
// nothing is cached, the Authorizer is asked for a new token.
func (c *FileCredentials) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	tok, err := c.loadToken()
	if err != nil {
		return nil, err
	}
	state := stateOf(tok)
	slog.Debug("spreadsheet credential", slog.String("state", state.String()), slog.String("token_file", c.TokenFile))

	if state == StateCachedValid {
		oauthCfg, err := c.oauthConfig()
		if err != nil {
			// a valid token is still usable until it expires
			slog.Warn("client secret unavailable, token will not refresh", slog.Any("error", err))
			return oauth2.StaticTokenSource(tok), nil
		}
		return c.persisting(ctx, oauthCfg, tok), nil
	}

	oauthCfg, err := c.oauthConfig()
	if err != nil {
		return nil, err
	}

	if state == StateCachedExpired && tok.RefreshToken != "" {
		fresh, err := oauthCfg.TokenSource(ctx, tok).Token()
		if err == nil {
			if err := c.saveToken(fresh); err != nil {
				return nil, err
			}
			return c.persisting(ctx, oauthCfg, fresh), nil
		}
		slog.Warn("token refresh failed, re-authorizing", slog.Any("error", err))
	}

	if c.Authorizer == nil {
		return nil, fmt.Errorf("no usable token in %s and no authorizer configured", c.TokenFile)
	}
	tok, err = c.Authorizer.Authorize(ctx, oauthCfg)
	if err != nil {
		return nil, fmt.Errorf("authorize: %w", err)
	}
	if err := c.saveToken(tok); err != nil {
		return nil, err
	}
	return c.persisting(ctx, oauthCfg, tok), nil
}

func (c *FileCredentials) oauthConfig() (*oauth2.Config, error) {
	data, err := os.ReadFile(c.ClientSecretFile)
	if err != nil {
		return nil, fmt.Errorf("read client secret: %w", err)
	}
	scopes := c.Scopes
	if len(scopes) == 0 {
		scopes = Scopes
	}
	cfg, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse client secret: %w", err)
	}
	return cfg, nil
}

func (c *FileCredentials) loadToken() (*oauth2.Token, error) {
	data, err := os.ReadFile(c.TokenFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read token cache: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		// a corrupt cache is treated like a missing one
		slog.Warn("ignoring unreadable token cache", slog.String("token_file", c.TokenFile), slog.Any("error", err))
		return nil, nil
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, nil
	}
	return &tok, nil
}

func (c *FileCredentials) saveToken(tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if dir := filepath.Dir(c.TokenFile); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create token directory: %w", err)
		}
	}
	if err := os.WriteFile(c.TokenFile, data, 0o600); err != nil {
		return fmt.Errorf("write token cache: %w", err)
	}
	return nil
}

func (c *FileCredentials) persisting(ctx context.Context, cfg *oauth2.Config, tok *oauth2.Token) oauth2.TokenSource {
	return &persistingSource{
		base: cfg.TokenSource(ctx, tok),
		save: c.saveToken,
		last: tok.AccessToken,
	}
}

// persistingSource writes refreshed tokens back to the cache.
type persistingSource struct {
	base oauth2.TokenSource
	save func(*oauth2.Token) error

	mu   sync.Mutex
	last string
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken != p.last {
		if err := p.save(tok); err != nil {
			slog.Warn("could not cache refreshed token", slog.Any("error", err))
		}
		p.last = tok.AccessToken
	}
	return tok, nil
}
