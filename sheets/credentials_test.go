package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type failingCredentials struct {
	err error
}

func (f failingCredentials) TokenSource(context.Context) (oauth2.TokenSource, error) {
	return nil, f.err
}

type fakeAuthorizer struct {
	token *oauth2.Token
	err   error
	calls int
}

func (f *fakeAuthorizer) Authorize(context.Context, *oauth2.Config) (*oauth2.Token, error) {
	f.calls++
	return f.token, f.err
}

// tokenServer answers refresh and code exchange requests.
type tokenServer struct {
	*httptest.Server
	status   int
	requests atomic.Int32

	mu   sync.Mutex
	form url.Values
}

func (ts *tokenServer) lastForm() url.Values {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.form
}

func newTokenServer(t *testing.T) *tokenServer {
	t.Helper()
	ts := &tokenServer{status: http.StatusOK}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.requests.Add(1)
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		ts.mu.Lock()
		ts.form = r.PostForm
		ts.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		if ts.status != http.StatusOK {
			w.WriteHeader(ts.status)
			fmt.Fprint(w, `{"error":"invalid_grant"}`)
			return
		}
		fmt.Fprint(w, `{"access_token":"fresh-access","token_type":"Bearer","expires_in":3600,"refresh_token":"refresh-2"}`)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func writeClientSecret(t *testing.T, dir, tokenURL string) string {
	t.Helper()
	secret := map[string]interface{}{
		"installed": map[string]interface{}{
			"client_id":     "client-id",
			"client_secret": "client-secret",
			"redirect_uris": []string{"http://localhost"},
			"auth_uri":      "https://accounts.example.test/auth",
			"token_uri":     tokenURL,
		},
	}
	data, err := json.Marshal(secret)
	require.NoError(t, err)
	path := filepath.Join(dir, "client_secret.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func writeToken(t *testing.T, path string, tok *oauth2.Token) {
	t.Helper()
	data, err := json.Marshal(tok)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

func readToken(t *testing.T, path string) *oauth2.Token {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var tok oauth2.Token
	require.NoError(t, json.Unmarshal(data, &tok))
	return &tok
}

func newTestCredentials(t *testing.T, tokenURL string, auth Authorizer) *FileCredentials {
	dir := t.TempDir()
	return &FileCredentials{
		ClientSecretFile: writeClientSecret(t, dir, tokenURL),
		TokenFile:        filepath.Join(dir, "token.json"),
		Scopes:           Scopes,
		Authorizer:       auth,
	}
}

func TestCredentialStates(t *testing.T) {
	creds := newTestCredentials(t, "http://unused.test/token", nil)

	state, err := creds.State()
	require.NoError(t, err)
	assert.Equal(t, StateAbsent, state)

	writeToken(t, creds.TokenFile, &oauth2.Token{AccessToken: "a", Expiry: time.Now().Add(time.Hour)})
	state, err = creds.State()
	require.NoError(t, err)
	assert.Equal(t, StateCachedValid, state)

	writeToken(t, creds.TokenFile, &oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: time.Now().Add(-time.Hour)})
	state, err = creds.State()
	require.NoError(t, err)
	assert.Equal(t, StateCachedExpired, state)

	require.NoError(t, os.WriteFile(creds.TokenFile, []byte("{not json"), 0o600))
	state, err = creds.State()
	require.NoError(t, err)
	assert.Equal(t, StateAbsent, state)
}

func TestTokenSourceAbsentRunsAuthorizer(t *testing.T) {
	auth := &fakeAuthorizer{token: &oauth2.Token{
		AccessToken:  "granted",
		RefreshToken: "refresh-1",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour),
	}}
	creds := newTestCredentials(t, "http://unused.test/token", auth)

	ts, err := creds.TokenSource(context.Background())
	require.NoError(t, err)
	tok, err := ts.Token()
	require.NoError(t, err)

	assert.Equal(t, 1, auth.calls)
	assert.Equal(t, "granted", tok.AccessToken)
	assert.Equal(t, "refresh-1", readToken(t, creds.TokenFile).RefreshToken)

	info, err := os.Stat(creds.TokenFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestTokenSourceCachedValid(t *testing.T) {
	server := newTokenServer(t)
	auth := &fakeAuthorizer{}
	creds := newTestCredentials(t, server.URL, auth)
	writeToken(t, creds.TokenFile, &oauth2.Token{AccessToken: "cached", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)})

	ts, err := creds.TokenSource(context.Background())
	require.NoError(t, err)
	tok, err := ts.Token()
	require.NoError(t, err)

	assert.Equal(t, "cached", tok.AccessToken)
	assert.Zero(t, auth.calls)
	assert.Zero(t, server.requests.Load())
}

func TestTokenSourceValidWithoutClientSecret(t *testing.T) {
	dir := t.TempDir()
	creds := &FileCredentials{
		ClientSecretFile: filepath.Join(dir, "missing.json"),
		TokenFile:        filepath.Join(dir, "token.json"),
	}
	writeToken(t, creds.TokenFile, &oauth2.Token{AccessToken: "cached", Expiry: time.Now().Add(time.Hour)})

	ts, err := creds.TokenSource(context.Background())
	require.NoError(t, err)
	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "cached", tok.AccessToken)
}

func TestTokenSourceRefreshesExpired(t *testing.T) {
	server := newTokenServer(t)
	auth := &fakeAuthorizer{}
	creds := newTestCredentials(t, server.URL, auth)
	writeToken(t, creds.TokenFile, &oauth2.Token{AccessToken: "stale", RefreshToken: "refresh-1", Expiry: time.Now().Add(-time.Hour)})

	ts, err := creds.TokenSource(context.Background())
	require.NoError(t, err)
	tok, err := ts.Token()
	require.NoError(t, err)

	assert.Equal(t, "fresh-access", tok.AccessToken)
	assert.Zero(t, auth.calls)
	assert.Equal(t, int32(1), server.requests.Load())
	assert.Equal(t, "refresh_token", server.lastForm().Get("grant_type"))
	assert.Equal(t, "fresh-access", readToken(t, creds.TokenFile).AccessToken)
}

func TestTokenSourceRefreshFailureFallsBackToAuthorizer(t *testing.T) {
	server := newTokenServer(t)
	server.status = http.StatusBadRequest
	auth := &fakeAuthorizer{token: &oauth2.Token{AccessToken: "granted", Expiry: time.Now().Add(time.Hour)}}
	creds := newTestCredentials(t, server.URL, auth)
	writeToken(t, creds.TokenFile, &oauth2.Token{AccessToken: "stale", RefreshToken: "revoked", Expiry: time.Now().Add(-time.Hour)})

	ts, err := creds.TokenSource(context.Background())
	require.NoError(t, err)
	tok, err := ts.Token()
	require.NoError(t, err)

	assert.Equal(t, 1, auth.calls)
	assert.Equal(t, "granted", tok.AccessToken)
	assert.Equal(t, "granted", readToken(t, creds.TokenFile).AccessToken)
}

func TestTokenSourceAuthorizerErrors(t *testing.T) {
	denied := errors.New("denied")

	t.Run("authorizer fails", func(t *testing.T) {
		creds := newTestCredentials(t, "http://unused.test/token", &fakeAuthorizer{err: denied})
		_, err := creds.TokenSource(context.Background())
		require.ErrorIs(t, err, denied)
	})

	t.Run("no authorizer", func(t *testing.T) {
		creds := newTestCredentials(t, "http://unused.test/token", nil)
		_, err := creds.TokenSource(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no usable token")
	})

	t.Run("missing client secret", func(t *testing.T) {
		dir := t.TempDir()
		creds := &FileCredentials{
			ClientSecretFile: filepath.Join(dir, "missing.json"),
			TokenFile:        filepath.Join(dir, "token.json"),
			Authorizer:       &fakeAuthorizer{},
		}
		_, err := creds.TokenSource(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "read client secret")
	})
}

// urlWriter hands the first write to the test.
type urlWriter struct {
	lines chan string
}

func (w *urlWriter) Write(p []byte) (int, error) {
	select {
	case w.lines <- string(p):
	default:
	}
	return len(p), nil
}

func authURLFrom(t *testing.T, out string) *url.URL {
	t.Helper()
	for _, field := range strings.Fields(out) {
		if u, err := url.Parse(field); err == nil && u.Scheme == "https" {
			return u
		}
	}
	t.Fatalf("no authorization URL in %q", out)
	return nil
}

func TestLoopbackAuthorizer(t *testing.T) {
	server := newTokenServer(t)
	out := &urlWriter{lines: make(chan string, 1)}
	auth := &LoopbackAuthorizer{Out: out}
	cfg := &oauth2.Config{
		ClientID: "client-id",
		Endpoint: oauth2.Endpoint{AuthURL: "https://accounts.example.test/auth", TokenURL: server.URL},
		Scopes:   Scopes,
	}

	type result struct {
		tok *oauth2.Token
		err error
	}
	done := make(chan result, 1)
	go func() {
		tok, err := auth.Authorize(context.Background(), cfg)
		done <- result{tok, err}
	}()

	authURL := authURLFrom(t, <-out.lines)
	q := authURL.Query()
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.NotEmpty(t, q.Get("state"))

	redirect, err := url.Parse(q.Get("redirect_uri"))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", redirect.Hostname())

	// stray browser requests do not end the flow
	resp, err := http.Get(redirect.Scheme + "://" + redirect.Host + "/favicon.ico")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	cb := *redirect
	cb.RawQuery = url.Values{"state": {q.Get("state")}, "code": {"auth-code"}}.Encode()
	resp, err = http.Get(cb.String())
	require.NoError(t, err)
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, "fresh-access", res.tok.AccessToken)
	assert.Equal(t, "auth-code", server.lastForm().Get("code"))
	assert.NotEmpty(t, server.lastForm().Get("code_verifier"))
	assert.Equal(t, redirect.String(), server.lastForm().Get("redirect_uri"))
}

func TestLoopbackAuthorizerRejectsStateMismatch(t *testing.T) {
	out := &urlWriter{lines: make(chan string, 1)}
	auth := &LoopbackAuthorizer{Out: out}
	cfg := &oauth2.Config{
		ClientID: "client-id",
		Endpoint: oauth2.Endpoint{AuthURL: "https://accounts.example.test/auth", TokenURL: "http://unused.test/token"},
	}

	done := make(chan error, 1)
	go func() {
		_, err := auth.Authorize(context.Background(), cfg)
		done <- err
	}()

	authURL := authURLFrom(t, <-out.lines)
	redirect, err := url.Parse(authURL.Query().Get("redirect_uri"))
	require.NoError(t, err)

	cb := *redirect
	cb.RawQuery = url.Values{"state": {"forged"}, "code": {"auth-code"}}.Encode()
	resp, err := http.Get(cb.String())
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	err = <-done
	require.Error(t, err)
	assert.Contains(t, err.Error(), "state mismatch")
}

func TestLoopbackAuthorizerHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	auth := &LoopbackAuthorizer{Out: io.Discard}
	_, err := auth.Authorize(ctx, &oauth2.Config{ClientID: "client-id"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestLoopbackAuthorizerTimesOut(t *testing.T) {
	auth := &LoopbackAuthorizer{Out: io.Discard, Timeout: 50 * time.Millisecond}

	start := time.Now()
	_, err := auth.Authorize(context.Background(), &oauth2.Config{ClientID: "client-id"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "wait for browser redirect")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestNewFileCredentialsBoundsAuthorization(t *testing.T) {
	creds := NewFileCredentials("client_secret.json", "token.json")
	auth, ok := creds.Authorizer.(*LoopbackAuthorizer)
	require.True(t, ok)
	assert.Equal(t, DefaultAuthorizeTimeout, auth.Timeout)
}
