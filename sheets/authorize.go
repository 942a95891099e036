package sheets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// DefaultAuthorizeTimeout bounds the wait for the browser redirect.
const DefaultAuthorizeTimeout = 5 * time.Minute

// LoopbackAuthorizer prints the consent URL and waits for the browser to be
// redirected to a one-shot listener on 127.0.0.1. A zero Timeout waits until
// ctx is done.
type LoopbackAuthorizer struct {
	Out     io.Writer
	Timeout time.Duration
}

type callback struct {
	code string
	err  error
}

// Authorize completes the installed-app flow with PKCE.
func (a *LoopbackAuthorizer) Authorize(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	out := a.Out
	if out == nil {
		out = os.Stderr
	}
	if a.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.Timeout)
		defer cancel()
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("listen for redirect: %w", err)
	}

	conf := *cfg
	conf.RedirectURL = "http://" + ln.Addr().String() + "/"
	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()

	results := make(chan callback, 1)
	deliver := func(cb callback) {
		select {
		case results <- cb:
		default:
		}
	}

	srv := &http.Server{
		ReadHeaderTimeout: 10 * time.Second,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/" {
				http.NotFound(w, r)
				return
			}
			q := r.URL.Query()
			switch {
			case q.Get("state") != state:
				http.Error(w, "state mismatch", http.StatusBadRequest)
				deliver(callback{err: errors.New("state mismatch in redirect")})
			case q.Get("error") != "":
				http.Error(w, "authorization denied", http.StatusForbidden)
				deliver(callback{err: fmt.Errorf("authorization denied: %s", q.Get("error"))})
			case q.Get("code") == "":
				http.Error(w, "missing code", http.StatusBadRequest)
				deliver(callback{err: errors.New("redirect without authorization code")})
			default:
				fmt.Fprintln(w, "Authorization complete. You can close this window.")
				deliver(callback{code: q.Get("code")})
			}
		}),
	}
	go srv.Serve(ln)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	authURL := conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier))
	fmt.Fprintf(out, "Open this link in your browser to allow spreadsheet access:\n\n%s\n\n", authURL)

	var cb callback
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("wait for browser redirect: %w", ctx.Err())
	case cb = <-results:
	}
	if cb.err != nil {
		return nil, cb.err
	}

	tok, err := conf.Exchange(ctx, cb.code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	return tok, nil
}
