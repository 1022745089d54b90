// Package logincallback receives the session token the portal sign-in page
// hands back to the CLI after a browser login.
package logincallback

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/browser"

	"github.com/scrtlabs/secretvm-cli/internal/adapters/in/http/httputil"
	"github.com/scrtlabs/secretvm-cli/internal/adapters/out/session"
	"github.com/scrtlabs/secretvm-cli/internal/domain"
	"github.com/scrtlabs/secretvm-cli/pkg/logger"
)

// DefaultTimeout bounds the wait for the browser callback.
const DefaultTimeout = 2 * time.Minute

const shutdownGrace = 5 * time.Second

// CallbackPath is the route the sign-in page redirects to.
const CallbackPath = "/callback"

const (
	successPage = "<h1>Success!</h1><p>You are logged in. You can now close this browser tab and return to your terminal.</p>"
	errorPage   = "<h1>Error</h1><p>An error occurred. Please check the CLI for details.</p>"
)

// ErrMissingToken is returned when the callback lacks the session token or
// its cookie name.
var ErrMissingToken = errors.New("session token or token name missing in callback")

// Result is the session cookie handed back by the browser.
type Result struct {
	TokenName    string
	SessionToken string
}

// Cookie builds the session cookie for the portal at baseURL.
func (r *Result) Cookie(baseURL string) (session.Cookie, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return session.Cookie{}, fmt.Errorf("invalid server URL %q: %w", baseURL, err)
	}
	return session.Cookie{
		Name:     r.TokenName,
		Value:    r.SessionToken,
		Domain:   u.Hostname(),
		Path:     "/",
		HTTPOnly: true,
		Secure:   u.Scheme == "https",
		HostOnly: true,
	}, nil
}

// Listener runs one browser login round trip.
type Listener struct {
	log     *logger.Logger
	timeout time.Duration
	open    func(string) error
}

// Option configures a Listener.
type Option func(*Listener)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(l *Listener) {
		l.timeout = d
	}
}

// WithOpener replaces the function that opens the sign-in page.
func WithOpener(open func(string) error) Option {
	return func(l *Listener) {
		l.open = open
	}
}

// New creates a Listener that opens the system browser.
func New(log *logger.Logger, opts ...Option) *Listener {
	if log == nil {
		log = logger.GetLogger()
	}
	l := &Listener{
		log:     log,
		timeout: DefaultTimeout,
		open:    browser.OpenURL,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SignInURL returns the portal page that redirects back to port.
func SignInURL(baseURL string, port int) string {
	q := url.Values{}
	q.Set("cliCallbackPort", fmt.Sprintf("%d", port))
	return strings.TrimSuffix(baseURL, "/") + "/sign-in?" + q.Encode()
}

type outcome struct {
	result *Result
	err    error
}

// Wait starts a listener on a random loopback port, opens the sign-in page
// and blocks until the first of: a callback, a listener error, the timeout
// or ctx cancellation. The listener is closed before Wait returns.
func (l *Listener) Wait(ctx context.Context, baseURL string) (*Result, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to start callback listener: %w", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port

	outcomes := make(chan outcome, 1)
	var once sync.Once
	resolve := func(o outcome) {
		once.Do(func() { outcomes <- o })
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Listener = ln
	e.Use(httputil.LoopbackOnly())
	e.GET(CallbackPath, func(c echo.Context) error {
		token := c.QueryParam("sessionToken")
		name := c.QueryParam("tokenName")
		if token == "" || name == "" {
			resolve(outcome{err: ErrMissingToken})
			return c.HTML(http.StatusInternalServerError, errorPage)
		}
		resolve(outcome{result: &Result{TokenName: name, SessionToken: token}})
		return c.HTML(http.StatusOK, successPage)
	})

	serveDone := make(chan struct{})
	go func() {
		defer close(serveDone)
		if err := e.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			resolve(outcome{err: fmt.Errorf("callback listener failed: %w", err)})
		}
	}()

	defer func() {
		// Let an in-flight callback finish its response, then force close.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			l.log.Warn("could not shut down callback listener gracefully", "error", err)
			_ = e.Close()
		}
		<-serveDone
		l.log.Debug("callback listener closed", "port", port)
	}()

	signIn := SignInURL(baseURL, port)
	l.log.Info("waiting for browser login", "port", port)
	l.log.Debug("sign-in URL", "url", signIn)
	if err := l.open(signIn); err != nil {
		l.log.Warn("could not open browser, visit the sign-in URL manually", "url", signIn, "error", err)
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	select {
	case o := <-outcomes:
		return o.result, o.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, domain.ErrLoginTimeout
		}
		return nil, ctx.Err()
	}
}
