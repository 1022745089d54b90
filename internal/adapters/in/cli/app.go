package cli

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/scrtlabs/secretvm-cli/internal/adapters/in/http/logincallback"
	"github.com/scrtlabs/secretvm-cli/internal/adapters/out/apiclient"
	"github.com/scrtlabs/secretvm-cli/internal/adapters/out/apikey"
	"github.com/scrtlabs/secretvm-cli/internal/compose"
	"github.com/scrtlabs/secretvm-cli/internal/config"
	"github.com/scrtlabs/secretvm-cli/internal/domain"
	"github.com/scrtlabs/secretvm-cli/pkg/envelope"
	"github.com/scrtlabs/secretvm-cli/pkg/logger"
)

// relaunchDelay is the pause between stopping a VM and relaunching it
// with a new configuration.
const relaunchDelay = 5 * time.Second

// KeyStore persists the API key between invocations.
type KeyStore interface {
	Lookup() string
	Set(key string) error
	Delete() error
}

// BrowserLogin runs the browser sign-in round trip.
type BrowserLogin interface {
	Wait(ctx context.Context, baseURL string) (*logincallback.Result, error)
}

// CredentialEncrypter seals registry credentials for the service.
type CredentialEncrypter interface {
	EncryptCredentials(registry, username, password string) (*envelope.Envelope, error)
}

// EncrypterFunc adapts a function to CredentialEncrypter.
type EncrypterFunc func(registry, username, password string) (*envelope.Envelope, error)

// EncryptCredentials calls f.
func (f EncrypterFunc) EncryptCredentials(registry, username, password string) (*envelope.Envelope, error) {
	return f(registry, username, password)
}

// App carries the collaborators shared by every command. Options are set
// once by the root command before any handler runs.
type App struct {
	opts domain.GlobalOptions

	factory   *apiclient.Factory
	keys      KeyStore
	prompter  Prompter
	browser   BrowserLogin
	rewriter  *compose.Rewriter
	encrypter CredentialEncrypter

	defaultRegistry string
	sleep           func(context.Context, time.Duration) error

	stdout io.Writer
	stderr io.Writer
	log    *logger.Logger
}

// Option configures an App.
type Option func(*App)

// WithFactory sets the API client factory.
func WithFactory(f *apiclient.Factory) Option {
	return func(a *App) {
		a.factory = f
	}
}

// WithKeyStore replaces the keyring-backed API key store.
func WithKeyStore(k KeyStore) Option {
	return func(a *App) {
		a.keys = k
	}
}

// WithPrompter replaces the terminal prompter.
func WithPrompter(p Prompter) Option {
	return func(a *App) {
		a.prompter = p
	}
}

// WithBrowserLogin replaces the browser login listener.
func WithBrowserLogin(b BrowserLogin) Option {
	return func(a *App) {
		a.browser = b
	}
}

// WithRewriter replaces the compose rewriter.
func WithRewriter(r *compose.Rewriter) Option {
	return func(a *App) {
		a.rewriter = r
	}
}

// WithEncrypter replaces the credential encrypter.
func WithEncrypter(e CredentialEncrypter) Option {
	return func(a *App) {
		a.encrypter = e
	}
}

// WithDefaultRegistry sets the registry used when -r is not given.
func WithDefaultRegistry(registry string) Option {
	return func(a *App) {
		a.defaultRegistry = registry
	}
}

// WithSleep replaces the wait used between stop and relaunch.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(a *App) {
		a.sleep = sleep
	}
}

// WithOutput redirects command output.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(a *App) {
		a.stdout = stdout
		a.stderr = stderr
	}
}

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(a *App) {
		a.log = log
	}
}

// NewApp creates an App. Collaborators not supplied by options get their
// production implementation.
func NewApp(opts ...Option) *App {
	a := &App{
		defaultRegistry: config.DefaultRegistry,
		sleep:           sleepContext,
		stdout:          os.Stdout,
		stderr:          os.Stderr,
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.log == nil {
		a.log = logger.GetLogger()
	}
	if a.keys == nil {
		a.keys = apikey.NewStore()
	}
	if a.prompter == nil {
		a.prompter = NewSurveyPrompter(a.stderr)
	}
	if a.browser == nil {
		a.browser = logincallback.New(a.log)
	}
	if a.rewriter == nil {
		a.rewriter = compose.NewRewriter(a.log)
	}
	if a.encrypter == nil {
		a.encrypter = EncrypterFunc(envelope.EncryptCredentials)
	}
	return a
}

// Options returns the resolved global options.
func (a *App) Options() domain.GlobalOptions {
	return a.opts
}

func (a *App) client() *apiclient.Client {
	return a.factory.Client(a.opts)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
