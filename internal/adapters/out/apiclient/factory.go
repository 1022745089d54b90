package apiclient

import (
	"github.com/scrtlabs/secretvm-cli/internal/adapters/out/session"
	"github.com/scrtlabs/secretvm-cli/internal/domain"
	"github.com/scrtlabs/secretvm-cli/pkg/logger"
)

// Factory builds clients bound to one server and one session store.
type Factory struct {
	baseURL string
	store   *session.Store
	log     *logger.Logger
	opts    []ClientOption
}

// NewFactory creates a client factory. Extra options are applied to every
// client it builds.
func NewFactory(baseURL string, store *session.Store, log *logger.Logger, opts ...ClientOption) *Factory {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Factory{
		baseURL: baseURL,
		store:   store,
		log:     log,
		opts:    opts,
	}
}

// BaseURL returns the server URL clients are bound to.
func (f *Factory) BaseURL() string {
	return f.baseURL
}

// Store returns the session store clients read from.
func (f *Factory) Store() *session.Store {
	return f.store
}

// Client returns a client for the given options. With an API key the
// client authenticates by bearer token and sends no cookies; otherwise it
// uses the stored session, or a fresh empty one.
func (f *Factory) Client(options domain.GlobalOptions) *Client {
	opts := make([]ClientOption, 0, len(f.opts)+3)
	opts = append(opts, WithLogger(f.log))
	opts = append(opts, f.opts...)

	if options.UsesAPIKey() {
		opts = append(opts, WithAPIKey(options.APIKey))
	} else if f.store != nil {
		opts = append(opts, WithSession(f.store.LoadOrNew()))
	}

	return NewClient(f.baseURL, opts...)
}

// LoginClient returns a cookie client on a fresh empty session, ignoring
// any API key. Login commands persist its session once they succeed.
func (f *Factory) LoginClient() *Client {
	opts := make([]ClientOption, 0, len(f.opts)+2)
	opts = append(opts, WithLogger(f.log))
	opts = append(opts, f.opts...)
	opts = append(opts, WithSession(session.New()))
	return NewClient(f.baseURL, opts...)
}
