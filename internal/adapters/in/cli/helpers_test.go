package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/scrtlabs/secretvm-cli/internal/adapters/in/http/logincallback"
	"github.com/scrtlabs/secretvm-cli/internal/adapters/out/apiclient"
	"github.com/scrtlabs/secretvm-cli/internal/adapters/out/session"
	"github.com/scrtlabs/secretvm-cli/internal/compose"
	"github.com/scrtlabs/secretvm-cli/internal/config"
	"github.com/scrtlabs/secretvm-cli/pkg/envelope"
	"github.com/scrtlabs/secretvm-cli/pkg/logger"
)

const twoServiceCompose = `services:
  web:
    image: nginx:latest
  db:
    image: postgres:16
`

// mockPrompter answers prompts by message. Validators are not run.
type mockPrompter struct {
	mock.Mock
}

func (m *mockPrompter) Input(message string, _ func(string) error) (string, error) {
	args := m.Called(message)
	return args.String(0), args.Error(1)
}

func (m *mockPrompter) Password(message string) (string, error) {
	args := m.Called(message)
	return args.String(0), args.Error(1)
}

func (m *mockPrompter) Confirm(message string, defaultValue bool) (bool, error) {
	args := m.Called(message, defaultValue)
	return args.Bool(0), args.Error(1)
}

func (m *mockPrompter) Editor(message string, _ func(string) error) (string, error) {
	args := m.Called(message)
	return args.String(0), args.Error(1)
}

type fakeKeys struct {
	key     string
	deleted bool
}

func (k *fakeKeys) Lookup() string { return k.key }

func (k *fakeKeys) Set(key string) error {
	k.key = key
	return nil
}

func (k *fakeKeys) Delete() error {
	k.key = ""
	k.deleted = true
	return nil
}

type fakeBrowser struct {
	result  *logincallback.Result
	err     error
	calls   int
	baseURL string
}

func (b *fakeBrowser) Wait(_ context.Context, baseURL string) (*logincallback.Result, error) {
	b.calls++
	b.baseURL = baseURL
	return b.result, b.err
}

type encryptCall struct {
	registry, username, password string
}

type fakeEncrypter struct {
	calls []encryptCall
}

func (e *fakeEncrypter) EncryptCredentials(registry, username, password string) (*envelope.Envelope, error) {
	e.calls = append(e.calls, encryptCall{registry, username, password})
	return &envelope.Envelope{EncryptedData: "sealed-data", EncryptedAESKey: "sealed-key"}, nil
}

// recordedRequest is what the fake portal saw for one request.
type recordedRequest struct {
	method  string
	path    string
	auth    string
	cookie  string
	fields  map[string]string
	compose string
}

func (r recordedRequest) String() string {
	return r.method + " " + r.path
}

// portal is a fake developer portal. Routes are keyed by "METHOD path";
// anything else answers 404.
type portal struct {
	t      *testing.T
	srv    *httptest.Server
	routes map[string]http.HandlerFunc

	mu   sync.Mutex
	seen []recordedRequest
}

func newPortal(t *testing.T, routes map[string]http.HandlerFunc) *portal {
	t.Helper()
	p := &portal{t: t, routes: routes}
	p.srv = httptest.NewServer(http.HandlerFunc(p.serve))
	t.Cleanup(p.srv.Close)
	return p
}

func (p *portal) serve(w http.ResponseWriter, r *http.Request) {
	rec := recordedRequest{
		method: r.Method,
		path:   r.URL.Path,
		auth:   r.Header.Get("Authorization"),
		cookie: r.Header.Get("Cookie"),
	}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(1 << 20); err == nil {
			rec.fields = map[string]string{}
			for name, values := range r.MultipartForm.Value {
				rec.fields[name] = values[0]
			}
			if file, _, err := r.FormFile(apiclient.FieldDockerCompose); err == nil {
				data, _ := io.ReadAll(file)
				_ = file.Close()
				rec.compose = string(data)
			}
		}
	}

	p.mu.Lock()
	p.seen = append(p.seen, rec)
	p.mu.Unlock()

	if h, ok := p.routes[r.Method+" "+r.URL.Path]; ok {
		h(w, r)
		return
	}
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte(`{"message":"no such route"}`))
}

func (p *portal) requests() []recordedRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]recordedRequest(nil), p.seen...)
}

func (p *portal) requestLines() []string {
	var lines []string
	for _, r := range p.requests() {
		lines = append(lines, r.String())
	}
	return lines
}

func jsonHandler(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

// testEnv wires an App to a fake portal and fake collaborators.
type testEnv struct {
	t         *testing.T
	portal    *portal
	app       *App
	store     *session.Store
	keys      *fakeKeys
	prompter  *mockPrompter
	browser   *fakeBrowser
	encrypter *fakeEncrypter
	sleeps    []time.Duration
	stdout    bytes.Buffer
	stderr    bytes.Buffer
}

func newTestEnv(t *testing.T, routes map[string]http.HandlerFunc) *testEnv {
	t.Helper()
	t.Setenv(config.EnvAPIKey, "")

	quiet := logger.New(io.Discard)
	e := &testEnv{
		t:         t,
		portal:    newPortal(t, routes),
		keys:      &fakeKeys{},
		prompter:  &mockPrompter{},
		browser:   &fakeBrowser{},
		encrypter: &fakeEncrypter{},
	}
	e.prompter.Test(t)
	e.store = session.NewStore(filepath.Join(t.TempDir(), session.FileName), quiet)

	e.app = NewApp(
		WithFactory(apiclient.NewFactory(e.portal.srv.URL, e.store, quiet)),
		WithKeyStore(e.keys),
		WithPrompter(e.prompter),
		WithBrowserLogin(e.browser),
		WithEncrypter(e.encrypter),
		WithRewriter(compose.NewRewriter(quiet, compose.WithPasswordGenerator(func() string { return "dashboard-pass" }))),
		WithSleep(func(_ context.Context, d time.Duration) error {
			e.sleeps = append(e.sleeps, d)
			return nil
		}),
		WithOutput(&e.stdout, &e.stderr),
		WithLogger(quiet),
	)
	t.Cleanup(func() { e.prompter.AssertExpectations(t) })
	return e
}

func (e *testEnv) execute(args ...string) error {
	root := NewRootCmd(e.app)
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

// record decodes the single JSON line printed in scripted mode.
func (e *testEnv) record() map[string]any {
	e.t.Helper()
	lines := strings.Split(strings.TrimRight(e.stdout.String(), "\n"), "\n")
	require.Len(e.t, lines, 1, "scripted mode prints exactly one line: %q", e.stdout.String())

	var rec map[string]any
	require.NoError(e.t, json.Unmarshal([]byte(lines[0]), &rec))
	return rec
}

func (e *testEnv) result() map[string]any {
	e.t.Helper()
	rec := e.record()
	require.Equal(e.t, StatusSuccess, rec["status"], "record: %v", rec)
	result, ok := rec["result"].(map[string]any)
	require.True(e.t, ok, "result is not an object: %v", rec["result"])
	return result
}

func (e *testEnv) errorLog() any {
	e.t.Helper()
	rec := e.record()
	require.Equal(e.t, StatusError, rec["status"], "record: %v", rec)
	return rec["log"]
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}
