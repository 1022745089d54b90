package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrtlabs/secretvm-cli/internal/adapters/out/session"
	"github.com/scrtlabs/secretvm-cli/internal/domain"
	"github.com/scrtlabs/secretvm-cli/pkg/envelope"
	"github.com/scrtlabs/secretvm-cli/pkg/logger"
)

func quietLogger() *logger.Logger {
	return logger.New(io.Discard)
}

func TestClientListVMs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, PathInstances, r.URL.Path)
		require.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"uuid-1","vmId":"vm-1","name":"n","nameFromUser":"demo","status":"running","ip_address":null,"vmType":{"type":"small","cpu":2,"ram":4,"disk":40,"pricePerHour":0.1}}]`))
	}))
	defer srv.Close()

	vms, err := NewClient(srv.URL, WithLogger(quietLogger())).ListVMs(context.Background())
	require.NoError(t, err)
	require.Len(t, vms, 1)
	assert.Equal(t, "vm-1", vms[0].VMID)
	assert.Equal(t, "demo", domain.StringOr(vms[0].NameFromUser, ""))
	assert.Nil(t, vms[0].IPAddress)
	require.NotNil(t, vms[0].VMType)
	assert.Equal(t, "small", vms[0].VMType.Type)
}

func TestClientHTTPErrorMessage(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"message field", http.StatusBadRequest, `{"message":"name already taken"}`, "name already taken"},
		{"error field", http.StatusConflict, `{"error":"quota exceeded"}`, "quota exceeded"},
		{"raw body", http.StatusBadGateway, "upstream down\n", "upstream down"},
		{"empty body", http.StatusNotFound, "", "Not Found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, WithLogger(quietLogger())).GetVM(context.Background(), "vm-1")
			require.Error(t, err)

			var httpErr *HTTPError
			require.True(t, errors.As(err, &httpErr))
			assert.Equal(t, tt.status, httpErr.StatusCode)
			assert.Equal(t, tt.message, httpErr.Message)

			code, ok := StatusCode(err)
			assert.True(t, ok)
			assert.Equal(t, tt.status, code)
		})
	}
}

func TestHTTPErrorMarshalJSON(t *testing.T) {
	jsonBody := &HTTPError{StatusCode: 400, Message: "bad", Body: []byte(`{"message":"bad"}`)}
	out, err := json.Marshal(jsonBody)
	require.NoError(t, err)
	assert.JSONEq(t, `{"statusCode":400,"message":"bad","data":{"message":"bad"}}`, string(out))

	textBody := &HTTPError{StatusCode: 502, Message: "upstream down", Body: []byte("upstream down")}
	out, err = json.Marshal(textBody)
	require.NoError(t, err)
	assert.JSONEq(t, `{"statusCode":502,"message":"upstream down","data":"upstream down"}`, string(out))

	empty := &HTTPError{StatusCode: 404, Message: "Not Found"}
	out, err = json.Marshal(empty)
	require.NoError(t, err)
	assert.JSONEq(t, `{"statusCode":404,"message":"Not Found"}`, string(out))
}

func TestClientSendsAndUpdatesSessionCookies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("session-token")
		require.NoError(t, err)
		assert.Equal(t, "old", cookie.Value)
		assert.Empty(t, r.Header.Get("Authorization"))

		http.SetCookie(w, &http.Cookie{Name: "session-token", Value: "rotated", Path: "/"})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user":{"email":"a@b.c"},"expires":"2030-01-01"}`))
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	sess := session.FromCookies([]session.Cookie{{Name: "session-token", Value: "old", Domain: u.Hostname(), Path: "/"}})
	client := NewClient(srv.URL, WithSession(sess), WithLogger(quietLogger()))

	result, err := client.GetSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", result.Identity())

	all := client.Session().All()
	require.Len(t, all, 1)
	assert.Equal(t, "rotated", all[0].Value)
}

func TestClientAPIKeyTakesPrecedence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key-123", r.Header.Get("Authorization"))
		assert.Empty(t, r.Cookies())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	sess := session.FromCookies([]session.Cookie{{Name: "session-token", Value: "v", Domain: u.Hostname(), Path: "/"}})

	vms, err := NewClient(srv.URL, WithSession(sess), WithAPIKey("key-123"), WithLogger(quietLogger())).ListVMs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, vms)
}

func TestClientCreateVMMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, PathCreate, r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Equal(t, "demo", r.FormValue(FieldName))
		assert.Equal(t, "small", r.FormValue(FieldVMTypeID))
		assert.Equal(t, "INV", r.FormValue(FieldInviteCode))
		assert.Equal(t, "A=1", r.FormValue(FieldSecrets))
		assert.Equal(t, "data", r.FormValue(FieldCredentialsEncrypted))
		assert.Equal(t, "key", r.FormValue(FieldCredentialsKey))
		assert.Equal(t, "1", r.FormValue(FieldFSPersistence))

		file, header, err := r.FormFile(FieldDockerCompose)
		require.NoError(t, err)
		defer file.Close()
		content, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, "compose.yml", header.Filename)
		assert.Equal(t, "services: {}\n", string(content))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"uuid-1","vmId":"vm-1","status":"creating"}`))
	}))
	defer srv.Close()

	vm, err := NewClient(srv.URL, WithLogger(quietLogger())).CreateVM(context.Background(), &VMForm{
		Name:            "demo",
		VMTypeID:        "small",
		InviteCode:      "INV",
		ComposeFileName: "compose.yml",
		Compose:         []byte("services: {}\n"),
		Secrets:         "A=1",
		Credentials:     &envelope.Envelope{EncryptedData: "data", EncryptedAESKey: "key"},
		FSPersistence:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, "vm-1", vm.VMID)
	assert.Equal(t, "creating", vm.Status)
}

func TestClientLaunchOmitsEmptyFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/vm/vm-1/launch", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Equal(t, []string{"renamed"}, r.MultipartForm.Value[FieldName])
		for _, field := range []string{FieldVMTypeID, FieldInviteCode, FieldSecrets, FieldCredentialsKey, FieldFSPersistence} {
			_, present := r.MultipartForm.Value[field]
			assert.False(t, present, field)
		}
		assert.Empty(t, r.MultipartForm.File[FieldDockerCompose])

		_, _ = w.Write([]byte(`{"id":"uuid-1","vmId":"vm-1","status":"launching"}`))
	}))
	defer srv.Close()

	vm, err := NewClient(srv.URL, WithLogger(quietLogger())).LaunchVM(context.Background(), "vm-1", &VMForm{Name: "renamed"})
	require.NoError(t, err)
	assert.Equal(t, "launching", vm.Status)
}

func TestClientLifecycleEndpoints(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Method+" "+r.URL.Path)
		mu.Unlock()
		_, _ = w.Write([]byte(`{"status":"ok","message":"done"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, WithLogger(quietLogger()))
	ctx := context.Background()

	res, err := client.StartVM(ctx, "vm-1")
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Status)
	_, err = client.StopVM(ctx, "vm-1")
	require.NoError(t, err)
	_, err = client.TerminateVM(ctx, "vm-1")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"POST /api/vm/vm-1/start",
		"POST /api/vm/vm-1/stop",
		"DELETE /api/vm/vm-1/terminate",
	}, seen)
}

func TestClientLifecycleEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL, WithLogger(quietLogger())).StopVM(context.Background(), "vm-1")
	require.NoError(t, err)
	assert.Empty(t, res.Status)
}

func TestClientLogsAndAttestation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/vm/vm-1/docker_logs":
			_, _ = w.Write([]byte(`"line one\nline two"`))
		case "/api/vm/vm-1/cpu":
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("QUOTE-BYTES"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL, WithLogger(quietLogger()))

	logs, err := client.Logs(context.Background(), "vm-1")
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", logs)

	report, err := client.Attestation(context.Background(), "vm-1")
	require.NoError(t, err)
	assert.Equal(t, "QUOTE-BYTES", report)

	_, err = client.Logs(context.Background(), "missing")
	code, ok := StatusCode(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestClientLoginWithWalletRedirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case PathCSRF:
			_, _ = w.Write([]byte(`{"csrfToken":"csrf-1"}`))
		case PathWalletCallback:
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "secret1abc", r.PostForm.Get("walletAddress"))
			assert.Equal(t, "csrf-1", r.PostForm.Get("csrfToken"))
			assert.Equal(t, "true", r.PostForm.Get("json"))
			http.SetCookie(w, &http.Cookie{Name: "session-token", Value: "wallet", Path: "/"})
			http.Redirect(w, r, "/dashboard", http.StatusFound)
		default:
			t.Errorf("unexpected request to %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL, WithLogger(quietLogger()))
	result, err := client.LoginWithWallet(context.Background(), "secret1abc")
	require.NoError(t, err)
	assert.Equal(t, "/dashboard", result.URL)

	all := client.Session().All()
	require.Len(t, all, 1)
	assert.Equal(t, "wallet", all[0].Value)
}

func TestClientCSRFTokenAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, WithLogger(quietLogger())).LoginWithWallet(context.Background(), "secret1abc")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCSRFTokenAbsent)
}

func TestFactoryClient(t *testing.T) {
	var (
		mu         sync.Mutex
		lastAuth   string
		lastCookie string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		lastAuth = r.Header.Get("Authorization")
		lastCookie = ""
		if c, err := r.Cookie("session-token"); err == nil {
			lastCookie = c.Value
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	observed := func() (string, string) {
		mu.Lock()
		defer mu.Unlock()
		return lastAuth, lastCookie
	}
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	store := session.NewStore(filepath.Join(t.TempDir(), session.FileName), quietLogger())
	store.Save(session.FromCookies([]session.Cookie{{Name: "session-token", Value: "stored", Domain: u.Hostname(), Path: "/"}}))

	factory := NewFactory(srv.URL+"/", store, quietLogger())
	assert.Equal(t, srv.URL+"/", factory.BaseURL())

	_, err = factory.Client(domain.GlobalOptions{}).ListVMs(context.Background())
	require.NoError(t, err)
	auth, cookie := observed()
	assert.Equal(t, "stored", cookie)
	assert.Empty(t, auth)

	_, err = factory.Client(domain.GlobalOptions{APIKey: "k"}).ListVMs(context.Background())
	require.NoError(t, err)
	auth, cookie = observed()
	assert.Empty(t, cookie)
	assert.Equal(t, "Bearer k", auth)
}

func TestFactoryClientWithoutSession(t *testing.T) {
	store := session.NewStore(filepath.Join(t.TempDir(), session.FileName), quietLogger())
	client := NewFactory("https://example.com", store, quietLogger()).Client(domain.GlobalOptions{})

	require.NotNil(t, client.Session())
	assert.Equal(t, 0, client.Session().Len())
	assert.Equal(t, "https://example.com", client.BaseURL())
}

func TestFactoryLoginClientStartsFresh(t *testing.T) {
	store := session.NewStore(filepath.Join(t.TempDir(), session.FileName), quietLogger())
	store.Save(session.FromCookies([]session.Cookie{{Name: "old", Value: "v", Domain: "example.com", Path: "/"}}))

	client := NewFactory("https://example.com", store, quietLogger()).LoginClient()
	assert.Equal(t, 0, client.Session().Len())
	assert.Equal(t, 1, store.Load().Len())
}

func TestClientWithHTTPClientIsNotMutated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "v1", Path: "/"})
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	custom := &http.Client{}
	c := NewClient(srv.URL, WithHTTPClient(custom), WithLogger(quietLogger()))

	_, err := c.GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, custom.Jar, "caller's client must not get the session jar")
	assert.Equal(t, 1, c.Session().Len())
}

func TestClientWithTimeoutIgnoresOptionOrder(t *testing.T) {
	tests := []struct {
		name string
		opts func(custom *http.Client) []ClientOption
	}{
		{
			name: "timeout first",
			opts: func(custom *http.Client) []ClientOption {
				return []ClientOption{WithTimeout(5 * time.Second), WithHTTPClient(custom)}
			},
		},
		{
			name: "timeout last",
			opts: func(custom *http.Client) []ClientOption {
				return []ClientOption{WithHTTPClient(custom), WithTimeout(5 * time.Second)}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			custom := &http.Client{Timeout: time.Minute}
			c := NewClient("https://example.com", tt.opts(custom)...)

			assert.Equal(t, 5*time.Second, c.httpClient.Timeout)
			assert.Equal(t, time.Minute, custom.Timeout, "caller's client must not be changed")
		})
	}
}

func TestClientDefaultTimeout(t *testing.T) {
	assert.Equal(t, 60*time.Second, NewClient("https://example.com").httpClient.Timeout)
}
