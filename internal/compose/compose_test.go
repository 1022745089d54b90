package compose

import (
	"bytes"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"golang.org/x/crypto/bcrypt"

	"github.com/scrtlabs/secretvm-cli/pkg/logger"
)

const twoServices = `
version: "3.8"
services:
  web:
    image: nginx:alpine
    ports:
      - "8080:80"
    labels:
      - "com.example.team=frontend"
      - "traefik.enable=false"
    networks:
      - backend
  db:
    image: postgres:16
    environment:
      POSTGRES_PASSWORD: example
    volumes:
      - db-data:/var/lib/postgresql/data
    labels:
      com.example.tier: data
    networks:
      backend:
        aliases: [database]
networks:
  backend:
    driver: bridge
volumes:
  db-data: {}
x-shared:
  restart: always
`

func fixedPassword() string { return "dashboard-pass" }

func newTestRewriter(w io.Writer) *Rewriter {
	return NewRewriter(logger.New(w), WithPasswordGenerator(fixedPassword))
}

func labelKeys(l Labels) []string {
	keys := make([]string, 0, len(l))
	for k := range l {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func TestParse_LabelSyntaxes(t *testing.T) {
	doc, err := Parse([]byte(twoServices))
	require.NoError(t, err)

	assert.Equal(t, Labels{"com.example.team": "frontend", "traefik.enable": "false"}, doc.Services["web"].Labels)
	assert.Equal(t, Labels{"com.example.tier": "data"}, doc.Services["db"].Labels)
	assert.Equal(t, []string{"backend"}, doc.Services["web"].Networks.Names())
	assert.True(t, doc.Services["db"].Networks.Has("backend"))
	assert.Equal(t, "bridge", doc.Networks["backend"].Driver)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("services: [unterminated"))
	require.Error(t, err)

	_, err = Parse([]byte("services:\n  web:\n    labels: 42\n"))
	require.Error(t, err)
}

func TestEnableTLS_InjectsProxyAndRouting(t *testing.T) {
	doc, err := Parse([]byte(twoServices))
	require.NoError(t, err)

	cred, err := newTestRewriter(io.Discard).EnableTLS(doc)
	require.NoError(t, err)
	assert.Equal(t, DashboardUser, cred.User)
	assert.Equal(t, "dashboard-pass", cred.Password)

	require.Contains(t, doc.Networks, ProxyNetwork)
	assert.Equal(t, "bridge", doc.Networks[ProxyNetwork].Driver)
	assert.Contains(t, doc.Networks, "backend")

	proxy := doc.Services[ProxyService]
	require.NotNil(t, proxy)
	assert.Equal(t, ProxyImage, proxy.Image)
	assert.Equal(t, []any{"80:80", "443:443"}, proxy.Ports)
	assert.Contains(t, proxy.Volumes, "/var/run/docker.sock:/var/run/docker.sock:ro")
	assert.Contains(t, proxy.Command, "--certificatesresolvers.myresolver.acme.tlschallenge=true")
	assert.True(t, proxy.Networks.Has(ProxyNetwork))

	users := proxy.Labels["traefik.http.middlewares.traefik-dashboard-auth.basicauth.users"]
	require.True(t, strings.HasPrefix(users, DashboardUser+":"))
	escaped := strings.TrimPrefix(users, DashboardUser+":")
	assert.NotContains(t, strings.ReplaceAll(escaped, "$$", ""), "$")
	hash := strings.ReplaceAll(escaped, "$$", "$")
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("dashboard-pass")))

	for _, name := range []string{"web", "db"} {
		svc := doc.Services[name]
		assert.True(t, svc.Networks.Has(ProxyNetwork), name)
		assert.True(t, svc.Networks.Has("backend"), name)
		assert.Equal(t, "true", svc.Labels["traefik.enable"], name)
		assert.Equal(t, "Host(`$DOMAIN_NAME`)", svc.Labels["traefik.http.routers."+name+".rule"])
		assert.Equal(t, "websecure", svc.Labels["traefik.http.routers."+name+".entrypoints"])
		assert.Equal(t, CertResolver, svc.Labels["traefik.http.routers."+name+".tls.certresolver"])
		assert.Equal(t, "80", svc.Labels["traefik.http.services."+name+".loadbalancer.server.port"])
	}

	// Existing labels survive; routing keys win.
	assert.Equal(t, "frontend", doc.Services["web"].Labels["com.example.team"])
	assert.Equal(t, "data", doc.Services["db"].Labels["com.example.tier"])
}

func TestEnableTLS_Idempotent(t *testing.T) {
	doc, err := Parse([]byte(twoServices))
	require.NoError(t, err)
	rw := newTestRewriter(io.Discard)

	_, err = rw.EnableTLS(doc)
	require.NoError(t, err)
	servicesOnce := doc.ServiceNames()
	keysOnce := map[string][]string{}
	for name, svc := range doc.Services {
		keysOnce[name] = labelKeys(svc.Labels)
	}
	webNetworksOnce := doc.Services["web"].Networks.Names()

	_, err = rw.EnableTLS(doc)
	require.NoError(t, err)

	assert.Equal(t, servicesOnce, doc.ServiceNames())
	assert.Equal(t, []string{"db", ProxyService, "web"}, doc.ServiceNames())
	for name, svc := range doc.Services {
		assert.Equal(t, keysOnce[name], labelKeys(svc.Labels), name)
	}
	assert.Equal(t, webNetworksOnce, doc.Services["web"].Networks.Names())
	assert.Len(t, doc.Networks, 2)
}

func TestEnableTLS_RoundTripPassesThroughUnknownKeys(t *testing.T) {
	doc, err := Parse([]byte(twoServices))
	require.NoError(t, err)
	_, err = newTestRewriter(io.Discard).EnableTLS(doc)
	require.NoError(t, err)

	out, err := doc.Marshal()
	require.NoError(t, err)

	reparsed, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, "3.8", reparsed.Version)
	assert.Contains(t, reparsed.Extra, "volumes")
	assert.Contains(t, reparsed.Extra, "x-shared")
	assert.Equal(t, map[string]any{"POSTGRES_PASSWORD": "example"}, reparsed.Services["db"].Extra["environment"])
	assert.Equal(t, []string{"backend", ProxyNetwork}, reparsed.Services["db"].Networks.Names())
	assert.Contains(t, string(out), "aliases:")
	assert.Contains(t, string(out), "Host(`$DOMAIN_NAME`)")
	assert.Len(t, reparsed.Services, 3)
}

func TestEnableTLS_EmptyDocument(t *testing.T) {
	doc, err := Parse([]byte("services:\n  app:\n"))
	require.NoError(t, err)

	_, err = newTestRewriter(io.Discard).EnableTLS(doc)
	require.NoError(t, err)

	require.NotNil(t, doc.Services["app"])
	assert.True(t, doc.Services["app"].Networks.Has(ProxyNetwork))
	assert.Contains(t, doc.Services, ProxyService)
}

func TestEnableTLS_WarnsOnPortConflicts(t *testing.T) {
	doc, err := Parse([]byte(`
services:
  web:
    image: nginx
    ports:
      - "80:80"
      - "127.0.0.1:443:8443"
      - "9000"
`))
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = newTestRewriter(&buf).EnableTLS(doc)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "compose port conflicts with TLS proxy")
	assert.Equal(t, 2, strings.Count(buf.String(), "compose port conflicts with TLS proxy"))
}

func TestCheckPortConflicts(t *testing.T) {
	doc, err := Parse([]byte(`
services:
  a:
    ports:
      - 80
      - "8080:80"
  b:
    ports:
      - target: 80
        published: 443
      - target: 81
  c:
    ports:
      - "not-a-port:x"
`))
	require.NoError(t, err)

	errs := multierr.Errors(CheckPortConflicts(doc))
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0].Error(), `service "b" publishes host port 443`)
	assert.Contains(t, errs[1].Error(), `service "c"`)
}

func TestEnableTLS_SkipsNetworkModeServices(t *testing.T) {
	doc, err := Parse([]byte(`
services:
  web:
    image: nginx
  agent:
    image: monitor
    network_mode: host
  sidecar:
    image: envoy
    network_mode: "service:web"
`))
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = newTestRewriter(&buf).EnableTLS(doc)
	require.NoError(t, err)

	assert.True(t, doc.Services["web"].Networks.Has(ProxyNetwork))
	for _, name := range []string{"agent", "sidecar"} {
		svc := doc.Services[name]
		assert.Empty(t, svc.Networks.Names(), name)
		assert.Empty(t, svc.Labels, name)
	}
	assert.Equal(t, 2, strings.Count(buf.String(), "compose service uses network_mode"))

	out, err := doc.Marshal()
	require.NoError(t, err)
	reparsed, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, "host", reparsed.Services["agent"].Extra["network_mode"])
	assert.Empty(t, reparsed.Services["agent"].Networks.Names())
}

func TestEnableTLS_WarnsWhenReplacingUserProxyService(t *testing.T) {
	doc, err := Parse([]byte(`
services:
  web:
    image: nginx
  traefik:
    image: traefik:v3.0
`))
	require.NoError(t, err)

	var buf bytes.Buffer
	rw := newTestRewriter(&buf)
	_, err = rw.EnableTLS(doc)
	require.NoError(t, err)

	assert.Equal(t, ProxyImage, doc.Services[ProxyService].Image)
	assert.Contains(t, buf.String(), "replacing existing compose service with the TLS proxy")

	// The injected proxy is recognised on a second pass.
	buf.Reset()
	_, err = rw.EnableTLS(doc)
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "replacing existing compose service")
}
