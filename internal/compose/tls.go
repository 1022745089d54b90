package compose

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/crypto/bcrypt"

	"github.com/scrtlabs/secretvm-cli/pkg/logger"
)

// Names and settings of the injected proxy.
const (
	ProxyService = "traefik"
	ProxyNetwork = "traefik"
	ProxyImage   = "traefik:v2.11"

	CertResolver      = "myresolver"
	SecureEntryPoint  = "websecure"
	DomainPlaceholder = "$DOMAIN_NAME"
	BackendPort       = 80

	dashboardRouter     = "traefik-dashboard"
	dashboardMiddleware = "traefik-dashboard-auth"
	dashboardUsersLabel = "traefik.http.middlewares." + dashboardMiddleware + ".basicauth.users"
	// DashboardUser is the basic-auth user guarding the proxy dashboard.
	DashboardUser = "admin"
)

// DashboardCredential is the basic-auth login generated for the proxy
// dashboard. Password is only known to the caller; the document carries
// the bcrypt hash.
type DashboardCredential struct {
	User     string `json:"user"`
	Password string `json:"password"`
}

// Rewriter injects the TLS proxy into compose documents.
type Rewriter struct {
	log         *logger.Logger
	newPassword func() string
}

// RewriterOption configures a Rewriter.
type RewriterOption func(*Rewriter)

// WithPasswordGenerator overrides the dashboard password source.
func WithPasswordGenerator(gen func() string) RewriterOption {
	return func(r *Rewriter) {
		r.newPassword = gen
	}
}

// NewRewriter creates a Rewriter.
func NewRewriter(log *logger.Logger, opts ...RewriterOption) *Rewriter {
	if log == nil {
		log = logger.GetLogger()
	}
	r := &Rewriter{
		log: log,
		newPassword: func() string {
			return strings.ReplaceAll(uuid.NewString(), "-", "")
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// EnableTLS adds the proxy network and service, then puts every other
// service on the proxy network with routing labels for $DOMAIN_NAME.
// Existing labels and networks are merged, never dropped. Running it twice
// yields the same service set and label keys. Services using network_mode
// cannot join a network and are left untouched; a user service already
// named traefik is replaced. Both cases are logged as warnings.
func (r *Rewriter) EnableTLS(doc *Document) (*DashboardCredential, error) {
	cred := &DashboardCredential{User: DashboardUser, Password: r.newPassword()}
	hash, err := bcrypt.GenerateFromPassword([]byte(cred.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash dashboard password: %w", err)
	}

	if doc.Networks == nil {
		doc.Networks = map[string]*Network{}
	}
	doc.Networks[ProxyNetwork] = &Network{Driver: "bridge"}

	if doc.Services == nil {
		doc.Services = map[string]*Service{}
	}

	if existing := doc.Services[ProxyService]; existing != nil && !isInjectedProxy(existing) {
		r.log.Warn("replacing existing compose service with the TLS proxy", "service", ProxyService, "image", existing.Image)
	}

	for _, name := range doc.ServiceNames() {
		if name == ProxyService {
			continue
		}
		svc := doc.Services[name]
		if svc == nil {
			svc = &Service{}
			doc.Services[name] = svc
		}
		if mode, ok := svc.Extra["network_mode"]; ok {
			r.log.Warn("compose service uses network_mode, not routed through the TLS proxy", "service", name, "network_mode", mode)
			continue
		}
		svc.Networks.Add(ProxyNetwork)
		svc.Labels.Merge(RoutingLabels(name))
	}

	doc.Services[ProxyService] = proxyService(string(hash))

	if err := CheckPortConflicts(doc); err != nil {
		for _, conflict := range multierr.Errors(err) {
			r.log.Warn("compose port conflicts with TLS proxy", "error", conflict)
		}
	}

	return cred, nil
}

// RoutingLabels returns the Traefik labels exposing service on
// $DOMAIN_NAME over HTTPS.
func RoutingLabels(service string) Labels {
	router := "traefik.http.routers." + service
	return Labels{
		"traefik.enable":         "true",
		"traefik.docker.network": ProxyNetwork,

		router + ".rule":             fmt.Sprintf("Host(`%s`)", DomainPlaceholder),
		router + ".entrypoints":      SecureEntryPoint,
		router + ".tls.certresolver": CertResolver,

		"traefik.http.services." + service + ".loadbalancer.server.port": fmt.Sprintf("%d", BackendPort),
	}
}

func isInjectedProxy(svc *Service) bool {
	_, ok := svc.Labels[dashboardUsersLabel]
	return ok
}

func proxyService(bcryptHash string) *Service {
	router := "traefik.http.routers." + dashboardRouter
	// Compose interpolates "$", so the hash needs "$$".
	users := DashboardUser + ":" + strings.ReplaceAll(bcryptHash, "$", "$$")

	return &Service{
		Image: ProxyImage,
		Command: []string{
			"--api.dashboard=true",
			"--providers.docker=true",
			"--providers.docker.exposedbydefault=false",
			"--providers.docker.network=" + ProxyNetwork,
			"--entrypoints.web.address=:80",
			"--entrypoints.web.http.redirections.entrypoint.to=" + SecureEntryPoint,
			"--entrypoints.web.http.redirections.entrypoint.scheme=https",
			"--entrypoints." + SecureEntryPoint + ".address=:443",
			"--certificatesresolvers." + CertResolver + ".acme.tlschallenge=true",
			"--certificatesresolvers." + CertResolver + ".acme.storage=/letsencrypt/acme.json",
		},
		Ports: []any{"80:80", "443:443"},
		Volumes: []any{
			"/var/run/docker.sock:/var/run/docker.sock:ro",
			"./letsencrypt:/letsencrypt",
		},
		Networks: NewServiceNetworks(ProxyNetwork),
		Labels: Labels{
			"traefik.enable": "true",

			router + ".rule":             fmt.Sprintf("Host(`%s`) && (PathPrefix(`/api`) || PathPrefix(`/dashboard`))", DomainPlaceholder),
			router + ".service":          "api@internal",
			router + ".entrypoints":      SecureEntryPoint,
			router + ".tls.certresolver": CertResolver,
			router + ".middlewares":      dashboardMiddleware,

			dashboardUsersLabel: users,
		},
	}
}
