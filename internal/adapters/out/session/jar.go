// Package session persists the authentication cookies shared by every
// command invocation.
package session

import (
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
)

// Cookie is the on-disk form of a single session cookie. Domain is the
// canonical domain the cookie was accepted for; HostOnly cookies are only
// sent to that exact host.
type Cookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain"`
	Path     string    `json:"path"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HTTPOnly bool      `json:"httpOnly,omitempty"`
	HostOnly bool      `json:"hostOnly,omitempty"`
}

// Session is a serializable cookie container. It implements http.CookieJar
// by delegating domain, path and public suffix rules to net/http/cookiejar
// and keeps a record of every cookie the jar accepted so it can be saved.
type Session struct {
	mu      sync.Mutex
	jar     *cookiejar.Jar
	cookies []Cookie
}

// New returns an empty session.
func New() *Session {
	// cookiejar.New never returns an error.
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return &Session{jar: jar}
}

// FromCookies builds a session from stored cookies. Each cookie is replayed
// through the jar as if its own domain had set it; cookies the jar refuses
// or that already expired are dropped.
func FromCookies(cookies []Cookie) *Session {
	s := New()
	for _, c := range cookies {
		s.put(c)
	}
	return s
}

// All returns a copy of every stored cookie.
func (s *Session) All() []Cookie {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Cookie, len(s.cookies))
	copy(out, s.cookies)
	return out
}

// Len returns the number of stored cookies.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cookies)
}

// Put stores c, replacing any cookie with the same name, domain and path.
func (s *Session) Put(c Cookie) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(c)
}

func (s *Session) put(c Cookie) {
	c.Domain = canonicalDomain(c.Domain)
	if c.Path == "" {
		c.Path = "/"
	}

	hc := &http.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Path:     c.Path,
		Expires:  c.Expires,
		Secure:   c.Secure,
		HttpOnly: c.HTTPOnly,
	}
	if !c.HostOnly {
		hc.Domain = c.Domain
	}
	s.jar.SetCookies(c.origin(), []*http.Cookie{hc})
	if s.held(c) {
		s.record(c)
	}
	s.reconcile()
}

// SetCookies implements http.CookieJar.
func (s *Session) SetCookies(u *url.URL, cookies []*http.Cookie) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jar.SetCookies(u, cookies)

	host := hostOf(u)
	now := time.Now()
	for _, hc := range cookies {
		if hc.MaxAge < 0 {
			continue
		}
		c := Cookie{
			Name:     hc.Name,
			Value:    hc.Value,
			Domain:   canonicalDomain(hc.Domain),
			Path:     hc.Path,
			Expires:  hc.Expires,
			Secure:   hc.Secure,
			HTTPOnly: hc.HttpOnly,
		}
		if c.Domain == "" {
			c.Domain = host
			c.HostOnly = true
		}
		if c.Path == "" || c.Path[0] != '/' {
			c.Path = defaultPath(u.Path)
		}
		if hc.MaxAge > 0 {
			c.Expires = now.Add(time.Duration(hc.MaxAge) * time.Second)
		}
		if s.held(c) {
			s.record(c)
		}
	}
	s.reconcile()
}

// Cookies implements http.CookieJar.
func (s *Session) Cookies(u *url.URL) []*http.Cookie {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jar.Cookies(u)
}

func (s *Session) record(c Cookie) {
	for i, existing := range s.cookies {
		if existing.Name == c.Name && existing.Domain == c.Domain && existing.Path == c.Path {
			s.cookies[i] = c
			return
		}
	}
	s.cookies = append(s.cookies, c)
}

// reconcile drops every recorded cookie the jar does not hold: rejected,
// deleted or expired ones.
func (s *Session) reconcile() {
	kept := s.cookies[:0]
	for _, c := range s.cookies {
		if s.held(c) {
			kept = append(kept, c)
		}
	}
	s.cookies = kept
}

func (s *Session) held(c Cookie) bool {
	for _, hc := range s.jar.Cookies(c.origin()) {
		if hc.Name == c.Name && hc.Value == c.Value {
			return true
		}
	}
	return false
}

// origin is a URL on the cookie's own domain and path that the jar would
// send it to.
func (c Cookie) origin() *url.URL {
	scheme := "http"
	if c.Secure {
		scheme = "https"
	}
	host := c.Domain
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return &url.URL{Scheme: scheme, Host: host, Path: c.Path}
}

func canonicalDomain(domain string) string {
	return strings.ToLower(strings.TrimPrefix(domain, "."))
}

func hostOf(u *url.URL) string {
	host := u.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.ToLower(host)
}

func defaultPath(p string) string {
	if p == "" || p[0] != '/' {
		return "/"
	}
	i := strings.LastIndex(p, "/")
	if i == 0 {
		return "/"
	}
	return p[:i]
}
