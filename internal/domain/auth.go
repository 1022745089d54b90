package domain

// SessionUser identifies the account behind a session.
type SessionUser struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
	Image *string `json:"image,omitempty"`
	Sub   string  `json:"sub,omitempty"`
}

// AuthSession is the response of the session endpoint. An anonymous caller
// receives an empty object, which decodes to a nil User.
type AuthSession struct {
	User    *SessionUser `json:"user,omitempty"`
	Expires string       `json:"expires,omitempty"`
}

// Identity returns the best human label for the logged-in user.
func (s *AuthSession) Identity() string {
	if s.User == nil {
		return ""
	}
	if s.User.Email != nil && *s.User.Email != "" {
		return *s.User.Email
	}
	return s.User.Sub
}

// CSRFResponse is the response of the CSRF endpoint.
type CSRFResponse struct {
	CSRFToken string `json:"csrfToken"`
}

// WalletLoginResponse is the response of the wallet callback endpoint.
type WalletLoginResponse struct {
	URL string `json:"url,omitempty"`
}
