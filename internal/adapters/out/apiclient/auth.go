package apiclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/scrtlabs/secretvm-cli/internal/domain"
)

// CSRFToken fetches a CSRF token for form posts.
func (c *Client) CSRFToken(ctx context.Context) (string, error) {
	resp, err := c.request(ctx, http.MethodGet, PathCSRF, nil, "")
	if err != nil {
		return "", err
	}

	var result domain.CSRFResponse
	if err := parseResponse(resp, &result); err != nil {
		return "", err
	}
	if result.CSRFToken == "" {
		return "", domain.ErrCSRFTokenAbsent
	}
	return result.CSRFToken, nil
}

// LoginWithWallet exchanges a wallet address for a session cookie. The
// server answers either with JSON or with a redirect; a redirect carrying a
// Location header counts as success.
func (c *Client) LoginWithWallet(ctx context.Context, walletAddress string) (*domain.WalletLoginResponse, error) {
	csrfToken, err := c.CSRFToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch CSRF token: %w", err)
	}

	form := url.Values{}
	form.Set("walletAddress", walletAddress)
	form.Set("csrfToken", csrfToken)
	form.Set("json", "true")

	// Cookies set on the redirect response still reach the jar.
	noRedirect := *c.httpClient
	noRedirect.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	resp, err := c.do(ctx, &noRedirect, http.MethodPost, PathWalletCallback,
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusFound {
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		if loc := resp.Header.Get("Location"); loc != "" {
			c.log.Debug("wallet login redirected", "location", loc)
			return &domain.WalletLoginResponse{URL: loc}, nil
		}
		return nil, newHTTPError(resp, nil)
	}

	var result domain.WalletLoginResponse
	if err := parseResponse(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetSession returns the session the server associates with the caller.
// An anonymous caller gets a session with a nil User.
func (c *Client) GetSession(ctx context.Context) (*domain.AuthSession, error) {
	resp, err := c.request(ctx, http.MethodGet, PathSession, nil, "")
	if err != nil {
		return nil, err
	}

	var result domain.AuthSession
	if err := parseResponse(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
