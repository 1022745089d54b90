// Package httputil holds small HTTP helpers shared by local listeners.
package httputil

import (
	"net"
	"net/http"

	"github.com/labstack/echo/v4"
)

// IsLoopbackRequest reports whether the request comes from the local host.
// It trusts RemoteAddr, which the server sets, and never the Host header.
func IsLoopbackRequest(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// LoopbackOnly rejects requests that do not come from the local host with
// 403 Forbidden.
func LoopbackOnly() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !IsLoopbackRequest(c.Request()) {
				return c.NoContent(http.StatusForbidden)
			}
			return next(c)
		}
	}
}
