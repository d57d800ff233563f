package ratelimit

import (
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// ByClientIP charges requests to the caller's address.
func ByClientIP(r *http.Request) (string, bool) {
	return clientIP(r), true
}

// ByURLParam charges requests to a chi route parameter, such as the delivery id
// on /deliveries/{id}/... Requests without the parameter are not charged.
func ByURLParam(name string) KeyFunc {
	prefix := name + ":"
	return func(r *http.Request) (string, bool) {
		v := strings.TrimSpace(chi.URLParam(r, name))
		if v == "" {
			return "", false
		}
		return prefix + v, true
	}
}

// clientIP expects RealIP to have rewritten RemoteAddr already.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
