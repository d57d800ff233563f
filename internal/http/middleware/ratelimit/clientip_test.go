package ratelimit

import (
	"net/http/httptest"
	"testing"
)

func TestClientIP_FallbackToRemoteAddr(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest("GET", "http://example/", nil)
	r.RemoteAddr = "not-a-hostport"

	if got := clientIP(r); got != "not-a-hostport" {
		t.Fatalf("expected remote addr fallback, got %q", got)
	}
}

func TestClientIP_Unknown(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest("GET", "http://example/", nil)
	r.RemoteAddr = ""

	if got := clientIP(r); got != "unknown" {
		t.Fatalf("expected unknown, got %q", got)
	}
}

func TestClientIP_StripsPort(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest("GET", "http://example/", nil)
	r.RemoteAddr = "10.1.2.3:51234"

	if got := clientIP(r); got != "10.1.2.3" {
		t.Fatalf("expected host without port, got %q", got)
	}
}

func TestClientIP_IPv6(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest("GET", "http://example/", nil)
	r.RemoteAddr = "[::1]:8080"

	if got := clientIP(r); got != "::1" {
		t.Fatalf("expected ::1, got %q", got)
	}
}
