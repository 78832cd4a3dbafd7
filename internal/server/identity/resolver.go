// Package identity derives a stable rate-limit key from an inbound request.
//
// The bearer token is decoded WITHOUT signature verification, purely to pick
// a bucketing key. This is not authentication: an attacker can spoof the sub
// claim to shift quota between buckets. Authorization of the request itself
// is the delivery handler's responsibility, never this resolver's.
package identity

import (
	"net"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// UnknownKey is the bucket used when neither a subject nor an origin
	// address can be resolved.
	UnknownKey = "unknown"

	userPrefix = "user:"
	ipPrefix   = "ip:"
)

// ResolveKey returns the rate-limit key for a request: the token subject when
// a bearer credential decodes, else the origin address, else UnknownKey.
func ResolveKey(r *http.Request) string {
	if sub, ok := subjectFromBearer(r.Header.Get("Authorization")); ok {
		return userPrefix + sub
	}
	return originKey(r.RemoteAddr)
}

// subjectFromBearer extracts the sub claim from a bearer token. The parse is
// non-verifying by design; any malformed token falls back to origin keying.
func subjectFromBearer(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	raw := strings.TrimSpace(header[len(prefix):])
	if raw == "" {
		return "", false
	}

	token, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return "", false
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", false
	}
	return sub, true
}

// originKey derives an address-based key from a host:port remote address.
func originKey(remoteAddr string) string {
	if remoteAddr == "" {
		return UnknownKey
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		// RemoteAddr without a port still identifies the origin.
		return ipPrefix + remoteAddr
	}
	if host == "" {
		return UnknownKey
	}
	return ipPrefix + host
}
