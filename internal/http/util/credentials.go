package util

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"strings"
)

// SecretEqual compares a supplied credential with the configured one in constant time.
// An empty configured secret never matches.
func SecretEqual(supplied, configured string) bool {
	if configured == "" || supplied == "" {
		return false
	}
	a := sha256.Sum256([]byte(supplied))
	b := sha256.Sum256([]byte(configured))
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}

// ParseBasicAuth extracts credentials from an Authorization header value.
// The password is everything after the first colon.
func ParseBasicAuth(header string) (user, password string, ok bool) {
	scheme, encoded, found := strings.Cut(header, " ")
	if !found || scheme != "Basic" || encoded == "" {
		return "", "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return "", "", false
	}
	user, password, ok = strings.Cut(string(decoded), ":")
	if !ok {
		return "", "", false
	}
	return user, password, true
}

// BasicAuthHeader renders an Authorization header value.
func BasicAuthHeader(user, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+password))
}
