// Package auth validates API keys for the HTTP surface and builds the
// access-control filter expressions applied to retrieval calls.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
)

// Authenticator validates API keys against a configured set of key hashes.
type Authenticator struct {
	keyHashes [][]byte
}

// NewAuthenticator creates an authenticator from SHA-256 key hashes
// (hex encoded).
func NewAuthenticator(keyHashes []string) *Authenticator {
	a := &Authenticator{}
	for _, h := range keyHashes {
		decoded, err := hex.DecodeString(h)
		if err != nil {
			continue
		}
		a.keyHashes = append(a.keyHashes, decoded)
	}
	return a
}

// ValidateAPIKey checks an API key against the configured hashes.
func (a *Authenticator) ValidateAPIKey(apiKey string) error {
	hash := sha256.Sum256([]byte(apiKey))

	// Constant-time comparison to prevent timing attacks
	matched := 0
	for _, known := range a.keyHashes {
		if subtle.ConstantTimeCompare(hash[:], known) == 1 {
			matched = 1
		}
	}
	if matched == 0 {
		return fmt.Errorf("invalid API key")
	}
	return nil
}

// ExtractAPIKey extracts the API key from the Authorization header.
func ExtractAPIKey(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", fmt.Errorf("missing Authorization header")
	}

	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid Authorization header format")
	}
	if !strings.EqualFold(parts[0], "bearer") {
		return "", fmt.Errorf("unsupported authorization scheme")
	}
	return parts[1], nil
}

// HashAPIKey creates a SHA-256 hash of an API key for configuration.
func HashAPIKey(apiKey string) string {
	hash := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(hash[:])
}
