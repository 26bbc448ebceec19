// Package pkce generates PKCE verifier/challenge pairs for the OAuth
// authorization code flow (RFC 7636).
package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// verifierLength is the length of generated verifiers. RFC 7636 permits
// 43-128 characters from the unreserved set.
const verifierLength = 64

// unreserved is the RFC 3986 unreserved character set.
const unreserved = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"

// Pair is a PKCE verifier and its derived challenge. A pair lives for one
// authorization attempt and is destroyed once exchanged.
type Pair struct {
	Verifier  string
	Challenge string
}

// GenerateVerifier produces a 64-character verifier from the unreserved
// character set using a CSPRNG. It fails when the CSPRNG is unavailable;
// there is no degraded fallback.
func GenerateVerifier() (string, error) {
	buf := make([]byte, verifierLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("pkce: csprng unavailable: %w", err)
	}
	for i, b := range buf {
		buf[i] = unreserved[int(b)%len(unreserved)]
	}
	return string(buf), nil
}

// DeriveChallenge returns the S256 challenge for a verifier:
// base64url(SHA-256(verifier)) without padding.
func DeriveChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// Generate produces a fresh verifier/challenge pair.
func Generate() (*Pair, error) {
	verifier, err := GenerateVerifier()
	if err != nil {
		return nil, err
	}
	return &Pair{Verifier: verifier, Challenge: DeriveChallenge(verifier)}, nil
}
