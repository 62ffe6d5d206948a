package protocol

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/oauth2"
)

const (
	// PKCEMethodS256 is the only challenge method this application issues.
	PKCEMethodS256 = "S256"

	MinVerifierLength = 43
	MaxVerifierLength = 128

	verifierBytes = 64
)

// ErrEntropySourceUnavailable is returned when the secure random source cannot be read.
var ErrEntropySourceUnavailable = errors.New("entropy source unavailable")

// GenerateVerifier returns a new PKCE code verifier: 64 random bytes encoded as
// unpadded base64url (86 characters).
func GenerateVerifier() (string, error) {
	return generateVerifier(rand.Reader)
}

func generateVerifier(r io.Reader) (string, error) {
	b := make([]byte, verifierBytes)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", fmt.Errorf("%w: %w", ErrEntropySourceUnavailable, err)
	}
	v := base64.RawURLEncoding.EncodeToString(b)
	if !ValidVerifier(v) {
		return "", fmt.Errorf("%w: verifier length %d out of range", ErrEntropySourceUnavailable, len(v))
	}
	return v, nil
}

// DeriveChallenge returns base64url(SHA256(verifier)) without padding.
func DeriveChallenge(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}

// ValidVerifier reports whether v has a legal PKCE verifier length and alphabet
// (RFC 7636 section 4.1: ALPHA / DIGIT / "-" / "." / "_" / "~").
func ValidVerifier(v string) bool {
	if len(v) < MinVerifierLength || len(v) > MaxVerifierLength {
		return false
	}
	for i := 0; i < len(v); i++ {
		c := v[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		case c == '-', c == '.', c == '_', c == '~':
		default:
			return false
		}
	}
	return true
}
