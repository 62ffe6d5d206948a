package idtoken

import (
	"errors"
	"fmt"
)

// Verification failure kinds. Every error returned by Verifier.Verify matches
// exactly one of these with errors.Is.
var (
	ErrSignatureInvalid = errors.New("signature invalid")
	ErrIssuerMismatch   = errors.New("issuer mismatch")
	ErrAudienceMismatch = errors.New("audience mismatch")
	ErrTokenExpired     = errors.New("token expired")
	ErrTokenNotYetValid = errors.New("token not yet valid")
	ErrKeyFetchFailed   = errors.New("key fetch failed")
	ErrMalformedToken   = errors.New("malformed token")
)

// ErrKeyNotFound is returned by a KeySource when the key set has no usable key
// for the requested kid. The verifier reports it as ErrSignatureInvalid.
var ErrKeyNotFound = errors.New("signing key not found")

var kindCodes = map[error]string{
	ErrSignatureInvalid: "signature_invalid",
	ErrIssuerMismatch:   "issuer_mismatch",
	ErrAudienceMismatch: "audience_mismatch",
	ErrTokenExpired:     "token_expired",
	ErrTokenNotYetValid: "token_not_yet_valid",
	ErrKeyFetchFailed:   "key_fetch_failed",
	ErrMalformedToken:   "malformed_token",
}

// VerificationError describes why a token was rejected.
//
// Payload is the token body decoded without any check. It is for diagnostics
// only and must never be treated as authenticated.
type VerificationError struct {
	Kind    error
	Err     error
	Payload map[string]any
}

func (e *VerificationError) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *VerificationError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Code returns a stable snake_case name for the failure kind.
func (e *VerificationError) Code() string {
	if c, ok := kindCodes[e.Kind]; ok {
		return c
	}
	return "verification_failed"
}

// Retryable reports whether the same token may verify on a later attempt.
func (e *VerificationError) Retryable() bool {
	return e.Kind == ErrKeyFetchFailed
}
