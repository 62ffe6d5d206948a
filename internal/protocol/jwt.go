package protocol

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNotJWT is returned when a string does not have the compact JWS structure.
var ErrNotJWT = errors.New("not a JWT")

// IsJWT returns true if the string has the 3-part JWT structure.
func IsJWT(s string) bool {
	return strings.Count(s, ".") == 2
}

// DecodedJWT is a JWT split into its parts without any signature check.
type DecodedJWT struct {
	Header    map[string]any `json:"header"`
	Payload   map[string]any `json:"payload"`
	Signature string         `json:"signature"`
}

// DecodeJWT decodes a JWT's header, payload, and signature.
// Nothing is verified: the result is for display and diagnostics only.
func DecodeJWT(token string) (*DecodedJWT, error) {
	if !IsJWT(token) {
		return nil, ErrNotJWT
	}
	parts := strings.SplitN(token, ".", 3)

	header, err := decodeSegment(parts[0])
	if err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}
	payload, err := decodeSegment(parts[1])
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return &DecodedJWT{Header: header, Payload: payload, Signature: parts[2]}, nil
}

// UnverifiedClaims returns the payload of a JWT without verifying it.
func UnverifiedClaims(token string) (map[string]any, error) {
	d, err := DecodeJWT(token)
	if err != nil {
		return nil, err
	}
	return d.Payload, nil
}

// DecodeJWTRaw decodes a JWT's header and payload as raw bytes.
func DecodeJWTRaw(token string) (header, payload []byte) {
	parts := strings.SplitN(token, ".", 3)
	if len(parts) < 2 {
		return []byte(token), nil
	}
	h, _ := base64.RawURLEncoding.DecodeString(parts[0])
	p, _ := base64.RawURLEncoding.DecodeString(parts[1])
	return h, p
}

// ExtractJWTHeaderInfo extracts the algorithm and key ID from a JWT header.
func ExtractJWTHeaderInfo(jwtRaw string) (alg, kid string) {
	headerRaw, _ := DecodeJWTRaw(jwtRaw)
	if headerRaw == nil {
		return
	}
	var header struct {
		Alg string `json:"alg"`
		Kid string `json:"kid"`
	}
	if json.Unmarshal(headerRaw, &header) == nil {
		alg = header.Alg
		kid = header.Kid
	}
	return
}

func decodeSegment(s string) (map[string]any, error) {
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}
