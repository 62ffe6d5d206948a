package protocol

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
)

// RandomHex generates a hex-encoded random string of n bytes.
func RandomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Redact hides a secret while keeping its length visible in logs.
func Redact(s string) string {
	if s == "" {
		return ""
	}
	return fmt.Sprintf("[REDACTED:%d chars]", len(s))
}

// SortedKeys returns the sorted keys of a string-keyed map.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
