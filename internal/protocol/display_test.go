package protocol

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestFormatClaimValue(t *testing.T) {
	tests := []struct {
		key  string
		in   any
		want string
	}{
		{"sub", "user1", "user1"},
		{"aud", []any{"a", "b"}, `["a","b"]`},
		{"iat", float64(1700000000), "1700000000 (2023-11-14T22:13:20 UTC)"},
		{"exp", json.Number("1700000000"), "1700000000 (2023-11-14T22:13:20 UTC)"},
		{"exp", 1.5, "1.5"},
		{"exp", "soon", "soon"},
		{"email_verified", true, "true"},
	}
	for _, tt := range tests {
		if got := FormatClaimValue(tt.key, tt.in); got != tt.want {
			t.Errorf("FormatClaimValue(%s, %v) = %q, want %q", tt.key, tt.in, got, tt.want)
		}
	}
}

func TestFormatClaimValueWithLocation(t *testing.T) {
	DisplayLocation = time.FixedZone("JST", 9*60*60)
	t.Cleanup(func() { DisplayLocation = nil })

	got := FormatClaimValue("exp", float64(1700000000))
	if !strings.HasSuffix(got, "(2023-11-14T22:13:20 UTC / 2023-11-15T07:13:20 JST)") {
		t.Errorf("FormatClaimValue(exp) = %q, want local time appended", got)
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{float64(42), "42"},
		{1.5, "1.5"},
		{json.Number("7"), "7"},
		{true, "true"},
		{nil, ""},
		{map[string]any{"k": "v"}, `{"k":"v"}`},
	}
	for _, tt := range tests {
		if got := FormatValue(tt.in); got != tt.want {
			t.Errorf("FormatValue(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
