package web

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTrustedProxies(t *testing.T) {
	got, err := ParseTrustedProxies([]string{"10.0.0.0/8", " 127.0.0.1 ", "::1", "192.168.1.7/16"})
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, "127.0.0.1/32", got[1].String())
	assert.Equal(t, "::1/128", got[2].String())
	assert.Equal(t, "192.168.0.0/16", got[3].String())

	_, err = ParseTrustedProxies([]string{"not-an-ip"})
	assert.Error(t, err)
	_, err = ParseTrustedProxies([]string{"10.0.0.0/99"})
	assert.Error(t, err)
}

func TestClientIP(t *testing.T) {
	trusted, err := ParseTrustedProxies([]string{"10.0.0.0/8"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		trusted bool
		remote  string
		xff     string
		realIP  string
		want    string
	}{
		{"direct", false, "203.0.113.5:4000", "", "", "203.0.113.5"},
		{"untrusted peer with forwarded header", false, "203.0.113.5:4000", "198.51.100.1", "198.51.100.2", "203.0.113.5"},
		{"peer outside trusted range", true, "203.0.113.5:4000", "198.51.100.1", "", "203.0.113.5"},
		{"trusted proxy", true, "10.0.0.2:4000", "198.51.100.1", "", "198.51.100.1"},
		{"spoofed leftmost hop", true, "10.0.0.2:4000", "1.2.3.4, 198.51.100.1", "", "198.51.100.1"},
		{"proxy chain", true, "10.0.0.2:4000", "198.51.100.1, 10.0.0.9", "", "198.51.100.1"},
		{"malformed hop", true, "10.0.0.2:4000", "garbage", "198.51.100.3", "198.51.100.3"},
		{"only proxies", true, "10.0.0.2:4000", "10.0.0.9", "", "10.0.0.2"},
		{"no port", false, "203.0.113.5", "", "", "203.0.113.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &Handler{}
			if tt.trusted {
				h.trustedProxies = trusted
			}
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			assert.Equal(t, tt.want, h.clientIP(req))
		})
	}
}
