package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadParamsJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(
		`{"challenge":"c1","grant_scope":["openid","offline"],"remember":true,"remember_for":3600,"skip":null,"extra":{"a":1}}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	p, err := readParams(httptest.NewRecorder(), req)
	require.NoError(t, err)
	assert.Equal(t, "c1", p.get("challenge"))
	assert.Equal(t, []string{"openid", "offline"}, p.list("grant_scope"))
	assert.Equal(t, "true", p.get("remember"))
	assert.Equal(t, "3600", p.get("remember_for"))
	assert.Equal(t, `{"a":1}`, p.get("extra"))
	assert.NotContains(t, p, "skip")
}

func TestReadParamsForm(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/?ignored=1", strings.NewReader("a=1&scope=openid&scope=email"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	p, err := readParams(httptest.NewRecorder(), req)
	require.NoError(t, err)
	assert.Equal(t, "1", p.get("a"))
	assert.Equal(t, []string{"openid", "email"}, p.list("scope"))
	assert.Empty(t, p.get("ignored"))
	assert.Equal(t, "fallback", p.getDefault("missing", "fallback"))
}

func TestReadParamsEmptyAndInvalidJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("  "))
	req.Header.Set("Content-Type", "application/json")
	p, err := readParams(httptest.NewRecorder(), req)
	require.NoError(t, err)
	assert.Empty(t, p)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	_, err = readParams(httptest.NewRecorder(), req)
	assert.Error(t, err)
}

func TestParamsFields(t *testing.T) {
	p := params{"token": {"t"}, "token_type_hint": {""}, "other": {"x"}}
	assert.Equal(t, "token=t", p.fields("token", "token_type_hint", "missing").Encode())
}

func TestWantsJSON(t *testing.T) {
	tests := []struct {
		target string
		accept string
		want   bool
	}{
		{"/", "", false},
		{"/", "*/*", false},
		{"/", "text/html,application/xhtml+xml", false},
		{"/", "application/json", true},
		{"/", "text/html, application/json;q=0.9", true},
		{"/?format=json", "", true},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, tt.target, nil)
		if tt.accept != "" {
			req.Header.Set("Accept", tt.accept)
		}
		assert.Equal(t, tt.want, wantsJSON(req), "%s Accept=%q", tt.target, tt.accept)
	}
}
