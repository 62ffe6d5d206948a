package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateClientFromForm(t *testing.T) {
	env := newTestEnv(t)
	env.provider.handle("POST /clients", http.StatusCreated, `{"client_id":"generated","client_secret":"s"}`)

	rec := env.do(formRequest(http.MethodPost, "/clients/create", url.Values{
		"client_name":                {"playground"},
		"redirect_uris":              {"http://localhost:3000/oauth/callback, http://127.0.0.1:3000/oauth/callback"},
		"grant_types":                {"authorization_code", "refresh_token"},
		"token_endpoint_auth_method": {"none"},
	}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "generated", decodeJSON(t, rec)["client_id"])

	reqs := env.provider.requestsTo("/clients")
	require.Len(t, reqs, 1)
	var sent map[string]any
	require.NoError(t, json.Unmarshal(reqs[0].Body, &sent))
	assert.Equal(t, "playground", sent["client_name"])
	assert.Equal(t, "none", sent["token_endpoint_auth_method"])
	assert.Equal(t, []any{"http://localhost:3000/oauth/callback", "http://127.0.0.1:3000/oauth/callback"}, sent["redirect_uris"])
	assert.Equal(t, []any{"authorization_code", "refresh_token"}, sent["grant_types"])
}

func TestCreateClientJSONPassthrough(t *testing.T) {
	env := newTestEnv(t)
	env.provider.handle("POST /clients", http.StatusCreated, `{"client_id":"c"}`)

	doc := `{"client_name":"x","metadata":{"nested":[1,2]}}`
	req := httptest.NewRequest(http.MethodPost, "/clients/create", strings.NewReader(doc))
	req.Header.Set("Content-Type", "application/json")
	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	reqs := env.provider.requestsTo("/clients")
	require.Len(t, reqs, 1)
	assert.JSONEq(t, doc, string(reqs[0].Body))
}

func TestCreateClientRejectsInvalidJSON(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/clients/create", strings.NewReader("{oops"))
	req.Header.Set("Content-Type", "application/json")
	rec := env.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, env.provider.requestsTo("/clients"))
}

func TestCreateClientRelaysConflict(t *testing.T) {
	env := newTestEnv(t)
	body := `{"error":"resource_conflict","error_description":"Unable to insert or update resource because a resource with that value exists already"}`
	env.provider.handle("POST /clients", http.StatusConflict, body)

	rec := env.do(jsonRequest(http.MethodPost, "/clients/create", map[string]string{"client_id": "dup"}))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, body, rec.Body.String())
}

func TestListClients(t *testing.T) {
	env := newTestEnv(t)
	env.provider.handle("GET /clients", http.StatusOK, `[{"client_id":"a"},{"client_id":"b"}]`)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/clients", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"client_id":"a"},{"client_id":"b"}]`, rec.Body.String())
}
