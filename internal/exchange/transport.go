package exchange

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"sync"
)

// maxTokenResponseBytes bounds how much of a token endpoint answer is kept.
const maxTokenResponseBytes = 1 << 20

// tokenHTTPResponse is the raw token endpoint answer as it came off the wire.
type tokenHTTPResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

func (r *tokenHTTPResponse) successful() bool {
	return r.StatusCode >= 200 && r.StatusCode <= 299
}

// providerError turns a non-2xx answer into a ProviderError. OAuth error
// fields are filled in when the body is JSON.
func (r *tokenHTTPResponse) providerError() *ProviderError {
	pe := &ProviderError{
		StatusCode:  r.StatusCode,
		ContentType: r.ContentType,
		Body:        r.Body,
	}
	if mt, _, _ := mime.ParseMediaType(r.ContentType); mt != "application/json" && r.ContentType != "" {
		return pe
	}
	var body struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if json.Unmarshal(r.Body, &body) == nil {
		pe.ErrorCode = body.Error
		pe.ErrorDescription = body.ErrorDescription
	}
	return pe
}

// tokenRecorder sits under the oauth2 client of a single exchange and keeps
// the token endpoint response so it can be relayed verbatim, whatever
// x/oauth2 makes of it.
type tokenRecorder struct {
	next http.RoundTripper

	mu   sync.Mutex
	resp *tokenHTTPResponse
}

func newTokenRecorder(next http.RoundTripper) *tokenRecorder {
	if next == nil {
		next = http.DefaultTransport
	}
	return &tokenRecorder{next: next}
}

func (t *tokenRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read token response: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	t.mu.Lock()
	t.resp = &tokenHTTPResponse{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}
	t.mu.Unlock()
	return resp, nil
}

// recorded returns the response seen by the last successful round trip, or
// nil when the endpoint was never reached.
func (t *tokenRecorder) recorded() *tokenHTTPResponse {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resp
}
