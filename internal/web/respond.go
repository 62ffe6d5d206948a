package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wadahiro/hydralens/internal/exchange"
	"github.com/wadahiro/hydralens/internal/hydra"
	"github.com/wadahiro/hydralens/internal/protocol"
)

// errorBody is the JSON shape of every locally produced error.
type errorBody struct {
	Error            string            `json:"error"`
	ErrorDescription string            `json:"error_description,omitempty"`
	Hint             string            `json:"hint,omitempty"`
	HowToFix         map[string]string `json:"how_to_fix,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeRawJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func writeError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, errorBody{Error: code, ErrorDescription: description})
}

// relayError writes err to the client. Provider answers are passed through with
// their status and body; anything else becomes a 500 server_error.
func (h *Handler) relayError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var (
		apiErr   *hydra.APIError
		oauthErr *exchange.OAuthError
		provErr  *exchange.ProviderError
	)
	switch {
	case errors.As(err, &oauthErr):
		writeJSON(w, oauthErr.Status, errorBody{
			Error:            oauthErr.Code,
			ErrorDescription: oauthErr.Description,
			Hint:             oauthErr.Hint,
			HowToFix:         oauthErr.HowToFix,
		})
	case errors.As(err, &provErr):
		ct := provErr.ContentType
		if ct == "" {
			ct = "application/json"
		}
		w.Header().Set("Content-Type", ct)
		w.WriteHeader(provErr.StatusCode)
		w.Write(provErr.Body)
	case errors.As(err, &apiErr):
		h.metrics.RecordProviderError(r.Context(), op, apiErr.StatusCode)
		h.logger.Warn("Provider request failed", "op", op, "status", apiErr.StatusCode, "path", apiErr.Path)
		w.Header().Set("Content-Type", apiErr.ContentType())
		w.WriteHeader(apiErr.StatusCode)
		w.Write(apiErr.Body)
	case errors.Is(err, exchange.ErrInvalidTokenResponse):
		h.logger.Warn("Provider response not understood", "op", op, "error", err)
		writeError(w, http.StatusBadGateway, exchange.ErrorServerError, protocol.CleanGoErrorMessage(err.Error()))
	default:
		if !errors.Is(err, exchange.ErrProviderUnavailable) {
			h.metrics.RecordProviderError(r.Context(), op, 0)
		}
		h.logger.Error("Request failed", "op", op, "error", err)
		writeError(w, http.StatusInternalServerError, exchange.ErrorServerError, protocol.CleanGoErrorMessage(err.Error()))
	}
}

// wantsJSON reports whether the caller asked for a JSON answer instead of a redirect.
func wantsJSON(r *http.Request) bool {
	if r.URL.Query().Get("format") == "json" {
		return true
	}
	accept := r.Header.Get("Accept")
	return accept != "" && accept != "*/*" && containsMediaType(accept, "application/json")
}
