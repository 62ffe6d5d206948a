package web

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wadahiro/hydralens/internal/exchange"
)

// clientListFields are sent as JSON arrays when a client is created from a form.
var clientListFields = map[string]bool{
	"redirect_uris":             true,
	"grant_types":               true,
	"response_types":            true,
	"audience":                  true,
	"post_logout_redirect_uris": true,
	"contacts":                  true,
}

func (h *Handler) clientRoutes(r chi.Router) {
	r.Get("/manage", h.handleClientsPage)
	r.Post("/create", h.handleCreateClient)
	r.Get("/", h.handleListClients)
}

func (h *Handler) handleClientsPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, "clients", struct {
		pageMeta
		RedirectURI string
	}{
		pageMeta:    h.meta(r, "Clients"),
		RedirectURI: callbackURL(r),
	})
}

// handleCreateClient forwards a JSON document unchanged; form posts are
// converted to JSON first.
func (h *Handler) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	var doc json.RawMessage
	if isJSONRequest(r) {
		data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			writeError(w, http.StatusBadRequest, exchange.ErrorInvalidRequest, err.Error())
			return
		}
		if len(data) > 0 && !json.Valid(data) {
			writeError(w, http.StatusBadRequest, exchange.ErrorInvalidRequest, "request body is not valid JSON")
			return
		}
		doc = data
	} else {
		p, err := readParams(w, r)
		if err != nil {
			writeError(w, http.StatusBadRequest, exchange.ErrorInvalidRequest, err.Error())
			return
		}
		doc = clientFromForm(p)
	}

	created, err := h.hydra.CreateClient(r.Context(), doc)
	if err != nil {
		h.relayError(w, r, "create_client", err)
		return
	}
	h.logger.Info("Client created")
	writeRawJSON(w, http.StatusOK, created)
}

func clientFromForm(p params) json.RawMessage {
	out := map[string]any{}
	for k, vs := range p {
		if len(vs) == 0 {
			continue
		}
		if clientListFields[k] {
			var items []string
			for _, v := range vs {
				items = append(items, strings.FieldsFunc(v, func(r rune) bool {
					return r == ',' || r == ' ' || r == '\n' || r == '\t'
				})...)
			}
			out[k] = items
			continue
		}
		out[k] = vs[0]
	}
	b, _ := json.Marshal(out)
	return b
}

func (h *Handler) handleListClients(w http.ResponseWriter, r *http.Request) {
	list, err := h.hydra.ListClients(r.Context())
	if err != nil {
		h.relayError(w, r, "list_clients", err)
		return
	}
	writeRawJSON(w, http.StatusOK, list)
}
