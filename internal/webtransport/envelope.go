// Package webtransport is the Core side of the Core<->Clients wire
// interface (spec §6): the same {type, params} envelope pattern
// internal/periphclient speaks to Periphery, mounted over /auth, /read,
// /write, /execute, /user, /terminal, /listener, /ws. The envelope
// decode/dispatch shape and the writeJSON/writeError helpers are carried
// from the teacher's internal/web/api.go and server.go verbatim, only
// the route table and variant set are Core's own.
package webtransport

import (
	"encoding/json"
	"net/http"

	"github.com/komodore/core/internal/model"
)

// Envelope is the request body every /read, /write, /execute, /user POST
// carries: a variant name plus its opaque parameter document, mirroring
// internal/periphclient's outbound shape from the server side.
type Envelope struct {
	Type   string          `json:"type"`
	Params json.RawMessage `json:"params"`
}

// variantFunc handles one decoded envelope variant, returning the value
// to encode as the response body. s gives handlers access to the
// Dependencies bundle; w carries the per-request caller and params.
type variantFunc func(s *Server, w *webReq) (any, error)

// webReq bundles the per-request context a variant handler needs —
// avoids a long positional parameter list across dozens of variants.
type webReq struct {
	r      *http.Request
	user   *model.User
	params json.RawMessage
}

func (w *webReq) decode(v any) error {
	if len(w.params) == 0 {
		return nil
	}
	return json.Unmarshal(w.params, v)
}

// variantTable dispatches a decoded Envelope.Type to its handler,
// writing a 400 for unknown variants exactly as
// internal/periphclient.WireError models an unrecognized variant on the
// Periphery side.
type variantTable map[string]variantFunc

func (t variantTable) serve(s *Server, w http.ResponseWriter, r *http.Request) {
	u, err := s.authenticate(r)

	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, err.Error())
		return
	}

	var env Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	fn, ok := t[env.Type]
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "unknown variant: "+env.Type)
		return
	}

	result, err := fn(s, &webReq{r: r, user: u, params: env.Params})
	if err != nil {
		writeJSONError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// serveAnon dispatches an Envelope without requiring a prior bearer
// token — used only for /auth, where LoginLocalUser and GetLoginOptions
// are how a caller obtains one in the first place.
func (t variantTable) serveAnon(s *Server, w http.ResponseWriter, r *http.Request) {
	var env Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	fn, ok := t[env.Type]
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "unknown variant: "+env.Type)
		return
	}

	result, err := fn(s, &webReq{r: r, params: env.Params})
	if err != nil {
		writeJSONError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (t variantTable) serveAnonWith(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t.serveAnon(s, w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
