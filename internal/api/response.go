package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/klingon-exchange/swapapi/internal/apierr"
	"github.com/klingon-exchange/swapapi/internal/engine"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// writeJSON writes a successful response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("Failed to encode response", "error", err)
	}
}

// writeError writes err with the status and code of its kind.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	e := classify(err)
	if e.Kind == apierr.KindEngineFailure {
		s.log.Warn("Engine failure", "path", r.URL.Path, "request_id", RequestID(r.Context()), "error", err)
	}
	s.writeJSON(w, e.Kind.HTTPStatus(), ErrorResponse{Error: e.Error(), Code: int(e.Kind)})
}

// classify maps any handler error onto an API error kind. Engine errors are
// engine failures unless the engine reports the id as unknown.
func classify(err error) *apierr.Error {
	var e *apierr.Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, engine.ErrNotFound) {
		return &apierr.Error{Kind: apierr.KindNotFound, Err: err}
	}
	return &apierr.Error{Kind: apierr.KindEngineFailure, Err: err}
}
