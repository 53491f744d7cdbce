package api

import (
	"encoding/json"
	"net/http"

	"github.com/ideclab/asistente-mga/internal/models"
)

// fallbackErrorResponse is pre-marshaled at package init so encoding failures
// still produce a well-formed error body.
var fallbackErrorResponse []byte

func init() {
	var err error
	fallbackErrorResponse, err = json.Marshal(models.Error("internal server error"))
	if err != nil {
		fallbackErrorResponse = []byte(`{"status":"error","message":"internal server error"}`)
	}
}

// methodNotAllowed rejects a request with the Allow header set.
func (s *Server) methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	s.writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("method not allowed"))
}

// writeJSONResponse marshals the payload and writes it with the given status
// code. Marshal failures fall back to a canned 500 error body.
func (s *Server) writeJSONResponse(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("writeJSONResponse: failed to marshal payload", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		if _, werr := w.Write(fallbackErrorResponse); werr != nil {
			s.logger.Error("writeJSONResponse: failed to write fallback response", "error", werr)
		}
		return
	}
	w.WriteHeader(statusCode)
	if _, err := w.Write(data); err != nil {
		s.logger.Error("writeJSONResponse: failed to write response", "error", err)
	}
}
