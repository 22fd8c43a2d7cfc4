package http

import (
	"errors"
	"net/http"

	"github.com/couchcryptid/skylore-service/internal/domain"
)

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// writeError maps the domain error taxonomy onto status codes. Store and
// configuration details are logged but not echoed to the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid submission", Fields: ve.Fields})
		return
	case errors.Is(err, errBadRequest):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	status, msg := http.StatusInternalServerError, "internal error"
	switch {
	case errors.Is(err, domain.ErrConfiguration):
		msg = "service misconfigured"
	case errors.Is(err, domain.ErrDataSource):
		status, msg = http.StatusServiceUnavailable, "data source unavailable"
	case errors.Is(err, domain.ErrMalformedRecord):
		msg = "stored data is malformed"
	case errors.Is(err, domain.ErrWrite):
		msg = "submission could not be saved"
	}
	s.logger.Error("request failed", "path", r.URL.Path, "status", status, "error", err)
	writeJSON(w, status, errorResponse{Error: msg})
}
