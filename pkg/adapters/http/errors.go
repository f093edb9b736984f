package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aretw0/cvflow/pkg/domain"
	"github.com/aretw0/cvflow/pkg/property"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
	// Key and Reason are set for property validation failures.
	Key    string `json:"key,omitempty"`
	Reason string `json:"reason,omitempty"`
	// Path is set when a connection was rejected for closing a cycle.
	Path []string `json:"path,omitempty"`
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, property.ErrValidation),
		errors.Is(err, domain.ErrUnknownNodeType),
		errors.Is(err, domain.ErrNotConfigurable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNodeNotFound),
		errors.Is(err, domain.ErrPortNotFound),
		errors.Is(err, domain.ErrConnectionNotFound),
		errors.Is(err, domain.ErrPipelineNotFound),
		errors.Is(err, domain.ErrActionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrCyclicGraph),
		errors.Is(err, domain.ErrPortOccupied),
		errors.Is(err, domain.ErrDuplicateConnection),
		errors.Is(err, domain.ErrDuplicateNode),
		errors.Is(err, domain.ErrNotIdle):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := ErrorResponse{Error: err.Error()}

	var verr *property.ValidationError
	if errors.As(err, &verr) {
		resp.Key = verr.Key
		resp.Reason = verr.Reason
	}
	var cerr *domain.CyclicGraphError
	if errors.As(err, &cerr) {
		resp.Path = cerr.Path
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	} else {
		s.logger.Debug("Request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "err", err)
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) badRequest(w http.ResponseWriter, err error) {
	s.logger.Warn("Invalid request body", "err", err)
	s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "err", err)
	}
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

