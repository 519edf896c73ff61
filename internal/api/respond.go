package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ppiankov/provenance-radar/internal/llm"
	"github.com/ppiankov/provenance-radar/internal/pipeline"
	"github.com/ppiankov/provenance-radar/internal/store"
)

// Error codes of the response envelope
const (
	codeNotFound             = "not_found"
	codeDatabaseUnavailable  = "database_unavailable"
	codeDatabaseError        = "database_error"
	codeEmbeddingUnavailable = "embedding_unavailable"
	codeGenerationFailed     = "generation_unavailable"
	codeEncodingFailed       = "encoding_error"
)

// respondOK writes {"ok": true} merged with fields
func (s *Server) respondOK(w http.ResponseWriter, fields map[string]any) {
	body := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	body["ok"] = true
	s.respondJSON(w, http.StatusOK, body)
}

// respondError writes {"ok": false, "error": code} with an optional message
func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	s.metrics.Errors.WithLabelValues(errorLabel(status, code)).Inc()

	body := map[string]any{"ok": false, "error": code}
	if message != "" {
		body["message"] = message
	}
	s.respondJSON(w, status, body)
}

// respondJSON encodes before writing the status so an unencodable body
// becomes a 500 instead of a truncated 200
func (s *Server) respondJSON(w http.ResponseWriter, status int, body any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		s.logger.Error("encoding response", zap.Int("status", status), zap.Error(err))
		status = http.StatusInternalServerError
		buf.Reset()
		buf.WriteString(`{"error":"` + codeEncodingFailed + `","ok":false}` + "\n")
		s.metrics.Errors.WithLabelValues(codeEncodingFailed).Inc()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// fail maps an operation error onto the envelope
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	var ve *pipeline.ValidationError

	switch {
	case errors.As(err, &ve):
		s.respondError(w, http.StatusBadRequest, ve.Message, "")
	case errors.Is(err, store.ErrNotFound):
		s.respondError(w, http.StatusNotFound, codeNotFound, "")
	case errors.Is(err, pipeline.ErrEmbeddingUnavailable):
		s.logger.Warn(op+" failed", zap.Error(err))
		s.respondError(w, http.StatusServiceUnavailable, codeEmbeddingUnavailable, err.Error())
	case errors.Is(err, llm.ErrUnavailable):
		s.logger.Warn(op+" failed", zap.Error(err))
		s.respondError(w, http.StatusServiceUnavailable, codeGenerationFailed, "Text generation failed. Please try again.")
	case errors.Is(err, store.ErrUnavailable):
		s.logger.Error(op+" failed", zap.Error(err))
		s.respondError(w, http.StatusServiceUnavailable, codeDatabaseUnavailable, "Database connection issue. Please try again.")
	default:
		s.logger.Error(op+" failed", zap.String("path", r.URL.Path), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, codeDatabaseError, "Database operation failed. Please try again.")
	}
}

// errorLabel keeps validation messages out of metric label values
func errorLabel(status int, code string) string {
	if status == http.StatusBadRequest {
		return "bad_request"
	}
	return code
}

// formatValidation turns validator errors into the short messages clients
// already match on, such as "text required"
func formatValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		field := e.Field()
		switch e.Tag() {
		case "required":
			msgs = append(msgs, field+" required")
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", field, e.Param()))
		case "gte":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", field, e.Param()))
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}
