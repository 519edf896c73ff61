package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ppiankov/provenance-radar/internal/pipeline"
)

// maxBodyBytes caps POST bodies
const maxBodyBytes = 1 << 20

type similarRequest struct {
	Text       string `json:"text" validate:"required,max=4000"`
	Limit      int    `json:"limit"`
	Candidates int    `json:"candidates" validate:"gte=0"`
	Source     string `json:"source" validate:"max=64"`
}

type explainRequest struct {
	Text string `json:"text" validate:"required,max=8000"`
}

func (s *Server) root(w http.ResponseWriter, r *http.Request) {
	s.respondOK(w, map[string]any{"service": ServiceName})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	h, err := s.service.Health(r.Context())
	if err != nil {
		s.logger.Error("health failed", zap.Error(err))
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]any{
			"ok":        false,
			"error":     codeDatabaseUnavailable,
			"db_status": "unavailable",
		})
		return
	}
	s.respondOK(w, map[string]any{
		"db_latency_ms": h.DBLatencyMS,
		"counts":        h.Counts,
		"generator":     h.Generator,
		"embeddings":    h.Embeddings,
	})
}

func (s *Server) policyWindows(w http.ResponseWriter, r *http.Request) {
	s.respondOK(w, map[string]any{"windows": s.service.Windows()})
}

func (s *Server) leads(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.intQuery(w, r, "limit")
	if !ok {
		return
	}
	minScore := 0.0
	if v := r.URL.Query().Get("min_score"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "min_score must be a number", "")
			return
		}
		minScore = f
	}

	rows, err := s.service.Leads(r.Context(), pipeline.LeadsQuery{
		MinScore: minScore,
		Source:   r.URL.Query().Get("source"),
		Limit:    limit,
	})
	if err != nil {
		s.fail(w, r, "leads", err)
		return
	}
	s.respondOK(w, map[string]any{"data": rows})
}

func (s *Server) object(w http.ResponseWriter, r *http.Request) {
	id, ok := s.objectID(w, r)
	if !ok {
		return
	}
	detail, err := s.service.ObjectDetail(r.Context(), id)
	if err != nil {
		s.fail(w, r, "object", err)
		return
	}
	s.respondOK(w, map[string]any{
		"object":    detail.Object,
		"risk":      detail.Risk,
		"sentences": detail.Sentences,
		"events":    detail.Events,
		"risks":     detail.Risks,
	})
}

func (s *Server) graph(w http.ResponseWriter, r *http.Request) {
	id, ok := s.objectID(w, r)
	if !ok {
		return
	}
	g, err := s.service.Graph(r.Context(), id)
	if err != nil {
		s.fail(w, r, "graph", err)
		return
	}
	s.respondOK(w, map[string]any{"nodes": g.Nodes, "edges": g.Edges})
}

func (s *Server) places(w http.ResponseWriter, r *http.Request) {
	id, ok := s.objectID(w, r)
	if !ok {
		return
	}
	places, err := s.service.Places(r.Context(), id)
	if err != nil {
		s.fail(w, r, "places", err)
		return
	}
	s.respondOK(w, map[string]any{"places": places})
}

func (s *Server) timeline(w http.ResponseWriter, r *http.Request) {
	id, ok := s.objectID(w, r)
	if !ok {
		return
	}
	items, err := s.service.Timeline(r.Context(), id)
	if err != nil {
		s.fail(w, r, "timeline", err)
		return
	}
	s.respondOK(w, map[string]any{"items": items})
}

func (s *Server) keyword(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.intQuery(w, r, "limit")
	if !ok {
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	hits, err := s.service.Keyword(r.Context(), q, limit)
	if err != nil {
		s.fail(w, r, "keyword", err)
		return
	}
	s.respondOK(w, map[string]any{"query": q, "data": hits})
}

func (s *Server) similar(w http.ResponseWriter, r *http.Request) {
	var req similarRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	res, err := s.service.Similar(r.Context(), pipeline.SimilarQuery{
		Text:       req.Text,
		Limit:      req.Limit,
		Candidates: req.Candidates,
		Source:     req.Source,
	})
	if err != nil {
		s.fail(w, r, "similar", err)
		return
	}
	s.respondOK(w, map[string]any{"query": res.Query, "data": res.Data, "meta": res.Meta})
}

func (s *Server) vocab(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.intQuery(w, r, "limit")
	if !ok {
		return
	}
	field := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("field")))
	entries, err := s.service.Vocab(r.Context(), field, limit)
	if err != nil {
		s.fail(w, r, "vocab", err)
		return
	}
	s.respondOK(w, map[string]any{"field": field, "data": entries})
}

func (s *Server) explainObject(w http.ResponseWriter, r *http.Request) {
	id, ok := s.objectID(w, r)
	if !ok {
		return
	}
	out, err := s.service.ExplainObject(r.Context(), id)
	if err != nil {
		s.fail(w, r, "explain object", err)
		return
	}
	s.respondOK(w, map[string]any{"model": out.Model, "note": out.Text})
}

func (s *Server) explainText(w http.ResponseWriter, r *http.Request) {
	var req explainRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	out, err := s.service.ExplainText(r.Context(), req.Text)
	if err != nil {
		s.fail(w, r, "explain text", err)
		return
	}
	s.respondOK(w, map[string]any{"model": out.Model, "explanation": out.Text})
}

// objectID parses the {id} path parameter; anything but an integer is an
// unknown object
func (s *Server) objectID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusNotFound, codeNotFound, "")
		return 0, false
	}
	return id, true
}

// intQuery parses an optional integer query parameter; absent is 0
func (s *Server) intQuery(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, name+" must be an integer", "")
		return 0, false
	}
	return n, true
}

// decodeBody reads a JSON body into dst, trims its text field and validates it
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON body", "")
		return false
	}

	switch req := dst.(type) {
	case *similarRequest:
		req.Text = strings.TrimSpace(req.Text)
	case *explainRequest:
		req.Text = strings.TrimSpace(req.Text)
	}

	if err := s.validate.Struct(dst); err != nil {
		s.respondError(w, http.StatusBadRequest, formatValidation(err), "")
		return false
	}
	return true
}
