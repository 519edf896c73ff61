package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/provenance-radar/internal/llm"
	"github.com/ppiankov/provenance-radar/internal/model"
	"github.com/ppiankov/provenance-radar/internal/pipeline"
	"github.com/ppiankov/provenance-radar/internal/store"
)

const fixture = `
objects:
  - object_id: 42
    source: AIC
    title: Landscape
    creator: Unknown
    risk_score: 1.0
    provenance: "Sold to Paul Rosenberg, Bordeaux, 1940; Purchased from Knoedler, New York, 1952."
    risk_signals:
      - code: GAP_1933_1945
        weight: 0.5
`

type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if strings.Contains(text, "Bordeaux") {
		return []float32{1, 0, 0}, nil
	}
	return []float32{0, 1, 0}, nil
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()

	s, err := store.Open(model.StoreConfig{Path: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	p, err := pipeline.New(pipeline.Deps{
		Store:     s,
		Embedder:  stubEmbedder{},
		Explainer: llm.NewExplainer(nil, "", nil),
	})
	require.NoError(t, err)

	f, err := pipeline.ParseIngestFile(strings.NewReader(fixture))
	require.NoError(t, err)
	_, err = p.Ingest(context.Background(), f)
	require.NoError(t, err)

	return NewServer(p, model.ServerConfig{}, nil).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func TestRoot(t *testing.T) {
	h := newTestServer(t)

	rec, body := do(t, h, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, ServiceName, body["service"])
}

func TestHealth(t *testing.T) {
	h := newTestServer(t)

	rec, body := do(t, h, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	counts := body["counts"].(map[string]any)
	assert.Equal(t, 1.0, counts["objects"])
	assert.Equal(t, 2.0, counts["sentences"])
	assert.Equal(t, 1.0, counts["risk_signals"])
	assert.Equal(t, "none", body["generator"])
	assert.Equal(t, true, body["embeddings"])
	assert.Contains(t, body, "db_latency_ms")
}

func TestPolicyWindows(t *testing.T) {
	h := newTestServer(t)

	rec, body := do(t, h, http.MethodGet, "/api/policy/windows", "")
	require.Equal(t, http.StatusOK, rec.Code)

	windows := body["windows"].([]any)
	require.Len(t, windows, 2)
	unesco := windows[1].(map[string]any)
	assert.Equal(t, "UNESCO_1970", unesco["code"])
	assert.Nil(t, unesco["to"])
}

func TestObject(t *testing.T) {
	h := newTestServer(t)

	rec, body := do(t, h, http.MethodGet, "/api/object/42", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store, max-age=0", rec.Header().Get("Cache-Control"))

	obj := body["object"].(map[string]any)
	assert.Equal(t, 0.55, obj["risk_score"])
	assert.Equal(t, 1.0, obj["risk_score_raw"])
	assert.Equal(t, 55.0, obj["risk_score_norm_0_99"])
	assert.Equal(t, 0.55, obj["risk_score_normalized"])
	assert.Len(t, body["sentences"], 2)
	assert.Len(t, body["events"], 0)
	assert.Len(t, body["risks"], 1)
}

func TestObject_NotFound(t *testing.T) {
	h := newTestServer(t)

	for _, path := range []string{
		"/api/object/7",
		"/api/object/abc",
		"/api/graph/7",
		"/api/places/7",
		"/api/timeline/7",
		"/api/explain/object/7",
	} {
		rec, body := do(t, h, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Equal(t, false, body["ok"], path)
		assert.Equal(t, "not_found", body["error"], path)
	}
}

func TestGraph(t *testing.T) {
	h := newTestServer(t)

	rec, body := do(t, h, http.MethodGet, "/api/graph/42", "")
	require.Equal(t, http.StatusOK, rec.Code)

	nodes := body["nodes"].([]any)
	assert.Equal(t, "obj:42", nodes[0].(map[string]any)["id"])

	var transfer map[string]any
	for _, e := range body["edges"].([]any) {
		edge := e.(map[string]any)
		if edge["label"] == "TRANSFER" {
			transfer = edge
		}
	}
	require.NotNil(t, transfer)
	assert.Equal(t, "actor:Paul Rosenberg", transfer["source"])
	assert.Equal(t, "actor:Knoedler", transfer["target"])
	assert.Equal(t, "1952-01-01", transfer["date"])
}

func TestTimelineAndPlaces(t *testing.T) {
	h := newTestServer(t)

	rec, body := do(t, h, http.MethodGet, "/api/timeline/42", "")
	require.Equal(t, http.StatusOK, rec.Code)
	items := body["items"].([]any)
	require.Len(t, items, 2)
	assert.Equal(t, "SOLD", items[0].(map[string]any)["title"])

	rec, body = do(t, h, http.MethodGet, "/api/places/42", "")
	require.Equal(t, http.StatusOK, rec.Code)
	places := body["places"].([]any)
	require.Len(t, places, 2)
	assert.Equal(t, "Bordeaux", places[0].(map[string]any)["place"])
	assert.Equal(t, "New York", places[1].(map[string]any)["place"])
	assert.Nil(t, places[0].(map[string]any)["lat"])
}

func TestLeads(t *testing.T) {
	h := newTestServer(t)

	rec, body := do(t, h, http.MethodGet, "/api/leads?min_score=0.5&limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store, max-age=0", rec.Header().Get("Cache-Control"))
	data := body["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, 0.55, data[0].(map[string]any)["risk_score"])

	rec, body = do(t, h, http.MethodGet, "/api/leads?min_score=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, body["data"])

	rec, _ = do(t, h, http.MethodGet, "/api/leads?limit=ten", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/api/leads?min_score=high", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestKeyword(t *testing.T) {
	h := newTestServer(t)

	rec, body := do(t, h, http.MethodGet, "/api/keyword?q=rosenberg", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "rosenberg", body["query"])
	assert.Len(t, body["data"], 1)

	rec, body = do(t, h, http.MethodGet, "/api/keyword", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "q required", body["error"])
}

func TestVocab(t *testing.T) {
	h := newTestServer(t)

	rec, body := do(t, h, http.MethodGet, "/api/vocab?field=source", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "source", body["field"])
	data := body["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, "AIC", data[0].(map[string]any)["v"])
	assert.Equal(t, 1.0, data[0].(map[string]any)["n"])

	rec, body = do(t, h, http.MethodGet, "/api/vocab?field=title", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "field must be one of actor|place|source|culture", body["error"])
}

func TestSimilar(t *testing.T) {
	h := newTestServer(t)

	rec, body := do(t, h, http.MethodPost, "/api/similar", `{"text":"Bordeaux dealers","limit":3,"source":"aic"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Bordeaux dealers", body["query"])

	data := body["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, 0.0, data[0].(map[string]any)["seq"])

	meta := body["meta"].(map[string]any)
	assert.Equal(t, 3.0, meta["limit"])
	assert.Equal(t, 200.0, meta["candidates"])
	assert.Equal(t, "AIC", meta["source"])
}

func TestSimilar_BadRequests(t *testing.T) {
	h := newTestServer(t)

	rec, body := do(t, h, http.MethodPost, "/api/similar", `{"text":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "text required", body["error"])

	rec, body = do(t, h, http.MethodPost, "/api/similar", `{"text":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid JSON body", body["error"])

	rec, _ = do(t, h, http.MethodPost, "/api/similar", `{"text":"x","candidates":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExplain_Fallback(t *testing.T) {
	h := newTestServer(t)

	rec, body := do(t, h, http.MethodGet, "/api/explain/object/42", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "none", body["model"])
	assert.True(t, strings.HasPrefix(body["note"].(string), "(generation not configured) Object: Landscape"))

	rec, body = do(t, h, http.MethodPost, "/api/explain/text", `{"text":"Sold to Paul Rosenberg"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body["explanation"], "Sold to Paul Rosenberg")

	rec, body = do(t, h, http.MethodPost, "/api/explain/text", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "text required", body["error"])
}

func TestMetrics(t *testing.T) {
	h := newTestServer(t)

	do(t, h, http.MethodGet, "/api/object/42", "")

	rec, _ := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `provradar_http_requests_total{method="GET",route="/api/object/{id}",status="200"} 1`)
}

// failingService returns the same error from every operation
type failingService struct {
	err error
}

func (f failingService) Health(context.Context) (*pipeline.Health, error) { return nil, f.err }
func (f failingService) Windows() []model.PolicyWindow                    { return nil }
func (f failingService) Leads(context.Context, pipeline.LeadsQuery) ([]map[string]any, error) {
	return nil, f.err
}
func (f failingService) ObjectDetail(context.Context, int64) (*pipeline.ObjectDetail, error) {
	return nil, f.err
}
func (f failingService) Graph(context.Context, int64) (model.Graph, error) {
	return model.Graph{}, f.err
}
func (f failingService) Places(context.Context, int64) ([]model.PlaceInfo, error) {
	return nil, f.err
}
func (f failingService) Timeline(context.Context, int64) ([]model.TimelineItem, error) {
	return nil, f.err
}
func (f failingService) Keyword(context.Context, string, int) ([]model.KeywordHit, error) {
	return nil, f.err
}
func (f failingService) Similar(context.Context, pipeline.SimilarQuery) (*pipeline.SimilarResult, error) {
	return nil, f.err
}
func (f failingService) Vocab(context.Context, string, int) ([]model.VocabEntry, error) {
	return nil, f.err
}
func (f failingService) ExplainObject(context.Context, int64) (*pipeline.Explanation, error) {
	return nil, f.err
}
func (f failingService) ExplainText(context.Context, string) (*pipeline.Explanation, error) {
	return nil, f.err
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"store unavailable", fmt.Errorf("get object: %w", store.ErrUnavailable), http.StatusServiceUnavailable, "database_unavailable"},
		{"store failure", errors.New("disk I/O error"), http.StatusInternalServerError, "database_error"},
		{"not found", fmt.Errorf("get object: %w", store.ErrNotFound), http.StatusNotFound, "not_found"},
		{"embedding", fmt.Errorf("%w: timeout", pipeline.ErrEmbeddingUnavailable), http.StatusServiceUnavailable, "embedding_unavailable"},
		{"generation", fmt.Errorf("explain object: %w", llm.ErrUnavailable), http.StatusServiceUnavailable, "generation_unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewServer(failingService{err: tt.err}, model.ServerConfig{}, nil).Handler()

			rec, body := do(t, h, http.MethodGet, "/api/object/1", "")
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, false, body["ok"])
			assert.Equal(t, tt.code, body["error"])
		})
	}
}

func TestHealth_Unavailable(t *testing.T) {
	h := NewServer(failingService{err: store.ErrUnavailable}, model.ServerConfig{}, nil).Handler()

	rec, body := do(t, h, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unavailable", body["db_status"])
}

func TestRespondJSON_UnencodableBody(t *testing.T) {
	srv := NewServer(failingService{}, model.ServerConfig{}, nil)

	rec := httptest.NewRecorder()
	srv.respondJSON(rec, http.StatusOK, map[string]any{"risk_score_raw": math.Inf(1)})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, codeEncodingFailed, body["error"])
	assert.Equal(t, false, body["ok"])
}
