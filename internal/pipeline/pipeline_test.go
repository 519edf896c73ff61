package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/provenance-radar/internal/llm"
	"github.com/ppiankov/provenance-radar/internal/model"
	"github.com/ppiankov/provenance-radar/internal/store"
)

const fixture = `
objects:
  - object_id: 1
    source: aic
    title: Still Life
    creator: Anon
    risk_score: 2.0
    provenance: "Sold to John Smith, Paris, 1965; Donated by the artist's estate by 1980."
    events:
      - type: sold
        actor: Galerie Nord
        place: Paris
        date_from: "1938-03-01"
        source_ref: https://www.artic.edu/artworks/1
    risk_signals:
      - code: gap_1933_1945
        detail: No owner recorded for the war years
        weight: 0.7
      - code: dealer
        weight: 0.2
  - object_id: 2
    source: MET
    title: Bowl
    risk_score: 0.4
    sentences:
      - Purchased from Jacques Seligmann and Co., New York, 1920
  - object_id: 3
    source: MET
    title: Unscored
`

type fakeEmbedder struct {
	fail bool
}

// Embed maps text onto two axes: mentions of Paris and everything else
func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.fail {
		return nil, errors.New("embedding service down")
	}
	if strings.Contains(strings.ToLower(text), "paris") {
		return []float32{1, 0}, nil
	}
	return []float32{0, 1}, nil
}

type fakeGeocoder struct {
	mu      sync.Mutex
	lookups []string
}

func (f *fakeGeocoder) Lookup(_ context.Context, place string) (*float64, *float64) {
	f.mu.Lock()
	f.lookups = append(f.lookups, place)
	f.mu.Unlock()

	if place == "Paris" {
		lat, lon := 48.8566, 2.3522
		return &lat, &lon
	}
	return nil, nil
}

type fakeExplainer struct {
	brief llm.ObjectBrief
}

func (f *fakeExplainer) Model() string { return "test-model" }

func (f *fakeExplainer) ExplainObject(_ context.Context, brief llm.ObjectBrief) (string, error) {
	f.brief = brief
	return "note about " + brief.Object.Title, nil
}

func (f *fakeExplainer) ExplainText(_ context.Context, text string) (string, error) {
	return "explained: " + text, nil
}

func newTestPipeline(t *testing.T, d Deps) *Pipeline {
	t.Helper()

	s, err := store.Open(model.StoreConfig{Path: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	d.Store = s
	p, err := New(d)
	require.NoError(t, err)

	f, err := ParseIngestFile(strings.NewReader(fixture))
	require.NoError(t, err)
	_, err = p.Ingest(context.Background(), f)
	require.NoError(t, err)

	return p
}

func TestNew_RequiresStore(t *testing.T) {
	_, err := New(Deps{})
	assert.Error(t, err)
}

func TestIngest_Report(t *testing.T) {
	s, err := store.Open(model.StoreConfig{Path: ":memory:"}, nil)
	require.NoError(t, err)
	defer s.Close()

	p, err := New(Deps{Store: s, Embedder: &fakeEmbedder{}})
	require.NoError(t, err)

	f, err := ParseIngestFile(strings.NewReader(fixture))
	require.NoError(t, err)

	report, err := p.Ingest(context.Background(), f)
	require.NoError(t, err)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 3, report.Objects)
	assert.Equal(t, 3, report.Sentences)
	assert.Equal(t, 1, report.Events)
	assert.Equal(t, 2, report.Signals)
	assert.Equal(t, 3, report.Embedded)
	assert.Zero(t, report.EmbedFailed)

	sentences, err := s.ListSentences(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, sentences, 2)
	assert.Equal(t, "Sold to John Smith, Paris, 1965", sentences[0].Text)
	assert.Equal(t, 1, sentences[1].Seq)
}

func TestIngest_EmbeddingFailuresAreCounted(t *testing.T) {
	s, err := store.Open(model.StoreConfig{Path: ":memory:"}, nil)
	require.NoError(t, err)
	defer s.Close()

	p, err := New(Deps{Store: s, Embedder: &fakeEmbedder{fail: true}})
	require.NoError(t, err)

	f, err := ParseIngestFile(strings.NewReader(fixture))
	require.NoError(t, err)

	report, err := p.Ingest(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Objects)
	assert.Zero(t, report.Embedded)
	assert.Equal(t, 3, report.EmbedFailed)
}

func TestParseIngestFile_Invalid(t *testing.T) {
	tests := map[string]string{
		"missing source":  "objects:\n  - object_id: 5\n",
		"zero id":         "objects:\n  - source: AIC\n",
		"unknown key":     "objects:\n  - object_id: 5\n    source: AIC\n    colour: red\n",
		"signal code":     "objects:\n  - object_id: 5\n    source: AIC\n    risk_signals:\n      - weight: 1\n",
		"event type":      "objects:\n  - object_id: 5\n    source: AIC\n    events:\n      - type: auctioned\n        actor: X\n",
		"infinite risk":   "objects:\n  - object_id: 5\n    source: AIC\n    risk_score: .inf\n",
		"nan risk":        "objects:\n  - object_id: 5\n    source: AIC\n    risk_score: .nan\n",
		"infinite weight": "objects:\n  - object_id: 5\n    source: AIC\n    risk_signals:\n      - code: X\n        weight: .inf\n",
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseIngestFile(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}

	f, err := ParseIngestFile(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, f.Objects)
}

func TestParseIngestFile_EventTypes(t *testing.T) {
	doc := "objects:\n  - object_id: 5\n    source: aic\n    events:\n      - type: Sold\n        actor: X\n      - actor: Y\n"
	f, err := ParseIngestFile(strings.NewReader(doc))
	require.NoError(t, err)

	_, _, events, _ := f.Objects[0].toModel()
	require.Len(t, events, 2)
	assert.Equal(t, model.EventSold, events[0].EventType)
	assert.Equal(t, model.EventUnknown, events[1].EventType)

	rec := IngestRecord{ObjectID: 6, Source: "AIC", Events: []IngestEvent{{Type: "auctioned", Actor: "Z"}}}
	_, _, events, _ = rec.toModel()
	assert.Equal(t, model.EventUnknown, events[0].EventType, "unvalidated records never store free-form types")
}

func TestObjectDetail(t *testing.T) {
	p := newTestPipeline(t, Deps{})

	detail, err := p.ObjectDetail(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, "AIC", detail.Object["source"])
	assert.Equal(t, 0.8, detail.Object["risk_score"])
	assert.Equal(t, 2.0, detail.Object["risk_score_raw"])
	assert.Equal(t, 80.0, detail.Object["risk_score_norm_0_99"])
	require.NotNil(t, detail.Risk)
	assert.Equal(t, 0.8, detail.Risk.Normalized)

	assert.Len(t, detail.Sentences, 2)
	require.Len(t, detail.Events, 1)
	assert.Equal(t, model.EventSold, detail.Events[0].EventType)
	assert.Equal(t, "primary", detail.Events[0].Authority)

	require.Len(t, detail.Risks, 2)
	assert.Equal(t, "GAP_1933_1945", detail.Risks[0].Code)
}

func TestObjectDetail_Unscored(t *testing.T) {
	p := newTestPipeline(t, Deps{})

	detail, err := p.ObjectDetail(context.Background(), 3)
	require.NoError(t, err)
	assert.Nil(t, detail.Risk)
	assert.Nil(t, detail.Object["risk_score"])
	assert.NotContains(t, detail.Object, "risk_score_raw")
	assert.NotNil(t, detail.Sentences)
	assert.NotNil(t, detail.Events)
	assert.NotNil(t, detail.Risks)
}

func TestObjectDetail_NotFound(t *testing.T) {
	p := newTestPipeline(t, Deps{})

	_, err := p.ObjectDetail(context.Background(), 999)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = p.Graph(context.Background(), 999)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = p.Timeline(context.Background(), 999)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = p.Places(context.Background(), 999)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGraph_MergesInferredEvents(t *testing.T) {
	p := newTestPipeline(t, Deps{})

	g, err := p.Graph(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, "obj:1", g.Nodes[0].ID)
	assert.Equal(t, "Still Life (AIC)", g.Nodes[0].Label)

	ids := make(map[string]bool)
	for _, n := range g.Nodes {
		ids[n.ID] = true
	}
	assert.True(t, ids["actor:Galerie Nord"])
	assert.True(t, ids["actor:John Smith"])
	assert.True(t, ids["actor:the artist's estate"])
	assert.True(t, ids["place:Paris"])

	var nazi, transfers int
	for _, e := range g.Edges {
		if e.Label == model.EdgeTransfer {
			transfers++
		}
		for _, code := range e.Policy {
			if code == "NAZI_ERA" {
				nazi++
			}
		}
	}
	assert.Equal(t, 2, transfers)
	assert.Positive(t, nazi)
}

func TestTimeline(t *testing.T) {
	p := newTestPipeline(t, Deps{})

	items, err := p.Timeline(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, "1938-03-01", items[0].StartDate)
	assert.Equal(t, "1965-01-01", items[1].StartDate)
	assert.Equal(t, "1980-01-01", items[2].StartDate)
	assert.Equal(t, "Sold to John Smith, Paris, 1965", items[0].Text)
}

func TestPlaces_EarliestDateAndGeocoding(t *testing.T) {
	geo := &fakeGeocoder{}
	p := newTestPipeline(t, Deps{Geocoder: geo})

	places, err := p.Places(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, places, 1)

	assert.Equal(t, "Paris", places[0].Place)
	assert.Equal(t, "1938-03-01", places[0].Date)
	require.NotNil(t, places[0].Lat)
	assert.InDelta(t, 48.8566, *places[0].Lat, 1e-9)
	assert.Equal(t, []string{"Paris"}, geo.lookups)
}

func TestPlaces_WithoutGeocoder(t *testing.T) {
	p := newTestPipeline(t, Deps{})

	places, err := p.Places(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, places, 1)
	assert.Equal(t, "New York", places[0].Place)
	assert.Equal(t, "1920-01-01", places[0].Date)
	assert.Nil(t, places[0].Lat)
}

func TestUniquePlaces_MissingDatesLast(t *testing.T) {
	places := uniquePlaces([]model.Event{
		{Place: "  Vienna ,"},
		{Place: "Berlin", DateFrom: "1941-01-01"},
		{Place: "Vienna", DateFrom: "1939-06-01T00:00:00"},
		{Place: "Berlin", DateFrom: "1936-01-01"},
		{Actor: "no place"},
	})

	require.Len(t, places, 2)
	assert.Equal(t, model.PlaceInfo{Place: "Vienna", Date: "1939-06-01"}, places[0])
	assert.Equal(t, model.PlaceInfo{Place: "Berlin", Date: "1936-01-01"}, places[1])
}

func TestLeads(t *testing.T) {
	p := newTestPipeline(t, Deps{})
	ctx := context.Background()

	rows, err := p.Leads(ctx, LeadsQuery{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), rows[0]["object_id"])
	assert.Equal(t, 0.8, rows[0]["risk_score"])
	assert.Equal(t, 2.0, rows[0]["risk_score_raw"])
	assert.Equal(t, "GAP_1933_1945,DEALER", rows[0]["top_signals"])

	rows, err = p.Leads(ctx, LeadsQuery{MinScore: 1.0})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	rows, err = p.Leads(ctx, LeadsQuery{Source: "MET", Limit: 500})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(2), rows[0]["object_id"])
}

func TestSimilar(t *testing.T) {
	p := newTestPipeline(t, Deps{Embedder: &fakeEmbedder{}})
	ctx := context.Background()

	res, err := p.Similar(ctx, SimilarQuery{Text: " Paris dealers ", Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, "Paris dealers", res.Query)
	assert.Equal(t, 5, res.Meta.Limit)
	assert.Equal(t, 200, res.Meta.Candidates)
	assert.Nil(t, res.Meta.Source)

	require.Len(t, res.Data, 2)
	assert.Equal(t, int64(1), res.Data[0].ObjectID)
	assert.Equal(t, 0, res.Data[0].Seq)
	assert.InDelta(t, 0, res.Data[0].Distance, 1e-9)
	assert.Equal(t, int64(2), res.Data[1].ObjectID)

	res, err = p.Similar(ctx, SimilarQuery{Text: "Paris", Source: "met", Candidates: 10})
	require.NoError(t, err)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "MET", *res.Meta.Source)
	assert.Equal(t, 10, res.Meta.Candidates)
}

func TestSimilar_EmbeddingUnavailable(t *testing.T) {
	p := newTestPipeline(t, Deps{})
	_, err := p.Similar(context.Background(), SimilarQuery{Text: "Paris"})
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)

	p = newTestPipeline(t, Deps{Embedder: &fakeEmbedder{fail: true}})
	_, err = p.Similar(context.Background(), SimilarQuery{Text: "Paris"})
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)

	_, err = p.Similar(context.Background(), SimilarQuery{Text: "  "})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestKeyword(t *testing.T) {
	p := newTestPipeline(t, Deps{})
	ctx := context.Background()

	hits, err := p.Keyword(ctx, "seligmann", 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(2), hits[0].ObjectID)

	hits, err = p.Keyword(ctx, "nothing like this", 10)
	require.NoError(t, err)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)

	_, err = p.Keyword(ctx, " ", 10)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestVocab(t *testing.T) {
	p := newTestPipeline(t, Deps{})
	ctx := context.Background()

	entries, err := p.Vocab(ctx, "SOURCE", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.VocabEntry{Value: "MET", Count: 2}, entries[0])

	_, err = p.Vocab(ctx, "title", 10)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestHealth(t *testing.T) {
	p := newTestPipeline(t, Deps{Explainer: &fakeExplainer{}})

	h, err := p.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), h.Counts.Objects)
	assert.Equal(t, int64(3), h.Counts.Sentences)
	assert.Equal(t, int64(2), h.Counts.RiskSignals)
	assert.Equal(t, "test-model", h.Generator)
	assert.False(t, h.Embeddings)
	assert.GreaterOrEqual(t, h.DBLatencyMS, 0.0)
}

func TestExplainObject(t *testing.T) {
	ex := &fakeExplainer{}
	p := newTestPipeline(t, Deps{Explainer: ex})

	out, err := p.ExplainObject(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "test-model", out.Model)
	assert.Equal(t, "note about Still Life", out.Text)

	require.NotNil(t, ex.brief.Risk)
	assert.Equal(t, 0.8, ex.brief.Risk.Normalized)
	assert.Len(t, ex.brief.Sentences, 2)
	assert.Len(t, ex.brief.Windows, 2)

	_, err = p.ExplainObject(context.Background(), 999)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestExplain_Unavailable(t *testing.T) {
	p := newTestPipeline(t, Deps{})

	_, err := p.ExplainObject(context.Background(), 1)
	assert.ErrorIs(t, err, llm.ErrUnavailable)

	_, err = p.ExplainText(context.Background(), "Sold to John Smith")
	assert.ErrorIs(t, err, llm.ErrUnavailable)

	_, err = p.ExplainText(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestExplainText(t *testing.T) {
	p := newTestPipeline(t, Deps{Explainer: &fakeExplainer{}})

	out, err := p.ExplainText(context.Background(), "Sold to John Smith")
	require.NoError(t, err)
	assert.Equal(t, "explained: Sold to John Smith", out.Text)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 50, clamp(0, 50, 1, 200))
	assert.Equal(t, 1, clamp(-4, 50, 1, 200))
	assert.Equal(t, 200, clamp(900, 50, 1, 200))
	assert.Equal(t, 7, clamp(7, 50, 1, 200))
}
