package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ppiankov/provenance-radar/internal/extract"
	"github.com/ppiankov/provenance-radar/internal/graph"
	"github.com/ppiankov/provenance-radar/internal/llm"
	"github.com/ppiankov/provenance-radar/internal/merge"
	"github.com/ppiankov/provenance-radar/internal/model"
	"github.com/ppiankov/provenance-radar/internal/policy"
	"github.com/ppiankov/provenance-radar/internal/score"
	"github.com/ppiankov/provenance-radar/internal/timeline"
	"github.com/ppiankov/provenance-radar/internal/validate"
)

var (
	// ErrInvalidInput is returned for requests that fail validation
	ErrInvalidInput = errors.New("invalid input")
	// ErrEmbeddingUnavailable is returned when the query text cannot be embedded
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
)

// Store is the read side of provenance storage
type Store interface {
	Ping(ctx context.Context) error
	GetObject(ctx context.Context, objectID int64) (*model.Object, error)
	ListSentences(ctx context.Context, objectID int64) ([]model.Sentence, error)
	ListEvents(ctx context.Context, objectID int64) ([]model.Event, error)
	ListRiskSignals(ctx context.Context, objectID int64) ([]model.RiskSignal, error)
	ListLeads(ctx context.Context, minScore float64, source string, limit int) ([]model.Lead, error)
	SearchKeyword(ctx context.Context, q string, limit int) ([]model.KeywordHit, error)
	NearestSentences(ctx context.Context, query []float32, candidates int) ([]model.SimilarHit, error)
	Vocab(ctx context.Context, field string, limit int) ([]model.VocabEntry, error)
	Counts(ctx context.Context) (model.Counts, error)
}

// WriteStore adds the ingest writes to Store
type WriteStore interface {
	Store
	UpsertObject(ctx context.Context, obj model.Object) error
	ReplaceSentences(ctx context.Context, objectID int64, sentences []model.Sentence) error
	ReplaceEvents(ctx context.Context, objectID int64, events []model.Event) error
	ReplaceRiskSignals(ctx context.Context, objectID int64, signals []model.RiskSignal) error
	SetSentenceEmbedding(ctx context.Context, objectID int64, seq int, vector []float32) error
}

// Embedder turns text into a vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Geocoder resolves a place name; nil coordinates mean unknown
type Geocoder interface {
	Lookup(ctx context.Context, place string) (lat, lon *float64)
}

// Explainer writes research notes
type Explainer interface {
	Model() string
	ExplainObject(ctx context.Context, brief llm.ObjectBrief) (string, error)
	ExplainText(ctx context.Context, text string) (string, error)
}

// Deps are the collaborators a Pipeline is built from. Store is required;
// nil core components get their defaults, and nil Embedder, Geocoder or
// Explainer disable the features that need them.
type Deps struct {
	Store      Store
	Normalizer *score.Normalizer
	Inferrer   *extract.EventInferrer
	Graphs     *graph.Builder
	Timelines  *timeline.Builder
	Policies   *policy.Matcher
	Citations  *validate.CitationClassifier
	Embedder   Embedder
	Geocoder   Geocoder
	Explainer  Explainer
	Logger     *zap.Logger

	GeocodeWorkers int // Concurrent place lookups per request
	EmbedWorkers   int // Concurrent embedding requests during ingest
}

// Pipeline answers every read operation of the service
type Pipeline struct {
	store      Store
	normalizer *score.Normalizer
	inferrer   *extract.EventInferrer
	merger     *merge.Policy
	graphs     *graph.Builder
	timelines  *timeline.Builder
	policies   *policy.Matcher
	citations  *validate.CitationClassifier
	embedder   Embedder
	geocoder   Geocoder
	explainer  Explainer
	logger     *zap.Logger

	geocodeWorkers int
	embedWorkers   int
}

// New creates a pipeline from its collaborators
func New(d Deps) (*Pipeline, error) {
	if d.Store == nil {
		return nil, fmt.Errorf("pipeline: store is required")
	}

	p := &Pipeline{
		store:          d.Store,
		normalizer:     d.Normalizer,
		inferrer:       d.Inferrer,
		graphs:         d.Graphs,
		timelines:      d.Timelines,
		policies:       d.Policies,
		citations:      d.Citations,
		embedder:       d.Embedder,
		geocoder:       d.Geocoder,
		explainer:      d.Explainer,
		logger:         d.Logger,
		geocodeWorkers: d.GeocodeWorkers,
		embedWorkers:   d.EmbedWorkers,
	}

	if p.normalizer == nil {
		p.normalizer = score.NewNormalizer()
	}
	if p.inferrer == nil {
		p.inferrer = extract.NewEventInferrer()
	}
	if p.policies == nil {
		p.policies = policy.NewMatcher(nil)
	}
	if p.graphs == nil {
		p.graphs = graph.NewBuilder(p.policies)
	}
	if p.timelines == nil {
		p.timelines = timeline.NewBuilder()
	}
	if p.citations == nil {
		p.citations = validate.NewCitationClassifier(nil)
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	if p.geocodeWorkers <= 0 {
		p.geocodeWorkers = 2
	}
	if p.embedWorkers <= 0 {
		p.embedWorkers = 4
	}
	p.merger = merge.NewPolicy(p.inferrer)

	return p, nil
}

// Windows returns the policy windows events are flagged against
func (p *Pipeline) Windows() []model.PolicyWindow {
	return p.policies.Windows()
}

// canonicalEvents loads an object's stored events and sentences and merges
// in what the sentences imply
func (p *Pipeline) canonicalEvents(ctx context.Context, objectID int64) ([]model.Event, []model.Sentence, error) {
	events, err := p.store.ListEvents(ctx, objectID)
	if err != nil {
		return nil, nil, fmt.Errorf("list events: %w", err)
	}
	sentences, err := p.store.ListSentences(ctx, objectID)
	if err != nil {
		return nil, nil, fmt.Errorf("list sentences: %w", err)
	}
	return p.merger.CanonicalEvents(events, sentences), sentences, nil
}

// ValidationError describes a rejected request; it matches ErrInvalidInput
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// clamp bounds n to [lo, hi], using def when n is zero
func clamp(n, def, lo, hi int) int {
	if n == 0 {
		n = def
	}
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
