package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/provenance-radar/internal/extract"
	"github.com/ppiankov/provenance-radar/internal/model"
	"github.com/ppiankov/provenance-radar/internal/worker"
)

// ErrReadOnly is returned by Ingest when the store cannot be written
var ErrReadOnly = errors.New("store is read-only")

var recordValidator = newRecordValidator()

// newRecordValidator adds the ingest-specific tags: event_type accepts the
// known event types in any case, finite rejects NaN and infinities
func newRecordValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("event_type", func(fl validator.FieldLevel) bool {
		_, ok := model.ParseEventType(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	})
	return v
}

// IngestFile is a YAML batch of catalogue records
type IngestFile struct {
	Objects []IngestRecord `yaml:"objects" validate:"dive"`
}

// IngestRecord is one object with its provenance as delivered by a collection
type IngestRecord struct {
	ObjectID    int64          `yaml:"object_id" validate:"required,gt=0"`
	Source      string         `yaml:"source" validate:"required"`
	Title       string         `yaml:"title"`
	Creator     string         `yaml:"creator"`
	DateDisplay string         `yaml:"date_display"`
	Culture     string         `yaml:"culture"`
	ImageURL    string         `yaml:"image_url" validate:"omitempty,url"`
	RiskScore   *float64       `yaml:"risk_score" validate:"omitempty,finite,gte=0"`
	Provenance  string         `yaml:"provenance"` // Free-text paragraph, split into sentences
	Sentences   []string       `yaml:"sentences"`  // Used as-is when present
	Events      []IngestEvent  `yaml:"events" validate:"dive"`
	Signals     []IngestSignal `yaml:"risk_signals" validate:"dive"`
}

// IngestEvent is a curated provenance event
type IngestEvent struct {
	Type      string `yaml:"type" validate:"event_type"`
	DateFrom  string `yaml:"date_from"`
	DateTo    string `yaml:"date_to"`
	Place     string `yaml:"place"`
	Actor     string `yaml:"actor"`
	Method    string `yaml:"method"`
	SourceRef string `yaml:"source_ref"`
}

// IngestSignal is a scored reason behind an object's risk ratio
type IngestSignal struct {
	Code   string  `yaml:"code" validate:"required"`
	Detail string  `yaml:"detail"`
	Weight float64 `yaml:"weight" validate:"finite"`
}

// IngestReport counts what a batch wrote
type IngestReport struct {
	RunID       string `json:"run_id"`
	Objects     int    `json:"objects"`
	Sentences   int    `json:"sentences"`
	Events      int    `json:"events"`
	Signals     int    `json:"risk_signals"`
	Embedded    int    `json:"embedded"`
	EmbedFailed int    `json:"embed_failed"`
}

// ParseIngestFile decodes and validates a YAML batch. Unknown keys are errors.
func ParseIngestFile(r io.Reader) (*IngestFile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f IngestFile
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, fmt.Errorf("decoding ingest file: %w", err)
	}
	if err := recordValidator.Struct(f); err != nil {
		return nil, invalid("%v", err)
	}
	return &f, nil
}

// embedTask is one stored sentence waiting for its vector
type embedTask struct {
	objectID int64
	seq      int
	text     string
}

// Ingest writes a batch of records, replacing the sentences, events and risk
// signals of each object, then embeds the new sentences when an embedder is
// configured. Embedding failures are counted, not returned.
func (p *Pipeline) Ingest(ctx context.Context, f *IngestFile) (*IngestReport, error) {
	ws, ok := p.store.(WriteStore)
	if !ok {
		return nil, ErrReadOnly
	}

	report := &IngestReport{RunID: uuid.New().String()}
	logger := p.logger.With(zap.String("run_id", report.RunID))
	logger.Info("ingest started", zap.Int("records", len(f.Objects)))

	var tasks []embedTask
	for _, rec := range f.Objects {
		obj, sentences, events, signals := rec.toModel()

		if err := ws.UpsertObject(ctx, obj); err != nil {
			return report, fmt.Errorf("object %d: %w", obj.ObjectID, err)
		}
		if err := ws.ReplaceSentences(ctx, obj.ObjectID, sentences); err != nil {
			return report, fmt.Errorf("object %d: %w", obj.ObjectID, err)
		}
		if err := ws.ReplaceEvents(ctx, obj.ObjectID, events); err != nil {
			return report, fmt.Errorf("object %d: %w", obj.ObjectID, err)
		}
		if err := ws.ReplaceRiskSignals(ctx, obj.ObjectID, signals); err != nil {
			return report, fmt.Errorf("object %d: %w", obj.ObjectID, err)
		}

		report.Objects++
		report.Sentences += len(sentences)
		report.Events += len(events)
		report.Signals += len(signals)

		for _, s := range sentences {
			tasks = append(tasks, embedTask{objectID: obj.ObjectID, seq: s.Seq, text: s.Text})
		}
	}

	if p.embedder != nil && len(tasks) > 0 {
		outcomes := worker.Map(ctx, p.embedWorkers, tasks, func(ctx context.Context, t embedTask) ([]float32, error) {
			return p.embedder.Embed(ctx, t.text)
		})
		for i, o := range outcomes {
			t := tasks[i]
			err := o.Err
			if err == nil {
				err = ws.SetSentenceEmbedding(ctx, t.objectID, t.seq, o.Value)
			}
			if err != nil {
				report.EmbedFailed++
				logger.Warn("embedding failed",
					zap.Int64("object_id", t.objectID),
					zap.Int("seq", t.seq),
					zap.Error(err))
				continue
			}
			report.Embedded++
		}
	}

	logger.Info("ingest finished",
		zap.Int("objects", report.Objects),
		zap.Int("sentences", report.Sentences),
		zap.Int("events", report.Events),
		zap.Int("risk_signals", report.Signals),
		zap.Int("embedded", report.Embedded),
		zap.Int("embed_failed", report.EmbedFailed))

	return report, nil
}

// toModel converts a record to storage rows. Sentences come from the explicit
// list when present, otherwise from splitting the provenance paragraph.
func (r IngestRecord) toModel() (model.Object, []model.Sentence, []model.Event, []model.RiskSignal) {
	obj := model.Object{
		ObjectID:    r.ObjectID,
		Source:      strings.ToUpper(strings.TrimSpace(r.Source)),
		Title:       strings.TrimSpace(r.Title),
		Creator:     strings.TrimSpace(r.Creator),
		DateDisplay: strings.TrimSpace(r.DateDisplay),
		Culture:     strings.TrimSpace(r.Culture),
		ImageURL:    strings.TrimSpace(r.ImageURL),
		RiskScore:   r.RiskScore,
	}

	texts := r.Sentences
	if len(texts) == 0 {
		texts = extract.SplitProvenance(r.Provenance)
	}
	sentences := make([]model.Sentence, 0, len(texts))
	for _, t := range texts {
		if t = strings.TrimSpace(t); t != "" {
			sentences = append(sentences, model.Sentence{ObjectID: r.ObjectID, Seq: len(sentences), Text: t})
		}
	}

	events := make([]model.Event, 0, len(r.Events))
	for _, e := range r.Events {
		eventType, ok := model.ParseEventType(e.Type)
		if !ok {
			eventType = model.EventUnknown
		}
		events = append(events, model.Event{
			EventType: eventType,
			DateFrom:  model.ISODate(e.DateFrom),
			DateTo:    model.ISODate(e.DateTo),
			Place:     strings.TrimSpace(e.Place),
			Actor:     strings.TrimSpace(e.Actor),
			Method:    strings.TrimSpace(e.Method),
			SourceRef: strings.TrimSpace(e.SourceRef),
		})
	}

	signals := make([]model.RiskSignal, 0, len(r.Signals))
	for _, s := range r.Signals {
		signals = append(signals, model.RiskSignal{
			Code:   strings.ToUpper(strings.TrimSpace(s.Code)),
			Detail: strings.TrimSpace(s.Detail),
			Weight: s.Weight,
		})
	}

	return obj, sentences, events, signals
}
