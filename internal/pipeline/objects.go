package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/provenance-radar/internal/extract"
	"github.com/ppiankov/provenance-radar/internal/llm"
	"github.com/ppiankov/provenance-radar/internal/model"
	"github.com/ppiankov/provenance-radar/internal/timeline"
	"github.com/ppiankov/provenance-radar/internal/worker"
)

// ObjectDetail is an object with everything stored about it
type ObjectDetail struct {
	Object    map[string]any     `json:"object"` // Object row with the risk dual-write applied
	Risk      *model.RiskScore   `json:"risk,omitempty"`
	Sentences []model.Sentence   `json:"sentences"`
	Events    []model.Event      `json:"events"`
	Risks     []model.RiskSignal `json:"risks"`
}

// Explanation is a generated note and the model that wrote it
type Explanation struct {
	Model string `json:"model"`
	Text  string `json:"text"`
}

// ObjectDetail returns the object, its sentences, stored events (with the
// citation tier of each) and risk signals
func (p *Pipeline) ObjectDetail(ctx context.Context, objectID int64) (*ObjectDetail, error) {
	obj, err := p.store.GetObject(ctx, objectID)
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}

	row := obj.Record()
	detail := &ObjectDetail{Object: row}
	if p.normalizer.ApplyTo(row) {
		s := p.normalizer.Score(*obj.RiskScore)
		detail.Risk = &s
		p.logger.Info("object risk",
			zap.Int64("object_id", objectID),
			zap.Float64("raw_ratio", s.Raw),
			zap.Float64("norm_ratio", s.Normalized),
			zap.Float64("norm_pct", s.Scaled))
	} else {
		p.logger.Info("object risk", zap.Int64("object_id", objectID), zap.String("raw_ratio", "NA"))
	}

	sentences, err := p.store.ListSentences(ctx, objectID)
	if err != nil {
		return nil, fmt.Errorf("list sentences: %w", err)
	}
	events, err := p.store.ListEvents(ctx, objectID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	risks, err := p.store.ListRiskSignals(ctx, objectID)
	if err != nil {
		return nil, fmt.Errorf("list risk signals: %w", err)
	}

	detail.Sentences = nonNil(sentences)
	detail.Events = p.citations.Annotate(events)
	detail.Risks = nonNil(risks)
	return detail, nil
}

// Graph builds the provenance graph of an object from its canonical events,
// with transfer edges linking successive owners
func (p *Pipeline) Graph(ctx context.Context, objectID int64) (model.Graph, error) {
	obj, err := p.store.GetObject(ctx, objectID)
	if err != nil {
		return model.Graph{}, fmt.Errorf("get object: %w", err)
	}
	events, _, err := p.canonicalEvents(ctx, objectID)
	if err != nil {
		return model.Graph{}, err
	}
	return p.graphs.BuildWithCustody(*obj, events), nil
}

// Timeline returns timeline items for the canonical events, undated first
func (p *Pipeline) Timeline(ctx context.Context, objectID int64) ([]model.TimelineItem, error) {
	if _, err := p.store.GetObject(ctx, objectID); err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}
	events, sentences, err := p.canonicalEvents(ctx, objectID)
	if err != nil {
		return nil, err
	}
	timeline.SortEvents(events)
	return p.timelines.Build(events, sentences), nil
}

// Places returns each distinct place of an object with the earliest date it
// is mentioned, geocoded, in chronological order with undated places last
func (p *Pipeline) Places(ctx context.Context, objectID int64) ([]model.PlaceInfo, error) {
	if _, err := p.store.GetObject(ctx, objectID); err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}
	stored, err := p.store.ListEvents(ctx, objectID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	sentences, err := p.store.ListSentences(ctx, objectID)
	if err != nil {
		return nil, fmt.Errorf("list sentences: %w", err)
	}

	places := uniquePlaces(append(stored, p.inferrer.InferAll(sentences)...))

	if p.geocoder != nil && len(places) > 0 {
		outcomes := worker.Map(ctx, p.geocodeWorkers, places, func(ctx context.Context, info model.PlaceInfo) (model.PlaceInfo, error) {
			info.Lat, info.Lon = p.geocoder.Lookup(ctx, info.Place)
			return info, nil
		})
		for i, o := range outcomes {
			if o.Err == nil {
				places[i] = o.Value
			}
		}
	}

	sort.SliceStable(places, func(i, j int) bool {
		return model.CompareDates(places[i].Date, places[j].Date, model.MissingLast) < 0
	})
	return places, nil
}

// uniquePlaces keeps one entry per cleaned place name with its earliest
// date; a dated mention beats an undated one. First-seen order is kept.
func uniquePlaces(events []model.Event) []model.PlaceInfo {
	index := make(map[string]int)
	places := make([]model.PlaceInfo, 0)

	for _, ev := range events {
		name := extract.CleanPlace(ev.Place)
		if name == "" {
			continue
		}
		date := model.ISODate(ev.DateFrom)
		if i, ok := index[name]; ok {
			if model.CompareDates(date, places[i].Date, model.MissingLast) < 0 {
				places[i].Date = date
			}
			continue
		}
		index[name] = len(places)
		places = append(places, model.PlaceInfo{Place: name, Date: date})
	}
	return places
}

// ExplainObject writes a research note for an object
func (p *Pipeline) ExplainObject(ctx context.Context, objectID int64) (*Explanation, error) {
	if p.explainer == nil {
		return nil, fmt.Errorf("explain object: %w", llm.ErrUnavailable)
	}

	obj, err := p.store.GetObject(ctx, objectID)
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}
	sentences, err := p.store.ListSentences(ctx, objectID)
	if err != nil {
		return nil, fmt.Errorf("list sentences: %w", err)
	}
	events, err := p.store.ListEvents(ctx, objectID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	brief := llm.ObjectBrief{
		Object:    *obj,
		Sentences: sentences,
		Events:    events,
		Windows:   p.policies.Windows(),
	}
	if obj.RiskScore != nil {
		s := p.normalizer.Score(*obj.RiskScore)
		brief.Risk = &s
	}

	text, err := p.explainer.ExplainObject(ctx, brief)
	if err != nil {
		return nil, fmt.Errorf("explain object: %w", err)
	}
	return &Explanation{Model: p.explainer.Model(), Text: text}, nil
}

// ExplainText explains a free-text provenance fragment
func (p *Pipeline) ExplainText(ctx context.Context, text string) (*Explanation, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, invalid("text required")
	}
	if p.explainer == nil {
		return nil, fmt.Errorf("explain text: %w", llm.ErrUnavailable)
	}

	note, err := p.explainer.ExplainText(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("explain text: %w", err)
	}
	return &Explanation{Model: p.explainer.Model(), Text: note}, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
