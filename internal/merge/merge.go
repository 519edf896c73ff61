package merge

import "github.com/ppiankov/provenance-radar/internal/model"

// Inferrer produces events from provenance sentences
type Inferrer interface {
	InferAll(sentences []model.Sentence) []model.Event
}

// Policy decides which events are canonical for an object
type Policy struct {
	inferrer Inferrer
}

// NewPolicy creates a merge policy backed by inferrer
func NewPolicy(inferrer Inferrer) *Policy {
	return &Policy{inferrer: inferrer}
}

// CanonicalEvents prefers stored events and fills gaps with inferred ones.
// When nothing stored names an actor or place, the inferred events are used
// on their own. The stored slice is never modified.
func (p *Policy) CanonicalEvents(stored []model.Event, sentences []model.Sentence) []model.Event {
	inferred := p.inferrer.InferAll(sentences)

	if !informative(stored) {
		return inferred
	}

	have := make(map[model.EventKey]bool, len(stored))
	merged := make([]model.Event, 0, len(stored)+len(inferred))
	for _, ev := range stored {
		have[ev.Key()] = true
		merged = append(merged, ev)
	}

	for _, ev := range inferred {
		if !have[ev.Key()] {
			merged = append(merged, ev)
		}
	}
	return merged
}

// informative reports whether any event names an actor or a place
func informative(events []model.Event) bool {
	for _, ev := range events {
		if ev.HasSubject() {
			return true
		}
	}
	return false
}
