package extract

import (
	"regexp"
	"strings"

	"github.com/ppiankov/provenance-radar/internal/model"
)

// verbRule maps a surface verb to an event type
type verbRule struct {
	surface string
	event   model.EventType
}

// capture is what a pattern matcher pulls out of a sentence
type capture struct {
	actor string
	place string
}

// matcher extracts an actor and place from sentence text
type matcher interface {
	match(text string) (capture, bool)
}

var (
	yearPattern       = regexp.MustCompile(`\b(1[6-9]\d{2}|20\d{2})\b`) // 1600-2099
	trailingYear      = regexp.MustCompile(`(?i)(,\s*)?(by\s*)?\b(1[6-9]\d{2}|20\d{2})\b.*$`)
	whitespacePattern = regexp.MustCompile(`[\s\p{Z}]+`)
)

// cleanCutset is trimmed from both ends of extracted actors and places
const cleanCutset = " ,.;:-–—"

// EventInferrer infers structured events from free-text provenance sentences
type EventInferrer struct {
	verbs    []verbRule
	matchers []matcher
}

// NewEventInferrer creates a new event inferrer with the catalogue patterns
func NewEventInferrer() *EventInferrer {
	return &EventInferrer{
		// Order matters: the first verb found decides the event type
		verbs: []verbRule{
			{"sold", model.EventSold},
			{"purchased", model.EventPurchased},
			{"bought", model.EventPurchased},
			{"acquired", model.EventAcquired},
			{"donated", model.EventDonated},
			{"gifted", model.EventDonated},
			{"bequeathed", model.EventBequeathed},
			{"consigned", model.EventConsigned},
			{"exhibited", model.EventExhibited},
			{"exported", model.EventExported},
			{"imported", model.EventImported},
		},
		matchers: []matcher{
			newPrepositionMatcher(),
			newSoldToMatcher(),
		},
	}
}

// Infer extracts an event candidate from one sentence. It reports false when
// the sentence contains no known verb. The candidate may still lack both
// actor and place; callers decide whether that is enough signal.
func (e *EventInferrer) Infer(text string) (model.Event, bool) {
	if text == "" {
		return model.Event{}, false
	}

	lower := strings.ToLower(text)
	eventType, found := e.verb(lower)
	if !found {
		return model.Event{}, false
	}

	ev := model.Event{
		EventType: eventType,
		SourceRef: model.SourceRefInferred,
	}

	// Catalogue phrasing puts the relevant year last
	if years := yearPattern.FindAllString(text, -1); len(years) > 0 {
		ev.DateFrom = years[len(years)-1] + "-01-01"
	}

	for _, m := range e.matchers {
		if c, ok := m.match(text); ok {
			ev.Actor = clean(c.actor)
			ev.Place = clean(c.place)
			break
		}
	}

	return ev, true
}

// InferAll infers events from sentences in reading order. Events without an
// actor or place are dropped, each event is tagged with its sentence seq, and
// duplicates on (actor, place, type, date_from) keep their first occurrence.
func (e *EventInferrer) InferAll(sentences []model.Sentence) []model.Event {
	var events []model.Event
	for _, s := range sentences {
		ev, ok := e.Infer(s.Text)
		if !ok || !ev.HasSubject() {
			continue
		}
		seq := s.Seq
		ev.Seq = &seq
		events = append(events, ev)
	}
	return dedupeEvents(events)
}

func (e *EventInferrer) verb(lower string) (model.EventType, bool) {
	for _, v := range e.verbs {
		if strings.Contains(lower, v.surface) {
			return v.event, true
		}
	}
	return "", false
}

// dedupeEvents removes duplicate events, keeping the first occurrence
func dedupeEvents(events []model.Event) []model.Event {
	seen := make(map[model.EventKey]bool)
	unique := make([]model.Event, 0, len(events))

	for _, ev := range events {
		key := ev.Key()
		if !seen[key] {
			seen[key] = true
			unique = append(unique, ev)
		}
	}

	return unique
}

// prepositionMatcher handles "sold to X, <place>, 2000", "donated by X by 1980"
// and "purchased from Y, <place>"
type prepositionMatcher struct {
	pattern *regexp.Regexp
}

func newPrepositionMatcher() *prepositionMatcher {
	return &prepositionMatcher{
		pattern: regexp.MustCompile(`(?i)\b(sold|purchased|bought|acquired|donated|gifted|bequeathed|consigned)\s+(to|by|from)\s+(.*)$`),
	}
}

func (m *prepositionMatcher) match(text string) (capture, bool) {
	loc := m.pattern.FindStringSubmatchIndex(text)
	if loc == nil {
		return capture{}, false
	}

	// Skip the single separator after the preposition
	frag := strings.TrimSpace(text[loc[5]+1:])
	frag = trailingYear.ReplaceAllString(frag, "")
	frag = strings.Trim(frag, " ,.;")

	var parts []string
	for _, p := range splitOutsideParens(frag) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return capture{}, false
	}

	c := capture{actor: parts[0]}
	if len(parts) > 1 {
		c.place = strings.Join(parts[1:], ", ")
	}
	return c, true
}

// soldToMatcher is the narrow "sold to X" fallback, actor only
type soldToMatcher struct {
	pattern *regexp.Regexp
}

func newSoldToMatcher() *soldToMatcher {
	return &soldToMatcher{
		pattern: regexp.MustCompile(`(?i)\bsold\s+to\s+([^,.;]+)`),
	}
}

func (m *soldToMatcher) match(text string) (capture, bool) {
	loc := m.pattern.FindStringSubmatchIndex(text)
	if loc == nil {
		return capture{}, false
	}
	return capture{actor: text[loc[2]:loc[3]]}, true
}

// splitOutsideParens splits on commas that are not inside parentheses
func splitOutsideParens(s string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] != ',' || closesParen(s[i+1:]) {
			continue
		}
		parts = append(parts, s[start:i])
		start = i + 1
	}
	return append(parts, s[start:])
}

// closesParen reports whether a ")" comes before any "(" in rest
func closesParen(rest string) bool {
	i := strings.IndexAny(rest, "()")
	return i >= 0 && rest[i] == ')'
}

// clean collapses whitespace and trims separators; empty results are absent
func clean(s string) string {
	if s == "" {
		return ""
	}
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.Trim(s, cleanCutset)
}

// CleanPlace normalizes a stored place name the same way inferred places are
// cleaned, so both kinds compare equal
func CleanPlace(s string) string {
	return clean(s)
}
