package model

import "strings"

// EventType categorizes a provenance event
type EventType string

const (
	EventSold       EventType = "SOLD"
	EventPurchased  EventType = "PURCHASED"
	EventAcquired   EventType = "ACQUIRED"
	EventDonated    EventType = "DONATED"
	EventBequeathed EventType = "BEQUEATHED"
	EventConsigned  EventType = "CONSIGNED"
	EventExhibited  EventType = "EXHIBITED"
	EventExported   EventType = "EXPORTED"
	EventImported   EventType = "IMPORTED"
	EventUnknown    EventType = "UNKNOWN"
)

// eventTypes is the closed set of stored event types
var eventTypes = map[EventType]bool{
	EventSold: true, EventPurchased: true, EventAcquired: true, EventDonated: true,
	EventBequeathed: true, EventConsigned: true, EventExhibited: true,
	EventExported: true, EventImported: true, EventUnknown: true,
}

// ParseEventType matches s case-insensitively against the known types.
// Blank input is UNKNOWN; any other unrecognized value reports false.
func ParseEventType(s string) (EventType, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return EventUnknown, true
	}
	t := EventType(s)
	return t, eventTypes[t]
}

// Source references written by the core rather than read from storage
const (
	SourceRefInferred = "inferred:sentence" // Event synthesized from a sentence on read
	SourceRefSequence = "link:sequence"     // Custody link between consecutive actors
)

// Event is a structured provenance event. Empty strings mean "absent".
type Event struct {
	EventType EventType `json:"event_type"`
	DateFrom  string    `json:"date_from,omitempty"` // ISO date (YYYY-MM-DD)
	DateTo    string    `json:"date_to,omitempty"`
	Place     string    `json:"place,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	Method    string    `json:"method,omitempty"`
	SourceRef string    `json:"source_ref,omitempty"` // Citation, or "inferred:sentence"
	Seq       *int      `json:"seq,omitempty"`        // Originating sentence for inferred events
	Authority string    `json:"authority,omitempty"`  // Citation tier, set for display only
}

// EventKey identifies an event for deduplication
type EventKey struct {
	Actor     string
	Place     string
	EventType EventType
	DateFrom  string
}

// Key returns the dedupe key of the event, with date_from normalized to a date
func (e Event) Key() EventKey {
	return EventKey{
		Actor:     e.Actor,
		Place:     e.Place,
		EventType: e.EventType,
		DateFrom:  ISODate(e.DateFrom),
	}
}

// HasSubject reports whether the event names an actor or a place
func (e Event) HasSubject() bool {
	return e.Actor != "" || e.Place != ""
}

// IsInferred reports whether the event was synthesized from sentence text
func (e Event) IsInferred() bool {
	return e.SourceRef == SourceRefInferred
}
