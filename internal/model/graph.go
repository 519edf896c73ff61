package model

import "encoding/json"

// NodeKind classifies graph nodes
type NodeKind string

const (
	NodeObject NodeKind = "object"
	NodeActor  NodeKind = "actor"
	NodePlace  NodeKind = "place"
)

// Synthetic edge labels
const (
	EdgeLocated  = "LOCATED"
	EdgeTransfer = "TRANSFER"
)

// GraphNode is a node of the provenance graph (Cytoscape-style)
type GraphNode struct {
	ID    string   `json:"id"` // "{kind}:{label}", or "obj:{object_id}" for the object
	Label string   `json:"label"`
	Kind  NodeKind `json:"type"`
}

// GraphEdge connects two nodes of the provenance graph
type GraphEdge struct {
	Source    string   `json:"source"`
	Target    string   `json:"target"`
	Label     string   `json:"label"`          // Event type or synthetic relation
	Date      string   `json:"date,omitempty"` // ISO date
	Weight    float64  `json:"weight"`         // Advisory, clients may recompute
	SourceRef string   `json:"source_ref,omitempty"`
	Policy    []string `json:"policy"` // Matched policy window codes
}

// Graph is a node/edge provenance graph for one object
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// TimelineItem is a single entry for a timeline widget
type TimelineItem struct {
	Title     string `json:"title"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	Text      string `json:"text"`
	SourceRef string `json:"source_ref,omitempty"`
}

// PolicyWindow is a regulatory or historical date range used to flag events
type PolicyWindow struct {
	Code  string `json:"code" yaml:"code"`
	Label string `json:"label" yaml:"label"`
	From  string `json:"from" yaml:"from"` // Inclusive ISO date
	To    string `json:"to" yaml:"to"`     // Inclusive ISO date, "" for open-ended
	Ref   string `json:"ref" yaml:"ref"`
}

// RiskScore is a raw risk ratio rescaled for display
type RiskScore struct {
	Raw        float64 `json:"raw"`        // Unbounded ratio, 1.0 = 100%
	Scaled     float64 `json:"scaled"`     // 0-99 reference scale, 2 decimals
	Normalized float64 `json:"normalized"` // 0-0.99, what the UI reads
}

// MarshalJSON renders an open bound as null, the shape clients already parse
func (w PolicyWindow) MarshalJSON() ([]byte, error) {
	type window struct {
		Code  string  `json:"code"`
		Label string  `json:"label"`
		From  *string `json:"from"`
		To    *string `json:"to"`
		Ref   string  `json:"ref"`
	}
	out := window{Code: w.Code, Label: w.Label, Ref: w.Ref}
	if w.From != "" {
		out.From = &w.From
	}
	if w.To != "" {
		out.To = &w.To
	}
	return json.Marshal(out)
}
