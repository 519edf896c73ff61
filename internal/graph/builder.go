package graph

import (
	"fmt"
	"sort"

	"github.com/ppiankov/provenance-radar/internal/model"
	"github.com/ppiankov/provenance-radar/internal/policy"
)

// Edge weights. Clients may recompute them from risk overlays.
const (
	WeightCustody  = 1.0
	WeightTransfer = 0.8
	WeightLocated  = 0.5
)

// Builder composes events into a node/edge provenance graph
type Builder struct {
	policies *policy.Matcher
}

// NewBuilder creates a new graph builder that flags edges with policies
func NewBuilder(policies *policy.Matcher) *Builder {
	if policies == nil {
		policies = policy.NewMatcher(nil)
	}
	return &Builder{policies: policies}
}

// nodeSet deduplicates nodes by id while keeping first-seen order
type nodeSet struct {
	index map[string]bool
	nodes []model.GraphNode
}

func (s *nodeSet) add(kind model.NodeKind, label string) string {
	id := fmt.Sprintf("%s:%s", kind, label)
	if !s.index[id] {
		s.index[id] = true
		s.nodes = append(s.nodes, model.GraphNode{ID: id, Label: label, Kind: kind})
	}
	return id
}

// ObjectNodeID returns the graph id of an object node
func ObjectNodeID(objectID int64) string {
	return fmt.Sprintf("obj:%d", objectID)
}

// Build creates the base graph: one object node, an actor->object edge per
// event with an actor and an object->place LOCATED edge per event with a place.
func (b *Builder) Build(obj model.Object, events []model.Event) model.Graph {
	title := obj.Title
	if title == "" {
		title = "Untitled"
	}

	objID := ObjectNodeID(obj.ObjectID)
	nodes := &nodeSet{
		index: map[string]bool{objID: true},
		nodes: []model.GraphNode{{
			ID:    objID,
			Label: fmt.Sprintf("%s (%s)", title, obj.Source),
			Kind:  model.NodeObject,
		}},
	}
	edges := []model.GraphEdge{}

	for _, ev := range events {
		date := model.ISODate(ev.DateFrom)

		if ev.Actor != "" {
			label := string(ev.EventType)
			if label == "" {
				label = string(model.EventUnknown)
			}
			edges = append(edges, model.GraphEdge{
				Source:    nodes.add(model.NodeActor, ev.Actor),
				Target:    objID,
				Label:     label,
				Date:      date,
				Weight:    WeightCustody,
				SourceRef: ev.SourceRef,
				Policy:    b.policies.Matches(date),
			})
		}

		if ev.Place != "" {
			edges = append(edges, model.GraphEdge{
				Source:    objID,
				Target:    nodes.add(model.NodePlace, ev.Place),
				Label:     model.EdgeLocated,
				Date:      date,
				Weight:    WeightLocated,
				SourceRef: ev.SourceRef,
				Policy:    b.policies.Matches(date),
			})
		}
	}

	return model.Graph{Nodes: nodes.nodes, Edges: edges}
}

// custodian is one dated holder in the chain of custody
type custodian struct {
	date  string
	actor string
}

// LinkCustody appends TRANSFER edges between consecutive distinct actors,
// ordered by date with undated actors first. Each edge carries the later
// actor's date and its policy codes; an undated successor yields an undated
// edge. Input order breaks ties.
func (b *Builder) LinkCustody(g model.Graph, events []model.Event) model.Graph {
	var chain []custodian
	for _, ev := range events {
		if ev.Actor != "" {
			chain = append(chain, custodian{date: model.ISODate(ev.DateFrom), actor: ev.Actor})
		}
	}

	sort.SliceStable(chain, func(i, j int) bool {
		return model.CompareDates(chain[i].date, chain[j].date, model.MissingFirst) < 0
	})

	for i := 0; i+1 < len(chain); i++ {
		from, to := chain[i], chain[i+1]
		if from.actor == to.actor {
			continue
		}
		g.Edges = append(g.Edges, model.GraphEdge{
			Source:    fmt.Sprintf("%s:%s", model.NodeActor, from.actor),
			Target:    fmt.Sprintf("%s:%s", model.NodeActor, to.actor),
			Label:     model.EdgeTransfer,
			Date:      to.date,
			Weight:    WeightTransfer,
			SourceRef: model.SourceRefSequence,
			Policy:    b.policies.Matches(to.date),
		})
	}

	return g
}

// BuildWithCustody builds the base graph and links the chain of custody
func (b *Builder) BuildWithCustody(obj model.Object, events []model.Event) model.Graph {
	return b.LinkCustody(b.Build(obj, events), events)
}
