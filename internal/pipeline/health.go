package pipeline

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ppiankov/provenance-radar/internal/model"
)

// Health reports database reachability and what is configured around it
type Health struct {
	DBLatencyMS float64      `json:"db_latency_ms"`
	Counts      model.Counts `json:"counts"`
	Generator   string       `json:"generator"`  // Model used for explanations, "none" when disabled
	Embeddings  bool         `json:"embeddings"` // Whether semantic search is available
}

// Health pings the store and counts its rows
func (p *Pipeline) Health(ctx context.Context) (*Health, error) {
	start := time.Now()
	if err := p.store.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}
	latency := time.Since(start)

	counts, err := p.store.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("counts: %w", err)
	}

	h := &Health{
		DBLatencyMS: math.Round(float64(latency.Microseconds())/10) / 100,
		Counts:      counts,
		Generator:   "none",
		Embeddings:  p.embedder != nil,
	}
	if p.explainer != nil {
		h.Generator = p.explainer.Model()
	}
	return h, nil
}
