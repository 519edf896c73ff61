package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/provenance-radar/internal/model"
	"github.com/ppiankov/provenance-radar/internal/score"
	"github.com/ppiankov/provenance-radar/internal/store"
)

// LeadsQuery filters the flagged-leads listing
type LeadsQuery struct {
	MinScore float64 // Minimum raw risk ratio
	Source   string
	Limit    int // 1..200, default 50
}

// SimilarQuery is a semantic search request
type SimilarQuery struct {
	Text       string
	Limit      int    // Objects returned, 1..100, default 20
	Candidates int    // Nearest sentences considered, default max(200, 10*Limit)
	Source     string // Optional source filter, case-insensitive
}

// SimilarMeta echoes the effective search parameters
type SimilarMeta struct {
	Limit      int     `json:"limit"`
	Candidates int     `json:"candidates"`
	Source     *string `json:"source"`
}

// SimilarResult is the closest sentence of each matching object
type SimilarResult struct {
	Query string             `json:"query"`
	Data  []model.SimilarHit `json:"data"`
	Meta  SimilarMeta        `json:"meta"`
}

// leadsLogged is how many leads get a risk log line per request
const leadsLogged = 5

// Leads lists flagged objects with normalized risk. Each row keeps the raw
// ratio in risk_score_raw and carries the 0-1 value in risk_score.
func (p *Pipeline) Leads(ctx context.Context, q LeadsQuery) ([]map[string]any, error) {
	limit := clamp(q.Limit, 50, 1, 200)

	leads, err := p.store.ListLeads(ctx, q.MinScore, q.Source, limit)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}

	rows := make([]map[string]any, 0, len(leads))
	for _, l := range leads {
		row := l.Record()
		p.normalizer.ApplyTo(row)
		rows = append(rows, row)
	}

	source := q.Source
	if source == "" {
		source = "ALL"
	}
	p.logger.Info("leads listed",
		zap.Int("fetched", len(rows)),
		zap.Int("limit", limit),
		zap.Float64("min_score", q.MinScore),
		zap.String("source", source))

	for i, row := range rows {
		if i == leadsLogged {
			break
		}
		fields := []zap.Field{
			zap.Int("rank", i+1),
			zap.Any("object_id", row["object_id"]),
			zap.String("title", truncate(leads[i].Title, 80)),
		}
		if raw, ok := score.CoerceRatio(row[score.FieldRiskRaw]); ok {
			fields = append(fields,
				zap.Float64("raw_ratio", raw),
				zap.Float64("norm_ratio", row[score.FieldRiskScore].(float64)))
		}
		p.logger.Info("lead risk", fields...)
	}

	return rows, nil
}

// Similar finds objects whose provenance reads closest to the query text
func (p *Pipeline) Similar(ctx context.Context, q SimilarQuery) (*SimilarResult, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, invalid("text required")
	}
	if p.embedder == nil {
		return nil, fmt.Errorf("%w: no embedder configured", ErrEmbeddingUnavailable)
	}

	limit := clamp(q.Limit, 20, 1, 100)
	candidates := q.Candidates
	if candidates <= 0 {
		candidates = max(200, limit*10)
	}
	source := strings.ToUpper(strings.TrimSpace(q.Source))

	vec, err := p.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}

	hits, err := p.store.NearestSentences(ctx, vec, candidates)
	if err != nil {
		return nil, fmt.Errorf("nearest sentences: %w", err)
	}

	// Hits arrive closest first, so the first sentence seen per object wins
	seen := make(map[int64]bool)
	data := make([]model.SimilarHit, 0, limit)
	for _, h := range hits {
		if source != "" && h.Source != source {
			continue
		}
		if seen[h.ObjectID] {
			continue
		}
		seen[h.ObjectID] = true
		data = append(data, h)
		if len(data) == limit {
			break
		}
	}

	meta := SimilarMeta{Limit: limit, Candidates: candidates}
	if source != "" {
		meta.Source = &source
	}
	return &SimilarResult{Query: text, Data: data, Meta: meta}, nil
}

// Keyword finds sentences containing q
func (p *Pipeline) Keyword(ctx context.Context, q string, limit int) ([]model.KeywordHit, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, invalid("q required")
	}

	hits, err := p.store.SearchKeyword(ctx, q, clamp(limit, 50, 1, 200))
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	return nonNil(hits), nil
}

// Vocab lists the most frequent values of an actor, place, source or
// culture field
func (p *Pipeline) Vocab(ctx context.Context, field string, limit int) ([]model.VocabEntry, error) {
	field = strings.ToLower(strings.TrimSpace(field))
	if !store.IsVocabField(field) {
		return nil, invalid("field must be one of actor|place|source|culture")
	}

	entries, err := p.store.Vocab(ctx, field, clamp(limit, 100, 1, 500))
	if err != nil {
		return nil, fmt.Errorf("vocab: %w", err)
	}
	return nonNil(entries), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
