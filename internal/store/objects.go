package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ppiankov/provenance-radar/internal/model"
)

// Vocabulary fields accepted by Vocab
const (
	VocabActor   = "actor"
	VocabPlace   = "place"
	VocabSource  = "source"
	VocabCulture = "culture"
)

var vocabQueries = map[string]string{
	VocabActor: `SELECT actor, COUNT(*) AS n FROM provenance_events
		WHERE actor IS NOT NULL AND actor <> '' GROUP BY actor ORDER BY n DESC, actor LIMIT ?`,
	VocabPlace: `SELECT place, COUNT(*) AS n FROM provenance_events
		WHERE place IS NOT NULL AND place <> '' GROUP BY place ORDER BY n DESC, place LIMIT ?`,
	VocabSource: `SELECT source, COUNT(*) AS n FROM objects
		GROUP BY source ORDER BY n DESC, source LIMIT ?`,
	VocabCulture: `SELECT culture, COUNT(*) AS n FROM objects
		WHERE culture IS NOT NULL AND culture <> '' GROUP BY culture ORDER BY n DESC, culture LIMIT ?`,
}

// IsVocabField reports whether field can be passed to Vocab
func IsVocabField(field string) bool {
	_, ok := vocabQueries[field]
	return ok
}

// GetObject returns one object by id
func (s *SQLiteStore) GetObject(ctx context.Context, objectID int64) (*model.Object, error) {
	var obj model.Object
	err := s.retry(ctx, "get object", func() error {
		var title, creator, dateDisplay, culture, imageURL sql.NullString
		var risk sql.NullFloat64
		err := s.db.QueryRowContext(ctx,
			`SELECT object_id, source, title, creator, date_display, culture, image_url, risk_score
			 FROM objects WHERE object_id = ?`, objectID,
		).Scan(&obj.ObjectID, &obj.Source, &title, &creator, &dateDisplay, &culture, &imageURL, &risk)
		if err != nil {
			return err
		}
		obj.Title = title.String
		obj.Creator = creator.String
		obj.DateDisplay = dateDisplay.String
		obj.Culture = culture.String
		obj.ImageURL = imageURL.String
		obj.RiskScore = floatPtr(risk)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &obj, nil
}

// UpsertObject inserts or replaces an object's catalogue fields
func (s *SQLiteStore) UpsertObject(ctx context.Context, obj model.Object) error {
	return s.retry(ctx, "upsert object", func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO objects (object_id, source, title, creator, date_display, culture, image_url, risk_score)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(object_id) DO UPDATE SET
			   source = excluded.source, title = excluded.title, creator = excluded.creator,
			   date_display = excluded.date_display, culture = excluded.culture,
			   image_url = excluded.image_url, risk_score = excluded.risk_score,
			   updated_at = CURRENT_TIMESTAMP`,
			obj.ObjectID, obj.Source, nullString(obj.Title), nullString(obj.Creator),
			nullString(obj.DateDisplay), nullString(obj.Culture), nullString(obj.ImageURL),
			nullFloat(obj.RiskScore),
		)
		return err
	})
}

// ListLeads returns flagged objects whose raw risk ratio is at least
// minScore, highest first. An empty source lists every collection.
func (s *SQLiteStore) ListLeads(ctx context.Context, minScore float64, source string, limit int) ([]model.Lead, error) {
	query := `SELECT object_id, source, title, creator, risk_score, top_signals
		FROM flagged_leads WHERE risk_score >= ?`
	args := []any{minScore}
	if source != "" {
		query += ` AND source = ?`
		args = append(args, source)
	}
	query += ` ORDER BY risk_score DESC, object_id LIMIT ?`
	args = append(args, limit)

	var leads []model.Lead
	err := s.retry(ctx, "list leads", func() error {
		leads = nil
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var l model.Lead
			var title, creator, signals sql.NullString
			var risk sql.NullFloat64
			if err := rows.Scan(&l.ObjectID, &l.Source, &title, &creator, &risk, &signals); err != nil {
				return fmt.Errorf("scanning lead: %w", err)
			}
			l.Title = title.String
			l.Creator = creator.String
			l.TopSignals = signals.String
			l.RiskScore = floatPtr(risk)
			leads = append(leads, l)
		}
		return rows.Err()
	})
	return leads, err
}

// SearchKeyword returns sentences containing q. LIKE wildcards in q are
// stripped so the query is always a plain substring match.
func (s *SQLiteStore) SearchKeyword(ctx context.Context, q string, limit int) ([]model.KeywordHit, error) {
	like := "%" + strings.NewReplacer("%", "", "_", "").Replace(q) + "%"

	var hits []model.KeywordHit
	err := s.retry(ctx, "keyword search", func() error {
		hits = nil
		rows, err := s.db.QueryContext(ctx,
			`SELECT ps.object_id, ps.seq, ps.sentence, o.source, o.title, o.creator
			 FROM provenance_sentences ps
			 JOIN objects o ON o.object_id = ps.object_id
			 WHERE ps.sentence LIKE ?
			 ORDER BY ps.object_id, ps.seq
			 LIMIT ?`, like, limit,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var h model.KeywordHit
			var title, creator sql.NullString
			if err := rows.Scan(&h.ObjectID, &h.Seq, &h.Sentence, &h.Source, &title, &creator); err != nil {
				return fmt.Errorf("scanning keyword hit: %w", err)
			}
			h.Title = title.String
			h.Creator = creator.String
			hits = append(hits, h)
		}
		return rows.Err()
	})
	return hits, err
}

// Vocab returns the most frequent values of field with their counts
func (s *SQLiteStore) Vocab(ctx context.Context, field string, limit int) ([]model.VocabEntry, error) {
	query, ok := vocabQueries[field]
	if !ok {
		return nil, fmt.Errorf("unknown vocabulary field %q", field)
	}

	var entries []model.VocabEntry
	err := s.retry(ctx, "vocab", func() error {
		entries = nil
		rows, err := s.db.QueryContext(ctx, query, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var e model.VocabEntry
			if err := rows.Scan(&e.Value, &e.Count); err != nil {
				return fmt.Errorf("scanning vocab entry: %w", err)
			}
			entries = append(entries, e)
		}
		return rows.Err()
	})
	return entries, err
}

// Counts returns row counts for the health check
func (s *SQLiteStore) Counts(ctx context.Context) (model.Counts, error) {
	var c model.Counts
	err := s.retry(ctx, "counts", func() error {
		return s.db.QueryRowContext(ctx,
			`SELECT (SELECT COUNT(*) FROM objects),
			        (SELECT COUNT(*) FROM provenance_sentences),
			        (SELECT COUNT(*) FROM risk_signals)`,
		).Scan(&c.Objects, &c.Sentences, &c.RiskSignals)
	})
	return c, err
}
