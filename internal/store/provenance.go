package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ppiankov/provenance-radar/internal/model"
)

// ListSentences returns an object's provenance sentences in reading order
func (s *SQLiteStore) ListSentences(ctx context.Context, objectID int64) ([]model.Sentence, error) {
	var sentences []model.Sentence
	err := s.retry(ctx, "list sentences", func() error {
		sentences = nil
		rows, err := s.db.QueryContext(ctx,
			`SELECT seq, sentence FROM provenance_sentences WHERE object_id = ? ORDER BY seq`, objectID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			sent := model.Sentence{ObjectID: objectID}
			if err := rows.Scan(&sent.Seq, &sent.Text); err != nil {
				return fmt.Errorf("scanning sentence: %w", err)
			}
			sentences = append(sentences, sent)
		}
		return rows.Err()
	})
	return sentences, err
}

// ListEvents returns an object's stored events ordered by date_from, undated
// events first
func (s *SQLiteStore) ListEvents(ctx context.Context, objectID int64) ([]model.Event, error) {
	var events []model.Event
	err := s.retry(ctx, "list events", func() error {
		events = nil
		rows, err := s.db.QueryContext(ctx,
			`SELECT event_type, date_from, date_to, place, actor, method, source_ref
			 FROM provenance_events WHERE object_id = ?
			 ORDER BY date_from IS NOT NULL, date_from, event_id`, objectID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var eventType, dateFrom, dateTo, place, actor, method, sourceRef sql.NullString
			if err := rows.Scan(&eventType, &dateFrom, &dateTo, &place, &actor, &method, &sourceRef); err != nil {
				return fmt.Errorf("scanning event: %w", err)
			}
			events = append(events, model.Event{
				EventType: model.EventType(eventType.String),
				DateFrom:  model.ISODate(dateFrom.String),
				DateTo:    model.ISODate(dateTo.String),
				Place:     place.String,
				Actor:     actor.String,
				Method:    method.String,
				SourceRef: sourceRef.String,
			})
		}
		return rows.Err()
	})
	return events, err
}

// ListRiskSignals returns an object's risk signals, heaviest first
func (s *SQLiteStore) ListRiskSignals(ctx context.Context, objectID int64) ([]model.RiskSignal, error) {
	var signals []model.RiskSignal
	err := s.retry(ctx, "list risk signals", func() error {
		signals = nil
		rows, err := s.db.QueryContext(ctx,
			`SELECT code, detail, weight FROM risk_signals WHERE object_id = ?
			 ORDER BY weight DESC, signal_id`, objectID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var sig model.RiskSignal
			var detail sql.NullString
			if err := rows.Scan(&sig.Code, &detail, &sig.Weight); err != nil {
				return fmt.Errorf("scanning risk signal: %w", err)
			}
			sig.Detail = detail.String
			signals = append(signals, sig)
		}
		return rows.Err()
	})
	return signals, err
}

// ReplaceSentences swaps an object's sentences for the given set. Existing
// embeddings are dropped with their sentences.
func (s *SQLiteStore) ReplaceSentences(ctx context.Context, objectID int64, sentences []model.Sentence) error {
	return s.inTx(ctx, "replace sentences", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM provenance_sentences WHERE object_id = ?`, objectID); err != nil {
			return err
		}
		for _, sent := range sentences {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO provenance_sentences (object_id, seq, sentence) VALUES (?, ?, ?)`,
				objectID, sent.Seq, sent.Text,
			); err != nil {
				return fmt.Errorf("inserting sentence %d: %w", sent.Seq, err)
			}
		}
		return nil
	})
}

// ReplaceEvents swaps an object's stored events for the given set
func (s *SQLiteStore) ReplaceEvents(ctx context.Context, objectID int64, events []model.Event) error {
	return s.inTx(ctx, "replace events", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM provenance_events WHERE object_id = ?`, objectID); err != nil {
			return err
		}
		for _, ev := range events {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO provenance_events (object_id, event_type, date_from, date_to, place, actor, method, source_ref)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				objectID, nullString(string(ev.EventType)), nullString(model.ISODate(ev.DateFrom)),
				nullString(model.ISODate(ev.DateTo)), nullString(ev.Place), nullString(ev.Actor),
				nullString(ev.Method), nullString(ev.SourceRef),
			); err != nil {
				return fmt.Errorf("inserting event: %w", err)
			}
		}
		return nil
	})
}

// ReplaceRiskSignals swaps an object's risk signals for the given set
func (s *SQLiteStore) ReplaceRiskSignals(ctx context.Context, objectID int64, signals []model.RiskSignal) error {
	return s.inTx(ctx, "replace risk signals", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM risk_signals WHERE object_id = ?`, objectID); err != nil {
			return err
		}
		for _, sig := range signals {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO risk_signals (object_id, code, detail, weight) VALUES (?, ?, ?, ?)`,
				objectID, sig.Code, nullString(sig.Detail), sig.Weight,
			); err != nil {
				return fmt.Errorf("inserting risk signal %s: %w", sig.Code, err)
			}
		}
		return nil
	})
}

// inTx runs fn in a transaction, retrying the whole transaction on
// transient failures
func (s *SQLiteStore) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	return s.retry(ctx, op, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if err := fn(tx); err != nil {
			return err
		}
		return tx.Commit()
	})
}
