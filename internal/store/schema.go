package store

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// migrations are applied in order; the index+1 is the schema version
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS objects (
		object_id    INTEGER PRIMARY KEY,
		source       TEXT NOT NULL,
		title        TEXT,
		creator      TEXT,
		date_display TEXT,
		culture      TEXT,
		image_url    TEXT,
		risk_score   REAL,
		updated_at   DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS provenance_sentences (
		sent_id   INTEGER PRIMARY KEY AUTOINCREMENT,
		object_id INTEGER NOT NULL REFERENCES objects(object_id) ON DELETE CASCADE,
		seq       INTEGER NOT NULL,
		sentence  TEXT NOT NULL,
		embedding BLOB,
		UNIQUE(object_id, seq)
	);
	CREATE TABLE IF NOT EXISTS provenance_events (
		event_id   INTEGER PRIMARY KEY AUTOINCREMENT,
		object_id  INTEGER NOT NULL REFERENCES objects(object_id) ON DELETE CASCADE,
		event_type TEXT,
		date_from  TEXT,
		date_to    TEXT,
		place      TEXT,
		actor      TEXT,
		method     TEXT,
		source_ref TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_events_object ON provenance_events(object_id);
	CREATE TABLE IF NOT EXISTS risk_signals (
		signal_id INTEGER PRIMARY KEY AUTOINCREMENT,
		object_id INTEGER NOT NULL REFERENCES objects(object_id) ON DELETE CASCADE,
		code      TEXT NOT NULL,
		detail    TEXT,
		weight    REAL NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_signals_object ON risk_signals(object_id);
	CREATE TABLE IF NOT EXISTS places_cache (
		place      TEXT PRIMARY KEY,
		lat        REAL,
		lon        REAL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`,

	`CREATE VIEW IF NOT EXISTS flagged_leads AS
	SELECT o.object_id, o.source, o.title, o.creator, o.risk_score,
	       (SELECT group_concat(r.code, ',' ORDER BY r.weight DESC, r.signal_id)
	          FROM risk_signals r WHERE r.object_id = o.object_id) AS top_signals
	  FROM objects o
	 WHERE o.risk_score IS NOT NULL;`,

	`CREATE INDEX IF NOT EXISTS idx_objects_source ON objects(source);
	CREATE INDEX IF NOT EXISTS idx_events_actor ON provenance_events(actor);
	CREATE INDEX IF NOT EXISTS idx_events_place ON provenance_events(place);`,
}

// migrate brings the schema up to the latest version
func (s *SQLiteStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS schema_meta (key TEXT PRIMARY KEY, value INTEGER NOT NULL)`,
	); err != nil {
		return fmt.Errorf("creating schema_meta: %w", err)
	}

	version, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for i := version; i < len(migrations); i++ {
		if err := s.applyMigration(ctx, i+1, migrations[i]); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		s.logger.Debug("applied migration", zap.Int("version", i+1))
	}
	return nil
}

func (s *SQLiteStore) applyMigration(ctx context.Context, version int, ddl string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_meta (key, value) VALUES ('version', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, version,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// SchemaVersion returns the applied schema version, 0 for a fresh database
func (s *SQLiteStore) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := s.db.QueryRowContext(ctx, `SELECT value FROM schema_meta WHERE key = 'version'`).Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}
