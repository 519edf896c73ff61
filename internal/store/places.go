package store

import (
	"context"
	"database/sql"

	"github.com/ppiankov/provenance-radar/internal/model"
)

// GetPlace returns cached coordinates for place. A cached miss is reported
// with nil coordinates; ErrNotFound means the place was never looked up.
func (s *SQLiteStore) GetPlace(ctx context.Context, place string) (*model.PlaceInfo, error) {
	info := &model.PlaceInfo{Place: place}
	err := s.retry(ctx, "get place", func() error {
		var lat, lon sql.NullFloat64
		if err := s.db.QueryRowContext(ctx,
			`SELECT lat, lon FROM places_cache WHERE place = ?`, place,
		).Scan(&lat, &lon); err != nil {
			return err
		}
		info.Lat = floatPtr(lat)
		info.Lon = floatPtr(lon)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// PutPlace caches coordinates for place; nil coordinates record a miss
func (s *SQLiteStore) PutPlace(ctx context.Context, place string, lat, lon *float64) error {
	return s.retry(ctx, "put place", func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO places_cache (place, lat, lon) VALUES (?, ?, ?)
			 ON CONFLICT(place) DO UPDATE SET lat = excluded.lat, lon = excluded.lon, updated_at = CURRENT_TIMESTAMP`,
			place, nullFloat(lat), nullFloat(lon),
		)
		return err
	})
}
