package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/ppiankov/provenance-radar/internal/model"
)

// SetSentenceEmbedding stores the embedding of one sentence
func (s *SQLiteStore) SetSentenceEmbedding(ctx context.Context, objectID int64, seq int, vector []float32) error {
	blob := float32ToBytes(vector)
	return s.retry(ctx, "set embedding", func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE provenance_sentences SET embedding = ? WHERE object_id = ? AND seq = ?`,
			blob, objectID, seq,
		)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// NearestSentences returns up to candidates embedded sentences ordered by
// cosine distance to query, closest first. Object fields are joined in;
// several sentences of the same object may appear.
func (s *SQLiteStore) NearestSentences(ctx context.Context, query []float32, candidates int) ([]model.SimilarHit, error) {
	if candidates <= 0 {
		return nil, nil
	}

	var hits []model.SimilarHit
	err := s.retry(ctx, "nearest sentences", func() error {
		hits = nil
		rows, err := s.db.QueryContext(ctx,
			`SELECT ps.object_id, ps.seq, ps.sentence, ps.embedding, o.source, o.title, o.creator
			 FROM provenance_sentences ps
			 JOIN objects o ON o.object_id = ps.object_id
			 WHERE ps.embedding IS NOT NULL`,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var h model.SimilarHit
			var blob []byte
			var title, creator sql.NullString
			if err := rows.Scan(&h.ObjectID, &h.Seq, &h.Sentence, &blob, &h.Source, &title, &creator); err != nil {
				return fmt.Errorf("scanning embedding row: %w", err)
			}
			h.Title = title.String
			h.Creator = creator.String
			h.Distance = 1 - cosineSimilarity(query, bytesToFloat32(blob))
			hits = append(hits, h)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		if hits[i].ObjectID != hits[j].ObjectID {
			return hits[i].ObjectID < hits[j].ObjectID
		}
		return hits[i].Seq < hits[j].Seq
	})
	if len(hits) > candidates {
		hits = hits[:candidates]
	}
	return hits, nil
}

// cosineSimilarity computes cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// float32ToBytes encodes a vector as little-endian float32s
func float32ToBytes(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// bytesToFloat32 decodes a little-endian float32 vector
func bytesToFloat32(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}
