// Package featurestore persists extracted feature vectors in PostgreSQL so
// training runs can be reloaded without re-extraction.
package featurestore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/ltr"
	apperrors "github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/postgres"
)

// Schema creates the table the store writes to.
const Schema = `CREATE TABLE IF NOT EXISTS feature_vectors (
    run_id      TEXT      NOT NULL,
    qid         TEXT      NOT NULL,
    docid       TEXT      NOT NULL,
    relevance   REAL      NOT NULL DEFAULT 0,
    feature_ids INTEGER[] NOT NULL,
    features    REAL[]    NOT NULL,
    comment     TEXT      NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (run_id, qid, docid)
)`

const upsertVector = `INSERT INTO feature_vectors (run_id, qid, docid, relevance, feature_ids, features, comment)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (run_id, qid, docid) DO UPDATE
SET relevance = EXCLUDED.relevance,
    feature_ids = EXCLUDED.feature_ids,
    features = EXCLUDED.features,
    comment = EXCLUDED.comment,
    created_at = NOW()`

// Store reads and writes feature vectors grouped by extraction run.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func New(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "feature-store"),
	}
}

// EnsureSchema creates the feature_vectors table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, Schema); err != nil {
		return apperrors.IOf("creating feature_vectors table: %v", err)
	}
	return nil
}

// Save upserts vectors under runID in one transaction. A (run, qid, docid)
// written twice keeps the last vector.
func (s *Store) Save(ctx context.Context, runID string, vectors []ltr.FeatureVector) error {
	if len(vectors) == 0 {
		return nil
	}
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, upsertVector)
		if err != nil {
			return fmt.Errorf("preparing upsert: %w", err)
		}
		defer stmt.Close()
		for _, v := range vectors {
			ids, values := toArrays(v.Features)
			if _, err := stmt.ExecContext(ctx, runID, v.QueryID, v.DocID, v.Relevance, ids, values, v.Comment); err != nil {
				return fmt.Errorf("saving vector %s/%s: %w", v.QueryID, v.DocID, err)
			}
		}
		return nil
	})
	if err != nil {
		return apperrors.IOf("saving %d feature vectors for run %s: %v", len(vectors), runID, err)
	}
	s.logger.Debug("feature vectors saved", "run_id", runID, "count", len(vectors))
	return nil
}

// Vectors loads the vectors of qid in runID ordered by document id.
func (s *Store) Vectors(ctx context.Context, runID, qid string) ([]ltr.FeatureVector, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT docid, relevance, feature_ids, features, comment
		 FROM feature_vectors WHERE run_id = $1 AND qid = $2 ORDER BY docid`,
		runID, qid,
	)
	if err != nil {
		return nil, apperrors.IOf("querying vectors for %s/%s: %v", runID, qid, err)
	}
	defer rows.Close()

	var out []ltr.FeatureVector
	for rows.Next() {
		var (
			v      = ltr.FeatureVector{QueryID: qid}
			ids    pq.Int64Array
			values pq.Float64Array
		)
		if err := rows.Scan(&v.DocID, &v.Relevance, &ids, &values, &v.Comment); err != nil {
			return nil, apperrors.IOf("scanning feature vector row: %v", err)
		}
		features, err := fromArrays(ids, values)
		if err != nil {
			return nil, fmt.Errorf("vector %s/%s/%s: %w", runID, qid, v.DocID, err)
		}
		v.Features = features
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.IOf("iterating feature vector rows: %v", err)
	}
	return out, nil
}

// Runs lists the stored run ids, most recent first.
func (s *Store) Runs(ctx context.Context) ([]string, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT run_id FROM feature_vectors GROUP BY run_id ORDER BY MAX(created_at) DESC`,
	)
	if err != nil {
		return nil, apperrors.IOf("listing runs: %v", err)
	}
	defer rows.Close()
	var runs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.IOf("scanning run id: %v", err)
		}
		runs = append(runs, id)
	}
	return runs, rows.Err()
}

// DeleteRun removes every vector of runID and reports how many went.
func (s *Store) DeleteRun(ctx context.Context, runID string) (int64, error) {
	res, err := s.db.DB.ExecContext(ctx, `DELETE FROM feature_vectors WHERE run_id = $1`, runID)
	if err != nil {
		return 0, apperrors.IOf("deleting run %s: %v", runID, err)
	}
	n, _ := res.RowsAffected()
	s.logger.Info("run deleted", "run_id", runID, "vectors", n)
	return n, nil
}

func toArrays(features []ltr.Feature) (pq.Int64Array, pq.Float64Array) {
	ids := make(pq.Int64Array, len(features))
	values := make(pq.Float64Array, len(features))
	for i, f := range features {
		ids[i] = int64(f.ID)
		values[i] = float64(f.Value)
	}
	return ids, values
}

func fromArrays(ids pq.Int64Array, values pq.Float64Array) ([]ltr.Feature, error) {
	if len(ids) != len(values) {
		return nil, apperrors.Parsef("feature id and value arrays differ in length: %d vs %d", len(ids), len(values))
	}
	out := make([]ltr.Feature, len(ids))
	for i := range ids {
		out[i] = ltr.Feature{ID: int(ids[i]), Value: float32(values[i])}
	}
	return out, nil
}
