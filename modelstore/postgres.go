package modelstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresStore keeps the artifact as one row of model_artifacts, keyed by
// model name.
type PostgresStore struct {
	db   *sql.DB
	name string
}

// NewPostgresStore creates a store for the named model on db.
func NewPostgresStore(db *sql.DB, name string) *PostgresStore {
	return &PostgresStore{db: db, name: name}
}

// Load returns the stored artifact for the model name.
func (s *PostgresStore) Load(ctx context.Context) (*Artifact, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT payload
		FROM model_artifacts
		WHERE name = $1
	`, s.name).Scan(&payload)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load artifact: %w", err)
	}

	return Decode(payload)
}

// Save upserts the artifact in a single statement.
func (s *PostgresStore) Save(ctx context.Context, a *Artifact) error {
	payload, err := Encode(a)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO model_artifacts (name, artifact_id, created_at, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE
		SET artifact_id = EXCLUDED.artifact_id,
		    created_at = EXCLUDED.created_at,
		    payload = EXCLUDED.payload
	`, s.name, a.ID, a.CreatedAt, payload)

	if err != nil {
		return fmt.Errorf("failed to save artifact: %w", err)
	}

	return nil
}

// Close releases the database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
