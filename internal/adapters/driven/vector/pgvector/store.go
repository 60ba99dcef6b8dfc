// Package pgvector provides a vector index backed by PostgreSQL with the
// pgvector extension.
package pgvector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.VectorIndex = (*Store)(nil)

// TableName is the table holding embeddings.
const TableName = "docqa_embeddings"

const countTimeout = 5 * time.Second

// Store keeps embeddings in a pgvector column and searches by cosine distance.
// Every statement is durable on commit, so Save has nothing to do.
type Store struct {
	db   *sql.DB
	dims int
}

// New connects to dsn and creates the extension and table when missing.
func New(ctx context.Context, dsn string, dims int) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: pgvector: dsn is required", domain.ErrVectorIndexUnavailable)
	}
	if dims <= 0 {
		return nil, fmt.Errorf("%w: pgvector: dimensions must be positive, got %d", domain.ErrInvalidArgument, dims)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open postgres: %w", domain.ErrVectorIndexUnavailable, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping postgres: %w", domain.ErrVectorIndexUnavailable, err)
	}

	s := &Store{db: db, dims: dims}
	if err := s.createTable(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) createTable(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			embedding vector(%d) NOT NULL
		)`, TableName, s.dims),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create vector table: %w", err)
		}
	}
	logger.Debug("pgvector: checked/created table %s (%d dimensions)", TableName, s.dims)
	return nil
}

// Add inserts vectors in one transaction.
func (s *Store) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("%w: %d ids for %d vectors", domain.ErrInvalidArgument, len(ids), len(vectors))
	}
	if len(ids) == 0 {
		return nil
	}
	for n, vec := range vectors {
		if len(vec) != s.dims {
			return fmt.Errorf("%w: vector %d has %d dimensions, index has %d",
				domain.ErrInvalidArgument, n, len(vec), s.dims)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existing string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM `+TableName+` WHERE id = ANY($1) LIMIT 1`,
		pq.Array(ids),
	).Scan(&existing)
	switch {
	case err == nil:
		return fmt.Errorf("%w: embedding %s", domain.ErrAlreadyExists, existing)
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("check existing embeddings: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO `+TableName+` (id, embedding) VALUES ($1, $2)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for n, id := range ids {
		if _, err := stmt.ExecContext(ctx, id, pgvector.NewVector(vectors[n])); err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23505" {
				return fmt.Errorf("%w: embedding %s", domain.ErrAlreadyExists, id)
			}
			return fmt.Errorf("insert embedding %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit embeddings: %w", err)
	}
	return nil
}

// Search orders by cosine distance; similarity is 1 - distance.
// An empty table returns no hits for any arguments.
func (s *Store) Search(ctx context.Context, query []float32, topK int, threshold float64) ([]driven.VectorHit, error) {
	if topK <= 0 || len(query) != s.dims {
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM `+TableName+`)`).Scan(&exists); err != nil {
			return nil, fmt.Errorf("search embeddings: %w", err)
		}
		if !exists {
			return []driven.VectorHit{}, nil
		}
	}
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top k must be positive, got %d", domain.ErrInvalidArgument, topK)
	}
	if len(query) != s.dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			domain.ErrInvalidArgument, len(query), s.dims)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, 1 - (embedding <=> $1) AS similarity
		FROM `+TableName+`
		WHERE 1 - (embedding <=> $1) >= $2
		ORDER BY embedding <=> $1, id
		LIMIT $3`,
		pgvector.NewVector(query), threshold, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("search embeddings: %w", err)
	}
	defer rows.Close()

	hits := []driven.VectorHit{}
	for rows.Next() {
		var hit driven.VectorHit
		if err := rows.Scan(&hit.EmbeddingID, &hit.Similarity); err != nil {
			return nil, fmt.Errorf("scan hit: %w", err)
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hits: %w", err)
	}
	return hits, nil
}

// Delete removes ids. Unknown ids are ignored.
func (s *Store) Delete(ctx context.Context, ids []string) (bool, error) {
	if len(ids) == 0 {
		return true, nil
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM `+TableName+` WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return false, fmt.Errorf("delete embeddings: %w", err)
	}
	return true, nil
}

// Clear removes every vector.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `TRUNCATE `+TableName); err != nil {
		return fmt.Errorf("clear embeddings: %w", err)
	}
	return nil
}

// Save is a no-op.
func (s *Store) Save(_ context.Context) error {
	return nil
}

// Len returns the row count, or 0 when the database is unreachable.
func (s *Store) Len() int {
	ctx, cancel := context.WithTimeout(context.Background(), countTimeout)
	defer cancel()

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM `+TableName).Scan(&n); err != nil {
		logger.Warn("pgvector: count embeddings: %v", err)
		return 0
	}
	return n
}

// Dimensions returns the vector size.
func (s *Store) Dimensions() int {
	return s.dims
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
