// Package store archives analyses with their embeddings in PostgreSQL
// using the pgvector extension.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/xhad/narrator/internal/models"
)

const (
	DefaultTableName   = "analyses"
	DefaultVectorDim   = 768
	DefaultSearchLimit = 5
)

var (
	ErrDimension = errors.New("embedding has the wrong dimension")
	tableName    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

type VectorStoreConfig struct {
	ConnString  string
	TableName   string
	VectorDim   int
	SearchLimit int
}

type VectorStore struct {
	config VectorStoreConfig
	pool   *pgxpool.Pool
}

func NewWithConfig(ctx context.Context, config VectorStoreConfig) (*VectorStore, error) {
	if config.TableName == "" {
		config.TableName = DefaultTableName
	}
	if !tableName.MatchString(config.TableName) {
		return nil, fmt.Errorf("invalid table name %q", config.TableName)
	}
	if config.VectorDim == 0 {
		config.VectorDim = DefaultVectorDim // nomic-embed-text
	}
	if config.SearchLimit == 0 {
		config.SearchLimit = DefaultSearchLimit
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	vs := &VectorStore{
		config: config,
		pool:   pool,
	}

	if err := vs.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *VectorStore) Config() VectorStoreConfig {
	return vs.config
}

func (vs *VectorStore) initialize(ctx context.Context) error {
	if _, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			url TEXT NOT NULL,
			category TEXT,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			embedding vector(%d)
		)`, vs.config.TableName, vs.config.VectorDim)
	if _, err := vs.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING hnsw (embedding vector_cosine_ops)`,
		vs.config.TableName, vs.config.TableName)
	if _, err := vs.pool.Exec(ctx, createIndex); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// Store inserts or replaces one analysis.
func (vs *VectorStore) Store(ctx context.Context, rec models.ArchiveRecord, embedding []float32) error {
	if len(embedding) != vs.config.VectorDim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimension, len(embedding), vs.config.VectorDim)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, source, url, category, content, created_at, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding`,
		vs.config.TableName)

	_, err := vs.pool.Exec(ctx, stmt,
		rec.ID,
		rec.Source,
		rec.URL,
		rec.Category,
		sanitizeUTF8(rec.Content),
		rec.CreatedAt,
		pgvector.NewVector(embedding),
	)
	if err != nil {
		return fmt.Errorf("failed to insert analysis: %w", err)
	}
	return nil
}

// Query returns the analyses closest to embedding by cosine distance.
func (vs *VectorStore) Query(ctx context.Context, embedding []float32, limit int) ([]models.ArchiveRecord, error) {
	if len(embedding) != vs.config.VectorDim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimension, len(embedding), vs.config.VectorDim)
	}
	if limit <= 0 {
		limit = vs.config.SearchLimit
	}

	query := fmt.Sprintf(`
		SELECT id, source, url, category, content, created_at, embedding <=> $1 AS distance
		FROM %s
		ORDER BY distance
		LIMIT $2`,
		vs.config.TableName)

	rows, err := vs.pool.Query(ctx, query, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query analyses: %w", err)
	}
	defer rows.Close()

	var recs []models.ArchiveRecord
	for rows.Next() {
		var rec models.ArchiveRecord
		var category *string
		if err := rows.Scan(&rec.ID, &rec.Source, &rec.URL, &category, &rec.Content, &rec.CreatedAt, &rec.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if category != nil {
			rec.Category = *category
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (vs *VectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}

// sanitizeUTF8 drops invalid byte sequences, which PostgreSQL rejects.
func sanitizeUTF8(s string) string {
	return strings.ToValidUTF8(s, "")
}
