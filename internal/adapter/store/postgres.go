package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"docrag/internal/domain"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS documents (
	id         BIGSERIAL PRIMARY KEY,
	path       TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	mod_time   TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS chunks (
	id           BIGSERIAL PRIMARY KEY,
	document_id  BIGINT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	chunk_index  INTEGER NOT NULL,
	text         TEXT NOT NULL,
	start_offset INTEGER NOT NULL,
	end_offset   INTEGER NOT NULL,
	embedding    BYTEA NOT NULL
);
CREATE INDEX IF NOT EXISTS chunks_document_id_idx ON chunks(document_id);`

// PostgresStore keeps the corpus in two tables. Chunks cascade with their
// document, so replacing a path is a delete plus an insert.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection, pings it and creates the tables if
// they are missing.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) SaveDocument(ctx context.Context, doc domain.Document) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE path = $1`, doc.Path); err != nil {
		return 0, fmt.Errorf("delete previous document: %w", err)
	}

	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	var id int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO documents (path, name, mod_time, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		doc.Path, doc.Name, doc.ModTime, createdAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert document: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) SaveChunk(ctx context.Context, documentID int64, chunk domain.Chunk, vector []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chunks (document_id, chunk_index, text, start_offset, end_offset, embedding)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		documentID, chunk.Index, chunk.Text, chunk.StartOffset, chunk.EndOffset, vector,
	)
	if err != nil {
		return fmt.Errorf("insert chunk %d of document %d: %w", chunk.Index, documentID, err)
	}
	return nil
}

func (s *PostgresStore) AllChunks(ctx context.Context) ([]domain.StoredChunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.document_id, d.name, d.path, c.chunk_index, c.text, c.start_offset, c.end_offset, c.embedding
		FROM chunks c JOIN documents d ON d.id = c.document_id
		ORDER BY c.id`)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var out []domain.StoredChunk
	for rows.Next() {
		var sc domain.StoredChunk
		if err := rows.Scan(
			&sc.ChunkID, &sc.DocumentID, &sc.FileName, &sc.FilePath,
			&sc.Chunk.Index, &sc.Chunk.Text, &sc.Chunk.StartOffset, &sc.Chunk.EndOffset, &sc.Vector,
		); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DocumentCount(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM documents`)
}

func (s *PostgresStore) ChunkCount(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM chunks`)
}

func (s *PostgresStore) count(ctx context.Context, query string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// Clear removes every document and, through the cascade, every chunk.
func (s *PostgresStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `TRUNCATE documents RESTART IDENTITY CASCADE`)
	return err
}
