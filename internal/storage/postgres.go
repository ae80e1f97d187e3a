package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/bdougie/framevocab/internal/embeddings"
	"github.com/bdougie/framevocab/internal/models"
)

// Postgres stores every run's outcome and vocabulary, and keeps one
// vocabulary vector per video for similarity search.
type Postgres struct {
	pool *pgxpool.Pool
}

// SimilarVideo is one row of a similarity search.
type SimilarVideo struct {
	Name       string
	Path       string
	Similarity float64
}

// NewPostgres connects to databaseURL and creates the schema if needed.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Postgres{pool: pool}
	if err := s.InitSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Postgres) Name() string { return "postgres" }

// Close closes the database connection
func (s *Postgres) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// Publish records the outcome of one video. Successful outcomes also store
// their words and replace the video's vocabulary vector.
func (s *Postgres) Publish(ctx context.Context, runID uuid.UUID, outcome models.ProcessingOutcome) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var embedding *pgvector.Vector
	if outcome.Status.Succeeded() {
		v := pgvector.NewVector(embeddings.FromWords(outcome.Words).Data)
		embedding = &v
	}

	now := time.Now().UTC()
	var videoID int
	err = tx.QueryRow(ctx,
		`INSERT INTO videos (name, path, vocab_embedding, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (name) DO UPDATE SET
			path = EXCLUDED.path,
			vocab_embedding = COALESCE(EXCLUDED.vocab_embedding, videos.vocab_embedding),
			updated_at = EXCLUDED.updated_at
		RETURNING id`,
		outcome.Video, outcome.Path, embedding, now).Scan(&videoID)
	if err != nil {
		return fmt.Errorf("failed to upsert video: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO video_runs
		(run_id, video_id, status, reason, frames, recognized, failed_frames, words, elapsed_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		runID, videoID, string(outcome.Status), outcome.Reason(), outcome.Frames, outcome.Recognized,
		len(outcome.Failures), len(outcome.Words), outcome.Elapsed.Milliseconds(), now)
	if err != nil {
		return fmt.Errorf("failed to store run: %w", err)
	}

	if len(outcome.Words) > 0 {
		rows := make([][]any, len(outcome.Words))
		for i, w := range outcome.Words {
			rows[i] = []any{runID, videoID, i, w}
		}
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"video_words"},
			[]string{"run_id", "video_id", "position", "token"},
			pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("failed to store words: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// SimilarVideos returns the videos whose vocabulary is closest to name's.
func (s *Postgres) SimilarVideos(ctx context.Context, name string, limit int) ([]SimilarVideo, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT o.name, o.path, 1 - (o.vocab_embedding <=> v.vocab_embedding) AS similarity
		FROM videos v
		JOIN videos o ON o.id <> v.id AND o.vocab_embedding IS NOT NULL
		WHERE v.name = $1 AND v.vocab_embedding IS NOT NULL
		ORDER BY o.vocab_embedding <=> v.vocab_embedding
		LIMIT $2`,
		name, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search similar videos: %w", err)
	}
	defer rows.Close()

	var results []SimilarVideo
	for rows.Next() {
		var r SimilarVideo
		if err := rows.Scan(&r.Name, &r.Path, &r.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan search results: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// InitSchema creates the vector extension, tables and indexes if they don't exist.
func (s *Postgres) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS videos (
            id SERIAL PRIMARY KEY,
            name VARCHAR(255) NOT NULL UNIQUE,
            path TEXT NOT NULL,
            vocab_embedding vector(%d),
            created_at TIMESTAMPTZ NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL
        );

        CREATE TABLE IF NOT EXISTS video_runs (
            run_id UUID NOT NULL,
            video_id INTEGER REFERENCES videos(id) ON DELETE CASCADE,
            status VARCHAR(32) NOT NULL,
            reason VARCHAR(64) NOT NULL,
            frames INTEGER NOT NULL,
            recognized INTEGER NOT NULL,
            failed_frames INTEGER NOT NULL,
            words INTEGER NOT NULL,
            elapsed_ms BIGINT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL,
            PRIMARY KEY (run_id, video_id)
        );

        CREATE TABLE IF NOT EXISTS video_words (
            run_id UUID NOT NULL,
            video_id INTEGER NOT NULL,
            position INTEGER NOT NULL,
            token TEXT NOT NULL,
            PRIMARY KEY (run_id, video_id, position),
            FOREIGN KEY (run_id, video_id) REFERENCES video_runs(run_id, video_id) ON DELETE CASCADE
        );
    `, embeddings.Dimensions))
	if err != nil {
		return fmt.Errorf("failed to create database schema: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
        CREATE INDEX IF NOT EXISTS idx_video_words_token ON video_words(token);
        CREATE INDEX IF NOT EXISTS idx_videos_embedding ON videos USING hnsw (vocab_embedding vector_cosine_ops);
    `)
	if err != nil {
		return fmt.Errorf("failed to create database indexes: %w", err)
	}
	return nil
}
