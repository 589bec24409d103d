package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/MrWong99/meetscribe/pkg/memory"
	"github.com/MrWong99/meetscribe/pkg/provider/embeddings"
)

var (
	_ memory.MeetingStore     = (*Store)(nil)
	_ memory.SemanticSearcher = (*Store)(nil)
)

// Store is the PostgreSQL-backed meeting store. It holds a single
// [pgxpool.Pool]; all operations are safe for concurrent use.
type Store struct {
	pool     *pgxpool.Pool
	embedder embeddings.Provider
}

// Option configures a [Store].
type Option func(*Store)

// WithEmbedder enables semantic search. Every saved meeting is embedded with
// p and the vector column is sized to p.Dimensions() on first migration;
// changing the model's dimensions later needs a manual schema change.
func WithEmbedder(p embeddings.Provider) Option {
	return func(s *Store) { s.embedder = p }
}

// NewStore connects to the database at dsn, verifies the connection, and runs
// [Migrate].
func NewStore(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	s := &Store{}
	for _, o := range opts {
		o(s)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	dims := 0
	if s.embedder != nil {
		dims = s.embedder.Dimensions()
		// The vector type must exist before connections can register it.
		if err := createVectorExtension(ctx, cfg.ConnConfig); err != nil {
			return nil, fmt.Errorf("postgres store: %w", err)
		}
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			return pgxvec.RegisterTypes(ctx, conn)
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool, dims); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	s.pool = pool
	return s, nil
}

func createVectorExtension(ctx context.Context, cc *pgx.ConnConfig) error {
	conn, err := pgx.ConnectConfig(ctx, cc.Copy())
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(ctx)
	if _, err := conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("create extension vector: %w", err)
	}
	return nil
}

// Ping checks connectivity. It backs the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all connections held by the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}
