// Package postgres provides the PostgreSQL-backed [memory.MeetingStore].
//
// A meeting is stored as one row in meetings plus one row per live segment in
// meeting_segments. Transcripts carry a GIN full-text index that backs
// [memory.ListOpts.Query]. With an embeddings provider, meeting_embeddings
// holds one pgvector per meeting behind an HNSW cosine index that backs
// [Store.Similar].
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn, postgres.WithEmbedder(p))
//	if err != nil { … }
//	defer store.Close()
//
//	loc, _ := store.Save(ctx, rec)
//	recs, _ := store.List(ctx, memory.ListOpts{Query: "roadmap"})
//	near, _ := store.Similar(ctx, "hiring plans", 5)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlMeetings = `
CREATE TABLE IF NOT EXISTS meetings (
    id            TEXT         PRIMARY KEY,
    title         TEXT         NOT NULL,
    participants  TEXT[]       NOT NULL DEFAULT '{}',
    started_at    TIMESTAMPTZ  NOT NULL,
    ended_at      TIMESTAMPTZ  NOT NULL,
    transcript    TEXT         NOT NULL DEFAULT '',
    summary       JSONB,
    audio_file    TEXT         NOT NULL DEFAULT '',
    warnings      TEXT[]       NOT NULL DEFAULT '{}',
    saved_at      TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_meetings_started_at
    ON meetings (started_at DESC);

CREATE INDEX IF NOT EXISTS idx_meetings_participants
    ON meetings USING GIN (participants);

CREATE INDEX IF NOT EXISTS idx_meetings_fts
    ON meetings USING GIN (to_tsvector('english', title || ' ' || transcript));
`

const ddlSegments = `
CREATE TABLE IF NOT EXISTS meeting_segments (
    meeting_id  TEXT    NOT NULL REFERENCES meetings (id) ON DELETE CASCADE,
    position    INT     NOT NULL,
    seq         BIGINT  NOT NULL,
    offset_ns   BIGINT  NOT NULL,
    text        TEXT    NOT NULL,
    PRIMARY KEY (meeting_id, position)
);
`

// ddlEmbeddings is formatted with the vector dimension, which is fixed at
// creation time.
const ddlEmbeddings = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS meeting_embeddings (
    meeting_id   TEXT         PRIMARY KEY REFERENCES meetings (id) ON DELETE CASCADE,
    model        TEXT         NOT NULL,
    embedding    vector(%d)   NOT NULL,
    embedded_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_meeting_embeddings_hnsw
    ON meeting_embeddings USING hnsw (embedding vector_cosine_ops);
`

// Migrate creates the meetings schema. It is idempotent and safe to call on
// every start. A positive dimensions also creates the embeddings table.
func Migrate(ctx context.Context, pool *pgxpool.Pool, dimensions int) error {
	stmts := []string{ddlMeetings, ddlSegments}
	if dimensions > 0 {
		stmts = append(stmts, fmt.Sprintf(ddlEmbeddings, dimensions))
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
