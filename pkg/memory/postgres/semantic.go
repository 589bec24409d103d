package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/MrWong99/meetscribe/pkg/memory"
	"github.com/MrWong99/meetscribe/pkg/types"
)

const (
	defaultSimilarLimit = 10

	// maxEmbedRunes caps the text sent to the embeddings provider. The title
	// and summary come first so they always fit.
	maxEmbedRunes = 8000
)

// Similar implements [memory.SemanticSearcher]. Only meetings embedded with
// the current model are considered.
func (s *Store) Similar(ctx context.Context, query string, limit int) ([]memory.Match, error) {
	if s.embedder == nil {
		return nil, memory.ErrSemanticUnavailable
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return []memory.Match{}, nil
	}
	if limit <= 0 {
		limit = defaultSimilarLimit
	}

	emb, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("meeting store: embed query: %w", err)
	}

	const q = `
		SELECT m.id, m.title, m.participants, m.started_at, m.ended_at,
		       m.transcript, m.summary, m.audio_file, m.warnings,
		       e.embedding <=> $1 AS distance
		FROM   meetings m
		JOIN   meeting_embeddings e ON e.meeting_id = m.id
		WHERE  e.model = $2
		ORDER  BY distance
		LIMIT  $3`

	rows, err := s.pool.Query(ctx, q, pgvector.NewVector(emb), s.embedder.ModelID(), limit)
	if err != nil {
		return nil, fmt.Errorf("meeting store: similar: %w", err)
	}
	matches, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memory.Match, error) {
		var m memory.Match
		rec, err := scanMeetingWith(row, &m.Distance)
		m.MeetingRecord = rec
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("meeting store: scan similar: %w", err)
	}
	if matches == nil {
		matches = []memory.Match{}
	}
	return matches, nil
}

// embedRecord returns nil when no embedder is set or embedding fails.
func (s *Store) embedRecord(ctx context.Context, rec *types.MeetingRecord) *pgvector.Vector {
	if s.embedder == nil {
		return nil
	}
	text := embedText(rec)
	if text == "" {
		return nil
	}
	emb, err := s.embedder.Embed(ctx, text)
	if err != nil {
		slog.Warn("meeting store: embedding failed, meeting saved without it",
			"meeting_id", rec.ID, "model", s.embedder.ModelID(), "err", err)
		return nil
	}
	vec := pgvector.NewVector(emb)
	return &vec
}

func upsertEmbedding(ctx context.Context, tx pgx.Tx, id, model string, vec *pgvector.Vector) error {
	const q = `
		INSERT INTO meeting_embeddings (meeting_id, model, embedding)
		VALUES ($1, $2, $3)
		ON CONFLICT (meeting_id) DO UPDATE SET
		    model       = EXCLUDED.model,
		    embedding   = EXCLUDED.embedding,
		    embedded_at = now()`
	if _, err := tx.Exec(ctx, q, id, model, *vec); err != nil {
		return fmt.Errorf("upsert embedding: %w", err)
	}
	return nil
}

// embedText is the text a meeting is indexed by.
func embedText(rec *types.MeetingRecord) string {
	var b strings.Builder
	if rec.Title != "" {
		b.WriteString(rec.Title)
		b.WriteString("\n")
	}
	if sum := rec.Summary; sum != nil {
		b.WriteString(sum.Summary)
		b.WriteString("\n")
		for _, kp := range sum.KeyPoints {
			b.WriteString(kp)
			b.WriteString("\n")
		}
	}
	b.WriteString(rec.Transcript)

	text := strings.TrimSpace(b.String())
	if r := []rune(text); len(r) > maxEmbedRunes {
		text = string(r[:maxEmbedRunes])
	}
	return text
}
