package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/MrWong99/meetscribe/pkg/memory"
	"github.com/MrWong99/meetscribe/pkg/types"
)

// Save implements [memory.MeetingStore]. The meeting row, its segments and
// its embedding are written in one transaction; saving an existing id
// replaces all three. A failed embedding is logged and does not fail the
// save.
func (s *Store) Save(ctx context.Context, rec *types.MeetingRecord) (string, error) {
	vec := s.embedRecord(ctx, rec)

	var summary []byte
	if rec.Summary != nil {
		var err error
		if summary, err = json.Marshal(rec.Summary); err != nil {
			return "", fmt.Errorf("meeting store: encode summary: %w", err)
		}
	}

	const upsert = `
		INSERT INTO meetings
		    (id, title, participants, started_at, ended_at, transcript, summary, audio_file, warnings)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
		    title        = EXCLUDED.title,
		    participants = EXCLUDED.participants,
		    started_at   = EXCLUDED.started_at,
		    ended_at     = EXCLUDED.ended_at,
		    transcript   = EXCLUDED.transcript,
		    summary      = EXCLUDED.summary,
		    audio_file   = EXCLUDED.audio_file,
		    warnings     = EXCLUDED.warnings,
		    saved_at     = now()`

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, upsert,
			rec.ID,
			rec.Title,
			nonNil(rec.Participants),
			rec.StartedAt,
			rec.EndedAt,
			rec.Transcript,
			summary,
			rec.AudioFile,
			nonNil(rec.Warnings),
		); err != nil {
			return fmt.Errorf("upsert meeting: %w", err)
		}

		if vec != nil {
			if err := upsertEmbedding(ctx, tx, rec.ID, s.embedder.ModelID(), vec); err != nil {
				return err
			}
		}

		if _, err := tx.Exec(ctx, `DELETE FROM meeting_segments WHERE meeting_id = $1`, rec.ID); err != nil {
			return fmt.Errorf("clear segments: %w", err)
		}
		if len(rec.Segments) == 0 {
			return nil
		}
		rows := make([][]any, len(rec.Segments))
		for i, seg := range rec.Segments {
			rows[i] = []any{rec.ID, i, int64(seg.Seq), seg.Offset.Nanoseconds(), seg.Text}
		}
		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"meeting_segments"},
			[]string{"meeting_id", "position", "seq", "offset_ns", "text"},
			pgx.CopyFromRows(rows),
		); err != nil {
			return fmt.Errorf("copy segments: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("meeting store: save %s: %w", rec.ID, err)
	}
	return "postgres:meetings/" + rec.ID, nil
}

const selectMeeting = `
	SELECT id, title, participants, started_at, ended_at, transcript, summary, audio_file, warnings
	FROM   meetings`

// Get implements [memory.MeetingStore].
func (s *Store) Get(ctx context.Context, id string) (*types.MeetingRecord, error) {
	rows, err := s.pool.Query(ctx, selectMeeting+"\nWHERE id = $1", id)
	if err != nil {
		return nil, fmt.Errorf("meeting store: get %s: %w", id, err)
	}
	rec, err := pgx.CollectExactlyOneRow(rows, scanMeeting)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("meeting store: %s: %w", id, memory.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("meeting store: get %s: %w", id, err)
	}

	segRows, err := s.pool.Query(ctx, `
		SELECT seq, offset_ns, text
		FROM   meeting_segments
		WHERE  meeting_id = $1
		ORDER  BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("meeting store: get segments %s: %w", id, err)
	}
	rec.Segments, err = pgx.CollectRows(segRows, func(row pgx.CollectableRow) (types.Segment, error) {
		var (
			seg      types.Segment
			seq      int64
			offsetNS int64
		)
		if err := row.Scan(&seq, &offsetNS, &seg.Text); err != nil {
			return types.Segment{}, err
		}
		seg.Seq = uint64(seq)
		seg.Offset = time.Duration(offsetNS)
		return seg, nil
	})
	if err != nil {
		return nil, fmt.Errorf("meeting store: scan segments %s: %w", id, err)
	}
	return &rec, nil
}

// List implements [memory.MeetingStore]. Query runs through plainto_tsquery,
// so no operator syntax is required.
func (s *Store) List(ctx context.Context, opts memory.ListOpts) ([]types.MeetingRecord, error) {
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	var conditions []string
	if q := strings.TrimSpace(opts.Query); q != "" {
		conditions = append(conditions,
			"to_tsvector('english', title || ' ' || transcript) @@ plainto_tsquery('english', "+next(q)+")")
	}
	if !opts.After.IsZero() {
		conditions = append(conditions, "started_at > "+next(opts.After))
	}
	if !opts.Before.IsZero() {
		conditions = append(conditions, "started_at < "+next(opts.Before))
	}
	if opts.Participant != "" {
		conditions = append(conditions, next(opts.Participant)+" = ANY (participants)")
	}

	q := selectMeeting
	if len(conditions) > 0 {
		q += "\nWHERE  " + strings.Join(conditions, "\n  AND  ")
	}
	q += "\nORDER  BY started_at DESC\nLIMIT  " + next(opts.EffectiveLimit())

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("meeting store: list: %w", err)
	}
	recs, err := pgx.CollectRows(rows, scanMeeting)
	if err != nil {
		return nil, fmt.Errorf("meeting store: scan rows: %w", err)
	}
	if recs == nil {
		recs = []types.MeetingRecord{}
	}
	return recs, nil
}

func scanMeeting(row pgx.CollectableRow) (types.MeetingRecord, error) {
	return scanMeetingWith(row)
}

// scanMeetingWith scans the selectMeeting columns followed by extra.
func scanMeetingWith(row pgx.CollectableRow, extra ...any) (types.MeetingRecord, error) {
	var (
		rec     types.MeetingRecord
		summary []byte
	)
	dest := []any{
		&rec.ID,
		&rec.Title,
		&rec.Participants,
		&rec.StartedAt,
		&rec.EndedAt,
		&rec.Transcript,
		&summary,
		&rec.AudioFile,
		&rec.Warnings,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return types.MeetingRecord{}, err
	}
	if len(summary) > 0 {
		rec.Summary = &types.Summary{}
		if err := json.Unmarshal(summary, rec.Summary); err != nil {
			return types.MeetingRecord{}, fmt.Errorf("decode summary: %w", err)
		}
	}
	return rec, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
