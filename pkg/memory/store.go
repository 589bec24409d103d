// Package memory defines how finished meetings are persisted.
//
// A [MeetingStore] saves the immutable [types.MeetingRecord] produced when a
// meeting stops and serves it back to the HTTP API. Implementations live in
// sub-packages:
//
//   - memory/postgres: the primary store, one row per meeting plus its live
//     segments, with full-text search over transcripts and, given an
//     embeddings provider, semantic search through pgvector.
//   - memory/file: one JSON document per meeting. Used as the fallback store
//     when the primary save path is exhausted, and as the primary store when
//     no database is configured.
//   - memory/mock: a scriptable test double.
//
// Every implementation must be safe for concurrent use.
package memory

import (
	"context"
	"errors"

	"github.com/MrWong99/meetscribe/pkg/types"
)

var (
	// ErrNotFound is returned by [MeetingStore.Get] when no meeting has the id.
	ErrNotFound = errors.New("memory: meeting not found")

	// ErrSemanticUnavailable is returned by [SemanticSearcher.Similar] when the
	// store has no embeddings provider.
	ErrSemanticUnavailable = errors.New("memory: semantic search not configured")
)

// MeetingStore persists finished meetings.
type MeetingStore interface {
	// Save stores rec, replacing any earlier record with the same ID, and
	// returns a human-readable location such as a file path or table key.
	Save(ctx context.Context, rec *types.MeetingRecord) (string, error)

	// Get returns the meeting with the given id, including its segments.
	// Returns [ErrNotFound] when it does not exist.
	Get(ctx context.Context, id string) (*types.MeetingRecord, error)

	// List returns meetings ordered newest first. Listed records omit
	// segments.
	List(ctx context.Context, opts ListOpts) ([]types.MeetingRecord, error)
}

// Match is a meeting ranked by how close its meaning is to a query.
type Match struct {
	types.MeetingRecord

	// Distance is the cosine distance to the query; smaller is closer.
	Distance float64 `json:"distance"`
}

// SemanticSearcher is implemented by stores that index meetings by meaning.
type SemanticSearcher interface {
	// Similar returns up to limit meetings closest to query, closest first.
	// A limit of zero or less means 10. Matches omit segments.
	Similar(ctx context.Context, query string, limit int) ([]Match, error)
}
