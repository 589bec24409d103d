// Package file stores meetings as JSON documents in a directory, one file per
// meeting named <id>.json. Writes go to a temporary file that is renamed into
// place, so a crash never leaves a truncated record behind.
package file

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/MrWong99/meetscribe/pkg/memory"
	"github.com/MrWong99/meetscribe/pkg/types"
)

const ext = ".json"

// Store is a directory-backed [memory.MeetingStore].
type Store struct {
	dir string
}

var _ memory.MeetingStore = (*Store)(nil)

// New creates dir if needed and returns a Store writing into it.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("file store: directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file store: create %q: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory records are written to.
func (s *Store) Dir() string { return s.dir }

// Save implements [memory.MeetingStore]. The returned location is the file
// path.
func (s *Store) Save(ctx context.Context, rec *types.MeetingRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("file store: %w", err)
	}
	path, err := s.path(rec.ID)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("file store: encode %s: %w", rec.ID, err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+rec.ID+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("file store: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("file store: write %s: %w", rec.ID, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("file store: sync %s: %w", rec.ID, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("file store: close %s: %w", rec.ID, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("file store: rename %s: %w", rec.ID, err)
	}
	return path, nil
}

// Get implements [memory.MeetingStore].
func (s *Store) Get(_ context.Context, id string) (*types.MeetingRecord, error) {
	path, err := s.path(id)
	if err != nil {
		return nil, err
	}
	rec, err := readRecord(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("file store: %s: %w", id, memory.ErrNotFound)
	}
	return rec, err
}

// List implements [memory.MeetingStore]. It reads every record in the
// directory, so it suits the modest volumes of a single workstation.
func (s *Store) List(ctx context.Context, opts memory.ListOpts) ([]types.MeetingRecord, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("file store: list: %w", err)
	}

	query := strings.ToLower(strings.TrimSpace(opts.Query))
	out := []types.MeetingRecord{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ext) || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("file store: list: %w", err)
		}
		rec, err := readRecord(filepath.Join(s.dir, e.Name()))
		if err != nil {
			return nil, err
		}
		if !matches(rec, opts, query) {
			continue
		}
		rec.Segments = nil
		out = append(out, *rec)
	}

	slices.SortFunc(out, func(a, b types.MeetingRecord) int {
		return cmp.Compare(b.StartedAt.UnixNano(), a.StartedAt.UnixNano())
	})
	if limit := opts.EffectiveLimit(); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func matches(rec *types.MeetingRecord, opts memory.ListOpts, query string) bool {
	if !opts.After.IsZero() && !rec.StartedAt.After(opts.After) {
		return false
	}
	if !opts.Before.IsZero() && !rec.StartedAt.Before(opts.Before) {
		return false
	}
	if opts.Participant != "" && !slices.Contains(rec.Participants, opts.Participant) {
		return false
	}
	if query != "" &&
		!strings.Contains(strings.ToLower(rec.Title), query) &&
		!strings.Contains(strings.ToLower(rec.Transcript), query) {
		return false
	}
	return true
}

func (s *Store) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") {
		return "", fmt.Errorf("file store: invalid meeting id %q", id)
	}
	return filepath.Join(s.dir, id+ext), nil
}

func readRecord(path string) (*types.MeetingRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("file store: read: %w", err)
	}
	var rec types.MeetingRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("file store: decode %s: %w", filepath.Base(path), err)
	}
	return &rec, nil
}
