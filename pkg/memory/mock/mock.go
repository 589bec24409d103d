// Package mock provides an in-memory test double for [memory.MeetingStore].
//
// The mock records every call for assertion and exposes exported fields that
// control what it returns. It is safe for concurrent use.
//
// Typical usage:
//
//	store := &mock.MeetingStore{SaveErr: errors.New("db down")}
//	// inject store into the system under test …
//	if got := store.SaveCalls(); got != 3 {
//	    t.Errorf("expected 3 Save calls, got %d", got)
//	}
package mock

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/MrWong99/meetscribe/pkg/memory"
	"github.com/MrWong99/meetscribe/pkg/types"
)

// MeetingStore is a configurable test double for [memory.MeetingStore].
// Saved records are kept and served by Get and List.
type MeetingStore struct {
	mu sync.Mutex

	// SaveErr is returned by every Save call when non-nil.
	SaveErr error

	// SaveErrs is consumed one entry per Save call before SaveErr applies.
	// A nil entry means success.
	SaveErrs []error

	// Location is returned by a successful Save. Defaults to "mock:<id>".
	Location string

	// GetErr is returned by Get when non-nil.
	GetErr error

	// ListErr is returned by List when non-nil.
	ListErr error

	saveCalls int
	saved     []types.MeetingRecord
}

var _ memory.MeetingStore = (*MeetingStore)(nil)

// Save implements [memory.MeetingStore].
func (m *MeetingStore) Save(ctx context.Context, rec *types.MeetingRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveCalls++

	if len(m.SaveErrs) > 0 {
		err := m.SaveErrs[0]
		m.SaveErrs = m.SaveErrs[1:]
		if err != nil {
			return "", err
		}
	} else if m.SaveErr != nil {
		return "", m.SaveErr
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	cp := *rec
	cp.Segments = slices.Clone(rec.Segments)
	m.saved = slices.DeleteFunc(m.saved, func(r types.MeetingRecord) bool { return r.ID == rec.ID })
	m.saved = append(m.saved, cp)

	if m.Location != "" {
		return m.Location, nil
	}
	return "mock:" + rec.ID, nil
}

// Get implements [memory.MeetingStore].
func (m *MeetingStore) Get(_ context.Context, id string) (*types.MeetingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	for _, r := range m.saved {
		if r.ID == id {
			cp := r
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("mock store: %s: %w", id, memory.ErrNotFound)
}

// List implements [memory.MeetingStore]. Only Limit is honoured; records are
// returned newest save first.
func (m *MeetingStore) List(_ context.Context, opts memory.ListOpts) ([]types.MeetingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	out := make([]types.MeetingRecord, 0, len(m.saved))
	for i := len(m.saved) - 1; i >= 0 && len(out) < opts.EffectiveLimit(); i-- {
		r := m.saved[i]
		r.Segments = nil
		out = append(out, r)
	}
	return out, nil
}

// SaveCalls returns how many times Save was called.
func (m *MeetingStore) SaveCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveCalls
}

// Saved returns copies of all successfully saved records in save order.
func (m *MeetingStore) Saved() []types.MeetingRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.saved)
}

// Reset clears recorded calls and saved records.
func (m *MeetingStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveCalls = 0
	m.saved = nil
}
