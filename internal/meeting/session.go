package meeting

import (
	"slices"
	"strings"
	"time"

	"github.com/MrWong99/meetscribe/pkg/types"
)

// Session is the mutable record of one meeting. It belongs to the
// [Orchestrator] and is only read or written with the orchestrator's lock
// held; the capture loop and the dispatcher never see it.
type Session struct {
	ID           string
	Title        string
	Participants []string
	State        State
	StartedAt    time.Time
	EndedAt      time.Time

	// AudioFile is the WAV recording path, known once capture has stopped.
	AudioFile string

	segments []types.Segment
	live     strings.Builder
}

func newSession(id, title string, participants []string, startedAt time.Time) *Session {
	return &Session{
		ID:           id,
		Title:        title,
		Participants: slices.Clone(participants),
		State:        StateInitializing,
		StartedAt:    startedAt,
	}
}

// appendLocked adds a live segment. Text is stored verbatim in the segment;
// the running transcript joins trimmed pieces with single spaces.
func (s *Session) appendLocked(seg types.Segment) {
	s.segments = append(s.segments, seg)
	piece := strings.TrimSpace(seg.Text)
	if piece == "" {
		return
	}
	if s.live.Len() > 0 {
		s.live.WriteByte(' ')
	}
	s.live.WriteString(piece)
}

// LiveTranscript returns the text accumulated from live segments so far.
func (s *Session) LiveTranscript() string { return s.live.String() }

// Segments returns a copy of the live segments in arrival order.
func (s *Session) Segments() []types.Segment { return slices.Clone(s.segments) }

// SegmentCount returns the number of live segments.
func (s *Session) SegmentCount() int { return len(s.segments) }

// Duration is the elapsed recording time at now, or the final length once
// the meeting has ended.
func (s *Session) Duration(now time.Time) time.Duration {
	end := s.EndedAt
	if end.IsZero() {
		end = now
	}
	if end.Before(s.StartedAt) {
		return 0
	}
	return end.Sub(s.StartedAt)
}

// record builds the persisted form of the session.
func (s *Session) record(transcript string, summary *types.Summary, warnings []string) *types.MeetingRecord {
	return &types.MeetingRecord{
		ID:           s.ID,
		Title:        s.Title,
		Participants: slices.Clone(s.Participants),
		StartedAt:    s.StartedAt,
		EndedAt:      s.EndedAt,
		Transcript:   transcript,
		Segments:     s.Segments(),
		Summary:      summary,
		AudioFile:    s.AudioFile,
		Warnings:     slices.Clone(warnings),
	}
}
