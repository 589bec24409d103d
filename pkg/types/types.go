// Package types defines the shared types used across meetscribe packages.
//
// These types form the lingua franca between the meeting orchestrator, the
// summarizer, the persistence layer, and the HTTP surface. Each package keeps
// its own domain types; only data that crosses package boundaries lives here
// to avoid circular imports.
package types

import (
	"strings"
	"time"
)

// Segment is one piece of live transcript text produced while a meeting is
// recording. Segments are kept in arrival order.
type Segment struct {
	// Offset is the position of the segment relative to meeting start.
	Offset time.Duration `json:"offset"`

	// Text is the transcribed text, verbatim as returned by the STT provider.
	Text string `json:"text"`

	// Seq is the sequence number of the audio frame that produced the text.
	Seq uint64 `json:"seq"`
}

// Summary is the AI-generated digest of a meeting transcript.
type Summary struct {
	// Summary is a short prose summary of the meeting.
	Summary string `json:"summary"`

	// KeyPoints lists the main topics discussed. At most [MaxKeyPoints] items.
	KeyPoints []string `json:"key_points"`

	// ActionItems lists follow-up tasks. At most [MaxActionItems] items.
	ActionItems []string `json:"action_items"`
}

const (
	// MaxKeyPoints caps the number of key points kept in a [Summary].
	MaxKeyPoints = 8

	// MaxActionItems caps the number of action items kept in a [Summary].
	MaxActionItems = 10
)

// MeetingRecord is the persisted result of a finished meeting. Once built by
// the orchestrator it is never mutated again.
type MeetingRecord struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Participants []string  `json:"participants"`
	StartedAt    time.Time `json:"started_at"`
	EndedAt      time.Time `json:"ended_at"`

	// Transcript is the final transcript: the full re-transcription of the
	// recording when available, the live transcript otherwise.
	Transcript string `json:"transcript"`

	// Segments are the live segments in arrival order.
	Segments []Segment `json:"segments"`

	// Summary is nil when summarization failed or was not configured.
	Summary *Summary `json:"summary,omitempty"`

	// AudioFile is the path of the WAV recording, empty if none was written.
	AudioFile string `json:"audio_file,omitempty"`

	// Warnings lists degraded steps encountered while finalizing the meeting.
	Warnings []string `json:"warnings,omitempty"`
}

// Duration returns the wall-clock length of the meeting.
func (r *MeetingRecord) Duration() time.Duration {
	if r.EndedAt.Before(r.StartedAt) {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

// WordCount returns the number of whitespace-separated words in text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
