package meeting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/meetscribe/internal/capture"
	"github.com/MrWong99/meetscribe/pkg/audio"
	audiomock "github.com/MrWong99/meetscribe/pkg/audio/mock"
)

func TestStopAfterCaptureFailure_LeavesNewerMeetingRunning(t *testing.T) {
	mic := audio.Device{Index: 1, Name: "Desk Mic", MaxInputChannels: 1, DefaultSampleRate: 16000}
	backend := &audiomock.Backend{
		DevicesResult: []audio.Device{mic},
		StreamResult:  &audiomock.Stream{Endless: true},
	}
	o := New(Config{
		Capture:       capture.Config{SampleRate: 16000, FramesPerBuffer: 160, JoinTimeout: time.Second},
		RecordingsDir: t.TempDir(),
		QueueDepth:    8,
		DispatchGrace: time.Second,
	}, backend)

	res, err := o.Start(context.Background(), "second meeting", nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _, _ = o.Stop(context.Background()) })

	// A failure report for an earlier meeting arrives late.
	_, err = o.stop(context.Background(), "earlier-meeting")
	var conflict *StateConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("stop(earlier) err = %v, want StateConflictError", err)
	}
	if st := o.Status(); st.State != StateActive || st.SessionID != res.SessionID {
		t.Errorf("status = %s %s, want %s still active", st.State, st.SessionID, res.SessionID)
	}

	if _, err := o.stop(context.Background(), res.SessionID); err != nil {
		t.Fatalf("stop(current): %v", err)
	}
	if st := o.Status(); st.State != StateIdle {
		t.Errorf("state = %s after stop, want idle", st.State)
	}
}
