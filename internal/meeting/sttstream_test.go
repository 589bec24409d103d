package meeting_test

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/meetscribe/internal/meeting"
	"github.com/MrWong99/meetscribe/pkg/provider/stt"
	sttmock "github.com/MrWong99/meetscribe/pkg/provider/stt/mock"
)

func newMockSession(respond func([]byte) *stt.Transcript) *sttmock.Session {
	return &sttmock.Session{
		PartialsCh: make(chan stt.Transcript, 8),
		FinalsCh:   make(chan stt.Transcript, 8),
		Respond:    respond,
	}
}

func TestSTTStream_ReturnsFinalsSinceLastCall(t *testing.T) {
	calls := 0
	sess := newMockSession(func([]byte) *stt.Transcript {
		calls++
		switch calls {
		case 1:
			return &stt.Transcript{Text: "hel"}
		case 2:
			return &stt.Transcript{Text: " hello team ", IsFinal: true}
		default:
			return nil
		}
	})
	p := &sttmock.Provider{Session: sess}

	open := meeting.STTStreamOpener(p, stt.StreamConfig{SampleRate: 16000, Channels: 1, Language: "en"})
	tr, err := open(context.Background(), []string{"Alice", " ", "Bob"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	want := []string{"", "hello team", ""}
	for i, w := range want {
		got, err := tr.TranscribeStream(context.Background(), frame(uint64(i+1)))
		if err != nil {
			t.Fatalf("frame %d: %v", i+1, err)
		}
		if got != w {
			t.Errorf("frame %d text = %q, want %q", i+1, got, w)
		}
	}

	cfg := p.StartStreamCalls[0].Cfg
	if cfg.Language != "en" || len(cfg.Keywords) != 2 || cfg.Keywords[1].Keyword != "Bob" {
		t.Errorf("stream config = %+v", cfg)
	}
	if sess.SendAudioCallCount() != 3 {
		t.Errorf("SendAudio calls = %d, want 3", sess.SendAudioCallCount())
	}

	closer, ok := tr.(interface{ Close() error })
	if !ok {
		t.Fatal("STTStream does not implement Close")
	}
	_ = closer.Close()
	_ = closer.Close()
	if sess.CloseCallCount != 1 {
		t.Errorf("Close reached the session %d times, want 1", sess.CloseCallCount)
	}
	if _, err := tr.TranscribeStream(context.Background(), frame(4)); err == nil {
		t.Error("TranscribeStream after Close succeeded")
	}
}

func TestSTTStream_ToleratesClosedChannels(t *testing.T) {
	sess := newMockSession(nil)
	sess.FinalsCh <- stt.Transcript{Text: "last words", IsFinal: true}
	close(sess.FinalsCh)
	close(sess.PartialsCh)

	s, err := meeting.NewSTTStream(context.Background(), &sttmock.Provider{Session: sess}, stt.StreamConfig{})
	if err != nil {
		t.Fatalf("NewSTTStream: %v", err)
	}
	for i, want := range []string{"last words", ""} {
		got, err := s.TranscribeStream(context.Background(), frame(uint64(i+1)))
		if err != nil || got != want {
			t.Fatalf("call %d = %q, %v; want %q", i+1, got, err, want)
		}
	}
}

func TestSTTStream_Errors(t *testing.T) {
	_, err := meeting.NewSTTStream(context.Background(), &sttmock.Provider{StartStreamErr: errors.New("401")}, stt.StreamConfig{})
	var engErr *meeting.EngineError
	if !errors.As(err, &engErr) || engErr.Stage != meeting.StageStream {
		t.Fatalf("err = %v, want EngineError at stream stage", err)
	}

	sess := newMockSession(nil)
	sess.SendAudioErr = errors.New("socket closed")
	s, err := meeting.NewSTTStream(context.Background(), &sttmock.Provider{Session: sess}, stt.StreamConfig{})
	if err != nil {
		t.Fatalf("NewSTTStream: %v", err)
	}
	if _, err := s.TranscribeStream(context.Background(), frame(1)); !errors.As(err, &engErr) {
		t.Errorf("err = %v, want EngineError", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.TranscribeStream(ctx, frame(2)); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
