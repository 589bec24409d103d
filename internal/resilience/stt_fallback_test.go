package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/meetscribe/pkg/provider/stt"
	sttmock "github.com/MrWong99/meetscribe/pkg/provider/stt/mock"
)

// streamOnly hides the mock's TranscribeFile method.
type streamOnly struct{ stt.Provider }

func newSTTFallback(primary, secondary stt.Provider) *STTFallback {
	fb := NewSTTFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)
	return fb
}

func TestSTTFallback_StartStream(t *testing.T) {
	tests := []struct {
		name          string
		primaryErr    error
		secondaryErr  error
		wantErr       error
		wantPrimary   int
		wantSecondary int
	}{
		{name: "primary", wantPrimary: 1},
		{name: "failover", primaryErr: errors.New("primary down"), wantPrimary: 1, wantSecondary: 1},
		{name: "all fail", primaryErr: errTest, secondaryErr: errTest, wantErr: ErrAllFailed, wantPrimary: 1, wantSecondary: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			primary := &sttmock.Provider{StartStreamErr: tt.primaryErr}
			secondary := &sttmock.Provider{StartStreamErr: tt.secondaryErr}
			fb := newSTTFallback(primary, secondary)

			handle, err := fb.StartStream(context.Background(), stt.StreamConfig{SampleRate: 16000, Channels: 1})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if err == nil {
				if handle == nil {
					t.Fatal("handle is nil")
				}
				_ = handle.Close()
			}
			if got := len(primary.StartStreamCalls); got != tt.wantPrimary {
				t.Errorf("primary called %d times, want %d", got, tt.wantPrimary)
			}
			if got := len(secondary.StartStreamCalls); got != tt.wantSecondary {
				t.Errorf("secondary called %d times, want %d", got, tt.wantSecondary)
			}
		})
	}
}

func TestSTTFallback_TranscribeFile_SkipsStreamOnlyBackends(t *testing.T) {
	fileCapable := &sttmock.Provider{TranscribeFileResult: "hello team meeting"}
	fb := newSTTFallback(streamOnly{&sttmock.Provider{}}, fileCapable)

	for range 5 {
		text, err := fb.TranscribeFile(context.Background(), "/tmp/meeting.wav")
		if err != nil {
			t.Fatalf("TranscribeFile: %v", err)
		}
		if text != "hello team meeting" {
			t.Fatalf("text = %q", text)
		}
	}
	if got := len(fileCapable.TranscribeFileCalls); got != 5 {
		t.Errorf("file backend called %d times, want 5", got)
	}
	if st := fb.group.Breaker("primary").State(); st != StateClosed {
		t.Errorf("stream-only breaker = %v, want closed", st)
	}
}

func TestSTTFallback_TranscribeFile_Failover(t *testing.T) {
	primary := &sttmock.Provider{TranscribeFileErr: errors.New("upload failed")}
	secondary := &sttmock.Provider{TranscribeFileResult: "from secondary"}
	fb := newSTTFallback(primary, secondary)

	text, err := fb.TranscribeFile(context.Background(), "/tmp/meeting.wav")
	if err != nil {
		t.Fatalf("TranscribeFile: %v", err)
	}
	if text != "from secondary" {
		t.Errorf("text = %q, want from secondary", text)
	}
}

func TestSTTFallback_TranscribeFile_NotSupported(t *testing.T) {
	fb := newSTTFallback(streamOnly{&sttmock.Provider{}}, streamOnly{&sttmock.Provider{}})
	if _, err := fb.TranscribeFile(context.Background(), "/tmp/meeting.wav"); !errors.Is(err, stt.ErrNotSupported) {
		t.Fatalf("err = %v, want ErrNotSupported", err)
	}
}
