package whisper_test

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/meetscribe/pkg/audio"
	"github.com/MrWong99/meetscribe/pkg/audio/wav"
	"github.com/MrWong99/meetscribe/pkg/provider/stt"
	"github.com/MrWong99/meetscribe/pkg/provider/stt/whisper"
)

// ─── helpers ─────────────────────────────────────────────────────────────────

// inferenceServer is a fake whisper-server that records every /inference call.
type inferenceServer struct {
	*httptest.Server

	mu       sync.Mutex
	text     string
	status   int
	requests []inferenceRequest
}

type inferenceRequest struct {
	filename string
	format   audio.Format
	fields   map[string]string
}

func newInferenceServer(t *testing.T, text string) *inferenceServer {
	t.Helper()
	s := &inferenceServer{text: text, status: http.StatusOK}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *inferenceServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || r.URL.Path != "/inference" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req := inferenceRequest{fields: map[string]string{}}
	for k, v := range r.MultipartForm.Value {
		req.fields[k] = v[0]
	}
	if fh := r.MultipartForm.File["file"]; len(fh) > 0 {
		req.filename = fh[0].Filename
		if f, err := fh[0].Open(); err == nil {
			req.format = uploadedFormat(f)
			_ = f.Close()
		}
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	status, text := s.status, s.text
	s.mu.Unlock()

	if status != http.StatusOK {
		http.Error(w, "boom", status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"text": text})
}

func (s *inferenceServer) calls() []inferenceRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]inferenceRequest(nil), s.requests...)
}

// uploadedFormat decodes the WAV header of an uploaded file.
func uploadedFormat(r io.Reader) audio.Format {
	tmp, err := os.CreateTemp("", "whisper-upload-*.wav")
	if err != nil {
		return audio.Format{}
	}
	defer os.Remove(tmp.Name())
	_, err = io.Copy(tmp, r)
	_ = tmp.Close()
	if err != nil {
		return audio.Format{}
	}
	_, format, err := wav.ReadFile(tmp.Name())
	if err != nil {
		return audio.Format{}
	}
	return format
}

// makeSpeechPCM returns a 440 Hz sine at 16 kHz with RMS far above the
// silence threshold.
func makeSpeechPCM(samples int) []byte {
	out := make([]int16, samples)
	for i := range out {
		out[i] = int16(10_000 * math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	return audio.EncodePCM16(out)
}

func makeSilencePCM(samples int) []byte {
	return make([]byte, samples*2)
}

func mustStartStream(t *testing.T, p stt.Provider, cfg stt.StreamConfig) stt.SessionHandle {
	t.Helper()
	h, err := p.StartStream(context.Background(), cfg)
	if err != nil {
		t.Fatalf("StartStream: %v", err)
	}
	return h
}

func waitFinal(t *testing.T, h stt.SessionHandle) stt.Transcript {
	t.Helper()
	select {
	case tr := <-h.Finals():
		return tr
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for final transcript")
		return stt.Transcript{}
	}
}

var mono16k = stt.StreamConfig{SampleRate: 16000, Channels: 1}

// ─── construction ────────────────────────────────────────────────────────────

func TestNew_EmptyServerURL_ReturnsError(t *testing.T) {
	if _, err := whisper.New(""); err == nil {
		t.Fatal("expected error for empty serverURL")
	}
}

func TestStartStream_CancelledContext_ReturnsError(t *testing.T) {
	p, _ := whisper.New("http://localhost:1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.StartStream(ctx, mono16k); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

// ─── segmentation ────────────────────────────────────────────────────────────

func TestSilenceAloneDoesNotTriggerInference(t *testing.T) {
	srv := newInferenceServer(t, "should not appear")
	p, _ := whisper.New(srv.URL, whisper.WithSilenceThresholdMs(50))
	h := mustStartStream(t, p, mono16k)

	_ = h.SendAudio(makeSilencePCM(16000))
	time.Sleep(100 * time.Millisecond)
	_ = h.Close()

	if n := len(srv.calls()); n != 0 {
		t.Errorf("inference calls = %d, want 0", n)
	}
}

func TestSpeechFollowedBySilence_EmitsPartialAndFinal(t *testing.T) {
	const want = "let's review the roadmap"
	srv := newInferenceServer(t, want)
	p, _ := whisper.New(srv.URL, whisper.WithSilenceThresholdMs(100), whisper.WithLanguage("de"))
	h := mustStartStream(t, p, mono16k)
	defer h.Close()

	_ = h.SendAudio(makeSpeechPCM(1600))
	_ = h.SendAudio(makeSilencePCM(1600))

	tr := waitFinal(t, h)
	if tr.Text != want || !tr.IsFinal {
		t.Errorf("final = %+v, want text %q and IsFinal", tr, want)
	}
	select {
	case partial := <-h.Partials():
		if partial.Text != want || partial.IsFinal {
			t.Errorf("partial = %+v", partial)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for partial")
	}

	calls := srv.calls()
	if len(calls) != 1 {
		t.Fatalf("inference calls = %d, want 1", len(calls))
	}
	if got := calls[0].fields["language"]; got != "de" {
		t.Errorf("language = %q, want %q", got, "de")
	}
	if got := calls[0].format; got != (audio.Format{SampleRate: 16000, Channels: 1}) {
		t.Errorf("uploaded format = %+v", got)
	}
}

func TestMaxBufferExceededForcesFlush(t *testing.T) {
	srv := newInferenceServer(t, "quarterly numbers")
	p, _ := whisper.New(srv.URL,
		whisper.WithSilenceThresholdMs(10_000),
		whisper.WithMaxBufferDurationMs(200),
	)
	h := mustStartStream(t, p, mono16k)
	defer h.Close()

	_ = h.SendAudio(makeSpeechPCM(3360)) // 210 ms
	if tr := waitFinal(t, h); tr.Text != "quarterly numbers" {
		t.Errorf("text = %q", tr.Text)
	}
}

func TestClose_FlushesRemainingSpeech(t *testing.T) {
	srv := newInferenceServer(t, "last words")
	p, _ := whisper.New(srv.URL, whisper.WithSilenceThresholdMs(10_000))
	h := mustStartStream(t, p, mono16k)

	_ = h.SendAudio(makeSpeechPCM(1600))
	time.Sleep(50 * time.Millisecond)
	_ = h.Close()

	var got []string
	for tr := range h.Finals() {
		got = append(got, tr.Text)
	}
	if len(got) != 1 || got[0] != "last words" {
		t.Errorf("finals after close = %v", got)
	}
}

func TestClose_IdempotentAndRejectsAudio(t *testing.T) {
	srv := newInferenceServer(t, "")
	p, _ := whisper.New(srv.URL)
	h := mustStartStream(t, p, mono16k)

	if err := h.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := h.SendAudio(makeSpeechPCM(100)); err == nil {
		t.Fatal("SendAudio after Close should fail")
	}
	if _, open := <-h.Partials(); open {
		t.Error("Partials should be closed")
	}
	if _, open := <-h.Finals(); open {
		t.Error("Finals should be closed")
	}
}

func TestInference_ServerError_ProducesNoTranscript(t *testing.T) {
	srv := newInferenceServer(t, "x")
	srv.status = http.StatusInternalServerError
	p, _ := whisper.New(srv.URL, whisper.WithSilenceThresholdMs(100))
	h := mustStartStream(t, p, mono16k)

	_ = h.SendAudio(makeSpeechPCM(1600))
	_ = h.SendAudio(makeSilencePCM(1600))
	time.Sleep(200 * time.Millisecond)
	_ = h.Close()

	for tr := range h.Finals() {
		t.Errorf("unexpected transcript %q", tr.Text)
	}
}

// ─── keywords ────────────────────────────────────────────────────────────────

func TestKeywords_SentAsPrompt(t *testing.T) {
	srv := newInferenceServer(t, "hello Priya")
	p, _ := whisper.New(srv.URL, whisper.WithSilenceThresholdMs(100))
	cfg := mono16k
	cfg.Keywords = []stt.KeywordBoost{{Keyword: "Priya"}, {Keyword: "Tomás"}}
	h := mustStartStream(t, p, cfg)
	defer h.Close()

	_ = h.SendAudio(makeSpeechPCM(1600))
	_ = h.SendAudio(makeSilencePCM(1600))
	waitFinal(t, h)

	if err := h.SetKeywords([]stt.KeywordBoost{{Keyword: "Ada"}}); err != nil {
		t.Fatalf("SetKeywords: %v", err)
	}
	_ = h.SendAudio(makeSpeechPCM(1600))
	_ = h.SendAudio(makeSilencePCM(1600))
	waitFinal(t, h)

	calls := srv.calls()
	if len(calls) != 2 {
		t.Fatalf("inference calls = %d, want 2", len(calls))
	}
	if got, want := calls[0].fields["prompt"], "Meeting with Priya, Tomás."; got != want {
		t.Errorf("first prompt = %q, want %q", got, want)
	}
	if got, want := calls[1].fields["prompt"], "Meeting with Ada."; got != want {
		t.Errorf("second prompt = %q, want %q", got, want)
	}
}

// ─── file transcription ──────────────────────────────────────────────────────

func TestTranscribeFile(t *testing.T) {
	srv := newInferenceServer(t, "full meeting transcript")
	p, _ := whisper.New(srv.URL)

	path := filepath.Join(t.TempDir(), "meeting.wav")
	rec, err := wav.NewRecorder(path, audio.Format{SampleRate: 44100, Channels: 2})
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	_ = rec.Write(audio.Frame{Data: makeSpeechPCM(4410)})
	if _, err := rec.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	text, err := p.TranscribeFile(context.Background(), path)
	if err != nil {
		t.Fatalf("TranscribeFile: %v", err)
	}
	if text != "full meeting transcript" {
		t.Errorf("text = %q", text)
	}
	calls := srv.calls()
	if len(calls) != 1 {
		t.Fatalf("inference calls = %d, want 1", len(calls))
	}
	if calls[0].filename != "meeting.wav" {
		t.Errorf("filename = %q", calls[0].filename)
	}
	if calls[0].format != (audio.Format{SampleRate: 44100, Channels: 2}) {
		t.Errorf("format = %+v", calls[0].format)
	}
}

func TestTranscribeFile_Errors(t *testing.T) {
	srv := newInferenceServer(t, "")
	srv.status = http.StatusServiceUnavailable
	p, _ := whisper.New(srv.URL)

	if _, err := p.TranscribeFile(context.Background(), filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "x.wav")
	f, _ := os.Create(path)
	_ = wav.Write(f, makeSpeechPCM(160), audio.Format{SampleRate: 16000, Channels: 1})
	_ = f.Close()
	if _, err := p.TranscribeFile(context.Background(), path); err == nil {
		t.Error("expected error for HTTP 503")
	}
}
