package whisper

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/meetscribe/pkg/audio"
	"github.com/MrWong99/meetscribe/pkg/provider/stt"
)

const (
	// defaultRMSThreshold is the root-mean-square energy level (in 16-bit PCM
	// units) below which audio is considered silent. 300 is near-silence.
	defaultRMSThreshold = 300.0

	defaultLanguage            = "en"
	defaultSampleRate          = 16000
	defaultSilenceThresholdMs  = 500
	defaultMaxBufferDurationMs = 10_000

	// finalFlushTimeout bounds the inference run for audio still buffered
	// when a session closes.
	finalFlushTimeout = 30 * time.Second
)

// errSessionClosed is returned by SendAudio after Close.
var errSessionClosed = errors.New("whisper: session is closed")

// inferFunc transcribes one utterance of PCM audio. prompt carries the
// current keyword hints and may be empty.
type inferFunc func(ctx context.Context, pcm []byte, prompt string) (string, error)

// segmentParams configures the silence-based utterance segmentation shared by
// the HTTP and native providers.
type segmentParams struct {
	sampleRate          int
	channels            int
	silenceThresholdMs  int
	maxBufferDurationMs int
}

// segmentSession buffers incoming PCM, cuts it into utterances at pauses, and
// runs infer on each utterance. whisper.cpp is a batch engine, so every
// committed utterance is emitted as a partial and a final with the same text.
// Buffer state is confined to the processLoop goroutine.
type segmentSession struct {
	params segmentParams
	infer  inferFunc

	audioCh  chan []byte
	partials chan stt.Transcript
	finals   chan stt.Transcript

	kwMu   sync.RWMutex
	prompt string

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func newSegmentSession(ctx context.Context, params segmentParams, keywords []stt.KeywordBoost, infer inferFunc) *segmentSession {
	s := &segmentSession{
		params:   params,
		infer:    infer,
		audioCh:  make(chan []byte, 256),
		partials: make(chan stt.Transcript, 64),
		finals:   make(chan stt.Transcript, 64),
		prompt:   keywordPrompt(keywords),
		done:     make(chan struct{}),
	}
	s.wg.Add(1)
	go s.processLoop(ctx)
	return s
}

// SendAudio queues a chunk of 16-bit little-endian PCM for segmentation.
func (s *segmentSession) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return errSessionClosed
	default:
	}
	select {
	case s.audioCh <- chunk:
		return nil
	case <-s.done:
		return errSessionClosed
	}
}

func (s *segmentSession) Partials() <-chan stt.Transcript { return s.partials }

func (s *segmentSession) Finals() <-chan stt.Transcript { return s.finals }

// SetKeywords replaces the initial prompt used for subsequent utterances.
// whisper.cpp has no keyword boosting, but names mentioned in the prompt are
// strongly preferred by the decoder.
func (s *segmentSession) SetKeywords(keywords []stt.KeywordBoost) error {
	s.kwMu.Lock()
	s.prompt = keywordPrompt(keywords)
	s.kwMu.Unlock()
	return nil
}

// Close flushes buffered speech, closes Partials and Finals, and waits for the
// processing goroutine to exit. Calling Close more than once is safe.
func (s *segmentSession) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
	return nil
}

func (s *segmentSession) currentPrompt() string {
	s.kwMu.RLock()
	defer s.kwMu.RUnlock()
	return s.prompt
}

func (s *segmentSession) processLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.partials)
	defer close(s.finals)

	var (
		buffer    []byte // PCM of the current utterance
		hadSpeech bool   // true once any chunk above the threshold was buffered
		silenceMs int    // consecutive silence after speech
	)

	bytesPerMs := s.params.sampleRate * s.params.channels * 2 / 1000
	if bytesPerMs <= 0 {
		bytesPerMs = 32 // 16 kHz mono
	}
	maxBufferBytes := s.params.maxBufferDurationMs * bytesPerMs

	flush := func(flushCtx context.Context) {
		pcm, speech := buffer, hadSpeech
		buffer, hadSpeech, silenceMs = nil, false, 0
		if len(pcm) == 0 || !speech {
			return
		}

		text, err := s.infer(flushCtx, pcm, s.currentPrompt())
		if err != nil {
			slog.Warn("whisper: inference failed", "bytes", len(pcm), "err", err)
			return
		}
		if text = strings.TrimSpace(text); text == "" {
			return
		}

		// Buffered channels; skip rather than deadlock if a reader stalls.
		select {
		case s.partials <- stt.Transcript{Text: text}:
		default:
		}
		select {
		case s.finals <- stt.Transcript{Text: text, IsFinal: true}:
		default:
		}
	}

	finalFlush := func() {
		fc, cancel := context.WithTimeout(context.Background(), finalFlushTimeout)
		defer cancel()
		flush(fc)
	}

	for {
		select {
		case <-ctx.Done():
			finalFlush()
			return

		case <-s.done:
			finalFlush()
			return

		case chunk := <-s.audioCh:
			chunkMs := chunkDurationMs(chunk, s.params.sampleRate, s.params.channels)
			if computeRMS(chunk) < defaultRMSThreshold {
				// Leading silence before any speech is discarded.
				if !hadSpeech {
					continue
				}
				silenceMs += chunkMs
				buffer = append(buffer, chunk...)
				if silenceMs >= s.params.silenceThresholdMs {
					flush(ctx)
				}
				continue
			}

			hadSpeech = true
			silenceMs = 0
			buffer = append(buffer, chunk...)
			if maxBufferBytes > 0 && len(buffer) >= maxBufferBytes {
				flush(ctx)
			}
		}
	}
}

// keywordPrompt renders keyword hints as a whisper initial prompt.
func keywordPrompt(keywords []stt.KeywordBoost) string {
	if len(keywords) == 0 {
		return ""
	}
	names := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if k := strings.TrimSpace(kw.Keyword); k != "" {
			names = append(names, k)
		}
	}
	if len(names) == 0 {
		return ""
	}
	return "Meeting with " + strings.Join(names, ", ") + "."
}

// computeRMS returns the root-mean-square energy of 16-bit PCM in sample units
// (0–32767). Returns 0 for buffers shorter than one sample.
func computeRMS(pcm []byte) float64 {
	samples := audio.DecodePCM16(pcm)
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// chunkDurationMs returns the duration of a PCM chunk in milliseconds. Returns
// 0 for invalid formats.
func chunkDurationMs(chunk []byte, sampleRate, channels int) int {
	if sampleRate <= 0 || channels <= 0 {
		return 0
	}
	return len(chunk) * 1000 / (sampleRate * channels * 2)
}

var _ stt.SessionHandle = (*segmentSession)(nil)
