// Package wav persists captured audio as 16-bit PCM WAV files using
// github.com/youpy/go-wav.
//
// A WAV header carries the total sample count, which is unknown while a meeting
// is still recording. [Recorder] therefore spools raw PCM to a sidecar file
// during capture and writes the final WAV in [Recorder.Finalize].
package wav

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	gowav "github.com/youpy/go-wav"

	"github.com/MrWong99/meetscribe/pkg/audio"
)

const (
	bitsPerSample = 16

	// spoolExt is appended to the WAV path for the raw PCM spool file.
	spoolExt = ".pcm"

	// chunkFrames is the number of sample frames converted per write.
	chunkFrames = 4096
)

// ErrFinalized is returned by [Recorder.Write] after the recorder was
// finalized or discarded.
var ErrFinalized = errors.New("wav: recorder already finalized")

// Recorder appends captured frames to disk and produces a WAV file on
// [Recorder.Finalize]. It is safe for concurrent use, although the capture
// loop is normally the only writer.
type Recorder struct {
	path   string
	format audio.Format

	mu     sync.Mutex
	spool  *os.File
	w      *bufio.Writer
	bytes  int64
	closed bool
}

// NewRecorder creates dir if necessary and opens the spool for path. The
// format must be mono or stereo.
func NewRecorder(path string, format audio.Format) (*Recorder, error) {
	if format.Channels < 1 || format.Channels > 2 {
		return nil, fmt.Errorf("wav: unsupported channel count %d", format.Channels)
	}
	if format.SampleRate <= 0 {
		return nil, fmt.Errorf("wav: invalid sample rate %d", format.SampleRate)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("wav: create recording dir: %w", err)
	}
	f, err := os.Create(path + spoolExt)
	if err != nil {
		return nil, fmt.Errorf("wav: create spool: %w", err)
	}
	return &Recorder{
		path:   path,
		format: format,
		spool:  f,
		w:      bufio.NewWriterSize(f, 64*1024),
	}, nil
}

// Path returns the location the WAV file is written to on Finalize.
func (r *Recorder) Path() string { return r.path }

// Write appends the PCM data of frame.
func (r *Recorder) Write(frame audio.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrFinalized
	}
	n, err := r.w.Write(frame.Data)
	r.bytes += int64(n)
	if err != nil {
		return fmt.Errorf("wav: write spool: %w", err)
	}
	return nil
}

// Duration returns the length of audio written so far.
func (r *Recorder) Duration() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return float64(r.bytes/2/int64(r.format.Channels)) / float64(r.format.SampleRate)
}

// Finalize converts the spool into the WAV file at [Recorder.Path] and
// removes the spool. It returns the WAV path.
func (r *Recorder) Finalize() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return "", ErrFinalized
	}
	r.closed = true

	if err := r.w.Flush(); err != nil {
		_ = r.spool.Close()
		return "", fmt.Errorf("wav: flush spool: %w", err)
	}
	if _, err := r.spool.Seek(0, io.SeekStart); err != nil {
		_ = r.spool.Close()
		return "", fmt.Errorf("wav: rewind spool: %w", err)
	}
	defer func() {
		_ = r.spool.Close()
		_ = os.Remove(r.spool.Name())
	}()

	out, err := os.Create(r.path)
	if err != nil {
		return "", fmt.Errorf("wav: create %q: %w", r.path, err)
	}
	if err := encode(out, bufio.NewReader(r.spool), r.bytes, r.format); err != nil {
		_ = out.Close()
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("wav: close %q: %w", r.path, err)
	}
	return r.path, nil
}

// Discard closes and removes the spool without producing a WAV file.
func (r *Recorder) Discard() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	_ = r.spool.Close()
	return os.Remove(r.spool.Name())
}

// encode writes size bytes of interleaved PCM16 from pcm to w as a WAV file.
func encode(w io.Writer, pcm io.Reader, size int64, format audio.Format) error {
	frameBytes := int64(2 * format.Channels)
	frames := size / frameBytes
	ww := gowav.NewWriter(w, uint32(frames), uint16(format.Channels), uint32(format.SampleRate), bitsPerSample)

	buf := make([]byte, chunkFrames*frameBytes)
	samples := make([]gowav.Sample, 0, chunkFrames)
	for remaining := frames; remaining > 0; {
		n := min(remaining, chunkFrames)
		chunk := buf[:n*frameBytes]
		if _, err := io.ReadFull(pcm, chunk); err != nil {
			return fmt.Errorf("wav: read spool: %w", err)
		}
		pcm16 := audio.DecodePCM16(chunk)
		samples = samples[:0]
		for i := int64(0); i < n; i++ {
			var s gowav.Sample
			for ch := range format.Channels {
				s.Values[ch] = int(pcm16[int(i)*format.Channels+ch])
			}
			samples = append(samples, s)
		}
		if err := ww.WriteSamples(samples); err != nil {
			return fmt.Errorf("wav: write samples: %w", err)
		}
		remaining -= n
	}
	return nil
}

// Write encodes interleaved PCM16 samples as a complete WAV file to w.
func Write(w io.Writer, pcm []byte, format audio.Format) error {
	if format.Channels < 1 || format.Channels > 2 {
		return fmt.Errorf("wav: unsupported channel count %d", format.Channels)
	}
	return encode(w, bytes.NewReader(pcm), int64(len(pcm)), format)
}

// ReadFile decodes the WAV file at path into interleaved PCM16 bytes.
func ReadFile(path string) ([]byte, audio.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, audio.Format{}, fmt.Errorf("wav: open %q: %w", path, err)
	}
	defer f.Close()

	r := gowav.NewReader(f)
	wf, err := r.Format()
	if err != nil {
		return nil, audio.Format{}, fmt.Errorf("wav: read format of %q: %w", path, err)
	}
	if wf.BitsPerSample != bitsPerSample {
		return nil, audio.Format{}, fmt.Errorf("wav: %q has %d bits per sample, want %d", path, wf.BitsPerSample, bitsPerSample)
	}
	format := audio.Format{SampleRate: int(wf.SampleRate), Channels: int(wf.NumChannels)}

	var pcm []int16
	for {
		samples, err := r.ReadSamples(chunkFrames)
		for _, s := range samples {
			for ch := range format.Channels {
				pcm = append(pcm, int16(r.IntValue(s, uint(ch))))
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, audio.Format{}, fmt.Errorf("wav: read samples of %q: %w", path, err)
		}
	}
	return audio.EncodePCM16(pcm), format, nil
}
