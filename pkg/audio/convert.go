package audio

import (
	"fmt"
	"log/slog"
	"sync"
)

// Format describes the sample rate and channel count of a PCM stream.
type Format struct {
	SampleRate int
	Channels   int
}

func (f Format) String() string {
	switch {
	case f.Channels == 1:
		return fmt.Sprintf("%dHz mono", f.SampleRate)
	case f.Channels == 2:
		return fmt.Sprintf("%dHz stereo", f.SampleRate)
	default:
		return fmt.Sprintf("%dHz %dch", f.SampleRate, f.Channels)
	}
}

// Converter converts captured frames to the format expected by an STT
// provider. It logs once on the first conversion and once on malformed input.
// Create one per stream.
type Converter struct {
	Target Format

	warnedMismatch sync.Once
	warnedCorrupt  sync.Once
}

// Convert returns frame in the target format. Frames that already match are
// returned unchanged. Frames with an odd byte count are returned with nil
// Data. Channels are mixed down before resampling.
func (c *Converter) Convert(frame Frame) Frame {
	if len(frame.Data)%2 != 0 {
		c.warnedCorrupt.Do(func() {
			slog.Warn("audio converter: odd byte count in PCM data, dropping frame",
				"bytes", len(frame.Data), "seq", frame.Seq)
		})
		frame.Data = nil
		return frame
	}

	src := Format{SampleRate: frame.SampleRate, Channels: frame.Channels}
	if src == c.Target || c.Target.SampleRate <= 0 {
		return frame
	}
	c.warnedMismatch.Do(func() {
		slog.Info("audio converter: converting capture format", "from", src.String(), "to", c.Target.String())
	})

	pcm := frame.Data
	if frame.Channels > 1 && c.Target.Channels == 1 {
		pcm = Downmix(pcm, frame.Channels)
		frame.Channels = 1
	}
	if frame.Channels == 1 && frame.SampleRate != c.Target.SampleRate {
		pcm = ResampleMono16(pcm, frame.SampleRate, c.Target.SampleRate)
		frame.SampleRate = c.Target.SampleRate
	}
	frame.Data = pcm
	return frame
}

// Downmix averages interleaved int16 channels into mono.
func Downmix(pcm []byte, channels int) []byte {
	if channels <= 1 {
		return pcm
	}
	samples := DecodePCM16(pcm)
	frames := len(samples) / channels
	out := make([]int16, frames)
	for i := range frames {
		var sum int32
		for ch := range channels {
			sum += int32(samples[i*channels+ch])
		}
		out[i] = clamp16(sum / int32(channels))
	}
	return EncodePCM16(out)
}

// ResampleMono16 resamples mono int16 PCM from srcRate to dstRate with linear
// interpolation. Invalid rates return the input unchanged.
func ResampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(pcm) < 2 {
		return pcm
	}
	src := DecodePCM16(pcm)
	n := int(int64(len(src)) * int64(dstRate) / int64(srcRate))
	if n == 0 {
		return nil
	}
	out := make([]int16, n)
	step := float64(srcRate) / float64(dstRate)
	for i := range out {
		pos := float64(i) * step
		idx := int(pos)
		frac := pos - float64(idx)
		s0 := src[idx]
		s1 := s0
		if idx+1 < len(src) {
			s1 = src[idx+1]
		}
		out[i] = int16(float64(s0)*(1-frac) + float64(s1)*frac)
	}
	return EncodePCM16(out)
}

func clamp16(v int32) int16 {
	switch {
	case v > 32767:
		return 32767
	case v < -32768:
		return -32768
	}
	return int16(v)
}
