package audio

import (
	"encoding/binary"
	"time"
)

// Frame is one fixed-duration unit of captured audio. A frame is owned by the
// capture loop until it is handed to a consumer, and by the consumer after
// that; nobody else keeps a reference to Data.
type Frame struct {
	// Data is little-endian int16 PCM.
	Data []byte

	// Seq increases by one for every frame read from the device, starting at 1.
	Seq uint64

	// SampleRate in Hz.
	SampleRate int

	// Channels is the number of interleaved channels in Data.
	Channels int

	// Offset is the capture position of the first sample, relative to the
	// start of the recording.
	Offset time.Duration
}

// Duration returns the playback length of the frame.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	samples := len(f.Data) / 2 / f.Channels
	return time.Duration(samples) * time.Second / time.Duration(f.SampleRate)
}

// EncodePCM16 converts samples to little-endian bytes.
func EncodePCM16(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// DecodePCM16 converts little-endian bytes to samples. A trailing odd byte is
// ignored.
func DecodePCM16(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}
