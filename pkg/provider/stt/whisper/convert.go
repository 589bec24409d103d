package whisper

import "github.com/MrWong99/meetscribe/pkg/audio"

// pcmToFloat32 converts 16-bit little-endian PCM to float32 samples in
// [-1.0, 1.0). A trailing odd byte is ignored.
func pcmToFloat32(pcm []byte) []float32 {
	samples := audio.DecodePCM16(pcm)
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768.0
	}
	return out
}

// pcmToModelInput downmixes interleaved PCM to mono, resamples it to 16 kHz,
// and normalises it to float32 as whisper.cpp expects.
func pcmToModelInput(pcm []byte, sampleRate, channels int) []float32 {
	mono := audio.Downmix(pcm, channels)
	if sampleRate > 0 && sampleRate != modelSampleRate {
		mono = audio.ResampleMono16(mono, sampleRate, modelSampleRate)
	}
	return pcmToFloat32(mono)
}
