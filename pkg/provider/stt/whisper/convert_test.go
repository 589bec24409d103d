package whisper

import (
	"math"
	"testing"

	"github.com/MrWong99/meetscribe/pkg/audio"
)

func TestPcmToFloat32(t *testing.T) {
	tests := []struct {
		name  string
		value int16
		want  float32
	}{
		{"max positive", 32767, 32767.0 / 32768.0},
		{"max negative", -32768, -1.0},
		{"zero", 0, 0.0},
		{"mid negative", -16384, -0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := pcmToFloat32(audio.EncodePCM16([]int16{tt.value}))
			if len(out) != 1 {
				t.Fatalf("len = %d, want 1", len(out))
			}
			if math.Abs(float64(out[0]-tt.want)) > 1e-6 {
				t.Errorf("pcmToFloat32(%d) = %f, want %f", tt.value, out[0], tt.want)
			}
		})
	}
}

func TestPcmToFloat32_OddByteCount(t *testing.T) {
	if out := pcmToFloat32([]byte{0x00, 0x40, 0xFF}); len(out) != 1 {
		t.Fatalf("len = %d, want 1", len(out))
	}
}

func TestPcmToModelInput_Passthrough(t *testing.T) {
	pcm := audio.EncodePCM16([]int16{100, -200, 300})
	out := pcmToModelInput(pcm, modelSampleRate, 1)
	if len(out) != 3 {
		t.Fatalf("len = %d, want 3", len(out))
	}
	if want := float32(-200) / 32768.0; math.Abs(float64(out[1]-want)) > 1e-6 {
		t.Errorf("out[1] = %f, want %f", out[1], want)
	}
}

func TestPcmToModelInput_StereoDownmix(t *testing.T) {
	pcm := audio.EncodePCM16([]int16{1000, 3000, -2000, -4000})
	out := pcmToModelInput(pcm, modelSampleRate, 2)
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	if want := float32(2000) / 32768.0; math.Abs(float64(out[0]-want)) > 1e-6 {
		t.Errorf("out[0] = %f, want %f", out[0], want)
	}
	if want := float32(-3000) / 32768.0; math.Abs(float64(out[1]-want)) > 1e-6 {
		t.Errorf("out[1] = %f, want %f", out[1], want)
	}
}

func TestPcmToModelInput_Resamples(t *testing.T) {
	pcm := audio.EncodePCM16(make([]int16, 48000)) // 1 s at 48 kHz
	out := pcmToModelInput(pcm, 48000, 1)
	if len(out) != modelSampleRate {
		t.Errorf("len = %d, want %d", len(out), modelSampleRate)
	}
}
