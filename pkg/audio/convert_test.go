package audio_test

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/MrWong99/earshot/pkg/audio"
)

// samplesToBytes converts a slice of int16 samples to little-endian byte representation.
func samplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

func TestPCM16ToFloat32(t *testing.T) {
	pcm := samplesToBytes([]int16{0, 16384, -16384, 32767, -32768})
	got := audio.PCM16ToFloat32(pcm)
	want := []float32{0, 0.5, -0.5, 32767.0 / 32768.0, -1.0}
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1e-6 {
			t.Errorf("sample %d: got %f, want %f", i, got[i], want[i])
		}
	}
}

func TestPCM16ToFloat32_OddTrailingByte(t *testing.T) {
	pcm := append(samplesToBytes([]int16{100, 200}), 0x7f)
	got := audio.PCM16ToFloat32(pcm)
	if len(got) != 2 {
		t.Fatalf("got %d samples, want 2 (trailing byte ignored)", len(got))
	}
}

func TestPCM16ToFloat32Mono_DownmixesStereo(t *testing.T) {
	// Two stereo frames: L=16384,R=0 and L=-16384,R=-16384.
	pcm := samplesToBytes([]int16{16384, 0, -16384, -16384})
	got := audio.PCM16ToFloat32Mono(pcm, 2)
	want := []float32{0.25, -0.5}
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1e-6 {
			t.Errorf("sample %d: got %f, want %f", i, got[i], want[i])
		}
	}
}

func TestFloat32ToPCM16_RoundTrip(t *testing.T) {
	in := []float32{0, 0.5, -0.5, 0.99, -1.0}
	back := audio.PCM16ToFloat32(audio.Float32ToPCM16(in))
	if len(back) != len(in) {
		t.Fatalf("length mismatch: got %d, want %d", len(back), len(in))
	}
	for i := range in {
		if math.Abs(float64(back[i]-in[i])) > 1e-3 {
			t.Errorf("sample %d: got %f, want ~%f", i, back[i], in[i])
		}
	}
}

func TestFloat32ToPCM16_Clamps(t *testing.T) {
	pcm := audio.Float32ToPCM16([]float32{2.0, -2.0})
	s0 := int16(binary.LittleEndian.Uint16(pcm[0:2]))
	s1 := int16(binary.LittleEndian.Uint16(pcm[2:4]))
	if s0 != 32767 {
		t.Errorf("positive overflow: got %d, want 32767", s0)
	}
	if s1 != -32767 {
		t.Errorf("negative overflow: got %d, want -32767", s1)
	}
}

func TestRMS(t *testing.T) {
	tests := []struct {
		name    string
		samples []float32
		want    float64
	}{
		{"empty", nil, 0},
		{"silence", make([]float32, 512), 0},
		{"constant half", []float32{0.5, 0.5, 0.5, 0.5}, 0.5},
		{"alternating sign", []float32{0.5, -0.5, 0.5, -0.5}, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := audio.RMS(tt.samples)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("RMS = %f, want %f", got, tt.want)
			}
		})
	}
}
