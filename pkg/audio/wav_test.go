package audio_test

import (
	"testing"

	"github.com/MrWong99/earshot/pkg/audio"
)

func TestEncodeWAV_ParseWAV(t *testing.T) {
	samples := []float32{0, 0.25, -0.25, 0.5}
	wav := audio.EncodeWAV(samples, 16000)

	info, err := audio.ParseWAV(wav)
	if err != nil {
		t.Fatalf("ParseWAV: unexpected error: %v", err)
	}
	if info.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want 16000", info.SampleRate)
	}
	if info.Channels != 1 {
		t.Errorf("Channels = %d, want 1", info.Channels)
	}
	if got := len(wav) - info.DataOffset; got != len(samples)*2 {
		t.Errorf("payload size = %d bytes, want %d", got, len(samples)*2)
	}
}

func TestParseWAV_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"too short", []byte("RIFF")},
		{"not riff", []byte("XXXXxxxxWAVEfmt ")},
		{"no data chunk", audio.EncodeWAV(nil, 16000)[:20]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := audio.ParseWAV(tt.data); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}
