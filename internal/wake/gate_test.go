package wake

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/earshot/pkg/provider/wake/mock"
)

// frame returns an audio frame of n zero samples. The gate never inspects
// sample values itself, only frame lengths.
func frame(n int) []float32 {
	return make([]float32, n)
}

func TestNewGate_Defaults(t *testing.T) {
	g := NewGate(&mock.Classifier{}, Config{})
	if g.threshold != 0.5 {
		t.Errorf("threshold = %v, want 0.5", g.threshold)
	}
	// 2 s at 16 kHz.
	if g.cooldownSamples != 32000 {
		t.Errorf("cooldownSamples = %d, want 32000", g.cooldownSamples)
	}
	if g.CoolingDown() {
		t.Error("new gate should start with no cooldown active")
	}
}

func TestFeed_NoDetectionBelowThreshold(t *testing.T) {
	classifier := &mock.Classifier{
		Scores: map[string]float64{"hey_jarvis": 0.3, "alexa": 0.1},
	}
	g := NewGate(classifier, Config{Threshold: 0.5})

	label, ok := g.Feed(context.Background(), frame(1280))
	if ok {
		t.Fatalf("Feed() = (%q, true), want no detection", label)
	}
	if classifier.ResetCount() != 0 {
		t.Errorf("classifier reset %d times, want 0 without a detection", classifier.ResetCount())
	}
}

func TestFeed_DetectionAboveThreshold(t *testing.T) {
	classifier := &mock.Classifier{
		Scores: map[string]float64{"hey_jarvis": 0.92, "alexa": 0.05},
	}
	g := NewGate(classifier, Config{Threshold: 0.5})

	label, ok := g.Feed(context.Background(), frame(1280))
	if !ok {
		t.Fatal("Feed() reported no detection, want one")
	}
	if label != "hey_jarvis" {
		t.Errorf("label = %q, want %q", label, "hey_jarvis")
	}
	if classifier.ResetCount() != 1 {
		t.Errorf("classifier reset %d times, want 1 after detection", classifier.ResetCount())
	}
}

func TestFeed_ReportsStrongestLabel(t *testing.T) {
	classifier := &mock.Classifier{
		Scores: map[string]float64{"hey_jarvis": 0.7, "computer": 0.9},
	}
	g := NewGate(classifier, Config{Threshold: 0.5})

	label, ok := g.Feed(context.Background(), frame(1280))
	if !ok || label != "computer" {
		t.Errorf("Feed() = (%q, %v), want (%q, true)", label, ok, "computer")
	}
}

func TestFeed_CooldownSuppressesDetection(t *testing.T) {
	classifier := &mock.Classifier{
		Scores: map[string]float64{"hey_jarvis": 0.99},
	}
	// Cooldown of 3 frames worth of samples.
	g := NewGate(classifier, Config{
		Threshold:  0.5,
		Cooldown:   240 * time.Millisecond,
		SampleRate: 16000,
	})
	ctx := context.Background()

	g.Engage(ctx)
	if !g.CoolingDown() {
		t.Fatal("cooldown should be active after Engage")
	}

	// 3840 cooldown samples: three 1280-sample frames burn through it
	// without consulting the classifier.
	for i := 0; i < 3; i++ {
		if label, ok := g.Feed(ctx, frame(1280)); ok {
			t.Fatalf("frame %d during cooldown: Feed() = (%q, true), want suppressed", i+1, label)
		}
	}
	if classifier.PredictCount() != 0 {
		t.Errorf("classifier consulted %d times during cooldown, want 0", classifier.PredictCount())
	}
	if g.CoolingDown() {
		t.Error("cooldown should have expired after 3 frames")
	}

	// The next frame goes through to the classifier again.
	if _, ok := g.Feed(ctx, frame(1280)); !ok {
		t.Error("Feed() after cooldown expiry should detect again")
	}
}

func TestFeed_SequencedDetection(t *testing.T) {
	quiet := map[string]float64{"hey_jarvis": 0.1}
	hot := map[string]float64{"hey_jarvis": 0.95}
	classifier := &mock.Classifier{
		ScoreSequence: []map[string]float64{quiet, quiet, hot},
		Scores:        quiet,
	}
	g := NewGate(classifier, Config{Threshold: 0.5})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, ok := g.Feed(ctx, frame(1280)); ok {
			t.Fatalf("frame %d: unexpected detection", i+1)
		}
	}
	if _, ok := g.Feed(ctx, frame(1280)); !ok {
		t.Fatal("frame 3: expected detection")
	}
}

func TestFeed_ClassifierErrorDegradesToNoDetection(t *testing.T) {
	classifier := &mock.Classifier{Err: errors.New("sidecar down")}
	g := NewGate(classifier, Config{Threshold: 0.5})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if label, ok := g.Feed(ctx, frame(1280)); ok {
			t.Fatalf("Feed() = (%q, true) despite classifier error", label)
		}
	}
	// Every frame still consults the classifier so detection recovers if
	// the sidecar comes back.
	if classifier.PredictCount() != 5 {
		t.Errorf("classifier consulted %d times, want 5", classifier.PredictCount())
	}
}

func TestEngage_ResetsClassifierAndStartsCooldown(t *testing.T) {
	classifier := &mock.Classifier{Scores: map[string]float64{"hey_jarvis": 0.99}}
	g := NewGate(classifier, Config{Threshold: 0.5})
	ctx := context.Background()

	g.Engage(ctx)
	if classifier.ResetCount() != 1 {
		t.Errorf("classifier reset %d times, want 1", classifier.ResetCount())
	}
	if !g.CoolingDown() {
		t.Error("cooldown should be active after Engage")
	}
}

func TestEngage_ResetErrorIsNonFatal(t *testing.T) {
	classifier := &mock.Classifier{ResetErr: errors.New("reset failed")}
	g := NewGate(classifier, Config{})

	g.Engage(context.Background())
	if !g.CoolingDown() {
		t.Error("cooldown should engage even when the classifier reset fails")
	}
}
