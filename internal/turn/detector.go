// Package turn implements end-of-utterance detection over a stream of audio
// frames.
//
// The [Detector] is a pure frame-count state machine: it classifies each
// frame as silent or loud by RMS amplitude, tracks the length of the current
// silence run, and reports when a turn should end. It holds no reference to
// session state and performs no I/O, so it can be driven synchronously from
// the per-frame path.
//
// A Detector is not safe for concurrent use; each audio stream owns its own
// instance.
package turn

import (
	"math"
	"time"

	"github.com/MrWong99/earshot/pkg/audio"
)

// Verdict is the per-frame decision returned by [Detector.Observe].
type Verdict int

const (
	// Continue indicates the turn is still in progress.
	Continue Verdict = iota

	// EndOfTurn indicates the speaker has gone silent for long enough that
	// the utterance is considered complete.
	EndOfTurn

	// Timeout indicates the hard cap on buffered frames was reached. The
	// turn ends regardless of silence state.
	Timeout
)

// String returns the human-readable name of the verdict.
func (v Verdict) String() string {
	switch v {
	case Continue:
		return "continue"
	case EndOfTurn:
		return "end-of-turn"
	case Timeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Config holds the tuning knobs for a [Detector]. All thresholds are frame
// counts; callers normally derive them from configured durations with
// [FrameCount].
type Config struct {
	// SilenceRMS is the root-mean-square amplitude below which a frame is
	// classified as silence. Samples are float32 in [-1, 1]. Default: 0.005.
	SilenceRMS float64

	// MinSpeechFrames is the number of frames that must be observed before
	// silence starts counting towards end-of-turn. This keeps very short
	// utterances from being truncated by their own leading pause.
	// Default: 5.
	MinSpeechFrames int

	// EndSilenceFrames is the number of consecutive silent frames that ends
	// the turn. Default: 25 (2 s at 80 ms frames).
	EndSilenceFrames int

	// MaxFrames caps the total number of frames per turn; reaching it forces
	// end-of-turn regardless of silence state, bounding worst-case listening
	// time. Zero or negative keeps the default; use a very large value to
	// effectively disable the cap. Default: 375 (30 s at 80 ms frames).
	MaxFrames int
}

// Detector decides when a spoken turn has ended.
type Detector struct {
	cfg        Config
	frames     int
	silenceRun int
}

// NewDetector creates a [Detector] with the supplied configuration.
// Zero-value config fields are replaced with sensible defaults.
func NewDetector(cfg Config) *Detector {
	if cfg.SilenceRMS <= 0 {
		cfg.SilenceRMS = 0.005
	}
	if cfg.MinSpeechFrames <= 0 {
		cfg.MinSpeechFrames = 5
	}
	if cfg.EndSilenceFrames <= 0 {
		cfg.EndSilenceFrames = 25
	}
	if cfg.MaxFrames <= 0 {
		cfg.MaxFrames = 375
	}
	return &Detector{cfg: cfg}
}

// Observe feeds one audio frame into the detector and returns exactly one
// verdict for it. The timeout condition is checked first, so if the hard cap
// and the silence threshold are reached on the same frame only [Timeout] is
// reported.
//
// After a terminal verdict the caller must call [Detector.Reset] before
// observing frames of a new turn.
func (d *Detector) Observe(frame []float32) Verdict {
	d.frames++

	if d.frames >= d.cfg.MaxFrames {
		return Timeout
	}

	if audio.RMS(frame) >= d.cfg.SilenceRMS {
		// Loud frame: any accumulated silence run is broken.
		d.silenceRun = 0
		return Continue
	}

	// Leading silence before the minimum buffer is filled does not count,
	// otherwise a pause before speaking would end the turn immediately.
	if d.frames <= d.cfg.MinSpeechFrames {
		return Continue
	}

	d.silenceRun++
	if d.silenceRun >= d.cfg.EndSilenceFrames {
		return EndOfTurn
	}
	return Continue
}

// Reset clears all accumulated state so the detector can track a new turn.
func (d *Detector) Reset() {
	d.frames = 0
	d.silenceRun = 0
}

// Frames returns the number of frames observed since the last reset.
func (d *Detector) Frames() int {
	return d.frames
}

// FrameCount converts a duration into the number of frames that cover it,
// given the stream's sample rate and samples per frame. The result is rounded
// up so at least the full duration elapses. Returns 0 if any argument is
// non-positive, which callers treat as "use the default".
func FrameCount(d time.Duration, sampleRate, frameSize int) int {
	if d <= 0 || sampleRate <= 0 || frameSize <= 0 {
		return 0
	}
	samples := d.Seconds() * float64(sampleRate)
	return int(math.Ceil(samples / float64(frameSize)))
}
