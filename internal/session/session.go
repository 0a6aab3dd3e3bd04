// Package session implements the per-connection turn cycle and the
// process-wide registry of live connections.
//
// A [Session] owns everything one client conversation needs: the audio
// buffer, the current [State], and exclusive handles to the wake gate, turn
// detector, transcriber, backend pipeline, and synthesis chain. One goroutine
// drives the session through [Session.Run]; all other goroutines (the
// transport reader, the broadcaster) communicate with it exclusively through
// channels, never by touching its state.
//
// The wake→listen→process→speak cycle always funnels back through one exit
// routine that clears the buffer, re-engages the wake gate's cooldown, and
// waits out the settle delay — no matter whether the turn succeeded, was too
// quiet, produced no transcript, or failed at the backend. A failed turn can
// therefore never leave a session stuck or re-triggerable by its own reply
// audio.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/earshot/internal/backend"
	"github.com/MrWong99/earshot/internal/expression"
	"github.com/MrWong99/earshot/internal/observe"
	"github.com/MrWong99/earshot/internal/resilience"
	"github.com/MrWong99/earshot/internal/transcript"
	"github.com/MrWong99/earshot/internal/turn"
	"github.com/MrWong99/earshot/internal/wake"
	"github.com/MrWong99/earshot/pkg/audio"
	"github.com/MrWong99/earshot/pkg/provider/stt"
	"github.com/MrWong99/earshot/pkg/wire"
)

// State is the session's position in the turn cycle.
type State int

const (
	// StateWaiting means the session is armed and scanning frames for the
	// wake phrase.
	StateWaiting State = iota

	// StateListening means a turn is open and frames are being buffered.
	StateListening

	// StateProcessing means the captured utterance is being transcribed and
	// answered.
	StateProcessing

	// StateSpeaking means the reply is being synthesized and delivered.
	StateSpeaking
)

// Wire returns the state's representation in server messages.
func (s State) Wire() string {
	switch s {
	case StateListening:
		return wire.StateListening
	case StateProcessing:
		return wire.StateProcessing
	case StateSpeaking:
		return wire.StateSpeaking
	default:
		return wire.StateWaiting
	}
}

// String returns the wire name, which doubles as the log name.
func (s State) String() string { return s.Wire() }

// Conn is the transport surface a session writes to. The WebSocket layer
// implements it; tests substitute a recorder.
type Conn interface {
	// SendJSON marshals v and delivers it as one text message.
	SendJSON(ctx context.Context, v any) error

	// SendAudio delivers one complete audio clip as one binary message.
	SendAudio(ctx context.Context, clip []byte) error
}

// minTranscriptLen is the minimum length, in runes, a normalised transcript
// must have to be worth sending to the backend.
const minTranscriptLen = 2

// replySnippetLen caps the reply excerpt attached to the final waiting
// notification.
const replySnippetLen = 50

// Turn outcomes as they appear in metrics and logs.
const (
	outcomeSuccess      = "success"
	outcomeQuiet        = "quiet"
	outcomeNoTranscript = "no_transcript"
	outcomeBackendError = "backend_error"
)

// Config carries the collaborators and tunables for one [Session]. Every
// collaborator is constructed before the session starts; a session never
// lazily initialises shared state.
type Config struct {
	// Conn is the transport the session writes to. Required.
	Conn Conn

	// Gate detects the wake phrase. Nil disables wake detection; the session
	// then only listens on explicit start_listening / wake_trigger controls.
	Gate *wake.Gate

	// Detector decides end-of-turn. Required.
	Detector *turn.Detector

	// Transcriber converts a captured utterance into text. Required.
	Transcriber stt.Provider

	// Synthesizer is the TTS fallback chain. Required (it may be empty, in
	// which case replies are text-only).
	Synthesizer *resilience.TTSFallback

	// Backend performs the per-turn chat exchange. Required.
	Backend *backend.Pipeline

	// Normalizer cleans raw transcripts. Nil skips normalisation.
	Normalizer *transcript.Normalizer

	// Metrics receives per-turn telemetry. Nil uses the package default.
	Metrics *observe.Metrics

	// SampleRate of the inbound audio in Hz.
	SampleRate int

	// QuietRMS is the whole-utterance RMS below which transcription is
	// skipped. Default: 0.01.
	QuietRMS float64

	// Settle is the pause inside the exit routine before the session
	// re-arms, letting played-back audio decay. Default: 1500ms.
	Settle time.Duration
}

// event is one inbound transport message. Exactly one field is set.
type event struct {
	frame   []float32
	control *wire.Control
}

// Session is one live client conversation. All mutable fields are owned by
// the goroutine running [Session.Run]; the exported methods are the only safe
// way in from outside.
type Session struct {
	// ID uniquely identifies the session for the registry and logs.
	ID string

	conn        Conn
	gate        *wake.Gate
	detector    *turn.Detector
	transcriber stt.Provider
	synthesizer *resilience.TTSFallback
	backend     *backend.Pipeline
	normalizer  *transcript.Normalizer
	metrics     *observe.Metrics
	log         *slog.Logger

	sampleRate int
	quietRMS   float64
	settle     time.Duration

	state  State
	buffer [][]float32

	events  chan event
	notices chan wire.Notification
	closed  chan struct{}

	// framesDropped is written by the transport reader goroutine and read by
	// the session goroutine, so it must stay atomic.
	framesDropped atomic.Int64
}

// New creates a [Session] with a fresh identifier. The zero values of
// QuietRMS and Settle are replaced with defaults.
func New(cfg Config) *Session {
	if cfg.QuietRMS <= 0 {
		cfg.QuietRMS = 0.01
	}
	if cfg.Settle <= 0 {
		cfg.Settle = 1500 * time.Millisecond
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	id := uuid.NewString()
	return &Session{
		ID:          id,
		conn:        cfg.Conn,
		gate:        cfg.Gate,
		detector:    cfg.Detector,
		transcriber: cfg.Transcriber,
		synthesizer: cfg.Synthesizer,
		backend:     cfg.Backend,
		normalizer:  cfg.Normalizer,
		metrics:     cfg.Metrics,
		log:         slog.With("component", "session", "session_id", id),
		sampleRate:  cfg.SampleRate,
		quietRMS:    cfg.QuietRMS,
		settle:      cfg.Settle,
		state:       StateWaiting,
		events:      make(chan event, 64),
		notices:     make(chan wire.Notification, 8),
		closed:      make(chan struct{}),
	}
}

// State returns the session's current position in the turn cycle. It is only
// meaningful from the goroutine running the session; other callers should
// treat it as a snapshot.
func (s *Session) State() State { return s.state }

// HandleAudio enqueues one decoded audio frame. It never blocks: while the
// session is busy with a turn (or the client outpaces processing) surplus
// frames are dropped, matching the contract that nothing is buffered during
// Processing/Speaking.
func (s *Session) HandleAudio(frame []float32) {
	select {
	case s.events <- event{frame: frame}:
	case <-s.closed:
	default:
		s.framesDropped.Add(1)
	}
}

// HandleControl enqueues one control message. Unlike audio frames, control
// messages are never dropped; the call blocks until the session accepts it or
// shuts down.
func (s *Session) HandleControl(c wire.Control) {
	select {
	case s.events <- event{control: &c}:
	case <-s.closed:
	}
}

// Notify hands the session an out-of-band notification. It never blocks;
// false means the session's notification queue was full or the session is
// gone, and the caller should count the delivery as failed.
func (s *Session) Notify(n wire.Notification) bool {
	select {
	case s.notices <- n:
		return true
	case <-s.closed:
		return false
	default:
		return false
	}
}

// Run drives the session until ctx is cancelled or the connection fails.
// Inbound messages are processed strictly in arrival order; long-running
// turn work happens inline, so at most one transcription/backend/synthesis
// operation is ever in flight for this session.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.closed)

	if err := s.sendJSON(ctx, wire.NewState(wire.StateWaiting, "Ready")); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			s.log.Debug("session context cancelled", "frames_dropped", s.framesDropped.Load())
			return ctx.Err()

		case ev := <-s.events:
			var err error
			if ev.control != nil {
				err = s.handleControl(ctx, *ev.control)
			} else {
				err = s.handleFrame(ctx, ev.frame)
			}
			if err != nil {
				return err
			}

		case n := <-s.notices:
			if err := s.handleNotification(ctx, n); err != nil {
				return err
			}
		}
	}
}

// handleFrame performs the per-frame transition for the current state. It is
// synchronous and, outside of a turn, does no blocking work beyond the wake
// classifier's single-frame scoring.
func (s *Session) handleFrame(ctx context.Context, frame []float32) error {
	switch s.state {
	case StateWaiting:
		if s.gate == nil {
			return nil
		}
		label, ok := s.gate.Feed(ctx, frame)
		if !ok {
			return nil
		}
		s.metrics.RecordWakeDetection(ctx, label)
		s.log.Debug("wake phrase detected", "label", label)
		return s.enterListening(ctx)

	case StateListening:
		s.buffer = append(s.buffer, frame)
		switch s.detector.Observe(frame) {
		case turn.EndOfTurn:
			return s.processTurn(ctx, false)
		case turn.Timeout:
			s.log.Debug("listening hard cap reached, forcing end of turn", "frames", len(s.buffer))
			return s.processTurn(ctx, true)
		}
		return nil

	default:
		// Frames arriving while a turn is processed are discarded; the next
		// turn starts from a clean buffer.
		return nil
	}
}

// handleControl reacts to one client control message.
func (s *Session) handleControl(ctx context.Context, c wire.Control) error {
	switch c.Type {
	case wire.TypePing:
		return s.sendJSON(ctx, wire.NewPong())

	case wire.TypeStartListening, wire.TypeWakeTrigger:
		if s.state != StateWaiting {
			return nil
		}
		s.log.Debug("listening started by control message", "control", c.Type)
		return s.enterListening(ctx)

	case wire.TypeStopListening:
		if s.state != StateListening {
			return nil
		}
		return s.processTurn(ctx, true)

	default:
		s.log.Warn("unknown control message", "control", c.Type)
		return nil
	}
}

// enterListening opens a new turn: fresh buffer, fresh detector run.
func (s *Session) enterListening(ctx context.Context) error {
	s.buffer = s.buffer[:0]
	s.detector.Reset()
	s.state = StateListening
	return s.sendJSON(ctx, wire.NewState(wire.StateListening, "I'm listening..."))
}

// processTurn runs the captured utterance through transcription, the backend
// exchange, and synthesis. Every branch, success or failure, leaves through
// exitTurn.
func (s *Session) processTurn(ctx context.Context, forced bool) error {
	s.state = StateProcessing
	if err := s.sendJSON(ctx, wire.NewState(wire.StateProcessing, "Thinking...")); err != nil {
		return err
	}

	utterance := s.utterance()
	s.log.Debug("turn captured",
		"frames", len(s.buffer),
		"samples", len(utterance),
		"forced", forced,
	)

	// Whole-utterance quiet check: a turn triggered by noise carries no
	// speech worth transcribing.
	if audio.RMS(utterance) < s.quietRMS {
		s.metrics.RecordTurn(ctx, outcomeQuiet)
		return s.exitTurn(ctx, "Didn't hear anything")
	}

	text, err := s.transcribe(ctx, utterance)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// A missing or crashed STT engine degrades to the no-transcript
		// outcome rather than tearing the session down.
		s.log.Warn("transcription failed", "error", err)
		text = ""
	}
	if s.normalizer != nil {
		text = s.normalizer.Normalize(text)
	}
	if len([]rune(text)) < minTranscriptLen {
		s.metrics.RecordTurn(ctx, outcomeNoTranscript)
		return s.exitTurn(ctx, "Didn't catch that")
	}
	s.log.Info("utterance transcribed", "text", text)

	reply, err := s.ask(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.log.Error("backend query failed", "error", err)
		s.metrics.RecordTurn(ctx, outcomeBackendError)
		if sendErr := s.sendJSON(ctx, wire.NewError("Sorry, I couldn't reach my brain. Try again in a moment.")); sendErr != nil {
			return sendErr
		}
		return s.exitTurn(ctx, "")
	}

	if err := s.sendJSON(ctx, wire.NewResponse(text, reply, expression.Detect(reply))); err != nil {
		return err
	}

	s.state = StateSpeaking
	if err := s.sendJSON(ctx, wire.NewState(wire.StateSpeaking, "")); err != nil {
		return err
	}
	if err := s.speak(ctx, reply); err != nil {
		return err
	}

	s.metrics.RecordTurn(ctx, outcomeSuccess)
	return s.exitTurn(ctx, snippet(reply))
}

// handleNotification delivers one out-of-band notification. An idle session
// asked to speak drives a full Speaking→Waiting transition inline, reusing
// the same exit contract as a normal turn.
func (s *Session) handleNotification(ctx context.Context, n wire.Notification) error {
	if err := s.sendJSON(ctx, n); err != nil {
		return err
	}
	if !n.Speak || s.state != StateWaiting {
		return nil
	}

	s.state = StateSpeaking
	if err := s.sendJSON(ctx, wire.NewState(wire.StateSpeaking, "")); err != nil {
		return err
	}
	if err := s.speak(ctx, n.Announcement()); err != nil {
		return err
	}
	return s.exitTurn(ctx, "")
}

// exitTurn is the single exit routine every turn completion funnels through:
// clear the buffer, reset the detector, re-engage the wake gate's cooldown,
// wait out the settle delay, and announce the waiting state. Failure paths
// call it exactly like success paths, so the cooldown invariant holds by
// construction.
func (s *Session) exitTurn(ctx context.Context, message string) error {
	s.buffer = s.buffer[:0]
	s.detector.Reset()
	if s.gate != nil {
		s.gate.Engage(ctx)
	}

	if s.settle > 0 {
		timer := time.NewTimer(s.settle)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}

	s.state = StateWaiting
	return s.sendJSON(ctx, wire.NewState(wire.StateWaiting, message))
}

// transcribe converts the utterance to text and records the STT latency.
func (s *Session) transcribe(ctx context.Context, utterance []float32) (string, error) {
	start := time.Now()
	text, err := s.transcriber.Transcribe(ctx, utterance, s.sampleRate)
	s.metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
	s.log.Debug("transcription finished", "duration", time.Since(start), "error", err)
	return text, err
}

// ask performs the backend exchange, emitting keepalives while it waits.
func (s *Session) ask(ctx context.Context, text string) (string, error) {
	start := time.Now()
	reply, err := s.backend.Ask(ctx, text, func() {
		s.metrics.Keepalives.Add(ctx, 1)
		if sendErr := s.sendJSON(ctx, wire.NewKeepalive()); sendErr != nil {
			s.log.Debug("keepalive send failed", "error", sendErr)
		}
	})
	s.metrics.BackendDuration.Record(ctx, time.Since(start).Seconds())
	s.log.Debug("backend exchange finished", "duration", time.Since(start), "error", err)
	return reply, err
}

// speak synthesizes text through the fallback chain and delivers the clip.
// An empty clip means every provider failed; the reply has already been
// delivered as text, so that is a degraded outcome, not an error.
func (s *Session) speak(ctx context.Context, text string) error {
	start := time.Now()
	clip := s.synthesizer.Synthesize(ctx, text)
	s.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
	s.log.Debug("synthesis finished", "duration", time.Since(start), "bytes", len(clip))

	if len(clip) == 0 {
		return nil
	}
	return s.conn.SendAudio(ctx, clip)
}

// utterance concatenates the buffered frames into one sample slice.
func (s *Session) utterance() []float32 {
	total := 0
	for _, f := range s.buffer {
		total += len(f)
	}
	out := make([]float32, 0, total)
	for _, f := range s.buffer {
		out = append(out, f...)
	}
	return out
}

// sendJSON delivers one server message, wrapping transport failures so the
// run loop tears the session down.
func (s *Session) sendJSON(ctx context.Context, v any) error {
	if err := s.conn.SendJSON(ctx, v); err != nil {
		return fmt.Errorf("session %s: send: %w", s.ID, err)
	}
	return nil
}

// snippet shortens a reply for the waiting-state notification.
func snippet(reply string) string {
	runes := []rune(reply)
	if len(runes) <= replySnippetLen {
		return reply
	}
	return string(runes[:replySnippetLen]) + "…"
}
