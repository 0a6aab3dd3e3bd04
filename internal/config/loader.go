package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"wake": {"openwake"},
	"stt":  {"whisper", "whisper-native"},
	"tts":  {"elevenlabs", "openai", "coqui"},
	"chat": {"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, fmt.Errorf("server.tls requires both cert_file and key_file"))
		}
	}

	// Audio
	if cfg.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must be positive", cfg.Audio.SampleRate))
	}
	if cfg.Audio.FrameSize <= 0 {
		errs = append(errs, fmt.Errorf("audio.frame_size %d must be positive", cfg.Audio.FrameSize))
	}

	// Turn detection
	if cfg.Turn.SilenceRMS <= 0 || cfg.Turn.SilenceRMS >= 1 {
		errs = append(errs, fmt.Errorf("turn.silence_rms %g is out of range (0, 1)", cfg.Turn.SilenceRMS))
	}
	if cfg.Turn.QuietRMS <= 0 || cfg.Turn.QuietRMS >= 1 {
		errs = append(errs, fmt.Errorf("turn.quiet_rms %g is out of range (0, 1)", cfg.Turn.QuietRMS))
	}
	if cfg.Turn.EndSilence <= 0 {
		errs = append(errs, fmt.Errorf("turn.end_silence must be positive"))
	}
	if cfg.Turn.MaxUtterance.Std() <= cfg.Turn.EndSilence.Std() {
		errs = append(errs, fmt.Errorf("turn.max_utterance (%s) must exceed turn.end_silence (%s)",
			cfg.Turn.MaxUtterance.Std(), cfg.Turn.EndSilence.Std()))
	}

	// Wake gate
	if cfg.Wake.Threshold <= 0 || cfg.Wake.Threshold > 1 {
		errs = append(errs, fmt.Errorf("wake.threshold %g is out of range (0, 1]", cfg.Wake.Threshold))
	}
	if cfg.Wake.Cooldown < 0 || cfg.Wake.Settle < 0 {
		errs = append(errs, fmt.Errorf("wake.cooldown and wake.settle must not be negative"))
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("wake", cfg.Providers.Wake.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)
	for _, entry := range cfg.Providers.TTS {
		validateProviderName("tts", entry.Name)
	}
	validateProviderName("chat", cfg.Providers.Chat.Name)

	// Provider availability warnings. A server without these still runs
	// (push-to-talk, text-only replies), just degraded.
	if cfg.Providers.Wake.Name == "" {
		slog.Warn("no wake provider configured; sessions will only listen on explicit start_listening / wake_trigger controls")
	}
	if cfg.Providers.STT.Name == "" {
		errs = append(errs, fmt.Errorf("providers.stt is required; captured speech cannot be transcribed without it"))
	}
	if cfg.Providers.Chat.Name == "" {
		errs = append(errs, fmt.Errorf("providers.chat is required; transcripts have nowhere to go without it"))
	}
	if len(cfg.Providers.TTS) == 0 {
		slog.Warn("no TTS providers configured; replies will be delivered as text only")
	}

	// Duplicate TTS provider detection — the fallback chain tries each once.
	ttsSeen := make(map[string]int, len(cfg.Providers.TTS))
	for i, entry := range cfg.Providers.TTS {
		prefix := fmt.Sprintf("providers.tts[%d]", i)
		if entry.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		if prev, ok := ttsSeen[entry.Name]; ok {
			errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of providers.tts[%d]", prefix, entry.Name, prev))
		}
		ttsSeen[entry.Name] = i
	}

	// Inbox
	if cfg.Inbox.Capacity < 0 {
		errs = append(errs, fmt.Errorf("inbox.capacity %d must not be negative", cfg.Inbox.Capacity))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
