// Package config provides the configuration schema, loader, and provider
// registry for the earshot voice server.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// LogLevel controls log verbosity for the earshot server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Duration wraps [time.Duration] so YAML values can be written in the usual
// Go syntax ("2s", "1.5s", "500ms").
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration in Go syntax.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped [time.Duration].
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the root configuration structure for earshot.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Audio      AudioConfig      `yaml:"audio"`
	Turn       TurnConfig       `yaml:"turn"`
	Wake       WakeConfig       `yaml:"wake"`
	Chat       ChatConfig       `yaml:"chat"`
	Synthesis  SynthesisConfig  `yaml:"synthesis"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Transcript TranscriptConfig `yaml:"transcript"`
	Inbox      InboxConfig      `yaml:"inbox"`
}

// ServerConfig holds network and logging settings for the earshot server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8127").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// AuthTokenEnv names the environment variable holding the shared secret
	// required by /voice (as a ?token= query parameter) and /inbox (as a
	// Bearer credential). Empty disables authentication.
	AuthTokenEnv string `yaml:"auth_token_env"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// AuthToken resolves the shared secret, or "" when authentication is off.
func (s ServerConfig) AuthToken() string {
	if s.AuthTokenEnv == "" {
		return ""
	}
	return os.Getenv(s.AuthTokenEnv)
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// AudioConfig describes the inbound audio stream. Clients must send mono
// little-endian PCM16 at this rate, framed in chunks of FrameSize samples.
type AudioConfig struct {
	// SampleRate in Hz. Default: 16000.
	SampleRate int `yaml:"sample_rate"`

	// FrameSize is the number of samples per frame. Default: 512.
	FrameSize int `yaml:"frame_size"`
}

// FramePeriod returns the wall-clock duration one frame covers.
func (a AudioConfig) FramePeriod() time.Duration {
	if a.SampleRate <= 0 || a.FrameSize <= 0 {
		return 0
	}
	return time.Duration(float64(a.FrameSize) / float64(a.SampleRate) * float64(time.Second))
}

// TurnConfig tunes end-of-utterance detection.
type TurnConfig struct {
	// SilenceRMS is the per-frame RMS amplitude below which a frame counts
	// as silence. Default: 0.005.
	SilenceRMS float64 `yaml:"silence_rms"`

	// QuietRMS is the whole-utterance RMS below which transcription is
	// skipped entirely. Default: 0.01.
	QuietRMS float64 `yaml:"quiet_rms"`

	// MinSpeech is how much audio must be buffered before silence starts
	// counting towards end-of-turn. Default: 1s.
	MinSpeech Duration `yaml:"min_speech"`

	// EndSilence is how long the speaker must stay silent for the turn to
	// end. Default: 2s.
	EndSilence Duration `yaml:"end_silence"`

	// MaxUtterance caps the length of a single turn; reaching it forces
	// end-of-turn. Default: 15s.
	MaxUtterance Duration `yaml:"max_utterance"`
}

// WakeConfig tunes the wake gate.
type WakeConfig struct {
	// Threshold is the classifier confidence required for a detection.
	// Default: 0.5.
	Threshold float64 `yaml:"threshold"`

	// Cooldown is how long detection stays suppressed after a turn,
	// measured in audio time. Default: 2s.
	Cooldown Duration `yaml:"cooldown"`

	// Settle is the pause before the session re-arms after a turn, letting
	// played-back audio decay. Default: 1500ms.
	Settle Duration `yaml:"settle"`
}

// ChatConfig tunes the conversation backend exchange.
type ChatConfig struct {
	// SystemPrompt is the fixed instruction sent with every request.
	SystemPrompt string `yaml:"system_prompt"`

	// UserKey is the stable identifier sent with every backend request so
	// the backend can keep per-user conversation memory across sessions.
	// Default: "voice-client".
	UserKey string `yaml:"user_key"`

	// KeepaliveInterval is how often a keepalive message is sent to the
	// client while a backend request is outstanding. Default: 5s.
	KeepaliveInterval Duration `yaml:"keepalive_interval"`
}

// SynthesisConfig tunes the TTS fallback chain.
type SynthesisConfig struct {
	// AttemptTimeout bounds each individual provider attempt. Default: 15s.
	AttemptTimeout Duration `yaml:"attempt_timeout"`
}

// ProvidersConfig declares which provider implementation to use for each
// collaborator. Each entry selects a named factory registered in the
// [Registry]. TTS is a list: providers are tried in the order given.
type ProvidersConfig struct {
	Wake ProviderEntry   `yaml:"wake"`
	STT  ProviderEntry   `yaml:"stt"`
	TTS  []ProviderEntry `yaml:"tts"`
	Chat ProviderEntry   `yaml:"chat"`
}

// ProviderEntry is the common configuration block shared by all provider
// kinds. The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation
	// (e.g., "openwake", "whisper", "elevenlabs").
	Name string `yaml:"name"`

	// APIKeyEnv names the environment variable holding the provider's API
	// key. The key itself never appears in the config file.
	APIKeyEnv string `yaml:"api_key_env"`

	// BaseURL overrides the provider's default API endpoint, or addresses a
	// local sidecar (openwake, whisper-server, coqui).
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider
	// (e.g., "gpt-4o-mini", "eleven_turbo_v2_5", a whisper model path).
	Model string `yaml:"model"`

	// Voice is the provider-specific voice identifier for TTS providers.
	Voice string `yaml:"voice"`

	// Options holds provider-specific configuration values not covered by
	// the standard fields above.
	Options map[string]any `yaml:"options"`
}

// APIKey resolves the provider's API key from the environment, or "" when
// APIKeyEnv is unset.
func (e ProviderEntry) APIKey() string {
	if e.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(e.APIKeyEnv)
}

// TranscriptConfig tunes transcript normalisation.
type TranscriptConfig struct {
	// WakePhrases are stripped from the start of a transcript when the
	// leading tokens phonetically match one of them.
	WakePhrases []string `yaml:"wake_phrases"`

	// Corrections maps routinely misheard vocabulary to its replacement.
	Corrections map[string]string `yaml:"corrections"`
}

// InboxConfig tunes the store for notifications that reached no client.
type InboxConfig struct {
	// PostgresDSNEnv names the environment variable holding a PostgreSQL
	// connection string. Empty selects the in-memory ring store.
	PostgresDSNEnv string `yaml:"postgres_dsn_env"`

	// Capacity bounds the in-memory ring store. Default: 100.
	Capacity int `yaml:"capacity"`
}

// PostgresDSN resolves the inbox DSN, or "" for the in-memory store.
func (i InboxConfig) PostgresDSN() string {
	if i.PostgresDSNEnv == "" {
		return ""
	}
	return os.Getenv(i.PostgresDSNEnv)
}

// ApplyDefaults fills in defaults for every unset tunable. Called by the
// loader after decoding and before validation, so validation always sees the
// effective values.
func (c *Config) ApplyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8127"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = LogInfo
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 16000
	}
	if c.Audio.FrameSize == 0 {
		c.Audio.FrameSize = 512
	}
	if c.Turn.SilenceRMS == 0 {
		c.Turn.SilenceRMS = 0.005
	}
	if c.Turn.QuietRMS == 0 {
		c.Turn.QuietRMS = 0.01
	}
	if c.Turn.MinSpeech == 0 {
		c.Turn.MinSpeech = Duration(time.Second)
	}
	if c.Turn.EndSilence == 0 {
		c.Turn.EndSilence = Duration(2 * time.Second)
	}
	if c.Turn.MaxUtterance == 0 {
		c.Turn.MaxUtterance = Duration(15 * time.Second)
	}
	if c.Wake.Threshold == 0 {
		c.Wake.Threshold = 0.5
	}
	if c.Wake.Cooldown == 0 {
		c.Wake.Cooldown = Duration(2 * time.Second)
	}
	if c.Wake.Settle == 0 {
		c.Wake.Settle = Duration(1500 * time.Millisecond)
	}
	if c.Chat.UserKey == "" {
		c.Chat.UserKey = "voice-client"
	}
	if c.Chat.KeepaliveInterval == 0 {
		c.Chat.KeepaliveInterval = Duration(5 * time.Second)
	}
	if c.Synthesis.AttemptTimeout == 0 {
		c.Synthesis.AttemptTimeout = Duration(15 * time.Second)
	}
	if c.Inbox.Capacity == 0 {
		c.Inbox.Capacity = 100
	}
}
