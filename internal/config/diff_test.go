package config_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/earshot/internal/config"
)

func mustLoad(t *testing.T, yaml string) *config.Config {
	t.Helper()
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return cfg
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	old := mustLoad(t, validYAML)
	new := mustLoad(t, validYAML)

	d := config.Diff(old, new)
	if !d.Empty() {
		t.Errorf("expected empty diff, got %+v", d)
	}
}

func TestDiff_LogLevel(t *testing.T) {
	t.Parallel()
	old := mustLoad(t, validYAML)
	new := mustLoad(t, validYAML+`
server:
  log_level: debug
`)

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Fatal("expected LogLevelChanged")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("NewLogLevel: got %q, want %q", d.NewLogLevel, config.LogDebug)
	}
	if d.TurnChanged || d.WakeChanged {
		t.Errorf("unrelated sections flagged: %+v", d)
	}
}

func TestDiff_TurnAndWakeTunables(t *testing.T) {
	t.Parallel()
	old := mustLoad(t, validYAML)
	new := mustLoad(t, validYAML+`
turn:
  quiet_rms: 0.02
wake:
  cooldown: 4s
`)

	d := config.Diff(old, new)
	if !d.TurnChanged {
		t.Error("expected TurnChanged")
	}
	if !d.WakeChanged {
		t.Error("expected WakeChanged")
	}
	if d.LogLevelChanged {
		t.Error("log level should be unchanged")
	}
}

func TestDiff_Transcript(t *testing.T) {
	t.Parallel()
	old := mustLoad(t, validYAML)
	new := mustLoad(t, validYAML+`
transcript:
  wake_phrases: ["hey jarvis", "jarvis"]
  corrections:
    "cooper netties": "kubernetes"
`)

	d := config.Diff(old, new)
	if !d.TranscriptChanged {
		t.Fatal("expected TranscriptChanged")
	}

	// Same content again: no change.
	same := mustLoad(t, validYAML+`
transcript:
  wake_phrases: ["hey jarvis", "jarvis"]
  corrections:
    "cooper netties": "kubernetes"
`)
	if d := config.Diff(new, same); d.TranscriptChanged {
		t.Errorf("identical transcript config flagged as changed: %+v", d)
	}
}
