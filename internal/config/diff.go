package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked: the log level
// takes effect immediately, turn/wake/transcript tunables apply to sessions
// created after the reload. Anything else (listen address, providers, inbox
// backend) requires a restart.
type ConfigDiff struct {
	LogLevelChanged   bool
	NewLogLevel       LogLevel
	TurnChanged       bool
	WakeChanged       bool
	TranscriptChanged bool
}

// Empty reports whether nothing hot-reloadable changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.TurnChanged && !d.WakeChanged && !d.TranscriptChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Turn != new.Turn {
		d.TurnChanged = true
	}

	if old.Wake != new.Wake {
		d.WakeChanged = true
	}

	if !equalTranscript(old.Transcript, new.Transcript) {
		d.TranscriptChanged = true
	}

	return d
}

// equalTranscript compares the slice/map-valued transcript config by content.
func equalTranscript(old, new TranscriptConfig) bool {
	if len(old.WakePhrases) != len(new.WakePhrases) {
		return false
	}
	for i, p := range old.WakePhrases {
		if new.WakePhrases[i] != p {
			return false
		}
	}
	if len(old.Corrections) != len(new.Corrections) {
		return false
	}
	for k, v := range old.Corrections {
		if nv, ok := new.Corrections[k]; !ok || nv != v {
			return false
		}
	}
	return true
}
