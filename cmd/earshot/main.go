// Command earshot is the main entry point for the earshot voice interaction
// server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/earshot/internal/backend"
	"github.com/MrWong99/earshot/internal/config"
	"github.com/MrWong99/earshot/internal/health"
	"github.com/MrWong99/earshot/internal/inbox"
	"github.com/MrWong99/earshot/internal/observe"
	"github.com/MrWong99/earshot/internal/resilience"
	"github.com/MrWong99/earshot/internal/server"
	"github.com/MrWong99/earshot/internal/session"
	"github.com/MrWong99/earshot/internal/transcript"
	"github.com/MrWong99/earshot/internal/turn"
	"github.com/MrWong99/earshot/internal/wake"
	"github.com/MrWong99/earshot/pkg/provider/chat"
	"github.com/MrWong99/earshot/pkg/provider/chat/anyllm"
	oaichat "github.com/MrWong99/earshot/pkg/provider/chat/openai"
	"github.com/MrWong99/earshot/pkg/provider/stt"
	"github.com/MrWong99/earshot/pkg/provider/stt/whisper"
	"github.com/MrWong99/earshot/pkg/provider/tts"
	"github.com/MrWong99/earshot/pkg/provider/tts/coqui"
	"github.com/MrWong99/earshot/pkg/provider/tts/elevenlabs"
	oaitts "github.com/MrWong99/earshot/pkg/provider/tts/openai"
	wakeprov "github.com/MrWong99/earshot/pkg/provider/wake"
	"github.com/MrWong99/earshot/pkg/provider/wake/openwake"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// Secrets (API keys, auth token, inbox DSN) come from the environment;
	// a local .env file is a convenience, not a requirement.
	_ = godotenv.Load()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "earshot: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "earshot: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	level.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	slog.Info("earshot starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownOtel, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "earshot",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOtel(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	collab, err := buildCollaborators(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Inbox store ───────────────────────────────────────────────────────────
	var store inbox.Store
	if dsn := cfg.Inbox.PostgresDSN(); dsn != "" {
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			slog.Error("failed to connect inbox database", "err", err)
			return 1
		}
		defer pool.Close()
		pg := inbox.NewPostgresStore(pool)
		if err := pg.Migrate(ctx); err != nil {
			slog.Error("failed to migrate inbox schema", "err", err)
			return 1
		}
		store = pg
		slog.Info("inbox store ready", "backend", "postgres")
	} else {
		store = inbox.NewMemStore(cfg.Inbox.Capacity)
		slog.Info("inbox store ready", "backend", "memory", "capacity", cfg.Inbox.Capacity)
	}

	// ── Session wiring ────────────────────────────────────────────────────────
	registry := session.NewRegistry(metrics)
	broadcaster := session.NewBroadcaster(registry, store, metrics)

	// Hot-reloadable state: tunables apply to sessions created after a reload.
	var current atomic.Pointer[config.Config]
	current.Store(cfg)
	var normalizer atomic.Pointer[transcript.Normalizer]
	normalizer.Store(newNormalizer(cfg))

	factory := func(conn session.Conn) *session.Session {
		c := current.Load()

		var gate *wake.Gate
		if collab.Wake != nil {
			gate = wake.NewGate(collab.Wake, wake.Config{
				Threshold:  c.Wake.Threshold,
				Cooldown:   c.Wake.Cooldown.Std(),
				SampleRate: c.Audio.SampleRate,
			})
		}

		chain := resilience.NewTTSFallback(resilience.TTSFallbackConfig{
			AttemptTimeout: c.Synthesis.AttemptTimeout.Std(),
		})
		for _, p := range collab.TTS {
			chain.Add(p)
		}

		return session.New(session.Config{
			Conn: conn,
			Gate: gate,
			Detector: turn.NewDetector(turn.Config{
				SilenceRMS:       c.Turn.SilenceRMS,
				MinSpeechFrames:  turn.FrameCount(c.Turn.MinSpeech.Std(), c.Audio.SampleRate, c.Audio.FrameSize),
				EndSilenceFrames: turn.FrameCount(c.Turn.EndSilence.Std(), c.Audio.SampleRate, c.Audio.FrameSize),
				MaxFrames:        turn.FrameCount(c.Turn.MaxUtterance.Std(), c.Audio.SampleRate, c.Audio.FrameSize),
			}),
			Transcriber: collab.STT,
			Synthesizer: chain,
			Backend: backend.New(collab.Chat, backend.Config{
				SystemPrompt:      c.Chat.SystemPrompt,
				UserKey:           c.Chat.UserKey,
				KeepaliveInterval: c.Chat.KeepaliveInterval.Std(),
			}),
			Normalizer: normalizer.Load(),
			Metrics:    metrics,
			SampleRate: c.Audio.SampleRate,
			QuietRMS:   c.Turn.QuietRMS,
			Settle:     c.Wake.Settle.Std(),
		})
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.Empty() {
			return
		}
		current.Store(new)
		if d.LogLevelChanged {
			level.Set(slogLevel(d.NewLogLevel))
		}
		if d.TranscriptChanged {
			normalizer.Store(newNormalizer(new))
		}
		slog.Info("configuration reloaded",
			"log_level", d.LogLevelChanged,
			"turn", d.TurnChanged,
			"wake", d.WakeChanged,
			"transcript", d.TranscriptChanged,
		)
	})
	if err != nil {
		slog.Warn("config watcher unavailable, hot reload disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	srvCfg := server.Config{
		ListenAddr: cfg.Server.ListenAddr,
		AuthToken:  cfg.Server.AuthToken(),
	}
	if cfg.Server.TLS != nil {
		srvCfg.TLSCertFile = cfg.Server.TLS.CertFile
		srvCfg.TLSKeyFile = cfg.Server.TLS.KeyFile
	}
	srv := server.New(srvCfg, factory, registry, broadcaster, health.New(collabCheckers(collab)...), metrics)

	printStartupSummary(cfg)
	slog.Info("server ready — press Ctrl+C to shut down")

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// collaborators holds one instantiated provider per session slot. Nil wake
// means detection runs on explicit controls only; an empty TTS list degrades
// replies to text.
type collaborators struct {
	Wake wakeprov.Classifier
	STT  stt.Provider
	TTS  []tts.Provider
	Chat chat.Provider
}

// anyllmProviders are the chat backends served through the any-llm gateway
// library. OpenAI gets a dedicated implementation; everything else shares the
// generic client.
var anyllmProviders = []string{
	"anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
}

// registerBuiltinProviders wires all shipped provider factories into reg. Each
// factory receives a config.ProviderEntry and constructs the provider from the
// real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── Wake ──────────────────────────────────────────────────────────────────

	reg.RegisterWake("openwake", func(entry config.ProviderEntry) (wakeprov.Classifier, error) {
		return openwake.New(entry.BaseURL)
	})

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		var opts []whisper.NativeOption
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		return whisper.NewNative(modelPath, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		return elevenlabs.New(entry.APIKey(), entry.Voice, opts...)
	})

	reg.RegisterTTS("openai", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []oaitts.Option
		if entry.Model != "" {
			opts = append(opts, oaitts.WithModel(entry.Model))
		}
		if entry.Voice != "" {
			opts = append(opts, oaitts.WithVoice(entry.Voice))
		}
		if entry.BaseURL != "" {
			opts = append(opts, oaitts.WithBaseURL(entry.BaseURL))
		}
		return oaitts.New(entry.APIKey(), opts...)
	})

	reg.RegisterTTS("coqui", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []coqui.Option
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, coqui.WithLanguage(lang))
		}
		if mode := optString(entry.Options, "api_mode"); mode != "" {
			opts = append(opts, coqui.WithAPIMode(coqui.APIMode(mode)))
		}
		return coqui.New(entry.BaseURL, opts...)
	})

	// ── Chat ──────────────────────────────────────────────────────────────────

	reg.RegisterChat("openai", func(entry config.ProviderEntry) (chat.Provider, error) {
		var opts []oaichat.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaichat.WithBaseURL(entry.BaseURL))
		}
		if id := optString(entry.Options, "agent_id"); id != "" {
			opts = append(opts, oaichat.WithAgentID(id))
		}
		return oaichat.New(entry.APIKey(), entry.Model, opts...)
	})

	for _, providerName := range anyllmProviders {
		reg.RegisterChat(providerName, func(entry config.ProviderEntry) (chat.Provider, error) {
			var opts []anyllmlib.Option
			if key := entry.APIKey(); key != "" {
				opts = append(opts, anyllmlib.WithAPIKey(key))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterChat("ollama", func(entry config.ProviderEntry) (chat.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})
}

// buildCollaborators instantiates all providers named in cfg using the
// registry. STT and chat are required; wake and TTS degrade gracefully.
func buildCollaborators(cfg *config.Config, reg *config.Registry) (*collaborators, error) {
	c := &collaborators{}

	if name := cfg.Providers.Wake.Name; name != "" {
		p, err := reg.CreateWake(cfg.Providers.Wake)
		if err != nil {
			return nil, fmt.Errorf("create wake provider %q: %w", name, err)
		}
		c.Wake = p
		slog.Info("provider created", "kind", "wake", "name", name)
	} else {
		slog.Warn("no wake provider configured — listening starts on explicit controls only")
	}

	p, err := reg.CreateSTT(cfg.Providers.STT)
	if err != nil {
		return nil, fmt.Errorf("create stt provider %q: %w", cfg.Providers.STT.Name, err)
	}
	c.STT = p
	slog.Info("provider created", "kind", "stt", "name", cfg.Providers.STT.Name)

	for _, entry := range cfg.Providers.TTS {
		p, err := reg.CreateTTS(entry)
		if err != nil {
			return nil, fmt.Errorf("create tts provider %q: %w", entry.Name, err)
		}
		c.TTS = append(c.TTS, p)
		slog.Info("provider created", "kind", "tts", "name", entry.Name)
	}
	if len(c.TTS) == 0 {
		slog.Warn("no tts providers configured — replies will be text only")
	}

	cp, err := reg.CreateChat(cfg.Providers.Chat)
	if err != nil {
		return nil, fmt.Errorf("create chat provider %q: %w", cfg.Providers.Chat.Name, err)
	}
	c.Chat = cp
	slog.Info("provider created", "kind", "chat", "name", cfg.Providers.Chat.Name)

	return c, nil
}

// collabCheckers builds readiness checkers for every collaborator that can be
// pinged.
func collabCheckers(c *collaborators) []health.Checker {
	var checkers []health.Checker
	add := func(name string, v any) {
		p, ok := v.(interface{ Ping(context.Context) error })
		if !ok || v == nil {
			return
		}
		checkers = append(checkers, health.Checker{Name: name, Check: p.Ping})
	}
	add("wake", c.Wake)
	add("stt", c.STT)
	add("chat", c.Chat)
	for i, p := range c.TTS {
		add(fmt.Sprintf("tts[%d]:%s", i, p.Name()), p)
	}
	return checkers
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func newNormalizer(cfg *config.Config) *transcript.Normalizer {
	return transcript.NewNormalizer(transcript.Config{
		WakePhrases: cfg.Transcript.WakePhrases,
		Corrections: cfg.Transcript.Corrections,
	})
}

func slogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         earshot — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("Wake", cfg.Providers.Wake.Name, cfg.Providers.Wake.Model)
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	for _, entry := range cfg.Providers.TTS {
		printProvider("TTS", entry.Name, entry.Model)
	}
	if len(cfg.Providers.TTS) == 0 {
		printProvider("TTS", "", "")
	}
	printProvider("Chat", cfg.Providers.Chat.Name, cfg.Providers.Chat.Model)
	if cfg.Inbox.PostgresDSN() != "" {
		fmt.Printf("║  Inbox           : %-19s ║\n", "postgres")
	} else {
		fmt.Printf("║  Inbox           : %-19s ║\n", "memory")
	}
	if cfg.Server.AuthToken() != "" {
		fmt.Printf("║  Auth            : %-19s ║\n", "token required")
	} else {
		fmt.Printf("║  Auth            : %-19s ║\n", "(open)")
	}
	fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}
