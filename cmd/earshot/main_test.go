package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrWong99/earshot/internal/backend"
	"github.com/MrWong99/earshot/internal/config"
)

// gatewayCapture records the request fields an OpenAI-compatible gateway
// routes on: the agent header and the stable user key in the body.
type gatewayCapture struct {
	agentID string
	user    string
}

func newGatewayServer(t *testing.T, captured *gatewayCapture) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.agentID = r.Header.Get("x-agent-id")
		var body struct {
			User string `json:"user"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode completion request: %v", err)
		}
		captured.user = body.User

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "cmpl-1",
			"object": "chat.completion",
			"created": 0,
			"model": "openclaw",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "It is noon."}, "finish_reason": "stop"}]
		}`))
	}))
	t.Cleanup(ts.Close)
	return ts
}

// The openai chat factory must pass the gateway routing options through:
// the agent_id option becomes the x-agent-id header, and the configured
// user key reaches the request body so the backend can keep per-user
// memory.
func TestChatFactoryWiresGatewayRouting(t *testing.T) {
	var captured gatewayCapture
	ts := newGatewayServer(t, &captured)
	t.Setenv("EARSHOT_TEST_CHAT_KEY", "sk-test")

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	provider, err := reg.CreateChat(config.ProviderEntry{
		Name:      "openai",
		APIKeyEnv: "EARSHOT_TEST_CHAT_KEY",
		BaseURL:   ts.URL,
		Model:     "openclaw",
		Options:   map[string]any{"agent_id": "butler"},
	})
	if err != nil {
		t.Fatalf("create chat provider: %v", err)
	}

	cfg := &config.Config{}
	cfg.ApplyDefaults()

	pipeline := backend.New(provider, backend.Config{
		SystemPrompt:      cfg.Chat.SystemPrompt,
		UserKey:           cfg.Chat.UserKey,
		KeepaliveInterval: cfg.Chat.KeepaliveInterval.Std(),
	})

	reply, err := pipeline.Ask(context.Background(), "what time is it", nil)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if reply != "It is noon." {
		t.Errorf("reply = %q, want %q", reply, "It is noon.")
	}
	if captured.agentID != "butler" {
		t.Errorf("x-agent-id header = %q, want %q", captured.agentID, "butler")
	}
	if captured.user != "voice-client" {
		t.Errorf("request user key = %q, want %q", captured.user, "voice-client")
	}
}
