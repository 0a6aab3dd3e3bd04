package wire_test

import (
	"encoding/json"
	"testing"

	"github.com/MrWong99/earshot/pkg/wire"
)

func TestParseControl(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		wantType string
		wantErr  bool
	}{
		{"ping", `{"type":"ping"}`, wire.TypePing, false},
		{"start listening", `{"type":"start_listening"}`, wire.TypeStartListening, false},
		{"unknown type passes through", `{"type":"dance"}`, "dance", false},
		{"missing type", `{}`, "", true},
		{"malformed", `{nope`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := wire.ParseControl([]byte(tt.data))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if c.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", c.Type, tt.wantType)
			}
		})
	}
}

func TestNotificationAnnouncement(t *testing.T) {
	n := wire.NewNotification("Build", "pipeline finished", "", true)
	if got := n.Announcement(); got != "Build: pipeline finished" {
		t.Errorf("Announcement = %q, want title-prefixed form", got)
	}
	if n.Priority != wire.PriorityNormal {
		t.Errorf("Priority = %q, want %q", n.Priority, wire.PriorityNormal)
	}

	n = wire.NewNotification("", "door opened", wire.PriorityHigh, false)
	if got := n.Announcement(); got != "door opened" {
		t.Errorf("Announcement = %q, want bare message", got)
	}
}

func TestServerMessageShapes(t *testing.T) {
	data, err := json.Marshal(wire.NewState(wire.StateListening, "I'm listening..."))
	if err != nil {
		t.Fatalf("marshal state: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if m["type"] != "state" || m["state"] != "listening" {
		t.Errorf("state message = %v, want type=state state=listening", m)
	}

	data, _ = json.Marshal(wire.NewKeepalive())
	if string(data) != `{"type":"keepalive","status":"thinking"}` {
		t.Errorf("keepalive = %s", data)
	}
}
