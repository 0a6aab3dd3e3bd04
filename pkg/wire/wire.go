// Package wire defines the JSON message schema exchanged over the /voice
// WebSocket connection. Clients send binary frames of raw little-endian PCM16
// audio plus small JSON control messages; the server answers with JSON state,
// response, error, notification, keepalive and pong messages plus binary
// audio-reply bytes.
//
// The schema lives in its own leaf package so both the server and companion
// clients can share it without pulling in session internals.
package wire

import (
	"encoding/json"
	"fmt"
)

// Session states as they appear on the wire.
const (
	StateWaiting    = "waiting"
	StateListening  = "listening"
	StateProcessing = "processing"
	StateSpeaking   = "speaking"
)

// Control message types accepted from clients.
const (
	TypePing           = "ping"
	TypeStartListening = "start_listening"
	TypeStopListening  = "stop_listening"
	TypeWakeTrigger    = "wake_trigger"
)

// Server message types.
const (
	TypeState        = "state"
	TypeResponse     = "response"
	TypeError        = "error"
	TypeNotification = "notification"
	TypeKeepalive    = "keepalive"
	TypePong         = "pong"
)

// Notification priorities.
const (
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityLow    = "low"
)

// Control is a client→server control message. The Type field selects the
// action; all control messages are currently payload-free.
type Control struct {
	Type string `json:"type"`
}

// ParseControl decodes a client text message. Unknown types are returned
// as-is so the caller can log them; malformed JSON is an error.
func ParseControl(data []byte) (Control, error) {
	var c Control
	if err := json.Unmarshal(data, &c); err != nil {
		return Control{}, fmt.Errorf("wire: parse control message: %w", err)
	}
	if c.Type == "" {
		return Control{}, fmt.Errorf("wire: control message missing type")
	}
	return c, nil
}

// State announces a session state change, optionally with a short
// human-readable message for the client UI ("I'm listening...").
type State struct {
	Type    string `json:"type"`
	State   string `json:"state"`
	Message string `json:"message,omitempty"`
}

// NewState builds a state message.
func NewState(state, message string) State {
	return State{Type: TypeState, State: state, Message: message}
}

// Response carries one completed exchange: what the user said, what the
// assistant replied, and the avatar expression matching the reply.
type Response struct {
	Type       string `json:"type"`
	UserText   string `json:"user_text"`
	ReplyText  string `json:"reply_text"`
	Expression string `json:"expression"`
}

// NewResponse builds a response message.
func NewResponse(userText, replyText, expression string) Response {
	return Response{Type: TypeResponse, UserText: userText, ReplyText: replyText, Expression: expression}
}

// Error reports a per-turn failure to the client. The session has already
// returned to the waiting state when this arrives.
type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewError builds an error message.
func NewError(message string) Error {
	return Error{Type: TypeError, Message: message}
}

// Notification is an out-of-band message injected through the inbox endpoint
// and fanned out to connected sessions.
type Notification struct {
	Type     string `json:"type"`
	Title    string `json:"title,omitempty"`
	Message  string `json:"message"`
	Priority string `json:"priority"`
	Speak    bool   `json:"speak"`
}

// NewNotification builds a notification message. An empty priority defaults
// to PriorityNormal.
func NewNotification(title, message, priority string, speak bool) Notification {
	if priority == "" {
		priority = PriorityNormal
	}
	return Notification{Type: TypeNotification, Title: title, Message: message, Priority: priority, Speak: speak}
}

// Announcement returns the text spoken for this notification: "title: message"
// when a title is present, otherwise just the message.
func (n Notification) Announcement() string {
	if n.Title != "" {
		return n.Title + ": " + n.Message
	}
	return n.Message
}

// Keepalive tells the client the backend request is still in flight so
// intermediaries do not drop the idle connection.
type Keepalive struct {
	Type   string `json:"type"`
	Status string `json:"status"`
}

// NewKeepalive builds a keepalive message with the conventional "thinking"
// status.
func NewKeepalive() Keepalive {
	return Keepalive{Type: TypeKeepalive, Status: "thinking"}
}

// Pong answers a client ping.
type Pong struct {
	Type string `json:"type"`
}

// NewPong builds a pong message.
func NewPong() Pong {
	return Pong{Type: TypePong}
}
