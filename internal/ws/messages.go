// Package ws pushes bus events to WebSocket clients.
// messages.go defines the frames written to connected clients.
package ws

import (
	"encoding/json"
	"time"

	"github.com/wallfair/settlement/internal/events"
)

// MsgType identifies the kind of WS frame so clients can switch on it.
type MsgType string

const (
	MsgTypeNotification MsgType = "notification"
	MsgTypeError        MsgType = "error"
)

// NotificationMessage relays one lifecycle event. Data is the event payload
// exactly as published on the bus.
type NotificationMessage struct {
	Type      MsgType         `json:"type"`
	Event     events.Kind     `json:"event"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// ErrorMessage is sent directly to one client (not broadcast).
type ErrorMessage struct {
	Type    MsgType `json:"type"`
	Code    string  `json:"code"`
	Message string  `json:"message"`
}

func notificationFrom(env events.Envelope) NotificationMessage {
	return NotificationMessage{
		Type:      MsgTypeNotification,
		Event:     env.Event,
		Timestamp: env.Timestamp,
		Data:      env.Data,
	}
}
