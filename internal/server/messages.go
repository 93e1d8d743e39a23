package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	EventJoinChat    = "joinChat"
	EventLeaveChat   = "leaveChat"
	EventSendMessage = "sendMessage"

	EventNotification   = "notification"
	EventReceiveMessage = "receiveMessage"
	EventErrorFrame     = "error"
)

// ServerMessage is the frame written to a connection. Data holds the already
// encoded payload so a message emitted to a room is encoded once.
type ServerMessage struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

type ErrorData struct {
	Event   string `json:"event,omitempty"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func NewServerMessage(event string, payload any) (*ServerMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", event, err)
	}

	return &ServerMessage{
		Event:     event,
		Data:      data,
		Timestamp: Now(),
	}, nil
}

func ErrorEvent(event string, code int, message string) *ServerMessage {
	data, _ := json.Marshal(ErrorData{
		Event:   event,
		Code:    code,
		Message: message,
	})

	return &ServerMessage{
		Event:     EventErrorFrame,
		Data:      data,
		Timestamp: Now(),
	}
}

// EventError is returned by event handlers to reject a frame with a code
// the client can act on.
type EventError struct {
	Code    int
	Message string
}

func (e *EventError) Error() string {
	return e.Message
}

func ErrBadRequest(message string) *EventError {
	return &EventError{Code: http.StatusBadRequest, Message: message}
}

func ErrUnauthorized() *EventError {
	return &EventError{Code: http.StatusUnauthorized, Message: "authentication required"}
}

func ErrForbidden(message string) *EventError {
	return &EventError{Code: http.StatusForbidden, Message: message}
}

func ErrNotFound(message string) *EventError {
	return &EventError{Code: http.StatusNotFound, Message: message}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
