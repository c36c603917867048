package realtime

import (
	"time"
)

// Event names shared with clients.
const (
	EventConnected         = "connected"
	EventError             = "error"
	EventPing              = "ping"
	EventPong              = "pong"
	EventJoinedRoom        = "joined-room"
	EventLeftRoom          = "left-room"
	EventNewMessage        = "chat:new-message"
	EventMessageUpdated    = "chat:message-updated"
	EventMessageDeleted    = "chat:message-deleted"
	EventMessageRead       = "chat:message-read"
	EventMessagesRead      = "chat:messages-read"
	EventUserTyping        = "chat:user-typing"
	EventUserStoppedTyping = "chat:user-stopped-typing"
	EventUserJoinedChat    = "chat:user-joined"
	EventMemberAdded       = "chat:member-added"
)

// Envelope is the one wire format every outgoing realtime payload uses.
// Success carries data (and optional meta); failure carries the error object
// instead.
type Envelope struct {
	Success    bool                   `json:"success"`
	StatusCode int                    `json:"statusCode"`
	Timestamp  string                 `json:"timestamp"`
	Data       interface{}            `json:"data,omitempty"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
	Error      *EnvelopeError         `json:"error,omitempty"`
}

type EnvelopeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// NewSuccessEnvelope builds the success wire shape.
func NewSuccessEnvelope(statusCode int, data interface{}, meta map[string]interface{}) Envelope {
	return Envelope{
		Success:    true,
		StatusCode: statusCode,
		Timestamp:  timestamp(),
		Data:       data,
		Meta:       meta,
	}
}

// NewErrorEnvelope builds the failure wire shape.
func NewErrorEnvelope(statusCode int, code, message string) Envelope {
	return Envelope{
		Success:    false,
		StatusCode: statusCode,
		Timestamp:  timestamp(),
		Error:      &EnvelopeError{Code: code, Message: message},
	}
}
