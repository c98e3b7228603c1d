package streaming

import (
	"time"

	"github.com/rumor-ml/commons.systems/tesoro/internal/domain"
)

// EventType represents the type of SSE event
type EventType string

const (
	EventTypeSession    EventType = "session"
	EventTypeProgress   EventType = "progress"
	EventTypeClassified EventType = "classified"
	EventTypeComplete   EventType = "complete"
	EventTypeError      EventType = "error"
	EventTypeHeartbeat  EventType = "heartbeat"
)

// SSEEvent represents a Server-Sent Event
type SSEEvent struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// SessionEvent reports an import session state change
type SessionEvent struct {
	ID        string `json:"id"`
	AccountID string `json:"accountId"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// ProgressEvent reports classification progress over the batch
type ProgressEvent struct {
	Processed  int     `json:"processed"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// ClassifiedEvent reports one row verdict as it is produced
type ClassifiedEvent struct {
	Index       int                 `json:"index"`
	Date        string              `json:"date"`
	Description string              `json:"description"`
	Amount      float64             `json:"amount"`
	Status      domain.ImportStatus `json:"status"`
	Reason      domain.MatchReason  `json:"reason,omitempty"`
}

// CompleteEvent reports the final outcome of an import run
type CompleteEvent struct {
	SessionID string                `json:"sessionId"`
	Imported  int                   `json:"imported"`
	Stats     domain.SelectionStats `json:"stats"`
}

// ErrorEvent reports a failure during an import run
type ErrorEvent struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId,omitempty"`
}

// NewEvent wraps payload data in a timestamped SSE event
func NewEvent(eventType EventType, data interface{}) SSEEvent {
	return SSEEvent{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}
}
