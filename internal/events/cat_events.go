package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the kinds of CAT lifecycle events
type EventType string

const (
	// Session events
	EventSessionStarted   EventType = "session.started"
	EventSessionCompleted EventType = "session.completed"
	EventSessionAbandoned EventType = "session.abandoned"

	// Operational events
	EventItemBankExhausted EventType = "item_bank.exhausted"
)

const (
	eventSource  = "cat-service"
	eventVersion = "1.0"
)

// Event is the envelope shared by every published event
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Session event payloads

type SessionStartedEvent struct {
	SessionID   string    `json:"session_id"`
	UserID      string    `json:"user_id"`
	ExamType    string    `json:"exam_type"`
	FirstItemID uint      `json:"first_item_id"`
	StartedAt   time.Time `json:"started_at"`
}

type SessionCompletedEvent struct {
	SessionID          string    `json:"session_id"`
	UserID             string    `json:"user_id"`
	ExamType           string    `json:"exam_type"`
	Verdict            string    `json:"verdict"`
	StopReason         string    `json:"stop_reason"`
	AbilityEstimate    float64   `json:"ability_estimate"`
	StandardError      float64   `json:"standard_error"`
	PassingProbability float64   `json:"passing_probability"`
	ItemsAnswered      int       `json:"items_answered"`
	CompletedAt        time.Time `json:"completed_at"`
}

type SessionAbandonedEvent struct {
	SessionID     string    `json:"session_id"`
	UserID        string    `json:"user_id"`
	ExamType      string    `json:"exam_type"`
	ItemsAnswered int       `json:"items_answered"`
	AbandonedAt   time.Time `json:"abandoned_at"`
}

// ItemBankExhaustedEvent is the operational alert raised when a session
// cannot be continued because a required domain ran dry.
type ItemBankExhaustedEvent struct {
	SessionID     string    `json:"session_id"`
	ExamType      string    `json:"exam_type"`
	ContentDomain string    `json:"content_domain,omitempty"`
	ItemsAnswered int       `json:"items_answered"`
	DetectedAt    time.Time `json:"detected_at"`
}

// Event factory functions

func newEvent(eventType EventType, data interface{}) *Event {
	return &Event{
		ID:        GenerateEventID(),
		Type:      eventType,
		Timestamp: time.Now(),
		Source:    eventSource,
		Version:   eventVersion,
		Data:      data,
	}
}

func NewSessionStartedEvent(sessionID, userID, examType string, firstItemID uint, startedAt time.Time) *Event {
	return newEvent(EventSessionStarted, SessionStartedEvent{
		SessionID:   sessionID,
		UserID:      userID,
		ExamType:    examType,
		FirstItemID: firstItemID,
		StartedAt:   startedAt,
	})
}

func NewSessionCompletedEvent(data SessionCompletedEvent) *Event {
	return newEvent(EventSessionCompleted, data)
}

func NewSessionAbandonedEvent(sessionID, userID, examType string, itemsAnswered int, abandonedAt time.Time) *Event {
	return newEvent(EventSessionAbandoned, SessionAbandonedEvent{
		SessionID:     sessionID,
		UserID:        userID,
		ExamType:      examType,
		ItemsAnswered: itemsAnswered,
		AbandonedAt:   abandonedAt,
	})
}

func NewItemBankExhaustedEvent(sessionID, examType, domain string, itemsAnswered int) *Event {
	e := newEvent(EventItemBankExhausted, ItemBankExhaustedEvent{
		SessionID:     sessionID,
		ExamType:      examType,
		ContentDomain: domain,
		ItemsAnswered: itemsAnswered,
		DetectedAt:    time.Now(),
	})
	e.Metadata = map[string]interface{}{"severity": "critical"}
	return e
}

// GenerateEventID returns a fresh unique event id
func GenerateEventID() string {
	return uuid.NewString()
}
