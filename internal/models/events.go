package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies a kind of domain event
type EventType string

const (
	EventChallengeCreated           EventType = "challenge.created"
	EventChallengeResponseSubmitted EventType = "challenge.response_submitted"
	EventChallengeEvaluated         EventType = "challenge.evaluated"
	EventChallengeDeleted           EventType = "challenge.deleted"
	EventUserJourney                EventType = "user.journey"
)

// DomainEvent is a record of a significant state change. Events accumulate
// on the entity and are dispatched only after the change is durable, so a
// rolled-back write never leaks an event.
type DomainEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// NewDomainEvent creates an event with a fresh id and timestamp
func NewDomainEvent(eventType EventType, payload map[string]any) DomainEvent {
	return DomainEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}
