package model

import "time"

type EventType string

const (
	EventSessionCreated    EventType = "session-created"
	EventParticipantJoined EventType = "participant-joined"
	EventRolesAssigned     EventType = "roles-assigned"
	EventPersonaActivated  EventType = "persona-activated"
	EventPersonaTakeback   EventType = "persona-takeback"
	EventPersonaExpired    EventType = "persona-expired"
	EventGuess             EventType = "guess"
	EventSessionEnded      EventType = "session-ended"
	EventIntroComplete     EventType = "intro-complete"
)

// Event is one append-only audit record of a transition
type Event struct {
	ID        string         `json:"id" bson:"_id"`
	SessionID string         `json:"sessionId" bson:"sessionId"`
	Type      EventType      `json:"type" bson:"type"`
	UserID    string         `json:"userId,omitempty" bson:"userId,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty" bson:"metadata,omitempty"`
	CreatedAt time.Time      `json:"createdAt" bson:"createdAt"`
}
