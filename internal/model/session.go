package model

import "time"

type SessionStatus string

const (
	SessionLobby SessionStatus = "lobby"
	SessionTalk  SessionStatus = "talk"
	SessionEnded SessionStatus = "ended"
)

// Result is the terminal verdict of a session. Empty until the session ends.
type Result string

const (
	ResultTargetWin     Result = "target_win"
	ResultDetectorWin   Result = "detector_win"
	ResultIndeterminate Result = "indeterminate"
)

// MaxParticipants is the number of seats in a room
const MaxParticipants = 2

// Session is one room of the game. Participants are stored with the session so
// that every transition is a single write.
type Session struct {
	ID                  string        `json:"id" bson:"_id"`
	CreatorID           string        `json:"creatorId" bson:"creatorId"`
	Status              SessionStatus `json:"status" bson:"status"`
	TargetID            string        `json:"targetId,omitempty" bson:"targetId,omitempty"`
	DetectorID          string        `json:"detectorId,omitempty" bson:"detectorId,omitempty"`
	Topic               string        `json:"topic" bson:"topic"`
	CreatedAt           time.Time     `json:"createdAt" bson:"createdAt"`
	StartedAt           *time.Time    `json:"startedAt,omitempty" bson:"startedAt,omitempty"`
	PersonaActivatedAt  *time.Time    `json:"personaActivatedAt" bson:"personaActivatedAt"`
	CumulativePersonaMs int64         `json:"cumulativePersonaMs" bson:"cumulativePersonaMs"`
	TakebackCount       int           `json:"takebackCount" bson:"takebackCount"`
	IntroAcknowledgedAt *time.Time    `json:"introAcknowledgedAt,omitempty" bson:"introAcknowledgedAt,omitempty"`
	EndedAt             *time.Time    `json:"endedAt,omitempty" bson:"endedAt,omitempty"`
	Result              Result        `json:"result,omitempty" bson:"result,omitempty"`
	EndReason           string        `json:"endReason,omitempty" bson:"endReason,omitempty"`
	Version             int64         `json:"version" bson:"version"`
	Participants        []Participant `json:"-" bson:"participants"`
}

// Participant returns the participant row for userID, or nil
func (s *Session) Participant(userID string) *Participant {
	for i := range s.Participants {
		if s.Participants[i].UserID == userID {
			return &s.Participants[i]
		}
	}
	return nil
}

// IsParticipant reports whether userID has joined the session
func (s *Session) IsParticipant(userID string) bool {
	return s.Participant(userID) != nil
}

// PersonaActive reports whether a persona window is currently open
func (s *Session) PersonaActive() bool {
	return s.PersonaActivatedAt != nil
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.StartedAt = cloneTime(s.StartedAt)
	c.PersonaActivatedAt = cloneTime(s.PersonaActivatedAt)
	c.IntroAcknowledgedAt = cloneTime(s.IntroAcknowledgedAt)
	c.EndedAt = cloneTime(s.EndedAt)
	if s.Participants != nil {
		c.Participants = make([]Participant, len(s.Participants))
		for i, p := range s.Participants {
			c.Participants[i] = p.clone()
		}
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
