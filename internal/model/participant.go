package model

import "time"

type Role string

const (
	RoleTarget   Role = "target"
	RoleDetector Role = "detector"
)

// Participant is one (session, user) seat. Role is empty until roles are assigned.
type Participant struct {
	SessionID    string     `json:"sessionId" bson:"sessionId"`
	UserID       string     `json:"userId" bson:"userId"`
	DisplayName  string     `json:"displayName" bson:"displayName"`
	Role         Role       `json:"role,omitempty" bson:"role,omitempty"`
	JoinedAt     time.Time  `json:"joinedAt" bson:"joinedAt"`
	GuessUsed    bool       `json:"guessUsed" bson:"guessUsed"`
	GuessAt      *time.Time `json:"guessAt,omitempty" bson:"guessAt,omitempty"`
	GuessCorrect *bool      `json:"guessCorrect,omitempty" bson:"guessCorrect,omitempty"`
}

func (p Participant) clone() Participant {
	c := p
	c.GuessAt = cloneTime(p.GuessAt)
	if p.GuessCorrect != nil {
		v := *p.GuessCorrect
		c.GuessCorrect = &v
	}
	return c
}
