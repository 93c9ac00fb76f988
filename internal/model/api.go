package model

import "time"

// CreateSessionRequest is the request body for opening a room
type CreateSessionRequest struct {
	SessionID   string `json:"sessionId"`
	DisplayName string `json:"displayName,omitempty"`
	Topic       string `json:"topic,omitempty"`
}

// JoinSessionRequest is the request body for joining a room
type JoinSessionRequest struct {
	DisplayName string `json:"displayName,omitempty"`
}

// SessionIDResponse is returned by create and join
type SessionIDResponse struct {
	SessionID string `json:"sessionId"`
}

// RoleAssignment is the outcome of AssignRoles
type RoleAssignment struct {
	TargetID   string `json:"targetId"`
	DetectorID string `json:"detectorId"`
}

// DeactivateRequest carries the client's persona segment reference, if any
type DeactivateRequest struct {
	SessionRef string `json:"sessionRef,omitempty"`
}

// DeactivateResult is returned after a persona window is closed
type DeactivateResult struct {
	OK            bool  `json:"ok"`
	ElapsedMs     int64 `json:"elapsedMs"`
	CumulativeMs  int64 `json:"cumulativeMs"`
	TakebackCount int   `json:"takebackCount"`
}

// GuessResult is returned after the detector's guess
type GuessResult struct {
	Correct bool `json:"correct"`
}

// EndSessionRequest is the request body for ending a session
type EndSessionRequest struct {
	LeaverID string `json:"leaverId,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// EndResult is returned by EndSession and ExpireSession
type EndResult struct {
	OK     bool   `json:"ok"`
	Ended  bool   `json:"ended"`
	Result Result `json:"result,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// IntroResult is returned by MarkIntroComplete
type IntroResult struct {
	OK               bool `json:"ok"`
	AlreadyCompleted bool `json:"alreadyCompleted,omitempty"`
}

// SessionView is the read model returned by GetSession. The derived fields are
// computed from server timestamps at read time.
type SessionView struct {
	Session      *Session      `json:"session"`
	Participants []Participant `json:"participants"`

	LivePersonaMs      int64      `json:"livePersonaMs"`
	PersonaRemainingMs *int64     `json:"personaRemainingMs,omitempty"`
	PersonaExpired     bool       `json:"personaExpired"`
	SessionDeadline    *time.Time `json:"sessionDeadline,omitempty"`
	SessionRemainingMs *int64     `json:"sessionRemainingMs,omitempty"`
	ServerTime         time.Time  `json:"serverTime"`
}

// JoinCodeResponse is returned by the join code generator
type JoinCodeResponse struct {
	Code string `json:"code"`
}

// OKResponse is the bare acknowledgement payload
type OKResponse struct {
	OK bool `json:"ok"`
}

// EventsResponse lists a session's audit trail
type EventsResponse struct {
	Events []*Event `json:"events"`
}
