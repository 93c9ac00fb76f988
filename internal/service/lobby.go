package service

import (
	"context"
	"crypto/rand"
	"errors"
	"sort"
	"time"

	"voiceswap/internal/apperr"
	"voiceswap/internal/model"
	"voiceswap/internal/repository"
	"voiceswap/internal/timing"
)

// CreateSession opens a room in the lobby with the caller as creator and first participant.
// Creating a session that already exists with the same creator is a no-op.
func (c *Coordinator) CreateSession(ctx context.Context, caller model.Identity, req model.CreateSessionRequest) (*model.SessionIDResponse, error) {
	id, err := validateSessionID(req.SessionID)
	if err != nil {
		return nil, err
	}

	if err := c.checkReservation(ctx, id, caller.UserID); err != nil {
		return nil, err
	}

	now := c.clock()
	name := DisplayName(req.DisplayName, caller)
	session := &model.Session{
		ID:        id,
		CreatorID: caller.UserID,
		Status:    model.SessionLobby,
		Topic:     req.Topic,
		CreatedAt: now,
		Participants: []model.Participant{{
			SessionID:   id,
			UserID:      caller.UserID,
			DisplayName: name,
			JoinedAt:    now,
		}},
	}

	err = c.sessions.Insert(ctx, session)
	if err == nil {
		c.logger.Info("session created", "session", id, "user", caller.UserID)
		c.published(ctx, session)
		c.record(id, model.EventSessionCreated, caller.UserID, map[string]any{"topic": req.Topic})
		// The session row now guards the code.
		if c.codes != nil {
			if err := c.codes.Release(ctx, id); err != nil {
				c.logger.Warn("release join code", "session", id, "err", err)
			}
		}
		return &model.SessionIDResponse{SessionID: id}, nil
	}
	if !errors.Is(err, repository.ErrAlreadyExists) {
		c.logger.Error("store failure", "op", "CreateSession", "session", id, "err", err)
		return nil, apperr.Internal("session store unavailable", err)
	}

	res, err := c.transition(ctx, "CreateSession", id, caller.UserID,
		func(s *model.Session) error {
			if s.CreatorID != caller.UserID {
				return apperr.Conflict(apperr.CodeSessionExists, "session id is already taken")
			}
			if s.IsParticipant(caller.UserID) {
				return errNoop
			}
			if s.Status == model.SessionEnded {
				return apperr.Conflict(apperr.CodeWrongState, "session has ended")
			}
			if len(s.Participants) >= model.MaxParticipants {
				return apperr.Conflict(apperr.CodeRoomFull, "room is full")
			}
			return nil
		},
		func(s *model.Session) {
			s.Participants = append(s.Participants, model.Participant{
				UserID:      caller.UserID,
				DisplayName: name,
				JoinedAt:    now,
			})
		})
	if err != nil {
		return nil, err
	}
	if !res.Applied && !errors.Is(res.Reason, errNoop) {
		return nil, res.Reason
	}
	return &model.SessionIDResponse{SessionID: id}, nil
}

// checkReservation refuses a session id that NewJoinCode handed to another user.
// An unreachable cache does not block creation.
func (c *Coordinator) checkReservation(ctx context.Context, id, userID string) error {
	if c.codes == nil {
		return nil
	}
	owner, err := c.codes.Owner(ctx, id)
	if err != nil {
		c.logger.Warn("read join code reservation", "session", id, "err", err)
		return nil
	}
	if owner != "" && owner != userID {
		return apperr.Conflict(apperr.CodeSessionExists, "session id is reserved by another user")
	}
	return nil
}

// JoinSession seats the caller. Re-joining is always tolerated.
func (c *Coordinator) JoinSession(ctx context.Context, caller model.Identity, sessionID string, req model.JoinSessionRequest) (*model.SessionIDResponse, error) {
	id, err := validateSessionID(sessionID)
	if err != nil {
		return nil, err
	}

	now := c.clock()
	name := DisplayName(req.DisplayName, caller)
	res, err := c.transition(ctx, "JoinSession", id, caller.UserID,
		func(s *model.Session) error {
			if s.IsParticipant(caller.UserID) {
				return errNoop
			}
			if s.Status == model.SessionEnded {
				return apperr.Conflict(apperr.CodeWrongState, "session has ended")
			}
			if len(s.Participants) >= model.MaxParticipants {
				return apperr.Conflict(apperr.CodeRoomFull, "room is full")
			}
			return nil
		},
		func(s *model.Session) {
			s.Participants = append(s.Participants, model.Participant{
				UserID:      caller.UserID,
				DisplayName: name,
				JoinedAt:    now,
			})
		})
	if err != nil {
		return nil, err
	}
	if res.Applied {
		c.record(id, model.EventParticipantJoined, caller.UserID, map[string]any{"displayName": name})
	} else if !errors.Is(res.Reason, errNoop) {
		return nil, res.Reason
	}
	return &model.SessionIDResponse{SessionID: id}, nil
}

// AssignRoles moves a full lobby to the talk phase. The creator becomes the target
// when seated, otherwise the earliest joiner does.
func (c *Coordinator) AssignRoles(ctx context.Context, caller model.Identity, sessionID string) (*model.RoleAssignment, error) {
	now := c.clock()
	res, err := c.transition(ctx, "AssignRoles", sessionID, caller.UserID,
		func(s *model.Session) error {
			if !s.IsParticipant(caller.UserID) && s.CreatorID != caller.UserID {
				return apperr.Forbidden(apperr.CodeNotParticipant, "not a participant of this session")
			}
			if s.Status != model.SessionLobby {
				return apperr.Conflict(apperr.CodeRolesAlreadyAssigned, "roles have already been assigned")
			}
			if len(s.Participants) != model.MaxParticipants {
				return apperr.Conflict(apperr.CodeNotEnoughPlayers, "two participants are required")
			}
			return nil
		},
		func(s *model.Session) {
			target, detector := pickRoles(s)
			s.Status = model.SessionTalk
			s.TargetID = target
			s.DetectorID = detector
			s.StartedAt = &now
			for i := range s.Participants {
				p := &s.Participants[i]
				if p.UserID == target {
					p.Role = model.RoleTarget
				} else {
					p.Role = model.RoleDetector
				}
			}
		})
	if err != nil {
		return nil, err
	}
	if !res.Applied {
		return nil, res.Reason
	}

	s := res.Current
	c.record(s.ID, model.EventRolesAssigned, caller.UserID, map[string]any{
		"targetId":   s.TargetID,
		"detectorId": s.DetectorID,
	})
	return &model.RoleAssignment{TargetID: s.TargetID, DetectorID: s.DetectorID}, nil
}

// pickRoles returns (target, detector) for a two-seat session.
func pickRoles(s *model.Session) (string, string) {
	seats := make([]model.Participant, len(s.Participants))
	copy(seats, s.Participants)
	sort.Slice(seats, func(i, j int) bool {
		if seats[i].UserID == s.CreatorID {
			return true
		}
		if seats[j].UserID == s.CreatorID {
			return false
		}
		if !seats[i].JoinedAt.Equal(seats[j].JoinedAt) {
			return seats[i].JoinedAt.Before(seats[j].JoinedAt)
		}
		return seats[i].UserID < seats[j].UserID
	})
	return seats[0].UserID, seats[1].UserID
}

// MarkIntroComplete records that the creator dismissed the intro. Repeat calls
// report alreadyCompleted.
func (c *Coordinator) MarkIntroComplete(ctx context.Context, caller model.Identity, sessionID string) (*model.IntroResult, error) {
	now := c.clock()
	res, err := c.transition(ctx, "MarkIntroComplete", sessionID, caller.UserID,
		func(s *model.Session) error {
			if s.CreatorID != caller.UserID {
				return apperr.Forbidden(apperr.CodeNotCreator, "only the creator can complete the intro")
			}
			if s.IntroAcknowledgedAt != nil {
				return errNoop
			}
			if s.Status == model.SessionEnded {
				return apperr.Conflict(apperr.CodeWrongState, "session has ended")
			}
			return nil
		},
		func(s *model.Session) {
			s.IntroAcknowledgedAt = &now
		})
	if err != nil {
		return nil, err
	}
	if errors.Is(res.Reason, errNoop) {
		return &model.IntroResult{OK: true, AlreadyCompleted: true}, nil
	}
	if !res.Applied {
		return nil, res.Reason
	}
	c.record(sessionID, model.EventIntroComplete, caller.UserID, nil)
	return &model.IntroResult{OK: true}, nil
}

// GetSession returns the session with its read-time derived clocks. Participants only.
func (c *Coordinator) GetSession(ctx context.Context, caller model.Identity, sessionID string) (*model.SessionView, error) {
	s, err := c.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := requireParticipant(s, caller.UserID); err != nil {
		return nil, err
	}
	return c.view(s, c.clock()), nil
}

func (c *Coordinator) view(s *model.Session, now time.Time) *model.SessionView {
	v := &model.SessionView{
		Session:        s,
		Participants:   s.Participants,
		LivePersonaMs:  timing.LiveCumulative(s, now),
		PersonaExpired: timing.Expired(s, now, c.timing.PersonaBudget),
		ServerTime:     now,
	}
	if v.Participants == nil {
		v.Participants = []model.Participant{}
	}
	if c.timing.PersonaBudget > 0 {
		left := timing.Remaining(s, now, c.timing.PersonaBudget)
		v.PersonaRemainingMs = &left
	}
	if deadline, ok := c.sessionDeadline(s); ok {
		v.SessionDeadline = &deadline
		left := deadline.Sub(now).Milliseconds()
		if left < 0 || s.Status == model.SessionEnded {
			left = 0
		}
		v.SessionRemainingMs = &left
	}
	return v
}

func (c *Coordinator) sessionDeadline(s *model.Session) (time.Time, bool) {
	if s.StartedAt == nil || c.timing.SessionMaxDuration <= 0 {
		return time.Time{}, false
	}
	return s.StartedAt.Add(c.timing.SessionMaxDuration), true
}

// ListEvents returns the audit trail of a session. Participants only.
func (c *Coordinator) ListEvents(ctx context.Context, caller model.Identity, sessionID string) (*model.EventsResponse, error) {
	s, err := c.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := requireParticipant(s, caller.UserID); err != nil {
		return nil, err
	}
	if c.events == nil {
		return &model.EventsResponse{Events: []*model.Event{}}, nil
	}
	events, err := c.events.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, apperr.Internal("event log unavailable", err)
	}
	if events == nil {
		events = []*model.Event{}
	}
	return &model.EventsResponse{Events: events}, nil
}

// NewJoinCode returns a 6-char code not used by any session, reserved for the caller
// when a code cache is configured.
func (c *Coordinator) NewJoinCode(ctx context.Context, caller model.Identity) (*model.JoinCodeResponse, error) {
	const chars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	const codeLen = 6

	for attempts := 0; attempts < 10; attempts++ {
		b := make([]byte, codeLen)
		if _, err := rand.Read(b); err != nil {
			return nil, apperr.Internal("random source failed", err)
		}
		code := make([]byte, codeLen)
		for i := range code {
			code[i] = chars[int(b[i])%len(chars)]
		}
		codeStr := string(code)

		existing, err := c.sessions.Get(ctx, codeStr)
		if err != nil {
			return nil, apperr.Internal("session store unavailable", err)
		}
		if existing != nil {
			continue
		}
		if c.codes != nil {
			ok, err := c.codes.Reserve(ctx, codeStr, caller.UserID)
			if err != nil {
				return nil, apperr.Internal("code reservation failed", err)
			}
			if !ok {
				continue
			}
		}
		return &model.JoinCodeResponse{Code: codeStr}, nil
	}
	return nil, apperr.New(apperr.KindInternal, apperr.CodeCodeUnavailable, "could not allocate a join code")
}
