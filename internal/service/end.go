package service

import (
	"context"
	"errors"
	"strings"

	"voiceswap/internal/apperr"
	"voiceswap/internal/model"
	"voiceswap/internal/timing"
)

// End reasons
const (
	ReasonLeft    = "left"
	ReasonTimeout = "timeout"
)

var (
	errAlreadyEnded = errors.New("session already ended")
	errNotDue       = errors.New("session deadline not reached")
)

// EndSession ends the session on behalf of leaverID (the caller when empty).
// The leaver forfeits: a leaving target hands the win to the detector and vice
// versa. An ended session is returned unchanged, so a guess that landed first keeps
// its result.
func (c *Coordinator) EndSession(ctx context.Context, caller model.Identity, sessionID string, req model.EndSessionRequest) (*model.EndResult, error) {
	leaverID := strings.TrimSpace(req.LeaverID)
	if leaverID == "" {
		leaverID = caller.UserID
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = ReasonLeft
	}

	now := c.clock()
	budget := c.timing.PersonaBudget
	res, err := c.transition(ctx, "EndSession", sessionID, caller.UserID,
		func(s *model.Session) error {
			if err := requireParticipant(s, caller.UserID); err != nil {
				return err
			}
			if s.Status == model.SessionEnded {
				return errAlreadyEnded
			}
			if !s.IsParticipant(leaverID) {
				return apperr.NotFound(apperr.CodeParticipantNotFound, "leaver is not a participant of this session")
			}
			return nil
		},
		func(s *model.Session) {
			timing.CloseWindow(s, timing.CloseInstant(s, now, budget))
			s.Status = model.SessionEnded
			s.EndedAt = &now
			s.EndReason = reason
			s.Result = forfeit(s.Participant(leaverID).Role)
		})
	if err != nil {
		return nil, err
	}
	if errors.Is(res.Reason, errAlreadyEnded) {
		return endResult(res.Current), nil
	}
	if !res.Applied {
		return nil, res.Reason
	}

	s := res.Current
	c.record(sessionID, model.EventSessionEnded, caller.UserID, map[string]any{
		"result":       string(s.Result),
		"reason":       reason,
		"leaverId":     leaverID,
		"cumulativeMs": s.CumulativePersonaMs,
	})
	return endResult(s), nil
}

// forfeit is the result when the participant with role leaves.
func forfeit(role model.Role) model.Result {
	switch role {
	case model.RoleTarget:
		return model.ResultDetectorWin
	case model.RoleDetector:
		return model.ResultTargetWin
	default:
		return model.ResultIndeterminate
	}
}

// ExpireSession ends a talk phase that outlived the session deadline. The target
// wins if the persona was ever used, the detector otherwise. Before the deadline
// it reports ended=false.
func (c *Coordinator) ExpireSession(ctx context.Context, caller model.Identity, sessionID string) (*model.EndResult, error) {
	res, _, err := c.expireSession(ctx, caller.UserID, sessionID)
	return res, err
}

// expireSession with an empty actor is the sweeper acting on its own.
// applied reports whether this call ended the session.
func (c *Coordinator) expireSession(ctx context.Context, actor, sessionID string) (result *model.EndResult, applied bool, err error) {
	now := c.clock()
	budget := c.timing.PersonaBudget
	res, err := c.transition(ctx, "ExpireSession", sessionID, actor,
		func(s *model.Session) error {
			if actor != "" {
				if err := requireParticipant(s, actor); err != nil {
					return err
				}
			}
			if s.Status == model.SessionEnded {
				return errAlreadyEnded
			}
			if s.Status != model.SessionTalk {
				return apperr.Conflict(apperr.CodeWrongState, "session is not in the talk phase")
			}
			deadline, ok := c.sessionDeadline(s)
			if !ok || now.Before(deadline) {
				return errNotDue
			}
			return nil
		},
		func(s *model.Session) {
			used := s.CumulativePersonaMs > 0 || s.PersonaActive()
			timing.CloseWindow(s, timing.CloseInstant(s, now, budget))
			s.Status = model.SessionEnded
			s.EndedAt = &now
			s.EndReason = ReasonTimeout
			if used {
				s.Result = model.ResultTargetWin
			} else {
				s.Result = model.ResultDetectorWin
			}
		})
	if err != nil {
		return nil, false, err
	}
	switch {
	case errors.Is(res.Reason, errAlreadyEnded):
		return endResult(res.Current), false, nil
	case errors.Is(res.Reason, errNotDue):
		return &model.EndResult{OK: true, Ended: false}, false, nil
	case !res.Applied:
		return nil, false, res.Reason
	}

	s := res.Current
	c.record(sessionID, model.EventSessionEnded, actor, map[string]any{
		"result":       string(s.Result),
		"reason":       ReasonTimeout,
		"cumulativeMs": s.CumulativePersonaMs,
	})
	return endResult(s), true, nil
}

func endResult(s *model.Session) *model.EndResult {
	return &model.EndResult{
		OK:     true,
		Ended:  true,
		Result: s.Result,
		Reason: s.EndReason,
	}
}
