package service

import (
	"context"

	"voiceswap/internal/apperr"
	"voiceswap/internal/model"
	"voiceswap/internal/timing"
)

// ActivatePersona opens a persona window for the target. An open window or a
// spent budget is rejected.
func (c *Coordinator) ActivatePersona(ctx context.Context, caller model.Identity, sessionID string) (*model.OKResponse, error) {
	now := c.clock()
	budget := c.timing.PersonaBudget
	res, err := c.transition(ctx, "ActivatePersona", sessionID, caller.UserID,
		func(s *model.Session) error {
			if err := requireTalkingTarget(s, caller.UserID); err != nil {
				return err
			}
			if s.PersonaActive() {
				return apperr.Conflict(apperr.CodePersonaAlreadyActive, "persona is already active")
			}
			if budget > 0 && s.CumulativePersonaMs >= budget.Milliseconds() {
				return apperr.Conflict(apperr.CodePersonaBudgetExhausted, "persona time is used up")
			}
			return nil
		},
		func(s *model.Session) {
			s.PersonaActivatedAt = &now
		})
	if err != nil {
		return nil, err
	}
	if !res.Applied {
		return nil, res.Reason
	}
	c.record(sessionID, model.EventPersonaActivated, caller.UserID, map[string]any{
		"cumulativeMs": res.Current.CumulativePersonaMs,
	})
	return &model.OKResponse{OK: true}, nil
}

// DeactivatePersona is the target taking back control. The window is closed at
// now, or at its expiry instant if the budget ran out first; only a close before
// expiry counts as a takeback.
func (c *Coordinator) DeactivatePersona(ctx context.Context, caller model.Identity, sessionID string, req model.DeactivateRequest) (*model.DeactivateResult, error) {
	now := c.clock()
	budget := c.timing.PersonaBudget
	var elapsed int64
	var expired bool
	res, err := c.transition(ctx, "DeactivatePersona", sessionID, caller.UserID,
		func(s *model.Session) error {
			if err := requireTalkingTarget(s, caller.UserID); err != nil {
				return err
			}
			if !s.PersonaActive() {
				return apperr.Conflict(apperr.CodePersonaNotActive, "persona is not active")
			}
			return nil
		},
		func(s *model.Session) {
			expired = timing.Expired(s, now, budget)
			elapsed = timing.CloseWindow(s, timing.CloseInstant(s, now, budget))
			if !expired {
				s.TakebackCount++
			}
		})
	if err != nil {
		return nil, err
	}
	if !res.Applied {
		return nil, res.Reason
	}

	s := res.Current
	typ := model.EventPersonaTakeback
	if expired {
		typ = model.EventPersonaExpired
	}
	meta := map[string]any{
		"elapsedMs":    elapsed,
		"cumulativeMs": s.CumulativePersonaMs,
	}
	if req.SessionRef != "" {
		meta["sessionRef"] = req.SessionRef
	}
	c.record(sessionID, typ, caller.UserID, meta)

	return &model.DeactivateResult{
		OK:            true,
		ElapsedMs:     elapsed,
		CumulativeMs:  s.CumulativePersonaMs,
		TakebackCount: s.TakebackCount,
	}, nil
}

// SubmitGuess is the detector's single accusation. It is correct iff a persona
// window is open and within budget at the moment of the write, and it ends the
// session in the same write.
func (c *Coordinator) SubmitGuess(ctx context.Context, caller model.Identity, sessionID string) (*model.GuessResult, error) {
	now := c.clock()
	budget := c.timing.PersonaBudget
	var correct bool
	res, err := c.transition(ctx, "SubmitGuess", sessionID, caller.UserID,
		func(s *model.Session) error {
			p := s.Participant(caller.UserID)
			if p == nil {
				return apperr.Forbidden(apperr.CodeNotParticipant, "not a participant of this session")
			}
			if p.GuessUsed {
				return apperr.Conflict(apperr.CodeGuessAlreadyUsed, "guess has already been used")
			}
			if s.Status != model.SessionTalk {
				return apperr.Conflict(apperr.CodeWrongState, "session is not in the talk phase")
			}
			if s.DetectorID != caller.UserID {
				return apperr.Forbidden(apperr.CodeNotDetector, "only the detector can guess")
			}
			return nil
		},
		func(s *model.Session) {
			correct = s.PersonaActive() && !timing.Expired(s, now, budget)
			timing.CloseWindow(s, timing.CloseInstant(s, now, budget))

			p := s.Participant(caller.UserID)
			p.GuessUsed = true
			p.GuessAt = &now
			p.GuessCorrect = &correct

			s.Status = model.SessionEnded
			s.EndedAt = &now
			s.EndReason = "guess"
			if correct {
				s.Result = model.ResultDetectorWin
			} else {
				s.Result = model.ResultTargetWin
			}
		})
	if err != nil {
		return nil, err
	}
	if !res.Applied {
		return nil, res.Reason
	}

	s := res.Current
	c.record(sessionID, model.EventGuess, caller.UserID, map[string]any{"correct": correct})
	c.record(sessionID, model.EventSessionEnded, caller.UserID, map[string]any{
		"result":       string(s.Result),
		"reason":       s.EndReason,
		"cumulativeMs": s.CumulativePersonaMs,
	})
	return &model.GuessResult{Correct: correct}, nil
}

// ExpirePersona closes a window whose budget has run out, at the instant it ran
// out. It reports whether a window was closed.
func (c *Coordinator) ExpirePersona(ctx context.Context, sessionID string) (bool, error) {
	now := c.clock()
	budget := c.timing.PersonaBudget
	if budget <= 0 {
		return false, nil
	}
	res, err := c.transition(ctx, "ExpirePersona", sessionID, "",
		func(s *model.Session) error {
			if s.Status != model.SessionTalk || !s.PersonaActive() || !timing.Expired(s, now, budget) {
				return errNoop
			}
			return nil
		},
		func(s *model.Session) {
			at, _ := timing.ExpiryInstant(s, budget)
			timing.CloseWindow(s, at)
		})
	if err != nil {
		return false, err
	}
	if !res.Applied {
		return false, nil
	}
	c.record(sessionID, model.EventPersonaExpired, res.Current.TargetID, map[string]any{
		"cumulativeMs": res.Current.CumulativePersonaMs,
	})
	return true, nil
}

func requireTalkingTarget(s *model.Session, userID string) error {
	if err := requireParticipant(s, userID); err != nil {
		return err
	}
	if s.Status != model.SessionTalk {
		return apperr.Conflict(apperr.CodeWrongState, "session is not in the talk phase")
	}
	if s.TargetID != userID {
		return apperr.Forbidden(apperr.CodeNotTarget, "only the target can control the persona")
	}
	return nil
}
