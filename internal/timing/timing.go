// Package timing derives persona-window durations from server-observed timestamps.
// Client-reported elapsed time never enters these calculations.
package timing

import (
	"time"

	"voiceswap/internal/model"
)

// ElapsedMs returns to-from in milliseconds, clamped at zero so a clock step
// between servers can never shrink the cumulative total.
func ElapsedMs(from, to time.Time) int64 {
	d := to.Sub(from).Milliseconds()
	if d < 0 {
		return 0
	}
	return d
}

// LiveCumulative is the accumulated persona duration plus the live elapsed time
// of the open window, if any.
func LiveCumulative(s *model.Session, now time.Time) int64 {
	total := s.CumulativePersonaMs
	if s.PersonaActivatedAt != nil {
		total += ElapsedMs(*s.PersonaActivatedAt, now)
	}
	return total
}

// ExpiryInstant is the moment the open window exhausts budget. ok is false when
// no window is open or the budget is disabled.
func ExpiryInstant(s *model.Session, budget time.Duration) (at time.Time, ok bool) {
	if s.PersonaActivatedAt == nil || budget <= 0 {
		return time.Time{}, false
	}
	left := budget.Milliseconds() - s.CumulativePersonaMs
	if left < 0 {
		left = 0
	}
	return s.PersonaActivatedAt.Add(time.Duration(left) * time.Millisecond), true
}

// Remaining is the unused budget at now. Zero when exhausted; budget <= 0 means unlimited
// and Remaining returns -1.
func Remaining(s *model.Session, now time.Time, budget time.Duration) int64 {
	if budget <= 0 {
		return -1
	}
	left := budget.Milliseconds() - LiveCumulative(s, now)
	if left < 0 {
		return 0
	}
	return left
}

// Expired reports whether the budget is used up at now
func Expired(s *model.Session, now time.Time, budget time.Duration) bool {
	return budget > 0 && LiveCumulative(s, now) >= budget.Milliseconds()
}

// CloseInstant is when a window closed at now is deemed to have closed: now, or
// the expiry instant if the budget ran out first.
func CloseInstant(s *model.Session, now time.Time, budget time.Duration) time.Time {
	if at, ok := ExpiryInstant(s, budget); ok && at.Before(now) {
		return at
	}
	return now
}

// CloseWindow folds the open window into the cumulative total as of at and
// clears the activation timestamp. It returns the window's duration.
func CloseWindow(s *model.Session, at time.Time) int64 {
	if s.PersonaActivatedAt == nil {
		return 0
	}
	elapsed := ElapsedMs(*s.PersonaActivatedAt, at)
	s.CumulativePersonaMs += elapsed
	s.PersonaActivatedAt = nil
	return elapsed
}
