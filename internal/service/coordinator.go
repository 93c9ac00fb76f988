package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"voiceswap/internal/apperr"
	"voiceswap/internal/cache"
	"voiceswap/internal/model"
	"voiceswap/internal/repository"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// maxAttempts bounds re-runs of a transition that lost a version race
const maxAttempts = 4

// errNoop marks a predicate that found the transition already done.
var errNoop = errors.New("already applied")

// Timing holds the server-enforced clocks of a session
type Timing struct {
	// PersonaBudget caps cumulative persona time; 0 disables the cap.
	PersonaBudget time.Duration
	// SessionMaxDuration ends a talk phase that runs too long; 0 disables it.
	SessionMaxDuration time.Duration
}

// Coordinator is the session state machine. Every transition is one
// conditional write against the session repository.
type Coordinator struct {
	sessions repository.SessionRepo
	events   repository.EventRepo
	recorder EventRecorder
	notifier Notifier
	cache    cache.SessionCache
	codes    cache.CodeCache
	logger   *slog.Logger
	tracer   trace.Tracer
	timing   Timing
	now      func() time.Time
}

// NewCoordinator creates a new session coordinator
func NewCoordinator(
	sessions repository.SessionRepo,
	events repository.EventRepo,
	recorder EventRecorder,
	logger *slog.Logger,
	timing Timing,
) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		sessions: sessions,
		events:   events,
		recorder: recorder,
		notifier: nopNotifier{},
		logger:   logger.With("component", "coordinator"),
		tracer:   otel.Tracer("voiceswap/coordinator"),
		timing:   timing,
		now:      time.Now,
	}
}

// SetNotifier sets the live update fan-out (called after hub is created)
func (c *Coordinator) SetNotifier(n Notifier) {
	if n == nil {
		n = nopNotifier{}
	}
	c.notifier = n
}

// SetCache enables the read snapshot cache and join code reservation
func (c *Coordinator) SetCache(sessions cache.SessionCache, codes cache.CodeCache) {
	c.cache = sessions
	c.codes = codes
}

// SetClock replaces the wall clock, for tests
func (c *Coordinator) SetClock(now func() time.Time) {
	c.now = now
}

// Timing returns the configured session clocks
func (c *Coordinator) Timing() Timing {
	return c.timing
}

func (c *Coordinator) clock() time.Time {
	return c.now().UTC().Truncate(time.Millisecond)
}

// transition performs one conditional write. A version race re-runs the predicate
// against the refreshed state; a failed predicate is returned to the caller as is.
func (c *Coordinator) transition(ctx context.Context, op, sessionID, userID string, expect repository.Predicate, mutate repository.Mutation) (*repository.UpdateResult, error) {
	ctx, span := c.tracer.Start(ctx, "coordinator."+op, trace.WithAttributes(
		attribute.String("session.id", sessionID),
		attribute.String("user.id", userID),
	))
	defer span.End()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		res, err := c.sessions.ConditionalUpdate(ctx, sessionID, expect, mutate)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errSessionNotFound()
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "store failure")
			c.logger.Error("store failure", "op", op, "session", sessionID, "err", err)
			return nil, apperr.Internal("session store unavailable", err)
		}
		if res.Applied {
			span.SetAttributes(attribute.Int64("session.version", res.Current.Version))
			c.logger.Info("transition applied", "op", op, "session", sessionID, "user", userID, "version", res.Current.Version)
			c.published(ctx, res.Current)
			return res, nil
		}
		if !errors.Is(res.Reason, repository.ErrStale) {
			if !errors.Is(res.Reason, errNoop) {
				c.logger.Debug("transition rejected", "op", op, "session", sessionID, "user", userID, "reason", res.Reason)
			}
			return res, nil
		}
		span.AddEvent("stale", trace.WithAttributes(attribute.Int("attempt", attempt)))
	}
	c.logger.Warn("transition kept losing races", "op", op, "session", sessionID)
	return nil, apperr.Conflict(apperr.CodeContention, "session is busy, retry")
}

// published refreshes the read cache and notifies subscribers of a new version.
func (c *Coordinator) published(ctx context.Context, s *model.Session) {
	if c.cache != nil {
		if err := c.cache.Set(ctx, s); err != nil {
			c.logger.Warn("cache refresh failed", "session", s.ID, "err", err)
			// Evict so reads fall through to the store instead of the older snapshot.
			if err := c.cache.Delete(ctx, s.ID); err != nil {
				c.logger.Warn("cache evict failed", "session", s.ID, "err", err)
			}
		}
	}
	c.notifier.SessionChanged(s.ID, s.Version)
}

func (c *Coordinator) record(sessionID string, typ model.EventType, userID string, metadata map[string]any) {
	if c.recorder == nil {
		return
	}
	c.recorder.Record(sessionID, typ, userID, metadata)
}

// load reads a session, preferring the snapshot cache.
func (c *Coordinator) load(ctx context.Context, sessionID string) (*model.Session, error) {
	if c.cache != nil {
		s, err := c.cache.Get(ctx, sessionID)
		if err != nil {
			c.logger.Warn("cache read failed", "session", sessionID, "err", err)
		}
		if s != nil {
			return s, nil
		}
	}

	s, err := c.sessions.Get(ctx, sessionID)
	if err != nil {
		c.logger.Error("store failure", "op", "Get", "session", sessionID, "err", err)
		return nil, apperr.Internal("session store unavailable", err)
	}
	if s == nil {
		return nil, errSessionNotFound()
	}
	if c.cache != nil {
		if err := c.cache.Set(ctx, s); err != nil {
			c.logger.Warn("cache fill failed", "session", sessionID, "err", err)
		}
	}
	return s, nil
}

// DisplayName picks the name shown for a participant: the provided one, then the
// identity's name claim, then the email local part, then a placeholder from the user id.
func DisplayName(provided string, id model.Identity) string {
	if name := strings.TrimSpace(provided); name != "" {
		return name
	}
	if name := strings.TrimSpace(id.Name); name != "" {
		return name
	}
	if local, _, ok := strings.Cut(id.Email, "@"); ok && local != "" {
		return local
	}
	short := id.UserID
	if len(short) > 6 {
		short = short[:6]
	}
	return "Player " + short
}

func errSessionNotFound() error {
	return apperr.NotFound(apperr.CodeSessionNotFound, "session not found")
}

func requireParticipant(s *model.Session, userID string) error {
	if !s.IsParticipant(userID) {
		return apperr.Forbidden(apperr.CodeNotParticipant, "not a participant of this session")
	}
	return nil
}

func validateSessionID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", apperr.BadRequest("sessionId is required")
	}
	if len(id) > 64 {
		return "", apperr.BadRequest("sessionId must be at most 64 characters")
	}
	return id, nil
}
