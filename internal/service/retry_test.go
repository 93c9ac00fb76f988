package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"voiceswap/internal/apperr"
	"voiceswap/internal/model"
	"voiceswap/internal/repository"
	"voiceswap/internal/service"
)

// staleRepo reports a lost version race the way a shared store does when another
// writer lands between read and write. race, if set, runs once before the first
// update and is expected to write to the backing repo.
type staleRepo struct {
	*repository.MemorySessionRepo
	race   func()
	always bool

	mu    sync.Mutex
	calls int
}

func (r *staleRepo) ConditionalUpdate(ctx context.Context, id string, expect repository.Predicate, mutate repository.Mutation) (*repository.UpdateResult, error) {
	r.mu.Lock()
	r.calls++
	race := r.race
	r.race = nil
	always := r.always
	r.mu.Unlock()

	if race != nil || always {
		if race != nil {
			race()
		}
		fresh, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return &repository.UpdateResult{Current: fresh, Reason: repository.ErrStale}, nil
	}
	return r.MemorySessionRepo.ConditionalUpdate(ctx, id, expect, mutate)
}

func (r *staleRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestEndSessionRetriesOntoLandedGuess(t *testing.T) {
	h := newHarness(t, service.Timing{})
	ctx := context.Background()
	h.talking(t)
	h.clock.at(1000)
	if _, err := h.coord.ActivatePersona(ctx, alice, room); err != nil {
		t.Fatalf("activate: %v", err)
	}

	stale := &staleRepo{
		MemorySessionRepo: h.repo,
		race: func() {
			if _, err := h.coord.SubmitGuess(ctx, bob, room); err != nil {
				t.Errorf("guess: %v", err)
			}
		},
	}
	leaver := service.NewCoordinator(stale, repository.NewMemoryEventRepo(), nil, nil, service.Timing{})
	leaver.SetClock(h.clock.now)

	h.clock.at(2000)
	res, err := leaver.EndSession(ctx, alice, room, model.EndSessionRequest{})
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if res.Result != model.ResultDetectorWin || res.Reason != "guess" {
		t.Fatalf("end overwrote the guess: %+v", res)
	}
	if n := stale.count(); n != 2 {
		t.Fatalf("got %d store calls want 2", n)
	}

	s := h.session(t)
	if s.Result != model.ResultDetectorWin || s.EndReason != "guess" {
		t.Fatalf("stored result changed: %s %s", s.Result, s.EndReason)
	}
}

func TestTransitionGivesUpUnderContention(t *testing.T) {
	h := newHarness(t, service.Timing{})
	ctx := context.Background()
	h.talking(t)
	before := h.session(t).Version

	stale := &staleRepo{MemorySessionRepo: h.repo, always: true}
	busy := service.NewCoordinator(stale, repository.NewMemoryEventRepo(), nil, nil, service.Timing{})
	busy.SetClock(h.clock.now)

	_, err := busy.EndSession(ctx, alice, room, model.EndSessionRequest{})
	wantCode(t, err, apperr.CodeContention)
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("contention must be a conflict, got %v", apperr.KindOf(err))
	}
	if n := stale.count(); n != 4 {
		t.Fatalf("got %d attempts want 4", n)
	}
	if h.session(t).Version != before {
		t.Fatal("a contended transition must not write")
	}
}

// brokenCache fails every write and records evictions
type brokenCache struct {
	mu      sync.Mutex
	evicted []string
}

func (c *brokenCache) Set(context.Context, *model.Session) error {
	return errors.New("redis down")
}

func (c *brokenCache) Get(context.Context, string) (*model.Session, error) {
	return nil, nil
}

func (c *brokenCache) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evicted = append(c.evicted, id)
	return nil
}

func TestFailedCacheRefreshEvictsSnapshot(t *testing.T) {
	h := newHarness(t, service.Timing{})
	ctx := context.Background()
	bc := &brokenCache{}
	h.coord.SetCache(bc, nil)

	if _, err := h.coord.CreateSession(ctx, alice, model.CreateSessionRequest{SessionID: room}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := h.coord.JoinSession(ctx, bob, room, model.JoinSessionRequest{}); err != nil {
		t.Fatalf("join: %v", err)
	}

	bc.mu.Lock()
	defer bc.mu.Unlock()
	if len(bc.evicted) != 2 || bc.evicted[0] != room || bc.evicted[1] != room {
		t.Fatalf("got evictions %v want two for %s", bc.evicted, room)
	}
}

// memoryCodes is an in-process join code reservation table
type memoryCodes struct {
	mu     sync.Mutex
	owners map[string]string
}

func (c *memoryCodes) Reserve(_ context.Context, code, owner string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, taken := c.owners[code]; taken {
		return false, nil
	}
	c.owners[code] = owner
	return true, nil
}

func (c *memoryCodes) Owner(_ context.Context, code string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.owners[code], nil
}

func (c *memoryCodes) Release(_ context.Context, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.owners, code)
	return nil
}

func TestReservedCodeBelongsToItsOwner(t *testing.T) {
	h := newHarness(t, service.Timing{})
	ctx := context.Background()
	codes := &memoryCodes{owners: map[string]string{}}
	h.coord.SetCache(nil, codes)

	res, err := h.coord.NewJoinCode(ctx, bob)
	if err != nil {
		t.Fatalf("new code: %v", err)
	}

	_, err = h.coord.CreateSession(ctx, alice, model.CreateSessionRequest{SessionID: res.Code})
	wantCode(t, err, apperr.CodeSessionExists)

	if _, err := h.coord.CreateSession(ctx, bob, model.CreateSessionRequest{SessionID: res.Code}); err != nil {
		t.Fatalf("owner create: %v", err)
	}
	if owner, _ := codes.Owner(ctx, res.Code); owner != "" {
		t.Fatalf("code still reserved by %q after the session was created", owner)
	}

	// Unreserved ids are open to anyone.
	if _, err := h.coord.CreateSession(ctx, carol, model.CreateSessionRequest{SessionID: "FREE01"}); err != nil {
		t.Fatalf("unreserved create: %v", err)
	}
}
