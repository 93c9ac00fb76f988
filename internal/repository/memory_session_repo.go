package repository

import (
	"context"
	"sort"
	"sync"

	"voiceswap/internal/model"
)

// MemorySessionRepo implements SessionRepo in process memory. The predicate and
// mutation run under the write lock, so updates are never stale.
type MemorySessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
}

// NewMemorySessionRepo returns an empty in-memory repository
func NewMemorySessionRepo() *MemorySessionRepo {
	return &MemorySessionRepo{
		sessions: make(map[string]*model.Session),
	}
}

func (r *MemorySessionRepo) Insert(_ context.Context, session *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[session.ID]; exists {
		return ErrAlreadyExists
	}
	r.sessions[session.ID] = session.Clone()
	return nil
}

func (r *MemorySessionRepo) Get(_ context.Context, id string) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	return session.Clone(), nil
}

func (r *MemorySessionRepo) ConditionalUpdate(_ context.Context, id string, expect Predicate, mutate Mutation) (*UpdateResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	next, err := prepare(current, expect, mutate)
	if err != nil {
		return &UpdateResult{Current: current.Clone(), Reason: err}, nil
	}
	r.sessions[id] = next
	return &UpdateResult{Applied: true, Current: next.Clone()}, nil
}

func (r *MemorySessionRepo) ListActive(_ context.Context, limit int) ([]*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var active []*model.Session
	for _, s := range r.sessions {
		if s.Status == model.SessionTalk {
			active = append(active, s.Clone())
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].ID < active[j].ID
	})
	if limit > 0 && len(active) > limit {
		active = active[:limit]
	}
	return active, nil
}
