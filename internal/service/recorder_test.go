package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"voiceswap/internal/model"
	"voiceswap/internal/repository"
	"voiceswap/internal/service"
)

type failingSink struct{}

func (failingSink) Name() string { return "failing" }

func (failingSink) Write(context.Context, *model.Event) error {
	return errors.New("sink down")
}

// gateSink blocks every write until release is closed, signalling entered first.
type gateSink struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once

	mu     sync.Mutex
	writes int
}

func (s *gateSink) Name() string { return "gate" }

func (s *gateSink) Write(ctx context.Context, _ *model.Event) error {
	s.once.Do(func() { close(s.entered) })
	<-s.release
	s.mu.Lock()
	s.writes++
	s.mu.Unlock()
	return nil
}

func TestRecorderDeliversToAllSinks(t *testing.T) {
	events := repository.NewMemoryEventRepo()
	rec := service.NewRecorder(nil, 16, failingSink{}, service.NewRepoSink(events))

	rec.Record("s1", model.EventSessionCreated, "alice", nil)
	rec.Record("s1", model.EventParticipantJoined, "bob", map[string]any{"displayName": "Bob"})
	rec.Record("s2", model.EventSessionCreated, "carol", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rec.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	got, _ := events.ListBySession(context.Background(), "s1")
	if len(got) != 2 {
		t.Fatalf("got %d events for s1 want 2", len(got))
	}
	if got[0].ID == "" || got[0].CreatedAt.IsZero() {
		t.Fatalf("event id and time must be set: %+v", got[0])
	}
	if got[1].Type != model.EventParticipantJoined {
		t.Fatalf("events out of order: %+v", got)
	}
}

func TestRecorderDropsWhenBufferFull(t *testing.T) {
	sink := &gateSink{entered: make(chan struct{}), release: make(chan struct{})}
	rec := service.NewRecorder(nil, 1, sink)

	rec.Record("s1", model.EventGuess, "bob", nil)
	<-sink.entered // worker is now holding the first event

	rec.Record("s1", model.EventSessionEnded, "bob", nil) // fills the buffer
	rec.Record("s1", model.EventIntroComplete, "bob", nil) // dropped

	close(sink.release)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rec.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	if sink.writes != 2 {
		t.Fatalf("got %d writes want 2", sink.writes)
	}
}

func TestRecorderIgnoresEventsAfterClose(t *testing.T) {
	events := repository.NewMemoryEventRepo()
	rec := service.NewRecorder(nil, 4, service.NewRepoSink(events))
	if err := rec.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}

	rec.Record("s1", model.EventGuess, "bob", nil)

	got, _ := events.ListBySession(context.Background(), "s1")
	if len(got) != 0 {
		t.Fatalf("closed recorder delivered %d events", len(got))
	}
}
