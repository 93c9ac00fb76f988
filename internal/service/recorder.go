package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"voiceswap/internal/model"
	"voiceswap/internal/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// EventRecorder accepts audit events without blocking the caller
type EventRecorder interface {
	Record(sessionID string, typ model.EventType, userID string, metadata map[string]any)
}

// Sink is one destination of recorded events
type Sink interface {
	Name() string
	Write(ctx context.Context, event *model.Event) error
}

// Recorder queues events on a bounded buffer drained by a single worker. A full
// buffer drops the event; a failing sink is logged and skipped.
type Recorder struct {
	queue  chan *model.Event
	sinks  []Sink
	logger *slog.Logger
	now    func() time.Time

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewRecorder starts the recorder worker
func NewRecorder(logger *slog.Logger, buffer int, sinks ...Sink) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	if buffer <= 0 {
		buffer = 256
	}
	r := &Recorder{
		queue:  make(chan *model.Event, buffer),
		sinks:  sinks,
		logger: logger.With("component", "recorder"),
		now:    time.Now,
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Recorder) Record(sessionID string, typ model.EventType, userID string, metadata map[string]any) {
	event := &model.Event{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Type:      typ,
		UserID:    userID,
		Metadata:  metadata,
		CreatedAt: r.now().UTC(),
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.logger.Warn("recorder closed, dropping event", "session", sessionID, "type", typ)
		return
	}
	select {
	case r.queue <- event:
	default:
		r.logger.Warn("event buffer full, dropping event", "session", sessionID, "type", typ)
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for event := range r.queue {
		r.deliver(event)
	}
}

func (r *Recorder) deliver(event *model.Event) {
	for _, sink := range r.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := sink.Write(ctx, event)
		cancel()
		if err != nil {
			r.logger.Warn("event sink failed", "sink", sink.Name(), "session", event.SessionID, "type", event.Type, "err", err)
		}
	}
}

// Close stops accepting events and waits until the queue is drained or ctx ends.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RepoSink appends events to the event repository
type RepoSink struct {
	repo repository.EventRepo
}

func NewRepoSink(repo repository.EventRepo) *RepoSink {
	return &RepoSink{repo: repo}
}

func (s *RepoSink) Name() string { return "store" }

func (s *RepoSink) Write(ctx context.Context, event *model.Event) error {
	return s.repo.Append(ctx, event)
}

// StreamSink appends events to the per-session Redis stream session:{id}:events.
type StreamSink struct {
	client *redis.Client
	maxLen int64
}

func NewStreamSink(client *redis.Client) *StreamSink {
	return &StreamSink{client: client, maxLen: 1000}
}

func (s *StreamSink) Name() string { return "stream" }

func (s *StreamSink) Write(ctx context.Context, event *model.Event) error {
	values := map[string]any{
		"id":        event.ID,
		"type":      string(event.Type),
		"userId":    event.UserID,
		"createdAt": event.CreatedAt.Format(time.RFC3339Nano),
	}
	if len(event.Metadata) > 0 {
		data, err := json.Marshal(event.Metadata)
		if err != nil {
			return err
		}
		values["metadata"] = string(data)
	}
	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey(event.SessionID),
		MaxLen: s.maxLen,
		Approx: true,
		Values: values,
	}).Err()
}

// StreamKey is the Redis stream holding a session's events
func StreamKey(sessionID string) string {
	return fmt.Sprintf("session:%s:events", sessionID)
}
