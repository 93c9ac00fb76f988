package repository

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"voiceswap/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/gorm"
)

// EventRepo is the append-only audit log of transitions
type EventRepo interface {
	Append(ctx context.Context, event *model.Event) error
	ListBySession(ctx context.Context, sessionID string) ([]*model.Event, error)
}

type mongoEventRepo struct {
	collection *mongo.Collection
}

func NewMongoEventRepo(db *mongo.Database) EventRepo {
	repo := &mongoEventRepo{
		collection: db.Collection("events"),
	}
	_, err := repo.collection.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys: bson.D{{Key: "sessionId", Value: 1}, {Key: "createdAt", Value: 1}},
	})
	if err != nil {
		slog.Warn("failed to create event indexes", "err", err)
	}
	return repo
}

func (r *mongoEventRepo) Append(ctx context.Context, event *model.Event) error {
	_, err := r.collection.InsertOne(ctx, event)
	return err
}

func (r *mongoEventRepo) ListBySession(ctx context.Context, sessionID string) ([]*model.Event, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"sessionId": sessionID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []*model.Event
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

type eventRow struct {
	ID        string `gorm:"primaryKey"`
	SessionID string `gorm:"index:idx_events_session"`
	Type      string
	UserID    string
	Metadata  string
	CreatedAt time.Time `gorm:"index:idx_events_session"`
}

func (eventRow) TableName() string { return "events" }

type sqlEventRepo struct {
	db *gorm.DB
}

func NewSQLEventRepo(db *gorm.DB) EventRepo {
	return &sqlEventRepo{db: db}
}

func (r *sqlEventRepo) Append(ctx context.Context, event *model.Event) error {
	meta := ""
	if len(event.Metadata) > 0 {
		data, err := json.Marshal(event.Metadata)
		if err != nil {
			return err
		}
		meta = string(data)
	}
	row := eventRow{
		ID:        event.ID,
		SessionID: event.SessionID,
		Type:      string(event.Type),
		UserID:    event.UserID,
		Metadata:  meta,
		CreatedAt: event.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *sqlEventRepo) ListBySession(ctx context.Context, sessionID string) ([]*model.Event, error) {
	var rows []eventRow
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at, id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	events := make([]*model.Event, 0, len(rows))
	for _, row := range rows {
		e := &model.Event{
			ID:        row.ID,
			SessionID: row.SessionID,
			Type:      model.EventType(row.Type),
			UserID:    row.UserID,
			CreatedAt: row.CreatedAt.UTC(),
		}
		if row.Metadata != "" {
			if err := json.Unmarshal([]byte(row.Metadata), &e.Metadata); err != nil {
				return nil, err
			}
		}
		events = append(events, e)
	}
	return events, nil
}

// MemoryEventRepo keeps events in process memory
type MemoryEventRepo struct {
	mu     sync.Mutex
	events []*model.Event
}

func NewMemoryEventRepo() *MemoryEventRepo {
	return &MemoryEventRepo{}
}

func (r *MemoryEventRepo) Append(_ context.Context, event *model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := *event
	r.events = append(r.events, &e)
	return nil
}

func (r *MemoryEventRepo) ListBySession(_ context.Context, sessionID string) ([]*model.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Event
	for _, e := range r.events {
		if e.SessionID == sessionID {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}
