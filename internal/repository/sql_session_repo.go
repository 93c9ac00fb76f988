package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"voiceswap/internal/model"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type sessionRow struct {
	ID                  string `gorm:"primaryKey"`
	CreatorID           string `gorm:"index"`
	Status              string `gorm:"index"`
	TargetID            *string
	DetectorID          *string
	Topic               string
	CreatedAt           time.Time
	StartedAt           *time.Time
	PersonaActivatedAt  *time.Time
	CumulativePersonaMs int64
	TakebackCount       int
	IntroAcknowledgedAt *time.Time
	EndedAt             *time.Time
	Result              *string
	EndReason           string
	Version             int64
}

func (sessionRow) TableName() string { return "sessions" }

type participantRow struct {
	SessionID    string `gorm:"primaryKey"`
	UserID       string `gorm:"primaryKey"`
	DisplayName  string
	Role         *string
	JoinedAt     time.Time
	GuessUsed    bool
	GuessAt      *time.Time
	GuessCorrect *bool
}

func (participantRow) TableName() string { return "participants" }

// OpenSQLite opens (and migrates) an embedded sqlite database at path.
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// sqlite has a single writer; one connection keeps transactions serialized
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&sessionRow{}, &participantRow{}, &eventRow{}); err != nil {
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return db, nil
}

type sqlSessionRepo struct {
	db *gorm.DB
}

// NewSQLSessionRepo creates the gorm-backed session repository. Session and
// participant rows are written in one transaction guarded by the session version.
func NewSQLSessionRepo(db *gorm.DB) SessionRepo {
	return &sqlSessionRepo{db: db}
}

func (r *sqlSessionRepo) Insert(ctx context.Context, session *model.Session) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := toSessionRow(session)
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyExists
		}
		return savParticipants(tx, session)
	})
}

func (r *sqlSessionRepo) Get(ctx context.Context, id string) (*model.Session, error) {
	return loadSession(r.db.WithContext(ctx), id)
}

func (r *sqlSessionRepo) ConditionalUpdate(ctx context.Context, id string, expect Predicate, mutate Mutation) (*UpdateResult, error) {
	var result *UpdateResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := loadSession(tx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrNotFound
		}

		next, perr := prepare(current, expect, mutate)
		if perr != nil {
			result = &UpdateResult{Current: current, Reason: perr}
			return nil
		}

		row := toSessionRow(next)
		res := tx.Model(&sessionRow{}).
			Where("id = ? AND version = ?", id, current.Version).
			Updates(row.columns())
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			result = &UpdateResult{Reason: ErrStale}
			return nil
		}
		if err := savParticipants(tx, next); err != nil {
			return err
		}
		result = &UpdateResult{Applied: true, Current: next}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if errors.Is(result.Reason, ErrStale) {
		fresh, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		result.Current = fresh
	}
	return result, nil
}

func (r *sqlSessionRepo) ListActive(ctx context.Context, limit int) ([]*model.Session, error) {
	q := r.db.WithContext(ctx).Where("status = ?", string(model.SessionTalk)).Order("started_at")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []sessionRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	sessions := make([]*model.Session, 0, len(rows))
	for _, row := range rows {
		s, err := loadSession(r.db.WithContext(ctx), row.ID)
		if err != nil {
			return nil, err
		}
		if s != nil {
			sessions = append(sessions, s)
		}
	}
	return sessions, nil
}

func loadSession(tx *gorm.DB, id string) (*model.Session, error) {
	var row sessionRow
	err := tx.Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var parts []participantRow
	if err := tx.Where("session_id = ?", id).Order("joined_at, user_id").Find(&parts).Error; err != nil {
		return nil, err
	}
	return row.toModel(parts), nil
}

func savParticipants(tx *gorm.DB, s *model.Session) error {
	if len(s.Participants) == 0 {
		return nil
	}
	rows := make([]participantRow, len(s.Participants))
	for i, p := range s.Participants {
		rows[i] = toParticipantRow(s.ID, p)
	}
	return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rows).Error
}

func (r sessionRow) columns() map[string]any {
	return map[string]any{
		"creator_id":            r.CreatorID,
		"status":                r.Status,
		"target_id":             r.TargetID,
		"detector_id":           r.DetectorID,
		"topic":                 r.Topic,
		"started_at":            r.StartedAt,
		"persona_activated_at":  r.PersonaActivatedAt,
		"cumulative_persona_ms": r.CumulativePersonaMs,
		"takeback_count":        r.TakebackCount,
		"intro_acknowledged_at": r.IntroAcknowledgedAt,
		"ended_at":              r.EndedAt,
		"result":                r.Result,
		"end_reason":            r.EndReason,
		"version":               r.Version,
	}
}

func toSessionRow(s *model.Session) sessionRow {
	return sessionRow{
		ID:                  s.ID,
		CreatorID:           s.CreatorID,
		Status:              string(s.Status),
		TargetID:            nullable(s.TargetID),
		DetectorID:          nullable(s.DetectorID),
		Topic:               s.Topic,
		CreatedAt:           s.CreatedAt,
		StartedAt:           s.StartedAt,
		PersonaActivatedAt:  s.PersonaActivatedAt,
		CumulativePersonaMs: s.CumulativePersonaMs,
		TakebackCount:       s.TakebackCount,
		IntroAcknowledgedAt: s.IntroAcknowledgedAt,
		EndedAt:             s.EndedAt,
		Result:              nullable(string(s.Result)),
		EndReason:           s.EndReason,
		Version:             s.Version,
	}
}

func (r sessionRow) toModel(parts []participantRow) *model.Session {
	s := &model.Session{
		ID:                  r.ID,
		CreatorID:           r.CreatorID,
		Status:              model.SessionStatus(r.Status),
		TargetID:            deref(r.TargetID),
		DetectorID:          deref(r.DetectorID),
		Topic:               r.Topic,
		CreatedAt:           r.CreatedAt.UTC(),
		StartedAt:           utc(r.StartedAt),
		PersonaActivatedAt:  utc(r.PersonaActivatedAt),
		CumulativePersonaMs: r.CumulativePersonaMs,
		TakebackCount:       r.TakebackCount,
		IntroAcknowledgedAt: utc(r.IntroAcknowledgedAt),
		EndedAt:             utc(r.EndedAt),
		Result:              model.Result(deref(r.Result)),
		EndReason:           r.EndReason,
		Version:             r.Version,
	}
	for _, p := range parts {
		s.Participants = append(s.Participants, model.Participant{
			SessionID:    p.SessionID,
			UserID:       p.UserID,
			DisplayName:  p.DisplayName,
			Role:         model.Role(deref(p.Role)),
			JoinedAt:     p.JoinedAt.UTC(),
			GuessUsed:    p.GuessUsed,
			GuessAt:      utc(p.GuessAt),
			GuessCorrect: p.GuessCorrect,
		})
	}
	return s
}

func toParticipantRow(sessionID string, p model.Participant) participantRow {
	return participantRow{
		SessionID:    sessionID,
		UserID:       p.UserID,
		DisplayName:  p.DisplayName,
		Role:         nullable(string(p.Role)),
		JoinedAt:     p.JoinedAt,
		GuessUsed:    p.GuessUsed,
		GuessAt:      p.GuessAt,
		GuessCorrect: p.GuessCorrect,
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
