// Package storage persists assessments, conversations, messages and mapped
// competencies with gorm.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"

	"github.com/spigell/skill-mapper/internal/competency"
	"github.com/spigell/skill-mapper/internal/conversation"
	"github.com/spigell/skill-mapper/internal/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// Repository implements the interview persistence contract. All writes are
// upserts keyed by primary key, so retrying them is safe.
type Repository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Open connects to the configured database and migrates the schema.
func Open(cfg Config, log *zap.Logger) (*Repository, error) {
	if log == nil {
		log = zap.NewNop()
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", DriverSQLite:
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "file:skill-mapper.db?_pragma=foreign_keys(1)"
		}
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		if cfg.DSN == "" {
			return nil, errors.New("postgres dsn is required")
		}
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}

	gormLog := gormLogger.New(
		zap.NewStdLog(log.Named("gorm")),
		gormLogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Driver, err)
	}
	return New(db, log)
}

// New wraps an existing connection and migrates the schema.
func New(db *gorm.DB, log *zap.Logger) (*Repository, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := db.AutoMigrate(&AssessmentRecord{}, &ConversationRecord{}, &MessageRecord{}, &CompetencyRecord{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Repository{db: db, logger: logger.Component(log, "storage")}, nil
}

func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AppendMessage stores msg at its position in conv.
func (r *Repository) AppendMessage(ctx context.Context, conv *conversation.Conversation, msg conversation.Message) error {
	rec, err := newMessageRecord(msg, messageSeq(conv, msg.ID))
	if err != nil {
		return err
	}
	rec.ConversationID = conv.ID

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureConversation(tx, conv); err != nil {
			return err
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(rec).Error; err != nil {
			return fmt.Errorf("insert message %s: %w", msg.ID, err)
		}
		return nil
	})
}

// AppendMappedCompetency stores m under conv.
func (r *Repository) AppendMappedCompetency(ctx context.Context, conv *conversation.Conversation, m *competency.Mapped) error {
	rec, err := newCompetencyRecord(m)
	if err != nil {
		return err
	}
	rec.ConversationID = conv.ID

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureConversation(tx, conv); err != nil {
			return err
		}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(rec).Error; err != nil {
			return fmt.Errorf("upsert competency %s: %w", m.ID, err)
		}
		return nil
	})
}

// Save writes the full conversation.
func (r *Repository) Save(ctx context.Context, conv *conversation.Conversation) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return saveConversation(tx, conv.Snapshot())
	})
}

// SaveAssessment writes the assessment and, when present, its conversation.
func (r *Repository) SaveAssessment(ctx context.Context, a *conversation.Assessment) error {
	rec := &AssessmentRecord{
		ID:          a.ID,
		UserID:      a.UserID,
		Framework:   a.Framework,
		Status:      string(a.Status),
		StartedAt:   a.StartedAt,
		CompletedAt: a.CompletedAt,
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"user_id", "framework", "status", "started_at", "completed_at", "updated_at"}),
		}).Create(rec).Error; err != nil {
			return fmt.Errorf("upsert assessment %s: %w", a.ID, err)
		}
		if a.Conversation == nil {
			return nil
		}
		return saveConversation(tx, a.Conversation.Snapshot())
	})
}

// LoadConversation returns nil without error when id is unknown.
func (r *Repository) LoadConversation(ctx context.Context, id string) (*conversation.Conversation, error) {
	var rec ConversationRecord
	err := r.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }).
		Preload("Competencies", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation %s: %w", id, err)
	}
	return rec.toConversation()
}

// LoadAssessment returns nil without error when id is unknown.
func (r *Repository) LoadAssessment(ctx context.Context, id string) (*conversation.Assessment, error) {
	var rec AssessmentRecord
	err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load assessment %s: %w", id, err)
	}

	a := &conversation.Assessment{
		ID:          rec.ID,
		UserID:      rec.UserID,
		Framework:   rec.Framework,
		Status:      conversation.Status(rec.Status),
		StartedAt:   rec.StartedAt,
		CompletedAt: rec.CompletedAt,
	}

	var convIDs []string
	err = r.db.WithContext(ctx).Model(&ConversationRecord{}).
		Where("assessment_id = ?", rec.ID).
		Order("created_at ASC").
		Limit(1).
		Pluck("id", &convIDs).Error
	if err != nil {
		return nil, fmt.Errorf("find conversation of assessment %s: %w", id, err)
	}
	if len(convIDs) > 0 {
		conv, err := r.LoadConversation(ctx, convIDs[0])
		if err != nil {
			return nil, err
		}
		a.Conversation = conv
	}
	return a, nil
}

// DeleteConversation removes the conversation with its messages and
// competencies.
func (r *Repository) DeleteConversation(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", id).Delete(&CompetencyRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("conversation_id = ?", id).Delete(&MessageRecord{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&ConversationRecord{}).Error
	})
	if err != nil {
		return fmt.Errorf("delete conversation %s: %w", id, err)
	}
	r.logger.Info("conversation deleted", zap.String(logger.FieldConversation, id))
	return nil
}

func ensureConversation(tx *gorm.DB, conv *conversation.Conversation) error {
	rec, err := conversationRecord(conv.Snapshot())
	if err != nil {
		return err
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(rec).Error; err != nil {
		return fmt.Errorf("ensure conversation %s: %w", conv.ID, err)
	}
	return nil
}

func saveConversation(tx *gorm.DB, snap conversation.Snapshot) error {
	rec, err := conversationRecord(snap)
	if err != nil {
		return err
	}
	if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"assessment_id", "state", "entered_at", "history", "metadata", "updated_at"}),
	}).Create(rec).Error; err != nil {
		return fmt.Errorf("upsert conversation %s: %w", snap.ID, err)
	}

	for i, msg := range snap.Messages {
		mr, err := newMessageRecord(msg, i)
		if err != nil {
			return err
		}
		mr.ConversationID = snap.ID
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(mr).Error; err != nil {
			return fmt.Errorf("upsert message %s: %w", msg.ID, err)
		}
	}
	for _, m := range snap.Competencies {
		cr, err := newCompetencyRecord(m)
		if err != nil {
			return err
		}
		cr.ConversationID = snap.ID
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(cr).Error; err != nil {
			return fmt.Errorf("upsert competency %s: %w", m.ID, err)
		}
	}
	return nil
}

func conversationRecord(snap conversation.Snapshot) (*ConversationRecord, error) {
	history := make([]string, 0, len(snap.History))
	for _, st := range snap.History {
		history = append(history, st.String())
	}
	historyJSON, err := marshalJSON(history)
	if err != nil {
		return nil, fmt.Errorf("marshal history: %w", err)
	}
	md, err := marshalJSON(snap.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal conversation metadata: %w", err)
	}
	return &ConversationRecord{
		ID:           snap.ID,
		AssessmentID: snap.AssessmentID,
		State:        snap.State.String(),
		EnteredAt:    snap.EnteredAt,
		History:      historyJSON,
		Metadata:     md,
	}, nil
}

func (rec ConversationRecord) toConversation() (*conversation.Conversation, error) {
	rawHistory, err := unmarshalJSON[[]string](rec.History)
	if err != nil {
		return nil, fmt.Errorf("conversation %s history: %w", rec.ID, err)
	}
	history := make([]conversation.State, 0, len(rawHistory))
	for _, h := range rawHistory {
		st, err := conversation.ParseState(h)
		if err != nil {
			return nil, err
		}
		history = append(history, st)
	}
	md, err := unmarshalJSON[map[string]any](rec.Metadata)
	if err != nil {
		return nil, fmt.Errorf("conversation %s metadata: %w", rec.ID, err)
	}

	snap := conversation.Snapshot{
		ID:           rec.ID,
		AssessmentID: rec.AssessmentID,
		State:        conversation.State(rec.State),
		EnteredAt:    rec.EnteredAt,
		History:      history,
		Metadata:     md,
	}
	for _, mr := range rec.Messages {
		msg, err := mr.toMessage()
		if err != nil {
			return nil, err
		}
		snap.Messages = append(snap.Messages, msg)
	}
	for _, cr := range rec.Competencies {
		m, err := cr.toMapped()
		if err != nil {
			return nil, err
		}
		snap.Competencies = append(snap.Competencies, m)
	}
	return conversation.Restore(snap)
}

func messageSeq(conv *conversation.Conversation, id string) int {
	msgs := conv.Messages()
	for i, m := range msgs {
		if m.ID == id {
			return i
		}
	}
	return len(msgs)
}
