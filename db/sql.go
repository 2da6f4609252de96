package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// conversationRow mirrors the document shape: messages live in one JSON column.
type conversationRow struct {
	ID        string    `gorm:"primaryKey;size:36"`
	UserID    string    `gorm:"index;not null"`
	Title     string    `gorm:"type:text"`
	Messages  []Message `gorm:"serializer:json;type:text"`
	CreatedAt time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"index;autoUpdateTime:false"`
}

func (conversationRow) TableName() string {
	return ConversationCollection
}

func (r *conversationRow) toConversation() *Conversation {
	msgs := r.Messages
	if msgs == nil {
		msgs = []Message{}
	}
	return &Conversation{
		ID:        r.ID,
		UserID:    r.UserID,
		Title:     r.Title,
		Messages:  msgs,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// OpenSQL opens a gorm connection for the sqlite or postgres driver.
func OpenSQL(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case TypeSQLite:
		if dsn == "" {
			dsn = "aichat.db"
		}
		dialector = sqlite.Open(dsn)
	case TypePostgres:
		if dsn == "" {
			return nil, errors.New("postgres dsn is empty")
		}
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
	gdb, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}
	return gdb, nil
}

// SQLStore implements Store on top of gorm.
type SQLStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewSQLStore(gdb *gorm.DB) (*SQLStore, error) {
	if err := gdb.AutoMigrate(&conversationRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate conversation schema: %w", err)
	}
	return &SQLStore{db: gdb, now: time.Now}, nil
}

// WithClock overrides the time source, used by tests that need distinct updatedAt values.
func (s *SQLStore) WithClock(now func() time.Time) *SQLStore {
	s.now = now
	return s
}

func (s *SQLStore) CreateConversation(ctx context.Context, userID, title string) (*Conversation, error) {
	now := s.now()
	row := conversationRow{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}
	return row.toConversation(), nil
}

func (s *SQLStore) GetUserConversations(ctx context.Context, userID string) ([]Conversation, error) {
	var rows []conversationRow
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find conversations: %w", err)
	}
	convs := make([]Conversation, 0, len(rows))
	for i := range rows {
		convs = append(convs, *rows[i].toConversation())
	}
	return convs, nil
}

func (s *SQLStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	var row conversationRow
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find conversation %s: %w", id, err)
	}
	return row.toConversation(), nil
}

func (s *SQLStore) AddMessageToConversation(ctx context.Context, id string, msg Message) ([]Message, error) {
	conv, err := s.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	now := s.now()
	updated := appendMessage(conv.Messages, msg, now)
	err = s.db.WithContext(ctx).Model(&conversationRow{ID: id}).
		Select("messages", "updated_at").
		Updates(conversationRow{Messages: updated, UpdatedAt: now}).Error
	if err != nil {
		return nil, fmt.Errorf("update messages: %w", err)
	}
	return updated, nil
}

func (s *SQLStore) MarkMessageAnimated(ctx context.Context, id, messageID string) error {
	conv, err := s.GetConversation(ctx, id)
	if err != nil {
		return err
	}
	if conv == nil {
		return fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	if !markAnimated(conv.Messages, messageID) {
		return nil
	}
	err = s.db.WithContext(ctx).Model(&conversationRow{ID: id}).
		Select("messages").
		Updates(conversationRow{Messages: conv.Messages}).Error
	if err != nil {
		return fmt.Errorf("update animated flag: %w", err)
	}
	return nil
}

func (s *SQLStore) DeleteConversation(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Where("id = ?", id).Delete(&conversationRow{}).Error; err != nil {
		return fmt.Errorf("delete conversation %s: %w", id, err)
	}
	return nil
}

func (s *SQLStore) UpdateConversationTitle(ctx context.Context, id, title string) error {
	res := s.db.WithContext(ctx).Model(&conversationRow{ID: id}).
		Select("title", "updated_at").
		Updates(conversationRow{Title: title, UpdatedAt: s.now()})
	if res.Error != nil {
		return fmt.Errorf("update title: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	return nil
}

func (s *SQLStore) Close(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
