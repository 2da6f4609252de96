package db

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

var ErrConversationNotFound = errors.New("conversation not found")

const (
	TypeMongo    = "mongo"
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
)

// Store persists conversations with their embedded messages.
//
// AddMessageToConversation is read-modify-write over the whole message
// array. Two concurrent appends to the same conversation race and the
// later write wins.
type Store interface {
	CreateConversation(ctx context.Context, userID, title string) (*Conversation, error)
	GetUserConversations(ctx context.Context, userID string) ([]Conversation, error)
	// GetConversation returns nil, nil when the conversation does not exist.
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	AddMessageToConversation(ctx context.Context, id string, msg Message) ([]Message, error)
	DeleteConversation(ctx context.Context, id string) error
	UpdateConversationTitle(ctx context.Context, id, title string) error
	MarkMessageAnimated(ctx context.Context, id, messageID string) error
	Close(ctx context.Context) error
}

type Config struct {
	Type     string `yaml:"type"`
	MongoURI string `yaml:"mongo_uri"`
	Database string `yaml:"database"`
	DSN      string `yaml:"dsn"`
}

// Open builds the store named by cfg.Type.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Type {
	case TypeMongo:
		return NewMongoStore(ctx, cfg.MongoURI, cfg.Database)
	case TypeSQLite, TypePostgres, "":
		t := cfg.Type
		if t == "" {
			t = TypeSQLite
		}
		gdb, err := OpenSQL(t, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return NewSQLStore(gdb)
	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Type)
	}
}

// nextMessageID derives an id from the current time in milliseconds,
// bumped past the last id so ids stay unique within a conversation.
func nextMessageID(existing []Message, now time.Time) string {
	id := now.UnixMilli()
	if len(existing) > 0 {
		last, err := strconv.ParseInt(existing[len(existing)-1].ID, 10, 64)
		if err == nil && last >= id {
			id = last + 1
		}
	}
	return strconv.FormatInt(id, 10)
}

func appendMessage(existing []Message, msg Message, now time.Time) []Message {
	msg.ID = nextMessageID(existing, now)
	updated := make([]Message, 0, len(existing)+1)
	updated = append(updated, existing...)
	return append(updated, msg)
}

// markAnimated reports whether the message was found and flipped.
func markAnimated(messages []Message, messageID string) bool {
	for i := range messages {
		if messages[i].ID == messageID {
			if messages[i].Animated {
				return false
			}
			messages[i].Animated = true
			return true
		}
	}
	return false
}
