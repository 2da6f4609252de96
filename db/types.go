package db

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

const MaxTitleLength = 50

var (
	ErrMissingConversation = errors.New("message has no conversation id")
	ErrInvalidRole         = errors.New("message role must be user or assistant")
	ErrEmptyContent        = errors.New("message content is empty")
)

// Message is one chat turn. Id is assigned by the store on append.
type Message struct {
	ID             string `json:"id" bson:"id"`
	ConversationId string `json:"conversationId" bson:"conversationId"`
	Content        string `json:"content" bson:"content"`
	Role           Role   `json:"role" bson:"role"`
	Timestamp      int64  `json:"timestamp" bson:"timestamp"`
	Animated       bool   `json:"animated" bson:"animated"`
}

type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewMessage builds an unsaved message stamped with now.
func NewMessage(conversationID string, role Role, content string, now time.Time) (Message, error) {
	if conversationID == "" {
		return Message{}, ErrMissingConversation
	}
	if !role.Valid() {
		return Message{}, ErrInvalidRole
	}
	if strings.TrimSpace(content) == "" {
		return Message{}, ErrEmptyContent
	}
	return Message{
		ConversationId: conversationID,
		Content:        content,
		Role:           role,
		Timestamp:      now.UnixMilli(),
	}, nil
}

// TitleFromInput returns the first 50 characters of input.
func TitleFromInput(input string) string {
	if utf8.RuneCountInString(input) <= MaxTitleLength {
		return input
	}
	return string([]rune(input)[:MaxTitleLength])
}
