package chat

import "aichat/db"

type Status int

const (
	StatusIdle Status = iota
	StatusAwaitingResponse
)

func (s Status) String() string {
	if s == StatusAwaitingResponse {
		return "awaiting-response"
	}
	return "idle"
}

// Session is the state of one interactive chat. An empty ConversationID
// means no conversation is active yet.
type Session struct {
	ConversationID string       `json:"conversationId"`
	Messages       []db.Message `json:"messages"`
	Status         Status       `json:"-"`
}

func (s Session) Active() bool {
	return s.ConversationID != ""
}
