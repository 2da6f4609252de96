package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"aichat/db"
	"aichat/log"
)

const ErrorReply = "Sorry, I encountered an error. Please try again."

var (
	ErrEmptyInput      = errors.New("message is empty")
	ErrUnauthenticated = errors.New("user is not signed in")
	ErrNotFound        = errors.New("conversation not found")
	ErrMessageNotFound = errors.New("message not found")
)

// Completer produces the assistant reply for the raw user text.
type Completer interface {
	Complete(ctx context.Context, message string) (string, error)
}

type Orchestrator struct {
	store     db.Store
	completer Completer
	now       func() time.Time
}

func NewOrchestrator(store db.Store, completer Completer) *Orchestrator {
	return &Orchestrator{store: store, completer: completer, now: time.Now}
}

func (o *Orchestrator) List(ctx context.Context, userID string) ([]db.Conversation, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	return o.store.GetUserConversations(ctx, userID)
}

// Send appends the user message, asks for a completion and appends the
// reply. A failed completion becomes the fixed ErrorReply message.
func (o *Orchestrator) Send(ctx context.Context, sess Session, userID, input string) (Session, error) {
	if strings.TrimSpace(input) == "" {
		return sess, ErrEmptyInput
	}
	if userID == "" {
		return sess, ErrUnauthenticated
	}

	if !sess.Active() {
		conv, err := o.store.CreateConversation(ctx, userID, db.TitleFromInput(input))
		if err != nil {
			return sess, fmt.Errorf("create conversation: %w", err)
		}
		log.Debugw("conversation created", "conversation", conv.ID, "uid", userID)
		sess = Session{ConversationID: conv.ID, Messages: conv.Messages}
	}
	sess.Status = StatusAwaitingResponse

	msgs, err := o.append(ctx, sess.ConversationID, db.RoleUser, input)
	if err != nil {
		log.Warnw("append user message failed", "conversation", sess.ConversationID, "err", err)
		return o.apologize(ctx, sess, err)
	}
	sess.Messages = msgs

	answer, err := o.completer.Complete(ctx, input)
	if err != nil {
		log.Warnw("completion failed", "conversation", sess.ConversationID, "err", err)
		return o.apologize(ctx, sess, err)
	}
	msgs, err = o.append(ctx, sess.ConversationID, db.RoleAssistant, answer)
	if err != nil {
		log.Warnw("append assistant message failed", "conversation", sess.ConversationID, "err", err)
		return o.apologize(ctx, sess, err)
	}
	sess.Messages = msgs
	sess.Status = StatusIdle
	return sess, nil
}

func (o *Orchestrator) append(ctx context.Context, conversationID string, role db.Role, content string) ([]db.Message, error) {
	msg, err := db.NewMessage(conversationID, role, content, o.now())
	if err != nil {
		return nil, err
	}
	return o.store.AddMessageToConversation(ctx, conversationID, msg)
}

// apologize appends ErrorReply. cause is only returned when that append
// fails as well.
func (o *Orchestrator) apologize(ctx context.Context, sess Session, cause error) (Session, error) {
	sess.Status = StatusIdle
	msgs, err := o.append(ctx, sess.ConversationID, db.RoleAssistant, ErrorReply)
	if err != nil {
		log.Errorw("append error reply failed", "conversation", sess.ConversationID, "err", err)
		if errors.Is(err, db.ErrConversationNotFound) {
			return sess, fmt.Errorf("%w: %v", ErrNotFound, cause)
		}
		return sess, cause
	}
	sess.Messages = msgs
	return sess, nil
}

// Open makes conversationID the active conversation. Loaded messages are
// all marked animated since their reveal already happened.
func (o *Orchestrator) Open(ctx context.Context, sess Session, conversationID string) (Session, error) {
	conv, err := o.store.GetConversation(ctx, conversationID)
	if err != nil {
		return sess, err
	}
	if conv == nil {
		return sess, ErrNotFound
	}
	msgs := make([]db.Message, len(conv.Messages))
	for i, m := range conv.Messages {
		m.Animated = true
		msgs[i] = m
	}
	return Session{ConversationID: conv.ID, Messages: msgs}, nil
}

// MarkAnimated flips the message's animated flag once. Persisting the
// flag is best effort.
func (o *Orchestrator) MarkAnimated(ctx context.Context, sess Session, messageID string) (Session, error) {
	idx := -1
	for i := range sess.Messages {
		if sess.Messages[i].ID == messageID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return sess, ErrMessageNotFound
	}
	if sess.Messages[idx].Animated {
		return sess, nil
	}
	msgs := make([]db.Message, len(sess.Messages))
	copy(msgs, sess.Messages)
	msgs[idx].Animated = true
	sess.Messages = msgs

	if err := o.store.MarkMessageAnimated(ctx, sess.ConversationID, messageID); err != nil {
		log.Warnw("persist animated flag failed", "conversation", sess.ConversationID, "message", messageID, "err", err)
	}
	return sess, nil
}

// Delete removes the conversation. Deleting the active one resets the session.
func (o *Orchestrator) Delete(ctx context.Context, sess Session, conversationID string) (Session, error) {
	if err := o.store.DeleteConversation(ctx, conversationID); err != nil {
		return sess, err
	}
	if sess.ConversationID == conversationID {
		return NewChat(sess), nil
	}
	return sess, nil
}

func (o *Orchestrator) Rename(ctx context.Context, conversationID, title string) error {
	return o.store.UpdateConversationTitle(ctx, conversationID, title)
}

// NewChat drops the active conversation without deleting anything.
func NewChat(Session) Session {
	return Session{}
}
