package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"aichat/db"
)

type memStore struct {
	mu    sync.Mutex
	seq   int
	convs map[string]*db.Conversation

	failAnimated bool
}

func newMemStore() *memStore {
	return &memStore{convs: map[string]*db.Conversation{}}
}

func (s *memStore) CreateConversation(_ context.Context, userID, title string) (*db.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	now := time.Now()
	c := &db.Conversation{ID: fmt.Sprintf("c%d", s.seq), UserID: userID, Title: title, Messages: []db.Message{}, CreatedAt: now, UpdatedAt: now}
	s.convs[c.ID] = c
	cp := *c
	return &cp, nil
}

func (s *memStore) GetUserConversations(_ context.Context, userID string) ([]db.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []db.Conversation
	for _, c := range s.convs {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *memStore) GetConversation(_ context.Context, id string) (*db.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	cp.Messages = append([]db.Message(nil), c.Messages...)
	return &cp, nil
}

func (s *memStore) AddMessageToConversation(_ context.Context, id string, msg db.Message) ([]db.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[id]
	if !ok {
		return nil, db.ErrConversationNotFound
	}
	s.seq++
	msg.ID = fmt.Sprintf("m%d", s.seq)
	c.Messages = append(append([]db.Message(nil), c.Messages...), msg)
	c.UpdatedAt = time.Now()
	return append([]db.Message(nil), c.Messages...), nil
}

func (s *memStore) DeleteConversation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.convs, id)
	return nil
}

func (s *memStore) UpdateConversationTitle(_ context.Context, id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[id]
	if !ok {
		return db.ErrConversationNotFound
	}
	c.Title = title
	return nil
}

func (s *memStore) MarkMessageAnimated(_ context.Context, id, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAnimated {
		return errors.New("store down")
	}
	c, ok := s.convs[id]
	if !ok {
		return db.ErrConversationNotFound
	}
	for i := range c.Messages {
		if c.Messages[i].ID == messageID {
			c.Messages[i].Animated = true
		}
	}
	return nil
}

func (s *memStore) Close(context.Context) error { return nil }

type fakeCompleter struct {
	answer string
	err    error
	inputs []string
}

func (f *fakeCompleter) Complete(_ context.Context, message string) (string, error) {
	f.inputs = append(f.inputs, message)
	return f.answer, f.err
}

func TestSendFirstMessageCreatesConversation(t *testing.T) {
	store := newMemStore()
	completer := &fakeCompleter{answer: "Hi! How can I help?"}
	o := NewOrchestrator(store, completer)
	ctx := context.Background()

	sess, err := o.Send(ctx, Session{}, "user-1", "Hello")
	if err != nil {
		t.Fatal(err)
	}
	if !sess.Active() || sess.Status != StatusIdle {
		t.Fatalf("unexpected session %+v", sess)
	}
	conv, _ := store.GetConversation(ctx, sess.ConversationID)
	if conv.Title != "Hello" || conv.UserID != "user-1" {
		t.Fatalf("unexpected conversation %+v", conv)
	}
	if len(sess.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(sess.Messages))
	}
	user, reply := sess.Messages[0], sess.Messages[1]
	if user.Role != db.RoleUser || user.Content != "Hello" {
		t.Fatalf("unexpected user message %+v", user)
	}
	if reply.Role != db.RoleAssistant || reply.Content != "Hi! How can I help?" || reply.Animated {
		t.Fatalf("unexpected assistant message %+v", reply)
	}
	if len(completer.inputs) != 1 || completer.inputs[0] != "Hello" {
		t.Fatalf("completer got %v", completer.inputs)
	}

	sess, err = o.MarkAnimated(ctx, sess, reply.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !sess.Messages[1].Animated {
		t.Fatal("reply should be animated after reveal")
	}
	conv, _ = store.GetConversation(ctx, sess.ConversationID)
	if !conv.Messages[1].Animated {
		t.Fatal("animated flag not persisted")
	}
}

func TestSendLongTitleIsTruncated(t *testing.T) {
	store := newMemStore()
	o := NewOrchestrator(store, &fakeCompleter{answer: "ok"})
	input := strings.Repeat("a", 80)
	sess, err := o.Send(context.Background(), Session{}, "user-1", input)
	if err != nil {
		t.Fatal(err)
	}
	conv, _ := store.GetConversation(context.Background(), sess.ConversationID)
	if len(conv.Title) != db.MaxTitleLength {
		t.Fatalf("title length %d", len(conv.Title))
	}
	if sess.Messages[0].Content != input {
		t.Fatal("user message must keep the full input")
	}
}

func TestSendCompletionFailure(t *testing.T) {
	store := newMemStore()
	o := NewOrchestrator(store, &fakeCompleter{err: errors.New("network down")})
	sess, err := o.Send(context.Background(), Session{}, "user-1", "Hello")
	if err != nil {
		t.Fatalf("completion failure should not surface, got %v", err)
	}
	var assistants []db.Message
	for _, m := range sess.Messages {
		if m.Role == db.RoleAssistant {
			assistants = append(assistants, m)
		}
	}
	if len(assistants) != 1 || assistants[0].Content != ErrorReply {
		t.Fatalf("expected exactly one error reply, got %+v", assistants)
	}
	if sess.Status != StatusIdle {
		t.Fatalf("status should be idle, got %s", sess.Status)
	}
}

func TestSendContinuesActiveConversation(t *testing.T) {
	store := newMemStore()
	o := NewOrchestrator(store, &fakeCompleter{answer: "ok"})
	ctx := context.Background()
	sess, err := o.Send(ctx, Session{}, "user-1", "first")
	if err != nil {
		t.Fatal(err)
	}
	id := sess.ConversationID
	sess, err = o.Send(ctx, sess, "user-1", "second")
	if err != nil {
		t.Fatal(err)
	}
	if sess.ConversationID != id || len(sess.Messages) != 4 {
		t.Fatalf("unexpected session %+v", sess)
	}
	convs, _ := store.GetUserConversations(ctx, "user-1")
	if len(convs) != 1 {
		t.Fatalf("expected a single conversation, got %d", len(convs))
	}
}

func TestSendValidation(t *testing.T) {
	o := NewOrchestrator(newMemStore(), &fakeCompleter{answer: "ok"})
	if _, err := o.Send(context.Background(), Session{}, "user-1", "   "); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	if _, err := o.Send(context.Background(), Session{}, "", "hi"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestSendToDeletedConversation(t *testing.T) {
	store := newMemStore()
	o := NewOrchestrator(store, &fakeCompleter{answer: "ok"})
	_, err := o.Send(context.Background(), Session{ConversationID: "gone"}, "user-1", "hi")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOpenMarksHistoryAnimated(t *testing.T) {
	store := newMemStore()
	o := NewOrchestrator(store, &fakeCompleter{answer: "ok"})
	ctx := context.Background()
	sess, _ := o.Send(ctx, Session{}, "user-1", "Hello")

	opened, err := o.Open(ctx, NewChat(sess), sess.ConversationID)
	if err != nil {
		t.Fatal(err)
	}
	if opened.ConversationID != sess.ConversationID || len(opened.Messages) != 2 {
		t.Fatalf("unexpected session %+v", opened)
	}
	for _, m := range opened.Messages {
		if !m.Animated {
			t.Fatalf("message %s loaded from history should be animated", m.ID)
		}
	}
	if _, err := o.Open(ctx, Session{}, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMarkAnimatedBestEffort(t *testing.T) {
	store := newMemStore()
	o := NewOrchestrator(store, &fakeCompleter{answer: "ok"})
	ctx := context.Background()
	sess, _ := o.Send(ctx, Session{}, "user-1", "Hello")
	store.failAnimated = true

	before := sess
	sess, err := o.MarkAnimated(ctx, sess, sess.Messages[1].ID)
	if err != nil {
		t.Fatalf("persistence failure should be swallowed, got %v", err)
	}
	if !sess.Messages[1].Animated {
		t.Fatal("session flag should flip even when persisting fails")
	}
	if before.Messages[1].Animated {
		t.Fatal("input session must not be mutated")
	}
	if _, err := o.MarkAnimated(ctx, sess, "nope"); !errors.Is(err, ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound, got %v", err)
	}
}

func TestDeleteActiveConversationResets(t *testing.T) {
	store := newMemStore()
	o := NewOrchestrator(store, &fakeCompleter{answer: "ok"})
	ctx := context.Background()
	sess, _ := o.Send(ctx, Session{}, "user-1", "Hello")
	other, _ := o.Send(ctx, Session{}, "user-1", "Other")

	kept, err := o.Delete(ctx, sess, other.ConversationID)
	if err != nil {
		t.Fatal(err)
	}
	if kept.ConversationID != sess.ConversationID {
		t.Fatal("deleting another conversation must keep the active one")
	}

	reset, err := o.Delete(ctx, sess, sess.ConversationID)
	if err != nil {
		t.Fatal(err)
	}
	if reset.Active() || len(reset.Messages) != 0 {
		t.Fatalf("expected empty session, got %+v", reset)
	}
	if conv, _ := store.GetConversation(ctx, sess.ConversationID); conv != nil {
		t.Fatal("conversation still stored")
	}
}

func TestNewChatKeepsConversations(t *testing.T) {
	store := newMemStore()
	o := NewOrchestrator(store, &fakeCompleter{answer: "ok"})
	ctx := context.Background()
	sess, _ := o.Send(ctx, Session{}, "user-1", "Hello")

	fresh := NewChat(sess)
	if fresh.Active() {
		t.Fatal("new chat should have no active conversation")
	}
	convs, err := o.List(ctx, "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 1 {
		t.Fatalf("expected conversation to survive, got %d", len(convs))
	}
}
