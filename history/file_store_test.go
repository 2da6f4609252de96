package history

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadMissingFile(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "chat-history.json"))
	got := s.Read()
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty history, got %#v", got)
	}
}

func TestReadInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat-history.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	got := NewFileStore(path).Read()
	if len(got) != 0 {
		t.Fatalf("expected empty history, got %#v", got)
	}
}

func TestSaveAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "chat-history.json")
	s := NewFileStore(path)
	in := []Message{
		{ID: "1", Role: "user", Content: "hi", Timestamp: 1},
		{ID: "2", Role: "assistant", Content: "hello", Timestamp: 2},
	}
	s.Save(in)

	got := s.Read()
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
	for i := range in {
		if got[i] != in[i] {
			t.Fatalf("message %d: want %+v got %+v", i, in[i], got[i])
		}
	}
}

func TestSaveFailureIsSwallowed(t *testing.T) {
	dir := t.TempDir()
	// a directory where the file should be makes the write fail
	path := filepath.Join(dir, "chat-history.json")
	if err := os.Mkdir(path, 0o755); err != nil {
		t.Fatal(err)
	}
	s := NewFileStore(path)
	s.Save([]Message{{ID: "1", Role: "user", Content: "x"}})
	if got := s.Read(); len(got) != 0 {
		t.Fatalf("expected empty history, got %#v", got)
	}
}

func TestUpdate(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "chat-history.json"))
	s.Save([]Message{{ID: "1", Role: "user", Content: "a"}})
	s.Update(func(existing []Message) []Message {
		return append(existing, Message{ID: "2", Role: "assistant", Content: "b"})
	})
	got := s.Read()
	if len(got) != 2 || got[1].ID != "2" {
		t.Fatalf("unexpected history %#v", got)
	}
}
