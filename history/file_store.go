package history

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"aichat/log"

	"github.com/goccy/go-json"
)

const DefaultFile = "chat-history.json"

// Message is a flat history entry. It has no conversation grouping and is
// not shared with the conversation store.
type Message struct {
	Content   string `json:"content"`
	Role      string `json:"role"`
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
}

// FileStore keeps the whole history as one JSON array on disk.
// Errors never reach the caller: reads degrade to an empty history and
// failed writes are logged and dropped.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultFile
	}
	return &FileStore{path: path}
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Read() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *FileStore) read() []Message {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Debug("read chat history ", s.path, ": ", err)
		}
		return []Message{}
	}
	var messages []Message
	if err := json.Unmarshal(data, &messages); err != nil {
		log.Debug("decode chat history ", s.path, ": ", err)
		return []Message{}
	}
	if messages == nil {
		return []Message{}
	}
	return messages
}

func (s *FileStore) Save(messages []Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.save(messages)
}

func (s *FileStore) save(messages []Message) {
	if messages == nil {
		messages = []Message{}
	}
	payload, err := json.MarshalIndent(messages, "", "  ")
	if err != nil {
		log.Error("Error saving chat history: ", err)
		return
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Error("Error saving chat history: ", err)
			return
		}
	}
	if err := os.WriteFile(s.path, payload, 0o644); err != nil {
		log.Error("Error saving chat history: ", err)
	}
}

// Update runs read, fn, save under one lock so writers inside this
// process do not interleave.
func (s *FileStore) Update(fn func(existing []Message) []Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.save(fn(s.read()))
}
