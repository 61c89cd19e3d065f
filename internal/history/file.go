package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps every client's history in one in-process map and mirrors
// it to a single JSON document on disk after each mutation. The in-memory
// map is authoritative: a failed flush is logged and reported through the
// persist hook, never surfaced to callers.
type FileStore struct {
	path string
	cap  int

	mu      sync.Mutex
	clients map[string][]Turn

	onPersistError func(error)
}

// NewFileStore loads the snapshot at path, or starts empty when the file is
// missing or unreadable. Startup never fails because of snapshot contents.
func NewFileStore(path string, historyCap int) *FileStore {
	s := &FileStore{
		path:    path,
		cap:     historyCap,
		clients: make(map[string][]Turn),
	}
	s.loadSnapshot()
	return s
}

// SetPersistHook registers a callback invoked on every failed flush.
func (s *FileStore) SetPersistHook(hook func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onPersistError = hook
}

func (s *FileStore) loadSnapshot() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("history: cannot read %s, starting empty: %v", s.path, err)
		}
		return
	}
	var clients map[string][]Turn
	if err := json.Unmarshal(data, &clients); err != nil {
		log.Printf("history: malformed snapshot %s, starting empty: %v", s.path, err)
		return
	}
	if clients != nil {
		s.clients = clients
	}
}

func (s *FileStore) Get(_ context.Context, clientID string) ([]Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneTurns(s.clients[clientID]), nil
}

func (s *FileStore) Append(_ context.Context, clientID string, turn Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := append(s.clients[clientID], turn)
	if s.cap > 0 && len(turns) > s.cap {
		turns = append([]Turn{}, turns[len(turns)-s.cap:]...)
	}
	s.clients[clientID] = turns
	s.persistLocked()
	return nil
}

func (s *FileStore) Replace(_ context.Context, clientID string, turns []Turn) error {
	if err := Validate(turns); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[clientID] = cloneTurns(turns)
	s.persistLocked()
	return nil
}

func (s *FileStore) Clear(_ context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[clientID] = []Turn{}
	s.persistLocked()
	return nil
}

func (s *FileStore) Snapshot(_ context.Context) (map[string][]Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string][]Turn, len(s.clients))
	for id, turns := range s.clients {
		out[id] = cloneTurns(turns)
	}
	return out, nil
}

func (s *FileStore) Mode() string { return "file" }

// Close flushes once more so a clean shutdown leaves disk in sync.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persistLocked()
	return nil
}

// persistLocked writes the whole document via temp file + atomic rename.
// Callers must hold s.mu, so a reader of the canonical path can never see
// a partially written document and flushes cannot interleave.
func (s *FileStore) persistLocked() {
	if err := s.writeSnapshot(); err != nil {
		log.Printf("history: flush to %s failed, memory stays authoritative: %v", s.path, err)
		if s.onPersistError != nil {
			s.onPersistError(err)
		}
	}
}

func (s *FileStore) writeSnapshot() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create storage directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "memory-*.json")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.clients); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("persist snapshot: %w", err)
	}
	return nil
}

func cloneTurns(turns []Turn) []Turn {
	if len(turns) == 0 {
		return []Turn{}
	}
	return append([]Turn{}, turns...)
}

var _ Store = (*FileStore)(nil)
