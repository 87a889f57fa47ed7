package chore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	logx "chorebot/pkg/logx"
)

// Store is the durable record of all active reminders. Every mutation
// rewrites the complete snapshot; the in-memory set a Store reports through
// LoadAll always mirrors the last successful durable write.
type Store interface {
	// LoadAll returns the persisted set. A missing file is an empty set;
	// an unparseable file returns ErrCorruptState.
	LoadAll() ([]Reminder, error)
	Append(r Reminder) error
	RemoveByID(id int64) error
	Close() error
}

// FileStore persists reminders as a single JSON snapshot. Writes go to a
// temp file first and are renamed over the target, so a crash mid-write
// leaves the previous snapshot intact.
type FileStore struct {
	mu   sync.Mutex
	path string
	log  logx.Logger

	loaded   bool
	snapshot []Reminder
}

func OpenFileStore(path string, log logx.Logger) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("reminder store path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &FileStore{path: path, log: log}, nil
}

func (s *FileStore) LoadAll() ([]Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return nil, err
	}
	out := make([]Reminder, len(s.snapshot))
	copy(out, s.snapshot)
	return out, nil
}

func (s *FileStore) Append(r Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return err
	}
	for _, existing := range s.snapshot {
		if existing.ID == r.ID {
			return fmt.Errorf("duplicate reminder id %d", r.ID)
		}
	}
	next := append(append([]Reminder(nil), s.snapshot...), r)
	if err := s.writeLocked(next); err != nil {
		return err
	}
	s.snapshot = next
	return nil
}

func (s *FileStore) RemoveByID(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return err
	}
	next := make([]Reminder, 0, len(s.snapshot))
	found := false
	for _, r := range s.snapshot {
		if r.ID == id {
			found = true
			continue
		}
		next = append(next, r)
	}
	if !found {
		return ErrNotFound
	}
	if err := s.writeLocked(next); err != nil {
		return err
	}
	s.snapshot = next
	return nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) loadLocked() error {
	if s.loaded {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.loaded = true
		s.snapshot = nil
		return nil
	}
	if err != nil {
		return err
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorruptState, s.path, err)
	}

	reminders := make([]Reminder, 0, len(raw))
	for _, entry := range raw {
		var r Reminder
		if err := json.Unmarshal(entry, &r); err != nil {
			// A single bad entry does not poison the set, but it is
			// dropped and reported: it cannot be re-armed.
			s.log.Error("dropping unreadable reminder entry", logx.Err(err), logx.String("path", s.path))
			continue
		}
		reminders = append(reminders, r)
	}

	s.loaded = true
	s.snapshot = reminders
	return nil
}

func (s *FileStore) writeLocked(reminders []Reminder) error {
	data, err := json.MarshalIndent(reminders, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
