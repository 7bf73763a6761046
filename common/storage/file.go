package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/getflowline/flowline/common/logger"
)

// FileStore persists one JSON document per entity under
// <root>/<collection>/<uuid>.json. Writes go through a temp file and a
// rename so readers never observe a half-written document.
type FileStore[T Entity] struct {
	dir          string
	defaultLimit int
	log          *logger.Logger

	mu     sync.RWMutex
	closed bool
}

// NewFileStore creates the collection directory if needed
func NewFileStore[T Entity](root, collection string, defaultLimit int, log *logger.Logger) (*FileStore[T], error) {
	if defaultLimit < 1 {
		defaultLimit = 50
	}

	dir := filepath.Join(root, collection)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir %s: %w", dir, err)
	}

	return &FileStore[T]{
		dir:          dir,
		defaultLimit: defaultLimit,
		log:          log,
	}, nil
}

func (s *FileStore[T]) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Get returns the item and whether it exists. A document that no longer
// parses is reported as absent with a warning, not as an error.
func (s *FileStore[T]) Get(ctx context.Context, id string) (T, bool, error) {
	var zero T

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return zero, false, ErrClosed
	}

	return s.read(id)
}

func (s *FileStore[T]) read(id string) (T, bool, error) {
	var zero T

	data, err := os.ReadFile(s.path(id))
	if os.IsNotExist(err) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("failed to read %s: %w", s.path(id), err)
	}

	item := newEntity[T]()
	if err := json.Unmarshal(data, item); err != nil {
		s.log.Warn("skipping unreadable document", "path", s.path(id), "error", err)
		return zero, false, nil
	}

	return item, true, nil
}

// Create assigns a fresh UUID and writes the document
func (s *FileStore[T]) Create(ctx context.Context, item T) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", ErrClosed
	}

	id := uuid.NewString()
	item.SetUUID(id)

	if err := s.write(id, item); err != nil {
		return "", err
	}

	return id, nil
}

// Update overwrites an existing document; false when absent
func (s *FileStore[T]) Update(ctx context.Context, id string, item T) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, ErrClosed
	}

	if _, err := os.Stat(s.path(id)); os.IsNotExist(err) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", s.path(id), err)
	}

	item.SetUUID(id)
	if err := s.write(id, item); err != nil {
		return false, err
	}

	return true, nil
}

func (s *FileStore[T]) write(id string, item T) error {
	data, err := json.MarshalIndent(item, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", id, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path(id)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace %s: %w", s.path(id), err)
	}

	return nil
}

// Delete removes a document; false when absent
func (s *FileStore[T]) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, ErrClosed
	}

	err := os.Remove(s.path(id))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to delete %s: %w", s.path(id), err)
	}

	return true, nil
}

// ListAll reads every document in the collection, skipping unreadable ones
func (s *FileStore[T]) ListAll(ctx context.Context) ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	ids, err := s.ids()
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, len(ids))
	for _, id := range ids {
		item, ok, err := s.read(id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, item)
		}
	}

	return out, nil
}

// ListPage pages through documents ordered ascending by uuid
func (s *FileStore[T]) ListPage(ctx context.Context, limit int, cursor string) ([]T, string, error) {
	if limit < 1 {
		limit = s.defaultLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, "", ErrClosed
	}

	ids, err := s.ids()
	if err != nil {
		return nil, "", err
	}
	sort.Strings(ids)

	start := 0
	if cursor != "" {
		start = sort.SearchStrings(ids, cursor)
		if start < len(ids) && ids[start] == cursor {
			start++
		}
	}

	window := ids[start:]
	next := ""
	if len(window) > limit {
		window = window[:limit]
		next = window[len(window)-1]
	}

	out := make([]T, 0, len(window))
	for _, id := range window {
		item, ok, err := s.read(id)
		if err != nil {
			return nil, "", err
		}
		if ok {
			out = append(out, item)
		}
	}

	return out, next, nil
}

func (s *FileStore[T]) ids() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.dir, err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}

	return ids, nil
}

// Close stops further use. Documents stay on disk.
func (s *FileStore[T]) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}
