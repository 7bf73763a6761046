package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/getflowline/flowline/common/config"
	"github.com/getflowline/flowline/common/db"
	"github.com/getflowline/flowline/common/logger"
	"github.com/getflowline/flowline/common/models"
)

// Type selects a persistence backend
type Type string

const (
	TypeMemory   Type = "memory"
	TypeFile     Type = "file"
	TypePostgres Type = "postgres"
)

// ErrClosed is returned when a store is used after Close
var ErrClosed = errors.New("storage: store is closed")

// Entity is anything a store can persist
type Entity interface {
	GetUUID() string
	SetUUID(string)
}

// Store is the uniform persistence contract. One instance exists per
// entity type. Lookups by absent UUID report absence, not errors; the
// error return is reserved for backend faults.
type Store[T Entity] interface {
	// Get returns the item and whether it exists
	Get(ctx context.Context, uuid string) (T, bool, error)

	// Create assigns a fresh UUID, persists the item and returns the UUID
	Create(ctx context.Context, item T) (string, error)

	// Update overwrites an existing item; false when absent
	Update(ctx context.Context, uuid string, item T) (bool, error)

	// Delete removes an item; false when absent
	Delete(ctx context.Context, uuid string) (bool, error)

	// ListAll returns every item, unordered
	ListAll(ctx context.Context) ([]T, error)

	// ListPage returns up to limit items with uuid > cursor, ordered
	// ascending by uuid, plus the cursor for the next page ("" when done).
	// Non-positive limits fall back to the store's default.
	ListPage(ctx context.Context, limit int, cursor string) ([]T, string, error)

	Close(ctx context.Context) error
}

// Options carries everything the factory may need to build a backend
type Options struct {
	Type             Type
	DataDir          string
	DefaultPageLimit int
	DB               *db.DB
	Logger           *logger.Logger
}

// FromConfig maps service configuration onto factory options
func FromConfig(cfg *config.Config, database *db.DB, log *logger.Logger) Options {
	return Options{
		Type:             Type(cfg.Storage.Type),
		DataDir:          cfg.Storage.DataDir,
		DefaultPageLimit: cfg.Storage.DefaultPageLimit,
		DB:               database,
		Logger:           log,
	}
}

// NewWorkflowStore builds the definition store for the configured backend
func NewWorkflowStore(opts Options) (Store[*models.WorkflowDefinition], error) {
	switch opts.Type {
	case TypeMemory:
		return NewMemoryStore[*models.WorkflowDefinition](opts.DefaultPageLimit), nil
	case TypeFile:
		return NewFileStore[*models.WorkflowDefinition](opts.DataDir, "workflowdefinitions", opts.DefaultPageLimit, opts.Logger)
	case TypePostgres:
		if opts.DB == nil {
			return nil, fmt.Errorf("postgres storage requires a database connection")
		}
		return NewPostgresWorkflowStore(opts.DB, opts.DefaultPageLimit), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %q", opts.Type)
	}
}

// NewRunStore builds the run store for the configured backend
func NewRunStore(opts Options) (Store[*models.WorkflowRun], error) {
	switch opts.Type {
	case TypeMemory:
		return NewMemoryStore[*models.WorkflowRun](opts.DefaultPageLimit), nil
	case TypeFile:
		return NewFileStore[*models.WorkflowRun](opts.DataDir, "workflowruns", opts.DefaultPageLimit, opts.Logger)
	case TypePostgres:
		if opts.DB == nil {
			return nil, fmt.Errorf("postgres storage requires a database connection")
		}
		return NewPostgresRunStore(opts.DB, opts.DefaultPageLimit), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %q", opts.Type)
	}
}

// newEntity allocates a fresh instance of the entity's element type
func newEntity[T Entity]() T {
	var zero T
	return reflect.New(reflect.TypeOf(zero).Elem()).Interface().(T)
}

// clone deep-copies an entity through its JSON form so callers never
// share mutable state with the store
func clone[T Entity](item T) (T, error) {
	var zero T
	data, err := json.Marshal(item)
	if err != nil {
		return zero, fmt.Errorf("clone: marshal: %w", err)
	}
	out := newEntity[T]()
	if err := json.Unmarshal(data, out); err != nil {
		return zero, fmt.Errorf("clone: unmarshal: %w", err)
	}
	return out, nil
}

// pageOf applies cursor pagination to a sorted-by-uuid slice using the
// fetch-one-extra convention: next is the last uuid iff more items remain
func pageOf[T Entity](sorted []T, limit int, cursor string) ([]T, string) {
	start := 0
	if cursor != "" {
		start = sort.Search(len(sorted), func(i int) bool {
			return sorted[i].GetUUID() > cursor
		})
	}

	window := sorted[start:]
	if len(window) > limit {
		page := window[:limit]
		return page, page[len(page)-1].GetUUID()
	}
	return window, ""
}
