// Package localcache is the process-local fallback store for ScreenSets,
// backed by badgerhold.
package localcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/zaqqye/uiflow_backend/internal/models"
)

// ErrMiss is returned when nothing is cached for a key.
var ErrMiss = errors.New("local cache miss")

// Entry is one cached ScreenSet, keyed by parent document id.
type Entry struct {
	ParentID  string
	AppFlowID string `badgerhold:"index"`
	Payload   []byte
	UpdatedAt time.Time
}

type Options struct {
	Path     string
	InMemory bool
}

type Store struct {
	store  *badgerhold.Store
	logger arbor.ILogger
}

// Open opens the cache on disk at opts.Path, or in memory.
func Open(opts Options, logger arbor.ILogger) (*Store, error) {
	options := badgerhold.DefaultOptions
	options.Logger = nil
	if opts.InMemory {
		options.InMemory = true
		options.Dir = ""
		options.ValueDir = ""
	} else {
		if err := os.MkdirAll(opts.Path, 0755); err != nil {
			return nil, fmt.Errorf("failed to create local cache directory: %w", err)
		}
		options.Dir = opts.Path
		options.ValueDir = opts.Path
	}

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open local cache: %w", err)
	}
	logger.Debug().Str("path", opts.Path).Bool("in_memory", opts.InMemory).Msg("local cache opened")
	return &Store{store: store, logger: logger}, nil
}

func (s *Store) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

func (s *Store) Get(ctx context.Context, parentID string) (models.ScreenSet, error) {
	var entry Entry
	err := s.store.Get(parentID, &entry)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return models.ScreenSet{}, ErrMiss
	}
	if err != nil {
		return models.ScreenSet{}, fmt.Errorf("failed to read local cache: %w", err)
	}
	return decode(entry)
}

func (s *Store) Put(ctx context.Context, set models.ScreenSet) error {
	parentID := set.AppFlow.ParentDocumentID
	if parentID == "" {
		return models.ErrEmptyParentID
	}
	set.Source = ""
	raw, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("failed to encode screen set: %w", err)
	}
	entry := Entry{
		ParentID:  parentID,
		AppFlowID: set.AppFlow.ID,
		Payload:   raw,
		UpdatedAt: time.Now(),
	}
	if err := s.store.Upsert(parentID, &entry); err != nil {
		return fmt.Errorf("failed to write local cache: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, parentID string) error {
	err := s.store.Delete(parentID, &Entry{})
	if errors.Is(err, badgerhold.ErrNotFound) {
		return ErrMiss
	}
	if err != nil {
		return fmt.Errorf("failed to delete from local cache: %w", err)
	}
	return nil
}

// FindByAppFlowID returns the cached set whose flow has the given id.
func (s *Store) FindByAppFlowID(ctx context.Context, appFlowID string) (models.ScreenSet, error) {
	var entries []Entry
	if err := s.store.Find(&entries, badgerhold.Where("AppFlowID").Eq(appFlowID).Index("AppFlowID")); err != nil {
		return models.ScreenSet{}, fmt.Errorf("failed to query local cache: %w", err)
	}
	if len(entries) == 0 {
		return models.ScreenSet{}, ErrMiss
	}
	return decode(entries[0])
}

func decode(entry Entry) (models.ScreenSet, error) {
	var set models.ScreenSet
	if err := json.Unmarshal(entry.Payload, &set); err != nil {
		return models.ScreenSet{}, fmt.Errorf("failed to decode cached screen set: %w", err)
	}
	if set.Screens == nil {
		set.Screens = []models.Screen{}
	}
	if set.AppFlow.Steps == nil {
		set.AppFlow.Steps = []models.FlowStep{}
	}
	return set, nil
}
