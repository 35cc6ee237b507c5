// Implements the key/content entry store backed by a JSON array file.

package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/maruel/entrystore/internal/jsonfile"
)

const (
	// StoreFileName is the name of the backing file inside the data directory.
	StoreFileName = "store.json"
	// HistoryFileName is the name of the audit log inside the data directory.
	HistoryFileName = "history.log"
)

// Store holds the entries of a data directory.
//
// Every operation re-reads the backing file, and every mutation rewrites it in
// full. Mutations are serialized by an in-process write lock, so two
// concurrent requests cannot lose each other's updates; List only takes the
// read lock and sees the last fully written file. Processes sharing a data
// directory are not coordinated.
//
// Search is a linear scan over all entries, there is no index.
type Store struct {
	dir     string
	entries *jsonfile.Array[Entry]
	history *History

	mu   sync.RWMutex
	now  func() time.Time
	last Timestamp // last timestamp handed out, guarded by mu
}

// NewStore returns a Store rooted at dataDir and initializes its backing file.
func NewStore(dataDir string) (*Store, error) {
	s := &Store{
		dir:     dataDir,
		entries: jsonfile.NewArray[Entry](filepath.Join(dataDir, StoreFileName)),
		history: NewHistory(filepath.Join(dataDir, HistoryFileName)),
		now:     time.Now,
	}
	if err := s.Initialize(); err != nil {
		return nil, err
	}
	return s, nil
}

// Dir returns the data directory.
func (s *Store) Dir() string {
	return s.dir
}

// Files returns the store's files relative to the data directory.
func (s *Store) Files() []string {
	return []string{StoreFileName, HistoryFileName}
}

// Initialize creates the data directory and an empty backing file if missing.
// It is idempotent and is called at the start of every operation.
func (s *Store) Initialize() error {
	if err := s.entries.Init(); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return nil
}

// List returns the entries in file order. A non-empty filter keeps only the
// entries whose key contains it, ignoring case.
func (s *Store) List(_ context.Context, filter string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all, err := s.load()
	if err != nil {
		return nil, err
	}
	if filter == "" {
		return all, nil
	}
	needle := strings.ToLower(filter)
	out := make([]Entry, 0, len(all))
	for _, e := range all {
		if strings.Contains(strings.ToLower(e.Key), needle) {
			out = append(out, e)
		}
	}
	return out, nil
}

// Upsert sets the content of key, creating the entry when it does not exist.
//
// An existing entry keeps its position. Its modified timestamp always
// advances, even when content is unchanged, but a CONTENT EDIT record is only
// logged when content differs. A new entry is appended and logged as NEW ENTRY.
func (s *Store) Upsert(ctx context.Context, key, content string) error {
	if key == "" {
		return errKeyRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.load()
	if err != nil {
		return err
	}
	i := indexOf(all, key)
	if i == -1 {
		at := s.stamp(Timestamp{})
		all = append(all, Entry{Key: key, Content: content, Modified: at})
		if err := s.save(all); err != nil {
			return err
		}
		s.history.NewEntry(ctx, at, key)
		return nil
	}
	prev := all[i]
	at := s.stamp(prev.Modified)
	all[i] = Entry{Key: key, Content: content, Modified: at}
	if err := s.save(all); err != nil {
		return err
	}
	s.history.ContentEdit(ctx, at, &prev, content)
	return nil
}

// Rename moves the entry at oldKey to newKey with the given content.
//
// It returns ErrNotFound when oldKey does not exist and ErrConflict when
// newKey is already used by another entry. The renamed entry is moved to the
// end of the collection. When oldKey equals newKey this is an Upsert.
func (s *Store) Rename(ctx context.Context, oldKey, newKey, content string) error {
	if oldKey == newKey {
		return s.Upsert(ctx, newKey, content)
	}
	if newKey == "" {
		return errKeyRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.load()
	if err != nil {
		return err
	}
	i := indexOf(all, oldKey)
	if i == -1 {
		return fmt.Errorf("%w: %q", ErrNotFound, oldKey)
	}
	if indexOf(all, newKey) != -1 {
		return fmt.Errorf("%w: %q", ErrConflict, newKey)
	}
	prev := all[i]
	at := s.stamp(prev.Modified)
	all = slices.Delete(all, i, i+1)
	all = append(all, Entry{Key: newKey, Content: content, Modified: at})
	if err := s.save(all); err != nil {
		return err
	}
	s.history.KeyEdit(ctx, at, &prev, newKey)
	if prev.Content != content {
		renamed := prev
		renamed.Key = newKey
		s.history.ContentEdit(ctx, at, &renamed, content)
	}
	return nil
}

// Seed inserts the given entries whose keys are not present yet, in one
// rewrite. Existing keys are left untouched. It returns the number of entries
// created.
func (s *Store) Seed(ctx context.Context, entries []SeedEntry) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.load()
	if err != nil {
		return 0, err
	}
	type created struct {
		key string
		at  Timestamp
	}
	var added []created
	for _, e := range entries {
		if e.Key == "" {
			return 0, errKeyRequired
		}
		if indexOf(all, e.Key) != -1 {
			continue
		}
		at := s.stamp(Timestamp{})
		all = append(all, Entry{Key: e.Key, Content: e.Content, Modified: at})
		added = append(added, created{e.Key, at})
	}
	if len(added) == 0 {
		return 0, nil
	}
	if err := s.save(all); err != nil {
		return 0, err
	}
	for _, c := range added {
		s.history.NewEntry(ctx, c.at, c.key)
	}
	return len(added), nil
}

func (s *Store) load() ([]Entry, error) {
	if err := s.Initialize(); err != nil {
		return nil, err
	}
	all, err := s.entries.Load()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	return all, nil
}

func (s *Store) save(all []Entry) error {
	if err := s.entries.Save(all); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return nil
}

// stamp returns the current time, bumped by a millisecond as needed so that it
// is strictly after both prev and the previous stamp. Must be called with mu
// held for writing.
func (s *Store) stamp(prev Timestamp) Timestamp {
	at := ToTimestamp(s.now())
	floor := s.last
	if prev.After(floor) {
		floor = prev
	}
	if !at.After(floor) && !floor.IsZero() {
		at = ToTimestamp(floor.AsTime().Add(time.Millisecond))
	}
	s.last = at
	return at
}

func indexOf(all []Entry, key string) int {
	return slices.IndexFunc(all, func(e Entry) bool { return e.Key == key })
}
