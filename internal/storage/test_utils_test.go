package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// testEpoch is the frozen clock used by newTestStore.
var testEpoch = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

// newTestStore returns a store in a temp dir whose clock never advances, so
// that every timestamp comes from the monotonic bump.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	s.now = func() time.Time { return testEpoch }
	return s
}

// readHistory returns the content of the store's history log, or "" if it
// does not exist yet.
func readHistory(t *testing.T, s *Store) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(s.Dir(), HistoryFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return ""
		}
		t.Fatal(err)
	}
	return string(data)
}
