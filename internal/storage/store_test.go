package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestNewStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	s, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, StoreFileName))
	if err != nil {
		t.Fatalf("backing file not created: %v", err)
	}
	if got := strings.TrimSpace(string(data)); got != "[]" {
		t.Errorf("backing file = %q, want %q", got, "[]")
	}
	if s.Dir() != dir {
		t.Errorf("Dir() = %q, want %q", s.Dir(), dir)
	}
	if err := s.Initialize(); err != nil {
		t.Errorf("second Initialize() error = %v", err)
	}
}

func TestStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Initialize", func(t *testing.T) {
		t.Run("recreates deleted file", func(t *testing.T) {
			s := newTestStore(t)
			if err := os.Remove(filepath.Join(s.Dir(), StoreFileName)); err != nil {
				t.Fatal(err)
			}
			got, err := s.List(ctx, "")
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(got) != 0 {
				t.Errorf("List() = %v, want empty", got)
			}
		})
	})

	t.Run("List", func(t *testing.T) {
		s := newTestStore(t)
		for _, k := range []string{"abc", "ac", "xaby", "ABX"} {
			if err := s.Upsert(ctx, k, "v-"+k); err != nil {
				t.Fatal(err)
			}
		}
		tests := []struct {
			name   string
			filter string
			want   []string
		}{
			{"all", "", []string{"abc", "ac", "xaby", "ABX"}},
			{"upper filter", "AB", []string{"abc", "xaby", "ABX"}},
			{"lower filter", "ab", []string{"abc", "xaby", "ABX"}},
			{"exact", "ac", []string{"ac"}},
			{"no match", "zzz", []string{}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := s.List(ctx, tt.filter)
				if err != nil {
					t.Fatalf("List(%q) error = %v", tt.filter, err)
				}
				if got == nil {
					t.Fatal("List() returned nil slice")
				}
				if keys := entryKeys(got); !equalStrings(keys, tt.want) {
					t.Errorf("List(%q) = %v, want %v", tt.filter, keys, tt.want)
				}
			})
		}
	})

	t.Run("Upsert", func(t *testing.T) {
		t.Run("creates entry", func(t *testing.T) {
			s := newTestStore(t)
			if err := s.Upsert(ctx, "user1", "hello"); err != nil {
				t.Fatalf("Upsert() error = %v", err)
			}
			got, err := s.List(ctx, "")
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 1 || got[0].Key != "user1" || got[0].Content != "hello" {
				t.Fatalf("List() = %+v", got)
			}
			if got[0].Modified.String() != "2024-05-06T07:08:09.000Z" {
				t.Errorf("Modified = %s", got[0].Modified)
			}
			want := "[2024-05-06T07:08:09.000Z] NEW ENTRY: Key=\"user1\"\n"
			if h := readHistory(t, s); h != want {
				t.Errorf("history = %q, want %q", h, want)
			}
		})
		t.Run("second content wins", func(t *testing.T) {
			s := newTestStore(t)
			if err := s.Upsert(ctx, "k", "one"); err != nil {
				t.Fatal(err)
			}
			if err := s.Upsert(ctx, "k", "two"); err != nil {
				t.Fatal(err)
			}
			got, err := s.List(ctx, "")
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 1 || got[0].Content != "two" {
				t.Fatalf("List() = %+v, want one entry with content two", got)
			}
			h := readHistory(t, s)
			if n := strings.Count(h, "CONTENT EDIT"); n != 1 {
				t.Errorf("CONTENT EDIT records = %d, want 1; history:\n%s", n, h)
			}
			if !strings.Contains(h, "OLD: one\nNEW: two\n---\n") {
				t.Errorf("history missing diff:\n%s", h)
			}
		})
		t.Run("identical content logs nothing but advances modified", func(t *testing.T) {
			s := newTestStore(t)
			if err := s.Upsert(ctx, "k", "same"); err != nil {
				t.Fatal(err)
			}
			first, err := s.List(ctx, "k")
			if err != nil {
				t.Fatal(err)
			}
			before := readHistory(t, s)
			if err := s.Upsert(ctx, "k", "same"); err != nil {
				t.Fatal(err)
			}
			second, err := s.List(ctx, "k")
			if err != nil {
				t.Fatal(err)
			}
			if !second[0].Modified.After(first[0].Modified) {
				t.Errorf("modified did not advance: %s then %s", first[0].Modified, second[0].Modified)
			}
			if after := readHistory(t, s); after != before {
				t.Errorf("history changed on identical content:\n%s", after)
			}
		})
		t.Run("keeps position", func(t *testing.T) {
			s := newTestStore(t)
			for _, k := range []string{"a", "b", "c"} {
				if err := s.Upsert(ctx, k, k); err != nil {
					t.Fatal(err)
				}
			}
			if err := s.Upsert(ctx, "a", "updated"); err != nil {
				t.Fatal(err)
			}
			got, err := s.List(ctx, "")
			if err != nil {
				t.Fatal(err)
			}
			if keys := entryKeys(got); !equalStrings(keys, []string{"a", "b", "c"}) {
				t.Errorf("order = %v", keys)
			}
		})
		t.Run("keys are case-sensitive", func(t *testing.T) {
			s := newTestStore(t)
			if err := s.Upsert(ctx, "Key", "upper"); err != nil {
				t.Fatal(err)
			}
			if err := s.Upsert(ctx, "key", "lower"); err != nil {
				t.Fatal(err)
			}
			got, err := s.List(ctx, "")
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 2 {
				t.Errorf("List() = %+v, want 2 entries", got)
			}
		})
		t.Run("empty key", func(t *testing.T) {
			s := newTestStore(t)
			if err := s.Upsert(ctx, "", "x"); err == nil {
				t.Error("Upsert with empty key should fail")
			}
		})
	})

	t.Run("Rename", func(t *testing.T) {
		t.Run("not found", func(t *testing.T) {
			s := newTestStore(t)
			err := s.Rename(ctx, "missing", "new", "x")
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("Rename() error = %v, want ErrNotFound", err)
			}
		})
		t.Run("conflict", func(t *testing.T) {
			s := newTestStore(t)
			for _, k := range []string{"a", "b"} {
				if err := s.Upsert(ctx, k, k); err != nil {
					t.Fatal(err)
				}
			}
			err := s.Rename(ctx, "a", "b", "x")
			if !errors.Is(err, ErrConflict) {
				t.Errorf("Rename() error = %v, want ErrConflict", err)
			}
			got, err := s.List(ctx, "")
			if err != nil {
				t.Fatal(err)
			}
			if got[0].Content != "a" || got[1].Content != "b" {
				t.Errorf("failed rename modified the store: %+v", got)
			}
		})
		t.Run("moves to end", func(t *testing.T) {
			s := newTestStore(t)
			for _, k := range []string{"a", "b", "c"} {
				if err := s.Upsert(ctx, k, k); err != nil {
					t.Fatal(err)
				}
			}
			if err := s.Rename(ctx, "a", "z", "a"); err != nil {
				t.Fatalf("Rename() error = %v", err)
			}
			got, err := s.List(ctx, "")
			if err != nil {
				t.Fatal(err)
			}
			if keys := entryKeys(got); !equalStrings(keys, []string{"b", "c", "z"}) {
				t.Errorf("order = %v", keys)
			}
			h := readHistory(t, s)
			if strings.Contains(h, "CONTENT EDIT") {
				t.Errorf("rename with same content logged a content edit:\n%s", h)
			}
		})
		t.Run("with new content", func(t *testing.T) {
			s := newTestStore(t)
			if err := s.Upsert(ctx, "a", "old"); err != nil {
				t.Fatal(err)
			}
			if err := s.Rename(ctx, "a", "b", "new"); err != nil {
				t.Fatal(err)
			}
			got, err := s.List(ctx, "b")
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 1 || got[0].Content != "new" {
				t.Fatalf("List(b) = %+v", got)
			}
			h := readHistory(t, s)
			want := "[2024-05-06T07:08:09.001Z] KEY EDIT: \"a\" -> \"b\" (previous timestamp: 2024-05-06T07:08:09.000Z)\n" +
				"[2024-05-06T07:08:09.001Z] CONTENT EDIT: Key=\"b\" (previous timestamp: 2024-05-06T07:08:09.000Z)\n" +
				"OLD: old\nNEW: new\n---\n"
			if !strings.HasSuffix(h, want) {
				t.Errorf("history = %q, want suffix %q", h, want)
			}
		})
		t.Run("same key is an upsert", func(t *testing.T) {
			s := newTestStore(t)
			if err := s.Upsert(ctx, "a", "one"); err != nil {
				t.Fatal(err)
			}
			if err := s.Rename(ctx, "a", "a", "two"); err != nil {
				t.Fatalf("Rename() error = %v", err)
			}
			got, err := s.List(ctx, "")
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 1 || got[0].Content != "two" {
				t.Errorf("List() = %+v", got)
			}
			if strings.Contains(readHistory(t, s), "KEY EDIT") {
				t.Error("same-key rename logged a key edit")
			}
		})
	})

	t.Run("scenario", func(t *testing.T) {
		s := newTestStore(t)
		if err := s.Upsert(ctx, "user1", "hello"); err != nil {
			t.Fatal(err)
		}
		got, err := s.List(ctx, "")
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0].Key != "user1" || got[0].Content != "hello" {
			t.Fatalf("after first upsert: %+v", got)
		}
		ts1 := got[0].Modified

		if err := s.Upsert(ctx, "user1", "world"); err != nil {
			t.Fatal(err)
		}
		got, err = s.List(ctx, "")
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0].Content != "world" {
			t.Fatalf("after second upsert: %+v", got)
		}
		if !got[0].Modified.After(ts1) {
			t.Errorf("ts2 %s not after ts1 %s", got[0].Modified, ts1)
		}

		if err := s.Rename(ctx, "user1", "user2", "world"); err != nil {
			t.Fatal(err)
		}
		if got, err = s.List(ctx, "user1"); err != nil || len(got) != 0 {
			t.Errorf("List(user1) = %+v, %v; want empty", got, err)
		}
		got, err = s.List(ctx, "user2")
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0].Content != "world" {
			t.Errorf("List(user2) = %+v", got)
		}

		want := "[2024-05-06T07:08:09.000Z] NEW ENTRY: Key=\"user1\"\n" +
			"[2024-05-06T07:08:09.001Z] CONTENT EDIT: Key=\"user1\" (previous timestamp: 2024-05-06T07:08:09.000Z)\n" +
			"OLD: hello\n" +
			"NEW: world\n" +
			"---\n" +
			"[2024-05-06T07:08:09.002Z] KEY EDIT: \"user1\" -> \"user2\" (previous timestamp: 2024-05-06T07:08:09.001Z)\n"
		if h := readHistory(t, s); h != want {
			t.Errorf("history =\n%s\nwant\n%s", h, want)
		}
	})

	t.Run("corrupt file", func(t *testing.T) {
		s := newTestStore(t)
		path := filepath.Join(s.Dir(), StoreFileName)
		if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := s.List(ctx, ""); !errors.Is(err, ErrIO) {
			t.Errorf("List() error = %v, want ErrIO", err)
		}
		if err := s.Upsert(ctx, "k", "v"); !errors.Is(err, ErrIO) {
			t.Errorf("Upsert() error = %v, want ErrIO", err)
		}
		if err := s.Rename(ctx, "k", "j", "v"); !errors.Is(err, ErrIO) {
			t.Errorf("Rename() error = %v, want ErrIO", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "{not json" {
			t.Errorf("failed mutation rewrote the file: %q", data)
		}
	})

	t.Run("history failure does not fail mutation", func(t *testing.T) {
		s := newTestStore(t)
		// A directory in place of the log makes every append fail.
		if err := os.Mkdir(filepath.Join(s.Dir(), HistoryFileName), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := s.Upsert(ctx, "k", "one"); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
		if err := s.Upsert(ctx, "k", "two"); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
		if err := s.Rename(ctx, "k", "j", "two"); err != nil {
			t.Fatalf("Rename() error = %v", err)
		}
		got, err := s.List(ctx, "")
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0].Key != "j" {
			t.Errorf("List() = %+v", got)
		}
	})

	t.Run("concurrent upserts are not lost", func(t *testing.T) {
		s := newTestStore(t)
		const n = 32
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- s.Upsert(ctx, fmt.Sprintf("key-%02d", i), "v")
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				t.Fatal(err)
			}
		}
		got, err := s.List(ctx, "")
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != n {
			t.Errorf("got %d entries, want %d", len(got), n)
		}
		seen := map[string]bool{}
		for _, e := range got {
			if seen[e.Key] {
				t.Errorf("duplicate key %q", e.Key)
			}
			seen[e.Key] = true
		}
	})

	t.Run("Seed", func(t *testing.T) {
		s := newTestStore(t)
		if err := s.Upsert(ctx, "existing", "keep me"); err != nil {
			t.Fatal(err)
		}
		n, err := s.Seed(ctx, []SeedEntry{
			{Key: "existing", Content: "overwrite?"},
			{Key: "new1", Content: "one"},
			{Key: "new2", Content: "two"},
		})
		if err != nil {
			t.Fatalf("Seed() error = %v", err)
		}
		if n != 2 {
			t.Errorf("Seed() = %d, want 2", n)
		}
		got, err := s.List(ctx, "")
		if err != nil {
			t.Fatal(err)
		}
		if keys := entryKeys(got); !equalStrings(keys, []string{"existing", "new1", "new2"}) {
			t.Errorf("keys = %v", keys)
		}
		if got[0].Content != "keep me" {
			t.Errorf("Seed overwrote existing entry: %q", got[0].Content)
		}
		if c := strings.Count(readHistory(t, s), "NEW ENTRY"); c != 3 {
			t.Errorf("NEW ENTRY records = %d, want 3", c)
		}
		n, err = s.Seed(ctx, []SeedEntry{{Key: "new1", Content: "again"}})
		if err != nil || n != 0 {
			t.Errorf("second Seed() = %d, %v; want 0, nil", n, err)
		}
	})
}

func entryKeys(entries []Entry) []string {
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.Key)
	}
	return keys
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
