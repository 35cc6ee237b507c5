// Appends human-readable audit records to the history log.

package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// History is the append-only audit trail of entry changes.
//
// It is write-only: nothing in the program reads it back. Append failures are
// logged and swallowed so they never fail the mutation that triggered them.
type History struct {
	path string
	mu   sync.Mutex
}

// NewHistory returns a history log writing to path. The file is created on the
// first append.
func NewHistory(path string) *History {
	return &History{path: path}
}

// NewEntry records the creation of key.
func (h *History) NewEntry(ctx context.Context, at Timestamp, key string) {
	h.append(ctx, fmt.Sprintf("[%s] NEW ENTRY: Key=\"%s\"\n", at, key))
}

// ContentEdit records a content change of prev.Key. Nothing is written when the
// content is unchanged.
func (h *History) ContentEdit(ctx context.Context, at Timestamp, prev *Entry, content string) {
	if prev.Content == content {
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] CONTENT EDIT: Key=\"%s\" (previous timestamp: %s)\n", at, prev.Key, prev.Modified)
	fmt.Fprintf(&b, "OLD: %s\n", prev.Content)
	fmt.Fprintf(&b, "NEW: %s\n", content)
	b.WriteString("---\n")
	h.append(ctx, b.String())
}

// KeyEdit records the rename of prev.Key to newKey.
func (h *History) KeyEdit(ctx context.Context, at Timestamp, prev *Entry, newKey string) {
	h.append(ctx, fmt.Sprintf("[%s] KEY EDIT: \"%s\" -> \"%s\" (previous timestamp: %s)\n", at, prev.Key, newKey, prev.Modified))
}

func (h *History) append(ctx context.Context, record string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.write(record); err != nil {
		slog.WarnContext(ctx, "Failed to append to history log", "path", h.path, "err", err)
	}
}

func (h *History) write(record string) error {
	if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return err
	}
	f, err := os.OpenFile(h.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // G304: path is constructed from the data dir
	if err != nil {
		return err
	}
	_, err = f.WriteString(record)
	if err2 := f.Close(); err == nil {
		err = err2
	}
	return err
}
