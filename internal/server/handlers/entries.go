// Handles listing and saving entries.

package handlers

import (
	"context"

	"github.com/maruel/entrystore/internal/server/dto"
	"github.com/maruel/entrystore/internal/storage"
)

// EntryStore is the subset of *storage.Store used by EntryHandler.
type EntryStore interface {
	List(ctx context.Context, filter string) ([]storage.Entry, error)
	Upsert(ctx context.Context, key, content string) error
	Rename(ctx context.Context, oldKey, newKey, content string) error
}

// EntryHandler serves the entry endpoint.
type EntryHandler struct {
	store  EntryStore
	quotas storage.Quotas
}

// NewEntryHandler creates a new entry handler. A zero quota is unlimited.
func NewEntryHandler(store EntryStore, quotas storage.Quotas) *EntryHandler {
	return &EntryHandler{store: store, quotas: quotas}
}

// ListEntries returns the entries whose key contains req.Search, in store
// order.
func (h *EntryHandler) ListEntries(ctx context.Context, req *dto.ListEntriesRequest) (*dto.EntryList, error) {
	entries, err := h.store.List(ctx, req.Search)
	if err != nil {
		return nil, storageError(err, msgReadFailed)
	}
	out := make(dto.EntryList, 0, len(entries))
	for i := range entries {
		out = append(out, entryToDTO(&entries[i]))
	}
	return &out, nil
}

// SaveEntry creates or updates an entry, or renames it when req.OldKey names
// a different key.
func (h *EntryHandler) SaveEntry(ctx context.Context, req *dto.SaveEntryRequest) (*dto.SaveEntryResponse, error) {
	if err := h.checkQuotas(req); err != nil {
		return nil, err
	}
	var err error
	if req.IsRename() {
		err = h.store.Rename(ctx, req.OldKey, req.Key, *req.Content)
	} else {
		err = h.store.Upsert(ctx, req.Key, *req.Content)
	}
	if err != nil {
		return nil, storageError(err, msgSaveFailed)
	}
	return &dto.SaveEntryResponse{Message: "Entry saved successfully"}, nil
}

func (h *EntryHandler) checkQuotas(req *dto.SaveEntryRequest) error {
	if m := h.quotas.MaxKeyBytes; m > 0 && len(req.Key) > m {
		return dto.TooLong("key", m)
	}
	if m := h.quotas.MaxContentBytes; m > 0 && len(*req.Content) > m {
		return dto.TooLong("content", m)
	}
	return nil
}

func entryToDTO(e *storage.Entry) dto.Entry {
	return dto.Entry{Key: e.Key, Content: e.Content, Modified: e.Modified.String()}
}
