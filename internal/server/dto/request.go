package dto

// ListEntriesRequest is a request to list entries, optionally filtered by a
// case-insensitive substring of the key.
type ListEntriesRequest struct {
	Search string `query:"search"`
}

// Validate is a no-op: any search string is valid.
func (r *ListEntriesRequest) Validate() error {
	return nil
}

// SaveEntryRequest creates, updates or renames an entry.
//
// When OldKey is set and differs from Key, the entry at OldKey is renamed to
// Key. Content is a pointer so that an empty content is accepted while a
// missing one is not.
type SaveEntryRequest struct {
	Key     string  `json:"key"`
	Content *string `json:"content"`
	OldKey  string  `json:"oldKey,omitempty"`
}

// Validate validates the save entry request fields.
func (r *SaveEntryRequest) Validate() error {
	if r.Key == "" {
		return MissingField("key")
	}
	if r.Content == nil {
		return MissingField("content")
	}
	return nil
}

// IsRename reports whether the request renames an existing entry.
func (r *SaveEntryRequest) IsRename() bool {
	return r.OldKey != "" && r.OldKey != r.Key
}

// HealthRequest is a request to check server health.
type HealthRequest struct{}

// Validate is a no-op for HealthRequest.
func (r *HealthRequest) Validate() error {
	return nil
}

// SchemaRequest is a request for the JSON schema of an entry.
type SchemaRequest struct{}

// Validate is a no-op for SchemaRequest.
func (r *SchemaRequest) Validate() error {
	return nil
}
