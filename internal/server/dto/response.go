package dto

// Entry is the API representation of a stored entry. It is also the shape of
// each element of the backing store file.
type Entry struct {
	Key      string `json:"key" jsonschema:"description=Unique case-sensitive key,minLength=1"`
	Content  string `json:"content" jsonschema:"description=Free-form content"`
	Modified string `json:"modified" jsonschema:"description=Last modification time set by the server,format=date-time"`
}

// EntryList is the response of a list request. It encodes as a bare JSON
// array, never null.
type EntryList []Entry

// SaveEntryResponse is the response of a successful save.
type SaveEntryResponse struct {
	Message string `json:"message"`
}

// HealthResponse is a response containing server health status.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
