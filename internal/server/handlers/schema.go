// Serves the JSON schema of an entry.

package handlers

import (
	"context"
	"sync"

	"github.com/invopop/jsonschema"

	"github.com/maruel/entrystore/internal/server/dto"
)

// SchemaHandler describes the shape of an entry, as returned by the API and
// as stored in the backing file.
type SchemaHandler struct {
	once   sync.Once
	schema *jsonschema.Schema
}

// NewSchemaHandler creates a new schema handler.
func NewSchemaHandler() *SchemaHandler {
	return &SchemaHandler{}
}

// Schema returns the JSON schema of dto.Entry with inline properties.
func (h *SchemaHandler) Schema(_ context.Context, _ *dto.SchemaRequest) (*jsonschema.Schema, error) {
	h.once.Do(func() {
		r := jsonschema.Reflector{Anonymous: true, DoNotReference: true}
		h.schema = r.Reflect(&dto.Entry{})
		h.schema.Title = "Entry"
		h.schema.Description = "A key/content record."
	})
	return h.schema, nil
}
