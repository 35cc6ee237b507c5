// Provides middleware for standardizing HTTP handlers.

package server

import (
	"bytes"
	"context"
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"time"

	"github.com/maruel/entrystore/internal/server/dto"
	"github.com/maruel/entrystore/internal/server/ipgeo"
	"github.com/maruel/entrystore/internal/server/ratelimit"
	"github.com/maruel/entrystore/internal/server/reqctx"
	"github.com/maruel/entrystore/internal/storage/git"
)

// Committer records the data directory files after a mutation.
type Committer interface {
	Commit(ctx context.Context, author git.Author, msg string, files ...string) error
}

// wrapConfig is shared by every wrapped handler of a router.
type wrapConfig struct {
	maxBodyBytes int64
	limits       *ratelimit.Config
	geo          *ipgeo.Checker
	committer    Committer
	files        []string
}

// Wrap wraps a handler function to work as an http.Handler.
// The function must have signature: func(context.Context, *In) (*Out, error)
// where In can be unmarshalled from JSON and Out can be marshalled to JSON.
// Query parameters are extracted into struct fields tagged with `query:"name"`.
// *In must implement dto.Validatable.
//
// Example:
//
//	type ListEntriesRequest struct {
//	    Search string `query:"search"`
//	}
//
//	func (h *Handler) ListEntries(ctx context.Context, req *ListEntriesRequest) (*Response, error)
func Wrap[In any, PtrIn interface {
	*In
	dto.Validatable
}, Out any](fn func(context.Context, PtrIn) (*Out, error), cfg *wrapConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		meta := reqctx.New(r, cfg.geo.CountryCode)
		ctx = meta.Attach(ctx)

		if tier := cfg.limits.Match(r.Method, r.URL.Path); tier != nil {
			var ok bool
			if w, ok = checkRateLimit(ctx, w, tier, meta); !ok {
				return
			}
		}

		input := new(In)
		if hasBody(r.Method) && !readAndDecodeBody(ctx, w, r, input, cfg.maxBodyBytes) {
			return
		}
		populateQueryParams(r, input)
		if err := PtrIn(input).Validate(); err != nil {
			writeError(ctx, w, err, http.StatusBadRequest, dto.ErrorCodeValidationFailed)
			return
		}

		start := time.Now()
		output, err := fn(ctx, PtrIn(input))
		if isMutating(r.Method) {
			commitChanges(ctx, r, cfg)
		}
		writeJSONResponse(ctx, w, output, err)
		slog.DebugContext(ctx, "Handled", append(reqctx.LogAttrs(ctx), "method", r.Method, "path", r.URL.Path, "dur", time.Since(start).Round(time.Microsecond))...)
	})
}

// isMutating returns true for HTTP methods that modify state.
func isMutating(method string) bool {
	return method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch || method == http.MethodDelete
}

// hasBody returns false for methods whose request body is ignored.
func hasBody(method string) bool {
	return method != http.MethodGet && method != http.MethodHead
}

// commitChanges commits the store files after a mutating request.
//
// It runs regardless of the handler outcome; Commit is a no-op when nothing
// changed on disk. Failures are logged only.
func commitChanges(ctx context.Context, r *http.Request, cfg *wrapConfig) {
	if cfg.committer == nil {
		return
	}
	msg := fmt.Sprintf("%s %s", r.Method, r.URL.Path)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
	defer cancel()
	if err := cfg.committer.Commit(ctx, git.Author{}, msg, cfg.files...); err != nil {
		slog.ErrorContext(ctx, "Failed to commit data changes", "err", err)
	}
}

// checkRateLimit checks rate limit and wraps the response writer.
// Returns the wrapped writer and whether the request should proceed.
func checkRateLimit(ctx context.Context, w http.ResponseWriter, tier *ratelimit.Tier, meta *reqctx.Metadata) (http.ResponseWriter, bool) {
	result := tier.Limiter.Allow(ratelimit.BuildKey(meta.ClientIP, tier.Name))
	w = ratelimit.NewResponseWriter(w, result)
	if !result.Allowed {
		writeError(ctx, w, dto.RateLimitExceeded(result.RetryAfter), 0, "")
		return w, false
	}
	return w, true
}

// readAndDecodeBody reads the request body with size limit and decodes JSON into input.
// Returns false if an error occurred and was written to the response.
//
// Unknown fields are ignored. A body that is not valid JSON is a server error,
// matching what the entry UI has always received.
func readAndDecodeBody[In any](ctx context.Context, w http.ResponseWriter, r *http.Request, input *In, maxBytes int64) bool {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	body, err := io.ReadAll(r.Body)
	if err2 := r.Body.Close(); err == nil {
		err = err2
	}
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(ctx, w, dto.PayloadTooLarge(maxBytesErr.Limit), 0, "")
			return false
		}
		writeError(ctx, w, dto.BadRequest("Failed to read request body").Wrap(err), 0, "")
		return false
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, input); err != nil {
			writeError(ctx, w, dto.InvalidBody(err), 0, "")
			return false
		}
	}
	return true
}

// populateQueryParams extracts query parameters from the request and populates
// struct fields tagged with `query:"paramName"`.
func populateQueryParams(r *http.Request, input any) {
	val := reflect.ValueOf(input)
	if val.Kind() != reflect.Pointer || val.Elem().Kind() != reflect.Struct {
		return
	}
	elem := val.Elem()
	query := r.URL.Query()
	typ := elem.Type()
	for i := range typ.NumField() {
		field := typ.Field(i)
		tag := field.Tag.Get("query")
		if tag == "" || !query.Has(tag) {
			continue
		}
		paramValue := query.Get(tag)
		fieldVal := elem.Field(i)
		switch field.Type.Kind() {
		case reflect.String:
			fieldVal.SetString(paramValue)
		case reflect.Int:
			if intVal, err := strconv.Atoi(paramValue); err == nil {
				fieldVal.SetInt(int64(intVal))
			}
		default:
			if u, ok := fieldVal.Addr().Interface().(encoding.TextUnmarshaler); ok {
				_ = u.UnmarshalText([]byte(paramValue))
			}
		}
	}
}

// writeJSONResponse writes a JSON response or error response.
func writeJSONResponse[Out any](ctx context.Context, w http.ResponseWriter, output *Out, err error) {
	if err != nil {
		writeError(ctx, w, err, http.StatusInternalServerError, dto.ErrorCodeInternal)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(output); err != nil {
		slog.ErrorContext(ctx, "Failed to encode response", "err", err)
	}
}

// writeError writes err as a dto.ErrorResponse. The status code and error code
// come from err when it carries them, otherwise from the defaults.
func writeError(ctx context.Context, w http.ResponseWriter, err error, defStatus int, defCode dto.ErrorCode) {
	var resp *dto.ErrorResponse
	statusCode := defStatus
	var apiErr *dto.APIError
	var ewsErr dto.ErrorWithStatus
	switch {
	case errors.As(err, &apiErr):
		statusCode = apiErr.StatusCode()
		resp = apiErr.Response()
	case errors.As(err, &ewsErr):
		statusCode = ewsErr.StatusCode()
		resp = &dto.ErrorResponse{Message: ewsErr.Error(), Code: ewsErr.Code(), Details: ewsErr.Details()}
	default:
		resp = &dto.ErrorResponse{Message: "Server error", Error: err.Error(), Code: defCode}
	}
	if statusCode >= http.StatusInternalServerError {
		slog.ErrorContext(ctx, "Handler error", append(reqctx.LogAttrs(ctx), "err", err, "statusCode", statusCode, "code", resp.Code)...)
	} else {
		slog.WarnContext(ctx, "Request rejected", append(reqctx.LogAttrs(ctx), "err", err, "statusCode", statusCode, "code", resp.Code)...)
	}
	writeErrorResponse(ctx, w, statusCode, resp)
}

func writeErrorResponse(ctx context.Context, w http.ResponseWriter, statusCode int, resp *dto.ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "Failed to encode error response", "err", err)
	}
}

// methodNotAllowed rejects any method not in allow.
func methodNotAllowed(allow string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", allow)
		writeError(r.Context(), w, dto.MethodNotAllowed(r.Method), 0, "")
	})
}
