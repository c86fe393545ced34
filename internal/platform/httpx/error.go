package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/menuboard/api/internal/platform/requestctx"
)

// Error is the JSON error envelope every storefront endpoint answers with.
type Error struct {
	Code    string
	Message string
	Status  int
	// Missing lists the order fields a shopper still has to fill in.
	Missing []string
	Details map[string]any
}

type envelope struct {
	Error     string   `json:"error"`
	Message   string   `json:"message"`
	Status    int      `json:"status"`
	Retryable bool     `json:"retryable,omitempty"`
	Missing   []string `json:"missing,omitempty"`
	SessionID string   `json:"session_id,omitempty"`
	RequestID string   `json:"request_id,omitempty"`
	TraceID   string   `json:"trace_id,omitempty"`
}

// NewError builds an envelope; a zero status becomes 500.
func NewError(code, message string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{
		Code:    sanitize(code, 80),
		Message: sanitize(message, 512),
		Status:  status,
	}
}

// WithMissing records the incomplete order fields.
func (e Error) WithMissing(fields ...string) Error {
	if len(fields) == 0 {
		return e
	}
	e.Missing = append([]string(nil), fields...)
	return e
}

// WithDetails attaches extra top-level members. They never replace envelope fields.
func (e Error) WithDetails(details map[string]any) Error {
	if len(details) == 0 {
		return e
	}
	dup := make(map[string]any, len(details))
	for k, v := range details {
		dup[k] = v
	}
	e.Details = dup
	return e
}

// Retryable reports whether the client may resend the same request unchanged.
func (e Error) Retryable() bool {
	switch e.Status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout, http.StatusTooManyRequests:
		return true
	}
	return false
}

// WriteError encodes err, tagging it with the request, trace and cart session ids
// found on ctx. Errors tied to a cart session are never cached.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	if err.Status == 0 {
		err.Status = http.StatusInternalServerError
	}
	env := envelope{
		Error:     err.Code,
		Message:   err.Message,
		Status:    err.Status,
		Retryable: err.Retryable(),
		Missing:   err.Missing,
		SessionID: requestctx.SessionID(ctx),
		RequestID: sanitize(middleware.GetReqID(ctx), 80),
		TraceID:   sanitize(requestctx.TraceID(ctx), 64),
	}

	var body any = env
	if len(err.Details) > 0 {
		merged := make(map[string]any, len(err.Details)+8)
		for k, v := range err.Details {
			merged[k] = v
		}
		raw, _ := json.Marshal(env)
		var fields map[string]any
		_ = json.Unmarshal(raw, &fields)
		for k, v := range fields {
			merged[k] = v
		}
		body = merged
	}

	w.Header().Set("Content-Type", "application/json")
	if env.SessionID != "" {
		w.Header().Set("Cache-Control", "no-store")
	}
	w.WriteHeader(err.Status)
	_ = json.NewEncoder(w).Encode(body)
}

func sanitize(value string, limit int) string {
	if limit <= 0 {
		limit = 256
	}
	value = strings.Join(strings.Fields(value), " ")
	if len(value) > limit {
		value = value[:limit]
	}
	return value
}
