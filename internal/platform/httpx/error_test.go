package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/menuboard/api/internal/platform/requestctx"
)

func TestWriteErrorEnvelope(t *testing.T) {
	ctx := requestctx.WithTrace(context.Background(), requestctx.TraceInfo{TraceID: "abc123"})
	rec := httptest.NewRecorder()

	WriteError(ctx, rec, NewError("invalid_request", "bad\ninput", http.StatusBadRequest).
		WithDetails(map[string]any{"field": "phone", "error": "overridden"}))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Empty(t, rec.Header().Get("Cache-Control"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "invalid_request", body["error"])
	require.Equal(t, "bad input", body["message"])
	require.Equal(t, "abc123", body["trace_id"])
	require.Equal(t, "phone", body["field"])
	require.NotContains(t, body, "retryable")
	require.NotContains(t, body, "session_id")
}

func TestWriteErrorCarriesSessionAndMissingFields(t *testing.T) {
	ctx := requestctx.WithSessionID(context.Background(), "01J9Z3Q5B8E6YV4T2M7K0R1N9C")
	rec := httptest.NewRecorder()

	WriteError(ctx, rec, NewError("order_incomplete", "order incomplete", http.StatusConflict).
		WithMissing("phone", "specificAddress"))

	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var body envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "01J9Z3Q5B8E6YV4T2M7K0R1N9C", body.SessionID)
	require.Equal(t, []string{"phone", "specificAddress"}, body.Missing)
	require.False(t, body.Retryable)
}

func TestRetryableStatuses(t *testing.T) {
	require.True(t, NewError("handoff_failed", "x", http.StatusBadGateway).Retryable())
	require.True(t, NewError("unavailable", "x", http.StatusServiceUnavailable).Retryable())
	require.True(t, NewError("timeout", "x", http.StatusGatewayTimeout).Retryable())
	require.False(t, NewError("invalid_request", "x", http.StatusBadRequest).Retryable())
}

func TestNewErrorDefaultsStatus(t *testing.T) {
	err := NewError("boom", "failed", 0)
	require.Equal(t, http.StatusInternalServerError, err.Status)
}
