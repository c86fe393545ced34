package services

import (
	"context"
	"errors"
)

// ErrHandoffFailed indicates the messaging hand-off could not be dispatched.
var ErrHandoffFailed = errors.New("checkout: hand-off failed")

// LinkHandoff is the default dispatcher: the client opens HandoffURL itself, so
// dispatching only records the event.
type LinkHandoff struct {
	logger func(context.Context, string, map[string]any)
}

// NewLinkHandoff returns a dispatcher that logs each hand-off.
func NewLinkHandoff(logger func(context.Context, string, map[string]any)) *LinkHandoff {
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &LinkHandoff{logger: logger}
}

// Dispatch records the hand-off.
func (h *LinkHandoff) Dispatch(ctx context.Context, msg HandoffMessage) error {
	if msg.URL == "" {
		return errors.New("link hand-off: url is required")
	}
	h.logger(ctx, "handoff_link_issued", map[string]any{
		"sessionId": msg.SessionID,
		"itemCount": msg.ItemCount,
		"total":     msg.Total,
	})
	return nil
}

// HandoffFunc adapts a function to HandoffDispatcher.
type HandoffFunc func(context.Context, HandoffMessage) error

// Dispatch calls f.
func (f HandoffFunc) Dispatch(ctx context.Context, msg HandoffMessage) error {
	return f(ctx, msg)
}
