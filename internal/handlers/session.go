package handlers

import (
	"net/http"
	"strings"

	"github.com/menuboard/api/internal/platform/httpx"
	"github.com/menuboard/api/internal/platform/requestctx"
	"github.com/menuboard/api/internal/services"
)

// DefaultSessionHeader carries the cart session id between client and server.
const DefaultSessionHeader = "X-Cart-Session"

// SessionOption customises how cart and checkout handlers read sessions and bodies.
type SessionOption func(*sessionConfig)

type sessionConfig struct {
	header       string
	maxBodyBytes int64
}

// WithSessionHeader overrides the header used to carry the session id.
func WithSessionHeader(name string) SessionOption {
	return func(cfg *sessionConfig) {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			cfg.header = http.CanonicalHeaderKey(trimmed)
		}
	}
}

// WithMaxBodyBytes limits the size of JSON request bodies.
func WithMaxBodyBytes(limit int64) SessionOption {
	return func(cfg *sessionConfig) {
		if limit > 0 {
			cfg.maxBodyBytes = limit
		}
	}
}

func newSessionConfig(opts []SessionOption) sessionConfig {
	cfg := sessionConfig{header: DefaultSessionHeader, maxBodyBytes: defaultMaxBodyBytes}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// resolve returns the session named by the request header. When the header is
// absent and issue is non-nil a new session id is minted. The id is echoed on the
// response and stored on the request context.
func (c sessionConfig) resolve(w http.ResponseWriter, r *http.Request, issue func() string) (*http.Request, string, bool) {
	ctx := r.Context()
	id := strings.TrimSpace(r.Header.Get(c.header))
	switch {
	case id == "" && issue != nil:
		id = issue()
	case id == "":
		httpx.WriteError(ctx, w, httpx.NewError("session_required", c.header+" header is required", http.StatusBadRequest))
		return r, "", false
	case !services.ValidSessionID(id):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_session", "session id is malformed", http.StatusBadRequest))
		return r, "", false
	}

	w.Header().Set(c.header, id)
	setNoStoreHeaders(w)
	return r.WithContext(requestctx.WithSessionID(ctx, id)), id, true
}
