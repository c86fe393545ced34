package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	domain "github.com/menuboard/api/internal/domain"
	"github.com/menuboard/api/internal/repositories"
)

var errCartNotFound = errors.New("cart not found")

// CartRepository keeps session carts in process memory. Snapshots idle for longer
// than the TTL are treated as missing and dropped on the next sweep.
type CartRepository struct {
	mu    sync.Mutex
	carts map[string]domain.CartSnapshot
	ttl   time.Duration
	now   func() time.Time
}

// Option customises the in-memory repository.
type Option func(*CartRepository)

// WithTTL sets how long an untouched snapshot is kept. Zero disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(r *CartRepository) {
		if ttl >= 0 {
			r.ttl = ttl
		}
	}
}

// WithClock injects a clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(r *CartRepository) {
		if now != nil {
			r.now = now
		}
	}
}

// NewCartRepository constructs an empty in-memory cart store.
func NewCartRepository(opts ...Option) *CartRepository {
	repo := &CartRepository{
		carts: make(map[string]domain.CartSnapshot),
		now:   time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	return repo
}

var _ repositories.CartRepository = (*CartRepository)(nil)

// GetCart returns the stored snapshot or a not-found repository error.
func (r *CartRepository) GetCart(_ context.Context, sessionID string) (domain.CartSnapshot, error) {
	id := strings.TrimSpace(sessionID)
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot, ok := r.carts[id]
	if !ok {
		return domain.CartSnapshot{}, repositories.NewNotFoundError("memory.GetCart", errCartNotFound)
	}
	if r.expired(snapshot) {
		delete(r.carts, id)
		return domain.CartSnapshot{}, repositories.NewNotFoundError("memory.GetCart", errCartNotFound)
	}
	return cloneSnapshot(snapshot), nil
}

// SaveCart replaces the snapshot for the session.
func (r *CartRepository) SaveCart(_ context.Context, snapshot domain.CartSnapshot) error {
	id := strings.TrimSpace(snapshot.SessionID)
	if id == "" {
		return errors.New("memory cart repository: session id is required")
	}
	snapshot.SessionID = id
	if snapshot.UpdatedAt.IsZero() {
		snapshot.UpdatedAt = r.now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.carts[id] = cloneSnapshot(snapshot)
	return nil
}

// DeleteCart removes the snapshot; deleting a missing session is not an error.
func (r *CartRepository) DeleteCart(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, strings.TrimSpace(sessionID))
	return nil
}

// Sweep drops expired snapshots and returns how many were removed.
func (r *CartRepository) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, snapshot := range r.carts {
		if r.expired(snapshot) {
			delete(r.carts, id)
			removed++
		}
	}
	return removed
}

// RunSweeper sweeps on the given interval until ctx is cancelled.
func (r *CartRepository) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 || r.ttl <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

func (r *CartRepository) expired(snapshot domain.CartSnapshot) bool {
	if r.ttl <= 0 || snapshot.UpdatedAt.IsZero() {
		return false
	}
	return r.now().Sub(snapshot.UpdatedAt) > r.ttl
}

func cloneSnapshot(snapshot domain.CartSnapshot) domain.CartSnapshot {
	out := snapshot
	out.State.Items = make([]domain.LineItem, len(snapshot.State.Items))
	for i, item := range snapshot.State.Items {
		dup := item
		if item.SelectedParameters != nil {
			dup.SelectedParameters = make(map[string]int, len(item.SelectedParameters))
			for k, v := range item.SelectedParameters {
				dup.SelectedParameters[k] = v
			}
		}
		if item.SelectedAddOns != nil {
			dup.SelectedAddOns = make(map[int64]int, len(item.SelectedAddOns))
			for k, v := range item.SelectedAddOns {
				dup.SelectedAddOns[k] = v
			}
		}
		if item.AddOnCatalog != nil {
			dup.AddOnCatalog = make(domain.AddOnCatalog, len(item.AddOnCatalog))
			for k, v := range item.AddOnCatalog {
				dup.AddOnCatalog[k] = v
			}
		}
		out.State.Items[i] = dup
	}
	if snapshot.Draft.Zone != nil {
		zone := *snapshot.Draft.Zone
		out.Draft.Zone = &zone
	}
	return out
}
