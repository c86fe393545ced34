package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/menuboard/api/internal/domain"
	"github.com/menuboard/api/internal/repositories"
)

var errCartSessionsRepositoryRequired = errors.New("cart sessions: repository is required")

// CartSession is one customer's cart plus the draft being collected for it.
type CartSession struct {
	ID    string
	Cart  *CartStore
	Draft OrderDraft
}

// CartSessions loads a session's snapshot, hands it to a callback and saves it
// back. Work on the same session is serialised by a per-session lock.
type CartSessions struct {
	repo   repositories.CartRepository
	now    func() time.Time
	newID  func() string
	logger func(context.Context, string, map[string]any)

	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// CartSessionsDeps configures CartSessions.
type CartSessionsDeps struct {
	Repository  repositories.CartRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(context.Context, string, map[string]any)
}

// NewCartSessions validates dependencies and applies defaults.
func NewCartSessions(deps CartSessionsDeps) (*CartSessions, error) {
	if deps.Repository == nil {
		return nil, errCartSessionsRepositoryRequired
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &CartSessions{
		repo:   deps.Repository,
		now:    func() time.Time { return clock().UTC() },
		newID:  idGen,
		logger: logger,
		locks:  make(map[string]*sessionLock),
	}, nil
}

// NewID issues a fresh session id.
func (s *CartSessions) NewID() string { return s.newID() }

// ValidSessionID reports whether id looks like an issued session id.
func ValidSessionID(id string) bool {
	_, err := ulid.ParseStrict(strings.TrimSpace(id))
	return err == nil
}

// View runs fn against the session without saving. Unknown sessions read as empty.
func (s *CartSessions) View(ctx context.Context, sessionID string, fn func(*CartSession) error) error {
	return s.run(ctx, sessionID, false, func(sess *CartSession) (bool, error) {
		return false, fn(sess)
	})
}

// Update runs fn against the session and saves the result when fn reports a change.
// When fn fails nothing is saved, so a failed operation leaves the stored cart as it was.
func (s *CartSessions) Update(ctx context.Context, sessionID string, fn func(*CartSession) (bool, error)) error {
	return s.run(ctx, sessionID, true, fn)
}

func (s *CartSessions) run(ctx context.Context, sessionID string, save bool, fn func(*CartSession) (bool, error)) error {
	id := strings.TrimSpace(sessionID)
	if id == "" {
		return fmt.Errorf("%w: session id is required", ErrCartInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	unlock := s.lock(id)
	defer unlock()

	sess, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	changed, err := fn(sess)
	if err != nil {
		return err
	}
	if !save || !changed {
		return nil
	}

	snapshot := domain.CartSnapshot{
		SessionID: id,
		State:     sess.Cart.State(),
		Draft:     cloneDraft(sess.Draft),
		UpdatedAt: s.now(),
	}
	if err := s.repo.SaveCart(ctx, snapshot); err != nil {
		s.logger(ctx, "cart_session_save_failed", map[string]any{
			"sessionId": id,
			"error":     err.Error(),
		})
		return translateRepoError(err)
	}
	return nil
}

func (s *CartSessions) load(ctx context.Context, id string) (*CartSession, error) {
	snapshot, err := s.repo.GetCart(ctx, id)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return &CartSession{ID: id, Cart: NewCartStore()}, nil
		}
		s.logger(ctx, "cart_session_load_failed", map[string]any{
			"sessionId": id,
			"error":     err.Error(),
		})
		return nil, translateRepoError(err)
	}
	return &CartSession{
		ID:    id,
		Cart:  NewCartStoreFromState(snapshot.State),
		Draft: cloneDraft(snapshot.Draft),
	}, nil
}

func (s *CartSessions) lock(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sessionLock{}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.mu.Unlock()
	}
}

func cloneDraft(draft OrderDraft) OrderDraft {
	out := draft
	if draft.Zone != nil {
		zone := *draft.Zone
		out.Zone = &zone
	}
	return out
}

func translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		return ErrCartNotFound
	}
	return fmt.Errorf("%w: %v", ErrCartUnavailable, err)
}
