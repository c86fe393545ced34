package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	domain "github.com/menuboard/api/internal/domain"
	"github.com/menuboard/api/internal/repositories"
)

const (
	maxCustomerNameLength = 120
	maxPhoneLength        = 32
	maxAddressLength      = 500
)

var (
	errCheckoutSessionsRequired   = errors.New("checkout service: sessions are required")
	errCheckoutComposerRequired   = errors.New("checkout service: composer is required")
	errCheckoutZonesRequired      = errors.New("checkout service: zones are required")
	errCheckoutDispatcherRequired = errors.New("checkout service: dispatcher is required")
)

// ErrCheckoutInvalidInput indicates a malformed draft update.
var ErrCheckoutInvalidInput = errors.New("checkout service: invalid input")

// ErrCheckoutIncomplete indicates the order cannot be handed off yet.
var ErrCheckoutIncomplete = errors.New("checkout service: order incomplete")

// IncompleteOrderError lists what blocks a submit. It matches ErrCheckoutIncomplete.
type IncompleteOrderError struct {
	Missing []string
	Reason  string
}

func (e *IncompleteOrderError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("%s: missing %s", ErrCheckoutIncomplete, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("%s: %s", ErrCheckoutIncomplete, e.Reason)
}

func (e *IncompleteOrderError) Unwrap() error { return ErrCheckoutIncomplete }

type zoneLookup interface {
	GetZone(ctx context.Context, id string) (DeliveryZone, error)
}

// CheckoutServiceDeps wires checkout dependencies.
type CheckoutServiceDeps struct {
	Sessions   *CartSessions
	Composer   *OrderComposer
	Zones      zoneLookup
	Dispatcher HandoffDispatcher
	Pricer     *CartPricingEngine
	Hours      BusinessHours
	Meter      metric.Meter
	Logger     func(context.Context, string, map[string]any)
}

type checkoutService struct {
	sessions   *CartSessions
	composer   *OrderComposer
	zones      zoneLookup
	dispatcher HandoffDispatcher
	pricer     *CartPricingEngine
	hours      BusinessHours
	logger     func(context.Context, string, map[string]any)

	handoffs        metric.Int64Counter
	handoffsEnabled bool
}

// NewCheckoutService constructs a CheckoutService enforcing dependency validation.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	switch {
	case deps.Sessions == nil:
		return nil, errCheckoutSessionsRequired
	case deps.Composer == nil:
		return nil, errCheckoutComposerRequired
	case deps.Zones == nil:
		return nil, errCheckoutZonesRequired
	case deps.Dispatcher == nil:
		return nil, errCheckoutDispatcherRequired
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	pricer := deps.Pricer
	if pricer == nil {
		pricer = NewCartPricingEngine(CartPricingEngineDeps{Currency: deps.Composer.currency, Logger: logger})
	}
	hours := deps.Hours
	if hours.Opening == "" || hours.Closing == "" {
		hours = DefaultBusinessHours()
	}
	if hours.Default == "" {
		hours.Default = DefaultBusinessHours().Default
	}
	meter := deps.Meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(metricNamespace)
	}
	handoffs, err := meter.Int64Counter(
		"menu.checkout.handoffs",
		metric.WithDescription("Order hand-off attempts by result"),
	)
	if err != nil {
		logger(context.Background(), "checkout_metric_register_failed", map[string]any{"error": err.Error()})
	}

	return &checkoutService{
		sessions:        deps.Sessions,
		composer:        deps.Composer,
		zones:           deps.Zones,
		dispatcher:      deps.Dispatcher,
		pricer:          pricer,
		hours:           hours,
		logger:          logger,
		handoffs:        handoffs,
		handoffsEnabled: err == nil,
	}, nil
}

func (s *checkoutService) GetDraft(ctx context.Context, sessionID string) (DraftView, error) {
	if err := checkSessionID(sessionID); err != nil {
		return DraftView{}, err
	}
	var view DraftView
	err := s.sessions.View(ctx, sessionID, func(sess *CartSession) error {
		view = s.draftView(sess)
		return nil
	})
	return view, err
}

func (s *checkoutService) UpdateDraft(ctx context.Context, cmd UpdateDraftCommand) (DraftView, error) {
	if err := checkSessionID(cmd.SessionID); err != nil {
		return DraftView{}, err
	}
	draft, err := s.buildDraft(ctx, cmd)
	if err != nil {
		return DraftView{}, err
	}

	var view DraftView
	err = s.sessions.Update(ctx, cmd.SessionID, func(sess *CartSession) (bool, error) {
		sess.Draft = draft
		view = s.draftView(sess)
		return true, nil
	})
	return view, err
}

func (s *checkoutService) Preview(ctx context.Context, sessionID string) (OrderSummary, error) {
	if err := checkSessionID(sessionID); err != nil {
		return OrderSummary{}, err
	}
	var summary OrderSummary
	err := s.sessions.View(ctx, sessionID, func(sess *CartSession) error {
		summary = s.composer.Compose(sess.Cart.State(), s.withDefaults(sess.Draft))
		return nil
	})
	return summary, err
}

// Submit composes the order and hands it off. Only a successful hand-off clears the
// cart, closes it and resets the draft; on failure the session is left as it was.
func (s *checkoutService) Submit(ctx context.Context, sessionID string) (SubmitResult, error) {
	if err := checkSessionID(sessionID); err != nil {
		return SubmitResult{}, err
	}

	var result SubmitResult
	err := s.sessions.Update(ctx, sessionID, func(sess *CartSession) (bool, error) {
		if sess.Cart.Len() == 0 {
			return false, &IncompleteOrderError{Missing: []string{"items"}, Reason: "cart is empty"}
		}
		if missing := ValidateDraft(sess.Draft); len(missing) > 0 {
			return false, &IncompleteOrderError{Missing: missing}
		}
		if step := sess.Cart.Step(); step != domain.StepConfirm {
			return false, &IncompleteOrderError{Reason: fmt.Sprintf("checkout is on step %d", step)}
		}

		summary := s.composer.Compose(sess.Cart.State(), s.withDefaults(sess.Draft))
		msg := HandoffMessage{
			SessionID:   sess.ID,
			Text:        summary.Text,
			URL:         summary.HandoffURL,
			Destination: s.composer.Destination(),
			Total:       summary.Total,
			ItemCount:   summary.ItemCount,
		}
		if err := s.dispatcher.Dispatch(ctx, msg); err != nil {
			s.recordHandoff(ctx, "failed")
			s.logger(ctx, "checkout_handoff_failed", map[string]any{
				"sessionId": sess.ID,
				"error":     err.Error(),
			})
			return false, fmt.Errorf("%w: %v", ErrHandoffFailed, err)
		}
		s.recordHandoff(ctx, "sent")

		sess.Cart.ClearCart()
		sess.Cart.SetOpen(false)
		sess.Draft = s.emptyDraft()

		view, err := buildCartView(ctx, s.pricer, sess)
		if err != nil {
			return false, err
		}
		result = SubmitResult{Summary: summary, Cart: view}
		s.logger(ctx, "checkout_submitted", map[string]any{
			"sessionId": sess.ID,
			"itemCount": summary.ItemCount,
			"total":     summary.Total,
		})
		return true, nil
	})
	return result, err
}

func (s *checkoutService) buildDraft(ctx context.Context, cmd UpdateDraftCommand) (OrderDraft, error) {
	name := strings.TrimSpace(cmd.CustomerName)
	phone := strings.TrimSpace(cmd.Phone)
	address := strings.TrimSpace(cmd.SpecificAddress)
	switch {
	case utf8.RuneCountInString(name) > maxCustomerNameLength:
		return OrderDraft{}, fmt.Errorf("%w: customer name exceeds %d characters", ErrCheckoutInvalidInput, maxCustomerNameLength)
	case utf8.RuneCountInString(phone) > maxPhoneLength:
		return OrderDraft{}, fmt.Errorf("%w: phone exceeds %d characters", ErrCheckoutInvalidInput, maxPhoneLength)
	case utf8.RuneCountInString(address) > maxAddressLength:
		return OrderDraft{}, fmt.Errorf("%w: address exceeds %d characters", ErrCheckoutInvalidInput, maxAddressLength)
	}

	draft := OrderDraft{CustomerName: name, Phone: phone, SpecificAddress: address}

	if zoneID := strings.TrimSpace(cmd.ZoneID); zoneID != "" {
		zone, err := s.zones.GetZone(ctx, zoneID)
		if err != nil {
			var repoErr repositories.RepositoryError
			if errors.As(err, &repoErr) && repoErr.IsNotFound() {
				return OrderDraft{}, fmt.Errorf("%w: unknown zone %q", ErrCheckoutInvalidInput, zoneID)
			}
			return OrderDraft{}, translateRepoError(err)
		}
		draft.Zone = &zone
	}

	timing, err := s.buildTiming(cmd.Timing)
	if err != nil {
		return OrderDraft{}, err
	}
	draft.Timing = timing
	return draft, nil
}

func (s *checkoutService) buildTiming(in DeliveryTiming) (DeliveryTiming, error) {
	switch in.Mode {
	case "", domain.DeliveryImmediate:
		return DeliveryTiming{Mode: domain.DeliveryImmediate, Time: s.hours.Default}, nil
	case domain.DeliveryScheduled:
		value := in.Time
		if strings.TrimSpace(value) == "" {
			value = s.hours.Default
		}
		normalized, err := s.hours.Validate(value)
		if err != nil {
			return DeliveryTiming{}, fmt.Errorf("%w: %v", ErrCheckoutInvalidInput, err)
		}
		return DeliveryTiming{Mode: domain.DeliveryScheduled, Time: normalized}, nil
	default:
		return DeliveryTiming{}, fmt.Errorf("%w: unknown delivery mode %q", ErrCheckoutInvalidInput, in.Mode)
	}
}

func (s *checkoutService) draftView(sess *CartSession) DraftView {
	draft := s.withDefaults(cloneDraft(sess.Draft))
	return DraftView{
		SessionID: sess.ID,
		Draft:     draft,
		Missing:   ValidateDraft(draft),
	}
}

func (s *checkoutService) withDefaults(draft OrderDraft) OrderDraft {
	if draft.Timing.Mode == "" {
		draft.Timing.Mode = domain.DeliveryImmediate
	}
	if draft.Timing.Time == "" {
		draft.Timing.Time = s.hours.Default
	}
	return draft
}

func (s *checkoutService) emptyDraft() OrderDraft {
	return OrderDraft{Timing: DeliveryTiming{Mode: domain.DeliveryImmediate, Time: s.hours.Default}}
}

func (s *checkoutService) recordHandoff(ctx context.Context, result string) {
	if !s.handoffsEnabled {
		return
	}
	s.handoffs.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
