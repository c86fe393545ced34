package services

import (
	"context"
	"errors"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"

	domain "github.com/menuboard/api/internal/domain"
	"github.com/menuboard/api/internal/repositories"
	"github.com/menuboard/api/internal/repositories/memory"
)

type stubProductLookup struct {
	details map[int64]ProductDetail
	err     error
}

func (s *stubProductLookup) GetProductDetail(_ context.Context, productID int64) (ProductDetail, error) {
	if s.err != nil {
		return ProductDetail{}, s.err
	}
	detail, ok := s.details[productID]
	if !ok {
		return ProductDetail{}, repositories.NewNotFoundError("catalog.get_product", errors.New("missing"))
	}
	return detail, nil
}

type failingCartRepository struct {
	*memory.CartRepository
	saveErr error
}

func (r *failingCartRepository) SaveCart(ctx context.Context, snapshot domain.CartSnapshot) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	return r.CartRepository.SaveCart(ctx, snapshot)
}

func newTestSessions(t *testing.T, repo repositories.CartRepository) *CartSessions {
	t.Helper()
	if repo == nil {
		repo = memory.NewCartRepository()
	}
	sessions, err := NewCartSessions(CartSessionsDeps{Repository: repo})
	require.NoError(t, err)
	return sessions
}

func newTestCartService(t *testing.T, sessions *CartSessions, catalog productLookup) CartService {
	t.Helper()
	deps := CartServiceDeps{Sessions: sessions, MaxLineQuantity: 10}
	if catalog != nil {
		deps.Catalog = catalog
	}
	svc, err := NewCartService(deps)
	require.NoError(t, err)
	return svc
}

func menuCatalog() *stubProductLookup {
	return &stubProductLookup{details: map[int64]ProductDetail{
		1: {
			Product: Product{ID: 1, Name: "Coffee", Price: 100, Stock: 5, HasAddOns: true, HasExtraCharges: true},
			AddOns:  []AddOn{{ID: 9, Name: "Extra shot", Price: 20}},
			ExtraCharges: []ExtraCharge{
				{ID: 1, Name: "Cup", Price: 3},
				{ID: 2, Name: "Lid", Price: 2},
			},
		},
		2: {
			Product: Product{ID: 2, Name: "Latte", Price: 150, Stock: 5, HasParameters: true, Parameters: []ProductParameter{
				{Name: "Large", AvailableQuantity: 2},
				{Name: "Small", AvailableQuantity: 4},
			}},
		},
		3: {Product: Product{ID: 3, Name: "Muffin", Price: 80, Stock: 0}},
	}}
}

func TestNewCartServiceRequiresSessions(t *testing.T) {
	_, err := NewCartService(CartServiceDeps{})
	require.Error(t, err)
}

func TestCartServiceAddItemWithClientSnapshotPersists(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewCartRepository()
	svc := newTestCartService(t, newTestSessions(t, repo), nil)
	sessionID := svc.NewSessionID()

	view, err := svc.AddItem(ctx, AddCartItemCommand{
		SessionID:    sessionID,
		ProductID:    1,
		Quantity:     2,
		AddOns:       map[int64]int{9: 1},
		Product:      &coffee,
		AddOnCatalog: shotCatalog,
	})
	require.NoError(t, err)
	require.Equal(t, 2, view.ItemCount)
	require.InDelta(t, 220.0, view.Pricing.Total, 1e-9)

	stored, err := repo.GetCart(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, stored.State.Items, 1)

	reloaded, err := newTestCartService(t, newTestSessions(t, repo), nil).GetCart(ctx, sessionID)
	require.NoError(t, err)
	require.Equal(t, view.State, reloaded.State)
}

func TestCartServiceRejectsInvalidSession(t *testing.T) {
	svc := newTestCartService(t, newTestSessions(t, nil), nil)

	_, err := svc.GetCart(context.Background(), "not-a-session")
	require.ErrorIs(t, err, ErrCartInvalidInput)
	_, err = svc.ClearCart(context.Background(), "")
	require.ErrorIs(t, err, ErrCartInvalidInput)
}

func TestCartServiceUnknownSessionReadsEmpty(t *testing.T) {
	svc := newTestCartService(t, newTestSessions(t, nil), nil)

	view, err := svc.GetCart(context.Background(), ulid.Make().String())
	require.NoError(t, err)
	require.Empty(t, view.State.Items)
	require.Equal(t, domain.StepReview, view.State.Step)
	require.False(t, view.State.IsOpen)
}

func TestCartServiceAddItemResolvesFromCatalog(t *testing.T) {
	svc := newTestCartService(t, newTestSessions(t, nil), menuCatalog())
	sessionID := ulid.Make().String()

	view, err := svc.AddItem(context.Background(), AddCartItemCommand{
		SessionID: sessionID,
		ProductID: 1,
		Quantity:  2,
		AddOns:    map[int64]int{9: 1},
		// client snapshot is ignored when a catalog is configured
		Product: &Product{ID: 1, Name: "Coffee", Price: 1},
	})
	require.NoError(t, err)

	item := view.State.Items[0]
	require.Equal(t, 100.0, item.UnitBasePrice)
	require.Equal(t, 5.0, item.ExtraChargesPerUnit)
	require.Equal(t, "Extra shot", item.AddOnCatalog[9].Name)
	// 100*2 + 20 + 5*2
	require.InDelta(t, 230.0, view.Pricing.Subtotal, 1e-9)
}

func TestCartServiceAddItemCatalogValidation(t *testing.T) {
	svc := newTestCartService(t, newTestSessions(t, nil), menuCatalog())
	sessionID := ulid.Make().String()
	ctx := context.Background()

	cases := map[string]struct {
		cmd  AddCartItemCommand
		want error
	}{
		"unknown product":        {AddCartItemCommand{ProductID: 99, Quantity: 1}, ErrCartNotFound},
		"out of stock":           {AddCartItemCommand{ProductID: 3, Quantity: 1}, ErrCartInvalidInput},
		"unknown add-on":         {AddCartItemCommand{ProductID: 1, Quantity: 1, AddOns: map[int64]int{4: 1}}, ErrCartInvalidInput},
		"parameters not offered": {AddCartItemCommand{ProductID: 1, Quantity: 1, Parameters: map[string]int{"Large": 1}}, ErrCartInvalidInput},
		"unknown parameter":      {AddCartItemCommand{ProductID: 2, Parameters: map[string]int{"Huge": 1}}, ErrCartInvalidInput},
		"over available":         {AddCartItemCommand{ProductID: 2, Parameters: map[string]int{"Large": 3}}, ErrCartInvalidInput},
		"no option selected":     {AddCartItemCommand{ProductID: 2, Quantity: 1}, ErrCartInvalidInput},
		"quantity mismatch":      {AddCartItemCommand{ProductID: 2, Quantity: 3, Parameters: map[string]int{"Large": 1}}, ErrCartInvalidInput},
		"negative add-on":        {AddCartItemCommand{ProductID: 1, Quantity: 1, AddOns: map[int64]int{9: -1}}, ErrCartInvalidInput},
		"over line maximum":      {AddCartItemCommand{ProductID: 1, Quantity: 11}, ErrCartInvalidInput},
		"zero quantity":          {AddCartItemCommand{ProductID: 1}, ErrCartInvalidInput},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			tc.cmd.SessionID = sessionID
			_, err := svc.AddItem(ctx, tc.cmd)
			require.ErrorIs(t, err, tc.want)
		})
	}

	view, err := svc.GetCart(ctx, sessionID)
	require.NoError(t, err)
	require.Empty(t, view.State.Items)
}

func TestCartServiceAddItemDerivesQuantityFromParameters(t *testing.T) {
	svc := newTestCartService(t, newTestSessions(t, nil), menuCatalog())

	view, err := svc.AddItem(context.Background(), AddCartItemCommand{
		SessionID:  ulid.Make().String(),
		ProductID:  2,
		Parameters: map[string]int{"Large": 2, "Small": 1},
	})
	require.NoError(t, err)
	require.Equal(t, 3, view.State.Items[0].Quantity)
	require.InDelta(t, 450.0, view.Pricing.Subtotal, 1e-9)
}

func TestCartServiceRepeatedAddsStayWithinLimits(t *testing.T) {
	ctx := context.Background()
	svc := newTestCartService(t, newTestSessions(t, nil), menuCatalog())
	sessionID := ulid.Make().String()

	for i := 0; i < 2; i++ {
		_, err := svc.AddItem(ctx, AddCartItemCommand{SessionID: sessionID, ProductID: 1, Quantity: 5})
		require.NoError(t, err)
	}
	_, err := svc.AddItem(ctx, AddCartItemCommand{SessionID: sessionID, ProductID: 1, Quantity: 1})
	require.ErrorIs(t, err, ErrCartInvalidInput)

	_, err = svc.AddItem(ctx, AddCartItemCommand{SessionID: sessionID, ProductID: 2, Parameters: map[string]int{"Large": 2}})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, AddCartItemCommand{SessionID: sessionID, ProductID: 2, Parameters: map[string]int{"Large": 2}})
	require.ErrorIs(t, err, ErrCartInvalidInput)
	_, err = svc.AddItem(ctx, AddCartItemCommand{SessionID: sessionID, ProductID: 2, Parameters: map[string]int{"Large": 1, "Small": 1}})
	require.ErrorIs(t, err, ErrCartInvalidInput)
	_, err = svc.AddItem(ctx, AddCartItemCommand{SessionID: sessionID, ProductID: 2, Parameters: map[string]int{"Small": 4}})
	require.NoError(t, err)

	view, err := svc.GetCart(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, view.State.Items, 3)
	require.Equal(t, 10, view.State.Items[0].Quantity)
	require.Equal(t, 2, view.State.Items[1].Quantity)
	require.Equal(t, map[string]int{"Large": 2}, view.State.Items[1].SelectedParameters)
	require.Equal(t, 4, view.State.Items[2].Quantity)
}

func TestCartServiceClientSnapshotValidation(t *testing.T) {
	svc := newTestCartService(t, newTestSessions(t, nil), nil)
	sessionID := ulid.Make().String()

	_, err := svc.AddItem(context.Background(), AddCartItemCommand{SessionID: sessionID, ProductID: 1, Quantity: 1})
	require.ErrorIs(t, err, ErrCartInvalidInput)

	_, err = svc.AddItem(context.Background(), AddCartItemCommand{SessionID: sessionID, ProductID: 2, Quantity: 1, Product: &coffee})
	require.ErrorIs(t, err, ErrCartInvalidInput)

	negative := Product{ID: 5, Name: "Refund", Price: -1}
	_, err = svc.AddItem(context.Background(), AddCartItemCommand{SessionID: sessionID, Quantity: 1, Product: &negative})
	require.ErrorIs(t, err, ErrCartInvalidInput)
}

func TestCartServiceRemoveToggleClear(t *testing.T) {
	ctx := context.Background()
	svc := newTestCartService(t, newTestSessions(t, nil), nil)
	sessionID := ulid.Make().String()

	_, err := svc.AddItem(ctx, AddCartItemCommand{SessionID: sessionID, Quantity: 1, Product: &coffee})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, AddCartItemCommand{SessionID: sessionID, Parameters: map[string]int{"Large": 1}, Product: &latte})
	require.NoError(t, err)

	view, err := svc.RemoveItem(ctx, sessionID, latte.ID)
	require.NoError(t, err)
	require.Len(t, view.State.Items, 1)

	view, err = svc.ToggleCart(ctx, sessionID)
	require.NoError(t, err)
	require.True(t, view.State.IsOpen)

	view, err = svc.ClearCart(ctx, sessionID)
	require.NoError(t, err)
	require.Empty(t, view.State.Items)
	require.True(t, view.State.IsOpen)
	require.Zero(t, view.Pricing.Total)

	_, err = svc.RemoveItem(ctx, sessionID, 0)
	require.ErrorIs(t, err, ErrCartInvalidInput)
}

func TestCartServiceStepGating(t *testing.T) {
	ctx := context.Background()
	sessions := newTestSessions(t, nil)
	svc := newTestCartService(t, sessions, nil)
	sessionID := ulid.Make().String()

	transition, err := svc.AdvanceStep(ctx, sessionID)
	require.NoError(t, err)
	require.False(t, transition.Advanced)
	require.Equal(t, []string{"items"}, transition.Missing)

	_, err = svc.AddItem(ctx, AddCartItemCommand{SessionID: sessionID, Quantity: 1, Product: &coffee})
	require.NoError(t, err)

	transition, err = svc.AdvanceStep(ctx, sessionID)
	require.NoError(t, err)
	require.True(t, transition.Advanced)
	require.Equal(t, domain.StepDelivery, transition.Cart.State.Step)

	transition, err = svc.AdvanceStep(ctx, sessionID)
	require.NoError(t, err)
	require.False(t, transition.Advanced)
	require.Contains(t, transition.Missing, DraftFieldZone)

	require.NoError(t, sessions.Update(ctx, sessionID, func(sess *CartSession) (bool, error) {
		sess.Draft = completeDraft()
		return true, nil
	}))

	transition, err = svc.AdvanceStep(ctx, sessionID)
	require.NoError(t, err)
	require.True(t, transition.Advanced)
	require.Equal(t, domain.StepConfirm, transition.Cart.State.Step)
	require.InDelta(t, 50.0, transition.Cart.Pricing.DeliveryFee, 1e-9)

	view, err := svc.RetreatStep(ctx, sessionID)
	require.NoError(t, err)
	require.Equal(t, domain.StepDelivery, view.State.Step)

	_, err = svc.SetStep(ctx, sessionID, 9)
	require.ErrorIs(t, err, ErrCartInvalidInput)
	require.ErrorIs(t, err, ErrInvalidStep)

	view, err = svc.SetStep(ctx, sessionID, domain.StepReview)
	require.NoError(t, err)
	require.Equal(t, domain.StepReview, view.State.Step)
}

func TestCartServiceSaveFailureIsUnavailable(t *testing.T) {
	repo := &failingCartRepository{
		CartRepository: memory.NewCartRepository(),
		saveErr:        repositories.NewUnavailableError("carts.save", errors.New("down")),
	}
	svc := newTestCartService(t, newTestSessions(t, repo), nil)
	sessionID := ulid.Make().String()

	_, err := svc.AddItem(context.Background(), AddCartItemCommand{SessionID: sessionID, Quantity: 1, Product: &coffee})
	require.ErrorIs(t, err, ErrCartUnavailable)

	_, err = repo.GetCart(context.Background(), sessionID)
	var repoErr repositories.RepositoryError
	require.ErrorAs(t, err, &repoErr)
	require.True(t, repoErr.IsNotFound())
}
