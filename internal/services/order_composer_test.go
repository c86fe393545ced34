package services

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	domain "github.com/menuboard/api/internal/domain"
)

func newTestComposer(t *testing.T) *OrderComposer {
	t.Helper()
	composer, err := NewOrderComposer(OrderComposerConfig{
		StoreName:      "Menu Board",
		CurrencyLabel:  "CUP",
		Locale:         language.English,
		HandoffBaseURL: "https://wa.me/",
		Phone:          "55904070",
	})
	require.NoError(t, err)
	return composer
}

func completeDraft() OrderDraft {
	return OrderDraft{
		CustomerName:    "Ana",
		Phone:           "5550000",
		Zone:            &DeliveryZone{ID: "zone-1", Name: "Centro", Distance: "0-2 km", Fee: 50, Tier: 1},
		SpecificAddress: "Calle 1 #2",
		Timing:          DeliveryTiming{Mode: domain.DeliveryImmediate},
	}
}

func TestOrderComposerComposeEndToEnd(t *testing.T) {
	store := NewCartStore()
	store.AddToCart(coffee, 2, Selection{AddOns: map[int64]int{9: 1}, AddOnCatalog: shotCatalog})

	summary := newTestComposer(t).Compose(store.State(), completeDraft())

	require.InDelta(t, 220.0, summary.Subtotal, 1e-9)
	require.InDelta(t, 50.0, summary.DeliveryFee, 1e-9)
	require.InDelta(t, 270.0, summary.Total, 1e-9)
	require.Equal(t, 2, summary.ItemCount)

	want := strings.Join([]string{
		"🛒 *NEW ORDER - MENU BOARD*",
		"",
		"👤 *Customer:* Ana",
		"📞 *Phone:* 5550000",
		"",
		"📦 *Items:*",
		"• Coffee + Add-ons: Extra shot: 1 x2 - $220.00 CUP",
		"",
		"📍 *Delivery:*",
		"• Zone: Centro (0-2 km)",
		"• Address: Calle 1 #2",
		"• Time: As soon as possible (30-60 min)",
		"",
		"💰 *Summary:*",
		"• Subtotal: $220.00 CUP",
		"• Delivery: $50.00 CUP",
		"• *Total: $270.00 CUP*",
		"",
	}, "\n")
	require.Equal(t, want, summary.Text)
}

func TestOrderComposerHandoffURLEncodesMessage(t *testing.T) {
	store := NewCartStore()
	store.AddToCart(coffee, 1, Selection{})

	summary := newTestComposer(t).Compose(store.State(), completeDraft())

	prefix := "https://wa.me/55904070?text="
	require.True(t, strings.HasPrefix(summary.HandoffURL, prefix))
	encoded := strings.TrimPrefix(summary.HandoffURL, prefix)
	require.NotContains(t, encoded, " ")
	require.NotContains(t, encoded, "+")
	require.Contains(t, encoded, "%20")

	decoded, err := url.QueryUnescape(encoded)
	require.NoError(t, err)
	require.Equal(t, summary.Text, decoded)
}

func TestOrderComposerRendersParametersAddOnsAndExtras(t *testing.T) {
	store := NewCartStore()
	store.AddToCart(latte, 3, Selection{
		Parameters:          map[string]int{"Small": 1, "Large": 2},
		AddOns:              map[int64]int{42: 1, 9: 2},
		AddOnCatalog:        shotCatalog,
		ExtraChargesPerUnit: 5,
	})

	draft := completeDraft()
	draft.Timing = DeliveryTiming{Mode: domain.DeliveryScheduled, Time: "13:30"}
	summary := newTestComposer(t).Compose(store.State(), draft)

	// 150*3 + 20*2 + 5*3; the unknown add-on is priced at zero
	require.Contains(t, summary.Text, "• Latte (Large: 2, Small: 1) + Add-ons: Extra shot: 2, Add-on 42: 1 + Extra charges x3 - $505.00 CUP")
	require.Contains(t, summary.Text, "• Time: Scheduled for 1:30 PM")
}

func TestOrderComposerWithoutZone(t *testing.T) {
	draft := completeDraft()
	draft.Zone = nil
	summary := newTestComposer(t).Compose(CartState{Step: domain.StepReview}, draft)

	require.Contains(t, summary.Text, "• Zone: not selected")
	require.Zero(t, summary.DeliveryFee)
	require.Zero(t, summary.Total)
}

func TestOrderComposerSanitizesCustomerText(t *testing.T) {
	draft := completeDraft()
	draft.CustomerName = "<b>Ana</b>  Pérez\n"
	draft.SpecificAddress = "Calle <i>5</i> & 6"

	summary := newTestComposer(t).Compose(CartState{}, draft)

	require.Contains(t, summary.Text, "👤 *Customer:* Ana Pérez\n")
	require.Contains(t, summary.Text, "• Address: Calle 5 & 6\n")
}

func TestOrderComposerSanitizesItemNames(t *testing.T) {
	store := NewCartStore()
	store.AddToCart(Product{ID: 8, Name: "<script>x</script>Flan\n<b>casero</b>", Price: 40}, 1, Selection{})

	summary := newTestComposer(t).Compose(store.State(), completeDraft())

	require.Contains(t, summary.Text, "• Flan casero x1 - $40.00 CUP\n")
	require.NotContains(t, summary.Text, "<")
}

func TestOrderComposerZoneWithoutDistance(t *testing.T) {
	draft := completeDraft()
	draft.Zone = &DeliveryZone{ID: "reina", Name: "Reina", Fee: 200, Tier: 2}

	summary := newTestComposer(t).Compose(CartState{}, draft)

	require.Contains(t, summary.Text, "• Zone: Reina\n")
	require.InDelta(t, 200.0, summary.DeliveryFee, 1e-9)
}

func TestNewOrderComposerValidatesTarget(t *testing.T) {
	_, err := NewOrderComposer(OrderComposerConfig{HandoffBaseURL: "wa.me", Phone: "1"})
	require.Error(t, err)

	_, err = NewOrderComposer(OrderComposerConfig{HandoffBaseURL: "https://wa.me", Phone: " "})
	require.Error(t, err)
}

func TestValidateDraftListsMissingFields(t *testing.T) {
	require.Empty(t, ValidateDraft(completeDraft()))
	require.Equal(t,
		[]string{DraftFieldCustomerName, DraftFieldPhone, DraftFieldZone, DraftFieldAddress},
		ValidateDraft(OrderDraft{CustomerName: "  "}),
	)
}

func TestAddOnLabelFallsBackToID(t *testing.T) {
	require.Equal(t, "Extra shot", AddOnLabel(9, shotCatalog))
	require.Equal(t, "Add-on 3", AddOnLabel(3, shotCatalog))
	require.Equal(t, "Add-on 3", AddOnLabel(3, nil))
}
