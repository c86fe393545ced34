package services

import (
	"errors"
	"fmt"
	"html"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	domain "github.com/menuboard/api/internal/domain"
)

const immediateDeliveryText = "As soon as possible (30-60 min)"

// Draft fields required before an order can be confirmed.
const (
	DraftFieldCustomerName = "customerName"
	DraftFieldPhone        = "phone"
	DraftFieldZone         = "zone"
	DraftFieldAddress      = "specificAddress"
)

// OrderComposerConfig configures message rendering and the hand-off link.
type OrderComposerConfig struct {
	StoreName      string
	CurrencyLabel  string
	Locale         language.Tag
	HandoffBaseURL string
	Phone          string
}

// OrderComposer renders a cart and draft into the order message. It performs no I/O.
type OrderComposer struct {
	storeName string
	currency  string
	linkBase  string
	phone     string
	printer   *message.Printer
	policy    *bluemonday.Policy
}

// NewOrderComposer validates the hand-off target and builds a composer.
func NewOrderComposer(cfg OrderComposerConfig) (*OrderComposer, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.HandoffBaseURL), "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("order composer: invalid hand-off base url %q", cfg.HandoffBaseURL)
	}
	phone := strings.TrimSpace(cfg.Phone)
	if phone == "" {
		return nil, errors.New("order composer: hand-off phone is required")
	}
	locale := cfg.Locale
	if locale == language.Und {
		locale = language.English
	}
	name := strings.TrimSpace(cfg.StoreName)
	if name == "" {
		name = "Menu"
	}
	return &OrderComposer{
		storeName: name,
		currency:  strings.TrimSpace(cfg.CurrencyLabel),
		linkBase:  base + "/" + url.PathEscape(phone),
		phone:     phone,
		printer:   message.NewPrinter(locale),
		policy:    bluemonday.StrictPolicy(),
	}, nil
}

// Destination is the phone number orders are sent to.
func (c *OrderComposer) Destination() string { return c.phone }

// Compose renders the order message, its totals and the hand-off link.
func (c *OrderComposer) Compose(state CartState, draft OrderDraft) OrderSummary {
	subtotal := domain.CartSubtotal(state.Items)
	var fee float64
	if draft.Zone != nil {
		fee = draft.Zone.Fee
	}
	total := domain.OrderTotal(subtotal, fee)

	itemCount := 0
	lines := make([]string, 0, len(state.Items))
	for _, item := range state.Items {
		lines = append(lines, c.renderLine(item))
		itemCount += item.Quantity
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🛒 *NEW ORDER - %s*\n\n", strings.ToUpper(c.storeName))
	fmt.Fprintf(&b, "👤 *Customer:* %s\n", c.SanitizeText(draft.CustomerName))
	fmt.Fprintf(&b, "📞 *Phone:* %s\n\n", c.SanitizeText(draft.Phone))
	b.WriteString("📦 *Items:*\n")
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n\n📍 *Delivery:*\n")
	switch {
	case draft.Zone != nil && draft.Zone.Distance != "":
		fmt.Fprintf(&b, "• Zone: %s (%s)\n", draft.Zone.Name, draft.Zone.Distance)
	case draft.Zone != nil:
		fmt.Fprintf(&b, "• Zone: %s\n", draft.Zone.Name)
	default:
		b.WriteString("• Zone: not selected\n")
	}
	fmt.Fprintf(&b, "• Address: %s\n", c.SanitizeText(draft.SpecificAddress))
	fmt.Fprintf(&b, "• Time: %s\n\n", DeliveryTimingText(draft.Timing))
	b.WriteString("💰 *Summary:*\n")
	fmt.Fprintf(&b, "• Subtotal: %s\n", c.FormatAmount(subtotal))
	fmt.Fprintf(&b, "• Delivery: %s\n", c.FormatAmount(fee))
	fmt.Fprintf(&b, "• *Total: %s*\n", c.FormatAmount(total))

	text := b.String()
	return OrderSummary{
		Text:        text,
		Subtotal:    subtotal,
		DeliveryFee: fee,
		Total:       total,
		HandoffURL:  c.HandoffURL(text),
		ItemCount:   itemCount,
	}
}

func (c *OrderComposer) renderLine(item LineItem) string {
	var b strings.Builder
	b.WriteString("• ")
	b.WriteString(c.SanitizeText(item.Name))

	if names := sortedParameterNames(item.SelectedParameters); len(names) > 0 {
		parts := make([]string, 0, len(names))
		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s: %d", name, item.SelectedParameters[name]))
		}
		fmt.Fprintf(&b, " (%s)", strings.Join(parts, ", "))
	}

	if ids := sortedAddOnIDs(item.SelectedAddOns); len(ids) > 0 {
		parts := make([]string, 0, len(ids))
		for _, id := range ids {
			parts = append(parts, fmt.Sprintf("%s: %d", AddOnLabel(id, item.AddOnCatalog), item.SelectedAddOns[id]))
		}
		fmt.Fprintf(&b, " + Add-ons: %s", strings.Join(parts, ", "))
	}

	if item.ExtraChargesPerUnit > 0 {
		b.WriteString(" + Extra charges")
	}

	fmt.Fprintf(&b, " x%d - %s", item.Quantity, c.FormatAmount(domain.LineItemTotal(item)))
	return b.String()
}

// FormatAmount renders money with two decimals in the configured locale, e.g. "$220.00 CUP".
func (c *OrderComposer) FormatAmount(amount float64) string {
	formatted := c.printer.Sprintf("$%.2f", amount)
	if c.currency == "" {
		return formatted
	}
	return formatted + " " + c.currency
}

// HandoffURL builds "<base>/<phone>?text=<message>" with the message percent-encoded
// and spaces as %20.
func (c *OrderComposer) HandoffURL(text string) string {
	return c.linkBase + "?text=" + EncodeURIComponent(text)
}

// SanitizeText strips markup and control characters from customer-supplied text.
func (c *OrderComposer) SanitizeText(value string) string {
	cleaned := html.UnescapeString(c.policy.Sanitize(value))
	cleaned = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, cleaned)
	return strings.Join(strings.Fields(cleaned), " ")
}

// EncodeURIComponent percent-encodes a query value, using %20 for spaces.
func EncodeURIComponent(value string) string {
	return strings.ReplaceAll(url.QueryEscape(value), "+", "%20")
}

// AddOnLabel names an add-on from the line's catalog, or "Add-on <id>" when absent.
func AddOnLabel(id int64, catalog AddOnCatalog) string {
	if info, ok := catalog[id]; ok && strings.TrimSpace(info.Name) != "" {
		return info.Name
	}
	return "Add-on " + strconv.FormatInt(id, 10)
}

// DeliveryTimingText renders the delivery timing for the order message.
func DeliveryTimingText(timing DeliveryTiming) string {
	if timing.Mode == domain.DeliveryScheduled && strings.TrimSpace(timing.Time) != "" {
		return "Scheduled for " + FormatTime12h(timing.Time)
	}
	return immediateDeliveryText
}

// ValidateDraft lists the required draft fields that are still empty.
func ValidateDraft(draft OrderDraft) []string {
	var missing []string
	if strings.TrimSpace(draft.CustomerName) == "" {
		missing = append(missing, DraftFieldCustomerName)
	}
	if strings.TrimSpace(draft.Phone) == "" {
		missing = append(missing, DraftFieldPhone)
	}
	if draft.Zone == nil || strings.TrimSpace(draft.Zone.ID) == "" {
		missing = append(missing, DraftFieldZone)
	}
	if strings.TrimSpace(draft.SpecificAddress) == "" {
		missing = append(missing, DraftFieldAddress)
	}
	return missing
}

func sortedParameterNames(params map[string]int) []string {
	names := make([]string, 0, len(params))
	for name, qty := range params {
		if qty > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func sortedAddOnIDs(addOns map[int64]int) []int64 {
	ids := make([]int64, 0, len(addOns))
	for id, qty := range addOns {
		if qty > 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
