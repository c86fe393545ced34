package handlers

import (
	"sort"

	"github.com/menuboard/api/internal/services"
)

type cartResponse struct {
	Cart cartPayload `json:"cart"`
}

type cartPayload struct {
	SessionID   string            `json:"sessionId"`
	IsOpen      bool              `json:"isOpen"`
	Step        int               `json:"step"`
	ItemCount   int               `json:"itemCount"`
	Items       []cartItemPayload `json:"items"`
	Currency    string            `json:"currency,omitempty"`
	Subtotal    float64           `json:"subtotal"`
	DeliveryFee float64           `json:"deliveryFee"`
	Total       float64           `json:"total"`
}

type cartItemPayload struct {
	Key                 string           `json:"key"`
	ProductID           int64            `json:"productId"`
	Name                string           `json:"name"`
	ImageURL            string           `json:"imageUrl,omitempty"`
	Quantity            int              `json:"quantity"`
	UnitBasePrice       float64          `json:"unitBasePrice"`
	Parameters          map[string]int   `json:"parameters,omitempty"`
	AddOns              []addOnPayload   `json:"addOns,omitempty"`
	ExtraChargesPerUnit float64          `json:"extraChargesPerUnit"`
	Pricing             linePricePayload `json:"pricing"`
}

type addOnPayload struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name,omitempty"`
	UnitPrice float64 `json:"unitPrice"`
	Quantity  int     `json:"quantity"`
}

type linePricePayload struct {
	Base         float64 `json:"base"`
	AddOns       float64 `json:"addOns"`
	ExtraCharges float64 `json:"extraCharges"`
	Total        float64 `json:"total"`
}

func buildCartPayload(view services.CartView) cartPayload {
	payload := cartPayload{
		SessionID:   view.SessionID,
		IsOpen:      view.State.IsOpen,
		Step:        int(view.State.Step),
		ItemCount:   view.ItemCount,
		Items:       make([]cartItemPayload, 0, len(view.State.Items)),
		Currency:    view.Pricing.Currency,
		Subtotal:    view.Pricing.Subtotal,
		DeliveryFee: view.Pricing.DeliveryFee,
		Total:       view.Pricing.Total,
	}
	for i, item := range view.State.Items {
		entry := cartItemPayload{
			Key:                 services.LineItemKey(item.ProductID, item.SelectedParameters),
			ProductID:           item.ProductID,
			Name:                item.Name,
			ImageURL:            item.ImageURL,
			Quantity:            item.Quantity,
			UnitBasePrice:       item.UnitBasePrice,
			Parameters:          services.NormalizeParameters(item.SelectedParameters),
			AddOns:              buildAddOnPayloads(item),
			ExtraChargesPerUnit: item.ExtraChargesPerUnit,
		}
		if i < len(view.Pricing.Items) {
			line := view.Pricing.Items[i]
			entry.Pricing = linePricePayload{
				Base:         line.Base,
				AddOns:       line.AddOns,
				ExtraCharges: line.ExtraCharges,
				Total:        line.Total,
			}
		}
		payload.Items = append(payload.Items, entry)
	}
	return payload
}

func buildAddOnPayloads(item services.LineItem) []addOnPayload {
	if len(item.SelectedAddOns) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(item.SelectedAddOns))
	for id, qty := range item.SelectedAddOns {
		if qty > 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]addOnPayload, 0, len(ids))
	for _, id := range ids {
		info := item.AddOnCatalog[id]
		out = append(out, addOnPayload{
			ID:        id,
			Name:      info.Name,
			UnitPrice: info.UnitPrice,
			Quantity:  item.SelectedAddOns[id],
		})
	}
	return out
}

type productPayload struct {
	ID              int64              `json:"id"`
	Name            string             `json:"name"`
	Price           float64            `json:"price"`
	ImageURL        string             `json:"imageUrl,omitempty"`
	Section         string             `json:"section,omitempty"`
	Stock           int                `json:"stock"`
	HasParameters   bool               `json:"hasParameters"`
	HasAddOns       bool               `json:"hasAddOns"`
	HasExtraCharges bool               `json:"hasExtraCharges"`
	Parameters      []parameterPayload `json:"parameters,omitempty"`
}

type parameterPayload struct {
	Name              string `json:"name"`
	AvailableQuantity int    `json:"availableQuantity"`
}

type pricedOptionPayload struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type productDetailPayload struct {
	Product      productPayload        `json:"product"`
	AddOns       []pricedOptionPayload `json:"addOns"`
	ExtraCharges []pricedOptionPayload `json:"extraCharges"`
}

func buildProductPayload(p services.Product) productPayload {
	payload := productPayload{
		ID:              p.ID,
		Name:            p.Name,
		Price:           p.Price,
		ImageURL:        p.ImageURL,
		Section:         p.Section,
		Stock:           p.Stock,
		HasParameters:   p.HasParameters,
		HasAddOns:       p.HasAddOns,
		HasExtraCharges: p.HasExtraCharges,
	}
	for _, param := range p.Parameters {
		payload.Parameters = append(payload.Parameters, parameterPayload{
			Name:              param.Name,
			AvailableQuantity: param.AvailableQuantity,
		})
	}
	return payload
}

func buildProductDetailPayload(detail services.ProductDetail) productDetailPayload {
	payload := productDetailPayload{
		Product:      buildProductPayload(detail.Product),
		AddOns:       make([]pricedOptionPayload, 0, len(detail.AddOns)),
		ExtraCharges: make([]pricedOptionPayload, 0, len(detail.ExtraCharges)),
	}
	for _, a := range detail.AddOns {
		payload.AddOns = append(payload.AddOns, pricedOptionPayload{ID: a.ID, Name: a.Name, Price: a.Price})
	}
	for _, c := range detail.ExtraCharges {
		payload.ExtraCharges = append(payload.ExtraCharges, pricedOptionPayload{ID: c.ID, Name: c.Name, Price: c.Price})
	}
	return payload
}

type zonePayload struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Distance string  `json:"distance"`
	Fee      float64 `json:"fee"`
	Tier     int     `json:"tier"`
	TierName string  `json:"tierName,omitempty"`
}

func buildZonePayload(z services.DeliveryZone) zonePayload {
	return zonePayload{
		ID:       z.ID,
		Name:     z.Name,
		Distance: z.Distance,
		Fee:      z.Fee,
		Tier:     z.Tier,
		TierName: z.TierName,
	}
}

type timingPayload struct {
	Mode string `json:"mode"`
	Time string `json:"time,omitempty"`
}

type draftPayload struct {
	SessionID       string        `json:"sessionId"`
	CustomerName    string        `json:"customerName"`
	Phone           string        `json:"phone"`
	Zone            *zonePayload  `json:"zone,omitempty"`
	SpecificAddress string        `json:"specificAddress"`
	Timing          timingPayload `json:"timing"`
	Missing         []string      `json:"missing"`
	Complete        bool          `json:"complete"`
}

func buildDraftPayload(view services.DraftView) draftPayload {
	payload := draftPayload{
		SessionID:       view.SessionID,
		CustomerName:    view.Draft.CustomerName,
		Phone:           view.Draft.Phone,
		SpecificAddress: view.Draft.SpecificAddress,
		Timing: timingPayload{
			Mode: string(view.Draft.Timing.Mode),
			Time: view.Draft.Timing.Time,
		},
		Missing:  append([]string{}, view.Missing...),
		Complete: len(view.Missing) == 0,
	}
	if view.Draft.Zone != nil {
		zone := buildZonePayload(*view.Draft.Zone)
		payload.Zone = &zone
	}
	return payload
}

type summaryPayload struct {
	Text        string  `json:"text"`
	Subtotal    float64 `json:"subtotal"`
	DeliveryFee float64 `json:"deliveryFee"`
	Total       float64 `json:"total"`
	ItemCount   int     `json:"itemCount"`
	HandoffURL  string  `json:"handoffUrl"`
}

func buildSummaryPayload(s services.OrderSummary) summaryPayload {
	return summaryPayload{
		Text:        s.Text,
		Subtotal:    s.Subtotal,
		DeliveryFee: s.DeliveryFee,
		Total:       s.Total,
		ItemCount:   s.ItemCount,
		HandoffURL:  s.HandoffURL,
	}
}
