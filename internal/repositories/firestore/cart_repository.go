// Package firestore persists session carts as Firestore documents.
package firestore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	domain "github.com/menuboard/api/internal/domain"
	pfirestore "github.com/menuboard/api/internal/platform/firestore"
	"github.com/menuboard/api/internal/repositories"
)

const defaultCartCollection = "menu_carts"

// CartRepository stores one document per session. Documents carry an expireAt
// field so a Firestore TTL policy can remove abandoned carts.
type CartRepository struct {
	docs *pfirestore.Collection[cartDocument]
	ttl  time.Duration
	now  func() time.Time
}

// NewCartRepository binds the repository to a collection. ttl <= 0 disables expiry.
func NewCartRepository(provider *pfirestore.Provider, collection string, ttl time.Duration) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository: firestore provider is required")
	}
	if strings.TrimSpace(collection) == "" {
		collection = defaultCartCollection
	}
	return &CartRepository{
		docs: pfirestore.NewCollection[cartDocument](provider, collection),
		ttl:  ttl,
		now:  time.Now,
	}, nil
}

// GetCart loads a session snapshot. Expired documents read as not found even
// before the TTL policy deletes them.
func (r *CartRepository) GetCart(ctx context.Context, sessionID string) (domain.CartSnapshot, error) {
	doc, err := r.docs.Get(ctx, sessionID)
	if err != nil {
		return domain.CartSnapshot{}, err
	}
	if !doc.Data.ExpireAt.IsZero() && !r.now().Before(doc.Data.ExpireAt) {
		return domain.CartSnapshot{}, repositories.NewNotFoundError("carts.get", errors.New("cart expired"))
	}
	snapshot := decodeCart(doc.Data)
	snapshot.SessionID = doc.ID
	return snapshot, nil
}

// SaveCart overwrites the session document.
func (r *CartRepository) SaveCart(ctx context.Context, snapshot domain.CartSnapshot) error {
	if strings.TrimSpace(snapshot.SessionID) == "" {
		return errors.New("cart repository: session id is required")
	}
	doc := encodeCart(snapshot)
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = r.now().UTC()
	}
	if r.ttl > 0 {
		doc.ExpireAt = doc.UpdatedAt.Add(r.ttl)
	}
	return r.docs.Set(ctx, snapshot.SessionID, doc)
}

// DeleteCart removes the session document.
func (r *CartRepository) DeleteCart(ctx context.Context, sessionID string) error {
	return r.docs.Delete(ctx, sessionID)
}

var _ repositories.CartRepository = (*CartRepository)(nil)

// Firestore map keys must be strings, so selections are stored as lists.
type cartDocument struct {
	Items     []lineDocument `firestore:"items"`
	IsOpen    bool           `firestore:"isOpen"`
	Step      int            `firestore:"step"`
	Draft     draftDocument  `firestore:"draft"`
	UpdatedAt time.Time      `firestore:"updatedAt"`
	ExpireAt  time.Time      `firestore:"expireAt,omitempty"`
}

type lineDocument struct {
	ProductID           int64               `firestore:"productId"`
	Name                string              `firestore:"name"`
	UnitBasePrice       float64             `firestore:"unitBasePrice"`
	ImageURL            string              `firestore:"imageUrl,omitempty"`
	Quantity            int                 `firestore:"quantity"`
	Parameters          []parameterDocument `firestore:"parameters,omitempty"`
	AddOns              []addOnDocument     `firestore:"addOns,omitempty"`
	ExtraChargesPerUnit float64             `firestore:"extraChargesPerUnit"`
}

type parameterDocument struct {
	Name     string `firestore:"name"`
	Quantity int    `firestore:"quantity"`
}

// addOnDocument covers both the selection and the catalog entry; Quantity is zero
// for catalog entries that were not selected.
type addOnDocument struct {
	ID        int64   `firestore:"id"`
	Name      string  `firestore:"name,omitempty"`
	UnitPrice float64 `firestore:"unitPrice"`
	InCatalog bool    `firestore:"inCatalog"`
	Quantity  int     `firestore:"quantity"`
}

type draftDocument struct {
	CustomerName    string        `firestore:"customerName,omitempty"`
	Phone           string        `firestore:"phone,omitempty"`
	Zone            *zoneDocument `firestore:"zone,omitempty"`
	SpecificAddress string        `firestore:"specificAddress,omitempty"`
	TimingMode      string        `firestore:"timingMode,omitempty"`
	TimingTime      string        `firestore:"timingTime,omitempty"`
}

type zoneDocument struct {
	ID       string  `firestore:"id"`
	Name     string  `firestore:"name"`
	Distance string  `firestore:"distance"`
	Fee      float64 `firestore:"fee"`
	Tier     int     `firestore:"tier"`
	TierName string  `firestore:"tierName,omitempty"`
}

func encodeCart(s domain.CartSnapshot) cartDocument {
	doc := cartDocument{
		Items:     make([]lineDocument, 0, len(s.State.Items)),
		IsOpen:    s.State.IsOpen,
		Step:      int(s.State.Step),
		UpdatedAt: s.UpdatedAt.UTC(),
		Draft: draftDocument{
			CustomerName:    s.Draft.CustomerName,
			Phone:           s.Draft.Phone,
			SpecificAddress: s.Draft.SpecificAddress,
			TimingMode:      string(s.Draft.Timing.Mode),
			TimingTime:      s.Draft.Timing.Time,
		},
	}
	if z := s.Draft.Zone; z != nil {
		doc.Draft.Zone = &zoneDocument{ID: z.ID, Name: z.Name, Distance: z.Distance, Fee: z.Fee, Tier: z.Tier, TierName: z.TierName}
	}
	for _, item := range s.State.Items {
		doc.Items = append(doc.Items, encodeLine(item))
	}
	return doc
}

func encodeLine(item domain.LineItem) lineDocument {
	line := lineDocument{
		ProductID:           item.ProductID,
		Name:                item.Name,
		UnitBasePrice:       item.UnitBasePrice,
		ImageURL:            item.ImageURL,
		Quantity:            item.Quantity,
		ExtraChargesPerUnit: item.ExtraChargesPerUnit,
	}
	for name, qty := range item.SelectedParameters {
		line.Parameters = append(line.Parameters, parameterDocument{Name: name, Quantity: qty})
	}
	sort.Slice(line.Parameters, func(i, j int) bool { return line.Parameters[i].Name < line.Parameters[j].Name })

	ids := make(map[int64]struct{}, len(item.AddOnCatalog)+len(item.SelectedAddOns))
	for id := range item.AddOnCatalog {
		ids[id] = struct{}{}
	}
	for id := range item.SelectedAddOns {
		ids[id] = struct{}{}
	}
	for id := range ids {
		info, inCatalog := item.AddOnCatalog[id]
		line.AddOns = append(line.AddOns, addOnDocument{
			ID:        id,
			Name:      info.Name,
			UnitPrice: info.UnitPrice,
			InCatalog: inCatalog,
			Quantity:  item.SelectedAddOns[id],
		})
	}
	sort.Slice(line.AddOns, func(i, j int) bool { return line.AddOns[i].ID < line.AddOns[j].ID })
	return line
}

func decodeCart(doc cartDocument) domain.CartSnapshot {
	s := domain.CartSnapshot{
		State: domain.CartState{
			Items:  make([]domain.LineItem, 0, len(doc.Items)),
			IsOpen: doc.IsOpen,
			Step:   domain.CheckoutStep(doc.Step),
		},
		Draft: domain.OrderDraft{
			CustomerName:    doc.Draft.CustomerName,
			Phone:           doc.Draft.Phone,
			SpecificAddress: doc.Draft.SpecificAddress,
			Timing: domain.DeliveryTiming{
				Mode: domain.DeliveryMode(doc.Draft.TimingMode),
				Time: doc.Draft.TimingTime,
			},
		},
		UpdatedAt: doc.UpdatedAt,
	}
	if z := doc.Draft.Zone; z != nil {
		s.Draft.Zone = &domain.DeliveryZone{ID: z.ID, Name: z.Name, Distance: z.Distance, Fee: z.Fee, Tier: z.Tier, TierName: z.TierName}
	}
	for _, line := range doc.Items {
		s.State.Items = append(s.State.Items, decodeLine(line))
	}
	return s
}

func decodeLine(line lineDocument) domain.LineItem {
	item := domain.LineItem{
		ProductID:           line.ProductID,
		Name:                line.Name,
		UnitBasePrice:       line.UnitBasePrice,
		ImageURL:            line.ImageURL,
		Quantity:            line.Quantity,
		ExtraChargesPerUnit: line.ExtraChargesPerUnit,
	}
	for _, p := range line.Parameters {
		if item.SelectedParameters == nil {
			item.SelectedParameters = make(map[string]int, len(line.Parameters))
		}
		item.SelectedParameters[p.Name] = p.Quantity
	}
	for _, a := range line.AddOns {
		if a.Quantity != 0 {
			if item.SelectedAddOns == nil {
				item.SelectedAddOns = make(map[int64]int)
			}
			item.SelectedAddOns[a.ID] = a.Quantity
		}
		if a.InCatalog {
			if item.AddOnCatalog == nil {
				item.AddOnCatalog = make(domain.AddOnCatalog)
			}
			item.AddOnCatalog[a.ID] = domain.AddOnInfo{Name: a.Name, UnitPrice: a.UnitPrice}
		}
	}
	return item
}
