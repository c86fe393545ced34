// Package zones serves the static delivery zone table.
package zones

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	domain "github.com/menuboard/api/internal/domain"
	"github.com/menuboard/api/internal/repositories"
)

//go:embed zones.yaml
var defaultTable []byte

var errZoneNotFound = errors.New("zone not found")

type document struct {
	Tiers []tierDocument `yaml:"tiers"`
}

type tierDocument struct {
	Tier  int            `yaml:"tier"`
	Name  string         `yaml:"name"`
	Zones []zoneDocument `yaml:"zones"`
}

type zoneDocument struct {
	ID       string  `yaml:"id"`
	Name     string  `yaml:"name"`
	Distance string  `yaml:"distance"`
	Fee      float64 `yaml:"fee"`
}

// Repository is an immutable, ordered zone table.
type Repository struct {
	zones []domain.DeliveryZone
	byID  map[string]int
}

// Load reads the table from path, or the built-in table when path is empty.
func Load(path string) (*Repository, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Parse(defaultTable)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("zones: read %s: %w", path, err)
	}
	repo, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("zones: %s: %w", path, err)
	}
	return repo, nil
}

// Parse decodes and validates a YAML zone table.
func Parse(data []byte) (*Repository, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("zones: decode: %w", err)
	}

	repo := &Repository{byID: make(map[string]int)}
	for _, tier := range doc.Tiers {
		if tier.Tier <= 0 {
			return nil, fmt.Errorf("zones: tier %q must have a positive number", tier.Name)
		}
		for _, z := range tier.Zones {
			id := strings.TrimSpace(z.ID)
			name := strings.TrimSpace(z.Name)
			switch {
			case id == "" || name == "":
				return nil, fmt.Errorf("zones: tier %d has a zone without id or name", tier.Tier)
			case z.Fee < 0:
				return nil, fmt.Errorf("zones: zone %s has a negative fee", id)
			}
			if _, dup := repo.byID[id]; dup {
				return nil, fmt.Errorf("zones: duplicate zone id %s", id)
			}
			repo.byID[id] = len(repo.zones)
			repo.zones = append(repo.zones, domain.DeliveryZone{
				ID:       id,
				Name:     name,
				Distance: strings.TrimSpace(z.Distance),
				Fee:      z.Fee,
				Tier:     tier.Tier,
				TierName: strings.TrimSpace(tier.Name),
			})
		}
	}
	if len(repo.zones) == 0 {
		return nil, errors.New("zones: table is empty")
	}
	return repo, nil
}

// ListZones returns the zones in table order.
func (r *Repository) ListZones(context.Context) ([]domain.DeliveryZone, error) {
	out := make([]domain.DeliveryZone, len(r.zones))
	copy(out, r.zones)
	return out, nil
}

// GetZone looks a zone up by id.
func (r *Repository) GetZone(_ context.Context, zoneID string) (domain.DeliveryZone, error) {
	idx, ok := r.byID[strings.TrimSpace(zoneID)]
	if !ok {
		return domain.DeliveryZone{}, repositories.NewNotFoundError("zones.GetZone", fmt.Errorf("%w: %s", errZoneNotFound, zoneID))
	}
	return r.zones[idx], nil
}

var _ repositories.ZoneRepository = (*Repository)(nil)
