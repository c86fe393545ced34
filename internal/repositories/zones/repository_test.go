package zones

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/menuboard/api/internal/repositories"
)

func TestLoadBuiltInTable(t *testing.T) {
	repo, err := Load("")
	require.NoError(t, err)

	zones, err := repo.ListZones(context.Background())
	require.NoError(t, err)
	require.Len(t, zones, 34)
	require.Equal(t, "la-aduana", zones[0].ID)
	require.Equal(t, 100.0, zones[0].Fee)
	require.Equal(t, 1, zones[0].Tier)
	require.Empty(t, zones[0].Distance)

	zone, err := repo.GetZone(context.Background(), " pepe-arriba ")
	require.NoError(t, err)
	require.Equal(t, "Pepe Arriba", zone.Name)
	require.Equal(t, 500.0, zone.Fee)
	require.Equal(t, 5, zone.Tier)
	require.Equal(t, "Zona 500", zone.TierName)
}

func TestGetZoneNotFound(t *testing.T) {
	repo, err := Load("")
	require.NoError(t, err)

	_, err = repo.GetZone(context.Background(), "atlantis")
	var repoErr repositories.RepositoryError
	require.ErrorAs(t, err, &repoErr)
	require.True(t, repoErr.IsNotFound())
}

func TestListZonesReturnsCopy(t *testing.T) {
	repo, err := Load("")
	require.NoError(t, err)

	zones, _ := repo.ListZones(context.Background())
	zones[0].Fee = 0

	again, _ := repo.ListZones(context.Background())
	require.Equal(t, 50.0, again[0].Fee)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zones.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tiers:
  - tier: 1
    name: Near
    zones:
      - {id: a, name: A, distance: "1 km", fee: 10}
`), 0o600))

	repo, err := Load(path)
	require.NoError(t, err)
	zones, _ := repo.ListZones(context.Background())
	require.Len(t, zones, 1)
	require.Equal(t, "Near", zones[0].TierName)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestParseRejectsInvalidTables(t *testing.T) {
	cases := map[string]string{
		"empty":     "tiers: []",
		"duplicate": "tiers:\n  - tier: 1\n    zones:\n      - {id: a, name: A, fee: 1}\n      - {id: a, name: B, fee: 1}\n",
		"negative":  "tiers:\n  - tier: 1\n    zones:\n      - {id: a, name: A, fee: -1}\n",
		"no tier":   "tiers:\n  - zones:\n      - {id: a, name: A, fee: 1}\n",
		"no name":   "tiers:\n  - tier: 1\n    zones:\n      - {id: a, fee: 1}\n",
		"malformed": "tiers: {",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(body))
			require.Error(t, err)
		})
	}
}
