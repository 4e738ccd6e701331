package catalog

import (
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/GokhanAsilturk/microservice-restaurant/internal/core/domain"
)

type SeedItem struct {
	Name     string  `yaml:"name"`
	Price    float64 `yaml:"price"`
	Quantity int     `yaml:"quantity"`
}

type Seed struct {
	Items []SeedItem `yaml:"items"`
}

type ItemCreator interface {
	List(ctx context.Context) ([]domain.Item, error)
	Create(ctx context.Context, candidate domain.Item) (*domain.Item, error)
}

func DefaultSeed() Seed {
	return Seed{Items: []SeedItem{
		{Name: "Hamburger", Price: 50, Quantity: 20},
		{Name: "Pizza", Price: 70, Quantity: 15},
		{Name: "Lahmacun", Price: 30, Quantity: 25},
		{Name: "Cola", Price: 10, Quantity: 50},
		{Name: "Ayran", Price: 8, Quantity: 40},
	}}
}

func DecodeSeed(r io.Reader) (Seed, error) {
	var seed Seed
	if err := yaml.NewDecoder(r).Decode(&seed); err != nil {
		return Seed{}, errors.Wrap(err, "decode seed")
	}
	return seed, nil
}

func LoadSeedFile(path string) (Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return Seed{}, errors.Wrap(err, "open seed file")
	}
	defer f.Close()
	return DecodeSeed(f)
}

// Apply creates the seed items when the catalog is empty and reports how
// many were created.
func Apply(ctx context.Context, items ItemCreator, seed Seed) (int, error) {
	existing, err := items.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		log.Info().Int("count", len(existing)).Msg("catalog already populated, seed skipped")
		return 0, nil
	}

	for i, s := range seed.Items {
		_, err := items.Create(ctx, domain.Item{
			Name:       s.Name,
			PriceCents: domain.CentsFromPrice(s.Price),
			Quantity:   s.Quantity,
		})
		if err != nil {
			return i, errors.Wrapf(err, "seed item %q", s.Name)
		}
	}

	log.Info().Int("count", len(seed.Items)).Msg("catalog seeded")
	return len(seed.Items), nil
}
