package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/GokhanAsilturk/microservice-restaurant/internal/core/domain"
	"github.com/GokhanAsilturk/microservice-restaurant/internal/port"
)

// ItemService validates catalog mutations before handing them to the store.
type ItemService struct {
	items port.ItemRepository
}

func NewItemService(items port.ItemRepository) *ItemService {
	return &ItemService{items: items}
}

func (s *ItemService) List(ctx context.Context) ([]domain.Item, error) {
	items, err := s.items.List(ctx)
	if err != nil {
		return nil, err
	}
	log.Debug().Int("count", len(items)).Msg("items listed")
	return items, nil
}

func (s *ItemService) Get(ctx context.Context, id int64) (*domain.Item, error) {
	return s.items.Get(ctx, id)
}

func (s *ItemService) Exists(ctx context.Context, id int64) (bool, error) {
	return s.items.Exists(ctx, id)
}

func (s *ItemService) Create(ctx context.Context, candidate domain.Item) (*domain.Item, error) {
	candidate.ID = 0
	candidate.Normalize()
	if err := candidate.Validate(); err != nil {
		return nil, err
	}

	item, err := s.items.Create(ctx, candidate)
	if err != nil {
		return nil, nameClash(err)
	}

	log.Info().Int64("item_id", item.ID).Str("name", item.Name).Msg("item created")
	return item, nil
}

// Replace overwrites the record at id. A candidate carrying a different
// non-zero id is rejected.
func (s *ItemService) Replace(ctx context.Context, id int64, candidate domain.Item) (*domain.Item, error) {
	if candidate.ID != 0 && candidate.ID != id {
		return nil, domain.NewValidationError("id", "cannot be changed")
	}
	candidate.ID = id
	candidate.Normalize()
	if err := candidate.Validate(); err != nil {
		return nil, err
	}

	item, err := s.items.Replace(ctx, id, candidate)
	if err != nil {
		return nil, nameClash(err)
	}

	log.Info().Int64("item_id", item.ID).Msg("item replaced")
	return item, nil
}

func (s *ItemService) Delete(ctx context.Context, id int64) error {
	if err := s.items.Delete(ctx, id); err != nil {
		return err
	}
	log.Info().Int64("item_id", id).Msg("item deleted")
	return nil
}

func nameClash(err error) error {
	if errors.Is(err, domain.ErrDuplicateName) {
		return domain.NewValidationError("name", "already exists")
	}
	return err
}
