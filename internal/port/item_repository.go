package port

import (
	"context"

	"github.com/GokhanAsilturk/microservice-restaurant/internal/core/domain"
)

type ItemRepository interface {
	// Get returns domain.ErrNotFound when the item does not exist
	Get(ctx context.Context, id int64) (*domain.Item, error)

	Exists(ctx context.Context, id int64) (bool, error)

	// List returns every item ordered by id
	List(ctx context.Context) ([]domain.Item, error)

	// Create assigns a fresh id; returns domain.ErrDuplicateName on a name clash
	Create(ctx context.Context, item domain.Item) (*domain.Item, error)

	// Replace overwrites name, price and quantity of an existing item
	Replace(ctx context.Context, id int64, item domain.Item) (*domain.Item, error)

	Delete(ctx context.Context, id int64) error

	// CompareAndSetQuantity writes newQuantity only if the stored quantity still equals
	// expected, returns false on mismatch or when the item is gone
	CompareAndSetQuantity(ctx context.Context, id int64, expected, newQuantity int) (bool, error)
}
