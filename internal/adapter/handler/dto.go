package handler

import (
	"time"

	"github.com/GokhanAsilturk/microservice-restaurant/internal/core/domain"
)

type ItemRequest struct {
	Name     *string  `json:"name"`
	Price    *float64 `json:"price"`
	Quantity *int     `json:"quantity"`
}

// toDomain reports missing fields; range checks belong to domain.Item.
func (r ItemRequest) toDomain() (domain.Item, error) {
	missing := map[string]string{}
	if r.Name == nil {
		missing["name"] = "must be supplied"
	}
	if r.Price == nil {
		missing["price"] = "must be supplied"
	}
	if r.Quantity == nil {
		missing["quantity"] = "must be supplied"
	}
	if len(missing) > 0 {
		return domain.Item{}, &domain.ValidationError{Fields: missing}
	}

	return domain.Item{
		Name:       *r.Name,
		PriceCents: domain.CentsFromPrice(*r.Price),
		Quantity:   *r.Quantity,
	}, nil
}

type ItemResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Quantity  int       `json:"quantity"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newItemResponse(item domain.Item) ItemResponse {
	return ItemResponse{
		ID:        item.ID,
		Name:      item.Name,
		Price:     domain.PriceFromCents(item.PriceCents),
		Quantity:  item.Quantity,
		Version:   item.Version,
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
	}
}

type StockAdjustRequest struct {
	Quantity  int    `json:"quantity"`
	Operation string `json:"operation"`
}

type StockBatchRequest struct {
	Items []domain.StockLine `json:"items"`
}

type StockOutcomeResponse struct {
	OK            bool   `json:"ok"`
	FailingItemID *int64 `json:"failing_item_id,omitempty"`
	Reason        string `json:"reason,omitempty"`
	State         string `json:"state"`
}

func newStockOutcomeResponse(o domain.StockOutcome) StockOutcomeResponse {
	return StockOutcomeResponse{
		OK:            o.OK,
		FailingItemID: o.FailingItemID,
		Reason:        o.Reason,
		State:         string(o.State),
	}
}
