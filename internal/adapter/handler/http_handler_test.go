package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GokhanAsilturk/microservice-restaurant/internal/adapter/storage"
	"github.com/GokhanAsilturk/microservice-restaurant/internal/core/domain"
	"github.com/GokhanAsilturk/microservice-restaurant/internal/core/service"
)

type testServer struct {
	store  *storage.MemoryAdapter
	router http.Handler
}

func newTestServer(t *testing.T) *testServer {
	store := storage.NewMemoryAdapter()
	for _, item := range []domain.Item{
		{Name: "Pizza", PriceCents: 7000, Quantity: 10},
		{Name: "Cola", PriceCents: 1000, Quantity: 50},
	} {
		_, err := store.Create(context.Background(), item)
		require.NoError(t, err)
	}

	h := NewHTTPHandler(service.NewItemService(store), service.NewStockEngine(store), storage.NewMemoryIdempotency(time.Hour))
	return &testServer{store: store, router: h.Router(time.Second)}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, headers ...string) (*httptest.ResponseRecorder, map[string]interface{}) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var resp map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	return rec, resp
}

func (s *testServer) quantity(t *testing.T, id int64) int {
	item, err := s.store.Get(context.Background(), id)
	require.NoError(t, err)
	return item.Quantity
}

func TestHTTP_ListAndGet(t *testing.T) {
	srv := newTestServer(t)

	rec, resp := srv.do(t, http.MethodGet, "/api/products", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp["data"], 2)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec, resp = srv.do(t, http.MethodGet, "/api/products/1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "Pizza", data["name"])
	assert.Equal(t, 70.0, data["price"])

	rec, resp = srv.do(t, http.MethodGet, "/api/products/999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeNotFound, resp["error_code"])

	rec, _ = srv.do(t, http.MethodGet, "/api/products/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHTTP_CreateItem(t *testing.T) {
	srv := newTestServer(t)

	rec, resp := srv.do(t, http.MethodPost, "/api/products", map[string]interface{}{
		"name": "Lahmacun", "price": 30.0, "quantity": 25,
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, true, resp["success"])

	rec, resp = srv.do(t, http.MethodPost, "/api/products", map[string]interface{}{
		"name": "Lahmacun", "price": 30.0, "quantity": 25,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "already exists", resp["errors"].(map[string]interface{})["name"])

	rec, resp = srv.do(t, http.MethodPost, "/api/products", map[string]interface{}{
		"name": "X", "price": 1000000.0,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeValidation, resp["error_code"])
	assert.Contains(t, resp["errors"], "quantity")

	rec, resp = srv.do(t, http.MethodPost, "/api/products", map[string]interface{}{
		"name": "X", "price": 1000000.0, "quantity": 1,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	errs := resp["errors"].(map[string]interface{})
	assert.Contains(t, errs, "name")
	assert.Contains(t, errs, "price_cents")
}

func TestHTTP_ReplaceAndDelete(t *testing.T) {
	srv := newTestServer(t)

	rec, resp := srv.do(t, http.MethodPut, "/api/products/1", map[string]interface{}{
		"name": "Pizza Margherita", "price": 80.0, "quantity": 12,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, 1.0, data["id"])
	assert.Equal(t, 12.0, data["quantity"])

	rec, _ = srv.do(t, http.MethodPut, "/api/products/999", map[string]interface{}{
		"name": "Ghost", "price": 1.0, "quantity": 1,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = srv.do(t, http.MethodDelete, "/api/products/2", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = srv.do(t, http.MethodDelete, "/api/products/2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHTTP_AdjustStock(t *testing.T) {
	srv := newTestServer(t)

	rec, _ := srv.do(t, http.MethodPatch, "/api/products/1/stock", StockAdjustRequest{Quantity: 5, Operation: "add"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 15, srv.quantity(t, 1))

	rec, _ = srv.do(t, http.MethodPatch, "/api/products/1/stock", StockAdjustRequest{Quantity: 3, Operation: "REDUCE"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 12, srv.quantity(t, 1))

	rec, resp := srv.do(t, http.MethodPatch, "/api/products/1/stock", StockAdjustRequest{Quantity: 100, Operation: "REDUCE"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeStock, resp["error_code"])

	rec, resp = srv.do(t, http.MethodPatch, "/api/products/1/stock", StockAdjustRequest{Quantity: 1, Operation: "SET"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, resp["errors"], "operation")

	rec, _ = srv.do(t, http.MethodPatch, "/api/products/1/stock", StockAdjustRequest{Quantity: 0, Operation: "ADD"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 12, srv.quantity(t, 1))
}

func TestHTTP_CheckStock(t *testing.T) {
	srv := newTestServer(t)

	rec, resp := srv.do(t, http.MethodPost, "/api/stock/check", StockBatchRequest{
		Items: []domain.StockLine{{ItemID: 1, Quantity: 15}},
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, false, data["ok"])
	assert.Equal(t, 1.0, data["failing_item_id"])
	assert.Contains(t, data["reason"], "insufficient stock")
	assert.Equal(t, 10, srv.quantity(t, 1))

	rec, _ = srv.do(t, http.MethodPost, "/api/stock/check", StockBatchRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHTTP_ReduceStock(t *testing.T) {
	srv := newTestServer(t)

	rec, resp := srv.do(t, http.MethodPost, "/api/stock/reduce", StockBatchRequest{
		Items: []domain.StockLine{{ItemID: 1, Quantity: 7}, {ItemID: 2, Quantity: 10}},
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, 3, srv.quantity(t, 1))
	assert.Equal(t, 40, srv.quantity(t, 2))

	rec, resp = srv.do(t, http.MethodPost, "/api/stock/reduce", StockBatchRequest{
		Items: []domain.StockLine{{ItemID: 2, Quantity: 5}, {ItemID: 999, Quantity: 1}},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 40, srv.quantity(t, 2))

	rec, resp = srv.do(t, http.MethodPost, "/api/stock/reduce", StockBatchRequest{
		Items: []domain.StockLine{{ItemID: 1, Quantity: 4}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeStock, resp["error_code"])
	assert.Contains(t, resp["message"], "Pizza")
}

func TestHTTP_ReduceStock_Idempotency(t *testing.T) {
	srv := newTestServer(t)
	batch := StockBatchRequest{Items: []domain.StockLine{{ItemID: 2, Quantity: 1}}}

	rec, _ := srv.do(t, http.MethodPost, "/api/stock/reduce", batch, "Idempotency-Key", "order-1")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, resp := srv.do(t, http.MethodPost, "/api/stock/reduce", batch, "Idempotency-Key", "order-1")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, CodeDuplicateRequest, resp["error_code"])
	assert.Equal(t, 49, srv.quantity(t, 2))

	// a failed commit frees its key for a retry
	tooMany := StockBatchRequest{Items: []domain.StockLine{{ItemID: 2, Quantity: 100}}}
	rec, _ = srv.do(t, http.MethodPost, "/api/stock/reduce", tooMany, "Idempotency-Key", "order-2")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = srv.do(t, http.MethodPost, "/api/stock/reduce", batch, "Idempotency-Key", "order-2")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 48, srv.quantity(t, 2))
}

func TestHTTP_HealthAndInvalidBody(t *testing.T) {
	srv := newTestServer(t)

	rec, resp := srv.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", resp["status"])

	req := httptest.NewRequest(http.MethodPost, "/api/stock/reduce", bytes.NewBufferString("{"))
	rr := httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestErrorResponse_StorageIsOpaque(t *testing.T) {
	status, resp := errorResponse(domain.ErrStorageUnavailable)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, CodeInternal, resp.ErrorCode)
	assert.Equal(t, "internal error", resp.Message)
}
