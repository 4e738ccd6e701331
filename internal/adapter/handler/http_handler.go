package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/GokhanAsilturk/microservice-restaurant/internal/core/domain"
	"github.com/GokhanAsilturk/microservice-restaurant/internal/core/service"
	"github.com/GokhanAsilturk/microservice-restaurant/internal/port"
)

const idempotencyHeader = "Idempotency-Key"

type HTTPHandler struct {
	items       *service.ItemService
	engine      *service.StockEngine
	idempotency port.IdempotencyRepository
}

// NewHTTPHandler wires the request layer. idempotency may be nil, in which
// case Idempotency-Key headers are ignored.
func NewHTTPHandler(items *service.ItemService, engine *service.StockEngine, idempotency port.IdempotencyRepository) *HTTPHandler {
	return &HTTPHandler{items: items, engine: engine, idempotency: idempotency}
}

func (h *HTTPHandler) Router(requestTimeout time.Duration) *mux.Router {
	r := mux.NewRouter()
	r.Use(RequestID, AccessLog, Timeout(requestTimeout))

	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/products", h.ListItems).Methods(http.MethodGet)
	api.HandleFunc("/products", h.CreateItem).Methods(http.MethodPost)
	api.HandleFunc("/products/{id}", h.GetItem).Methods(http.MethodGet)
	api.HandleFunc("/products/{id}", h.ReplaceItem).Methods(http.MethodPut)
	api.HandleFunc("/products/{id}", h.DeleteItem).Methods(http.MethodDelete)
	api.HandleFunc("/products/{id}/stock", h.AdjustStock).Methods(http.MethodPatch)
	api.HandleFunc("/stock/check", h.CheckStock).Methods(http.MethodPost)
	api.HandleFunc("/stock/reduce", h.ReduceStock).Methods(http.MethodPost)

	return r
}

func (h *HTTPHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.items.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]ItemResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, newItemResponse(item))
	}
	writeJSON(w, http.StatusOK, success(resp, "items fetched"))
}

func (h *HTTPHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	item, err := h.items.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, success(newItemResponse(*item), "item fetched"))
}

func (h *HTTPHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req ItemRequest
	if !decode(w, r, &req) {
		return
	}

	candidate, err := req.toDomain()
	if err != nil {
		writeError(w, r, err)
		return
	}

	item, err := h.items.Create(r.Context(), candidate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, success(newItemResponse(*item), "item created"))
}

func (h *HTTPHandler) ReplaceItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req ItemRequest
	if !decode(w, r, &req) {
		return
	}

	candidate, err := req.toDomain()
	if err != nil {
		writeError(w, r, err)
		return
	}

	item, err := h.items.Replace(r.Context(), id, candidate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, success(newItemResponse(*item), "item updated"))
}

func (h *HTTPHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.items.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, success(nil, "item deleted"))
}

func (h *HTTPHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req StockAdjustRequest
	if !decode(w, r, &req) {
		return
	}

	var item *domain.Item
	switch strings.ToUpper(req.Operation) {
	case "ADD":
		item, err = h.engine.AddStock(r.Context(), id, req.Quantity)
	case "REDUCE":
		item, err = h.engine.ReduceStock(r.Context(), id, req.Quantity)
	default:
		err = domain.NewValidationError("operation", "must be ADD or REDUCE")
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, success(newItemResponse(*item), "stock updated"))
}

func (h *HTTPHandler) CheckStock(w http.ResponseWriter, r *http.Request) {
	var req StockBatchRequest
	if !decode(w, r, &req) {
		return
	}

	outcome, err := h.engine.Evaluate(r.Context(), domain.NewStockBatch(req.Items...))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, success(newStockOutcomeResponse(outcome), "stock check completed"))
}

func (h *HTTPHandler) ReduceStock(w http.ResponseWriter, r *http.Request) {
	var req StockBatchRequest
	if !decode(w, r, &req) {
		return
	}

	key := r.Header.Get(idempotencyHeader)
	if h.idempotency != nil && key != "" {
		ok, err := h.idempotency.Acquire(r.Context(), key)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !ok {
			writeJSON(w, http.StatusConflict, failure(CodeDuplicateRequest, "duplicate request"))
			return
		}
	}

	outcome, err := h.engine.Commit(r.Context(), domain.NewStockBatch(req.Items...))
	if (err != nil || !outcome.OK) && h.idempotency != nil && key != "" {
		if relErr := h.idempotency.Release(r.Context(), key); relErr != nil {
			zerolog.Ctx(r.Context()).Error().Err(relErr).Str("key", key).Msg("idempotency key release failed")
		}
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	if outcome.OK {
		writeJSON(w, http.StatusOK, success(newStockOutcomeResponse(outcome), "stock updated"))
		return
	}

	status, resp := errorResponse(outcome.Err)
	if errors.Is(outcome.Err, domain.ErrInsufficientStock) {
		resp.Message = outcome.Reason
	}
	resp.Data = newStockOutcomeResponse(outcome)
	writeJSON(w, status, resp)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.NewValidationError("id", "must be a positive integer")
	}
	return id, nil
}

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, failure(CodeValidation, "invalid request body"))
		return false
	}
	return true
}
