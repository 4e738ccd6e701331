package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/GokhanAsilturk/microservice-restaurant/internal/core/domain"
)

const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeStock              = "STOCK_ERROR"
	CodeConcurrentModified = "CONCURRENT_MODIFICATION"
	CodeDuplicateRequest   = "DUPLICATE_REQUEST"
	CodeInternal           = "INTERNAL_SERVER_ERROR"
)

type APIResponse struct {
	Success   bool              `json:"success"`
	Message   string            `json:"message,omitempty"`
	Data      interface{}       `json:"data,omitempty"`
	Errors    map[string]string `json:"errors,omitempty"`
	ErrorCode string            `json:"error_code,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

func success(data interface{}, message string) APIResponse {
	return APIResponse{Success: true, Message: message, Data: data, Timestamp: time.Now().UTC()}
}

func failure(code, message string) APIResponse {
	return APIResponse{Success: false, Message: message, ErrorCode: code, Timestamp: time.Now().UTC()}
}

// errorResponse maps an error kind to a status code and envelope. Storage and
// unknown failures are reported opaquely.
func errorResponse(err error) (int, APIResponse) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		resp := failure(CodeValidation, "validation failed")
		resp.Errors = verr.Fields
		return http.StatusBadRequest, resp
	case errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusBadRequest, failure(CodeStock, err.Error())
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, failure(CodeValidation, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, failure(CodeNotFound, "item not found")
	case errors.Is(err, domain.ErrConcurrentModification):
		return http.StatusConflict, failure(CodeConcurrentModified, domain.ErrConcurrentModification.Error())
	}
	return http.StatusInternalServerError, failure(CodeInternal, "internal error")
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := errorResponse(err)
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
