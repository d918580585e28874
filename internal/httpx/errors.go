package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/orderfood/preorder.git/internal/orders"
)

// Stable machine codes of the API envelope. 0 is success; the 1xxx range is
// domain outcomes, the rest mirrors HTTP.
const (
	codeOK                = 0
	codeBadRequest        = 400
	codeUnauthorized      = 401
	codeForbidden         = 403
	codeNotFound          = 404
	codeConflict          = 409
	codeInternal          = 500
	codeOrderExpired      = 1001
	codeStockInsufficient = 1002
	codeOrderAlreadyPaid  = 1003
	codeOrderCancelled    = 1004
)

type apiResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func errCode(err error) int {
	switch {
	case errors.Is(err, orders.ErrBadRequest):
		return codeBadRequest
	case errors.Is(err, orders.ErrUnauthorized):
		return codeUnauthorized
	case errors.Is(err, orders.ErrForbidden):
		return codeForbidden
	case errors.Is(err, orders.ErrNotFound):
		return codeNotFound
	case errors.Is(err, orders.ErrOrderExpired):
		return codeOrderExpired
	case errors.Is(err, orders.ErrStockInsufficient):
		return codeStockInsufficient
	case errors.Is(err, orders.ErrOrderAlreadyPaid):
		return codeOrderAlreadyPaid
	case errors.Is(err, orders.ErrOrderCancelled):
		return codeOrderCancelled
	case errors.Is(err, orders.ErrInvalidTransition),
		errors.Is(err, orders.ErrMenuItemOrdered):
		return codeConflict
	}
	return codeInternal
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, orders.ErrBadRequest),
		errors.Is(err, orders.ErrOrderExpired):
		return http.StatusBadRequest
	case errors.Is(err, orders.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, orders.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, orders.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, orders.ErrStockInsufficient),
		errors.Is(err, orders.ErrOrderAlreadyPaid),
		errors.Is(err, orders.ErrOrderCancelled),
		errors.Is(err, orders.ErrInvalidTransition),
		errors.Is(err, orders.ErrMenuItemOrdered):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func respondOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, apiResponse{Code: codeOK, Message: "ok", Data: data})
}

func respondErr(w http.ResponseWriter, err error) {
	writeJSON(w, httpStatus(err), apiResponse{Code: errCode(err), Message: err.Error()})
}
