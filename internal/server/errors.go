package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/hupe1980/ledgerq/engine"
	"github.com/hupe1980/ledgerq/filter"
	"github.com/hupe1980/ledgerq/model"
	"github.com/hupe1980/ledgerq/resource"
)

// Error codes of the JSON error envelope.
const (
	CodeBadRequest       = "bad_request"
	CodeMalformedFilter  = "malformed_filter"
	CodeInvalidAccountID = "invalid_account_id"
	CodeDuplicateID      = "duplicate_id"
	CodeNotFound         = "not_found"
	CodeReadOnly         = "read_only"
	CodeNoStore          = "no_store"
	CodeUnavailable      = "unavailable"
	CodeBusy             = "busy"
	CodeTimeout          = "timeout"
	CodeInternal         = "internal"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// errBadRequest marks request decoding failures.
var errBadRequest = errors.New("bad request")

// classify maps an error to its HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, filter.ErrMalformedFilter):
		return http.StatusBadRequest, CodeMalformedFilter
	case errors.Is(err, model.ErrInvalidAccountID):
		return http.StatusBadRequest, CodeInvalidAccountID
	case errors.Is(err, errBadRequest), errors.Is(err, engine.ErrInvalidArgument):
		return http.StatusBadRequest, CodeBadRequest
	case errors.Is(err, engine.ErrAlreadyRegistered):
		return http.StatusConflict, CodeDuplicateID
	case errors.Is(err, engine.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, engine.ErrReadOnly):
		return http.StatusForbidden, CodeReadOnly
	case errors.Is(err, engine.ErrNoStore):
		return http.StatusConflict, CodeNoStore
	case errors.Is(err, engine.ErrUnavailable), errors.Is(err, engine.ErrClosed):
		return http.StatusServiceUnavailable, CodeUnavailable
	case errors.Is(err, resource.ErrBusy), errors.Is(err, resource.ErrRateLimited):
		return http.StatusTooManyRequests, CodeBusy
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, CodeTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout, CodeTimeout
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}
