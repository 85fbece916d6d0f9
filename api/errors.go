package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/asaidimu/go-funnel/core/bullet"
	"github.com/asaidimu/go-funnel/core/filter"
	"github.com/asaidimu/go-funnel/core/funnel"
	"github.com/asaidimu/go-funnel/core/graph"
	"github.com/asaidimu/go-funnel/core/persistence"
	"github.com/asaidimu/go-funnel/core/schema"
	"github.com/asaidimu/go-funnel/core/store"
	"github.com/asaidimu/go-funnel/render"
)

// Error codes returned in APIError.Code.
const (
	CodeMalformedInput   = "MALFORMED_INPUT"
	CodeFieldNotFound    = "FIELD_NOT_FOUND"
	CodeFieldMismatch    = "FIELD_MISMATCH"
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeInvalidGraph     = "INVALID_GRAPH"
	CodeNotFound         = "NOT_FOUND"
	CodeConflict         = "CONFLICT"
	CodeInternal         = "INTERNAL_ERROR"
)

// classify maps an error from the compilers or the store to a status and
// an error code.
func classify(err error) (int, string) {
	var unknownOp *bullet.UnknownOperatorError
	switch {
	case errors.Is(err, filter.ErrMalformedFilter),
		errors.Is(err, graph.ErrMalformedTopology):
		return http.StatusBadRequest, CodeMalformedInput
	case errors.Is(err, filter.ErrFieldNotFound):
		return http.StatusUnprocessableEntity, CodeFieldNotFound
	case errors.Is(err, filter.ErrFieldMismatch):
		return http.StatusUnprocessableEntity, CodeFieldMismatch
	case errors.Is(err, filter.ErrValidation),
		errors.Is(err, funnel.ErrInvalidProjection),
		errors.Is(err, funnel.ErrNaming),
		errors.Is(err, funnel.ErrInvalidRequest),
		errors.Is(err, persistence.ErrInvalidDocument),
		errors.As(err, &unknownOp):
		return http.StatusUnprocessableEntity, CodeValidationFailed
	case errors.Is(err, graph.ErrCycle),
		errors.Is(err, graph.ErrUnreachable),
		errors.Is(err, graph.ErrNoSink),
		errors.Is(err, graph.ErrUnknownStep),
		errors.Is(err, graph.ErrDuplicateStep),
		errors.Is(err, graph.ErrPathTooShort),
		errors.Is(err, graph.ErrTooManyPaths):
		return http.StatusUnprocessableEntity, CodeInvalidGraph
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, schema.ErrSchemaNotFound),
		errors.Is(err, render.ErrTemplateNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict, CodeConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, CodeInternal
	}
	return http.StatusInternalServerError, CodeInternal
}
