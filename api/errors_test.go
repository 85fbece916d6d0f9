package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/asaidimu/go-funnel/core/bullet"
	"github.com/asaidimu/go-funnel/core/filter"
	"github.com/asaidimu/go-funnel/core/funnel"
	"github.com/asaidimu/go-funnel/core/graph"
	"github.com/asaidimu/go-funnel/core/schema"
	"github.com/asaidimu/go-funnel/core/store"
	"github.com/asaidimu/go-funnel/render"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"malformed filter", &filter.MalformedFilterError{Path: "$", Reason: "x"}, http.StatusBadRequest, CodeMalformedInput},
		{"malformed topology", fmt.Errorf("topology: %w", graph.ErrMalformedTopology), http.StatusBadRequest, CodeMalformedInput},
		{"field not found", &filter.FieldNotFoundError{Schema: "s", Field: "f"}, http.StatusUnprocessableEntity, CodeFieldNotFound},
		{"field mismatch", fmt.Errorf("filter: %w", filter.ErrFieldMismatch), http.StatusUnprocessableEntity, CodeFieldMismatch},
		{"projection", &funnel.ProjectionError{Index: 0, ID: 1, Reason: "r"}, http.StatusUnprocessableEntity, CodeValidationFailed},
		{"unknown operator", &bullet.UnknownOperatorError{}, http.StatusUnprocessableEntity, CodeValidationFailed},
		{"cycle", fmt.Errorf("step graph: %w", graph.ErrCycle), http.StatusUnprocessableEntity, CodeInvalidGraph},
		{"too short", graph.ErrPathTooShort, http.StatusUnprocessableEntity, CodeInvalidGraph},
		{"group missing", fmt.Errorf("store: %w", store.ErrNotFound), http.StatusNotFound, CodeNotFound},
		{"schema missing", schema.ErrSchemaNotFound, http.StatusNotFound, CodeNotFound},
		{"template missing", render.ErrTemplateNotFound, http.StatusNotFound, CodeNotFound},
		{"conflict", store.ErrConflict, http.StatusConflict, CodeConflict},
		{"cancelled", context.Canceled, http.StatusServiceUnavailable, CodeInternal},
		{"other", errors.New("disk full"), http.StatusInternalServerError, CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := classify(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}
