package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/asaidimu/go-funnel/core/persistence"
	"github.com/asaidimu/go-funnel/core/schema"
	"github.com/asaidimu/go-funnel/core/store"
	"github.com/asaidimu/go-funnel/render"
	"github.com/asaidimu/go-funnel/sqlite"
)

const checkoutGroup = `{
	"name": "checkout",
	"schema": "events",
	"topology": {
		"nodes": [{"id": 1, "name": "view"}, {"id": 2, "name": "cart"}, {"id": 3, "name": "pay"}],
		"connections": {"START": [1], "1": [2], "2": [3]}
	},
	"filter": {"condition": "AND", "rules": [{"id": "price", "field": "price", "operator": "less", "value": 10}]},
	"projections": [{"id": 2, "name": "user_id"}]
}`

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := zaptest.NewLogger(t)

	registry := schema.NewRegistry(logger)
	require.NoError(t, registry.Register(&schema.SchemaDefinition{
		Name:    "events",
		Version: "1.0.0",
		Fields: map[string]*schema.FieldDefinition{
			"price":   {ID: 1, Name: "price", Type: schema.FieldTypeDecimal},
			"user_id": {ID: 2, Name: "user_id", Type: schema.FieldTypeString},
		},
	}))

	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	p, err := persistence.NewPersistence(sqlite.NewSQLiteInteractor(db, logger, nil, nil), logger)
	require.NoError(t, err)
	st, err := store.New(p, logger)
	require.NoError(t, err)

	renderer := render.NewTemplateRenderer(logger)
	require.NoError(t, renderer.Add("name", `{{ .Group }}:{{ .Pipeline }}:{{ len .Query.Filters }}`))

	reg := prometheus.NewRegistry()
	return NewServer(Options{
		Registry:    registry,
		Store:       st,
		Persistence: p,
		Renderer:    renderer,
		Registerer:  reg,
		Gatherer:    reg,
	}, zap.NewNop())
}

func do(t *testing.T, s http.Handler, method, path, body string) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(method, path, reader))

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func TestFilterCompile(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"ok", `{"schema":"events","filter":{"condition":"AND","rules":[{"id":"price","operator":"less","value":3}]}}`, http.StatusOK, ""},
		{"bad json", `{"schema":`, http.StatusBadRequest, CodeMalformedInput},
		{"unknown member", `{"schema":"events","extra":1}`, http.StatusBadRequest, CodeMalformedInput},
		{"malformed filter", `{"schema":"events","filter":[1]}`, http.StatusBadRequest, CodeMalformedInput},
		{"unknown field", `{"schema":"events","filter":{"condition":"AND","rules":[{"id":"ghost","operator":"equal","value":1}]}}`, http.StatusUnprocessableEntity, CodeFieldNotFound},
		{"missing schema", `{"filter":{"condition":"AND","rules":[]}}`, http.StatusUnprocessableEntity, CodeValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := do(t, s, http.MethodPost, "/api/filters/compile", tt.body)
			assert.Equal(t, tt.status, status)
			if tt.code == "" {
				assert.True(t, env.Success)
				return
			}
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}

	_, env := do(t, s, http.MethodPost, "/api/filters/compile",
		`{"schema":"events","filter":{"condition":"AND","rules":[{"id":"price","operator":"less","value":3}]}}`)
	var out struct {
		Query json.RawMessage `json:"query"`
		Text  string          `json:"text"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.JSONEq(t, `{"operation":"AND","clauses":[{"operation":"<","field":"price","values":["3"]}]}`, string(out.Query))
	assert.Equal(t, "(price < [3])", out.Text)
	assert.Contains(t, string(out.Query), `"operation":"<"`)
}

func TestFilterQuery(t *testing.T) {
	s := newTestServer(t)
	status, env := do(t, s, http.MethodPost, "/api/filters/query", `{
		"schema": "events",
		"filter": {"condition":"AND","rules":[{"id":"price","operator":"less","value":3}]},
		"projections": [{"id": 2, "name": "user_id", "alias": "user"}],
		"aggregation": {"type": "COUNT DISTINCT", "size": 5},
		"duration": 1000
	}`)
	require.Equal(t, http.StatusOK, status)

	var q struct {
		Aggregation struct {
			Type string `json:"type"`
			Size int    `json:"size"`
		} `json:"aggregation"`
		Projection struct {
			Fields map[string]string `json:"fields"`
		} `json:"projection"`
		Filters  []json.RawMessage `json:"filters"`
		Duration int64             `json:"duration"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &q))
	assert.Equal(t, "COUNT DISTINCT", q.Aggregation.Type)
	assert.Equal(t, 5, q.Aggregation.Size)
	assert.Equal(t, map[string]string{"user_id": "user"}, q.Projection.Fields)
	assert.Len(t, q.Filters, 1)
	assert.Equal(t, int64(1000), q.Duration)

	status, env = do(t, s, http.MethodPost, "/api/filters/query",
		`{"schema":"events","projections":[{"id":9,"name":"nope"}]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, CodeValidationFailed, env.Error.Code)
}

func TestGroupPreview(t *testing.T) {
	s := newTestServer(t)
	status, env := do(t, s, http.MethodPost, "/api/funnel-groups/preview", checkoutGroup)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), `"view>cart>pay"`)

	status, env = do(t, s, http.MethodPost, "/api/funnel-groups/preview",
		`{"topology":{"nodes":[{"id":1,"name":"a"},{"id":2,"name":"b"}],"connections":{"1":[2],"2":[1]}}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, CodeInvalidGraph, env.Error.Code)
}

func TestGroupLifecycle(t *testing.T) {
	s := newTestServer(t)

	status, env := do(t, s, http.MethodPost, "/api/funnel-groups", checkoutGroup)
	require.Equal(t, http.StatusCreated, status, string(env.Data))
	var created GroupResponse
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.NotEmpty(t, created.ID)
	require.Len(t, created.Pipelines, 1)
	assert.Equal(t, "checkout", created.Pipelines[0].Name)

	status, env = do(t, s, http.MethodPost, "/api/funnel-groups", checkoutGroup)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, CodeConflict, env.Error.Code)

	status, env = do(t, s, http.MethodGet, "/api/funnel-groups", "")
	require.Equal(t, http.StatusOK, status)
	var list []store.GroupRecord
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)

	status, env = do(t, s, http.MethodGet, "/api/funnel-groups/"+created.ID, "")
	require.Equal(t, http.StatusOK, status)
	var got GroupResponse
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "checkout", got.Name)

	status, env = do(t, s, http.MethodGet, "/api/funnel-groups/"+created.ID+"/jobs/name", "")
	require.Equal(t, http.StatusOK, status)
	var jobs []JobResponse
	require.NoError(t, json.Unmarshal(env.Data, &jobs))
	require.Len(t, jobs, 1)
	assert.Equal(t, "checkout:checkout:1", jobs[0].Body)

	status, env = do(t, s, http.MethodGet, "/api/funnel-groups/"+created.ID+"/jobs/absent", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, CodeNotFound, env.Error.Code)

	status, _ = do(t, s, http.MethodDelete, "/api/funnel-groups/"+created.ID, "")
	assert.Equal(t, http.StatusOK, status)

	status, env = do(t, s, http.MethodGet, "/api/funnel-groups/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, CodeNotFound, env.Error.Code)
}

func TestGroupCreate_Invalid(t *testing.T) {
	s := newTestServer(t)
	body := strings.Replace(checkoutGroup, `"id": "price"`, `"id": "ghost"`, 1)
	body = strings.Replace(body, `"field": "price"`, `"field": "ghost"`, 1)

	status, env := do(t, s, http.MethodPost, "/api/funnel-groups", body)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, CodeFieldNotFound, env.Error.Code)
}

func TestSchemas(t *testing.T) {
	s := newTestServer(t)

	status, env := do(t, s, http.MethodGet, "/api/schemas", "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `["events"]`, string(env.Data))

	status, env = do(t, s, http.MethodGet, "/api/schemas/events", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), `"user_id"`)

	status, env = do(t, s, http.MethodGet, "/api/schemas/missing", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, CodeNotFound, env.Error.Code)
}

func TestRoutingErrors(t *testing.T) {
	s := newTestServer(t)

	status, env := do(t, s, http.MethodGet, "/api/nowhere", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.False(t, env.Success)
}

func TestMetrics(t *testing.T) {
	logger := zaptest.NewLogger(t)
	reg := prometheus.NewRegistry()
	registry := schema.NewRegistry(logger)
	s := NewServer(Options{Registry: registry, Registerer: reg, Gatherer: reg}, logger)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/schemas", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `funnel_http_requests_total{code="200",route="/api/schemas"} 1`)
}

func TestCORSMiddleware(t *testing.T) {
	s := newTestServer(t)
	h := s.CORSMiddleware(s)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/schemas", bytes.NewReader(nil)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
