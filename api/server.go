// Package api serves the funnel compilers and the group store over HTTP.
// Every response uses the APIResponse envelope.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/asaidimu/go-funnel/core/bullet"
	"github.com/asaidimu/go-funnel/core/funnel"
	"github.com/asaidimu/go-funnel/core/persistence"
	"github.com/asaidimu/go-funnel/core/schema"
	"github.com/asaidimu/go-funnel/core/store"
	"github.com/asaidimu/go-funnel/render"
)

// APIResponse is the envelope of every response.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Options wires the server's collaborators. Registry and Store are
// required. A nil Renderer disables job rendering and a nil Registerer
// gets a private registry.
type Options struct {
	Registry     *schema.Registry
	Store        *store.Store
	Persistence  persistence.PersistenceInterface
	Renderer     render.Renderer
	QueryOptions []bullet.QueryOption
	Registerer   prometheus.Registerer
	Gatherer     prometheus.Gatherer
}

// Server routes API requests to the assembler and the store.
type Server struct {
	router    *mux.Router
	registry  *schema.Registry
	assembler *funnel.Assembler
	store     *store.Store
	renderer  render.Renderer
	queryOpts []bullet.QueryOption
	metrics   *Metrics
	logger    *zap.Logger
}

func NewServer(opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg, gatherer := opts.Registerer, opts.Gatherer
	if reg == nil {
		r := prometheus.NewRegistry()
		reg, gatherer = r, r
	}

	s := &Server{
		router:    mux.NewRouter(),
		registry:  opts.Registry,
		assembler: funnel.NewAssembler(opts.Registry, logger),
		store:     opts.Store,
		renderer:  opts.Renderer,
		queryOpts: opts.QueryOptions,
		metrics:   NewMetrics(reg),
		logger:    logger,
	}
	if opts.Persistence != nil {
		watchStore(opts.Persistence, s.metrics, logger)
	}
	s.routes(gatherer)
	return s
}

func (s *Server) routes(gatherer prometheus.Gatherer) {
	r := s.router
	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.instrument)

	api.HandleFunc("/filters/compile", s.handleFilterCompile).Methods(http.MethodPost)
	api.HandleFunc("/filters/query", s.handleFilterQuery).Methods(http.MethodPost)

	api.HandleFunc("/funnel-groups/preview", s.handleGroupPreview).Methods(http.MethodPost)
	api.HandleFunc("/funnel-groups", s.handleGroupCreate).Methods(http.MethodPost)
	api.HandleFunc("/funnel-groups", s.handleGroupList).Methods(http.MethodGet)
	api.HandleFunc("/funnel-groups/{id}", s.handleGroupGet).Methods(http.MethodGet)
	api.HandleFunc("/funnel-groups/{id}", s.handleGroupDelete).Methods(http.MethodDelete)
	api.HandleFunc("/funnel-groups/{id}/jobs/{template}", s.handleGroupJobs).Methods(http.MethodGet)

	api.HandleFunc("/schemas", s.handleSchemaList).Methods(http.MethodGet)
	api.HandleFunc("/schemas/{name}", s.handleSchemaGet).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeErrorResponse(w, http.StatusNotFound, CodeNotFound, "No such route", "")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeErrorResponse(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not supported on this route", "")
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start listens on addr with CORS headers added to every response.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting API server", zap.String("address", addr))
	return http.ListenAndServe(addr, s.CORSMiddleware(s))
}

func (s *Server) CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument records request counts and latency per route template.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		s.metrics.duration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		s.metrics.requests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
	})
}

func (s *Server) parseJSONBody(r *http.Request, v any) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

func (s *Server) writeSuccessResponse(w http.ResponseWriter, statusCode int, data any) {
	s.writeJSONResponse(w, statusCode, APIResponse{Success: true, Data: data})
}

func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, code, message, details string) {
	s.writeJSONResponse(w, statusCode, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: message, Details: details},
	})
}

// writeError classifies err and writes it with message.
func (s *Server) writeError(w http.ResponseWriter, message string, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(message, zap.Error(err))
	}
	s.writeErrorResponse(w, status, code, message, err.Error())
}

func (s *Server) writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response", zap.Error(err))
	}
}
