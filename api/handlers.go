package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/asaidimu/go-funnel/core/bullet"
	"github.com/asaidimu/go-funnel/core/filter"
	"github.com/asaidimu/go-funnel/core/funnel"
	"github.com/asaidimu/go-funnel/core/store"
	"github.com/asaidimu/go-funnel/render"
)

// FilterRequest is the body of the filter endpoints.
type FilterRequest struct {
	Schema      string              `json:"schema"`
	Filter      json.RawMessage     `json:"filter"`
	Projections []funnel.Projection `json:"projections,omitempty"`
	Aggregation *bullet.Aggregation `json:"aggregation,omitempty"`
	// Duration in milliseconds; zero keeps the configured default.
	Duration int64 `json:"duration,omitempty"`
}

type FilterCompileResponse struct {
	Model filter.Expr   `json:"model"`
	Query bullet.Filter `json:"query"`
	Text  string        `json:"text"`
}

// GroupResponse is a stored group with its pipelines.
type GroupResponse struct {
	store.GroupRecord
	Pipelines []store.PipelineRecord `json:"pipelines"`
}

type JobResponse struct {
	Pipeline string `json:"pipeline"`
	Index    int    `json:"index"`
	Body     string `json:"body"`
}

func (s *Server) handleFilterCompile(w http.ResponseWriter, r *http.Request) {
	var req FilterRequest
	if err := s.parseJSONBody(r, &req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, CodeMalformedInput, "Invalid JSON in request body", err.Error())
		return
	}

	model, query, err := s.assembler.CompileFilter(r.Context(), req.Schema, req.Filter)
	s.metrics.compiled("filter", err)
	if err != nil {
		s.writeError(w, "Failed to compile filter", err)
		return
	}
	s.writeSuccessResponse(w, http.StatusOK, FilterCompileResponse{Model: model, Query: query, Text: bullet.String(query)})
}

func (s *Server) handleFilterQuery(w http.ResponseWriter, r *http.Request) {
	var req FilterRequest
	if err := s.parseJSONBody(r, &req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, CodeMalformedInput, "Invalid JSON in request body", err.Error())
		return
	}

	_, query, err := s.assembler.CompileFilter(r.Context(), req.Schema, req.Filter)
	if err == nil {
		var projections []funnel.Projection
		projections, err = s.assembler.Projections(req.Schema, req.Projections)
		if err == nil {
			spec := funnel.PipelineSpec{QueryFilter: query, Projections: projections}
			s.metrics.compiled("query", nil)
			s.writeSuccessResponse(w, http.StatusOK, spec.Query(s.requestOptions(req)...))
			return
		}
	}
	s.metrics.compiled("query", err)
	s.writeError(w, "Failed to build query", err)
}

// requestOptions layers per-request overrides over the configured
// defaults.
func (s *Server) requestOptions(req FilterRequest) []bullet.QueryOption {
	opts := append([]bullet.QueryOption{}, s.queryOpts...)
	if req.Aggregation != nil {
		opts = append(opts, bullet.WithAggregation(*req.Aggregation))
	}
	if req.Duration > 0 {
		opts = append(opts, func(q *bullet.Query) { q.Duration = req.Duration })
	}
	return opts
}

func (s *Server) handleGroupPreview(w http.ResponseWriter, r *http.Request) {
	var req funnel.GroupRequest
	if err := s.parseJSONBody(r, &req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, CodeMalformedInput, "Invalid JSON in request body", err.Error())
		return
	}

	preview, err := s.assembler.Preview(r.Context(), &req)
	s.metrics.compiled("preview", err)
	if err != nil {
		s.writeError(w, "Failed to preview funnel group", err)
		return
	}
	s.writeSuccessResponse(w, http.StatusOK, preview)
}

func (s *Server) handleGroupCreate(w http.ResponseWriter, r *http.Request) {
	var req funnel.GroupRequest
	if err := s.parseJSONBody(r, &req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, CodeMalformedInput, "Invalid JSON in request body", err.Error())
		return
	}

	spec, err := s.assembler.Assemble(r.Context(), &req)
	s.metrics.compiled("group", err)
	if err != nil {
		s.writeError(w, "Failed to compile funnel group", err)
		return
	}

	record, err := s.store.SaveGroup(spec)
	if err != nil {
		s.writeError(w, "Failed to save funnel group", err)
		return
	}
	s.respondGroup(w, http.StatusCreated, record)
}

func (s *Server) handleGroupList(w http.ResponseWriter, r *http.Request) {
	withSpec, _ := strconv.ParseBool(r.URL.Query().Get("spec"))
	groups, err := s.store.ListGroups(withSpec)
	if err != nil {
		s.writeError(w, "Failed to list funnel groups", err)
		return
	}
	s.writeSuccessResponse(w, http.StatusOK, groups)
}

func (s *Server) handleGroupGet(w http.ResponseWriter, r *http.Request) {
	record, err := s.store.LoadGroup(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, "Failed to load funnel group", err)
		return
	}
	s.respondGroup(w, http.StatusOK, record)
}

func (s *Server) respondGroup(w http.ResponseWriter, status int, record *store.GroupRecord) {
	pipelines, err := s.store.Pipelines(record.ID)
	if err != nil {
		s.writeError(w, "Failed to load pipelines", err)
		return
	}
	s.writeSuccessResponse(w, status, GroupResponse{GroupRecord: *record, Pipelines: pipelines})
}

func (s *Server) handleGroupDelete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.store.DeleteGroup(id); err != nil {
		s.writeError(w, "Failed to delete funnel group", err)
		return
	}
	s.writeSuccessResponse(w, http.StatusOK, map[string]string{"id": id})
}

// handleGroupJobs renders one job definition per pipeline of the group.
func (s *Server) handleGroupJobs(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if s.renderer == nil {
		s.writeError(w, "Job rendering is not configured", fmt.Errorf("%q: %w", vars["template"], render.ErrTemplateNotFound))
		return
	}

	record, err := s.store.LoadGroup(vars["id"])
	if err != nil {
		s.writeError(w, "Failed to load funnel group", err)
		return
	}
	group, err := record.Decode()
	if err != nil {
		s.writeError(w, "Failed to decode funnel group", err)
		return
	}

	jobs := make([]JobResponse, 0, len(group.Pipelines))
	for i := range group.Pipelines {
		p := &group.Pipelines[i]
		query, err := p.Query(s.queryOpts...)
		if err != nil {
			s.writeError(w, "Failed to rebuild pipeline query", err)
			return
		}
		body, err := s.renderer.Render(vars["template"], &render.Job{
			Group:       group.Name,
			Schema:      group.Schema,
			Description: group.Description,
			Pipeline:    p.Name,
			Index:       p.Index,
			Path:        p.Path,
			Steps:       p.Steps,
			Query:       query,
		})
		if err != nil {
			s.writeError(w, "Failed to render job", err)
			return
		}
		jobs = append(jobs, JobResponse{Pipeline: p.Name, Index: p.Index, Body: string(body)})
	}

	s.logger.Debug("Rendered jobs",
		zap.String("group", group.Name),
		zap.String("template", vars["template"]),
		zap.Int("jobs", len(jobs)))
	s.writeSuccessResponse(w, http.StatusOK, jobs)
}

func (s *Server) handleSchemaList(w http.ResponseWriter, _ *http.Request) {
	s.writeSuccessResponse(w, http.StatusOK, s.registry.Names())
}

func (s *Server) handleSchemaGet(w http.ResponseWriter, r *http.Request) {
	def, err := s.registry.Schema(mux.Vars(r)["name"])
	if err != nil {
		s.writeError(w, "Failed to load schema", err)
		return
	}
	s.writeSuccessResponse(w, http.StatusOK, def)
}
