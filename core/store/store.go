// Package store keeps compiled funnel groups. A group is one row in
// funnel_groups holding the full compiled spec, plus one row per pipeline in
// funnel_pipelines so that pipelines can be listed without decoding groups.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/asaidimu/go-funnel/core/bullet"
	"github.com/asaidimu/go-funnel/core/funnel"
	"github.com/asaidimu/go-funnel/core/graph"
	"github.com/asaidimu/go-funnel/core/persistence"
	"github.com/asaidimu/go-funnel/core/query"
	"github.com/asaidimu/go-funnel/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrNotFound = errors.New("funnel group not found")
	ErrConflict = errors.New("funnel group name already in use")
)

// GroupRecord is a stored funnel group. Spec holds the compiled
// funnel.GroupSpec as JSON.
type GroupRecord struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Schema      string          `json:"schema"`
	Description string          `json:"description,omitempty"`
	Edges       []graph.Edge    `json:"edges"`
	Topology    json.RawMessage `json:"topology"`
	Spec        json.RawMessage `json:"spec"`
	CreatedAt   int64           `json:"created_at"`
}

// PipelineRecord is one stored pipeline of a group. Spec holds the
// compiled funnel.PipelineSpec as JSON.
type PipelineRecord struct {
	ID       string          `json:"id"`
	GroupID  string          `json:"group_id"`
	Name     string          `json:"name"`
	Position int             `json:"position"`
	Path     string          `json:"path"`
	Steps    []string        `json:"steps"`
	Spec     json.RawMessage `json:"spec"`
}

// Store persists compiled groups through the persistence layer.
type Store struct {
	p      persistence.PersistenceInterface
	logger *zap.Logger
	now    func() time.Time
}

// New creates the store's collections if they do not exist yet.
func New(p persistence.PersistenceInterface, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, def := range collections() {
		if _, err := p.Ensure(def); err != nil {
			return nil, fmt.Errorf("store: collection %s: %w", def.Name, err)
		}
	}
	return &Store{p: p, logger: logger, now: time.Now}, nil
}

// SaveGroup stores a compiled group and its pipelines in one transaction.
// Group names are unique.
func (s *Store) SaveGroup(spec *funnel.GroupSpec) (*GroupRecord, error) {
	if spec == nil {
		return nil, fmt.Errorf("store: nil group spec")
	}
	body, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("store: encoding group %s: %w", spec.Name, err)
	}

	group := &GroupRecord{
		ID:          uuid.NewString(),
		Name:        spec.Name,
		Schema:      spec.Schema,
		Description: spec.Description,
		Edges:       spec.Edges,
		Topology:    spec.Topology,
		Spec:        body,
		CreatedAt:   s.now().UnixMilli(),
	}
	if len(group.Topology) == 0 {
		group.Topology = json.RawMessage(`{}`)
	}

	pipelines := make([]map[string]any, 0, len(spec.Pipelines))
	for i := range spec.Pipelines {
		p := &spec.Pipelines[i]
		pbody, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("store: encoding pipeline %s: %w", p.Name, err)
		}
		doc, err := utils.StructToMap(PipelineRecord{
			ID:       uuid.NewString(),
			GroupID:  group.ID,
			Name:     p.Name,
			Position: p.Index,
			Path:     p.Path,
			Steps:    p.Steps,
			Spec:     pbody,
		})
		if err != nil {
			return nil, err
		}
		pipelines = append(pipelines, doc)
	}

	groupDoc, err := utils.StructToMap(group)
	if err != nil {
		return nil, err
	}

	_, err = s.p.Transact(func(tx persistence.PersistenceTransactionInterface) (any, error) {
		groups, err := tx.Collection(GroupsCollection)
		if err != nil {
			return nil, err
		}
		q := query.NewQueryBuilder().Where("name").Eq(group.Name).Select("id").Build()
		existing, err := groups.Read(&q)
		if err != nil {
			return nil, err
		}
		if existing.Count > 0 {
			return nil, fmt.Errorf("%q: %w", group.Name, ErrConflict)
		}
		if _, err := groups.Create(groupDoc); err != nil {
			return nil, err
		}
		if len(pipelines) == 0 {
			return nil, nil
		}
		rows, err := tx.Collection(PipelinesCollection)
		if err != nil {
			return nil, err
		}
		return rows.Create(pipelines)
	})
	if err != nil {
		return nil, fmt.Errorf("store: saving group %s: %w", spec.Name, err)
	}

	s.logger.Info("Saved funnel group",
		zap.String("id", group.ID),
		zap.String("name", group.Name),
		zap.Int("pipelines", len(pipelines)))
	return group, nil
}

// LoadGroup returns the group with the given id.
func (s *Store) LoadGroup(id string) (*GroupRecord, error) {
	return s.findGroup("id", id)
}

// FindGroup returns the group with the given name.
func (s *Store) FindGroup(name string) (*GroupRecord, error) {
	return s.findGroup("name", name)
}

func (s *Store) findGroup(field, value string) (*GroupRecord, error) {
	groups, err := s.p.Collection(GroupsCollection)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	q := query.NewQueryBuilder().Where(field).Eq(value).Build()
	result, err := groups.Read(&q)
	if err != nil {
		return nil, fmt.Errorf("store: reading group: %w", err)
	}
	if result.Count == 0 {
		return nil, fmt.Errorf("%s %q: %w", field, value, ErrNotFound)
	}
	return decodeGroup(result.First())
}

// Decode returns the compiled spec of a stored group.
func (g *GroupRecord) Decode() (*StoredGroup, error) {
	var out StoredGroup
	if err := json.Unmarshal(g.Spec, &out); err != nil {
		return nil, fmt.Errorf("store: decoding group %s: %w", g.Name, err)
	}
	return &out, nil
}

// Decode returns the compiled spec of a stored pipeline.
func (p *PipelineRecord) Decode() (*StoredPipeline, error) {
	var out StoredPipeline
	if err := json.Unmarshal(p.Spec, &out); err != nil {
		return nil, fmt.Errorf("store: decoding pipeline %s: %w", p.Name, err)
	}
	return &out, nil
}

// StoredGroup is a funnel.GroupSpec read back from storage. Filters are
// kept as JSON since their Go form is an interface tree.
type StoredGroup struct {
	Name        string           `json:"name"`
	Schema      string           `json:"schema"`
	Description string           `json:"description,omitempty"`
	Steps       []graph.Step     `json:"steps"`
	Edges       []graph.Edge     `json:"edges"`
	Levels      [][]string       `json:"levels"`
	Topology    json.RawMessage  `json:"topology"`
	Filter      json.RawMessage  `json:"filter,omitempty"`
	Pipelines   []StoredPipeline `json:"pipelines"`
}

type StoredPipeline struct {
	Name        string                     `json:"name"`
	Index       int                        `json:"index"`
	Path        string                     `json:"path"`
	Steps       []string                   `json:"steps"`
	StepData    map[string]json.RawMessage `json:"stepData,omitempty"`
	Filter      json.RawMessage            `json:"filter,omitempty"`
	QueryFilter json.RawMessage            `json:"queryFilter,omitempty"`
	Projections []funnel.Projection        `json:"projections,omitempty"`
}

// Query rebuilds the engine request body of the pipeline.
func (p *StoredPipeline) Query(opts ...bullet.QueryOption) (*bullet.Query, error) {
	spec := funnel.PipelineSpec{
		Name:        p.Name,
		Index:       p.Index,
		Path:        p.Path,
		Steps:       p.Steps,
		Projections: p.Projections,
	}
	if len(p.QueryFilter) > 0 {
		f, err := bullet.UnmarshalFilter(p.QueryFilter)
		if err != nil {
			return nil, fmt.Errorf("store: pipeline %s: %w", p.Name, err)
		}
		spec.QueryFilter = f
	}
	return spec.Query(opts...), nil
}

// ListGroups returns all groups ordered by name. With withSpec false the
// spec and topology are left out.
func (s *Store) ListGroups(withSpec bool) ([]GroupRecord, error) {
	groups, err := s.p.Collection(GroupsCollection)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	qb := query.NewQueryBuilder().OrderByAsc("name")
	if !withSpec {
		qb.Select("id", "name", "schema", "description", "edges", "created_at")
	}
	q := qb.Build()
	result, err := groups.Read(&q)
	if err != nil {
		return nil, fmt.Errorf("store: listing groups: %w", err)
	}

	out := make([]GroupRecord, 0, result.Count)
	for _, doc := range result.Data {
		g, err := decodeGroup(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}
	return out, nil
}

// Pipelines returns the pipelines of a group in position order.
func (s *Store) Pipelines(groupID string) ([]PipelineRecord, error) {
	rows, err := s.p.Collection(PipelinesCollection)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	q := query.NewQueryBuilder().Where("group_id").Eq(groupID).OrderByAsc("position").Build()
	result, err := rows.Read(&q)
	if err != nil {
		return nil, fmt.Errorf("store: reading pipelines: %w", err)
	}

	out := make([]PipelineRecord, 0, result.Count)
	for _, doc := range result.Data {
		p, err := decode[PipelineRecord](doc)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}

// DeleteGroup removes a group and its pipelines.
func (s *Store) DeleteGroup(id string) error {
	_, err := s.p.Transact(func(tx persistence.PersistenceTransactionInterface) (any, error) {
		groups, err := tx.Collection(GroupsCollection)
		if err != nil {
			return nil, err
		}
		n, err := groups.Delete(query.NewQueryBuilder().Where("id").Eq(id).Build().Filters, false)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, fmt.Errorf("id %q: %w", id, ErrNotFound)
		}
		rows, err := tx.Collection(PipelinesCollection)
		if err != nil {
			return nil, err
		}
		return rows.Delete(query.NewQueryBuilder().Where("group_id").Eq(id).Build().Filters, false)
	})
	if err != nil {
		return fmt.Errorf("store: deleting group %s: %w", id, err)
	}
	s.logger.Info("Deleted funnel group", zap.String("id", id))
	return nil
}

func decodeGroup(doc map[string]any) (*GroupRecord, error) {
	return decode[GroupRecord](doc)
}

func decode[T any](doc map[string]any) (*T, error) {
	v, err := utils.MapToStruct[*T](doc)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	return v, nil
}
