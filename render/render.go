// Package render turns compiled pipelines into job definitions for the
// query engine using named text templates. Templates get the sprig function
// set, so `toJson`, `indent`, `default` and friends are available.
package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/asaidimu/go-funnel/core/bullet"
	"go.uber.org/zap"
)

// funcMap is sprig's set with toJson replaced: operator symbols such as
// "<" must reach the engine unescaped.
func funcMap() template.FuncMap {
	fm := sprig.TxtFuncMap()
	fm["toJson"] = toJSON
	return fm
}

func toJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return ""
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// TemplateExt is the file extension LoadDir picks up.
const TemplateExt = ".tmpl"

// ErrTemplateNotFound is returned by Render for an unknown template name.
var ErrTemplateNotFound = errors.New("template not found")

// Job is the data a template is executed with.
type Job struct {
	Group       string            `json:"group"`
	Schema      string            `json:"schema"`
	Description string            `json:"description,omitempty"`
	Pipeline    string            `json:"pipeline"`
	Index       int               `json:"index"`
	Path        string            `json:"path"`
	Steps       []string          `json:"steps"`
	Query       *bullet.Query     `json:"query"`
	Labels      map[string]string `json:"labels,omitempty"`
}

// Renderer renders jobs with named templates.
type Renderer interface {
	Render(name string, job *Job) ([]byte, error)
	Names() []string
}

// TemplateRenderer is a Renderer backed by text/template. It is safe for
// concurrent use.
type TemplateRenderer struct {
	mu        sync.RWMutex
	templates map[string]*template.Template
	logger    *zap.Logger
}

var _ Renderer = (*TemplateRenderer)(nil)

func NewTemplateRenderer(logger *zap.Logger) *TemplateRenderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TemplateRenderer{templates: make(map[string]*template.Template), logger: logger}
}

// Add parses text and registers it under name, replacing any template of
// the same name.
func (r *TemplateRenderer) Add(name, text string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("template name is required")
	}
	t, err := template.New(name).Option("missingkey=error").Funcs(funcMap()).Parse(text)
	if err != nil {
		return fmt.Errorf("invalid template %s: %w", name, err)
	}

	r.mu.Lock()
	r.templates[name] = t
	r.mu.Unlock()
	return nil
}

// LoadDir adds every *.tmpl file in dir, named after the file without its
// extension. It returns the number of templates loaded.
func (r *TemplateRenderer) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("reading template directory: %w", err)
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != TemplateExt {
			continue
		}
		body, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return n, fmt.Errorf("reading template %s: %w", e.Name(), err)
		}
		name := strings.TrimSuffix(e.Name(), TemplateExt)
		if err := r.Add(name, string(body)); err != nil {
			return n, err
		}
		n++
	}
	r.logger.Info("Loaded job templates", zap.String("dir", dir), zap.Int("count", n))
	return n, nil
}

func (r *TemplateRenderer) Render(name string, job *Job) ([]byte, error) {
	r.mu.RLock()
	t, ok := r.templates[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrTemplateNotFound)
	}
	if job == nil {
		return nil, fmt.Errorf("render %s: nil job", name)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, job); err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// Names returns the registered template names in order.
func (r *TemplateRenderer) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
