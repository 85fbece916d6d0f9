package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Parse decodes a schema definition. format is "json" or "yaml".
func Parse(data []byte, format string) (*SchemaDefinition, error) {
	var def SchemaDefinition
	switch format {
	case "json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&def); err != nil {
			return nil, fmt.Errorf("decoding schema json: %w", err)
		}
	case "yaml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&def); err != nil {
			return nil, fmt.Errorf("decoding schema yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported schema format %q", format)
	}
	return &def, nil
}

// LoadFile reads one schema definition; the extension picks the format.
func LoadFile(path string) (*SchemaDefinition, error) {
	format, ok := formatOf(path)
	if !ok {
		return nil, fmt.Errorf("schema file %s: unsupported extension", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema file: %w", err)
	}
	def, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("schema file %s: %w", path, err)
	}
	return def, nil
}

// LoadDir reads every .json, .yaml and .yml file in dir, in name order.
// Subdirectories are not descended into.
func LoadDir(dir string) ([]*SchemaDefinition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading schema directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := formatOf(entry.Name()); ok {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	defs := make([]*SchemaDefinition, 0, len(names))
	for _, name := range names {
		def, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// LoadInto loads every path (file or directory) and registers the result.
func LoadInto(r *Registry, paths ...string) error {
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("schema path: %w", err)
		}
		var defs []*SchemaDefinition
		if info.IsDir() {
			if defs, err = LoadDir(path); err != nil {
				return err
			}
		} else {
			def, err := LoadFile(path)
			if err != nil {
				return err
			}
			defs = append(defs, def)
		}
		for _, def := range defs {
			if err := r.Register(def); err != nil {
				return fmt.Errorf("registering schema from %s: %w", path, err)
			}
		}
	}
	return nil
}

func formatOf(path string) (string, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json", true
	case ".yaml", ".yml":
		return "yaml", true
	}
	return "", false
}
