package api

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a schema from a JSON or YAML file (by extension) and validates it.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}

	var schema Schema
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &schema); err != nil {
			return nil, fmt.Errorf("parse yaml schema %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &schema); err != nil {
			return nil, fmt.Errorf("parse json schema %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported schema extension %q (want .json, .yaml or .yml)", ext)
	}

	if err := schema.Validate(); err != nil {
		return nil, fmt.Errorf("invalid schema %s: %w", path, err)
	}
	return &schema, nil
}

// Validate checks internal consistency: unique names, resolvable type and
// relationship references, recognized origins. It does not touch any data.
func (s *Schema) Validate() error {
	types := make(map[string]bool, len(s.Entities))
	for _, e := range s.Entities {
		if e.Type == "" {
			return fmt.Errorf("entity with empty type")
		}
		if types[e.Type] {
			return fmt.Errorf("duplicate entity type %q", e.Type)
		}
		if e.Dataset == "" {
			return fmt.Errorf("entity %q: missing dataset", e.Type)
		}
		if e.Key == "" {
			return fmt.Errorf("entity %q: missing key selector", e.Type)
		}
		types[e.Type] = true
	}

	rels := make(map[string]bool, len(s.Relationships))
	for _, r := range s.Relationships {
		if r.Name == "" {
			return fmt.Errorf("relationship with empty name")
		}
		if rels[r.Name] {
			return fmt.Errorf("duplicate relationship %q", r.Name)
		}
		rels[r.Name] = true
		if !types[r.Source] {
			return fmt.Errorf("relationship %q: unknown source type %q", r.Name, r.Source)
		}
		if !types[r.Target] {
			return fmt.Errorf("relationship %q: unknown target type %q", r.Name, r.Target)
		}
		if r.Origin != OriginSource && r.Origin != OriginTarget {
			return fmt.Errorf("relationship %q: origin must be %q or %q", r.Name, OriginSource, OriginTarget)
		}
		if r.Selector == "" {
			return fmt.Errorf("relationship %q: missing selector", r.Name)
		}
	}
	inverses := make(map[string]bool, len(s.Relationships))
	for _, r := range s.Relationships {
		if r.Inverse == "" {
			continue
		}
		if rels[r.Inverse] {
			return fmt.Errorf("relationship %q: inverse %q collides with a declared relationship", r.Name, r.Inverse)
		}
		if inverses[r.Inverse] {
			return fmt.Errorf("relationship %q: inverse %q already declared by another relationship", r.Name, r.Inverse)
		}
		inverses[r.Inverse] = true
	}

	profiles := make(map[string]bool, len(s.Profiles))
	for _, p := range s.Profiles {
		if p.Name == "" {
			return fmt.Errorf("profile with empty name")
		}
		if profiles[p.Name] {
			return fmt.Errorf("duplicate profile %q", p.Name)
		}
		profiles[p.Name] = true
		if !types[p.Root] {
			return fmt.Errorf("profile %q: unknown root type %q", p.Name, p.Root)
		}
		for _, sec := range p.Sections {
			rel := s.Relationship(sec.Relationship)
			if rel == nil {
				rel = s.inverseOf(sec.Relationship)
			}
			if rel == nil {
				return fmt.Errorf("profile %q: unknown relationship %q", p.Name, sec.Relationship)
			}
			if sec.Then != "" && s.Relationship(sec.Then) == nil && s.inverseOf(sec.Then) == nil {
				return fmt.Errorf("profile %q: unknown second-hop relationship %q", p.Name, sec.Then)
			}
		}
	}
	return nil
}

// inverseOf returns the forward declaration whose Inverse matches name, or nil.
func (s *Schema) inverseOf(name string) *Relationship {
	for i := range s.Relationships {
		if s.Relationships[i].Inverse == name {
			return &s.Relationships[i]
		}
	}
	return nil
}
