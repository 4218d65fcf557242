package api

// Schema declares how raw datasets map onto a correlation index.
// It is the single declarative input to the index builder: entity types with
// their key fields, the directed relationships between them, and the
// composite profile views assembled from those relationships.
type Schema struct {
	// Version of the weft schema.
	Version string `json:"version" yaml:"version"`
	// Entities declares one indexed entity type per dataset.
	Entities []Entity `json:"entities,omitempty" yaml:"entities,omitempty"`
	// Relationships declares the directed associations between entity types.
	Relationships []Relationship `json:"relationships,omitempty" yaml:"relationships,omitempty"`
	// Profiles declares the composite views served by GetProfile.
	Profiles []Profile `json:"profiles,omitempty" yaml:"profiles,omitempty"`
}

// Entity declares one entity type and where its records come from.
type Entity struct {
	// Type is the entity type name (e.g. "account").
	Type string `json:"type" yaml:"type"`
	// Dataset is the dataset name the records are read from.
	Dataset string `json:"dataset" yaml:"dataset"`
	// Collection optionally names the payload field wrapping the record
	// sequence. Bare arrays and conventional wrappers are accepted without it.
	Collection string `json:"collection,omitempty" yaml:"collection,omitempty"`
	// Key is a JSONPath selector for the primary key, evaluated per record.
	Key string `json:"key" yaml:"key"`
	// AltKeys are JSONPath selectors for alternate keys, in lookup priority
	// order. Alternate keys are not assumed unique.
	AltKeys []string `json:"alt_keys,omitempty" yaml:"alt_keys,omitempty"`
}

// Relationship origin values: which side's records carry the link.
const (
	// OriginSource: the source record embeds references to targets
	// (e.g. a group record listing its members).
	OriginSource = "source"
	// OriginTarget: the target record carries a foreign key back to the
	// source (e.g. a device record's ownerId).
	OriginTarget = "target"
)

// Relationship declares a named, directed association between two entity
// types, with exactly one extraction rule.
type Relationship struct {
	// Name of the relationship (e.g. "devices").
	Name string `json:"name" yaml:"name"`
	// Source entity type the map is keyed by.
	Source string `json:"source" yaml:"source"`
	// Target entity type the map's values resolve against.
	Target string `json:"target" yaml:"target"`
	// Origin is "source" or "target" (see OriginSource, OriginTarget).
	Origin string `json:"origin" yaml:"origin"`
	// Selector is a JSONPath evaluated against the carrying record.
	// For origin=source it yields target references; for origin=target it
	// yields the foreign key pointing at the source.
	Selector string `json:"selector" yaml:"selector"`
	// RefField names the field read when the selector yields an object
	// rather than a bare key. Defaults to "id".
	RefField string `json:"ref_field,omitempty" yaml:"ref_field,omitempty"`
	// Inverse optionally names a reverse map (target key -> source keys)
	// built once at build time, never computed per query.
	Inverse string `json:"inverse,omitempty" yaml:"inverse,omitempty"`
}

// Profile declares a composite view: one root entity joined with the results
// of several relationship traversals.
type Profile struct {
	// Name of the profile (e.g. "account-overview").
	Name string `json:"name" yaml:"name"`
	// Root entity type the profile is rooted at.
	Root string `json:"root" yaml:"root"`
	// Sections are evaluated in declared order.
	Sections []ProfileSection `json:"sections" yaml:"sections"`
}

// ProfileSection is one relationship traversal inside a profile.
type ProfileSection struct {
	// Relationship is the first-hop relationship name. Its source type must
	// match the profile root.
	Relationship string `json:"relationship" yaml:"relationship"`
	// Then optionally names a second-hop relationship evaluated depth-first
	// on each first-hop result (e.g. sites of the groups an account owns).
	Then string `json:"then,omitempty" yaml:"then,omitempty"`
	// As overrides the section name in the assembled profile.
	// Defaults to the relationship name (or "rel/then" for two hops).
	As string `json:"as,omitempty" yaml:"as,omitempty"`
}

// Key returns the section's name in the assembled profile.
func (s ProfileSection) Key() string {
	if s.As != "" {
		return s.As
	}
	if s.Then != "" {
		return s.Relationship + "/" + s.Then
	}
	return s.Relationship
}

// Entity returns the declaration for an entity type, or nil.
func (s *Schema) Entity(entityType string) *Entity {
	for i := range s.Entities {
		if s.Entities[i].Type == entityType {
			return &s.Entities[i]
		}
	}
	return nil
}

// Relationship returns the declaration for a relationship name, or nil.
func (s *Schema) Relationship(name string) *Relationship {
	for i := range s.Relationships {
		if s.Relationships[i].Name == name {
			return &s.Relationships[i]
		}
	}
	return nil
}

// Profile returns the declaration for a profile name, or nil.
func (s *Schema) Profile(name string) *Profile {
	for i := range s.Profiles {
		if s.Profiles[i].Name == name {
			return &s.Profiles[i]
		}
	}
	return nil
}
