// Package index builds keyed lookup structures over raw dataset payloads.
//
// A build turns one consistent dataset view into an immutable Snapshot:
// per-type primary and alternate key maps, plus directed relationship maps.
// Snapshots are never mutated after Build returns; readers hold one snapshot
// for the duration of a query and the coordinator swaps in successors whole.
package index

import (
	"encoding/json"
	"time"
)

// Entity is one record from a dataset. The index interprets only the key and
// relationship fields declared in the schema; everything else passes through
// untouched in Fields.
type Entity struct {
	Type   string
	Key    string // normalized primary key
	Fields map[string]any
}

// MarshalJSON renders the raw record, not the index bookkeeping.
func (e *Entity) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Fields)
}

// TypeIndex holds the keyed maps for one entity type.
type TypeIndex struct {
	Type string
	// Primary maps normalized primary key to entity. First writer wins on
	// duplicates; duplicates are a data-quality signal, not an error.
	Primary map[string]*Entity
	// Alternates are consulted after Primary, in declared priority order.
	Alternates []AltIndex
}

// AltIndex is one alternate-key map. Alternate keys are not assumed unique;
// first writer wins here too.
type AltIndex struct {
	Selector string
	Entries  map[string]*Entity
}

// Lookup resolves a normalized key against the primary map, then each
// alternate map in priority order. Total: any input yields (nil, false) at
// worst.
func (ti *TypeIndex) Lookup(key string) (*Entity, bool) {
	if ti == nil || key == "" {
		return nil, false
	}
	if e, ok := ti.Primary[key]; ok {
		return e, true
	}
	for i := range ti.Alternates {
		if e, ok := ti.Alternates[i].Entries[key]; ok {
			return e, true
		}
	}
	return nil, false
}

// RelationMap is one directed association, keyed by normalized source primary
// key. Target keys keep source-data order and are not deduplicated; they are
// resolved (and unresolvable ones omitted) at query time.
type RelationMap struct {
	Name   string
	Source string
	Target string
	Edges  map[string][]string
}

// Warning is one aggregated data-quality signal from a build.
type Warning struct {
	Kind    string `json:"kind"`
	Subject string `json:"subject"` // dataset, entity type or relationship name
	Count   int    `json:"count"`
	Detail  string `json:"detail,omitempty"`
}

// Warning kinds.
const (
	WarnMissingDataset  = "missing-dataset"
	WarnBadShape        = "bad-shape"     // payload not a recognizable sequence
	WarnBadSelector     = "bad-selector"  // schema selector failed to parse
	WarnMissingKey      = "missing-key"   // record skipped: no primary key
	WarnDuplicateKey    = "duplicate-key" // primary key seen before
	WarnDuplicateAlt    = "duplicate-alt-key"
	WarnUnresolvedRef   = "unresolved-ref" // relationship reference to a missing entity
	WarnRefShape        = "ref-shape"      // relationship field of an undeclared shape
)

// Stats summarizes a snapshot for observability.
type Stats struct {
	Entities        map[string]int    `json:"entities"`         // type -> indexed count
	Edges           map[string]int    `json:"edges"`            // relationship -> edge count
	UnresolvedRefs  map[string]uint64 `json:"unresolved_refs"`  // relationship -> distinct missing keys
	SkippedRecords  map[string]int    `json:"skipped_records"`  // type -> records without a primary key
	MissingDatasets []string          `json:"missing_datasets"`
}

// Snapshot is an immutable pairing of a store version with the fully-built
// indices and relationship maps for that version.
type Snapshot struct {
	Version   uint64
	BuiltAt   time.Time
	Types     map[string]*TypeIndex
	Relations map[string]*RelationMap
	Warnings  []Warning
	Stats     Stats
}

// TypeIndexFor returns the index for an entity type, or nil.
func (s *Snapshot) TypeIndexFor(entityType string) *TypeIndex {
	if s == nil {
		return nil
	}
	return s.Types[entityType]
}

// Relation returns a relationship map by name, or nil. Inverse maps declared
// in the schema are present under their own names.
func (s *Snapshot) Relation(name string) *RelationMap {
	if s == nil {
		return nil
	}
	return s.Relations[name]
}
