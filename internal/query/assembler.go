// Package query is the public read surface over the correlation index:
// single-entity lookup by any declared key, one-hop relationship traversal,
// and multi-hop composite profile assembly. Every operation is a pure read
// against exactly one snapshot — a rebuild completing mid-query is invisible
// to that query.
package query

import (
	"encoding/json"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/agentic-research/weft/api"
	"github.com/agentic-research/weft/internal/coordinator"
	"github.com/agentic-research/weft/internal/index"
)

// Assembler serves lookups against the coordinator's current snapshot.
type Assembler struct {
	schema *api.Schema
	coord  *coordinator.Coordinator
}

func NewAssembler(schema *api.Schema, coord *coordinator.Coordinator) *Assembler {
	return &Assembler{schema: schema, coord: coord}
}

// GetByKey resolves an entity by primary key first, then each alternate key
// in declared priority order. The lookup key is normalized exactly like
// build-time keys. Total: any input yields (nil, false) at worst.
func (a *Assembler) GetByKey(entityType, key string) (*index.Entity, bool) {
	return getByKey(a.coord.Current(), entityType, key)
}

func getByKey(snap *index.Snapshot, entityType, key string) (*index.Entity, bool) {
	if snap == nil {
		return nil, false
	}
	return snap.TypeIndexFor(entityType).Lookup(index.NormalizeKey(key))
}

// GetRelated returns the entities related to one entity through a declared
// relationship (or declared inverse), in source-data order. Target keys that
// no longer resolve to an entity are silently omitted; they were already
// counted as build warnings.
func (a *Assembler) GetRelated(entityType, key, relationship string) []*index.Entity {
	snap := a.coord.Current()
	root, ok := getByKey(snap, entityType, key)
	if !ok {
		return nil
	}
	return related(snap, relationship, root)
}

// related traverses one relationship map from an already-resolved entity.
// The map is keyed by canonical primary key, so the caller's alternate-key
// spelling has already been folded away.
func related(snap *index.Snapshot, relationship string, root *index.Entity) []*index.Entity {
	rm := snap.Relation(relationship)
	if rm == nil || rm.Source != root.Type {
		return nil
	}
	targets := snap.TypeIndexFor(rm.Target)
	var out []*index.Entity
	for _, key := range rm.Edges[root.Key] {
		if e, ok := targets.Lookup(key); ok {
			out = append(out, e)
		}
	}
	return out
}

// Profile is a transient composite view: one root entity plus the results of
// its declared relationship traversals, keyed by section name in declared
// order. Never persisted; recomputed per query.
type Profile struct {
	Name     string
	Version  uint64
	Root     *index.Entity
	Sections *orderedmap.OrderedMap[string, []*index.Entity]
}

// MarshalJSON renders the profile with its sections in declared order.
func (p *Profile) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Profile       string                                          `json:"profile"`
		Version       uint64                                          `json:"snapshot_version"`
		Entity        *index.Entity                                   `json:"entity"`
		Relationships *orderedmap.OrderedMap[string, []*index.Entity] `json:"relationships"`
	}{p.Name, p.Version, p.Root, p.Sections})
}

// GetProfile assembles a declared profile rooted at one entity. The whole
// assembly reads a single snapshot. A root that does not resolve yields
// (nil, false); an unresolved related entity never does — its section is just
// shorter, possibly empty.
func (a *Assembler) GetProfile(entityType, key, profileName string) (*Profile, bool) {
	decl := a.schema.Profile(profileName)
	if decl == nil || decl.Root != entityType {
		return nil, false
	}
	snap := a.coord.Current()
	root, ok := getByKey(snap, entityType, key)
	if !ok {
		return nil, false
	}

	p := &Profile{
		Name:     decl.Name,
		Version:  snap.Version,
		Root:     root,
		Sections: orderedmap.New[string, []*index.Entity](),
	}
	for _, sec := range decl.Sections {
		hop := related(snap, sec.Relationship, root)
		if sec.Then == "" {
			p.Sections.Set(sec.Key(), hop)
			continue
		}
		// Two hops, depth-first per intermediate, same snapshot throughout.
		var merged []*index.Entity
		for _, mid := range hop {
			merged = append(merged, related(snap, sec.Then, mid)...)
		}
		p.Sections.Set(sec.Key(), merged)
	}
	return p, true
}

// Status exposes the coordinator's state, snapshot version and the most
// recent build's warnings. Observability only.
func (a *Assembler) Status() coordinator.Status {
	return a.coord.Status()
}
