package index

import (
	"log/slog"
	"sort"
	"time"

	"github.com/RoaringBitmap/roaring"
	"github.com/agentic-research/weft/api"
	"github.com/agentic-research/weft/internal/dataset"
)

// Builder turns one consistent dataset view into a Snapshot, driven entirely
// by the declarative schema. Build is deterministic for a given view and
// never fails: per-record problems are counted as warnings, and a dataset
// that is absent or unrecognizable soft-fails to an empty index for its type.
type Builder struct {
	schema *api.Schema
	log    *slog.Logger
}

func NewBuilder(schema *api.Schema, log *slog.Logger) *Builder {
	if log == nil {
		log = slog.Default()
	}
	return &Builder{schema: schema, log: log}
}

// relPlan is one relationship with its compiled selector and output maps,
// attached to the entity type whose records carry the link.
type relPlan struct {
	decl     *api.Relationship
	sel      *selector
	refField string
	forward  *RelationMap
	inverse  *RelationMap // nil unless declared
}

// warnKey aggregates warnings by kind and subject.
type warnKey struct {
	kind    string
	subject string
}

type buildState struct {
	snap     *Snapshot
	counts   map[warnKey]int
	interner map[string]uint32
	nextID   uint32
}

func (st *buildState) warn(kind, subject string) {
	st.counts[warnKey{kind, subject}]++
}

func (st *buildState) warnN(kind, subject string, n int) {
	if n > 0 {
		st.counts[warnKey{kind, subject}] += n
	}
}

// intern maps a (type, key) pair to a stable uint32 for bitmap accounting.
func (st *buildState) intern(entityType, key string) uint32 {
	k := entityType + "\x00" + key
	if id, ok := st.interner[k]; ok {
		return id
	}
	id := st.nextID
	st.nextID++
	st.interner[k] = id
	return id
}

// Build constructs a snapshot from one consistent dataset view.
func (b *Builder) Build(view dataset.View) *Snapshot {
	st := &buildState{
		snap: &Snapshot{
			Version:   view.Version,
			BuiltAt:   time.Now(),
			Types:     make(map[string]*TypeIndex, len(b.schema.Entities)),
			Relations: make(map[string]*RelationMap, len(b.schema.Relationships)),
			Stats: Stats{
				Entities:       make(map[string]int),
				Edges:          make(map[string]int),
				UnresolvedRefs: make(map[string]uint64),
				SkippedRecords: make(map[string]int),
			},
		},
		counts:   make(map[warnKey]int),
		interner: make(map[string]uint32),
	}

	plans, byCarrier := b.compileRelations(st)

	// Pass A: index every entity type and collect raw edges from the records
	// that carry each relationship.
	for i := range b.schema.Entities {
		decl := &b.schema.Entities[i]
		b.buildType(st, decl, view.Payloads, byCarrier[decl.Type])
	}

	// Pass B: resolution accounting. Needs every type index in place first —
	// a group may reference accounts whose dataset is indexed later.
	for _, p := range plans {
		b.accountRefs(st, p)
	}

	st.snap.Warnings = collectWarnings(st.counts)
	b.log.Info("index build complete",
		"version", st.snap.Version,
		"types", len(st.snap.Types),
		"relations", len(st.snap.Relations),
		"warnings", len(st.snap.Warnings))
	return st.snap
}

// compileRelations prepares every declared relationship map (and inverse),
// grouped by carrying entity type. Maps exist even when no record contributes
// an edge, so traversal of a declared relationship is always total.
func (b *Builder) compileRelations(st *buildState) ([]*relPlan, map[string][]*relPlan) {
	var plans []*relPlan
	byCarrier := make(map[string][]*relPlan)
	for i := range b.schema.Relationships {
		decl := &b.schema.Relationships[i]
		sel, err := compileSelector(decl.Selector)
		if err != nil {
			st.warn(WarnBadSelector, decl.Name)
			b.log.Warn("relationship selector rejected", "relationship", decl.Name, "err", err)
			continue
		}
		p := &relPlan{
			decl:     decl,
			sel:      sel,
			refField: decl.RefField,
			forward:  &RelationMap{Name: decl.Name, Source: decl.Source, Target: decl.Target, Edges: make(map[string][]string)},
		}
		if p.refField == "" {
			p.refField = "id"
		}
		if decl.Inverse != "" {
			p.inverse = &RelationMap{Name: decl.Inverse, Source: decl.Target, Target: decl.Source, Edges: make(map[string][]string)}
		}
		st.snap.Relations[decl.Name] = p.forward
		if p.inverse != nil {
			st.snap.Relations[p.inverse.Name] = p.inverse
		}
		carrier := decl.Source
		if decl.Origin == api.OriginTarget {
			carrier = decl.Target
		}
		plans = append(plans, p)
		byCarrier[carrier] = append(byCarrier[carrier], p)
	}
	return plans, byCarrier
}

// buildType indexes one entity type and walks its relationship-carrying
// fields in the same record pass, so a record that loses first-writer-wins on
// its primary key contributes no keys and no edges.
func (b *Builder) buildType(st *buildState, decl *api.Entity, payloads map[string]any, typePlans []*relPlan) {
	ti := &TypeIndex{Type: decl.Type, Primary: make(map[string]*Entity)}
	st.snap.Types[decl.Type] = ti

	keySel, err := compileSelector(decl.Key)
	if err != nil {
		st.warn(WarnBadSelector, decl.Type)
		b.log.Warn("primary key selector rejected", "type", decl.Type, "err", err)
		return
	}

	var altSels []*selector
	for _, alt := range decl.AltKeys {
		sel, serr := compileSelector(alt)
		if serr != nil {
			st.warn(WarnBadSelector, decl.Type)
			b.log.Warn("alternate key selector rejected", "type", decl.Type, "selector", alt, "err", serr)
			continue
		}
		altSels = append(altSels, sel)
		ti.Alternates = append(ti.Alternates, AltIndex{Selector: alt, Entries: make(map[string]*Entity)})
	}

	payload, present := payloads[decl.Dataset]
	if !present {
		st.warn(WarnMissingDataset, decl.Dataset)
		st.snap.Stats.MissingDatasets = append(st.snap.Stats.MissingDatasets, decl.Dataset)
		return
	}
	records, ok := ExtractRecords(payload, decl.Collection)
	if !ok {
		st.warn(WarnBadShape, decl.Dataset)
		b.log.Warn("dataset payload not a recognizable sequence", "dataset", decl.Dataset)
		return
	}

	for _, rec := range records {
		key := NormalizeKey(keySel.first(rec))
		if key == "" {
			st.warn(WarnMissingKey, decl.Type)
			st.snap.Stats.SkippedRecords[decl.Type]++
			continue
		}
		if _, dup := ti.Primary[key]; dup {
			// First writer wins; the loser is a data-quality signal.
			st.warn(WarnDuplicateKey, decl.Type)
			continue
		}

		fields, isMap := rec.(map[string]any)
		if !isMap {
			fields = map[string]any{"value": rec}
		}
		ent := &Entity{Type: decl.Type, Key: key, Fields: fields}
		ti.Primary[key] = ent

		for i, sel := range altSels {
			altKey := NormalizeKey(sel.first(rec))
			if altKey == "" {
				continue
			}
			entries := ti.Alternates[i].Entries
			if _, dup := entries[altKey]; dup {
				st.warn(WarnDuplicateAlt, decl.Type)
				continue
			}
			entries[altKey] = ent
		}

		for _, p := range typePlans {
			b.collectEdges(st, p, rec, key)
		}
	}
	st.snap.Stats.Entities[decl.Type] = len(ti.Primary)
}

// collectEdges appends the edges carried by one record. For origin=source the
// record's key is the map key and its references are the values; for
// origin=target the record's key is the value and its foreign key is the map
// key. Source-data order is preserved and duplicates are kept.
func (b *Builder) collectEdges(st *buildState, p *relPlan, rec any, recKey string) {
	for _, ref := range p.sel.all(rec) {
		key, ok := refKey(ref, p.refField)
		if !ok {
			st.warn(WarnRefShape, p.decl.Name)
			continue
		}
		var src, tgt string
		if p.decl.Origin == api.OriginTarget {
			src, tgt = key, recKey
		} else {
			src, tgt = recKey, key
		}
		p.forward.Edges[src] = append(p.forward.Edges[src], tgt)
		if p.inverse != nil {
			p.inverse.Edges[tgt] = append(p.inverse.Edges[tgt], src)
		}
	}
}

// accountRefs counts, per relationship, the distinct referenced keys that do
// not resolve in their entity type's index. Distinctness comes from a roaring
// bitmap over interned keys, so a member referenced by fifty groups counts
// once.
func (b *Builder) accountRefs(st *buildState, p *relPlan) {
	unresolved := roaring.New()
	edgeCount := 0

	refType := p.decl.Target
	if p.decl.Origin == api.OriginTarget {
		refType = p.decl.Source
	}
	refIndex := st.snap.Types[refType]

	check := func(key string) {
		if _, ok := refIndex.Lookup(key); !ok {
			unresolved.Add(st.intern(refType, key))
		}
	}

	if p.decl.Origin == api.OriginTarget {
		// The referenced side is the map key (the foreign key).
		for src, tgts := range p.forward.Edges {
			check(src)
			edgeCount += len(tgts)
		}
	} else {
		// The referenced side is the appended target key.
		for _, tgts := range p.forward.Edges {
			edgeCount += len(tgts)
			for _, tgt := range tgts {
				check(tgt)
			}
		}
	}

	st.snap.Stats.Edges[p.decl.Name] = edgeCount
	if card := unresolved.GetCardinality(); card > 0 {
		st.snap.Stats.UnresolvedRefs[p.decl.Name] = card
		st.warnN(WarnUnresolvedRef, p.decl.Name, int(card))
		b.log.Debug("unresolved relationship references",
			"relationship", p.decl.Name, "type", refType, "distinct", card)
	}
}

// collectWarnings flattens the aggregated counters into a stable, sorted list.
func collectWarnings(counts map[warnKey]int) []Warning {
	warnings := make([]Warning, 0, len(counts))
	for k, n := range counts {
		warnings = append(warnings, Warning{Kind: k.kind, Subject: k.subject, Count: n})
	}
	sort.Slice(warnings, func(i, j int) bool {
		if warnings[i].Kind != warnings[j].Kind {
			return warnings[i].Kind < warnings[j].Kind
		}
		return warnings[i].Subject < warnings[j].Subject
	})
	return warnings
}
