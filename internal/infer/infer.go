// Package infer proposes a correlation schema from the datasets themselves:
// a primary-key field guess per dataset, alternate-key candidates, and
// foreign-key relationship candidates whose values overlap another dataset's
// keys. Bootstrap aid only — the proposal is meant to be reviewed and saved,
// not trusted blindly.
package infer

import (
	"math/rand"
	"sort"
	"strings"

	"github.com/agentic-research/weft/api"
	"github.com/agentic-research/weft/internal/dataset"
	"github.com/agentic-research/weft/internal/index"
)

// Config controls the inference pipeline.
type Config struct {
	SampleSize int     // max records sampled per dataset (default 1000)
	MinOverlap float64 // min fraction of FK values resolving in a dataset (default 0.5)
	Seed       int64   // random seed for reservoir sampling (0 = deterministic)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{SampleSize: 1000, MinOverlap: 0.5}
}

// Inferrer proposes schemas from sampled records.
type Inferrer struct {
	Config Config
}

// Alternate-key field names worth indexing, in proposal priority order.
var altKeyFields = []string{
	"userPrincipalName", "serialNumber", "displayName", "deviceName",
	"name", "email", "upn", "url",
}

// fieldStats accumulates per-field observations over a dataset sample.
type fieldStats struct {
	present  int
	strings  int
	arrays   int
	distinct map[string]struct{}
}

type datasetProfile struct {
	name    string
	entType string
	sample  []map[string]any
	fields  map[string]*fieldStats
	keys    map[string]struct{} // normalized values of the guessed primary key
	pk      string
}

// InferSchema proposes an api.Schema from one consistent view of the store.
func (inf *Inferrer) InferSchema(view dataset.View) *api.Schema {
	cfg := inf.Config
	if cfg.SampleSize <= 0 {
		cfg.SampleSize = 1000
	}
	if cfg.MinOverlap <= 0 {
		cfg.MinOverlap = 0.5
	}

	names := make([]string, 0, len(view.Payloads))
	for name := range view.Payloads {
		names = append(names, name)
	}
	sort.Strings(names)

	var profiles []*datasetProfile
	for _, name := range names {
		records, ok := index.ExtractRecords(view.Payloads[name], "")
		if !ok || len(records) == 0 {
			continue
		}
		p := profileDataset(name, sampleRecords(records, cfg.SampleSize, cfg.Seed))
		if p.pk == "" {
			continue
		}
		profiles = append(profiles, p)
	}

	schema := &api.Schema{Version: "v1-inferred"}
	for _, p := range profiles {
		ent := api.Entity{
			Type:    p.entType,
			Dataset: p.name,
			Key:     "$." + p.pk,
		}
		for _, alt := range altKeyFields {
			if st, ok := p.fields[alt]; ok && alt != p.pk && st.strings > 0 {
				ent.AltKeys = append(ent.AltKeys, "$."+alt)
			}
		}
		schema.Entities = append(schema.Entities, ent)
	}
	for _, p := range profiles {
		schema.Relationships = append(schema.Relationships, inf.proposeRelations(p, profiles, cfg)...)
	}
	return schema
}

// profileDataset samples one dataset and guesses its primary key field.
func profileDataset(name string, sample []any) *datasetProfile {
	p := &datasetProfile{
		name:    name,
		entType: strings.TrimSuffix(name, "s"),
		fields:  make(map[string]*fieldStats),
		keys:    make(map[string]struct{}),
	}
	if p.entType == "" {
		p.entType = name
	}
	for _, rec := range sample {
		fields, ok := rec.(map[string]any)
		if !ok {
			continue
		}
		p.sample = append(p.sample, fields)
		for field, v := range fields {
			st := p.fields[field]
			if st == nil {
				st = &fieldStats{distinct: make(map[string]struct{})}
				p.fields[field] = st
			}
			st.present++
			switch v.(type) {
			case string:
				st.strings++
			case []any:
				st.arrays++
			}
			if k := index.NormalizeKey(v); k != "" {
				st.distinct[k] = struct{}{}
			}
		}
	}

	p.pk = guessPrimaryKey(p)
	if p.pk != "" {
		for _, fields := range p.sample {
			if k := index.NormalizeKey(fields[p.pk]); k != "" {
				p.keys[k] = struct{}{}
			}
		}
	}
	return p
}

// guessPrimaryKey prefers a ubiquitous, fully-distinct "id" field, then any
// id-suffixed field with the same properties.
func guessPrimaryKey(p *datasetProfile) string {
	if isKeyLike(p, "id") {
		return "id"
	}
	var candidates []string
	for field := range p.fields {
		if strings.HasSuffix(strings.ToLower(field), "id") && isKeyLike(p, field) {
			candidates = append(candidates, field)
		}
	}
	sort.Strings(candidates)
	if len(candidates) > 0 {
		return candidates[0]
	}
	return ""
}

func isKeyLike(p *datasetProfile, field string) bool {
	st, ok := p.fields[field]
	if !ok || len(p.sample) == 0 {
		return false
	}
	return st.present == len(p.sample) && len(st.distinct) == st.present
}

// proposeRelations finds fields of p whose values overlap another dataset's
// primary keys: scalar id-suffixed fields become origin=target foreign keys,
// array fields become origin=source reference lists.
func (inf *Inferrer) proposeRelations(p *datasetProfile, all []*datasetProfile, cfg Config) []api.Relationship {
	var rels []api.Relationship
	fieldNames := make([]string, 0, len(p.fields))
	for field := range p.fields {
		fieldNames = append(fieldNames, field)
	}
	sort.Strings(fieldNames)

	for _, field := range fieldNames {
		if field == p.pk {
			continue
		}
		st := p.fields[field]
		values := collectRefValues(p.sample, field, st.arrays > 0)
		if len(values) == 0 {
			continue
		}
		other := bestMatch(values, p, all, cfg.MinOverlap)
		if other == nil {
			continue
		}
		if st.arrays > 0 {
			rels = append(rels, api.Relationship{
				Name:     field,
				Source:   p.entType,
				Target:   other.entType,
				Origin:   api.OriginSource,
				Selector: "$." + field + "[*]",
			})
		} else {
			rels = append(rels, api.Relationship{
				Name:     p.name + "By" + capitalize(field),
				Source:   other.entType,
				Target:   p.entType,
				Origin:   api.OriginTarget,
				Selector: "$." + field,
			})
		}
	}
	return rels
}

// collectRefValues gathers the normalized candidate reference values of one
// field across the sample, unwrapping arrays and object refs the same way the
// builder does.
func collectRefValues(sample []map[string]any, field string, isArray bool) []string {
	var out []string
	for _, fields := range sample {
		v, ok := fields[field]
		if !ok {
			continue
		}
		if isArray {
			items, ok := v.([]any)
			if !ok {
				continue
			}
			for _, item := range items {
				if obj, ok := item.(map[string]any); ok {
					item = obj["id"]
				}
				if k := index.NormalizeKey(item); k != "" {
					out = append(out, k)
				}
			}
			continue
		}
		if k := index.NormalizeKey(v); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// bestMatch returns the dataset whose primary keys resolve the largest
// fraction of values, if that fraction clears the threshold.
func bestMatch(values []string, self *datasetProfile, all []*datasetProfile, minOverlap float64) *datasetProfile {
	var best *datasetProfile
	bestRatio := minOverlap
	for _, other := range all {
		if other == self {
			continue
		}
		hits := 0
		for _, v := range values {
			if _, ok := other.keys[v]; ok {
				hits++
			}
		}
		ratio := float64(hits) / float64(len(values))
		if ratio >= bestRatio {
			best, bestRatio = other, ratio
		}
	}
	return best
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// sampleRecords performs reservoir sampling on a record slice.
func sampleRecords(records []any, k int, seed int64) []any {
	if len(records) <= k {
		return records
	}
	rng := rand.New(rand.NewSource(seed))
	reservoir := make([]any, k)
	copy(reservoir, records[:k])
	for i := k; i < len(records); i++ {
		j := rng.Intn(i + 1)
		if j < k {
			reservoir[j] = records[i]
		}
	}
	return reservoir
}
