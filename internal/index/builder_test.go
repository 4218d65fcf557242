package index

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/weft/api"
	"github.com/agentic-research/weft/internal/dataset"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSchema() *api.Schema {
	return &api.Schema{
		Version: "test",
		Entities: []api.Entity{
			{Type: "account", Dataset: "accounts", Key: "$.id", AltKeys: []string{"$.upn", "$.displayName"}},
			{Type: "device", Dataset: "devices", Key: "$.id", AltKeys: []string{"$.serialNumber"}},
			{Type: "group", Dataset: "groups", Key: "$.id"},
			{Type: "site", Dataset: "sites", Key: "$.id"},
		},
		Relationships: []api.Relationship{
			{Name: "devices", Source: "account", Target: "device", Origin: api.OriginTarget, Selector: "$.ownerId", Inverse: "owner"},
			{Name: "members", Source: "group", Target: "account", Origin: api.OriginSource, Selector: "$.members[*]", Inverse: "memberOf"},
			{Name: "owners", Source: "group", Target: "account", Origin: api.OriginSource, Selector: "$.owners[*]", Inverse: "ownsGroups"},
			{Name: "groupSites", Source: "group", Target: "site", Origin: api.OriginTarget, Selector: "$.groupId"},
		},
	}
}

func rec(kv ...any) map[string]any {
	m := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i].(string)] = kv[i+1]
	}
	return m
}

func view(version uint64, payloads map[string]any) dataset.View {
	return dataset.View{Version: version, Payloads: payloads}
}

func findWarning(warnings []Warning, kind, subject string) *Warning {
	for i := range warnings {
		if warnings[i].Kind == kind && warnings[i].Subject == subject {
			return &warnings[i]
		}
	}
	return nil
}

func TestBuild_PrimaryAndAlternateKeys(t *testing.T) {
	b := NewBuilder(testSchema(), discardLogger())
	snap := b.Build(view(1, map[string]any{
		"accounts": []any{
			rec("id", "U1", "upn", " Alice@X.com ", "displayName", "Alice"),
		},
	}))

	ti := snap.TypeIndexFor("account")
	require.NotNil(t, ti)

	e, ok := ti.Lookup("u1")
	require.True(t, ok, "primary key lookup")
	assert.Equal(t, "U1", e.Fields["id"])

	e, ok = ti.Lookup("alice@x.com")
	require.True(t, ok, "alternate key lookup, normalized")
	assert.Equal(t, "u1", e.Key)

	assert.Equal(t, 1, snap.Stats.Entities["account"])
}

func TestBuild_FirstWriterWinsOnDuplicatePrimaryKey(t *testing.T) {
	b := NewBuilder(testSchema(), discardLogger())
	snap := b.Build(view(1, map[string]any{
		"accounts": []any{
			rec("id", "u1", "displayName", "first"),
			rec("id", "u1", "displayName", "second"),
		},
	}))

	e, ok := snap.TypeIndexFor("account").Lookup("u1")
	require.True(t, ok)
	assert.Equal(t, "first", e.Fields["displayName"])

	w := findWarning(snap.Warnings, WarnDuplicateKey, "account")
	require.NotNil(t, w, "duplicate primary key is a data-quality signal")
	assert.Equal(t, 1, w.Count)
}

func TestBuild_FirstWriterWinsOnSharedAlternateKey(t *testing.T) {
	b := NewBuilder(testSchema(), discardLogger())
	snap := b.Build(view(1, map[string]any{
		"accounts": []any{
			rec("id", "u1", "upn", "dup@x.com"),
			rec("id", "u2", "upn", "dup@x.com"),
		},
	}))

	e, ok := snap.TypeIndexFor("account").Lookup("dup@x.com")
	require.True(t, ok)
	assert.Equal(t, "u1", e.Key, "earliest-inserted entity wins the collision")

	// Both records are still indexed under their primary keys.
	_, ok = snap.TypeIndexFor("account").Lookup("u2")
	assert.True(t, ok)
	require.NotNil(t, findWarning(snap.Warnings, WarnDuplicateAlt, "account"))
}

func TestBuild_LookupPriorityAcrossKeyMaps(t *testing.T) {
	// One key can be live in several maps at once; resolution order is the
	// primary map first, then alternates in declared order (upn before
	// displayName for accounts).
	b := NewBuilder(testSchema(), discardLogger())
	snap := b.Build(view(1, map[string]any{
		"accounts": []any{
			rec("id", "u1", "displayName", "u2"),
			rec("id", "u2", "upn", "team@x.com"),
			rec("id", "u3", "displayName", "Team@X.com"),
		},
	}))

	ti := snap.TypeIndexFor("account")

	e, ok := ti.Lookup("u2")
	require.True(t, ok)
	assert.Equal(t, "u2", e.Key, "primary key beats another record's alternate")

	e, ok = ti.Lookup("team@x.com")
	require.True(t, ok)
	assert.Equal(t, "u2", e.Key, "earlier-declared alternate map beats a later one")

	// The shadowed entries are still reachable through their own primary keys.
	_, ok = ti.Lookup("u1")
	assert.True(t, ok)
	_, ok = ti.Lookup("u3")
	assert.True(t, ok)

	// Distinct maps, no collisions within any one of them.
	assert.Nil(t, findWarning(snap.Warnings, WarnDuplicateKey, "account"))
	assert.Nil(t, findWarning(snap.Warnings, WarnDuplicateAlt, "account"))
}

func TestBuild_SkipsRecordsWithoutPrimaryKey(t *testing.T) {
	b := NewBuilder(testSchema(), discardLogger())
	snap := b.Build(view(1, map[string]any{
		"accounts": []any{
			rec("upn", "nokey@x.com"),
			rec("id", "  "),
			rec("id", "u1"),
		},
	}))

	assert.Equal(t, 1, snap.Stats.Entities["account"])
	assert.Equal(t, 2, snap.Stats.SkippedRecords["account"])
	w := findWarning(snap.Warnings, WarnMissingKey, "account")
	require.NotNil(t, w)
	assert.Equal(t, 2, w.Count)
}

func TestBuild_MissingDatasetSoftFails(t *testing.T) {
	b := NewBuilder(testSchema(), discardLogger())
	snap := b.Build(view(1, map[string]any{
		"accounts": []any{rec("id", "u1")},
		"groups":   []any{rec("id", "g1", "members", []any{"u1"})},
	}))

	// The absent type still has a total, empty index.
	ti := snap.TypeIndexFor("device")
	require.NotNil(t, ti)
	_, ok := ti.Lookup("anything")
	assert.False(t, ok)

	require.NotNil(t, findWarning(snap.Warnings, WarnMissingDataset, "devices"))
	assert.Contains(t, snap.Stats.MissingDatasets, "devices")

	// Other types are unaffected.
	_, ok = snap.TypeIndexFor("account").Lookup("u1")
	assert.True(t, ok)
	assert.Equal(t, []string{"u1"}, snap.Relation("members").Edges["g1"])
}

func TestBuild_UnrecognizablePayloadShapeSoftFails(t *testing.T) {
	b := NewBuilder(testSchema(), discardLogger())
	snap := b.Build(view(1, map[string]any{
		"accounts": "definitely not a dataset",
	}))

	assert.Equal(t, 0, snap.Stats.Entities["account"])
	require.NotNil(t, findWarning(snap.Warnings, WarnBadShape, "accounts"))
}

func TestBuild_AcceptsWrappedPayload(t *testing.T) {
	b := NewBuilder(testSchema(), discardLogger())
	snap := b.Build(view(1, map[string]any{
		"accounts": map[string]any{"value": []any{rec("id", "u1")}},
	}))

	_, ok := snap.TypeIndexFor("account").Lookup("u1")
	assert.True(t, ok)
}

func TestBuild_ForeignKeyRelationshipAndInverse(t *testing.T) {
	b := NewBuilder(testSchema(), discardLogger())
	snap := b.Build(view(1, map[string]any{
		"accounts": []any{rec("id", "u1")},
		"devices": []any{
			rec("id", "d1", "ownerId", "u1"),
			rec("id", "d2", "ownerId", "u1"),
			rec("id", "d3", "ownerId", "u2"),
		},
	}))

	devices := snap.Relation("devices")
	require.NotNil(t, devices)
	assert.Equal(t, []string{"d1", "d2"}, devices.Edges["u1"], "source-data order preserved")
	assert.Equal(t, []string{"d3"}, devices.Edges["u2"])

	owner := snap.Relation("owner")
	require.NotNil(t, owner, "declared inverse is built at build time")
	assert.Equal(t, "device", owner.Source)
	assert.Equal(t, []string{"u1"}, owner.Edges["d1"])

	assert.Equal(t, 3, snap.Stats.Edges["devices"])
	// u2 has no account record: one distinct unresolved reference.
	assert.Equal(t, uint64(1), snap.Stats.UnresolvedRefs["devices"])
}

func TestBuild_EmbeddedRefsCountDistinctUnresolved(t *testing.T) {
	b := NewBuilder(testSchema(), discardLogger())
	snap := b.Build(view(1, map[string]any{
		"accounts": []any{rec("id", "u1")},
		"groups": []any{
			rec("id", "g1", "members", []any{"u1", "u9"}),
			rec("id", "g2", "members", []any{"u9", map[string]any{"id": "u1"}}),
		},
	}))

	members := snap.Relation("members")
	assert.Equal(t, []string{"u1", "u9"}, members.Edges["g1"])
	assert.Equal(t, []string{"u9", "u1"}, members.Edges["g2"], "object refs resolve through the ref field")

	// u9 is referenced twice but counts once.
	assert.Equal(t, uint64(1), snap.Stats.UnresolvedRefs["members"])
	w := findWarning(snap.Warnings, WarnUnresolvedRef, "members")
	require.NotNil(t, w)
	assert.Equal(t, 1, w.Count)

	memberOf := snap.Relation("memberOf")
	assert.Equal(t, []string{"g1", "g2"}, memberOf.Edges["u1"])
}

func TestBuild_UndeclaredRefShapeIsWarnedAndSkipped(t *testing.T) {
	b := NewBuilder(testSchema(), discardLogger())
	snap := b.Build(view(1, map[string]any{
		"accounts": []any{rec("id", "u1")},
		"groups": []any{
			rec("id", "g1", "members", []any{"u1", []any{"nested", "garbage"}}),
		},
	}))

	assert.Equal(t, []string{"u1"}, snap.Relation("members").Edges["g1"])
	require.NotNil(t, findWarning(snap.Warnings, WarnRefShape, "members"))
}

func TestBuild_DuplicateRecordContributesNoEdges(t *testing.T) {
	b := NewBuilder(testSchema(), discardLogger())
	snap := b.Build(view(1, map[string]any{
		"accounts": []any{rec("id", "u1"), rec("id", "u2")},
		"groups": []any{
			rec("id", "g1", "members", []any{"u1"}),
			rec("id", "g1", "members", []any{"u2"}),
		},
	}))

	assert.Equal(t, []string{"u1"}, snap.Relation("members").Edges["g1"],
		"the record that lost first-writer-wins carries no edges")
}

func TestBuild_DuplicatesInSourceDataAreKept(t *testing.T) {
	b := NewBuilder(testSchema(), discardLogger())
	snap := b.Build(view(1, map[string]any{
		"accounts": []any{rec("id", "u1")},
		"groups": []any{
			rec("id", "g1", "members", []any{"u1", "u1"}),
		},
	}))

	assert.Equal(t, []string{"u1", "u1"}, snap.Relation("members").Edges["g1"],
		"no dedup at this layer")
}

func TestBuild_Idempotent(t *testing.T) {
	payloads := map[string]any{
		"accounts": []any{rec("id", "u1", "upn", "a@x.com"), rec("id", "u2")},
		"devices":  []any{rec("id", "d1", "ownerId", "u1")},
		"groups":   []any{rec("id", "g1", "members", []any{"u1", "u9"})},
	}
	b := NewBuilder(testSchema(), discardLogger())

	first := b.Build(view(7, payloads))
	second := b.Build(view(7, payloads))

	assert.Equal(t, first.Types, second.Types)
	assert.Equal(t, first.Relations, second.Relations)
	assert.Equal(t, first.Warnings, second.Warnings)
	assert.Equal(t, first.Stats, second.Stats)
	assert.Equal(t, first.Version, second.Version)
}

func TestBuild_BadSelectorIsWarnedNotFatal(t *testing.T) {
	schema := testSchema()
	schema.Relationships[0].Selector = "$.[[[" // unparsable
	b := NewBuilder(schema, discardLogger())

	snap := b.Build(view(1, map[string]any{
		"accounts": []any{rec("id", "u1")},
	}))

	assert.Nil(t, snap.Relation("devices"))
	require.NotNil(t, findWarning(snap.Warnings, WarnBadSelector, "devices"))
	_, ok := snap.TypeIndexFor("account").Lookup("u1")
	assert.True(t, ok, "entity indexing is unaffected")
}
