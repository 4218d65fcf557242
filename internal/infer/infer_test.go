package infer

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/weft/api"
	"github.com/agentic-research/weft/internal/dataset"
)

func inferFrom(t *testing.T, payloads map[string]any) *api.Schema {
	t.Helper()
	store := dataset.NewStore()
	for name, payload := range payloads {
		store.Put(name, payload)
	}
	inf := &Inferrer{Config: DefaultConfig()}
	return inf.InferSchema(store.Snapshot())
}

func TestInferSchema_RecoversEntitiesAndKeys(t *testing.T) {
	schema := inferFrom(t, map[string]any{
		"accounts": []any{
			map[string]any{"id": "u1", "userPrincipalName": "alice@x.com", "displayName": "Alice"},
			map[string]any{"id": "u2", "userPrincipalName": "bob@x.com", "displayName": "Bob"},
		},
		"devices": []any{
			map[string]any{"id": "d1", "ownerId": "u1", "status": "active"},
			map[string]any{"id": "d2", "ownerId": "u2", "status": "active"},
		},
	})

	require.Len(t, schema.Entities, 2)

	account := schema.Entity("account")
	require.NotNil(t, account)
	assert.Equal(t, "accounts", account.Dataset)
	assert.Equal(t, "$.id", account.Key)
	assert.Equal(t, []string{"$.userPrincipalName", "$.displayName"}, account.AltKeys,
		"alternate keys proposed in priority order")

	device := schema.Entity("device")
	require.NotNil(t, device)
	assert.Equal(t, "$.id", device.Key)
}

func TestInferSchema_ProposesForeignKeyRelation(t *testing.T) {
	schema := inferFrom(t, map[string]any{
		"accounts": []any{
			map[string]any{"id": "u1"},
			map[string]any{"id": "u2"},
		},
		"devices": []any{
			map[string]any{"id": "d1", "ownerId": "u1", "status": "active"},
			map[string]any{"id": "d2", "ownerId": "u2", "status": "retired"},
		},
	})

	rel := schema.Relationship("devicesByOwnerId")
	require.NotNil(t, rel, "scalar field resolving against another dataset's keys")
	assert.Equal(t, "account", rel.Source)
	assert.Equal(t, "device", rel.Target)
	assert.Equal(t, api.OriginTarget, rel.Origin)
	assert.Equal(t, "$.ownerId", rel.Selector)

	// "status" values resolve nowhere, so no relation is proposed for it.
	for _, r := range schema.Relationships {
		assert.NotContains(t, r.Selector, "status")
	}
}

func TestInferSchema_ProposesEmbeddedRefRelation(t *testing.T) {
	schema := inferFrom(t, map[string]any{
		"accounts": []any{
			map[string]any{"id": "u1"},
			map[string]any{"id": "u2"},
		},
		"groups": []any{
			map[string]any{"id": "g1", "members": []any{"u1", "u2"}},
			map[string]any{"id": "g2", "members": []any{map[string]any{"id": "u1"}}},
		},
	})

	rel := schema.Relationship("members")
	require.NotNil(t, rel)
	assert.Equal(t, "group", rel.Source)
	assert.Equal(t, "account", rel.Target)
	assert.Equal(t, api.OriginSource, rel.Origin)
	assert.Equal(t, "$.members[*]", rel.Selector)
}

func TestInferSchema_SkipsDatasetWithoutKeyLikeField(t *testing.T) {
	schema := inferFrom(t, map[string]any{
		"accounts": []any{map[string]any{"id": "u1"}},
		"metrics": []any{
			map[string]any{"count": 3.0},
			map[string]any{"count": 3.0},
		},
	})

	assert.Nil(t, schema.Entity("metric"), "no distinct id field, no entity")
	require.NotNil(t, schema.Entity("account"))
}

func TestInferSchema_BelowOverlapThresholdIsRejected(t *testing.T) {
	// Only 1 of 4 values resolves: under the 0.5 default.
	schema := inferFrom(t, map[string]any{
		"accounts": []any{map[string]any{"id": "u1"}, map[string]any{"id": "u2"}},
		"devices": []any{
			map[string]any{"id": "d1", "ownerId": "u1"},
			map[string]any{"id": "d2", "ownerId": "x1"},
			map[string]any{"id": "d3", "ownerId": "x2"},
			map[string]any{"id": "d4", "ownerId": "x3"},
		},
	})

	assert.Nil(t, schema.Relationship("devicesByOwnerId"))
}

func TestInferSchema_UnwrapsConventionalWrappers(t *testing.T) {
	schema := inferFrom(t, map[string]any{
		"sites": map[string]any{"value": []any{
			map[string]any{"id": "s1"},
			map[string]any{"id": "s2"},
		}},
	})

	require.NotNil(t, schema.Entity("site"))
}

func TestInferSchema_ProposalValidates(t *testing.T) {
	schema := inferFrom(t, map[string]any{
		"accounts": []any{
			map[string]any{"id": "u1", "userPrincipalName": "a@x.com"},
			map[string]any{"id": "u2", "userPrincipalName": "b@x.com"},
		},
		"devices": []any{
			map[string]any{"id": "d1", "ownerId": "u1"},
		},
		"groups": []any{
			map[string]any{"id": "g1", "members": []any{"u1", "u2"}},
		},
	})

	require.NoError(t, schema.Validate())
}

func TestSampleRecords(t *testing.T) {
	records := make([]any, 100)
	for i := range records {
		records[i] = fmt.Sprintf("r%d", i)
	}

	t.Run("under cap returns all", func(t *testing.T) {
		got := sampleRecords(records, 200, 0)
		assert.Len(t, got, 100)
	})

	t.Run("over cap samples exactly k", func(t *testing.T) {
		got := sampleRecords(records, 10, 0)
		assert.Len(t, got, 10)
	})

	t.Run("deterministic for a fixed seed", func(t *testing.T) {
		a := sampleRecords(records, 10, 42)
		b := sampleRecords(records, 10, 42)
		assert.Equal(t, a, b)
	})
}
