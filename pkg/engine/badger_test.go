package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *BadgerEngine {
	t.Helper()
	eng, err := OpenBadgerEngine(BadgerOptions{DataDir: t.TempDir(), InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

func TestUpsertNodeMergeByID(t *testing.T) {
	eng := newTestEngine(t)

	n1 := &Node{ID: "a", Name: "A", Type: "Doc"}
	require.NoError(t, eng.UpsertNode(n1))

	got, err := eng.GetNode("a")
	require.NoError(t, err)
	firstCreated := got.CreatedAt
	assert.Equal(t, "A", got.Name)

	time.Sleep(2 * time.Millisecond)
	n2 := &Node{ID: "a", Name: "A2", Type: "Doc", Properties: map[string]any{"k": "v"}}
	require.NoError(t, eng.UpsertNode(n2))

	got2, err := eng.GetNode("a")
	require.NoError(t, err)
	assert.Equal(t, "A2", got2.Name)
	assert.Equal(t, firstCreated, got2.CreatedAt, "CreatedAt must not change on merge")
	assert.True(t, got2.UpdatedAt.After(got.UpdatedAt) || got2.UpdatedAt.Equal(got.UpdatedAt))
}

func TestEdgeLifecycleAndDetachDelete(t *testing.T) {
	eng := newTestEngine(t)

	require.NoError(t, eng.UpsertNode(&Node{ID: "a", Name: "A", Type: "Doc"}))
	require.NoError(t, eng.UpsertNode(&Node{ID: "b", Name: "B", Type: "Doc"}))

	require.NoError(t, eng.UpsertEdge(&Edge{Source: "a", Target: "b", Relationship: "mentions"}))

	has, err := eng.HasEdge("a", "b", "mentions")
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, eng.DeleteNode("a"))

	has, err = eng.HasNode("a")
	require.NoError(t, err)
	assert.False(t, has)

	has, err = eng.HasEdge("a", "b", "mentions")
	require.NoError(t, err)
	assert.False(t, has, "edges incident to a deleted node must be gone")
}

func TestUpsertEdgeRequiresExistingEndpoints(t *testing.T) {
	eng := newTestEngine(t)
	require.NoError(t, eng.UpsertNode(&Node{ID: "a", Name: "A", Type: "Doc"}))

	err := eng.UpsertEdge(&Edge{Source: "a", Target: "missing", Relationship: "mentions"})
	assert.ErrorIs(t, err, ErrInvalidEdge)
}

func TestEdgeUpsertPreservesCreatedAt(t *testing.T) {
	eng := newTestEngine(t)
	require.NoError(t, eng.UpsertNode(&Node{ID: "a", Name: "A", Type: "Doc"}))
	require.NoError(t, eng.UpsertNode(&Node{ID: "b", Name: "B", Type: "Doc"}))

	require.NoError(t, eng.UpsertEdge(&Edge{Source: "a", Target: "b", Relationship: "mentions", Properties: map[string]any{"w": 1}}))
	first, err := eng.GetEdge("a", "b", "mentions")
	require.NoError(t, err)

	time.Sleep(2 * time.Millisecond)
	require.NoError(t, eng.UpsertEdge(&Edge{Source: "a", Target: "b", Relationship: "mentions", Properties: map[string]any{"w": 2}}))
	second, err := eng.GetEdge("a", "b", "mentions")
	require.NoError(t, err)

	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt) || second.UpdatedAt.Equal(first.UpdatedAt))
	assert.EqualValues(t, float64(2), second.Properties["w"])
}

func TestExportImportRoundTrip(t *testing.T) {
	src := newTestEngine(t)
	require.NoError(t, src.UpsertNode(&Node{ID: "a", Name: "A", Type: "Doc"}))
	require.NoError(t, src.UpsertNode(&Node{ID: "b", Name: "B", Type: "Doc"}))
	require.NoError(t, src.UpsertEdge(&Edge{Source: "a", Target: "b", Relationship: "mentions"}))

	dir := t.TempDir()
	require.NoError(t, Export(src, dir))

	schema, err := VerifyExportSchema(dir)
	require.NoError(t, err)
	assert.EqualValues(t, 2, schema.NodeCount)
	assert.EqualValues(t, 1, schema.EdgeCount)

	dst := newTestEngine(t)
	require.NoError(t, Import(dst, dir))

	n, err := dst.NodeCount()
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	has, err := dst.HasEdge("a", "b", "mentions")
	require.NoError(t, err)
	assert.True(t, has)
}
