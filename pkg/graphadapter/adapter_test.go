package graphadapter

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	dir := t.TempDir()
	a := New(Options{Path: dir, Logger: zerolog.Nop()})
	require.NoError(t, a.Open(context.Background()))
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func TestOpenCloseReopenStateMachine(t *testing.T) {
	dir := t.TempDir()
	a := New(Options{Path: dir, Logger: zerolog.Nop()})
	assert.Equal(t, StateUninitialized, a.State())

	ctx := context.Background()
	require.NoError(t, a.Open(ctx))
	assert.Equal(t, StateOpen, a.State())

	require.NoError(t, a.AddNode("a", "A", "Doc", nil))

	require.NoError(t, a.Close(ctx))
	assert.Equal(t, StateClosed, a.State())

	require.NoError(t, a.Reopen(ctx))
	assert.Equal(t, StateOpen, a.State())

	ok, err := a.HasNode("a")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAddNodesAndExtractRoundTrip(t *testing.T) {
	a := newTestAdapter(t)
	require.NoError(t, a.AddNodes([]NodeInput{
		{ID: "a", Name: "A", Type: "Doc", Properties: map[string]any{"k": "v"}},
		{ID: "b", Name: "B", Type: "Doc"},
	}))

	dicts, err := a.ExtractNodes([]string{"a", "b", "missing"})
	require.NoError(t, err)
	require.Len(t, dicts, 2)

	byID := map[string]NodeDict{}
	for _, d := range dicts {
		byID[d["id"].(string)] = d
	}
	assert.Equal(t, "v", byID["a"]["k"])
	_, hasPropertiesKey := byID["a"]["properties"]
	assert.False(t, hasPropertiesKey)

	missing, err := a.ExtractNode("missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestAddNodeMergePreservesCreatedAt(t *testing.T) {
	a := newTestAdapter(t)
	require.NoError(t, a.AddNode("a", "A", "Doc", nil))
	first, err := a.ExtractNode("a")
	require.NoError(t, err)
	firstCreated := first["created_at"]

	require.NoError(t, a.AddNode("a", "A2", "Doc", map[string]any{"extra": "v"}))
	second, err := a.ExtractNode("a")
	require.NoError(t, err)

	assert.Equal(t, firstCreated, second["created_at"])
	assert.Equal(t, "A2", second["name"])
	assert.Equal(t, "v", second["extra"])
}

func TestEdgeLifecycleAndDetachDelete(t *testing.T) {
	a := newTestAdapter(t)
	require.NoError(t, a.AddNodes([]NodeInput{{ID: "a", Name: "A", Type: "Doc"}, {ID: "b", Name: "B", Type: "Doc"}}))
	require.NoError(t, a.AddEdge("a", "b", "mentions", map[string]any{"w": 1.0}))

	ok, err := a.HasEdge("a", "b", "mentions")
	require.NoError(t, err)
	assert.True(t, ok)

	present, err := a.HasEdges([]EdgeRef{{Source: "a", Target: "b", Relationship: "mentions"}})
	require.NoError(t, err)
	assert.Equal(t, []EdgeRef{{Source: "a", Target: "b", Relationship: "mentions"}}, present)

	require.NoError(t, a.DeleteNode("a"))
	ok, err = a.HasNode("a")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = a.HasEdge("a", "b", "mentions")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetGraphDataAndMetrics(t *testing.T) {
	a := newTestAdapter(t)
	require.NoError(t, a.AddNodes([]NodeInput{{ID: "a", Name: "A", Type: "Doc"}, {ID: "b", Name: "B", Type: "Doc"}}))
	require.NoError(t, a.AddEdge("a", "b", "mentions", map[string]any{"w": 1}))

	nodes, edges, err := a.GetGraphData()
	require.NoError(t, err)
	assert.Len(t, nodes, 2)
	assert.Len(t, edges, 1)

	m, err := a.GetGraphMetrics(false)
	require.NoError(t, err)
	assert.Equal(t, int64(2), m.NumNodes)
	assert.Equal(t, int64(1), m.NumEdges)
	require.NotNil(t, m.MeanDegree)
	assert.InDelta(t, 1.0, *m.MeanDegree, 1e-9)
	assert.InDelta(t, 0.5, m.EdgeDensity, 1e-9)
	assert.Equal(t, int64(-1), m.SelfLoopCount)

	m2, err := a.GetGraphMetrics(true)
	require.NoError(t, err)
	assert.NotEqual(t, int64(-1), m2.SelfLoopCount)
}

func TestGetGraphMetricsEmptyGraph(t *testing.T) {
	a := newTestAdapter(t)
	m, err := a.GetGraphMetrics(false)
	require.NoError(t, err)
	assert.Equal(t, int64(0), m.NumNodes)
	assert.Equal(t, int64(0), m.NumEdges)
	assert.Nil(t, m.MeanDegree)
	assert.Equal(t, float64(0), m.EdgeDensity)
}

func TestGetNodesetSubgraphEmptyNames(t *testing.T) {
	a := newTestAdapter(t)
	nodes, edges, err := a.GetNodesetSubgraph("Doc", nil)
	require.NoError(t, err)
	assert.Nil(t, nodes)
	assert.Nil(t, edges)
}

func TestGetNodesetSubgraphClosure(t *testing.T) {
	a := newTestAdapter(t)
	require.NoError(t, a.AddNodes([]NodeInput{
		{ID: "a", Name: "A", Type: "Doc"},
		{ID: "b", Name: "B", Type: "Doc"},
		{ID: "c", Name: "C", Type: "Doc"},
	}))
	require.NoError(t, a.AddEdge("a", "b", "mentions", nil))
	require.NoError(t, a.AddEdge("b", "c", "mentions", nil))

	nodes, edges, err := a.GetNodesetSubgraph("Doc", []string{"A"})
	require.NoError(t, err)
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n["id"].(string))
	}
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
	assert.Len(t, edges, 1)
}

func TestCollectTimeIDsNoBoundsIsEmpty(t *testing.T) {
	a := newTestAdapter(t)
	ids, err := a.CollectTimeIDs(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "", ids)
}

func TestCollectTimeIDsRange(t *testing.T) {
	a := newTestAdapter(t)
	require.NoError(t, a.AddNode("t1", "T1", timestampNodeType, map[string]any{"time_at": float64(100)}))
	require.NoError(t, a.AddNode("t2", "T2", timestampNodeType, map[string]any{"time_at": float64(200)}))

	from := int64(150)
	ids, err := a.CollectTimeIDs(&from, nil)
	require.NoError(t, err)
	assert.Equal(t, `"t2"`, ids)
}

func TestApplyFeedbackWeight(t *testing.T) {
	a := newTestAdapter(t)
	require.NoError(t, a.AddNodes([]NodeInput{{ID: "a", Name: "A", Type: "Doc"}, {ID: "b", Name: "B", Type: "Doc"}}))
	require.NoError(t, a.AddEdge("a", "b", feedbackEdgeRelationship, nil))

	require.NoError(t, a.ApplyFeedbackWeight([]string{"a"}, 2.5))
	require.NoError(t, a.ApplyFeedbackWeight([]string{"a"}, 1.0))

	edges, err := a.GetConnections("a")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.InDelta(t, 3.5, edges[0].Edge["feedback_weight"], 1e-9)
}

func TestDeleteGraphRemovesFiles(t *testing.T) {
	a := newTestAdapter(t)
	require.NoError(t, a.AddNode("a", "A", "Doc", nil))
	require.NoError(t, a.DeleteGraph(context.Background()))
	assert.Equal(t, StateClosed, a.State())
	assert.NoDirExists(t, a.localDir)
}
