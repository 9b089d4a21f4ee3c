package graphadapter

import "github.com/kgstore/kgstore/pkg/engine"

// NodeDict is a node's merged attribute dict: id, name, type, created_at,
// updated_at, plus every key from the properties blob merged in directly
// (the "properties" key itself never appears in the result), per spec
// §4.1's property-merging contract.
type NodeDict map[string]any

// EdgeDict is an edge's merged attribute dict: source, target,
// relationship_name, created_at, updated_at, plus every merged property
// key.
type EdgeDict map[string]any

// EdgeRef is the (source, relationship, target) identity triple used by
// HasEdges and GetEdges.
type EdgeRef struct {
	Source       string
	Relationship string
	Target       string
}

// Connection is the (source, edge, target) triple GetConnections returns,
// with both endpoints resolved to their merged dicts.
type Connection struct {
	Source NodeDict
	Edge   EdgeDict
	Target NodeDict
}

// NodeInput is the caller-supplied shape for AddNode(s).
type NodeInput struct {
	ID         string
	Name       string
	Type       string
	Properties map[string]any
}

// EdgeInput is the caller-supplied shape for AddEdge(s).
type EdgeInput struct {
	Source       string
	Target       string
	Relationship string
	Properties   map[string]any
}

func nodeDict(n *engine.Node) NodeDict {
	d := NodeDict{
		"id":         n.ID,
		"name":       n.Name,
		"type":       n.Type,
		"created_at": n.CreatedAt,
		"updated_at": n.UpdatedAt,
	}
	for k, v := range n.Properties {
		d[k] = v
	}
	return d
}

func edgeDict(e *engine.Edge) EdgeDict {
	d := EdgeDict{
		"source":            e.Source,
		"target":            e.Target,
		"relationship_name": e.Relationship,
		"created_at":        e.CreatedAt,
		"updated_at":        e.UpdatedAt,
	}
	for k, v := range e.Properties {
		d[k] = v
	}
	return d
}
