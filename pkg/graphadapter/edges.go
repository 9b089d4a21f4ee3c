package graphadapter

import (
	"fmt"

	"github.com/kgstore/kgstore/pkg/engine"
)

// HasEdge reports whether the identity (source, target, relationship)
// exists.
func (a *Adapter) HasEdge(source, target, relationship string) (bool, error) {
	var ok bool
	err := a.withLock(func(eng engine.Engine) error {
		var herr error
		ok, herr = eng.HasEdge(source, target, relationship)
		return herr
	})
	return ok, err
}

// HasEdges reports, for each identity triple in ids, whether it exists.
// The returned slice holds only the identities that exist; per spec §8
// this equals the input when every identity is present.
func (a *Adapter) HasEdges(ids []EdgeRef) ([]EdgeRef, error) {
	var out []EdgeRef
	err := a.withLock(func(eng engine.Engine) error {
		for _, id := range ids {
			ok, herr := eng.HasEdge(id.Source, id.Target, id.Relationship)
			if herr != nil {
				return herr
			}
			if ok {
				out = append(out, id)
			}
		}
		return nil
	})
	return out, err
}

// AddEdge upserts a single edge by identity (source, target,
// relationship).
func (a *Adapter) AddEdge(source, target, relationship string, properties map[string]any) error {
	return a.AddEdges([]EdgeInput{{Source: source, Target: target, Relationship: relationship, Properties: properties}})
}

// AddEdges upserts every edge in es by identity: a fresh identity creates
// the edge, an existing one refreshes updated_at/properties while
// preserving created_at. Both endpoints must already exist (spec §3); the
// engine reports ErrInvalidEdge otherwise.
func (a *Adapter) AddEdges(es []EdgeInput) error {
	return a.withLock(func(eng engine.Engine) error {
		for _, e := range es {
			edge := &engine.Edge{Source: e.Source, Target: e.Target, Relationship: e.Relationship, Properties: e.Properties}
			if err := eng.UpsertEdge(edge); err != nil {
				return fmt.Errorf("graphadapter: add_edge %s-%s->%s: %w", e.Source, e.Relationship, e.Target, err)
			}
		}
		return nil
	})
}

// GetEdges returns every edge touching id, as (source, relationship,
// target) triples, in either direction.
func (a *Adapter) GetEdges(id string) ([]EdgeRef, error) {
	var out []EdgeRef
	err := a.withLock(func(eng engine.Engine) error {
		outgoing, oerr := eng.OutgoingEdges(id)
		if oerr != nil {
			return oerr
		}
		incoming, ierr := eng.IncomingEdges(id)
		if ierr != nil {
			return ierr
		}
		seen := make(map[engine.EdgeIdentity]bool)
		for _, e := range append(outgoing, incoming...) {
			if seen[e.Identity()] {
				continue
			}
			seen[e.Identity()] = true
			out = append(out, EdgeRef{Source: e.Source, Relationship: e.Relationship, Target: e.Target})
		}
		return nil
	})
	return out, err
}

// GetNeighbors returns the distinct set of nodes directly connected to id
// in either direction.
func (a *Adapter) GetNeighbors(id string) ([]NodeDict, error) {
	var out []NodeDict
	err := a.withLock(func(eng engine.Engine) error {
		ids, nerr := a.neighborIDsLocked(eng, id)
		if nerr != nil {
			return nerr
		}
		for _, nid := range ids {
			n, gerr := eng.GetNode(nid)
			if gerr != nil {
				continue
			}
			out = append(out, nodeDict(n))
		}
		return nil
	})
	return out, err
}

// GetNeighbours is the British-spelling alias the spec names alongside
// GetNeighbors.
func (a *Adapter) GetNeighbours(id string) ([]NodeDict, error) {
	return a.GetNeighbors(id)
}

// GetPredecessors returns the distinct source nodes of edges incoming to
// id, optionally restricted to a relationship label (empty string means
// any label).
func (a *Adapter) GetPredecessors(id, relationship string) ([]NodeDict, error) {
	var out []NodeDict
	err := a.withLock(func(eng engine.Engine) error {
		incoming, ierr := eng.IncomingEdges(id)
		if ierr != nil {
			return ierr
		}
		seen := make(map[string]bool)
		for _, e := range incoming {
			if relationship != "" && e.Relationship != relationship {
				continue
			}
			if seen[e.Source] {
				continue
			}
			seen[e.Source] = true
			n, gerr := eng.GetNode(e.Source)
			if gerr != nil {
				continue
			}
			out = append(out, nodeDict(n))
		}
		return nil
	})
	return out, err
}

// GetSuccessors returns the distinct target nodes of edges outgoing from
// id, optionally restricted to a relationship label (empty string means
// any label).
func (a *Adapter) GetSuccessors(id, relationship string) ([]NodeDict, error) {
	var out []NodeDict
	err := a.withLock(func(eng engine.Engine) error {
		outgoing, oerr := eng.OutgoingEdges(id)
		if oerr != nil {
			return oerr
		}
		seen := make(map[string]bool)
		for _, e := range outgoing {
			if relationship != "" && e.Relationship != relationship {
				continue
			}
			if seen[e.Target] {
				continue
			}
			seen[e.Target] = true
			n, gerr := eng.GetNode(e.Target)
			if gerr != nil {
				continue
			}
			out = append(out, nodeDict(n))
		}
		return nil
	})
	return out, err
}

// GetConnections returns every (source, edge, target) triple incident to
// id, with both endpoint nodes resolved to their merged dicts.
func (a *Adapter) GetConnections(id string) ([]Connection, error) {
	var out []Connection
	err := a.withLock(func(eng engine.Engine) error {
		outgoing, oerr := eng.OutgoingEdges(id)
		if oerr != nil {
			return oerr
		}
		incoming, ierr := eng.IncomingEdges(id)
		if ierr != nil {
			return ierr
		}
		seen := make(map[engine.EdgeIdentity]bool)
		for _, e := range append(outgoing, incoming...) {
			if seen[e.Identity()] {
				continue
			}
			seen[e.Identity()] = true
			src, serr := eng.GetNode(e.Source)
			if serr != nil {
				return serr
			}
			tgt, terr := eng.GetNode(e.Target)
			if terr != nil {
				return terr
			}
			out = append(out, Connection{Source: nodeDict(src), Edge: edgeDict(e), Target: nodeDict(tgt)})
		}
		return nil
	})
	return out, err
}
