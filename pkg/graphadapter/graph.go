package graphadapter

import (
	"fmt"

	"github.com/kgstore/kgstore/pkg/engine"
)

// GetGraphData returns every node and edge in the database, with
// properties merged into each dict.
func (a *Adapter) GetGraphData() ([]NodeDict, []EdgeDict, error) {
	var nodes []NodeDict
	var edges []EdgeDict
	err := a.withLock(func(eng engine.Engine) error {
		ns, nerr := eng.AllNodes()
		if nerr != nil {
			return nerr
		}
		es, eerr := eng.AllEdges()
		if eerr != nil {
			return eerr
		}
		for _, n := range ns {
			nodes = append(nodes, nodeDict(n))
		}
		for _, e := range es {
			edges = append(edges, edgeDict(e))
		}
		return nil
	})
	return nodes, edges, err
}

// GetNodesetSubgraph returns the 1-hop closure of every node of type typ
// whose name is in names (spec §4.1): the seed ("primary") nodes, their
// direct neighbors, and every edge whose both endpoints lie in that
// union. An empty names list returns (nil, nil, nil) without touching the
// engine.
func (a *Adapter) GetNodesetSubgraph(typ string, names []string) ([]NodeDict, []EdgeDict, error) {
	if len(names) == 0 {
		if _, err := a.handle(); err != nil {
			return nil, nil, err
		}
		return nil, nil, nil
	}

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	var nodes []NodeDict
	var edges []EdgeDict
	err := a.withLock(func(eng engine.Engine) error {
		byType, terr := eng.NodesByType(typ)
		if terr != nil {
			return terr
		}
		union := make(map[string]*engine.Node)
		for _, n := range byType {
			if wanted[n.Name] {
				union[n.ID] = n
			}
		}

		neighborIDs := make(map[string]bool)
		for id := range union {
			ids, nerr := a.neighborIDsLocked(eng, id)
			if nerr != nil {
				return nerr
			}
			for _, nid := range ids {
				neighborIDs[nid] = true
			}
		}
		for nid := range neighborIDs {
			if _, ok := union[nid]; ok {
				continue
			}
			n, gerr := eng.GetNode(nid)
			if gerr != nil {
				continue
			}
			union[nid] = n
		}

		allEdges, aerr := eng.AllEdges()
		if aerr != nil {
			return aerr
		}
		for _, e := range allEdges {
			_, srcIn := union[e.Source]
			_, tgtIn := union[e.Target]
			if srcIn && tgtIn {
				edges = append(edges, edgeDict(e))
			}
		}
		for _, n := range union {
			nodes = append(nodes, nodeDict(n))
		}
		return nil
	})
	return nodes, edges, err
}

// FilterSpec restricts GetFilteredGraphData to nodes whose Attribute's
// value (a materialized column or a merged property) is one of Values.
// Multiple filters combine with AND; a filter's own Values combine with
// OR.
type FilterSpec struct {
	Attribute string
	Values    []string
}

// GetFilteredGraphData returns the nodes matching every filter in filters
// and the edges whose both endpoints match.
func (a *Adapter) GetFilteredGraphData(filters []FilterSpec) ([]NodeDict, []EdgeDict, error) {
	var nodes []NodeDict
	var edges []EdgeDict
	err := a.withLock(func(eng engine.Engine) error {
		allNodes, nerr := eng.AllNodes()
		if nerr != nil {
			return nerr
		}
		matching := make(map[string]bool)
		for _, n := range allNodes {
			d := nodeDict(n)
			if matchesAllFilters(d, filters) {
				matching[n.ID] = true
				nodes = append(nodes, d)
			}
		}

		allEdges, eerr := eng.AllEdges()
		if eerr != nil {
			return eerr
		}
		for _, e := range allEdges {
			if matching[e.Source] && matching[e.Target] {
				edges = append(edges, edgeDict(e))
			}
		}
		return nil
	})
	return nodes, edges, err
}

func matchesAllFilters(d NodeDict, filters []FilterSpec) bool {
	for _, f := range filters {
		v, ok := d[f.Attribute]
		if !ok {
			return false
		}
		s := fmt.Sprintf("%v", v)
		found := false
		for _, want := range f.Values {
			if s == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// GetDisconnectedNodes returns the ids of every node with no incident
// edges in either direction.
func (a *Adapter) GetDisconnectedNodes() ([]string, error) {
	var out []string
	err := a.withLock(func(eng engine.Engine) error {
		ns, nerr := eng.AllNodes()
		if nerr != nil {
			return nerr
		}
		for _, n := range ns {
			outgoing, oerr := eng.OutgoingEdges(n.ID)
			if oerr != nil {
				return oerr
			}
			if len(outgoing) > 0 {
				continue
			}
			incoming, ierr := eng.IncomingEdges(n.ID)
			if ierr != nil {
				return ierr
			}
			if len(incoming) == 0 {
				out = append(out, n.ID)
			}
		}
		return nil
	})
	return out, err
}
