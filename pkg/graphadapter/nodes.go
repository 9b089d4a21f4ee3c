package graphadapter

import (
	"errors"
	"fmt"

	"github.com/kgstore/kgstore/pkg/engine"
)

// HasNode reports whether a node with the given id exists.
func (a *Adapter) HasNode(id string) (bool, error) {
	var ok bool
	err := a.withLock(func(eng engine.Engine) error {
		var herr error
		ok, herr = eng.HasNode(id)
		return herr
	})
	return ok, err
}

// AddNode upserts a single node by id: a fresh id creates it, an existing
// id merges (core columns overwritten, updated_at refreshed, created_at
// preserved).
func (a *Adapter) AddNode(id, name, typ string, properties map[string]any) error {
	return a.AddNodes([]NodeInput{{ID: id, Name: name, Type: typ, Properties: properties}})
}

// AddNodes upserts every node in ns under a single lock acquisition. A
// failure on any node stops the batch and returns that error: mutating
// operations either fully apply or raise, per spec §7.
func (a *Adapter) AddNodes(ns []NodeInput) error {
	return a.withLock(func(eng engine.Engine) error {
		for _, n := range ns {
			node := &engine.Node{ID: n.ID, Name: n.Name, Type: n.Type, Properties: n.Properties}
			if err := eng.UpsertNode(node); err != nil {
				return fmt.Errorf("graphadapter: add_node %s: %w", n.ID, err)
			}
		}
		return nil
	})
}

// DeleteNode removes a node and detaches (deletes) every edge incident to
// it.
func (a *Adapter) DeleteNode(id string) error {
	return a.DeleteNodes([]string{id})
}

// DeleteNodes removes every id in ids, detaching incident edges for each.
// A missing id is not an error.
func (a *Adapter) DeleteNodes(ids []string) error {
	return a.withLock(func(eng engine.Engine) error {
		for _, id := range ids {
			if err := eng.DeleteNode(id); err != nil && !errors.Is(err, engine.ErrNotFound) {
				return fmt.Errorf("graphadapter: delete_node %s: %w", id, err)
			}
		}
		return nil
	})
}

// ExtractNode returns the merged attribute dict for id, or nil if it does
// not exist (read operations degrade gracefully rather than raising, per
// spec §7).
func (a *Adapter) ExtractNode(id string) (NodeDict, error) {
	var dict NodeDict
	err := a.withLock(func(eng engine.Engine) error {
		n, gerr := eng.GetNode(id)
		if errors.Is(gerr, engine.ErrNotFound) {
			return nil
		}
		if gerr != nil {
			return gerr
		}
		dict = nodeDict(n)
		return nil
	})
	return dict, err
}

// ExtractNodes returns merged dicts for every existing id in ids; missing
// ids are simply absent from the result.
func (a *Adapter) ExtractNodes(ids []string) ([]NodeDict, error) {
	var out []NodeDict
	err := a.withLock(func(eng engine.Engine) error {
		for _, id := range ids {
			n, gerr := eng.GetNode(id)
			if errors.Is(gerr, engine.ErrNotFound) {
				continue
			}
			if gerr != nil {
				return gerr
			}
			out = append(out, nodeDict(n))
		}
		return nil
	})
	return out, err
}
