package engine

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

// Key prefixes for BadgerDB storage organization. Single-byte prefixes keep
// key comparisons and range scans cheap.
const (
	prefixNode       = byte(0x01) // node:id -> JSON(Node)
	prefixEdge       = byte(0x02) // edge:source\x00target\x00rel -> JSON(Edge)
	prefixTypeIndex  = byte(0x03) // type:typeName\x00id -> empty
	prefixOutIndex   = byte(0x04) // out:source\x00target\x00rel -> empty
	prefixInIndex    = byte(0x05) // in:target\x00source\x00rel -> empty
)

// BadgerOptions configures the embedded engine.
type BadgerOptions struct {
	// DataDir is the directory holding Badger's on-disk files. Required
	// unless InMemory is set.
	DataDir string
	// InMemory runs Badger purely in memory, for tests. DataDir is then not
	// handed to Badger and no catalog file is written.
	InMemory bool
	// SyncWrites forces an fsync after every write; slower, more durable.
	SyncWrites bool
	Logger     zerolog.Logger
}

// BadgerEngine is the default Engine implementation: a BadgerDB-backed
// property graph with a catalog file matching the spec's wire format and
// ACID-per-operation semantics courtesy of Badger's own transactions.
type BadgerEngine struct {
	db     *badger.DB
	log    zerolog.Logger
	mu     sync.RWMutex // serializes schema-shaped multi-key writes
	closed bool
	path   string
}

// OpenBadgerEngine opens (creating if absent) a BadgerDB-backed engine at
// opts.DataDir, writing a fresh catalog with CurrentStorageVersionCode the
// first time the directory is used.
func OpenBadgerEngine(opts BadgerOptions) (*BadgerEngine, error) {
	dir := opts.DataDir
	if opts.InMemory {
		// Badger refuses to open in in-memory mode with a directory set.
		dir = ""
	}
	bopts := badger.DefaultOptions(dir)
	if opts.InMemory {
		bopts = bopts.WithInMemory(true)
	}
	bopts = bopts.WithSyncWrites(opts.SyncWrites).WithLogger(nil)

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("engine: opening badger at %s: %w", opts.DataDir, err)
	}

	if !opts.InMemory && !CatalogExists(opts.DataDir) {
		if err := WriteCatalog(opts.DataDir, CurrentStorageVersionCode); err != nil {
			db.Close()
			return nil, fmt.Errorf("engine: writing catalog: %w", err)
		}
	}

	return &BadgerEngine{db: db, log: opts.Logger, path: opts.DataDir}, nil
}

func nodeKey(id string) []byte {
	return append([]byte{prefixNode}, []byte(id)...)
}

func edgeKey(source, target, rel string) []byte {
	k := []byte{prefixEdge}
	k = append(k, []byte(source)...)
	k = append(k, 0)
	k = append(k, []byte(target)...)
	k = append(k, 0)
	k = append(k, []byte(rel)...)
	return k
}

func typeIndexKey(typ, id string) []byte {
	k := []byte{prefixTypeIndex}
	k = append(k, []byte(typ)...)
	k = append(k, 0)
	k = append(k, []byte(id)...)
	return k
}

func outIndexKey(source, target, rel string) []byte {
	k := []byte{prefixOutIndex}
	k = append(k, []byte(source)...)
	k = append(k, 0)
	k = append(k, []byte(target)...)
	k = append(k, 0)
	k = append(k, []byte(rel)...)
	return k
}

func inIndexKey(target, source, rel string) []byte {
	k := []byte{prefixInIndex}
	k = append(k, []byte(target)...)
	k = append(k, 0)
	k = append(k, []byte(source)...)
	k = append(k, 0)
	k = append(k, []byte(rel)...)
	return k
}

func (e *BadgerEngine) checkOpen() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrEngineClosed
	}
	return nil
}

// HasNode reports whether a node with the given id exists.
func (e *BadgerEngine) HasNode(id string) (bool, error) {
	if err := e.checkOpen(); err != nil {
		return false, err
	}
	found := false
	err := e.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(nodeKey(id))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

// GetNode fetches a node by id, returning ErrNotFound if absent.
func (e *BadgerEngine) GetNode(id string) (*Node, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	var node *Node
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(nodeKey(id))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var n Node
			if err := json.Unmarshal(val, &n); err != nil {
				return err
			}
			node = &n
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

// UpsertNode merges-by-id: on first insert UpdatedAt is set to now and
// CreatedAt is set to now unless the caller supplied one (Import relies on
// this to carry created_at across); on a re-insert of an existing id, core columns are overwritten and
// UpdatedAt is refreshed, while CreatedAt is preserved.
func (e *BadgerEngine) UpsertNode(node *Node) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now().UTC()
	return e.db.Update(func(txn *badger.Txn) error {
		var existing *Node
		item, err := txn.Get(nodeKey(node.ID))
		switch {
		case err == nil:
			if verr := item.Value(func(val []byte) error {
				var n Node
				if uerr := json.Unmarshal(val, &n); uerr != nil {
					return uerr
				}
				existing = &n
				return nil
			}); verr != nil {
				return verr
			}
			// Clear the old type index entry; the new node may change type.
			if existing.Type != node.Type {
				if derr := txn.Delete(typeIndexKey(existing.Type, existing.ID)); derr != nil && derr != badger.ErrKeyNotFound {
					return derr
				}
			}
		case err == badger.ErrKeyNotFound:
			// fresh insert
		default:
			return err
		}

		if existing != nil {
			node.CreatedAt = existing.CreatedAt
		} else if node.CreatedAt.IsZero() {
			node.CreatedAt = now
		}
		node.UpdatedAt = now

		data, err := json.Marshal(node)
		if err != nil {
			return err
		}
		if err := txn.Set(nodeKey(node.ID), data); err != nil {
			return err
		}
		return txn.Set(typeIndexKey(node.Type, node.ID), []byte{})
	})
}

// DeleteNode removes a node and detaches (deletes) every edge incident to
// it, in both directions.
func (e *BadgerEngine) DeleteNode(id string) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(nodeKey(id))
		if err == badger.ErrKeyNotFound {
			return nil // deleting an absent node is a no-op, not an error
		}
		if err != nil {
			return err
		}

		var n Node
		if verr := item.Value(func(val []byte) error { return json.Unmarshal(val, &n) }); verr != nil {
			return verr
		}

		if derr := deleteIncidentEdges(txn, id); derr != nil {
			return derr
		}
		if derr := txn.Delete(typeIndexKey(n.Type, n.ID)); derr != nil && derr != badger.ErrKeyNotFound {
			return derr
		}
		return txn.Delete(nodeKey(id))
	})
}

func deleteIncidentEdges(txn *badger.Txn, id string) error {
	var toDelete [][]byte

	collect := func(prefix byte) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		scanPrefix := append([]byte{prefix}, []byte(id)...)
		scanPrefix = append(scanPrefix, 0)
		for it.Seek(scanPrefix); it.ValidForPrefix(scanPrefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			toDelete = append(toDelete, key)
		}
		return nil
	}
	if err := collect(prefixOutIndex); err != nil {
		return err
	}
	if err := collect(prefixInIndex); err != nil {
		return err
	}

	for _, key := range toDelete {
		parts := splitNulSeparated(key[1:])
		if len(parts) != 3 {
			continue
		}
		var source, target, rel string
		if key[0] == prefixOutIndex {
			source, target, rel = parts[0], parts[1], parts[2]
		} else {
			target, source, rel = parts[0], parts[1], parts[2]
		}
		if err := txn.Delete(edgeKey(source, target, rel)); err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		if err := txn.Delete(outIndexKey(source, target, rel)); err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		if err := txn.Delete(inIndexKey(target, source, rel)); err != nil && err != badger.ErrKeyNotFound {
			return err
		}
	}
	return nil
}

func splitNulSeparated(b []byte) []string {
	var parts []string
	start := 0
	for i, c := range b {
		if c == 0 {
			parts = append(parts, string(b[start:i]))
			start = i + 1
		}
	}
	parts = append(parts, string(b[start:]))
	return parts
}

// HasEdge reports whether an edge with the given identity exists.
func (e *BadgerEngine) HasEdge(source, target, relationship string) (bool, error) {
	if err := e.checkOpen(); err != nil {
		return false, err
	}
	found := false
	err := e.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(edgeKey(source, target, relationship))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

// GetEdge fetches an edge by identity.
func (e *BadgerEngine) GetEdge(source, target, relationship string) (*Edge, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	var edge *Edge
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(edgeKey(source, target, relationship))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var e2 Edge
			if err := json.Unmarshal(val, &e2); err != nil {
				return err
			}
			edge = &e2
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return edge, nil
}

// UpsertEdge creates or merges-by-identity an edge. Both endpoints must
// already exist (ErrInvalidEdge otherwise). On a re-insert of an existing
// identity, timestamps and properties are overwritten but CreatedAt is
// preserved.
func (e *BadgerEngine) UpsertEdge(edge *Edge) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now().UTC()
	return e.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(nodeKey(edge.Source)); err != nil {
			if err == badger.ErrKeyNotFound {
				return ErrInvalidEdge
			}
			return err
		}
		if _, err := txn.Get(nodeKey(edge.Target)); err != nil {
			if err == badger.ErrKeyNotFound {
				return ErrInvalidEdge
			}
			return err
		}

		existingItem, err := txn.Get(edgeKey(edge.Source, edge.Target, edge.Relationship))
		switch {
		case err == nil:
			if verr := existingItem.Value(func(val []byte) error {
				var ex Edge
				if uerr := json.Unmarshal(val, &ex); uerr != nil {
					return uerr
				}
				edge.CreatedAt = ex.CreatedAt
				return nil
			}); verr != nil {
				return verr
			}
		case err == badger.ErrKeyNotFound:
			edge.CreatedAt = now
		default:
			return err
		}
		edge.UpdatedAt = now

		data, err := json.Marshal(edge)
		if err != nil {
			return err
		}
		if err := txn.Set(edgeKey(edge.Source, edge.Target, edge.Relationship), data); err != nil {
			return err
		}
		if err := txn.Set(outIndexKey(edge.Source, edge.Target, edge.Relationship), []byte{}); err != nil {
			return err
		}
		return txn.Set(inIndexKey(edge.Target, edge.Source, edge.Relationship), []byte{})
	})
}

// DeleteEdge removes a single edge by identity. A no-op if absent.
func (e *BadgerEngine) DeleteEdge(source, target, relationship string) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(edgeKey(source, target, relationship)); err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		if err := txn.Delete(outIndexKey(source, target, relationship)); err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Delete(inIndexKey(target, source, relationship))
	})
}

// OutgoingEdges returns every edge whose source is nodeID.
func (e *BadgerEngine) OutgoingEdges(nodeID string) ([]*Edge, error) {
	return e.edgesByIndex(prefixOutIndex, nodeID, false)
}

// IncomingEdges returns every edge whose target is nodeID.
func (e *BadgerEngine) IncomingEdges(nodeID string) ([]*Edge, error) {
	return e.edgesByIndex(prefixInIndex, nodeID, true)
}

func (e *BadgerEngine) edgesByIndex(prefix byte, nodeID string, incoming bool) ([]*Edge, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	var edges []*Edge
	err := e.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		scanPrefix := append([]byte{prefix}, []byte(nodeID)...)
		scanPrefix = append(scanPrefix, 0)
		for it.Seek(scanPrefix); it.ValidForPrefix(scanPrefix); it.Next() {
			parts := splitNulSeparated(it.Item().Key()[1:])
			if len(parts) != 3 {
				continue
			}
			var source, target, rel string
			if incoming {
				target, source, rel = parts[0], parts[1], parts[2]
			} else {
				source, target, rel = parts[0], parts[1], parts[2]
			}
			edge, err := e.getEdgeTxn(txn, source, target, rel)
			if err != nil {
				if err == ErrNotFound {
					continue
				}
				return err
			}
			edges = append(edges, edge)
		}
		return nil
	})
	return edges, err
}

func (e *BadgerEngine) getEdgeTxn(txn *badger.Txn, source, target, rel string) (*Edge, error) {
	item, err := txn.Get(edgeKey(source, target, rel))
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var edge Edge
	if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &edge) }); err != nil {
		return nil, err
	}
	return &edge, nil
}

// AllNodes returns every node in the database. Ordering is not guaranteed.
func (e *BadgerEngine) AllNodes() ([]*Node, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	var nodes []*Node
	err := e.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte{prefixNode}
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var n Node
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &n) }); err != nil {
				return err
			}
			nCopy := n
			nodes = append(nodes, &nCopy)
		}
		return nil
	})
	return nodes, err
}

// AllEdges returns every edge in the database. Ordering is not guaranteed.
func (e *BadgerEngine) AllEdges() ([]*Edge, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	var edges []*Edge
	err := e.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte{prefixEdge}
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var ed Edge
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &ed) }); err != nil {
				return err
			}
			edCopy := ed
			edges = append(edges, &edCopy)
		}
		return nil
	})
	return edges, err
}

// NodesByType returns every node whose Type equals typ, via the type index.
func (e *BadgerEngine) NodesByType(typ string) ([]*Node, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	var nodes []*Node
	err := e.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		scanPrefix := typeIndexKey(typ, "")
		for it.Seek(scanPrefix); it.ValidForPrefix(scanPrefix); it.Next() {
			parts := splitNulSeparated(it.Item().Key()[1:])
			if len(parts) != 2 {
				continue
			}
			id := parts[1]
			item, err := txn.Get(nodeKey(id))
			if err == badger.ErrKeyNotFound {
				continue
			}
			if err != nil {
				return err
			}
			var n Node
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &n) }); err != nil {
				return err
			}
			nodes = append(nodes, &n)
		}
		return nil
	})
	return nodes, err
}

// NodeCount returns the total number of nodes.
func (e *BadgerEngine) NodeCount() (int64, error) {
	nodes, err := e.AllNodes()
	if err != nil {
		return 0, err
	}
	return int64(len(nodes)), nil
}

// EdgeCount returns the total number of edges.
func (e *BadgerEngine) EdgeCount() (int64, error) {
	edges, err := e.AllEdges()
	if err != nil {
		return 0, err
	}
	return int64(len(edges)), nil
}

// Close releases the Badger handle. Safe to call once; a second call
// returns nil.
func (e *BadgerEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.db.Close()
}

// Path returns the directory this engine was opened against.
func (e *BadgerEngine) Path() string {
	return e.path
}
