package engine

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// exportNodesFile and exportEdgesFile are the two files MigrationEngine's
// EXPORT step produces in a scratch directory, and IMPORT consumes. The
// format is one JSON object per line, matching the teacher's Neo4j APOC
// export convention (nodes.json / relationships.json) adapted to this
// engine's Node/Edge shape.
const (
	exportNodesFile  = "nodes.jsonl"
	exportEdgesFile  = "relationships.jsonl"
	exportSchemaFile = "schema.json"
)

// exportSchema is a tiny marker file asserting the export produced a
// non-empty schema, per spec §4.2 ("assert that the export produced a
// non-empty schema file").
type exportSchema struct {
	NodeCount int64 `json:"node_count"`
	EdgeCount int64 `json:"edge_count"`
}

// Export writes every node and edge in the engine to dir as newline-
// delimited JSON, plus a schema marker file. Used by MigrationEngine's
// EXPORT step.
func Export(e Engine, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("engine: creating export dir: %w", err)
	}

	nodes, err := e.AllNodes()
	if err != nil {
		return fmt.Errorf("engine: exporting nodes: %w", err)
	}
	if err := writeJSONLines(filepath.Join(dir, exportNodesFile), nodes); err != nil {
		return err
	}

	edges, err := e.AllEdges()
	if err != nil {
		return fmt.Errorf("engine: exporting edges: %w", err)
	}
	if err := writeJSONLines(filepath.Join(dir, exportEdgesFile), edges); err != nil {
		return err
	}

	schema := exportSchema{NodeCount: int64(len(nodes)), EdgeCount: int64(len(edges))}
	data, err := json.Marshal(schema)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, exportSchemaFile), data, 0o644)
}

func writeJSONLines[T any](path string, items []T) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("engine: writing %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return w.Flush()
}

// VerifyExportSchema reads back the schema marker file and confirms the
// export was non-empty in the sense required by the spec: the schema file
// itself must exist and parse. An export of an empty graph is still valid
// (zero nodes/edges is a legitimate graph state); what must never happen is
// a missing or corrupt schema file.
func VerifyExportSchema(dir string) (exportSchema, error) {
	data, err := os.ReadFile(filepath.Join(dir, exportSchemaFile))
	if err != nil {
		return exportSchema{}, fmt.Errorf("engine: export produced no schema file: %w", err)
	}
	var schema exportSchema
	if err := json.Unmarshal(data, &schema); err != nil {
		return exportSchema{}, fmt.Errorf("engine: export schema file is corrupt: %w", err)
	}
	return schema, nil
}

// Import reads nodes and edges previously written by Export from dir and
// upserts them into e. Nodes are loaded before edges so edge endpoint
// validation succeeds.
func Import(e Engine, dir string) error {
	nodesPath := filepath.Join(dir, exportNodesFile)
	if _, err := os.Stat(nodesPath); err == nil {
		if err := importJSONLines(nodesPath, func(n *Node) error { return e.UpsertNode(n) }); err != nil {
			return fmt.Errorf("engine: importing nodes: %w", err)
		}
	}

	edgesPath := filepath.Join(dir, exportEdgesFile)
	if _, err := os.Stat(edgesPath); err == nil {
		if err := importJSONLines(edgesPath, func(ed *Edge) error { return e.UpsertEdge(ed) }); err != nil {
			return fmt.Errorf("engine: importing edges: %w", err)
		}
	}
	return nil
}

func importJSONLines[T any](path string, apply func(*T) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var item T
		if err := json.Unmarshal(line, &item); err != nil {
			return err
		}
		if err := apply(&item); err != nil {
			return err
		}
	}
	return scanner.Err()
}
