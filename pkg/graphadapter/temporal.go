package graphadapter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kgstore/kgstore/pkg/engine"
)

const (
	timestampNodeType = "Timestamp"
	eventNodeType     = "Event"
	timeAttributeKey  = "time_at"
	eventHopLimit     = 2
)

// CollectTimeIDs returns a comma-separated, double-quoted list of ids of
// Timestamp-typed nodes whose time_at attribute lies in [from, to]. A nil
// bound is unbounded on that side; both nil returns an empty string
// without touching the engine, per spec §4.1.
func (a *Adapter) CollectTimeIDs(from, to *int64) (string, error) {
	if from == nil && to == nil {
		if _, err := a.handle(); err != nil {
			return "", err
		}
		return "", nil
	}

	var ids []string
	err := a.withLock(func(eng engine.Engine) error {
		nodes, nerr := eng.NodesByType(timestampNodeType)
		if nerr != nil {
			return nerr
		}
		for _, n := range nodes {
			raw, ok := n.Properties[timeAttributeKey]
			if !ok {
				continue
			}
			t, ok := toInt64(raw)
			if !ok {
				continue
			}
			if from != nil && t < *from {
				continue
			}
			if to != nil && t > *to {
				continue
			}
			ids = append(ids, fmt.Sprintf("%q", n.ID))
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return strings.Join(ids, ","), nil
}

func toInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case float64:
		return int64(t), true
	case int64:
		return t, true
	case int:
		return int64(t), true
	case string:
		i, err := strconv.ParseInt(t, 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

// EventDict is the normalized shape CollectEvents returns for each Event
// node it finds.
type EventDict struct {
	ID          string
	Name        string
	Description string
	Location    string
}

// CollectEvents finds every Event-typed node within two hops of any id in
// ids and returns its normalized fields.
func (a *Adapter) CollectEvents(ids []string) ([]EventDict, error) {
	var out []EventDict
	err := a.withLock(func(eng engine.Engine) error {
		seen := make(map[string]bool, len(ids))
		frontier := append([]string{}, ids...)
		for _, id := range ids {
			seen[id] = true
		}
		for hop := 0; hop < eventHopLimit && len(frontier) > 0; hop++ {
			var next []string
			for _, id := range frontier {
				neighborIDs, nerr := a.neighborIDsLocked(eng, id)
				if nerr != nil {
					return nerr
				}
				for _, nid := range neighborIDs {
					if !seen[nid] {
						seen[nid] = true
						next = append(next, nid)
					}
				}
			}
			frontier = next
		}

		for id := range seen {
			n, gerr := eng.GetNode(id)
			if gerr != nil {
				continue
			}
			if n.Type != eventNodeType {
				continue
			}
			ev := EventDict{ID: n.ID, Name: n.Name}
			if desc, ok := n.Properties["description"].(string); ok {
				ev.Description = desc
			}
			if loc, ok := n.Properties["location"].(string); ok {
				ev.Location = loc
			}
			out = append(out, ev)
		}
		return nil
	})
	return out, err
}
