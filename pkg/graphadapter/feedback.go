package graphadapter

import "github.com/kgstore/kgstore/pkg/engine"

// feedbackEdgeRelationship is the edge label apply_feedback_weight
// targets, per spec §4.1.
const feedbackEdgeRelationship = "used_graph_element_to_answer"

// ApplyFeedbackWeight reads the properties of every edge labeled
// used_graph_element_to_answer outgoing from ids, adds w to a
// feedback_weight property (default 0), and writes it back. This
// read-modify-write is not atomic across concurrent callers — see
// DESIGN.md's resolution of spec §9's open question — the documented
// semantics are last-writer-wins within a lock window, matching
// cognee's own apply_feedback_weight.
func (a *Adapter) ApplyFeedbackWeight(ids []string, w float64) error {
	return a.withLock(func(eng engine.Engine) error {
		for _, id := range ids {
			outgoing, oerr := eng.OutgoingEdges(id)
			if oerr != nil {
				return oerr
			}
			for _, e := range outgoing {
				if e.Relationship != feedbackEdgeRelationship {
					continue
				}
				if e.Properties == nil {
					e.Properties = make(map[string]any)
				}
				current, _ := e.Properties["feedback_weight"].(float64)
				e.Properties["feedback_weight"] = current + w
				if err := eng.UpsertEdge(e); err != nil {
					return err
				}
			}
		}
		return nil
	})
}
