package graph

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Compile turns a normalized graph into an execution-ready job description.
//
// Named inputs are reconstructed from two partially overlapping sources of
// truth: graph links and positional widget values.  Resolution is strictly
// first-writer-wins in this order:
//
//  1. link bindings, named by the target's declared input slot (slot index
//     when the slot carries no name)
//  2. declared-but-unlinked input slots consuming widget values in input
//     order
//  3. the per-kind widget order table (kinds.go)
//  4. a generic "text" fallback for prompt-like kinds
//  5. synthetic "value0", "value1", ... names for anything left, so no
//     widget data is ever silently dropped
//
// Graph-shape anomalies (dangling links, short tuples, missing slots) are
// skipped, never fatal; only a nil graph is an error.
func Compile(g *Graph) (JobDescription, error) {
	if g == nil {
		return nil, errors.New("cannot compile nil graph")
	}

	job := make(JobDescription, len(g.Nodes))
	claimed := make(map[NodeID][]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		job[n.ID.String()] = JobNode{
			Kind:   n.Kind,
			Inputs: make(map[string]InputValue),
		}
		claimed[n.ID] = make([]bool, len(n.WidgetValues))
	}

	// 1. link-derived inputs
	for _, l := range g.Links {
		target := g.NodeByID(l.TargetID)
		if target == nil || g.NodeByID(l.OriginID) == nil {
			continue
		}
		name := strconv.Itoa(l.TargetSlot)
		if l.TargetSlot >= 0 && l.TargetSlot < len(target.Inputs) && target.Inputs[l.TargetSlot].Name != "" {
			name = target.Inputs[l.TargetSlot].Name
		}
		inputs := job[target.ID.String()].Inputs
		if _, ok := inputs[name]; ok {
			continue
		}
		inputs[name] = RefValue(l.OriginID, l.OriginSlot)
	}

	for _, n := range g.Nodes {
		inputs := job[n.ID.String()].Inputs
		taken := claimed[n.ID]

		// 2. declared unlinked slots consume widget values in input order
		cursor := 0
		for i, slot := range n.Inputs {
			name := slot.Name
			if name == "" {
				name = strconv.Itoa(i)
			}
			if _, ok := inputs[name]; ok {
				continue
			}
			if slot.Link != nil {
				// bound in the editor but the link itself was dropped;
				// do not let it eat a widget value
				continue
			}
			for cursor < len(n.WidgetValues) && taken[cursor] {
				cursor++
			}
			if cursor >= len(n.WidgetValues) {
				break
			}
			inputs[name] = ScalarValue(n.WidgetValues[cursor])
			taken[cursor] = true
			cursor++
		}

		// 3. per-kind widget order
		if order, ok := kindWidgetOrder[strings.ToLower(n.Kind)]; ok {
			for i, name := range order {
				if i >= len(n.WidgetValues) {
					break
				}
				if taken[i] {
					continue
				}
				if name == "" {
					// UI-only position, consume and drop
					taken[i] = true
					continue
				}
				if _, exists := inputs[name]; exists {
					continue
				}
				inputs[name] = ScalarValue(n.WidgetValues[i])
				taken[i] = true
			}
		}

		// 4. generic text fallback for prompt-like nodes
		if isPromptNode(n) {
			if _, exists := inputs["text"]; !exists {
				for i, v := range n.WidgetValues {
					if taken[i] {
						continue
					}
					inputs["text"] = ScalarValue(v)
					taken[i] = true
					break
				}
			}
		}

		// 5. positional fallback for anything unclaimed
		synth := 0
		for i, v := range n.WidgetValues {
			if taken[i] {
				continue
			}
			name := fmt.Sprintf("value%d", synth)
			for {
				if _, exists := inputs[name]; !exists {
					break
				}
				synth++
				name = fmt.Sprintf("value%d", synth)
			}
			inputs[name] = ScalarValue(v)
			taken[i] = true
			synth++
		}
	}

	return job, nil
}
