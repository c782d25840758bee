package graph

import "strings"

// UnknownKind is assigned to nodes that carry no type tag at all.  Graphs
// come from varied authoring tools and missing fields are expected.
const UnknownKind = "unknown"

// annotation node kinds carry no computation and are stripped before
// compilation
var annotationKinds = map[string]bool{
	"note":          true,
	"markdown note": true,
}

// Normalize cleans the graph in place: annotation-only nodes are removed,
// links around removed (or never-present) nodes are dropped, and every
// surviving node gets a resolved kind tag.
func (g *Graph) Normalize() {
	kept := make([]*Node, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		if annotationKinds[strings.ToLower(n.Kind)] {
			continue
		}
		if n.Kind == "" {
			n.Kind = UnknownKind
		}
		kept = append(kept, n)
	}
	g.Nodes = kept
	g.reindex()

	links := make([]*Link, 0, len(g.Links))
	for _, l := range g.Links {
		if g.NodeByID(l.OriginID) == nil || g.NodeByID(l.TargetID) == nil {
			continue
		}
		links = append(links, l)
	}
	g.Links = links
}
