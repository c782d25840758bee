package graph

import (
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"
)

// NodeID is a node identifier as found in exported workflows.  Authoring
// tools are inconsistent about whether ids are serialized as JSON numbers or
// strings, so both forms are accepted and normalized to a string.
type NodeID string

func (id *NodeID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*id = NodeID(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*id = NodeID(strconv.FormatInt(int64(f), 10))
		return nil
	}
	return errors.New("node id is neither string nor number")
}

func (id NodeID) String() string { return string(id) }

// Slot is a declared input or output connection point on a node.
type Slot struct {
	Name  string `json:"name"`
	Type  string `json:"type,omitempty"`
	Link  *int   `json:"link,omitempty"`  // input slots: id of the incoming link, if bound
	Links *[]int `json:"links,omitempty"` // output slots
}

// Node is one operation in a workflow graph.  Kind is the free-form type tag
// ("KSampler", "CLIPTextEncode", ...).  WidgetValues are the positional
// parameters that are not wired through links.
type Node struct {
	ID           NodeID        `json:"id"`
	Kind         string        `json:"type"`
	Title        string        `json:"title,omitempty"`
	Inputs       []Slot        `json:"inputs,omitempty"`
	Outputs      []Slot        `json:"outputs,omitempty"`
	WidgetValues []interface{} `json:"widgets_values,omitempty"`
}

// Graph is the visual/editable workflow representation.  It is decoded from
// externally authored JSON and is expected to be loosely structured; decoding
// tolerates missing fields and malformed links rather than failing.
type Graph struct {
	Nodes []*Node `json:"nodes"`
	Links []*Link `json:"links"`

	nodesByID map[NodeID]*Node
}

func (g *Graph) UnmarshalJSON(b []byte) error {
	type alias struct {
		Nodes []*Node           `json:"nodes"`
		Links []json.RawMessage `json:"links"`
	}
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}

	g.Nodes = a.Nodes
	if g.Nodes == nil {
		g.Nodes = make([]*Node, 0)
	}

	// malformed link tuples are dropped, never fatal
	g.Links = make([]*Link, 0, len(a.Links))
	for _, raw := range a.Links {
		l := &Link{}
		if err := l.UnmarshalJSON(raw); err != nil {
			continue
		}
		g.Links = append(g.Links, l)
	}

	g.reindex()
	return nil
}

func (g *Graph) reindex() {
	g.nodesByID = make(map[NodeID]*Node, len(g.Nodes))
	for _, n := range g.Nodes {
		g.nodesByID[n.ID] = n
	}
}

// NodeByID returns the node with the given id, or nil.
func (g *Graph) NodeByID(id NodeID) *Node {
	if g.nodesByID == nil {
		g.reindex()
	}
	return g.nodesByID[id]
}

// NodesWithKind returns all nodes whose kind contains the given substring,
// case-insensitive.
func (g *Graph) NodesWithKind(substr string) []*Node {
	needle := strings.ToLower(substr)
	retv := make([]*Node, 0)
	for _, n := range g.Nodes {
		if strings.Contains(strings.ToLower(n.Kind), needle) {
			retv = append(retv, n)
		}
	}
	return retv
}

// Clone returns a deep copy of the graph.  Runs mutate their working copy
// (normalization, parameter injection) and the stored original must stay
// untouched.
func (g *Graph) Clone() (*Graph, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return nil, err
	}
	clone := &Graph{}
	if err := json.Unmarshal(data, clone); err != nil {
		return nil, err
	}
	return clone, nil
}

// NewGraphFromReader decodes a workflow graph from r.
func NewGraphFromReader(r io.Reader) (*Graph, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return NewGraphFromJSON(data)
}

// NewGraphFromJSON decodes a workflow graph from raw JSON.
func NewGraphFromJSON(data []byte) (*Graph, error) {
	g := &Graph{}
	if err := json.Unmarshal(data, g); err != nil {
		return nil, err
	}
	return g, nil
}
