package graph

import "encoding/json"

// InputValue is one resolved input of a job node: either a literal widget
// value or a reference to another node's output.
type InputValue struct {
	Scalar interface{}
	Ref    *Reference
}

// Reference is a data dependency on another job node's output.
type Reference struct {
	NodeID      NodeID
	OutputIndex int
}

// ScalarValue wraps a literal value.
func ScalarValue(v interface{}) InputValue {
	return InputValue{Scalar: v}
}

// RefValue wraps a node-output reference.
func RefValue(id NodeID, outputIndex int) InputValue {
	return InputValue{Ref: &Reference{NodeID: id, OutputIndex: outputIndex}}
}

// IsRef reports whether the input is a reference rather than a literal.
func (v InputValue) IsRef() bool { return v.Ref != nil }

// References serialize as the two-element [node id, output slot] form the
// render backend expects; scalars serialize as themselves.
func (v InputValue) MarshalJSON() ([]byte, error) {
	if v.Ref != nil {
		return json.Marshal([]interface{}{v.Ref.NodeID.String(), v.Ref.OutputIndex})
	}
	return json.Marshal(v.Scalar)
}

func (v *InputValue) UnmarshalJSON(b []byte) error {
	var arr []json.RawMessage
	if err := json.Unmarshal(b, &arr); err == nil && len(arr) == 2 {
		var id NodeID
		var idx float64
		if id.UnmarshalJSON(arr[0]) == nil && json.Unmarshal(arr[1], &idx) == nil {
			v.Ref = &Reference{NodeID: id, OutputIndex: int(idx)}
			return nil
		}
	}
	return json.Unmarshal(b, &v.Scalar)
}

// JobNode is one executable node of a compiled job.
type JobNode struct {
	Kind   string                `json:"class_type"`
	Inputs map[string]InputValue `json:"inputs"`
}

// JobDescription is the execution-ready form of a workflow graph, keyed by
// node id.  It exists only for the duration of one submission.
type JobDescription map[string]JobNode
