package graph

import "strings"

// isPromptNode matches text-encoding nodes by kind or, failing that, by a
// "prompt" hint in the kind tag.
func isPromptNode(n *Node) bool {
	kind := strings.ToLower(n.Kind)
	return strings.Contains(kind, "textencode") || strings.Contains(kind, "prompt")
}

// isNegativePromptNode routes polarity by title.  Untitled encoders are
// treated as positive.
func isNegativePromptNode(n *Node) bool {
	return strings.Contains(strings.ToLower(n.Title), "negative")
}

// setFirstWidgetValue overwrites widget slot 0, creating it when the node
// has no widget values yet.
func setFirstWidgetValue(n *Node, v interface{}) {
	if len(n.WidgetValues) == 0 {
		n.WidgetValues = []interface{}{v}
		return
	}
	n.WidgetValues[0] = v
}

// InjectPrompts rewrites the prompt text of every matching text-encoding
// node.  All positive matches receive positiveText and all negative matches
// receive negativeText; an empty override leaves the node's existing text
// alone.
func (g *Graph) InjectPrompts(positiveText, negativeText string) {
	for _, n := range g.Nodes {
		if !isPromptNode(n) {
			continue
		}
		if isNegativePromptNode(n) {
			if negativeText != "" {
				setFirstWidgetValue(n, negativeText)
			}
		} else if positiveText != "" {
			setFirstWidgetValue(n, positiveText)
		}
	}
}

// InjectInputImage points every image-load node at the uploaded filename.
func (g *Graph) InjectInputImage(filename string) {
	if filename == "" {
		return
	}
	for _, n := range g.NodesWithKind("loadimage") {
		setFirstWidgetValue(n, filename)
	}
}

// InjectSampler overrides the seed and step count on every sampler node.
// Widget positions follow the KSampler layout (seed at 0, steps at 2); a
// negative seed or non-positive steps leaves the respective value untouched.
func (g *Graph) InjectSampler(seed int64, steps int) {
	for _, n := range g.NodesWithKind("ksampler") {
		if seed >= 0 {
			if len(n.WidgetValues) == 0 {
				n.WidgetValues = []interface{}{seed}
			} else {
				n.WidgetValues[0] = seed
			}
		}
		if steps > 0 && len(n.WidgetValues) > 2 {
			n.WidgetValues[2] = steps
		}
	}
}
