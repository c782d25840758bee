package graph

import "testing"

const promptWorkflow = `{
	"nodes": [
		{"id": 1, "type": "CLIPTextEncode", "widgets_values": ["a cat"]},
		{"id": 2, "type": "CLIPTextEncode", "title": "Negative Prompt", "widgets_values": ["ugly"]},
		{"id": 3, "type": "KSampler", "widgets_values": [7, "fixed", 30, 8.0, "euler", "normal", 1.0]},
		{"id": 4, "type": "LoadImage", "widgets_values": ["old.png", "image"]}
	],
	"links": []
}`

func TestInjectPromptsPolarityRouting(t *testing.T) {
	g := mustGraph(t, promptWorkflow)
	g.Normalize()
	g.InjectPrompts("a dog", "blurry")

	if got := g.NodeByID("1").WidgetValues[0]; got != "a dog" {
		t.Errorf("positive node text = %v, want a dog", got)
	}
	if got := g.NodeByID("2").WidgetValues[0]; got != "blurry" {
		t.Errorf("negative node text = %v, want blurry", got)
	}
}

func TestInjectPromptsCreatesWidgetSlot(t *testing.T) {
	data := `{"nodes": [{"id": 1, "type": "CLIPTextEncode"}], "links": []}`
	g := mustGraph(t, data)
	g.Normalize()
	g.InjectPrompts("hello", "")

	n := g.NodeByID("1")
	if len(n.WidgetValues) != 1 || n.WidgetValues[0] != "hello" {
		t.Errorf("widget slot should be created: %v", n.WidgetValues)
	}
}

func TestInjectPromptsAllMatchesReceiveValue(t *testing.T) {
	data := `{
		"nodes": [
			{"id": 1, "type": "CLIPTextEncode", "widgets_values": ["x"]},
			{"id": 2, "type": "MyPromptBox", "widgets_values": ["y"]}
		],
		"links": []
	}`
	g := mustGraph(t, data)
	g.Normalize()
	g.InjectPrompts("shared", "")

	for _, id := range []NodeID{"1", "2"} {
		if got := g.NodeByID(id).WidgetValues[0]; got != "shared" {
			t.Errorf("node %s text = %v, want shared", id, got)
		}
	}
}

func TestInjectInputImage(t *testing.T) {
	g := mustGraph(t, promptWorkflow)
	g.Normalize()
	g.InjectInputImage("uploaded_123.png")

	n := g.NodeByID("4")
	if n.WidgetValues[0] != "uploaded_123.png" {
		t.Errorf("load image widget = %v, want uploaded_123.png", n.WidgetValues[0])
	}
	// second widget (the upload combo state) untouched
	if n.WidgetValues[1] != "image" {
		t.Errorf("unrelated widget changed: %v", n.WidgetValues[1])
	}
}

func TestInjectSampler(t *testing.T) {
	g := mustGraph(t, promptWorkflow)
	g.Normalize()
	g.InjectSampler(1234, 25)

	n := g.NodeByID("3")
	if n.WidgetValues[0] != int64(1234) {
		t.Errorf("seed widget = %v, want 1234", n.WidgetValues[0])
	}
	if n.WidgetValues[2] != 25 {
		t.Errorf("steps widget = %v, want 25", n.WidgetValues[2])
	}
	// cfg untouched
	if n.WidgetValues[3] != 8.0 {
		t.Errorf("cfg widget changed: %v", n.WidgetValues[3])
	}
}

func TestInjectThenCompile(t *testing.T) {
	g := mustGraph(t, promptWorkflow)
	g.Normalize()
	g.InjectPrompts("a dog", "blurry")
	g.InjectSampler(99, 0)

	job, err := Compile(g)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if got := scalarInput(t, job, "1", "text"); got != "a dog" {
		t.Errorf("positive text = %v, want a dog", got)
	}
	if got := scalarInput(t, job, "2", "text"); got != "blurry" {
		t.Errorf("negative text = %v, want blurry", got)
	}
	if got := scalarInput(t, job, "3", "seed"); got != int64(99) {
		t.Errorf("seed = %v, want 99", got)
	}
	if got := scalarInput(t, job, "3", "steps"); got != float64(30) {
		t.Errorf("steps = %v, want the original 30", got)
	}
}
