package referral

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestWalkStops(t *testing.T) {
	root := Normalize(loadSample(t))

	var visited []string
	root.Walk(func(n *TreeNode, _ int) bool {
		visited = append(visited, n.ID)
		return n.ID != "52"
	})
	if want := []string{"1", "34", "52"}; !reflect.DeepEqual(visited, want) {
		t.Errorf("visited = %v, want %v", visited, want)
	}
}

func TestWalkNil(t *testing.T) {
	var root *TreeNode
	called := false
	root.Walk(func(*TreeNode, int) bool {
		called = true
		return true
	})
	if called {
		t.Error("Walk on nil tree should not call fn")
	}
	if root.Count() != 0 {
		t.Errorf("Count() = %d, want 0", root.Count())
	}
	if root.Find("1") != nil {
		t.Error("Find on nil tree should return nil")
	}
}

func TestFind(t *testing.T) {
	root := Normalize(loadSample(t))

	if n := root.Find("57"); n == nil || n.Data.Name != "Nur Aisyah" {
		t.Errorf("Find(57) = %+v", n)
	}
	if n := root.Find("999"); n != nil {
		t.Errorf("Find(999) = %+v, want nil", n)
	}
}

func TestSummarize(t *testing.T) {
	got := Summarize(Normalize(loadSample(t)))
	want := Summary{
		Nodes:      5,
		Depth:      2,
		PerDepth:   []int{1, 2, 2},
		LeftNodes:  2,
		RightNodes: 2,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Summarize() = %+v, want %+v", got, want)
	}

	if s := Summarize(nil); s.Nodes != 0 || s.PerDepth != nil {
		t.Errorf("Summarize(nil) = %+v, want zero", s)
	}
}

func TestWriteJSONShape(t *testing.T) {
	root := Normalize(loadSample(t))

	var buf bytes.Buffer
	if err := WriteJSON(root, &buf); err != nil {
		t.Fatalf("WriteJSON() error: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	for _, key := range []string{"id", "data", "options", "children"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("missing top-level key %q", key)
		}
	}
	data := doc["data"].(map[string]any)
	if pos, ok := data["position"]; !ok || pos != nil {
		t.Errorf("root position = %v, want null", pos)
	}
	if _, ok := data["imageURL"]; !ok {
		t.Error("missing data.imageURL")
	}
	if _, ok := doc["options"].(map[string]any)["nodeBGColor"]; !ok {
		t.Error("missing options.nodeBGColor")
	}
	if !strings.Contains(buf.String(), `"children": []`) {
		t.Error("leaf children should encode as an empty array")
	}

	back, err := ReadJSON(&buf)
	if err != nil {
		t.Fatalf("ReadJSON() error: %v", err)
	}
	if !reflect.DeepEqual(back, root) {
		t.Error("ReadJSON(WriteJSON(tree)) differs from tree")
	}
}

func TestSideJSON(t *testing.T) {
	var s Side
	if err := json.Unmarshal([]byte(`"sideways"`), &s); err == nil {
		t.Error("Unmarshal should reject unknown sides")
	}
	if err := json.Unmarshal([]byte(`null`), &s); err != nil || s != "" {
		t.Errorf("Unmarshal(null) = %q, %v", s, err)
	}
	b, _ := json.Marshal(SideRight)
	if string(b) != `"right"` {
		t.Errorf("Marshal(SideRight) = %s", b)
	}
}
