package referral

import (
	"bytes"
	"encoding/json"
	"os"
	"reflect"
	"sync"
	"testing"
)

func member(id any, name string) *RawMember { return &RawMember{ID: id, Name: name} }

func level(n int, nodes ...NodeEntry) LevelEntry { return LevelEntry{Level: &n, Nodes: nodes} }

func edge(parent, left, right *RawMember) NodeEntry {
	return NodeEntry{Parent: parent, LeftChild: left, RightChild: right}
}

func payload(root *RawMember, levels ...LevelEntry) *Response {
	if levels == nil {
		levels = []LevelEntry{}
	}
	return &Response{Data: &TreeData{RootMember: root, TreeStructure: levels}}
}

func childIDs(n *TreeNode) []string {
	ids := make([]string, 0, len(n.Children))
	for _, c := range n.Children {
		ids = append(ids, c.ID)
	}
	return ids
}

func loadSample(t *testing.T) *Response {
	t.Helper()
	raw, err := os.ReadFile("testdata/sample.json")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return Decode(raw)
}

func TestNormalizeSampleFixture(t *testing.T) {
	root := Normalize(loadSample(t))
	if root == nil {
		t.Fatal("Normalize() = nil, want tree")
	}

	if root.ID != "1" {
		t.Errorf("root.ID = %q, want %q", root.ID, "1")
	}
	if root.Data.Name != "Ahmad bin Abdullah" {
		t.Errorf("root.Data.Name = %q", root.Data.Name)
	}
	if root.Data.Position != "" {
		t.Errorf("root.Data.Position = %q, want empty", root.Data.Position)
	}
	if got, want := childIDs(root), []string{"34", "35"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("root children = %v, want %v", got, want)
	}
	if got := root.Children[0].Data.Position; got != SideLeft {
		t.Errorf("34 position = %q, want left", got)
	}
	if got := root.Children[1].Data.Position; got != SideRight {
		t.Errorf("35 position = %q, want right", got)
	}

	if got, want := childIDs(root.Children[0]), []string{"52"}; !reflect.DeepEqual(got, want) {
		t.Errorf("34 children = %v, want %v", got, want)
	}
	if got, want := childIDs(root.Children[1]), []string{"57"}; !reflect.DeepEqual(got, want) {
		t.Errorf("35 children = %v, want %v", got, want)
	}
	if root.Count() != 5 {
		t.Errorf("Count() = %d, want 5", root.Count())
	}
}

func TestNormalizeMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty object", `{}`},
		{"empty data", `{"data":{}}`},
		{"null root", `{"data":{"root_member":null}}`},
		{"null root with levels", `{"data":{"root_member":null,"tree_structure":[]}}`},
		{"missing levels", `{"data":{"root_member":{"id":1,"name":"A"}}}`},
		{"root without id", `{"data":{"root_member":{"name":"A"},"tree_structure":[]}}`},
		{"root with zero id", `{"data":{"root_member":{"id":0,"name":"A"},"tree_structure":[]}}`},
		{"data not object", `{"data":[1,2]}`},
		{"invalid json", `{"data":`},
		{"empty input", ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(Decode([]byte(tt.raw))); got != nil {
				t.Errorf("Normalize(%s) = %+v, want nil", tt.raw, got)
			}
		})
	}

	if Normalize(nil) != nil {
		t.Error("Normalize(nil) should be nil")
	}
	if Normalize(&Response{}) != nil {
		t.Error("Normalize(empty Response) should be nil")
	}
}

func TestNormalizeRootOnly(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty list", `{"data":{"root_member":{"id":1,"name":"A"},"tree_structure":[]}}`},
		{"non-array list", `{"data":{"root_member":{"id":1,"name":"A"},"tree_structure":"oops"}}`},
		{"object list", `{"data":{"root_member":{"id":1,"name":"A"},"tree_structure":{"level":1}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := Normalize(Decode([]byte(tt.raw)))
			if root == nil {
				t.Fatal("Normalize() = nil, want root")
			}
			if root.Children == nil || len(root.Children) != 0 {
				t.Errorf("root.Children = %v, want empty non-nil slice", root.Children)
			}
		})
	}
}

func TestNormalizeEnrichment(t *testing.T) {
	full := &RawMember{ID: 2, Name: "B", Phone: "+601", Image: "https://img/2.png"}
	resp := payload(member(1, "Root"),
		level(1,
			edge(member(2, "B"), member(3, "C"), nil),
			edge(member(1, "Root"), full, nil),
		),
	)

	root := Normalize(resp)
	if got := root.IDs(); !reflect.DeepEqual(got, []string{"1", "2", "3"}) {
		t.Fatalf("IDs() = %v, want [1 2 3]", got)
	}
	b := root.Find("2")
	if b.Data.Phone != "+601" {
		t.Errorf("phone = %q, want %q", b.Data.Phone, "+601")
	}
	if b.Data.ImageURL != "https://img/2.png" {
		t.Errorf("imageURL = %q", b.Data.ImageURL)
	}
	if b.Data.Position != SideLeft {
		t.Errorf("position = %q, want left", b.Data.Position)
	}
	if got := childIDs(b); !reflect.DeepEqual(got, []string{"3"}) {
		t.Errorf("children of 2 = %v, want [3]", got)
	}
}

func TestNormalizeEnrichmentNeverDowngrades(t *testing.T) {
	full := &RawMember{ID: 2, Name: "B", Phone: "+601", Image: "https://img/2.png"}
	other := &RawMember{ID: 2, Name: "Other", Phone: "+602", Image: "https://img/other.png"}
	resp := payload(member(1, "Root"),
		level(1, edge(member(1, "Root"), full, nil)),
		level(2, edge(member(2, ""), nil, member(3, "C")), edge(other, nil, nil)),
	)

	b := Normalize(resp).Find("2")
	want := NodeData{Name: "B", Phone: "+601", ImageURL: "https://img/2.png", Position: SideLeft}
	if b.Data != want {
		t.Errorf("Data = %+v, want %+v", b.Data, want)
	}
}

func TestNormalizeFallbacks(t *testing.T) {
	resp := payload(member(1, "Root"),
		level(1, edge(member(1, "Root"), &RawMember{ID: 2}, nil)),
		level(2, edge(member(2, "Bee"), nil, nil)),
	)

	b := Normalize(resp).Find("2")
	if b.Data.Name != "Bee" {
		t.Errorf("name = %q, want Bee", b.Data.Name)
	}
	if b.Data.Phone != "Bee" {
		t.Errorf("phone = %q, want name fallback Bee", b.Data.Phone)
	}
	if b.Data.ImageURL != PlaceholderImage {
		t.Errorf("imageURL = %q, want placeholder", b.Data.ImageURL)
	}
}

func TestNormalizeRootProtection(t *testing.T) {
	resp := payload(member(1, "Root"),
		level(1, edge(member(1, "Root"), member(2, "B"), member(1, "Root"))),
		level(2, edge(member(2, "B"), member("1", "Root"), member(3, "C"))),
	)

	root, rep := Build(resp)
	if got := childIDs(root); !reflect.DeepEqual(got, []string{"2"}) {
		t.Errorf("root children = %v, want [2]", got)
	}
	if got := childIDs(root.Find("2")); !reflect.DeepEqual(got, []string{"3"}) {
		t.Errorf("children of 2 = %v, want [3]", got)
	}
	// The first attempt is a self-loop (1 under 1), the second is the root under 2.
	if rep.Outcomes[RejectedSelfLoop] != 1 || rep.Outcomes[RejectedRoot] != 1 {
		t.Errorf("Outcomes = %v", rep.Outcomes)
	}
}

func TestNormalizeCycleRejection(t *testing.T) {
	t.Run("through root", func(t *testing.T) {
		resp := payload(member(1, "Root"),
			level(1, edge(member(1, "Root"), member(2, "A"), nil)),
			level(2, edge(member(2, "A"), member(3, "B"), nil)),
			level(3, edge(member(3, "B"), member(2, "A"), nil)),
		)
		root, rep := Build(resp)
		if rep.Outcomes[RejectedCycle] != 1 {
			t.Errorf("RejectedCycle = %d, want 1", rep.Outcomes[RejectedCycle])
		}
		if len(root.Find("3").Children) != 0 {
			t.Error("3 should have no children")
		}
		assertAcyclic(t, root)
	})

	t.Run("detached pair", func(t *testing.T) {
		resp := payload(member(1, "Root"),
			level(1, edge(member(10, "A"), member(11, "B"), nil)),
			level(2, edge(member(11, "B"), member(10, "A"), nil)),
		)
		root, rep := Build(resp)
		if rep.Outcomes[RejectedCycle] != 1 {
			t.Errorf("RejectedCycle = %d, want 1", rep.Outcomes[RejectedCycle])
		}
		if root.Count() != 1 {
			t.Errorf("Count() = %d, want 1", root.Count())
		}
		if rep.Unreachable() != 2 {
			t.Errorf("Unreachable() = %d, want 2", rep.Unreachable())
		}
	})
}

func TestNormalizeSingleParent(t *testing.T) {
	resp := payload(member(1, "Root"),
		level(1, edge(member(1, "Root"), member(2, "A"), member(3, "B"))),
		level(2,
			edge(member(2, "A"), member(4, "C"), nil),
			edge(member(3, "B"), nil, member(4, "C")),
		),
	)

	root, rep := Build(resp)
	if got := childIDs(root.Find("2")); !reflect.DeepEqual(got, []string{"4"}) {
		t.Errorf("children of 2 = %v, want [4]", got)
	}
	if got := childIDs(root.Find("3")); len(got) != 0 {
		t.Errorf("children of 3 = %v, want none", got)
	}
	if rep.Outcomes[RejectedConflictingParent] != 1 {
		t.Errorf("RejectedConflictingParent = %d, want 1", rep.Outcomes[RejectedConflictingParent])
	}
	// Position is kept from the accepted edge.
	if got := root.Find("4").Data.Position; got != SideLeft {
		t.Errorf("4 position = %q, want left", got)
	}
}

func TestNormalizeDuplicateEdge(t *testing.T) {
	e := edge(member(1, "Root"), member(2, "A"), nil)
	resp := payload(member(1, "Root"), level(1, e, e), level(2, e))

	root, rep := Build(resp)
	if len(root.Children) != 1 {
		t.Errorf("len(root.Children) = %d, want 1", len(root.Children))
	}
	if rep.Outcomes[RejectedDuplicateEdge] != 2 {
		t.Errorf("RejectedDuplicateEdge = %d, want 2", rep.Outcomes[RejectedDuplicateEdge])
	}
}

func TestNormalizeSkipsEmptySlots(t *testing.T) {
	resp := payload(member(1, "Root"),
		level(1,
			edge(member(1, "Root"), nil, &RawMember{ID: 0, Name: "ghost"}),
			edge(nil, member(5, "orphan"), nil),
			edge(&RawMember{Name: "no id"}, member(6, "orphan"), nil),
		),
	)

	root, rep := Build(resp)
	if root.Count() != 1 {
		t.Errorf("Count() = %d, want 1", root.Count())
	}
	if rep.Outcomes[SkippedNoChild] != 2 {
		t.Errorf("SkippedNoChild = %d, want 2", rep.Outcomes[SkippedNoChild])
	}
	if rep.Entries != 1 {
		t.Errorf("Entries = %d, want 1", rep.Entries)
	}
	if rep.Registered != 1 {
		t.Errorf("Registered = %d, want 1", rep.Registered)
	}
}

func TestNormalizeMixedIDTypes(t *testing.T) {
	resp := payload(member(json.Number("1"), "Root"),
		level(1, edge(member("1", "Root"), member(float64(2), "A"), nil)),
		level(2, edge(member(int64(2), "A"), member("3", "B"), nil)),
		level(3, edge(member(json.Number("2"), "A"), nil, member(3, "B"))),
	)

	root, rep := Build(resp)
	if got := root.IDs(); !reflect.DeepEqual(got, []string{"1", "2", "3"}) {
		t.Errorf("IDs() = %v, want [1 2 3]", got)
	}
	if rep.Registered != 3 {
		t.Errorf("Registered = %d, want 3", rep.Registered)
	}
	if rep.Outcomes[RejectedDuplicateEdge] != 1 {
		t.Errorf("RejectedDuplicateEdge = %d, want 1", rep.Outcomes[RejectedDuplicateEdge])
	}
}

func TestNormalizeColors(t *testing.T) {
	resp := payload(member(1, "Root"),
		level(1, edge(member(1, "Root"), member(2, "A"), member(3, "B"))),
		level(2, edge(member(2, "A"), member(4, "C"), nil)),
		level(7, edge(member(3, "B"), nil, member(5, "D"))),
		level(9, edge(member(4, "C"), nil, member(2, "A"))),
	)

	root := Normalize(resp)
	tests := []struct {
		id   string
		want string
	}{
		{"1", Palette[0]},
		{"2", Palette[1]},
		{"3", Palette[1]},
		{"4", Palette[2]},
		{"5", Palette[7%len(Palette)]},
	}
	for _, tt := range tests {
		if got := root.Find(tt.id).Options.NodeBGColor; got != tt.want {
			t.Errorf("color(%s) = %s, want %s", tt.id, got, tt.want)
		}
	}
}

func TestNormalizeLevelFallback(t *testing.T) {
	resp := &Response{Data: &TreeData{
		RootMember: member(1, "Root"),
		TreeStructure: []LevelEntry{
			{Nodes: []NodeEntry{edge(member(1, "Root"), member(2, "A"), nil)}},
			{Nodes: []NodeEntry{edge(member(2, "A"), member(3, "B"), nil)}},
		},
	}}

	root := Normalize(resp)
	if got := root.Find("2").Options.NodeBGColor; got != Palette[1] {
		t.Errorf("color(2) = %s, want %s", got, Palette[1])
	}
	if got := root.Find("3").Options.NodeBGColor; got != Palette[2] {
		t.Errorf("color(3) = %s, want %s", got, Palette[2])
	}
}

func TestNormalizeNoDuplicateIDs(t *testing.T) {
	resp := payload(member(1, "Root"),
		level(1, edge(member(1, "Root"), member(2, "A"), member(3, "B"))),
		level(2,
			edge(member(2, "A"), member(3, "B"), member(4, "C")),
			edge(member(3, "B"), member(4, "C"), member(2, "A")),
			edge(member(4, "C"), member(1, "Root"), member(5, "D")),
		),
		level(3, edge(member(5, "D"), member(2, "A"), member(3, "B"))),
	)

	root, rep := Build(resp)
	seen := make(map[string]bool)
	for _, id := range root.IDs() {
		if seen[id] {
			t.Errorf("duplicate id %s", id)
		}
		seen[id] = true
	}
	if rep.Reachable != len(seen) {
		t.Errorf("Reachable = %d, want %d", rep.Reachable, len(seen))
	}
	assertAcyclic(t, root)
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	resp := loadSample(t)
	before, err := json.Marshal(resp)
	if err != nil {
		t.Fatal(err)
	}
	_ = Normalize(resp)
	after, err := json.Marshal(resp)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, after) {
		t.Errorf("input changed:\nbefore %s\nafter  %s", before, after)
	}
}

func TestNormalizeConcurrent(t *testing.T) {
	resp := loadSample(t)
	var wg sync.WaitGroup
	counts := make([]int, 16)
	for i := range counts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			counts[i] = Normalize(resp).Count()
		}(i)
	}
	wg.Wait()
	for i, c := range counts {
		if c != 5 {
			t.Errorf("run %d: Count() = %d, want 5", i, c)
		}
	}
}

func TestBuildReport(t *testing.T) {
	_, rep := Build(loadSample(t))

	if rep.Levels != 2 {
		t.Errorf("Levels = %d, want 2", rep.Levels)
	}
	if rep.Entries != 3 {
		t.Errorf("Entries = %d, want 3", rep.Entries)
	}
	if rep.Outcomes[Attached] != 4 {
		t.Errorf("Attached = %d, want 4", rep.Outcomes[Attached])
	}
	if rep.Outcomes[SkippedNoChild] != 2 {
		t.Errorf("SkippedNoChild = %d, want 2", rep.Outcomes[SkippedNoChild])
	}
	if rep.Rejected() != 0 {
		t.Errorf("Rejected() = %d, want 0", rep.Rejected())
	}
	if rep.Registered != 5 || rep.Reachable != 5 || rep.Unreachable() != 0 {
		t.Errorf("Registered/Reachable = %d/%d", rep.Registered, rep.Reachable)
	}
}

func TestAttachResultString(t *testing.T) {
	tests := []struct {
		r    AttachResult
		want string
	}{
		{Attached, "attached"},
		{RejectedCycle, "rejected_cycle"},
		{RejectedDuplicateEdge, "rejected_duplicate_edge"},
		{AttachResult(99), "unknown"},
		{AttachResult(-1), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.r.String(); got != tt.want {
			t.Errorf("AttachResult(%d).String() = %q, want %q", int(tt.r), got, tt.want)
		}
	}
}

func assertAcyclic(t *testing.T, root *TreeNode) {
	t.Helper()
	onPath := make(map[*TreeNode]bool)
	var visit func(n *TreeNode)
	visit = func(n *TreeNode) {
		if onPath[n] {
			t.Fatalf("cycle through %s", n.ID)
		}
		onPath[n] = true
		for _, c := range n.Children {
			visit(c)
		}
		delete(onPath, n)
	}
	visit(root)
}
