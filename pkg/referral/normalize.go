package referral

// AttachResult is the outcome of one attempt to hang a child under a parent.
// Rejections are ordinary results, not errors: the tree is built from
// whatever edges survive.
type AttachResult int

const (
	// Attached means the edge was recorded and the child appended.
	Attached AttachResult = iota
	// SkippedNoChild means the child slot was null or carried no id.
	SkippedNoChild
	// RejectedSelfLoop means parent and child share an id.
	RejectedSelfLoop
	// RejectedRoot means the child is the protected root member.
	RejectedRoot
	// RejectedCycle means the child is already an ancestor of the parent.
	RejectedCycle
	// RejectedConflictingParent means the child is already attached elsewhere.
	RejectedConflictingParent
	// RejectedDuplicateEdge means this exact parent/child edge already exists.
	RejectedDuplicateEdge
)

var attachResultNames = [...]string{
	Attached:                  "attached",
	SkippedNoChild:            "skipped_no_child",
	RejectedSelfLoop:          "rejected_self_loop",
	RejectedRoot:              "rejected_root",
	RejectedCycle:             "rejected_cycle",
	RejectedConflictingParent: "rejected_conflicting_parent",
	RejectedDuplicateEdge:     "rejected_duplicate_edge",
}

func (r AttachResult) String() string {
	if r >= 0 && int(r) < len(attachResultNames) {
		return attachResultNames[r]
	}
	return "unknown"
}

// Report summarizes one normalization pass.
type Report struct {
	Levels     int // level entries visited
	Entries    int // node entries with a parent
	Registered int // distinct member ids seen
	Reachable  int // nodes reachable from the root
	Outcomes   map[AttachResult]int
}

// Rejected returns the number of attachment attempts that were dropped,
// excluding empty child slots.
func (r Report) Rejected() int {
	n := 0
	for res, c := range r.Outcomes {
		if res != Attached && res != SkippedNoChild {
			n += c
		}
	}
	return n
}

// Unreachable returns the number of registered members that did not end up
// under the root (for example parents whose own parent edge was rejected).
func (r Report) Unreachable() int { return r.Registered - r.Reachable }

// Normalize folds an API payload into a single rooted tree.
// It returns nil when the root member or the level list is missing.
// See [Build] for the variant that also reports what was dropped.
func Normalize(resp *Response) *TreeNode {
	root, _ := Build(resp)
	return root
}

// Build folds an API payload into a single rooted tree and reports every
// attachment outcome. It never mutates resp and never panics on partial data.
func Build(resp *Response) (*TreeNode, Report) {
	rep := Report{Outcomes: make(map[AttachResult]int)}
	if resp == nil || resp.Data == nil || resp.Data.RootMember == nil || resp.Data.TreeStructure == nil {
		return nil, rep
	}

	b := newBuilder()
	root := b.materialize(resp.Data.RootMember, 0)
	if root == nil {
		return nil, rep
	}
	b.rootID = root.ID

	for i, lvl := range resp.Data.TreeStructure {
		rep.Levels++
		level := i + 1
		if lvl.Level != nil {
			level = *lvl.Level
		}
		for _, entry := range lvl.Nodes {
			if entry.Parent == nil {
				continue
			}
			parent := b.materialize(entry.Parent, level-1)
			if parent == nil {
				continue
			}
			rep.Entries++
			rep.Outcomes[b.attach(parent, entry.LeftChild, SideLeft, level)]++
			rep.Outcomes[b.attach(parent, entry.RightChild, SideRight, level)]++
		}
	}

	rep.Registered = len(b.nodes)
	rep.Reachable = root.Count()
	return root, rep
}

// nodeState tracks which display fields still hold fallback values.
type nodeState struct {
	node      *TreeNode
	realPhone bool
	realImage bool
}

// builder holds the id-keyed registries for a single pass.
type builder struct {
	nodes      map[string]*nodeState
	parentOf   map[string]string
	childrenOf map[string]map[string]struct{}
	rootID     string
}

func newBuilder() *builder {
	return &builder{
		nodes:      make(map[string]*nodeState),
		parentOf:   make(map[string]string),
		childrenOf: make(map[string]map[string]struct{}),
	}
}

// materialize returns the node registered for m, creating it on first sight
// and otherwise filling in fields that still hold fallbacks. Position is left
// for attach to set, so only accepted edges ever give a node a side.
func (b *builder) materialize(m *RawMember, level int) *TreeNode {
	if m == nil || !hasIdentity(m.ID) {
		return nil
	}
	id, _ := NormalizeID(m.ID)

	if st, ok := b.nodes[id]; ok {
		b.enrich(st, m)
		return st.node
	}

	st := &nodeState{
		node: &TreeNode{
			ID: id,
			Data: NodeData{
				Name:     m.Name,
				Phone:    m.Name,
				ImageURL: PlaceholderImage,
			},
			Options:  NodeOptions{NodeBGColor: ColorForLevel(level)},
			Children: make([]*TreeNode, 0),
		},
	}
	if m.Phone != "" {
		st.node.Data.Phone = m.Phone
		st.realPhone = true
	}
	if m.Image != "" {
		st.node.Data.ImageURL = m.Image
		st.realImage = true
	}
	b.nodes[id] = st
	return st.node
}

// enrich merges m into an existing node without overwriting known values.
// The first non-empty phone and image win; color is never touched.
func (b *builder) enrich(st *nodeState, m *RawMember) {
	d := &st.node.Data
	if d.Name == "" && m.Name != "" {
		d.Name = m.Name
		if !st.realPhone {
			d.Phone = m.Name
		}
	}
	if !st.realPhone && m.Phone != "" {
		d.Phone = m.Phone
		st.realPhone = true
	}
	if !st.realImage && m.Image != "" {
		d.ImageURL = m.Image
		st.realImage = true
	}
}

// attach tries to hang child under parent on the given side.
func (b *builder) attach(parent *TreeNode, child *RawMember, side Side, level int) AttachResult {
	if child == nil || !hasIdentity(child.ID) {
		return SkippedNoChild
	}
	node := b.materialize(child, level)
	pid, cid := parent.ID, node.ID

	switch {
	case pid == cid:
		return RejectedSelfLoop
	case cid == b.rootID:
		return RejectedRoot
	case b.isAncestor(cid, pid):
		return RejectedCycle
	}
	if existing, ok := b.parentOf[cid]; ok {
		if existing == pid {
			return RejectedDuplicateEdge
		}
		return RejectedConflictingParent
	}
	if _, ok := b.childrenOf[pid][cid]; ok {
		return RejectedDuplicateEdge
	}

	b.parentOf[cid] = pid
	if b.childrenOf[pid] == nil {
		b.childrenOf[pid] = make(map[string]struct{})
	}
	b.childrenOf[pid][cid] = struct{}{}
	if node.Data.Position == "" {
		node.Data.Position = side
	}
	parent.Children = append(parent.Children, node)
	return Attached
}

// isAncestor reports whether id appears on the parent chain starting at from
// (inclusive of from's ancestors, exclusive of from itself).
func (b *builder) isAncestor(id, from string) bool {
	seen := make(map[string]struct{})
	for cur, ok := b.parentOf[from]; ok; cur, ok = b.parentOf[cur] {
		if cur == id {
			return true
		}
		if _, loop := seen[cur]; loop {
			return false
		}
		seen[cur] = struct{}{}
	}
	return false
}
