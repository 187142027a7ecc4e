package referral

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// PlaceholderImage is the image URL assigned to members without a picture.
const PlaceholderImage = "https://via.placeholder.com/150"

// Palette holds the node background colors, selected by level modulo its length.
var Palette = [...]string{
	"#E3F2FD",
	"#E8F5E9",
	"#FFF3E0",
	"#F3E5F5",
	"#FFEBEE",
}

// ColorForLevel returns the palette entry for a tree level.
// Negative levels wrap around instead of indexing out of range.
func ColorForLevel(level int) string {
	n := len(Palette)
	return Palette[((level%n)+n)%n]
}

// =============================================================================
// Input - upstream API payload
// =============================================================================

// Response is the referral tree payload returned by the back-office API.
// Every field is optional; a nil or partial Response normalizes to no tree.
type Response struct {
	Data *TreeData `json:"data"`
}

// TreeData carries the root member and the level-by-level tree description.
//
// TreeStructure distinguishes absent (nil) from present-but-empty (non-nil,
// zero length): the former means there is nothing to render, the latter
// renders the root alone.
type TreeData struct {
	RootMember    *RawMember   `json:"root_member"`
	TreeStructure []LevelEntry `json:"tree_structure"`
}

// LevelEntry lists the parent/children entries discovered at one depth.
// Level is nil when the API omits it; the entry's position is used instead.
type LevelEntry struct {
	Level *int        `json:"level,omitempty"`
	Nodes []NodeEntry `json:"nodes"`
}

// NodeEntry describes one parent and its (up to two) children at a level.
type NodeEntry struct {
	Parent     *RawMember `json:"parent"`
	LeftChild  *RawMember `json:"left_child"`
	RightChild *RawMember `json:"right_child"`
}

// RawMember is a member as the API describes it. The same member may appear
// many times across a payload with more or less detail each time.
//
// ID is a JSON number or string; see [NormalizeID].
type RawMember struct {
	ID    any    `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Image string `json:"image,omitempty"`
}

// =============================================================================
// Output - renderer input
// =============================================================================

// Side is the slot a node occupies under its parent.
// The zero value means "not attached from a side" and encodes as JSON null.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// MarshalJSON encodes the empty side as null.
func (s Side) MarshalJSON() ([]byte, error) {
	if s == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(s))
}

// UnmarshalJSON accepts "left", "right" or null.
func (s *Side) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*s = ""
		return nil
	}
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch Side(v) {
	case SideLeft, SideRight, "":
		*s = Side(v)
		return nil
	}
	return fmt.Errorf("invalid side %q", v)
}

// TreeNode is one member in the normalized tree. Its JSON shape is the input
// format of the front-end hierarchical tree renderer.
type TreeNode struct {
	ID       string      `json:"id"`
	Data     NodeData    `json:"data"`
	Options  NodeOptions `json:"options"`
	Children []*TreeNode `json:"children"`
}

// NodeData holds the display fields of a node.
type NodeData struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	ImageURL string `json:"imageURL"`
	Position Side   `json:"position"`
}

// NodeOptions holds renderer options for a node.
type NodeOptions struct {
	NodeBGColor string `json:"nodeBGColor"`
}
