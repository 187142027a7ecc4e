package referral

import (
	"encoding/json"
	"io"

	"github.com/tidwall/gjson"
)

// Decode reads an API payload without ever failing. Ids may be JSON numbers
// or strings; values of the wrong shape are dropped rather than reported.
// Invalid JSON yields an empty Response, which normalizes to no tree.
//
// A tree_structure that is present but not an array decodes to an empty,
// non-nil level list, so the root still renders on its own.
func Decode(raw []byte) *Response {
	if !gjson.ValidBytes(raw) {
		return &Response{}
	}
	doc := gjson.ParseBytes(raw)

	data := doc.Get("data")
	if !data.IsObject() {
		return &Response{}
	}

	td := &TreeData{RootMember: decodeMember(data.Get("root_member"))}
	if ts := data.Get("tree_structure"); ts.Exists() && ts.Type != gjson.Null {
		td.TreeStructure = decodeLevels(ts)
	}
	return &Response{Data: td}
}

// DecodeReader reads all of r and decodes it with [Decode].
func DecodeReader(r io.Reader) (*Response, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Decode(raw), nil
}

func decodeLevels(ts gjson.Result) []LevelEntry {
	levels := make([]LevelEntry, 0)
	if !ts.IsArray() {
		return levels
	}
	for _, item := range ts.Array() {
		if !item.IsObject() {
			continue
		}
		var entry LevelEntry
		if lv := item.Get("level"); lv.Type == gjson.Number {
			n := int(lv.Int())
			entry.Level = &n
		}
		if nodes := item.Get("nodes"); nodes.IsArray() {
			for _, n := range nodes.Array() {
				if !n.IsObject() {
					continue
				}
				entry.Nodes = append(entry.Nodes, NodeEntry{
					Parent:     decodeMember(n.Get("parent")),
					LeftChild:  decodeMember(n.Get("left_child")),
					RightChild: decodeMember(n.Get("right_child")),
				})
			}
		}
		levels = append(levels, entry)
	}
	return levels
}

func decodeMember(v gjson.Result) *RawMember {
	if !v.IsObject() {
		return nil
	}
	return &RawMember{
		ID:    decodeID(v.Get("id")),
		Name:  stringField(v.Get("name")),
		Phone: stringField(v.Get("phone")),
		Image: stringField(v.Get("image")),
	}
}

// decodeID keeps numbers as their literal text so that large ids are not
// rounded through float64.
func decodeID(v gjson.Result) any {
	switch v.Type {
	case gjson.Number:
		return json.Number(v.Raw)
	case gjson.String:
		return v.Str
	}
	return nil
}

func stringField(v gjson.Result) string {
	switch v.Type {
	case gjson.String:
		return v.Str
	case gjson.Number:
		return v.Raw
	}
	return ""
}
