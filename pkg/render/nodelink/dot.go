package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/finobytes/maxreward/pkg/referral"
)

// Options configures diagram generation.
type Options struct {
	// Detailed adds the member id and phone under the name.
	Detailed bool
	// LeftToRight lays the tree out horizontally instead of top-down.
	LeftToRight bool
}

// ToDOT converts a normalized tree to DOT source. Nodes and edges are
// emitted in pre-order, so the output is deterministic for a given tree.
func ToDOT(root *referral.TreeNode, opts Options) string {
	rankdir := "TB"
	if opts.LeftToRight {
		rankdir = "LR"
	}

	var buf bytes.Buffer
	buf.WriteString("digraph referral {\n")
	fmt.Fprintf(&buf, "  rankdir=%s;\n", rankdir)
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fontname=\"Helvetica\", fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  edge [arrowhead=none, fontsize=10, fontcolor=\"#6B7280\"];\n")
	buf.WriteString("  ranksep=0.6;\n")
	buf.WriteString("  nodesep=0.4;\n")

	if root == nil {
		buf.WriteString("}\n")
		return buf.String()
	}

	buf.WriteString("\n")
	root.Walk(func(n *referral.TreeNode, _ int) bool {
		fmt.Fprintf(&buf, "  %s [label=%s, fillcolor=%s];\n",
			quote(n.ID), quote(label(n, opts.Detailed)), quote(n.Options.NodeBGColor))
		return true
	})

	buf.WriteString("\n")
	root.Walk(func(n *referral.TreeNode, _ int) bool {
		for _, c := range n.Children {
			fmt.Fprintf(&buf, "  %s -> %s", quote(n.ID), quote(c.ID))
			if s := sideLabel(c.Data.Position); s != "" {
				fmt.Fprintf(&buf, " [label=%s]", quote(s))
			}
			buf.WriteString(";\n")
		}
		return true
	})

	buf.WriteString("}\n")
	return buf.String()
}

func label(n *referral.TreeNode, detailed bool) string {
	name := n.Data.Name
	if name == "" {
		name = n.ID
	}
	if !detailed {
		return name
	}
	parts := []string{name, "#" + n.ID}
	if n.Data.Phone != "" && n.Data.Phone != n.Data.Name {
		parts = append(parts, n.Data.Phone)
	}
	return strings.Join(parts, "\n")
}

func sideLabel(s referral.Side) string {
	switch s {
	case referral.SideLeft:
		return "L"
	case referral.SideRight:
		return "R"
	}
	return ""
}

var dotEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", "")

// quote returns s as a DOT double-quoted string. Go's %q is not used because
// DOT does not understand \u escapes.
func quote(s string) string {
	return `"` + dotEscaper.Replace(s) + `"`
}

// RenderSVG lays out DOT source with the embedded Graphviz and returns SVG.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces Graphviz's pt-sized root element with one whose
// width and height match the viewBox, so browsers scale it predictably.
func normalizeViewBox(svg []byte) []byte {
	m := viewBoxRe.FindSubmatch(svg)
	if m == nil {
		return svg
	}
	w, _ := strconv.ParseFloat(string(m[3]), 64)
	h, _ := strconv.ParseFloat(string(m[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}
	tag := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`, w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(tag))
}
