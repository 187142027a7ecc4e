package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"

	"github.com/finobytes/maxreward/pkg/referral"
)

// TextOptions controls [Text] output.
type TextOptions struct {
	// Color styles each member with its level color. Leave it off when the
	// output is not a terminal.
	Color bool
	// Details appends the phone number and side to each line.
	Details bool
	// MaxDepth limits how many levels below the root are drawn; zero means all.
	MaxDepth int
}

var (
	idStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	sideStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8B5CF6")).Italic(true)
	branchChar = lipgloss.NewStyle().Foreground(lipgloss.Color("#4B5563"))
)

// Text draws root as an indented tree, one member per line:
//
//	Ahmad bin Abdullah (1)
//	├── Siti Nurhaliza (34) L
//	└── Lim Wei Jie (35) R
//
// A nil root renders as the empty string.
func Text(root *referral.TreeNode, opts TextOptions) string {
	if root == nil {
		return ""
	}
	t := textTree(root, opts, 0)
	if opts.Color {
		t = t.EnumeratorStyle(branchChar)
	}
	return t.String() + "\n"
}

func textTree(n *referral.TreeNode, opts TextOptions, depth int) *tree.Tree {
	t := tree.Root(textLabel(n, opts))
	if opts.MaxDepth > 0 && depth >= opts.MaxDepth {
		if len(n.Children) > 0 {
			t.Child(fmt.Sprintf("… %d more", n.Count()-1))
		}
		return t
	}
	for _, c := range n.Children {
		if len(c.Children) == 0 {
			t.Child(textLabel(c, opts))
			continue
		}
		t.Child(textTree(c, opts, depth+1))
	}
	return t
}

func textLabel(n *referral.TreeNode, opts TextOptions) string {
	name := n.Data.Name
	if name == "" {
		name = "(unnamed)"
	}
	id := "(" + n.ID + ")"
	side := sideMark(n.Data.Position)

	if opts.Color {
		name = lipgloss.NewStyle().Bold(true).
			Foreground(lipgloss.Color("#111827")).
			Background(lipgloss.Color(n.Options.NodeBGColor)).
			Render(" " + name + " ")
		id = idStyle.Render(id)
		if side != "" {
			side = sideStyle.Render(side)
		}
	}

	parts := []string{name, id}
	if side != "" {
		parts = append(parts, side)
	}
	if opts.Details && n.Data.Phone != "" && n.Data.Phone != n.Data.Name {
		parts = append(parts, n.Data.Phone)
	}
	return strings.Join(parts, " ")
}

func sideMark(s referral.Side) string {
	switch s {
	case referral.SideLeft:
		return "L"
	case referral.SideRight:
		return "R"
	}
	return ""
}
