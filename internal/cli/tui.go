package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/finobytes/maxreward/pkg/referral"
)

var (
	browseSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	browseNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	browseDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
	browsePanelStyle    = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorDim).
				Padding(0, 1)
)

// browseRow is one visible line of the tree.
type browseRow struct {
	node   *referral.TreeNode
	parent int // index of the parent row, -1 for the root
	depth  int
}

// TreeBrowserModel is the bubbletea model for interactive tree browsing.
// Nodes start collapsed below the first level.
type TreeBrowserModel struct {
	Root     *referral.TreeNode
	Expanded map[string]bool
	Cursor   int
	Height   int
	Offset   int

	rows []browseRow
}

// NewTreeBrowserModel creates a browser with the root expanded.
func NewTreeBrowserModel(root *referral.TreeNode) TreeBrowserModel {
	m := TreeBrowserModel{
		Root:     root,
		Expanded: map[string]bool{},
		Height:   20,
	}
	if root != nil {
		m.Expanded[root.ID] = true
	}
	m.rows = m.flatten()
	return m
}

func (m TreeBrowserModel) flatten() []browseRow {
	var rows []browseRow
	var visit func(n *referral.TreeNode, parent, depth int)
	visit = func(n *referral.TreeNode, parent, depth int) {
		idx := len(rows)
		rows = append(rows, browseRow{node: n, parent: parent, depth: depth})
		if !m.Expanded[n.ID] {
			return
		}
		for _, c := range n.Children {
			visit(c, idx, depth+1)
		}
	}
	if m.Root != nil {
		visit(m.Root, -1, 0)
	}
	return rows
}

// Selected returns the node under the cursor.
func (m TreeBrowserModel) Selected() *referral.TreeNode {
	if m.Cursor < 0 || m.Cursor >= len(m.rows) {
		return nil
	}
	return m.rows[m.Cursor].node
}

func (m TreeBrowserModel) Init() tea.Cmd {
	return nil
}

func (m TreeBrowserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
			}
		case "down", "j":
			if m.Cursor < len(m.rows)-1 {
				m.Cursor++
			}
		case "enter", " ":
			if n := m.Selected(); n != nil && len(n.Children) > 0 {
				m.setExpanded(n.ID, !m.Expanded[n.ID])
			}
		case "right", "l":
			if n := m.Selected(); n != nil && len(n.Children) > 0 {
				m.setExpanded(n.ID, true)
			}
		case "left", "h":
			if n := m.Selected(); n != nil && m.Expanded[n.ID] {
				m.setExpanded(n.ID, false)
			} else if m.Cursor < len(m.rows) && m.rows[m.Cursor].parent >= 0 {
				m.Cursor = m.rows[m.Cursor].parent
			}
		case "e":
			m.Root.Walk(func(n *referral.TreeNode, _ int) bool {
				if len(n.Children) > 0 {
					m.Expanded[n.ID] = true
				}
				return true
			})
			m.rows = m.flatten()
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-12, 5)
	}
	m.scroll()
	return m, nil
}

// setExpanded toggles a node and keeps the cursor on it.
func (m *TreeBrowserModel) setExpanded(id string, open bool) {
	m.Expanded[id] = open
	m.rows = m.flatten()
	for i, r := range m.rows {
		if r.node.ID == id {
			m.Cursor = i
			return
		}
	}
}

func (m *TreeBrowserModel) scroll() {
	if m.Cursor < m.Offset {
		m.Offset = m.Cursor
	}
	if m.Cursor >= m.Offset+m.Height {
		m.Offset = m.Cursor - m.Height + 1
	}
}

func (m TreeBrowserModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Referral Tree"))
	b.WriteString("\n")
	b.WriteString(browseDimStyle.Render("↑/↓ navigate  ⏎ toggle  ←/→ collapse/expand  e expand all  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.rows))
	for i := m.Offset; i < end; i++ {
		r := m.rows[i]
		marker := "  "
		switch {
		case len(r.node.Children) == 0:
		case m.Expanded[r.node.ID]:
			marker = "▾ "
		default:
			marker = "▸ "
		}
		line := strings.Repeat("  ", r.depth) + marker + browseLabel(r.node)
		switch {
		case i == m.Cursor:
			b.WriteString(browseSelectedStyle.Render("› " + line))
		default:
			b.WriteString(browseNormalStyle.Render("  " + line))
		}
		b.WriteString("\n")
	}

	if n := m.Selected(); n != nil {
		b.WriteString("\n")
		b.WriteString(browsePanelStyle.Render(nodeDetails(n)))
		b.WriteString("\n")
	}
	b.WriteString(browseDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.rows))))
	return b.String()
}

func browseLabel(n *referral.TreeNode) string {
	name := n.Data.Name
	if name == "" {
		name = "(unnamed)"
	}
	label := name + " " + browseDimStyle.Render("#"+n.ID)
	switch n.Data.Position {
	case referral.SideLeft:
		label += browseDimStyle.Render(" L")
	case referral.SideRight:
		label += browseDimStyle.Render(" R")
	}
	return label
}

func nodeDetails(n *referral.TreeNode) string {
	swatch := lipgloss.NewStyle().Background(lipgloss.Color(n.Options.NodeBGColor)).Render("  ")
	side := string(n.Data.Position)
	if side == "" {
		side = "root"
	}
	rows := [][2]string{
		{"Member", n.ID},
		{"Name", n.Data.Name},
		{"Phone", n.Data.Phone},
		{"Side", side},
		{"Color", swatch + " " + n.Options.NodeBGColor},
		{"Downline", fmt.Sprintf("%d direct, %d total", len(n.Children), n.Count()-1)},
	}
	keyStyle := lipgloss.NewStyle().Foreground(colorGray).Width(9)
	lines := make([]string, len(rows))
	for i, r := range rows {
		lines[i] = keyStyle.Render(r[0]) + " " + r[1]
	}
	return strings.Join(lines, "\n")
}
