package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/lipgloss/tree"

	"github.com/taskmesh/taskmesh/internal/types"
)

// DepNode is one vertex in a rendered dependency tree. Children are the
// tasks this node depends on.
type DepNode struct {
	Task     *types.Task `json:"task"`
	Children []*DepNode  `json:"children,omitempty"`
}

// BuildDepTree constructs a lipgloss tree rooted at a task.
func BuildDepTree(n *DepNode) *tree.Tree {
	if n == nil || n.Task == nil {
		return nil
	}
	t := tree.New().Root(depLabel(n.Task))
	t.EnumeratorStyle(lipgloss.NewStyle().Foreground(ColorAccent))
	t.RootStyle(lipgloss.NewStyle().Bold(true))
	for _, c := range n.Children {
		addDepChild(t, c)
	}
	return t
}

func addDepChild(parent *tree.Tree, n *DepNode) {
	if n == nil || n.Task == nil {
		return
	}
	child := tree.New().Root(depLabel(n.Task))
	child.EnumeratorStyle(lipgloss.NewStyle().Foreground(ColorAccent))
	for _, c := range n.Children {
		addDepChild(child, c)
	}
	parent.Child(child)
}

func depLabel(t *types.Task) string {
	return fmt.Sprintf("%s %s %s", t.ID, t.Title, StatusStyle(t.Status).Render("["+string(t.Status)+"]"))
}

// RenderDepTree renders a dependency tree for the show and deps views.
func RenderDepTree(n *DepNode) string {
	t := BuildDepTree(n)
	if t == nil {
		return TableHintStyle.Render("No dependencies.")
	}
	return t.String()
}

// RenderCriticalPath renders the hour-weighted longest chain through
// the dependency graph.
func RenderCriticalPath(cp *types.CriticalPath, width int) string {
	if cp == nil || len(cp.Tasks) == 0 {
		return TableHintStyle.Render("No critical path: the graph has no tasks with estimates.")
	}

	rows := [][]string{}
	for i, t := range cp.Tasks {
		hours := "-"
		if t.EstimatedHours != nil {
			hours = fmt.Sprintf("%.1f", *t.EstimatedHours)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			t.ID,
			truncate(t.Title, width-40),
			string(t.Status),
			hours,
		})
	}

	tbl := table.New().
		Headers("#", "ID", "Title", "Status", "Est. h").
		Rows(rows...).
		Border(lipgloss.RoundedBorder()).
		BorderStyle(TableBorderStyle).
		Width(width).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableHeaderStyle
			}
			style := lipgloss.NewStyle().Padding(0, 1).Align(lipgloss.Left)
			if col == 4 {
				style = style.Align(lipgloss.Right)
			}
			return style
		}).
		String()

	total := lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("Critical path: %.1f estimated hours across %d tasks", cp.TotalHours, len(cp.Tasks)))
	return lipgloss.JoinVertical(lipgloss.Left, tbl, total)
}

// RenderGraphReport renders dependency-graph audit findings.
func RenderGraphReport(report *types.GraphReport, width int) string {
	summary := fmt.Sprintf("Graph: %d tasks, %d edges", report.Tasks, report.Edges)
	if report.Clean() {
		return lipgloss.JoinVertical(lipgloss.Left,
			summary,
			TableSuccessStyle.Render("✓ No anomalies found."),
		)
	}

	rows := [][]string{}
	for _, issue := range report.Issues {
		where := issue.TaskID
		if len(issue.Path) > 0 {
			where = joinPath(issue.Path)
		}
		rows = append(rows, []string{string(issue.Kind), where, issue.Detail})
	}

	tbl := table.New().
		Headers("Kind", "Where", "Detail").
		Rows(rows...).
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorWarn)).
		Width(width).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableHeaderStyle
			}
			style := lipgloss.NewStyle().Padding(0, 1).Align(lipgloss.Left)
			if col == 0 {
				style = style.Foreground(ColorFail)
			}
			return style
		}).
		String()

	return lipgloss.JoinVertical(lipgloss.Left, summary, tbl)
}

func joinPath(path []string) string {
	out := ""
	for i, p := range path {
		if i > 0 {
			out += " -> "
		}
		out += p
	}
	return out
}
