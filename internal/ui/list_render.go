package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/taskmesh/taskmesh/internal/enforce"
	"github.com/taskmesh/taskmesh/internal/types"
)

// RenderTaskTable renders tasks as the list view shown on a TTY.
func RenderTaskTable(tasks []*types.Task, width int) string {
	if len(tasks) == 0 {
		return TableHintStyle.Render("No tasks match.")
	}

	maxTitleWidth := width - 56
	if maxTitleWidth < 12 {
		maxTitleWidth = 12
	}

	rows := [][]string{}
	for _, t := range tasks {
		rows = append(rows, []string{
			t.ID,
			string(t.Status),
			string(t.Priority),
			truncate(t.Title, maxTitleWidth),
			t.Assignee,
			deadlineCell(t),
		})
	}

	return table.New().
		Headers("ID", "Status", "Pri", "Title", "Assignee", "Deadline").
		Rows(rows...).
		Border(lipgloss.RoundedBorder()).
		BorderStyle(TableBorderStyle).
		Width(width).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableHeaderStyle
			}
			style := lipgloss.NewStyle().Padding(0, 1).Align(lipgloss.Left)
			if row < 0 || row >= len(rows) {
				return style
			}
			switch col {
			case 1:
				style = style.Inherit(StatusStyle(tasks[row].Status))
			case 2:
				style = style.Inherit(PriorityStyle(tasks[row].Priority))
			}
			return style
		}).
		String()
}

// deadlineCell renders a deadline date, marking overdue open tasks.
func deadlineCell(t *types.Task) string {
	if t.Deadline == nil {
		return ""
	}
	day := t.Deadline.Local().Format("2006-01-02")
	open := t.Status != types.StatusCompleted && t.Status != types.StatusCancelled
	if open && t.Deadline.Before(time.Now()) {
		return RenderFail(day + " !")
	}
	return day
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

// RenderCriteriaReport renders the per-criterion outcome of a validated
// completion attempt.
func RenderCriteriaReport(report *types.ValidationReport, width int) string {
	if report == nil || len(report.Results) == 0 {
		return ""
	}

	rows := [][]string{}
	for _, res := range report.Results {
		var cell string
		switch res.Status {
		case types.CriterionPass:
			cell = RenderPass("✓ pass")
		case types.CriterionFail:
			cell = RenderFail("✗ fail")
		default:
			cell = RenderWarn("? manual")
		}
		rows = append(rows, []string{cell, res.Criterion, res.Detail})
	}

	return table.New().
		Headers("Result", "Criterion", "Detail").
		Rows(rows...).
		Border(lipgloss.RoundedBorder()).
		BorderStyle(TableBorderStyle).
		Width(width).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableHeaderStyle
			}
			style := lipgloss.NewStyle().Padding(0, 1).Align(lipgloss.Left)
			if col == 0 {
				style = style.Width(12)
			}
			return style
		}).
		String()
}

// RenderViolationsTable renders orchestration-gate findings with their
// remediation guidance.
func RenderViolationsTable(verdict *enforce.Verdict, width int) string {
	if verdict == nil || verdict.Clean() {
		return TableSuccessStyle.Render("✓ Orchestration environment looks healthy.")
	}

	header := fmt.Sprintf("Orchestration check (%s)", verdict.Level)
	rows := [][]string{}
	for _, v := range verdict.Violations {
		rows = append(rows, []string{string(v.Category), v.Fix, v.Example})
	}

	return table.New().
		Headers(header, "Fix", "Example").
		Rows(rows...).
		Border(lipgloss.RoundedBorder()).
		BorderStyle(TableBorderStyle).
		Width(width).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableHeaderStyle
			}
			style := lipgloss.NewStyle().Padding(0, 1).Align(lipgloss.Left)
			if col == 0 {
				style = style.Foreground(ColorWarn)
			}
			return style
		}).
		String()
}

// RenderStatisticsTable renders the status census.
func RenderStatisticsTable(stats *types.Statistics, width int) string {
	rows := [][]string{
		{"Pending", fmt.Sprintf("%d", stats.PendingTasks)},
		{"In progress", fmt.Sprintf("%d", stats.InProgressTasks)},
		{"Blocked", fmt.Sprintf("%d", stats.BlockedTasks)},
		{"Completed", fmt.Sprintf("%d", stats.CompletedTasks)},
		{"Cancelled", fmt.Sprintf("%d", stats.CancelledTasks)},
		{"Total", fmt.Sprintf("%d", stats.TotalTasks)},
	}

	return table.New().
		Headers("Status", "Tasks").
		Rows(rows...).
		Border(lipgloss.RoundedBorder()).
		BorderStyle(TableBorderStyle).
		Width(width).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableHeaderStyle.Width(width/2 - 1)
			}
			style := lipgloss.NewStyle().Padding(0, 1)
			if col == 1 {
				style = style.Align(lipgloss.Right)
			}
			if row == len(rows)-1 {
				style = style.Bold(true)
			}
			return style
		}).
		String()
}

// RenderMetricsTable renders the core-loop report for a window.
func RenderMetricsTable(m *types.Metrics, width int) string {
	rows := [][]string{
		{"Window", m.Window},
		{"Completed tasks", fmt.Sprintf("%d", m.CompletedTasks)},
		{"Tasks with feedback", fmt.Sprintf("%d", m.TasksWithFeedback)},
		{"Avg quality", scoreCell(m.AvgQuality)},
		{"Avg timeliness", scoreCell(m.AvgTimeliness)},
		{"Estimation accuracy", percentCell(m.EstimationAccuracy)},
		{"Rework correlation", percentCell(m.ReworkCorrelation)},
	}

	return table.New().
		Headers("Metric", "Value").
		Rows(rows...).
		Border(lipgloss.RoundedBorder()).
		BorderStyle(TableBorderStyle).
		Width(width).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableHeaderStyle.Width(width/2 - 1)
			}
			style := lipgloss.NewStyle().Padding(0, 1)
			if col == 0 {
				style = style.Bold(true).Foreground(ColorAccent)
			}
			return style
		}).
		String()
}

func scoreCell(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f/5", *v)
}

func percentCell(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", *v*100)
}
