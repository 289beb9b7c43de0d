package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/list"
	"github.com/charmbracelet/lipgloss/table"
)

// InitResult aggregates what the init command set up.
type InitResult struct {
	StateDir string
	DBPath   string

	Created           bool
	MigrationsApplied int
	ConfigWritten     bool
	TemplatesDir      string

	// Warnings surface non-fatal setup problems.
	Warnings []string

	QuickstartCommands []string
}

// RenderInitReport generates the styled report for the init command.
func RenderInitReport(res InitResult, width int) string {
	var sections []string

	headline := "✓ taskmesh initialized"
	if !res.Created {
		headline = "✓ taskmesh already initialized"
	}
	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorPass).
		Render(headline)
	sections = append(sections, header, "")

	l := list.New().
		Enumerator(func(_ list.Items, i int) string {
			return RenderPass("✓")
		}).
		EnumeratorStyle(lipgloss.NewStyle().MarginRight(1))

	if res.Created {
		l.Item("State directory created: " + res.StateDir)
		l.Item("Task store created: " + res.DBPath)
	} else {
		l.Item("Reusing task store: " + res.DBPath)
	}
	if res.MigrationsApplied > 0 {
		l.Item(pluralMigrations(res.MigrationsApplied))
	}
	if res.ConfigWritten {
		l.Item("Default config written: config.yaml")
	}
	if res.TemplatesDir != "" {
		l.Item("Template directory ready: " + res.TemplatesDir)
	}
	sections = append(sections, l.String(), "")

	detailsRows := [][]string{
		{"Database", res.DBPath},
		{"State directory", res.StateDir},
		{"Task IDs", "8-char random hex"},
	}

	summaryTable := table.New().
		Headers("Component", "Configuration").
		Rows(detailsRows...).
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorMuted)).
		Width(width).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				if col == 0 {
					return TableHeaderStyle.Width(20)
				}
				return TableHeaderStyle.Width(width - 20 - 3)
			}
			style := lipgloss.NewStyle().Padding(0, 1).Align(lipgloss.Left)
			if col == 0 {
				style = style.Bold(true).Foreground(ColorAccent)
			}
			return style
		})

	sections = append(sections, summaryTable.String(), "")

	if len(res.Warnings) > 0 {
		warnBox := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorWarn).
			Padding(0, 1).
			Width(width - 2)

		var warnContent []string
		warnContent = append(warnContent, lipgloss.NewStyle().Bold(true).Foreground(ColorWarn).Render("⚠ Setup warnings:"))
		for _, w := range res.Warnings {
			warnContent = append(warnContent, "  • "+w)
		}
		sections = append(sections, warnBox.Render(strings.Join(warnContent, "\n")), "")
	}

	if len(res.QuickstartCommands) > 0 {
		sections = append(sections, lipgloss.NewStyle().Bold(true).Render("Next Steps:"))
		for _, cmd := range res.QuickstartCommands {
			sections = append(sections, "  • "+lipgloss.NewStyle().Foreground(ColorAccent).Render(cmd))
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func pluralMigrations(n int) string {
	if n == 1 {
		return "Applied 1 migration"
	}
	return fmt.Sprintf("Applied %d migrations", n)
}
