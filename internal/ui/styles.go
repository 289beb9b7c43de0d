package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/taskmesh/taskmesh/internal/types"
)

// Palette shared by every renderer. Adaptive pairs keep output readable
// on both light and dark terminals.
var (
	ColorAccent = lipgloss.AdaptiveColor{Light: "#1E66F5", Dark: "#89B4FA"}
	ColorPass   = lipgloss.AdaptiveColor{Light: "#40A02B", Dark: "#A6E3A1"}
	ColorWarn   = lipgloss.AdaptiveColor{Light: "#DF8E1D", Dark: "#F9E2AF"}
	ColorFail   = lipgloss.AdaptiveColor{Light: "#D20F39", Dark: "#F38BA8"}
	ColorMuted  = lipgloss.AdaptiveColor{Light: "#9CA0B0", Dark: "#6C7086"}
)

var (
	passStyle = lipgloss.NewStyle().Foreground(ColorPass)
	warnStyle = lipgloss.NewStyle().Foreground(ColorWarn)
	failStyle = lipgloss.NewStyle().Foreground(ColorFail)
	mutedSt   = lipgloss.NewStyle().Foreground(ColorMuted)
)

// RenderPass styles text as a success marker.
func RenderPass(s string) string { return passStyle.Render(s) }

// RenderWarn styles text as a warning.
func RenderWarn(s string) string { return warnStyle.Render(s) }

// RenderFail styles text as a failure.
func RenderFail(s string) string { return failStyle.Render(s) }

// RenderMuted styles text as secondary detail.
func RenderMuted(s string) string { return mutedSt.Render(s) }

var statusStyles = map[types.Status]lipgloss.Style{
	types.StatusPending:    lipgloss.NewStyle().Foreground(ColorAccent),
	types.StatusInProgress: lipgloss.NewStyle().Foreground(ColorWarn),
	types.StatusCompleted:  lipgloss.NewStyle().Foreground(ColorPass),
	types.StatusBlocked:    lipgloss.NewStyle().Foreground(ColorFail),
	types.StatusCancelled:  lipgloss.NewStyle().Foreground(ColorMuted),
}

// StatusStyle returns the style for a task status.
func StatusStyle(s types.Status) lipgloss.Style {
	if st, ok := statusStyles[s]; ok {
		return st
	}
	return lipgloss.NewStyle()
}

var priorityStyles = map[types.Priority]lipgloss.Style{
	types.PriorityLow:      lipgloss.NewStyle().Foreground(ColorMuted),
	types.PriorityMedium:   lipgloss.NewStyle(),
	types.PriorityHigh:     lipgloss.NewStyle().Foreground(ColorWarn),
	types.PriorityCritical: lipgloss.NewStyle().Bold(true).Foreground(ColorFail),
}

// PriorityStyle returns the style for a task priority.
func PriorityStyle(p types.Priority) lipgloss.Style {
	if st, ok := priorityStyles[p]; ok {
		return st
	}
	return lipgloss.NewStyle()
}
