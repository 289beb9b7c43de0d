package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/taskmesh/taskmesh/internal/types"
)

var (
	watchBoxStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorMuted).
		Padding(0, 1).
		Margin(1, 0)

	watchTitleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorAccent)

	watchBodyStyle = lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), true, false, false, false).
		BorderForeground(ColorMuted)
)

var notificationIcons = map[types.NotificationKind]string{
	types.NotifyTaskUnblocked: "🔓",
	types.NotifyCompletion:    "✅",
	types.NotifyImpactReview:  "🔁",
	types.NotifySyncPoint:     "🤝",
	types.NotifyDiscovery:     "💡",
	types.NotifyAssignment:    "📌",
	types.NotifyTruncated:     "✂️",
}

// RenderWatchBox renders the notification feed for an agent.
func RenderWatchBox(agent string, notifications []*types.Notification, emoji bool) string {
	var sections []string

	header := fmt.Sprintf("Watch: %s", agent)
	sections = append(sections, watchTitleStyle.Render(header))

	var lines []string
	if len(notifications) == 0 {
		lines = append(lines, TableHintStyle.Render("No new notifications."))
	}
	for _, n := range notifications {
		lines = append(lines, notificationLine(n, emoji))
	}

	sections = append(sections, watchBodyStyle.Render(strings.Join(lines, "\n")))
	return watchBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func notificationLine(n *types.Notification, emoji bool) string {
	prefix := "[" + string(n.Kind) + "]"
	if emoji {
		if icon, ok := notificationIcons[n.Kind]; ok {
			prefix = icon + " " + prefix
		}
	}
	ts := RenderMuted(n.CreatedAt.Local().Format(time.Kitchen))
	line := fmt.Sprintf("%s %s", prefix, n.Message)
	if n.TaskID != "" {
		line += " " + RenderMuted("("+n.TaskID+")")
	}
	if n.Broadcast() {
		line += " " + TableHintStyle.Render("[broadcast]")
	}
	return ts + " " + line
}
