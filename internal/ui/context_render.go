package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/taskmesh/taskmesh/internal/types"
)

// TaskContextMarkdown builds the markdown body for the context view:
// participants, the shared log oldest first, and the caller's own
// private notes. Other agents' notes are never part of the view.
func TaskContextMarkdown(tc *types.TaskContext, viewer string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Context: %s\n\n", tc.TaskID)

	if len(tc.Participants) > 0 {
		b.WriteString("## Participants\n\n")
		for _, p := range tc.Participants {
			if p.Role != "" {
				fmt.Fprintf(&b, "- **%s** (%s) since %s\n", p.AgentID, p.Role, p.JoinedAt.Local().Format(time.RFC822))
			} else {
				fmt.Fprintf(&b, "- **%s** since %s\n", p.AgentID, p.JoinedAt.Local().Format(time.RFC822))
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("## Shared\n\n")
	if len(tc.Shared) == 0 {
		b.WriteString("Nothing shared yet.\n")
	}
	for _, e := range tc.Shared {
		fmt.Fprintf(&b, "- %s **%s** [%s]: %s\n",
			e.CreatedAt.Local().Format(time.RFC822), e.AgentID, e.Kind, indentContinuations(e.Message))
	}

	if len(tc.Private) > 0 {
		fmt.Fprintf(&b, "\n## Your notes (%s)\n\n", viewer)
		for _, n := range tc.Private {
			fmt.Fprintf(&b, "- %s: %s\n", n.CreatedAt.Local().Format(time.RFC822), indentContinuations(n.Message))
		}
	}

	return b.String()
}

// indentContinuations keeps multi-line messages inside their list item.
func indentContinuations(msg string) string {
	return strings.ReplaceAll(strings.TrimRight(msg, "\n"), "\n", "\n  ")
}
