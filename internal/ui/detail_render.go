package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"github.com/taskmesh/taskmesh/internal/types"
)

// RenderMarkdown renders markdown for the terminal. On render failure
// the raw markdown comes back so output is never lost.
func RenderMarkdown(md string, width int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}

// TaskDetailMarkdown builds the markdown body for the show view. The
// caller decides whether to pass it through RenderMarkdown or print it
// raw for non-TTY output.
func TaskDetailMarkdown(d *types.TaskDetail, events []*types.Event) string {
	t := d.Task
	var b strings.Builder

	fmt.Fprintf(&b, "# %s: %s\n\n", t.ID, t.Title)
	fmt.Fprintf(&b, "**Status:** %s · **Priority:** %s", t.Status, t.Priority)
	if t.Assignee != "" {
		fmt.Fprintf(&b, " · **Assignee:** %s", t.Assignee)
	}
	b.WriteString("\n\n")

	if t.Description != "" {
		b.WriteString(strings.TrimRight(t.Description, "\n") + "\n\n")
	}

	fmt.Fprintf(&b, "- Created: %s\n", t.CreatedAt.Local().Format(time.RFC822))
	fmt.Fprintf(&b, "- Updated: %s\n", t.UpdatedAt.Local().Format(time.RFC822))
	if t.Deadline != nil {
		fmt.Fprintf(&b, "- Deadline: %s\n", t.Deadline.Local().Format(time.RFC822))
	}
	if t.EstimatedHours != nil {
		fmt.Fprintf(&b, "- Estimated hours: %.1f\n", *t.EstimatedHours)
	}
	if t.ActualHours != nil {
		fmt.Fprintf(&b, "- Actual hours: %.1f\n", *t.ActualHours)
	}
	if len(t.Tags) > 0 {
		fmt.Fprintf(&b, "- Tags: %s\n", strings.Join(t.Tags, ", "))
	}
	if len(t.FileRefs) > 0 {
		refs := make([]string, len(t.FileRefs))
		for i, r := range t.FileRefs {
			refs[i] = "`" + r.String() + "`"
		}
		fmt.Fprintf(&b, "- Files: %s\n", strings.Join(refs, ", "))
	}
	if t.ReworkOf != "" {
		fmt.Fprintf(&b, "- Rework of: %s\n", t.ReworkOf)
	}

	if len(t.SuccessCriteria) > 0 {
		b.WriteString("\n## Success criteria\n\n")
		for _, c := range t.SuccessCriteria {
			if c.Measurable != "" {
				fmt.Fprintf(&b, "- [ ] %s (%s)\n", c.Criterion, c.Measurable)
			} else {
				fmt.Fprintf(&b, "- [ ] %s\n", c.Criterion)
			}
		}
	}

	if len(d.Dependencies) > 0 {
		b.WriteString("\n## Depends on\n\n")
		for _, dep := range d.Dependencies {
			fmt.Fprintf(&b, "- %s %s (%s)\n", dep.ID, dep.Title, dep.Status)
		}
	}
	if len(d.Dependents) > 0 {
		b.WriteString("\n## Blocks\n\n")
		for _, dep := range d.Dependents {
			fmt.Fprintf(&b, "- %s %s (%s)\n", dep.ID, dep.Title, dep.Status)
		}
	}

	if len(d.Progress) > 0 {
		b.WriteString("\n## Progress\n\n")
		for _, p := range d.Progress {
			fmt.Fprintf(&b, "- %s **%s**: %s\n", p.CreatedAt.Local().Format(time.RFC822), p.AgentID, p.Message)
		}
	}

	if t.CompletionSummary != "" {
		b.WriteString("\n## Completion summary\n\n")
		b.WriteString(strings.TrimRight(t.CompletionSummary, "\n") + "\n")
	}

	if d.Feedback != nil {
		b.WriteString("\n## Feedback\n\n")
		fmt.Fprintf(&b, "- Quality: %s\n", scoreOrUnset(d.Feedback.Quality))
		fmt.Fprintf(&b, "- Timeliness: %s\n", scoreOrUnset(d.Feedback.Timeliness))
		if d.Feedback.Notes != "" {
			fmt.Fprintf(&b, "- Notes: %s\n", d.Feedback.Notes)
		}
	}

	if len(events) > 0 {
		b.WriteString("\n## History\n\n")
		for _, e := range events {
			fmt.Fprintf(&b, "- %s %s by **%s**", e.CreatedAt.Local().Format(time.RFC822), e.EventType, e.Actor)
			if e.OldValue != nil && e.NewValue != nil {
				fmt.Fprintf(&b, ": %s → %s", *e.OldValue, *e.NewValue)
			} else if e.NewValue != nil {
				fmt.Fprintf(&b, ": %s", *e.NewValue)
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}

func scoreOrUnset(score int) string {
	if score == 0 {
		return "not rated"
	}
	return fmt.Sprintf("%d/5", score)
}
