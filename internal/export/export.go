// Package export renders task snapshots as JSON, Markdown, CSV, or TSV.
//
// JSON is the canonical format: it carries every observable field and
// round-trips through decoding. Markdown is for humans; CSV and TSV are
// flat projections for spreadsheets and shell pipelines. Empty exports
// render valid empty containers, never null or zero bytes.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/taskmesh/taskmesh/internal/types"
)

// Format selects an output renderer.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
	FormatTSV      Format = "tsv"
)

// ParseFormat normalizes a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "csv":
		return FormatCSV, nil
	case "tsv":
		return FormatTSV, nil
	default:
		return "", &types.ValidationError{Field: "format", Reason: fmt.Sprintf("unknown format %q (json, markdown, csv, tsv)", s)}
	}
}

// Render serializes tasks in the requested format.
func Render(tasks []*types.TaskExport, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return renderJSON(tasks)
	case FormatMarkdown:
		return renderMarkdown(tasks), nil
	case FormatCSV:
		return renderSeparated(tasks, ',')
	case FormatTSV:
		return renderSeparated(tasks, '\t')
	default:
		return nil, &types.ValidationError{Field: "format", Reason: fmt.Sprintf("unknown format %q", format)}
	}
}

func renderJSON(tasks []*types.TaskExport) ([]byte, error) {
	if tasks == nil {
		tasks = []*types.TaskExport{}
	}
	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal export: %w", err)
	}
	return append(data, '\n'), nil
}

// csvHeader is the flat column set shared by CSV and TSV.
var csvHeader = []string{
	"id", "title", "status", "priority", "assignee",
	"created_at", "updated_at", "deadline",
	"estimated_hours", "actual_hours",
	"tags", "deps", "dependents",
}

func renderSeparated(tasks []*types.TaskExport, comma rune) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = comma

	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("failed to write export header: %w", err)
	}
	for _, t := range tasks {
		row := []string{
			t.ID,
			t.Title,
			string(t.Status),
			string(t.Priority),
			t.Assignee,
			t.CreatedAt.UTC().Format(time.RFC3339),
			t.UpdatedAt.UTC().Format(time.RFC3339),
			timeOrEmpty(t.Deadline),
			hoursOrEmpty(t.EstimatedHours),
			hoursOrEmpty(t.ActualHours),
			strings.Join(t.Tags, ";"),
			strings.Join(t.Deps, ";"),
			strings.Join(t.Dependents, ";"),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write export row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush export: %w", err)
	}
	return buf.Bytes(), nil
}

func renderMarkdown(tasks []*types.TaskExport) []byte {
	var b strings.Builder
	b.WriteString("# Task Export\n\n")
	if len(tasks) == 0 {
		b.WriteString("No tasks.\n")
		return []byte(b.String())
	}
	fmt.Fprintf(&b, "%d task(s).\n", len(tasks))

	// Tasks group under status headings, statuses in lifecycle order.
	byStatus := make(map[types.Status][]*types.TaskExport, len(types.ValidStatuses))
	for _, t := range tasks {
		byStatus[t.Status] = append(byStatus[t.Status], t)
	}
	for _, status := range types.ValidStatuses {
		group := byStatus[status]
		if len(group) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n## %s (%d)\n", statusHeading(status), len(group))
		for _, t := range group {
			renderTaskMarkdown(&b, t)
		}
	}
	return []byte(b.String())
}

func renderTaskMarkdown(b *strings.Builder, t *types.TaskExport) {
	fmt.Fprintf(b, "\n### %s: %s\n\n", t.ID, t.Title)
	fmt.Fprintf(b, "- Priority: %s\n", t.Priority)
	if t.Assignee != "" {
		fmt.Fprintf(b, "- Assignee: %s\n", t.Assignee)
	}
	fmt.Fprintf(b, "- Created: %s\n", t.CreatedAt.UTC().Format(time.RFC3339))
	if t.Deadline != nil {
		fmt.Fprintf(b, "- Deadline: %s\n", t.Deadline.UTC().Format(time.RFC3339))
	}
	if t.EstimatedHours != nil {
		fmt.Fprintf(b, "- Estimated hours: %s\n", trimFloat(*t.EstimatedHours))
	}
	if t.ActualHours != nil {
		fmt.Fprintf(b, "- Actual hours: %s\n", trimFloat(*t.ActualHours))
	}
	if len(t.Tags) > 0 {
		fmt.Fprintf(b, "- Tags: %s\n", strings.Join(t.Tags, ", "))
	}
	if len(t.Deps) > 0 {
		fmt.Fprintf(b, "- Depends on: %s\n", strings.Join(t.Deps, ", "))
	}
	if len(t.Dependents) > 0 {
		fmt.Fprintf(b, "- Blocks: %s\n", strings.Join(t.Dependents, ", "))
	}
	if len(t.FileRefs) > 0 {
		refs := make([]string, len(t.FileRefs))
		for i, r := range t.FileRefs {
			refs[i] = r.String()
		}
		fmt.Fprintf(b, "- Files: %s\n", strings.Join(refs, ", "))
	}
	if t.Description != "" {
		b.WriteString("\n" + strings.TrimRight(t.Description, "\n") + "\n")
	}
	if len(t.SuccessCriteria) > 0 {
		b.WriteString("\nSuccess criteria:\n\n")
		for _, c := range t.SuccessCriteria {
			if c.Measurable != "" {
				fmt.Fprintf(b, "- [ ] %s (%s)\n", c.Criterion, c.Measurable)
			} else {
				fmt.Fprintf(b, "- [ ] %s\n", c.Criterion)
			}
		}
	}
	if len(t.Progress) > 0 {
		b.WriteString("\nProgress:\n\n")
		for _, p := range t.Progress {
			fmt.Fprintf(b, "- %s %s: %s\n", p.CreatedAt.UTC().Format(time.RFC3339), p.AgentID, p.Message)
		}
	}
	if t.CompletionSummary != "" {
		fmt.Fprintf(b, "\nCompletion summary: %s\n", t.CompletionSummary)
	}
	if t.Feedback != nil {
		fmt.Fprintf(b, "\nFeedback: quality %s, timeliness %s",
			scoreOrDash(t.Feedback.Quality), scoreOrDash(t.Feedback.Timeliness))
		if t.Feedback.Notes != "" {
			fmt.Fprintf(b, " (%s)", t.Feedback.Notes)
		}
		b.WriteString("\n")
	}
}

// statusHeading renders a status as a section title.
func statusHeading(s types.Status) string {
	switch s {
	case types.StatusPending:
		return "Pending"
	case types.StatusInProgress:
		return "In Progress"
	case types.StatusCompleted:
		return "Completed"
	case types.StatusBlocked:
		return "Blocked"
	case types.StatusCancelled:
		return "Cancelled"
	default:
		return string(s)
	}
}

func timeOrEmpty(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func hoursOrEmpty(h *float64) string {
	if h == nil {
		return ""
	}
	return trimFloat(*h)
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func scoreOrDash(score int) string {
	if score == 0 {
		return "-"
	}
	return strconv.Itoa(score)
}
