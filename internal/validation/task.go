// Package validation holds field validators shared by the CLI and the store.
package validation

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/taskmesh/taskmesh/internal/types"
	"github.com/taskmesh/taskmesh/internal/utils"
)

// MaxTitleLength caps the trimmed task title.
const MaxTitleLength = 500

// MaxTags caps the number of distinct tags on a task.
const MaxTags = 16

// MaxSummaryLength and MinSummaryLength bound completion summaries.
const (
	MinSummaryLength = 20
	MaxSummaryLength = 2000
)

// MaxFeedbackNoteLength caps feedback notes.
const MaxFeedbackNoteLength = 500

// ValidateTitle trims and bounds a task title.
// Returns the trimmed title or a ValidationError.
func ValidateTitle(title string) (string, error) {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return "", &types.ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if len(trimmed) > MaxTitleLength {
		return "", &types.ValidationError{Field: "title", Reason: fmt.Sprintf("must be at most %d chars, got %d", MaxTitleLength, len(trimmed))}
	}
	return trimmed, nil
}

// ValidatePriority parses a priority string. An empty string yields the
// default (medium).
func ValidatePriority(s string) (types.Priority, error) {
	if strings.TrimSpace(s) == "" {
		return types.PriorityMedium, nil
	}
	p := types.Priority(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		reason := fmt.Sprintf("%q is not one of low, medium, high, critical", s)
		var names []string
		for _, v := range types.ValidPriorities {
			names = append(names, string(v))
		}
		if guess := utils.Suggest(s, names); guess != "" {
			reason = fmt.Sprintf("%q is not a priority, did you mean %q?", s, guess)
		}
		return "", &types.ValidationError{Field: "priority", Reason: reason}
	}
	return p, nil
}

// ValidateStatus parses a status string.
func ValidateStatus(s string) (types.Status, error) {
	st := types.Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		reason := fmt.Sprintf("%q is not one of pending, in_progress, completed, blocked, cancelled", s)
		var names []string
		for _, v := range types.ValidStatuses {
			names = append(names, string(v))
		}
		if guess := utils.Suggest(s, names); guess != "" {
			reason = fmt.Sprintf("%q is not a status, did you mean %q?", s, guess)
		}
		return "", &types.ValidationError{Field: "status", Reason: reason}
	}
	return st, nil
}

// NormalizeTags lowercases, trims, dedupes, and caps a tag list.
func NormalizeTags(tags []string) ([]string, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	seen := make(map[string]bool, len(tags))
	var out []string
	for _, t := range tags {
		tag := strings.ToLower(strings.TrimSpace(t))
		if tag == "" {
			continue
		}
		if seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	if len(out) > MaxTags {
		return nil, &types.ValidationError{Field: "tags", Reason: fmt.Sprintf("at most %d tags allowed, got %d", MaxTags, len(out))}
	}
	return out, nil
}

// ParseFileRef parses "path", "path:LINE", or "path:START:END" into a
// FileRef. Ranges are normalized so line_end >= line_start.
func ParseFileRef(s string) (types.FileRef, error) {
	if strings.TrimSpace(s) == "" {
		return types.FileRef{}, &types.ValidationError{Field: "file", Reason: "must not be empty"}
	}

	parts := strings.Split(s, ":")
	ref := types.FileRef{Path: parts[0]}

	// Windows drive letters ("C:\...") would need smarter splitting; the
	// store runs against project-relative paths so a bare colon split holds.
	if ref.Path == "" {
		return types.FileRef{}, &types.ValidationError{Field: "file", Reason: fmt.Sprintf("%q has no path component", s)}
	}

	parseLine := func(raw, what string) (int, error) {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return 0, &types.ValidationError{Field: "file", Reason: fmt.Sprintf("%s %q is not a number", what, raw)}
		}
		if n <= 0 {
			return 0, &types.ValidationError{Field: "file", Reason: fmt.Sprintf("%s must be positive, got %d", what, n)}
		}
		return n, nil
	}

	switch len(parts) {
	case 1:
		// whole-file reference
	case 2:
		start, err := parseLine(parts[1], "line")
		if err != nil {
			return types.FileRef{}, err
		}
		ref.LineStart = start
	case 3:
		start, err := parseLine(parts[1], "line_start")
		if err != nil {
			return types.FileRef{}, err
		}
		end, err := parseLine(parts[2], "line_end")
		if err != nil {
			return types.FileRef{}, err
		}
		if end < start {
			start, end = end, start
		}
		ref.LineStart = start
		ref.LineEnd = end
	default:
		return types.FileRef{}, &types.ValidationError{Field: "file", Reason: fmt.Sprintf("%q has too many colon-separated parts", s)}
	}

	ref.Path = filepath.ToSlash(ref.Path)
	return ref, nil
}

// ValidateSummary bounds a completion summary when one is provided.
func ValidateSummary(summary string) error {
	if summary == "" {
		return nil
	}
	if len(summary) < MinSummaryLength {
		return &types.ValidationError{Field: "summary", Reason: fmt.Sprintf("must be at least %d chars when provided, got %d", MinSummaryLength, len(summary))}
	}
	if len(summary) > MaxSummaryLength {
		return &types.ValidationError{Field: "summary", Reason: fmt.Sprintf("must be at most %d chars, got %d", MaxSummaryLength, len(summary))}
	}
	return nil
}

// ValidateScore bounds a feedback score (quality or timeliness) to 1-5.
// Zero means not provided and passes.
func ValidateScore(field string, score int) error {
	if score == 0 {
		return nil
	}
	if score < 1 || score > 5 {
		return &types.ValidationError{Field: field, Reason: fmt.Sprintf("must be between 1 and 5, got %d", score)}
	}
	return nil
}

// ValidateFeedbackNote bounds a feedback note.
func ValidateFeedbackNote(note string) error {
	if len(note) > MaxFeedbackNoteLength {
		return &types.ValidationError{Field: "note", Reason: fmt.Sprintf("must be at most %d chars, got %d", MaxFeedbackNoteLength, len(note))}
	}
	return nil
}

// ValidateHours rejects negative hour values. Nil passes.
func ValidateHours(field string, hours *float64) error {
	if hours == nil {
		return nil
	}
	if *hours < 0 {
		return &types.ValidationError{Field: field, Reason: fmt.Sprintf("must not be negative, got %v", *hours)}
	}
	return nil
}

// ValidateAgentID rejects empty or whitespace agent identifiers.
func ValidateAgentID(agent string) (string, error) {
	trimmed := strings.TrimSpace(agent)
	if trimmed == "" {
		return "", &types.ValidationError{Field: "agent", Reason: "must not be empty"}
	}
	return trimmed, nil
}

// ValidateMessage rejects empty collaboration messages.
func ValidateMessage(message string) (string, error) {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return "", &types.ValidationError{Field: "message", Reason: "must not be empty"}
	}
	return trimmed, nil
}

// manualTransitions captures the allowed manual status transitions.
// Blocked and completed states move through dedicated operations (the
// dependency cascade and complete respectively), not through update.
var manualTransitions = map[types.Status][]types.Status{
	types.StatusPending:    {types.StatusInProgress, types.StatusCancelled},
	types.StatusInProgress: {types.StatusPending, types.StatusBlocked, types.StatusCancelled},
	types.StatusCancelled:  {types.StatusPending},
	types.StatusBlocked:    {types.StatusCancelled},
}

// ValidateTransition checks a manual status change requested via update.
// reopen permits completed -> in_progress as an explicit escape hatch.
func ValidateTransition(from, to types.Status, reopen bool) error {
	if from == to {
		return nil
	}
	if to == types.StatusCompleted {
		return &types.InvalidTransitionError{From: from, To: to, Hint: "use complete instead of a manual status change"}
	}
	if from == types.StatusCompleted {
		if reopen && to == types.StatusInProgress {
			return nil
		}
		return &types.InvalidTransitionError{From: from, To: to, Hint: "completed tasks can only be reopened with the reopen flag"}
	}
	if to == types.StatusBlocked && from != types.StatusInProgress {
		return &types.InvalidTransitionError{From: from, To: to, Hint: "blocked is managed by the dependency engine"}
	}
	if from == types.StatusBlocked && to == types.StatusPending {
		return &types.InvalidTransitionError{From: from, To: to, Hint: "blocked tasks unblock when their dependencies complete"}
	}
	for _, allowed := range manualTransitions[from] {
		if to == allowed {
			return nil
		}
	}
	return &types.InvalidTransitionError{From: from, To: to}
}
