// Package types defines the core domain entities shared across taskmesh.
package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusBlocked    Status = "blocked"
	StatusCancelled  Status = "cancelled"
)

// ValidStatuses lists every status a task may hold.
var ValidStatuses = []Status{
	StatusPending,
	StatusInProgress,
	StatusCompleted,
	StatusBlocked,
	StatusCancelled,
}

// IsValid reports whether s is one of the recognized statuses.
func (s Status) IsValid() bool {
	for _, v := range ValidStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Satisfies reports whether a dependency in this status releases its
// dependents. Only completed tasks satisfy dependencies; cancelled
// tasks do not.
func (s Status) Satisfies() bool {
	return s == StatusCompleted
}

// Priority represents task urgency.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// ValidPriorities lists every priority a task may hold.
var ValidPriorities = []Priority{
	PriorityLow,
	PriorityMedium,
	PriorityHigh,
	PriorityCritical,
}

// IsValid reports whether p is one of the recognized priorities.
func (p Priority) IsValid() bool {
	for _, v := range ValidPriorities {
		if p == v {
			return true
		}
	}
	return false
}

// FileRef points a task at a location in the working tree.
// LineEnd is zero when the reference is a single line or a whole file.
type FileRef struct {
	Path      string `json:"path"`
	LineStart int    `json:"line_start,omitempty"`
	LineEnd   int    `json:"line_end,omitempty"`
}

func (r FileRef) String() string {
	switch {
	case r.LineEnd > 0:
		return fmt.Sprintf("%s:%d:%d", r.Path, r.LineStart, r.LineEnd)
	case r.LineStart > 0:
		return fmt.Sprintf("%s:%d", r.Path, r.LineStart)
	default:
		return r.Path
	}
}

// SuccessCriterion is a single completion requirement attached to a task.
type SuccessCriterion struct {
	Criterion  string `json:"criterion"`
	Measurable string `json:"measurable,omitempty"`
}

// MaxCriteria caps the number of success criteria per task.
const MaxCriteria = 10

// MaxCriterionLength caps the length of a single criterion string.
const MaxCriterionLength = 500

// ParseCriteria decodes a JSON array of success criteria and enforces caps.
func ParseCriteria(raw string) ([]SuccessCriterion, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var criteria []SuccessCriterion
	if err := json.Unmarshal([]byte(raw), &criteria); err != nil {
		return nil, &ValidationError{Field: "criteria", Reason: fmt.Sprintf("not a JSON array of criteria: %v", err)}
	}
	if len(criteria) > MaxCriteria {
		return nil, &ValidationError{Field: "criteria", Reason: fmt.Sprintf("at most %d criteria allowed, got %d", MaxCriteria, len(criteria))}
	}
	for i, c := range criteria {
		if strings.TrimSpace(c.Criterion) == "" {
			return nil, &ValidationError{Field: "criteria", Reason: fmt.Sprintf("criterion %d is empty", i+1)}
		}
		if len(c.Criterion) > MaxCriterionLength {
			return nil, &ValidationError{Field: "criteria", Reason: fmt.Sprintf("criterion %d exceeds %d chars", i+1, MaxCriterionLength)}
		}
	}
	return criteria, nil
}

// EncodeCriteria renders criteria back to their stored JSON form.
// Returns the empty string for an empty set so the column stays NULL.
func EncodeCriteria(criteria []SuccessCriterion) (string, error) {
	if len(criteria) == 0 {
		return "", nil
	}
	b, err := json.Marshal(criteria)
	if err != nil {
		return "", fmt.Errorf("failed to encode criteria: %w", err)
	}
	return string(b), nil
}

// Task is the primary entity. Core-loop fields (criteria, deadline, hours,
// summary, rework) arrive via migration and are nullable in the store.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      Status    `json:"status"`
	Priority    Priority  `json:"priority"`
	Assignee    string    `json:"assignee,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	FileRefs []FileRef `json:"file_refs,omitempty"`
	Tags     []string  `json:"tags,omitempty"`

	SuccessCriteria   []SuccessCriterion `json:"success_criteria,omitempty"`
	Deadline          *time.Time         `json:"deadline,omitempty"`
	EstimatedHours    *float64           `json:"estimated_hours,omitempty"`
	ActualHours       *float64           `json:"actual_hours,omitempty"`
	CompletionSummary string             `json:"completion_summary,omitempty"`
	ReworkOf          string             `json:"rework_of,omitempty"`
}

// Dependency is a directed edge: TaskID depends on DependsOnID.
type Dependency struct {
	TaskID      string    `json:"task_id"`
	DependsOnID string    `json:"depends_on_id"`
	CreatedAt   time.Time `json:"created_at"`
	CreatedBy   string    `json:"created_by,omitempty"`
}

// TaskFilter narrows ListTasks results. Filters combine with AND.
type TaskFilter struct {
	Status   Status
	Assignee string
	HasDeps  bool
	Limit    int
}

// TaskDetail is the full view returned by show: the task plus its graph
// neighborhood, progress log, and feedback.
type TaskDetail struct {
	Task         *Task            `json:"task"`
	Dependencies []*Task          `json:"dependencies,omitempty"`
	Dependents   []*Task          `json:"dependents,omitempty"`
	Progress     []*ProgressEntry `json:"progress,omitempty"`
	Feedback     *Feedback        `json:"feedback,omitempty"`
}

// ContextKind classifies shared-context entries.
type ContextKind string

const (
	ContextUpdate    ContextKind = "update"
	ContextDiscovery ContextKind = "discovery"
	ContextDecision  ContextKind = "decision"
	ContextSync      ContextKind = "sync"
)

// IsValid reports whether k is a recognized context kind.
func (k ContextKind) IsValid() bool {
	switch k {
	case ContextUpdate, ContextDiscovery, ContextDecision, ContextSync:
		return true
	}
	return false
}

// ContextEntry is one record in a task's shared context log.
type ContextEntry struct {
	ID        int64       `json:"id"`
	TaskID    string      `json:"task_id"`
	AgentID   string      `json:"agent_id"`
	Kind      ContextKind `json:"kind"`
	Message   string      `json:"message"`
	CreatedAt time.Time   `json:"created_at"`
}

// PrivateNote is a per-agent note on a task, visible only to its author.
type PrivateNote struct {
	ID        int64     `json:"id"`
	TaskID    string    `json:"task_id"`
	AgentID   string    `json:"agent_id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Participant records that an agent joined a task.
type Participant struct {
	TaskID   string    `json:"task_id"`
	AgentID  string    `json:"agent_id"`
	Role     string    `json:"role,omitempty"`
	JoinedAt time.Time `json:"joined_at"`
}

// TaskContext is the combined view returned by the context operation:
// all shared entries, the caller's own private notes, and participants.
type TaskContext struct {
	TaskID       string          `json:"task_id"`
	Shared       []*ContextEntry `json:"shared"`
	Private      []*PrivateNote  `json:"private_mine"`
	Participants []*Participant  `json:"participants"`
}

// NotificationKind classifies notifications.
type NotificationKind string

const (
	NotifyTaskUnblocked NotificationKind = "task_unblocked"
	NotifyCompletion    NotificationKind = "completion"
	NotifyImpactReview  NotificationKind = "impact_review"
	NotifySyncPoint     NotificationKind = "sync_point"
	NotifyDiscovery     NotificationKind = "discovery"
	NotifyAssignment    NotificationKind = "assignment"
	NotifyTruncated     NotificationKind = "notifications_truncated"
)

// Notification is a message addressed to one agent or broadcast to all.
// An empty Recipient means broadcast.
type Notification struct {
	ID        int64            `json:"id"`
	Recipient string           `json:"recipient,omitempty"`
	TaskID    string           `json:"task_id,omitempty"`
	Kind      NotificationKind `json:"kind"`
	Message   string           `json:"message"`
	CreatedAt time.Time        `json:"created_at"`
	Read      bool             `json:"read"`
}

// Broadcast reports whether the notification has no specific recipient.
func (n *Notification) Broadcast() bool { return n.Recipient == "" }

// ProgressEntry is one record in a task's progress log.
type ProgressEntry struct {
	ID        int64     `json:"id"`
	TaskID    string    `json:"task_id"`
	AgentID   string    `json:"agent_id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Feedback holds the single quality/timeliness record for a completed task.
// Quality and Timeliness are 1-5; zero means not provided.
type Feedback struct {
	TaskID     string    `json:"task_id"`
	Quality    int       `json:"quality,omitempty"`
	Timeliness int       `json:"timeliness,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// CriterionStatus is the outcome of evaluating one success criterion.
type CriterionStatus string

const (
	CriterionPass   CriterionStatus = "pass"
	CriterionFail   CriterionStatus = "fail"
	CriterionManual CriterionStatus = "manual"
)

// CriterionResult is the per-criterion entry in a validation report.
type CriterionResult struct {
	Criterion string          `json:"criterion"`
	Status    CriterionStatus `json:"status"`
	Detail    string          `json:"detail,omitempty"`
}

// ValidationReport summarizes criteria evaluation at completion time.
type ValidationReport struct {
	Results []CriterionResult `json:"results"`
}

// Passed reports whether every criterion evaluated to pass.
func (r *ValidationReport) Passed() bool {
	for _, res := range r.Results {
		if res.Status != CriterionPass {
			return false
		}
	}
	return true
}

// CompleteOptions carries caller intent into the complete operation.
type CompleteOptions struct {
	// Validate requests criteria evaluation; Answers supplies per-criterion
	// confirmations keyed by zero-based index (missing entries stay manual).
	Validate bool
	Answers  map[int]bool

	Summary      string
	ActualHours  *float64
	ImpactReview bool

	// Force completes the task even when criteria fail or are unconfirmed.
	Force bool
}

// CompletionResult reports what a complete call did.
type CompletionResult struct {
	Task      *Task             `json:"task"`
	Unblocked []*Task           `json:"unblocked,omitempty"`
	Report    *ValidationReport `json:"report,omitempty"`
	// AlreadyCompleted is set when complete was a no-op on a completed task.
	AlreadyCompleted bool `json:"already_completed,omitempty"`
}

// Metrics aggregates core-loop outcomes over a time window.
type Metrics struct {
	Window             string   `json:"window"`
	CompletedTasks     int      `json:"completed_tasks"`
	TasksWithFeedback  int      `json:"tasks_with_feedback"`
	AvgQuality         *float64 `json:"avg_quality,omitempty"`
	AvgTimeliness      *float64 `json:"avg_timeliness,omitempty"`
	EstimationAccuracy *float64 `json:"estimation_accuracy,omitempty"`
	ReworkCorrelation  *float64 `json:"rework_correlation,omitempty"`
}

// EventType classifies audit-trail events.
type EventType string

const (
	EventCreated           EventType = "created"
	EventUpdated           EventType = "updated"
	EventStatusChanged     EventType = "status_changed"
	EventCompleted         EventType = "completed"
	EventAssigned          EventType = "assigned"
	EventDeleted           EventType = "deleted"
	EventReopened          EventType = "reopened"
	EventDependencyAdded   EventType = "dependency_added"
	EventDependencyRemoved EventType = "dependency_removed"
)

// Event is one audit-trail record for a task.
type Event struct {
	ID        int64     `json:"id"`
	TaskID    string    `json:"task_id"`
	EventType EventType `json:"event_type"`
	Actor     string    `json:"actor"`
	Session   string    `json:"session,omitempty"`
	OldValue  *string   `json:"old_value,omitempty"`
	NewValue  *string   `json:"new_value,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// GraphIssueKind classifies anomalies found by a full-graph audit.
type GraphIssueKind string

const (
	GraphIssueCycle        GraphIssueKind = "cycle"
	GraphIssueDanglingEdge GraphIssueKind = "dangling_edge"
	GraphIssueWrongStatus  GraphIssueKind = "wrong_status"
)

// GraphIssue is one anomaly reported by ValidateGraph.
type GraphIssue struct {
	Kind   GraphIssueKind `json:"kind"`
	TaskID string         `json:"task_id,omitempty"`
	Path   []string       `json:"path,omitempty"`
	Detail string         `json:"detail"`
}

// GraphReport summarizes a dependency-graph audit.
type GraphReport struct {
	Tasks  int           `json:"tasks"`
	Edges  int           `json:"edges"`
	Issues []*GraphIssue `json:"issues,omitempty"`
}

// Clean reports whether the audit found no anomalies.
func (r *GraphReport) Clean() bool { return len(r.Issues) == 0 }

// CriticalPath is the longest chain through the graph weighted by
// estimated hours. Tasks missing an estimate count as zero.
type CriticalPath struct {
	Tasks      []*Task `json:"tasks"`
	TotalHours float64 `json:"total_hours"`
}

// Statistics is the grouped status census used by metrics and init output.
type Statistics struct {
	TotalTasks      int `json:"total_tasks"`
	PendingTasks    int `json:"pending_tasks"`
	InProgressTasks int `json:"in_progress_tasks"`
	CompletedTasks  int `json:"completed_tasks"`
	BlockedTasks    int `json:"blocked_tasks"`
	CancelledTasks  int `json:"cancelled_tasks"`
}

// TaskExport is the flattened view produced for export: the task plus
// everything referenced by id, so JSON output round-trips all fields.
type TaskExport struct {
	Task
	Deps       []string         `json:"deps,omitempty"`
	Dependents []string         `json:"dependents,omitempty"`
	Progress   []*ProgressEntry `json:"progress,omitempty"`
	Feedback   *Feedback        `json:"feedback,omitempty"`
}
