package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/taskmesh/taskmesh/internal/config"
	"github.com/taskmesh/taskmesh/internal/enforce"
	"github.com/taskmesh/taskmesh/internal/lockfile"
	"github.com/taskmesh/taskmesh/internal/storage"
	"github.com/taskmesh/taskmesh/internal/types"
	"github.com/taskmesh/taskmesh/internal/ui"
)

// outputJSON marshals v to stdout with indentation. The --json contract:
// exactly one JSON document per invocation, always on stdout.
func outputJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: marshaling output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}

// FatalError reports a failure outside the error taxonomy and exits 1.
func FatalError(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if jsonOutput {
		outputJSON(map[string]string{"error": msg})
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}

// exitCodeFor maps the closed error taxonomy onto process exit codes:
// 2 input (validation, not found, transitions, criteria), 3 store
// (lock, busy, corrupt, unavailable, migration), 4 dependency graph,
// 5 permissions, 1 everything else.
func exitCodeFor(err error) int {
	var (
		validation *types.ValidationError
		notFound   *types.NotFoundError
		transition *types.InvalidTransitionError
		criteria   *types.CriteriaUnmetError
		lock       *types.LockTimeoutError
		corrupt    *types.CorruptStoreError
		unavail    *types.StorageUnavailableError
		migration  *types.MigrationError
		unknownDep *types.UnknownDependencyError
		cycle      *types.CycleError
		dependents *types.DependentsExistError
		permission *types.PermissionDeniedError
	)
	switch {
	case errors.As(err, &validation),
		errors.As(err, &notFound),
		errors.As(err, &transition),
		errors.As(err, &criteria):
		return 2
	case errors.As(err, &lock),
		errors.Is(err, types.ErrBusy),
		errors.As(err, &corrupt),
		errors.As(err, &unavail),
		errors.As(err, &migration):
		return 3
	case errors.As(err, &unknownDep),
		errors.As(err, &cycle),
		errors.As(err, &dependents):
		return 4
	case errors.As(err, &permission):
		return 5
	}
	return 1
}

// fail renders err for the active output mode and exits with its mapped
// code. Never returns.
func fail(err error) {
	code := exitCodeFor(err)

	if jsonOutput {
		doc := map[string]interface{}{"error": err.Error()}
		var criteria *types.CriteriaUnmetError
		if errors.As(err, &criteria) {
			doc["report"] = criteria.Report
		}
		var blocked *enforce.BlockedError
		if errors.As(err, &blocked) {
			doc["violations"] = blocked.Violations
		}
		var cycle *types.CycleError
		if errors.As(err, &cycle) {
			doc["cycle"] = cycle.Path
		}
		outputJSON(doc)
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)

	var criteria *types.CriteriaUnmetError
	if errors.As(err, &criteria) {
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, ui.RenderCriteriaReport(criteria.Report, ui.GetWidth()))
	}
	var blocked *enforce.BlockedError
	if errors.As(err, &blocked) {
		verdict := &enforce.Verdict{
			Decision:   enforce.Block,
			Level:      config.EnforcementLevel(),
			Violations: blocked.Violations,
		}
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, ui.RenderViolationsTable(verdict, ui.GetWidth()))
	}
	if errors.Is(err, storage.ErrNotInitialized) {
		fmt.Fprintln(os.Stderr, "Hint: run 'tm init' in the project root first")
	}
	if errors.Is(err, storage.ErrMigrationsPending) {
		fmt.Fprintln(os.Stderr, "Hint: run 'tm migrate --apply' to bring the schema up to date")
	}
	var lockErr *types.LockTimeoutError
	if errors.As(err, &lockErr) {
		fmt.Fprintln(os.Stderr, "Hint: another tm process holds the lock; retry, or raise TM_LOCK_TIMEOUT")
	}
	var corruptErr *types.CorruptStoreError
	if errors.As(err, &corruptErr) {
		fmt.Fprintln(os.Stderr, "Hint: 'tm migrate --rollback' restores the most recent backup")
	}

	os.Exit(code)
}

// gate consults the orchestration gate before a write operation. intent
// is the description text checked for commander's-intent markers; pass
// "" for operations that carry none. Strict violations abort, standard
// asks for confirmation, advisory proceeds with a note.
func gate(op, intent string) error {
	env := enforce.EnvFromConfig(agentFlag, dbFlag)
	verdict := enforce.Check(env, op, intent)
	if verdict.Clean() {
		return nil
	}

	if verdict.Decision == enforce.Block {
		return &enforce.BlockedError{Op: op, Violations: verdict.Violations}
	}

	if verdict.Level == config.EnforcementAdvisory {
		if !quietFlag && !jsonOutput {
			for _, v := range verdict.Violations {
				fmt.Fprintf(os.Stderr, "note: %s (%s)\n", v.Fix, v.Category)
			}
		}
		return nil
	}

	// Standard level: show the findings, ask before proceeding. Without
	// a terminal the default answer applies, so scripted callers pass.
	if !jsonOutput {
		fmt.Fprintln(os.Stderr, ui.RenderViolationsTable(&verdict, ui.GetWidth()))
	}
	if !ui.PromptYesNo(fmt.Sprintf("Run %q anyway?", op), true) {
		return fmt.Errorf("aborted: orchestration preconditions for %s not met", op)
	}
	return nil
}

// withLock runs fn holding the cross-process advisory lock, so compound
// writes from concurrent tm invocations serialize.
func withLock(fn func() error) error {
	lock, err := lockfile.Acquire(rootCtx, config.LockPath(stateDir), lockfile.Timeout())
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()
	return fn()
}

// taskIDLength is the length of a full task id (hex digest).
const taskIDLength = 8

// resolveTaskID expands a partial task id to the full stored id. Full
// ids pass through untouched; shorter prefixes resolve when they match
// exactly one task, and list the candidates when they match several.
func resolveTaskID(ctx context.Context, raw string) (string, error) {
	id := strings.ToLower(strings.TrimSpace(raw))
	if id == "" {
		return "", &types.ValidationError{Field: "id", Reason: "must not be empty"}
	}
	if len(id) >= taskIDLength {
		return id, nil
	}

	tasks, err := store.ListTasks(ctx, types.TaskFilter{})
	if err != nil {
		return "", err
	}
	var matches []string
	for _, t := range tasks {
		if strings.HasPrefix(t.ID, id) {
			matches = append(matches, t.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", &types.NotFoundError{Kind: "task", ID: raw}
	case 1:
		return matches[0], nil
	default:
		return "", &types.ValidationError{
			Field:  "id",
			Reason: fmt.Sprintf("%q matches %d tasks (%s)", raw, len(matches), strings.Join(matches, ", ")),
		}
	}
}

// mirrorContext refreshes the filesystem mirror of a task's shared
// context. Best-effort, after commit; failures only reach the debug log.
func mirrorContext(taskID string) {
	if projector == nil || store == nil {
		return
	}
	tc, err := store.GetContext(rootCtx, taskID, actor)
	if err != nil {
		return
	}
	projector.Context(tc)
}

// mirrorNotes refreshes the caller's private-notes mirror for a task.
func mirrorNotes(taskID string) {
	if projector == nil || store == nil {
		return
	}
	tc, err := store.GetContext(rootCtx, taskID, actor)
	if err != nil {
		return
	}
	projector.Notes(actor, tc)
}

// confirmOrAbort asks a yes/no question and exits 1 on no. Used by
// destructive commands when --force is absent.
func confirmOrAbort(question string) {
	if !ui.PromptYesNo(question, false) {
		fmt.Fprintln(os.Stderr, "Aborted.")
		os.Exit(1)
	}
}
