package formula

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/taskmesh/taskmesh/internal/storage"
	"github.com/taskmesh/taskmesh/internal/storage/sqlite"
	"github.com/taskmesh/taskmesh/internal/types"
)

const featureTemplate = `
name = "feature"
description = "standard feature workflow"

[vars.component]
description = "component under change"
required = true

[vars.owner]
default = "default"

[[tasks]]
alias = "design"
title = "Design ${component}"
priority = "high"
tags = ["design"]

[[tasks]]
alias = "build"
title = "Implement ${component}"
depends_on = ["design"]
assignee = "${owner}"
estimated_hours = 4.0

[[tasks]]
alias = "verify"
title = "Verify ${component}"
depends_on = ["build"]
criteria = ["tests pass for ${component}"]
`

func writeTemplate(t *testing.T, dir, name, body string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o750); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name+TemplateExt)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newStore(t *testing.T) storage.Storage {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	store, err := sqlite.New(ctx, filepath.Join(dir, "tasks.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if _, err := sqlite.NewMigrator(store, filepath.Join(dir, "backups")).Apply(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestParseAndList(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "feature", featureTemplate)
	writeTemplate(t, dir, "broken", "tasks = 12")
	writeTemplate(t, dir, "solo", `
[[tasks]]
title = "single step"
`)

	tpl, err := Load(dir, "feature")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tpl.Name != "feature" || len(tpl.Tasks) != 3 {
		t.Fatalf("unexpected template: %+v", tpl)
	}
	if tpl.Tasks[0].Alias != "design" {
		t.Fatalf("aliases not parsed: %+v", tpl.Tasks[0])
	}

	// Missing name falls back to the file name; missing aliases are
	// generated.
	solo, err := Load(dir, "solo")
	if err != nil {
		t.Fatalf("Load solo: %v", err)
	}
	if solo.Name != "solo" || solo.Tasks[0].Alias == "" {
		t.Fatalf("defaults not applied: %+v", solo)
	}

	list := List(dir)
	if len(list) != 2 {
		t.Fatalf("List should skip the broken file, got %d templates", len(list))
	}
	if list[0].Name != "feature" || list[1].Name != "solo" {
		t.Fatalf("List should sort by name: %s, %s", list[0].Name, list[1].Name)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(t.TempDir(), "nope")
	var nf *types.NotFoundError
	if !errors.As(err, &nf) || nf.Kind != "template" {
		t.Fatalf("expected template NotFound, got %v", err)
	}
}

func TestValidateRejectsBadGraphs(t *testing.T) {
	dir := t.TempDir()

	writeTemplate(t, dir, "cycle", `
[[tasks]]
alias = "a"
title = "a"
depends_on = ["b"]

[[tasks]]
alias = "b"
title = "b"
depends_on = ["a"]
`)
	if _, err := Load(dir, "cycle"); err == nil {
		t.Fatal("alias cycle should fail validation")
	}

	writeTemplate(t, dir, "dangling", `
[[tasks]]
alias = "a"
title = "a"
depends_on = ["ghost"]
`)
	if _, err := Load(dir, "dangling"); err == nil {
		t.Fatal("unknown alias should fail validation")
	}

	writeTemplate(t, dir, "dupe", `
[[tasks]]
alias = "a"
title = "one"

[[tasks]]
alias = "a"
title = "two"
`)
	if _, err := Load(dir, "dupe"); err == nil {
		t.Fatal("duplicate alias should fail validation")
	}
}

func TestExpand(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "feature", featureTemplate)
	tpl, err := Load(dir, "feature")
	if err != nil {
		t.Fatal(err)
	}

	expanded, err := tpl.Expand(map[string]string{"component": "auth"})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if expanded.Tasks[0].Title != "Design auth" {
		t.Fatalf("title not substituted: %q", expanded.Tasks[0].Title)
	}
	if expanded.Tasks[1].Assignee != "default" {
		t.Fatalf("default value not applied: %q", expanded.Tasks[1].Assignee)
	}
	if expanded.Tasks[2].Criteria[0] != "tests pass for auth" {
		t.Fatalf("criteria not substituted: %q", expanded.Tasks[2].Criteria[0])
	}
	// The source template must stay untouched.
	if tpl.Tasks[0].Title != "Design ${component}" {
		t.Fatal("Expand mutated the source template")
	}

	if _, err := tpl.Expand(nil); err == nil {
		t.Fatal("missing required variable should fail")
	}
	if _, err := tpl.Expand(map[string]string{"component": "auth", "bogus": "x"}); err == nil {
		t.Fatal("undeclared variable should fail")
	}
}

func TestExpandRejectsUndeclaredReference(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "loose", `
[[tasks]]
title = "Deploy ${service}"
`)
	tpl, err := Load(dir, "loose")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tpl.Expand(nil); err == nil {
		t.Fatal("reference to undeclared variable should fail")
	}
}

func TestApplyCreatesWiredChain(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	dir := t.TempDir()
	writeTemplate(t, dir, "feature", featureTemplate)

	tpl, err := Load(dir, "feature")
	if err != nil {
		t.Fatal(err)
	}
	expanded, err := tpl.Expand(map[string]string{"component": "auth", "owner": "alice"})
	if err != nil {
		t.Fatal(err)
	}

	created, err := Apply(ctx, store, expanded, "tester")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(created) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(created))
	}

	byTitle := make(map[string]*types.Task, len(created))
	for _, task := range created {
		byTitle[task.Title] = task
	}
	design := byTitle["Design auth"]
	build := byTitle["Implement auth"]
	verify := byTitle["Verify auth"]
	if design == nil || build == nil || verify == nil {
		t.Fatalf("missing tasks: %v", byTitle)
	}

	if design.Status != types.StatusPending {
		t.Fatalf("root task should be pending, got %s", design.Status)
	}
	if build.Status != types.StatusBlocked || verify.Status != types.StatusBlocked {
		t.Fatalf("downstream tasks should be blocked, got %s / %s", build.Status, verify.Status)
	}
	if build.Assignee != "alice" {
		t.Fatalf("assignee not applied: %q", build.Assignee)
	}
	if build.EstimatedHours == nil || *build.EstimatedHours != 4.0 {
		t.Fatal("estimated hours not applied")
	}
	if len(verify.SuccessCriteria) != 1 {
		t.Fatalf("criteria not applied: %+v", verify.SuccessCriteria)
	}

	deps, err := store.GetDependencies(ctx, build.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(deps) != 1 || deps[0].ID != design.ID {
		t.Fatalf("build should depend on design, got %+v", deps)
	}
}

func TestApplyIsAtomic(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	dir := t.TempDir()
	writeTemplate(t, dir, "bad", `
[[tasks]]
alias = "ok"
title = "fine"

[[tasks]]
alias = "broken"
title = "bad priority"
priority = "urgent"
depends_on = ["ok"]
`)

	tpl, err := Load(dir, "bad")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Apply(ctx, store, tpl, "tester"); err == nil {
		t.Fatal("invalid priority should fail the apply")
	}

	tasks, err := store.ListTasks(ctx, types.TaskFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 0 {
		t.Fatalf("failed apply must create nothing, found %d tasks", len(tasks))
	}
}
