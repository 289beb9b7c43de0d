package sqlite

import (
	"errors"
	"fmt"
	"testing"

	"pgregory.net/rapid"

	"github.com/taskmesh/taskmesh/internal/types"
)

// TestStatusTracksDependencies drives the store through random sequences
// of create/add-edge/complete/delete operations and checks after every
// step that task status agrees with the dependency graph: an open task is
// blocked exactly when it has an unmet dependency.
func TestStatusTracksDependencies(t *testing.T) {
	rapid.Check(t, func(r *rapid.T) {
		env := newTestEnv(t)

		var ids []string
		alive := make(map[string]bool)

		checkInvariant := func(step string) {
			report, err := env.Store.ValidateGraph(env.Ctx)
			if err != nil {
				r.Fatalf("%s: ValidateGraph failed: %v", step, err)
			}
			if !report.Clean() {
				r.Fatalf("%s: graph invariant violated: %+v", step, report.Issues)
			}
		}

		pickAlive := func(label string) string {
			var pool []string
			for _, id := range ids {
				if alive[id] {
					pool = append(pool, id)
				}
			}
			if len(pool) == 0 {
				return ""
			}
			return pool[rapid.IntRange(0, len(pool)-1).Draw(r, label)]
		}

		steps := rapid.IntRange(5, 40).Draw(r, "steps")
		for i := 0; i < steps; i++ {
			op := rapid.IntRange(0, 3).Draw(r, fmt.Sprintf("op-%d", i))
			switch op {
			case 0: // create, possibly with deps
				var deps []string
				for _, id := range ids {
					if alive[id] && rapid.Bool().Draw(r, fmt.Sprintf("dep-%d-%s", i, id)) {
						deps = append(deps, id)
					}
				}
				task := &types.Task{Title: fmt.Sprintf("task %d", i)}
				if err := env.Store.CreateTask(env.Ctx, task, deps, "prop-agent"); err != nil {
					r.Fatalf("step %d: CreateTask failed: %v", i, err)
				}
				ids = append(ids, task.ID)
				alive[task.ID] = true

			case 1: // add a random edge, tolerating rejections
				from := pickAlive(fmt.Sprintf("from-%d", i))
				to := pickAlive(fmt.Sprintf("to-%d", i))
				if from == "" || to == "" {
					continue
				}
				err := env.Store.AddDependency(env.Ctx, &types.Dependency{
					TaskID: from, DependsOnID: to,
				}, "prop-agent")
				var cerr *types.CycleError
				if err != nil && !errors.As(err, &cerr) {
					r.Fatalf("step %d: AddDependency(%s -> %s) failed: %v", i, from, to, err)
				}

			case 2: // complete an eligible task
				id := pickAlive(fmt.Sprintf("complete-%d", i))
				if id == "" {
					continue
				}
				task, err := env.Store.GetTask(env.Ctx, id)
				if err != nil {
					r.Fatalf("step %d: GetTask failed: %v", i, err)
				}
				if task.Status != types.StatusPending && task.Status != types.StatusInProgress {
					continue
				}
				if _, err := env.Store.CompleteTask(env.Ctx, id, "prop-agent", types.CompleteOptions{}); err != nil {
					r.Fatalf("step %d: CompleteTask(%s) failed: %v", i, id, err)
				}

			case 3: // cascade-delete a task and its dependents
				id := pickAlive(fmt.Sprintf("delete-%d", i))
				if id == "" {
					continue
				}
				deleted, err := env.Store.DeleteTask(env.Ctx, id, true, "prop-agent")
				if err != nil {
					r.Fatalf("step %d: DeleteTask(%s) failed: %v", i, id, err)
				}
				for _, d := range deleted {
					alive[d] = false
				}
			}

			checkInvariant(fmt.Sprintf("step %d (op %d)", i, op))
		}
	})
}
