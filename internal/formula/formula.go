// Package formula loads TOML task templates and instantiates them.
//
// A template is a TOML file under <state>/templates/ declaring [[tasks]]
// blocks wired together by alias, plus optional [vars.*] declarations
// substituted into text fields as ${name}. Apply creates every task in
// one transaction: either the whole template lands or none of it.
package formula

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/taskmesh/taskmesh/internal/storage"
	"github.com/taskmesh/taskmesh/internal/types"
)

// TemplateExt is the template file extension.
const TemplateExt = ".toml"

// Var declares a substitutable template variable.
type Var struct {
	Description string `toml:"description"`
	Default     string `toml:"default"`
	Required    bool   `toml:"required"`
}

// TaskSpec is one [[tasks]] block. DependsOn references sibling aliases,
// not store ids.
type TaskSpec struct {
	Alias          string   `toml:"alias"`
	Title          string   `toml:"title"`
	Description    string   `toml:"description"`
	Priority       string   `toml:"priority"`
	Assignee       string   `toml:"assignee"`
	Tags           []string `toml:"tags"`
	DependsOn      []string `toml:"depends_on"`
	Criteria       []string `toml:"criteria"`
	EstimatedHours float64  `toml:"estimated_hours"`
}

// Template is one parsed template file.
type Template struct {
	Name        string         `toml:"name"`
	Description string         `toml:"description"`
	Vars        map[string]Var `toml:"vars"`
	Tasks       []TaskSpec     `toml:"tasks"`

	Source string `toml:"-"`
}

// Dir returns the template directory for a state directory.
func Dir(stateDir string) string {
	return filepath.Join(stateDir, "templates")
}

// Parse reads and validates a template file.
func Parse(path string) (*Template, error) {
	var t Template
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return nil, &types.ValidationError{Field: "template", Reason: fmt.Sprintf("%s: %v", filepath.Base(path), err)}
	}
	t.Source = path
	if t.Name == "" {
		t.Name = strings.TrimSuffix(filepath.Base(path), TemplateExt)
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Load resolves a template by name inside dir.
func Load(dir, name string) (*Template, error) {
	path := filepath.Join(dir, name+TemplateExt)
	if _, err := os.Stat(path); err != nil {
		return nil, &types.NotFoundError{Kind: "template", ID: name}
	}
	return Parse(path)
}

// List parses every template in dir, sorted by name. Unreadable or
// invalid files are skipped.
func List(dir string) []*Template {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var templates []*Template
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), TemplateExt) {
			continue
		}
		t, err := Parse(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		templates = append(templates, t)
	}
	sort.Slice(templates, func(i, j int) bool { return templates[i].Name < templates[j].Name })
	return templates
}

func (t *Template) validate() error {
	if len(t.Tasks) == 0 {
		return &types.ValidationError{Field: "template", Reason: fmt.Sprintf("%s declares no tasks", t.Name)}
	}
	seen := make(map[string]bool, len(t.Tasks))
	for i := range t.Tasks {
		spec := &t.Tasks[i]
		if spec.Alias == "" {
			spec.Alias = fmt.Sprintf("task%d", i+1)
		}
		if seen[spec.Alias] {
			return &types.ValidationError{Field: "alias", Reason: fmt.Sprintf("duplicate alias %q", spec.Alias)}
		}
		seen[spec.Alias] = true
		if strings.TrimSpace(spec.Title) == "" {
			return &types.ValidationError{Field: "title", Reason: fmt.Sprintf("task %q has no title", spec.Alias)}
		}
	}
	for _, spec := range t.Tasks {
		for _, dep := range spec.DependsOn {
			if !seen[dep] {
				return &types.ValidationError{Field: "depends_on", Reason: fmt.Sprintf("task %q depends on unknown alias %q", spec.Alias, dep)}
			}
			if dep == spec.Alias {
				return &types.ValidationError{Field: "depends_on", Reason: fmt.Sprintf("task %q depends on itself", spec.Alias)}
			}
		}
	}
	if _, err := t.order(); err != nil {
		return err
	}
	return nil
}

// order returns task indexes topologically, dependencies first.
func (t *Template) order() ([]int, error) {
	index := make(map[string]int, len(t.Tasks))
	for i, spec := range t.Tasks {
		index[spec.Alias] = i
	}
	indegree := make([]int, len(t.Tasks))
	dependents := make([][]int, len(t.Tasks))
	for i, spec := range t.Tasks {
		for _, dep := range spec.DependsOn {
			j := index[dep]
			indegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	var queue []int
	for i, d := range indegree {
		if d == 0 {
			queue = append(queue, i)
		}
	}
	var out []int
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		out = append(out, i)
		for _, j := range dependents[i] {
			indegree[j]--
			if indegree[j] == 0 {
				queue = append(queue, j)
			}
		}
	}
	if len(out) != len(t.Tasks) {
		return nil, &types.ValidationError{Field: "depends_on", Reason: fmt.Sprintf("template %s has a dependency cycle among its aliases", t.Name)}
	}
	return out, nil
}

var varPattern = regexp.MustCompile(`\$\{([A-Za-z0-9_]+)\}`)

// Expand substitutes ${name} placeholders across every text field, using
// values with declared defaults as fallback. Missing required variables
// and references to undeclared ones are errors.
func (t *Template) Expand(values map[string]string) (*Template, error) {
	resolved := make(map[string]string, len(t.Vars))
	for name, decl := range t.Vars {
		if val, ok := values[name]; ok && val != "" {
			resolved[name] = val
			continue
		}
		if decl.Default != "" {
			resolved[name] = decl.Default
			continue
		}
		if decl.Required {
			return nil, &types.ValidationError{Field: "vars", Reason: fmt.Sprintf("variable %q is required (--var %s=...)", name, name)}
		}
		resolved[name] = ""
	}
	for name := range values {
		if _, ok := t.Vars[name]; !ok {
			return nil, &types.ValidationError{Field: "vars", Reason: fmt.Sprintf("template %s declares no variable %q", t.Name, name)}
		}
	}

	var substErr error
	subst := func(s string) string {
		return varPattern.ReplaceAllStringFunc(s, func(m string) string {
			name := varPattern.FindStringSubmatch(m)[1]
			val, ok := resolved[name]
			if !ok {
				substErr = &types.ValidationError{Field: "vars", Reason: fmt.Sprintf("undeclared variable %q referenced in template %s", name, t.Name)}
				return m
			}
			return val
		})
	}

	out := *t
	out.Tasks = make([]TaskSpec, len(t.Tasks))
	for i, spec := range t.Tasks {
		expanded := spec
		expanded.Title = subst(spec.Title)
		expanded.Description = subst(spec.Description)
		expanded.Assignee = subst(spec.Assignee)
		expanded.Tags = substAll(spec.Tags, subst)
		expanded.Criteria = substAll(spec.Criteria, subst)
		out.Tasks[i] = expanded
	}
	if substErr != nil {
		return nil, substErr
	}
	return &out, nil
}

func substAll(in []string, subst func(string) string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = subst(s)
	}
	return out
}

// Apply instantiates the template inside one transaction: tasks are
// created dependencies-first, then wired by alias, so a mid-template
// failure rolls everything back. Returns the created tasks in creation
// order.
func Apply(ctx context.Context, store storage.Storage, t *Template, actor string) ([]*types.Task, error) {
	order, err := t.order()
	if err != nil {
		return nil, err
	}

	created := make([]*types.Task, 0, len(t.Tasks))
	idByAlias := make(map[string]string, len(t.Tasks))

	err = store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		for _, i := range order {
			spec := t.Tasks[i]
			task := &types.Task{
				Title:       spec.Title,
				Description: spec.Description,
				Priority:    types.Priority(spec.Priority),
				Assignee:    spec.Assignee,
				Tags:        spec.Tags,
			}
			if spec.EstimatedHours > 0 {
				h := spec.EstimatedHours
				task.EstimatedHours = &h
			}
			for _, c := range spec.Criteria {
				task.SuccessCriteria = append(task.SuccessCriteria, types.SuccessCriterion{Criterion: c})
			}
			if err := tx.CreateTask(ctx, task, actor); err != nil {
				return fmt.Errorf("task %q: %w", spec.Alias, err)
			}
			idByAlias[spec.Alias] = task.ID
			created = append(created, task)

			for _, dep := range spec.DependsOn {
				d := &types.Dependency{TaskID: task.ID, DependsOnID: idByAlias[dep]}
				if err := tx.AddDependency(ctx, d, actor); err != nil {
					return fmt.Errorf("task %q dependency on %q: %w", spec.Alias, dep, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// CreateTask stamps pending; AddDependency may have re-blocked some
	// rows after the structs were captured. Reload the authoritative rows.
	for i, task := range created {
		fresh, err := store.GetTask(ctx, task.ID)
		if err != nil {
			return nil, err
		}
		created[i] = fresh
	}
	return created, nil
}
