package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taskmesh/taskmesh/internal/formula"
	"github.com/taskmesh/taskmesh/internal/hooks"
	"github.com/taskmesh/taskmesh/internal/storage/sqlite"
	"github.com/taskmesh/taskmesh/internal/telemetry"
	"github.com/taskmesh/taskmesh/internal/types"
	"github.com/taskmesh/taskmesh/internal/ui"
	"github.com/taskmesh/taskmesh/internal/utils"
)

var templateCmd = &cobra.Command{
	Use:     "template",
	GroupID: "setup",
	Short:   "List, inspect, and apply task templates",
	Long: `Task templates are TOML files under the state directory's templates/
folder. Each declares [[tasks]] blocks wired together by alias and
optional ${var} placeholders filled at apply time.

Applying a template is atomic: all of its tasks land, or none do.`,
}

var templateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available templates",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		templates := formula.List(formula.Dir(stateDir))

		if jsonOutput {
			if templates == nil {
				templates = []*formula.Template{}
			}
			outputJSON(templates)
			return
		}
		if len(templates) == 0 {
			fmt.Println(ui.RenderMuted("No templates. Drop a .toml file into " + formula.Dir(stateDir)))
			return
		}
		for _, t := range templates {
			fmt.Printf("  %s (%d tasks)", t.Name, len(t.Tasks))
			if t.Description != "" {
				fmt.Printf(" %s", ui.RenderMuted(t.Description))
			}
			fmt.Println()
		}
	},
}

// loadTemplate resolves a template by name, suggesting a close match
// when the name does not exist.
func loadTemplate(name string) *formula.Template {
	dir := formula.Dir(stateDir)
	t, err := formula.Load(dir, name)
	if err == nil {
		return t
	}
	var notFound *types.NotFoundError
	if errors.As(err, &notFound) {
		var names []string
		for _, known := range formula.List(dir) {
			names = append(names, known.Name)
		}
		if guess := utils.Suggest(name, names); guess != "" {
			fail(&types.ValidationError{
				Field:  "template",
				Reason: fmt.Sprintf("no template %q, did you mean %q?", name, guess),
			})
		}
	}
	fail(err)
	return nil
}

var templateShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a template's tasks and variables",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		t := loadTemplate(args[0])

		if jsonOutput {
			outputJSON(t)
			return
		}

		fmt.Printf("%s", t.Name)
		if t.Description != "" {
			fmt.Printf(": %s", t.Description)
		}
		fmt.Println()

		if len(t.Vars) > 0 {
			fmt.Println("\nVariables:")
			for name, decl := range t.Vars {
				line := fmt.Sprintf("  ${%s}", name)
				if decl.Required {
					line += " (required)"
				} else if decl.Default != "" {
					line += fmt.Sprintf(" (default %q)", decl.Default)
				}
				if decl.Description != "" {
					line += " " + ui.RenderMuted(decl.Description)
				}
				fmt.Println(line)
			}
		}

		fmt.Println("\nTasks:")
		for _, spec := range t.Tasks {
			line := fmt.Sprintf("  %s: %s", spec.Alias, spec.Title)
			if len(spec.DependsOn) > 0 {
				line += ui.RenderMuted(" after " + strings.Join(spec.DependsOn, ", "))
			}
			fmt.Println(line)
		}
	},
}

var templateApplyCmd = &cobra.Command{
	Use:   "apply <name>",
	Short: "Instantiate a template's tasks",
	Long: `Create every task a template declares, wiring alias dependencies into
real edges. Variables are supplied with --var name=value; a missing
required variable aborts before anything is written.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := rootCtx
		varFlags, _ := cmd.Flags().GetStringArray("var")

		values := make(map[string]string, len(varFlags))
		for _, kv := range varFlags {
			name, value, ok := strings.Cut(kv, "=")
			if !ok || name == "" {
				fail(&types.ValidationError{Field: "var", Reason: fmt.Sprintf("%q is not name=value", kv)})
			}
			values[name] = value
		}

		t := loadTemplate(args[0])
		expanded, err := t.Expand(values)
		if err != nil {
			fail(err)
		}

		if err := gate("add", ""); err != nil {
			fail(err)
		}

		// template is storeless so list and show work before init;
		// apply opens the store on its own.
		if store == nil {
			s, err := sqlite.Open(ctx, dbPath)
			if err != nil {
				fail(err)
			}
			store = s
			recorder = telemetry.New(stateDir, s.Session())
		}

		var created []*types.Task
		err = withLock(func() error {
			var err error
			created, err = formula.Apply(ctx, store, expanded, actor)
			return err
		})
		if err != nil {
			fail(err)
		}

		for _, task := range created {
			hookRunner.Run(hooks.EventCreate, task)
		}
		recorder.Record("templates", "apply", nil)

		if jsonOutput {
			outputJSON(created)
			return
		}
		fmt.Printf("%s Applied %s: %d task(s)\n", ui.RenderPass("✓"), expanded.Name, len(created))
		for _, task := range created {
			marker := "  "
			if task.Status == types.StatusBlocked {
				marker = ui.RenderWarn("⏳") + " "
			}
			fmt.Printf("%s%s %s\n", marker, task.ID, task.Title)
		}
	},
}

func init() {
	templateApplyCmd.Flags().StringArray("var", nil, "Template variable as name=value (repeatable)")
	templateCmd.AddCommand(templateListCmd, templateShowCmd, templateApplyCmd)
	rootCmd.AddCommand(templateCmd)
}
