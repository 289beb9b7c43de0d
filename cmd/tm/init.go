package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/taskmesh/taskmesh/internal/config"
	"github.com/taskmesh/taskmesh/internal/storage/sqlite"
	"github.com/taskmesh/taskmesh/internal/telemetry"
	"github.com/taskmesh/taskmesh/internal/types"
	"github.com/taskmesh/taskmesh/internal/ui"
)

var initCmd = &cobra.Command{
	Use:     "init",
	GroupID: "setup",
	Short:   "Initialize the task store in the current directory",
	Long: `Initialize taskmesh by creating a .taskmesh/ directory with the task
store, default configuration, and a templates directory.

Running init on an existing store is safe: it applies any pending schema
migrations and leaves everything else untouched.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := rootCtx

		_, statErr := os.Stat(dbPath)

		if err := os.MkdirAll(stateDir, 0o750); err != nil {
			if os.IsPermission(err) {
				fail(&types.PermissionDeniedError{Path: stateDir, Err: err})
			}
			fail(&types.StorageUnavailableError{Path: stateDir, Err: err})
		}

		result := ui.InitResult{
			StateDir: stateDir,
			DBPath:   dbPath,
			Created:  statErr != nil,
		}

		err := withLock(func() error {
			s, err := sqlite.New(ctx, dbPath)
			if err != nil {
				return err
			}
			store = s

			migrator := sqlite.NewMigrator(s, filepath.Join(stateDir, config.BackupsDirName))
			applied, err := migrator.Apply(ctx)
			if err != nil {
				return err
			}
			result.MigrationsApplied = len(applied)
			return nil
		})
		if err != nil {
			fail(err)
		}

		// Write the default config.yaml only on first contact; re-running
		// init must not clobber tuned settings. Save locks on its own.
		configPath := filepath.Join(stateDir, config.ConfigFileName)
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			if err := config.Save(ctx, stateDir); err != nil {
				result.Warnings = append(result.Warnings, fmt.Sprintf("could not write config.yaml: %v", err))
			} else {
				result.ConfigWritten = true
			}
		}

		templatesDir := filepath.Join(stateDir, config.TemplatesDirName)
		if err := os.MkdirAll(templatesDir, 0o750); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("could not create templates dir: %v", err))
		} else {
			result.TemplatesDir = templatesDir
			if err := seedStarterTemplate(templatesDir); err != nil {
				result.Warnings = append(result.Warnings, fmt.Sprintf("could not write starter template: %v", err))
			}
		}

		recorder = telemetry.New(stateDir, store.Session())
		recorder.Record("init", "run", map[string]bool{"fresh": result.Created})

		if jsonOutput {
			outputJSON(result)
			return
		}

		result.QuickstartCommands = []string{
			`tm add "My first task" -p high`,
			"tm list",
			"tm watch",
		}
		fmt.Println(ui.RenderInitReport(result, ui.GetWidth()))
	},
}

// starterTemplate ships with init so `tm template` has something to show
// before anyone writes their own.
const starterTemplate = `# Example task template. Apply with:
#   tm template apply feature --var name=search
name = "feature"
description = "Plan, build, and review one feature"

[vars.name]
description = "what is being built"
default = "the feature"

[[tasks]]
alias = "design"
title = "Design ${name}"
description = "WHY: agree on the approach before code. WHAT: a short design note for ${name}. DONE: note shared on the task."
priority = "high"

[[tasks]]
alias = "build"
title = "Implement ${name}"
depends_on = ["design"]

[[tasks]]
alias = "review"
title = "Review and ship ${name}"
depends_on = ["build"]
`

func seedStarterTemplate(dir string) error {
	path := filepath.Join(dir, "feature.toml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, []byte(starterTemplate), 0o644)
}

func init() {
	rootCmd.AddCommand(initCmd)
}
