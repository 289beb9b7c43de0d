package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskmesh/taskmesh/internal/config"
	"github.com/taskmesh/taskmesh/internal/storage/sqlite"
	"github.com/taskmesh/taskmesh/internal/ui"
)

var migrateCmd = &cobra.Command{
	Use:     "migrate",
	GroupID: "setup",
	Short:   "Inspect or apply schema migrations",
	Long: `Inspect or apply schema migrations. Without flags, prints the
migration status (same as --status).

--apply backs the database up, then runs each pending migration in its
own transaction; a failure keeps everything already committed. Backups
land in the backups/ directory of the state dir. --rollback swaps the
newest backup back in, discarding everything written since it was
taken.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := rootCtx
		apply, _ := cmd.Flags().GetBool("apply")
		rollback, _ := cmd.Flags().GetBool("rollback")
		force, _ := cmd.Flags().GetBool("force")

		if apply && rollback {
			FatalError("--apply and --rollback are mutually exclusive")
		}

		backupDir := filepath.Join(stateDir, config.BackupsDirName)

		if rollback {
			if !force && !jsonOutput && ui.IsTerminal() {
				confirmOrAbort("Replace the database with the newest backup? Writes since then are lost.")
			}
			var restored string
			err := withLock(func() error {
				var err error
				restored, err = sqlite.RestoreLatestBackup(dbPath, backupDir)
				return err
			})
			if err != nil {
				fail(err)
			}
			if jsonOutput {
				outputJSON(map[string]string{"restored_from": restored})
				return
			}
			fmt.Printf("%s Restored %s from %s\n", ui.RenderPass("✓"), dbPath, restored)
			return
		}

		// Status and apply need the store open, but Open refuses a schema
		// that is behind. Migrate is the command that fixes that, so it
		// opens without the freshness check.
		s, err := sqlite.New(ctx, dbPath)
		if err != nil {
			fail(err)
		}
		defer func() { _ = s.Close() }()
		migrator := sqlite.NewMigrator(s, backupDir)

		if apply {
			var results []sqlite.ApplyResult
			err := withLock(func() error {
				var err error
				results, err = migrator.Apply(ctx)
				return err
			})
			if err != nil {
				fail(err)
			}
			if jsonOutput {
				if results == nil {
					results = []sqlite.ApplyResult{}
				}
				outputJSON(results)
				return
			}
			if len(results) == 0 {
				fmt.Println("Schema is up to date.")
				return
			}
			for _, r := range results {
				fmt.Printf("%s Applied %03d %s (backup: %s)\n", ui.RenderPass("✓"), r.Version, r.Name, r.Backup)
			}
			return
		}

		status, err := migrator.Status(ctx)
		if err != nil {
			fail(err)
		}
		if jsonOutput {
			outputJSON(status)
			return
		}
		for _, a := range status.Applied {
			fmt.Printf("  %s %03d %s (applied %s)\n", ui.RenderPass("✓"), a.Version, a.Name, a.AppliedAt.Local().Format(time.RFC822))
		}
		for _, p := range status.Pending {
			fmt.Printf("  %s %03d %s (pending)\n", ui.RenderWarn("•"), p.Version, p.Name)
		}
		if len(status.Pending) > 0 {
			fmt.Println(ui.RenderMuted("Run 'tm migrate --apply' to bring the schema up to date."))
		} else if len(status.Applied) > 0 {
			fmt.Println(ui.RenderMuted("Schema is up to date."))
		} else {
			fmt.Println(ui.RenderMuted("No schema yet; 'tm init' creates it."))
		}
	},
}

func init() {
	migrateCmd.Flags().Bool("status", false, "Show applied and pending migrations (default)")
	migrateCmd.Flags().Bool("apply", false, "Apply pending migrations")
	migrateCmd.Flags().Bool("rollback", false, "Restore the newest backup")
	migrateCmd.Flags().Bool("force", false, "Skip the rollback confirmation prompt")
	rootCmd.AddCommand(migrateCmd)
}
