package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taskmesh/taskmesh/internal/config"
	"github.com/taskmesh/taskmesh/internal/types"
	"github.com/taskmesh/taskmesh/internal/ui"
	"github.com/taskmesh/taskmesh/internal/utils"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: "setup",
	Short:   "Show or change feature toggles and enforcement",
	Long: `Show or change configuration. Without flags, prints the current
feature toggles (same as --show).

Toggles turn core-loop features on and off per project; --minimal-mode
overrides them all to off without losing their individual settings.
Enforcement flags tune the orchestration gate: whether it runs and how
hard it pushes back (strict blocks, standard confirms, advisory notes).

Changes persist to config.yaml in the state directory.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := rootCtx

		enable, _ := cmd.Flags().GetStringArray("enable")
		disable, _ := cmd.Flags().GetStringArray("disable")
		level, _ := cmd.Flags().GetString("enforcement-level")
		showEnforcement, _ := cmd.Flags().GetBool("show-enforcement")
		reset, _ := cmd.Flags().GetBool("reset")

		changed := false

		if reset {
			config.Reset()
			changed = true
		}

		for _, name := range enable {
			requireFeature(name)
			config.Set(name, true)
			changed = true
		}
		for _, name := range disable {
			requireFeature(name)
			config.Set(name, false)
			changed = true
		}

		if cmd.Flags().Changed("minimal-mode") {
			minimal, _ := cmd.Flags().GetBool("minimal-mode")
			config.Set("minimal_mode", minimal)
			changed = true
		}
		if cmd.Flags().Changed("enforce-orchestration") {
			enforce, _ := cmd.Flags().GetBool("enforce-orchestration")
			config.Set("enforcement.enforced", enforce)
			changed = true
		}
		if level != "" {
			if !config.IsEnforcementLevel(level) {
				fail(&types.ValidationError{Field: "enforcement-level", Reason: fmt.Sprintf("%q is not a level (strict, standard, advisory)", level)})
			}
			config.Set("enforcement.level", level)
			changed = true
		}

		if changed {
			if err := config.Save(ctx, stateDir); err != nil {
				fail(err)
			}
		}

		if showEnforcement {
			printEnforcement()
			return
		}
		printToggles(changed)
	},
}

// requireFeature rejects unknown toggle names so typos do not silently
// write dead keys into config.yaml.
func requireFeature(name string) {
	if !config.IsFeature(name) {
		reason := fmt.Sprintf("%q is not a feature (%s)", name, strings.Join(config.Features, ", "))
		if guess := utils.Suggest(name, config.Features); guess != "" {
			reason = fmt.Sprintf("%q is not a feature, did you mean %q?", name, guess)
		}
		fail(&types.ValidationError{Field: "feature", Reason: reason})
	}
}

func printToggles(changed bool) {
	if jsonOutput {
		doc := map[string]interface{}{"minimal_mode": config.MinimalMode()}
		for _, f := range config.Features {
			doc[f] = config.FeatureEnabled(f)
		}
		doc["enforcement"] = map[string]interface{}{
			"enforced": config.GetBool("enforcement.enforced"),
			"level":    config.EnforcementLevel(),
		}
		doc["settings"] = config.AllSettings()
		outputJSON(doc)
		return
	}

	if changed && !quietFlag {
		fmt.Printf("%s Config saved to %s\n\n", ui.RenderPass("✓"), stateDir)
	}

	if config.MinimalMode() {
		fmt.Println(ui.RenderWarn("minimal_mode is on: every toggle below reads as disabled"))
	}
	for _, f := range config.Features {
		marker := ui.RenderPass("on ")
		if !config.FeatureEnabled(f) {
			marker = ui.RenderMuted("off")
		}
		fmt.Printf("  %s  %s\n", marker, f)
	}
}

func printEnforcement() {
	enforced := config.GetBool("enforcement.enforced")
	level := config.EnforcementLevel()

	if jsonOutput {
		outputJSON(map[string]interface{}{
			"enforced":    enforced,
			"level":       level,
			"auto_detect": config.GetBool("enforcement.auto_detect"),
		})
		return
	}

	state := ui.RenderMuted("off")
	if enforced {
		state = ui.RenderPass("on")
	}
	fmt.Printf("Orchestration enforcement: %s (level: %s)\n", state, level)
}

func init() {
	configCmd.Flags().Bool("show", false, "Show the current configuration (default)")
	configCmd.Flags().StringArray("enable", nil, "Enable a feature toggle (repeatable)")
	configCmd.Flags().StringArray("disable", nil, "Disable a feature toggle (repeatable)")
	configCmd.Flags().Bool("minimal-mode", false, "Force every optional feature off (=false restores toggles)")
	configCmd.Flags().Bool("reset", false, "Reset all settings to their defaults")
	configCmd.Flags().Bool("enforce-orchestration", false, "Turn the orchestration gate on or off")
	configCmd.Flags().String("enforcement-level", "", "Gate level: strict, standard, advisory")
	configCmd.Flags().Bool("show-enforcement", false, "Show the enforcement settings")
	rootCmd.AddCommand(configCmd)
}
