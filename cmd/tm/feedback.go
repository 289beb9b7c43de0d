package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskmesh/taskmesh/internal/config"
	"github.com/taskmesh/taskmesh/internal/types"
	"github.com/taskmesh/taskmesh/internal/ui"
)

var feedbackCmd = &cobra.Command{
	Use:     "feedback <id>",
	GroupID: "loop",
	Short:   "Rate a completed task",
	Long: `Record quality and timeliness scores (1-5) and an optional note on a
completed task. Each task holds one feedback record; giving feedback
again replaces it. Scores feed the metrics report.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := rootCtx
		quality, _ := cmd.Flags().GetInt("quality")
		timeliness, _ := cmd.Flags().GetInt("timeliness")
		note, _ := cmd.Flags().GetString("note")

		if !config.FeatureEnabled(config.FeatureFeedback) {
			warnDisabled(config.FeatureFeedback, "feedback")
			return
		}

		if err := gate("feedback", ""); err != nil {
			fail(err)
		}

		id, err := resolveTaskID(ctx, args[0])
		if err != nil {
			fail(err)
		}
		fb := &types.Feedback{
			TaskID:     id,
			Quality:    quality,
			Timeliness: timeliness,
			Notes:      note,
		}
		if err := store.SetFeedback(ctx, fb, actor); err != nil {
			fail(err)
		}

		recorder.Record(config.FeatureFeedback, "set", map[string]bool{
			"quality":    quality > 0,
			"timeliness": timeliness > 0,
			"note":       note != "",
		})

		if jsonOutput {
			outputJSON(fb)
			return
		}
		fmt.Printf("%s Feedback recorded on %s", ui.RenderPass("✓"), fb.TaskID)
		if quality > 0 {
			fmt.Printf(" quality=%d/5", quality)
		}
		if timeliness > 0 {
			fmt.Printf(" timeliness=%d/5", timeliness)
		}
		fmt.Println()
	},
}

func init() {
	feedbackCmd.Flags().Int("quality", 0, "Outcome quality, 1 (poor) to 5 (excellent)")
	feedbackCmd.Flags().Int("timeliness", 0, "Delivery timeliness, 1 (late) to 5 (early)")
	feedbackCmd.Flags().String("note", "", "Free-form feedback note")
	rootCmd.AddCommand(feedbackCmd)
}
