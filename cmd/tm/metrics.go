package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskmesh/taskmesh/internal/types"
	"github.com/taskmesh/taskmesh/internal/ui"
)

var metricsCmd = &cobra.Command{
	Use:     "metrics",
	GroupID: "loop",
	Short:   "Report delivery metrics",
	Long: `Report the status census and core-loop aggregates: completed tasks,
feedback averages, estimation accuracy (1 - mean relative estimate
error), and rework correlation (share of poorly rated tasks that were
redone).

--period limits aggregation to the last week or month; --feedback
narrows the output to the feedback subreport.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := rootCtx
		period, _ := cmd.Flags().GetString("period")
		feedbackOnly, _ := cmd.Flags().GetBool("feedback")

		var since time.Time
		switch period {
		case "", "all":
			period = "all"
		case "week":
			since = time.Now().UTC().AddDate(0, 0, -7)
		case "month":
			since = time.Now().UTC().AddDate(0, -1, 0)
		default:
			fail(&types.ValidationError{Field: "period", Reason: fmt.Sprintf("%q is not a period (all, month, week)", period)})
		}

		m, err := store.Metrics(ctx, period, since)
		if err != nil {
			fail(err)
		}

		if feedbackOnly {
			if jsonOutput {
				outputJSON(m)
				return
			}
			fmt.Println(ui.RenderMetricsTable(m, ui.GetWidth()))
			return
		}

		stats, err := store.Statistics(ctx)
		if err != nil {
			fail(err)
		}

		if jsonOutput {
			outputJSON(struct {
				Statistics *types.Statistics `json:"statistics"`
				Metrics    *types.Metrics    `json:"metrics"`
			}{stats, m})
			return
		}

		fmt.Println(ui.RenderStatisticsTable(stats, ui.GetWidth()))
		fmt.Println(ui.RenderMetricsTable(m, ui.GetWidth()))
	},
}

func init() {
	metricsCmd.Flags().Bool("feedback", false, "Only the feedback subreport")
	metricsCmd.Flags().String("period", "all", "Aggregation window: all, month, week")
	rootCmd.AddCommand(metricsCmd)
}
