package cli

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ogulcanaydogan/energy-advisor/pkg/model"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize remote analysis usage and spend",
	Long:  `Generate aggregated usage reports by user and model for today or a number of past days.`,
	RunE:  runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().IntP("days", "d", 1, "Number of days to include, ending today")
	reportCmd.Flags().StringP("user", "u", "", "Filter by user")
	reportCmd.Flags().StringP("provider", "p", "", "Filter by provider")
	reportCmd.Flags().StringP("model", "m", "", "Filter by model")
	reportCmd.Flags().Bool("detailed", false, "Show individual records")
}

func runReport(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	days, _ := cmd.Flags().GetInt("days")
	userFilter, _ := cmd.Flags().GetString("user")
	providerFilter, _ := cmd.Flags().GetString("provider")
	modelFilter, _ := cmd.Flags().GetString("model")
	detailed, _ := cmd.Flags().GetBool("detailed")
	if days < 1 {
		days = 1
	}

	a, err := initApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	start, end := model.DayBounds(a.now(), a.location)
	start = start.AddDate(0, 0, -(days - 1))

	filter := model.ReportFilter{
		UserID:    userFilter,
		Provider:  providerFilter,
		Model:     modelFilter,
		StartTime: start,
		EndTime:   end,
	}

	summary, err := a.usage.Report(cmd.Context(), filter)
	if err != nil {
		return fmt.Errorf("generate report: %w", err)
	}

	fmt.Printf("=== Analysis Usage Report (%d day(s)) ===\n", days)
	fmt.Printf("Period: %s to %s\n\n", start.Format("2006-01-02"), end.Add(-time.Nanosecond).Format("2006-01-02"))
	fmt.Printf("Total Cost:          %.6f units\n", summary.TotalCostUnits)
	fmt.Printf("Total Input Tokens:  %d\n", summary.TotalInputTokens)
	fmt.Printf("Total Output Tokens: %d\n", summary.TotalOutputTokens)
	fmt.Printf("Total Requests:      %d\n", summary.RecordCount)

	printBreakdown("By User", "USER", summary.ByUser)
	printBreakdown("By Model", "MODEL", summary.ByModel)

	if detailed {
		records, err := a.usage.Query(cmd.Context(), filter)
		if err != nil {
			return fmt.Errorf("query records: %w", err)
		}

		if len(records) > 0 {
			fmt.Printf("\nDetailed Records:\n")
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "  TIMESTAMP\tUSER\tPROVIDER\tMODEL\tIN\tOUT\tCOST\n")
			for _, r := range records {
				fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%d\t%d\t%.6f\n",
					r.Timestamp.In(a.location).Format("2006-01-02 15:04"),
					r.UserID, r.Provider, r.Model,
					r.InputTokens, r.OutputTokens,
					r.CostUnits,
				)
			}
			w.Flush()
		}
	}

	return nil
}

func printBreakdown(title, column string, costs map[string]float64) {
	if len(costs) == 0 {
		return
	}
	names := make([]string, 0, len(costs))
	for name := range costs {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Printf("\n%s:\n", title)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "  %s\tCOST\n", column)
	for _, name := range names {
		fmt.Fprintf(w, "  %s\t%.6f\n", name, costs[name])
	}
	w.Flush()
}
