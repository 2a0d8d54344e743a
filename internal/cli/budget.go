package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ogulcanaydogan/energy-advisor/pkg/model"
)

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Manage per-user daily analysis budgets",
}

var budgetSetCapCmd = &cobra.Command{
	Use:   "set-cap",
	Short: "Set a user's daily cap",
	RunE:  runBudgetSetCap,
}

var budgetStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show today's spend against the cap",
	RunE:  runBudgetStatus,
}

func init() {
	rootCmd.AddCommand(budgetCmd)
	budgetCmd.AddCommand(budgetSetCapCmd)
	budgetCmd.AddCommand(budgetStatusCmd)

	budgetSetCapCmd.Flags().StringP("user", "u", "", "User ID")
	budgetSetCapCmd.Flags().Float64P("units", "n", 0, "Daily cap in cost units")
	_ = budgetSetCapCmd.MarkFlagRequired("user")
	_ = budgetSetCapCmd.MarkFlagRequired("units")

	budgetStatusCmd.Flags().StringP("user", "u", "", "Only show this user")
}

func runBudgetSetCap(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	userID, _ := cmd.Flags().GetString("user")
	units, _ := cmd.Flags().GetFloat64("units")
	if units < 0 {
		return fmt.Errorf("cap must not be negative")
	}

	a, err := initApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ledger, err := a.gate.SetCap(cmd.Context(), userID, units)
	if err != nil {
		return fmt.Errorf("set cap: %w", err)
	}

	fmt.Printf("Budget cap set:\n")
	fmt.Printf("  User:      %s\n", ledger.UserID)
	fmt.Printf("  Day:       %s\n", ledger.Day)
	fmt.Printf("  Cap:       %.4f units\n", ledger.DailyCapUnits)
	fmt.Printf("  Spent:     %.4f units\n", ledger.SpentToday)

	return nil
}

func runBudgetStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	userID, _ := cmd.Flags().GetString("user")

	a, err := initApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	var ledgers []model.BudgetLedger
	if userID != "" {
		l, err := a.gate.Ledger(cmd.Context(), userID)
		if err != nil {
			return fmt.Errorf("load ledger: %w", err)
		}
		ledgers = append(ledgers, l)
	} else {
		ledgers, err = a.store.ListLedgers(cmd.Context())
		if err != nil {
			return fmt.Errorf("list ledgers: %w", err)
		}
	}

	if len(ledgers) == 0 {
		fmt.Println("No budget activity yet. Use 'advisor budget set-cap' to configure one.")
		return nil
	}

	today := model.DayKey(a.now(), a.location)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "USER\tDAY\tCAP\tSPENT\tREMAINING\tUSAGE\n")
	for _, l := range ledgers {
		if l.Day != today {
			// stale ledgers reset on their next use
			l.SpentToday = 0
			l.Day = today
		}
		pct := float64(0)
		if l.DailyCapUnits > 0 {
			pct = (l.SpentToday / l.DailyCapUnits) * 100
		}

		status := ""
		switch {
		case l.DailyCapUnits > 0 && pct >= 100:
			status = " [EXHAUSTED]"
		case pct >= cfg.Budget.WarnFraction*100 && cfg.Budget.WarnFraction > 0:
			status = " [WARNING]"
		}

		fmt.Fprintf(w, "%s\t%s\t%.4f\t%.4f\t%.4f\t%.1f%%%s\n",
			l.UserID, l.Day, l.DailyCapUnits, l.SpentToday,
			l.Remaining(), pct, status,
		)
	}
	w.Flush()

	return nil
}
