package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ogulcanaydogan/energy-advisor/pkg/model"
	"github.com/ogulcanaydogan/energy-advisor/pkg/signals"
)

var batteryCmd = &cobra.Command{
	Use:   "battery",
	Short: "Inspect and update the energy battery",
}

var batteryMorningCmd = &cobra.Command{
	Use:   "morning",
	Short: "Start the day with a morning charge from last night's sleep",
	RunE:  runBatteryMorning,
}

var batteryTickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Refresh the battery from the configured signal sources",
	RunE:  runBatteryTick,
}

var batteryShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current battery",
	RunE:  runBatteryShow,
}

var batteryHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored battery snapshots",
	RunE:  runBatteryHistory,
}

func init() {
	rootCmd.AddCommand(batteryCmd)
	batteryCmd.AddCommand(batteryMorningCmd, batteryTickCmd, batteryShowCmd, batteryHistoryCmd)

	batteryMorningCmd.Flags().Float64("sleep-hours", 0, "Total sleep in hours")
	batteryMorningCmd.Flags().Float64("deep-hours", 0, "Deep sleep in hours")
	batteryMorningCmd.Flags().Float64("efficiency", -1, "Sleep efficiency between 0 and 1")
	batteryMorningCmd.Flags().Float64("hrv", 0, "Current HRV in ms")
	batteryMorningCmd.Flags().Float64("hrv-baseline", 0, "Personal HRV baseline in ms")

	batteryHistoryCmd.Flags().Duration("since", 24*time.Hour, "How far back to list")
	batteryHistoryCmd.Flags().Int("limit", 50, "Maximum number of snapshots")
}

func runBatteryMorning(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := initApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	sleepHours, _ := cmd.Flags().GetFloat64("sleep-hours")
	deepHours, _ := cmd.Flags().GetFloat64("deep-hours")
	efficiency, _ := cmd.Flags().GetFloat64("efficiency")
	hrvCurrent, _ := cmd.Flags().GetFloat64("hrv")
	hrvBaseline, _ := cmd.Flags().GetFloat64("hrv-baseline")

	var sleep *signals.SleepSummary
	if cmd.Flags().Changed("sleep-hours") {
		sleep = &signals.SleepSummary{
			Duration:  hoursToDuration(sleepHours),
			DeepSleep: hoursToDuration(deepHours),
		}
		if efficiency >= 0 {
			sleep.Efficiency = &efficiency
		}
	}

	var hrv *signals.HRVReading
	if cmd.Flags().Changed("hrv") {
		hrv = &signals.HRVReading{Current: hrvCurrent, Baseline: hrvBaseline}
	}

	snap := a.monitor.Model().StartDay(time.Now(), sleep, hrv)
	if err := a.store.SaveSnapshot(cmd.Context(), snap); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	printBattery(snap)
	return nil
}

func runBatteryTick(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := initApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	snap, err := a.monitor.Refresh(cmd.Context())
	if err != nil {
		return fmt.Errorf("refresh battery: %w", err)
	}

	printBattery(snap)
	return nil
}

func runBatteryShow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := initApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, ok := a.monitor.Model().Current(); !ok {
		fmt.Println("No battery recorded yet. Use 'advisor battery morning' to start the day.")
		return nil
	}

	printBattery(a.monitor.Model().Tick(time.Now()))
	return nil
}

func runBatteryHistory(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	since, _ := cmd.Flags().GetDuration("since")
	limit, _ := cmd.Flags().GetInt("limit")

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	snaps, err := store.ListSnapshots(cmd.Context(), time.Now().Add(-since), limit)
	if err != nil {
		return fmt.Errorf("list snapshots: %w", err)
	}

	if len(snaps) == 0 {
		fmt.Println("No snapshots in range.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "UPDATED\tLEVEL\tSTATE\tDRAIN/H\tMORNING\n")
	for _, s := range snaps {
		fmt.Fprintf(w, "%s\t%.1f\t%s\t%.2f\t%.1f\n",
			s.LastUpdated.Local().Format("2006-01-02 15:04"),
			s.CurrentLevel, s.State(), s.DrainRate, s.MorningCharge,
		)
	}
	w.Flush()

	return nil
}

func printBattery(s model.BatterySnapshot) {
	fmt.Printf("Level:          %.1f%% (%s)\n", s.CurrentLevel, s.State())
	fmt.Printf("Morning charge: %.1f%%\n", s.MorningCharge)
	fmt.Printf("Drain rate:     %.2f%%/h\n", s.DrainRate)
	if h, ok := s.HoursUntil(model.LowThreshold); ok {
		fmt.Printf("Low in:         %.1fh\n", h)
	}
	fmt.Printf("Updated:        %s\n", s.LastUpdated.Local().Format(time.RFC3339))
}

func hoursToDuration(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}
