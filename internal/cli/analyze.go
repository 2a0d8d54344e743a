package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ogulcanaydogan/energy-advisor/pkg/model"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Request an analysis for the current battery",
	Long: `Run one analysis through the cache, budget and circuit breaker and print
the result as JSON. The result source tells which path produced it.`,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringP("user", "u", "default", "User ID")
	analyzeCmd.Flags().StringSlice("tags", []string{"sleep", "activity"}, "Insight tags (sleep, activity, nutrition, stress, focus, outdoor)")
	analyzeCmd.Flags().String("time-bucket", "", "Time bucket (default: derived from the current time)")
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	userID, _ := cmd.Flags().GetString("user")
	rawTags, _ := cmd.Flags().GetStringSlice("tags")
	bucket, _ := cmd.Flags().GetString("time-bucket")

	tags := make([]model.Tag, 0, len(rawTags))
	for _, t := range rawTags {
		tag := model.Tag(strings.TrimSpace(t))
		if !tag.Valid() {
			return fmt.Errorf("unknown tag %q", t)
		}
		tags = append(tags, tag)
	}

	a, err := initApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	now := time.Now()
	timeBucket := model.TimeBucket(bucket)
	if timeBucket == "" {
		timeBucket = model.BucketFor(now.In(a.location))
	}

	snap, _ := a.monitor.Model().Current()
	if !snap.LastUpdated.IsZero() {
		snap = a.monitor.Model().Tick(now)
	}

	result := a.orch.RequestAnalysis(cmd.Context(), model.AnalysisContext{
		UserID:     userID,
		Battery:    snap,
		Tags:       tags,
		TimeBucket: timeBucket,
	})

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
