package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the analysis cache",
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove expired cache entries, or every entry with --all",
	RunE:  runCachePurge,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cachePurgeCmd)
	cachePurgeCmd.Flags().Bool("all", false, "Remove every entry, not just expired ones")
}

func runCachePurge(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	all, _ := cmd.Flags().GetBool("all")

	a, err := initApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.cache.Purge(cmd.Context(), all)
	if err != nil {
		return fmt.Errorf("purge cache: %w", err)
	}

	fmt.Printf("Purged %d %s cache entries.\n", n, cfg.Cache.Backend)
	return nil
}
