package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ogulcanaydogan/energy-advisor/internal/config"
	"github.com/ogulcanaydogan/energy-advisor/pkg/alerts"
	"github.com/ogulcanaydogan/energy-advisor/pkg/pricing"
	"github.com/ogulcanaydogan/energy-advisor/pkg/storage"
)

// Version is set at build time via ldflags.
var Version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "advisor",
	Short: "Energy Advisor - battery-style energy tracking with hybrid analysis",
	Long: `Energy Advisor keeps a continuously decaying energy battery computed from
sleep, HRV, activity and environment signals, and produces daily guidance by
blending a local analysis with a budgeted, circuit-protected remote enhancement.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.advisor/config.yaml)")
}

// loadConfig loads the configuration.
func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

// newLogger builds the process logger. Output goes to stderr so command
// output on stdout stays machine readable.
func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Logging.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler = slog.NewJSONHandler(os.Stderr, opts)
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler).With("app", "advisor", "version", Version)
}

// initRegistry loads the embedded pricing tables and overlays any YAML
// tables found in the pricing directory.
func initRegistry(cfg *config.Config) (*pricing.Registry, error) {
	registry, err := pricing.NewDefaultRegistry(pricingDir(cfg.Pricing.Dir))
	if err != nil {
		return nil, fmt.Errorf("load pricing: %w", err)
	}
	return registry, nil
}

// pricingDir falls back to a pricing directory next to the executable when
// the configured one does not exist. An empty result means embedded only.
func pricingDir(configured string) string {
	if configured != "" {
		if _, err := os.Stat(configured); err == nil {
			return configured
		}
	}
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	alt := filepath.Join(filepath.Dir(exe), "pricing")
	if _, err := os.Stat(alt); err == nil {
		return alt
	}
	return ""
}

func initStorage(cfg *config.Config) (*storage.SQLite, error) {
	store, err := storage.NewSQLite(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	return store, nil
}

// initNotifiers returns the enabled alert sinks; none is a valid setup.
func initNotifiers(cfg *config.Config) []alerts.Notifier {
	var notifiers []alerts.Notifier
	if slack := cfg.Alerts.Slack; slack.Enabled && slack.WebhookURL != "" {
		notifiers = append(notifiers, alerts.NewSlackNotifier(slack.WebhookURL, slack.Channel))
	}
	if hook := cfg.Alerts.Webhook; hook.Enabled && hook.URL != "" {
		notifiers = append(notifiers, alerts.NewWebhookNotifier(hook.URL, hook.Secret))
	}
	return notifiers
}
