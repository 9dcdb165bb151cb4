// Package cli provides the command-line interface for the trading engine.
package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"crypto-trader/internal/config"
	"crypto-trader/internal/logging"
)

// Version information.
const (
	Version = "0.1.0"
)

// App carries the shared dependencies commands build on.
type App struct {
	ConfigDir string
	Logger    zerolog.Logger
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	app := &App{}

	rootCmd := &cobra.Command{
		Use:   "crypto-trader",
		Short: "Multi-timeframe signal-scoring auto-trading engine",
		Long: `crypto-trader turns price bars into weighted multi-category confidence
scores, reconciles two independent signal engines, and drives a risk-gated
execution loop with stop, target, and trailing-stop management.

Paper trading against a simulated feed is the default mode.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("config")
			if dir == "" {
				dir = config.DefaultConfigDir()
			}
			app.ConfigDir = dir

			logCfg := logging.DefaultLogConfig()
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				logCfg.Level = "debug"
			}
			app.Logger = logging.NewLoggerWithConfig(logCfg)
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/crypto-trader)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newRunCmd(app))
	rootCmd.AddCommand(newAnalyzeCmd(app))
	rootCmd.AddCommand(newJournalCmd(app))

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "crypto-trader v%s\n", Version)
		},
	}
}
