package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/canopy/internal/config"
	"github.com/aretw0/canopy/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfg    config.Config
	logger = logging.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "canopy",
	Short: "Canopy is a hierarchical selection and expansion state engine",
	Long: `Canopy keeps checked, expanded and activated state for trees, checkbox groups and
transfer lists. The CLI inspects tree data files, serves them over HTTP or MCP and
manages persisted sessions.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		c, err := config.Load(path, cmd.Flags())
		if err != nil {
			return err
		}
		cfg = c

		level, _ := logging.ParseLevel(cfg.Log.Level)
		logger = logging.NewWithFormat(cmd.ErrOrStderr(), level, cfg.Log.Format)
		slog.SetDefault(logger)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Config file (default ./canopy.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format: text or json")
	rootCmd.PersistentFlags().String("session-backend", "file", "Session backend: file, redis or memory")
	rootCmd.PersistentFlags().String("session-dir", ".canopy/sessions", "Directory for the file session backend")
	rootCmd.PersistentFlags().String("redis-addr", "localhost:6379", "Redis address for the redis session backend")
}
