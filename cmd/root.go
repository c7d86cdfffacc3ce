package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jobscout/jobscout/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "jobscout",
	Short: "Job listing cache and verification engine",
	Long:  "Memoizes job board searches, rewrites fuzzy queries against a title taxonomy, verifies aged listings are still live, and sweeps expired entries.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
