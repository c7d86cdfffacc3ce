package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete listings past the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := env.Sweeper.Sweep(ctx)
		if err != nil {
			return err
		}
		zap.L().Info("sweep complete", zap.Int("removed", n))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
