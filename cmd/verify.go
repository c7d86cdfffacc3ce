package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/jobscout/jobscout/internal/model"
)

var verifyForce bool

var verifyCmd = &cobra.Command{
	Use:   "verify <listing-id>",
	Short: "Check whether a cached listing is still live",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		listing, err := env.Store.GetListing(ctx, args[0])
		if err != nil {
			return err
		}
		if listing == nil {
			return eris.Errorf("listing %s not found in cache", args[0])
		}

		var status model.VerificationStatus
		if verifyForce {
			status = env.Verifier.CheckNow(ctx, *listing)
		} else {
			status = env.Verifier.Check(ctx, *listing)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"id":     listing.ID,
			"title":  listing.Title,
			"status": status,
		})
	},
}

func init() {
	verifyCmd.Flags().BoolVar(&verifyForce, "force", false, "probe immediately, ignoring the age gate")
	rootCmd.AddCommand(verifyCmd)
}
