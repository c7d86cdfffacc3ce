package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jobscout/jobscout/internal/model"
)

var (
	searchLocation string
	searchJobType  string
	searchPage     int
	searchSuggest  bool
)

var searchCmd = &cobra.Command{
	Use:   "search <title>",
	Short: "Search job listings, serving from cache when fresh",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if searchSuggest {
			suggestions := env.Optimizer.Suggest(args[0])
			return json.NewEncoder(os.Stdout).Encode(map[string]any{
				"query":       args[0],
				"suggestions": suggestions,
			})
		}

		result, err := env.Orchestrator.Search(ctx, model.SearchParams{
			Title:    args[0],
			Location: searchLocation,
			JobType:  searchJobType,
			Page:     searchPage,
		})
		if err != nil {
			return err
		}

		zap.L().Info("search complete",
			zap.Int("listings", len(result.Listings)),
			zap.Int("total", result.TotalCount),
			zap.Bool("from_cache", result.FromCache),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchLocation, "location", "", "location filter")
	searchCmd.Flags().StringVar(&searchJobType, "type", "", "contract type (permanent, contract, part_time, full_time)")
	searchCmd.Flags().IntVar(&searchPage, "page", 1, "result page")
	searchCmd.Flags().BoolVar(&searchSuggest, "suggest", false, "print query suggestions instead of searching")
	rootCmd.AddCommand(searchCmd)
}
