package main

import (
	"github.com/spf13/cobra"

	"github.com/blochberger/sokman/internal/choices"
	"github.com/blochberger/sokman/internal/config"
	"github.com/blochberger/sokman/internal/dblp"
	"github.com/blochberger/sokman/internal/importer"
)

var (
	searchLimit        int
	searchResetChoices bool
)

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", dblp.MaxSearchLimit, "Maximum number of results (1 - 1000)")
	searchCmd.Flags().BoolVar(&searchResetChoices, "reset-choices", false, "Forget previously rejected candidates for all queries")
	rootCmd.AddCommand(searchCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search [flags] term",
	Short: "Search DBLP and interactively import results",
	Long: `Search the DBLP publication API and walk through the results.
Already imported publications are re-labeled with the search term without
prompting; previously rejected candidates are skipped via the decision
cache.

Examples:
  sok search "certificate pinning"
  sok search --limit 100 --reset-choices "api misuse"`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	root := mustFindRepository()
	cfg := mustLoadConfig(root)
	db := mustOpenStore(root)
	defer db.Close()

	searchChoices, err := choices.LoadSearch(config.SearchChoicesPath(root))
	if err != nil {
		return err
	}
	if searchResetChoices {
		if err := searchChoices.Reset(); err != nil {
			return err
		}
	} else if searchChoices.Len() > 0 {
		outputHuman("Loaded %d previous choice(s) (reset with --reset-choices)", searchChoices.Len())
	}

	search := &importer.SearchImporter{
		DB:         db,
		Search:     dblp.NewClient(),
		Papers:     newS2Client(),
		Choices:    searchChoices,
		Console:    newConsole(),
		SourceName: cfg.SourceName,
	}

	return search.Run(cmd.Context(), args[0], searchLimit)
}
