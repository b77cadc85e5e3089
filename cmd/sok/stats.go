package main

import (
	"github.com/spf13/cobra"

	"github.com/blochberger/sokman/internal/dblp"
	"github.com/blochberger/sokman/internal/importer"
)

func init() {
	rootCmd.AddCommand(statsCmd)
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize search coverage",
	Long: `Re-run every stored search term against DBLP and report how many
of the found publications exist in the dump, are peer reviewed, and are
relevant to the review.`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	root := mustFindRepository()
	cfg := mustLoadConfig(root)
	db := mustOpenStore(root)
	defer db.Close()

	stats := &importer.Stats{
		DB:       db,
		Search:   dblp.NewClient(),
		Console:  newConsole(),
		DumpPath: mustDumpPath(cfg),
	}
	return stats.Run(cmd.Context())
}
