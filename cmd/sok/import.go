package main

import (
	"github.com/spf13/cobra"

	"github.com/blochberger/sokman/internal/dblp"
	"github.com/blochberger/sokman/internal/importer"
)

var (
	importUseAPI     bool
	importSearchTerm string
)

func init() {
	importCmd.Flags().BoolVar(&importUseAPI, "use-api", false, "Fetch records from the DBLP API instead of the local dump")
	importCmd.Flags().StringVar(&importSearchTerm, "search-term", "", "Label the imported publications with this search term")
	rootCmd.AddCommand(importCmd)
}

var importCmd = &cobra.Command{
	Use:   "import [flags] key...",
	Short: "Import publications by DBLP cite key",
	Long: `Import publications by their DBLP cite keys, e.g.
DBLP:conf/ccs/Example19. Records come from the local dump in one streaming
pass, or record by record from the DBLP API with --use-api. Keys already in
the database are only re-labeled with the search term, if one is given.

Examples:
  sok import DBLP:conf/ccs/Example19
  sok import --use-api --search-term "api misuse" DBLP:journals/tissec/Example20`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	root := mustFindRepository()
	cfg := mustLoadConfig(root)
	db := mustOpenStore(root)
	defer db.Close()

	keyImporter := &importer.KeyImporter{
		DB:         db,
		Console:    newConsole(),
		SourceName: cfg.SourceName,
	}
	if importUseAPI {
		keyImporter.Records = dblp.NewClient()
	} else {
		keyImporter.DumpPath = mustDumpPath(cfg)
	}

	return keyImporter.Run(cmd.Context(), args, importSearchTerm)
}
