package main

import (
	"github.com/spf13/cobra"

	"github.com/blochberger/sokman/internal/importer"
)

func init() {
	rootCmd.AddCommand(repairCmd)
}

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Run maintenance passes over the database",
	Long: `Run every maintenance pass: add starred references to the masters
of referenced variants, report cite keys missing from the dump, backfill
DOIs from the dump, and resolve missing Semantic Scholar paper ids.`,
	Args: cobra.NoArgs,
	RunE: runRepair,
}

func runRepair(cmd *cobra.Command, args []string) error {
	root := mustFindRepository()
	cfg := mustLoadConfig(root)
	db := mustOpenStore(root)
	defer db.Close()

	repairer := &importer.Repairer{
		DB:       db,
		Papers:   newS2Client(),
		Console:  newConsole(),
		DumpPath: mustDumpPath(cfg),
	}
	return repairer.Run(cmd.Context())
}
