package main

import (
	"github.com/spf13/cobra"

	"github.com/blochberger/sokman/internal/choices"
	"github.com/blochberger/sokman/internal/config"
	"github.com/blochberger/sokman/internal/importer"
)

var (
	snowballResetChoices   bool
	snowballNoReferences   bool
	snowballNoCitations    bool
	snowballIncludeUnknown bool
)

func init() {
	snowballCmd.Flags().BoolVar(&snowballResetChoices, "reset-choices", false, "Forget previously rejected candidates")
	snowballCmd.Flags().BoolVar(&snowballNoReferences, "no-references", false, "Skip referenced publications")
	snowballCmd.Flags().BoolVar(&snowballNoCitations, "no-citations", false, "Skip citing publications")
	snowballCmd.Flags().BoolVar(&snowballIncludeUnknown, "include-unknown", false, "Include references Semantic Scholar cannot resolve")
	rootCmd.AddCommand(snowballCmd)
}

var snowballCmd = &cobra.Command{
	Use:   "snowball",
	Short: "Walk the citation graph of imported publications",
	Long: `Fetch references and citations for every relevant publication with
a linked Semantic Scholar paper id. Neighbors already known by paper id or
DOI are wired up silently; unknown ones are prompted for import. A fixed
delay between requests respects the service's rate limit.

Examples:
  sok snowball
  sok snowball --no-citations --reset-choices`,
	Args: cobra.NoArgs,
	RunE: runSnowball,
}

func runSnowball(cmd *cobra.Command, args []string) error {
	root := mustFindRepository()
	db := mustOpenStore(root)
	defer db.Close()

	snowballChoices, err := choices.LoadSnowball(config.SnowballChoicesPath(root))
	if err != nil {
		return err
	}
	if snowballResetChoices {
		if err := snowballChoices.Reset(); err != nil {
			return err
		}
	} else if snowballChoices.Len() > 0 {
		outputHuman("Loaded %d previous choice(s) (reset with --reset-choices)", snowballChoices.Len())
	}

	snowball := &importer.Snowball{
		DB:      db,
		Papers:  newS2Client(),
		Choices: snowballChoices,
		Console: newConsole(),

		IncludeUnknownReferences: snowballIncludeUnknown,
		SkipReferences:           snowballNoReferences,
		SkipCitations:            snowballNoCitations,
	}

	return snowball.Run(cmd.Context())
}
