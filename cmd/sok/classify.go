package main

import (
	"github.com/spf13/cobra"
)

var classifyUndo bool

func init() {
	classifyCmd.Flags().BoolVar(&classifyUndo, "undo", false, "Mark the publications as not classified")
	rootCmd.AddCommand(classifyCmd)
}

var classifyCmd = &cobra.Command{
	Use:   "classify key...",
	Short: "Mark publications as classified",
	Long: `Record that a publication has been read and classified, e.g. tagged
and staged. The mark tracks curation progress and shows up in sok show.

Examples:
  sok classify DBLP:conf/ccs/Example19
  sok classify --undo DBLP:conf/ccs/Example19`,
	Args: cobra.MinimumNArgs(1),
	RunE: runClassify,
}

func runClassify(cmd *cobra.Command, args []string) error {
	root := mustFindRepository()
	db := mustOpenStore(root)
	defer db.Close()

	for _, citeKey := range args {
		publication, err := db.PublicationByCiteKey(citeKey)
		if err != nil {
			return err
		}
		if err := db.SetClassified(publication.ID, !classifyUndo); err != nil {
			return err
		}
		if classifyUndo {
			outputHuman("Publication '%s' is no longer classified", publication.CiteKey)
		} else {
			outputHuman("Publication '%s' classified", publication.CiteKey)
		}
	}
	return nil
}
