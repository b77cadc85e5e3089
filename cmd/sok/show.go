package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/blochberger/sokman/internal/graph"
)

func init() {
	rootCmd.AddCommand(showCmd)
}

var showCmd = &cobra.Command{
	Use:   "show key...",
	Short: "Show publications with their stage and tags",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	root := mustFindRepository()
	db := mustOpenStore(root)
	defer db.Close()

	for _, citeKey := range args {
		publication, err := db.PublicationByCiteKey(citeKey)
		if err != nil {
			return err
		}

		stage, err := graph.PublicationStage(db, publication.ID)
		if err != nil {
			return err
		}

		authors, err := db.AuthorsOf(publication.ID)
		if err != nil {
			return err
		}
		names := make([]string, len(authors))
		for i, author := range authors {
			names[i] = author.Name
		}

		tags, err := db.TagsOf(publication.ID)
		if err != nil {
			return err
		}

		outputHuman("%s", publication.CiteKey)
		if len(names) > 0 {
			outputHuman("  %s", strings.Join(names, ", "))
		}
		outputHuman("  %s (%d)", publication.Title, publication.Year)
		if publication.DOI != "" {
			outputHuman("  %s", publication.DOI)
		}
		outputHuman("  stage: %s", stage)
		if publication.Classified {
			outputHuman("  classified")
		}
		for _, tag := range tags {
			comment, _, err := db.PublicationTagComment(publication.ID, tag.ID)
			if err != nil {
				return err
			}
			if comment != nil {
				outputHuman("  tag: %s (%s)", tag.Name, *comment)
			} else {
				outputHuman("  tag: %s", tag.Name)
			}
		}
	}
	return nil
}
