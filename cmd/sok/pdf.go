package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/blochberger/sokman/internal/pdf"
	"github.com/blochberger/sokman/internal/store"
)

func init() {
	rootCmd.AddCommand(pdfCmd)
}

var pdfCmd = &cobra.Command{
	Use:   "pdf file...",
	Short: "Match downloaded PDFs against the review by DOI",
	Long: `Extract the DOI from each PDF and look it up in the database,
reporting which publication the file belongs to.

Examples:
  sok pdf paper.pdf
  sok pdf downloads/*.pdf`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPDF,
}

func runPDF(cmd *cobra.Command, args []string) error {
	root := mustFindRepository()
	db := mustOpenStore(root)
	defer db.Close()

	for _, path := range args {
		doi, err := pdf.ExtractDOI(path)
		if err != nil {
			outputWarning("%v", err)
			continue
		}
		if doi == "" {
			outputHuman("%s: no DOI found", path)
			continue
		}

		publication, err := db.PublicationByDOI(doi)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				outputHuman("%s: %s (not in review)", path, doi)
				continue
			}
			return err
		}
		outputHuman("%s: %s (%s)", path, doi, publication.CiteKey)
	}
	return nil
}
