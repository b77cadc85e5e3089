package importer

import (
	"context"

	"github.com/blochberger/sokman/internal/dblp"
	"github.com/blochberger/sokman/internal/store"
)

// Stats re-runs every stored search term against the search endpoint and
// summarizes how many of the found publications exist in the dump, are
// peer reviewed, and are relevant to the review.
type Stats struct {
	DB       *store.DB
	Search   SearchAPI
	Console  *Console
	DumpPath string
}

// Run computes and prints the summary.
func (s *Stats) Run(ctx context.Context) error {
	s.Console.Infof("Loading DBLP dump...")
	allCiteKeys, err := dblp.AllCiteKeys(s.DumpPath)
	if err != nil {
		return err
	}

	found := make(map[string]bool)
	peerReviewed := make(map[string]bool)
	relevant := make(map[string]bool)

	terms, err := s.DB.SearchTerms()
	if err != nil {
		return err
	}

	for _, term := range terms {
		s.Console.Infof("Searching DBLP for '%s'", term.Name)
		result, err := s.Search.Search(ctx, term.Name, dblp.MaxSearchLimit)
		if err != nil {
			return err
		}

		for _, record := range result.Records {
			citeKey := record.CiteKey()
			if !allCiteKeys[citeKey] {
				continue
			}
			found[citeKey] = true
			if pr := record.PeerReviewed(); pr != nil && *pr {
				peerReviewed[citeKey] = true
			}
		}

		publications, err := s.DB.PublicationsForSearchTerm(term.ID)
		if err != nil {
			return err
		}
		for _, publication := range publications {
			excluded, err := s.DB.IsExcluded(publication.ID)
			if err != nil {
				return err
			}
			if !excluded {
				relevant[publication.CiteKey] = true
			}
		}
	}

	s.Console.Infof("Total publications: %4d", len(found))
	s.Console.Infof("- peer reviewed:    %4d", len(peerReviewed))
	s.Console.Infof("- relevant:         %4d", len(relevant))
	return nil
}
