package importer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/blochberger/sokman/internal/dblp"
	"github.com/blochberger/sokman/internal/s2"
	"github.com/blochberger/sokman/internal/store"
)

// Repairer runs the maintenance passes that keep the store consistent with
// the dump and the citation-graph service.
type Repairer struct {
	DB       *store.DB
	Papers   PaperAPI
	Console  *Console
	DumpPath string
}

// Run executes every repair pass in order.
func (r *Repairer) Run(ctx context.Context) error {
	if err := r.FixVariantReferences(); err != nil {
		return err
	}
	if err := r.ReportUnknownKeys(); err != nil {
		return err
	}
	if err := r.BackfillDOIs(); err != nil {
		return err
	}
	return r.BackfillPaperIDs(ctx)
}

// FixVariantReferences adds references to the master of a referenced
// variant. A publication may cite a preprint while the review tracks the
// canonical version; the added edge does not occur in the citing
// publication itself, so its citation marker is starred.
func (r *Repairer) FixVariantReferences() error {
	r.Console.Infof("--- Searching for references to variants ---")

	variants, err := r.DB.PublicationsWithVariants()
	if err != nil {
		return err
	}

	return r.DB.WithTx(func(tx *store.DB) error {
		for _, variant := range variants {
			master, err := tx.PublicationByID(*variant.VariantOf)
			if err != nil {
				return err
			}

			edges, err := tx.ReferencesTo(variant.ID)
			if err != nil {
				return err
			}
			for _, edge := range edges {
				identifier := "*"
				if edge.Identifier != nil {
					identifier = *edge.Identifier + "*"
				}

				fixed, created, err := tx.AddReference(edge.PublicationID, master.ID, &identifier)
				if err != nil {
					return err
				}
				if !created {
					continue
				}

				citing, err := tx.PublicationByID(edge.PublicationID)
				if err != nil {
					return err
				}
				label := ""
				if fixed.Identifier != nil {
					label = *fixed.Identifier
				}
				r.Console.Successf("Added reference: %s -- %s -> %s",
					citing.CiteKey, label, master.CiteKey)
			}
		}
		return nil
	})
}

// ReportUnknownKeys lists publications whose cite key does not occur in the
// dump, e.g. because the entry was renamed upstream.
func (r *Repairer) ReportUnknownKeys() error {
	r.Console.Infof("--- Searching for entries not in the default DBLP dump ---")

	publications, err := r.DB.Publications()
	if err != nil {
		return err
	}

	inDB := make(map[string]bool)
	for _, publication := range publications {
		if strings.HasPrefix(publication.CiteKey, dblp.CiteKeyPrefix) {
			inDB[publication.CiteKey] = true
		}
	}

	inDump, err := dblp.AllCiteKeys(r.DumpPath)
	if err != nil {
		return err
	}

	r.Console.Printf("DB:   %8d", len(inDB))
	r.Console.Printf("DBLP: %8d", len(inDump))

	var missing []string
	for citeKey := range inDB {
		if !inDump[citeKey] {
			missing = append(missing, citeKey)
		}
	}
	sort.Strings(missing)
	for _, citeKey := range missing {
		r.Console.Warnf("not in dump: %s", citeKey)
	}
	return nil
}

// BackfillDOIs extracts DOIs from the dump for publications that lack one.
func (r *Repairer) BackfillDOIs() error {
	r.Console.Infof("--- Searching for missing DOIs ---")

	publications, err := r.DB.PublicationsWithoutDOI()
	if err != nil {
		return err
	}

	byCiteKey := make(map[string]store.Publication)
	wanted := make(map[string]bool)
	for _, publication := range publications {
		if !strings.HasPrefix(publication.CiteKey, dblp.CiteKeyPrefix) {
			continue
		}
		byCiteKey[publication.CiteKey] = publication
		wanted[dblp.StripCiteKeyPrefix(publication.CiteKey)] = true
	}
	if len(wanted) == 0 {
		return nil
	}

	r.Console.Infof("Parsing DBLP dump...")
	records, err := dblp.FromDump(r.DumpPath, wanted)
	if err != nil {
		return err
	}
	r.Console.Infof("done")

	for _, record := range records {
		doi := record.DOI()
		if doi == "" {
			continue
		}
		publication, ok := byCiteKey[record.CiteKey()]
		if !ok {
			continue
		}
		if err := r.DB.SetDOI(publication.ID, doi); err != nil {
			return err
		}
		r.Console.Successf("Added DOI '%s' to publication: %s", doi, publication.CiteKey)
	}
	return nil
}

// BackfillPaperIDs resolves publications that carry a DOI but no paper id
// against the citation-graph service. The client throttles between
// requests.
func (r *Repairer) BackfillPaperIDs(ctx context.Context) error {
	r.Console.Infof("--- Searching for paper IDs on Semantic Scholar ---")

	publications, err := r.DB.PublicationsWithDOIWithoutPaper()
	if err != nil {
		return err
	}

	for _, publication := range publications {
		paper, err := r.Papers.Paper(ctx, publication.DOI, false)
		if err != nil {
			if s2.IsNotFound(err) {
				r.Console.Warnf("no paper for DOI %s (%s)", publication.DOI, publication.CiteKey)
				continue
			}
			return fmt.Errorf("resolving DOI %s: %w", publication.DOI, err)
		}
		if paper.PaperID == "" {
			continue
		}

		created, err := r.DB.AddPaper(paper.PaperID, publication.ID)
		if err != nil {
			return err
		}
		if created {
			r.Console.Successf("Set Semantic Scholar ID for publication '%s': %s",
				publication.CiteKey, paper.PaperID)
		}
	}
	return nil
}
