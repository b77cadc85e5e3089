package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/blochberger/sokman/internal/choices"
	"github.com/blochberger/sokman/internal/dblp"
	"github.com/blochberger/sokman/internal/s2"
	"github.com/blochberger/sokman/internal/store"
)

// SearchAPI is the paginated bibliographic search endpoint.
type SearchAPI interface {
	Search(ctx context.Context, query string, limit int) (*dblp.SearchResult, error)
}

// PaperAPI is the citation-graph service, queried by DOI or paper id.
type PaperAPI interface {
	Paper(ctx context.Context, identifier string, includeUnknownReferences bool) (*s2.Paper, error)
	Abstract(ctx context.Context, identifier string) (string, error)
}

// SearchImporter runs the search-driven import workflow: query an external
// source, skip known and rejected candidates, prompt for the rest.
type SearchImporter struct {
	DB         *store.DB
	Search     SearchAPI
	Papers     PaperAPI
	Choices    *choices.SearchChoices
	Console    *Console
	SourceName string
}

// Run executes one search and walks the curator through the results.
// Rejections are flushed to the decision cache immediately, so an
// interrupted run never re-prompts for decided candidates.
func (i *SearchImporter) Run(ctx context.Context, term string, limit int) error {
	i.Console.Infof("Querying DBLP...")
	result, err := i.Search.Search(ctx, term, limit)
	if err != nil {
		return fmt.Errorf("searching for %q: %w", term, err)
	}
	i.Console.Successf("done, found %d/%d publication(s)", len(result.Records), result.Total)

	source, _, err := i.DB.GetOrCreateSource(i.SourceName)
	if err != nil {
		return err
	}
	searchTerm, created, err := i.DB.GetOrCreateSearchTerm(result.Query)
	if err != nil {
		return err
	}
	if created {
		i.Console.Successf("Created search term: %s", searchTerm.Name)
	}

	// Known publications only get the source assigned, without prompting.
	existing := make(map[string]bool)
	for _, record := range result.Records {
		publication, err := i.DB.PublicationByCiteKey(record.CiteKey())
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return err
		}
		existing[record.CiteKey()] = true
		if err := i.assignSource(publication, source, searchTerm); err != nil {
			return err
		}
	}

	for _, record := range result.Records {
		if existing[record.CiteKey()] {
			continue
		}
		if i.Choices.Rejected(result.Query, record.CiteKey()) {
			continue
		}
		if err := i.promptRecord(ctx, record, result.Query, source, searchTerm); err != nil {
			return err
		}
	}

	return nil
}

func (i *SearchImporter) promptRecord(
	ctx context.Context,
	record dblp.Record,
	query string,
	source store.Source,
	searchTerm store.SearchTerm,
) error {
	i.displayRecord(record)

	// The citation-graph service is only contacted on demand: once, when
	// the curator asks for the abstract or accepts the candidate.
	var paper *s2.Paper
	loadPaper := func() *s2.Paper {
		if paper != nil {
			return paper
		}
		doi := record.DOI()
		if doi == "" {
			return nil
		}
		p, err := i.Papers.Paper(ctx, doi, false)
		if err != nil {
			if !s2.IsNotFound(err) {
				i.Console.Warnf("fetching paper for DOI %s: %v", doi, err)
			}
			return nil
		}
		paper = p
		return paper
	}

	for {
		choice, err := i.Console.PromptChoice(record.DOI() != "")
		if err != nil {
			return err
		}

		switch choice {
		case ChoiceYes:
			return i.storeRecord(record, loadPaper(), source, searchTerm)
		case ChoiceNo:
			return i.Choices.Reject(query, record.CiteKey())
		case ChoiceAbstract:
			if p := loadPaper(); p != nil && p.Abstract != "" {
				i.Console.Printf("%s", p.Abstract)
			} else {
				i.Console.Infof("No abstract available.")
			}
		}
	}
}

// storeRecord merges an accepted candidate into the store in a single
// transaction.
func (i *SearchImporter) storeRecord(
	record dblp.Record,
	paper *s2.Paper,
	source store.Source,
	searchTerm store.SearchTerm,
) error {
	return i.DB.WithTx(func(tx *store.DB) error {
		publication, err := storeRecordPublication(tx, i.Console, record)
		if err != nil {
			return err
		}

		if paper != nil && paper.PaperID != "" {
			created, err := tx.AddPaper(paper.PaperID, publication.ID)
			if err != nil {
				return err
			}
			if created {
				i.Console.Successf("Added Semantic Scholar '%s' to publication '%s'", paper.PaperID, publication.CiteKey)
			} else {
				i.Console.Infof("Semantic Scholar '%s' for publication '%s' is already known", paper.PaperID, publication.CiteKey)
			}
		}

		txImporter := *i
		txImporter.DB = tx
		return txImporter.assignSource(publication, source, searchTerm)
	})
}

func (i *SearchImporter) assignSource(
	publication store.Publication,
	source store.Source,
	searchTerm store.SearchTerm,
) error {
	created, err := i.DB.AssignSource(publication.ID, source.ID, searchTerm.ID)
	if err != nil {
		return err
	}
	if created {
		i.Console.Successf("Assigned source '%s' to publication '%s' with search term '%s'",
			i.SourceName, publication.CiteKey, searchTerm.Name)
	} else {
		i.Console.Infof("Source '%s' already assigned to publication '%s' with search term '%s'",
			i.SourceName, publication.CiteKey, searchTerm.Name)
	}
	return nil
}

func (i *SearchImporter) displayRecord(record dblp.Record) {
	i.Console.Printf("")
	i.Console.Infof("%s", record.CiteKey())
	if len(record.Authors) > 0 {
		i.Console.Printf("  %s", strings.Join(record.Authors, ", "))
	}
	i.Console.Infof("  %s (%d)", record.Title, record.Year)
}

// storeRecordPublication upserts the publication described by the record,
// its authors and the ordered authorship rows.
func storeRecordPublication(tx *store.DB, console *Console, record dblp.Record) (store.Publication, error) {
	var authors []store.Author
	for _, name := range record.Authors {
		author, created, err := tx.GetOrCreateAuthor(name)
		if err != nil {
			return store.Publication{}, err
		}
		if created {
			console.Successf("Added author: %s", author.Name)
		} else {
			console.Infof("Author '%s' already known", author.Name)
		}
		authors = append(authors, author)
	}

	publication := store.Publication{
		CiteKey:      record.CiteKey(),
		Title:        record.Title,
		Year:         record.Year,
		PeerReviewed: record.PeerReviewed(),
		DOI:          record.DOI(),
	}
	if record.Pages != nil {
		first, last := record.Pages.First, record.Pages.Last
		publication.FirstPage = &first
		publication.LastPage = &last
	}

	publication, created, err := tx.GetOrCreatePublication(publication)
	if err != nil {
		return store.Publication{}, err
	}
	if created {
		console.Successf("Added publication: %s", publication.CiteKey)
	} else {
		console.Infof("Publication '%s' already known", publication.CiteKey)
	}

	for position, author := range authors {
		created, err := tx.AssignAuthor(publication.ID, author.ID, position)
		if err != nil {
			return store.Publication{}, err
		}
		if created {
			console.Successf("Assigned author '%s' to publication '%s' at position %d",
				author.Name, publication.CiteKey, position)
		} else {
			console.Infof("Author '%s' already assigned to publication '%s'",
				author.Name, publication.CiteKey)
		}
	}

	return publication, nil
}
