package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/blochberger/sokman/internal/choices"
	"github.com/blochberger/sokman/internal/s2"
	"github.com/blochberger/sokman/internal/store"
)

// Snowball walks the citation graph of every relevant publication with a
// linked paper id. Known neighbors are wired up silently; unknown ones go
// through the regular prompt-and-import protocol with a content-hash
// identity in the decision cache.
type Snowball struct {
	DB      *store.DB
	Papers  PaperAPI
	Choices *choices.SnowballChoices
	Console *Console

	IncludeUnknownReferences bool
	SkipReferences           bool
	SkipCitations            bool
}

// Run performs one snowball pass over all candidate publications.
func (s *Snowball) Run(ctx context.Context) error {
	publications, err := s.DB.PublicationsWithPaper(true)
	if err != nil {
		return err
	}

	for _, publication := range publications {
		s.Console.Infof("=== Publication %s ===", publication.CiteKey)

		paperIDs, err := s.DB.PaperIDs(publication.ID)
		if err != nil {
			return err
		}

		for _, paperID := range paperIDs {
			paper, err := s.Papers.Paper(ctx, paperID, s.IncludeUnknownReferences)
			if err != nil {
				return fmt.Errorf("fetching paper %s: %w", paperID, err)
			}

			if !s.SkipReferences {
				if err := s.handleNeighbors(ctx, publication, paper.References, true); err != nil {
					return err
				}
			}

			if !s.SkipCitations {
				if err := s.handleNeighbors(ctx, publication, paper.Citations, false); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

// handleNeighbors processes one direction of a paper's citation graph:
// references the base publication makes, or citations pointing at it.
func (s *Snowball) handleNeighbors(
	ctx context.Context,
	base store.Publication,
	neighbors []s2.Paper,
	isReference bool,
) error {
	if len(neighbors) > 0 {
		if isReference {
			s.Console.Infof("--- References ---")
		} else {
			s.Console.Infof("--- Citations ---")
		}
	}

	for n := range neighbors {
		neighbor := &neighbors[n]

		resolved, err := s.resolve(neighbor)
		if err != nil {
			return err
		}
		if resolved != nil {
			if err := s.addEdge(base, *resolved, isReference, nil); err != nil {
				return err
			}
			continue
		}

		identity := neighbor.Identity()
		if s.Choices.Rejected(identity) {
			continue
		}

		if err := s.promptNeighbor(ctx, base, neighbor, identity, isReference); err != nil {
			return err
		}
	}

	return nil
}

// resolve tries to match the neighbor against an already-known paper id or
// DOI. A DOI match additionally records the paper-id link for future runs.
func (s *Snowball) resolve(neighbor *s2.Paper) (*store.Publication, error) {
	if neighbor.PaperID != "" {
		publication, err := s.DB.PublicationByPaperID(neighbor.PaperID)
		if err == nil {
			return &publication, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	if doi := neighbor.ResolvedDOI(); doi != "" {
		publication, err := s.DB.PublicationByDOI(doi)
		if err == nil {
			if neighbor.PaperID != "" {
				created, err := s.DB.AddPaper(neighbor.PaperID, publication.ID)
				if err != nil {
					return nil, err
				}
				if created {
					s.Console.Successf("New Semantic Scholar entry: %s", neighbor.PaperID)
				}
			}
			return &publication, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	return nil, nil
}

func (s *Snowball) promptNeighbor(
	ctx context.Context,
	base store.Publication,
	neighbor *s2.Paper,
	identity string,
	isReference bool,
) error {
	s.display(neighbor)

	for {
		choice, err := s.Console.PromptChoice(neighbor.PaperID != "")
		if err != nil {
			return err
		}

		switch choice {
		case ChoiceYes:
			return s.importNeighbor(ctx, base, neighbor, isReference)
		case ChoiceNo:
			return s.Choices.Reject(identity)
		case ChoiceAbstract:
			abstract, err := s.Papers.Abstract(ctx, neighbor.PaperID)
			if err != nil {
				s.Console.Warnf("fetching abstract for %s: %v", neighbor.PaperID, err)
				continue
			}
			if abstract != "" {
				s.Console.Printf("%s", abstract)
			} else {
				s.Console.Infof("No abstract available.")
			}
		}
	}
}

// importNeighbor merges an accepted neighbor into the store and wires up
// the citation edge, all in one transaction. The full paper data is fetched
// first when a paper id is available, since the graph listing carries only
// a stub.
func (s *Snowball) importNeighbor(
	ctx context.Context,
	base store.Publication,
	neighbor *s2.Paper,
	isReference bool,
) error {
	paper := neighbor
	if neighbor.PaperID != "" {
		full, err := s.Papers.Paper(ctx, neighbor.PaperID, false)
		if err != nil {
			return fmt.Errorf("fetching paper %s: %w", neighbor.PaperID, err)
		}
		paper = full
	}

	citeKey, err := SynthesizeCiteKey(paper)
	if err != nil {
		return err
	}

	return s.DB.WithTx(func(tx *store.DB) error {
		var authors []store.Author
		for _, author := range paper.Authors {
			a, created, err := tx.GetOrCreateAuthor(author.Name)
			if err != nil {
				return err
			}
			if created {
				s.Console.Successf("Added author: %s", a.Name)
			} else {
				s.Console.Infof("Author '%s' already known", a.Name)
			}
			authors = append(authors, a)
		}

		peerReviewed := false
		publication, created, err := tx.GetOrCreatePublication(store.Publication{
			CiteKey:      citeKey,
			Title:        paper.Title,
			Year:         paper.Year,
			PeerReviewed: &peerReviewed,
			DOI:          paper.ResolvedDOI(),
		})
		if err != nil {
			return err
		}
		if created {
			s.Console.Successf("Added publication: %s", publication.CiteKey)
		} else if !describesSameWork(publication, paper) {
			return fmt.Errorf("cite key %q already refers to %q (%d), not %q (%d)",
				citeKey, publication.Title, publication.Year, paper.Title, paper.Year)
		} else {
			s.Console.Infof("Publication '%s' already known", publication.CiteKey)
		}

		for position, author := range authors {
			created, err := tx.AssignAuthor(publication.ID, author.ID, position)
			if err != nil {
				return err
			}
			if created {
				s.Console.Successf("Assigned author '%s' to publication '%s' at position %d",
					author.Name, publication.CiteKey, position)
			}
		}

		if paper.PaperID != "" {
			created, err := tx.AddPaper(paper.PaperID, publication.ID)
			if err != nil {
				return err
			}
			if created {
				s.Console.Successf("New Semantic Scholar entry: %s", paper.PaperID)
			}
		}

		snowball := *s
		snowball.DB = tx
		return snowball.addEdge(base, publication, isReference, nil)
	})
}

// addEdge records the citation edge between the base publication and the
// other one, honoring the direction of the walk.
func (s *Snowball) addEdge(
	base, other store.Publication,
	isReference bool,
	identifier *string,
) error {
	citing, cited := base, other
	if !isReference {
		citing, cited = other, base
	}

	edge, created, err := s.DB.AddReference(citing.ID, cited.ID, identifier)
	if err != nil {
		return err
	}

	label := ""
	if edge.Identifier != nil {
		label = *edge.Identifier + " "
	}
	if created {
		if isReference {
			s.Console.Successf("Added reference: %s", cited.CiteKey)
		} else {
			s.Console.Successf("Added citation: %s", citing.CiteKey)
		}
	} else {
		if isReference {
			s.Console.Infof("Reference already known: %s%s", label, cited.CiteKey)
		} else {
			s.Console.Infof("Citation already known: %s%s", label, citing.CiteKey)
		}
	}
	return nil
}

func (s *Snowball) display(paper *s2.Paper) {
	s.Console.Printf("")
	if len(paper.Authors) > 0 {
		names := make([]string, len(paper.Authors))
		for i, author := range paper.Authors {
			names[i] = author.Name
		}
		s.Console.Printf("  %s", strings.Join(names, ", "))
	}
	if paper.Year > 0 {
		s.Console.Infof("  %s (%d)", paper.Title, paper.Year)
	} else {
		s.Console.Infof("  %s", paper.Title)
	}
	if paper.Venue != "" {
		s.Console.Printf("  %s", paper.Venue)
	}
	if doi := paper.ResolvedDOI(); doi != "" {
		s.Console.Printf("  %s", doi)
	}
	if paper.PaperID != "" {
		s.Console.Printf("  %s", paper.PaperID)
	}
}

// describesSameWork reports whether an existing publication is the same
// work as the fetched paper. Matching DOIs decide when both are known;
// otherwise title and year have to agree.
func describesSameWork(publication store.Publication, paper *s2.Paper) bool {
	if doi := paper.ResolvedDOI(); doi != "" && publication.DOI != "" {
		return strings.EqualFold(publication.DOI, doi)
	}
	return strings.EqualFold(publication.Title, paper.Title) && publication.Year == paper.Year
}

// SynthesizeCiteKey derives a fallback cite key for a paper that has no
// bibliographic entry: the first author's last name, the year and the first
// word of the title, lowercased. The construction can collide for similar
// papers; the import rejects a colliding key that refers to a different
// work.
func SynthesizeCiteKey(paper *s2.Paper) (string, error) {
	if len(paper.Authors) == 0 {
		return "", fmt.Errorf("cannot derive cite key for %q: no authors", paper.Title)
	}

	nameParts := strings.Fields(paper.Authors[0].Name)
	if len(nameParts) == 0 {
		return "", fmt.Errorf("cannot derive cite key for %q: empty author name", paper.Title)
	}
	lastName := nameParts[len(nameParts)-1]

	firstWord := ""
	if titleParts := strings.Fields(paper.Title); len(titleParts) > 0 {
		firstWord = titleParts[0]
	}

	return strings.ToLower(fmt.Sprintf("%s%d%s", lastName, paper.Year, firstWord)), nil
}
