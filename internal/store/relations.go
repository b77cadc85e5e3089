package store

import (
	"database/sql"
	"fmt"
	"regexp"
)

// paperIDPattern matches a Semantic Scholar paper id, a 40 character hex
// digest.
var paperIDPattern = regexp.MustCompile(`^[0-9a-f]{40}$`)

// AssignAuthor records that the author wrote the publication at the given
// position in the author list. Re-assigning the same author is a no-op.
func (d *DB) AssignAuthor(publicationID, authorID int64, position int) (bool, error) {
	var n int
	err := d.q.QueryRow(
		`SELECT COUNT(*) FROM publication_authors WHERE publication_id = ? AND author_id = ?`,
		publicationID, authorID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("looking up authorship: %w", err)
	}
	if n > 0 {
		return false, nil
	}

	if _, err := d.q.Exec(
		`INSERT INTO publication_authors (publication_id, author_id, position) VALUES (?, ?, ?)`,
		publicationID, authorID, position,
	); err != nil {
		return false, fmt.Errorf("assigning author %d to publication %d: %w", authorID, publicationID, err)
	}
	return true, nil
}

// AuthorsOf returns the publication's authors in list order.
func (d *DB) AuthorsOf(publicationID int64) ([]Author, error) {
	rows, err := d.q.Query(`
		SELECT a.id, a.name
		FROM authors a JOIN publication_authors pa ON pa.author_id = a.id
		WHERE pa.publication_id = ?
		ORDER BY pa.position`, publicationID)
	if err != nil {
		return nil, fmt.Errorf("listing authors of publication %d: %w", publicationID, err)
	}
	defer rows.Close()

	var authors []Author
	for rows.Next() {
		var a Author
		if err := rows.Scan(&a.ID, &a.Name); err != nil {
			return nil, err
		}
		authors = append(authors, a)
	}
	return authors, rows.Err()
}

// AssignSource records that the publication was found on the source through
// the given search term.
func (d *DB) AssignSource(publicationID, sourceID, searchTermID int64) (bool, error) {
	var n int
	err := d.q.QueryRow(`
		SELECT COUNT(*) FROM publication_sources
		WHERE publication_id = ? AND source_id = ? AND search_term_id = ?`,
		publicationID, sourceID, searchTermID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("looking up source assignment: %w", err)
	}
	if n > 0 {
		return false, nil
	}

	if _, err := d.q.Exec(`
		INSERT INTO publication_sources (publication_id, source_id, search_term_id)
		VALUES (?, ?, ?)`,
		publicationID, sourceID, searchTermID,
	); err != nil {
		return false, fmt.Errorf("assigning source %d to publication %d: %w", sourceID, publicationID, err)
	}
	return true, nil
}

// ReferenceEdge is a citation edge: the publication cites the reference.
// Identifier is the raw marker used in the citing publication's reference
// list, if known.
type ReferenceEdge struct {
	PublicationID int64
	ReferenceID   int64
	Identifier    *string
}

// AddReference records that the publication cites the reference. An
// existing edge between the pair is returned unchanged.
func (d *DB) AddReference(publicationID, referenceID int64, identifier *string) (ReferenceEdge, bool, error) {
	edge := ReferenceEdge{PublicationID: publicationID, ReferenceID: referenceID}

	var existing sql.NullString
	err := d.q.QueryRow(`
		SELECT identifier FROM publication_references
		WHERE publication_id = ? AND reference_id = ?`,
		publicationID, referenceID,
	).Scan(&existing)
	if err == nil {
		if existing.Valid {
			edge.Identifier = &existing.String
		}
		return edge, false, nil
	}
	if err != sql.ErrNoRows {
		return ReferenceEdge{}, false, fmt.Errorf("looking up reference edge: %w", err)
	}

	if _, err := d.q.Exec(`
		INSERT INTO publication_references (publication_id, reference_id, identifier)
		VALUES (?, ?, ?)`,
		publicationID, referenceID, nullableString(identifier),
	); err != nil {
		return ReferenceEdge{}, false, fmt.Errorf(
			"adding reference %d to publication %d: %w", referenceID, publicationID, err)
	}
	edge.Identifier = identifier
	return edge, true, nil
}

// ReferencesOf returns the edges to publications the given one cites.
func (d *DB) ReferencesOf(publicationID int64) ([]ReferenceEdge, error) {
	rows, err := d.q.Query(`
		SELECT publication_id, reference_id, identifier
		FROM publication_references WHERE publication_id = ?
		ORDER BY reference_id`, publicationID)
	if err != nil {
		return nil, fmt.Errorf("listing references of publication %d: %w", publicationID, err)
	}
	defer rows.Close()
	return scanReferenceEdges(rows)
}

// ReferencesTo returns the edges from publications citing the given one.
func (d *DB) ReferencesTo(publicationID int64) ([]ReferenceEdge, error) {
	rows, err := d.q.Query(`
		SELECT publication_id, reference_id, identifier
		FROM publication_references WHERE reference_id = ?
		ORDER BY publication_id`, publicationID)
	if err != nil {
		return nil, fmt.Errorf("listing citations of publication %d: %w", publicationID, err)
	}
	defer rows.Close()
	return scanReferenceEdges(rows)
}

func scanReferenceEdges(rows *sql.Rows) ([]ReferenceEdge, error) {
	var edges []ReferenceEdge
	for rows.Next() {
		var (
			e          ReferenceEdge
			identifier sql.NullString
		)
		if err := rows.Scan(&e.PublicationID, &e.ReferenceID, &identifier); err != nil {
			return nil, err
		}
		if identifier.Valid {
			e.Identifier = &identifier.String
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// PublicationTag is a tag assignment with an optional free-form comment.
type PublicationTag struct {
	PublicationID int64
	TagID         int64
	Comment       *string
}

// AssignTag tags the publication. Assigning an already present tag is a
// no-op and leaves any existing comment in place.
func (d *DB) AssignTag(publicationID, tagID int64, comment *string) (bool, error) {
	var n int
	err := d.q.QueryRow(
		`SELECT COUNT(*) FROM publication_tags WHERE publication_id = ? AND tag_id = ?`,
		publicationID, tagID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("looking up tag assignment: %w", err)
	}
	if n > 0 {
		return false, nil
	}

	if _, err := d.q.Exec(
		`INSERT INTO publication_tags (publication_id, tag_id, comment) VALUES (?, ?, ?)`,
		publicationID, tagID, nullableString(comment),
	); err != nil {
		return false, fmt.Errorf("assigning tag %d to publication %d: %w", tagID, publicationID, err)
	}
	return true, nil
}

// RemoveTag removes the tag from the publication, reporting whether it was
// present.
func (d *DB) RemoveTag(publicationID, tagID int64) (bool, error) {
	res, err := d.q.Exec(
		`DELETE FROM publication_tags WHERE publication_id = ? AND tag_id = ?`,
		publicationID, tagID,
	)
	if err != nil {
		return false, fmt.Errorf("removing tag %d from publication %d: %w", tagID, publicationID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// PublicationTagComment returns the comment of the tag assignment, and
// whether the assignment exists at all.
func (d *DB) PublicationTagComment(publicationID, tagID int64) (*string, bool, error) {
	var comment sql.NullString
	err := d.q.QueryRow(
		`SELECT comment FROM publication_tags WHERE publication_id = ? AND tag_id = ?`,
		publicationID, tagID,
	).Scan(&comment)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("looking up tag assignment: %w", err)
	}
	if !comment.Valid {
		return nil, true, nil
	}
	return &comment.String, true, nil
}

// UpdateTagComment replaces the comment of an existing tag assignment.
func (d *DB) UpdateTagComment(publicationID, tagID int64, comment *string) error {
	if _, err := d.q.Exec(
		`UPDATE publication_tags SET comment = ? WHERE publication_id = ? AND tag_id = ?`,
		nullableString(comment), publicationID, tagID,
	); err != nil {
		return fmt.Errorf("updating comment of tag %d on publication %d: %w", tagID, publicationID, err)
	}
	return nil
}

// TagMergeResult records one publication whose assignment was merged.
type TagMergeResult struct {
	Publication Publication
	Comment     *string
}

// MergeTags merges every assignment of tag rhs into tag lhs. Differing
// comments are concatenated; the rhs assignment is removed. The rhs tag
// itself is kept, only its assignments move.
func (d *DB) MergeTags(lhsID, rhsID int64) ([]TagMergeResult, error) {
	if lhsID == rhsID {
		return nil, fmt.Errorf("cannot merge tag %d with itself", lhsID)
	}

	publications, err := d.PublicationsForTag(rhsID, false)
	if err != nil {
		return nil, err
	}

	var results []TagMergeResult
	for _, publication := range publications {
		rhsComment, _, err := d.PublicationTagComment(publication.ID, rhsID)
		if err != nil {
			return nil, err
		}

		lhsComment, exists, err := d.PublicationTagComment(publication.ID, lhsID)
		if err != nil {
			return nil, err
		}

		merged := mergeComments(lhsComment, rhsComment)
		if !exists {
			if _, err := d.AssignTag(publication.ID, lhsID, merged); err != nil {
				return nil, err
			}
		} else if !equalComments(lhsComment, merged) {
			if err := d.UpdateTagComment(publication.ID, lhsID, merged); err != nil {
				return nil, err
			}
		}

		if _, err := d.RemoveTag(publication.ID, rhsID); err != nil {
			return nil, err
		}

		results = append(results, TagMergeResult{Publication: publication, Comment: merged})
	}
	return results, nil
}

func mergeComments(lhs, rhs *string) *string {
	switch {
	case lhs == nil:
		return rhs
	case rhs == nil || *lhs == *rhs:
		return lhs
	default:
		combined := *lhs + "; " + *rhs
		return &combined
	}
}

func equalComments(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// TagsOf returns the publication's tags ordered by name.
func (d *DB) TagsOf(publicationID int64) ([]Tag, error) {
	rows, err := d.q.Query(`
		SELECT t.id, t.name, t.criteria
		FROM tags t JOIN publication_tags pt ON pt.tag_id = t.id
		WHERE pt.publication_id = ?
		ORDER BY t.name`, publicationID)
	if err != nil {
		return nil, fmt.Errorf("listing tags of publication %d: %w", publicationID, err)
	}
	defer rows.Close()
	return scanTags(rows)
}

// PublicationsForTag returns the publications carrying the tag directly. If
// relevantOnly is set, excluded publications are filtered out.
func (d *DB) PublicationsForTag(tagID int64, relevantOnly bool) ([]Publication, error) {
	query := `
		SELECT ` + publicationColumnsPrefixed("p") + `
		FROM publications p JOIN publication_tags pt ON pt.publication_id = p.id
		WHERE pt.tag_id = ?`
	if relevantOnly {
		query += ` AND p.id NOT IN (SELECT publication_id FROM publication_exclusions)`
	}
	query += ` ORDER BY p.cite_key`

	rows, err := d.q.Query(query, tagID)
	if err != nil {
		return nil, fmt.Errorf("listing publications for tag %d: %w", tagID, err)
	}
	defer rows.Close()
	return scanPublications(rows)
}

// AssignExclusion marks the publication as excluded by the criterion.
func (d *DB) AssignExclusion(publicationID, criterionID int64) (bool, error) {
	var n int
	err := d.q.QueryRow(
		`SELECT COUNT(*) FROM publication_exclusions WHERE publication_id = ? AND criterion_id = ?`,
		publicationID, criterionID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("looking up exclusion: %w", err)
	}
	if n > 0 {
		return false, nil
	}

	if _, err := d.q.Exec(
		`INSERT INTO publication_exclusions (publication_id, criterion_id) VALUES (?, ?)`,
		publicationID, criterionID,
	); err != nil {
		return false, fmt.Errorf("excluding publication %d by criterion %d: %w", publicationID, criterionID, err)
	}
	return true, nil
}

// AddPaper links a Semantic Scholar paper id to the publication. A paper id
// can only ever belong to one publication, but a publication may have
// several paper ids (one per variant).
func (d *DB) AddPaper(paperID string, publicationID int64) (bool, error) {
	if !paperIDPattern.MatchString(paperID) {
		return false, fmt.Errorf("invalid paper id %q", paperID)
	}

	var existing int64
	err := d.q.QueryRow(
		`SELECT publication_id FROM semantic_scholar WHERE paper_id = ?`, paperID,
	).Scan(&existing)
	if err == nil {
		if existing != publicationID {
			return false, fmt.Errorf(
				"paper %s already belongs to publication %d", paperID, existing)
		}
		return false, nil
	}
	if err != sql.ErrNoRows {
		return false, fmt.Errorf("looking up paper %s: %w", paperID, err)
	}

	if _, err := d.q.Exec(
		`INSERT INTO semantic_scholar (paper_id, publication_id) VALUES (?, ?)`,
		paperID, publicationID,
	); err != nil {
		return false, fmt.Errorf("linking paper %s to publication %d: %w", paperID, publicationID, err)
	}
	return true, nil
}

// PaperIDs returns the Semantic Scholar paper ids linked to the
// publication.
func (d *DB) PaperIDs(publicationID int64) ([]string, error) {
	rows, err := d.q.Query(
		`SELECT paper_id FROM semantic_scholar WHERE publication_id = ? ORDER BY paper_id`,
		publicationID)
	if err != nil {
		return nil, fmt.Errorf("listing paper ids of publication %d: %w", publicationID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// PublicationsWithPaper returns publications that have at least one Semantic
// Scholar paper linked. If relevantOnly is set, excluded publications are
// filtered out.
func (d *DB) PublicationsWithPaper(relevantOnly bool) ([]Publication, error) {
	query := `
		SELECT ` + publicationColumns + ` FROM publications
		WHERE id IN (SELECT publication_id FROM semantic_scholar)`
	if relevantOnly {
		query += ` AND id NOT IN (SELECT publication_id FROM publication_exclusions)`
	}
	query += ` ORDER BY cite_key`

	rows, err := d.q.Query(query)
	if err != nil {
		return nil, fmt.Errorf("listing publications with papers: %w", err)
	}
	defer rows.Close()
	return scanPublications(rows)
}

// HasRelevantCitingWithSource reports whether a non-excluded publication
// that was found through a source cites the given one.
func (d *DB) HasRelevantCitingWithSource(publicationID int64) (bool, error) {
	var n int
	err := d.q.QueryRow(`
		SELECT COUNT(*) FROM publication_references pr
		WHERE pr.reference_id = ?
		AND pr.publication_id NOT IN (SELECT publication_id FROM publication_exclusions)
		AND pr.publication_id IN (SELECT publication_id FROM publication_sources)`,
		publicationID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking citing publications of %d: %w", publicationID, err)
	}
	return n > 0, nil
}

// HasRelevantReferenceWithSource reports whether the given publication
// cites a non-excluded publication that was found through a source.
func (d *DB) HasRelevantReferenceWithSource(publicationID int64) (bool, error) {
	var n int
	err := d.q.QueryRow(`
		SELECT COUNT(*) FROM publication_references pr
		WHERE pr.publication_id = ?
		AND pr.reference_id NOT IN (SELECT publication_id FROM publication_exclusions)
		AND pr.reference_id IN (SELECT publication_id FROM publication_sources)`,
		publicationID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking references of %d: %w", publicationID, err)
	}
	return n > 0, nil
}

// RelevantCitationCount returns the number of non-excluded publications
// citing the given one.
func (d *DB) RelevantCitationCount(publicationID int64) (int, error) {
	var n int
	err := d.q.QueryRow(`
		SELECT COUNT(*) FROM publication_references
		WHERE reference_id = ?
		AND publication_id NOT IN (SELECT publication_id FROM publication_exclusions)`,
		publicationID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting citations of %d: %w", publicationID, err)
	}
	return n, nil
}

// PublicationsForSearchTerm returns the publications found through the
// given search term, ordered by cite key.
func (d *DB) PublicationsForSearchTerm(searchTermID int64) ([]Publication, error) {
	rows, err := d.q.Query(`
		SELECT `+publicationColumnsPrefixed("p")+`
		FROM publications p JOIN publication_sources ps ON ps.publication_id = p.id
		WHERE ps.search_term_id = ?
		ORDER BY p.cite_key`, searchTermID)
	if err != nil {
		return nil, fmt.Errorf("listing publications for search term %d: %w", searchTermID, err)
	}
	defer rows.Close()
	return scanPublications(rows)
}
