package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// Publication is an entry of the review. CiteKey is the stable handle used
// on the command line; DOI and the page range are optional.
type Publication struct {
	ID           int64
	CiteKey      string
	Title        string
	Year         int
	PeerReviewed *bool
	Classified   bool
	FirstPage    *int
	LastPage     *int
	DOI          string
	VariantOf    *int64
}

const publicationColumns = `id, cite_key, title, year, peer_reviewed, classified, first_page, last_page, doi, variant_of`

// GetOrCreatePublication returns the publication with the given cite key,
// creating it from p if necessary. Existing publications are returned
// untouched.
func (d *DB) GetOrCreatePublication(p Publication) (Publication, bool, error) {
	existing, err := d.PublicationByCiteKey(p.CiteKey)
	if err == nil {
		return existing, false, nil
	}
	if !isNotFound(err) {
		return Publication{}, false, err
	}

	res, err := d.q.Exec(`
		INSERT INTO publications (cite_key, title, year, peer_reviewed, classified, first_page, last_page, doi, variant_of)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.CiteKey, p.Title, p.Year, nullableBool(p.PeerReviewed), p.Classified,
		nullableInt(p.FirstPage), nullableInt(p.LastPage),
		nullableStringValue(p.DOI), nullableInt64(p.VariantOf),
	)
	if err != nil {
		return Publication{}, false, fmt.Errorf("creating publication %q: %w", p.CiteKey, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Publication{}, false, fmt.Errorf("creating publication %q: %w", p.CiteKey, err)
	}
	p.ID = id
	return p, true, nil
}

// PublicationByCiteKey returns the publication with the given cite key.
func (d *DB) PublicationByCiteKey(citeKey string) (Publication, error) {
	row := d.q.QueryRow(
		`SELECT `+publicationColumns+` FROM publications WHERE cite_key = ?`, citeKey)
	p, err := scanPublication(row)
	if err == sql.ErrNoRows {
		return Publication{}, fmt.Errorf("publication %q: %w", citeKey, ErrNotFound)
	}
	if err != nil {
		return Publication{}, fmt.Errorf("looking up publication %q: %w", citeKey, err)
	}
	return p, nil
}

// PublicationByDOI returns the publication with the given DOI.
func (d *DB) PublicationByDOI(doi string) (Publication, error) {
	row := d.q.QueryRow(
		`SELECT `+publicationColumns+` FROM publications WHERE doi = ?`, doi)
	p, err := scanPublication(row)
	if err == sql.ErrNoRows {
		return Publication{}, fmt.Errorf("publication with DOI %q: %w", doi, ErrNotFound)
	}
	if err != nil {
		return Publication{}, fmt.Errorf("looking up publication with DOI %q: %w", doi, err)
	}
	return p, nil
}

// PublicationByID returns the publication with the given row id.
func (d *DB) PublicationByID(id int64) (Publication, error) {
	row := d.q.QueryRow(
		`SELECT `+publicationColumns+` FROM publications WHERE id = ?`, id)
	p, err := scanPublication(row)
	if err == sql.ErrNoRows {
		return Publication{}, fmt.Errorf("publication %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Publication{}, fmt.Errorf("looking up publication %d: %w", id, err)
	}
	return p, nil
}

// PublicationByPaperID returns the publication linked to the given Semantic
// Scholar paper id.
func (d *DB) PublicationByPaperID(paperID string) (Publication, error) {
	row := d.q.QueryRow(`
		SELECT `+publicationColumnsPrefixed("p")+`
		FROM publications p
		JOIN semantic_scholar s ON s.publication_id = p.id
		WHERE s.paper_id = ?`, paperID)
	p, err := scanPublication(row)
	if err == sql.ErrNoRows {
		return Publication{}, fmt.Errorf("publication for paper %s: %w", paperID, ErrNotFound)
	}
	if err != nil {
		return Publication{}, fmt.Errorf("looking up publication for paper %s: %w", paperID, err)
	}
	return p, nil
}

// Publications returns every publication ordered by cite key.
func (d *DB) Publications() ([]Publication, error) {
	rows, err := d.q.Query(
		`SELECT ` + publicationColumns + ` FROM publications ORDER BY cite_key`)
	if err != nil {
		return nil, fmt.Errorf("listing publications: %w", err)
	}
	defer rows.Close()
	return scanPublications(rows)
}

// RelevantPublications returns the publications that have no exclusion,
// ordered by cite key.
func (d *DB) RelevantPublications() ([]Publication, error) {
	rows, err := d.q.Query(`
		SELECT ` + publicationColumns + ` FROM publications
		WHERE id NOT IN (SELECT publication_id FROM publication_exclusions)
		ORDER BY cite_key`)
	if err != nil {
		return nil, fmt.Errorf("listing relevant publications: %w", err)
	}
	defer rows.Close()
	return scanPublications(rows)
}

// IsExcluded reports whether the publication carries at least one exclusion
// criterion.
func (d *DB) IsExcluded(publicationID int64) (bool, error) {
	var n int
	err := d.q.QueryRow(
		`SELECT COUNT(*) FROM publication_exclusions WHERE publication_id = ?`,
		publicationID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking exclusions of publication %d: %w", publicationID, err)
	}
	return n > 0, nil
}

// HasSource reports whether the publication was found through at least one
// source.
func (d *DB) HasSource(publicationID int64) (bool, error) {
	var n int
	err := d.q.QueryRow(
		`SELECT COUNT(*) FROM publication_sources WHERE publication_id = ?`,
		publicationID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking sources of publication %d: %w", publicationID, err)
	}
	return n > 0, nil
}

// SetDOI sets the publication's DOI.
func (d *DB) SetDOI(publicationID int64, doi string) error {
	if _, err := d.q.Exec(
		`UPDATE publications SET doi = ? WHERE id = ?`,
		nullableStringValue(doi), publicationID,
	); err != nil {
		return fmt.Errorf("setting DOI of publication %d: %w", publicationID, err)
	}
	return nil
}

// SetClassified marks the publication as classified.
func (d *DB) SetClassified(publicationID int64, classified bool) error {
	if _, err := d.q.Exec(
		`UPDATE publications SET classified = ? WHERE id = ?`,
		classified, publicationID,
	); err != nil {
		return fmt.Errorf("marking publication %d classified: %w", publicationID, err)
	}
	return nil
}

// SetVariantOf records that the publication is a variant (e.g. a preprint)
// of another one.
func (d *DB) SetVariantOf(publicationID, originalID int64) error {
	if publicationID == originalID {
		return fmt.Errorf("publication %d cannot be a variant of itself", publicationID)
	}
	if _, err := d.q.Exec(
		`UPDATE publications SET variant_of = ? WHERE id = ?`,
		originalID, publicationID,
	); err != nil {
		return fmt.Errorf("marking publication %d as variant of %d: %w", publicationID, originalID, err)
	}
	return nil
}

// PublicationsWithVariants returns publications marked as a variant of
// another one, ordered by cite key.
func (d *DB) PublicationsWithVariants() ([]Publication, error) {
	rows, err := d.q.Query(`
		SELECT ` + publicationColumns + ` FROM publications
		WHERE variant_of IS NOT NULL ORDER BY cite_key`)
	if err != nil {
		return nil, fmt.Errorf("listing variant publications: %w", err)
	}
	defer rows.Close()
	return scanPublications(rows)
}

// PublicationsWithoutDOI returns publications whose DOI is unknown, ordered
// by cite key.
func (d *DB) PublicationsWithoutDOI() ([]Publication, error) {
	rows, err := d.q.Query(`
		SELECT ` + publicationColumns + ` FROM publications
		WHERE doi IS NULL ORDER BY cite_key`)
	if err != nil {
		return nil, fmt.Errorf("listing publications without DOI: %w", err)
	}
	defer rows.Close()
	return scanPublications(rows)
}

// PublicationsWithDOIWithoutPaper returns publications that carry a DOI but
// have no Semantic Scholar paper linked yet, ordered by cite key.
func (d *DB) PublicationsWithDOIWithoutPaper() ([]Publication, error) {
	rows, err := d.q.Query(`
		SELECT ` + publicationColumns + ` FROM publications
		WHERE doi IS NOT NULL
		AND id NOT IN (SELECT publication_id FROM semantic_scholar)
		ORDER BY cite_key`)
	if err != nil {
		return nil, fmt.Errorf("listing publications without paper link: %w", err)
	}
	defer rows.Close()
	return scanPublications(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPublication(row rowScanner) (Publication, error) {
	var (
		p            Publication
		peerReviewed sql.NullBool
		firstPage    sql.NullInt64
		lastPage     sql.NullInt64
		doi          sql.NullString
		variantOf    sql.NullInt64
	)
	err := row.Scan(&p.ID, &p.CiteKey, &p.Title, &p.Year,
		&peerReviewed, &p.Classified, &firstPage, &lastPage, &doi, &variantOf)
	if err != nil {
		return Publication{}, err
	}
	if peerReviewed.Valid {
		p.PeerReviewed = &peerReviewed.Bool
	}
	if firstPage.Valid {
		v := int(firstPage.Int64)
		p.FirstPage = &v
	}
	if lastPage.Valid {
		v := int(lastPage.Int64)
		p.LastPage = &v
	}
	p.DOI = doi.String
	if variantOf.Valid {
		p.VariantOf = &variantOf.Int64
	}
	return p, nil
}

func scanPublications(rows *sql.Rows) ([]Publication, error) {
	var pubs []Publication
	for rows.Next() {
		p, err := scanPublication(rows)
		if err != nil {
			return nil, err
		}
		pubs = append(pubs, p)
	}
	return pubs, rows.Err()
}

func publicationColumnsPrefixed(alias string) string {
	return alias + ".id, " + alias + ".cite_key, " + alias + ".title, " +
		alias + ".year, " + alias + ".peer_reviewed, " + alias + ".classified, " +
		alias + ".first_page, " + alias + ".last_page, " + alias + ".doi, " +
		alias + ".variant_of"
}

func nullableInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
