package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNotFound indicates a lookup by unique key matched nothing.
var ErrNotFound = errors.New("not found")

// Author is a publication author, unique by name.
type Author struct {
	ID   int64
	Name string
}

// Tag is a topical label. Tags form a DAG of specialization through the
// implies relation.
type Tag struct {
	ID       int64
	Name     string
	Criteria string
}

// ExclusionCriterion marks publications as irrelevant to the review.
type ExclusionCriterion struct {
	ID          int64
	Name        string
	Description string
}

// Source is an external bibliographic service publications were found on.
type Source struct {
	ID   int64
	Name string
}

// SearchTerm is a query string that was issued against a source.
type SearchTerm struct {
	ID   int64
	Name string
}

// getOrCreateNamed implements get-or-create for the entities that are
// unique by name only.
func (d *DB) getOrCreateNamed(table, name string) (id int64, created bool, err error) {
	err = d.q.QueryRow(`SELECT id FROM `+table+` WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if err != sql.ErrNoRows {
		return 0, false, fmt.Errorf("looking up %s %q: %w", table, name, err)
	}

	res, err := d.q.Exec(`INSERT INTO `+table+` (name) VALUES (?)`, name)
	if err != nil {
		return 0, false, fmt.Errorf("creating %s %q: %w", table, name, err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("creating %s %q: %w", table, name, err)
	}
	return id, true, nil
}

func (d *DB) namedByName(table, name string) (int64, error) {
	var id int64
	err := d.q.QueryRow(`SELECT id FROM `+table+` WHERE name = ?`, name).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("%s %q: %w", table, name, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("looking up %s %q: %w", table, name, err)
	}
	return id, nil
}

// GetOrCreateAuthor returns the author with the given name, creating it if
// necessary.
func (d *DB) GetOrCreateAuthor(name string) (Author, bool, error) {
	id, created, err := d.getOrCreateNamed("authors", name)
	return Author{ID: id, Name: name}, created, err
}

// GetOrCreateSource returns the source with the given name, creating it if
// necessary.
func (d *DB) GetOrCreateSource(name string) (Source, bool, error) {
	id, created, err := d.getOrCreateNamed("sources", name)
	return Source{ID: id, Name: name}, created, err
}

// GetOrCreateSearchTerm returns the search term with the given name,
// creating it if necessary.
func (d *DB) GetOrCreateSearchTerm(name string) (SearchTerm, bool, error) {
	id, created, err := d.getOrCreateNamed("search_terms", name)
	return SearchTerm{ID: id, Name: name}, created, err
}

// GetOrCreateExclusionCriterion returns the criterion with the given name,
// creating it if necessary.
func (d *DB) GetOrCreateExclusionCriterion(name string) (ExclusionCriterion, bool, error) {
	id, created, err := d.getOrCreateNamed("exclusion_criteria", name)
	return ExclusionCriterion{ID: id, Name: name}, created, err
}

// GetOrCreateTag returns the tag with the given name, creating it if
// necessary.
func (d *DB) GetOrCreateTag(name string) (Tag, bool, error) {
	id, created, err := d.getOrCreateNamed("tags", name)
	return Tag{ID: id, Name: name}, created, err
}

// TagByName returns the tag with exactly the given name.
func (d *DB) TagByName(name string) (Tag, error) {
	var tag Tag
	err := d.q.QueryRow(`SELECT id, name, criteria FROM tags WHERE name = ?`, name).
		Scan(&tag.ID, &tag.Name, &tag.Criteria)
	if err == sql.ErrNoRows {
		return Tag{}, fmt.Errorf("tag %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return Tag{}, fmt.Errorf("looking up tag %q: %w", name, err)
	}
	return tag, nil
}

// FindTag resolves a user-supplied tag reference: a numeric id, an exact
// name, or a unique case-insensitive substring of a name. An ambiguous
// substring is an error.
func (d *DB) FindTag(value string) (Tag, error) {
	if id, err := strconv.ParseInt(value, 10, 64); err == nil {
		var tag Tag
		err := d.q.QueryRow(`SELECT id, name, criteria FROM tags WHERE id = ?`, id).
			Scan(&tag.ID, &tag.Name, &tag.Criteria)
		if err == nil {
			return tag, nil
		}
		if err != sql.ErrNoRows {
			return Tag{}, fmt.Errorf("looking up tag %d: %w", id, err)
		}
	}

	if tag, err := d.TagByName(value); err == nil {
		return tag, nil
	} else if !errors.Is(err, ErrNotFound) {
		return Tag{}, err
	}

	rows, err := d.q.Query(
		`SELECT id, name, criteria FROM tags WHERE name LIKE ? ORDER BY name`,
		"%"+value+"%",
	)
	if err != nil {
		return Tag{}, fmt.Errorf("searching tags for %q: %w", value, err)
	}
	defer rows.Close()

	matches, err := scanTags(rows)
	if err != nil {
		return Tag{}, err
	}

	switch len(matches) {
	case 0:
		return Tag{}, fmt.Errorf("tag %q: %w", value, ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		names := make([]string, len(matches))
		for i, t := range matches {
			names[i] = t.Name
		}
		return Tag{}, fmt.Errorf("ambiguous tag %q: matches %s", value, strings.Join(names, ", "))
	}
}

// Tags returns all tags ordered by name.
func (d *DB) Tags() ([]Tag, error) {
	rows, err := d.q.Query(`SELECT id, name, criteria FROM tags ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	defer rows.Close()
	return scanTags(rows)
}

// RootTags returns the tags that imply nothing, i.e. the categories at the
// bottom of the specialization DAG.
func (d *DB) RootTags() ([]Tag, error) {
	rows, err := d.q.Query(`
		SELECT id, name, criteria FROM tags
		WHERE id NOT IN (SELECT tag_id FROM tag_implies)
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing root tags: %w", err)
	}
	defer rows.Close()
	return scanTags(rows)
}

// ImplyTag records that tag entails the more general tag implies.
func (d *DB) ImplyTag(tagID, impliesID int64) (bool, error) {
	if tagID == impliesID {
		return false, fmt.Errorf("tag %d cannot imply itself", tagID)
	}

	var exists int
	err := d.q.QueryRow(
		`SELECT COUNT(*) FROM tag_implies WHERE tag_id = ? AND implies_id = ?`,
		tagID, impliesID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("looking up tag implication: %w", err)
	}
	if exists > 0 {
		return false, nil
	}

	if _, err := d.q.Exec(
		`INSERT INTO tag_implies (tag_id, implies_id) VALUES (?, ?)`,
		tagID, impliesID,
	); err != nil {
		return false, fmt.Errorf("creating tag implication %d -> %d: %w", tagID, impliesID, err)
	}
	return true, nil
}

// TagImplies returns the more general tags the given tag entails.
func (d *DB) TagImplies(tagID int64) ([]Tag, error) {
	rows, err := d.q.Query(`
		SELECT t.id, t.name, t.criteria
		FROM tags t JOIN tag_implies ti ON ti.implies_id = t.id
		WHERE ti.tag_id = ?
		ORDER BY t.name`, tagID)
	if err != nil {
		return nil, fmt.Errorf("listing implied tags of %d: %w", tagID, err)
	}
	defer rows.Close()
	return scanTags(rows)
}

// TagImpliedBy returns the more specific tags that entail the given tag.
func (d *DB) TagImpliedBy(tagID int64) ([]Tag, error) {
	rows, err := d.q.Query(`
		SELECT t.id, t.name, t.criteria
		FROM tags t JOIN tag_implies ti ON ti.tag_id = t.id
		WHERE ti.implies_id = ?
		ORDER BY t.name`, tagID)
	if err != nil {
		return nil, fmt.Errorf("listing tags implying %d: %w", tagID, err)
	}
	defer rows.Close()
	return scanTags(rows)
}

// SearchTerms returns all search terms ordered by name.
func (d *DB) SearchTerms() ([]SearchTerm, error) {
	rows, err := d.q.Query(`SELECT id, name FROM search_terms ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing search terms: %w", err)
	}
	defer rows.Close()

	var terms []SearchTerm
	for rows.Next() {
		var t SearchTerm
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}
	return terms, rows.Err()
}

func scanTags(rows *sql.Rows) ([]Tag, error) {
	var tags []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Criteria); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}
