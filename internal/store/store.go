// Package store is the persistence gateway. It owns the durable entities of
// the review (publications, authors, tags, sources, search terms, exclusion
// criteria) and their relationship rows, enforcing the uniqueness
// constraints the workflows rely on.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection.
type DB struct {
	sqlDB *sql.DB
	q     querier
}

// querier abstracts *sql.DB and *sql.Tx so every operation can run either
// directly or inside a scoped transaction.
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite doesn't support concurrent writes
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &DB{sqlDB: db, q: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.sqlDB.Close()
}

// WithTx runs fn inside an all-or-nothing transaction. The DB handed to fn
// executes every operation on the transaction; a mid-step interruption rolls
// the whole step back.
func (d *DB) WithTx(fn func(tx *DB) error) error {
	tx, err := d.sqlDB.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(&DB{sqlDB: d.sqlDB, q: tx}); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// createSchema creates the database schema if it doesn't exist.
func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS authors (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE
		);

		CREATE TABLE IF NOT EXISTS tags (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			criteria TEXT NOT NULL DEFAULT ''
		);

		-- An implies edge points from the more specific tag to the more
		-- general tag it entails.
		CREATE TABLE IF NOT EXISTS tag_implies (
			tag_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
			implies_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
			PRIMARY KEY (tag_id, implies_id)
		);

		CREATE TABLE IF NOT EXISTS exclusion_criteria (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS sources (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE
		);

		CREATE TABLE IF NOT EXISTS search_terms (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE
		);

		CREATE TABLE IF NOT EXISTS publications (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			cite_key TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			year INTEGER NOT NULL,
			peer_reviewed INTEGER,
			classified INTEGER NOT NULL DEFAULT 0,
			first_page INTEGER,
			last_page INTEGER,
			doi TEXT UNIQUE,
			variant_of INTEGER REFERENCES publications(id) ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS publication_authors (
			publication_id INTEGER NOT NULL REFERENCES publications(id) ON DELETE CASCADE,
			author_id INTEGER NOT NULL REFERENCES authors(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			UNIQUE (publication_id, author_id),
			UNIQUE (publication_id, position)
		);

		CREATE TABLE IF NOT EXISTS publication_references (
			publication_id INTEGER NOT NULL REFERENCES publications(id) ON DELETE CASCADE,
			reference_id INTEGER NOT NULL REFERENCES publications(id) ON DELETE CASCADE,
			identifier TEXT,
			UNIQUE (publication_id, reference_id),
			UNIQUE (publication_id, identifier)
		);

		CREATE TABLE IF NOT EXISTS publication_sources (
			publication_id INTEGER NOT NULL REFERENCES publications(id) ON DELETE CASCADE,
			source_id INTEGER NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
			search_term_id INTEGER NOT NULL REFERENCES search_terms(id) ON DELETE CASCADE,
			UNIQUE (publication_id, source_id, search_term_id)
		);

		CREATE TABLE IF NOT EXISTS publication_tags (
			publication_id INTEGER NOT NULL REFERENCES publications(id) ON DELETE CASCADE,
			tag_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
			comment TEXT,
			UNIQUE (publication_id, tag_id)
		);

		CREATE TABLE IF NOT EXISTS publication_exclusions (
			publication_id INTEGER NOT NULL REFERENCES publications(id) ON DELETE CASCADE,
			criterion_id INTEGER NOT NULL REFERENCES exclusion_criteria(id) ON DELETE CASCADE,
			UNIQUE (publication_id, criterion_id)
		);

		CREATE TABLE IF NOT EXISTS semantic_scholar (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			paper_id TEXT NOT NULL UNIQUE,
			publication_id INTEGER NOT NULL REFERENCES publications(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_publications_doi ON publications(doi) WHERE doi IS NOT NULL;
		CREATE INDEX IF NOT EXISTS idx_references_reference ON publication_references(reference_id);
		CREATE INDEX IF NOT EXISTS idx_semantic_scholar_publication ON semantic_scholar(publication_id);
	`

	_, err := db.Exec(schema)
	return err
}

func nullableString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func nullableStringValue(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullableInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullableBool(p *bool) sql.NullBool {
	if p == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *p, Valid: true}
}
