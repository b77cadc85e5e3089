// Package graph computes derived state over the citation graph and the tag
// DAG: stage classification, transitive publication sets, and graphviz
// exports with cycle diagnostics.
package graph

import (
	"github.com/blochberger/sokman/internal/store"
)

// Stage classifies how a publication entered the review.
type Stage string

const (
	// StagePrimary marks publications found directly through a search on
	// a source.
	StagePrimary Stage = "primary"
	// StageSecondary marks publications reached through a citing primary.
	StageSecondary Stage = "secondary"
	// StageTertiary marks publications reached through a referenced
	// primary.
	StageTertiary Stage = "tertiary"
	// StageExcluded marks publications ruled out by an exclusion
	// criterion.
	StageExcluded Stage = "excluded"
	// StageNone marks publications not connected to the review at all.
	StageNone Stage = "none"
)

// PublicationStage computes the publication's stage from its current
// exclusion, source and citation state. The result is never cached since
// the underlying relationships can change between calls.
func PublicationStage(db *store.DB, publicationID int64) (Stage, error) {
	excluded, err := db.IsExcluded(publicationID)
	if err != nil {
		return StageNone, err
	}
	if excluded {
		return StageExcluded, nil
	}

	hasSource, err := db.HasSource(publicationID)
	if err != nil {
		return StageNone, err
	}
	if hasSource {
		return StagePrimary, nil
	}

	citing, err := db.HasRelevantCitingWithSource(publicationID)
	if err != nil {
		return StageNone, err
	}
	if citing {
		return StageSecondary, nil
	}

	referenced, err := db.HasRelevantReferenceWithSource(publicationID)
	if err != nil {
		return StageNone, err
	}
	if referenced {
		return StageTertiary, nil
	}

	return StageNone, nil
}
