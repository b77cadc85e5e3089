package graph

import (
	"github.com/blochberger/sokman/internal/store"
)

// ClosureMemo caches transitive publication sets per tag. It is only valid
// within a single invocation: it does not observe later writes to the
// store. A nil memo disables caching.
type ClosureMemo map[int64]map[int64]store.Publication

// NewClosureMemo returns an empty memo for use across multiple closure
// computations within one run.
func NewClosureMemo() ClosureMemo {
	return make(ClosureMemo)
}

// TransitivePublications returns the tag's transitive publication set: the
// non-excluded publications tagged with it directly, unioned over every tag
// that implies it, however indirectly. The implies relation is supposed to
// be acyclic; a cycle terminates the traversal anyway and is reported
// through warnf, which may be nil. Tags reached over more than one path are
// visited once and not reported.
func TransitivePublications(db *store.DB, tagID int64, memo ClosureMemo, warnf Warnf) (map[int64]store.Publication, error) {
	if memo != nil {
		if cached, ok := memo[tagID]; ok {
			return cached, nil
		}
	}
	if warnf == nil {
		warnf = func(string, ...any) {}
	}

	result := make(map[int64]store.Publication)
	visited := make(map[int64]bool)
	onPath := make(map[int64]bool)

	var walk func(current int64) error
	walk = func(current int64) error {
		visited[current] = true
		onPath[current] = true
		defer delete(onPath, current)

		pubs, err := db.PublicationsForTag(current, true)
		if err != nil {
			return err
		}
		for _, p := range pubs {
			result[p.ID] = p
		}

		impliedBy, err := db.TagImpliedBy(current)
		if err != nil {
			return err
		}
		for _, t := range impliedBy {
			if onPath[t.ID] {
				warnf("tag %q takes part in an implication cycle", t.Name)
				continue
			}
			if visited[t.ID] {
				continue
			}
			if err := walk(t.ID); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(tagID); err != nil {
		return nil, err
	}

	if memo != nil {
		memo[tagID] = result
	}
	return result, nil
}

// TransitiveCount returns the size of the tag's transitive publication set.
func TransitiveCount(db *store.DB, tagID int64, memo ClosureMemo, warnf Warnf) (int, error) {
	pubs, err := TransitivePublications(db, tagID, memo, warnf)
	if err != nil {
		return 0, err
	}
	return len(pubs), nil
}
