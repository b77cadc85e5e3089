package graph

import (
	"fmt"
	"io"
	"strings"

	"github.com/blochberger/sokman/internal/store"
)

// CitationGraphOptions controls the citation graph export.
type CitationGraphOptions struct {
	// MinCitations drops publications cited by fewer than this many
	// non-excluded publications.
	MinCitations int
	// UseID labels nodes with row ids instead of cite keys.
	UseID bool
	// Warnf receives cycle diagnostics. Optional.
	Warnf Warnf
}

// WriteCitationGraph writes a graphviz description of the citation graph to
// w. Only primary publications appear, and only edges between two primaries
// are emitted. Reference edges whose citation marker was synthesized are
// drawn dashed. Cycles are reported through the options' warn channel and
// do not abort the export.
func WriteCitationGraph(w io.Writer, db *store.DB, opts CitationGraphOptions) error {
	pubs, err := db.RelevantPublications()
	if err != nil {
		return err
	}

	included := make(map[int64]store.Publication)
	var order []store.Publication
	for _, p := range pubs {
		stage, err := PublicationStage(db, p.ID)
		if err != nil {
			return err
		}
		if stage != StagePrimary {
			continue
		}
		count, err := db.RelevantCitationCount(p.ID)
		if err != nil {
			return err
		}
		if count < opts.MinCitations {
			continue
		}
		included[p.ID] = p
		order = append(order, p)
	}

	fmt.Fprintln(w, "digraph G {")
	fmt.Fprintln(w, "\trankdir = RL;")
	fmt.Fprintln(w, "\tnode [shape = record];")

	for _, p := range order {
		fmt.Fprintf(w, "\t%q [label = %q];\n",
			citationNodeName(p, opts.UseID), citationNodeLabel(p))
	}

	tracker := newEdgeTracker(opts.Warnf)
	for _, p := range order {
		refs, err := db.ReferencesOf(p.ID)
		if err != nil {
			return err
		}
		for _, ref := range refs {
			target, ok := included[ref.ReferenceID]
			if !ok {
				continue
			}

			from := citationNodeName(p, opts.UseID)
			to := citationNodeName(target, opts.UseID)
			if !tracker.Add(from, to) {
				continue
			}

			if synthesizedIdentifier(ref.Identifier) {
				fmt.Fprintf(w, "\t%q -> %q [style = dashed];\n", from, to)
			} else {
				fmt.Fprintf(w, "\t%q -> %q;\n", from, to)
			}
		}
	}

	fmt.Fprintln(w, "}")
	return nil
}

func citationNodeName(p store.Publication, useID bool) string {
	if useID {
		return fmt.Sprintf("%d", p.ID)
	}
	return p.CiteKey
}

func citationNodeLabel(p store.Publication) string {
	return fmt.Sprintf("{%s|%s|%d}",
		escapeRecordField(p.CiteKey), escapeRecordField(p.Title), p.Year)
}

// escapeRecordField escapes the characters graphviz treats specially inside
// record-shaped labels.
func escapeRecordField(s string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`,
		`{`, `\{`,
		`}`, `\}`,
		`|`, `\|`,
		`<`, `\<`,
		`>`, `\>`,
	)
	return replacer.Replace(s)
}

// synthesizedIdentifier reports whether the citation marker was synthesized
// during a snowball walk rather than copied from the publication's
// reference list.
func synthesizedIdentifier(identifier *string) bool {
	return identifier != nil && strings.HasSuffix(*identifier, "*")
}

// TagGraphOptions controls the tag DAG export.
type TagGraphOptions struct {
	// Root restricts the export to a single tag and the tags implying it.
	// Nil exports the whole DAG from every root tag.
	Root *store.Tag
	// PublicationID restricts the export to tags reachable from the given
	// publication's direct tags over the implies relation. Nil disables
	// the filter.
	PublicationID *int64
	// MaxDepth bounds the traversal depth from the roots. Zero means
	// unlimited.
	MaxDepth int
	// MinCount omits tags whose transitive publication set is smaller.
	MinCount int
	// Warnf receives cycle diagnostics. Optional.
	Warnf Warnf
}

// WriteTagGraph writes a graphviz description of the tag DAG to w. Edges
// point from the more specific tag to the more general tag it implies. Tags
// that are reachable but carry no direct publication are drawn dashed;
// tags below the publication-count threshold are omitted together with
// their subtree. Cycles are reported through the options' warn channel.
func WriteTagGraph(w io.Writer, db *store.DB, opts TagGraphOptions) error {
	var roots []store.Tag
	if opts.Root != nil {
		roots = []store.Tag{*opts.Root}
	} else {
		var err error
		roots, err = db.RootTags()
		if err != nil {
			return err
		}
	}

	allowed, err := tagFilter(db, opts.PublicationID)
	if err != nil {
		return err
	}

	memo := NewClosureMemo()
	e := &tagGraphEmitter{
		db:      db,
		w:       w,
		opts:    opts,
		allowed: allowed,
		memo:    memo,
		tracker: newEdgeTracker(opts.Warnf),
		emitted: make(map[int64]bool),
	}

	fmt.Fprintln(w, "digraph G {")
	fmt.Fprintln(w, "\trankdir = RL;")

	for _, root := range roots {
		if err := e.emit(root, 1); err != nil {
			return err
		}
	}

	fmt.Fprintln(w, "}")
	return nil
}

type tagGraphEmitter struct {
	db      *store.DB
	w       io.Writer
	opts    TagGraphOptions
	allowed map[int64]bool
	memo    ClosureMemo
	tracker *edgeTracker
	emitted map[int64]bool
}

// include reports whether the tag passes the publication filter and the
// transitive-count threshold.
func (e *tagGraphEmitter) include(tag store.Tag) (bool, error) {
	if e.allowed != nil && !e.allowed[tag.ID] {
		return false, nil
	}
	if e.opts.MinCount > 0 {
		count, err := TransitiveCount(e.db, tag.ID, e.memo, nil)
		if err != nil {
			return false, err
		}
		if count < e.opts.MinCount {
			return false, nil
		}
	}
	return true, nil
}

func (e *tagGraphEmitter) emit(tag store.Tag, depth int) error {
	ok, err := e.include(tag)
	if err != nil || !ok {
		return err
	}
	if err := e.node(tag); err != nil {
		return err
	}
	if e.opts.MaxDepth > 0 && depth >= e.opts.MaxDepth {
		return nil
	}

	impliedBy, err := e.db.TagImpliedBy(tag.ID)
	if err != nil {
		return err
	}
	for _, specific := range impliedBy {
		ok, err := e.include(specific)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if !e.tracker.Add(specific.Name, tag.Name) {
			continue
		}
		if err := e.emit(specific, depth+1); err != nil {
			return err
		}
		fmt.Fprintf(e.w, "\t%q -> %q;\n", specific.Name, tag.Name)
	}
	return nil
}

// node emits the tag's node statement once, styling tags without direct
// publications as implicit.
func (e *tagGraphEmitter) node(tag store.Tag) error {
	if e.emitted[tag.ID] {
		return nil
	}
	e.emitted[tag.ID] = true

	direct, err := e.db.PublicationsForTag(tag.ID, true)
	if err != nil {
		return err
	}
	count, err := TransitiveCount(e.db, tag.ID, e.memo, nil)
	if err != nil {
		return err
	}

	label := fmt.Sprintf("%s (%d)", tag.Name, count)
	if len(direct) == 0 {
		fmt.Fprintf(e.w, "\t%q [label = %q, style = dashed];\n", tag.Name, label)
	} else {
		fmt.Fprintf(e.w, "\t%q [label = %q];\n", tag.Name, label)
	}
	return nil
}

// tagFilter computes the set of tags reachable from the publication's
// direct tags over the implies relation. A nil publication id yields a nil
// filter, which admits every tag.
func tagFilter(db *store.DB, publicationID *int64) (map[int64]bool, error) {
	if publicationID == nil {
		return nil, nil
	}

	direct, err := db.TagsOf(*publicationID)
	if err != nil {
		return nil, err
	}

	allowed := make(map[int64]bool)
	var stack []int64
	for _, t := range direct {
		allowed[t.ID] = true
		stack = append(stack, t.ID)
	}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		implies, err := db.TagImplies(current)
		if err != nil {
			return nil, err
		}
		for _, t := range implies {
			if !allowed[t.ID] {
				allowed[t.ID] = true
				stack = append(stack, t.ID)
			}
		}
	}
	return allowed, nil
}
