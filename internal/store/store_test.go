package store

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "sok.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func addPublication(t *testing.T, db *DB, citeKey, title string, year int) Publication {
	t.Helper()
	p, _, err := db.GetOrCreatePublication(Publication{CiteKey: citeKey, Title: title, Year: year})
	if err != nil {
		t.Fatalf("creating publication %s: %v", citeKey, err)
	}
	return p
}

func strPtr(s string) *string {
	return &s
}

func TestGetOrCreateIdempotence(t *testing.T) {
	db := openTestDB(t)

	author, created, err := db.GetOrCreateAuthor("Ada Example")
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Error("first GetOrCreateAuthor should create")
	}

	again, created, err := db.GetOrCreateAuthor("Ada Example")
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Error("second GetOrCreateAuthor should not create")
	}
	if again.ID != author.ID {
		t.Errorf("ids differ: %d vs %d", again.ID, author.ID)
	}

	p := addPublication(t, db, "DBLP:conf/ccs/Example19", "Side Channels", 2019)
	same, created, err := db.GetOrCreatePublication(Publication{CiteKey: "DBLP:conf/ccs/Example19", Title: "ignored", Year: 1})
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Error("second GetOrCreatePublication should not create")
	}
	if same.ID != p.ID || same.Title != "Side Channels" {
		t.Errorf("existing publication not returned unchanged: %+v", same)
	}
}

func TestPublicationLookup(t *testing.T) {
	db := openTestDB(t)

	peerReviewed := true
	first, last := 100, 110
	created, _, err := db.GetOrCreatePublication(Publication{
		CiteKey:      "DBLP:conf/ccs/Example19",
		Title:        "Side Channels",
		Year:         2019,
		DOI:          "10.1145/1.2",
		PeerReviewed: &peerReviewed,
		FirstPage:    &first,
		LastPage:     &last,
	})
	if err != nil {
		t.Fatal(err)
	}

	byKey, err := db.PublicationByCiteKey("DBLP:conf/ccs/Example19")
	if err != nil {
		t.Fatal(err)
	}
	if byKey.ID != created.ID {
		t.Errorf("ByCiteKey returned id %d, want %d", byKey.ID, created.ID)
	}
	if byKey.PeerReviewed == nil || !*byKey.PeerReviewed {
		t.Error("PeerReviewed not round-tripped")
	}
	if byKey.FirstPage == nil || *byKey.FirstPage != 100 || byKey.LastPage == nil || *byKey.LastPage != 110 {
		t.Errorf("pages not round-tripped: %+v", byKey)
	}

	byDOI, err := db.PublicationByDOI("10.1145/1.2")
	if err != nil {
		t.Fatal(err)
	}
	if byDOI.ID != created.ID {
		t.Errorf("ByDOI returned id %d, want %d", byDOI.ID, created.ID)
	}

	if _, err := db.PublicationByCiteKey("DBLP:none/none/Missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing publication: got %v, want ErrNotFound", err)
	}
}

func TestMultiplePublicationsWithoutDOI(t *testing.T) {
	db := openTestDB(t)

	// The doi column is unique but NULLs never collide.
	addPublication(t, db, "DBLP:a/b/C1", "One", 2001)
	addPublication(t, db, "DBLP:a/b/C2", "Two", 2002)

	missing, err := db.PublicationsWithoutDOI()
	if err != nil {
		t.Fatal(err)
	}
	if len(missing) != 2 {
		t.Errorf("got %d publications without DOI, want 2", len(missing))
	}
}

func TestAssignAuthorPositions(t *testing.T) {
	db := openTestDB(t)

	p := addPublication(t, db, "DBLP:a/b/C1", "One", 2001)
	ada, _, _ := db.GetOrCreateAuthor("Ada Example")
	bob, _, _ := db.GetOrCreateAuthor("Bob Sample")

	for i, a := range []Author{bob, ada} {
		created, err := db.AssignAuthor(p.ID, a.ID, i)
		if err != nil {
			t.Fatal(err)
		}
		if !created {
			t.Errorf("AssignAuthor(%d) should create", a.ID)
		}
	}

	// Re-assigning is a no-op.
	created, err := db.AssignAuthor(p.ID, bob.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Error("duplicate AssignAuthor should not create")
	}

	authors, err := db.AuthorsOf(p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(authors) != 2 || authors[0].Name != "Bob Sample" || authors[1].Name != "Ada Example" {
		t.Errorf("authors not ordered by position: %v", authors)
	}
}

func TestAddReference(t *testing.T) {
	db := openTestDB(t)

	citing := addPublication(t, db, "DBLP:a/b/C1", "One", 2001)
	cited := addPublication(t, db, "DBLP:a/b/C2", "Two", 2002)

	edge, created, err := db.AddReference(citing.ID, cited.ID, strPtr("[7]"))
	if err != nil {
		t.Fatal(err)
	}
	if !created || edge.Identifier == nil || *edge.Identifier != "[7]" {
		t.Errorf("first AddReference: created=%v edge=%+v", created, edge)
	}

	// The existing edge wins, including its identifier.
	edge, created, err = db.AddReference(citing.ID, cited.ID, strPtr("[8]"))
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Error("duplicate AddReference should not create")
	}
	if edge.Identifier == nil || *edge.Identifier != "[7]" {
		t.Errorf("existing identifier not preserved: %+v", edge)
	}

	to, err := db.ReferencesTo(cited.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(to) != 1 || to[0].PublicationID != citing.ID {
		t.Errorf("ReferencesTo = %v", to)
	}
}

func TestFindTag(t *testing.T) {
	db := openTestDB(t)

	if _, _, err := db.GetOrCreateTag("caches"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := db.GetOrCreateTag("cache attacks"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := db.GetOrCreateTag("fuzzing"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"numeric id", "1", "caches"},
		{"exact name beats substring", "caches", "caches"},
		{"unique substring", "fuzz", "fuzzing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tag, err := db.FindTag(tt.value)
			if err != nil {
				t.Fatalf("FindTag(%q): %v", tt.value, err)
			}
			if tag.Name != tt.want {
				t.Errorf("FindTag(%q) = %q, want %q", tt.value, tag.Name, tt.want)
			}
		})
	}

	if _, err := db.FindTag("cach"); err == nil || !strings.Contains(err.Error(), "cache") {
		t.Errorf("ambiguous FindTag should list candidates, got %v", err)
	}

	if _, err := db.FindTag("nope"); err == nil {
		t.Error("FindTag of unknown tag should fail")
	}
}

func TestImplyTag(t *testing.T) {
	db := openTestDB(t)

	specific, _, _ := db.GetOrCreateTag("cache attacks")
	general, _, _ := db.GetOrCreateTag("side channels")

	created, err := db.ImplyTag(specific.ID, general.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Error("first ImplyTag should create")
	}

	created, err = db.ImplyTag(specific.ID, general.ID)
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Error("duplicate ImplyTag should not create")
	}

	if _, err := db.ImplyTag(specific.ID, specific.ID); err == nil {
		t.Error("self-implication should fail")
	}

	implies, err := db.TagImplies(specific.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(implies) != 1 || implies[0].ID != general.ID {
		t.Errorf("TagImplies = %v", implies)
	}

	impliedBy, err := db.TagImpliedBy(general.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(impliedBy) != 1 || impliedBy[0].ID != specific.ID {
		t.Errorf("TagImpliedBy = %v", impliedBy)
	}

	roots, err := db.RootTags()
	if err != nil {
		t.Fatal(err)
	}
	if len(roots) != 1 || roots[0].ID != general.ID {
		t.Errorf("RootTags = %v", roots)
	}
}

func TestMergeTags(t *testing.T) {
	db := openTestDB(t)

	lhs, _, _ := db.GetOrCreateTag("caches")
	rhs, _, _ := db.GetOrCreateTag("cache attacks")

	both := addPublication(t, db, "DBLP:a/b/Both", "Both", 2001)
	only := addPublication(t, db, "DBLP:a/b/Only", "Only", 2002)

	if _, err := db.AssignTag(both.ID, lhs.ID, strPtr("L1 caches")); err != nil {
		t.Fatal(err)
	}
	if _, err := db.AssignTag(both.ID, rhs.ID, strPtr("flush+reload")); err != nil {
		t.Fatal(err)
	}
	if _, err := db.AssignTag(only.ID, rhs.ID, nil); err != nil {
		t.Fatal(err)
	}

	results, err := db.MergeTags(lhs.ID, rhs.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d merge results, want 2", len(results))
	}

	comment, exists, err := db.PublicationTagComment(both.ID, lhs.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !exists || comment == nil || *comment != "L1 caches; flush+reload" {
		t.Errorf("merged comment = %v", comment)
	}
	if _, exists, _ := db.PublicationTagComment(both.ID, rhs.ID); exists {
		t.Error("rhs assignment should be removed")
	}

	tags, err := db.TagsOf(only.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(tags) != 1 || tags[0].ID != lhs.ID {
		t.Errorf("TagsOf(only) = %v", tags)
	}

	// The rhs tag itself survives, only its assignments moved.
	if _, err := db.TagByName("cache attacks"); err != nil {
		t.Errorf("rhs tag deleted: %v", err)
	}

	if _, err := db.MergeTags(lhs.ID, lhs.ID); err == nil {
		t.Error("self-merge should fail")
	}
}

func TestAddPaper(t *testing.T) {
	db := openTestDB(t)

	p1 := addPublication(t, db, "DBLP:a/b/C1", "One", 2001)
	p2 := addPublication(t, db, "DBLP:a/b/C2", "Two", 2002)
	paperID := "0123456789abcdef0123456789abcdef01234567"

	created, err := db.AddPaper(paperID, p1.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Error("first AddPaper should create")
	}

	created, err = db.AddPaper(paperID, p1.ID)
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Error("duplicate AddPaper should not create")
	}

	// Same paper id on a different publication is an error.
	if _, err := db.AddPaper(paperID, p2.ID); err == nil {
		t.Error("AddPaper should reject a paper id owned by another publication")
	}

	for _, invalid := range []string{"", "xyz", "0123456789ABCDEF0123456789ABCDEF01234567"} {
		if _, err := db.AddPaper(invalid, p1.ID); err == nil {
			t.Errorf("AddPaper(%q) should reject malformed paper id", invalid)
		}
	}

	found, err := db.PublicationByPaperID(paperID)
	if err != nil {
		t.Fatal(err)
	}
	if found.ID != p1.ID {
		t.Errorf("PublicationByPaperID = %+v", found)
	}
}

func TestExclusionAndRelevance(t *testing.T) {
	db := openTestDB(t)

	kept := addPublication(t, db, "DBLP:a/b/Kept", "Kept", 2001)
	dropped := addPublication(t, db, "DBLP:a/b/Dropped", "Dropped", 2002)

	criterion, _, err := db.GetOrCreateExclusionCriterion("off topic")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.AssignExclusion(dropped.ID, criterion.ID); err != nil {
		t.Fatal(err)
	}

	excluded, err := db.IsExcluded(dropped.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !excluded {
		t.Error("IsExcluded(dropped) = false")
	}
	if excluded, _ := db.IsExcluded(kept.ID); excluded {
		t.Error("IsExcluded(kept) = true")
	}

	relevant, err := db.RelevantPublications()
	if err != nil {
		t.Fatal(err)
	}
	if len(relevant) != 1 || relevant[0].ID != kept.ID {
		t.Errorf("RelevantPublications = %v", relevant)
	}
}

func TestSetVariantOf(t *testing.T) {
	db := openTestDB(t)

	master := addPublication(t, db, "DBLP:conf/x/Full20", "Full", 2020)
	variant := addPublication(t, db, "DBLP:journals/corr/abs-2001-00001", "Preprint", 2020)

	if err := db.SetVariantOf(variant.ID, master.ID); err != nil {
		t.Fatal(err)
	}
	if err := db.SetVariantOf(master.ID, master.ID); err == nil {
		t.Error("self-variant should fail")
	}

	withVariants, err := db.PublicationsWithVariants()
	if err != nil {
		t.Fatal(err)
	}
	if len(withVariants) != 1 || withVariants[0].ID != variant.ID {
		t.Errorf("PublicationsWithVariants = %v", withVariants)
	}
	if withVariants[0].VariantOf == nil || *withVariants[0].VariantOf != master.ID {
		t.Errorf("VariantOf = %v", withVariants[0].VariantOf)
	}
}

func TestSetClassified(t *testing.T) {
	db := openTestDB(t)

	p := addPublication(t, db, "DBLP:conf/x/Read20", "Read", 2020)
	if p.Classified {
		t.Error("new publication should not be classified")
	}

	if err := db.SetClassified(p.ID, true); err != nil {
		t.Fatal(err)
	}
	got, err := db.PublicationByCiteKey(p.CiteKey)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Classified {
		t.Error("publication not marked classified")
	}

	if err := db.SetClassified(p.ID, false); err != nil {
		t.Fatal(err)
	}
	got, err = db.PublicationByCiteKey(p.CiteKey)
	if err != nil {
		t.Fatal(err)
	}
	if got.Classified {
		t.Error("classified mark not cleared")
	}
}

func TestWithTxRollback(t *testing.T) {
	db := openTestDB(t)

	failure := errors.New("deliberate")
	err := db.WithTx(func(tx *DB) error {
		if _, _, err := tx.GetOrCreatePublication(Publication{CiteKey: "DBLP:a/b/C1", Title: "One", Year: 2001}); err != nil {
			return err
		}
		return failure
	})
	if !errors.Is(err, failure) {
		t.Fatalf("WithTx returned %v, want the callback error", err)
	}

	if _, err := db.PublicationByCiteKey("DBLP:a/b/C1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("publication survived rollback: %v", err)
	}

	// A successful transaction commits.
	err = db.WithTx(func(tx *DB) error {
		_, _, err := tx.GetOrCreatePublication(Publication{CiteKey: "DBLP:a/b/C2", Title: "Two", Year: 2002})
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.PublicationByCiteKey("DBLP:a/b/C2"); err != nil {
		t.Errorf("committed publication not found: %v", err)
	}
}
