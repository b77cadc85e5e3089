package importer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/blochberger/sokman/internal/s2"
	"github.com/blochberger/sokman/internal/store"
)

func newRepairer(db *store.DB, dumpPath string, papers map[string]*s2.Paper) (*Repairer, *strings.Builder) {
	var out strings.Builder
	return &Repairer{
		DB:       db,
		Papers:   &fakePapers{papers: papers},
		Console:  NewConsole(strings.NewReader(""), &out, &out),
		DumpPath: dumpPath,
	}, &out
}

func TestFixVariantReferences(t *testing.T) {
	db := openTestDB(t)

	master, _, err := db.GetOrCreatePublication(store.Publication{
		CiteKey: "DBLP:conf/ccs/Full19", Title: "Full", Year: 2019,
	})
	if err != nil {
		t.Fatal(err)
	}
	preprint, _, err := db.GetOrCreatePublication(store.Publication{
		CiteKey: "DBLP:journals/corr/abs-1901-00001", Title: "Preprint", Year: 2019,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.SetVariantOf(preprint.ID, master.ID); err != nil {
		t.Fatal(err)
	}

	citing, _, err := db.GetOrCreatePublication(store.Publication{
		CiteKey: "DBLP:conf/sp/Citing20", Title: "Citing", Year: 2020,
	})
	if err != nil {
		t.Fatal(err)
	}
	identifier := "[12]"
	if _, _, err := db.AddReference(citing.ID, preprint.ID, &identifier); err != nil {
		t.Fatal(err)
	}

	r, _ := newRepairer(db, "", nil)
	if err := r.FixVariantReferences(); err != nil {
		t.Fatalf("FixVariantReferences returned error: %v", err)
	}

	refs, err := db.ReferencesOf(citing.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 2 {
		t.Fatalf("got %d references, want the original and the redirected one", len(refs))
	}

	var fixed *store.ReferenceEdge
	for i := range refs {
		if refs[i].ReferenceID == master.ID {
			fixed = &refs[i]
		}
	}
	if fixed == nil {
		t.Fatal("no edge to the master publication")
	}
	if fixed.Identifier == nil || *fixed.Identifier != "[12]*" {
		t.Errorf("redirected identifier = %v, want starred original", fixed.Identifier)
	}

	// Running the pass again adds nothing.
	if err := r.FixVariantReferences(); err != nil {
		t.Fatal(err)
	}
	refs, err = db.ReferencesOf(citing.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 2 {
		t.Errorf("second pass changed the edge count to %d", len(refs))
	}
}

func TestReportUnknownKeys(t *testing.T) {
	db := openTestDB(t)

	dumpPath := filepath.Join(t.TempDir(), "dblp.xml")
	dump := `<dblp>
<article key="conf/ccs/Known19"><author>A</author><title>T</title><year>2019</year></article>
</dblp>`
	if err := os.WriteFile(dumpPath, []byte(dump), 0644); err != nil {
		t.Fatal(err)
	}

	for _, citeKey := range []string{"DBLP:conf/ccs/Known19", "DBLP:conf/ccs/Gone18"} {
		if _, _, err := db.GetOrCreatePublication(store.Publication{
			CiteKey: citeKey, Title: citeKey, Year: 2019,
		}); err != nil {
			t.Fatal(err)
		}
	}
	// Non-DBLP keys are not checked against the dump.
	if _, _, err := db.GetOrCreatePublication(store.Publication{
		CiteKey: "smith2019misc", Title: "Misc", Year: 2019,
	}); err != nil {
		t.Fatal(err)
	}

	r, out := newRepairer(db, dumpPath, nil)
	if err := r.ReportUnknownKeys(); err != nil {
		t.Fatalf("ReportUnknownKeys returned error: %v", err)
	}

	if !strings.Contains(out.String(), "not in dump: DBLP:conf/ccs/Gone18") {
		t.Errorf("missing key not reported:\n%s", out.String())
	}
	if strings.Contains(out.String(), "not in dump: DBLP:conf/ccs/Known19") {
		t.Errorf("known key reported as missing:\n%s", out.String())
	}
	if strings.Contains(out.String(), "smith2019misc") {
		t.Errorf("non-DBLP key checked against the dump:\n%s", out.String())
	}
}

func TestBackfillDOIs(t *testing.T) {
	db := openTestDB(t)

	dumpPath := filepath.Join(t.TempDir(), "dblp.xml")
	dump := `<dblp>
<article key="conf/ccs/Example19">
<author>Ada Example</author>
<title>Side Channels.</title>
<year>2019</year>
<ee>https://doi.org/10.1145/1.2</ee>
</article>
</dblp>`
	if err := os.WriteFile(dumpPath, []byte(dump), 0644); err != nil {
		t.Fatal(err)
	}

	publication, _, err := db.GetOrCreatePublication(store.Publication{
		CiteKey: "DBLP:conf/ccs/Example19", Title: "Side Channels", Year: 2019,
	})
	if err != nil {
		t.Fatal(err)
	}

	r, _ := newRepairer(db, dumpPath, nil)
	if err := r.BackfillDOIs(); err != nil {
		t.Fatalf("BackfillDOIs returned error: %v", err)
	}

	updated, err := db.PublicationByID(publication.ID)
	if err != nil {
		t.Fatal(err)
	}
	if updated.DOI != "10.1145/1.2" {
		t.Errorf("DOI = %q, want backfilled from the dump", updated.DOI)
	}
}

func TestBackfillPaperIDs(t *testing.T) {
	db := openTestDB(t)
	paperID := "cccccccccccccccccccccccccccccccccccccccc"

	linked, _, err := db.GetOrCreatePublication(store.Publication{
		CiteKey: "DBLP:conf/ccs/Linked19", Title: "Linked", Year: 2019, DOI: "10.1/linked",
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := db.GetOrCreatePublication(store.Publication{
		CiteKey: "DBLP:conf/ccs/Unknown18", Title: "Unknown", Year: 2018, DOI: "10.1/unknown",
	}); err != nil {
		t.Fatal(err)
	}

	r, out := newRepairer(db, "", map[string]*s2.Paper{
		"10.1/linked": paperFromJSON(t, fmt.Sprintf(`{"paperId": %q}`, paperID)),
	})
	if err := r.BackfillPaperIDs(context.Background()); err != nil {
		t.Fatalf("BackfillPaperIDs returned error: %v", err)
	}

	resolved, err := db.PublicationByPaperID(paperID)
	if err != nil {
		t.Fatalf("paper id not recorded: %v", err)
	}
	if resolved.ID != linked.ID {
		t.Errorf("paper id linked to publication %d, want %d", resolved.ID, linked.ID)
	}

	// A DOI unknown upstream is reported, not fatal.
	if !strings.Contains(out.String(), "no paper for DOI 10.1/unknown") {
		t.Errorf("unresolvable DOI not reported:\n%s", out.String())
	}
}
