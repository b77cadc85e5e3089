package importer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/blochberger/sokman/internal/choices"
	"github.com/blochberger/sokman/internal/s2"
	"github.com/blochberger/sokman/internal/store"
)

const (
	basePaperID     = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	neighborPaperID = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

func loadSnowballChoices(t *testing.T) *choices.SnowballChoices {
	t.Helper()
	c, err := choices.LoadSnowball(filepath.Join(t.TempDir(), "snowball-choices.json"))
	if err != nil {
		t.Fatal(err)
	}
	return c
}

// snowballBase stores a publication and links it to the base paper id, so
// the snowball walk has a starting point.
func snowballBase(t *testing.T, db *store.DB) store.Publication {
	t.Helper()
	publication, _, err := db.GetOrCreatePublication(store.Publication{
		CiteKey: "DBLP:conf/ccs/Base19", Title: "Base", Year: 2019,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.AddPaper(basePaperID, publication.ID); err != nil {
		t.Fatal(err)
	}
	return publication
}

func newSnowball(t *testing.T, db *store.DB, input string, papers map[string]*s2.Paper) (*Snowball, *strings.Builder) {
	t.Helper()
	var out strings.Builder
	return &Snowball{
		DB:      db,
		Papers:  &fakePapers{papers: papers},
		Choices: loadSnowballChoices(t),
		Console: NewConsole(strings.NewReader(input), &out, &out),
	}, &out
}

func TestSnowballResolvesKnownPaperSilently(t *testing.T) {
	db := openTestDB(t)
	base := snowballBase(t, db)

	known, _, err := db.GetOrCreatePublication(store.Publication{
		CiteKey: "DBLP:conf/sp/Known18", Title: "Known", Year: 2018,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.AddPaper(neighborPaperID, known.ID); err != nil {
		t.Fatal(err)
	}

	// The base paper references the known one. No input is provided, so any
	// prompt would abort the run.
	sb, out := newSnowball(t, db, "", map[string]*s2.Paper{
		basePaperID: paperFromJSON(t, fmt.Sprintf(
			`{"paperId": %q, "references": [{"paperId": %q, "title": "Known"}]}`,
			basePaperID, neighborPaperID)),
	})
	if err := sb.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if strings.Contains(out.String(), "Import?") {
		t.Errorf("known neighbor was prompted for:\n%s", out.String())
	}

	refs, err := db.ReferencesOf(base.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 1 || refs[0].ReferenceID != known.ID {
		t.Errorf("reference edge not recorded: %v", refs)
	}
}

func TestSnowballResolvesByDOI(t *testing.T) {
	db := openTestDB(t)
	base := snowballBase(t, db)

	known, _, err := db.GetOrCreatePublication(store.Publication{
		CiteKey: "DBLP:conf/sp/Known18", Title: "Known", Year: 2018, DOI: "10.1/known",
	})
	if err != nil {
		t.Fatal(err)
	}

	sb, _ := newSnowball(t, db, "", map[string]*s2.Paper{
		basePaperID: paperFromJSON(t, fmt.Sprintf(
			`{"paperId": %q, "references": [{"paperId": %q, "doi": "10.1/known", "title": "Known"}]}`,
			basePaperID, neighborPaperID)),
	})
	if err := sb.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	// The DOI match also records the paper id for future runs.
	byPaper, err := db.PublicationByPaperID(neighborPaperID)
	if err != nil {
		t.Fatalf("paper id not linked on DOI match: %v", err)
	}
	if byPaper.ID != known.ID {
		t.Errorf("paper id linked to publication %d, want %d", byPaper.ID, known.ID)
	}

	refs, err := db.ReferencesOf(base.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 1 {
		t.Errorf("reference edge not recorded: %v", refs)
	}
}

func TestSnowballImportReference(t *testing.T) {
	db := openTestDB(t)
	base := snowballBase(t, db)

	stub := fmt.Sprintf(`{"paperId": %q, "title": "Fresh Work"}`, neighborPaperID)
	full := fmt.Sprintf(`{
		"paperId": %q,
		"title": "Fresh Work",
		"year": 2021,
		"doi": "10.1/fresh",
		"authors": [{"name": "Grace B. Hopper"}]
	}`, neighborPaperID)

	sb, _ := newSnowball(t, db, "y\n", map[string]*s2.Paper{
		basePaperID: paperFromJSON(t, fmt.Sprintf(
			`{"paperId": %q, "references": [%s]}`, basePaperID, stub)),
		neighborPaperID: paperFromJSON(t, full),
	})
	if err := sb.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	imported, err := db.PublicationByCiteKey("hopper2021fresh")
	if err != nil {
		t.Fatalf("imported publication not found: %v", err)
	}
	if imported.Title != "Fresh Work" || imported.Year != 2021 || imported.DOI != "10.1/fresh" {
		t.Errorf("unexpected publication: %+v", imported)
	}
	if imported.PeerReviewed == nil || *imported.PeerReviewed {
		t.Error("snowballed publication should default to not peer reviewed")
	}

	// The base cites the imported reference.
	refs, err := db.ReferencesOf(base.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 1 || refs[0].ReferenceID != imported.ID {
		t.Errorf("reference edge wrong: %v", refs)
	}
}

func TestSnowballImportCitationDirection(t *testing.T) {
	db := openTestDB(t)
	base := snowballBase(t, db)

	full := fmt.Sprintf(`{
		"paperId": %q,
		"title": "Newer Work",
		"year": 2022,
		"authors": [{"name": "Ada Example"}]
	}`, neighborPaperID)

	sb, _ := newSnowball(t, db, "y\n", map[string]*s2.Paper{
		basePaperID: paperFromJSON(t, fmt.Sprintf(
			`{"paperId": %q, "citations": [%s]}`, basePaperID, full)),
		neighborPaperID: paperFromJSON(t, full),
	})
	if err := sb.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	imported, err := db.PublicationByCiteKey("example2022newer")
	if err != nil {
		t.Fatalf("imported publication not found: %v", err)
	}

	// A citation points the other way: the imported publication cites the
	// base.
	refs, err := db.ReferencesOf(imported.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 1 || refs[0].ReferenceID != base.ID {
		t.Errorf("citation edge wrong: %v", refs)
	}
}

func TestSnowballCiteKeyCollision(t *testing.T) {
	db := openTestDB(t)
	base := snowballBase(t, db)

	// An unrelated publication already occupies the key the neighbor would
	// synthesize.
	if _, _, err := db.GetOrCreatePublication(store.Publication{
		CiteKey: "hopper2021fresh", Title: "Fresh Start", Year: 2021,
	}); err != nil {
		t.Fatal(err)
	}

	full := fmt.Sprintf(`{
		"paperId": %q,
		"title": "Fresh Work",
		"year": 2021,
		"authors": [{"name": "Grace B. Hopper"}]
	}`, neighborPaperID)

	sb, _ := newSnowball(t, db, "y\n", map[string]*s2.Paper{
		basePaperID: paperFromJSON(t, fmt.Sprintf(
			`{"paperId": %q, "references": [{"paperId": %q, "title": "Fresh Work"}]}`,
			basePaperID, neighborPaperID)),
		neighborPaperID: paperFromJSON(t, full),
	})
	err := sb.Run(context.Background())
	if err == nil {
		t.Fatal("colliding cite key should fail the import")
	}
	if !strings.Contains(err.Error(), "hopper2021fresh") {
		t.Errorf("error does not name the colliding key: %v", err)
	}

	// The transaction rolled back: nothing got attached to the unrelated
	// publication.
	if _, err := db.PublicationByPaperID(neighborPaperID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("neighbor paper id linked despite collision: %v", err)
	}
	refs, err := db.ReferencesOf(base.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 0 {
		t.Errorf("reference edge recorded despite collision: %v", refs)
	}
	existing, err := db.PublicationByCiteKey("hopper2021fresh")
	if err != nil {
		t.Fatal(err)
	}
	if existing.Title != "Fresh Start" {
		t.Errorf("existing publication changed: %+v", existing)
	}
}

func TestSnowballSameWorkUnderExistingKey(t *testing.T) {
	db := openTestDB(t)
	existing, _, err := db.GetOrCreatePublication(store.Publication{
		CiteKey: "hopper2021fresh", Title: "Fresh Work", Year: 2021,
	})
	if err != nil {
		t.Fatal(err)
	}
	snowballBase(t, db)

	full := fmt.Sprintf(`{
		"paperId": %q,
		"title": "Fresh Work",
		"year": 2021,
		"authors": [{"name": "Grace B. Hopper"}]
	}`, neighborPaperID)

	sb, _ := newSnowball(t, db, "y\n", map[string]*s2.Paper{
		basePaperID: paperFromJSON(t, fmt.Sprintf(
			`{"paperId": %q, "references": [{"paperId": %q, "title": "Fresh Work"}]}`,
			basePaperID, neighborPaperID)),
		neighborPaperID: paperFromJSON(t, full),
	})
	if err := sb.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	linked, err := db.PublicationByPaperID(neighborPaperID)
	if err != nil {
		t.Fatal(err)
	}
	if linked.ID != existing.ID {
		t.Errorf("paper id linked to publication %d, want %d", linked.ID, existing.ID)
	}
}

func TestSnowballAbstractPrompt(t *testing.T) {
	db := openTestDB(t)
	snowballBase(t, db)

	full := fmt.Sprintf(`{
		"paperId": %q,
		"title": "Fresh Work",
		"year": 2021,
		"abstract": "We measure things.",
		"authors": [{"name": "Grace B. Hopper"}]
	}`, neighborPaperID)

	sb, out := newSnowball(t, db, "a\ny\n", map[string]*s2.Paper{
		basePaperID: paperFromJSON(t, fmt.Sprintf(
			`{"paperId": %q, "references": [{"paperId": %q, "title": "Fresh Work"}]}`,
			basePaperID, neighborPaperID)),
		neighborPaperID: paperFromJSON(t, full),
	})
	if err := sb.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !strings.Contains(out.String(), "We measure things.") {
		t.Errorf("abstract not shown:\n%s", out.String())
	}
	if _, err := db.PublicationByCiteKey("hopper2021fresh"); err != nil {
		t.Errorf("publication not imported after showing the abstract: %v", err)
	}
}

func TestSnowballRejectPersisted(t *testing.T) {
	db := openTestDB(t)
	snowballBase(t, db)

	graph := fmt.Sprintf(
		`{"paperId": %q, "references": [{"title": "Unlinked Tech Report", "year": 1999}]}`,
		basePaperID)

	sb, _ := newSnowball(t, db, "n\n", map[string]*s2.Paper{
		basePaperID: paperFromJSON(t, graph),
	})
	if err := sb.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if sb.Choices.Len() != 1 {
		t.Errorf("rejection not recorded, Len() = %d", sb.Choices.Len())
	}

	// The same candidate is skipped on the next pass: content-hash identity,
	// since the reference carries no paper id.
	sb2, out := newSnowball(t, db, "", map[string]*s2.Paper{
		basePaperID: paperFromJSON(t, graph),
	})
	sb2.Choices = sb.Choices
	if err := sb2.Run(context.Background()); err != nil {
		t.Fatalf("second Run returned error: %v", err)
	}
	if strings.Contains(out.String(), "Import?") {
		t.Errorf("rejected candidate was prompted for again:\n%s", out.String())
	}
}

func TestSnowballSkipDirections(t *testing.T) {
	db := openTestDB(t)
	snowballBase(t, db)

	graph := fmt.Sprintf(`{
		"paperId": %q,
		"references": [{"title": "Ref", "year": 2001}],
		"citations": [{"title": "Cite", "year": 2002}]
	}`, basePaperID)

	// With both directions skipped there is nothing to prompt for.
	sb, out := newSnowball(t, db, "", map[string]*s2.Paper{
		basePaperID: paperFromJSON(t, graph),
	})
	sb.SkipReferences = true
	sb.SkipCitations = true
	if err := sb.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if strings.Contains(out.String(), "Import?") {
		t.Errorf("skipped direction still prompted:\n%s", out.String())
	}
}

func TestSnowballExcludedBaseSkipped(t *testing.T) {
	db := openTestDB(t)
	base := snowballBase(t, db)

	criterion, _, err := db.GetOrCreateExclusionCriterion("off topic")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.AssignExclusion(base.ID, criterion.ID); err != nil {
		t.Fatal(err)
	}

	// The excluded base is never walked, so its paper is never fetched.
	sb, _ := newSnowball(t, db, "", nil)
	if err := sb.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
}

func TestSynthesizeCiteKey(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			"last name word",
			`{"title": "Fresh Work", "year": 2021, "authors": [{"name": "Grace B. Hopper"}]}`,
			"hopper2021fresh",
		},
		{
			"lowercased",
			`{"title": "SGX Explained", "year": 2016, "authors": [{"name": "Victor COSTAN"}]}`,
			"costan2016sgx",
		},
		{
			"first author only",
			`{"title": "Joint Work", "year": 2020, "authors": [{"name": "Ada Example"}, {"name": "Bob Sample"}]}`,
			"example2020joint",
		},
		{
			"empty title",
			`{"title": "", "year": 2020, "authors": [{"name": "Ada Example"}]}`,
			"example2020",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SynthesizeCiteKey(paperFromJSON(t, tt.doc))
			if err != nil {
				t.Fatalf("SynthesizeCiteKey returned error: %v", err)
			}
			if got != tt.want {
				t.Errorf("SynthesizeCiteKey = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSynthesizeCiteKeyErrors(t *testing.T) {
	for _, doc := range []string{
		`{"title": "No Authors", "year": 2020}`,
		`{"title": "Blank Author", "year": 2020, "authors": [{"name": "  "}]}`,
	} {
		if _, err := SynthesizeCiteKey(paperFromJSON(t, doc)); err == nil {
			t.Errorf("SynthesizeCiteKey(%s) should fail", doc)
		}
	}
}
