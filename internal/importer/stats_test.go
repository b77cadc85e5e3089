package importer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/blochberger/sokman/internal/dblp"
	"github.com/blochberger/sokman/internal/store"
)

func TestStats(t *testing.T) {
	db := openTestDB(t)

	dumpPath := filepath.Join(t.TempDir(), "dblp.xml")
	dump := `<dblp>
<inproceedings key="conf/ccs/InDump19"><author>A</author><title>T</title><year>2019</year></inproceedings>
<article key="journals/corr/abs-1901-00001"><author>B</author><title>U</title><year>2019</year></article>
</dblp>`
	if err := os.WriteFile(dumpPath, []byte(dump), 0644); err != nil {
		t.Fatal(err)
	}

	source, _, err := db.GetOrCreateSource("DBLP")
	if err != nil {
		t.Fatal(err)
	}
	term, _, err := db.GetOrCreateSearchTerm("side channels")
	if err != nil {
		t.Fatal(err)
	}

	kept, _, err := db.GetOrCreatePublication(store.Publication{
		CiteKey: "DBLP:conf/ccs/InDump19", Title: "T", Year: 2019,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.AssignSource(kept.ID, source.ID, term.ID); err != nil {
		t.Fatal(err)
	}

	dropped, _, err := db.GetOrCreatePublication(store.Publication{
		CiteKey: "DBLP:journals/corr/abs-1901-00001", Title: "U", Year: 2019,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.AssignSource(dropped.ID, source.ID, term.ID); err != nil {
		t.Fatal(err)
	}
	criterion, _, err := db.GetOrCreateExclusionCriterion("off topic")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.AssignExclusion(dropped.ID, criterion.ID); err != nil {
		t.Fatal(err)
	}

	search := &fakeSearch{result: &dblp.SearchResult{
		Query: "side channels",
		Records: []dblp.Record{
			// Peer reviewed and in the dump.
			{Key: "conf/ccs/InDump19", Title: "T", Year: 2019, Authors: []string{"A"}},
			// Preprint, in the dump, but not peer reviewed.
			{Key: "journals/corr/abs-1901-00001", Title: "U", Year: 2019, Authors: []string{"B"}},
			// Not in the dump at all.
			{Key: "conf/sp/Elsewhere20", Title: "V", Year: 2020, Authors: []string{"C"}},
		},
		Total: 3,
	}}

	var out strings.Builder
	stats := &Stats{
		DB:       db,
		Search:   search,
		Console:  NewConsole(strings.NewReader(""), &out, &out),
		DumpPath: dumpPath,
	}
	if err := stats.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	for _, want := range []string{
		"Total publications:    2",
		"- peer reviewed:       1",
		"- relevant:            1",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}
