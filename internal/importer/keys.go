package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/blochberger/sokman/internal/dblp"
	"github.com/blochberger/sokman/internal/store"
)

// RecordAPI resolves a single publication key against the bibliographic
// service.
type RecordAPI interface {
	FetchRecord(ctx context.Context, key string) (dblp.Record, error)
}

// KeyImporter imports publications by their cite keys, either from the
// local dump or record by record through the API.
type KeyImporter struct {
	DB         *store.DB
	Records    RecordAPI
	Console    *Console
	SourceName string
	DumpPath   string
}

// Run imports the publications behind the given cite keys. Keys already
// present in the store are only re-labeled with the search term, if one is
// given. When no record API is configured, the records are extracted from
// the local dump in a single streaming pass.
func (i *KeyImporter) Run(ctx context.Context, citeKeys []string, searchTermName string) error {
	var searchTerm *store.SearchTerm
	if searchTermName != "" {
		term, created, err := i.DB.GetOrCreateSearchTerm(searchTermName)
		if err != nil {
			return err
		}
		if created {
			i.Console.Successf("Created search term: %s", term.Name)
		}
		searchTerm = &term
	}

	wanted := make(map[string]bool)
	var publications []store.Publication
	seen := make(map[string]bool)
	for _, citeKey := range citeKeys {
		if seen[citeKey] {
			continue
		}
		seen[citeKey] = true

		publication, err := i.DB.PublicationByCiteKey(citeKey)
		if err == nil {
			publications = append(publications, publication)
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		if !strings.HasPrefix(citeKey, dblp.CiteKeyPrefix) {
			return fmt.Errorf("invalid cite key: %s", citeKey)
		}
		wanted[dblp.StripCiteKeyPrefix(citeKey)] = true
	}

	if len(wanted) > 0 {
		records, err := i.fetchRecords(ctx, wanted)
		if err != nil {
			return err
		}

		for _, record := range records {
			var publication store.Publication
			err := i.DB.WithTx(func(tx *store.DB) error {
				var err error
				publication, err = storeRecordPublication(tx, i.Console, record)
				return err
			})
			if err != nil {
				return err
			}
			publications = append(publications, publication)
		}
	}

	if searchTerm == nil {
		return nil
	}

	source, _, err := i.DB.GetOrCreateSource(i.SourceName)
	if err != nil {
		return err
	}
	search := &SearchImporter{DB: i.DB, Console: i.Console, SourceName: i.SourceName}
	for _, publication := range publications {
		if err := search.assignSource(publication, source, *searchTerm); err != nil {
			return err
		}
	}
	return nil
}

func (i *KeyImporter) fetchRecords(ctx context.Context, wanted map[string]bool) ([]dblp.Record, error) {
	if i.Records != nil {
		i.Console.Infof("Querying DBLP...")
		var records []dblp.Record
		for key := range wanted {
			record, err := i.Records.FetchRecord(ctx, key)
			if err != nil {
				return nil, fmt.Errorf("fetching record %s: %w", key, err)
			}
			records = append(records, record)
		}
		return records, nil
	}

	i.Console.Infof("Parsing DBLP dump '%s'...", i.DumpPath)
	records, err := dblp.FromDump(i.DumpPath, wanted)
	if err != nil {
		return nil, err
	}
	i.Console.Successf("done.")
	return records, nil
}
