package dblp

import (
	"bufio"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// KeyCachePath returns the path of the cache file that sits next to the
// dump and holds the precomputed key to element-type map.
func KeyCachePath(dumpPath string) string {
	return strings.TrimSuffix(dumpPath, filepath.Ext(dumpPath)) + ".keys.json"
}

// AllKeys returns the key to element-type mapping for every publication
// element in the dump. The full scan is expensive, so the result is cached
// next to the dump; deleting the cache file forces a re-scan.
func AllKeys(dumpPath string) (map[string]string, error) {
	cachePath := KeyCachePath(dumpPath)

	if data, err := os.ReadFile(cachePath); err == nil {
		var entries map[string]string
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("parsing key cache %s: %w", cachePath, err)
		}
		return entries, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading key cache: %w", err)
	}

	f, err := os.Open(dumpPath)
	if err != nil {
		return nil, fmt.Errorf("opening dump: %w", err)
	}
	defer f.Close()

	entries, err := scanKeys(bufio.NewReaderSize(f, 1<<20))
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("encoding key cache: %w", err)
	}
	if err := os.WriteFile(cachePath, data, 0644); err != nil {
		return nil, fmt.Errorf("writing key cache: %w", err)
	}

	return entries, nil
}

// AllCiteKeys returns the set of prefixed cite keys present in the dump,
// using the same on-disk cache as AllKeys.
func AllCiteKeys(dumpPath string) (map[string]bool, error) {
	entries, err := AllKeys(dumpPath)
	if err != nil {
		return nil, err
	}

	keys := make(map[string]bool, len(entries))
	for key := range entries {
		keys[CiteKeyPrefix+key] = true
	}
	return keys, nil
}

// scanKeys walks the whole document, with no key filter and no early
// termination, recording the element type of every publication element.
func scanKeys(r io.Reader) (map[string]string, error) {
	d := newDecoder(r)
	entries := make(map[string]string)

	for {
		tok, err := d.Token()
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			return nil, fmt.Errorf("scanning dump: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || !PublicationElements[start.Name.Local] {
			continue
		}

		key, ok := attr(start, "key")
		if !ok {
			panic(fmt.Sprintf("dblp: <%s> element without key attribute", start.Name.Local))
		}
		entries[key] = start.Name.Local
	}
}
