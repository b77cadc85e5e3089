package dblp

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// extractor is a SAX-style handler over the decoder's token stream. It
// accumulates element text only while inside a wanted publication element
// and stops the scan as soon as every wanted key has been found.
type extractor struct {
	wanted  map[string]bool
	stack   []string
	records []Record

	// State of the publication currently being assembled. key is "" when
	// no wanted element is open.
	key     string
	title   *strings.Builder
	author  *strings.Builder
	authors []string
	year    *int
	pages   *PageRange
	ee      *strings.Builder
	urls    []string
}

// FromDump extracts one Record per publication element in the dump whose key
// is in wanted. Each found key is removed from wanted, and parsing stops
// early once the set is empty. The dump is assumed well formed; malformed
// nesting panics.
func FromDump(path string, wanted map[string]bool) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dump: %w", err)
	}
	defer f.Close()

	return Extract(bufio.NewReaderSize(f, 1<<20), wanted)
}

// Extract runs the bounded-key extraction over an XML stream. The wanted set
// is mutated: keys are removed as their records complete.
func Extract(r io.Reader, wanted map[string]bool) ([]Record, error) {
	if len(wanted) == 0 {
		return nil, nil
	}

	e := &extractor{wanted: wanted}
	d := newDecoder(r)

	for {
		tok, err := d.Token()
		if err == io.EOF {
			return e.records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("parsing dump: %w", err)
		}

		done, err := e.handle(tok)
		if err != nil {
			return nil, err
		}
		if done {
			return e.records, nil
		}
	}
}

// newDecoder configures a decoder for the dump. DBLP uses HTML entities
// declared in its DTD, which encoding/xml does not read.
func newDecoder(r io.Reader) *xml.Decoder {
	d := xml.NewDecoder(r)
	d.Strict = false
	d.Entity = xml.HTMLEntity
	return d
}

// handle processes a single token. It reports done once the final wanted
// record has completed.
func (e *extractor) handle(tok xml.Token) (done bool, err error) {
	switch t := tok.(type) {
	case xml.StartElement:
		e.startElement(t)
	case xml.EndElement:
		if err := e.endElement(t); err != nil {
			return false, err
		}
		return e.key == "" && len(e.wanted) == 0, nil
	case xml.CharData:
		if err := e.characters(string(t)); err != nil {
			return false, err
		}
	}
	return false, nil
}

func (e *extractor) startElement(t xml.StartElement) {
	name := t.Name.Local
	e.stack = append(e.stack, name)

	if PublicationElements[name] {
		e.startPublication(name, t)
	}

	if e.key == "" {
		return
	}

	switch name {
	case "author":
		e.author = &strings.Builder{}
	case "title":
		if e.title == nil {
			e.title = &strings.Builder{}
		}
	case "ee":
		e.ee = &strings.Builder{}
	}
}

func (e *extractor) startPublication(name string, t xml.StartElement) {
	if e.key != "" {
		panic(fmt.Sprintf("dblp: <%s> opened inside an unfinished publication %q", name, e.key))
	}

	key, ok := attr(t, "key")
	if !ok {
		panic(fmt.Sprintf("dblp: <%s> element without key attribute", name))
	}

	if !e.wanted[key] {
		return // This is not the publication you are looking for.
	}

	delete(e.wanted, key)
	e.key = key
}

func (e *extractor) endElement(t xml.EndElement) error {
	name := t.Name.Local
	e.stack = e.stack[:len(e.stack)-1]

	if e.key != "" && PublicationElements[name] {
		return e.endPublication()
	}

	if e.key == "" {
		return nil
	}

	switch name {
	case "author":
		if e.author != nil {
			e.authors = append(e.authors, strings.TrimSpace(e.author.String()))
			e.author = nil
		}
	case "ee":
		if e.ee != nil {
			e.urls = append(e.urls, e.ee.String())
			e.ee = nil
		}
	}
	return nil
}

func (e *extractor) characters(content string) error {
	if e.key == "" {
		return nil
	}

	if e.author != nil && e.inElement("author") {
		e.author.WriteString(content)
	}
	if e.title != nil && e.inElement("title") {
		e.title.WriteString(content)
	}

	switch e.currentElement() {
	case "ee":
		if e.ee != nil {
			e.ee.WriteString(content)
		}
	case "year":
		if e.year != nil {
			return fmt.Errorf("duplicate <year> in publication %q", e.key)
		}
		year, err := strconv.Atoi(strings.TrimSpace(content))
		if err != nil {
			return fmt.Errorf("parsing <year> of publication %q: %w", e.key, err)
		}
		e.year = &year
	case "pages":
		if e.pages != nil {
			return fmt.Errorf("duplicate <pages> in publication %q", e.key)
		}
		pages, err := ParsePages(content)
		if err != nil {
			return fmt.Errorf("publication %q: %w", e.key, err)
		}
		e.pages = &pages
	}
	return nil
}

func (e *extractor) endPublication() error {
	switch {
	case e.title == nil:
		return fmt.Errorf("publication %q has no title", e.key)
	case e.year == nil:
		return fmt.Errorf("publication %q has no year", e.key)
	case len(e.authors) == 0:
		return fmt.Errorf("publication %q has no authors", e.key)
	}

	e.records = append(e.records, Record{
		Key:     e.key,
		Title:   cleanTitle(e.title.String()),
		Year:    *e.year,
		Pages:   e.pages,
		Authors: e.authors,
		URLs:    e.urls,
	})

	e.key = ""
	e.title = nil
	e.authors = nil
	e.year = nil
	e.pages = nil
	e.urls = nil
	return nil
}

// currentElement returns the innermost open element name.
func (e *extractor) currentElement() string {
	if len(e.stack) == 0 {
		return ""
	}
	return e.stack[len(e.stack)-1]
}

// inElement reports whether name is anywhere on the open-element stack.
// Authors and titles may contain markup, so their text accumulates across
// nested elements.
func (e *extractor) inElement(name string) bool {
	for _, n := range e.stack {
		if n == name {
			return true
		}
	}
	return false
}

func attr(t xml.StartElement, name string) (string, bool) {
	for _, a := range t.Attr {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}
