// Package dblp provides access to the DBLP bibliographic index: streaming
// record extraction from the XML dump, the public search API, and the
// per-record XML endpoint.
package dblp

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// CiteKeyPrefix marks cite keys that originate from DBLP.
const CiteKeyPrefix = "DBLP:"

// PublicationElements are the element types in the dump that describe a
// publication-like entry.
var PublicationElements = map[string]bool{
	"article":       true,
	"inproceedings": true,
	"proceedings":   true,
	"book":          true,
	"incollection":  true,
	"phdthesis":     true,
	"mastersthesis": true,
	"www":           true,
	"person":        true,
	"data":          true,
}

// StripCiteKeyPrefix removes the DBLP prefix from a cite key, if present.
func StripCiteKeyPrefix(value string) string {
	return strings.TrimPrefix(value, CiteKeyPrefix)
}

// PageRange is an inclusive page span.
type PageRange struct {
	First int
	Last  int
}

// Record is a transient publication candidate extracted from DBLP. It only
// lives long enough to be merged into the store or rejected.
type Record struct {
	Key     string
	Title   string
	Year    int
	Pages   *PageRange
	Authors []string
	URLs    []string
}

// CiteKey returns the record's key with the DBLP prefix.
func (r Record) CiteKey() string {
	return CiteKeyPrefix + r.Key
}

// DOI returns the DOI of the first URL that points at a DOI resolver,
// without the leading slash, or "" if the record carries no such URL.
func (r Record) DOI() string {
	for _, raw := range r.URLs {
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		if host := u.Hostname(); host != "" && strings.HasSuffix(host, "doi.org") {
			return strings.TrimPrefix(u.Path, "/")
		}
	}
	return ""
}

// PeerReviewed heuristically determines whether the record was peer
// reviewed. Conference proceedings, journal articles, and dissertations
// count as peer reviewed; arXiv preprints do not. Returns nil when the key
// gives no indication either way.
func (r Record) PeerReviewed() *bool {
	// Preprint on arXiv.org
	if strings.HasPrefix(r.Key, "journals/corr/abs-") {
		return boolPtr(false)
	}

	if strings.HasPrefix(r.Key, "phd/") ||
		strings.HasPrefix(r.Key, "conf/") ||
		strings.HasPrefix(r.Key, "journals/") {
		return boolPtr(true)
	}

	return nil
}

func boolPtr(v bool) *bool {
	return &v
}

// ParsePages parses a DBLP page specification. Observed shapes:
//
//	"1-10"
//	"1"
//	"16:1-16:10"
//	"I-X, 1-66"
//	"186-"
//
// Only the last comma-separated group is considered, and a leading issue or
// volume prefix before a colon is stripped. Any other shape is an error.
func ParsePages(raw string) (PageRange, error) {
	groups := strings.Split(raw, ", ")
	pages := strings.Split(groups[len(groups)-1], "-")

	if len(pages) == 2 {
		first, last := pages[0], pages[1]
		if last != "" {
			f, err := pageNumber(first)
			if err != nil {
				return PageRange{}, fmt.Errorf("unexpected value for <pages>: %q: %w", raw, err)
			}
			l, err := pageNumber(last)
			if err != nil {
				return PageRange{}, fmt.Errorf("unexpected value for <pages>: %q: %w", raw, err)
			}
			return PageRange{First: f, Last: l}, nil
		}
		// "186-" is just page 186.
		pages = pages[:1]
	}

	if len(pages) == 1 {
		p, err := pageNumber(pages[0])
		if err != nil {
			return PageRange{}, fmt.Errorf("unexpected value for <pages>: %q: %w", raw, err)
		}
		return PageRange{First: p, Last: p}, nil
	}

	return PageRange{}, fmt.Errorf("unexpected value for <pages>: %q", raw)
}

// pageNumber extracts the numeric page from a single page token, dropping
// an issue prefix such as "16:" and any non-digit characters.
func pageNumber(value string) (int, error) {
	if idx := strings.LastIndex(value, ":"); idx >= 0 {
		value = value[idx+1:]
	}

	var digits strings.Builder
	for _, c := range value {
		if c >= '0' && c <= '9' {
			digits.WriteRune(c)
		}
	}
	if digits.Len() == 0 {
		return 0, fmt.Errorf("no digits in page %q", value)
	}

	return strconv.Atoi(digits.String())
}

// cleanTitle strips the single trailing period DBLP appends to titles.
func cleanTitle(value string) string {
	return strings.TrimSuffix(value, ".")
}
