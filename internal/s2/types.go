// Package s2 provides a rate-limited client for the Semantic Scholar v1
// paper API.
package s2

import (
	"encoding/hex"
	"encoding/json"

	"golang.org/x/crypto/blake2b"
)

// Paper represents a paper from the Semantic Scholar API. The same shape is
// used for the top-level paper and for the entries of its reference and
// citation lists, which carry a subset of the fields.
type Paper struct {
	PaperID  string   `json:"paperId,omitempty"`
	DOI      string   `json:"doi,omitempty"`
	Title    string   `json:"title,omitempty"`
	Abstract string   `json:"abstract,omitempty"`
	Venue    string   `json:"venue,omitempty"`
	Year     int      `json:"year,omitempty"`
	Authors  []Author `json:"authors,omitempty"`

	References []Paper `json:"references,omitempty"`
	Citations  []Paper `json:"citations,omitempty"`

	// raw is the undecoded JSON object, kept for identity hashing of
	// reference and citation entries that carry no paper id.
	raw json.RawMessage
}

// Author represents an author entry of a paper.
type Author struct {
	AuthorID string `json:"authorId,omitempty"`
	Name     string `json:"name"`
}

// UnmarshalJSON decodes a paper while retaining the raw object bytes.
func (p *Paper) UnmarshalJSON(data []byte) error {
	type paper Paper
	var decoded paper
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*p = Paper(decoded)
	p.raw = append(json.RawMessage(nil), data...)
	return nil
}

// ResolvedDOI returns the paper's DOI with the API's "None" placeholder
// normalized away.
func (p *Paper) ResolvedDOI() string {
	if p.DOI == "None" {
		return ""
	}
	return p.DOI
}

// Identity returns a stable identity for decision caching: the paper id if
// present, otherwise a BLAKE2b digest of the canonicalized raw object.
func (p *Paper) Identity() string {
	if p.PaperID != "" {
		return p.PaperID
	}

	canonical := p.raw
	var generic any
	if err := json.Unmarshal(p.raw, &generic); err == nil {
		// Re-encoding sorts object keys.
		if data, err := json.Marshal(generic); err == nil {
			canonical = data
		}
	}

	digest := blake2b.Sum512(canonical)
	return hex.EncodeToString(digest[:])
}
