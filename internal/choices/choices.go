// Package choices persists the curator's rejection decisions between runs,
// so repeated imports never re-prompt for a candidate that was already
// turned down. Entries are appended, never removed, except by an explicit
// reset.
package choices

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// SearchChoices is the durable decision cache of the search-based import
// workflow: per query, the set of cite keys the curator has rejected.
type SearchChoices struct {
	path     string
	rejected map[string]map[string]bool
}

// LoadSearch reads the search decision cache from path. A missing file
// yields an empty cache.
func LoadSearch(path string) (*SearchChoices, error) {
	c := &SearchChoices{
		path:     path,
		rejected: make(map[string]map[string]bool),
	}

	var stored map[string][]string
	if err := loadJSON(path, &stored); err != nil {
		return nil, err
	}
	for query, keys := range stored {
		set := make(map[string]bool, len(keys))
		for _, key := range keys {
			set[key] = true
		}
		c.rejected[query] = set
	}

	return c, nil
}

// Rejected reports whether the candidate was previously rejected for the
// query.
func (c *SearchChoices) Rejected(query, citeKey string) bool {
	return c.rejected[query][citeKey]
}

// Reject records a rejection and flushes the cache to disk immediately, so
// an interrupted run loses no decisions.
func (c *SearchChoices) Reject(query, citeKey string) error {
	if c.rejected[query] == nil {
		c.rejected[query] = make(map[string]bool)
	}
	c.rejected[query][citeKey] = true
	return c.save()
}

// Len returns the total number of stored rejections.
func (c *SearchChoices) Len() int {
	n := 0
	for _, set := range c.rejected {
		n += len(set)
	}
	return n
}

// Reset deletes the cache file and clears all stored decisions.
func (c *SearchChoices) Reset() error {
	c.rejected = make(map[string]map[string]bool)
	return remove(c.path)
}

func (c *SearchChoices) save() error {
	stored := make(map[string][]string, len(c.rejected))
	for query, set := range c.rejected {
		stored[query] = sortedKeys(set)
	}
	return saveJSON(c.path, stored)
}

// SnowballChoices is the durable decision cache of the snowball workflow: a
// flat set of rejected candidate identities (paper ids or content hashes).
type SnowballChoices struct {
	path     string
	rejected map[string]bool
}

// LoadSnowball reads the snowball decision cache from path. A missing file
// yields an empty cache.
func LoadSnowball(path string) (*SnowballChoices, error) {
	c := &SnowballChoices{
		path:     path,
		rejected: make(map[string]bool),
	}

	var stored []string
	if err := loadJSON(path, &stored); err != nil {
		return nil, err
	}
	for _, identity := range stored {
		c.rejected[identity] = true
	}

	return c, nil
}

// Rejected reports whether the identity was previously rejected.
func (c *SnowballChoices) Rejected(identity string) bool {
	return c.rejected[identity]
}

// Reject records a rejection and flushes the cache to disk immediately.
func (c *SnowballChoices) Reject(identity string) error {
	c.rejected[identity] = true
	return saveJSON(c.path, sortedKeys(c.rejected))
}

// Len returns the number of stored rejections.
func (c *SnowballChoices) Len() int {
	return len(c.rejected)
}

// Reset deletes the cache file and clears all stored decisions.
func (c *SnowballChoices) Reset() error {
	c.rejected = make(map[string]bool)
	return remove(c.path)
}

func loadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading choices: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing choices %s: %w", path, err)
	}
	return nil
}

func saveJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding choices: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing choices: %w", err)
	}
	return nil
}

func remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing choices: %w", err)
	}
	return nil
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
