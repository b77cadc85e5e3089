package dblp

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	// SearchURL is the DBLP publication search endpoint.
	// See https://dblp.uni-trier.de/faq/13501473.html
	SearchURL = "https://dblp.org/search/publ/api"

	// RecordURL is the per-record XML endpoint, keyed by cite key.
	RecordURL = "https://dblp.uni-trier.de/rec"

	// MaxSearchLimit is the largest page size the search API accepts.
	MaxSearchLimit = 1000

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 60 * time.Second
)

// Client talks to the public DBLP HTTP endpoints. Responses are not retried;
// a non-2xx status or malformed payload is a hard failure.
type Client struct {
	httpClient *http.Client
	searchURL  string
	recordURL  string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithSearchURL sets a custom search endpoint (for testing).
func WithSearchURL(u string) ClientOption {
	return func(c *Client) {
		c.searchURL = u
	}
}

// WithRecordURL sets a custom record endpoint (for testing).
func WithRecordURL(u string) ClientOption {
	return func(c *Client) {
		c.recordURL = u
	}
}

// NewClient creates a DBLP API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		searchURL:  SearchURL,
		recordURL:  RecordURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SearchResult is the outcome of a search query. Query carries the
// normalized query echoed by the API, Total the number of hits upstream,
// which may exceed len(Records) when the limit cuts the result off.
type SearchResult struct {
	Query   string
	Records []Record
	Total   int
}

// searchResponse mirrors the relevant parts of the search API's JSON.
type searchResponse struct {
	Result struct {
		Query string `json:"query"`
		Hits  struct {
			Total string `json:"@total"`
			Hit   []struct {
				Info searchHitInfo `json:"info"`
			} `json:"hit"`
		} `json:"hits"`
	} `json:"result"`
}

type searchHitInfo struct {
	Key     string          `json:"key"`
	Title   string          `json:"title"`
	Year    string          `json:"year"`
	Pages   string          `json:"pages"`
	EE      string          `json:"ee"`
	Authors json.RawMessage `json:"authors"`
}

type searchHitAuthor struct {
	Text string `json:"text"`
}

// Search issues a paginated query against the search endpoint. limit must be
// in 1..MaxSearchLimit.
func (c *Client) Search(ctx context.Context, term string, limit int) (*SearchResult, error) {
	if limit <= 0 || limit > MaxSearchLimit {
		return nil, fmt.Errorf("invalid search limit %d: allowed range is 1 - %d", limit, MaxSearchLimit)
	}

	params := url.Values{
		"q":      {term},
		"f":      {"0"},
		"h":      {strconv.Itoa(limit)},
		"c":      {"0"},
		"format": {"json"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.searchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating search request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying DBLP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("DBLP search returned HTTP %d", resp.StatusCode)
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}

	records := make([]Record, 0, len(payload.Result.Hits.Hit))
	for _, hit := range payload.Result.Hits.Hit {
		record, err := recordFromHit(hit.Info)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	total, err := strconv.Atoi(payload.Result.Hits.Total)
	if err != nil {
		return nil, fmt.Errorf("parsing hit total %q: %w", payload.Result.Hits.Total, err)
	}

	return &SearchResult{
		Query:   payload.Result.Query,
		Records: records,
		Total:   total,
	}, nil
}

// recordFromHit maps a search hit onto a Record.
func recordFromHit(info searchHitInfo) (Record, error) {
	year, err := strconv.Atoi(info.Year)
	if err != nil {
		return Record{}, fmt.Errorf("hit %q: parsing year %q: %w", info.Key, info.Year, err)
	}

	var pages *PageRange
	if info.Pages != "" {
		parsed, err := ParsePages(info.Pages)
		if err != nil {
			return Record{}, fmt.Errorf("hit %q: %w", info.Key, err)
		}
		pages = &parsed
	}

	authors, err := hitAuthors(info.Authors)
	if err != nil {
		return Record{}, fmt.Errorf("hit %q: %w", info.Key, err)
	}

	var urls []string
	if info.EE != "" {
		urls = []string{info.EE}
	}

	return Record{
		Key:     info.Key,
		Title:   cleanTitle(html.UnescapeString(info.Title)),
		Year:    year,
		Pages:   pages,
		Authors: authors,
		URLs:    urls,
	}, nil
}

// hitAuthors decodes the author list of a hit. A single author is returned
// by the API as a bare object rather than a one-element list.
func hitAuthors(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var wrapper struct {
		Author json.RawMessage `json:"author"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, fmt.Errorf("parsing authors: %w", err)
	}
	if len(wrapper.Author) == 0 {
		return nil, nil
	}

	var list []searchHitAuthor
	if err := json.Unmarshal(wrapper.Author, &list); err != nil {
		var single searchHitAuthor
		if err := json.Unmarshal(wrapper.Author, &single); err != nil {
			return nil, fmt.Errorf("parsing authors: %w", err)
		}
		list = []searchHitAuthor{single}
	}

	authors := make([]string, len(list))
	for i, a := range list {
		authors[i] = html.UnescapeString(a.Text)
	}
	return authors, nil
}

// FetchRecord retrieves a single record by cite key (without prefix) from
// the per-record XML endpoint.
func (c *Client) FetchRecord(ctx context.Context, key string) (Record, error) {
	u := fmt.Sprintf("%s/%s.xml", c.recordURL, key)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Record{}, fmt.Errorf("creating record request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Record{}, fmt.Errorf("fetching record %q: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Record{}, fmt.Errorf("fetching record %q: HTTP %d", key, resp.StatusCode)
	}

	records, err := Extract(resp.Body, map[string]bool{key: true})
	if err != nil {
		return Record{}, err
	}
	if len(records) != 1 {
		return Record{}, fmt.Errorf("record %q not found in response", key)
	}

	return records[0], nil
}
