// Package tavily provides a minimal client for the Tavily search API,
// exposing the aggregated search-context call the extraction agent uses.
package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultBaseURL     = "https://api.tavily.com"
	defaultSearchDepth = "advanced"
	defaultMaxTokens   = 8000

	// Rough chars-per-token heuristic used to bound the context blob.
	charsPerToken = 4
)

// Client performs web searches against the Tavily API.
type Client interface {
	// SearchContext runs a search and returns an aggregated, bounded context
	// blob suitable for direct injection into a model prompt.
	SearchContext(ctx context.Context, query string) (string, error)
}

// SearchRequest is the request body for POST /search.
type SearchRequest struct {
	Query       string `json:"query"`
	SearchDepth string `json:"search_depth,omitempty"`
	MaxResults  int    `json:"max_results,omitempty"`
}

// SearchResponse is the response from POST /search.
type SearchResponse struct {
	Query   string   `json:"query"`
	Results []Result `json:"results"`
}

// Result is a single search hit.
type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// contextSource is one entry of the aggregated context blob.
type contextSource struct {
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithSearchDepth overrides the default search depth.
func WithSearchDepth(depth string) Option {
	return func(c *httpClient) {
		c.searchDepth = depth
	}
}

// WithMaxTokens overrides the default context token ceiling.
func WithMaxTokens(n int) Option {
	return func(c *httpClient) {
		c.maxTokens = n
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey      string
	baseURL     string
	searchDepth string
	maxTokens   int
	http        *http.Client
}

// NewClient creates a Tavily API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:      apiKey,
		baseURL:     defaultBaseURL,
		searchDepth: defaultSearchDepth,
		maxTokens:   defaultMaxTokens,
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) SearchContext(ctx context.Context, query string) (string, error) {
	if query == "" {
		return "", eris.New("tavily: empty query")
	}

	resp, err := c.search(ctx, SearchRequest{
		Query:       query,
		SearchDepth: c.searchDepth,
	})
	if err != nil {
		return "", err
	}

	// Aggregate results newest-scored first until the token budget is spent.
	budget := c.maxTokens * charsPerToken
	var sources []contextSource
	used := 0
	for _, r := range resp.Results {
		if r.Content == "" {
			continue
		}
		cost := len(r.URL) + len(r.Content)
		if used+cost > budget && len(sources) > 0 {
			break
		}
		sources = append(sources, contextSource{URL: r.URL, Content: r.Content})
		used += cost
	}

	blob, err := json.Marshal(sources)
	if err != nil {
		return "", eris.Wrap(err, "tavily: marshal context")
	}
	return string(blob), nil
}

func (c *httpClient) search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "tavily: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "tavily: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "tavily: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "tavily: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("tavily: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result SearchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "tavily: unmarshal response")
	}

	return &result, nil
}
