package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// WebSearchName is the name of the web search tool.
const WebSearchName = "web_search"

const (
	defaultSearchResults  = 5
	maxFetchConcurrency   = 4
	maxFetchedContentSize = 8 << 10
)

// SearchHit is one search engine result.
type SearchHit struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// SearchEngine returns hits for a query. Implementations wrap a real
// engine's API; tests inject a stub.
type SearchEngine interface {
	Search(ctx context.Context, query string, limit int) ([]SearchHit, error)
}

// WebSearch searches the web and fetches the top results' content.
// Result pages are fetched in parallel; the concurrency stays inside a
// single tool call and is invisible to the agent loop.
type WebSearch struct {
	engine SearchEngine
	client *http.Client
	logger *zap.Logger
}

// NewWebSearch creates a web search tool around the given engine.
func NewWebSearch(engine SearchEngine, logger *zap.Logger) *WebSearch {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSearch{
		engine: engine,
		client: &http.Client{Timeout: 15 * time.Second},
		logger: logger,
	}
}

func (w *WebSearch) Name() string { return WebSearchName }

func (w *WebSearch) Description() string {
	return "Search the web for a query and return the top results with a snippet of each page's content."
}

func (w *WebSearch) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string", "description": "The search query."},
			"num_results": {"type": "integer", "description": "Number of results to return (default 5)."}
		},
		"required": ["query"]
	}`)
}

func (w *WebSearch) Execute(ctx context.Context, args json.RawMessage) (*Result, error) {
	var params struct {
		Query      string `json:"query"`
		NumResults int    `json:"num_results"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return nil, fmt.Errorf("parse web_search arguments: %w", err)
	}
	if strings.TrimSpace(params.Query) == "" {
		return nil, fmt.Errorf("query is required")
	}
	limit := params.NumResults
	if limit <= 0 {
		limit = defaultSearchResults
	}

	hits, err := w.engine.Search(ctx, params.Query, limit)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	if len(hits) == 0 {
		return &Result{Output: "No results found for: " + params.Query}, nil
	}

	contents := make([]string, len(hits))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxFetchConcurrency)
	for i, hit := range hits {
		g.Go(func() error {
			content, err := w.fetch(gctx, hit.URL)
			if err != nil {
				w.logger.Debug("result fetch failed", zap.String("url", hit.URL), zap.Error(err))
				content = "(content unavailable)"
			}
			contents[i] = content
			return nil
		})
	}
	_ = g.Wait()

	var b strings.Builder
	fmt.Fprintf(&b, "Search results for %q:\n\n", params.Query)
	for i, hit := range hits {
		fmt.Fprintf(&b, "%d. %s\n   %s\n   %s\n\n", i+1, hit.Title, hit.URL, contents[i])
	}
	return &Result{Output: strings.TrimRight(b.String(), "\n")}, nil
}

func (w *WebSearch) fetch(ctx context.Context, rawURL string) (string, error) {
	if _, err := url.ParseRequestURI(rawURL); err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchedContentSize))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
