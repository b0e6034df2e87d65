package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const duckDuckGoBaseURL = "https://api.duckduckgo.com"

// DuckDuckGo implements SearchEngine over the DuckDuckGo instant answer
// API. It needs no API key, which makes it the default engine.
type DuckDuckGo struct {
	baseURL string
	client  *http.Client
}

// NewDuckDuckGo creates the default search engine.
func NewDuckDuckGo() *DuckDuckGo {
	return &DuckDuckGo{
		baseURL: duckDuckGoBaseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type ddgTopic struct {
	FirstURL string     `json:"FirstURL"`
	Text     string     `json:"Text"`
	Topics   []ddgTopic `json:"Topics"`
}

type ddgResponse struct {
	Heading       string     `json:"Heading"`
	AbstractURL   string     `json:"AbstractURL"`
	RelatedTopics []ddgTopic `json:"RelatedTopics"`
}

// Search queries the instant answer API and flattens the related
// topics into hits.
func (d *DuckDuckGo) Search(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	endpoint := fmt.Sprintf("%s/?q=%s&format=json&no_html=1", d.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo: status %d", resp.StatusCode)
	}

	var body ddgResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("duckduckgo: decode response: %w", err)
	}

	var hits []SearchHit
	if body.AbstractURL != "" {
		hits = append(hits, SearchHit{Title: body.Heading, URL: body.AbstractURL})
	}
	hits = append(hits, flattenTopics(body.RelatedTopics)...)
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func flattenTopics(topics []ddgTopic) []SearchHit {
	var hits []SearchHit
	for _, t := range topics {
		if len(t.Topics) > 0 {
			hits = append(hits, flattenTopics(t.Topics)...)
			continue
		}
		if t.FirstURL != "" {
			hits = append(hits, SearchHit{Title: t.Text, URL: t.FirstURL})
		}
	}
	return hits
}
