package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubEngine struct {
	hits []SearchHit
	err  error
}

func (s *stubEngine) Search(_ context.Context, _ string, limit int) ([]SearchHit, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(s.hits) > limit {
		return s.hits[:limit], nil
	}
	return s.hits, nil
}

func TestWebSearch_FetchesResultContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/one":
			fmt.Fprint(w, "content of page one")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	engine := &stubEngine{hits: []SearchHit{
		{Title: "Page one", URL: srv.URL + "/one"},
		{Title: "Broken", URL: srv.URL + "/missing"},
	}}
	ws := NewWebSearch(engine, zap.NewNop())

	result, err := ws.Execute(context.Background(), json.RawMessage(`{"query":"anything"}`))
	require.NoError(t, err)

	assert.Contains(t, result.Output, "Page one")
	assert.Contains(t, result.Output, "content of page one")
	// Fetch failures degrade per result instead of failing the search.
	assert.Contains(t, result.Output, "(content unavailable)")
}

func TestWebSearch_NoResults(t *testing.T) {
	ws := NewWebSearch(&stubEngine{}, zap.NewNop())
	result, err := ws.Execute(context.Background(), json.RawMessage(`{"query":"obscure"}`))
	require.NoError(t, err)
	assert.Contains(t, result.Output, "No results found")
}

func TestWebSearch_RequiresQuery(t *testing.T) {
	ws := NewWebSearch(&stubEngine{}, zap.NewNop())
	_, err := ws.Execute(context.Background(), json.RawMessage(`{"query":"  "}`))
	assert.Error(t, err)
}

func TestDuckDuckGo_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "golang", r.URL.Query().Get("q"))
		fmt.Fprint(w, `{
			"Heading": "Go",
			"AbstractURL": "https://go.dev",
			"RelatedTopics": [
				{"FirstURL": "https://go.dev/doc", "Text": "Go documentation"},
				{"Topics": [{"FirstURL": "https://go.dev/blog", "Text": "Go blog"}]}
			]
		}`)
	}))
	defer srv.Close()

	engine := NewDuckDuckGo()
	engine.baseURL = srv.URL

	hits, err := engine.Search(context.Background(), "golang", 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, SearchHit{Title: "Go", URL: "https://go.dev"}, hits[0])
	assert.Equal(t, SearchHit{Title: "Go documentation", URL: "https://go.dev/doc"}, hits[1])
}
