package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/mnemo-ai/mnemo/internal/domain"
)

const (
	duckDuckGoEndpoint = "https://html.duckduckgo.com/html/"
	webSearchUserAgent = "mnemo/1.0"
	// maxResponseBytes caps the HTML body read from the search endpoint.
	maxResponseBytes = 2 << 20
)

type webSearchInput struct {
	Query string `json:"query" jsonschema:"Web search query."`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum results, default 5, at most 10."`
}

type webSearchResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

// WebSearcher runs a web search. The production implementation scrapes the
// DuckDuckGo HTML endpoint.
type WebSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]webSearchResult, error)
}

// DuckDuckGoSearcher queries the DuckDuckGo HTML endpoint, which needs no
// API key and returns server-rendered results.
type DuckDuckGoSearcher struct {
	httpClient *http.Client
	endpoint   string
}

func NewDuckDuckGoSearcher(client *http.Client) *DuckDuckGoSearcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &DuckDuckGoSearcher{httpClient: client, endpoint: duckDuckGoEndpoint}
}

func (s *DuckDuckGoSearcher) Search(ctx context.Context, query string, limit int) ([]webSearchResult, error) {
	reqURL := s.endpoint + "?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("User-Agent", webSearchUserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search endpoint returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to parse search results: %w", err)
	}

	var results []webSearchResult
	doc.Find("div.result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		link := sel.Find("a.result__a")
		href, _ := link.Attr("href")
		r := webSearchResult{
			Title:   strings.TrimSpace(link.Text()),
			Snippet: strings.TrimSpace(sel.Find(".result__snippet").Text()),
			URL:     resolveRedirect(href),
		}
		if r.Title == "" || r.URL == "" {
			return true
		}
		results = append(results, r)
		return len(results) < limit
	})
	return results, nil
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg= redirect links to the
// target URL.
func resolveRedirect(href string) string {
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "" {
		u.Scheme = "https"
		return u.String()
	}
	return href
}

// WebSearchTool returns the web search tool.
func WebSearchTool(searcher WebSearcher) Tool {
	return Tool{
		Descriptor: Descriptor{
			Name:        "web_search",
			Description: "Search the public web and return result titles, snippets and URLs.",
			InputSchema: schemaFor[webSearchInput](),
		},
		Handler: func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
			var in webSearchInput
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, err
			}
			if strings.TrimSpace(in.Query) == "" {
				return nil, domain.NewDomainError(domain.ErrCodeValidation, "query must not be empty")
			}
			if in.Limit <= 0 {
				in.Limit = 5
			}
			if in.Limit > 10 {
				in.Limit = 10
			}
			results, err := searcher.Search(ctx, in.Query, in.Limit)
			if err != nil {
				return nil, err
			}
			return marshalResult(results)
		},
	}
}
