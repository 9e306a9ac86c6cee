package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const fetchUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

var (
	scriptBlockRe = regexp.MustCompile(`(?i)<script[\s\S]*?</script>`)
	styleBlockRe  = regexp.MustCompile(`(?i)<style[\s\S]*?</style>`)
	tagRe         = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
)

// ExtractReadableText strips script and style blocks, then all
// remaining markup, and collapses whitespace.
func ExtractReadableText(html string) string {
	text := scriptBlockRe.ReplaceAllLiteralString(html, " ")
	text = styleBlockRe.ReplaceAllLiteralString(text, " ")
	text = tagRe.ReplaceAllLiteralString(text, " ")
	text = whitespaceRe.ReplaceAllLiteralString(text, " ")
	return strings.TrimSpace(text)
}

// WebFetchTool downloads a page and hands the model its readable text.
// Private and loopback targets are refused.
type WebFetchTool struct {
	maxChars          int
	allowPrivateHosts bool
	httpClient        *http.Client
}

func NewWebFetchTool(maxChars int) *WebFetchTool {
	if maxChars <= 0 {
		maxChars = 50000
	}
	t := &WebFetchTool{maxChars: maxChars}
	t.httpClient = &http.Client{
		Timeout: 60 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("stopped after 5 redirects")
			}
			return t.validateTargetURL(req.URL)
		},
	}
	return t
}

func (t *WebFetchTool) Name() string {
	return "web_fetch"
}

func (t *WebFetchTool) Description() string {
	return "Fetch a URL and extract its readable text. Use this when the user asks about the content of a specific web page."
}

func (t *WebFetchTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"url": map[string]interface{}{
				"type":        "string",
				"description": "URL to fetch",
			},
		},
		"required": []string{"url"},
	}
}

func (t *WebFetchTool) Execute(ctx context.Context, args map[string]interface{}) *ToolResult {
	urlStr := strings.TrimSpace(stringArg(args, "url"))
	if urlStr == "" {
		return ErrorResult("url is required")
	}

	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return ErrorResult(fmt.Sprintf("invalid URL: %v", err))
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return ErrorResult("only http/https URLs are allowed")
	}
	if err := t.validateTargetURL(parsedURL); err != nil {
		return ErrorResult(fmt.Sprintf("blocked URL target: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return ErrorResult(fmt.Sprintf("create fetch request: %v", err)).WithError(err)
	}
	req.Header.Set("User-Agent", fetchUserAgent)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return ErrorResult(fmt.Sprintf("fetch %s: %v", urlStr, err)).WithError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return ErrorResult(fmt.Sprintf("read %s: %v", urlStr, err)).WithError(err)
	}
	if resp.StatusCode != http.StatusOK {
		return ErrorResult(fmt.Sprintf("fetch %s failed: status=%d", urlStr, resp.StatusCode))
	}

	text := string(body)
	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "text/html") || strings.Contains(strings.ToLower(text[:min(len(text), 256)]), "<html") {
		text = ExtractReadableText(text)
	}

	truncated := len(text) > t.maxChars
	if truncated {
		text = text[:t.maxChars]
	}

	forLLM := fmt.Sprintf("Fetched URL: %s\nTruncated: %v\nContent:\n%s", urlStr, truncated, text)
	return SuccessResult(forLLM)
}

func (t *WebFetchTool) validateTargetURL(parsedURL *url.URL) error {
	if t.allowPrivateHosts {
		return nil
	}

	host := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(parsedURL.Hostname())), ".")
	if host == "" {
		return fmt.Errorf("missing host")
	}
	if host == "localhost" ||
		strings.HasSuffix(host, ".localhost") ||
		strings.HasSuffix(host, ".local") ||
		strings.HasSuffix(host, ".internal") {
		return fmt.Errorf("host %q resolves to local/private network", host)
	}
	if ip := net.ParseIP(host); ip != nil && isBlockedFetchIP(ip) {
		return fmt.Errorf("IP %s is not allowed", ip.String())
	}
	return nil
}

func isBlockedFetchIP(ip net.IP) bool {
	return ip == nil ||
		ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsMulticast() ||
		ip.IsUnspecified()
}

// SearchProvider is a pluggable web search backend.
type SearchProvider interface {
	Search(ctx context.Context, query string, count int) ([]SearchResult, error)
}

type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// DuckDuckGoSearchProvider scrapes the HTML search endpoint, which
// needs no API key.
type DuckDuckGoSearchProvider struct {
	apiBase    string
	httpClient *http.Client
}

func NewDuckDuckGoSearchProvider() *DuckDuckGoSearchProvider {
	return &DuckDuckGoSearchProvider{
		apiBase:    "https://html.duckduckgo.com/html/",
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

var (
	ddgLinkRe    = regexp.MustCompile(`<a[^>]*class="[^"]*result__a[^"]*"[^>]*href="([^"]+)"[^>]*>([\s\S]*?)</a>`)
	ddgSnippetRe = regexp.MustCompile(`<a[^>]*class="[^"]*result__snippet[^"]*"[^>]*>([\s\S]*?)</a>`)
)

func (p *DuckDuckGoSearchProvider) Search(ctx context.Context, query string, count int) ([]SearchResult, error) {
	searchURL := p.apiBase + "?q=" + url.QueryEscape(query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("User-Agent", fetchUserAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}

	return parseDuckDuckGoResults(string(body), count), nil
}

func parseDuckDuckGoResults(html string, count int) []SearchResult {
	links := ddgLinkRe.FindAllStringSubmatch(html, count+5)
	snippets := ddgSnippetRe.FindAllStringSubmatch(html, count+5)

	results := make([]SearchResult, 0, count)
	for i, match := range links {
		if len(results) >= count {
			break
		}
		result := SearchResult{
			Title: strings.TrimSpace(tagRe.ReplaceAllLiteralString(match[2], "")),
			URL:   decodeDuckDuckGoURL(match[1]),
		}
		if i < len(snippets) {
			result.Snippet = strings.TrimSpace(tagRe.ReplaceAllLiteralString(snippets[i][1], ""))
		}
		results = append(results, result)
	}
	return results
}

// decodeDuckDuckGoURL unwraps the redirect links DDG serves, which
// carry the real URL in a uddg query parameter.
func decodeDuckDuckGoURL(raw string) string {
	if !strings.Contains(raw, "uddg=") {
		return raw
	}
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		return raw
	}
	idx := strings.Index(decoded, "uddg=")
	if idx == -1 {
		return raw
	}
	target := decoded[idx+5:]
	if amp := strings.Index(target, "&"); amp != -1 {
		target = target[:amp]
	}
	return target
}

// WebSearchTool exposes a SearchProvider to the model.
type WebSearchTool struct {
	provider   SearchProvider
	maxResults int
}

func NewWebSearchTool(provider SearchProvider, maxResults int) *WebSearchTool {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &WebSearchTool{provider: provider, maxResults: maxResults}
}

func (t *WebSearchTool) Name() string {
	return "web_search"
}

func (t *WebSearchTool) Description() string {
	return "Search the web for current information. Returns titles, URLs, and snippets from search results."
}

func (t *WebSearchTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Search query",
			},
			"count": map[string]interface{}{
				"type":        "integer",
				"description": "Number of results (1-10)",
				"minimum":     1.0,
				"maximum":     10.0,
			},
		},
		"required": []string{"query"},
	}
}

func (t *WebSearchTool) Execute(ctx context.Context, args map[string]interface{}) *ToolResult {
	query := strings.TrimSpace(stringArg(args, "query"))
	if query == "" {
		return ErrorResult("query is required")
	}

	count := t.maxResults
	if c, ok := args["count"].(float64); ok && int(c) > 0 && int(c) <= 10 {
		count = int(c)
	}

	results, err := t.provider.Search(ctx, query, count)
	if err != nil {
		return ErrorResult(fmt.Sprintf("search failed: %v", err)).WithError(err)
	}
	if len(results) == 0 {
		return SuccessResult(fmt.Sprintf("No results for: %s", query))
	}

	forLLM, err := json.Marshal(map[string]interface{}{
		"query":   query,
		"results": results,
	})
	if err != nil {
		return ErrorResult(fmt.Sprintf("encode search results: %v", err)).WithError(err)
	}
	return SuccessResult(string(forLLM))
}
