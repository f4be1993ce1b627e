package tools

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// CrawlTool implements the url-crawl capability: fetch a URL and extract its
// readable text by stripping markup.
type CrawlTool struct {
	httpClient *http.Client
}

// NewCrawlTool builds the url-crawl tool.
func NewCrawlTool() *CrawlTool {
	return &CrawlTool{httpClient: &http.Client{Timeout: 20 * time.Second}}
}

func (t *CrawlTool) Info() ToolInfo {
	return ToolInfo{
		Name:         "url-crawl",
		Description:  "Fetches a URL and extracts its readable text content.",
		InputSchema:  `{"type":"object","properties":{"url":{"type":"string"}},"required":["url"]}`,
		OutputSchema: `{"type":"object","properties":{"text":{"type":"string"}}}`,
		Idempotent:   true,
	}
}

func (t *CrawlTool) Invoke(ctx context.Context, args map[string]any, onProgress ProgressFunc) (Result, error) {
	url, _ := args["url"].(string)
	if url == "" {
		return Result{}, NewError("url-crawl", ErrorKindValidation, fmt.Errorf("url is required"))
	}

	if onProgress != nil {
		onProgress(ProgressEvent{Message: fmt.Sprintf("fetching %s", url)})
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, NewError("url-crawl", ErrorKindValidation, err)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, NewError("url-crawl", ErrorKindTimeout, err)
		}
		return Result{}, NewError("url-crawl", ErrorKindNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return Result{}, NewError("url-crawl", ErrorKindNetwork, fmt.Errorf("fetching %s: status %d", url, resp.StatusCode))
	}

	text, err := extractText(resp.Body)
	if err != nil {
		return Result{}, NewError("url-crawl", ErrorKindPermanent, err)
	}
	return Result{Content: text}, nil
}

// extractText walks the parsed HTML document and concatenates the text of
// every non-script, non-style text node.
func extractText(r interface{ Read([]byte) (int, error) }) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				b.WriteString(text)
				b.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return strings.TrimSpace(b.String()), nil
}
