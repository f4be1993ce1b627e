package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// tavilyClient is a thin typed HTTP client over the Tavily search API. There
// is no published Go SDK for Tavily, so this binds directly to net/http the
// way the teacher's own LLM providers do for APIs without an SDK.
type tavilyClient struct {
	apiKey     string
	maxResults int
	httpClient *http.Client
	baseURL    string
}

func newTavilyClient(apiKey string, maxResults int) *tavilyClient {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &tavilyClient{
		apiKey:     apiKey,
		maxResults: maxResults,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    "https://api.tavily.com/search",
	}
}

type tavilyRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	Topic         string `json:"topic,omitempty"`
	SearchDepth   string `json:"search_depth,omitempty"`
	MaxResults    int    `json:"max_results,omitempty"`
	IncludeAnswer bool   `json:"include_answer,omitempty"`
}

type tavilyResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

type tavilyResponse struct {
	Answer  string         `json:"answer,omitempty"`
	Results []tavilyResult `json:"results"`
}

// search posts the query to Tavily, retrying transient (network/timeout)
// failures with bounded exponential backoff. Validation and permanent
// failures return on the first attempt.
func (c *tavilyClient) search(ctx context.Context, query, topic, searchDepth string) (*tavilyResponse, error) {
	reqBody := tavilyRequest{
		APIKey:      c.apiKey,
		Query:       query,
		Topic:       topic,
		SearchDepth: searchDepth,
		MaxResults:  c.maxResults,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, NewError("tavily", ErrorKindValidation, err)
	}

	var out tavilyResponse
	op := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(NewError("tavily", ErrorKindPermanent, err))
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(NewError("tavily", ErrorKindTimeout, err))
			}
			return NewError("tavily", ErrorKindNetwork, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return NewError("tavily", ErrorKindNetwork, err)
		}

		if resp.StatusCode >= 500 {
			return NewError("tavily", ErrorKindNetwork, fmt.Errorf("tavily returned %d: %s", resp.StatusCode, body))
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(NewError("tavily", ErrorKindValidation, fmt.Errorf("tavily returned %d: %s", resp.StatusCode, body)))
		}

		if err := json.Unmarshal(body, &out); err != nil {
			return backoff.Permanent(NewError("tavily", ErrorKindPermanent, err))
		}
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, err
	}
	return &out, nil
}
