package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	defaultAPIVersion = "2024-07-01"

	// vectorK is the number of nearest neighbors requested per vector query.
	// The index fuses text and vector rankings before the top cut is applied.
	vectorK = 50
)

// ClientOption configures the client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithAPIVersion sets the service API version.
func WithAPIVersion(version string) ClientOption {
	return func(c *Client) {
		c.apiVersion = version
	}
}

// WithSemanticConfiguration sets the semantic ranker configuration name.
func WithSemanticConfiguration(name string) ClientOption {
	return func(c *Client) {
		c.semanticConfiguration = name
	}
}

// WithVectorFields sets the index field holding embedding vectors.
func WithVectorFields(fields string) ClientOption {
	return func(c *Client) {
		c.vectorFields = fields
	}
}

// Client is an HTTP client for one document index of an Azure AI Search
// compatible service.
type Client struct {
	endpoint              string
	index                 string
	apiKey                string
	apiVersion            string
	semanticConfiguration string
	vectorFields          string
	httpClient            *http.Client
}

// NewClient creates a search client for the given service endpoint and index.
func NewClient(endpoint, index, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint:              strings.TrimSuffix(endpoint, "/"),
		index:                 index,
		apiKey:                apiKey,
		apiVersion:            defaultAPIVersion,
		semanticConfiguration: "default",
		vectorFields:          "embedding",
		httpClient:            http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search runs one retrieval call and returns the ranked results that clear
// the query's score thresholds, in service ranking order.
func (c *Client) Search(ctx context.Context, q *Query) ([]Document, error) {
	req := searchRequest{
		Top:    q.Top,
		Filter: q.Filter,
	}
	if q.UseTextSearch {
		req.Search = q.Text
	}
	if q.UseSemanticRanker {
		req.QueryType = "semantic"
		req.SemanticConfiguration = c.semanticConfiguration
	}
	if q.UseSemanticCaptions {
		req.Captions = "extractive|highlight-false"
	}
	if q.UseVectorSearch {
		for _, vector := range q.Vectors {
			req.VectorQueries = append(req.VectorQueries, vectorQuery{
				Kind:       "vector",
				Vector:     vector,
				Fields:     c.vectorFields,
				K:          vectorK,
				Exhaustive: false,
			})
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	searchURL := fmt.Sprintf("%s/indexes/%s/docs/search?api-version=%s",
		c.endpoint, url.PathEscape(c.index), url.QueryEscape(c.apiVersion))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, searchURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != nil {
			return nil, fmt.Errorf("search failed: %w", errResp.Error)
		}
		return nil, fmt.Errorf("search failed (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result searchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	filtered := make([]Document, 0, len(result.Value))
	for _, doc := range result.Value {
		if doc.Score < q.MinimumSearchScore {
			continue
		}
		if doc.RerankerScore < q.MinimumRerankerScore {
			continue
		}
		filtered = append(filtered, doc)
	}
	return filtered, nil
}
