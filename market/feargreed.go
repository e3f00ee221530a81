package market

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultFearGreedURL is the public alternative.me Fear & Greed endpoint.
const DefaultFearGreedURL = "https://api.alternative.me/fng/"

// FearGreedIndex is one reading of the crypto Fear & Greed Index.
type FearGreedIndex struct {
	Value           int    `json:"value"`
	Classification  string `json:"classification"`
	Timestamp       string `json:"timestamp"`
	TimeUntilUpdate string `json:"timeUntilUpdate,omitempty"`
}

// InterpretFearGreed maps an index value (0-100) to a sentiment reading.
func InterpretFearGreed(value int) string {
	switch {
	case value <= 25:
		return fmt.Sprintf("Extreme Fear (%d) - Market sentiment is extremely fearful. This could indicate a buying opportunity as fear often leads to oversold conditions.", value)
	case value <= 45:
		return fmt.Sprintf("Fear (%d) - Market sentiment is fearful. Investors are worried and selling may increase.", value)
	case value <= 55:
		return fmt.Sprintf("Neutral (%d) - Market sentiment is neutral. Neither fear nor greed is dominating.", value)
	case value <= 75:
		return fmt.Sprintf("Greed (%d) - Market sentiment is greedy. Investors are optimistic and buying pressure may increase.", value)
	default:
		return fmt.Sprintf("Extreme Greed (%d) - Market sentiment is extremely greedy. This could indicate a selling opportunity as greed often leads to overbought conditions.", value)
	}
}

// FearGreedClient queries the alternative.me Fear & Greed API.
type FearGreedClient struct {
	baseURL    string
	httpClient *http.Client
}

// FearGreedOption configures the client.
type FearGreedOption func(*FearGreedClient)

// WithFearGreedURL overrides the API URL.
func WithFearGreedURL(baseURL string) FearGreedOption {
	return func(c *FearGreedClient) {
		c.baseURL = baseURL
	}
}

// WithFearGreedHTTPClient overrides the HTTP client.
func WithFearGreedHTTPClient(client *http.Client) FearGreedOption {
	return func(c *FearGreedClient) {
		c.httpClient = client
	}
}

// NewFearGreedClient creates a Fear & Greed client.
func NewFearGreedClient(options ...FearGreedOption) *FearGreedClient {
	c := &FearGreedClient{
		baseURL:    DefaultFearGreedURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// fngEntry is the wire shape of one reading. The API sends numbers as
// strings.
type fngEntry struct {
	Value           string `json:"value"`
	Classification  string `json:"value_classification"`
	Timestamp       string `json:"timestamp"`
	TimeUntilUpdate string `json:"time_until_update"`
}

func (e fngEntry) toIndex() FearGreedIndex {
	value, _ := strconv.Atoi(e.Value)
	classification := e.Classification
	if classification == "" {
		classification = "Unknown"
	}
	return FearGreedIndex{
		Value:           value,
		Classification:  classification,
		Timestamp:       e.Timestamp,
		TimeUntilUpdate: e.TimeUntilUpdate,
	}
}

// Index fetches the latest reading.
func (c *FearGreedClient) Index(ctx context.Context) (*FearGreedIndex, error) {
	entries, err := c.fetch(ctx, 1)
	if err != nil {
		return nil, err
	}
	index := entries[0].toIndex()
	return &index, nil
}

// History fetches the last days readings, newest first.
func (c *FearGreedClient) History(ctx context.Context, days int) ([]FearGreedIndex, error) {
	if days < 1 || days > 365 {
		days = 7
	}

	entries, err := c.fetch(ctx, days)
	if err != nil {
		return nil, err
	}

	history := make([]FearGreedIndex, 0, len(entries))
	for _, entry := range entries {
		history = append(history, entry.toIndex())
	}
	return history, nil
}

func (c *FearGreedClient) fetch(ctx context.Context, limit int) ([]fngEntry, error) {
	reqURL := c.baseURL
	if limit > 1 {
		sep := "?"
		if strings.Contains(reqURL, "?") {
			sep = "&"
		}
		reqURL += sep + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fear & greed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fear & greed API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var payload struct {
		Data []fngEntry `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(payload.Data) == 0 {
		return nil, fmt.Errorf("no fear & greed data available")
	}
	return payload.Data, nil
}
