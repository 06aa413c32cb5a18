package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"stockbot-go/internal/market"
)

// TwitterClient implements Searcher against the recent-search HTTP API.
type TwitterClient struct {
	baseURL string
	bearer  string
	client  *http.Client
}

// NewTwitterClient builds a search client with bearer-token auth.
func NewTwitterClient(baseURL, bearerToken string) *TwitterClient {
	return &TwitterClient{
		baseURL: baseURL,
		bearer:  bearerToken,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type tweetSearchResponse struct {
	Data []struct {
		Text      string    `json:"text"`
		CreatedAt time.Time `json:"created_at"`
	} `json:"data"`
}

// SearchRecent fetches up to maxResults recent items matching query since
// the given time. The API caps max_results at 100 and floors it at 10;
// callers that want fewer items truncate on their side.
func (c *TwitterClient) SearchRecent(ctx context.Context, query string, since time.Time, maxResults int) ([]market.TextItem, error) {
	if maxResults > 100 {
		maxResults = 100
	}
	if maxResults < 10 {
		maxResults = 10
	}

	q := url.Values{}
	q.Set("query", query)
	q.Set("max_results", strconv.Itoa(maxResults))
	q.Set("start_time", since.UTC().Format(time.RFC3339))
	q.Set("tweet.fields", "created_at")

	endpoint := fmt.Sprintf("%s/2/tweets/search/recent?%s", c.baseURL, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.bearer)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &market.APIError{StatusCode: resp.StatusCode, Endpoint: "tweets/search/recent", Message: resp.Status}
	}

	var payload tweetSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	items := make([]market.TextItem, 0, len(payload.Data))
	for _, tw := range payload.Data {
		items = append(items, market.TextItem{Text: tw.Text, CreatedAt: tw.CreatedAt})
	}
	return items, nil
}
