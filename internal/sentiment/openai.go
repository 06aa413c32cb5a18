package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"stockbot-go/internal/market"
)

// OpenAIClient implements Analyzer over the chat-completions HTTP API.
type OpenAIClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewOpenAIClient builds an analyzer client for the given model.
func NewOpenAIClient(baseURL, apiKey, model string) *OpenAIClient {
	return &OpenAIClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

const scoreSystemPrompt = "You are a financial sentiment analyzer. Respond only with a number between -1 and 1."

// ScoreSentiment asks the model for a single scalar in [-1, 1] covering
// the combined texts. The caller clamps the result; this method only
// parses it.
func (c *OpenAIClient) ScoreSentiment(ctx context.Context, texts []string) (float64, error) {
	combined := strings.Join(texts, "\n")
	prompt := fmt.Sprintf(
		"Analyze the following market-related texts and determine the overall sentiment on a scale from -1 (very negative) to 1 (very positive). Consider market implications:\n\n%s\n\nReturn only the numerical score.",
		combined,
	)
	content, err := c.complete(ctx, []chatMessage{
		{Role: "system", Content: scoreSystemPrompt},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return 0, err
	}
	score, err := strconv.ParseFloat(strings.TrimSpace(content), 64)
	if err != nil {
		return 0, fmt.Errorf("parse sentiment score %q: %w", content, err)
	}
	return score, nil
}

// SummarizeContext produces advisory analysis text combining market data
// and recent social texts. The output is never used in decisioning.
func (c *OpenAIClient) SummarizeContext(ctx context.Context, marketSummary string, texts []string) (string, error) {
	prompt := fmt.Sprintf(
		"Analyze the following market data and social media sentiment to provide trading insights:\n\nMarket Data Summary:\n%s\n\nRecent Social Media Sentiment:\n%s\n\nProvide a brief analysis of market conditions and potential trading opportunities.",
		marketSummary, strings.Join(texts, "\n"),
	)
	return c.complete(ctx, []chatMessage{
		{Role: "system", Content: "You are a financial market analyst."},
		{Role: "user", Content: prompt},
	})
}

func (c *OpenAIClient) complete(ctx context.Context, messages []chatMessage) (string, error) {
	body, err := json.Marshal(chatRequest{Model: c.model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	endpoint := c.baseURL + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &market.APIError{StatusCode: resp.StatusCode, Endpoint: "chat/completions", Message: resp.Status}
	}

	var payload chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(payload.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned")
	}
	return payload.Choices[0].Message.Content, nil
}
