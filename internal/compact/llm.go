package compact

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPCompleter is the default Completer, speaking the OpenAI-compatible
// chat-completions protocol.
type HTTPCompleter struct {
	baseURL    string
	maxTokens  int
	httpClient *http.Client
}

// NewHTTPCompleter builds a completer against baseURL. maxTokens bounds the
// response size; zero leaves the cap to the provider.
func NewHTTPCompleter(baseURL string, maxTokens int) *HTTPCompleter {
	return &HTTPCompleter{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		maxTokens:  maxTokens,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// Complete sends one prompt and returns the model output text.
func (c *HTTPCompleter) Complete(ctx context.Context, req CompleteRequest) (string, error) {
	if strings.TrimSpace(req.APIKey) == "" {
		return "", fmt.Errorf("%w: missing api key", ErrModelUnavailable)
	}
	if c.baseURL == "" {
		return "", fmt.Errorf("%w: missing base url", ErrModelUnavailable)
	}
	if req.Model == "" {
		return "", fmt.Errorf("%w: missing model", ErrModelUnavailable)
	}

	maxTokens := c.maxTokens
	if req.ReserveTokens > 0 {
		maxTokens = req.ReserveTokens
	}

	body := map[string]any{
		"model": req.Model,
		"messages": []map[string]string{{
			"role":    "user",
			"content": req.Prompt,
		}},
		"temperature": 0.3,
	}
	if maxTokens > 0 {
		body["max_tokens"] = maxTokens
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: send request: %v", ErrModelCallFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrModelCallFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: http %d: %s", ErrModelCallFailed, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var decoded struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrModelCallFailed, err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices in response", ErrModelCallFailed)
	}
	return strings.TrimSpace(decoded.Choices[0].Message.Content), nil
}
