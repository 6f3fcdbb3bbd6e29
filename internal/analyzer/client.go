package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"call-insights-go/internal/logger"
	"call-insights-go/internal/retry"
)

// Completer issues one prompt and returns the model's text output.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Client talks to an OpenAI-style chat-completions gateway.
type Client struct {
	GatewayURL  string
	APIKey      string
	Model       string
	Temperature float64
	HTTPClient  *http.Client
}

var llmPolicy = retry.Policy{Attempts: 3, BaseDelay: 2 * time.Second}

func NewClient(gatewayURL, apiKey, model string, temperature float64) *Client {
	return &Client{
		GatewayURL:  gatewayURL,
		APIKey:      apiKey,
		Model:       model,
		Temperature: temperature,
		HTTPClient:  &http.Client{Timeout: 60 * time.Second},
	}
}

// Complete sends prompt as a single user message, retrying transport and
// server errors up to the policy budget. Client errors (4xx) are permanent.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	log := logger.Component("llm")

	reqBody := map[string]any{
		"model": c.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": c.Temperature,
	}
	data, _ := json.Marshal(reqBody)

	var content string
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.GatewayURL, bytes.NewReader(data))
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.APIKey)

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 500 {
			return fmt.Errorf("llm server error: status %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return retry.Permanent(fmt.Errorf("llm request rejected: status %d: %s", resp.StatusCode, body))
		}

		var parsed struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
		}
		if err := json.Unmarshal(body, &parsed); err != nil {
			return fmt.Errorf("decode llm response: %w", err)
		}
		if len(parsed.Choices) == 0 {
			return fmt.Errorf("llm response has no choices")
		}
		content = parsed.Choices[0].Message.Content
		return nil
	}

	notify := func(err error, wait time.Duration) {
		log.WithError(err).WithField("retry_in", wait.String()).Warn("llm call failed, retrying")
	}
	if err := llmPolicy.DoNotify(ctx, op, notify); err != nil {
		return "", fmt.Errorf("llm call failed: %w", err)
	}
	return content, nil
}
