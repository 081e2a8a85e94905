// Package ollama is a small client for a local Ollama server's completion API.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "llama3"

// ErrEmptyResponse is returned when the server answers without any text.
var ErrEmptyResponse = errors.New("ollama: empty response")

// Client implements single-shot prompt completion using Ollama's HTTP API.
type Client struct {
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	client      *http.Client
}

// NewClient creates an Ollama client. An empty model selects DefaultModel.
func NewClient(baseURL, model string, timeout time.Duration) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		maxTokens:   1000,
		temperature: 0.7,
		client:      &http.Client{Timeout: timeout},
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

type generateReq struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type generateResp struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

// Complete sends prompt to /api/generate with streaming off and returns the
// generated text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateReq{
		Model:  c.model,
		Prompt: prompt,
		Options: generateOptions{
			Temperature: c.temperature,
			NumPredict:  c.maxTokens,
		},
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	defer resp.Body.Close()

	var result generateResp
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil && resp.StatusCode == http.StatusOK {
		return "", fmt.Errorf("ollama generate decode: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if result.Error != "" {
			return "", fmt.Errorf("ollama generate: status %d: %s", resp.StatusCode, result.Error)
		}
		return "", fmt.Errorf("ollama generate: status %d", resp.StatusCode)
	}
	if strings.TrimSpace(result.Response) == "" {
		return "", ErrEmptyResponse
	}
	return result.Response, nil
}
