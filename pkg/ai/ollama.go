package ai

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

// OllamaService implements Classifier using a local Ollama model.
type OllamaService struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaService creates a new Ollama classifier client.
func NewOllamaService(baseURL, model string, timeout time.Duration) *OllamaService {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3"
	}
	return &OllamaService{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

// ClassifyEmail implements Classifier by prompting the model for a single
// JSON object describing the lane, destination folder and calendar intent.
func (o *OllamaService) ClassifyEmail(ctx context.Context, req ClassifyRequest) (string, error) {
	url := o.baseURL + "/api/generate"

	prompt := buildPrompt(req)

	payload := map[string]interface{}{
		"model":  o.model,
		"prompt": prompt,
		"stream": false,
		"options": map[string]interface{}{
			"temperature": 0.2,
			"num_predict": 500,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Response string `json:"response"`
		Done     bool   `json:"done"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	return result.Response, nil
}

func buildPrompt(req ClassifyRequest) string {
	var hints strings.Builder
	for key, folder := range req.Hints {
		fmt.Fprintf(&hints, "- %s -> %s\n", key, folder)
	}

	return fmt.Sprintf(`You are an elite email sorting assistant. Respond with a single JSON
object using the schema below. Do not include markdown fencing or any other text.

Schema:
{
  "lane": "archive-now" | "sticky-actionable" | "calendar-event",
  "folder": "Folder/Path",
  "confidence": 0-1,
  "reason": "short explanation",
  "calendar": {
    "title": "specific title",
    "starts_at": "ISO8601",
    "ends_at": "ISO8601",
    "location": "",
    "notes": ""
  }
}

Rules:
- "calendar" is required when lane is "calendar-event" and must be omitted otherwise.
- Prefer reusing an existing folder from the list below over inventing a new one.
- Folder names use root categories like Finance or School with concise Title Case leaves.
- Never suggest Inbox or Archive as destinations.
- lane "archive-now" means the message needs no action and can be filed immediately.
- lane "sticky-actionable" means the user still has to act on it.

Existing folders:
%s

Known sender hints:
%s
Message:
Received: %s
From: %s
Subject: %s

%s
`, strings.Join(req.Folders, "\n"), hints.String(), req.ReceivedAt.Format(time.RFC3339), req.Sender, req.Subject, req.Body)
}
