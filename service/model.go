package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cogniclear/cogniclear/classify"
	"github.com/cogniclear/cogniclear/descriptor"
)

// Model turns a batch of compact descriptors into classified items.
type Model interface {
	Simplify(ctx context.Context, req classify.Request) ([]descriptor.ClassifiedItem, error)
}

const systemPrompt = `You simplify web page elements for users with cognitive disabilities.
For each element, return a JSON object with:
- id: the element id, unchanged
- originalText: the element's text, unchanged
- simplifiedText: a short, plain-language label (max 5 words)
- category: one of "Navigation", "Action/Task", "Help/Support"
- importance: "essential" or "noise"
Respond with ONLY a JSON array, one object per input element, in input order.`

// chatRequest is the OpenAI Chat Completions wire format.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float32       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// OpenAIModel calls an OpenAI-compatible chat completions endpoint.
type OpenAIModel struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	logger  *slog.Logger
}

// OpenAIOption configures an OpenAIModel.
type OpenAIOption func(*OpenAIModel)

// WithModelHTTPClient overrides the underlying http.Client.
func WithModelHTTPClient(c *http.Client) OpenAIOption {
	return func(m *OpenAIModel) { m.client = c }
}

// WithModelLogger sets a custom logger.
func WithModelLogger(l *slog.Logger) OpenAIOption {
	return func(m *OpenAIModel) { m.logger = l }
}

// NewOpenAIModel creates a model client. baseURL is the server root; the
// chat completions path is appended.
func NewOpenAIModel(baseURL, apiKey, model string, opts ...OpenAIOption) *OpenAIModel {
	m := &OpenAIModel{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Simplify sends the batch to the model and parses the returned array.
func (m *OpenAIModel) Simplify(ctx context.Context, req classify.Request) ([]descriptor.ClassifiedItem, error) {
	elements, err := json.Marshal(req.Elements)
	if err != nil {
		return nil, fmt.Errorf("service: marshal elements: %w", err)
	}

	user := fmt.Sprintf("Page: %s (%s)\nElements:\n%s", req.PageTitle, req.PageURL, elements)
	body, err := json.Marshal(chatRequest{
		Model: m.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: user},
		},
		MaxTokens:   2000,
		Temperature: 0.3,
	})
	if err != nil {
		return nil, fmt.Errorf("service: marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		m.baseURL+"/v1/chat/completions", strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("service: create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if m.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+m.apiKey)
	}

	start := time.Now()
	resp, err := m.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("service: chat request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		m.logger.Error("service: model http error",
			"status", resp.StatusCode, "body", string(raw))
		return nil, fmt.Errorf("service: model returned status %d", resp.StatusCode)
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return nil, fmt.Errorf("service: decode chat response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("service: model returned no choices")
	}

	content := cleanModelOutput(chat.Choices[0].Message.Content)
	var items []descriptor.ClassifiedItem
	if err := json.Unmarshal([]byte(content), &items); err != nil {
		return nil, fmt.Errorf("service: parse model output: %w", err)
	}

	m.logger.Debug("service: model batch done",
		"elements", len(req.Elements), "items", len(items),
		"tokens", chat.Usage.TotalTokens, "elapsed", time.Since(start))
	return items, nil
}

// cleanModelOutput strips markdown code fences the model sometimes wraps
// around its JSON.
func cleanModelOutput(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// RuleModel serves the endpoint with the same keyword rules the client
// falls back to, for deployments without a model backend.
type RuleModel struct {
	rules classify.Fallback
}

// NewRuleModel creates a RuleModel.
func NewRuleModel() *RuleModel { return &RuleModel{} }

// Simplify classifies by keyword rules. Compact descriptors carry enough
// signal for the rules, so the widening loses nothing.
func (m *RuleModel) Simplify(ctx context.Context, req classify.Request) ([]descriptor.ClassifiedItem, error) {
	els := make([]descriptor.ElementDescriptor, len(req.Elements))
	for i, c := range req.Elements {
		els[i] = descriptor.ElementDescriptor{
			ID:         c.ID,
			Text:       c.Text,
			AriaLabel:  c.AriaLabel,
			ParentText: c.ParentText,
			Type:       c.Type,
		}
	}
	return m.rules.ClassifyLocal(els), nil
}
