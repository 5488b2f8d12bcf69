// Package openai implements ai.Model against the OpenAI Responses API with
// strict json_schema structured outputs.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spigell/skill-mapper/internal/ai"
	"github.com/spigell/skill-mapper/internal/logger"
	"github.com/spigell/skill-mapper/internal/utils"

	"go.uber.org/zap"
)

const (
	defaultBaseURL      = "https://api.openai.com"
	defaultModel        = "gpt-4o-mini"
	defaultMaxRetries   = 3
	defaultMaxLogLength = 200
	responsesPath       = "/v1/responses"
)

type httpError struct {
	StatusCode int
	Body       string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, utils.TruncateForLog(e.Body, 300))
}

func (e *httpError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// Client implements ai.Model.
type Client struct {
	HTTPClient *http.Client
	BaseURL    string

	apiKey     string
	model      string
	maxRetries int
	maxLogLen  int
	logger     *zap.Logger
}

func New(apiKey, model string, maxRetries, maxLogLength int, log *zap.Logger) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}
	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Client{
		HTTPClient: &http.Client{Timeout: 120 * time.Second},
		BaseURL:    defaultBaseURL,
		apiKey:     apiKey,
		model:      model,
		maxRetries: maxRetries,
		maxLogLen:  maxLogLength,
		logger:     logger.WithCommonFields(log, "openai", model),
	}, nil
}

func (c *Client) Name() string {
	return "openai/" + c.model
}

type inputMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responsesRequest struct {
	Model        string         `json:"model"`
	Instructions string         `json:"instructions,omitempty"`
	Input        []inputMessage `json:"input"`
	Text         *struct {
		Format map[string]any `json:"format"`
	} `json:"text,omitempty"`
}

type responsesResponse struct {
	Output []struct {
		Type    string `json:"type"`
		Role    string `json:"role,omitempty"`
		Content []struct {
			Type    string `json:"type"`
			Text    string `json:"text,omitempty"`
			Refusal string `json:"refusal,omitempty"`
		} `json:"content,omitempty"`
	} `json:"output"`
}

// Generate implements ai.Model.
func (c *Client) Generate(ctx context.Context, req ai.Request) (string, error) {
	if strings.TrimSpace(req.Input) == "" {
		return "", errors.New("input must not be empty")
	}

	body := responsesRequest{
		Model:        c.model,
		Instructions: strings.TrimSpace(req.Instruction),
		Input:        []inputMessage{{Role: "user", Content: req.Input}},
	}

	if req.Schema != nil {
		name := req.SchemaName
		if name == "" {
			name = "response"
		}
		body.Text = &struct {
			Format map[string]any `json:"format"`
		}{Format: map[string]any{
			"type":   "json_schema",
			"name":   name,
			"schema": req.Schema.Map(),
			"strict": true,
		}}
	}

	c.logger.Debug("openai responses request",
		zap.Int("prompt_length", utf8.RuneCountInString(req.Input)),
		zap.String("prompt_preview", utils.TruncateForLog(req.Input, c.maxLogLen)),
		zap.Bool("structured", req.Schema != nil),
	)

	var resp responsesResponse
	if err := c.do(ctx, &body, &resp); err != nil {
		return "", fmt.Errorf("%w: %w", ai.ErrModelUnavailable, err)
	}

	text, refusal := outputText(resp)
	if refusal != "" {
		return "", fmt.Errorf("%w: model refused: %s", ai.ErrModelUnavailable, refusal)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: no output_text in response", ai.ErrModelUnavailable)
	}

	c.logger.Debug("openai responses response",
		zap.Int("response_length", utf8.RuneCountInString(text)),
		zap.String("response_preview", utils.TruncateForLog(text, c.maxLogLen)),
	)

	return strings.TrimSpace(text), nil
}

func (c *Client) do(ctx context.Context, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	backoff := time.Second
	for attempt := 1; ; attempt++ {
		raw, err := c.doOnce(ctx, payload)
		if err == nil {
			if err := json.Unmarshal(raw, out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			return nil
		}

		var herr *httpError
		if !errors.As(err, &herr) || !herr.retryable() || attempt >= c.maxRetries {
			return err
		}

		c.logger.Warn("openai request failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.maxRetries),
			zap.Duration("delay", backoff),
			zap.Error(err),
		)

		if err := utils.WaitFor(ctx, backoff); err != nil {
			return err
		}
		backoff *= 2
	}
}

func (c *Client) doOnce(ctx context.Context, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.BaseURL, "/")+responsesPath, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &httpError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	return raw, nil
}

func outputText(resp responsesResponse) (string, string) {
	var out strings.Builder
	for _, item := range resp.Output {
		if item.Type != "message" || item.Role != "assistant" {
			continue
		}
		for _, content := range item.Content {
			switch content.Type {
			case "output_text":
				out.WriteString(content.Text)
			case "refusal":
				return "", content.Refusal
			}
		}
	}
	return out.String(), ""
}
