package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"ankicli/internal/logging"
	"ankicli/internal/types"
)

// =============================================================================
// ANTHROPIC CLIENT
// =============================================================================

// AnthropicConfig holds client construction options.
type AnthropicConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// DefaultAnthropicConfig returns sensible defaults.
func DefaultAnthropicConfig(apiKey string) AnthropicConfig {
	return AnthropicConfig{
		APIKey:  apiKey,
		BaseURL: "https://api.anthropic.com/v1",
		Timeout: 10 * time.Minute, // Streaming tool turns can run long
	}
}

// AnthropicClient implements Client against the Anthropic Messages API.
type AnthropicClient struct {
	apiKey      string
	baseURL     string
	httpClient  *http.Client
	mu          sync.Mutex
	lastRequest time.Time
}

// NewAnthropicClient creates a client with default configuration.
func NewAnthropicClient(apiKey string) *AnthropicClient {
	return NewAnthropicClientWithConfig(DefaultAnthropicConfig(apiKey))
}

// NewAnthropicClientWithConfig creates a client with custom configuration.
func NewAnthropicClientWithConfig(cfg AnthropicConfig) *AnthropicClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com/v1"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Minute
	}
	return &AnthropicClient{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// wire request/response shapes

type anthropicRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	System    string          `json:"system,omitempty"`
	Messages  []types.Message `json:"messages"`
	Tools     []ToolSpec      `json:"tools,omitempty"`
	Stream    bool            `json:"stream,omitempty"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type anthropicResponse struct {
	Content    []types.Block   `json:"content"`
	StopReason string          `json:"stop_reason"`
	Usage      Usage           `json:"usage"`
	Error      *anthropicError `json:"error,omitempty"`
}

// throttle enforces minimum spacing between requests.
func (c *AnthropicClient) throttle() {
	c.mu.Lock()
	elapsed := time.Since(c.lastRequest)
	if elapsed < 100*time.Millisecond {
		time.Sleep(100*time.Millisecond - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()
}

func (c *AnthropicClient) newRequest(ctx context.Context, body []byte, stream bool) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}
	return req, nil
}

// Complete sends a single system+user prompt without streaming.
func (c *AnthropicClient) Complete(ctx context.Context, model, system, prompt string, maxTokens int) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	startTime := time.Now()
	logging.APIDebug("[Anthropic] Complete: model=%s system_len=%d prompt_len=%d", model, len(system), len(prompt))

	if c.apiKey == "" {
		return "", fmt.Errorf("API key not configured")
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	reqBody := anthropicRequest{
		Model:     model,
		MaxTokens: maxTokens,
		System:    system,
		Messages:  []types.Message{types.UserText(prompt)},
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	// Retry loop for rate limits and transient errors
	maxRetries := 3
	var lastErr error

	for i := 0; i <= maxRetries; i++ {
		if i > 0 {
			time.Sleep(time.Duration(1<<uint(i-1)) * time.Second)
		}
		c.throttle()

		req, err := c.newRequest(ctx, jsonData, false)
		if err != nil {
			return "", err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("API returned status %d", resp.StatusCode)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			logging.APIError("[Anthropic] Complete: API returned status %d", resp.StatusCode)
			return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
		}

		var parsed anthropicResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return "", fmt.Errorf("failed to parse response: %w", err)
		}
		if parsed.Error != nil {
			return "", fmt.Errorf("API error: %s", parsed.Error.Message)
		}

		var result strings.Builder
		for _, block := range parsed.Content {
			if block.Kind == types.BlockText {
				result.WriteString(block.Text)
			}
		}
		logging.API("[Anthropic] Complete: done in %v response_len=%d", time.Since(startTime), result.Len())
		return strings.TrimSpace(result.String()), nil
	}

	logging.APIError("[Anthropic] Complete: max retries exceeded after %v: %v", time.Since(startTime), lastErr)
	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

// =============================================================================
// STREAMING
// =============================================================================

// sseEvent covers the subset of stream event fields we consume.
type sseEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index"`

	Message *struct {
		Usage Usage `json:"usage"`
	} `json:"message,omitempty"`

	ContentBlock *struct {
		Type string `json:"type"`
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"content_block,omitempty"`

	Delta *struct {
		Type        string `json:"type"`
		Text        string `json:"text,omitempty"`
		PartialJSON string `json:"partial_json,omitempty"`
		StopReason  string `json:"stop_reason,omitempty"`
	} `json:"delta,omitempty"`

	Usage *Usage          `json:"usage,omitempty"`
	Error *anthropicError `json:"error,omitempty"`
}

// blockBuilder accumulates one content block across stream events.
type blockBuilder struct {
	kind      types.BlockKind
	text      strings.Builder
	toolID    string
	toolName  string
	inputJSON strings.Builder
}

func (b *blockBuilder) finish() (types.Block, error) {
	switch b.kind {
	case types.BlockText:
		return types.TextBlock(b.text.String()), nil
	case types.BlockToolUse:
		input := map[string]interface{}{}
		raw := strings.TrimSpace(b.inputJSON.String())
		if raw != "" {
			if err := json.Unmarshal([]byte(raw), &input); err != nil {
				return types.Block{}, fmt.Errorf("invalid tool input for %s: %w", b.toolName, err)
			}
		}
		return types.ToolUseBlock(b.toolID, b.toolName, input), nil
	default:
		return types.Block{}, fmt.Errorf("unsupported streamed block kind %q", b.kind)
	}
}

// StreamMessage sends the conversation with streaming enabled, invoking
// onText for each text delta and assembling tool_use blocks from
// input_json_delta events.
func (c *AnthropicClient) StreamMessage(ctx context.Context, mreq MessageRequest, onText func(delta string)) (*MessageResponse, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	startTime := time.Now()
	logging.APIDebug("[Anthropic] StreamMessage: model=%s messages=%d tools=%d",
		mreq.Model, len(mreq.Messages), len(mreq.Tools))

	if c.apiKey == "" {
		return nil, fmt.Errorf("API key not configured")
	}
	maxTokens := mreq.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	reqBody := anthropicRequest{
		Model:     mreq.Model,
		MaxTokens: maxTokens,
		System:    mreq.System,
		Messages:  mreq.Messages,
		Tools:     mreq.Tools,
		Stream:    true,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	c.throttle()
	req, err := c.newRequest(ctx, jsonData, true)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		logging.APIError("[Anthropic] StreamMessage: API returned status %d", resp.StatusCode)
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	result := &MessageResponse{}
	builders := make(map[int]*blockBuilder)
	order := []int{}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" || data == "[DONE]" {
			continue
		}

		var evt sseEvent
		if err := json.Unmarshal([]byte(data), &evt); err != nil {
			continue
		}
		if evt.Error != nil {
			return nil, fmt.Errorf("API error: %s", evt.Error.Message)
		}

		switch evt.Type {
		case "message_start":
			if evt.Message != nil {
				result.Usage.InputTokens = evt.Message.Usage.InputTokens
			}
		case "content_block_start":
			if evt.ContentBlock == nil {
				continue
			}
			b := &blockBuilder{}
			switch evt.ContentBlock.Type {
			case "text":
				b.kind = types.BlockText
			case "tool_use":
				b.kind = types.BlockToolUse
				b.toolID = evt.ContentBlock.ID
				b.toolName = evt.ContentBlock.Name
			default:
				continue
			}
			builders[evt.Index] = b
			order = append(order, evt.Index)
		case "content_block_delta":
			b := builders[evt.Index]
			if b == nil || evt.Delta == nil {
				continue
			}
			switch evt.Delta.Type {
			case "text_delta":
				b.text.WriteString(evt.Delta.Text)
				if onText != nil && evt.Delta.Text != "" {
					onText(evt.Delta.Text)
				}
			case "input_json_delta":
				b.inputJSON.WriteString(evt.Delta.PartialJSON)
			}
		case "message_delta":
			if evt.Delta != nil && evt.Delta.StopReason != "" {
				result.StopReason = evt.Delta.StopReason
			}
			if evt.Usage != nil {
				result.Usage.OutputTokens = evt.Usage.OutputTokens
			}
		}
	}
	if err := scanner.Err(); err != nil {
		logging.APIError("[Anthropic] StreamMessage: stream error after %v: %v", time.Since(startTime), err)
		return nil, fmt.Errorf("stream error: %w", err)
	}

	for _, idx := range order {
		block, err := builders[idx].finish()
		if err != nil {
			return nil, err
		}
		result.Blocks = append(result.Blocks, block)
	}

	logging.API("[Anthropic] StreamMessage: done in %v blocks=%d stop_reason=%s in=%d out=%d",
		time.Since(startTime), len(result.Blocks), result.StopReason,
		result.Usage.InputTokens, result.Usage.OutputTokens)
	return result, nil
}
