// Package llm provides the Claude Messages API client used by the chat
// orchestrator, the compaction summarizer, and the sub-agent processors.
package llm

import (
	"context"

	"ankicli/internal/types"
)

// Usage is the token usage reported for a single API call. InputTokens is a
// snapshot of the full prompt size; OutputTokens covers only this response.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ToolSpec is a tool definition as sent to the model.
type ToolSpec struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// MessageRequest is a full-conversation model request.
type MessageRequest struct {
	Model     string
	System    string
	MaxTokens int
	Messages  []types.Message
	Tools     []ToolSpec
}

// MessageResponse is the assembled result of a model call.
type MessageResponse struct {
	Blocks     []types.Block
	StopReason string
	Usage      Usage
}

// HasToolUse reports whether the response requested any tool invocation.
func (r *MessageResponse) HasToolUse() bool {
	return r.StopReason == "tool_use"
}

// Text concatenates the text blocks of the response.
func (r *MessageResponse) Text() string {
	var out string
	for _, b := range r.Blocks {
		if b.Kind == types.BlockText {
			out += b.Text
		}
	}
	return out
}

// Client is the provider interface the rest of the assistant depends on.
type Client interface {
	// StreamMessage sends the conversation with streaming enabled. onText is
	// invoked for each text delta as it arrives; tool_use input is
	// accumulated internally and returned fully assembled.
	StreamMessage(ctx context.Context, req MessageRequest, onText func(delta string)) (*MessageResponse, error)

	// Complete sends a single system+user prompt without streaming and
	// returns the text reply. Used by sub-agents and the summarizer.
	Complete(ctx context.Context, model, system, prompt string, maxTokens int) (string, error)
}
