// Package chat is the conversation orchestrator: it drives the streaming
// model loop, dispatches tool calls, and emits UI events.
package chat

import (
	"ankicli/internal/delegate"
)

// EventKind identifies an orchestrator event.
type EventKind string

const (
	// EventTextDelta carries one streamed text fragment.
	EventTextDelta EventKind = "text_delta"
	// EventToolUse announces a tool invocation before it runs.
	EventToolUse EventKind = "tool_use"
	// EventToolResult carries a finished tool's result text.
	EventToolResult EventKind = "tool_result"
	// EventDelegateProgress reports sub-agent batch progress.
	EventDelegateProgress EventKind = "delegate_progress"
	// EventContextStatus reports token usage after each model response.
	EventContextStatus EventKind = "context_status"
	// EventError carries a recoverable or fatal error message.
	EventError EventKind = "error"
)

// ContextStatus is the token usage snapshot emitted after each response.
// PercentUsed measures the prompt (input) against the context window; output
// tokens are reported but do not occupy the window.
type ContextStatus struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
	MaxTokens    int
	PercentUsed  float64
	Model        string
	ModelName    string
}

// Event is one item of the chat event stream.
type Event struct {
	Kind EventKind

	// Text for EventTextDelta and EventError.
	Text string

	// Tool fields for EventToolUse and EventToolResult.
	ToolName   string
	ToolInput  map[string]interface{}
	ToolResult string

	// Progress for EventDelegateProgress.
	Progress delegate.ProgressEvent

	// Status for EventContextStatus.
	Status ContextStatus
}
