package chat

import (
	"context"
	"strings"

	"ankicli/internal/config"
	"ankicli/internal/delegate"
	"ankicli/internal/llm"
	"ankicli/internal/logging"
	"ankicli/internal/tools"
	"ankicli/internal/types"
)

// progressBuffer bounds the per-invocation progress channel between the
// delegate pool and the event loop.
const progressBuffer = 64

// Chat sends one user message and streams the resulting events. The channel
// closes when the turn is complete: after the final non-tool response, or
// after an unrecoverable error (emitted as EventError).
func (a *Assistant) Chat(ctx context.Context, userMessage string) <-chan Event {
	events := make(chan Event, 16)
	go func() {
		defer close(events)
		a.runTurn(ctx, userMessage, events)
	}()
	return events
}

// runTurn drives the model loop: stream a response, execute requested tools,
// feed results back, repeat until the model stops asking for tools.
func (a *Assistant) runTurn(ctx context.Context, userMessage string, events chan<- Event) {
	emit := func(ev Event) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	// Repair any broken tool pairing left by a crash before appending.
	a.session.Log.Repair()
	a.session.Log.Append(types.UserText(userMessage))

	for {
		req := llm.MessageRequest{
			Model:     a.model,
			System:    systemPrompt,
			MaxTokens: config.LookupModel(a.model).MaxOutputTokens,
			Messages:  a.session.Log.Messages(),
			Tools:     a.registry.Specs(),
		}

		resp, err := a.client.StreamMessage(ctx, req, func(delta string) {
			emit(Event{Kind: EventTextDelta, Text: delta})
		})
		if err != nil {
			if isToolPairingError(err) {
				logging.ChatError("corrupted conversation state: %v", err)
				emit(Event{Kind: EventError, Text: "Recovering from corrupted conversation state..."})

				// Withdraw the message we just appended, repair the log,
				// then retry with the message re-appended.
				a.session.Log.PopLastUser()
				a.session.Log.Repair()
				a.session.Log.Append(types.UserText(userMessage))
				a.autoSaveIfEnabled()
				continue
			}
			logging.ChatError("stream failed: %v", err)
			emit(Event{Kind: EventError, Text: err.Error()})
			return
		}

		// InputTokens is a full-prompt snapshot; OutputTokens accumulates.
		a.session.InputTokens = resp.Usage.InputTokens
		a.session.OutputTokens += resp.Usage.OutputTokens
		if !emit(Event{Kind: EventContextStatus, Status: a.ContextStatus()}) {
			return
		}

		a.session.Log.Append(types.Message{Role: types.RoleAssistant, Blocks: resp.Blocks})

		if !resp.HasToolUse() {
			a.autoSaveIfEnabled()
			return
		}

		var toolResults []types.Block
		for _, block := range resp.Blocks {
			if block.Kind != types.BlockToolUse {
				continue
			}
			if !emit(Event{Kind: EventToolUse, ToolName: block.Name, ToolInput: block.Input}) {
				return
			}

			var result string
			if a.registry.Mode(block.Name) == tools.ModeBackground {
				result = a.executeBackground(ctx, block.Name, block.Input, emit)
			} else {
				result = a.registry.Execute(ctx, block.Name, block.Input)
			}

			if !emit(Event{Kind: EventToolResult, ToolName: block.Name, ToolResult: result}) {
				return
			}
			toolResults = append(toolResults, types.ToolResultBlock(block.ID, result))
		}

		a.session.Log.Append(types.Message{Role: types.RoleUser, Blocks: toolResults})
	}
}

// executeBackground runs a heavy tool on its own goroutine and forwards its
// progress events while it works. The progress channel closes only after the
// tool returns, when the worker pool has fully drained.
func (a *Assistant) executeBackground(ctx context.Context, name string, input map[string]interface{}, emit func(Event) bool) string {
	progressCh := make(chan delegate.ProgressEvent, progressBuffer)
	resultCh := make(chan string, 1)

	toolCtx := delegate.WithProgress(ctx, func(ev delegate.ProgressEvent) {
		select {
		case progressCh <- ev:
		case <-ctx.Done():
		}
	})

	go func() {
		result := a.registry.Execute(toolCtx, name, input)
		close(progressCh)
		resultCh <- result
	}()

	for ev := range progressCh {
		emit(Event{Kind: EventDelegateProgress, Progress: ev})
	}
	return <-resultCh
}

// isToolPairingError reports whether a provider rejection points at broken
// tool_use/tool_result pairing, the one failure the repair transition can
// recover from.
func isToolPairingError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "tool_use") && strings.Contains(msg, "tool_result")
}
