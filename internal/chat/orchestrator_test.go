package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ankicli/internal/anki"
	"ankicli/internal/config"
	"ankicli/internal/conversation"
	"ankicli/internal/llm"
	"ankicli/internal/types"
)

// turnScript is one canned StreamMessage outcome.
type turnScript struct {
	resp *llm.MessageResponse
	err  error
}

// scriptedLLM plays back canned turns and records every request.
type scriptedLLM struct {
	mu            sync.Mutex
	turns         []turnScript
	requests      []llm.MessageRequest
	completeReply string
}

func (c *scriptedLLM) StreamMessage(ctx context.Context, req llm.MessageRequest, onText func(string)) (*llm.MessageResponse, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	if len(c.turns) == 0 {
		c.mu.Unlock()
		return nil, errors.New("scriptedLLM: no turns left")
	}
	turn := c.turns[0]
	c.turns = c.turns[1:]
	c.mu.Unlock()

	if turn.err != nil {
		return nil, turn.err
	}
	if onText != nil {
		for _, b := range turn.resp.Blocks {
			if b.Kind == types.BlockText && b.Text != "" {
				onText(b.Text)
			}
		}
	}
	return turn.resp, nil
}

func (c *scriptedLLM) Complete(ctx context.Context, model, system, prompt string, maxTokens int) (string, error) {
	return c.completeReply, nil
}

func textTurn(text string, in, out int) turnScript {
	return turnScript{resp: &llm.MessageResponse{
		Blocks:     []types.Block{types.TextBlock(text)},
		StopReason: "end_turn",
		Usage:      llm.Usage{InputTokens: in, OutputTokens: out},
	}}
}

func toolTurn(text, id, name string, input map[string]interface{}) turnScript {
	return turnScript{resp: &llm.MessageResponse{
		Blocks: []types.Block{
			types.TextBlock(text),
			types.ToolUseBlock(id, name, input),
		},
		StopReason: "tool_use",
		Usage:      llm.Usage{InputTokens: 100, OutputTokens: 10},
	}}
}

// fakeAnkiServer answers the AnkiConnect actions the tests touch.
func fakeAnkiServer(t *testing.T) *anki.Client {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var env struct {
			Action string                 `json:"action"`
			Params map[string]interface{} `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&env))

		var result interface{}
		switch env.Action {
		case "deckNames":
			result = []string{"Spanish"}
		case "getDeckStats":
			result = map[string]interface{}{
				"1": map[string]interface{}{"name": "Spanish", "new_count": 1, "learn_count": 2, "review_count": 3},
			}
		case "findNotes":
			result = []int64{11, 12}
		case "notesInfo":
			result = []map[string]interface{}{
				{
					"noteId": 11,
					"fields": map[string]interface{}{
						"Front": map[string]interface{}{"value": "to speak"},
						"Back":  map[string]interface{}{"value": "<b>hablar</b>"},
					},
					"tags": []string{"verb"},
				},
				{
					"noteId": 12,
					"fields": map[string]interface{}{
						"Front": map[string]interface{}{"value": "house"},
						"Back":  map[string]interface{}{"value": "<b>casa</b>"},
					},
					"tags": []string{"noun"},
				},
			}
		default:
			t.Errorf("unexpected AnkiConnect action %q", env.Action)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"result": result, "error": nil})
	}))
	t.Cleanup(srv.Close)
	return anki.NewClient(srv.URL)
}

func newTestAssistant(t *testing.T, client llm.Client) *Assistant {
	cfg := config.Default()
	cfg.DelegateRateLimitMillis = 0
	a, err := New(cfg, t.TempDir(), client, fakeAnkiServer(t))
	require.NoError(t, err)
	return a
}

func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func kinds(events []Event) []EventKind {
	out := make([]EventKind, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Kind)
	}
	return out
}

func TestChatPlainTurn(t *testing.T) {
	client := &scriptedLLM{turns: []turnScript{textTurn("¡Hola! ¿Qué quieres estudiar?", 500, 20)}}
	a := newTestAssistant(t, client)

	events := collect(t, a.Chat(context.Background(), "hola"))
	require.Equal(t, []EventKind{EventTextDelta, EventContextStatus}, kinds(events))

	assert.Equal(t, "¡Hola! ¿Qué quieres estudiar?", events[0].Text)

	status := events[1].Status
	assert.Equal(t, 500, status.InputTokens)
	assert.Equal(t, 20, status.OutputTokens)
	assert.Equal(t, 520, status.TotalTokens)
	assert.Equal(t, 200_000, status.MaxTokens)
	assert.InDelta(t, 0.25, status.PercentUsed, 0.001)

	// Turn ends with user + assistant appended and autosaved.
	assert.Equal(t, 2, a.MessageCount())
	path := conversation.DefaultPath(a.configDir)
	_, err := os.Stat(path)
	assert.NoError(t, err)

	// The request carries the full catalogue and the model's output cap.
	require.Len(t, client.requests, 1)
	assert.Equal(t, 16_384, client.requests[0].MaxTokens)
	assert.NotEmpty(t, client.requests[0].Tools)
	assert.NotEmpty(t, client.requests[0].System)
}

func TestChatToolTurn(t *testing.T) {
	client := &scriptedLLM{turns: []turnScript{
		toolTurn("Let me check.", "tu_1", "list_decks", map[string]interface{}{}),
		textTurn("You have one deck: Spanish.", 700, 30),
	}}
	a := newTestAssistant(t, client)

	events := collect(t, a.Chat(context.Background(), "what decks do I have?"))
	require.Equal(t, []EventKind{
		EventTextDelta, EventContextStatus,
		EventToolUse, EventToolResult,
		EventTextDelta, EventContextStatus,
	}, kinds(events))

	assert.Equal(t, "list_decks", events[2].ToolName)
	assert.Equal(t, "list_decks", events[3].ToolName)
	assert.Contains(t, events[3].ToolResult, "Spanish")
	assert.Contains(t, events[3].ToolResult, "New: 1")

	// user, assistant(tool_use), user(tool_result), assistant.
	assert.Equal(t, 4, a.MessageCount())

	// Output tokens accumulate across the loop; input is the last snapshot.
	status := events[5].Status
	assert.Equal(t, 700, status.InputTokens)
	assert.Equal(t, 40, status.OutputTokens)

	// The synthetic tool_result message pairs with the tool_use ID.
	require.Len(t, client.requests, 2)
	msgs := client.requests[1].Messages
	last := msgs[len(msgs)-1]
	assert.Equal(t, types.RoleUser, last.Role)
	assert.Equal(t, []string{"tu_1"}, last.ToolResultIDs())
}

func TestChatRecoversFromBrokenPairing(t *testing.T) {
	client := &scriptedLLM{turns: []turnScript{
		{err: errors.New("API request failed with status 400: messages: tool_use ids were found without tool_result blocks")},
		textTurn("All good now.", 200, 10),
	}}
	a := newTestAssistant(t, client)

	events := collect(t, a.Chat(context.Background(), "continue"))
	require.Equal(t, []EventKind{EventError, EventTextDelta, EventContextStatus}, kinds(events))
	assert.Equal(t, "Recovering from corrupted conversation state...", events[0].Text)
	assert.Equal(t, "All good now.", events[1].Text)

	// The retry re-appends the user message exactly once.
	assert.Equal(t, 2, a.MessageCount())
	require.Len(t, client.requests, 2)
	msgs := client.requests[1].Messages
	require.Len(t, msgs, 1)
	assert.Equal(t, "continue", msgs[0].PlainText())
}

func TestChatUnrecoverableError(t *testing.T) {
	client := &scriptedLLM{turns: []turnScript{
		{err: errors.New("API request failed with status 500")},
	}}
	a := newTestAssistant(t, client)

	events := collect(t, a.Chat(context.Background(), "hola"))
	require.Equal(t, []EventKind{EventError}, kinds(events))
	assert.Contains(t, events[0].Text, "status 500")
	assert.Equal(t, 1, a.MessageCount())
}

func TestChatBackgroundDelegate(t *testing.T) {
	client := &scriptedLLM{
		turns: []turnScript{
			toolTurn("Reformatting the deck.", "tu_1", "all_cards_delegate", map[string]interface{}{
				"deck_name": "Spanish",
				"prompt":    "bold the Spanish word",
				"dry_run":   true,
			}),
			textTurn("Done, previewed 2 changes.", 900, 50),
		},
		completeReply: `{"front": null, "back": "<b>updated</b>", "tags": null, "reasoning": "bolded"}`,
	}
	a := newTestAssistant(t, client)

	events := collect(t, a.Chat(context.Background(), "reformat my deck"))

	var progress, results []Event
	for _, ev := range events {
		switch ev.Kind {
		case EventDelegateProgress:
			progress = append(progress, ev)
		case EventToolResult:
			results = append(results, ev)
		}
	}

	// One progress event per card, forwarded while the tool ran.
	require.Len(t, progress, 2)
	assert.Equal(t, 2, progress[0].Progress.Total)
	assert.Equal(t, 2, progress[1].Progress.Completed)
	assert.True(t, progress[0].Progress.Success)

	require.Len(t, results, 1)
	result := results[0].ToolResult
	assert.Contains(t, result, "[DRY RUN - No changes applied]")
	assert.Contains(t, result, "Processed 2 cards from 'Spanish'")
	assert.Contains(t, result, "Changed: 2, Errors: 0")
	assert.Contains(t, result, "Preview of changes:")
}

func TestAssistantSessionOps(t *testing.T) {
	client := &scriptedLLM{turns: []turnScript{textTurn("hola", 100, 5)}}
	a := newTestAssistant(t, client)

	collect(t, a.Chat(context.Background(), "hola"))
	require.Equal(t, 2, a.MessageCount())

	t.Run("reset clears session and file", func(t *testing.T) {
		require.NoError(t, a.Reset())
		assert.Equal(t, 0, a.MessageCount())
		_, err := os.Stat(conversation.DefaultPath(a.configDir))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("model switch updates status", func(t *testing.T) {
		a.SetModel("claude-opus-4-6")
		assert.Equal(t, "claude-opus-4-6", a.Model())
		assert.Equal(t, "Claude Opus 4.6", a.ModelName())
		assert.Equal(t, 200_000, a.ContextStatus().MaxTokens)
	})
}
