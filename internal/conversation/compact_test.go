package conversation

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ankicli/internal/llm"
	"ankicli/internal/types"
)

// scriptedClient is a canned llm.Client for compaction tests.
type scriptedClient struct {
	completeReply string
	completeErr   error
	lastPrompt    string
	lastMaxTokens int
}

func (c *scriptedClient) StreamMessage(ctx context.Context, req llm.MessageRequest, onText func(string)) (*llm.MessageResponse, error) {
	return &llm.MessageResponse{StopReason: "end_turn"}, nil
}

func (c *scriptedClient) Complete(ctx context.Context, model, system, prompt string, maxTokens int) (string, error) {
	c.lastPrompt = prompt
	c.lastMaxTokens = maxTokens
	return c.completeReply, c.completeErr
}

func chatPair(user, assistant string) []types.Message {
	return []types.Message{types.UserText(user), types.AssistantText(assistant)}
}

func TestCompact(t *testing.T) {
	t.Run("short conversation is left alone", func(t *testing.T) {
		client := &scriptedClient{completeReply: "summary"}
		c := NewCompactor(client, "claude-sonnet-4-20250514")

		sess := NewSession()
		for i := 0; i < 4; i++ {
			for _, m := range chatPair("q", "a") {
				sess.Log.Append(m)
			}
		}

		result, err := c.Compact(context.Background(), sess, 4)
		require.NoError(t, err)
		assert.Equal(t, "Conversation too short to compact.", result)
		assert.Equal(t, 8, sess.Log.Len())
		assert.Empty(t, client.lastPrompt)
	})

	t.Run("older messages collapse into summary pair", func(t *testing.T) {
		client := &scriptedClient{completeReply: "We added hablar and correr to the Spanish deck."}
		c := NewCompactor(client, "claude-sonnet-4-20250514")

		sess := NewSession()
		sess.InputTokens = 100_000
		for i := 0; i < 6; i++ {
			for _, m := range chatPair("question", "answer") {
				sess.Log.Append(m)
			}
		}

		result, err := c.Compact(context.Background(), sess, 4)
		require.NoError(t, err)

		// 4 old messages summarized, 8 recent kept, plus the summary pair.
		assert.Equal(t, 10, sess.Log.Len())
		assert.Equal(t, "Compacted 4 messages into summary. Estimated tokens saved: ~70,000", result)
		assert.Equal(t, 30_000, sess.InputTokens)

		first := sess.Log.At(0)
		assert.Equal(t, types.RoleUser, first.Role)
		assert.Contains(t, first.PlainText(), "[CONVERSATION SUMMARY]")
		assert.Contains(t, first.PlainText(), "hablar")
		assert.Contains(t, first.PlainText(), "Continuing our conversation...")

		second := sess.Log.At(1)
		assert.Equal(t, types.RoleAssistant, second.Role)
		assert.Contains(t, second.PlainText(), "I understand.")

		assert.Equal(t, 1000, client.lastMaxTokens)
		assert.Contains(t, client.lastPrompt, "Summarize this conversation history")
		assert.Contains(t, client.lastPrompt, "USER: question")
	})

	t.Run("summarizer failure propagates without mutation", func(t *testing.T) {
		client := &scriptedClient{completeErr: assert.AnError}
		c := NewCompactor(client, "claude-sonnet-4-20250514")

		sess := NewSession()
		for i := 0; i < 6; i++ {
			for _, m := range chatPair("q", "a") {
				sess.Log.Append(m)
			}
		}

		_, err := c.Compact(context.Background(), sess, 4)
		assert.Error(t, err)
		assert.Equal(t, 12, sess.Log.Len())
	})

	t.Run("long transcript is capped", func(t *testing.T) {
		client := &scriptedClient{completeReply: "summary"}
		c := NewCompactor(client, "claude-sonnet-4-20250514")

		sess := NewSession()
		big := strings.Repeat("palabra ", 3000)
		for i := 0; i < 6; i++ {
			for _, m := range chatPair(big, big) {
				sess.Log.Append(m)
			}
		}

		_, err := c.Compact(context.Background(), sess, 4)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(client.lastPrompt), transcriptLimit+500)
	})
}

func TestRenderTranscript(t *testing.T) {
	msgs := []types.Message{
		types.UserText("add hablar"),
		{Role: types.RoleAssistant, Blocks: []types.Block{
			types.TextBlock("adding now"),
			types.ToolUseBlock("tu_1", "add_card", map[string]interface{}{"front": "to speak"}),
		}},
		{Role: types.RoleUser, Blocks: []types.Block{
			types.ToolResultBlock("tu_1", strings.Repeat("x", 300)),
		}},
	}

	out := renderTranscript(msgs)
	assert.Contains(t, out, "USER: add hablar")
	assert.Contains(t, out, "ASSISTANT: adding now")
	assert.Contains(t, out, "TOOL CALL: add_card(")
	assert.Contains(t, out, "TOOL RESULT: "+strings.Repeat("x", 200)+"...")
	assert.NotContains(t, out, strings.Repeat("x", 201))
}

func TestGroupThousands(t *testing.T) {
	assert.Equal(t, "0", groupThousands(0))
	assert.Equal(t, "999", groupThousands(999))
	assert.Equal(t, "1,000", groupThousands(1000))
	assert.Equal(t, "1,234,567", groupThousands(1234567))
	assert.Equal(t, "-70,000", groupThousands(-70000))
}
