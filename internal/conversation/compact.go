package conversation

import (
	"context"
	"fmt"
	"strings"

	"ankicli/internal/llm"
	"ankicli/internal/logging"
	"ankicli/internal/types"
)

// DefaultKeepRecentPairs is the number of recent message pairs compaction
// keeps intact.
const DefaultKeepRecentPairs = 4

// transcriptLimit caps the text sent to the summarizer.
const transcriptLimit = 15000

const summaryAck = "I understand. I've noted the context from our previous conversation. How can I help you continue?"

// Compactor summarizes the older portion of a conversation into a single
// summary message pair, shrinking the prompt while keeping recent turns.
type Compactor struct {
	client llm.Client
	model  string
}

// NewCompactor creates a compactor using the given model for summaries.
func NewCompactor(client llm.Client, model string) *Compactor {
	return &Compactor{client: client, model: model}
}

// SetModel switches the summarization model.
func (c *Compactor) SetModel(model string) {
	c.model = model
}

// Compact summarizes all but the last keepRecentPairs message pairs of the
// session. Returns a status string; a too-short conversation is reported in
// the string and leaves the session untouched.
func (c *Compactor) Compact(ctx context.Context, sess *Session, keepRecentPairs int) (string, error) {
	if keepRecentPairs <= 0 {
		keepRecentPairs = DefaultKeepRecentPairs
	}
	if sess.Log.Len() <= keepRecentPairs*2 {
		return "Conversation too short to compact.", nil
	}

	split := sess.Log.Len() - keepRecentPairs*2
	old := sess.Log.Messages()[:split]
	transcript := renderTranscript(old)
	if len(transcript) > transcriptLimit {
		transcript = transcript[:transcriptLimit]
	}

	prompt := fmt.Sprintf(`Summarize this conversation history concisely, preserving key information:
- What decks/cards were discussed
- What cards were added (include the words/terms)
- Any user preferences mentioned
- Current task context

Conversation:
%s

Provide a brief summary (2-4 paragraphs max):`, transcript)

	summary, err := c.client.Complete(ctx, c.model, "", prompt, 1000)
	if err != nil {
		return "", fmt.Errorf("failed to summarize conversation: %w", err)
	}

	summaryMsg := types.UserText(fmt.Sprintf(
		"[CONVERSATION SUMMARY]\n%s\n[END SUMMARY]\n\nContinuing our conversation...", summary))
	sess.Log.SpliceSummary(split, summaryMsg, types.AssistantText(summaryAck))

	// Rough estimate of the prompt shrink.
	oldTokens := sess.InputTokens
	sess.InputTokens = int(float64(sess.InputTokens) * 0.3)
	saved := oldTokens - sess.InputTokens

	logging.Context("compacted %d messages, ~%d tokens saved, log now %d messages",
		len(old), saved, sess.Log.Len())
	return fmt.Sprintf("Compacted %d messages into summary. Estimated tokens saved: ~%s",
		len(old), groupThousands(saved)), nil
}

// renderTranscript flattens messages into the text form given to the
// summarizer. Tool results are previewed at 200 chars.
func renderTranscript(messages []types.Message) string {
	var b strings.Builder
	for _, msg := range messages {
		role := strings.ToUpper(string(msg.Role))
		for _, block := range msg.Blocks {
			switch block.Kind {
			case types.BlockText:
				fmt.Fprintf(&b, "%s: %s\n\n", role, block.Text)
			case types.BlockToolUse:
				fmt.Fprintf(&b, "TOOL CALL: %s(%v)\n\n", block.Name, block.Input)
			case types.BlockToolResult:
				content := block.Content
				if len(content) > 200 {
					content = content[:200]
				}
				fmt.Fprintf(&b, "TOOL RESULT: %s...\n\n", content)
			}
		}
	}
	return b.String()
}

// groupThousands formats n with comma separators (1234567 -> "1,234,567").
func groupThousands(n int) string {
	s := fmt.Sprintf("%d", n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	out := strings.Join(parts, ",")
	if neg {
		out = "-" + out
	}
	return out
}
