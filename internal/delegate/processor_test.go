package delegate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"ankicli/internal/llm"
	"ankicli/internal/types"
)

// fakeClient answers Complete calls via a caller-supplied function and
// tracks peak concurrency.
type fakeClient struct {
	reply func(prompt string) (string, error)

	mu      sync.Mutex
	active  int
	peak    int
	calls   atomic.Int64
	prompts []string
}

func (c *fakeClient) StreamMessage(ctx context.Context, req llm.MessageRequest, onText func(string)) (*llm.MessageResponse, error) {
	return &llm.MessageResponse{StopReason: "end_turn"}, nil
}

func (c *fakeClient) Complete(ctx context.Context, model, system, prompt string, maxTokens int) (string, error) {
	c.mu.Lock()
	c.active++
	if c.active > c.peak {
		c.peak = c.active
	}
	c.prompts = append(c.prompts, prompt)
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.active--
		c.mu.Unlock()
	}()

	c.calls.Add(1)
	return c.reply(prompt)
}

func makeCards(n int) []types.Card {
	cards := make([]types.Card, 0, n)
	for i := 0; i < n; i++ {
		cards = append(cards, types.Card{
			NoteID: int64(1000 + i),
			Front:  fmt.Sprintf("word %d", i),
			Back:   fmt.Sprintf("palabra %d", i),
		})
	}
	return cards
}

func TestProcessCards(t *testing.T) {
	defer goleak.VerifyNone(t)

	t.Run("every card yields one result", func(t *testing.T) {
		client := &fakeClient{reply: func(string) (string, error) {
			return `{"front": null, "back": "<b>nuevo</b>", "tags": null, "reasoning": "updated"}`, nil
		}}
		p := NewCardProcessor(client, "claude-sonnet-4-20250514", 3, 0)

		results := p.ProcessCards(context.Background(), makeCards(8), "reformat", nil)
		require.Len(t, results, 8)
		for _, r := range results {
			assert.Empty(t, r.Error)
			assert.True(t, r.Changed)
			require.NotNil(t, r.TransformedBack)
			assert.Equal(t, "<b>nuevo</b>", *r.TransformedBack)
			assert.Nil(t, r.TransformedFront)
		}
		assert.EqualValues(t, 8, client.calls.Load())
	})

	t.Run("worker cap respected", func(t *testing.T) {
		block := make(chan struct{})
		client := &fakeClient{reply: func(string) (string, error) {
			<-block
			return `{"front": null, "back": null, "tags": null, "reasoning": ""}`, nil
		}}
		p := NewCardProcessor(client, "claude-sonnet-4-20250514", 50, 0)

		done := make(chan []CardTransformation)
		go func() {
			done <- p.ProcessCards(context.Background(), makeCards(20), "noop", nil)
		}()
		close(block)
		results := <-done

		assert.Len(t, results, 20)
		assert.LessOrEqual(t, client.peak, 10)
	})

	t.Run("per card errors do not abort the batch", func(t *testing.T) {
		var n atomic.Int64
		client := &fakeClient{reply: func(string) (string, error) {
			if n.Add(1)%2 == 0 {
				return "", fmt.Errorf("rate limited")
			}
			return `{"front": "new", "back": null, "tags": null, "reasoning": "r"}`, nil
		}}
		p := NewCardProcessor(client, "claude-sonnet-4-20250514", 2, 0)

		results := p.ProcessCards(context.Background(), makeCards(6), "fix", nil)
		require.Len(t, results, 6)

		failed := 0
		for _, r := range results {
			if r.Error != "" {
				failed++
				assert.False(t, r.Changed)
			}
		}
		assert.Equal(t, 3, failed)
	})

	t.Run("invalid JSON reported per card", func(t *testing.T) {
		client := &fakeClient{reply: func(string) (string, error) {
			return "I cannot produce JSON today", nil
		}}
		p := NewCardProcessor(client, "claude-sonnet-4-20250514", 2, 0)

		results := p.ProcessCards(context.Background(), makeCards(2), "fix", nil)
		require.Len(t, results, 2)
		for _, r := range results {
			assert.Contains(t, r.Error, "Invalid JSON response")
		}
	})

	t.Run("progress counts are monotonic and complete", func(t *testing.T) {
		client := &fakeClient{reply: func(string) (string, error) {
			return `{"front": null, "back": null, "tags": null, "reasoning": ""}`, nil
		}}
		p := NewCardProcessor(client, "claude-sonnet-4-20250514", 4, 0)

		var mu sync.Mutex
		var seen []ProgressEvent
		p.ProcessCards(context.Background(), makeCards(10), "noop", func(ev ProgressEvent) {
			mu.Lock()
			seen = append(seen, ev)
			mu.Unlock()
		})

		require.Len(t, seen, 10)
		for i, ev := range seen {
			assert.Equal(t, i+1, ev.Completed)
			assert.Equal(t, 10, ev.Total)
			assert.True(t, ev.Success)
		}
	})

	t.Run("cancelled context fails remaining cards", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		client := &fakeClient{reply: func(string) (string, error) {
			return `{"front": null, "back": null, "tags": null, "reasoning": ""}`, nil
		}}
		p := NewCardProcessor(client, "claude-sonnet-4-20250514", 2, 0)

		results := p.ProcessCards(ctx, makeCards(5), "noop", nil)
		require.Len(t, results, 5)
		for _, r := range results {
			assert.NotEmpty(t, r.Error)
		}
	})

	t.Run("card fields reach the sub-agent prompt", func(t *testing.T) {
		client := &fakeClient{reply: func(string) (string, error) {
			return `{"front": null, "back": null, "tags": null, "reasoning": ""}`, nil
		}}
		p := NewCardProcessor(client, "claude-sonnet-4-20250514", 1, 0)

		card := types.Card{NoteID: 7, Front: "to speak", Back: "<b>hablar</b>", Tags: []string{"verb", "word::hablar"}}
		p.ProcessCards(context.Background(), []types.Card{card}, "add more examples", nil)

		require.Len(t, client.prompts, 1)
		prompt := client.prompts[0]
		assert.Contains(t, prompt, "Note ID: 7")
		assert.Contains(t, prompt, "Front: to speak")
		assert.Contains(t, prompt, "Tags: verb, word::hablar")
		assert.Contains(t, prompt, "add more examples")
	})
}

func TestProcessBatch(t *testing.T) {
	defer goleak.VerifyNone(t)

	t.Run("unknown delegate type yields per-item errors", func(t *testing.T) {
		client := &fakeClient{reply: func(string) (string, error) { return "{}", nil }}
		p := NewBatchProcessor(client, "claude-sonnet-4-20250514", 2, 0)

		results := p.ProcessBatch(context.Background(), []string{"hablar", "casa"}, "mystery", "", nil)
		require.Len(t, results, 2)
		for _, r := range results {
			assert.Equal(t, "Unknown delegate type: mystery", r.Error)
		}
		assert.EqualValues(t, 0, client.calls.Load())
	})

	t.Run("template substitutes the item", func(t *testing.T) {
		client := &fakeClient{reply: func(prompt string) (string, error) {
			if !strings.Contains(prompt, "Word: hablar") {
				return "", fmt.Errorf("missing item in prompt")
			}
			return `{"word": "hablar", "cognate_type": "none", "english_cognate": "", "confidence": 0.9, "reasoning": "r"}`, nil
		}}
		p := NewBatchProcessor(client, "claude-sonnet-4-20250514", 1, 0)

		results := p.ProcessBatch(context.Background(), []string{"hablar"}, "cognate_scan", "", nil)
		require.Len(t, results, 1)
		require.Empty(t, results[0].Error)
		assert.Equal(t, "none", results[0].Result["cognate_type"])
	})

	t.Run("override template wins over delegate type", func(t *testing.T) {
		client := &fakeClient{reply: func(prompt string) (string, error) {
			if !strings.Contains(prompt, "CUSTOM casa") {
				return "", fmt.Errorf("override not applied")
			}
			return `{"ok": true}`, nil
		}}
		p := NewBatchProcessor(client, "claude-sonnet-4-20250514", 1, 0)

		results := p.ProcessBatch(context.Background(), []string{"casa"}, "mystery", "CUSTOM {item}", nil)
		require.Len(t, results, 1)
		assert.Empty(t, results[0].Error)
	})

	t.Run("non-JSON reply keeps the raw response", func(t *testing.T) {
		client := &fakeClient{reply: func(string) (string, error) {
			return "plain prose reply", nil
		}}
		p := NewBatchProcessor(client, "claude-sonnet-4-20250514", 1, 0)

		results := p.ProcessBatch(context.Background(), []string{"casa"}, "network_update", "", nil)
		require.Len(t, results, 1)
		assert.Contains(t, results[0].Error, "No JSON object found")
		assert.Equal(t, "plain prose reply", results[0].RawResponse)
	})
}

func TestProgressContext(t *testing.T) {
	t.Run("round trips through context", func(t *testing.T) {
		called := false
		ctx := WithProgress(context.Background(), func(ProgressEvent) { called = true })
		fn := ProgressFromContext(ctx)
		require.NotNil(t, fn)
		fn(ProgressEvent{})
		assert.True(t, called)
	})

	t.Run("absent sink is nil", func(t *testing.T) {
		assert.Nil(t, ProgressFromContext(context.Background()))
	})
}
