package delegate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"ankicli/internal/llm"
	"ankicli/internal/logging"
	"ankicli/internal/types"
)

const subagentSystemPrompt = `You are a flashcard transformation assistant. You receive a flashcard and instructions for how to transform it.

IMPORTANT: Respond ONLY with valid JSON in this exact format:
{
    "front": "new front content or null if unchanged",
    "back": "new back content or null if unchanged",
    "tags": ["list", "of", "tags"] or null if unchanged,
    "reasoning": "brief explanation of what you changed"
}

Guidelines:
- Use HTML formatting: <b>bold</b>, <i>italic</i>, <br> for line breaks
- Set a field to null if you are NOT changing it
- Only make changes that are directly requested
- Be conservative - don't change things unless needed`

// CardProcessor fans cards out to Claude sub-agents.
type CardProcessor struct {
	client         llm.Client
	model          string
	maxWorkers     int
	rateLimitDelay time.Duration
}

// NewCardProcessor creates a processor. maxWorkers is capped at 10.
func NewCardProcessor(client llm.Client, model string, maxWorkers int, rateLimitDelay time.Duration) *CardProcessor {
	if maxWorkers <= 0 {
		maxWorkers = 5
	}
	if maxWorkers > maxWorkerCap {
		maxWorkers = maxWorkerCap
	}
	return &CardProcessor{
		client:         client,
		model:          model,
		maxWorkers:     maxWorkers,
		rateLimitDelay: rateLimitDelay,
	}
}

// ProcessCards transforms cards in parallel. Every card yields exactly one
// result; failures are recorded per card and never abort the batch. Results
// arrive in completion order. progress, if non-nil, is called after each
// card with a monotonically increasing Completed count.
func (p *CardProcessor) ProcessCards(ctx context.Context, cards []types.Card, prompt string, progress ProgressFunc) []CardTransformation {
	batchID := uuid.NewString()[:8]
	total := len(cards)
	logging.Delegate("[%s] processing %d cards with %d workers", batchID, total, p.maxWorkers)

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		results   = make([]CardTransformation, 0, total)
		completed int
	)
	sem := semaphore.NewWeighted(int64(p.maxWorkers))

	record := func(card types.Card, result CardTransformation) {
		mu.Lock()
		defer mu.Unlock()
		results = append(results, result)
		completed++
		if progress != nil {
			front := card.Front
			if len(front) > 50 {
				front = front[:50]
			}
			progress(ProgressEvent{
				Completed:   completed,
				Total:       total,
				CurrentCard: front,
				Success:     result.Error == "",
				Error:       result.Error,
			})
		}
	}

	for _, card := range cards {
		if err := sem.Acquire(ctx, 1); err != nil {
			record(card, CardTransformation{NoteID: card.NoteID, Original: card, Error: err.Error()})
			continue
		}
		wg.Add(1)
		go func(card types.Card) {
			defer wg.Done()
			defer sem.Release(1)
			defer func() {
				if r := recover(); r != nil {
					logging.DelegateError("[%s] panic processing card %d: %v", batchID, card.NoteID, r)
					record(card, CardTransformation{
						NoteID: card.NoteID, Original: card,
						Error: fmt.Sprintf("Unexpected error: %v", r),
					})
				}
			}()

			time.Sleep(p.rateLimitDelay)
			record(card, p.processCard(ctx, card, prompt))
		}(card)
	}
	wg.Wait()

	logging.Delegate("[%s] batch complete: %d results", batchID, len(results))
	return results
}

// processCard runs one sub-agent call and parses its JSON reply.
func (p *CardProcessor) processCard(ctx context.Context, card types.Card, prompt string) CardTransformation {
	tags := "none"
	if len(card.Tags) > 0 {
		tags = strings.Join(card.Tags, ", ")
	}
	userMessage := fmt.Sprintf(`Transform this flashcard according to the instructions.

CARD:
- Note ID: %d
- Front: %s
- Back: %s
- Tags: %s

INSTRUCTIONS:
%s

Respond with JSON only.`, card.NoteID, card.Front, card.Back, tags, prompt)

	out := CardTransformation{NoteID: card.NoteID, Original: card}

	reply, err := p.client.Complete(ctx, p.model, subagentSystemPrompt, userMessage, 2000)
	if err != nil {
		out.Error = err.Error()
		return out
	}

	parsed, err := types.ExtractJSONObject(reply)
	if err != nil {
		out.Error = fmt.Sprintf("Invalid JSON response: %v", err)
		return out
	}

	if front, ok := parsed["front"].(string); ok {
		out.TransformedFront = &front
	}
	if back, ok := parsed["back"].(string); ok {
		out.TransformedBack = &back
	}
	if _, ok := parsed["tags"].([]interface{}); ok {
		out.TransformedTags = types.GetStringSlice(parsed, "tags")
	}
	if reasoning, ok := parsed["reasoning"].(string); ok {
		out.Reasoning = reasoning
	}
	out.Changed = out.TransformedFront != nil || out.TransformedBack != nil || out.TransformedTags != nil
	return out
}
