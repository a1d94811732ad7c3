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

// BatchPrompts holds the built-in prompt templates per delegate type. Each
// template uses {item} as the placeholder.
var BatchPrompts = map[string]string{
	"cognate_scan": `Classify the following Spanish word by cognate type relative to English.

Word: {item}

Respond ONLY with valid JSON:
{"word": "{item}", "cognate_type": "perfect|near|false|none", "english_cognate": "the English cognate or empty string", "confidence": 0.0-1.0, "reasoning": "brief explanation"}`,

	"network_update": `Generate word connections for the Spanish word below. List synonyms, antonyms, and semantically related words.

Word: {item}

Respond ONLY with valid JSON:
{"word": "{item}", "synonyms": ["..."], "antonyms": ["..."], "related": ["..."], "category": "theme category"}`,

	"difficulty_score": `Rate the difficulty of this Spanish word for an English speaker learning Spanish.

Word: {item}

Consider: cognate similarity, pronunciation, irregularity, usage frequency, false-friend risk.

Respond ONLY with valid JSON:
{"word": "{item}", "difficulty": 1-5, "factors": {"cognate_ease": 1-5, "pronunciation": 1-5, "irregularity": 1-5, "frequency": 1-5}, "reasoning": "brief explanation"}`,

	"context_generation": `Generate 3 natural example sentences in Spanish using this word/phrase. Vary the tenses and include English translations.

Word: {item}

Respond ONLY with valid JSON:
{"word": "{item}", "sentences": [{"spanish": "...", "english": "...", "tense": "..."}]}`,
}

// BatchProcessor fans plain string items out to sub-agents using a named
// prompt template or a caller-supplied override.
type BatchProcessor struct {
	client         llm.Client
	model          string
	maxWorkers     int
	rateLimitDelay time.Duration
}

// NewBatchProcessor creates a processor. maxWorkers is capped at 10.
func NewBatchProcessor(client llm.Client, model string, maxWorkers int, rateLimitDelay time.Duration) *BatchProcessor {
	if maxWorkers <= 0 {
		maxWorkers = 5
	}
	if maxWorkers > maxWorkerCap {
		maxWorkers = maxWorkerCap
	}
	return &BatchProcessor{
		client:         client,
		model:          model,
		maxWorkers:     maxWorkers,
		rateLimitDelay: rateLimitDelay,
	}
}

// ProcessBatch processes items in parallel. An unknown delegate type with no
// override yields an error result per item rather than failing the call.
// Results arrive in completion order, one per item.
func (p *BatchProcessor) ProcessBatch(ctx context.Context, items []string, delegateType, promptOverride string, progress ProgressFunc) []BatchResult {
	template := promptOverride
	if template == "" {
		template = BatchPrompts[delegateType]
	}
	if template == "" {
		results := make([]BatchResult, 0, len(items))
		for _, item := range items {
			results = append(results, BatchResult{Item: item, Error: fmt.Sprintf("Unknown delegate type: %s", delegateType)})
		}
		return results
	}

	batchID := uuid.NewString()[:8]
	total := len(items)
	logging.Delegate("[%s] batch type=%s items=%d workers=%d", batchID, delegateType, total, p.maxWorkers)

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		results   = make([]BatchResult, 0, total)
		completed int
	)
	sem := semaphore.NewWeighted(int64(p.maxWorkers))

	record := func(item string, result BatchResult) {
		mu.Lock()
		defer mu.Unlock()
		results = append(results, result)
		completed++
		if progress != nil {
			progress(ProgressEvent{
				Completed:   completed,
				Total:       total,
				CurrentCard: item,
				Success:     result.Error == "",
				Error:       result.Error,
			})
		}
	}

	for _, item := range items {
		if err := sem.Acquire(ctx, 1); err != nil {
			record(item, BatchResult{Item: item, Error: err.Error()})
			continue
		}
		wg.Add(1)
		go func(item string) {
			defer wg.Done()
			defer sem.Release(1)
			defer func() {
				if r := recover(); r != nil {
					logging.DelegateError("[%s] panic processing item %q: %v", batchID, item, r)
					record(item, BatchResult{Item: item, Error: fmt.Sprintf("Unexpected: %v", r)})
				}
			}()

			time.Sleep(p.rateLimitDelay)
			record(item, p.processItem(ctx, item, template))
		}(item)
	}
	wg.Wait()

	logging.Delegate("[%s] batch complete: %d results", batchID, len(results))
	return results
}

// processItem runs one sub-agent call and extracts the JSON object from its
// reply, tolerating fences and surrounding prose.
func (p *BatchProcessor) processItem(ctx context.Context, item, template string) BatchResult {
	prompt := strings.ReplaceAll(template, "{item}", item)

	raw, err := p.client.Complete(ctx, p.model, "", prompt, 1024)
	if err != nil {
		return BatchResult{Item: item, Error: err.Error()}
	}

	parsed, err := types.ExtractJSONObject(raw)
	if err != nil {
		return BatchResult{Item: item, RawResponse: raw, Error: fmt.Sprintf("No JSON object found in response: %v", err)}
	}
	return BatchResult{Item: item, Result: parsed, RawResponse: raw}
}
