// Package delegate runs parallel Claude sub-agents over cards or plain
// items: a bounded worker pool with per-item failure isolation and progress
// reporting. Used by the all_cards_delegate / card_subset_delegate tools.
package delegate

import (
	"context"

	"ankicli/internal/types"
)

// maxWorkerCap is the hard ceiling on parallel sub-agents, regardless of
// configuration or tool input.
const maxWorkerCap = 10

// CardTransformation is the outcome for one card. Nil transformed fields
// mean "unchanged"; Changed is true iff any field came back non-nil.
type CardTransformation struct {
	NoteID           int64
	Original         types.Card
	TransformedFront *string
	TransformedBack  *string
	TransformedTags  []string
	Error            string
	Changed          bool
	Reasoning        string
}

// ProgressEvent is emitted after each item completes.
type ProgressEvent struct {
	Completed   int
	Total       int
	CurrentCard string
	Success     bool
	Error       string
}

// ProgressFunc receives progress events. Implementations must be safe for
// concurrent calls; the pool serializes calls itself.
type ProgressFunc func(ProgressEvent)

// BatchResult is the outcome for one item of a generic batch.
type BatchResult struct {
	Item        string
	Result      map[string]interface{}
	RawResponse string
	Error       string
}

// progressKey carries a ProgressFunc through a context, letting the
// orchestrator hand heavy tool handlers a per-invocation progress sink
// without widening the handler signature.
type progressKey struct{}

// WithProgress returns a context carrying fn as the progress sink.
func WithProgress(ctx context.Context, fn ProgressFunc) context.Context {
	return context.WithValue(ctx, progressKey{}, fn)
}

// ProgressFromContext extracts the progress sink, or nil if none is set.
func ProgressFromContext(ctx context.Context) ProgressFunc {
	fn, _ := ctx.Value(progressKey{}).(ProgressFunc)
	return fn
}
