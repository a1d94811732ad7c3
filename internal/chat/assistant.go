package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ankicli/internal/anki"
	"ankicli/internal/config"
	"ankicli/internal/conversation"
	"ankicli/internal/delegate"
	"ankicli/internal/llm"
	"ankicli/internal/logging"
	"ankicli/internal/progress"
	"ankicli/internal/tools"
	"ankicli/internal/types"
)

// Assistant owns the conversation session and everything a chat turn needs:
// the model client, the flashcard store client, the tool registry, the
// compactor, and the persistence paths.
type Assistant struct {
	cfg       *config.UserConfig
	configDir string

	client   llm.Client
	anki     *anki.Client
	registry *tools.Registry

	session   *conversation.Session
	store     *conversation.Store
	compactor *conversation.Compactor
	journal   *progress.Journal

	model    string
	restored bool
	autoSave bool
}

// New builds an assistant from the loaded config, restoring any saved
// conversation from the config directory.
func New(cfg *config.UserConfig, configDir string, client llm.Client, ankiClient *anki.Client) (*Assistant, error) {
	store := conversation.NewStore(conversation.DefaultPath(configDir))
	session, restored, err := store.Load()
	if err != nil {
		return nil, err
	}

	a := &Assistant{
		cfg:       cfg,
		configDir: configDir,
		client:    client,
		anki:      ankiClient,
		registry:  tools.NewRegistry(),
		session:   session,
		store:     store,
		compactor: conversation.NewCompactor(client, cfg.MainModel),
		journal:   progress.NewJournal(progress.JournalPath(configDir)),
		model:     cfg.MainModel,
		restored:  restored,
		autoSave:  cfg.AutoSave,
	}

	tools.RegisterAnkiTools(a.registry, ankiClient)
	a.registerAssistantTools()
	a.registry.SetNotes(cfg.ToolNotes)

	logging.Boot("assistant ready: model=%s restored=%v", a.model, restored)
	return a, nil
}

// Restored reports whether a saved conversation was loaded at startup.
func (a *Assistant) Restored() bool {
	return a.restored
}

// Model returns the current main model ID.
func (a *Assistant) Model() string {
	return a.model
}

// ModelName returns the human-readable name of the current model.
func (a *Assistant) ModelName() string {
	return config.LookupModel(a.model).Name
}

// SetModel switches the main conversation model mid-session. Token counters
// survive the switch since all known models share a context window size.
func (a *Assistant) SetModel(model string) {
	a.model = model
	a.compactor.SetModel(model)
	logging.Session("switched model to %s", model)
}

// Registry exposes the tool registry, letting the REPL update tool notes.
func (a *Assistant) Registry() *tools.Registry {
	return a.registry
}

// Journal exposes the exchange journal for the history command.
func (a *Assistant) Journal() *progress.Journal {
	return a.journal
}

// Config returns the live user configuration.
func (a *Assistant) Config() *config.UserConfig {
	return a.cfg
}

// ApplyToolNotes pushes the config's tool notes into the registry after the
// REPL edits them.
func (a *Assistant) ApplyToolNotes() {
	a.registry.SetNotes(a.cfg.ToolNotes)
}

// ConversationAge describes how old the saved conversation is.
func (a *Assistant) ConversationAge() string {
	return a.store.Age()
}

// MessageCount returns the current conversation length.
func (a *Assistant) MessageCount() int {
	return a.session.Log.Len()
}

// ContextStatus returns the current token usage snapshot.
func (a *Assistant) ContextStatus() ContextStatus {
	spec := config.LookupModel(a.model)
	in := a.session.InputTokens
	out := a.session.OutputTokens
	return ContextStatus{
		InputTokens:  in,
		OutputTokens: out,
		TotalTokens:  in + out,
		MaxTokens:    spec.ContextWindow,
		PercentUsed:  float64(in) / float64(spec.ContextWindow) * 100,
		Model:        a.model,
		ModelName:    spec.Name,
	}
}

// Save persists the conversation immediately.
func (a *Assistant) Save() error {
	return a.store.Save(a.session)
}

// Reset clears the conversation, its token counters, and the saved file.
func (a *Assistant) Reset() error {
	a.session = conversation.NewSession()
	return a.store.Clear()
}

// Compact summarizes older messages on demand (the /compact command).
func (a *Assistant) Compact(ctx context.Context) (string, error) {
	result, err := a.compactor.Compact(ctx, a.session, conversation.DefaultKeepRecentPairs)
	if err != nil {
		return "", err
	}
	a.autoSaveIfEnabled()
	return result, nil
}

func (a *Assistant) autoSaveIfEnabled() {
	if !a.autoSave {
		return
	}
	if err := a.store.Save(a.session); err != nil {
		logging.SessionError("auto-save failed: %v", err)
	}
}

// =============================================================================
// ASSISTANT-LEVEL TOOLS
// =============================================================================
//
// These tools need the session, the config, or the sub-agent processor, so
// they register here rather than with the plain store-backed handlers.

func (a *Assistant) registerAssistantTools() {
	defs := tools.Catalog()
	find := func(name string) tools.Definition {
		for _, def := range defs {
			if def.Name == name {
				return def
			}
		}
		return tools.Definition{Name: name}
	}

	a.registry.Register(find("compact_conversation"), func(ctx context.Context, input map[string]interface{}) (string, error) {
		result, err := a.compactor.Compact(ctx, a.session, conversation.DefaultKeepRecentPairs)
		if err != nil {
			return "", err
		}
		a.autoSaveIfEnabled()
		status := a.ContextStatus()
		return fmt.Sprintf("%s\nContext now at %.1f%% (%s tokens)",
			result, status.PercentUsed, commaInt(status.InputTokens)), nil
	})

	a.registry.Register(find("get_learning_summary"), func(ctx context.Context, input map[string]interface{}) (string, error) {
		summary := progress.LoadSummary(progress.SummaryPath(a.configDir))
		return summary.FormatText(), nil
	})

	a.registry.Register(find("update_learning_summary"), func(ctx context.Context, input map[string]interface{}) (string, error) {
		path := progress.SummaryPath(a.configDir)
		summary := progress.LoadSummary(path)

		update := progress.Update{
			Level:              types.GetString(input, "level", "A1"),
			WordsAdded:         types.GetStringSlice(input, "words_added"),
			WhatIKnowSummary:   types.GetString(input, "what_i_know_summary", ""),
			GrammarConcepts:    types.GetStringSlice(input, "grammar_concepts_learned"),
			TopicsCovered:      types.GetStringSlice(input, "topics_covered"),
			WhatToLearnSummary: types.GetString(input, "what_to_learn_summary", ""),
			VocabularyGaps:     types.GetStringSlice(input, "vocabulary_gaps"),
			GrammarGaps:        types.GetStringSlice(input, "grammar_gaps"),
			PriorityTopics:     types.GetStringSlice(input, "priority_topics"),
			Notes:              types.GetString(input, "notes", ""),
		}
		if raw, ok := input["estimated_coverage"]; ok && raw != nil {
			coverage := types.GetInt(input, "estimated_coverage", 0)
			update.EstimatedCoverage = &coverage
		}

		levelData := summary.Apply(update)
		if err := progress.SaveSummary(path, summary); err != nil {
			return "", err
		}

		topics := "general"
		if len(update.TopicsCovered) > 0 {
			topics = strings.Join(update.TopicsCovered, ", ")
		}
		return fmt.Sprintf("Learning summary updated: +%d words at %s level (%d%% coverage). Topics: %s",
			len(update.WordsAdded), update.Level, levelData.EstimatedCoverage, topics), nil
	})

	a.registry.Register(find("all_cards_delegate"), func(ctx context.Context, input map[string]interface{}) (string, error) {
		deckName := types.GetString(input, "deck_name", "")
		prompt := types.GetString(input, "prompt", "")
		limit := types.GetInt(input, "limit", 0)

		fetchLimit := limit
		if fetchLimit <= 0 {
			fetchLimit = 1000
		}
		cards, err := a.anki.GetDeckCards(ctx, deckName, fetchLimit)
		if err != nil {
			return "", err
		}
		if len(cards) == 0 {
			return fmt.Sprintf("No cards found in deck '%s'", deckName), nil
		}
		if limit > 0 && len(cards) > limit {
			cards = cards[:limit]
		}

		results := a.runDelegate(ctx, cards, prompt, input)
		label := fmt.Sprintf("Processed %d cards from '%s'", len(results), deckName)
		return a.delegateSummary(ctx, results, label, types.GetBool(input, "dry_run", false)), nil
	})

	a.registry.Register(find("card_subset_delegate"), func(ctx context.Context, input map[string]interface{}) (string, error) {
		prompt := types.GetString(input, "prompt", "")

		var cards []types.Card
		for _, noteID := range types.GetInt64Slice(input, "note_ids") {
			card, err := a.anki.GetNote(ctx, noteID)
			if err != nil {
				return "", err
			}
			if card != nil {
				cards = append(cards, *card)
			}
		}
		if len(cards) == 0 {
			return "No cards found for the given note IDs", nil
		}

		results := a.runDelegate(ctx, cards, prompt, input)
		label := fmt.Sprintf("Processed %d cards", len(results))
		return a.delegateSummary(ctx, results, label, types.GetBool(input, "dry_run", false)), nil
	})
}

// runDelegate fans cards out to sub-agents, forwarding pool progress to the
// per-invocation sink the orchestrator put on the context.
func (a *Assistant) runDelegate(ctx context.Context, cards []types.Card, prompt string, input map[string]interface{}) []delegate.CardTransformation {
	workers := types.GetInt(input, "workers", a.cfg.DelegateMaxWorkers)
	processor := delegate.NewCardProcessor(
		a.client,
		a.cfg.SubagentModel,
		workers,
		time.Duration(a.cfg.DelegateRateLimitMillis)*time.Millisecond,
	)
	return processor.ProcessCards(ctx, cards, prompt, delegate.ProgressFromContext(ctx))
}

// delegateSummary renders the batch outcome. In dry-run mode it previews the
// first few changes; otherwise it applies them through the store client.
func (a *Assistant) delegateSummary(ctx context.Context, results []delegate.CardTransformation, label string, dryRun bool) string {
	var changed, errored []delegate.CardTransformation
	for _, r := range results {
		if r.Changed {
			changed = append(changed, r)
		}
		if r.Error != "" {
			errored = append(errored, r)
		}
	}

	parts := []string{
		label,
		fmt.Sprintf("Changed: %d, Errors: %d", len(changed), len(errored)),
	}

	if dryRun {
		parts = append([]string{"[DRY RUN - No changes applied]"}, parts...)
		if len(changed) > 0 {
			parts = append(parts, "\nPreview of changes:")
			shown := changed
			if len(shown) > 5 {
				shown = shown[:5]
			}
			for _, r := range shown {
				parts = append(parts, fmt.Sprintf("\n- Card %d:", r.NoteID))
				if r.TransformedFront != nil {
					parts = append(parts, fmt.Sprintf("  Front: %s...", head(*r.TransformedFront, 50)))
				}
				if r.TransformedBack != nil {
					parts = append(parts, fmt.Sprintf("  Back: %s...", head(*r.TransformedBack, 50)))
				}
				if r.Reasoning != "" {
					parts = append(parts, fmt.Sprintf("  Reason: %s", r.Reasoning))
				}
			}
			if len(changed) > 5 {
				parts = append(parts, fmt.Sprintf("\n... and %d more changes", len(changed)-5))
			}
		}
	} else {
		applied := 0
		for _, r := range changed {
			update := anki.NoteUpdate{
				NoteID: r.NoteID,
				Front:  r.TransformedFront,
				Back:   r.TransformedBack,
				Tags:   r.TransformedTags,
			}
			if err := a.anki.UpdateNote(ctx, update); err != nil {
				r.Error = err.Error()
				errored = append(errored, r)
				continue
			}
			applied++
		}
		parts = append(parts, fmt.Sprintf("Applied: %d", applied))
	}

	if len(errored) > 0 {
		parts = append(parts, "\nErrors:")
		shown := errored
		if len(shown) > 3 {
			shown = shown[:3]
		}
		for _, r := range shown {
			parts = append(parts, fmt.Sprintf("- Card %d: %s", r.NoteID, r.Error))
		}
		if len(errored) > 3 {
			parts = append(parts, fmt.Sprintf("... and %d more errors", len(errored)-3))
		}
	}

	return strings.Join(parts, "\n")
}

func head(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// commaInt formats n with thousands separators.
func commaInt(n int) string {
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
