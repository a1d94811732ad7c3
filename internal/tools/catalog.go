package tools

// The tool catalogue presented to the model. Descriptions carry the domain
// conventions (HTML formatting, word:: tags) the assistant relies on.

func obj(props map[string]interface{}, required ...string) map[string]interface{} {
	if required == nil {
		required = []string{}
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

func prop(typ, desc string) map[string]interface{} {
	return map[string]interface{}{"type": typ, "description": desc}
}

func strArray(desc string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"items":       map[string]interface{}{"type": "string"},
		"description": desc,
	}
}

func intArray(desc string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"items":       map[string]interface{}{"type": "integer"},
		"description": desc,
	}
}

const wordTagNote = "MUST include 'word::spanish_word' tag (infinitive for verbs, no article for nouns, lowercase). Also include type tags: 'verb', 'noun', 'adjective', 'irregular', etc."

// Catalog returns the full tool catalogue in presentation order.
func Catalog() []Definition {
	return []Definition{
		{
			Name:        "list_decks",
			Description: "List all Anki decks with their card counts (new, learning, review)",
			InputSchema: obj(map[string]interface{}{}),
		},
		{
			Name:        "list_note_types",
			Description: "List available note types (card templates) in Anki",
			InputSchema: obj(map[string]interface{}{}),
		},
		{
			Name: "add_card",
			Description: "Add a new flashcard to a deck. Use HTML formatting (<b>bold</b>, <i>italic</i>, <br> for line breaks). " +
				"For Spanish vocab: front=English definition, back=Spanish word (bold) + conjugations (for verbs) + 5 example sentences. " +
				"IMPORTANT: Always include a 'word::spanish_word' tag for quick lookup (verbs in infinitive, nouns without articles, lowercase). " +
				"Example: word::hablar, word::casa, word::rápido.",
			InputSchema: obj(map[string]interface{}{
				"deck_name": prop("string", "Name of the deck to add the card to"),
				"front":     prop("string", "Front side - English definition/meaning (plain text usually)"),
				"back":      prop("string", "Back side with HTML formatting: <b>Spanish word</b>, conjugations, and 5 examples. Use <br> for line breaks, <b> for headers, <i> for notes/tense labels."),
				"tags":      strArray(wordTagNote),
				"note_type": prop("string", "Note type to use (default: 'Basic')"),
			}, "deck_name", "front", "back"),
		},
		{
			Name: "add_multiple_cards",
			Description: "Add multiple flashcards to a deck at once. Use HTML formatting (<b>, <i>, <br>). For bulk card creation (10, 20, 50+ cards). " +
				"Spanish vocab: front=English, back=HTML-formatted Spanish + conjugations + 5 examples. " +
				"IMPORTANT: Always include a 'word::spanish_word' tag for quick lookup (verbs in infinitive, nouns without articles, lowercase).",
			InputSchema: obj(map[string]interface{}{
				"deck_name": prop("string", "Name of the deck to add cards to"),
				"cards": map[string]interface{}{
					"type": "array",
					"items": obj(map[string]interface{}{
						"front": prop("string", "English definition/meaning (plain text)"),
						"back":  prop("string", "HTML-formatted: <b>Spanish word</b>, conjugations, 5 examples. Use <br> for breaks, <b>/<i> for formatting."),
						"tags":  strArray(wordTagNote),
					}, "front", "back"),
					"description": "List of cards to add. Can include many cards (10, 20, 50+) in a single call.",
				},
				"note_type": prop("string", "Note type to use for all cards (default: 'Basic')"),
			}, "deck_name", "cards"),
		},
		{
			Name:        "search_cards",
			Description: "Search for existing cards in Anki using search syntax. Returns note IDs that can be used for editing/deleting.",
			InputSchema: obj(map[string]interface{}{
				"query": prop("string", "Search query using Anki syntax (e.g., 'deck:MyDeck', 'tag:vocab', 'front:*word*', '*' for all)"),
				"limit": prop("integer", "Maximum number of results (default: 20)"),
			}, "query"),
		},
		{
			Name:        "get_deck_cards",
			Description: "Get all cards in a specific deck",
			InputSchema: obj(map[string]interface{}{
				"deck_name": prop("string", "Name of the deck"),
				"limit":     prop("integer", "Maximum number of cards to return (default: 50)"),
			}, "deck_name"),
		},
		{
			Name:        "get_note",
			Description: "Get a single note/card by its ID",
			InputSchema: obj(map[string]interface{}{
				"note_id": prop("integer", "The note ID"),
			}, "note_id"),
		},
		{
			Name: "update_card",
			Description: "Update an existing card's front, back, or tags. Use HTML formatting for content (<b>, <i>, <br>). " +
				"When updating tags, always preserve the 'word::spanish_word' tag.",
			InputSchema: obj(map[string]interface{}{
				"note_id": prop("integer", "The note ID to update"),
				"front":   prop("string", "New front content with HTML formatting (omit to keep existing)"),
				"back":    prop("string", "New back content with HTML formatting (omit to keep existing)"),
				"tags":    strArray("New tags (replaces all existing). Always preserve 'word::spanish_word' tag."),
			}, "note_id"),
		},
		{
			Name: "update_multiple_cards",
			Description: "Update multiple cards at once. Use HTML formatting for content (<b>, <i>, <br>). " +
				"When updating tags, always preserve the 'word::spanish_word' tag.",
			InputSchema: obj(map[string]interface{}{
				"updates": map[string]interface{}{
					"type": "array",
					"items": obj(map[string]interface{}{
						"note_id": prop("integer", "The note ID to update"),
						"front":   prop("string", "New front content (HTML formatted)"),
						"back":    prop("string", "New back content (HTML formatted)"),
						"tags":    strArray("New tags"),
					}, "note_id"),
					"description": "List of updates to apply",
				},
			}, "updates"),
		},
		{
			Name:        "delete_cards",
			Description: "Delete one or more cards by their note IDs",
			InputSchema: obj(map[string]interface{}{
				"note_ids": intArray("List of note IDs to delete"),
			}, "note_ids"),
		},
		{
			Name:        "add_tags_to_cards",
			Description: "Add tags to multiple cards",
			InputSchema: obj(map[string]interface{}{
				"note_ids": intArray("List of note IDs to add tags to"),
				"tags":     strArray("Tags to add"),
			}, "note_ids", "tags"),
		},
		{
			Name:        "remove_tags_from_cards",
			Description: "Remove tags from multiple cards",
			InputSchema: obj(map[string]interface{}{
				"note_ids": intArray("List of note IDs to remove tags from"),
				"tags":     strArray("Tags to remove"),
			}, "note_ids", "tags"),
		},
		{
			Name:        "move_cards_to_deck",
			Description: "Move cards to a different deck",
			InputSchema: obj(map[string]interface{}{
				"note_ids":  intArray("List of note IDs to move"),
				"deck_name": prop("string", "Target deck name"),
			}, "note_ids", "deck_name"),
		},
		{
			Name:        "create_deck",
			Description: "Create a new deck",
			InputSchema: obj(map[string]interface{}{
				"name": prop("string", "Name of the new deck (use :: for subdecks, e.g., 'Parent::Child')"),
			}, "name"),
		},
		{
			Name:        "sync_anki",
			Description: "Sync Anki with AnkiWeb to upload/download changes",
			InputSchema: obj(map[string]interface{}{}),
		},
		{
			Name:        "get_deck_stats",
			Description: "Get statistics for a specific deck: total cards, new, learning, and review counts",
			InputSchema: obj(map[string]interface{}{
				"deck_name": prop("string", "Name of the deck"),
			}, "deck_name"),
		},
		{
			Name:        "get_deck_summary",
			Description: "Get a comprehensive summary of a deck including stats, tags used, and sample cards",
			InputSchema: obj(map[string]interface{}{
				"deck_name": prop("string", "Name of the deck"),
				"limit":     prop("integer", "Maximum cards to analyze (default: 100)"),
			}, "deck_name"),
		},
		{
			Name:        "list_deck_fronts",
			Description: "List just the front (question/English) side of all cards in a deck - useful for seeing what words/concepts are already covered",
			InputSchema: obj(map[string]interface{}{
				"deck_name": prop("string", "Name of the deck"),
				"limit":     prop("integer", "Maximum cards to return (default: 200)"),
			}, "deck_name"),
		},
		{
			Name:        "get_collection_stats",
			Description: "Get overall statistics for the entire Anki collection: total decks, total cards, cards due across all decks",
			InputSchema: obj(map[string]interface{}{}),
		},
		{
			Name:        "check_word_exists",
			Description: "Check if a word or phrase already exists in a deck. Use this BEFORE adding new cards to avoid duplicates. Returns matching cards if found.",
			InputSchema: obj(map[string]interface{}{
				"word":      prop("string", "The word or phrase to search for"),
				"deck_name": prop("string", "Optional: limit search to a specific deck"),
			}, "word"),
		},
		{
			Name:        "check_words_exist",
			Description: "Check if multiple words already exist in a deck. Use this before bulk adding to filter out duplicates. Returns which words were found.",
			InputSchema: obj(map[string]interface{}{
				"words":     strArray("List of words to check"),
				"deck_name": prop("string", "Optional: limit search to a specific deck"),
			}, "words"),
		},
		{
			Name: "find_card_by_word",
			Description: "Find a card by its Spanish word tag. Uses the 'word::spanish_word' tag format. " +
				"Fast and exact matching - preferred way to check if a word already exists before adding.",
			InputSchema: obj(map[string]interface{}{
				"word":      prop("string", "Spanish word to find (infinitive for verbs, no article for nouns, lowercase). Example: 'hablar', 'casa', 'rápido'"),
				"deck_name": prop("string", "Optional: limit search to a specific deck"),
			}, "word"),
		},
		{
			Name: "find_cards_by_words",
			Description: "Find multiple cards by their Spanish word tags. Uses the 'word::spanish_word' tag format. " +
				"Returns which words exist and which don't. Use before bulk adding to filter duplicates.",
			InputSchema: obj(map[string]interface{}{
				"words":     strArray("List of Spanish words to check (infinitive for verbs, no article for nouns, lowercase)"),
				"deck_name": prop("string", "Optional: limit search to a specific deck"),
			}, "words"),
		},
		{
			Name: "compact_conversation",
			Description: "Compact the conversation history by summarizing older messages. Use this when context is getting full (>50%) " +
				"to free up space while preserving important information. This is automatic maintenance - call it proactively when needed.",
			InputSchema: obj(map[string]interface{}{
				"reason": prop("string", "Brief reason for compacting (e.g., 'context at 60%', 'long conversation')"),
			}),
		},
		{
			Name: "get_learning_summary",
			Description: "Get the persistent Spanish learning progress summary. Shows for each CEFR level (A1-B2): what you already know, " +
				"what you need to learn to complete that level, and estimated coverage percentage.",
			InputSchema: obj(map[string]interface{}{}),
		},
		{
			Name: "update_learning_summary",
			Description: "IMPORTANT: Call this AFTER adding cards to update the persistent learning summary. Updates what you know and " +
				"what you need to learn for each level. This persists across sessions.",
			InputSchema: obj(map[string]interface{}{
				"level": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"A1", "A2", "B1", "B2"},
					"description": "CEFR level being updated",
				},
				"words_added":             strArray("List of Spanish words/phrases just added to this level"),
				"what_i_know_summary":     prop("string", "Detailed text summary of what the user has mastered at this level. Be specific about vocabulary areas, grammar concepts, and practical skills."),
				"grammar_concepts_learned": strArray("Grammar concepts the user has learned (e.g., 'Present tense', 'Preterite tense', 'Reflexive verbs')"),
				"topics_covered":          strArray("Topic areas covered (e.g., 'Daily routines', 'Restaurant', 'Travel', 'Health')"),
				"what_to_learn_summary":   prop("string", "Detailed text summary of what's still needed to complete this level. Be specific about gaps."),
				"vocabulary_gaps":         strArray("Vocabulary categories still needed (e.g., 'weather', 'clothing', 'household-items')"),
				"grammar_gaps":            strArray("Grammar concepts still needed (e.g., 'Imperfect tense', 'Object pronouns')"),
				"priority_topics":         strArray("Suggested priority topics to focus on next"),
				"estimated_coverage":      prop("integer", "Estimated % coverage of this level (0-100)"),
				"notes":                   prop("string", "Optional notes about overall progress"),
			}, "level", "words_added"),
		},
		{
			Name: "all_cards_delegate",
			Description: "Process ALL cards in a deck using parallel sub-agents. Each card is sent to a Claude sub-agent with your prompt. " +
				"Use for bulk operations like formatting, adding examples, fixing content. Shows progress bar.",
			InputSchema: obj(map[string]interface{}{
				"deck_name": prop("string", "Name of the deck to process"),
				"prompt":    prop("string", "Instructions for transforming each card. Sub-agent sees front, back, and tags."),
				"workers":   prop("integer", "Parallel workers (default: 5, max: 10)"),
				"dry_run":   prop("boolean", "Preview changes without applying (default: false)"),
				"limit":     prop("integer", "Max cards to process (default: all)"),
			}, "deck_name", "prompt"),
			Mode: ModeBackground,
		},
		{
			Name:        "card_subset_delegate",
			Description: "Process specific cards (by note IDs) using parallel sub-agents. Use after search_cards to process matching results.",
			InputSchema: obj(map[string]interface{}{
				"note_ids": intArray("Note IDs to process (from search_cards)"),
				"prompt":   prop("string", "Instructions for transforming each card"),
				"workers":  prop("integer", "Parallel workers (default: 5, max: 10)"),
				"dry_run":  prop("boolean", "Preview changes without applying (default: false)"),
			}, "note_ids", "prompt"),
			Mode: ModeBackground,
		},
	}
}
