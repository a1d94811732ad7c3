package tools

import (
	"context"
	"fmt"
	"strings"

	"ankicli/internal/anki"
	"ankicli/internal/types"
)

// preview truncates s to n characters, marking the cut with an ellipsis.
func preview(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}

func findByName(defs []Definition, name string) Definition {
	for _, def := range defs {
		if def.Name == name {
			return def
		}
	}
	return Definition{Name: name}
}

// RegisterAnkiTools wires every flashcard-store tool into the registry.
func RegisterAnkiTools(r *Registry, client *anki.Client) {
	defs := Catalog()
	reg := func(name string, handler Handler) {
		r.Register(findByName(defs, name), handler)
	}

	reg("list_decks", func(ctx context.Context, input map[string]interface{}) (string, error) {
		decks, err := client.GetDecks(ctx)
		if err != nil {
			return "", err
		}
		if len(decks) == 0 {
			return "No decks found.", nil
		}
		var b strings.Builder
		b.WriteString("Decks:\n")
		for _, d := range decks {
			fmt.Fprintf(&b, "- %s (New: %d, Learn: %d, Review: %d)\n", d.Name, d.NewCount, d.Learning, d.Review)
		}
		return b.String(), nil
	})

	reg("list_note_types", func(ctx context.Context, input map[string]interface{}) (string, error) {
		noteTypes, err := client.GetNoteTypes(ctx)
		if err != nil {
			return "", err
		}
		if len(noteTypes) == 0 {
			return "No note types found.", nil
		}
		var b strings.Builder
		b.WriteString("Note types:\n")
		for _, t := range noteTypes {
			fields := "unknown fields"
			if len(t.Fields) > 0 {
				fields = strings.Join(t.Fields, ", ")
			}
			fmt.Fprintf(&b, "- %s (%s)\n", t.Name, fields)
		}
		return b.String(), nil
	})

	reg("add_card", func(ctx context.Context, input map[string]interface{}) (string, error) {
		noteID, err := client.AddCard(ctx,
			types.GetString(input, "deck_name", ""),
			types.GetString(input, "front", ""),
			types.GetString(input, "back", ""),
			types.GetStringSlice(input, "tags"),
			types.GetString(input, "note_type", "Basic"),
		)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Card added successfully (note ID: %d)", noteID), nil
	})

	reg("add_multiple_cards", func(ctx context.Context, input map[string]interface{}) (string, error) {
		rawCards, _ := input["cards"].([]interface{})
		cards := make([]anki.NewCard, 0, len(rawCards))
		for _, raw := range rawCards {
			m, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			cards = append(cards, anki.NewCard{
				Front: types.GetString(m, "front", ""),
				Back:  types.GetString(m, "back", ""),
				Tags:  types.GetStringSlice(m, "tags"),
			})
		}
		noteIDs, err := client.AddCards(ctx,
			types.GetString(input, "deck_name", ""),
			cards,
			types.GetString(input, "note_type", "Basic"),
		)
		if err != nil {
			return "", err
		}
		successful := 0
		for _, id := range noteIDs {
			if id != nil {
				successful++
			}
		}
		return fmt.Sprintf("Added %d/%d cards successfully", successful, len(cards)), nil
	})

	reg("search_cards", func(ctx context.Context, input map[string]interface{}) (string, error) {
		cards, err := client.SearchCards(ctx,
			types.GetString(input, "query", ""),
			types.GetInt(input, "limit", 20),
		)
		if err != nil {
			return "", err
		}
		if len(cards) == 0 {
			return "No cards found matching the query.", nil
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Found %d card(s):\n", len(cards))
		for _, c := range cards {
			tagsStr := ""
			if len(c.Tags) > 0 {
				tagsStr = fmt.Sprintf(" [tags: %s]", strings.Join(c.Tags, ", "))
			}
			fmt.Fprintf(&b, "- ID: %d\n  Front: %s\n  Back: %s%s\n",
				c.NoteID, preview(c.Front, 50), preview(c.Back, 50), tagsStr)
		}
		return b.String(), nil
	})

	reg("get_deck_cards", func(ctx context.Context, input map[string]interface{}) (string, error) {
		deckName := types.GetString(input, "deck_name", "")
		cards, err := client.GetDeckCards(ctx, deckName, types.GetInt(input, "limit", 50))
		if err != nil {
			return "", err
		}
		if len(cards) == 0 {
			return fmt.Sprintf("No cards found in deck '%s'.", deckName), nil
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Cards in '%s' (%d shown):\n", deckName, len(cards))
		shown := cards
		if len(shown) > 10 {
			shown = shown[:10]
		}
		for _, c := range shown {
			fmt.Fprintf(&b, "- %s\n", preview(c.Front, 40))
		}
		if len(cards) > 10 {
			fmt.Fprintf(&b, "... and %d more", len(cards)-10)
		}
		return b.String(), nil
	})

	reg("get_note", func(ctx context.Context, input map[string]interface{}) (string, error) {
		noteID := int64(types.GetInt(input, "note_id", 0))
		card, err := client.GetNote(ctx, noteID)
		if err != nil {
			return "", err
		}
		if card == nil {
			return fmt.Sprintf("Note %d not found.", noteID), nil
		}
		tagsStr := ""
		if len(card.Tags) > 0 {
			tagsStr = fmt.Sprintf("\nTags: %s", strings.Join(card.Tags, ", "))
		}
		return fmt.Sprintf("Note ID: %d\nFront: %s\nBack: %s%s", card.NoteID, card.Front, card.Back, tagsStr), nil
	})

	reg("update_card", func(ctx context.Context, input map[string]interface{}) (string, error) {
		update := anki.NoteUpdate{NoteID: int64(types.GetInt(input, "note_id", 0))}
		if front, ok := input["front"].(string); ok {
			update.Front = &front
		}
		if back, ok := input["back"].(string); ok {
			update.Back = &back
		}
		if _, ok := input["tags"]; ok {
			update.Tags = types.GetStringSlice(input, "tags")
		}
		if err := client.UpdateNote(ctx, update); err != nil {
			return "", err
		}
		return fmt.Sprintf("Card %d updated successfully", update.NoteID), nil
	})

	reg("update_multiple_cards", func(ctx context.Context, input map[string]interface{}) (string, error) {
		rawUpdates, _ := input["updates"].([]interface{})
		updates := make([]anki.NoteUpdate, 0, len(rawUpdates))
		for _, raw := range rawUpdates {
			m, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			update := anki.NoteUpdate{NoteID: int64(types.GetInt(m, "note_id", 0))}
			if front, ok := m["front"].(string); ok {
				update.Front = &front
			}
			if back, ok := m["back"].(string); ok {
				update.Back = &back
			}
			if _, ok := m["tags"]; ok {
				update.Tags = types.GetStringSlice(m, "tags")
			}
			updates = append(updates, update)
		}
		results := client.UpdateNotes(ctx, updates)
		successful := 0
		for _, r := range results {
			if r.OK {
				successful++
			}
		}
		return fmt.Sprintf("Updated %d/%d cards successfully", successful, len(updates)), nil
	})

	reg("delete_cards", func(ctx context.Context, input map[string]interface{}) (string, error) {
		noteIDs := types.GetInt64Slice(input, "note_ids")
		if err := client.DeleteNotes(ctx, noteIDs); err != nil {
			return "", err
		}
		return fmt.Sprintf("Deleted %d card(s)", len(noteIDs)), nil
	})

	reg("add_tags_to_cards", func(ctx context.Context, input map[string]interface{}) (string, error) {
		noteIDs := types.GetInt64Slice(input, "note_ids")
		tags := strings.Join(types.GetStringSlice(input, "tags"), " ")
		if err := client.AddTags(ctx, noteIDs, tags); err != nil {
			return "", err
		}
		return fmt.Sprintf("Added tags to %d card(s)", len(noteIDs)), nil
	})

	reg("remove_tags_from_cards", func(ctx context.Context, input map[string]interface{}) (string, error) {
		noteIDs := types.GetInt64Slice(input, "note_ids")
		tags := strings.Join(types.GetStringSlice(input, "tags"), " ")
		if err := client.RemoveTags(ctx, noteIDs, tags); err != nil {
			return "", err
		}
		return fmt.Sprintf("Removed tags from %d card(s)", len(noteIDs)), nil
	})

	reg("move_cards_to_deck", func(ctx context.Context, input map[string]interface{}) (string, error) {
		noteIDs := types.GetInt64Slice(input, "note_ids")
		deckName := types.GetString(input, "deck_name", "")

		// changeDeck wants card IDs, one note may own several cards.
		idStrs := make([]string, 0, len(noteIDs))
		for _, id := range noteIDs {
			idStrs = append(idStrs, fmt.Sprintf("%d", id))
		}
		cardIDs, err := client.FindCards(ctx, "nid:"+strings.Join(idStrs, ","))
		if err != nil {
			return "", err
		}
		if len(cardIDs) == 0 {
			return "No cards found to move", nil
		}
		if err := client.MoveCardsToDeck(ctx, cardIDs, deckName); err != nil {
			return "", err
		}
		return fmt.Sprintf("Moved %d card(s) to '%s'", len(cardIDs), deckName), nil
	})

	reg("create_deck", func(ctx context.Context, input map[string]interface{}) (string, error) {
		name := types.GetString(input, "name", "")
		deckID, err := client.CreateDeck(ctx, name)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Deck '%s' created (ID: %d)", name, deckID), nil
	})

	reg("sync_anki", func(ctx context.Context, input map[string]interface{}) (string, error) {
		if err := client.Sync(ctx); err != nil {
			return "", err
		}
		return "Sync completed successfully", nil
	})

	reg("get_deck_stats", func(ctx context.Context, input map[string]interface{}) (string, error) {
		deckName := types.GetString(input, "deck_name", "")
		stats, err := client.GetDeckStats(ctx, deckName)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Deck: %s\nTotal cards: %d\nNew: %d\nLearning: %d\nReview: %d",
			stats.Name, stats.TotalCards, stats.NewCount, stats.LearnCount, stats.ReviewCount), nil
	})

	reg("get_deck_summary", func(ctx context.Context, input map[string]interface{}) (string, error) {
		deckName := types.GetString(input, "deck_name", "")
		summary, err := client.GetDeckSummary(ctx, deckName, types.GetInt(input, "limit", 100))
		if err != nil {
			return "", err
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Deck: %s\nTotal cards: %d\nNew: %d | Learning: %d | Review: %d\n",
			summary.Stats.Name, summary.Stats.TotalCards, summary.Stats.NewCount,
			summary.Stats.LearnCount, summary.Stats.ReviewCount)
		if len(summary.AllTags) > 0 {
			fmt.Fprintf(&b, "Tags used: %s\n", strings.Join(summary.AllTags, ", "))
		}
		if len(summary.SampleCards) > 0 {
			fmt.Fprintf(&b, "\nSample cards (%d shown):\n", len(summary.SampleCards))
			shown := summary.SampleCards
			if len(shown) > 15 {
				shown = shown[:15]
			}
			for _, card := range shown {
				fmt.Fprintf(&b, "- %s\n", preview(card.Front, 60))
			}
			if len(summary.SampleCards) > 15 {
				fmt.Fprintf(&b, "... and %d more", len(summary.SampleCards)-15)
			}
		}
		return b.String(), nil
	})

	reg("list_deck_fronts", func(ctx context.Context, input map[string]interface{}) (string, error) {
		deckName := types.GetString(input, "deck_name", "")
		fronts, err := client.ListFronts(ctx, deckName, types.GetInt(input, "limit", 200))
		if err != nil {
			return "", err
		}
		if len(fronts) == 0 {
			return fmt.Sprintf("No cards found in deck '%s'", deckName), nil
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Front sides of cards in '%s' (%d cards):\n\n", deckName, len(fronts))
		for i, front := range fronts {
			clean := strings.TrimSpace(strings.ReplaceAll(front, "\n", " "))
			fmt.Fprintf(&b, "%d. %s\n", i+1, preview(clean, 80))
		}
		return b.String(), nil
	})

	reg("get_collection_stats", func(ctx context.Context, input map[string]interface{}) (string, error) {
		stats, err := client.GetCollectionStats(ctx)
		if err != nil {
			return "", err
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Collection Overview:\nTotal decks: %d\nTotal notes: %d\nCards due today: %d (New: %d, Learning: %d, Review: %d)\n",
			stats.TotalDecks, stats.TotalNotes, stats.TotalDue,
			stats.TotalNew, stats.TotalLearning, stats.TotalReview)
		hasDue := false
		for _, deck := range stats.Decks {
			if deck.Due > 0 {
				if !hasDue {
					b.WriteString("\nDecks with cards due:\n")
					hasDue = true
				}
				fmt.Fprintf(&b, "- %s: %d due\n", deck.Name, deck.Due)
			}
		}
		return b.String(), nil
	})

	reg("check_word_exists", func(ctx context.Context, input map[string]interface{}) (string, error) {
		word := types.GetString(input, "word", "")
		deckName := types.GetString(input, "deck_name", "")

		query := fmt.Sprintf("*%s*", word)
		if deckName != "" {
			query = fmt.Sprintf("deck:%q %s", deckName, query)
		}
		cards, err := client.SearchCards(ctx, query, 10)
		if err != nil {
			return "", err
		}
		if len(cards) == 0 {
			where := "any deck"
			if deckName != "" {
				where = "deck " + deckName
			}
			return fmt.Sprintf("NOT FOUND: '%s' does not exist in %s. Safe to add.", word, where), nil
		}
		var b strings.Builder
		fmt.Fprintf(&b, "FOUND: '%s' already exists (%d match(es)):\n", word, len(cards))
		shown := cards
		if len(shown) > 5 {
			shown = shown[:5]
		}
		for _, c := range shown {
			fmt.Fprintf(&b, "- Front: %s\n  Back: %s\n", preview(c.Front, 50), preview(c.Back, 50))
		}
		if len(cards) > 5 {
			fmt.Fprintf(&b, "... and %d more matches", len(cards)-5)
		}
		return b.String(), nil
	})

	reg("check_words_exist", func(ctx context.Context, input map[string]interface{}) (string, error) {
		words := types.GetStringSlice(input, "words")
		deckName := types.GetString(input, "deck_name", "")

		var found, notFound []string
		for _, word := range words {
			query := fmt.Sprintf("*%s*", word)
			if deckName != "" {
				query = fmt.Sprintf("deck:%q %s", deckName, query)
			}
			cards, err := client.SearchCards(ctx, query, 1)
			if err != nil {
				return "", err
			}
			if len(cards) > 0 {
				found = append(found, word)
			} else {
				notFound = append(notFound, word)
			}
		}
		return formatWordCheck("words", len(words), found, notFound), nil
	})

	reg("find_card_by_word", func(ctx context.Context, input map[string]interface{}) (string, error) {
		word := strings.ToLower(strings.TrimSpace(types.GetString(input, "word", "")))
		deckName := types.GetString(input, "deck_name", "")

		query := fmt.Sprintf("tag:%q", "word::"+word)
		if deckName != "" {
			query = fmt.Sprintf("deck:%q %s", deckName, query)
		}
		cards, err := client.SearchCards(ctx, query, 5)
		if err != nil {
			return "", err
		}
		if len(cards) == 0 {
			return fmt.Sprintf("NOT FOUND: No card with tag 'word::%s'. Safe to add.", word), nil
		}
		var b strings.Builder
		fmt.Fprintf(&b, "FOUND: Card exists with tag 'word::%s':\n", word)
		shown := cards
		if len(shown) > 3 {
			shown = shown[:3]
		}
		for _, c := range shown {
			tagsStr := "none"
			if len(c.Tags) > 0 {
				tags := c.Tags
				if len(tags) > 5 {
					tags = tags[:5]
				}
				tagsStr = strings.Join(tags, ", ")
			}
			fmt.Fprintf(&b, "- ID: %d\n  Front: %s\n  Tags: %s\n", c.NoteID, preview(c.Front, 50), tagsStr)
		}
		return b.String(), nil
	})

	reg("find_cards_by_words", func(ctx context.Context, input map[string]interface{}) (string, error) {
		words := types.GetStringSlice(input, "words")
		deckName := types.GetString(input, "deck_name", "")

		var found, notFound []string
		for _, raw := range words {
			word := strings.ToLower(strings.TrimSpace(raw))
			query := fmt.Sprintf("tag:%q", "word::"+word)
			if deckName != "" {
				query = fmt.Sprintf("deck:%q %s", deckName, query)
			}
			cards, err := client.SearchCards(ctx, query, 1)
			if err != nil {
				return "", err
			}
			if len(cards) > 0 {
				found = append(found, word)
			} else {
				notFound = append(notFound, word)
			}
		}
		return formatWordCheck("word tags", len(words), found, notFound), nil
	})
}

func formatWordCheck(what string, total int, found, notFound []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Checked %d %s:\n\n", total, what)
	if len(found) > 0 {
		fmt.Fprintf(&b, "ALREADY EXIST (%d): %s\n\n", len(found), strings.Join(found, ", "))
	}
	if len(notFound) > 0 {
		fmt.Fprintf(&b, "NOT FOUND - safe to add (%d): %s", len(notFound), strings.Join(notFound, ", "))
	}
	return b.String()
}
