// Package anki is the AnkiConnect HTTP client. All calls go through the
// version-6 JSON envelope {action, version, params}; AnkiConnect reports
// failures in-band via the "error" field, surfaced here as *AnkiError.
package anki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"ankicli/internal/logging"
	"ankicli/internal/types"
)

// AnkiError is a failure reported by AnkiConnect (or a failure to reach it).
// The tool boundary formats these as "Anki error: ..." for the model.
type AnkiError struct {
	Message string
}

func (e *AnkiError) Error() string {
	return e.Message
}

// Client talks to a local AnkiConnect instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the given AnkiConnect URL
// (default http://localhost:8765).
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8765"
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type envelope struct {
	Action  string                 `json:"action"`
	Version int                    `json:"version"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

type reply struct {
	Result json.RawMessage `json:"result"`
	Error  *string         `json:"error"`
}

// invoke performs one AnkiConnect action and decodes the result into out
// (out may be nil for actions whose result is ignored).
func (c *Client) invoke(ctx context.Context, action string, params map[string]interface{}, out interface{}) error {
	r, err := c.rawInvoke(ctx, action, params)
	if err != nil {
		return err
	}
	if r.Error != nil && *r.Error != "" {
		logging.AnkiError("action %s failed: %s", action, *r.Error)
		return &AnkiError{Message: *r.Error}
	}
	if out != nil && len(r.Result) > 0 {
		if err := json.Unmarshal(r.Result, out); err != nil {
			return &AnkiError{Message: fmt.Sprintf("invalid response from AnkiConnect for action '%s'", action)}
		}
	}
	return nil
}

// rawInvoke performs the HTTP round trip without interpreting the error
// field. AddCards needs the raw reply because addNotes reports duplicates in
// "error" while still returning per-note results.
func (c *Client) rawInvoke(ctx context.Context, action string, params map[string]interface{}) (*reply, error) {
	payload, err := json.Marshal(envelope{Action: action, Version: 6, Params: params})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	logging.AnkiDebug("action=%s", action)
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &AnkiError{Message: "Cannot connect to Anki. Make sure Anki is running with AnkiConnect installed."}
	}
	defer resp.Body.Close()

	var r reply
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, &AnkiError{Message: fmt.Sprintf("Invalid response from AnkiConnect for action '%s'", action)}
	}
	return &r, nil
}

// Ping reports whether AnkiConnect is reachable.
func (c *Client) Ping(ctx context.Context) bool {
	var version int
	return c.invoke(ctx, "version", nil, &version) == nil
}

// =============================================================================
// DECKS
// =============================================================================

type deckStat struct {
	DeckID      int64  `json:"deck_id"`
	Name        string `json:"name"`
	NewCount    int    `json:"new_count"`
	LearnCount  int    `json:"learn_count"`
	ReviewCount int    `json:"review_count"`
	TotalInDeck int    `json:"total_in_deck"`
}

// GetDecks fetches all decks with their due counts. A deck whose stats call
// fails still appears, with zero counts.
func (c *Client) GetDecks(ctx context.Context) ([]types.Deck, error) {
	var names []string
	if err := c.invoke(ctx, "deckNames", nil, &names); err != nil {
		return nil, err
	}

	decks := make([]types.Deck, 0, len(names))
	for _, name := range names {
		var stats map[string]deckStat
		if err := c.invoke(ctx, "getDeckStats", map[string]interface{}{"decks": []string{name}}, &stats); err != nil {
			decks = append(decks, types.Deck{Name: name})
			continue
		}
		deck := types.Deck{Name: name}
		for _, stat := range stats {
			deck.NewCount = stat.NewCount
			deck.Learning = stat.LearnCount
			deck.Review = stat.ReviewCount
			break
		}
		decks = append(decks, deck)
	}
	return decks, nil
}

// CreateDeck creates a deck ("Parent::Child" creates subdecks) and returns
// its ID.
func (c *Client) CreateDeck(ctx context.Context, name string) (int64, error) {
	var id int64
	if err := c.invoke(ctx, "createDeck", map[string]interface{}{"deck": name}, &id); err != nil {
		return 0, err
	}
	return id, nil
}

// DeckStats holds the counts for a single deck.
type DeckStats struct {
	Name        string `json:"name"`
	TotalCards  int    `json:"total_cards"`
	NewCount    int    `json:"new_count"`
	LearnCount  int    `json:"learn_count"`
	ReviewCount int    `json:"review_count"`
}

// GetDeckStats returns detailed counts for one deck.
func (c *Client) GetDeckStats(ctx context.Context, deckName string) (*DeckStats, error) {
	var stats map[string]deckStat
	if err := c.invoke(ctx, "getDeckStats", map[string]interface{}{"decks": []string{deckName}}, &stats); err != nil {
		return nil, err
	}
	out := &DeckStats{Name: deckName}
	for _, stat := range stats {
		if stat.Name != "" {
			out.Name = stat.Name
		}
		out.TotalCards = stat.TotalInDeck
		out.NewCount = stat.NewCount
		out.LearnCount = stat.LearnCount
		out.ReviewCount = stat.ReviewCount
		break
	}
	return out, nil
}

// DeckSummary combines stats with sample cards and the tag inventory.
type DeckSummary struct {
	Stats        DeckStats
	SampleCards  []types.Card
	AllTags      []string
	CardsFetched int
}

// GetDeckSummary analyzes up to limit cards of a deck.
func (c *Client) GetDeckSummary(ctx context.Context, deckName string, limit int) (*DeckSummary, error) {
	stats, err := c.GetDeckStats(ctx, deckName)
	if err != nil {
		return nil, err
	}
	cards, err := c.GetDeckCards(ctx, deckName, limit)
	if err != nil {
		return nil, err
	}

	tagSet := map[string]bool{}
	for _, card := range cards {
		for _, tag := range card.Tags {
			tagSet[tag] = true
		}
	}
	tags := make([]string, 0, len(tagSet))
	for tag := range tagSet {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	sample := cards
	if len(sample) > 20 {
		sample = sample[:20]
	}
	return &DeckSummary{
		Stats:        *stats,
		SampleCards:  sample,
		AllTags:      tags,
		CardsFetched: len(cards),
	}, nil
}

// =============================================================================
// NOTES
// =============================================================================

// GetNoteTypes fetches available note types with their field names.
func (c *Client) GetNoteTypes(ctx context.Context) ([]types.NoteType, error) {
	var names []string
	if err := c.invoke(ctx, "modelNames", nil, &names); err != nil {
		return nil, err
	}
	out := make([]types.NoteType, 0, len(names))
	for _, name := range names {
		var fields []string
		if err := c.invoke(ctx, "modelFieldNames", map[string]interface{}{"modelName": name}, &fields); err != nil {
			out = append(out, types.NoteType{Name: name})
			continue
		}
		out = append(out, types.NoteType{Name: name, Fields: fields})
	}
	return out, nil
}

func noteParams(deckName, noteType, front, back string, tags []string) map[string]interface{} {
	if noteType == "" {
		noteType = "Basic"
	}
	if tags == nil {
		tags = []string{}
	}
	return map[string]interface{}{
		"deckName":  deckName,
		"modelName": noteType,
		"fields": map[string]string{
			"Front": front,
			"Back":  back,
		},
		"tags": tags,
		"options": map[string]interface{}{
			"allowDuplicate": false,
		},
	}
}

// AddCard adds a single card and returns its note ID.
func (c *Client) AddCard(ctx context.Context, deckName, front, back string, tags []string, noteType string) (int64, error) {
	var id int64
	params := map[string]interface{}{"note": noteParams(deckName, noteType, front, back, tags)}
	if err := c.invoke(ctx, "addNote", params, &id); err != nil {
		return 0, err
	}
	return id, nil
}

// NewCard is one card of a bulk add.
type NewCard struct {
	Front string
	Back  string
	Tags  []string
}

// AddCards adds multiple cards at once. addNotes returns per-note IDs (null
// for duplicates/failures) while also setting the error field, so the raw
// reply is inspected: a result list wins over the error.
func (c *Client) AddCards(ctx context.Context, deckName string, cards []NewCard, noteType string) ([]*int64, error) {
	notes := make([]interface{}, 0, len(cards))
	for _, card := range cards {
		notes = append(notes, noteParams(deckName, noteType, card.Front, card.Back, card.Tags))
	}

	r, err := c.rawInvoke(ctx, "addNotes", map[string]interface{}{"notes": notes})
	if err != nil {
		return nil, err
	}
	if len(r.Result) > 0 && string(r.Result) != "null" {
		var ids []*int64
		if err := json.Unmarshal(r.Result, &ids); err == nil {
			return ids, nil
		}
	}
	if r.Error != nil && *r.Error != "" {
		return nil, &AnkiError{Message: *r.Error}
	}
	return nil, nil
}

type noteInfo struct {
	NoteID int64 `json:"noteId"`
	Fields map[string]struct {
		Value string `json:"value"`
	} `json:"fields"`
	Tags []string `json:"tags"`
}

func cardFromNote(n noteInfo) types.Card {
	return types.Card{
		NoteID: n.NoteID,
		Front:  n.Fields["Front"].Value,
		Back:   n.Fields["Back"].Value,
		Tags:   n.Tags,
	}
}

// SearchCards runs an Anki search query and returns up to limit cards.
func (c *Client) SearchCards(ctx context.Context, query string, limit int) ([]types.Card, error) {
	var noteIDs []int64
	if err := c.invoke(ctx, "findNotes", map[string]interface{}{"query": query}, &noteIDs); err != nil {
		return nil, err
	}
	if len(noteIDs) == 0 {
		return nil, nil
	}
	if limit > 0 && len(noteIDs) > limit {
		noteIDs = noteIDs[:limit]
	}

	var infos []noteInfo
	if err := c.invoke(ctx, "notesInfo", map[string]interface{}{"notes": noteIDs}, &infos); err != nil {
		return nil, err
	}
	cards := make([]types.Card, 0, len(infos))
	for _, n := range infos {
		cards = append(cards, cardFromNote(n))
	}
	return cards, nil
}

// GetDeckCards returns up to limit cards of a deck.
func (c *Client) GetDeckCards(ctx context.Context, deckName string, limit int) ([]types.Card, error) {
	return c.SearchCards(ctx, fmt.Sprintf("deck:%q", deckName), limit)
}

// ListFronts returns just the front text of up to limit cards of a deck.
func (c *Client) ListFronts(ctx context.Context, deckName string, limit int) ([]string, error) {
	cards, err := c.GetDeckCards(ctx, deckName, limit)
	if err != nil {
		return nil, err
	}
	fronts := make([]string, 0, len(cards))
	for _, card := range cards {
		fronts = append(fronts, card.Front)
	}
	return fronts, nil
}

// GetNote fetches a single note; returns (nil, nil) when it does not exist.
func (c *Client) GetNote(ctx context.Context, noteID int64) (*types.Card, error) {
	var infos []noteInfo
	if err := c.invoke(ctx, "notesInfo", map[string]interface{}{"notes": []int64{noteID}}, &infos); err != nil {
		return nil, err
	}
	if len(infos) == 0 || infos[0].NoteID == 0 {
		return nil, nil
	}
	card := cardFromNote(infos[0])
	return &card, nil
}

// NoteUpdate describes a partial note update. Nil fields keep the existing
// content; Tags replaces the full tag list when non-nil.
type NoteUpdate struct {
	NoteID int64
	Front  *string
	Back   *string
	Tags   []string
}

// UpdateNote applies a partial update to one note.
func (c *Client) UpdateNote(ctx context.Context, update NoteUpdate) error {
	note := map[string]interface{}{"id": update.NoteID}
	if update.Front != nil || update.Back != nil {
		fields := map[string]string{}
		if update.Front != nil {
			fields["Front"] = *update.Front
		}
		if update.Back != nil {
			fields["Back"] = *update.Back
		}
		note["fields"] = fields
	}
	if update.Tags != nil {
		note["tags"] = update.Tags
	}
	return c.invoke(ctx, "updateNote", map[string]interface{}{"note": note}, nil)
}

// UpdateResult is the per-note outcome of a bulk update.
type UpdateResult struct {
	NoteID  int64
	OK      bool
	Message string
}

// UpdateNotes applies updates one by one; a failure on one note does not
// stop the rest.
func (c *Client) UpdateNotes(ctx context.Context, updates []NoteUpdate) []UpdateResult {
	results := make([]UpdateResult, 0, len(updates))
	for _, update := range updates {
		if err := c.UpdateNote(ctx, update); err != nil {
			results = append(results, UpdateResult{NoteID: update.NoteID, OK: false, Message: err.Error()})
			continue
		}
		results = append(results, UpdateResult{NoteID: update.NoteID, OK: true, Message: "OK"})
	}
	return results
}

// DeleteNotes removes notes by ID.
func (c *Client) DeleteNotes(ctx context.Context, noteIDs []int64) error {
	return c.invoke(ctx, "deleteNotes", map[string]interface{}{"notes": noteIDs}, nil)
}

// AddTags adds a space-separated tag string to notes.
func (c *Client) AddTags(ctx context.Context, noteIDs []int64, tags string) error {
	return c.invoke(ctx, "addTags", map[string]interface{}{"notes": noteIDs, "tags": tags}, nil)
}

// RemoveTags removes a space-separated tag string from notes.
func (c *Client) RemoveTags(ctx context.Context, noteIDs []int64, tags string) error {
	return c.invoke(ctx, "removeTags", map[string]interface{}{"notes": noteIDs, "tags": tags}, nil)
}

// FindCards returns card IDs (not note IDs) matching an Anki search query.
func (c *Client) FindCards(ctx context.Context, query string) ([]int64, error) {
	var cardIDs []int64
	if err := c.invoke(ctx, "findCards", map[string]interface{}{"query": query}, &cardIDs); err != nil {
		return nil, err
	}
	return cardIDs, nil
}

// MoveCardsToDeck moves cards to another deck.
func (c *Client) MoveCardsToDeck(ctx context.Context, cardIDs []int64, deckName string) error {
	return c.invoke(ctx, "changeDeck", map[string]interface{}{"cards": cardIDs, "deck": deckName}, nil)
}

// Sync triggers a sync with AnkiWeb.
func (c *Client) Sync(ctx context.Context) error {
	return c.invoke(ctx, "sync", nil, nil)
}

// =============================================================================
// COLLECTION
// =============================================================================

// DeckDue is a per-deck due count inside CollectionStats.
type DeckDue struct {
	Name string `json:"name"`
	Due  int    `json:"due"`
}

// CollectionStats aggregates counts across every deck.
type CollectionStats struct {
	TotalDecks    int       `json:"total_decks"`
	TotalNotes    int       `json:"total_notes"`
	TotalCards    int       `json:"total_cards"`
	TotalNew      int       `json:"total_new"`
	TotalLearning int       `json:"total_learning"`
	TotalReview   int       `json:"total_review"`
	TotalDue      int       `json:"total_due"`
	Decks         []DeckDue `json:"decks"`
}

// GetCollectionStats computes collection-wide statistics.
func (c *Client) GetCollectionStats(ctx context.Context) (*CollectionStats, error) {
	decks, err := c.GetDecks(ctx)
	if err != nil {
		return nil, err
	}

	stats := &CollectionStats{TotalDecks: len(decks)}
	for _, d := range decks {
		stats.TotalNew += d.NewCount
		stats.TotalLearning += d.Learning
		stats.TotalReview += d.Review
		stats.Decks = append(stats.Decks, DeckDue{Name: d.Name, Due: d.Total()})
	}
	stats.TotalDue = stats.TotalNew + stats.TotalLearning + stats.TotalReview

	var noteIDs []int64
	if err := c.invoke(ctx, "findNotes", map[string]interface{}{"query": "*"}, &noteIDs); err == nil {
		stats.TotalNotes = len(noteIDs)
	}
	var cardIDs []int64
	if err := c.invoke(ctx, "findCards", map[string]interface{}{"query": "*"}, &cardIDs); err == nil {
		stats.TotalCards = len(cardIDs)
	}
	return stats, nil
}
