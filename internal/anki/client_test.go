package anki

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAnki speaks the AnkiConnect version-6 envelope and records requests.
type fakeAnki struct {
	t        *testing.T
	handlers map[string]func(params map[string]interface{}) (interface{}, string)
	requests []string
}

func newFakeAnki(t *testing.T) (*fakeAnki, *Client) {
	f := &fakeAnki{t: t, handlers: map[string]func(map[string]interface{}) (interface{}, string){}}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, NewClient(srv.URL)
}

func (f *fakeAnki) on(action string, fn func(params map[string]interface{}) (interface{}, string)) {
	f.handlers[action] = fn
}

func (f *fakeAnki) serve(w http.ResponseWriter, r *http.Request) {
	var env struct {
		Action  string                 `json:"action"`
		Version int                    `json:"version"`
		Params  map[string]interface{} `json:"params"`
	}
	require.NoError(f.t, json.NewDecoder(r.Body).Decode(&env))
	assert.Equal(f.t, 6, env.Version)
	f.requests = append(f.requests, env.Action)

	handler, ok := f.handlers[env.Action]
	if !ok {
		f.t.Errorf("unexpected action %q", env.Action)
		handler = func(map[string]interface{}) (interface{}, string) { return nil, "unexpected action" }
	}

	result, errMsg := handler(env.Params)
	out := map[string]interface{}{"result": result, "error": nil}
	if errMsg != "" {
		out["error"] = errMsg
	}
	json.NewEncoder(w).Encode(out)
}

func TestInvoke(t *testing.T) {
	t.Run("ping succeeds against a live endpoint", func(t *testing.T) {
		f, client := newFakeAnki(t)
		f.on("version", func(map[string]interface{}) (interface{}, string) { return 6, "" })
		assert.True(t, client.Ping(context.Background()))
	})

	t.Run("in-band error surfaces as AnkiError", func(t *testing.T) {
		f, client := newFakeAnki(t)
		f.on("createDeck", func(map[string]interface{}) (interface{}, string) {
			return nil, "collection is not available"
		})

		_, err := client.CreateDeck(context.Background(), "Spanish")
		var ankiErr *AnkiError
		require.ErrorAs(t, err, &ankiErr)
		assert.Equal(t, "collection is not available", ankiErr.Message)
	})

	t.Run("unreachable endpoint reports connection guidance", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		srv.Close()
		client := NewClient(srv.URL)

		err := client.Sync(context.Background())
		var ankiErr *AnkiError
		require.ErrorAs(t, err, &ankiErr)
		assert.Equal(t, "Cannot connect to Anki. Make sure Anki is running with AnkiConnect installed.", ankiErr.Message)
		assert.False(t, client.Ping(context.Background()))
	})

	t.Run("malformed body rejected", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, "<html>not json</html>")
		}))
		t.Cleanup(srv.Close)

		err := NewClient(srv.URL).Sync(context.Background())
		var ankiErr *AnkiError
		require.ErrorAs(t, err, &ankiErr)
		assert.Contains(t, ankiErr.Message, "Invalid response from AnkiConnect")
	})
}

func TestGetDecks(t *testing.T) {
	f, client := newFakeAnki(t)
	f.on("deckNames", func(map[string]interface{}) (interface{}, string) {
		return []string{"Spanish", "Default"}, ""
	})
	f.on("getDeckStats", func(params map[string]interface{}) (interface{}, string) {
		decks := params["decks"].([]interface{})
		if decks[0] == "Spanish" {
			return map[string]interface{}{
				"1": map[string]interface{}{
					"deck_id": 1, "name": "Spanish",
					"new_count": 5, "learn_count": 2, "review_count": 30, "total_in_deck": 120,
				},
			}, ""
		}
		return nil, "stats unavailable"
	})

	decks, err := client.GetDecks(context.Background())
	require.NoError(t, err)
	require.Len(t, decks, 2)

	assert.Equal(t, "Spanish", decks[0].Name)
	assert.Equal(t, 5, decks[0].NewCount)
	assert.Equal(t, 2, decks[0].Learning)
	assert.Equal(t, 30, decks[0].Review)
	assert.Equal(t, 37, decks[0].Total())

	// Failed stats leave zero counts but keep the deck listed.
	assert.Equal(t, "Default", decks[1].Name)
	assert.Equal(t, 0, decks[1].Total())
}

func TestAddCards(t *testing.T) {
	t.Run("per-note IDs with nulls for duplicates", func(t *testing.T) {
		f, client := newFakeAnki(t)
		f.on("addNotes", func(params map[string]interface{}) (interface{}, string) {
			notes := params["notes"].([]interface{})
			require.Len(t, notes, 3)
			first := notes[0].(map[string]interface{})
			assert.Equal(t, "Spanish", first["deckName"])
			assert.Equal(t, "Basic", first["modelName"])
			// addNotes sets the error field even when some notes landed.
			return []interface{}{101, nil, 103}, "cannot create note because it is a duplicate"
		})

		ids, err := client.AddCards(context.Background(), "Spanish", []NewCard{
			{Front: "to speak", Back: "<b>hablar</b>"},
			{Front: "to speak", Back: "<b>hablar</b>"},
			{Front: "house", Back: "<b>casa</b>", Tags: []string{"noun", "word::casa"}},
		}, "")
		require.NoError(t, err)
		require.Len(t, ids, 3)
		require.NotNil(t, ids[0])
		assert.EqualValues(t, 101, *ids[0])
		assert.Nil(t, ids[1])
		require.NotNil(t, ids[2])
		assert.EqualValues(t, 103, *ids[2])
	})

	t.Run("error without results fails the call", func(t *testing.T) {
		f, client := newFakeAnki(t)
		f.on("addNotes", func(map[string]interface{}) (interface{}, string) {
			return nil, "deck was not found: Nope"
		})

		_, err := client.AddCards(context.Background(), "Nope", []NewCard{{Front: "a", Back: "b"}}, "")
		var ankiErr *AnkiError
		require.ErrorAs(t, err, &ankiErr)
		assert.Equal(t, "deck was not found: Nope", ankiErr.Message)
	})
}

func TestSearchCards(t *testing.T) {
	f, client := newFakeAnki(t)
	f.on("findNotes", func(params map[string]interface{}) (interface{}, string) {
		assert.Equal(t, `deck:"Spanish"`, params["query"])
		return []int64{11, 12, 13}, ""
	})
	f.on("notesInfo", func(params map[string]interface{}) (interface{}, string) {
		ids := params["notes"].([]interface{})
		require.Len(t, ids, 2)
		return []map[string]interface{}{
			{
				"noteId": 11,
				"fields": map[string]interface{}{
					"Front": map[string]interface{}{"value": "to speak"},
					"Back":  map[string]interface{}{"value": "<b>hablar</b>"},
				},
				"tags": []string{"verb", "word::hablar"},
			},
			{
				"noteId": 12,
				"fields": map[string]interface{}{
					"Front": map[string]interface{}{"value": "house"},
					"Back":  map[string]interface{}{"value": "<b>casa</b>"},
				},
				"tags": []string{},
			},
		}, ""
	})

	cards, err := client.GetDeckCards(context.Background(), "Spanish", 2)
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.EqualValues(t, 11, cards[0].NoteID)
	assert.Equal(t, "to speak", cards[0].Front)
	assert.Equal(t, "<b>hablar</b>", cards[0].Back)
	assert.Equal(t, []string{"verb", "word::hablar"}, cards[0].Tags)
}

func TestSearchCardsEmpty(t *testing.T) {
	f, client := newFakeAnki(t)
	f.on("findNotes", func(map[string]interface{}) (interface{}, string) {
		return []int64{}, ""
	})

	cards, err := client.SearchCards(context.Background(), "tag:nope", 20)
	require.NoError(t, err)
	assert.Empty(t, cards)
	// notesInfo must not be called when nothing matched.
	assert.Equal(t, []string{"findNotes"}, f.requests)
}

func TestGetNote(t *testing.T) {
	t.Run("missing note yields nil without error", func(t *testing.T) {
		f, client := newFakeAnki(t)
		f.on("notesInfo", func(map[string]interface{}) (interface{}, string) {
			return []map[string]interface{}{{}}, ""
		})

		card, err := client.GetNote(context.Background(), 999)
		require.NoError(t, err)
		assert.Nil(t, card)
	})

	t.Run("existing note decoded", func(t *testing.T) {
		f, client := newFakeAnki(t)
		f.on("notesInfo", func(map[string]interface{}) (interface{}, string) {
			return []map[string]interface{}{{
				"noteId": 42,
				"fields": map[string]interface{}{
					"Front": map[string]interface{}{"value": "to run"},
					"Back":  map[string]interface{}{"value": "<b>correr</b>"},
				},
				"tags": []string{"verb"},
			}}, ""
		})

		card, err := client.GetNote(context.Background(), 42)
		require.NoError(t, err)
		require.NotNil(t, card)
		assert.Equal(t, "to run", card.Front)
	})
}

func TestUpdateNote(t *testing.T) {
	f, client := newFakeAnki(t)
	f.on("updateNote", func(params map[string]interface{}) (interface{}, string) {
		note := params["note"].(map[string]interface{})
		assert.EqualValues(t, 42, note["id"])
		fields := note["fields"].(map[string]interface{})
		assert.Equal(t, "<b>correr</b><br>new examples", fields["Back"])
		_, hasFront := fields["Front"]
		assert.False(t, hasFront)
		_, hasTags := note["tags"]
		assert.False(t, hasTags)
		return nil, ""
	})

	back := "<b>correr</b><br>new examples"
	err := client.UpdateNote(context.Background(), NoteUpdate{NoteID: 42, Back: &back})
	require.NoError(t, err)
}

func TestUpdateNotes(t *testing.T) {
	f, client := newFakeAnki(t)
	calls := 0
	f.on("updateNote", func(map[string]interface{}) (interface{}, string) {
		calls++
		if calls == 2 {
			return nil, "note was not found: 13"
		}
		return nil, ""
	})

	front := "x"
	results := client.UpdateNotes(context.Background(), []NoteUpdate{
		{NoteID: 12, Front: &front},
		{NoteID: 13, Front: &front},
		{NoteID: 14, Front: &front},
	})
	require.Len(t, results, 3)
	assert.True(t, results[0].OK)
	assert.False(t, results[1].OK)
	assert.Equal(t, "note was not found: 13", results[1].Message)
	assert.True(t, results[2].OK)
}

func TestGetDeckSummary(t *testing.T) {
	f, client := newFakeAnki(t)
	f.on("getDeckStats", func(map[string]interface{}) (interface{}, string) {
		return map[string]interface{}{
			"1": map[string]interface{}{
				"name": "Spanish", "new_count": 1, "learn_count": 2,
				"review_count": 3, "total_in_deck": 2,
			},
		}, ""
	})
	f.on("findNotes", func(map[string]interface{}) (interface{}, string) {
		return []int64{11, 12}, ""
	})
	f.on("notesInfo", func(map[string]interface{}) (interface{}, string) {
		return []map[string]interface{}{
			{"noteId": 11, "fields": map[string]interface{}{}, "tags": []string{"verb", "word::hablar"}},
			{"noteId": 12, "fields": map[string]interface{}{}, "tags": []string{"noun", "word::casa"}},
		}, ""
	})

	summary, err := client.GetDeckSummary(context.Background(), "Spanish", 100)
	require.NoError(t, err)
	assert.Equal(t, "Spanish", summary.Stats.Name)
	assert.Equal(t, 2, summary.CardsFetched)
	assert.Equal(t, []string{"noun", "verb", "word::casa", "word::hablar"}, summary.AllTags)
	assert.Len(t, summary.SampleCards, 2)
}

func TestGetCollectionStats(t *testing.T) {
	f, client := newFakeAnki(t)
	f.on("deckNames", func(map[string]interface{}) (interface{}, string) {
		return []string{"Spanish"}, ""
	})
	f.on("getDeckStats", func(map[string]interface{}) (interface{}, string) {
		return map[string]interface{}{
			"1": map[string]interface{}{
				"name": "Spanish", "new_count": 4, "learn_count": 1, "review_count": 10,
			},
		}, ""
	})
	f.on("findNotes", func(map[string]interface{}) (interface{}, string) {
		return []int64{1, 2, 3}, ""
	})
	f.on("findCards", func(map[string]interface{}) (interface{}, string) {
		return []int64{1, 2, 3, 4}, ""
	})

	stats, err := client.GetCollectionStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalDecks)
	assert.Equal(t, 3, stats.TotalNotes)
	assert.Equal(t, 4, stats.TotalCards)
	assert.Equal(t, 15, stats.TotalDue)
	require.Len(t, stats.Decks, 1)
	assert.Equal(t, DeckDue{Name: "Spanish", Due: 15}, stats.Decks[0])
}
