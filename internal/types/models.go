package types

// Deck is an Anki deck with its due counts.
type Deck struct {
	Name     string `json:"name"`
	NewCount int    `json:"new_count"`
	Learning int    `json:"learning_count"`
	Review   int    `json:"review_count"`
}

// Total returns the number of cards currently due in the deck.
func (d Deck) Total() int {
	return d.NewCount + d.Learning + d.Review
}

// Card is a single note as seen by the assistant. NoteID is the stable
// identifier used by every mutating operation.
type Card struct {
	NoteID   int64    `json:"note_id"`
	Front    string   `json:"front"`
	Back     string   `json:"back"`
	Tags     []string `json:"tags"`
	DeckName string   `json:"deck_name,omitempty"`
}

// NoteType is a card template with its field names.
type NoteType struct {
	Name   string   `json:"name"`
	Fields []string `json:"fields"`
}
