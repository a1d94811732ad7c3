package progress

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummaryApply(t *testing.T) {
	t.Run("words merge without duplicates", func(t *testing.T) {
		s := NewSummary()
		s.Apply(Update{Level: "A1", WordsAdded: []string{"hablar", "casa"}})
		s.Apply(Update{Level: "A1", WordsAdded: []string{"casa", "correr"}})

		assert.Equal(t, 4, s.TotalCardsAdded)
		assert.Equal(t, []string{"hablar", "casa", "correr"}, s.Levels["A1"].WhatIKnow.Vocabulary)
		assert.Equal(t, []string{"hablar", "casa", "correr"}, s.RecentAdditions)
	})

	t.Run("empty level defaults to A1", func(t *testing.T) {
		s := NewSummary()
		data := s.Apply(Update{WordsAdded: []string{"sol"}})
		assert.Same(t, s.Levels["A1"], data)
	})

	t.Run("unknown level created on the fly", func(t *testing.T) {
		s := NewSummary()
		s.Apply(Update{Level: "C1", WordsAdded: []string{"aunque"}})
		require.NotNil(t, s.Levels["C1"])
		assert.Equal(t, []string{"aunque"}, s.Levels["C1"].WhatIKnow.Vocabulary)
	})

	t.Run("gap lists replace, knowledge lists merge", func(t *testing.T) {
		s := NewSummary()
		s.Apply(Update{Level: "A2", GrammarConcepts: []string{"preterite"}, VocabularyGaps: []string{"weather"}})
		s.Apply(Update{Level: "A2", GrammarConcepts: []string{"imperfect"}, VocabularyGaps: []string{"travel"}})

		data := s.Levels["A2"]
		assert.Equal(t, []string{"preterite", "imperfect"}, data.WhatIKnow.GrammarConcepts)
		assert.Equal(t, []string{"travel"}, data.WhatToLearn.VocabularyGaps)
	})

	t.Run("coverage only changes when provided", func(t *testing.T) {
		s := NewSummary()
		coverage := 35
		s.Apply(Update{Level: "A1", EstimatedCoverage: &coverage})
		assert.Equal(t, 35, s.Levels["A1"].EstimatedCoverage)

		s.Apply(Update{Level: "A1", WordsAdded: []string{"mar"}})
		assert.Equal(t, 35, s.Levels["A1"].EstimatedCoverage)
	})

	t.Run("recent additions capped at 50", func(t *testing.T) {
		s := NewSummary()
		words := make([]string, 60)
		for i := range words {
			words[i] = fmt.Sprintf("palabra%d", i)
		}
		s.Apply(Update{Level: "A1", WordsAdded: words})

		assert.Len(t, s.RecentAdditions, 50)
		assert.Equal(t, "palabra10", s.RecentAdditions[0])
		assert.Equal(t, "palabra59", s.RecentAdditions[49])
	})
}

func TestSummaryPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "learning_summary.json")

	t.Run("missing file yields fresh summary", func(t *testing.T) {
		s := LoadSummary(path)
		assert.Equal(t, 0, s.TotalCardsAdded)
		for _, level := range Levels {
			require.NotNil(t, s.Levels[level])
		}
	})

	t.Run("round trip", func(t *testing.T) {
		s := NewSummary()
		s.Apply(Update{Level: "B1", WordsAdded: []string{"desarrollar"}, Notes: "focus on subjunctive"})
		require.NoError(t, SaveSummary(path, s))
		assert.NotEmpty(t, s.LastUpdated)

		loaded := LoadSummary(path)
		assert.Equal(t, 1, loaded.TotalCardsAdded)
		assert.Equal(t, []string{"desarrollar"}, loaded.Levels["B1"].WhatIKnow.Vocabulary)
		assert.Equal(t, "focus on subjunctive", loaded.Notes)
	})
}

func TestSummaryFormatText(t *testing.T) {
	s := NewSummary()
	coverage := 40
	s.Apply(Update{
		Level:             "A1",
		WordsAdded:        []string{"hablar", "casa"},
		WhatIKnowSummary:  "Basic greetings and common verbs",
		GrammarConcepts:   []string{"present tense", "gender agreement"},
		TopicsCovered:     []string{"greetings"},
		PriorityTopics:    []string{"numbers"},
		EstimatedCoverage: &coverage,
	})

	out := s.FormatText()
	assert.Contains(t, out, "Learning Summary - 2 cards total")
	assert.Contains(t, out, "A1 (Beginner) - 40% coverage, 2 words")
	assert.Contains(t, out, "Know: Basic greetings and common verbs")
	assert.Contains(t, out, "Grammar: present tense, gender agreement")
	assert.Contains(t, out, "Priority: numbers")
	assert.Contains(t, out, "Recent additions: hablar, casa")
	assert.Contains(t, out, "B2 (Upper Intermediate) - 0% coverage, 0 words")
}
