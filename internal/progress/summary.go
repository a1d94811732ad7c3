// Package progress persists learner-facing state across sessions: the
// per-level learning summary and the chat exchange journal.
package progress

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Levels are the tracked CEFR levels, in display order.
var Levels = []string{"A1", "A2", "B1", "B2"}

// LevelDescriptions maps CEFR levels to their plain names.
var LevelDescriptions = map[string]string{
	"A1": "Beginner",
	"A2": "Elementary",
	"B1": "Intermediate",
	"B2": "Upper Intermediate",
}

// Knowledge describes what the learner has mastered at a level.
type Knowledge struct {
	Summary         string   `json:"summary"`
	Vocabulary      []string `json:"vocabulary"`
	GrammarConcepts []string `json:"grammar_concepts"`
	TopicsCovered   []string `json:"topics_covered"`
}

// Gaps describes what is still needed to complete a level.
type Gaps struct {
	Summary        string   `json:"summary"`
	VocabularyGaps []string `json:"vocabulary_gaps"`
	GrammarGaps    []string `json:"grammar_gaps"`
	PriorityTopics []string `json:"priority_topics"`
}

// LevelData is the state of one CEFR level.
type LevelData struct {
	WhatIKnow         Knowledge `json:"what_i_know"`
	WhatToLearn       Gaps      `json:"what_to_learn"`
	EstimatedCoverage int       `json:"estimated_coverage"`
}

// Summary is the persistent learning summary.
type Summary struct {
	LastUpdated     string                `json:"last_updated,omitempty"`
	TotalCardsAdded int                   `json:"total_cards_added"`
	Levels          map[string]*LevelData `json:"levels"`
	RecentAdditions []string              `json:"recent_additions"`
	Notes           string                `json:"notes,omitempty"`
}

// NewSummary returns an empty summary with all levels present.
func NewSummary() *Summary {
	levels := make(map[string]*LevelData, len(Levels))
	for _, level := range Levels {
		levels[level] = &LevelData{}
	}
	return &Summary{Levels: levels, RecentAdditions: []string{}}
}

// SummaryPath returns the summary file inside the config dir.
func SummaryPath(configDir string) string {
	return filepath.Join(configDir, "learning_summary.json")
}

// LoadSummary reads the summary file; a missing or corrupt file yields a
// fresh summary.
func LoadSummary(path string) *Summary {
	data, err := os.ReadFile(path)
	if err != nil {
		return NewSummary()
	}
	s := NewSummary()
	if err := json.Unmarshal(data, s); err != nil {
		return NewSummary()
	}
	for _, level := range Levels {
		if s.Levels[level] == nil {
			s.Levels[level] = &LevelData{}
		}
	}
	return s
}

// SaveSummary writes the summary atomically.
func SaveSummary(path string, s *Summary) error {
	s.LastUpdated = time.Now().Format(time.RFC3339)
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal learning summary: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write learning summary: %w", err)
	}
	return os.Rename(tmp, path)
}

// Update is the payload of the update_learning_summary tool. Empty fields
// leave the stored values untouched; list fields merge without duplicates.
type Update struct {
	Level              string
	WordsAdded         []string
	WhatIKnowSummary   string
	GrammarConcepts    []string
	TopicsCovered      []string
	WhatToLearnSummary string
	VocabularyGaps     []string
	GrammarGaps        []string
	PriorityTopics     []string
	EstimatedCoverage  *int
	Notes              string
}

// Apply merges an update into the summary and returns the per-level data it
// touched.
func (s *Summary) Apply(u Update) *LevelData {
	s.TotalCardsAdded += len(u.WordsAdded)

	level := u.Level
	if level == "" {
		level = "A1"
	}
	data := s.Levels[level]
	if data == nil {
		data = &LevelData{}
		s.Levels[level] = data
	}

	if u.WhatIKnowSummary != "" {
		data.WhatIKnow.Summary = u.WhatIKnowSummary
	}
	data.WhatIKnow.Vocabulary = mergeUnique(data.WhatIKnow.Vocabulary, u.WordsAdded)
	data.WhatIKnow.GrammarConcepts = mergeUnique(data.WhatIKnow.GrammarConcepts, u.GrammarConcepts)
	data.WhatIKnow.TopicsCovered = mergeUnique(data.WhatIKnow.TopicsCovered, u.TopicsCovered)

	if u.WhatToLearnSummary != "" {
		data.WhatToLearn.Summary = u.WhatToLearnSummary
	}
	if len(u.VocabularyGaps) > 0 {
		data.WhatToLearn.VocabularyGaps = u.VocabularyGaps
	}
	if len(u.GrammarGaps) > 0 {
		data.WhatToLearn.GrammarGaps = u.GrammarGaps
	}
	if len(u.PriorityTopics) > 0 {
		data.WhatToLearn.PriorityTopics = u.PriorityTopics
	}
	if u.EstimatedCoverage != nil {
		data.EstimatedCoverage = *u.EstimatedCoverage
	}

	s.RecentAdditions = mergeUnique(s.RecentAdditions, u.WordsAdded)
	if len(s.RecentAdditions) > 50 {
		s.RecentAdditions = s.RecentAdditions[len(s.RecentAdditions)-50:]
	}
	if u.Notes != "" {
		s.Notes = u.Notes
	}
	return data
}

func mergeUnique(existing, added []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, v := range existing {
		seen[v] = true
	}
	for _, v := range added {
		if !seen[v] {
			existing = append(existing, v)
			seen[v] = true
		}
	}
	return existing
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func headJoin(items []string, n int) string {
	if len(items) > n {
		items = items[:n]
	}
	return strings.Join(items, ", ")
}

// FormatText renders the summary as plain text for tool results.
func (s *Summary) FormatText() string {
	var lines []string
	lines = append(lines, fmt.Sprintf("Learning Summary - %d cards total", s.TotalCardsAdded))
	lines = append(lines, strings.Repeat("=", 50))

	for _, level := range Levels {
		data := s.Levels[level]
		if data == nil {
			data = &LevelData{}
		}
		lines = append(lines, fmt.Sprintf("\n%s (%s) - %d%% coverage, %d words",
			level, LevelDescriptions[level], data.EstimatedCoverage, len(data.WhatIKnow.Vocabulary)))

		if data.WhatIKnow.Summary != "" {
			lines = append(lines, "  Know: "+truncate(data.WhatIKnow.Summary, 200))
		}
		if len(data.WhatIKnow.GrammarConcepts) > 0 {
			lines = append(lines, "  Grammar: "+headJoin(data.WhatIKnow.GrammarConcepts, 5))
		}
		if len(data.WhatIKnow.TopicsCovered) > 0 {
			lines = append(lines, "  Topics: "+headJoin(data.WhatIKnow.TopicsCovered, 5))
		}
		if data.WhatToLearn.Summary != "" {
			lines = append(lines, "  To learn: "+truncate(data.WhatToLearn.Summary, 200))
		}
		if len(data.WhatToLearn.PriorityTopics) > 0 {
			lines = append(lines, "  Priority: "+headJoin(data.WhatToLearn.PriorityTopics, 3))
		}
	}

	if len(s.RecentAdditions) > 0 {
		recent := s.RecentAdditions
		if len(recent) > 15 {
			recent = recent[len(recent)-15:]
		}
		lines = append(lines, "\nRecent additions: "+strings.Join(recent, ", "))
	}
	if s.Notes != "" {
		lines = append(lines, "\nNotes: "+s.Notes)
	}
	return strings.Join(lines, "\n")
}
