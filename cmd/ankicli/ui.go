package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"ankicli/internal/chat"
	"ankicli/internal/delegate"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	dimStyle     = lipgloss.NewStyle().Faint(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true)
	promptStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true)

	welcomeStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("14")).
			Padding(0, 1)

	toolPanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("12")).
			Padding(0, 1)

	resultPanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("10")).
				Padding(0, 1)

	barGreen  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	barYellow = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	barOrange = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	barRed    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// newMarkdownRenderer builds the glamour renderer for assistant replies.
// Falls back to nil (plain text output) when the terminal can't be probed.
func newMarkdownRenderer() *glamour.TermRenderer {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return nil
	}
	return renderer
}

func renderMarkdown(renderer *glamour.TermRenderer, text string) string {
	if renderer == nil {
		return text
	}
	out, err := renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

// =============================================================================
// CONTEXT BAR
// =============================================================================

// formatTokens renders a token count compactly (1234 -> "1.2K").
func formatTokens(n int) string {
	if n >= 1000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	return fmt.Sprintf("%d", n)
}

// contextBar renders the context usage gauge shown after each response.
func contextBar(status chat.ContextStatus) string {
	percent := status.PercentUsed

	style := barGreen
	switch {
	case percent >= 90:
		style = barRed
	case percent >= 75:
		style = barOrange
	case percent >= 50:
		style = barYellow
	}

	const barWidth = 30
	filled := int(barWidth * percent / 100)
	if filled > barWidth {
		filled = barWidth
	}
	if filled < 0 {
		filled = 0
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	return dimStyle.Render("Context: [") +
		style.Render(bar) +
		dimStyle.Render("] ") +
		style.Render(fmt.Sprintf("%.1f%%", percent)) +
		dimStyle.Render(fmt.Sprintf(" (%s/%s)", formatTokens(status.InputTokens), formatTokens(status.MaxTokens)))
}

// =============================================================================
// TOOL PANELS
// =============================================================================

// toolPanel renders a tool invocation before it runs.
func toolPanel(name string, input map[string]interface{}) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Tool Call: " + name))

	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := input[key]
		var shown string
		switch v := value.(type) {
		case []interface{}:
			shown = fmt.Sprintf("%d items", len(v))
		case string:
			if len(v) > 60 {
				shown = v[:60] + "..."
			} else {
				shown = v
			}
		default:
			shown = fmt.Sprintf("%v", v)
		}
		b.WriteString("\n" + dimStyle.Render("  "+key+": ") + shown)
	}
	return toolPanelStyle.Render(b.String())
}

// resultPanel renders a finished tool's result, truncated for display.
func resultPanel(name, result string) string {
	display := result
	if len(display) > 500 {
		display = display[:500] + "..."
	}
	return resultPanelStyle.Render(successStyle.Render("Result: "+name) + "\n" + display)
}

// progressLine renders one in-place line of delegate batch progress.
func progressLine(ev delegate.ProgressEvent) string {
	const width = 20
	filled := 0
	if ev.Total > 0 {
		filled = width * ev.Completed / ev.Total
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)

	card := ev.CurrentCard
	if len(card) > 30 {
		card = card[:30] + "..."
	}
	label := "Processing cards..."
	if card != "" {
		label = "Processing: " + card
	}
	return fmt.Sprintf("\r%s [%s] %d/%d   ", dimStyle.Render(label), bar, ev.Completed, ev.Total)
}

// =============================================================================
// TOOL INPUT SUMMARIES
// =============================================================================

// summarizeToolInput produces the short per-tool description stored in the
// chat journal.
func summarizeToolInput(toolName string, input map[string]interface{}) string {
	str := func(key string) string {
		s, _ := input[key].(string)
		return s
	}
	list := func(key string) []interface{} {
		l, _ := input[key].([]interface{})
		return l
	}
	clip := func(s string, n int) string {
		if len(s) > n {
			return s[:n] + "..."
		}
		return s
	}

	switch toolName {
	case "add_card":
		return fmt.Sprintf("'%s'", clip(str("front"), 50))

	case "add_multiple_cards":
		cards := list("cards")
		if len(cards) == 0 {
			return "0 cards"
		}
		var fronts []string
		for i, raw := range cards {
			if i >= 10 {
				break
			}
			m, _ := raw.(map[string]interface{})
			front, _ := m["front"].(string)
			front = strings.TrimSpace(strings.ReplaceAll(front, "\n", " "))
			fronts = append(fronts, clip(front, 40))
		}
		summary := strings.Join(fronts, ", ")
		if len(cards) > 10 {
			summary += fmt.Sprintf(" (+%d more)", len(cards)-10)
		}
		return fmt.Sprintf("%d cards: %s", len(cards), summary)

	case "update_card":
		noteID := input["note_id"]
		if front := str("front"); front != "" {
			return fmt.Sprintf("ID %v: '%s'", noteID, clip(front, 40))
		}
		return fmt.Sprintf("ID %v", noteID)

	case "update_multiple_cards":
		updates := list("updates")
		if len(updates) == 0 {
			return "0 cards"
		}
		var ids []string
		for i, raw := range updates {
			if i >= 5 {
				break
			}
			m, _ := raw.(map[string]interface{})
			ids = append(ids, fmt.Sprintf("%v", m["note_id"]))
		}
		summary := strings.Join(ids, ", ")
		if len(updates) > 5 {
			summary += fmt.Sprintf(" (+%d more)", len(updates)-5)
		}
		return fmt.Sprintf("%d cards: IDs %s", len(updates), summary)

	case "delete_cards":
		return fmt.Sprintf("%d cards deleted", len(list("note_ids")))

	case "search_cards", "check_word_exists", "find_card_by_word":
		query := str("query")
		if query == "" {
			query = str("word")
		}
		return fmt.Sprintf("'%s'", query)

	case "check_words_exist", "find_cards_by_words":
		words := list("words")
		if len(words) == 0 {
			return ""
		}
		var preview []string
		for i, w := range words {
			if i >= 5 {
				break
			}
			preview = append(preview, fmt.Sprintf("%v", w))
		}
		out := strings.Join(preview, ", ")
		if len(words) > 5 {
			out += fmt.Sprintf(" (+%d more)", len(words)-5)
		}
		return out

	case "update_learning_summary":
		return fmt.Sprintf("%s: +%d words", str("level"), len(list("words_added")))

	case "all_cards_delegate":
		parts := []string{
			fmt.Sprintf("deck='%s'", str("deck_name")),
			fmt.Sprintf("prompt='%s'", clip(str("prompt"), 40)),
		}
		if dryRun, _ := input["dry_run"].(bool); dryRun {
			parts = append(parts, "DRY RUN")
		}
		if limit, ok := input["limit"]; ok && limit != nil {
			parts = append(parts, fmt.Sprintf("limit=%v", limit))
		}
		return strings.Join(parts, ", ")

	case "card_subset_delegate":
		parts := []string{
			fmt.Sprintf("%d cards", len(list("note_ids"))),
			fmt.Sprintf("prompt='%s'", clip(str("prompt"), 40)),
		}
		if dryRun, _ := input["dry_run"].(bool); dryRun {
			parts = append(parts, "DRY RUN")
		}
		return strings.Join(parts, ", ")
	}

	// Generic fallback: first few parameters, abbreviated.
	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, key := range keys {
		if len(parts) >= 3 {
			break
		}
		switch v := input[key].(type) {
		case []interface{}:
			parts = append(parts, fmt.Sprintf("%s=%d items", key, len(v)))
		case string:
			parts = append(parts, fmt.Sprintf("%s='%s'", key, clip(v, 30)))
		default:
			parts = append(parts, fmt.Sprintf("%s=%v", key, v))
		}
	}
	return strings.Join(parts, ", ")
}
