package progress

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ToolCall is the journal record of one tool invocation in an exchange.
type ToolCall struct {
	Name    string `json:"name"`
	Summary string `json:"summary,omitempty"`
}

// Exchange is one user/assistant round trip.
type Exchange struct {
	Timestamp string     `json:"timestamp"`
	User      string     `json:"user"`
	Assistant string     `json:"assistant"`
	Tools     []ToolCall `json:"tools"`
}

// Journal is an append-only JSON log of chat exchanges, backing the REPL
// history command.
type Journal struct {
	path string
}

// NewJournal creates a journal writing to path.
func NewJournal(path string) *Journal {
	return &Journal{path: path}
}

// JournalPath returns the journal file inside the config dir.
func JournalPath(configDir string) string {
	return filepath.Join(configDir, "chat_log.json")
}

func (j *Journal) load() []Exchange {
	data, err := os.ReadFile(j.path)
	if err != nil {
		return nil
	}
	var log []Exchange
	if err := json.Unmarshal(data, &log); err != nil {
		return nil
	}
	return log
}

func (j *Journal) save(log []Exchange) error {
	if log == nil {
		log = []Exchange{}
	}
	data, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal chat log: %w", err)
	}
	tmp := j.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write chat log: %w", err)
	}
	return os.Rename(tmp, j.path)
}

// AddExchange appends one exchange to the journal.
func (j *Journal) AddExchange(user, assistant string, tools []ToolCall) error {
	log := j.load()
	if tools == nil {
		tools = []ToolCall{}
	}
	log = append(log, Exchange{
		Timestamp: time.Now().Format(time.RFC3339),
		User:      user,
		Assistant: assistant,
		Tools:     tools,
	})
	return j.save(log)
}

// Recent returns the last count exchanges.
func (j *Journal) Recent(count int) []Exchange {
	log := j.load()
	if count > 0 && len(log) > count {
		log = log[len(log)-count:]
	}
	return log
}

// Clear removes the journal file.
func (j *Journal) Clear() error {
	err := os.Remove(j.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// FormatHistory renders the recent exchanges for terminal display.
func (j *Journal) FormatHistory(count int) string {
	exchanges := j.Recent(count)
	if len(exchanges) == 0 {
		return "No chat history yet."
	}

	rule := strings.Repeat("=", 60)
	var out []string
	out = append(out, rule)
	out = append(out, fmt.Sprintf("RECENT CHAT HISTORY (%d exchanges)", len(exchanges)))
	out = append(out, rule)

	for i, ex := range exchanges {
		out = append(out, "", formatExchange(ex, i+1))
	}
	out = append(out, "", rule)
	return strings.Join(out, "\n")
}

func formatExchange(ex Exchange, index int) string {
	timeStr := "unknown"
	if ex.Timestamp != "" {
		if t, err := time.Parse(time.RFC3339, ex.Timestamp); err == nil {
			timeStr = t.Format("2006-01-02 15:04")
		} else if len(ex.Timestamp) >= 16 {
			timeStr = ex.Timestamp[:16]
		}
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("--- Exchange %d (%s) ---", index, timeStr))

	user := ex.User
	if len(user) > 100 {
		user = user[:100] + "..."
	}
	lines = append(lines, "You: "+user)

	tools := ex.Tools
	extra := 0
	if len(tools) > 5 {
		extra = len(tools) - 5
		tools = tools[:5]
	}
	for _, t := range tools {
		if t.Summary != "" {
			lines = append(lines, fmt.Sprintf("  -> %s: %s", t.Name, t.Summary))
		} else {
			lines = append(lines, "  -> "+t.Name)
		}
	}
	if extra > 0 {
		lines = append(lines, fmt.Sprintf("  -> (+%d more tools)", extra))
	}

	assistant := ex.Assistant
	if len(assistant) > 200 {
		assistant = assistant[:200] + "..."
	}
	assistant = strings.TrimSpace(strings.ReplaceAll(assistant, "\n", " "))
	lines = append(lines, "Assistant: "+assistant)

	return strings.Join(lines, "\n")
}
