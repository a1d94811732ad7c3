package conversation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ankicli/internal/logging"
	"ankicli/internal/types"
)

// Session is the durable conversation state: the message log plus the token
// counters. InputTokens is the last reported prompt-size snapshot;
// OutputTokens is the running sum of response tokens.
type Session struct {
	Log          *Log
	InputTokens  int
	OutputTokens int
}

// NewSession returns an empty session.
func NewSession() *Session {
	return &Session{Log: NewLog(nil)}
}

// sessionFile is the on-disk JSON shape.
type sessionFile struct {
	LastSaved    string          `json:"last_saved"`
	InputTokens  int             `json:"input_tokens"`
	OutputTokens int             `json:"output_tokens"`
	Messages     []types.Message `json:"messages"`
}

// Store persists sessions to a single JSON file.
type Store struct {
	path string
}

// NewStore creates a store writing to path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// DefaultPath returns the conversation file inside the config dir.
func DefaultPath(configDir string) string {
	return filepath.Join(configDir, "conversation.json")
}

// Load reads the saved session. A missing file yields an empty session; a
// corrupt file is backed up to <path>.corrupt and replaced by an empty
// session, so a damaged save never blocks startup. The bool reports whether
// an existing conversation was restored.
func (s *Store) Load() (*Session, bool, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return NewSession(), false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read conversation: %w", err)
	}

	var f sessionFile
	if err := json.Unmarshal(data, &f); err != nil {
		logging.SessionError("corrupt conversation file, backing up: %v", err)
		_ = os.WriteFile(s.path+".corrupt", data, 0o644)
		_ = os.Remove(s.path)
		return NewSession(), false, nil
	}
	if len(f.Messages) == 0 {
		return NewSession(), false, nil
	}

	sess := &Session{
		Log:          NewLog(f.Messages),
		InputTokens:  f.InputTokens,
		OutputTokens: f.OutputTokens,
	}
	logging.Session("loaded conversation: %d messages, in=%d out=%d",
		sess.Log.Len(), sess.InputTokens, sess.OutputTokens)
	return sess, true, nil
}

// Save writes the session atomically via a temp file rename.
func (s *Store) Save(sess *Session) error {
	f := sessionFile{
		LastSaved:    time.Now().Format(time.RFC3339),
		InputTokens:  sess.InputTokens,
		OutputTokens: sess.OutputTokens,
		Messages:     sess.Log.Messages(),
	}
	if f.Messages == nil {
		f.Messages = []types.Message{}
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write conversation: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace conversation: %w", err)
	}
	logging.SessionDebug("saved conversation: %d messages", len(f.Messages))
	return nil
}

// Age returns a human-readable age of the saved conversation, or "" when no
// usable save exists.
func (s *Store) Age() string {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return ""
	}
	var f sessionFile
	if err := json.Unmarshal(data, &f); err != nil || f.LastSaved == "" {
		return ""
	}
	saved, err := time.Parse(time.RFC3339, f.LastSaved)
	if err != nil {
		return ""
	}
	delta := time.Since(saved)
	switch {
	case delta >= 24*time.Hour:
		return fmt.Sprintf("%d day(s) ago", int(delta.Hours())/24)
	case delta >= time.Hour:
		return fmt.Sprintf("%d hour(s) ago", int(delta.Hours()))
	case delta >= time.Minute:
		return fmt.Sprintf("%d minute(s) ago", int(delta.Minutes()))
	default:
		return "just now"
	}
}

// Clear removes the saved conversation file.
func (s *Store) Clear() error {
	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
