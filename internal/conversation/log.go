// Package conversation holds the durable chat state: the append-only message
// log with its repair and compaction transitions, and the JSON session store.
package conversation

import (
	"ankicli/internal/types"
)

// Log is the conversation message log. Messages alternate user/assistant;
// an assistant message carrying tool_use blocks must be followed by a user
// message carrying exactly the matching tool_result blocks. All structural
// mutations go through the named transitions below.
type Log struct {
	messages []types.Message
}

// NewLog builds a log from existing messages (e.g. loaded from disk).
func NewLog(messages []types.Message) *Log {
	return &Log{messages: messages}
}

// Len returns the number of messages.
func (l *Log) Len() int {
	return len(l.messages)
}

// Messages returns the underlying message slice. Callers must treat it as
// read-only; mutations go through the transitions.
func (l *Log) Messages() []types.Message {
	return l.messages
}

// At returns the message at index i.
func (l *Log) At(i int) types.Message {
	return l.messages[i]
}

// Last returns the final message and true, or false on an empty log.
func (l *Log) Last() (types.Message, bool) {
	if len(l.messages) == 0 {
		return types.Message{}, false
	}
	return l.messages[len(l.messages)-1], true
}

// Append adds a message to the end of the log.
func (l *Log) Append(m types.Message) {
	l.messages = append(l.messages, m)
}

// PopLastUser removes the final message if it is a user message. Used by the
// provider-error recovery path to withdraw the message it just appended.
func (l *Log) PopLastUser() bool {
	if len(l.messages) == 0 || l.messages[len(l.messages)-1].Role != types.RoleUser {
		return false
	}
	l.messages = l.messages[:len(l.messages)-1]
	return true
}

// TruncateBefore discards the message at index i and everything after it.
func (l *Log) TruncateBefore(i int) {
	if i < 0 {
		i = 0
	}
	if i < len(l.messages) {
		l.messages = l.messages[:i]
	}
}

// DropFirst removes the first message.
func (l *Log) DropFirst() {
	if len(l.messages) > 0 {
		l.messages = l.messages[1:]
	}
}

// Clear empties the log.
func (l *Log) Clear() {
	l.messages = nil
}

// SpliceSummary replaces messages[:split] with the summary/acknowledgement
// pair. Tool_result blocks on the first kept message would be orphaned by
// the splice, so they are stripped at the boundary; a message left with no
// blocks is dropped entirely.
func (l *Log) SpliceSummary(split int, summary, ack types.Message) {
	if split < 0 {
		split = 0
	}
	if split > len(l.messages) {
		split = len(l.messages)
	}
	recent := l.messages[split:]

	if len(recent) > 0 && recent[0].Role == types.RoleUser {
		var kept []types.Block
		for _, b := range recent[0].Blocks {
			if b.Kind != types.BlockToolResult {
				kept = append(kept, b)
			}
		}
		if len(kept) > 0 {
			first := recent[0]
			first.Blocks = kept
			recent = append([]types.Message{first}, recent[1:]...)
		} else {
			recent = recent[1:]
		}
	}

	spliced := make([]types.Message, 0, len(recent)+2)
	spliced = append(spliced, summary, ack)
	spliced = append(spliced, recent...)
	l.messages = spliced
}
