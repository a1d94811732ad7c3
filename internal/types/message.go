// Package types defines the shared data model for the assistant: conversation
// messages and their content blocks, flashcard domain structs, and small
// extraction utilities used at the LLM boundary.
package types

import (
	"encoding/json"
	"fmt"
)

// =============================================================================
// CONTENT BLOCKS
// =============================================================================
//
// A message's content is a closed set of exactly three block kinds. The
// provider wire format is the tagged JSON shape the Anthropic Messages API
// uses ({"type": "text", ...}); Block is the in-memory representation and
// MarshalJSON/UnmarshalJSON form the serialization boundary.

// BlockKind identifies a content block variant.
type BlockKind string

const (
	BlockText       BlockKind = "text"
	BlockToolUse    BlockKind = "tool_use"
	BlockToolResult BlockKind = "tool_result"
)

// Block is one content block of a conversation message.
// Exactly one variant is populated, selected by Kind:
//   - BlockText:       Text
//   - BlockToolUse:    ID, Name, Input
//   - BlockToolResult: ToolUseID, Content, IsError
type Block struct {
	Kind BlockKind

	// Text variant
	Text string

	// ToolUse variant
	ID    string
	Name  string
	Input map[string]interface{}

	// ToolResult variant
	ToolUseID string
	Content   string
	IsError   bool
}

// TextBlock builds a text block.
func TextBlock(text string) Block {
	return Block{Kind: BlockText, Text: text}
}

// ToolUseBlock builds a tool_use block.
func ToolUseBlock(id, name string, input map[string]interface{}) Block {
	return Block{Kind: BlockToolUse, ID: id, Name: name, Input: input}
}

// ToolResultBlock builds a tool_result block.
func ToolResultBlock(toolUseID, content string) Block {
	return Block{Kind: BlockToolResult, ToolUseID: toolUseID, Content: content}
}

// wireBlock is the provider JSON shape for a content block.
type wireBlock struct {
	Type      string                 `json:"type"`
	Text      string                 `json:"text,omitempty"`
	ID        string                 `json:"id,omitempty"`
	Name      string                 `json:"name,omitempty"`
	Input     map[string]interface{} `json:"input,omitempty"`
	ToolUseID string                 `json:"tool_use_id,omitempty"`
	Content   string                 `json:"content,omitempty"`
	IsError   bool                   `json:"is_error,omitempty"`
}

// MarshalJSON serializes the block in provider wire format.
func (b Block) MarshalJSON() ([]byte, error) {
	switch b.Kind {
	case BlockText:
		return json.Marshal(wireBlock{Type: "text", Text: b.Text})
	case BlockToolUse:
		input := b.Input
		if input == nil {
			// The API rejects a null input object.
			input = map[string]interface{}{}
		}
		return json.Marshal(struct {
			Type  string                 `json:"type"`
			ID    string                 `json:"id"`
			Name  string                 `json:"name"`
			Input map[string]interface{} `json:"input"`
		}{"tool_use", b.ID, b.Name, input})
	case BlockToolResult:
		return json.Marshal(struct {
			Type      string `json:"type"`
			ToolUseID string `json:"tool_use_id"`
			Content   string `json:"content"`
			IsError   bool   `json:"is_error,omitempty"`
		}{"tool_result", b.ToolUseID, b.Content, b.IsError})
	default:
		return nil, fmt.Errorf("unknown block kind %q", b.Kind)
	}
}

// UnmarshalJSON parses a block from provider wire format. Unknown block
// types are rejected so corruption surfaces at the boundary, not later.
func (b *Block) UnmarshalJSON(data []byte) error {
	var w wireBlock
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch BlockKind(w.Type) {
	case BlockText:
		*b = Block{Kind: BlockText, Text: w.Text}
	case BlockToolUse:
		*b = Block{Kind: BlockToolUse, ID: w.ID, Name: w.Name, Input: w.Input}
	case BlockToolResult:
		*b = Block{Kind: BlockToolResult, ToolUseID: w.ToolUseID, Content: w.Content, IsError: w.IsError}
	default:
		return fmt.Errorf("unknown content block type %q", w.Type)
	}
	return nil
}

// =============================================================================
// MESSAGES
// =============================================================================

// Role is a conversation message role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in the conversation log.
type Message struct {
	Role   Role    `json:"role"`
	Blocks []Block `json:"content"`
}

// UserText builds a user message with a single text block.
func UserText(text string) Message {
	return Message{Role: RoleUser, Blocks: []Block{TextBlock(text)}}
}

// AssistantText builds an assistant message with a single text block.
func AssistantText(text string) Message {
	return Message{Role: RoleAssistant, Blocks: []Block{TextBlock(text)}}
}

// ToolUseIDs returns the IDs of all tool_use blocks, in order.
func (m Message) ToolUseIDs() []string {
	var ids []string
	for _, b := range m.Blocks {
		if b.Kind == BlockToolUse {
			ids = append(ids, b.ID)
		}
	}
	return ids
}

// ToolResultIDs returns the tool_use_id of every tool_result block, in order.
func (m Message) ToolResultIDs() []string {
	var ids []string
	for _, b := range m.Blocks {
		if b.Kind == BlockToolResult {
			ids = append(ids, b.ToolUseID)
		}
	}
	return ids
}

// HasToolUse reports whether the message carries any tool_use block.
func (m Message) HasToolUse() bool {
	for _, b := range m.Blocks {
		if b.Kind == BlockToolUse {
			return true
		}
	}
	return false
}

// HasToolResult reports whether the message carries any tool_result block.
func (m Message) HasToolResult() bool {
	for _, b := range m.Blocks {
		if b.Kind == BlockToolResult {
			return true
		}
	}
	return false
}

// PlainText concatenates the text blocks of the message.
func (m Message) PlainText() string {
	var out string
	for _, b := range m.Blocks {
		if b.Kind == BlockText {
			out += b.Text
		}
	}
	return out
}

// SameIDSet reports whether a and b contain the same identifiers,
// regardless of order. Used to pair tool_use blocks with tool_results.
func SameIDSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]int, len(a))
	for _, id := range a {
		set[id]++
	}
	for _, id := range b {
		set[id]--
		if set[id] < 0 {
			return false
		}
	}
	return true
}
