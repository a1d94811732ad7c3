package conversation

import (
	"ankicli/internal/logging"
	"ankicli/internal/types"
)

// Repair scans the log from the start and cuts it at the first
// tool_use/tool_result pairing violation:
//
//   - An assistant message with tool_use blocks must be followed by a user
//     message whose tool_result IDs are exactly the tool_use IDs; otherwise
//     the log is truncated before the assistant message.
//   - A user message with tool_result blocks must follow an assistant
//     message with the matching tool_use IDs. A violating user message at
//     the head of the log is dropped and the scan continues; anywhere else
//     the log is truncated before it.
//
// Repair is idempotent and never grows the log. It returns true if the log
// was modified.
func (l *Log) Repair() bool {
	if len(l.messages) == 0 {
		return false
	}
	before := len(l.messages)

	i := 0
	for i < len(l.messages) {
		msg := l.messages[i]

		switch msg.Role {
		case types.RoleAssistant:
			useIDs := msg.ToolUseIDs()
			if len(useIDs) > 0 {
				if i+1 >= len(l.messages) {
					l.TruncateBefore(i)
					return l.logRepair(before)
				}
				next := l.messages[i+1]
				if next.Role != types.RoleUser || !types.SameIDSet(useIDs, next.ToolResultIDs()) {
					l.TruncateBefore(i)
					return l.logRepair(before)
				}
			}

		case types.RoleUser:
			resultIDs := msg.ToolResultIDs()
			if len(resultIDs) > 0 {
				if i == 0 {
					l.DropFirst()
					continue
				}
				prev := l.messages[i-1]
				if prev.Role != types.RoleAssistant || !types.SameIDSet(prev.ToolUseIDs(), resultIDs) {
					l.TruncateBefore(i)
					return l.logRepair(before)
				}
			}
		}
		i++
	}
	return l.logRepair(before)
}

func (l *Log) logRepair(before int) bool {
	if len(l.messages) == before {
		return false
	}
	logging.Session("repair: truncated conversation %d -> %d messages", before, len(l.messages))
	return true
}
