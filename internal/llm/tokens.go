package llm

// charsPerToken is the rough English-text ratio used for budgeting.
// Exact tokenizer counts are provider-specific and not worth a dependency
// for budget enforcement with headroom built in.
const charsPerToken = 4

// EstimateTokens approximates the token count of a string.
func EstimateTokens(s string) int {
	if s == "" {
		return 0
	}
	return (len(s) + charsPerToken - 1) / charsPerToken
}

// EstimateMessages approximates the token count of a message history,
// including a small per-message framing overhead.
func EstimateMessages(messages []Message) int {
	total := 0
	for _, msg := range messages {
		total += EstimateTokens(msg.Content) + 4
		for _, tc := range msg.ToolCalls {
			total += EstimateTokens(tc.Arguments) + EstimateTokens(tc.Name)
		}
	}
	return total
}

// TrimHistory drops the oldest non-system messages until the estimated
// token count fits the budget. System messages always survive; the most
// recent messages are preferred over older ones.
func TrimHistory(messages []Message, budget int) []Message {
	if budget <= 0 || EstimateMessages(messages) <= budget {
		return messages
	}

	var system, rest []Message
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			system = append(system, msg)
		} else {
			rest = append(rest, msg)
		}
	}

	for len(rest) > 1 {
		trimmed := append(append([]Message{}, system...), rest...)
		if EstimateMessages(trimmed) <= budget {
			return trimmed
		}
		rest = rest[1:]
	}
	return append(system, rest...)
}
