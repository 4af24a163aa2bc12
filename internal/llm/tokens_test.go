package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateTokens(t *testing.T) {
	assert.Zero(t, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("hi"))
	assert.Equal(t, 25, EstimateTokens(strings.Repeat("a", 100)))
}

func TestTrimHistory(t *testing.T) {
	messages := []Message{
		NewSystemMessage("you are the planner"),
		NewUserMessage(strings.Repeat("old context ", 100)),
		NewUserMessage(strings.Repeat("newer context ", 100)),
		NewUserMessage("the actual question"),
	}

	trimmed := TrimHistory(messages, 100)

	// System message and the newest user message always survive.
	assert.Equal(t, RoleSystem, trimmed[0].Role)
	assert.Equal(t, "the actual question", trimmed[len(trimmed)-1].Content)
	assert.Less(t, len(trimmed), len(messages))

	// Under budget is untouched.
	small := []Message{NewUserMessage("hi")}
	assert.Equal(t, small, TrimHistory(small, 1000))
}
