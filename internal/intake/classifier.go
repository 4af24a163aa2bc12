package intake

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/zero-day-ai/conductor/internal/llm"
	"github.com/zero-day-ai/conductor/internal/types"
)

// ticketPattern matches tracker-style references like PROJ-123.
var ticketPattern = regexp.MustCompile(`\b[A-Z][A-Z0-9]+-\d+\b`)

// urlPattern matches http(s) references embedded in the request text.
var urlPattern = regexp.MustCompile(`https?://[^\s<>"']+`)

const classifyToolName = "classify_request"

var classifyTool = llm.ToolDef{
	Name:        classifyToolName,
	Description: "Record the classification of the user's request.",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"category": map[string]any{
				"type": "string",
				"enum": []string{"advice", "single-task", "epic", "generative"},
			},
			"required_action": map[string]any{"type": "string"},
			"references": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"complexity": map[string]any{
				"type": "string",
				"enum": []string{"low", "medium", "high"},
			},
			"clarification_questions": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
		"required": []string{"category", "required_action", "complexity"},
	},
}

const classifySystemPrompt = `You classify incoming requests for an orchestration engine.
Categories:
- advice: answer a question from available context, no side effects
- single-task: one bounded change to the workspace
- epic: a multi-goal effort needing a decomposed plan
- generative: produce new content or code from scratch
If the request is too ambiguous to act on, list clarification questions instead of guessing.
Respond by calling the classify_request tool.`

// Classifier categorizes incoming requests with one model call.
type Classifier struct {
	gateway *llm.Gateway
	logger  *slog.Logger
}

// NewClassifier creates a classifier over the model gateway.
func NewClassifier(gateway *llm.Gateway, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{gateway: gateway, logger: logger}
}

// Classify runs the single classification call. The model reply is valid
// with a tool call, with plain text carrying JSON, or both; only an empty
// reply is an error. References found by regex in the request text are
// merged with the model's.
func (c *Classifier) Classify(ctx context.Context, requestText, conversationContext string) (*Classification, error) {
	messages := []llm.Message{
		llm.NewSystemMessage(classifySystemPrompt),
	}
	if conversationContext != "" {
		messages = append(messages,
			llm.NewUserMessage("Recent conversation context:\n"+conversationContext))
	}
	messages = append(messages, llm.NewUserMessage(requestText))

	resp, err := c.gateway.CompleteTools(ctx, llm.CompletionRequest{Messages: messages},
		[]llm.ToolDef{classifyTool})
	if err != nil {
		return nil, err
	}

	classification, err := c.decode(resp)
	if err != nil {
		return nil, err
	}
	classification.References = mergeReferences(classification.References, extractReferences(requestText))

	c.logger.Info("request classified",
		"category", classification.Category,
		"complexity", classification.Complexity,
		"references", len(classification.References),
		"needs_clarification", classification.NeedsClarification())
	return classification, nil
}

// decode reads the classification from the tool call when present, falling
// back to JSON embedded in the text reply.
func (c *Classifier) decode(resp *llm.CompletionResponse) (*Classification, error) {
	var payload string
	for _, tc := range resp.Message.ToolCalls {
		if tc.Name == classifyToolName {
			payload = tc.Arguments
			break
		}
	}
	if payload == "" && resp.Message.Content != "" {
		doc, err := llm.ExtractJSON(resp.Message.Content)
		if err == nil {
			payload = doc
		}
	}
	if payload == "" {
		return nil, types.NewRetryableError(types.CLASSIFICATION_EMPTY,
			"model reply carried neither a classification tool call nor parseable JSON")
	}

	classification, err := llm.ExtractJSONAs[Classification](payload)
	if err != nil {
		return nil, types.WrapError(types.CLASSIFICATION_EMPTY,
			"failed to decode classification payload", err)
	}
	if err := classification.Validate(); err != nil {
		return nil, types.WrapError(types.CLASSIFICATION_EMPTY,
			fmt.Sprintf("invalid classification: %v", err), err)
	}
	return &classification, nil
}

// extractReferences pulls ticket ids and URLs out of the raw request text.
func extractReferences(text string) []string {
	var refs []string
	refs = append(refs, ticketPattern.FindAllString(text, -1)...)
	for _, u := range urlPattern.FindAllString(text, -1) {
		refs = append(refs, strings.TrimRight(u, ".,;)"))
	}
	return refs
}

// mergeReferences deduplicates while keeping first-seen order.
func mergeReferences(groups ...[]string) []string {
	seen := make(map[string]bool)
	var merged []string
	for _, group := range groups {
		for _, ref := range group {
			if ref == "" || seen[ref] {
				continue
			}
			seen[ref] = true
			merged = append(merged, ref)
		}
	}
	return merged
}
