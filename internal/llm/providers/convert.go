package providers

import (
	"context"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"
	"github.com/zero-day-ai/conductor/internal/llm"
)

// toSchemaMessages converts conductor messages to langchaingo MessageContent.
func toSchemaMessages(messages []llm.Message) []llms.MessageContent {
	result := make([]llms.MessageContent, 0, len(messages))

	for _, msg := range messages {
		var role llms.ChatMessageType
		switch msg.Role {
		case llm.RoleSystem:
			role = llms.ChatMessageTypeSystem
		case llm.RoleAssistant:
			role = llms.ChatMessageTypeAI
		case llm.RoleTool:
			role = llms.ChatMessageTypeTool
		default:
			role = llms.ChatMessageTypeHuman
		}

		var parts []llms.ContentPart
		switch {
		case msg.Role == llm.RoleTool && msg.ToolCallID != "":
			parts = append(parts, llms.ToolCallResponse{
				ToolCallID: msg.ToolCallID,
				Content:    msg.Content,
			})
		case msg.Role == llm.RoleAssistant && len(msg.ToolCalls) > 0:
			if msg.Content != "" {
				parts = append(parts, llms.TextPart(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				parts = append(parts, llms.ToolCall{
					ID:   tc.ID,
					Type: tc.Type,
					FunctionCall: &llms.FunctionCall{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
		default:
			parts = append(parts, llms.TextPart(msg.Content))
		}

		result = append(result, llms.MessageContent{Role: role, Parts: parts})
	}

	return result
}

// toSchemaTools converts conductor tool definitions to langchaingo tools.
func toSchemaTools(tools []llm.ToolDef) []llms.Tool {
	result := make([]llms.Tool, 0, len(tools))
	for _, t := range tools {
		result = append(result, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return result
}

// fromLangchainResponse converts a langchaingo response to a conductor
// response.
func fromLangchainResponse(resp *llms.ContentResponse, model string) *llm.CompletionResponse {
	out := &llm.CompletionResponse{
		ID:           uuid.New().String(),
		Model:        model,
		FinishReason: llm.FinishReasonStop,
	}
	out.Message.Role = llm.RoleAssistant

	if resp == nil || len(resp.Choices) == 0 {
		return out
	}
	choice := resp.Choices[0]
	out.Message.Content = choice.Content

	for _, tc := range choice.ToolCalls {
		var name, arguments string
		if tc.FunctionCall != nil {
			name = tc.FunctionCall.Name
			arguments = tc.FunctionCall.Arguments
		}
		out.Message.ToolCalls = append(out.Message.ToolCalls, llm.ToolCall{
			ID:        tc.ID,
			Type:      tc.Type,
			Name:      name,
			Arguments: arguments,
		})
	}

	switch choice.StopReason {
	case "length", "max_tokens":
		out.FinishReason = llm.FinishReasonLength
	case "tool_calls", "tool_use", "function_call":
		out.FinishReason = llm.FinishReasonToolCalls
	case "content_filter":
		out.FinishReason = llm.FinishReasonFilter
	}
	if len(out.Message.ToolCalls) > 0 && out.FinishReason == llm.FinishReasonStop {
		out.FinishReason = llm.FinishReasonToolCalls
	}

	out.Usage = usageFromGenerationInfo(choice.GenerationInfo)
	return out
}

// usageFromGenerationInfo reads token counts from provider-specific
// generation info keys.
func usageFromGenerationInfo(info map[string]any) llm.TokenUsage {
	var usage llm.TokenUsage
	read := func(keys ...string) int {
		for _, key := range keys {
			if v, ok := info[key]; ok {
				switch n := v.(type) {
				case int:
					return n
				case int64:
					return int(n)
				case float64:
					return int(n)
				}
			}
		}
		return 0
	}

	usage.PromptTokens = read("PromptTokens", "InputTokens")
	usage.CompletionTokens = read("CompletionTokens", "OutputTokens")
	usage.TotalTokens = read("TotalTokens")
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}
	return usage
}

// buildCallOptions maps request parameters to langchaingo call options.
func buildCallOptions(req llm.CompletionRequest) []llms.CallOption {
	callOpts := make([]llms.CallOption, 0)

	if req.Model != "" {
		callOpts = append(callOpts, llms.WithModel(req.Model))
	}
	if req.Temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(req.Temperature))
	}
	if req.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(req.MaxTokens))
	}
	if req.TopP > 0 {
		callOpts = append(callOpts, llms.WithTopP(req.TopP))
	}
	if len(req.StopSequences) > 0 {
		callOpts = append(callOpts, llms.WithStopWords(req.StopSequences))
	}
	if len(req.Tools) > 0 {
		callOpts = append(callOpts, llms.WithTools(toSchemaTools(req.Tools)))
	}

	return callOpts
}

// buildStreamingCallOptions adds a streaming callback to the base options.
func buildStreamingCallOptions(req llm.CompletionRequest, streamFunc func(ctx context.Context, chunk []byte) error) []llms.CallOption {
	return append(buildCallOptions(req), llms.WithStreamingFunc(streamFunc))
}
