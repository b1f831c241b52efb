package llm

// Reply is a model response to one Conversation.
type Reply struct {
	Model     string
	Content   string
	ToolCalls []ToolInvocation

	// Usage, when reported by the provider
	PromptTokens     int64
	CompletionTokens int64
}

// Turn converts the reply into the assistant turn appended to the conversation.
func (r *Reply) Turn() AssistantTurn {
	return AssistantTurn{
		Content:   r.Content,
		ToolCalls: r.ToolCalls,
	}
}
