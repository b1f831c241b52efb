package openai

import (
	"github.com/openai/openai-go/v3"

	"github.com/papercomputeco/quizagent/pkg/llm"
)

// Messages maps conversation turns onto chat completion message params.
func Messages(turns []llm.Turn) ([]openai.ChatCompletionMessageParamUnion, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns))

	for _, turn := range turns {
		switch t := turn.(type) {
		case llm.SystemTurn:
			messages = append(messages, openai.SystemMessage(t.Content))
		case llm.UserTurn:
			messages = append(messages, openai.UserMessage(t.Content))
		case llm.AssistantTurn:
			message := openai.AssistantMessage(t.Content)
			message.OfAssistant.ToolCalls = toolCalls(t.ToolCalls)
			messages = append(messages, message)
		case llm.ToolResultTurn:
			messages = append(messages, openai.ToolMessage(t.Content, t.CallID))
		default:
			return nil, llm.ErrUnknownTurn{Turn: turn}
		}
	}

	return messages, nil
}

func toolCalls(calls []llm.ToolInvocation) []openai.ChatCompletionMessageToolCallUnionParam {
	var params []openai.ChatCompletionMessageToolCallUnionParam
	for _, call := range calls {
		params = append(params, openai.ChatCompletionMessageToolCallUnionParam{
			OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
				ID: call.ID,
				Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
					Name:      call.Name,
					Arguments: call.Arguments,
				},
			},
		})
	}
	return params
}

// Tools maps capability declarations onto function tool params.
func Tools(specs []llm.ToolSpec) []openai.ChatCompletionToolUnionParam {
	var tools []openai.ChatCompletionToolUnionParam
	for _, spec := range specs {
		tools = append(tools, openai.ChatCompletionToolUnionParam{
			OfFunction: &openai.ChatCompletionFunctionToolParam{
				Function: openai.FunctionDefinitionParam{
					Name:        spec.Name,
					Description: openai.String(spec.Description),
					Parameters:  openai.FunctionParameters(spec.Parameters),
				},
			},
		})
	}
	return tools
}
