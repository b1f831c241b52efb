// Package openai adapts the OpenAI chat completions API to the provider-neutral
// conversation model in pkg/llm.
package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"

	"github.com/papercomputeco/quizagent/pkg/llm"
)

// ErrEmptyResponse is returned when the provider answers with no choices.
var ErrEmptyResponse = errors.New("model returned no choices")

// Config configures the chat completions client.
type Config struct {
	// BaseURL of the OpenAI-compatible API (e.g., "https://api.openai.com/v1")
	BaseURL string

	// APIKey, sent as a bearer token when non-empty
	APIKey string

	// Model name (e.g., "gpt-4o-mini")
	Model string

	// MaxRetries is the number of provider-internal retries on transient failures.
	MaxRetries int

	// RequestTimeout bounds a single completion request. Zero uses the provider default.
	RequestTimeout time.Duration
}

// Client sends conversations to a chat completions endpoint.
type Client struct {
	client openai.Client
	model  string
	logger *zap.Logger
}

// New creates a new Client.
func New(config Config, logger *zap.Logger) *Client {
	options := []option.RequestOption{
		option.WithMaxRetries(config.MaxRetries),
	}
	if config.BaseURL != "" {
		options = append(options, option.WithBaseURL(config.BaseURL))
	}
	if config.APIKey != "" {
		options = append(options, option.WithAPIKey(config.APIKey))
	}
	if config.RequestTimeout > 0 {
		options = append(options, option.WithRequestTimeout(config.RequestTimeout))
	}

	return &Client{
		client: openai.NewClient(options...),
		model:  config.Model,
		logger: logger,
	}
}

// Complete sends the conversation and the declared tools and returns the model reply.
func (c *Client) Complete(ctx context.Context, conv *llm.Conversation, tools []llm.ToolSpec) (*llm.Reply, error) {
	messages, err := Messages(conv.Turns())
	if err != nil {
		return nil, err
	}

	params := openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: messages,
		Tools:    Tools(tools),
	}

	c.logger.Debug("sending chat completion",
		zap.String("model", c.model),
		zap.Int("message_count", len(messages)),
		zap.Int("tool_count", len(tools)),
	)

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	message := completion.Choices[0].Message
	reply := &llm.Reply{
		Model:            completion.Model,
		Content:          message.Content,
		PromptTokens:     completion.Usage.PromptTokens,
		CompletionTokens: completion.Usage.CompletionTokens,
	}
	for _, call := range message.ToolCalls {
		reply.ToolCalls = append(reply.ToolCalls, llm.ToolInvocation{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}

	c.logger.Debug("received chat completion",
		zap.String("model", reply.Model),
		zap.String("finish_reason", string(completion.Choices[0].FinishReason)),
		zap.Int("tool_calls", len(reply.ToolCalls)),
		zap.Int64("prompt_tokens", reply.PromptTokens),
		zap.Int64("completion_tokens", reply.CompletionTokens),
	)

	return reply, nil
}
