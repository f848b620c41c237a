package llm

import (
	"context"
	"errors"
	"strings"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/shared"

	"github.com/aperturehq/aperture/internal/apperrors"
)

var (
	// ErrEmptyRequest is returned when Complete is called without any messages.
	ErrEmptyRequest = errors.New("llm: request contains no messages")
	// ErrNoChoiceInResponse is returned when the API response contains no choices.
	ErrNoChoiceInResponse = errors.New("llm: no choice in response")
)

const defaultModel = "gpt-4o-mini"

// OpenAIClient calls the OpenAI chat completions API via the official SDK.
type OpenAIClient struct {
	sdk   openaisdk.Client
	model string
}

// Ensure OpenAIClient implements Client interface
var _ Client = (*OpenAIClient)(nil)

// ClientOption configures the OpenAIClient.
type ClientOption func(*OpenAIClient)

// WithModel sets the chat model name. Empty uses the default.
func WithModel(model string) ClientOption {
	return func(c *OpenAIClient) {
		if model != "" {
			c.model = model
		}
	}
}

// NewOpenAIClient creates an OpenAI chat completion client using the official SDK.
func NewOpenAIClient(apiKey string, opts ...ClientOption) *OpenAIClient {
	client := &OpenAIClient{
		sdk:   openaisdk.NewClient(option.WithAPIKey(apiKey)),
		model: defaultModel,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Complete performs one chat completion and returns the raw assistant text.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	if req.SystemPrompt == "" && len(req.Messages) == 0 {
		return "", ErrEmptyRequest
	}

	messages := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, openaisdk.SystemMessage(req.SystemPrompt))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case RoleAssistant:
			messages = append(messages, openaisdk.AssistantMessage(m.Content))
		default:
			messages = append(messages, openaisdk.UserMessage(m.Content))
		}
	}

	params := openaisdk.ChatCompletionNewParams{
		Model:       openaisdk.ChatModel(c.model),
		Messages:    messages,
		Temperature: param.NewOpt(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = param.NewOpt(req.MaxTokens)
	}
	if req.ForceJSON {
		params.ResponseFormat = openaisdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := c.sdk.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", apperrors.NewProviderError("openai", "chat completion", err)
	}

	if len(resp.Choices) == 0 {
		return "", apperrors.NewProviderError("openai", "chat completion", ErrNoChoiceInResponse)
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
