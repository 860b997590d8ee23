package openai

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/flowbaker/triage/pkg/ai-sdk/provider"
	"github.com/flowbaker/triage/pkg/ai-sdk/types"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
)

const GroqBaseURL = "https://api.groq.com/openai/v1"

// Provider implements the LanguageModel interface for OpenAI and
// OpenAI-compatible endpoints such as Groq.
type Provider struct {
	client *openai.Client
	apiKey string

	RequestSettings RequestSettings
}

type RequestSettings struct {
	Model     string
	MaxTokens int

	// JSONObjectMode asks for a plain JSON object instead of a strict
	// json_schema response format, for endpoints that only support the former.
	JSONObjectMode bool
}

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

// New creates a new OpenAI provider
func New(apiKey, model string) *Provider {
	return NewWithConfig(Config{
		APIKey: apiKey,
		Model:  model,
	})
}

// NewWithConfig creates a provider with an optional base URL override
func NewWithConfig(config Config) *Provider {
	clientConfig := openai.DefaultConfig(config.APIKey)

	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &Provider{
		client: openai.NewClientWithConfig(clientConfig),
		apiKey: config.APIKey,
		RequestSettings: RequestSettings{
			Model: config.Model,
		},
	}
}

func (p *Provider) SetRequestSettings(settings RequestSettings) {
	p.RequestSettings = settings
}

// ID returns the model identifier
func (p *Provider) ID() string {
	return fmt.Sprintf("openai:%s", p.RequestSettings.Model)
}

// Generate implements the Generate method of the LanguageModel interface
func (p *Provider) Generate(ctx context.Context, req provider.GenerateRequest) (*types.GenerateResponse, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:       p.RequestSettings.Model,
		Messages:    p.convertMessages(req.Messages, req.System),
		Temperature: temperature(req.Temperature),
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.RequestSettings.MaxTokens
	}

	if maxTokens > 0 {
		if isMaxCompletionTokensModel(p.RequestSettings.Model) {
			chatReq.MaxCompletionTokens = maxTokens
		} else {
			chatReq.MaxTokens = maxTokens
		}
	}

	if req.ResponseSchema != nil {
		chatReq.ResponseFormat = p.responseFormat(req.ResponseSchema)
	}

	log.Debug().
		Str("model", chatReq.Model).
		Bool("structured", req.ResponseSchema != nil).
		Msg("Sending chat completion request")

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("openai api error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, types.ErrEmptyResponse
	}

	choice := resp.Choices[0]

	if req.ResponseSchema != nil && strings.TrimSpace(choice.Message.Content) == "" {
		return nil, types.ErrStructuredOutputMissing
	}

	response := &types.GenerateResponse{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Model:        resp.Model,
		Usage: types.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}

	if resp.Usage.CompletionTokensDetails != nil {
		response.Usage.ReasoningTokens = resp.Usage.CompletionTokensDetails.ReasoningTokens
	}

	if resp.Usage.PromptTokensDetails != nil {
		response.Usage.CachedInputTokens = resp.Usage.PromptTokensDetails.CachedTokens
	}

	return response, nil
}

func (p *Provider) responseFormat(schema *provider.ResponseSchema) *openai.ChatCompletionResponseFormat {
	if p.RequestSettings.JSONObjectMode {
		return &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	return &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
			Name:        schema.Name,
			Description: schema.Description,
			Schema:      schema.Schema,
			Strict:      true,
		},
	}
}

func (p *Provider) convertMessages(messages []types.Message, system string) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages)+1)

	if system != "" {
		result = append(result, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}

	for _, msg := range messages {
		role := openai.ChatMessageRoleUser

		switch msg.Role {
		case types.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		case types.RoleSystem:
			role = openai.ChatMessageRoleSystem
		}

		result = append(result, openai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		})
	}

	return result
}

// temperature maps zero to the smallest non-zero value; the client drops a
// literal zero from the request body and the server would apply its default.
func temperature(t float32) float32 {
	if t <= 0 {
		return math.SmallestNonzeroFloat32
	}

	return t
}

func isMaxCompletionTokensModel(model string) bool {
	return strings.HasPrefix(model, "o1") ||
		strings.HasPrefix(model, "o3") ||
		strings.HasPrefix(model, "o4") ||
		strings.HasPrefix(model, "gpt-5")
}
