package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/flowbaker/triage/pkg/ai-sdk/provider"
	"github.com/flowbaker/triage/pkg/ai-sdk/types"
)

// Provider implements the LanguageModel interface for Anthropic Claude.
// Structured output is obtained by forcing a single tool call whose input
// schema is the requested response schema.
type Provider struct {
	client anthropic.Client
	model  string
	config Config
}

// Config holds Anthropic-specific configuration
type Config struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
}

// New creates a new Anthropic provider
func New(apiKey, model string) *Provider {
	return NewWithConfig(Config{
		APIKey: apiKey,
		Model:  model,
	})
}

// NewWithConfig creates a new Anthropic provider with custom configuration
func NewWithConfig(config Config) *Provider {
	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}

	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	client := anthropic.NewClient(opts...)

	return &Provider{
		client: client,
		model:  config.Model,
		config: config,
	}
}

// ID returns the model identifier
func (p *Provider) ID() string {
	return fmt.Sprintf("anthropic:%s", p.model)
}

// Generate implements the Generate method of the LanguageModel interface
func (p *Provider) Generate(ctx context.Context, req provider.GenerateRequest) (*types.GenerateResponse, error) {
	msgReq := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		Messages:    p.convertMessages(req.Messages),
		Temperature: anthropic.Float(float64(req.Temperature)),
	}

	if req.System != "" {
		msgReq.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	if req.MaxTokens > 0 {
		msgReq.MaxTokens = int64(req.MaxTokens)
	} else if p.config.MaxTokens > 0 {
		msgReq.MaxTokens = int64(p.config.MaxTokens)
	} else {
		// Anthropic requires max_tokens, set a reasonable default
		msgReq.MaxTokens = int64(4096)
	}

	if req.ResponseSchema != nil {
		tool, err := p.schemaTool(req.ResponseSchema)
		if err != nil {
			return nil, err
		}

		msgReq.Tools = []anthropic.ToolUnionParam{tool}
		msgReq.ToolChoice = anthropic.ToolChoiceParamOfTool(req.ResponseSchema.Name)
	}

	resp, err := p.client.Messages.New(ctx, msgReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic api error: %w", err)
	}

	response := &types.GenerateResponse{
		Model:        string(resp.Model),
		FinishReason: string(resp.StopReason),
		Usage: types.Usage{
			PromptTokens:      int(resp.Usage.InputTokens),
			CompletionTokens:  int(resp.Usage.OutputTokens),
			TotalTokens:       int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
			CachedInputTokens: int(resp.Usage.CacheReadInputTokens),
		},
	}

	var textContent strings.Builder
	var structured json.RawMessage

	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			textContent.WriteString(block.Text)
		case "tool_use":
			if req.ResponseSchema != nil && block.Name == req.ResponseSchema.Name {
				structured = block.Input
			}
		}
	}

	if req.ResponseSchema == nil {
		response.Content = textContent.String()
		return response, nil
	}

	if len(structured) == 0 {
		return nil, types.ErrStructuredOutputMissing
	}

	response.Content = string(structured)

	return response, nil
}

func (p *Provider) convertMessages(messages []types.Message) []anthropic.MessageParam {
	result := make([]anthropic.MessageParam, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case types.RoleAssistant:
			result = append(result, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			result = append(result, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	return result
}

// schemaTool wraps the response schema in a tool definition
func (p *Provider) schemaTool(schema *provider.ResponseSchema) (anthropic.ToolUnionParam, error) {
	parameters, err := schema.SchemaMap()
	if err != nil {
		return anthropic.ToolUnionParam{}, fmt.Errorf("invalid response schema: %w", err)
	}

	inputSchema := anthropic.ToolInputSchemaParam{
		Properties: parameters["properties"],
	}

	if required, ok := parameters["required"].([]any); ok {
		reqStrings := make([]string, 0, len(required))
		for _, r := range required {
			if s, ok := r.(string); ok {
				reqStrings = append(reqStrings, s)
			}
		}
		inputSchema.Required = reqStrings
	}

	inputSchema.ExtraFields = make(map[string]any)
	for key, value := range parameters {
		if key != "type" && key != "properties" && key != "required" {
			inputSchema.ExtraFields[key] = value
		}
	}

	description := schema.Description
	if description == "" {
		description = "Record the structured answer."
	}

	return anthropic.ToolUnionParam{
		OfTool: &anthropic.ToolParam{
			Name:        schema.Name,
			Description: anthropic.String(description),
			InputSchema: inputSchema,
		},
	}, nil
}
