package provider

import (
	"context"
	"encoding/json"

	"github.com/flowbaker/triage/pkg/ai-sdk/types"
)

// LanguageModel defines the interface that all LLM providers must implement
type LanguageModel interface {
	// Generate produces a complete response (blocking). There is no internal
	// timeout; ctx is the only cancellation hook.
	Generate(ctx context.Context, req GenerateRequest) (*types.GenerateResponse, error)

	// ID returns the unique identifier for this model
	ID() string
}

// GenerateRequest contains all parameters for generating a structured answer
type GenerateRequest struct {
	// Messages is the conversation history
	Messages []types.Message `json:"messages"`

	// System is the system instruction
	System string `json:"system,omitempty"`

	// Temperature controls randomness. Zero requests deterministic sampling.
	Temperature float32 `json:"temperature"`

	// MaxTokens is the maximum number of tokens to generate
	MaxTokens int `json:"max_tokens,omitempty"`

	// ResponseSchema forces the answer to conform to a JSON schema
	ResponseSchema *ResponseSchema `json:"response_schema,omitempty"`
}

// ResponseSchema describes the JSON object the model must return
type ResponseSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Schema      json.RawMessage `json:"schema"`
}

// SchemaMap decodes the schema into a generic map for SDKs that want one.
func (s *ResponseSchema) SchemaMap() (map[string]any, error) {
	schema := map[string]any{}

	if err := json.Unmarshal(s.Schema, &schema); err != nil {
		return nil, err
	}

	return schema, nil
}
