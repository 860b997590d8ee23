package openai

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/flowbaker/triage/pkg/ai-sdk/provider"
	"github.com/flowbaker/triage/pkg/ai-sdk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const completionBody = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"model": "gpt-4o-mini",
	"choices": [{
		"index": 0,
		"message": {"role": "assistant", "content": "{\"category\":\"claim_denial\"}"},
		"finish_reason": "stop"
	}],
	"usage": {"prompt_tokens": 42, "completion_tokens": 9, "total_tokens": 51}
}`

var ticketSchema = &provider.ResponseSchema{
	Name:        "ticket_classification",
	Description: "Support ticket classification",
	Schema:      json.RawMessage(`{"type":"object","properties":{"category":{"type":"string"}},"required":["category"]}`),
}

// newCompletionServer records the decoded chat completion request body.
func newCompletionServer(t *testing.T, body string, captured *map[string]any) string {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	return server.URL + "/v1"
}

func generateRequest() provider.GenerateRequest {
	return provider.GenerateRequest{
		System:         "Classify the ticket.",
		Messages:       []types.Message{types.NewUserMessage("My knee MRI claim was denied")},
		Temperature:    0,
		ResponseSchema: ticketSchema,
	}
}

func TestProvider_Generate_StructuredRequest(t *testing.T) {
	var captured map[string]any

	baseURL := newCompletionServer(t, completionBody, &captured)

	model := NewWithConfig(Config{APIKey: "sk-test", Model: "gpt-4o-mini", BaseURL: baseURL})
	model.SetRequestSettings(RequestSettings{Model: "gpt-4o-mini", MaxTokens: 256})

	response, err := model.Generate(context.Background(), generateRequest())
	require.NoError(t, err)

	assert.Equal(t, `{"category":"claim_denial"}`, response.Content)
	assert.Equal(t, types.FinishReasonStop, response.FinishReason)
	assert.Equal(t, 42, response.Usage.PromptTokens)
	assert.Equal(t, 9, response.Usage.CompletionTokens)
	assert.Equal(t, 51, response.Usage.TotalTokens)

	assert.Equal(t, "gpt-4o-mini", captured["model"])
	assert.EqualValues(t, 256, captured["max_tokens"])

	temperature, ok := captured["temperature"].(float64)
	require.True(t, ok, "temperature must be sent explicitly")
	assert.Greater(t, temperature, 0.0)
	assert.Less(t, temperature, 1e-30)

	messages, ok := captured["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "Classify the ticket.", messages[0].(map[string]any)["content"])
	assert.Equal(t, "user", messages[1].(map[string]any)["role"])

	format, ok := captured["response_format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "json_schema", format["type"])

	jsonSchema, ok := format["json_schema"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ticket_classification", jsonSchema["name"])
	assert.Equal(t, true, jsonSchema["strict"])
	assert.Equal(t, []any{"category"}, jsonSchema["schema"].(map[string]any)["required"])
}

func TestProvider_Generate_JSONObjectMode(t *testing.T) {
	var captured map[string]any

	baseURL := newCompletionServer(t, completionBody, &captured)

	model := NewWithConfig(Config{APIKey: "sk-test", Model: "llama-3.3-70b-versatile", BaseURL: baseURL})
	model.SetRequestSettings(RequestSettings{Model: "llama-3.3-70b-versatile", JSONObjectMode: true})

	_, err := model.Generate(context.Background(), generateRequest())
	require.NoError(t, err)

	format, ok := captured["response_format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "json_object", format["type"])
	assert.NotContains(t, format, "json_schema")
}

func TestProvider_Generate_EmptyResponses(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected error
	}{
		{
			name:     "no choices",
			body:     `{"id": "x", "object": "chat.completion", "model": "gpt-4o-mini", "choices": []}`,
			expected: types.ErrEmptyResponse,
		},
		{
			name:     "blank structured content",
			body:     `{"id": "x", "object": "chat.completion", "model": "gpt-4o-mini", "choices": [{"index": 0, "message": {"role": "assistant", "content": "  "}, "finish_reason": "stop"}]}`,
			expected: types.ErrStructuredOutputMissing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured map[string]any

			model := NewWithConfig(Config{APIKey: "sk-test", Model: "gpt-4o-mini", BaseURL: newCompletionServer(t, tt.body, &captured)})

			_, err := model.Generate(context.Background(), generateRequest())
			require.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestEmbedder_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)

		var request map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&request))
		assert.Equal(t, "text-embedding-3-small", request["model"])
		assert.Equal(t, []any{"first", "second"}, request["input"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"object": "list",
			"model": "text-embedding-3-small",
			"data": [
				{"object": "embedding", "index": 1, "embedding": [0.5, 0.25]},
				{"object": "embedding", "index": 0, "embedding": [1, 0]}
			],
			"usage": {"prompt_tokens": 2, "total_tokens": 2}
		}`))
	}))
	t.Cleanup(server.Close)

	embedder := NewEmbedder(EmbedderConfig{APIKey: "sk-test", BaseURL: server.URL + "/v1"})

	vectors, err := embedder.Embed(context.Background(), []string{"first", "second"})
	require.NoError(t, err)

	assert.Equal(t, [][]float32{{1, 0}, {0.5, 0.25}}, vectors)
}

func TestTemperature(t *testing.T) {
	assert.Equal(t, float32(math.SmallestNonzeroFloat32), temperature(0))
	assert.Equal(t, float32(math.SmallestNonzeroFloat32), temperature(-1))
	assert.Equal(t, float32(0.7), temperature(0.7))
}
