package classifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/flowbaker/triage/pkg/ai-sdk/provider"
	"github.com/flowbaker/triage/pkg/ai-sdk/types"
	"github.com/flowbaker/triage/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validPayload = `{
	"category": "claim_denial",
	"urgency": "high",
	"sentiment": "frustrated",
	"confidence": 0.92,
	"key_information": ["knee MRI", "denied as not medically necessary"],
	"suggested_action": "Review the denial and start an appeal"
}`

type scriptedStep struct {
	content string
	err     error
}

type scriptedModel struct {
	mu       sync.Mutex
	steps    []scriptedStep
	requests []provider.GenerateRequest
}

func (m *scriptedModel) ID() string { return "fake:model" }

func (m *scriptedModel) Generate(ctx context.Context, req provider.GenerateRequest) (*types.GenerateResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)

	step := m.steps[0]
	if len(m.steps) > 1 {
		m.steps = m.steps[1:]
	}

	if step.err != nil {
		return nil, step.err
	}

	return &types.GenerateResponse{
		Content: step.content,
		Usage:   types.Usage{PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120},
	}, nil
}

func (m *scriptedModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.requests)
}

type recordingSleep struct {
	delays []time.Duration
}

func (s *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func newTestClassifier(t *testing.T, model provider.LanguageModel, sleeper *recordingSleep) *Classifier {
	t.Helper()

	classifier, err := NewClassifier(ClassifierDependencies{
		Model: model,
		Sleep: sleeper.sleep,
	})
	require.NoError(t, err)

	return classifier
}

func TestClassifier_Classify(t *testing.T) {
	t.Run("first attempt succeeds", func(t *testing.T) {
		model := &scriptedModel{steps: []scriptedStep{{content: validPayload}}}
		sleeper := &recordingSleep{}

		classification, usage, err := newTestClassifier(t, model, sleeper).Classify(context.Background(), "My knee MRI claim was denied")
		require.NoError(t, err)

		assert.Equal(t, domain.TicketCategory_ClaimDenial, classification.Category)
		assert.Equal(t, domain.TicketUrgency_High, classification.Urgency)
		assert.Equal(t, domain.CustomerSentiment_Frustrated, classification.Sentiment)
		assert.InDelta(t, 0.92, classification.Confidence, 1e-9)
		assert.Equal(t, 1, model.calls())
		assert.Empty(t, sleeper.delays)
		assert.Equal(t, 120, usage.TotalTokens)

		request := model.requests[0]
		assert.Equal(t, SystemPrompt, request.System)
		assert.Zero(t, request.Temperature)
		require.NotNil(t, request.ResponseSchema)
		assert.Equal(t, SchemaName, request.ResponseSchema.Name)
		require.Len(t, request.Messages, 1)
		assert.Equal(t, "My knee MRI claim was denied", request.Messages[0].Content)
	})

	t.Run("fails twice then succeeds", func(t *testing.T) {
		model := &scriptedModel{steps: []scriptedStep{
			{err: errors.New("503 service unavailable")},
			{err: errors.New("connection reset")},
			{content: validPayload},
		}}
		sleeper := &recordingSleep{}

		classification, usage, err := newTestClassifier(t, model, sleeper).Classify(context.Background(), "ticket")
		require.NoError(t, err)

		assert.Equal(t, domain.TicketCategory_ClaimDenial, classification.Category)
		assert.Equal(t, 3, model.calls())
		assert.Equal(t, []time.Duration{4 * time.Second, 8 * time.Second}, sleeper.delays)
		assert.Equal(t, 120, usage.TotalTokens)
	})

	t.Run("always failing gives up after three attempts", func(t *testing.T) {
		cause := errors.New("rate limited")
		model := &scriptedModel{steps: []scriptedStep{{err: cause}}}
		sleeper := &recordingSleep{}

		_, _, err := newTestClassifier(t, model, sleeper).Classify(context.Background(), "ticket")

		require.Error(t, err)
		assert.Equal(t, 3, model.calls())
		assert.ErrorIs(t, err, domain.ErrModelExhausted)
		assert.ErrorIs(t, err, domain.ErrTransientModel)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("schema violations are retried", func(t *testing.T) {
		model := &scriptedModel{steps: []scriptedStep{
			{content: `not json`},
			{content: `{"category": "refund_request", "urgency": "low", "sentiment": "neutral", "confidence": 0.5, "key_information": [], "suggested_action": "x"}`},
			{content: validPayload},
		}}
		sleeper := &recordingSleep{}

		classification, usage, err := newTestClassifier(t, model, sleeper).Classify(context.Background(), "ticket")
		require.NoError(t, err)

		assert.Equal(t, domain.TicketUrgency_High, classification.Urgency)
		assert.Equal(t, 3, model.calls())
		assert.Equal(t, 360, usage.TotalTokens)
	})

	t.Run("persistent schema violation is reported", func(t *testing.T) {
		model := &scriptedModel{steps: []scriptedStep{{content: `{"category": "claim_denial"}`}}}

		_, _, err := newTestClassifier(t, model, &recordingSleep{}).Classify(context.Background(), "ticket")

		assert.ErrorIs(t, err, domain.ErrModelExhausted)
		assert.ErrorIs(t, err, domain.ErrSchemaViolation)
		assert.Equal(t, 3, model.calls())
	})

	t.Run("blank prompt is not retried", func(t *testing.T) {
		model := &scriptedModel{steps: []scriptedStep{{content: validPayload}}}

		_, _, err := newTestClassifier(t, model, &recordingSleep{}).Classify(context.Background(), "  \n")

		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.Equal(t, 0, model.calls())
	})

	t.Run("cancelled context stops retrying", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		model := &scriptedModel{steps: []scriptedStep{{err: context.Canceled}}}

		_, _, err := newTestClassifier(t, model, &recordingSleep{}).Classify(ctx, "ticket")

		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, model.calls())
	})
}

func TestNewClassifier_RequiresModel(t *testing.T) {
	_, err := NewClassifier(ClassifierDependencies{})

	assert.ErrorIs(t, err, types.ErrProviderNotSet)
}

func TestRetryPolicy_Delay(t *testing.T) {
	policy := DefaultRetryPolicy()

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{attempt: 1, expected: 0},
		{attempt: 2, expected: 4 * time.Second},
		{attempt: 3, expected: 8 * time.Second},
		{attempt: 4, expected: 10 * time.Second},
		{attempt: 10, expected: 10 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, policy.Delay(tt.attempt), "attempt %d", tt.attempt)
	}
}
