// Package classifier asks a language model for a schema-conforming ticket
// classification and retries bounded times on failure.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flowbaker/triage/pkg/ai-sdk/provider"
	"github.com/flowbaker/triage/pkg/ai-sdk/types"
	"github.com/flowbaker/triage/pkg/domain"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const SystemPromptVersion = "2025-01-health-insurance-v1"

// SystemPrompt is sent with every classification request. Changing it changes
// token costs, so bump SystemPromptVersion with it.
const SystemPrompt = `
You are an assistant for a large health insurance customer support team.
You read incoming customer support requests and return structured information so the team can respond quickly and accurately.
Business context:
- The team handles thousands of requests a day about claims, accounts, products, technical problems and billing.
- Fast, accurate classification drives customer satisfaction and operational efficiency.
- Work is prioritized by urgency and customer sentiment.
For every request:
1. Pick the most appropriate category.
2. Rate the urgency (low, medium, high, critical).
3. Identify the customer's sentiment.
4. Extract the key information the support team needs.
5. Suggest a first action for handling the ticket.
6. Give a confidence score for the classification.
Guidelines:
- Stay objective and rely only on what the ticket says.
- Express any uncertainty through the confidence score.
- For 'key_information', pull out concrete details such as policy numbers, product names, the current issue, or a summary of earlier customer interactions.
- Keep 'suggested_action' short and actionable for a support agent.
The request may include the customer's interaction history and policy excerpts as additional context; use them when they help.
`

type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   4 * time.Second,
		MaxDelay:    10 * time.Second,
	}
}

// Delay returns the wait before the given 1-based attempt: nothing before the
// first, then BaseDelay doubling per attempt, capped at MaxDelay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	delay := p.BaseDelay * time.Duration(1<<uint(attempt-2))
	if delay > p.MaxDelay || delay <= 0 {
		delay = p.MaxDelay
	}

	return delay
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

type Classifier struct {
	model       provider.LanguageModel
	schema      *Schema
	policy      RetryPolicy
	temperature float32
	maxTokens   int
	limiter     *rate.Limiter
	sleep       SleepFunc
}

type ClassifierDependencies struct {
	Model       provider.LanguageModel
	Policy      RetryPolicy
	Temperature float32
	MaxTokens   int
	// Limiter throttles model calls, nil disables throttling.
	Limiter *rate.Limiter
	Sleep   SleepFunc
}

func NewClassifier(deps ClassifierDependencies) (*Classifier, error) {
	if deps.Model == nil {
		return nil, types.ErrProviderNotSet
	}

	schema, err := ClassificationSchema()
	if err != nil {
		return nil, err
	}

	policy := deps.Policy
	if policy.MaxAttempts <= 0 {
		policy = DefaultRetryPolicy()
	}

	sleep := deps.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	return &Classifier{
		model:       deps.Model,
		schema:      schema,
		policy:      policy,
		temperature: deps.Temperature,
		maxTokens:   deps.MaxTokens,
		limiter:     deps.Limiter,
		sleep:       sleep,
	}, nil
}

func (c *Classifier) ModelID() string {
	return c.model.ID()
}

// Classify returns the first schema-conforming classification for promptText.
// Usage is summed over every attempt.
func (c *Classifier) Classify(ctx context.Context, promptText string) (domain.Classification, types.Usage, error) {
	var usage types.Usage

	if strings.TrimSpace(promptText) == "" {
		return domain.Classification{}, usage, fmt.Errorf("%w: prompt text cannot be empty", domain.ErrInvalidInput)
	}

	var lastErr error

	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := c.policy.Delay(attempt)

			log.Warn().
				Err(lastErr).
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("Retrying classification")

			if err := c.sleep(ctx, delay); err != nil {
				return domain.Classification{}, usage, err
			}
		}

		classification, attemptUsage, err := c.attempt(ctx, promptText)
		usage = usage.Add(attemptUsage)
		if err == nil {
			return classification, usage, nil
		}

		if !isRetryable(ctx, err) {
			return domain.Classification{}, usage, err
		}

		lastErr = err
	}

	return domain.Classification{}, usage, fmt.Errorf("%w after %d attempts: %w", domain.ErrModelExhausted, c.policy.MaxAttempts, lastErr)
}

func (c *Classifier) attempt(ctx context.Context, promptText string) (domain.Classification, types.Usage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return domain.Classification{}, types.Usage{}, err
		}
	}

	response, err := c.model.Generate(ctx, provider.GenerateRequest{
		Messages:    []types.Message{types.NewUserMessage(promptText)},
		System:      SystemPrompt,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		ResponseSchema: &provider.ResponseSchema{
			Name:        SchemaName,
			Description: schemaDescription,
			Schema:      c.schema.Raw(),
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return domain.Classification{}, types.Usage{}, err
		}
		return domain.Classification{}, types.Usage{}, fmt.Errorf("%w: %w", domain.ErrTransientModel, err)
	}

	classification, err := c.schema.Parse(response.Content)
	if err != nil {
		return domain.Classification{}, response.Usage, err
	}

	return classification, response.Usage, nil
}

func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	return !errors.Is(err, domain.ErrInvalidInput)
}
