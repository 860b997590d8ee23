// Package costs estimates what a classification cost from token counts.
package costs

import (
	"github.com/flowbaker/triage/pkg/domain"
	"github.com/flowbaker/triage/pkg/tokenizer"
)

// Aggregator prices the system prompt and the composed input at the input rate
// and the serialized classification at the output rate.
type Aggregator struct {
	counter      tokenizer.Counter
	systemPrompt string
}

type AggregatorDependencies struct {
	Counter      tokenizer.Counter
	SystemPrompt string
}

func NewAggregator(deps AggregatorDependencies) *Aggregator {
	return &Aggregator{
		counter:      deps.Counter,
		systemPrompt: deps.SystemPrompt,
	}
}

func (a *Aggregator) Aggregate(promptText string, classification domain.Classification, pricing domain.Pricing, modelID string) (domain.CostBreakdown, error) {
	output, err := classification.JSON()
	if err != nil {
		return domain.CostBreakdown{}, err
	}

	systemTokens := a.counter.CountTokens(a.systemPrompt, modelID)
	inputTokens := a.counter.CountTokens(promptText, modelID)
	outputTokens := a.counter.CountTokens(output, modelID)

	inputCost := tokenizer.TokenCost(systemTokens+inputTokens, pricing.InputPerMillion)
	outputCost := tokenizer.TokenCost(outputTokens, pricing.OutputPerMillion)

	return domain.CostBreakdown{
		SystemPromptTokens: systemTokens,
		InputTokens:        inputTokens,
		OutputTokens:       outputTokens,
		TotalTokens:        systemTokens + inputTokens + outputTokens,
		InputCost:          inputCost,
		OutputCost:         outputCost,
		TotalCost:          inputCost + outputCost,
	}, nil
}
