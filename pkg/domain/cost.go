package domain

// Pricing holds the externally configured per-million-token rates.
// Input and output tokens are priced separately.
type Pricing struct {
	InputPerMillion  float64 `json:"input_per_million"`
	OutputPerMillion float64 `json:"output_per_million"`
}

// CostBreakdown keeps the system prompt apart from InputTokens. Both are billed
// at the input rate and TotalTokens is the sum of all three counts.
type CostBreakdown struct {
	SystemPromptTokens int     `json:"system_prompt_tokens"`
	InputTokens        int     `json:"input_tokens"`
	OutputTokens       int     `json:"output_tokens"`
	TotalTokens        int     `json:"total_tokens"`
	InputCost          float64 `json:"input_cost"`
	OutputCost         float64 `json:"output_cost"`
	TotalCost          float64 `json:"total_cost"`
}

// Add sums two breakdowns, used for batch totals.
func (c CostBreakdown) Add(other CostBreakdown) CostBreakdown {
	return CostBreakdown{
		SystemPromptTokens: c.SystemPromptTokens + other.SystemPromptTokens,
		InputTokens:        c.InputTokens + other.InputTokens,
		OutputTokens:       c.OutputTokens + other.OutputTokens,
		TotalTokens:        c.TotalTokens + other.TotalTokens,
		InputCost:          c.InputCost + other.InputCost,
		OutputCost:         c.OutputCost + other.OutputCost,
		TotalCost:          c.TotalCost + other.TotalCost,
	}
}
