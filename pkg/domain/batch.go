package domain

const (
	PlaceholderClassificationJSON = "{}"
	PlaceholderRoutingDisplay     = "Error processing"
)

// BatchResult is positionally aligned with the input batch. Failed tickets
// carry the placeholder values and a non-nil Err.
type BatchResult struct {
	ClassificationJSON string  `json:"classification_json"`
	RoutingDisplay     string  `json:"routing_display"`
	Cost               float64 `json:"cost"`
	CorrelationID      string  `json:"correlation_id"`

	Classification *Classification  `json:"classification,omitempty"`
	Routing        *RoutingDecision `json:"routing,omitempty"`
	CostBreakdown  *CostBreakdown   `json:"cost_breakdown,omitempty"`
	Err            error            `json:"-"`
}

func (r BatchResult) Failed() bool {
	return r.Err != nil
}

func NewPlaceholderResult(correlationID string, err error) BatchResult {
	return BatchResult{
		ClassificationJSON: PlaceholderClassificationJSON,
		RoutingDisplay:     PlaceholderRoutingDisplay,
		Cost:               0,
		CorrelationID:      correlationID,
		Err:                err,
	}
}
