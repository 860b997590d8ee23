package domain

const (
	DefaultTeam  = "Customer Service"
	DefaultQueue = "Standard Queue"
)

type RoutingDecision struct {
	AssignedTeam string `json:"assigned_team"`
	UrgencyLevel string `json:"urgency_level"`
}

// RoutedTicket is what downstream sinks receive once a ticket is classified.
type RoutedTicket struct {
	CorrelationID  string          `json:"correlation_id"`
	BatchID        string          `json:"batch_id,omitempty"`
	Channel        string          `json:"channel"`
	Classification Classification  `json:"classification"`
	Routing        RoutingDecision `json:"routing"`
	Cost           CostBreakdown   `json:"cost"`
}
