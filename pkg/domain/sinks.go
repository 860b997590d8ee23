package domain

import "context"

// CostLedger accumulates spend for classified tickets.
type CostLedger interface {
	Record(ctx context.Context, batchID string, tickets []RoutedTicket) error
}

// RouteDispatcher hands routed tickets to the owning team's queue.
type RouteDispatcher interface {
	Dispatch(ctx context.Context, tickets []RoutedTicket) error
}
