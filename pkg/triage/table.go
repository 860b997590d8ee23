package triage

import (
	"context"

	"github.com/flowbaker/triage/pkg/domain"
	"github.com/flowbaker/triage/pkg/ingest"
)

// BatchSummary totals a processed batch.
type BatchSummary struct {
	Tickets   int     `json:"tickets"`
	Succeeded int     `json:"succeeded"`
	Failed    int     `json:"failed"`
	TotalCost float64 `json:"total_cost"`
}

func Summarize(results []domain.BatchResult) BatchSummary {
	summary := BatchSummary{Tickets: len(results)}

	for _, result := range results {
		if result.Failed() {
			summary.Failed++
			continue
		}

		summary.Succeeded++
		summary.TotalCost += result.Cost
	}

	return summary
}

// ClassifyTable classifies every row of a ticket table and returns the table
// with the result columns appended.
func (s *Service) ClassifyTable(ctx context.Context, table ingest.Table) (ingest.Table, BatchSummary, error) {
	tickets, err := ingest.Tickets(table)
	if err != nil {
		return ingest.Table{}, BatchSummary{}, err
	}

	results := s.ProcessBatch(ctx, tickets)

	annotated, err := ingest.AppendResults(table, results)
	if err != nil {
		return ingest.Table{}, BatchSummary{}, err
	}

	return annotated, Summarize(results), nil
}
