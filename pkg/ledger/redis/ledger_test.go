package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/flowbaker/triage/pkg/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T) (*Ledger, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})

	ledger, err := New(LedgerDeps{Context: context.Background(), Client: client}, Opts{KeyPrefix: "test"})
	require.NoError(t, err)

	ledger.now = func() time.Time {
		return time.Date(2025, 3, 14, 23, 30, 0, 0, time.UTC)
	}

	return ledger, server
}

func routedTicket(category domain.TicketCategory, team string, cost float64, inputTokens, outputTokens int) domain.RoutedTicket {
	return domain.RoutedTicket{
		CorrelationID:  "id",
		Channel:        "email",
		Classification: domain.Classification{Category: category},
		Routing:        domain.RoutingDecision{AssignedTeam: team},
		Cost: domain.CostBreakdown{
			SystemPromptTokens: 10,
			InputTokens:        inputTokens,
			OutputTokens:       outputTokens,
			TotalCost:          cost,
		},
	}
}

func TestLedger_RecordAndSummary(t *testing.T) {
	ledger, server := newTestLedger(t)
	ctx := context.Background()

	err := ledger.Record(ctx, "batch-1", []domain.RoutedTicket{
		routedTicket(domain.TicketCategory_ClaimDenial, "Claims Department", 0.25, 100, 20),
		routedTicket(domain.TicketCategory_ClaimDenial, "Claims Department", 0.5, 200, 30),
	})
	require.NoError(t, err)

	err = ledger.Record(ctx, "batch-2", []domain.RoutedTicket{
		routedTicket(domain.TicketCategory_BillingIssue, "Billing Team", 0.125, 50, 10),
	})
	require.NoError(t, err)

	summary, err := ledger.DailySummary(ctx, time.Date(2025, 3, 14, 1, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, "2025-03-14", summary.Day)
	assert.Equal(t, int64(3), summary.Tickets)
	assert.Equal(t, int64(350+3*10), summary.InputTokens)
	assert.Equal(t, int64(60), summary.OutputTokens)
	assert.InDelta(t, 0.875, summary.TotalCost, 1e-9)
	assert.Equal(t, map[string]int64{"claim_denial": 2, "billing_issue": 1}, summary.Categories)
	assert.Equal(t, map[string]int64{"claims-department": 2, "billing-team": 1}, summary.Teams)

	assert.True(t, server.Exists("test:batches:batch-1"))
	assert.Equal(t, "2", server.HGet("test:batches:batch-1", "tickets"))
	assert.Positive(t, server.TTL("test:costs:2025-03-14"))
}

func TestLedger_RecordEmptyBatch(t *testing.T) {
	ledger, server := newTestLedger(t)

	require.NoError(t, ledger.Record(context.Background(), "batch-1", nil))

	assert.Empty(t, server.Keys())
}

func TestLedger_SummaryForEmptyDay(t *testing.T) {
	ledger, _ := newTestLedger(t)

	summary, err := ledger.DailySummary(context.Background(), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Zero(t, summary.Tickets)
	assert.Zero(t, summary.TotalCost)
	assert.Empty(t, summary.Categories)
}
