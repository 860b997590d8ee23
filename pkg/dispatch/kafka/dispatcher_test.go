package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/flowbaker/triage/pkg/domain"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.messages = append(w.messages, msgs...)
	return w.err
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestDispatcher_Topic(t *testing.T) {
	dispatcher := &Dispatcher{topicPrefix: DefaultTopicPrefix}

	assert.Equal(t, "triage.routed.claims-department", dispatcher.Topic("Claims Department"))
	assert.Equal(t, "triage.routed.immediate-attention-desk", dispatcher.Topic("Immediate Attention Desk"))
	assert.Equal(t, "triage.routed.customer-service", dispatcher.Topic(""))
}

func TestDispatcher_Dispatch(t *testing.T) {
	writer := &fakeWriter{}
	dispatcher := &Dispatcher{writer: writer, topicPrefix: "tickets"}

	err := dispatcher.Dispatch(context.Background(), []domain.RoutedTicket{
		{
			CorrelationID:  "c-1",
			BatchID:        "b-1",
			Channel:        "email",
			Classification: domain.Classification{Category: domain.TicketCategory_ClaimDenial},
			Routing:        domain.RoutingDecision{AssignedTeam: "Claims Department", UrgencyLevel: "Escalation Team"},
		},
		{
			CorrelationID: "c-2",
			BatchID:       "b-1",
			Routing:       domain.RoutingDecision{AssignedTeam: "Billing Team", UrgencyLevel: "Standard Queue"},
		},
	})
	require.NoError(t, err)

	require.Len(t, writer.messages, 2)

	first := writer.messages[0]
	assert.Equal(t, "tickets.claims-department", first.Topic)
	assert.Equal(t, []byte("c-1"), first.Key)
	assert.Contains(t, first.Headers, kafka.Header{Key: "urgency_level", Value: []byte("Escalation Team")})

	var decoded domain.RoutedTicket
	require.NoError(t, json.Unmarshal(first.Value, &decoded))
	assert.Equal(t, domain.TicketCategory_ClaimDenial, decoded.Classification.Category)

	assert.Equal(t, "tickets.billing-team", writer.messages[1].Topic)

	require.NoError(t, dispatcher.Close())
	assert.True(t, writer.closed)
}

func TestDispatcher_DispatchError(t *testing.T) {
	dispatcher := &Dispatcher{writer: &fakeWriter{err: errors.New("broker down")}, topicPrefix: "tickets"}

	err := dispatcher.Dispatch(context.Background(), []domain.RoutedTicket{{CorrelationID: "c-1"}})

	assert.ErrorContains(t, err, "broker down")
}

func TestDispatcher_DispatchEmpty(t *testing.T) {
	writer := &fakeWriter{}
	dispatcher := &Dispatcher{writer: writer, topicPrefix: "tickets"}

	require.NoError(t, dispatcher.Dispatch(context.Background(), nil))
	assert.Empty(t, writer.messages)
}
