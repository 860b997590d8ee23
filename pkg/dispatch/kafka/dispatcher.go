// Package kafka publishes routed tickets to one topic per assigned team.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/flowbaker/triage/pkg/domain"
	"github.com/flowbaker/triage/pkg/textnorm"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

const DefaultTopicPrefix = "triage.routed"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Dispatcher sends each routed ticket to "<prefix>.<team-slug>", keyed by
// correlation id.
type Dispatcher struct {
	writer      messageWriter
	topicPrefix string
}

func NewDispatcher(brokers []string, topicPrefix string) *Dispatcher {
	if topicPrefix == "" {
		topicPrefix = DefaultTopicPrefix
	}

	return &Dispatcher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		},
		topicPrefix: topicPrefix,
	}
}

func (d *Dispatcher) Topic(team string) string {
	return fmt.Sprintf("%s.%s", d.topicPrefix, textnorm.Key(team, textnorm.Key(domain.DefaultTeam, "")))
}

func (d *Dispatcher) Dispatch(ctx context.Context, tickets []domain.RoutedTicket) error {
	if len(tickets) == 0 {
		return nil
	}

	messages := make([]kafka.Message, 0, len(tickets))

	for _, ticket := range tickets {
		data, err := json.Marshal(ticket)
		if err != nil {
			return fmt.Errorf("failed to marshal routed ticket %s: %w", ticket.CorrelationID, err)
		}

		messages = append(messages, kafka.Message{
			Topic: d.Topic(ticket.Routing.AssignedTeam),
			Key:   []byte(ticket.CorrelationID),
			Value: data,
			Headers: []kafka.Header{
				{Key: "urgency_level", Value: []byte(ticket.Routing.UrgencyLevel)},
				{Key: "batch_id", Value: []byte(ticket.BatchID)},
			},
		})
	}

	if err := d.writer.WriteMessages(ctx, messages...); err != nil {
		return fmt.Errorf("failed to dispatch routed tickets: %w", err)
	}

	log.Debug().Int("tickets", len(messages)).Msg("Dispatched routed tickets")

	return nil
}

func (d *Dispatcher) Close() error {
	return d.writer.Close()
}
