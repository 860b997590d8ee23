// Package triage runs tickets through retrieval, classification, costing and
// routing, one batch at a time.
package triage

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/flowbaker/triage/pkg/ai-sdk/types"
	"github.com/flowbaker/triage/pkg/domain"
	"github.com/flowbaker/triage/pkg/retrieval"
	"github.com/flowbaker/triage/pkg/routing"
	"github.com/flowbaker/triage/pkg/textnorm"
	"github.com/google/uuid"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMaxConcurrency = 1

	progressEvery = 10
)

type ContextRetriever interface {
	Retrieve(ctx context.Context, queryText string, nResults int) domain.RetrievalContext
}

type TicketClassifier interface {
	Classify(ctx context.Context, promptText string) (domain.Classification, types.Usage, error)
}

type CostAggregator interface {
	Aggregate(promptText string, classification domain.Classification, pricing domain.Pricing, modelID string) (domain.CostBreakdown, error)
}

type Service struct {
	retriever       ContextRetriever
	classifier      TicketClassifier
	aggregator      CostAggregator
	interactions    domain.VectorCollection
	ledger          domain.CostLedger
	dispatcher      domain.RouteDispatcher
	pricing         domain.Pricing
	tokenCountModel string
	nResults        int
	maxConcurrency  int
	newID           func() string
}

type ServiceDependencies struct {
	Retriever  ContextRetriever
	Classifier TicketClassifier
	Aggregator CostAggregator
	// Interactions receives the normalized text of every classified ticket.
	Interactions domain.VectorCollection
	Ledger       domain.CostLedger
	Dispatcher   domain.RouteDispatcher

	Pricing         domain.Pricing
	TokenCountModel string
	NResults        int
	MaxConcurrency  int

	// NewID overrides correlation id generation.
	NewID func() string
}

func NewService(deps ServiceDependencies) *Service {
	maxConcurrency := deps.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}

	newID := deps.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	return &Service{
		retriever:       deps.Retriever,
		classifier:      deps.Classifier,
		aggregator:      deps.Aggregator,
		interactions:    deps.Interactions,
		ledger:          deps.Ledger,
		dispatcher:      deps.Dispatcher,
		pricing:         deps.Pricing,
		tokenCountModel: deps.TokenCountModel,
		nResults:        deps.NResults,
		maxConcurrency:  maxConcurrency,
		newID:           newID,
	}
}

// TicketResult is the outcome of a successfully classified ticket.
type TicketResult struct {
	CorrelationID      string                 `json:"correlation_id"`
	Classification     domain.Classification  `json:"classification"`
	ClassificationJSON string                 `json:"classification_json"`
	Routing            domain.RoutingDecision `json:"routing"`
	RoutingDisplay     string                 `json:"routing_display"`
	Cost               domain.CostBreakdown   `json:"cost"`
	Usage              types.Usage            `json:"usage"`
}

func (r TicketResult) batchResult() domain.BatchResult {
	classification := r.Classification
	decision := r.Routing
	cost := r.Cost

	return domain.BatchResult{
		ClassificationJSON: r.ClassificationJSON,
		RoutingDisplay:     r.RoutingDisplay,
		Cost:               r.Cost.TotalCost,
		CorrelationID:      r.CorrelationID,
		Classification:     &classification,
		Routing:            &decision,
		CostBreakdown:      &cost,
	}
}

// ClassifyTicket classifies a single ticket. Nothing is persisted. Failures
// are returned as *domain.TicketError.
func (s *Service) ClassifyTicket(ctx context.Context, ticket domain.Ticket) (TicketResult, error) {
	correlationID := s.newID()

	result, err := s.safeProcessTicket(ctx, correlationID, ticket)
	if err != nil {
		return TicketResult{}, domain.NewTicketError(correlationID, ticket, err)
	}

	return result, nil
}

// safeProcessTicket turns a panic raised while processing the ticket into an
// internal error.
func (s *Service) safeProcessTicket(ctx context.Context, correlationID string, ticket domain.Ticket) (result TicketResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("correlation_id", correlationID).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("Recovered from panic while processing ticket")

			result, err = TicketResult{}, fmt.Errorf("panic while processing ticket: %v", r)
		}
	}()

	return s.processTicket(ctx, correlationID, ticket)
}

func (s *Service) processTicket(ctx context.Context, correlationID string, ticket domain.Ticket) (TicketResult, error) {
	if err := retrieval.ValidateTicketText(ticket.MessageContent); err != nil {
		return TicketResult{}, err
	}

	logger := log.With().
		Str("correlation_id", correlationID).
		Str("channel", ticket.ChannelOrDefault()).
		Logger()

	retrieved := s.retriever.Retrieve(ctx, ticket.MessageContent, s.nResults)

	promptText, err := retrieval.Compose(ticket.MessageContent, retrieved.Combined())
	if err != nil {
		return TicketResult{}, err
	}

	classification, usage, err := s.classifier.Classify(ctx, promptText)
	if err != nil {
		return TicketResult{}, err
	}

	classificationJSON, err := classification.JSON()
	if err != nil {
		return TicketResult{}, err
	}

	cost, err := s.aggregator.Aggregate(promptText, classification, s.pricing, s.tokenCountModel)
	if err != nil {
		return TicketResult{}, err
	}

	decision := routing.Route(classification)

	logger.Debug().
		Str("category", string(classification.Category)).
		Str("urgency", string(classification.Urgency)).
		Str("team", decision.AssignedTeam).
		Float64("cost", cost.TotalCost).
		Msg("Ticket classified")

	return TicketResult{
		CorrelationID:      correlationID,
		Classification:     classification,
		ClassificationJSON: classificationJSON,
		Routing:            decision,
		RoutingDisplay:     routing.Display(decision),
		Cost:               cost,
		Usage:              usage,
	}, nil
}

// ProcessBatch returns one result per ticket in input order. A failing ticket
// yields a placeholder result and never aborts the rest of the batch.
func (s *Service) ProcessBatch(ctx context.Context, tickets []domain.Ticket) []domain.BatchResult {
	if len(tickets) == 0 {
		log.Warn().Msg("Empty batch provided")
		return []domain.BatchResult{}
	}

	batchID := xid.New().String()
	startedAt := time.Now()

	logger := log.With().Str("batch_id", batchID).Logger()
	logger.Info().Int("tickets", len(tickets)).Int("concurrency", s.maxConcurrency).Msg("Processing batch")

	results := make([]domain.BatchResult, len(tickets))
	routed := make([]*domain.RoutedTicket, len(tickets))

	var processed atomic.Int64

	g := errgroup.Group{}
	g.SetLimit(s.maxConcurrency)

	for i, ticket := range tickets {
		g.Go(func() error {
			correlationID := s.newID()

			result, err := s.safeProcessTicket(ctx, correlationID, ticket)
			if err != nil {
				ticketErr := domain.NewTicketError(correlationID, ticket, err)

				logger.Error().
					Err(err).
					Int("index", i).
					Str("correlation_id", correlationID).
					Str("kind", string(ticketErr.Kind)).
					Msg("Error processing ticket")

				results[i] = domain.NewPlaceholderResult(s.newID(), ticketErr)
			} else {
				results[i] = result.batchResult()
				routed[i] = &domain.RoutedTicket{
					CorrelationID:  result.CorrelationID,
					BatchID:        batchID,
					Channel:        ticket.ChannelOrDefault(),
					Classification: result.Classification,
					Routing:        result.Routing,
					Cost:           result.Cost,
				}
			}

			if done := processed.Add(1); done%progressEvery == 0 {
				logger.Info().Msgf("Processed %d/%d tickets", done, len(tickets))
			}

			return nil
		})
	}

	// per-ticket failures become placeholders, Wait never reports an error
	_ = g.Wait()

	succeeded := make([]domain.RoutedTicket, 0, len(tickets))
	documents := make([]string, 0, len(tickets))
	metadatas := make([]map[string]any, 0, len(tickets))
	ids := make([]string, 0, len(tickets))

	for i, ticket := range routed {
		if ticket == nil {
			continue
		}

		succeeded = append(succeeded, *ticket)
		documents = append(documents, textnorm.Normalize(tickets[i].MessageContent))
		metadatas = append(metadatas, map[string]any{"channel": ticket.Channel})
		ids = append(ids, ticket.CorrelationID)
	}

	s.persist(ctx, logger, documents, metadatas, ids)
	s.record(ctx, logger, batchID, succeeded)
	s.dispatch(ctx, logger, succeeded)

	logger.Info().
		Int("succeeded", len(succeeded)).
		Int("failed", len(tickets)-len(succeeded)).
		Dur("elapsed", time.Since(startedAt)).
		Msg("Batch processed")

	return results
}

func (s *Service) persist(ctx context.Context, logger zerolog.Logger, documents []string, metadatas []map[string]any, ids []string) {
	if s.interactions == nil || len(documents) == 0 {
		return
	}

	if err := s.interactions.Add(ctx, documents, metadatas, ids); err != nil {
		logger.Error().
			Err(fmt.Errorf("%w: %w", domain.ErrPersistenceFailure, err)).
			Str("collection", s.interactions.Name()).
			Msg("Error adding documents to the interaction store")
		return
	}

	logger.Info().Int("documents", len(documents)).Str("collection", s.interactions.Name()).Msg("Stored classified tickets")
}

func (s *Service) record(ctx context.Context, logger zerolog.Logger, batchID string, tickets []domain.RoutedTicket) {
	if s.ledger == nil || len(tickets) == 0 {
		return
	}

	if err := s.ledger.Record(ctx, batchID, tickets); err != nil {
		logger.Warn().Err(err).Msg("Failed to record batch cost")
	}
}

func (s *Service) dispatch(ctx context.Context, logger zerolog.Logger, tickets []domain.RoutedTicket) {
	if s.dispatcher == nil || len(tickets) == 0 {
		return
	}

	if err := s.dispatcher.Dispatch(ctx, tickets); err != nil {
		logger.Warn().Err(err).Msg("Failed to dispatch routed tickets")
	}
}
