// Package mongo archives every routed ticket in a MongoDB collection.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flowbaker/triage/pkg/domain"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	DefaultDatabaseName   = "triage"
	DefaultCollectionName = "routed_tickets"

	indexTimeout = 30 * time.Second
)

type Archive struct {
	client     *mongo.Client
	collection *mongo.Collection
	now        func() time.Time
}

type Opts struct {
	URI            string
	DatabaseName   string
	CollectionName string
}

type ArchiveDeps struct {
	Context context.Context
}

type ticketDocument struct {
	CorrelationID   string    `bson:"correlation_id"`
	BatchID         string    `bson:"batch_id,omitempty"`
	Channel         string    `bson:"channel"`
	Category        string    `bson:"category"`
	Urgency         string    `bson:"urgency"`
	Sentiment       string    `bson:"sentiment"`
	Confidence      float64   `bson:"confidence"`
	KeyInformation  []string  `bson:"key_information"`
	SuggestedAction string    `bson:"suggested_action"`
	AssignedTeam    string    `bson:"assigned_team"`
	UrgencyLevel    string    `bson:"urgency_level"`
	SystemTokens    int       `bson:"system_prompt_tokens"`
	InputTokens     int       `bson:"input_tokens"`
	OutputTokens    int       `bson:"output_tokens"`
	TotalCost       float64   `bson:"total_cost"`
	CreatedAt       time.Time `bson:"created_at"`
}

func New(deps ArchiveDeps, opts Opts) (*Archive, error) {
	client, err := mongo.Connect(deps.Context, options.Client().ApplyURI(opts.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(deps.Context, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	databaseName := opts.DatabaseName
	if databaseName == "" {
		databaseName = DefaultDatabaseName
	}

	collectionName := opts.CollectionName
	if collectionName == "" {
		collectionName = DefaultCollectionName
	}

	archive := &Archive{
		client:     client,
		collection: client.Database(databaseName).Collection(collectionName),
		now:        time.Now,
	}

	archive.ensureIndexes()

	return archive, nil
}

func (a *Archive) ensureIndexes() {
	ctx, cancel := context.WithTimeout(context.Background(), indexTimeout)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "correlation_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "batch_id", Value: 1}},
		},
		{
			Keys: bson.D{
				{Key: "assigned_team", Value: 1},
				{Key: "created_at", Value: -1},
			},
		},
	}

	if _, err := a.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		log.Warn().Err(err).Str("collection", a.collection.Name()).Msg("Failed to create archive indexes")
	}
}

func toDocument(ticket domain.RoutedTicket, createdAt time.Time) ticketDocument {
	keyInformation := ticket.Classification.KeyInformation
	if keyInformation == nil {
		keyInformation = []string{}
	}

	return ticketDocument{
		CorrelationID:   ticket.CorrelationID,
		BatchID:         ticket.BatchID,
		Channel:         ticket.Channel,
		Category:        string(ticket.Classification.Category),
		Urgency:         string(ticket.Classification.Urgency),
		Sentiment:       string(ticket.Classification.Sentiment),
		Confidence:      ticket.Classification.Confidence,
		KeyInformation:  keyInformation,
		SuggestedAction: ticket.Classification.SuggestedAction,
		AssignedTeam:    ticket.Routing.AssignedTeam,
		UrgencyLevel:    ticket.Routing.UrgencyLevel,
		SystemTokens:    ticket.Cost.SystemPromptTokens,
		InputTokens:     ticket.Cost.InputTokens,
		OutputTokens:    ticket.Cost.OutputTokens,
		TotalCost:       ticket.Cost.TotalCost,
		CreatedAt:       createdAt.UTC(),
	}
}

// Dispatch inserts the tickets. Tickets already archived under the same
// correlation id are skipped.
func (a *Archive) Dispatch(ctx context.Context, tickets []domain.RoutedTicket) error {
	if len(tickets) == 0 {
		return nil
	}

	createdAt := a.now()

	documents := make([]any, len(tickets))
	for i, ticket := range tickets {
		documents[i] = toDocument(ticket, createdAt)
	}

	_, err := a.collection.InsertMany(ctx, documents, options.InsertMany().SetOrdered(false))
	if err != nil && !onlyDuplicates(err) {
		return fmt.Errorf("failed to archive tickets: %w", err)
	}

	return nil
}

func onlyDuplicates(err error) bool {
	var bulkErr mongo.BulkWriteException
	if !errors.As(err, &bulkErr) || bulkErr.WriteConcernError != nil {
		return false
	}

	for _, writeErr := range bulkErr.WriteErrors {
		if !mongo.IsDuplicateKeyError(writeErr) {
			return false
		}
	}

	return true
}

func (a *Archive) Heartbeat(ctx context.Context) error {
	return a.client.Ping(ctx, nil)
}

func (a *Archive) Close(ctx context.Context) error {
	return a.client.Disconnect(ctx)
}
