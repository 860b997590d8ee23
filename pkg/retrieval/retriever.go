package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/flowbaker/triage/pkg/domain"
	"github.com/rs/zerolog/log"
)

const (
	DefaultNResults = 1

	contextMarker = "\n\nAdditional Context:\n"
)

// Retriever fetches the nearest interaction and policy snippets for a ticket.
type Retriever struct {
	interactions domain.VectorCollection
	policies     domain.VectorCollection
	nResults     int
}

type RetrieverDependencies struct {
	Interactions domain.VectorCollection
	Policies     domain.VectorCollection
	NResults     int
}

func NewRetriever(deps RetrieverDependencies) *Retriever {
	nResults := deps.NResults
	if nResults <= 0 {
		nResults = DefaultNResults
	}

	return &Retriever{
		interactions: deps.Interactions,
		policies:     deps.Policies,
		nResults:     nResults,
	}
}

// Retrieve queries both collections. A failing or empty collection contributes
// no snippets; the error is logged and never returned.
func (r *Retriever) Retrieve(ctx context.Context, queryText string, nResults int) domain.RetrievalContext {
	if nResults <= 0 {
		nResults = r.nResults
	}

	return domain.RetrievalContext{
		InteractionSnippets: r.query(ctx, r.interactions, queryText, nResults),
		PolicySnippets:      r.query(ctx, r.policies, queryText, nResults),
	}
}

func (r *Retriever) query(ctx context.Context, collection domain.VectorCollection, queryText string, nResults int) []string {
	if collection == nil {
		return nil
	}

	result, err := collection.Query(ctx, []string{queryText}, nResults)
	if err != nil {
		log.Warn().
			Err(fmt.Errorf("%w: %w", domain.ErrRetrievalFailure, err)).
			Str("collection", collection.Name()).
			Msg("Context retrieval failed, continuing without it")

		return nil
	}

	snippets := result.Flatten()
	if len(snippets) == 0 {
		log.Debug().Str("collection", collection.Name()).Msg("No context found")
	}

	return snippets
}

// ValidateTicketText rejects empty and whitespace-only ticket text.
func ValidateTicketText(ticketText string) error {
	if strings.TrimSpace(ticketText) == "" {
		return fmt.Errorf("%w: ticket text cannot be empty", domain.ErrInvalidInput)
	}

	return nil
}

// Compose merges the ticket text with retrieved context. With no context the
// ticket text is returned unchanged.
func Compose(ticketText string, context string) (string, error) {
	if err := ValidateTicketText(ticketText); err != nil {
		return "", err
	}

	if context == "" {
		return ticketText, nil
	}

	return ticketText + contextMarker + context, nil
}
