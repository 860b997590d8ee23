package chroma

import (
	"context"
	"fmt"
	"net/http"

	"github.com/flowbaker/triage/pkg/domain"
	"github.com/flowbaker/triage/pkg/vectorstore"
)

// Collection is a handle to a server-side collection resolved by name.
type Collection struct {
	client *Client
	id     string
	name   string
}

func (c *Collection) Name() string {
	return c.name
}

func (c *Collection) ID() string {
	return c.id
}

type addRequest struct {
	IDs        []string         `json:"ids"`
	Embeddings [][]float32      `json:"embeddings"`
	Documents  []string         `json:"documents"`
	Metadatas  []map[string]any `json:"metadatas,omitempty"`
}

func (c *Collection) Add(ctx context.Context, documents []string, metadatas []map[string]any, ids []string) error {
	if err := vectorstore.ValidateAdd(documents, metadatas, ids); err != nil {
		return err
	}

	if len(documents) == 0 {
		return nil
	}

	embeddings, err := c.client.embed(ctx, documents)
	if err != nil {
		return fmt.Errorf("failed to add to collection %s: %w", c.name, err)
	}

	resp, err := c.client.doRequest(ctx, http.MethodPost, c.path("add"), addRequest{
		IDs:        ids,
		Embeddings: embeddings,
		Documents:  documents,
		Metadatas:  metadatas,
	})
	if err != nil {
		return fmt.Errorf("failed to add to collection %s: %w", c.name, err)
	}

	if err := c.client.handleResponse(resp, nil); err != nil {
		return fmt.Errorf("failed to add to collection %s: %w", c.name, err)
	}

	return nil
}

type queryRequest struct {
	QueryEmbeddings [][]float32 `json:"query_embeddings"`
	NResults        int         `json:"n_results"`
	Include         []string    `json:"include"`
}

type queryResponse struct {
	IDs       [][]string  `json:"ids"`
	Documents [][]*string `json:"documents"`
	Distances [][]float64 `json:"distances"`
}

func (c *Collection) Query(ctx context.Context, queryTexts []string, nResults int) (domain.QueryResult, error) {
	embeddings, err := c.client.embed(ctx, queryTexts)
	if err != nil {
		return domain.QueryResult{}, fmt.Errorf("failed to query collection %s: %w", c.name, err)
	}

	request := queryRequest{
		QueryEmbeddings: embeddings,
		NResults:        nResults,
		Include:         []string{"documents", "distances"},
	}

	resp, err := c.client.doRequest(ctx, http.MethodPost, c.path("query"), request)
	if err != nil {
		return domain.QueryResult{}, fmt.Errorf("failed to query collection %s: %w", c.name, err)
	}

	var result queryResponse
	if err := c.client.handleResponse(resp, &result); err != nil {
		return domain.QueryResult{}, fmt.Errorf("failed to query collection %s: %w", c.name, err)
	}

	documents := make([][]string, len(result.Documents))
	for i, group := range result.Documents {
		documents[i] = make([]string, 0, len(group))

		for _, document := range group {
			if document != nil {
				documents[i] = append(documents[i], *document)
			}
		}
	}

	return domain.QueryResult{Documents: documents}, nil
}

func (c *Collection) Heartbeat(ctx context.Context) error {
	return c.client.Heartbeat(ctx)
}

func (c *Collection) path(operation string) string {
	return fmt.Sprintf("%s/%s/%s", c.client.collectionsPath(), c.id, operation)
}
