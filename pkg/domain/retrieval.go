package domain

import (
	"context"
	"strings"
)

// VectorCollection is a named nearest-neighbor text store. Creating, deleting
// and resetting collections happens outside the triage core.
type VectorCollection interface {
	Name() string
	Add(ctx context.Context, documents []string, metadatas []map[string]any, ids []string) error
	Query(ctx context.Context, queryTexts []string, nResults int) (QueryResult, error)
}

// HealthChecker is implemented by vector backends that can report reachability.
type HealthChecker interface {
	Heartbeat(ctx context.Context) error
}

// QueryResult mirrors the vector store response: one ranked document list per query text.
type QueryResult struct {
	Documents [][]string `json:"documents"`
}

// Flatten returns every document in result order.
func (r QueryResult) Flatten() []string {
	var documents []string

	for _, group := range r.Documents {
		documents = append(documents, group...)
	}

	return documents
}

type RetrievalContext struct {
	InteractionSnippets []string `json:"interaction_snippets"`
	PolicySnippets      []string `json:"policy_snippets"`
}

// Combined joins the snippets of each collection with a single space and then
// joins the two collections with a space. An empty collection contributes nothing.
func (r RetrievalContext) Combined() string {
	interaction := strings.Join(r.InteractionSnippets, " ")
	policy := strings.Join(r.PolicySnippets, " ")

	return strings.TrimSpace(interaction + " " + policy)
}

func (r RetrievalContext) IsEmpty() bool {
	return r.Combined() == ""
}
