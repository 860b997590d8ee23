package inmemory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/flowbaker/triage/pkg/domain"
	"github.com/flowbaker/triage/pkg/vectorstore"
)

type document struct {
	id       string
	text     string
	metadata map[string]any
	vector   []float32
	order    int
}

// Collection is an in-process vector collection. With an Embedder it ranks by
// cosine similarity, otherwise by word overlap with the query.
type Collection struct {
	mu        sync.RWMutex
	name      string
	embedder  vectorstore.Embedder
	documents map[string]*document
	next      int
}

func New(name string, embedder vectorstore.Embedder) *Collection {
	return &Collection{
		name:      name,
		embedder:  embedder,
		documents: make(map[string]*document),
	}
}

func (c *Collection) Name() string {
	return c.name
}

func (c *Collection) Add(ctx context.Context, documents []string, metadatas []map[string]any, ids []string) error {
	if err := vectorstore.ValidateAdd(documents, metadatas, ids); err != nil {
		return err
	}

	var vectors [][]float32
	if c.embedder != nil {
		var err error

		vectors, err = c.embedder.Embed(ctx, documents)
		if err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i, text := range documents {
		doc := &document{
			id:    ids[i],
			text:  text,
			order: c.next,
		}

		if metadatas != nil {
			doc.metadata = metadatas[i]
		}

		if vectors != nil {
			doc.vector = vectors[i]
		}

		c.documents[ids[i]] = doc
		c.next++
	}

	return nil
}

type scored struct {
	doc   *document
	score float64
}

func (c *Collection) Query(ctx context.Context, queryTexts []string, nResults int) (domain.QueryResult, error) {
	var queryVectors [][]float32
	if c.embedder != nil {
		var err error

		queryVectors, err = c.embedder.Embed(ctx, queryTexts)
		if err != nil {
			return domain.QueryResult{}, err
		}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	result := domain.QueryResult{Documents: make([][]string, len(queryTexts))}

	for q, queryText := range queryTexts {
		candidates := make([]scored, 0, len(c.documents))

		for _, doc := range c.documents {
			var score float64
			if queryVectors != nil {
				score = vectorstore.CosineSimilarity(queryVectors[q], doc.vector)
			} else {
				score = wordOverlap(queryText, doc.text)
			}

			candidates = append(candidates, scored{doc: doc, score: score})
		}

		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].score != candidates[j].score {
				return candidates[i].score > candidates[j].score
			}
			return candidates[i].doc.order < candidates[j].doc.order
		})

		if nResults > 0 && len(candidates) > nResults {
			candidates = candidates[:nResults]
		}

		texts := make([]string, len(candidates))
		for i, candidate := range candidates {
			texts[i] = candidate.doc.text
		}

		result.Documents[q] = texts
	}

	return result, nil
}

// Len returns the number of stored documents.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.documents)
}

// Metadata returns the stored metadata for id.
func (c *Collection) Metadata(id string) (map[string]any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	doc, ok := c.documents[id]
	if !ok {
		return nil, false
	}

	return doc.metadata, true
}

func (c *Collection) Heartbeat(ctx context.Context) error {
	return nil
}

func wordOverlap(query, text string) float64 {
	queryWords := strings.Fields(strings.ToLower(query))
	if len(queryWords) == 0 {
		return 0
	}

	textWords := make(map[string]struct{})
	for _, word := range strings.Fields(strings.ToLower(text)) {
		textWords[word] = struct{}{}
	}

	matches := 0
	for _, word := range queryWords {
		if _, ok := textWords[word]; ok {
			matches++
		}
	}

	return float64(matches) / float64(len(queryWords))
}
