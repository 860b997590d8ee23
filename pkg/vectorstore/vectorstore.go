// Package vectorstore holds the pieces shared by the vector collection backends.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"math"
)

var (
	ErrCollectionNotFound = errors.New("collection not found")
	ErrLengthMismatch     = errors.New("documents, metadatas and ids must have the same length")
	ErrEmbedderRequired   = errors.New("an embedder is required to add or query documents")
)

// Embedder turns texts into vectors. Backends that store raw vectors need one.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ValidateAdd checks the parallel slices passed to Add.
func ValidateAdd(documents []string, metadatas []map[string]any, ids []string) error {
	if len(documents) != len(ids) {
		return fmt.Errorf("%w: %d documents, %d ids", ErrLengthMismatch, len(documents), len(ids))
	}

	if metadatas != nil && len(metadatas) != len(documents) {
		return fmt.Errorf("%w: %d documents, %d metadatas", ErrLengthMismatch, len(documents), len(metadatas))
	}

	return nil
}

// CosineSimilarity returns 0 for vectors of different length or zero norm.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
