// Package pgvector stores collections as PostgreSQL tables with a pgvector
// embedding column.
package pgvector

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/flowbaker/triage/pkg/domain"
	"github.com/flowbaker/triage/pkg/vectorstore"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const DefaultTablePrefix = "triage"

type Store struct {
	pool        *pgxpool.Pool
	embedder    vectorstore.Embedder
	tablePrefix string
	dimensions  int
}

type Opts struct {
	URI         string
	TablePrefix string
	// Dimensions of the embedding column, must match the embedder.
	Dimensions int
}

type StoreDeps struct {
	Context  context.Context
	Embedder vectorstore.Embedder
}

func New(deps StoreDeps, opts Opts) (*Store, error) {
	if deps.Embedder == nil {
		return nil, fmt.Errorf("pgvector store requires an embedder")
	}

	if opts.Dimensions <= 0 {
		return nil, fmt.Errorf("embedding dimensions must be positive, got %d", opts.Dimensions)
	}

	pool, err := pgxpool.New(deps.Context, opts.URI)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	tablePrefix := opts.TablePrefix
	if tablePrefix == "" {
		tablePrefix = DefaultTablePrefix
	}

	store := &Store{
		pool:        pool,
		embedder:    deps.Embedder,
		tablePrefix: tablePrefix,
		dimensions:  opts.Dimensions,
	}

	if _, err := pool.Exec(deps.Context, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to enable vector extension: %w", err)
	}

	return store, nil
}

// Collection returns a handle for name, creating its table when missing.
func (s *Store) Collection(ctx context.Context, name string) (*Collection, error) {
	if name == "" {
		return nil, fmt.Errorf("collection name is required")
	}

	collection := &Collection{
		store: s,
		name:  name,
		table: tableName(s.tablePrefix, name),
	}

	if err := collection.ensureTable(ctx); err != nil {
		return nil, err
	}

	return collection, nil
}

func (s *Store) Heartbeat(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() {
	s.pool.Close()
}

type Collection struct {
	store *Store
	name  string
	table string
}

func (c *Collection) Name() string {
	return c.name
}

func (c *Collection) ensureTable(ctx context.Context) error {
	identifier := pgx.Identifier{c.table}.Sanitize()

	createSQL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			document TEXT NOT NULL,
			metadata JSONB,
			embedding vector(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`, identifier, c.store.dimensions)

	if _, err := c.store.pool.Exec(ctx, createSQL); err != nil {
		return fmt.Errorf("failed to create table for collection %s: %w", c.name, err)
	}

	return nil
}

func (c *Collection) Add(ctx context.Context, documents []string, metadatas []map[string]any, ids []string) error {
	if err := vectorstore.ValidateAdd(documents, metadatas, ids); err != nil {
		return err
	}

	if len(documents) == 0 {
		return nil
	}

	embeddings, err := c.store.embedder.Embed(ctx, documents)
	if err != nil {
		return fmt.Errorf("failed to embed documents: %w", err)
	}

	insertSQL := fmt.Sprintf(`
		INSERT INTO %s (id, document, metadata, embedding)
		VALUES ($1, $2, $3, $4::vector)
		ON CONFLICT (id) DO UPDATE SET document = EXCLUDED.document, metadata = EXCLUDED.metadata, embedding = EXCLUDED.embedding
	`, pgx.Identifier{c.table}.Sanitize())

	batch := &pgx.Batch{}

	for i, document := range documents {
		var metadataJSON []byte
		if metadatas != nil {
			metadataJSON, err = json.Marshal(metadatas[i])
			if err != nil {
				return fmt.Errorf("failed to marshal metadata: %w", err)
			}
		}

		batch.Queue(insertSQL, ids[i], document, metadataJSON, formatVector(embeddings[i]))
	}

	if err := c.store.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to add to collection %s: %w", c.name, err)
	}

	log.Debug().Str("collection", c.name).Int("count", len(documents)).Msg("Stored documents")

	return nil
}

func (c *Collection) Query(ctx context.Context, queryTexts []string, nResults int) (domain.QueryResult, error) {
	if len(queryTexts) == 0 {
		return domain.QueryResult{}, nil
	}

	embeddings, err := c.store.embedder.Embed(ctx, queryTexts)
	if err != nil {
		return domain.QueryResult{}, fmt.Errorf("failed to embed query: %w", err)
	}

	selectSQL := fmt.Sprintf(`
		SELECT document FROM %s
		ORDER BY embedding <-> $1::vector, created_at
		LIMIT $2
	`, pgx.Identifier{c.table}.Sanitize())

	result := domain.QueryResult{Documents: make([][]string, len(queryTexts))}

	for i, embedding := range embeddings {
		rows, err := c.store.pool.Query(ctx, selectSQL, formatVector(embedding), nResults)
		if err != nil {
			return domain.QueryResult{}, fmt.Errorf("failed to query collection %s: %w", c.name, err)
		}

		documents, err := pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return domain.QueryResult{}, fmt.Errorf("failed to scan documents: %w", err)
		}

		result.Documents[i] = documents
	}

	return result, nil
}

func (c *Collection) Heartbeat(ctx context.Context) error {
	return c.store.Heartbeat(ctx)
}

func tableName(prefix, collection string) string {
	return fmt.Sprintf("%s_%s", prefix, collection)
}

// formatVector renders v in pgvector's text input format.
func formatVector(v []float32) string {
	var b strings.Builder

	b.WriteByte('[')
	for i, value := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(value), 'f', -1, 32))
	}
	b.WriteByte(']')

	return b.String()
}
