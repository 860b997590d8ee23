package chroma

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/flowbaker/triage/pkg/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const collectionsPath = "/api/v2/tenants/default_tenant/databases/default_database/collections"

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = []float32{float32(len(text)), 1}
	}
	return vectors, nil
}

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(WithBaseURL(server.URL), WithEmbedder(fakeEmbedder{}))
}

func TestClient_Heartbeat(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/heartbeat", r.URL.Path)
		_, _ = w.Write([]byte(`{"nanosecond heartbeat": 1717171717}`))
	})

	assert.NoError(t, client.Heartbeat(context.Background()))
}

func TestClient_HeartbeatServerError(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": "boom"}`))
	})

	err := client.Heartbeat(context.Background())

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "boom", apiErr.Message)
}

func TestClient_CollectionNotFound(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": "Collection customer_policies does not exist."}`))
	})

	_, err := client.Collection(context.Background(), "customer_policies")

	assert.ErrorIs(t, err, vectorstore.ErrCollectionNotFound)
}

func TestCollection_AddAndQuery(t *testing.T) {
	var added addRequest
	var queried queryRequest

	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case collectionsPath + "/customer_interaction":
			_, _ = w.Write([]byte(`{"id": "c-123", "name": "customer_interaction"}`))
		case collectionsPath + "/c-123/add":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&added))
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`true`))
		case collectionsPath + "/c-123/query":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&queried))
			_, _ = w.Write([]byte(`{"ids": [["a"]], "documents": [["knee mri denied", null]], "distances": [[0.1, 0.2]]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	ctx := context.Background()

	collection, err := client.Collection(ctx, "customer_interaction")
	require.NoError(t, err)
	assert.Equal(t, "customer_interaction", collection.Name())
	assert.Equal(t, "c-123", collection.ID())

	err = collection.Add(ctx,
		[]string{"knee mri denied"},
		[]map[string]any{{"channel": "email"}},
		[]string{"id-1"},
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"id-1"}, added.IDs)
	assert.Equal(t, []string{"knee mri denied"}, added.Documents)
	assert.Equal(t, "email", added.Metadatas[0]["channel"])
	assert.Equal(t, [][]float32{{15, 1}}, added.Embeddings)

	result, err := collection.Query(ctx, []string{"mri"}, 1)
	require.NoError(t, err)

	assert.Equal(t, 1, queried.NResults)
	assert.Equal(t, [][]float32{{3, 1}}, queried.QueryEmbeddings)
	assert.Equal(t, []string{"knee mri denied"}, result.Flatten())
}

func TestCollection_AddLengthMismatch(t *testing.T) {
	collection := &Collection{client: NewClient(), id: "x", name: "x"}

	err := collection.Add(context.Background(), []string{"a", "b"}, nil, []string{"1"})

	assert.ErrorIs(t, err, vectorstore.ErrLengthMismatch)
}

func TestClient_TenantScope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/tenants/acme/databases/default_database/collections/customer_policies", r.URL.Path)
		_, _ = w.Write([]byte(`{"id": "p-1", "name": "customer_policies"}`))
	}))
	t.Cleanup(server.Close)

	client := NewClient(WithBaseURL(server.URL), WithTenant("acme", ""), WithEmbedder(fakeEmbedder{}))

	collection, err := client.Collection(context.Background(), "customer_policies")
	require.NoError(t, err)
	assert.Equal(t, "p-1", collection.ID())
}

func TestCollection_RequiresEmbedder(t *testing.T) {
	requests := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		_, _ = w.Write([]byte(`{"id": "c-123", "name": "customer_interaction"}`))
	}))
	t.Cleanup(server.Close)

	client := NewClient(WithBaseURL(server.URL))
	ctx := context.Background()

	collection, err := client.Collection(ctx, "customer_interaction")
	require.NoError(t, err)
	require.Equal(t, 1, requests)

	_, err = collection.Query(ctx, []string{"mri"}, 1)
	assert.ErrorIs(t, err, vectorstore.ErrEmbedderRequired)

	err = collection.Add(ctx, []string{"knee mri denied"}, nil, []string{"id-1"})
	assert.ErrorIs(t, err, vectorstore.ErrEmbedderRequired)

	assert.Equal(t, 1, requests)
}
