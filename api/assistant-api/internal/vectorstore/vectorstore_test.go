// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_vectorstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	opensearch "github.com/opensearch-project/opensearch-go/v2"
	"github.com/rapidaai/voice/pkg/commons"
	"github.com/rapidaai/voice/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() commons.Logger {
	l, _ := commons.NewApplicationLogger()
	return l
}

// fakeOpenSearchConnector points the real client at an httptest server.
type fakeOpenSearchConnector struct {
	client *opensearch.Client
}

func (f *fakeOpenSearchConnector) Client() *opensearch.Client { return f.client }

func newFakeOpenSearchConnector(t *testing.T, url string) *fakeOpenSearchConnector {
	t.Helper()
	client, err := opensearch.NewClient(opensearch.Config{Addresses: []string{url}})
	require.NoError(t, err)
	return &fakeOpenSearchConnector{client: client}
}

// =============================================================================
// Factory
// =============================================================================

func TestNewVectorStore_PineconeDefault(t *testing.T) {
	option := utils.Option{"api_key": "pk", "index_host": "idx.svc.pinecone.io"}

	store, err := NewVectorStore(newTestLogger(), "", option, nil)
	require.NoError(t, err)
	assert.Equal(t, ProviderPinecone, store.Name())
}

func TestNewVectorStore_UnknownProvider(t *testing.T) {
	_, err := NewVectorStore(newTestLogger(), "chroma", utils.Option{}, nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported provider")
}

func TestNewVectorStore_OpenSearchWithoutConnector(t *testing.T) {
	_, err := NewVectorStore(newTestLogger(), "opensearch", utils.Option{"index": "kb"}, nil)
	assert.Error(t, err)
}

// =============================================================================
// Pinecone
// =============================================================================

func TestNewPineconeStore_MissingApiKey(t *testing.T) {
	_, err := NewPineconeStore(newTestLogger(), utils.Option{"index_host": "h"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "api_key")
}

func TestNewPineconeStore_MissingHost(t *testing.T) {
	_, err := NewPineconeStore(newTestLogger(), utils.Option{"api_key": "pk"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "host")
}

func TestNewPineconeStore_AcceptsHostAlias(t *testing.T) {
	store, err := NewPineconeStore(newTestLogger(), utils.Option{"api_key": "pk", "host": "idx.svc.pinecone.io"})
	require.NoError(t, err)
	assert.NotNil(t, store)
}

func TestPineconeStore_Query(t *testing.T) {
	var gotPath string
	var gotApiKey string
	var gotBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotApiKey = r.Header.Get("Api-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"matches": [
				{"id": "7_0", "score": 0.91, "metadata": {"text": "alpha chunk", "file_id": "7"}},
				{"id": "7_1", "score": 0.84, "metadata": {"text": "beta chunk", "file_id": "7"}}
			]
		}`))
	}))
	defer server.Close()

	store, err := NewPineconeStore(newTestLogger(), utils.Option{"api_key": "pk-test", "index_host": server.URL})
	require.NoError(t, err)

	matches, err := store.Query(context.Background(), []float32{0.1, 0.2}, 5, "ns-1")
	require.NoError(t, err)

	assert.Equal(t, "/query", gotPath)
	assert.Equal(t, "pk-test", gotApiKey)
	assert.Equal(t, float64(5), gotBody["topK"])
	assert.Equal(t, true, gotBody["includeMetadata"])
	assert.Equal(t, "ns-1", gotBody["namespace"])

	require.Len(t, matches, 2)
	assert.Equal(t, "7_0", matches[0].Id)
	assert.InDelta(t, 0.91, float64(matches[0].Score), 1e-6)
	assert.Equal(t, "alpha chunk", matches[0].Text)
	assert.Equal(t, "beta chunk", matches[1].Text)
}

func TestPineconeStore_QueryOmitsEmptyNamespace(t *testing.T) {
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"matches": []}`))
	}))
	defer server.Close()

	store, _ := NewPineconeStore(newTestLogger(), utils.Option{"api_key": "pk", "index_host": server.URL})
	_, err := store.Query(context.Background(), []float32{0.5}, 3, "")
	require.NoError(t, err)
	assert.NotContains(t, gotBody, "namespace")
}

func TestPineconeStore_UpsertBatches(t *testing.T) {
	var batches [][]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/vectors/upsert", r.URL.Path)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		batches = append(batches, body["vectors"].([]interface{}))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	store, _ := NewPineconeStore(newTestLogger(), utils.Option{"api_key": "pk", "index_host": server.URL})

	vectors := make([]*Vector, 150)
	for i := range vectors {
		vectors[i] = &Vector{Id: "v", Values: []float32{1}}
	}
	require.NoError(t, store.Upsert(context.Background(), vectors, "ns"))

	require.Len(t, batches, 2)
	assert.Len(t, batches[0], 100)
	assert.Len(t, batches[1], 50)
}

func TestPineconeStore_UpsertErrorSurfacesStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"invalid api key"}`))
	}))
	defer server.Close()

	store, _ := NewPineconeStore(newTestLogger(), utils.Option{"api_key": "bad", "index_host": server.URL})
	err := store.Upsert(context.Background(), []*Vector{{Id: "a", Values: []float32{1}}}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestPineconeStore_Delete(t *testing.T) {
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/vectors/delete", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	store, _ := NewPineconeStore(newTestLogger(), utils.Option{"api_key": "pk", "index_host": server.URL})
	require.NoError(t, store.Delete(context.Background(), []string{"7_0", "7_1"}, "ns"))

	ids := gotBody["ids"].([]interface{})
	assert.Len(t, ids, 2)
	assert.Equal(t, "ns", gotBody["namespace"])
}

func TestPineconeStore_DeleteNoIdsIsNoop(t *testing.T) {
	var called bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	store, _ := NewPineconeStore(newTestLogger(), utils.Option{"api_key": "pk", "index_host": server.URL})
	require.NoError(t, store.Delete(context.Background(), nil, ""))
	assert.False(t, called)
}

func TestPineconeStore_DeleteAll(t *testing.T) {
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	store, _ := NewPineconeStore(newTestLogger(), utils.Option{"api_key": "pk", "index_host": server.URL})
	require.NoError(t, store.DeleteAll(context.Background(), "ns-2"))
	assert.Equal(t, true, gotBody["deleteAll"])
	assert.Equal(t, "ns-2", gotBody["namespace"])
}

// =============================================================================
// OpenSearch
// =============================================================================

func TestNewOpenSearchStore_MissingIndex(t *testing.T) {
	connector := newFakeOpenSearchConnector(t, "http://localhost:9200")
	_, err := NewOpenSearchStore(newTestLogger(), connector, utils.Option{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "index name")
}

func TestOpenSearchStore_Query(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"hits": {"hits": [
				{"_id": "9_0", "_score": 0.77, "_source": {"text": "gamma chunk", "metadata": {"file_id": "9"}}}
			]}
		}`))
	}))
	defer server.Close()

	store, err := NewOpenSearchStore(newTestLogger(), newFakeOpenSearchConnector(t, server.URL), utils.Option{"index": "kb-vectors"})
	require.NoError(t, err)

	matches, err := store.Query(context.Background(), []float32{0.3, 0.4}, 5, "ns-9")
	require.NoError(t, err)

	assert.Equal(t, "/kb-vectors/_search", gotPath)
	assert.Equal(t, float64(5), gotBody["size"])

	require.Len(t, matches, 1)
	assert.Equal(t, "9_0", matches[0].Id)
	assert.Equal(t, "gamma chunk", matches[0].Text)
	assert.Equal(t, "9", matches[0].Metadata["file_id"])
}

func TestOpenSearchStore_QueryMissingIndexReturnsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"type":"index_not_found_exception"}}`))
	}))
	defer server.Close()

	store, _ := NewOpenSearchStore(newTestLogger(), newFakeOpenSearchConnector(t, server.URL), utils.Option{"index": "missing"})
	matches, err := store.Query(context.Background(), []float32{0.1}, 5, "")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestOpenSearchStore_UpsertCreatesIndexOnce(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		switch {
		case r.Method == http.MethodHead:
			w.WriteHeader(http.StatusNotFound) // index does not exist yet
		default:
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"errors": false}`))
		}
	}))
	defer server.Close()

	store, _ := NewOpenSearchStore(newTestLogger(), newFakeOpenSearchConnector(t, server.URL), utils.Option{"index": "kb"})

	vectors := []*Vector{{Id: "1_0", Values: []float32{0.1, 0.2, 0.3}, Metadata: map[string]interface{}{"text": "hello"}}}
	require.NoError(t, store.Upsert(context.Background(), vectors, "ns"))
	require.NoError(t, store.Upsert(context.Background(), vectors, "ns"))

	assert.Equal(t, []string{
		"HEAD /kb",
		"PUT /kb",
		"POST /_bulk",
		"POST /_bulk", // second upsert skips the existence dance
	}, paths)
}

func TestOpenSearchStore_DeleteAllByNamespace(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"deleted": 3}`))
	}))
	defer server.Close()

	store, _ := NewOpenSearchStore(newTestLogger(), newFakeOpenSearchConnector(t, server.URL), utils.Option{"index": "kb"})
	require.NoError(t, store.DeleteAll(context.Background(), "ns-3"))

	assert.Equal(t, "/kb/_delete_by_query", gotPath)
	query := gotBody["query"].(map[string]interface{})
	term := query["term"].(map[string]interface{})
	assert.Equal(t, "ns-3", term["namespace"])
}
