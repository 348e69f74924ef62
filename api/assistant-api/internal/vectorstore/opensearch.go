// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	"github.com/rapidaai/voice/pkg/commons"
	"github.com/rapidaai/voice/pkg/connectors"
	"github.com/rapidaai/voice/pkg/utils"
)

type openSearchStore struct {
	logger    commons.Logger
	connector connectors.OpenSearchConnector
	index     string

	ensureOnce sync.Once
	ensureErr  error
	dimension  int
}

// NewOpenSearchStore builds a knn store over one opensearch index.
// option carries "index"; the index itself is created on first upsert
// because the vector dimension is only known once embeddings exist.
func NewOpenSearchStore(logger commons.Logger, connector connectors.OpenSearchConnector, option utils.Option) (VectorStore, error) {
	index := option.GetStringOr("index", "")
	if index == "" {
		return nil, fmt.Errorf("opensearch: index name is required")
	}
	return &openSearchStore{logger: logger, connector: connector, index: index}, nil
}

func (*openSearchStore) Name() string {
	return ProviderOpenSearch
}

// ensureIndex creates the knn index once. Dimension mismatches on an
// existing index surface as bulk indexing errors, not here.
func (s *openSearchStore) ensureIndex(ctx context.Context, dimension int) error {
	s.ensureOnce.Do(func() {
		s.dimension = dimension

		exists, err := opensearchapi.IndicesExistsRequest{Index: []string{s.index}}.Do(ctx, s.connector.Client())
		if err != nil {
			s.ensureErr = fmt.Errorf("opensearch: index existence check failed: %w", err)
			return
		}
		defer exists.Body.Close()
		if exists.StatusCode == 200 {
			return
		}

		mapping := map[string]interface{}{
			"settings": map[string]interface{}{
				"index": map[string]interface{}{"knn": true},
			},
			"mappings": map[string]interface{}{
				"properties": map[string]interface{}{
					"embedding": map[string]interface{}{"type": "knn_vector", "dimension": dimension},
					"text":      map[string]interface{}{"type": "text"},
					"namespace": map[string]interface{}{"type": "keyword"},
					"metadata":  map[string]interface{}{"type": "object"},
				},
			},
		}
		body, _ := json.Marshal(mapping)
		create, err := opensearchapi.IndicesCreateRequest{Index: s.index, Body: bytes.NewReader(body)}.Do(ctx, s.connector.Client())
		if err != nil {
			s.ensureErr = fmt.Errorf("opensearch: index create failed: %w", err)
			return
		}
		defer create.Body.Close()
		if create.IsError() {
			s.ensureErr = fmt.Errorf("opensearch: index create failed: %s", responseSnippet(create.Body))
			return
		}
		s.logger.Infow("opensearch knn index created", "index", s.index, "dimension", dimension)
	})
	return s.ensureErr
}

func (s *openSearchStore) Upsert(ctx context.Context, vectors []*Vector, namespace string) error {
	if len(vectors) == 0 {
		return nil
	}
	if err := s.ensureIndex(ctx, len(vectors[0].Values)); err != nil {
		return err
	}

	var buf bytes.Buffer
	for _, vector := range vectors {
		action, _ := json.Marshal(map[string]interface{}{
			"index": map[string]interface{}{"_index": s.index, "_id": vector.Id},
		})
		document := map[string]interface{}{
			"embedding": vector.Values,
			"namespace": namespace,
			"metadata":  vector.Metadata,
		}
		if text, ok := vector.Metadata["text"].(string); ok {
			document["text"] = text
		}
		source, err := json.Marshal(document)
		if err != nil {
			return fmt.Errorf("opensearch: encoding vector %s failed: %w", vector.Id, err)
		}
		buf.Write(action)
		buf.WriteByte('\n')
		buf.Write(source)
		buf.WriteByte('\n')
	}

	resp, err := opensearchapi.BulkRequest{Body: bytes.NewReader(buf.Bytes()), Refresh: "true"}.Do(ctx, s.connector.Client())
	if err != nil {
		return fmt.Errorf("opensearch: bulk upsert failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return fmt.Errorf("opensearch: bulk upsert failed: %s", responseSnippet(resp.Body))
	}
	s.logger.Debugf("opensearch: upserted %d vectors into %s", len(vectors), s.index)
	return nil
}

func (s *openSearchStore) Query(ctx context.Context, embedding []float32, topK int, namespace string) ([]*Match, error) {
	knn := map[string]interface{}{
		"knn": map[string]interface{}{
			"embedding": map[string]interface{}{"vector": embedding, "k": topK},
		},
	}
	query := map[string]interface{}{"size": topK}
	if namespace != "" {
		query["query"] = map[string]interface{}{
			"bool": map[string]interface{}{
				"must":   []interface{}{knn},
				"filter": []interface{}{map[string]interface{}{"term": map[string]interface{}{"namespace": namespace}}},
			},
		}
	} else {
		query["query"] = knn
	}
	body, _ := json.Marshal(query)

	resp, err := opensearchapi.SearchRequest{
		Index: []string{s.index},
		Body:  bytes.NewReader(body),
	}.Do(ctx, s.connector.Client())
	if err != nil {
		return nil, fmt.Errorf("opensearch: query failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == 404 {
		return nil, nil
	}
	if resp.IsError() {
		return nil, fmt.Errorf("opensearch: query failed: %s", responseSnippet(resp.Body))
	}

	var result struct {
		Hits struct {
			Hits []struct {
				Id     string  `json:"_id"`
				Score  float32 `json:"_score"`
				Source struct {
					Text     string                 `json:"text"`
					Metadata map[string]interface{} `json:"metadata"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("opensearch: decoding query response failed: %w", err)
	}

	matches := make([]*Match, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		matches = append(matches, &Match{
			Id:       hit.Id,
			Score:    hit.Score,
			Text:     hit.Source.Text,
			Metadata: hit.Source.Metadata,
		})
	}
	return matches, nil
}

func (s *openSearchStore) Delete(ctx context.Context, ids []string, namespace string) error {
	if len(ids) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for _, id := range ids {
		action, _ := json.Marshal(map[string]interface{}{
			"delete": map[string]interface{}{"_index": s.index, "_id": id},
		})
		buf.Write(action)
		buf.WriteByte('\n')
	}
	resp, err := opensearchapi.BulkRequest{Body: bytes.NewReader(buf.Bytes()), Refresh: "true"}.Do(ctx, s.connector.Client())
	if err != nil {
		return fmt.Errorf("opensearch: bulk delete failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.IsError() && resp.StatusCode != 404 {
		return fmt.Errorf("opensearch: bulk delete failed: %s", responseSnippet(resp.Body))
	}
	return nil
}

func (s *openSearchStore) DeleteAll(ctx context.Context, namespace string) error {
	var query map[string]interface{}
	if namespace != "" {
		query = map[string]interface{}{
			"query": map[string]interface{}{"term": map[string]interface{}{"namespace": namespace}},
		}
	} else {
		query = map[string]interface{}{
			"query": map[string]interface{}{"match_all": map[string]interface{}{}},
		}
	}
	body, _ := json.Marshal(query)

	resp, err := opensearchapi.DeleteByQueryRequest{
		Index: []string{s.index},
		Body:  bytes.NewReader(body),
	}.Do(ctx, s.connector.Client())
	if err != nil {
		return fmt.Errorf("opensearch: delete by query failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.IsError() && resp.StatusCode != 404 {
		return fmt.Errorf("opensearch: delete by query failed: %s", responseSnippet(resp.Body))
	}
	return nil
}

// responseSnippet reads the head of an error body for the message.
func responseSnippet(body io.Reader) string {
	snippet, _ := io.ReadAll(io.LimitReader(body, 200))
	return strings.TrimSpace(string(snippet))
}
