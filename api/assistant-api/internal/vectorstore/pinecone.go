// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_vectorstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rapidaai/voice/pkg/commons"
	"github.com/rapidaai/voice/pkg/utils"
)

// upsertBatchSize caps one upsert request; pinecone rejects oversized
// payloads well below this on large embedding models anyway.
const upsertBatchSize = 100

type pineconeStore struct {
	logger commons.Logger
	client *resty.Client
	host   string
}

// NewPineconeStore builds a REST client against one pinecone index.
// option must carry "api_key" and the index data-plane host under
// "index_host" (or "host" in knowledge-base configs).
func NewPineconeStore(logger commons.Logger, option utils.Option) (VectorStore, error) {
	apiKey := option.GetStringOr("api_key", "")
	if apiKey == "" {
		return nil, fmt.Errorf("pinecone: api_key is required")
	}
	host := option.GetStringOr("index_host", option.GetStringOr("host", ""))
	if host == "" {
		return nil, fmt.Errorf("pinecone: index host is required")
	}
	if !strings.HasPrefix(host, "http") {
		host = "https://" + host
	}

	client := resty.New().
		SetBaseURL(host).
		SetTimeout(30 * time.Second).
		SetHeader("Api-Key", apiKey).
		SetHeader("Content-Type", "application/json")

	return &pineconeStore{logger: logger, client: client, host: host}, nil
}

func (*pineconeStore) Name() string {
	return ProviderPinecone
}

func (s *pineconeStore) Upsert(ctx context.Context, vectors []*Vector, namespace string) error {
	for start := 0; start < len(vectors); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(vectors) {
			end = len(vectors)
		}
		payload := map[string]interface{}{"vectors": vectors[start:end]}
		if namespace != "" {
			payload["namespace"] = namespace
		}
		if err := s.post(ctx, "/vectors/upsert", payload, nil); err != nil {
			return fmt.Errorf("pinecone: upsert batch %d..%d failed: %w", start, end, err)
		}
	}
	s.logger.Debugf("pinecone: upserted %d vectors into %s", len(vectors), s.host)
	return nil
}

func (s *pineconeStore) Query(ctx context.Context, embedding []float32, topK int, namespace string) ([]*Match, error) {
	payload := map[string]interface{}{
		"vector":          embedding,
		"topK":            topK,
		"includeMetadata": true,
	}
	if namespace != "" {
		payload["namespace"] = namespace
	}

	var result struct {
		Matches []struct {
			Id       string                 `json:"id"`
			Score    float32                `json:"score"`
			Metadata map[string]interface{} `json:"metadata"`
		} `json:"matches"`
	}
	if err := s.post(ctx, "/query", payload, &result); err != nil {
		return nil, fmt.Errorf("pinecone: query failed: %w", err)
	}

	matches := make([]*Match, 0, len(result.Matches))
	for _, m := range result.Matches {
		match := &Match{Id: m.Id, Score: m.Score, Metadata: m.Metadata}
		if text, ok := m.Metadata["text"].(string); ok {
			match.Text = text
		}
		matches = append(matches, match)
	}
	return matches, nil
}

func (s *pineconeStore) Delete(ctx context.Context, ids []string, namespace string) error {
	if len(ids) == 0 {
		return nil
	}
	payload := map[string]interface{}{"ids": ids}
	if namespace != "" {
		payload["namespace"] = namespace
	}
	if err := s.post(ctx, "/vectors/delete", payload, nil); err != nil {
		return fmt.Errorf("pinecone: delete failed: %w", err)
	}
	return nil
}

func (s *pineconeStore) DeleteAll(ctx context.Context, namespace string) error {
	payload := map[string]interface{}{"deleteAll": true}
	if namespace != "" {
		payload["namespace"] = namespace
	}
	if err := s.post(ctx, "/vectors/delete", payload, nil); err != nil {
		return fmt.Errorf("pinecone: delete all failed: %w", err)
	}
	return nil
}

func (s *pineconeStore) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	request := s.client.R().SetContext(ctx).SetBody(payload)
	if out != nil {
		request.SetResult(out)
	}
	resp, err := request.Post(path)
	if err != nil {
		return err
	}
	if resp.IsError() {
		body := resp.String()
		if len(body) > 200 {
			body = body[:200]
		}
		return fmt.Errorf("status %d: %s", resp.StatusCode(), body)
	}
	return nil
}
