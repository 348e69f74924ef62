// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package connectors

import (
	"fmt"
	"strings"

	opensearch "github.com/opensearch-project/opensearch-go/v2"
	"github.com/rapidaai/voice/pkg/commons"
	"github.com/rapidaai/voice/pkg/configs"
)

type openSearchConnector struct {
	client *opensearch.Client
}

// NewOpenSearchConnector builds the opensearch client used by the knn
// vector store. Connection problems surface on first request rather than
// here; opensearch-go does not dial eagerly.
func NewOpenSearchConnector(logger commons.Logger, cfg *configs.OpensearchConfig) (OpenSearchConnector, error) {
	var addresses []string
	for _, address := range strings.Split(cfg.Addresses, commons.SEPARATOR) {
		if address = strings.TrimSpace(address); address != "" {
			addresses = append(addresses, address)
		}
	}
	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("building opensearch client: %w", err)
	}
	logger.Infow("opensearch client ready", "addresses", cfg.Addresses, "index", cfg.Index)
	return &openSearchConnector{client: client}, nil
}

func (c *openSearchConnector) Client() *opensearch.Client {
	return c.client
}
