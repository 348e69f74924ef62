// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_normalizers

import (
	"regexp"
	"strings"

	"github.com/rapidaai/voice/pkg/commons"
)

// domainPattern matches the host part of a URL or a bare domain. Schemes and
// paths stay as written, only the dots between labels are spoken.
var domainPattern = regexp.MustCompile(`\b(?:[a-zA-Z0-9][a-zA-Z0-9-]*\.)+[a-zA-Z]{2,}\b`)

type urlNormalizer struct {
	logger commons.Logger
}

func NewUrlNormalizer(logger commons.Logger) Normalizer {
	return &urlNormalizer{logger: logger}
}

func (n *urlNormalizer) Normalize(text string) string {
	return domainPattern.ReplaceAllStringFunc(text, func(domain string) string {
		return strings.ReplaceAll(domain, ".", " dot ")
	})
}
